// Package gate manages the interrupt descriptor table (IDT) that routes CPU
// exceptions and hardware interrupts to Go handlers.
package gate

//go:generate go run ../../tools/makegates -out gate_entries_amd64.s

import (
	"io"
	"minikern/kernel"
	"minikern/kernel/kfmt"
	"unsafe"
)

// Registers contains a snapshot of all register values when an exception
// or interrupt occurs.
type Registers struct {
	RAX uint64
	RBX uint64
	RCX uint64
	RDX uint64
	RSI uint64
	RDI uint64
	RBP uint64
	R8  uint64
	R9  uint64
	R10 uint64
	R11 uint64
	R12 uint64
	R13 uint64
	R14 uint64
	R15 uint64

	// Vector is the interrupt number that caused the handler to run.
	Vector uint64

	// Info contains the exception code for exceptions that push one and
	// zero otherwise.
	Info uint64

	// The return frame used by IRETQ
	RIP    uint64
	CS     uint64
	RFlags uint64
	RSP    uint64
	SS     uint64
}

// DumpTo outputs the register contents to w.
func (r *Registers) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "RAX = %16x RBX = %16x\n", r.RAX, r.RBX)
	kfmt.Fprintf(w, "RCX = %16x RDX = %16x\n", r.RCX, r.RDX)
	kfmt.Fprintf(w, "RSI = %16x RDI = %16x\n", r.RSI, r.RDI)
	kfmt.Fprintf(w, "RBP = %16x\n", r.RBP)
	kfmt.Fprintf(w, "R8  = %16x R9  = %16x\n", r.R8, r.R9)
	kfmt.Fprintf(w, "R10 = %16x R11 = %16x\n", r.R10, r.R11)
	kfmt.Fprintf(w, "R12 = %16x R13 = %16x\n", r.R12, r.R13)
	kfmt.Fprintf(w, "R14 = %16x R15 = %16x\n", r.R14, r.R15)
	kfmt.Fprintf(w, "\n")
	kfmt.Fprintf(w, "VEC = %16x ERR = %16x\n", r.Vector, r.Info)
	kfmt.Fprintf(w, "RIP = %16x CS  = %16x\n", r.RIP, r.CS)
	kfmt.Fprintf(w, "RSP = %16x SS  = %16x\n", r.RSP, r.SS)
	kfmt.Fprintf(w, "RFL = %16x\n", r.RFlags)
}

// InterruptNumber describes an x86 interrupt/exception/trap slot.
type InterruptNumber uint8

const (
	// DivideByZero occurs when dividing any number by 0 using the DIV or
	// IDIV instruction.
	DivideByZero = InterruptNumber(0)

	// NMI (non-maskable-interrupt) is a hardware interrupt that indicates
	// issues with RAM or unrecoverable hardware problems. It may also be
	// raised by the CPU when a watchdog timer is enabled.
	NMI = InterruptNumber(2)

	// Breakpoint occurs when the CPU executes an INT3 instruction.
	Breakpoint = InterruptNumber(3)

	// Overflow occurs when an overflow occurs (e.g result of division
	// cannot fit into the registers used).
	Overflow = InterruptNumber(4)

	// BoundRangeExceeded occurs when the BOUND instruction is invoked with
	// an index out of range.
	BoundRangeExceeded = InterruptNumber(5)

	// InvalidOpcode occurs when the CPU attempts to execute an invalid or
	// undefined instruction opcode.
	InvalidOpcode = InterruptNumber(6)

	// DeviceNotAvailable occurs when the CPU attempts to execute an
	// FPU/MMX/SSE instruction while no FPU is available or while
	// FPU/MMX/SSE support has been disabled by manipulating the CR0
	// register.
	DeviceNotAvailable = InterruptNumber(7)

	// DoubleFault occurs when an unhandled exception occurs or when an
	// exception occurs within a running exception handler.
	DoubleFault = InterruptNumber(8)

	// InvalidTSS occurs when the TSS points to an invalid task segment
	// selector.
	InvalidTSS = InterruptNumber(10)

	// SegmentNotPresent occurs when the CPU attempts to invoke a present
	// gate with an invalid stack segment selector.
	SegmentNotPresent = InterruptNumber(11)

	// StackSegmentFault occurs when attempting to push/pop from a
	// non-canonical stack address or when the stack base/limit (set in
	// GDT) checks fail.
	StackSegmentFault = InterruptNumber(12)

	// GPFException occurs when a general protection fault occurs.
	GPFException = InterruptNumber(13)

	// PageFaultException occurs when a page directory table (PDT) or one
	// of its entries is not present or when a privilege and/or RW
	// protection check fails.
	PageFaultException = InterruptNumber(14)

	// FloatingPointException occurs while invoking an FP instruction while:
	//  - CR0.NE = 1 OR
	//  - an unmasked FP exception is pending
	FloatingPointException = InterruptNumber(16)

	// AlignmentCheck occurs when alignment checks are enabled and an
	// unaligmed memory access is performed.
	AlignmentCheck = InterruptNumber(17)

	// MachineCheck occurs when the CPU detects internal errors such as
	// memory-, bus- or cache-related errors.
	MachineCheck = InterruptNumber(18)

	// SIMDFloatingPointException occurs when an unmasked SSE exception
	// occurs while CR4.OSXMMEXCPT is set to 1. If the OSXMMEXCPT bit is
	// not set, SIMD FP exceptions cause InvalidOpcode exceptions instead.
	SIMDFloatingPointException = InterruptNumber(19)
)

const (
	numGates = 256

	// gateTypeInterrupt marks a descriptor as a present 64-bit interrupt
	// gate with DPL 0. The CPU clears IF when entering such a gate.
	gateTypeInterrupt = 0x8e

	// DoubleFaultISTIndex is the interrupt stack table slot whose stack
	// is reserved for the double fault handler.
	DoubleFaultISTIndex = 1

	// maxISTIndex is the highest IST slot backed by a stack.
	maxISTIndex = DoubleFaultISTIndex
)

// Handler processes an interrupt. It receives the register snapshot taken
// when the interrupt occurred; changes to it are applied when the handler
// returns.
type Handler func(*Registers)

type tableSlot struct {
	handler  Handler
	istIndex uint8
}

// Table associates interrupt numbers with handlers. A Table is populated via
// Set and then installed with Load. Once loaded, a table can no longer be
// modified and must remain live for as long as the kernel runs.
type Table struct {
	slots  [numGates]tableSlot
	loaded bool
}

// gateDescriptor is the hardware layout of a 64-bit IDT entry.
type gateDescriptor struct {
	offsetLow  uint16
	selector   uint16
	istIndex   uint8
	typeAttr   uint8
	offsetMid  uint16
	offsetHigh uint32
	reserved   uint32
}

var (
	// idt holds the descriptors of the loaded table. The CPU reads it
	// on every interrupt so it lives in static storage.
	idt [numGates]gateDescriptor

	// activeTable is the table that dispatchInterrupt routes to.
	activeTable *Table

	// The following functions are used by tests to override calls that
	// will cause a fault if called in user-mode.
	loadIDTFn       = loadIDT
	readCSFn        = readCS
	installTSSFn    = installTSS
	gateEntryAddrFn = gateEntryAddr

	errTableLoaded        = &kernel.Error{Module: "gate", Message: "interrupt table cannot be modified after it has been loaded"}
	errIDTAlreadyLoaded   = &kernel.Error{Module: "gate", Message: "an interrupt table has already been loaded"}
	errInvalidISTIndex    = &kernel.Error{Module: "gate", Message: "IST index does not refer to a configured interrupt stack"}
	errNilHandler         = &kernel.Error{Module: "gate", Message: "interrupt handler must not be nil"}
	errMissingBreakpoint  = &kernel.Error{Module: "gate", Message: "interrupt table has no breakpoint handler"}
	errMissingDoubleFault = &kernel.Error{Module: "gate", Message: "interrupt table has no double fault handler"}
	errDoubleFaultNoIST   = &kernel.Error{Module: "gate", Message: "double fault handler must use a dedicated interrupt stack"}
	errUnhandledInterrupt = &kernel.Error{Module: "gate", Message: "interrupt without a registered handler"}
)

// Set registers handler for the interrupt intNumber. If istIndex is non-zero
// the CPU switches to the stack in that interrupt stack table slot before
// invoking the handler.
func (t *Table) Set(intNumber InterruptNumber, istIndex uint8, handler Handler) *kernel.Error {
	switch {
	case t.loaded:
		return errTableLoaded
	case istIndex > maxISTIndex:
		return errInvalidISTIndex
	case handler == nil:
		return errNilHandler
	}

	t.slots[intNumber] = tableSlot{handler: handler, istIndex: istIndex}
	return nil
}

// Slot returns the handler registered for intNumber and the interrupt stack
// table slot it runs on. The handler is nil if none has been set.
func (t *Table) Slot(intNumber InterruptNumber) (Handler, uint8) {
	slot := t.slots[intNumber]
	return slot.handler, slot.istIndex
}

// Load installs the table in the CPU. Only a single table may ever be
// loaded and it must provide handlers for breakpoints and double faults;
// the latter must run on an interrupt stack table entry. Interrupt numbers
// without a handler are marked as not present.
func (t *Table) Load() *kernel.Error {
	switch {
	case t.loaded || activeTable != nil:
		return errIDTAlreadyLoaded
	case t.slots[Breakpoint].handler == nil:
		return errMissingBreakpoint
	case t.slots[DoubleFault].handler == nil:
		return errMissingDoubleFault
	case t.slots[DoubleFault].istIndex == 0:
		return errDoubleFaultNoIST
	}

	installTSSFn()

	selector := readCSFn()
	for num, slot := range t.slots {
		if slot.handler == nil {
			idt[num] = gateDescriptor{}
			continue
		}

		addr := uint64(gateEntryAddrFn(uint8(num)))
		idt[num] = gateDescriptor{
			offsetLow:  uint16(addr),
			selector:   selector,
			istIndex:   slot.istIndex,
			typeAttr:   gateTypeInterrupt,
			offsetMid:  uint16(addr >> 16),
			offsetHigh: uint32(addr >> 32),
		}
	}

	t.loaded = true
	activeTable = t
	loadIDTFn(uintptr(unsafe.Pointer(&idt[0])), uint16(unsafe.Sizeof(idt)-1))

	return nil
}

// dispatchInterrupt is invoked by the interrupt gate entrypoints to route
// an incoming interrupt to the registered handler. Double faults arrive on
// the IST stack so the goroutine stack bounds are switched to it while the
// handler runs.
//go:nosplit
func dispatchInterrupt(regs *Registers) {
	if InterruptNumber(regs.Vector) != DoubleFault {
		dispatch(regs)
		return
	}

	gs := currentStackFn()
	saved := *gs
	useDoubleFaultStack(gs)
	dispatch(regs)
	*gs = saved
}

func dispatch(regs *Registers) {
	if table := activeTable; table != nil {
		if handler := table.slots[uint8(regs.Vector)].handler; handler != nil {
			handler(regs)
			return
		}
	}

	kfmt.Printf("\nunhandled interrupt 0x%x\n", regs.Vector)
	regs.DumpTo(kfmt.SinkWriter{})
	panic(errUnhandledInterrupt)
}

// loadIDT executes lidt with the supplied table base address and limit.
func loadIDT(base uintptr, limit uint16)

// readCS returns the selector of the active code segment.
func readCS() uint16

// gateEntryAddr returns the address of the assembly entrypoint for the
// supplied interrupt number.
func gateEntryAddr(num uint8) uintptr

// gateCommon is the shared assembly tail of every gate entrypoint. It is
// never called from Go.
func gateCommon()
