package gate

import (
	"encoding/binary"
	"unsafe"
)

const (
	// tssSize is the size of a 64-bit task state segment without an I/O
	// permission bitmap.
	tssSize = 104

	// tssIST1Offset is the offset of the first interrupt stack table
	// pointer inside the TSS.
	tssIST1Offset = 36

	// tssIOMapBaseOffset is the offset of the I/O map base field. Setting
	// it to tssSize disables the I/O permission bitmap.
	tssIOMapBaseOffset = 102

	doubleFaultStackSize = 5 * 4096

	// stackGuard matches the runtime's _StackGuard: functions with a stack
	// check prologue call morestack once SP drops below lo+stackGuard.
	stackGuard = 928

	// Segment selectors in gdt. The code selector must match the one
	// the kernel was started with as CS is not reloaded.
	kernelCodeSelector = 0x08
	kernelDataSelector = 0x10
	tssSelector        = 0x18

	// Flat 64-bit code and data segment descriptors.
	kernelCodeDescriptor = uint64(0x00af9a000000ffff)
	kernelDataDescriptor = uint64(0x00cf92000000ffff)

	// tssDescriptorType marks a present, available 64-bit TSS.
	tssDescriptorType = 0x89
)

var (
	// doubleFaultStack is the stack the CPU switches to when a double
	// fault occurs so the handler still runs if the kernel stack is
	// corrupted or exhausted.
	doubleFaultStack [doubleFaultStackSize]byte

	tss [tssSize]byte

	// gdt contains the null, code and data descriptors followed by the
	// two slots of the TSS descriptor.
	gdt [5]uint64

	// The following functions are used by tests to override calls that
	// will cause a fault if called in user-mode.
	loadGDTFn      = loadGDT
	loadTRFn       = loadTR
	currentStackFn = currentStack
)

// goroutineStack mirrors the leading fields of the runtime's g struct: the
// stack bounds and the guard compared against SP by function prologues.
type goroutineStack struct {
	lo, hi, guard0 uintptr
}

// useDoubleFaultStack points the bounds of gs at doubleFaultStack so that Go
// code running on the IST stack passes its stack checks instead of calling
// morestack on g0.
//go:nosplit
func useDoubleFaultStack(gs *goroutineStack) {
	lo := uintptr(unsafe.Pointer(&doubleFaultStack[0]))
	gs.lo = lo
	gs.hi = lo + doubleFaultStackSize
	gs.guard0 = lo + stackGuard
}

// installTSS sets up a TSS whose first interrupt stack table entry points to
// the top of doubleFaultStack, installs a GDT that describes it and loads the
// task register.
func installTSS() {
	stackTop := (uintptr(unsafe.Pointer(&doubleFaultStack[0])) + doubleFaultStackSize) &^ 15
	binary.LittleEndian.PutUint64(tss[tssIST1Offset:], uint64(stackTop))
	binary.LittleEndian.PutUint16(tss[tssIOMapBaseOffset:], tssSize)

	gdt[0] = 0
	gdt[kernelCodeSelector>>3] = kernelCodeDescriptor
	gdt[kernelDataSelector>>3] = kernelDataDescriptor
	gdt[tssSelector>>3], gdt[(tssSelector>>3)+1] = tssDescriptor(uint64(uintptr(unsafe.Pointer(&tss[0]))), tssSize-1)

	loadGDTFn(uintptr(unsafe.Pointer(&gdt[0])), uint16(unsafe.Sizeof(gdt)-1))
	loadTRFn(tssSelector)
}

// tssDescriptor encodes the 16-byte system segment descriptor for a TSS
// located at base.
func tssDescriptor(base, limit uint64) (low, high uint64) {
	low = limit&0xffff |
		(base&0xffffff)<<16 |
		tssDescriptorType<<40 |
		((limit>>16)&0xf)<<48 |
		((base>>24)&0xff)<<56
	high = base >> 32
	return low, high
}

// loadGDT executes lgdt with the supplied table base address and limit and
// reloads the data segment registers with kernelDataSelector.
func loadGDT(base uintptr, limit uint16)

// loadTR loads the task register with the supplied TSS selector.
func loadTR(selector uint16)

// currentStack returns the stack descriptor of the running goroutine.
func currentStack() *goroutineStack
