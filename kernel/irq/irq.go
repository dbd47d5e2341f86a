// Package irq owns the kernel's interrupt table and provides the handlers for
// CPU exceptions and the hardware interrupts raised by the chained PIC.
package irq

import (
	"minikern/device/keyboard"
	"minikern/device/pic"
	"minikern/kernel"
	"minikern/kernel/cpu"
	"minikern/kernel/gate"
	"minikern/kernel/kfmt"
	"minikern/kernel/sync"
)

const (
	// PrimaryPICOffset is the first vector raised by the primary PIC.
	// Vectors below 32 are reserved for CPU exceptions.
	PrimaryPICOffset = 32

	// SecondaryPICOffset is the first vector raised by the secondary PIC.
	SecondaryPICOffset = PrimaryPICOffset + pic.IRQLines

	// Timer is raised by the programmable interval timer (IRQ 0).
	Timer = gate.InterruptNumber(PrimaryPICOffset)

	// Keyboard is raised by the PS/2 keyboard controller (IRQ 1).
	Keyboard = gate.InterruptNumber(PrimaryPICOffset + 1)
)

// interruptController is implemented by the PIC driver.
type interruptController interface {
	Remap()
	Acknowledge(vector uint8)
}

var (
	table gate.Table

	// pics is shared between Init and every hardware interrupt handler.
	pics    interruptController = pic.NewChained(PrimaryPICOffset, SecondaryPICOffset)
	picLock sync.IRQSpinlock

	kbd     = keyboard.New()
	kbdLock sync.IRQSpinlock

	// The following functions are used by tests to override calls that
	// will cause a fault if called in user-mode.
	portReadByteFn = cpu.PortReadByte
	loadTableFn    = (*gate.Table).Load
	panicFn        = kfmt.Panic

	errDoubleFault = &kernel.Error{Module: "irq", Message: "double fault"}
)

// Init remaps the PIC so that hardware interrupts do not collide with CPU
// exceptions, registers the handlers for breakpoints, double faults, the
// timer and the keyboard and loads the interrupt table. Interrupts remain
// disabled until the caller enables them.
func Init() *kernel.Error {
	picLock.Acquire()
	pics.Remap()
	picLock.Release()

	var err *kernel.Error
	if err = table.Set(gate.Breakpoint, 0, onBreakpoint); err != nil {
		return err
	} else if err = table.Set(gate.DoubleFault, gate.DoubleFaultISTIndex, onDoubleFault); err != nil {
		return err
	} else if err = table.Set(Timer, 0, onTimer); err != nil {
		return err
	} else if err = table.Set(Keyboard, 0, onKeyboard); err != nil {
		return err
	}

	return loadTableFn(&table)
}

// onBreakpoint reports the breakpoint and resumes execution at the
// instruction following int3.
func onBreakpoint(regs *gate.Registers) {
	kfmt.Printf("\nexception: breakpoint\n")
	regs.DumpTo(kfmt.SinkWriter{})
}

// onDoubleFault runs on its own stack and halts the CPU. It writes to the
// output sink without locking as the fault may have interrupted a Printf.
func onDoubleFault(regs *gate.Registers) {
	w := kfmt.GetOutputSink()
	kfmt.Fprintf(w, "\nexception: double fault\n")
	regs.DumpTo(w)
	panicFn(errDoubleFault)
}

func onTimer(_ *gate.Registers) {
	kfmt.Printf(".")
	acknowledge(Timer)
}

// onKeyboard reads a single scancode byte and prints the decoded key, if
// any. The controller does not raise another keyboard interrupt until the
// pending byte is read so the port is read on every invocation.
func onKeyboard(_ *gate.Registers) {
	scancode := portReadByteFn(keyboard.DataPort)

	var (
		key    keyboard.DecodedKey
		hasKey bool
	)

	kbdLock.Acquire()
	if ev, ok, err := kbd.AddByte(scancode); ok && err == nil {
		key, hasKey = kbd.ProcessKeyEvent(ev)
	}
	kbdLock.Release()

	switch {
	case !hasKey:
	case key.IsRune():
		kfmt.Printf("%c", key.Rune)
	default:
		kfmt.Printf("%s", key.Code.String())
	}

	acknowledge(Keyboard)
}

func acknowledge(num gate.InterruptNumber) {
	picLock.Acquire()
	pics.Acknowledge(uint8(num))
	picLock.Release()
}
