package sync

import "minikern/kernel/cpu"

// InterruptControl groups the functions used by IRQSpinlock to inspect and
// toggle the CPU interrupt flag.
type InterruptControl struct {
	Enabled func() bool
	Disable func()
	Enable  func()
}

var irqControl = InterruptControl{
	Enabled: cpu.InterruptsEnabled,
	Disable: cpu.DisableInterrupts,
	Enable:  cpu.EnableInterrupts,
}

// SetInterruptControl replaces the functions used by all IRQSpinlocks to
// manage the interrupt flag and returns the previously installed set. Code
// that runs in user mode (e.g. tests) cannot execute cli/sti and must install
// a replacement before touching an IRQSpinlock.
func SetInterruptControl(ic InterruptControl) InterruptControl {
	prev := irqControl
	irqControl = ic
	return prev
}

// IRQSpinlock is a Spinlock whose critical section runs with interrupts
// masked. Mainline code that shares state with an interrupt handler must use
// it: if the handler fired while the mainline held a plain Spinlock it would
// spin forever on a lock that its own interrupted context owns.
//
// Release restores the interrupt flag to the value observed by Acquire so
// IRQSpinlocks can be used from inside handlers (which already run with
// interrupts disabled) without re-enabling interrupts on the way out.
type IRQSpinlock struct {
	lock Spinlock

	// interruptsWereEnabled is only accessed while lock is held.
	interruptsWereEnabled bool
}

// Acquire masks interrupts and then acquires the lock.
func (l *IRQSpinlock) Acquire() {
	enabled := irqControl.Enabled()
	if enabled {
		irqControl.Disable()
	}

	l.lock.Acquire()
	l.interruptsWereEnabled = enabled
}

// TryToAcquire attempts to acquire the lock with interrupts masked. If the
// lock is busy the interrupt flag is restored and false is returned.
func (l *IRQSpinlock) TryToAcquire() bool {
	enabled := irqControl.Enabled()
	if enabled {
		irqControl.Disable()
	}

	if !l.lock.TryToAcquire() {
		if enabled {
			irqControl.Enable()
		}
		return false
	}

	l.interruptsWereEnabled = enabled
	return true
}

// Release releases the lock and re-enables interrupts if they were enabled
// when the lock was acquired.
func (l *IRQSpinlock) Release() {
	enable := l.interruptsWereEnabled
	l.interruptsWereEnabled = false
	l.lock.Release()

	if enable {
		irqControl.Enable()
	}
}
