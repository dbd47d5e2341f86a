// Package sync provides busy-wait locks for code that runs without a
// scheduler. Locks that can be reached from an interrupt handler must be
// IRQSpinlocks so the critical section runs with interrupts masked.
package sync

import (
	"minikern/kernel/cpu"
	"sync/atomic"
)

// attemptsBeforeYielding controls how many failed acquire attempts are made
// before yieldFn (if set) gets a chance to run.
const attemptsBeforeYielding = 64

var (
	// yieldFn is invoked while spinning. The kernel has no scheduler so it
	// stays nil there; tests set it to runtime.Gosched.
	yieldFn func()

	// cpuPauseFn is used by tests to override calls to cpu.Pause.
	cpuPauseFn = cpu.Pause
)

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	for attempts := 0; !atomic.CompareAndSwapUint32(&l.state, 0, 1); attempts++ {
		if yieldFn != nil && attempts >= attemptsBeforeYielding {
			yieldFn()
			attempts = 0
			continue
		}
		cpuPauseFn()
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}
