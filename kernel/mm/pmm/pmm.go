// Package pmm manages the allocation of physical memory frames.
package pmm

import (
	"minikern/kernel"
	"minikern/kernel/mm"
)

var (
	// bootMemAllocator is the only physical frame allocator; the kernel
	// never frees frames so no other allocator is needed.
	bootMemAllocator BootMemAllocator

	errInvalidKernelRange = &kernel.Error{Module: "pmm", Message: "kernel image end precedes its start"}
)

// Init sets up the kernel physical memory allocation sub-system using the
// memory map supplied by the bootloader. Frames overlapping the kernel image
// [kernelStart, kernelEnd) are never handed out.
func Init(kernelStart, kernelEnd uintptr) *kernel.Error {
	if kernelEnd < kernelStart {
		return errInvalidKernelRange
	}

	bootMemAllocator.init(kernelStart, kernelEnd)
	bootMemAllocator.printMemoryMap()
	mm.SetFrameAllocator(earlyAllocFrame)

	return nil
}

func earlyAllocFrame() (mm.Frame, *kernel.Error) {
	return bootMemAllocator.AllocFrame()
}
