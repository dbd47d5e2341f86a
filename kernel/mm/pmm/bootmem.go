package pmm

import (
	"minikern/kernel"
	"minikern/kernel/hal/multiboot"
	"minikern/kernel/kfmt"
	"minikern/kernel/mm"
)

var (
	// visitMemRegionsFn is used by tests to supply a synthetic memory map.
	visitMemRegionsFn = multiboot.VisitMemRegions

	// ErrOutOfMemory is returned by AllocFrame once every usable frame
	// has been handed out.
	ErrOutOfMemory = &kernel.Error{Module: "boot_mem_alloc", Message: "out of memory"}
)

// BootMemAllocator implements a rudimentary physical memory allocator.
//
// The allocator treats the usable memory regions reported by the bootloader
// as one ordered sequence of page-aligned frames (regions are visited in
// bootloader order; region starts are rounded up and region ends rounded
// down to a page boundary) and hands out the element selected by an internal
// cursor. The cursor advances on every call, including calls that fail, so
// once the sequence is exhausted every following call fails too.
//
// Frames overlapping the kernel image are not part of the sequence. Allocated
// frames cannot be freed.
type BootMemAllocator struct {
	// next is the index of the frame returned by the following AllocFrame
	// call.
	next uint64

	kernelStartAddr, kernelEndAddr uintptr

	// The kernel image occupies [kernelStartFrame, kernelEndFrame).
	kernelStartFrame, kernelEndFrame mm.Frame
}

// init sets up the boot memory allocator internal state.
func (alloc *BootMemAllocator) init(kernelStart, kernelEnd uintptr) {
	alloc.next = 0
	alloc.kernelStartAddr = kernelStart
	alloc.kernelEndAddr = kernelEnd
	alloc.kernelStartFrame = mm.FrameFromAddress(kernelStart)
	alloc.kernelEndFrame = mm.FrameFromAddress(kernelEnd + mm.PageSize - 1)
}

// AllocFrame returns the next free frame or ErrOutOfMemory if no more usable
// frames are available.
func (alloc *BootMemAllocator) AllocFrame() (mm.Frame, *kernel.Error) {
	var (
		target = alloc.next
		seen   uint64
		frame  = mm.InvalidFrame
	)
	alloc.next++

	visitMemRegionsFn(func(region *multiboot.MemoryMapEntry) bool {
		if region.Type != multiboot.MemAvailable {
			return true
		}

		// A region is split in at most two runs by the kernel image. If
		// the image lies outside the region one of the runs is empty.
		start, end := regionFrames(region)
		runs := [2][2]mm.Frame{
			{start, minFrame(end, alloc.kernelStartFrame)},
			{maxFrame(start, alloc.kernelEndFrame), end},
		}

		for _, run := range runs {
			if run[1] <= run[0] {
				continue
			}

			count := uint64(run[1] - run[0])
			if target < seen+count {
				frame = run[0] + mm.Frame(target-seen)
				return false
			}
			seen += count
		}

		return true
	})

	if !frame.Valid() {
		return mm.InvalidFrame, ErrOutOfMemory
	}

	return frame, nil
}

// printMemoryMap scans the memory region information provided by the
// bootloader and prints out the system's memory map.
func (alloc *BootMemAllocator) printMemoryMap() {
	kfmt.Printf("[boot_mem_alloc] system memory map:\n")
	var totalFree mm.Size
	visitMemRegionsFn(func(region *multiboot.MemoryMapEntry) bool {
		kfmt.Printf("\t[0x%10x - 0x%10x], size: %10d, type: %s\n", region.PhysAddress, region.End(), region.Length, region.Type.String())

		if region.Type == multiboot.MemAvailable {
			totalFree += mm.Size(region.Length)
		}
		return true
	})
	kfmt.Printf("[boot_mem_alloc] available memory: %dKb\n", uint64(totalFree/mm.Kb))
	kfmt.Printf("[boot_mem_alloc] kernel loaded at 0x%x - 0x%x\n", alloc.kernelStartAddr, alloc.kernelEndAddr)
	kfmt.Printf("[boot_mem_alloc] size: %d bytes, reserved pages: %d\n",
		uint64(alloc.kernelEndAddr-alloc.kernelStartAddr),
		uint64(alloc.kernelEndFrame-alloc.kernelStartFrame),
	)
}

// regionFrames returns the frames [start, end) fully contained in region.
func regionFrames(region *multiboot.MemoryMapEntry) (mm.Frame, mm.Frame) {
	pageSizeMinus1 := uint64(mm.PageSize - 1)
	start := mm.Frame(((region.PhysAddress + pageSizeMinus1) & ^pageSizeMinus1) >> mm.PageShift)
	end := mm.Frame((region.End() & ^pageSizeMinus1) >> mm.PageShift)
	if end < start {
		end = start
	}
	return start, end
}

func minFrame(a, b mm.Frame) mm.Frame {
	if a < b {
		return a
	}
	return b
}

func maxFrame(a, b mm.Frame) mm.Frame {
	if a > b {
		return a
	}
	return b
}
