package vmm

import (
	"minikern/kernel"
	"minikern/kernel/mm"
)

const (
	// KernelHeapStart is the first virtual address handed out by
	// ReserveRegion. It lies far below the kernel image and the physical
	// memory window set up by the bootloader.
	KernelHeapStart = uintptr(0x444444440000)

	// KernelHeapSize is the size of the address space region available
	// to ReserveRegion.
	KernelHeapSize = uintptr(64 * mm.Gb)
)

var (
	// nextReserveAddr is the start of the next region returned by
	// ReserveRegion.
	nextReserveAddr = KernelHeapStart

	errReserveNoSpace = &kernel.Error{Module: "vmm", Message: "remaining virtual address space not large enough to satisfy reservation request"}
)

// ReserveRegion reserves a page-aligned contiguous virtual memory region
// with the requested size in the kernel heap area and returns its virtual
// address. If size is not a multiple of mm.PageSize it will be automatically
// rounded up. Reserved regions are not mapped and cannot be released.
func ReserveRegion(size uintptr) (uintptr, *kernel.Error) {
	size = (size + (mm.PageSize - 1)) & ^(mm.PageSize - 1)

	if size > KernelHeapStart+KernelHeapSize-nextReserveAddr {
		return 0, errReserveNoSpace
	}

	regionStart := nextReserveAddr
	nextReserveAddr += size
	return regionStart, nil
}
