// Package vmm translates and maps virtual addresses using the active 4-level
// page table hierarchy. Page tables are accessed through a window in which
// the entire physical memory is mapped at a fixed virtual offset.
package vmm

import (
	"minikern/kernel"
	"minikern/kernel/cpu"
	"minikern/kernel/mm"
)

var (
	// physOffset is the virtual address at which physical address 0 is
	// mapped.
	physOffset    uintptr
	physOffsetSet bool

	// activePDTFn and flushTLBEntryFn are used by tests to override calls
	// that will cause a fault if called in user-mode.
	activePDTFn     = cpu.ActivePDT
	flushTLBEntryFn = cpu.FlushTLBEntry

	// ErrInvalidMapping is returned when trying to lookup a virtual memory address that is not yet mapped.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}

	// ErrPageAlreadyMapped is returned by Map when the page is already
	// mapped to a frame.
	ErrPageAlreadyMapped = &kernel.Error{Module: "vmm", Message: "page is already mapped"}

	errNoHugePageSupport    = &kernel.Error{Module: "vmm", Message: "huge pages are not supported"}
	errPhysOffsetAlreadySet = &kernel.Error{Module: "vmm", Message: "physical memory offset already set"}
	errNoPhysOffset         = &kernel.Error{Module: "vmm", Message: "physical memory offset not set"}
)

// Init records the virtual address at which the bootloader mapped the
// complete physical memory. It must be called exactly once before any other
// function in this package.
func Init(offset uintptr) *kernel.Error {
	if physOffsetSet {
		return errPhysOffsetAlreadySet
	}

	physOffset, physOffsetSet = offset, true
	return nil
}

// PhysToVirt returns the virtual address through which the supplied physical
// address can be accessed.
func PhysToVirt(physAddr uintptr) uintptr {
	if !physOffsetSet {
		panic(errNoPhysOffset)
	}

	return physOffset + physAddr
}

// FlushTLBEntry invalidates any cached translation for page. It must be
// called after Map or Unmap before the new mapping is relied upon.
func FlushTLBEntry(page mm.Page) {
	flushTLBEntryFn(page.Address())
}
