package vmm

import (
	"minikern/kernel"
	"unsafe"
)

// pageTableWalker is a function that can be passed to the walk method. The
// function receives the current page level and page table entry as its
// arguments. If the function returns false, then the page walk is aborted.
type pageTableWalker func(pteLevel uint8, pte *pageTableEntry) bool

// walk performs a page table walk for the given virtual address starting at
// the page directory table loaded in CR3. It calls the supplied walkFn with
// the page table entry that corresponds to each page table level. Page tables
// are reached through the physical memory window set up by Init so walkFn
// must ensure that an entry points to a valid table before returning true.
func walk(virtAddr uintptr, walkFn pageTableWalker) {
	var (
		level                 uint8
		tableAddr, entryIndex uintptr
		pte                   *pageTableEntry
	)

	for level, tableAddr = uint8(0), PhysToVirt(activePDTFn()&ptePhysPageMask); level < pageLevels; level++ {
		// Extract the bits from virtual address that correspond to the
		// index in this level's page table
		entryIndex = (virtAddr >> pageLevelShifts[level]) & ((1 << pageLevelBits[level]) - 1)
		pte = (*pageTableEntry)(unsafe.Pointer(tableAddr + (entryIndex << 3)))

		if !walkFn(level, pte) {
			return
		}

		tableAddr = PhysToVirt(pte.Frame().Address())
	}
}

// pteForAddress returns the final page table entry that corresponds to a
// particular virtual address. It returns ErrInvalidMapping if any of the
// traversed entries is not present.
func pteForAddress(virtAddr uintptr) (*pageTableEntry, *kernel.Error) {
	var (
		err   *kernel.Error
		entry *pageTableEntry
	)

	walk(virtAddr, func(pteLevel uint8, pte *pageTableEntry) bool {
		if !pte.HasFlags(FlagPresent) {
			entry = nil
			err = ErrInvalidMapping
			return false
		}

		if pteLevel < pageLevels-1 && pte.HasFlags(FlagHugePage) {
			panic(errNoHugePageSupport)
		}

		entry = pte
		return true
	})

	return entry, err
}
