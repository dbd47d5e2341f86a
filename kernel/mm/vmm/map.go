package vmm

import (
	"minikern/kernel"
	"minikern/kernel/mm"
)

// Map establishes a mapping between a virtual page and a physical memory frame
// using the currently active page directory table. Missing page tables are
// allocated via mm.AllocFrame, cleared and linked in with FlagPresent|FlagRW.
//
// Map returns ErrPageAlreadyMapped without modifying anything if page already
// maps a frame. If the frame allocator fails, its error is returned and any
// tables allocated so far stay in place. The TLB is not flushed; callers
// must invoke FlushTLBEntry before using the new mapping. Like Translate, Map
// panics if page is covered by a huge page.
func Map(page mm.Page, frame mm.Frame, flags PageTableEntryFlag) *kernel.Error {
	var err *kernel.Error

	walk(page.Address(), func(pteLevel uint8, pte *pageTableEntry) bool {
		// If we reached the last level all we need to do is to map the
		// frame in place
		if pteLevel == pageLevels-1 {
			if pte.HasFlags(FlagPresent) {
				err = ErrPageAlreadyMapped
				return false
			}

			*pte = 0
			pte.SetFrame(frame)
			pte.SetFlags(FlagPresent | flags)
			return true
		}

		if pte.HasFlags(FlagHugePage) {
			panic(errNoHugePageSupport)
		}

		// Next table does not yet exist; we need to allocate a
		// physical frame for it and clear its contents.
		if !pte.HasFlags(FlagPresent) {
			var newTableFrame mm.Frame
			newTableFrame, err = mm.AllocFrame()
			if err != nil {
				return false
			}

			kernel.Memset(PhysToVirt(newTableFrame.Address()), 0, mm.PageSize)

			*pte = 0
			pte.SetFrame(newTableFrame)
			pte.SetFlags(FlagPresent | FlagRW)
		}

		return true
	})

	return err
}

// Unmap removes a mapping previously installed via a call to Map and flushes
// the TLB entry for page. Page tables left empty are not reclaimed. Unmap
// panics if page is covered by a huge page.
func Unmap(page mm.Page) *kernel.Error {
	var err *kernel.Error

	walk(page.Address(), func(pteLevel uint8, pte *pageTableEntry) bool {
		if !pte.HasFlags(FlagPresent) {
			err = ErrInvalidMapping
			return false
		}

		// If we reached the last level all we need to do is to set the
		// page as non-present and flush its TLB entry
		if pteLevel == pageLevels-1 {
			pte.ClearFlags(FlagPresent)
			FlushTLBEntry(page)
			return true
		}

		if pte.HasFlags(FlagHugePage) {
			panic(errNoHugePageSupport)
		}

		return true
	})

	return err
}
