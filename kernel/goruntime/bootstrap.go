// Package goruntime contains code for bootstrapping Go runtime features such
// as the memory allocator.
package goruntime

import (
	"minikern/kernel"
	"minikern/kernel/mm"
	"minikern/kernel/mm/vmm"
	"unsafe"
)

var (
	mapFn           = vmm.Map
	reserveRegionFn = vmm.ReserveRegion
	flushTLBEntryFn = vmm.FlushTLBEntry
	physToVirtFn    = vmm.PhysToVirt
	frameAllocFn    = mm.AllocFrame
	memsetFn        = kernel.Memset
	mallocInitFn    = mallocInit
	algInitFn       = algInit
	modulesInitFn   = modulesInit
	typeLinksInitFn = typeLinksInit
	itabsInitFn     = itabsInit
	initPackagesFn  = initPackages

	// A seed for the pseudo-random number generator used by getRandomData
	prngSeed = 0xdeadc0de

	// clockTicks backs the dummy nanotime implementation.
	clockTicks int64
)

//go:linkname algInit runtime.alginit
func algInit()

//go:linkname modulesInit runtime.modulesinit
func modulesInit()

//go:linkname typeLinksInit runtime.typelinksinit
func typeLinksInit()

//go:linkname itabsInit runtime.itabsinit
func itabsInit()

//go:linkname mallocInit runtime.mallocinit
func mallocInit()

//go:linkname mSysStatInc runtime.mSysStatInc
func mSysStatInc(*uint64, uintptr)

//go:linkname doInit runtime.doInit
func doInit(task uintptr)

// initTaskDone is the state of a runtime init task whose initializers have
// already run.
const initTaskDone = 2

// mainInitTask returns the address of the init task of the main package. Its
// dependency list covers the init tasks of every package linked into the
// kernel image.
func mainInitTask() uintptr

// runtimeInitTask returns the address of the init task of the runtime
// package.
func runtimeInitTask() uintptr

// initPackages runs the variable initializers and init() functions of all
// packages linked into the kernel image except for the runtime package.
func initPackages() {
	// The runtime init functions start the background GC goroutines which
	// cannot run without a scheduler.
	*(*uintptr)(unsafe.Pointer(runtimeInitTask())) = initTaskDone

	doInit(mainInitTask())
}

// sysReserve reserves address space without allocating any memory or
// establishing any page mappings.
//
// This function replaces runtime.sysReserve and is required for initializing
// the Go allocator.
//
//go:redirect-from runtime.sysReserve
//go:nosplit
func sysReserve(_ unsafe.Pointer, size uintptr) unsafe.Pointer {
	regionStartAddr, err := reserveRegionFn(size)
	if err != nil {
		panic(err)
	}

	return unsafe.Pointer(regionStartAddr)
}

// sysMap backs a memory region that has been reserved previously via a call
// to sysReserve with zeroed physical frames.
//
// This function replaces runtime.sysMap and is required for initializing
// the Go allocator.
//
//go:redirect-from runtime.sysMap
//go:nosplit
func sysMap(virtAddr unsafe.Pointer, size uintptr, sysStat *uint64) {
	// We trust the allocator to call sysMap with an address inside a reserved region.
	regionStartAddr := (uintptr(virtAddr) + mm.PageSize - 1) & ^(mm.PageSize - 1)
	regionSize := (size + mm.PageSize - 1) & ^(mm.PageSize - 1)

	if err := mapZeroedFrames(regionStartAddr, regionSize, vmm.FlagPresent|vmm.FlagNoExecute|vmm.FlagRW); err != nil {
		panic(err)
	}

	mSysStatInc(sysStat, regionSize)
}

// sysAlloc reserves enough physical frames to satisfy the allocation request
// and establishes a contiguous virtual page mapping for them returning back
// the pointer to the virtual region start.
//
// This function replaces runtime.sysAlloc and is required for initializing the
// Go allocator.
//
//go:redirect-from runtime.sysAlloc
//go:nosplit
func sysAlloc(size uintptr, sysStat *uint64) unsafe.Pointer {
	regionSize := (size + mm.PageSize - 1) & ^(mm.PageSize - 1)
	regionStartAddr, err := reserveRegionFn(regionSize)
	if err != nil {
		return unsafe.Pointer(uintptr(0))
	}

	if err = mapZeroedFrames(regionStartAddr, regionSize, vmm.FlagPresent|vmm.FlagNoExecute|vmm.FlagRW); err != nil {
		return unsafe.Pointer(uintptr(0))
	}

	mSysStatInc(sysStat, regionSize)
	return unsafe.Pointer(regionStartAddr)
}

// mapZeroedFrames maps each page in [regionStartAddr, regionStartAddr+regionSize)
// to a newly allocated and cleared frame.
//go:nosplit
func mapZeroedFrames(regionStartAddr, regionSize uintptr, flags vmm.PageTableEntryFlag) *kernel.Error {
	pageCount := regionSize >> mm.PageShift
	for page := mm.PageFromAddress(regionStartAddr); pageCount > 0; pageCount, page = pageCount-1, page+1 {
		frame, err := frameAllocFn()
		if err != nil {
			return err
		}

		// Clear the frame through the physical memory window as the
		// page is not accessible until the TLB entry is flushed.
		memsetFn(physToVirtFn(frame.Address()), 0, mm.PageSize)

		if err = mapFn(page, frame, flags); err != nil {
			return err
		}
		flushTLBEntryFn(page)
	}

	return nil
}

// nanotime returns a monotonically increasing clock value. This is a dummy
// implementation that only guarantees that consecutive calls return
// increasing values.
//
// This function replaces runtime.nanotime1 and is invoked by the Go allocator
// when a span allocation is performed.
//
//go:redirect-from runtime.nanotime1
//go:nosplit
func nanotime() int64 {
	clockTicks++
	return clockTicks
}

// getRandomData populates the given slice with random data. The implementation
// is the runtime package reads a random stream from /dev/random but since this
// is not available, we use a prng instead.
//
//go:redirect-from runtime.getRandomData
func getRandomData(r []byte) {
	for i := 0; i < len(r); i++ {
		prngSeed = (prngSeed * 58321) + 11113
		r[i] = byte((prngSeed >> 16) & 255)
	}
}

// Init enables support for various Go runtime features. After a call to init
// the following runtime features become available for use:
//  - heap memory allocation (new, make e.t.c)
//  - map primitives
//  - interfaces
//  - package init() functions (e.g. driver registration)
//
// Init must be called after the physical and virtual memory managers have
// been initialized.
func Init() *kernel.Error {
	mallocInitFn()
	algInitFn()       // setup hash implementation for map keys
	modulesInitFn()   // provides activeModules
	typeLinksInitFn() // uses maps, activeModules
	itabsInitFn()     // uses activeModules
	initPackagesFn()  // uses the allocator, maps and interfaces

	return nil
}

func init() {
	// Dummy calls so the compiler does not optimize away the functions in
	// this file.
	var (
		stat    uint64
		zeroPtr = unsafe.Pointer(uintptr(0))
	)

	sysReserve(zeroPtr, 0)
	sysMap(zeroPtr, 0, &stat)
	sysAlloc(0, &stat)
	getRandomData(nil)
	stat = uint64(nanotime())
}
