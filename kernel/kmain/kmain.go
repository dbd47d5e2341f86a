package kmain

import (
	_ "minikern/device/serial"
	"minikern/device/video/vgatext"
	"minikern/kernel"
	"minikern/kernel/cpu"
	"minikern/kernel/goruntime"
	"minikern/kernel/hal"
	"minikern/kernel/hal/multiboot"
	"minikern/kernel/irq"
	"minikern/kernel/kfmt"
	"minikern/kernel/mm"
	"minikern/kernel/mm/pmm"
	"minikern/kernel/mm/vmm"
	"unsafe"
)

// newText holds the characters "New!" as white on red VGA text cells.
const newText = uint64(0xf021f077f065f04e)

var (
	// exampleVirtAddr is the page that mapExample points at the VGA
	// text buffer.
	exampleVirtAddr = uintptr(0xdeadbeaf000)

	mapFn           = vmm.Map
	flushTLBEntryFn = vmm.FlushTLBEntry
	translateFn     = vmm.Translate
	physToVirtFn    = vmm.PhysToVirt
)

// Kmain is the only Go symbol that is visible (exported) from the rt0 initialization
// code. This function is invoked by the rt0 assembly code after setting up the GDT
// and setting up a a minimal g0 struct that allows Go code using the 4K stack
// allocated by the assembly code.
//
// The rt0 code passes the address of the multiboot info payload provided by the
// bootloader, the physical addresses for the kernel start/end and the virtual
// address at which all of physical memory is mapped.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the CPU.
//
//go:noinline
func Kmain(multibootInfoPtr, kernelStart, kernelEnd, physOffset uintptr) {
	multiboot.SetInfoPtr(multibootInfoPtr)

	var err *kernel.Error
	if err = vmm.Init(physOffset); err != nil {
		panic(err)
	} else if err = pmm.Init(kernelStart, kernelEnd); err != nil {
		panic(err)
	} else if err = goruntime.Init(); err != nil {
		panic(err)
	}

	hal.DetectHardware()

	if err = irq.Init(); err != nil {
		panic(err)
	}
	cpu.EnableInterrupts()

	// The breakpoint handler returns and execution continues below.
	cpu.Breakpoint()

	if err = mapExample(); err != nil {
		panic(err)
	}

	kfmt.Printf("It did not crash!\n")
	for {
		cpu.WaitForInterrupt()
	}
}

// mapExample maps exampleVirtAddr to the VGA text buffer, writes to the
// screen through the new mapping and logs the translation of a few
// addresses.
func mapExample() *kernel.Error {
	page := mm.PageFromAddress(exampleVirtAddr)
	if err := mapFn(page, mm.FrameFromAddress(vgatext.FramebufferPhysAddr), vmm.FlagRW); err != nil {
		return err
	}
	flushTLBEntryFn(page)

	*(*uint64)(unsafe.Pointer(page.Address() + 400)) = newText

	for _, virtAddr := range [...]uintptr{
		physToVirtFn(vgatext.FramebufferPhysAddr),
		page.Address() + 400,
		0x100_0020_1a10,
	} {
		physAddr, err := translateFn(virtAddr)
		if err != nil {
			kfmt.Printf("0x%x -> %s\n", virtAddr, err.Message)
			continue
		}
		kfmt.Printf("0x%x -> 0x%x\n", virtAddr, physAddr)
	}

	return nil
}
