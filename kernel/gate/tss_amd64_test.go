package gate

import (
	"encoding/binary"
	"testing"
	"unsafe"
)

func TestInstallTSS(t *testing.T) {
	defer func(origLoadGDT func(uintptr, uint16), origLoadTR func(uint16)) {
		loadGDTFn = origLoadGDT
		loadTRFn = origLoadTR
	}(loadGDTFn, loadTRFn)

	var (
		gdtBase    uintptr
		gdtLimit   uint16
		trSelector uint16
	)
	loadGDTFn = func(base uintptr, limit uint16) { gdtBase, gdtLimit = base, limit }
	loadTRFn = func(selector uint16) { trSelector = selector }

	installTSS()

	if exp := uintptr(unsafe.Pointer(&gdt[0])); gdtBase != exp {
		t.Errorf("expected lgdt base to be 0x%x; got 0x%x", exp, gdtBase)
	}

	if exp := uint16(len(gdt)*8 - 1); gdtLimit != exp {
		t.Errorf("expected lgdt limit to be %d; got %d", exp, gdtLimit)
	}

	if trSelector != tssSelector {
		t.Errorf("expected task register to be loaded with 0x%x; got 0x%x", tssSelector, trSelector)
	}

	stackStart := uint64(uintptr(unsafe.Pointer(&doubleFaultStack[0])))
	stackTop := binary.LittleEndian.Uint64(tss[tssIST1Offset:])
	if stackTop&15 != 0 || stackTop <= stackStart || stackTop > stackStart+doubleFaultStackSize || stackTop < stackStart+doubleFaultStackSize-15 {
		t.Errorf("expected IST1 to point to the 16-byte aligned top of the double fault stack; got 0x%x (stack at 0x%x)", stackTop, stackStart)
	}

	if got := binary.LittleEndian.Uint16(tss[tssIOMapBaseOffset:]); got != tssSize {
		t.Errorf("expected I/O map base to be %d; got %d", tssSize, got)
	}

	if gdt[0] != 0 || gdt[1] != kernelCodeDescriptor || gdt[2] != kernelDataDescriptor {
		t.Errorf("unexpected null/code/data descriptors: %x", gdt[:3])
	}

	// decode the TSS descriptor
	low, high := gdt[3], gdt[4]
	base := (low>>16)&0xffffff | ((low>>56)&0xff)<<24 | high<<32
	limit := low&0xffff | ((low>>48)&0xf)<<16

	if exp := uint64(uintptr(unsafe.Pointer(&tss[0]))); base != exp {
		t.Errorf("expected TSS descriptor base to be 0x%x; got 0x%x", exp, base)
	}

	if limit != tssSize-1 {
		t.Errorf("expected TSS descriptor limit to be %d; got %d", tssSize-1, limit)
	}

	if typ := (low >> 40) & 0xff; typ != tssDescriptorType {
		t.Errorf("expected TSS descriptor type 0x%x; got 0x%x", tssDescriptorType, typ)
	}
}

func TestTSSDescriptor(t *testing.T) {
	low, high := tssDescriptor(0xffff800012345678, 0x1ffff)

	if exp := uint64(0x12018934_5678ffff); low != exp {
		t.Errorf("expected low descriptor half to be 0x%x; got 0x%x", exp, low)
	}

	if exp := uint64(0xffff8000); high != exp {
		t.Errorf("expected high descriptor half to be 0x%x; got 0x%x", exp, high)
	}
}
