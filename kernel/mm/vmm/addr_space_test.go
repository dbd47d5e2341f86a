package vmm

import (
	"minikern/kernel/mm"
	"testing"
)

func TestReserveRegion(t *testing.T) {
	defer func(origNext uintptr) {
		nextReserveAddr = origNext
	}(nextReserveAddr)
	nextReserveAddr = KernelHeapStart

	specs := []struct {
		size    uintptr
		expAddr uintptr
	}{
		{mm.PageSize, KernelHeapStart},
		// rounded up to a page multiple
		{1, KernelHeapStart + mm.PageSize},
		{3*mm.PageSize + 1, KernelHeapStart + 2*mm.PageSize},
		{0, KernelHeapStart + 6*mm.PageSize},
		{mm.PageSize, KernelHeapStart + 6*mm.PageSize},
	}

	for specIndex, spec := range specs {
		addr, err := ReserveRegion(spec.size)
		if err != nil {
			t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
			continue
		}

		if addr != spec.expAddr {
			t.Errorf("[spec %d] expected region at 0x%x; got 0x%x", specIndex, spec.expAddr, addr)
		}
	}

	// the remaining space is exactly enough for one more region
	remaining := KernelHeapStart + KernelHeapSize - nextReserveAddr
	if _, err := ReserveRegion(remaining + 1); err != errReserveNoSpace {
		t.Fatalf("expected errReserveNoSpace; got %v", err)
	}

	if _, err := ReserveRegion(remaining); err != nil {
		t.Fatal(err)
	}

	if _, err := ReserveRegion(1); err != errReserveNoSpace {
		t.Fatalf("expected errReserveNoSpace once the heap area is exhausted; got %v", err)
	}
}
