package mm

import (
	"minikern/kernel"
	"testing"
)

func TestFrameMethods(t *testing.T) {
	for frameIndex := uint64(0); frameIndex < 128; frameIndex++ {
		frame := Frame(frameIndex)

		if !frame.Valid() {
			t.Errorf("expected frame %d to be valid", frameIndex)
		}

		if exp, got := uintptr(frameIndex<<PageShift), frame.Address(); got != exp {
			t.Errorf("expected frame (%d, index: %d) call to Address() to return %x; got %x", frame, frameIndex, exp, got)
		}
	}

	invalidFrame := InvalidFrame
	if invalidFrame.Valid() {
		t.Error("expected InvalidFrame.Valid() to return false")
	}
}

func TestFrameFromAddress(t *testing.T) {
	specs := []struct {
		input    uintptr
		expFrame Frame
	}{
		{0, Frame(0)},
		{4095, Frame(0)},
		{4096, Frame(1)},
		{4123, Frame(1)},
		{0xb8000, Frame(0xb8)},
	}

	for specIndex, spec := range specs {
		if got := FrameFromAddress(spec.input); got != spec.expFrame {
			t.Errorf("[spec %d] expected returned frame to be %v; got %v", specIndex, spec.expFrame, got)
		}
	}
}

func TestFrameAllocator(t *testing.T) {
	defer SetFrameAllocator(nil)

	t.Run("no allocator registered", func(t *testing.T) {
		SetFrameAllocator(nil)
		if frame, err := AllocFrame(); err != errNoFrameAllocator || frame.Valid() {
			t.Fatalf("expected (InvalidFrame, errNoFrameAllocator); got (%d, %v)", frame, err)
		}
	})

	t.Run("custom allocator", func(t *testing.T) {
		var allocCalled bool
		SetFrameAllocator(func() (Frame, *kernel.Error) {
			allocCalled = true
			return FrameFromAddress(0xbadf00), nil
		})

		frame, err := AllocFrame()
		if err != nil {
			t.Fatal(err)
		}

		if !allocCalled {
			t.Fatal("expected custom allocator to be invoked after a call to AllocFrame")
		}

		if exp := FrameFromAddress(0xbadf00); frame != exp {
			t.Fatalf("expected frame %d; got %d", exp, frame)
		}
	})
}

func TestPageMethods(t *testing.T) {
	for pageIndex := uint64(0); pageIndex < 128; pageIndex++ {
		page := Page(pageIndex)

		if exp, got := uintptr(pageIndex<<PageShift), page.Address(); got != exp {
			t.Errorf("expected page (%d, index: %d) call to Address() to return %x; got %x", page, pageIndex, exp, got)
		}
	}
}

func TestPageFromAddress(t *testing.T) {
	specs := []struct {
		input   uintptr
		expPage Page
	}{
		{0, Page(0)},
		{4095, Page(0)},
		{4096, Page(1)},
		{4123, Page(1)},
		{0xdeadbeaf123, Page(0xdeadbeaf)},
	}

	for specIndex, spec := range specs {
		if got := PageFromAddress(spec.input); got != spec.expPage {
			t.Errorf("[spec %d] expected returned page to be %v; got %v", specIndex, spec.expPage, got)
		}
	}
}

func TestSizeUnits(t *testing.T) {
	if got := Size(PageSize); got != 4*Kb {
		t.Fatalf("expected PageSize to be 4Kb; got %d", got)
	}
	if Kb != 1024 {
		t.Fatalf("expected Kb to be 1024 bytes; got %d", Kb)
	}
	if Gb != 1024*Mb || Mb != 1024*Kb {
		t.Fatal("unexpected Size unit relationship")
	}
}
