package kernel

import (
	"testing"
	"unsafe"
)

func TestMemset(t *testing.T) {
	// memset with a 0 size should be a no-op
	Memset(uintptr(0), 0x00, 0)

	for pageCount := uint32(1); pageCount <= 10; pageCount++ {
		buf := make([]byte, 4096*pageCount)
		for i := 0; i < len(buf); i++ {
			buf[i] = 0xFE
		}

		addr := uintptr(unsafe.Pointer(&buf[0]))
		Memset(addr, 0x00, uintptr(len(buf)))

		for i := 0; i < len(buf); i++ {
			if got := buf[i]; got != 0x00 {
				t.Errorf("[block with %d pages] expected byte: %d to be 0x00; got 0x%x", pageCount, i, got)
			}
		}
	}
}

func TestMemsetOddSize(t *testing.T) {
	buf := make([]byte, 37)
	Memset(uintptr(unsafe.Pointer(&buf[0])), 0xAB, 33)

	for i := 0; i < 33; i++ {
		if buf[i] != 0xAB {
			t.Fatalf("expected byte %d to be 0xab; got 0x%x", i, buf[i])
		}
	}
	for i := 33; i < len(buf); i++ {
		if buf[i] != 0 {
			t.Fatalf("expected byte %d past the memset range to be untouched; got 0x%x", i, buf[i])
		}
	}
}
