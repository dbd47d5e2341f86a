// Package vgatext implements a scrolling text writer on top of the 80x25 VGA
// text mode framebuffer.
package vgatext

import (
	"io"
	"minikern/device"
	"minikern/kernel"
	"minikern/kernel/kfmt"
	"minikern/kernel/mm/vmm"
	"reflect"
	"unsafe"
)

const (
	// FramebufferPhysAddr is the physical address of the text mode
	// framebuffer.
	FramebufferPhysAddr = 0xb8000

	// Columns and Rows describe the dimensions of the text mode screen.
	Columns = 80
	Rows    = 25

	// AttrLightGrayOnBlack is the attribute byte used for all output.
	AttrLightGrayOnBlack = 0x07

	// unprintableChar is the glyph (a small square) shown for bytes
	// outside the printable ASCII range.
	unprintableChar = 0xfe
)

var (
	// physToVirtFn is used by tests to redirect the framebuffer to a
	// buffer in regular memory.
	physToVirtFn = vmm.PhysToVirt
)

// Writer prints text to the VGA text mode framebuffer. Text is always added
// to the bottom row; starting a new line scrolls the screen up by one row.
// Lines longer than Columns wrap around. Bytes outside the printable ASCII
// range (apart from '\n') are shown as a small square.
//
// Writer is not safe for concurrent use.
type Writer struct {
	fb     []uint16
	column uint32
	attr   uint16
}

// NewWriter returns a Writer that uses light gray text on black background.
// The writer must be initialized via DriverInit before use.
func NewWriter() *Writer {
	return &Writer{attr: AttrLightGrayOnBlack}
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	for _, b := range p {
		w.writeByte(b)
	}

	return len(p), nil
}

func (w *Writer) writeByte(b byte) {
	if b == '\n' {
		w.newLine()
		return
	}

	if b < 0x20 || b > 0x7e {
		b = unprintableChar
	}

	if w.column >= Columns {
		w.newLine()
	}

	w.fb[(Rows-1)*Columns+w.column] = w.attr<<8 | uint16(b)
	w.column++
}

// newLine scrolls all rows up by one and clears the bottom row.
func (w *Writer) newLine() {
	copy(w.fb[:(Rows-1)*Columns], w.fb[Columns:])
	w.clearRow(Rows - 1)
	w.column = 0
}

func (w *Writer) clearRow(row uint32) {
	blank := w.attr<<8 | ' '
	for i := row * Columns; i < (row+1)*Columns; i++ {
		w.fb[i] = blank
	}
}

// Clear blanks the screen and moves the cursor to the start of the bottom
// row.
func (w *Writer) Clear() {
	for row := uint32(0); row < Rows; row++ {
		w.clearRow(row)
	}
	w.column = 0
}

// DriverName returns the name of this driver.
func (w *Writer) DriverName() string {
	return "vga_text"
}

// DriverVersion returns the version of this driver.
func (w *Writer) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit locates the framebuffer through the physical memory window and
// clears the screen.
func (w *Writer) DriverInit(logger io.Writer) *kernel.Error {
	fbAddr := physToVirtFn(FramebufferPhysAddr)
	w.fb = *(*[]uint16)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  Columns * Rows,
		Cap:  Columns * Rows,
		Data: fbAddr,
	}))
	w.Clear()

	kfmt.Fprintf(logger, "framebuffer at 0x%x\n", fbAddr)
	return nil
}

func probeForVgaText() device.Driver {
	return NewWriter()
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderEarly,
		Probe: probeForVgaText,
	})
}
