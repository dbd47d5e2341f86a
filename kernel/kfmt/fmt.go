// Package kfmt implements the kernel's allocation-free formatted output.
package kfmt

import (
	"io"
	"minikern/kernel/sync"
	"unicode/utf8"
	"unsafe"
)

// maxBufSize defines the buffer size for formatting numbers.
const maxBufSize = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")
	digits          = []byte("0123456789abcdef")

	// numFmtBuf holds the rendered digits of a number. Numbers are written
	// right-aligned so the used part is always numFmtBuf[start:].
	numFmtBuf [maxBufSize + 1]byte

	// runeBuf holds the UTF-8 encoding of a %c argument.
	runeBuf [utf8.UTFMax]byte

	// singleByte is used as a shared buffer for passing single characters
	// to doWrite.
	singleByte = []byte(" ")

	// earlyPrintBuffer is a ring buffer that stores Printf output before
	// any output device is initialized.
	earlyPrintBuffer ringBuffer

	// outputSink is a io.Writer where Printf will send its output. If set
	// to nil, then the output will be redirected to the earlyPrintBuffer.
	outputSink io.Writer

	// outputLock serializes access to outputSink and the shared formatting
	// buffers. Interrupt handlers print too so it masks interrupts.
	outputLock sync.IRQSpinlock
)

// SetOutputSink sets the default target for calls to Printf to w and copies
// any data accumulated in the earlyPrintBuffer to it.
func SetOutputSink(w io.Writer) {
	outputLock.Acquire()
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyPrintBuffer)
	}
	outputLock.Release()
}

// GetOutputSink returns the currently active output sink.
func GetOutputSink() io.Writer {
	return outputSink
}

// SinkWriter is an io.Writer that forwards writes to whatever output sink is
// active at the time of the write. Before a sink is set, data goes to the
// early print buffer.
//
// Fprintf(SinkWriter{}, ...) behaves like Printf. Writers that wrap a
// SinkWriter, such as PrefixWriter, only lock each individual write so the
// formatting buffers are not protected; they must not be used while
// interrupt handlers may print.
type SinkWriter struct{}

// Write implements io.Writer.
func (SinkWriter) Write(p []byte) (int, error) {
	outputLock.Acquire()
	doWrite(outputSink, p)
	outputLock.Release()
	return len(p), nil
}

// Printf provides a minimal Printf implementation that can be safely used
// before the Go runtime has been properly initialized. This implementation
// does not allocate any memory.
//
// Similar to fmt.Printf, this version of printf supports the following subset
// of formatting verbs:
//
// Strings:
//		%s the uninterpreted bytes of the string or byte slice
//		%c the character represented by a byte or rune
//
// Integers:
//		%o base 8
//		%d base 10
//		%x base 16, with lower-case letters for a-f
//
// Booleans:
//		%t "true" or "false"
//
// Width is specified by an optional decimal number immediately preceding the
// verb. Strings and base-10 integers are left-padded with spaces; base-8 and
// base-16 integers are left-padded with zeroes.
//
// Printf does not support %v or %p: both require reflection which makes the
// compiler box every argument through runtime.convT2E and allocate.
//
// Printf may be called by interrupt handlers. The sink is written with
// interrupts masked so a handler can never interleave its output with a
// half-written mainline message.
func Printf(format string, args ...interface{}) {
	outputLock.Acquire()
	fprintf(outputSink, format, args...)
	outputLock.Release()
}

// Fprintf behaves exactly like Printf but it writes the formatted output to
// the specified io.Writer. Fprintf only locks when w is a SinkWriter; callers
// sharing any other w with an interrupt handler must serialize access
// themselves.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	if _, isSink := w.(SinkWriter); isSink {
		Printf(format, args...)
		return
	}

	fprintf(w, format, args...)
}

func fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		argIndex int
		width    int
		verb     byte
	)

	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			// passing format[i:j] to doWrite triggers a memory allocation
			// so the literal text is written one byte at a time.
			writeByte(w, format[i])
			continue
		}

		width = 0
		for i++; i < len(format) && format[i] >= '0' && format[i] <= '9'; i++ {
			width = width*10 + int(format[i]-'0')
		}

		if i == len(format) {
			doWrite(w, errNoVerb)
			break
		}

		switch verb = format[i]; verb {
		case '%':
			writeByte(w, '%')
			continue
		case 'd', 'o', 'x', 's', 't', 'c':
		default:
			doWrite(w, errNoVerb)
			continue
		}

		if argIndex >= len(args) {
			doWrite(w, errMissingArg)
			continue
		}

		switch verb {
		case 'o':
			fmtInt(w, args[argIndex], 8, width)
		case 'd':
			fmtInt(w, args[argIndex], 10, width)
		case 'x':
			fmtInt(w, args[argIndex], 16, width)
		case 's':
			fmtString(w, args[argIndex], width)
		case 't':
			fmtBool(w, args[argIndex])
		case 'c':
			fmtChar(w, args[argIndex])
		}
		argIndex++
	}

	for ; argIndex < len(args); argIndex++ {
		doWrite(w, errExtraArg)
	}
}

// fmtBool prints a formatted version of boolean value v.
func fmtBool(w io.Writer, v interface{}) {
	bVal, ok := v.(bool)
	switch {
	case !ok:
		doWrite(w, errWrongArgType)
	case bVal:
		doWrite(w, trueValue)
	default:
		doWrite(w, falseValue)
	}
}

// fmtChar prints the UTF-8 encoding of a byte or rune value v.
func fmtChar(w io.Writer, v interface{}) {
	switch castedVal := v.(type) {
	case uint8:
		writeByte(w, castedVal)
	case rune:
		n := utf8.EncodeRune(runeBuf[:], castedVal)
		doWrite(w, runeBuf[:n])
	default:
		doWrite(w, errWrongArgType)
	}
}

// fmtString prints a formatted version of string or []byte value v, applying
// the padding specified by width.
func fmtString(w io.Writer, v interface{}, width int) {
	switch castedVal := v.(type) {
	case string:
		fmtRepeat(w, ' ', width-len(castedVal))
		for i := 0; i < len(castedVal); i++ {
			writeByte(w, castedVal[i])
		}
	case []byte:
		fmtRepeat(w, ' ', width-len(castedVal))
		doWrite(w, castedVal)
	default:
		doWrite(w, errWrongArgType)
	}
}

// fmtRepeat writes count bytes with value ch.
func fmtRepeat(w io.Writer, ch byte, count int) {
	for ; count > 0; count-- {
		writeByte(w, ch)
	}
}

// fmtInt prints out a formatted version of v in the requested base, applying
// the padding specified by width. Negative base-10 values keep their sign
// next to the digits ("  -42"); negative zero-padded values get the sign in
// front of the padding ("-0002a").
func fmtInt(w io.Writer, v interface{}, base uint64, width int) {
	var (
		uval uint64
		sval int64
	)

	switch castedVal := v.(type) {
	case uint8:
		uval = uint64(castedVal)
	case uint16:
		uval = uint64(castedVal)
	case uint32:
		uval = uint64(castedVal)
	case uint64:
		uval = castedVal
	case uint:
		uval = uint64(castedVal)
	case uintptr:
		uval = uint64(castedVal)
	case int8:
		sval = int64(castedVal)
	case int16:
		sval = int64(castedVal)
	case int32:
		sval = int64(castedVal)
	case int64:
		sval = castedVal
	case int:
		sval = int64(castedVal)
	default:
		doWrite(w, errWrongArgType)
		return
	}

	negative := sval < 0
	switch {
	case negative:
		uval = uint64(-sval)
	case sval > 0:
		uval = uint64(sval)
	}

	if width >= maxBufSize {
		width = maxBufSize - 1
	}

	padCh := byte('0')
	if base == 10 {
		padCh = ' '
	}

	start := len(numFmtBuf)
	for {
		start--
		numFmtBuf[start] = digits[uval%base]
		if uval /= base; uval == 0 {
			break
		}
	}

	if negative && padCh == ' ' {
		start--
		numFmtBuf[start] = '-'
	}

	for len(numFmtBuf)-start < width {
		start--
		numFmtBuf[start] = padCh
	}

	if negative && padCh == '0' {
		start--
		numFmtBuf[start] = '-'
	}

	doWrite(w, numFmtBuf[start:])
}

func writeByte(w io.Writer, b byte) {
	singleByte[0] = b
	doWrite(w, singleByte)
}

// doWrite is a proxy that uses the runtime.noescape hack to hide p from the
// compiler's escape analysis. The writer is an interface value so the
// compiler cannot prove that p does not escape through w.Write; flagging it
// as escaping makes every Printf call allocate, which crashes the kernel if
// it happens before the Go allocator is available.
func doWrite(w io.Writer, p []byte) {
	doRealWrite(w, noEscape(unsafe.Pointer(&p)))
}

func doRealWrite(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		w.Write(p)
	} else {
		earlyPrintBuffer.Write(p)
	}
}

// noEscape hides a pointer from escape analysis. This function is copied over
// from runtime/stubs.go
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
