package irq

import (
	"bytes"
	"minikern/device/keyboard"
	"minikern/device/pic"
	"minikern/kernel"
	"minikern/kernel/cpu"
	"minikern/kernel/gate"
	"minikern/kernel/kfmt"
	"minikern/kernel/sync"
	"reflect"
	"runtime"
	"strings"
	"testing"
)

type mockController struct {
	remapped int
	acked    []uint8
}

func (c *mockController) Remap()                   { c.remapped++ }
func (c *mockController) Acknowledge(vector uint8) { c.acked = append(c.acked, vector) }

// setupIRQ replaces the hardware dependencies of the package with mocks and
// returns the mock PIC and a buffer that receives all kernel output.
func setupIRQ(t *testing.T) (*mockController, *bytes.Buffer) {
	prevControl := sync.SetInterruptControl(sync.InterruptControl{
		Enabled: func() bool { return false },
		Disable: func() {},
		Enable:  func() {},
	})

	ctrl := &mockController{}
	pics = ctrl
	kbd = keyboard.New()
	table = gate.Table{}

	var buf bytes.Buffer
	kfmt.SetOutputSink(&buf)

	t.Cleanup(func() {
		pics = pic.NewChained(PrimaryPICOffset, SecondaryPICOffset)
		kbd = keyboard.New()
		table = gate.Table{}
		portReadByteFn = cpu.PortReadByte
		loadTableFn = (*gate.Table).Load
		panicFn = kfmt.Panic
		kfmt.SetOutputSink(nil)
		sync.SetInterruptControl(prevControl)
	})

	return ctrl, &buf
}

func TestInit(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ctrl, _ := setupIRQ(t)

		var loaded *gate.Table
		loadTableFn = func(tbl *gate.Table) *kernel.Error {
			loaded = tbl
			return nil
		}

		if err := Init(); err != nil {
			t.Fatal(err)
		}

		if ctrl.remapped != 1 {
			t.Errorf("expected PIC to be remapped once; got %d", ctrl.remapped)
		}

		if loaded != &table {
			t.Fatal("expected the package interrupt table to be loaded")
		}

		for _, exp := range []struct {
			num      gate.InterruptNumber
			istIndex uint8
			handler  gate.Handler
		}{
			{gate.Breakpoint, 0, onBreakpoint},
			{gate.DoubleFault, gate.DoubleFaultISTIndex, onDoubleFault},
			{gate.InterruptNumber(32), 0, onTimer},
			{gate.InterruptNumber(33), 0, onKeyboard},
		} {
			handler, istIndex := loaded.Slot(exp.num)
			if handler == nil {
				t.Errorf("expected a handler for vector %d", exp.num)
				continue
			}

			if got, want := reflect.ValueOf(handler).Pointer(), reflect.ValueOf(exp.handler).Pointer(); got != want {
				t.Errorf("expected vector %d to be routed to %s", exp.num, runtime.FuncForPC(want).Name())
			}

			if istIndex != exp.istIndex {
				t.Errorf("expected vector %d to use IST index %d; got %d", exp.num, exp.istIndex, istIndex)
			}
		}
	})

	t.Run("load error", func(t *testing.T) {
		setupIRQ(t)

		expErr := &kernel.Error{Module: "test", Message: "load failed"}
		loadTableFn = func(_ *gate.Table) *kernel.Error { return expErr }

		if err := Init(); err != expErr {
			t.Fatalf("expected to get error %v; got %v", expErr, err)
		}
	})
}

func TestBreakpointHandler(t *testing.T) {
	_, buf := setupIRQ(t)

	onBreakpoint(&gate.Registers{RIP: 0xbadf00d})

	for _, exp := range []string{"exception: breakpoint", "RIP = 000000000badf00d"} {
		if !strings.Contains(buf.String(), exp) {
			t.Errorf("expected output to contain %q; got:\n%s", exp, buf.String())
		}
	}
}

func TestDoubleFaultHandler(t *testing.T) {
	_, buf := setupIRQ(t)

	var panicErr interface{}
	panicFn = func(e interface{}) { panicErr = e }

	onDoubleFault(&gate.Registers{Vector: uint64(gate.DoubleFault)})

	if panicErr != errDoubleFault {
		t.Fatalf("expected handler to panic with errDoubleFault; got %v", panicErr)
	}

	if exp := "exception: double fault"; !strings.Contains(buf.String(), exp) {
		t.Errorf("expected output to contain %q; got:\n%s", exp, buf.String())
	}
}

func TestTimerHandler(t *testing.T) {
	ctrl, buf := setupIRQ(t)

	onTimer(&gate.Registers{})
	onTimer(&gate.Registers{})

	if got := buf.String(); got != ".." {
		t.Errorf("expected timer to print %q; got %q", "..", got)
	}

	if len(ctrl.acked) != 2 || ctrl.acked[0] != uint8(Timer) || ctrl.acked[1] != uint8(Timer) {
		t.Errorf("expected 2 timer acknowledgements; got %v", ctrl.acked)
	}
}

func TestKeyboardHandler(t *testing.T) {
	specs := []struct {
		scancodes []byte
		expOutput string
	}{
		// 'a' pressed and released
		{[]byte{0x1e, 0x9e}, "a"},
		// shift + 'a'
		{[]byte{0x2a, 0x1e, 0x9e, 0xaa}, "A"},
		// F1 has no character representation
		{[]byte{0x3b, 0xbb}, "F1"},
		// extended prefix alone prints nothing
		{[]byte{0xe0}, ""},
		// unknown scancode is ignored
		{[]byte{0x7f}, ""},
	}

	for specIndex, spec := range specs {
		ctrl, buf := setupIRQ(t)

		var reads int
		portReadByteFn = func(port uint16) uint8 {
			if port != keyboard.DataPort {
				t.Errorf("[spec %d] expected read from port 0x%x; got 0x%x", specIndex, keyboard.DataPort, port)
			}
			b := spec.scancodes[reads]
			reads++
			return b
		}

		for range spec.scancodes {
			onKeyboard(&gate.Registers{})
		}

		if reads != len(spec.scancodes) {
			t.Errorf("[spec %d] expected exactly one port read per interrupt; got %d reads for %d interrupts", specIndex, reads, len(spec.scancodes))
		}

		if got := buf.String(); got != spec.expOutput {
			t.Errorf("[spec %d] expected output %q; got %q", specIndex, spec.expOutput, got)
		}

		if len(ctrl.acked) != len(spec.scancodes) {
			t.Errorf("[spec %d] expected every interrupt to be acknowledged; got %d acks for %d interrupts", specIndex, len(ctrl.acked), len(spec.scancodes))
		}

		for _, vector := range ctrl.acked {
			if vector != uint8(Keyboard) {
				t.Errorf("[spec %d] expected acknowledgement for vector %d; got %d", specIndex, Keyboard, vector)
			}
		}
	}
}
