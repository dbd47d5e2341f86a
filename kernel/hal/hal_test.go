package hal

import (
	"bytes"
	"io"
	"minikern/device"
	"minikern/kernel"
	"minikern/kernel/kfmt"
	"minikern/kernel/sync"
	"strings"
	"testing"
)

type mockDriver struct {
	name    string
	initErr *kernel.Error
}

func (d *mockDriver) DriverName() string                      { return d.name }
func (d *mockDriver) DriverVersion() (uint16, uint16, uint16) { return 1, 2, 3 }
func (d *mockDriver) DriverInit(w io.Writer) *kernel.Error {
	if d.initErr == nil {
		kfmt.Fprintf(w, "hello from %s\n", d.name)
	}
	return d.initErr
}

type mockOutputDriver struct {
	mockDriver
	buf bytes.Buffer
}

func (d *mockOutputDriver) Write(p []byte) (int, error) { return d.buf.Write(p) }

func setupHAL(t *testing.T, drivers ...*device.DriverInfo) {
	prev := sync.SetInterruptControl(sync.InterruptControl{
		Enabled: func() bool { return false },
		Disable: func() {},
		Enable:  func() {},
	})

	devices = managedDevices{}
	driverListFn = func() device.DriverInfoList { return drivers }

	t.Cleanup(func() {
		devices = managedDevices{}
		driverListFn = device.DriverList
		setOutputSinkFn = kfmt.SetOutputSink
		kfmt.SetOutputSink(nil)
		sync.SetInterruptControl(prev)
	})
}

func TestDetectHardware(t *testing.T) {
	var (
		failing = &mockDriver{name: "failing", initErr: &kernel.Error{Module: "test", Message: "no device"}}
		plain   = &mockDriver{name: "plain"}
		output  = &mockOutputDriver{mockDriver: mockDriver{name: "output"}}
	)

	setupHAL(t,
		&device.DriverInfo{Order: device.DetectOrderLast, Probe: func() device.Driver { return plain }},
		&device.DriverInfo{Order: device.DetectOrderNormal, Probe: func() device.Driver { return nil }},
		&device.DriverInfo{Order: device.DetectOrderNormal, Probe: func() device.Driver { return failing }},
		&device.DriverInfo{Order: device.DetectOrderEarly, Probe: func() device.Driver { return output }},
	)

	DetectHardware()

	active := ActiveDrivers()
	if len(active) != 2 || active[0] != output || active[1] != plain {
		t.Fatalf("expected active drivers to be [output plain] in probe order; got %v", active)
	}

	if devices.output.count != 1 {
		t.Fatalf("expected 1 output device to be attached; got %d", devices.output.count)
	}

	if kfmt.GetOutputSink() != &devices.output {
		t.Fatal("expected the output mux to become the kernel output sink")
	}

	got := output.buf.String()
	for _, exp := range []string{
		"[hal] output(1.2.3): hello from output\n",
		"[hal] output(1.2.3): initialized\n",
		"[hal] failing(1.2.3): init failed: no device\n",
		"[hal] plain(1.2.3): hello from plain\n",
		"[hal] plain(1.2.3): initialized\n",
	} {
		if !strings.Contains(got, exp) {
			t.Errorf("expected output device to receive %q; got:\n%s", exp, got)
		}
	}
}

func TestDetectHardwareWithoutOutputDevices(t *testing.T) {
	setupHAL(t,
		&device.DriverInfo{Probe: func() device.Driver { return &mockDriver{name: "plain"} }},
	)

	setOutputSinkFn = func(_ io.Writer) {
		t.Fatal("expected the output sink not to be replaced")
	}

	DetectHardware()

	if len(ActiveDrivers()) != 1 {
		t.Fatalf("expected 1 active driver; got %d", len(ActiveDrivers()))
	}
}

func TestOutputMux(t *testing.T) {
	var (
		mux  outputMux
		bufs [maxOutputDevices + 1]bytes.Buffer
	)

	for i := 0; i < maxOutputDevices; i++ {
		if !mux.attach(&bufs[i]) {
			t.Fatalf("expected writer %d to be attached", i)
		}
	}

	if mux.attach(&bufs[maxOutputDevices]) {
		t.Fatal("expected attach to fail when the mux is full")
	}

	if n, err := mux.Write([]byte("abc")); n != 3 || err != nil {
		t.Fatalf("expected Write to return (3, nil); got (%d, %v)", n, err)
	}

	for i := 0; i < maxOutputDevices; i++ {
		if got := bufs[i].String(); got != "abc" {
			t.Errorf("expected writer %d to receive %q; got %q", i, "abc", got)
		}
	}

	if bufs[maxOutputDevices].Len() != 0 {
		t.Error("expected the writer that was not attached to receive no data")
	}
}
