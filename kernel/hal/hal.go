// Package hal probes the registered device drivers and wires the ones that
// produce output to the kernel's formatted output sink.
package hal

import (
	"bytes"
	"io"
	"minikern/device"
	"minikern/kernel/kfmt"
	"sort"
)

// maxOutputDevices is the number of output devices that can receive kernel
// output at the same time.
const maxOutputDevices = 4

// outputMux is an io.Writer that copies its input to every attached writer.
type outputMux struct {
	writers [maxOutputDevices]io.Writer
	count   int
}

// attach adds w to the list of writers. It returns false if the mux is full.
func (m *outputMux) attach(w io.Writer) bool {
	if m.count == len(m.writers) {
		return false
	}

	m.writers[m.count] = w
	m.count++
	return true
}

// Write implements io.Writer.
func (m *outputMux) Write(p []byte) (int, error) {
	for i := 0; i < m.count; i++ {
		m.writers[i].Write(p)
	}

	return len(p), nil
}

// managedDevices contains the devices discovered by the HAL.
type managedDevices struct {
	// output fans kernel output out to the initialized output devices.
	output outputMux

	// activeDrivers tracks all initialized device drivers.
	activeDrivers []device.Driver
}

var (
	devices managedDevices
	strBuf  bytes.Buffer

	driverListFn    = device.DriverList
	setOutputSinkFn = kfmt.SetOutputSink
)

// ActiveDrivers returns the list of drivers that were successfully
// initialized by DetectHardware.
func ActiveDrivers() []device.Driver {
	return devices.activeDrivers
}

// DetectHardware probes for hardware devices and initializes the appropriate
// drivers. Drivers that implement io.Writer are attached to the kernel output
// sink and receive any output buffered before they were initialized.
func DetectHardware() {
	// Get driver list and sort by detection priority
	drivers := driverListFn()
	sort.Sort(drivers)

	probe(drivers)

	if devices.output.count != 0 {
		setOutputSinkFn(&devices.output)
	}
}

// probe executes the probe function for each driver and invokes
// onDriverInit for each successfully initialized driver.
func probe(driverInfoList device.DriverInfoList) {
	var w = kfmt.PrefixWriter{Sink: kfmt.SinkWriter{}}

	for _, info := range driverInfoList {
		drv := info.Probe()
		if drv == nil {
			continue
		}

		strBuf.Reset()
		major, minor, patch := drv.DriverVersion()
		kfmt.Fprintf(&strBuf, "[hal] %s(%d.%d.%d): ", drv.DriverName(), major, minor, patch)
		w.Prefix = strBuf.Bytes()

		if err := drv.DriverInit(&w); err != nil {
			kfmt.Fprintf(&w, "init failed: %s\n", err.Message)
			continue
		}

		kfmt.Fprintf(&w, "initialized\n")
		onDriverInit(drv)
		devices.activeDrivers = append(devices.activeDrivers, drv)
	}
}

// onDriverInit is invoked by probe() whenever a piece of hardware is detected
// and successfully initialized.
func onDriverInit(drv device.Driver) {
	if out, ok := drv.(io.Writer); ok {
		if !devices.output.attach(out) {
			kfmt.Printf("[hal] ignoring output device %s: too many output devices\n", drv.DriverName())
		}
	}
}
