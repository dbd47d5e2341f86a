// Package serial drives a 16550 compatible UART.
package serial

import (
	"io"
	"minikern/device"
	"minikern/kernel"
	"minikern/kernel/cpu"
	"minikern/kernel/kfmt"
)

const (
	// COM1 is the base I/O port of the first serial port.
	COM1 = 0x3f8

	// Register offsets relative to the base port.
	regData        = 0
	regIntEnable   = 1
	regFIFOControl = 2
	regLineControl = 3
	regModemCtrl   = 4
	regLineStatus  = 5
	regScratch     = 7

	// While lineControlDLAB is set, offsets 0 and 1 access the baud rate
	// divisor.
	lineControlDLAB = 0x80

	// lineControl8N1 selects 8 data bits, no parity and one stop bit.
	lineControl8N1 = 0x03

	// baudDivisor selects 38400 baud (115200 / 3).
	baudDivisor = 3

	// fifoEnable enables and clears both FIFOs with a 14-byte threshold.
	fifoEnable = 0xc7

	// modemCtrlReady asserts DTR and RTS and enables the OUT2 line.
	modemCtrlReady = 0x0b

	lineStatusTxEmpty = 1 << 5

	scratchTestValue = 0xae
)

var (
	// The following functions are used by tests to override calls that
	// will cause a fault if called in user-mode.
	portWriteByteFn = cpu.PortWriteByte
	portReadByteFn  = cpu.PortReadByte
	cpuPauseFn      = cpu.Pause
)

// Port is a 16550 UART that transmits at 38400 baud with 8N1 framing. It
// implements io.Writer and device.Driver. Interrupts are disabled; output
// is sent by polling the line status register.
type Port struct {
	base uint16
}

// NewPort returns a Port for the UART at the supplied base I/O port.
func NewPort(base uint16) *Port {
	return &Port{base: base}
}

// DriverName returns the name of this driver.
func (p *Port) DriverName() string {
	return "serial_16550"
}

// DriverVersion returns the version of this driver.
func (p *Port) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit programs the UART line settings.
func (p *Port) DriverInit(w io.Writer) *kernel.Error {
	portWriteByteFn(p.base+regIntEnable, 0x00)
	portWriteByteFn(p.base+regLineControl, lineControlDLAB)
	portWriteByteFn(p.base+regData, baudDivisor&0xff)
	portWriteByteFn(p.base+regIntEnable, baudDivisor>>8)
	portWriteByteFn(p.base+regLineControl, lineControl8N1)
	portWriteByteFn(p.base+regFIFOControl, fifoEnable)
	portWriteByteFn(p.base+regModemCtrl, modemCtrlReady)

	kfmt.Fprintf(w, "port 0x%x, 38400 baud\n", p.base)
	return nil
}

// Write implements io.Writer. Backspace and delete erase the previous
// character on the terminal.
func (p *Port) Write(data []byte) (int, error) {
	for _, b := range data {
		switch b {
		case 0x08, 0x7f:
			p.send(0x08)
			p.send(' ')
			p.send(0x08)
		default:
			p.send(b)
		}
	}

	return len(data), nil
}

// send waits until the transmit holding register is empty and writes b to
// it.
func (p *Port) send(b byte) {
	for portReadByteFn(p.base+regLineStatus)&lineStatusTxEmpty == 0 {
		cpuPauseFn()
	}
	portWriteByteFn(p.base+regData, b)
}

// probeForCOM1 checks whether a UART responds at COM1 by writing and
// reading back its scratch register.
func probeForCOM1() device.Driver {
	portWriteByteFn(COM1+regScratch, scratchTestValue)
	if portReadByteFn(COM1+regScratch) != scratchTestValue {
		return nil
	}

	return NewPort(COM1)
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderEarly,
		Probe: probeForCOM1,
	})
}
