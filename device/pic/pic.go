// Package pic drives a pair of cascaded 8259 programmable interrupt
// controllers.
package pic

import "minikern/kernel/cpu"

const (
	primaryCommandPort   = 0x20
	primaryDataPort      = 0x21
	secondaryCommandPort = 0xa0
	secondaryDataPort    = 0xa1

	// icw1Init starts the initialization sequence and announces that
	// ICW4 will follow.
	icw1Init = 0x11

	// icw4Mode8086 selects 8086/88 mode.
	icw4Mode8086 = 0x01

	// The secondary controller is attached to IRQ line 2 of the primary.
	primaryCascadeMask       = 1 << 2
	secondaryCascadeIdentity = 2

	cmdEndOfInterrupt = 0x20

	// IRQLines is the number of interrupt lines served by each controller.
	IRQLines = 8
)

var (
	// The following functions are used by tests to override calls that
	// will cause a fault if called in user-mode.
	portWriteByteFn = cpu.PortWriteByte
	portReadByteFn  = cpu.PortReadByte
	ioWaitFn        = cpu.IOWait
)

type controller struct {
	offset      uint8
	commandPort uint16
	dataPort    uint16
}

// handles returns true if vector is one of the vectors this controller
// raises.
func (c *controller) handles(vector uint8) bool {
	return vector >= c.offset && uint16(vector) < uint16(c.offset)+IRQLines
}

func (c *controller) endOfInterrupt() {
	portWriteByteFn(c.commandPort, cmdEndOfInterrupt)
}

// Chained represents the primary/secondary 8259 pair found on PC compatible
// machines. Chained is not safe for concurrent use; callers serialize access
// and must not be interrupted while using it.
type Chained struct {
	primary, secondary controller
}

// NewChained returns a controller pair that will raise IRQs 0-7 at vectors
// [primaryOffset, primaryOffset+8) and IRQs 8-15 at vectors
// [secondaryOffset, secondaryOffset+8) once Remap is called.
func NewChained(primaryOffset, secondaryOffset uint8) *Chained {
	return &Chained{
		primary:   controller{offset: primaryOffset, commandPort: primaryCommandPort, dataPort: primaryDataPort},
		secondary: controller{offset: secondaryOffset, commandPort: secondaryCommandPort, dataPort: secondaryDataPort},
	}
}

// Offsets returns the first vector used by the primary and secondary
// controllers.
func (c *Chained) Offsets() (primary, secondary uint8) {
	return c.primary.offset, c.secondary.offset
}

// Remap runs the initialization sequence for both controllers so that they
// raise interrupts at the configured offsets instead of the BIOS defaults
// (which overlap with CPU exceptions). The IRQ masks are preserved.
func (c *Chained) Remap() {
	primaryMask, secondaryMask := c.Masks()

	c.writeBoth(icw1Init, icw1Init, true)
	c.writeBoth(c.primary.offset, c.secondary.offset, false)
	c.writeBoth(primaryCascadeMask, secondaryCascadeIdentity, false)
	c.writeBoth(icw4Mode8086, icw4Mode8086, false)

	c.SetMasks(primaryMask, secondaryMask)
}

// writeBoth sends a byte to the primary and then the secondary controller
// waiting for each controller to process it. Older hardware needs the
// delay between initialization words.
func (c *Chained) writeBoth(primaryVal, secondaryVal uint8, command bool) {
	primaryPort, secondaryPort := c.primary.dataPort, c.secondary.dataPort
	if command {
		primaryPort, secondaryPort = c.primary.commandPort, c.secondary.commandPort
	}

	portWriteByteFn(primaryPort, primaryVal)
	ioWaitFn()
	portWriteByteFn(secondaryPort, secondaryVal)
	ioWaitFn()
}

// Handles returns true if vector is raised by either controller.
func (c *Chained) Handles(vector uint8) bool {
	return c.primary.handles(vector) || c.secondary.handles(vector)
}

// Acknowledge signals the end of the interrupt with the supplied vector.
// Interrupts raised by the secondary controller must be acknowledged by
// both controllers; the primary always receives an end-of-interrupt
// command. Until acknowledged, a controller does not raise further
// interrupts of the same or lower priority.
func (c *Chained) Acknowledge(vector uint8) {
	if c.secondary.handles(vector) {
		c.secondary.endOfInterrupt()
	}

	c.primary.endOfInterrupt()
}

// Masks returns the IRQ masks of the primary and secondary controller. A
// set bit disables the corresponding IRQ line.
func (c *Chained) Masks() (primary, secondary uint8) {
	return portReadByteFn(c.primary.dataPort), portReadByteFn(c.secondary.dataPort)
}

// SetMasks updates the IRQ masks of both controllers.
func (c *Chained) SetMasks(primary, secondary uint8) {
	portWriteByteFn(c.primary.dataPort, primary)
	portWriteByteFn(c.secondary.dataPort, secondary)
}
