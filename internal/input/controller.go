// Package input implements controller handling for the NES.
package input

import (
	"strings"

	"github.com/pkg/errors"
)

// Button represents NES controller buttons
type Button uint8

const (
	ButtonA Button = 1 << iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

var buttonNames = []struct {
	button Button
	name   string
}{
	{ButtonA, "A"},
	{ButtonB, "B"},
	{ButtonSelect, "Select"},
	{ButtonStart, "Start"},
	{ButtonUp, "Up"},
	{ButtonDown, "Down"},
	{ButtonLeft, "Left"},
	{ButtonRight, "Right"},
}

// String returns the button name, or a '+'-joined list for a mask.
func (b Button) String() string {
	var names []string
	for _, bn := range buttonNames {
		if b&bn.button != 0 {
			names = append(names, bn.name)
		}
	}
	if len(names) == 0 {
		return "None"
	}
	return strings.Join(names, "+")
}

// ParseButton converts a button name such as "start" into its mask bit.
func ParseButton(name string) (Button, error) {
	for _, bn := range buttonNames {
		if strings.EqualFold(bn.name, name) {
			return bn.button, nil
		}
	}
	return 0, errors.Errorf("input: unknown button %q", name)
}

// Controller is a standard controller: an 8-bit parallel-in, serial-out
// shift register loaded from the live buttons while strobe is high.
type Controller struct {
	buttons       uint8
	shiftRegister uint8
	strobe        bool
}

// New creates a new Controller instance
func New() *Controller {
	return &Controller{}
}

// SetButton sets the state of a single button
func (c *Controller) SetButton(button Button, pressed bool) {
	if pressed {
		c.buttons |= uint8(button)
	} else {
		c.buttons &^= uint8(button)
	}
	c.latch()
}

// SetButtons replaces the full button mask (bit 0 A .. bit 7 Right)
func (c *Controller) SetButtons(mask uint8) {
	c.buttons = mask
	c.latch()
}

// Buttons returns the current button mask
func (c *Controller) Buttons() uint8 {
	return c.buttons
}

// IsPressed returns true if the button is currently pressed
func (c *Controller) IsPressed(button Button) bool {
	return c.buttons&uint8(button) != 0
}

func (c *Controller) latch() {
	if c.strobe {
		c.shiftRegister = c.buttons
	}
}

// Write handles writes to the controller register ($4016)
func (c *Controller) Write(value uint8) {
	c.strobe = value&1 != 0
	c.latch()
}

// Read returns the next serial bit. After eight reads the register is
// empty and reads return 0.
func (c *Controller) Read() uint8 {
	c.latch()
	bit := c.shiftRegister & 1
	c.shiftRegister >>= 1
	return bit
}

// Reset resets the controller state
func (c *Controller) Reset() {
	c.buttons = 0
	c.shiftRegister = 0
	c.strobe = false
}

// InputState represents the state of all input devices
type InputState struct {
	Controller1 *Controller
	Controller2 *Controller
}

// NewInputState creates a new input state with two controllers
func NewInputState() *InputState {
	return &InputState{
		Controller1: New(),
		Controller2: New(),
	}
}

// Reset resets all input devices
func (is *InputState) Reset() {
	is.Controller1.Reset()
	is.Controller2.Reset()
}

// SetButtons sets the button mask of port 1 or 2.
func (is *InputState) SetButtons(port int, mask uint8) error {
	switch port {
	case 1:
		is.Controller1.SetButtons(mask)
	case 2:
		is.Controller2.SetButtons(mask)
	default:
		return errors.Errorf("input: no controller port %d", port)
	}
	return nil
}

// Read reads from controller ports. Only bit 0 is driven; the bus fills
// the upper bits.
func (is *InputState) Read(address uint16) uint8 {
	switch address {
	case 0x4016:
		return is.Controller1.Read()
	case 0x4017:
		return is.Controller2.Read()
	default:
		return 0
	}
}

// Write writes to controller ports. Both controllers share the strobe line.
func (is *InputState) Write(address uint16, value uint8) {
	if address == 0x4016 {
		is.Controller1.Write(value)
		is.Controller2.Write(value)
	}
}
