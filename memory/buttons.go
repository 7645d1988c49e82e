package memory

import (
	"dotmatrix/addr"
	"dotmatrix/bit"
)

// Button is one of the 8 logical joypad inputs.
type Button uint8

const (
	ButtonA Button = iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonRight
	ButtonLeft
	ButtonUp
	ButtonDown
)

// buttonLine returns the nibble the button lives in and its bit.
func buttonLine(button Button) (directions bool, index uint8) {
	switch button {
	case ButtonA:
		return false, 0
	case ButtonB:
		return false, 1
	case ButtonSelect:
		return false, 2
	case ButtonStart:
		return false, 3
	case ButtonRight:
		return true, 0
	case ButtonLeft:
		return true, 1
	case ButtonUp:
		return true, 2
	default: // ButtonDown
		return true, 3
	}
}

// SetButton updates a button's active-low line. A press (1 to 0
// transition) on the currently selected column raises the Joypad
// interrupt.
func (b *Bus) SetButton(button Button, pressed bool) {
	directions, index := buttonLine(button)

	line := &b.buttons
	selected := b.Selected() == SelectButtons
	if directions {
		line = &b.directions
		selected = b.Selected() == SelectDirections
	}

	wasHigh := bit.IsSet(index, *line)
	if pressed {
		*line = bit.Reset(index, *line)
	} else {
		*line = bit.Set(index, *line)
	}

	if pressed && wasHigh && selected {
		b.RequestInterrupt(addr.JoypadInterrupt)
	}
}
