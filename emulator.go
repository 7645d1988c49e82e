// Package dotmatrix implements the core emulation engine of the DMG
// hand-held: a cycle-accurate CPU, bus, timer and display controller
// advancing in lockstep, one machine-cycle per memory access.
package dotmatrix

import (
	"log/slog"

	"dotmatrix/addr"
	"dotmatrix/cpu"
	"dotmatrix/memory"
	"dotmatrix/video"
)

// CyclesPerFrame is one full display frame in machine-cycles
// (154 lines of 456 dots, 4 dots per machine-cycle).
const CyclesPerFrame = 154 * 456 / 4

// Re-exported sentinel errors of the engine.
var (
	ErrUndefinedOpcode = cpu.ErrUndefinedOpcode
	ErrBootImageSize   = memory.ErrBootImageSize
)

// Button re-exports the joypad button type for hosts.
type Button = memory.Button

const (
	ButtonA      = memory.ButtonA
	ButtonB      = memory.ButtonB
	ButtonSelect = memory.ButtonSelect
	ButtonStart  = memory.ButtonStart
	ButtonRight  = memory.ButtonRight
	ButtonLeft   = memory.ButtonLeft
	ButtonUp     = memory.ButtonUp
	ButtonDown   = memory.ButtonDown
)

// Emu is the root engine value owning the CPU, bus and peripherals.
// It is not safe for concurrent use; hosts read the framebuffer only
// between calls into the step loop.
type Emu struct {
	cpu *cpu.CPU
	bus *memory.Bus
}

// New builds an emulator around a cartridge image and an optional
// 256-byte boot firmware image. With a boot image, execution starts
// at 0x0000 under the overlay; without one the machine is warm-booted
// to the documented post-firmware state.
func New(cartridge []byte, boot []byte) (*Emu, error) {
	bus, err := memory.New(cartridge, boot)
	if err != nil {
		return nil, err
	}

	slog.Debug("Emulator created", "rom_size", len(cartridge), "boot_overlay", bus.BootActive())

	return &Emu{
		cpu: cpu.New(bus),
		bus: bus,
	}, nil
}

// Step advances by one CPU macro-step (boot handoff, one interrupt
// service, one halted idle cycle, or one instruction).
func (e *Emu) Step() error {
	return e.cpu.Step()
}

// RunUntil steps until the machine-cycle clock reaches target,
// returning the achieved clock. Execution stops early only on a
// fatal engine error.
func (e *Emu) RunUntil(target uint64) (uint64, error) {
	for e.bus.Clock() < target {
		if err := e.cpu.Step(); err != nil {
			return e.bus.Clock(), err
		}
	}
	return e.bus.Clock(), nil
}

// RunFrame advances by one display frame worth of cycles.
func (e *Emu) RunFrame() error {
	_, err := e.RunUntil(e.bus.Clock() + CyclesPerFrame)
	return err
}

// Clock returns the free-running machine-cycle counter.
func (e *Emu) Clock() uint64 {
	return e.bus.Clock()
}

// Framebuffer returns the 160x144 shade-index surface. Do not read it
// while a step is executing.
func (e *Emu) Framebuffer() []uint8 {
	return e.bus.PPU().Framebuffer().ToSlice()
}

// SetButton updates one of the 8 logical buttons.
func (e *Emu) SetButton(button Button, pressed bool) {
	e.bus.SetButton(button, pressed)
}

// SerialOutput returns bytes written through the link-port registers,
// useful with test ROMs that report through serial.
func (e *Emu) SerialOutput() []byte {
	return e.bus.SerialOutput()
}

// State is a point-in-time snapshot of engine state for debugging.
type State struct {
	Clock      uint64
	Registers  cpu.Registers
	Halted     bool
	IME        bool
	IE, IF     byte
	LY         byte
	PPUMode    video.Mode
	DIV        byte
	TIMA       byte
	TMA        byte
	TAC        byte
	BootActive bool
}

// Snapshot captures the current engine state.
func (e *Emu) Snapshot() State {
	return State{
		Clock:      e.bus.Clock(),
		Registers:  *e.cpu.Registers(),
		Halted:     e.cpu.Halted(),
		IME:        e.bus.InterruptsEnabled(),
		IE:         e.bus.Read(addr.IE),
		IF:         e.bus.Read(addr.IF),
		LY:         e.bus.PPU().LY(),
		PPUMode:    e.bus.PPU().Mode(),
		DIV:        e.bus.Read(addr.DIV),
		TIMA:       e.bus.Read(addr.TIMA),
		TMA:        e.bus.Read(addr.TMA),
		TAC:        e.bus.Read(addr.TAC),
		BootActive: e.bus.BootActive(),
	}
}
