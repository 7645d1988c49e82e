package memory

import (
	"errors"
	"log/slog"

	"dotmatrix/addr"
	"dotmatrix/video"
)

// ErrBootImageSize is returned when the boot firmware image is not
// exactly 256 bytes.
var ErrBootImageSize = errors.New("boot image must be 256 bytes")

const bootImageSize = 0x100

// Select is the joypad matrix column driven by P1 bits 4-5.
type Select uint8

const (
	SelectNone Select = iota
	SelectButtons
	SelectDirections
)

// Bus is the unified memory space plus memory-mapped IO dispatch. It
// owns the PPU and Timer and advances both exactly once per
// machine-cycle through Tick; TickRead/TickWrite are the only access
// paths the CPU uses, so every byte moved costs one machine-cycle.
type Bus struct {
	memory []byte
	boot   []byte

	bootActive bool
	ime        bool
	ie         byte
	iflags     byte
	clock      uint64

	selectBits byte // P1 bits 4-5 as last written
	buttons    byte // active-low A/B/Select/Start nibble
	directions byte // active-low Right/Left/Up/Down nibble

	serialOut []byte

	ppu   *video.PPU
	timer Timer
}

// New creates a bus with the cartridge image mapped flat into the ROM
// region. A non-nil boot image shadows 0x0000-0x00FF until a write to
// 0xFF50 disables the overlay.
func New(cartridge []byte, boot []byte) (*Bus, error) {
	if boot != nil && len(boot) != bootImageSize {
		return nil, ErrBootImageSize
	}

	b := &Bus{
		memory:     make([]byte, 0x10000),
		buttons:    0x0F,
		directions: 0x0F,
	}
	b.ppu = video.NewPPU(b.RequestInterrupt)
	b.timer.requestInterrupt = func() { b.RequestInterrupt(addr.TimerInterrupt) }

	romLen := len(cartridge)
	if romLen > 0x8000 {
		slog.Debug("Cartridge image larger than the flat ROM region, truncating", "size", romLen)
		romLen = 0x8000
	}
	copy(b.memory[:romLen], cartridge)

	if boot != nil {
		b.boot = make([]byte, bootImageSize)
		copy(b.boot, boot)
		b.bootActive = true
	}

	return b, nil
}

// Tick advances the shared clock by one machine-cycle, then the PPU,
// then the Timer. This is the only place peripherals move.
func (b *Bus) Tick() {
	b.clock++
	b.ppu.Tick()
	b.timer.Tick()
}

// TickRead spends one machine-cycle, then reads.
func (b *Bus) TickRead(address uint16) byte {
	b.Tick()
	return b.Read(address)
}

// TickWrite spends one machine-cycle, then writes.
func (b *Bus) TickWrite(address uint16, value byte) {
	b.Tick()
	b.Write(address, value)
}

// Clock returns the free-running machine-cycle counter.
func (b *Bus) Clock() uint64 {
	return b.clock
}

// PPU exposes the display controller to the emulator facade.
func (b *Bus) PPU() *video.PPU {
	return b.ppu
}

// Timer exposes the timer, used by tests and the warm boot seed.
func (b *Bus) Timer() *Timer {
	return &b.timer
}

// BootActive reports whether the boot overlay still shadows low ROM.
func (b *Bus) BootActive() bool {
	return b.bootActive
}

// RequestInterrupt sets the flag bit for the given interrupt. Flags
// are sticky until acknowledged.
func (b *Bus) RequestInterrupt(interrupt addr.Interrupt) {
	b.iflags |= byte(interrupt)
}

// Pending returns the set of interrupts both requested and enabled.
func (b *Bus) Pending() byte {
	return b.ie & b.iflags & addr.InterruptMask
}

// Acknowledge clears the flag for a serviced interrupt and drops IME.
func (b *Bus) Acknowledge(interrupt addr.Interrupt) {
	b.iflags &^= byte(interrupt)
	b.ime = false
}

func (b *Bus) EnableInterrupts()  { b.ime = true }
func (b *Bus) DisableInterrupts() { b.ime = false }

// InterruptsEnabled reports the interrupt master enable state.
func (b *Bus) InterruptsEnabled() bool {
	return b.ime
}

// SerialOutput returns the bytes latched through SB/SC so far.
func (b *Bus) SerialOutput() []byte {
	return b.serialOut
}

// Read is the pure read: no clock movement.
func (b *Bus) Read(address uint16) byte {
	switch {
	case b.bootActive && address < bootImageSize:
		return b.boot[address]
	case address >= addr.VRAMStart && address <= addr.VRAMEnd:
		return b.ppu.ReadVRAM(address)
	case address >= addr.OAMStart && address <= addr.OAMEnd:
		return b.ppu.ReadOAM(address)
	case address >= 0xFEA0 && address <= 0xFEFF:
		// unusable region
		return 0xFF
	case address == addr.P1:
		return b.readJoypad()
	case address >= addr.DIV && address <= addr.TAC:
		return b.timer.Read(address)
	case address == addr.IF:
		return b.iflags | ^addr.InterruptMask
	case address >= addr.LCDC && address <= addr.WX:
		return b.ppu.ReadRegister(address)
	case address == addr.IE:
		return b.ie
	default:
		return b.memory[address]
	}
}

// Write is the pure write counterpart of Read.
func (b *Bus) Write(address uint16, value byte) {
	switch {
	case address < addr.VRAMStart:
		// ROM region: writes are dropped under flat addressing.
	case address <= addr.VRAMEnd:
		b.ppu.WriteVRAM(address, value)
	case address >= addr.OAMStart && address <= addr.OAMEnd:
		b.ppu.WriteOAM(address, value)
	case address >= 0xFEA0 && address <= 0xFEFF:
		// unusable region
	case address == addr.P1:
		b.selectBits = value & 0x30
	case address == addr.SC:
		// Blargg convention: writing 0x81 transfers the SB byte.
		if value == 0x81 {
			b.serialOut = append(b.serialOut, b.memory[addr.SB])
		}
		b.memory[address] = value
	case address >= addr.DIV && address <= addr.TAC:
		b.timer.Write(address, value)
	case address == addr.IF:
		// OR in, so a flag raised by a peripheral on this very
		// cycle is never lost.
		b.iflags |= value & addr.InterruptMask
	case address == addr.DMA:
		b.oamDMA(value)
	case address >= addr.LCDC && address <= addr.WX:
		b.ppu.WriteRegister(address, value)
	case address == addr.Boot:
		if value != 0 && b.bootActive {
			b.bootActive = false
			slog.Debug("Boot overlay disabled", "clock", b.clock)
		}
	case address == addr.IE:
		b.ie = value
	default:
		b.memory[address] = value
	}
}

// oamDMA copies 160 bytes from (value << 8) into OAM in one shot.
// The 160-cycle CPU stall of real hardware is not modelled.
func (b *Bus) oamDMA(value byte) {
	source := uint16(value) << 8
	for i := uint16(0); i < 0xA0; i++ {
		b.ppu.WriteOAM(addr.OAMStart+i, b.Read(source+i))
	}
	b.memory[addr.DMA] = value
}

// Selected reports which joypad column the last P1 write selected.
// A zero select bit activates its column; both or neither active
// reads as no selection.
func (b *Bus) Selected() Select {
	selectDirections := b.selectBits&0x10 == 0
	selectButtons := b.selectBits&0x20 == 0

	switch {
	case selectButtons && !selectDirections:
		return SelectButtons
	case selectDirections && !selectButtons:
		return SelectDirections
	default:
		return SelectNone
	}
}

func (b *Bus) readJoypad() byte {
	result := 0xC0 | b.selectBits

	switch b.Selected() {
	case SelectButtons:
		return result | (b.buttons & 0x0F)
	case SelectDirections:
		return result | (b.directions & 0x0F)
	default:
		return result | 0x0F
	}
}
