package video

import (
	"dotmatrix/addr"
	"dotmatrix/bit"
)

// Mode is the PPU's current rendering stage. The values match STAT
// bits 1-0.
type Mode uint8

const (
	ModeHBlank        Mode = 0
	ModeVBlank        Mode = 1
	ModeOAMScan       Mode = 2
	ModePixelTransfer Mode = 3
)

const (
	oamScanDots       = 80
	pixelTransferDots = 172
	hblankDots        = 204
	lineDots          = oamScanDots + pixelTransferDots + hblankDots

	visibleLines = 144
	lastLine     = 153
)

// STAT register bits. Bits 1-0 are the current mode, bit 2 the LY=LYC
// coincidence, bits 3-6 the interrupt source enables, bit 7 unwired.
const (
	statHblankIrq uint8 = 3
	statVblankIrq uint8 = 4
	statOamIrq    uint8 = 5
	statLycIrq    uint8 = 6
)

// LCDC register bits.
const (
	lcdcBGDisplay      uint8 = 0
	lcdcSpriteEnable   uint8 = 1
	lcdcSpriteSize     uint8 = 2
	lcdcBGTileMap      uint8 = 3
	lcdcTileDataSelect uint8 = 4
	lcdcWindowEnable   uint8 = 5
	lcdcWindowTileMap  uint8 = 6
	lcdcDisplayEnable  uint8 = 7
)

// PPU owns VRAM, OAM and the display register file, and steps the
// mode state machine in lockstep with the bus clock. Interrupts are
// raised through the callback supplied at construction.
type PPU struct {
	vram [0x2000]byte
	oam  [0xA0]byte

	lcdc byte
	stat byte // bits 3-6 only; the rest is derived on read
	scy  byte
	scx  byte
	ly   byte
	lyc  byte
	bgp  byte
	obp0 byte
	obp1 byte
	wy   byte
	wx   byte

	mode       Mode
	dot        int // dots elapsed in the current mode
	windowLine int // internal window line counter

	framebuffer    *FrameBuffer
	bgLineIndices  [FramebufferWidth]uint8 // raw BG/window color indices for sprite priority
	spritePriority spritePriorityBuffer

	requestInterrupt func(addr.Interrupt)
}

// NewPPU creates a PPU that reports interrupts through request.
func NewPPU(request func(addr.Interrupt)) *PPU {
	return &PPU{
		mode:             ModeOAMScan,
		framebuffer:      NewFrameBuffer(),
		requestInterrupt: request,
	}
}

func (p *PPU) Framebuffer() *FrameBuffer {
	return p.framebuffer
}

func (p *PPU) Mode() Mode {
	return p.mode
}

func (p *PPU) LY() byte {
	return p.ly
}

// Tick advances the PPU by one machine-cycle (4 dots). All mode
// boundaries fall on multiples of 4, so stepping in dot-quads loses
// nothing.
func (p *PPU) Tick() {
	if !bit.IsSet(lcdcDisplayEnable, p.lcdc) {
		// LCD off: hold in HBlank with the counters cleared.
		p.mode = ModeHBlank
		p.ly = 0
		p.dot = 0
		p.windowLine = 0
		return
	}

	p.dot += 4

	switch p.mode {
	case ModeOAMScan:
		if p.dot >= oamScanDots {
			p.dot -= oamScanDots
			p.setMode(ModePixelTransfer)
			p.renderScanline()
		}
	case ModePixelTransfer:
		if p.dot >= pixelTransferDots {
			p.dot -= pixelTransferDots
			p.setMode(ModeHBlank)
		}
	case ModeHBlank:
		if p.dot >= hblankDots {
			p.dot -= hblankDots
			p.setLY(p.ly + 1)

			if p.ly == visibleLines {
				p.setMode(ModeVBlank)
				p.requestInterrupt(addr.VBlankInterrupt)
				p.windowLine = 0
			} else {
				p.setMode(ModeOAMScan)
			}
		}
	case ModeVBlank:
		if p.dot >= lineDots {
			p.dot -= lineDots
			if p.ly == lastLine {
				p.setLY(0)
				p.setMode(ModeOAMScan)
			} else {
				p.setLY(p.ly + 1)
			}
		}
	}
}

// setMode updates the mode and raises a STAT interrupt when the
// matching source bit is enabled. Pixel transfer has no STAT source.
func (p *PPU) setMode(mode Mode) {
	p.mode = mode

	var irqBit uint8
	switch mode {
	case ModeHBlank:
		irqBit = statHblankIrq
	case ModeVBlank:
		irqBit = statVblankIrq
	case ModeOAMScan:
		irqBit = statOamIrq
	default:
		return
	}
	if bit.IsSet(irqBit, p.stat) {
		p.requestInterrupt(addr.LCDSTATInterrupt)
	}
}

// setLY updates the scan-line counter and re-evaluates the LY=LYC
// coincidence interrupt.
func (p *PPU) setLY(line byte) {
	p.ly = line
	if p.ly == p.lyc && bit.IsSet(statLycIrq, p.stat) {
		p.requestInterrupt(addr.LCDSTATInterrupt)
	}
}

func (p *PPU) ReadVRAM(address uint16) byte {
	return p.vram[address-addr.VRAMStart]
}

func (p *PPU) WriteVRAM(address uint16, value byte) {
	p.vram[address-addr.VRAMStart] = value
}

func (p *PPU) ReadOAM(address uint16) byte {
	return p.oam[address-addr.OAMStart]
}

func (p *PPU) WriteOAM(address uint16, value byte) {
	p.oam[address-addr.OAMStart] = value
}

// ReadRegister serves the 0xFF40-0xFF4B range.
func (p *PPU) ReadRegister(address uint16) byte {
	switch address {
	case addr.LCDC:
		return p.lcdc
	case addr.STAT:
		value := 0x80 | (p.stat & 0x78) | byte(p.mode)
		if p.ly == p.lyc {
			value = bit.Set(2, value)
		}
		return value
	case addr.SCY:
		return p.scy
	case addr.SCX:
		return p.scx
	case addr.LY:
		return p.ly
	case addr.LYC:
		return p.lyc
	case addr.BGP:
		return p.bgp
	case addr.OBP0:
		return p.obp0
	case addr.OBP1:
		return p.obp1
	case addr.WY:
		return p.wy
	case addr.WX:
		return p.wx
	default:
		// DMA and the gaps in the range are write-only here.
		return 0xFF
	}
}

// WriteRegister serves the 0xFF40-0xFF4B range. LY is read only and
// DMA is handled by the bus, which owns the source memory.
func (p *PPU) WriteRegister(address uint16, value byte) {
	switch address {
	case addr.LCDC:
		p.lcdc = value
	case addr.STAT:
		p.stat = value & 0x78
	case addr.SCY:
		p.scy = value
	case addr.SCX:
		p.scx = value
	case addr.LYC:
		p.lyc = value
	case addr.BGP:
		p.bgp = value
	case addr.OBP0:
		p.obp0 = value
	case addr.OBP1:
		p.obp1 = value
	case addr.WY:
		p.wy = value
	case addr.WX:
		p.wx = value
	}
}
