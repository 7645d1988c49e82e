package video

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dotmatrix/addr"
)

// newTestPPU returns a PPU with the LCD on and a recorder for raised
// interrupts.
func newTestPPU() (*PPU, *[]addr.Interrupt) {
	var raised []addr.Interrupt
	p := NewPPU(func(i addr.Interrupt) {
		raised = append(raised, i)
	})
	p.WriteRegister(addr.LCDC, 0x80)
	return p, &raised
}

func tick(p *PPU, mcycles int) {
	for i := 0; i < mcycles; i++ {
		p.Tick()
	}
}

func TestPPU_modeProgression(t *testing.T) {
	p, _ := newTestPPU()

	assert.Equal(t, ModeOAMScan, p.Mode())

	tick(p, 80/4)
	assert.Equal(t, ModePixelTransfer, p.Mode())

	tick(p, 172/4)
	assert.Equal(t, ModeHBlank, p.Mode())

	tick(p, 204/4)
	assert.Equal(t, ModeOAMScan, p.Mode())
	assert.Equal(t, uint8(1), p.LY())
}

func TestPPU_lineTiming(t *testing.T) {
	p, _ := newTestPPU()

	// a full line is 456 dots = 114 machine-cycles
	tick(p, 114)
	assert.Equal(t, uint8(1), p.LY())
	tick(p, 114*10)
	assert.Equal(t, uint8(11), p.LY())
}

func TestPPU_vblankEntry(t *testing.T) {
	p, raised := newTestPPU()

	// run right up to the end of line 143
	tick(p, 114*144-1)
	assert.NotEqual(t, ModeVBlank, p.Mode())

	tick(p, 1)
	assert.Equal(t, ModeVBlank, p.Mode())
	assert.Equal(t, uint8(144), p.LY())
	assert.Contains(t, *raised, addr.VBlankInterrupt)
}

func TestPPU_frameWrapsToLineZero(t *testing.T) {
	p, _ := newTestPPU()

	tick(p, 114*154)
	assert.Equal(t, uint8(0), p.LY())
	assert.Equal(t, ModeOAMScan, p.Mode())
}

func TestPPU_statModeBits(t *testing.T) {
	p, _ := newTestPPU()

	assert.Equal(t, uint8(2), p.ReadRegister(addr.STAT)&0x03)
	tick(p, 80/4)
	assert.Equal(t, uint8(3), p.ReadRegister(addr.STAT)&0x03)
	tick(p, 172/4)
	assert.Equal(t, uint8(0), p.ReadRegister(addr.STAT)&0x03)

	// bit 7 always reads set
	assert.NotZero(t, p.ReadRegister(addr.STAT)&0x80)
}

func TestPPU_statInterruptSources(t *testing.T) {
	p, raised := newTestPPU()
	p.WriteRegister(addr.STAT, 1<<statHblankIrq)

	tick(p, (80+172)/4)
	assert.Equal(t, ModeHBlank, p.Mode())
	assert.Contains(t, *raised, addr.LCDSTATInterrupt)
}

func TestPPU_lycCoincidence(t *testing.T) {
	p, raised := newTestPPU()
	p.WriteRegister(addr.LYC, 2)
	p.WriteRegister(addr.STAT, 1<<statLycIrq)

	tick(p, 114)
	assert.NotContains(t, *raised, addr.LCDSTATInterrupt)
	// coincidence bit clear while LY != LYC
	assert.Zero(t, p.ReadRegister(addr.STAT)&0x04)

	tick(p, 114)
	assert.Equal(t, uint8(2), p.LY())
	assert.Contains(t, *raised, addr.LCDSTATInterrupt)
	assert.NotZero(t, p.ReadRegister(addr.STAT)&0x04)
}

func TestPPU_lcdOffHoldsCounters(t *testing.T) {
	p, raised := newTestPPU()
	p.WriteRegister(addr.LCDC, 0x00)

	tick(p, 114*200)
	assert.Equal(t, uint8(0), p.LY())
	assert.Equal(t, ModeHBlank, p.Mode())
	assert.Empty(t, *raised)
}

func TestPPU_lyIsReadOnly(t *testing.T) {
	p, _ := newTestPPU()
	tick(p, 114)
	p.WriteRegister(addr.LY, 0x55)
	assert.Equal(t, uint8(1), p.ReadRegister(addr.LY))
}

func TestPPU_backgroundRendering(t *testing.T) {
	p, _ := newTestPPU()
	// LCD on, BG on, unsigned tile data
	p.WriteRegister(addr.LCDC, 0x91)
	// identity palette: color n -> shade n
	p.WriteRegister(addr.BGP, 0xE4)

	// tile 0, row 0: all pixels color 1 (low plane set, high clear)
	p.WriteVRAM(addr.TileData0, 0xFF)
	p.WriteVRAM(addr.TileData0+1, 0x00)
	// second map column points at tile 1, which stays blank
	p.WriteVRAM(addr.TileMap0+1, 1)

	// render line 0
	tick(p, (80+4)/4)
	assert.Equal(t, uint8(1), p.Framebuffer().GetPixel(0, 0))
	assert.Equal(t, uint8(1), p.Framebuffer().GetPixel(7, 0))
	assert.Equal(t, uint8(0), p.Framebuffer().GetPixel(8, 0))
}

func TestPPU_backgroundPaletteApplied(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(addr.LCDC, 0x91)
	// palette maps color 1 to shade 3
	p.WriteRegister(addr.BGP, 0x0C)

	p.WriteVRAM(addr.TileData0, 0xFF)
	p.WriteVRAM(addr.TileData0+1, 0x00)

	tick(p, (80+4)/4)
	assert.Equal(t, uint8(3), p.Framebuffer().GetPixel(0, 0))
}

func TestPPU_scrollX(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(addr.LCDC, 0x91)
	p.WriteRegister(addr.BGP, 0xE4)
	p.WriteRegister(addr.SCX, 4)

	// tile 0 row 0: color 1; the next map column holds blank tile 1
	p.WriteVRAM(addr.TileData0, 0xFF)
	p.WriteVRAM(addr.TileData0+1, 0x00)
	p.WriteVRAM(addr.TileMap0+1, 1)

	tick(p, (80+4)/4)
	// with SCX=4 only the last 4 pixels of tile 0 land at x=0..3
	assert.Equal(t, uint8(1), p.Framebuffer().GetPixel(3, 0))
	assert.Equal(t, uint8(0), p.Framebuffer().GetPixel(4, 0))
}

func TestPPU_spriteRendering(t *testing.T) {
	p, _ := newTestPPU()
	// LCD, BG and sprites on
	p.WriteRegister(addr.LCDC, 0x93)
	p.WriteRegister(addr.BGP, 0xE4)
	p.WriteRegister(addr.OBP0, 0xE4)

	// sprite tile 1: row 0 all color 2
	p.WriteVRAM(addr.TileData0+16, 0x00)
	p.WriteVRAM(addr.TileData0+17, 0xFF)

	// sprite 0 at screen (10, 0), tile 1
	p.WriteOAM(addr.OAMStart, 16)    // Y
	p.WriteOAM(addr.OAMStart+1, 18)  // X
	p.WriteOAM(addr.OAMStart+2, 1)   // tile
	p.WriteOAM(addr.OAMStart+3, 0x00)

	tick(p, (80+4)/4)
	assert.Equal(t, uint8(2), p.Framebuffer().GetPixel(10, 0))
	assert.Equal(t, uint8(2), p.Framebuffer().GetPixel(17, 0))
	assert.Equal(t, uint8(0), p.Framebuffer().GetPixel(18, 0))
}

func TestPPU_spriteBehindBackground(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(addr.LCDC, 0x93)
	p.WriteRegister(addr.BGP, 0xE4)
	p.WriteRegister(addr.OBP0, 0xE4)

	// background color 1 everywhere on row 0
	p.WriteVRAM(addr.TileData0, 0xFF)
	p.WriteVRAM(addr.TileData0+1, 0x00)
	// sprite tile 1 row 0: color 2
	p.WriteVRAM(addr.TileData0+16, 0x00)
	p.WriteVRAM(addr.TileData0+17, 0xFF)

	// behind-background sprite at (0,0)
	p.WriteOAM(addr.OAMStart, 16)
	p.WriteOAM(addr.OAMStart+1, 8)
	p.WriteOAM(addr.OAMStart+2, 1)
	p.WriteOAM(addr.OAMStart+3, 0x80)

	tick(p, (80+4)/4)
	// the non-zero background wins
	assert.Equal(t, uint8(1), p.Framebuffer().GetPixel(0, 0))
}

func TestPPU_windowOverlaysBackground(t *testing.T) {
	p, _ := newTestPPU()
	// LCD, BG and window on; window uses map 1
	p.WriteRegister(addr.LCDC, 0x91|1<<lcdcWindowEnable|1<<lcdcWindowTileMap)
	p.WriteRegister(addr.BGP, 0xE4)
	p.WriteRegister(addr.WY, 0)
	p.WriteRegister(addr.WX, 7+80) // window starts at x=80

	// background tile 0: color 1; window map points at tile 2: color 3
	p.WriteVRAM(addr.TileData0, 0xFF)
	p.WriteVRAM(addr.TileData0+1, 0x00)
	p.WriteVRAM(addr.TileData0+32, 0xFF)
	p.WriteVRAM(addr.TileData0+33, 0xFF)
	for i := uint16(0); i < 32; i++ {
		p.WriteVRAM(addr.TileMap1+i, 2)
	}

	tick(p, (80+4)/4)
	assert.Equal(t, uint8(1), p.Framebuffer().GetPixel(0, 0))
	assert.Equal(t, uint8(3), p.Framebuffer().GetPixel(80, 0))
	assert.Equal(t, uint8(3), p.Framebuffer().GetPixel(159, 0))
}
