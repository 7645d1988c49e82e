package video

import (
	"dotmatrix/addr"
	"dotmatrix/bit"
)

// renderScanline draws one line of background, window and sprites
// into the framebuffer. It runs once at the start of pixel transfer.
func (p *PPU) renderScanline() {
	if int(p.ly) >= FramebufferHeight {
		return
	}

	p.drawBackground()
	p.drawWindow()
	p.drawSprites()
}

// tileRowAddr resolves the VRAM address of a tile's row of pixel data
// under the LCDC tile-data addressing mode.
func (p *PPU) tileRowAddr(tileValue byte, rowOffset int) uint16 {
	if bit.IsSet(lcdcTileDataSelect, p.lcdc) {
		// unsigned addressing from 0x8000, tiles 0-255
		return addr.TileData0 + uint16(int(tileValue)*16+rowOffset)
	}
	// signed addressing around 0x9000, tiles -128 to 127
	return uint16(int(addr.TileData2) + int(int8(tileValue))*16 + rowOffset)
}

func (p *PPU) shadeFor(palette byte, pixel uint8) uint8 {
	return (palette >> (pixel * 2)) & 0x03
}

// tilePixel extracts the 2-bit color index at the given X offset
// (0 = leftmost) from a pair of tile data bytes.
func tilePixel(low, high byte, x int) uint8 {
	index := uint8(7 - x)
	pixel := uint8(0)
	if bit.IsSet(index, low) {
		pixel |= 1
	}
	if bit.IsSet(index, high) {
		pixel |= 2
	}
	return pixel
}

func (p *PPU) drawBackground() {
	line := int(p.ly)

	if !bit.IsSet(lcdcBGDisplay, p.lcdc) {
		// Background disabled: the line shows color 0 of BGP.
		shade := p.shadeFor(p.bgp, 0)
		for x := 0; x < FramebufferWidth; x++ {
			p.framebuffer.SetPixel(x, line, shade)
			p.bgLineIndices[x] = 0
		}
		return
	}

	tileMap := addr.TileMap0
	if bit.IsSet(lcdcBGTileMap, p.lcdc) {
		tileMap = addr.TileMap1
	}

	// Y coordinate wraps at 256.
	mapY := (line + int(p.scy)) & 0xFF
	mapRow := (mapY / 8) * 32
	rowOffset := (mapY % 8) * 2

	for x := 0; x < FramebufferWidth; x++ {
		mapX := (x + int(p.scx)) & 0xFF
		tileValue := p.ReadVRAM(tileMap + uint16(mapRow+mapX/8))

		rowAddr := p.tileRowAddr(tileValue, rowOffset)
		low := p.ReadVRAM(rowAddr)
		high := p.ReadVRAM(rowAddr + 1)

		pixel := tilePixel(low, high, mapX%8)
		p.framebuffer.SetPixel(x, line, p.shadeFor(p.bgp, pixel))
		p.bgLineIndices[x] = pixel
	}
}

func (p *PPU) drawWindow() {
	if !bit.IsSet(lcdcWindowEnable, p.lcdc) {
		return
	}

	line := int(p.ly)
	wx := int(p.wx) - 7
	if int(p.wy) > line || wx >= FramebufferWidth || p.windowLine >= FramebufferHeight {
		return
	}

	tileMap := addr.TileMap0
	if bit.IsSet(lcdcWindowTileMap, p.lcdc) {
		tileMap = addr.TileMap1
	}

	mapRow := (p.windowLine / 8) * 32
	rowOffset := (p.windowLine % 8) * 2

	for x := 0; x < FramebufferWidth; x++ {
		if x < wx {
			continue
		}
		windowX := x - wx
		tileValue := p.ReadVRAM(tileMap + uint16(mapRow+windowX/8))

		rowAddr := p.tileRowAddr(tileValue, rowOffset)
		low := p.ReadVRAM(rowAddr)
		high := p.ReadVRAM(rowAddr + 1)

		pixel := tilePixel(low, high, windowX%8)
		p.framebuffer.SetPixel(x, line, p.shadeFor(p.bgp, pixel))
		p.bgLineIndices[x] = pixel
	}
	p.windowLine++
}

func (p *PPU) drawSprites() {
	if !bit.IsSet(lcdcSpriteEnable, p.lcdc) {
		return
	}

	line := int(p.ly)
	spriteHeight := 8
	if bit.IsSet(lcdcSpriteSize, p.lcdc) {
		spriteHeight = 16
	}

	// OAM selection: the PPU scans sprites in OAM order comparing LY
	// against Y, keeping at most 10 per line. X plays no part in
	// selection, only in pixel priority.
	var selected []int
	for sprite := 0; sprite < 40; sprite++ {
		spriteY := int(p.oam[sprite*4]) - 16
		if spriteY > line || spriteY+spriteHeight <= line {
			continue
		}
		selected = append(selected, sprite)
		if len(selected) == 10 {
			break
		}
	}

	p.spritePriority.Clear()
	for _, sprite := range selected {
		spriteX := int(p.oam[sprite*4+1]) - 8
		for offset := 0; offset < 8; offset++ {
			p.spritePriority.TryClaimPixel(spriteX+offset, sprite, spriteX)
		}
	}

	for _, sprite := range selected {
		base := sprite * 4
		spriteY := int(p.oam[base]) - 16
		spriteX := int(p.oam[base+1]) - 8
		tile := p.oam[base+2]
		flags := p.oam[base+3]

		palette := p.obp0
		if bit.IsSet(4, flags) {
			palette = p.obp1
		}
		flipX := bit.IsSet(5, flags)
		flipY := bit.IsSet(6, flags)
		aboveBG := !bit.IsSet(7, flags)

		rowY := line - spriteY
		if flipY {
			rowY = spriteHeight - 1 - rowY
		}
		if spriteHeight == 16 {
			// 8x16 sprites ignore bit 0 of the tile index.
			tile &= 0xFE
		}

		// Sprites always use unsigned addressing from 0x8000.
		rowAddr := addr.TileData0 + uint16(int(tile)*16+rowY*2)
		low := p.ReadVRAM(rowAddr)
		high := p.ReadVRAM(rowAddr + 1)

		for px := 0; px < 8; px++ {
			bufferX := spriteX + px
			if bufferX < 0 || bufferX >= FramebufferWidth {
				continue
			}
			if p.spritePriority.GetOwner(bufferX) != sprite {
				continue
			}

			column := px
			if flipX {
				column = 7 - px
			}
			pixel := tilePixel(low, high, column)
			if pixel == 0 {
				// color 0 is transparent for sprites
				continue
			}
			if !aboveBG && p.bgLineIndices[bufferX] != 0 {
				continue
			}
			p.framebuffer.SetPixel(bufferX, line, p.shadeFor(palette, pixel))
		}
	}
}
