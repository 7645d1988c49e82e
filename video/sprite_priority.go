package video

// spritePriorityBuffer resolves which sprite owns each pixel of the
// current scan-line. On DMG hardware a pixel goes to the candidate
// with the smallest X coordinate; ties go to the lower OAM index.
type spritePriorityBuffer struct {
	owner [FramebufferWidth]int
	x     [FramebufferWidth]int
}

func (b *spritePriorityBuffer) Clear() {
	for i := range b.owner {
		b.owner[i] = -1
	}
}

// TryClaimPixel records the sprite as the pixel's owner if it beats
// the current claimant under the X-then-OAM-order rule.
func (b *spritePriorityBuffer) TryClaimPixel(bufferX, sprite, spriteX int) {
	if bufferX < 0 || bufferX >= FramebufferWidth {
		return
	}
	current := b.owner[bufferX]
	if current == -1 || spriteX < b.x[bufferX] || (spriteX == b.x[bufferX] && sprite < current) {
		b.owner[bufferX] = sprite
		b.x[bufferX] = spriteX
	}
}

// GetOwner returns the owning sprite index for a pixel, or -1.
func (b *spritePriorityBuffer) GetOwner(bufferX int) int {
	if bufferX < 0 || bufferX >= FramebufferWidth {
		return -1
	}
	return b.owner[bufferX]
}
