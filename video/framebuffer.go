package video

const (
	FramebufferWidth  = 160
	FramebufferHeight = 144
	FramebufferSize   = FramebufferWidth * FramebufferHeight
)

// FrameBuffer is the 160x144 output surface. Each pixel holds a shade
// index 0-3 (0 lightest), already passed through the relevant palette.
type FrameBuffer struct {
	buffer []uint8
}

func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{
		buffer: make([]uint8, FramebufferSize),
	}
}

func (fb *FrameBuffer) GetPixel(x, y int) uint8 {
	return fb.buffer[y*FramebufferWidth+x]
}

func (fb *FrameBuffer) SetPixel(x, y int, shade uint8) {
	fb.buffer[y*FramebufferWidth+x] = shade
}

// ToSlice returns the backing pixel slice. Callers must not read it
// while the emulator is stepping.
func (fb *FrameBuffer) ToSlice() []uint8 {
	return fb.buffer
}

// Clear resets every pixel to shade 0.
func (fb *FrameBuffer) Clear() {
	for i := range fb.buffer {
		fb.buffer[i] = 0
	}
}
