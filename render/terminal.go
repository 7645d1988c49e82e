// Package render provides the terminal front-end for the engine.
package render

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"

	"dotmatrix"
	"dotmatrix/video"
)

const (
	frameTime = time.Second / 60

	// keys stay pressed for this many frames after the keystroke;
	// terminals deliver no release events.
	holdFrames = 6
)

// shadeRunes maps framebuffer shade indices (0 lightest) to glyphs.
var shadeRunes = [4]rune{' ', '░', '▒', '█'}

// TerminalRenderer drives the emulator and draws its framebuffer into
// a tcell screen, two scan-lines per character cell, each cell showing
// the shade glyph of the darker of its two pixels.
type TerminalRenderer struct {
	screen tcell.Screen
	emu    *dotmatrix.Emu
	held   map[dotmatrix.Button]int
}

func NewTerminalRenderer(emu *dotmatrix.Emu) (*TerminalRenderer, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %w", err)
	}

	return &TerminalRenderer{
		screen: screen,
		emu:    emu,
		held:   map[dotmatrix.Button]int{},
	}, nil
}

// Run executes the frame loop until the user quits or the engine
// stops with an error.
func (r *TerminalRenderer) Run() error {
	defer r.screen.Fini()

	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	go r.screen.ChannelEvents(events, quit)

	ticker := time.NewTicker(frameTime)
	defer ticker.Stop()

	for {
		select {
		case ev := <-events:
			if done := r.handleEvent(ev); done {
				close(quit)
				return nil
			}
		case <-ticker.C:
			if err := r.emu.RunFrame(); err != nil {
				close(quit)
				return err
			}
			r.releaseExpired()
			r.draw()
		}
	}
}

func (r *TerminalRenderer) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		r.screen.Sync()
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return true
		case tcell.KeyUp:
			r.press(dotmatrix.ButtonUp)
		case tcell.KeyDown:
			r.press(dotmatrix.ButtonDown)
		case tcell.KeyLeft:
			r.press(dotmatrix.ButtonLeft)
		case tcell.KeyRight:
			r.press(dotmatrix.ButtonRight)
		case tcell.KeyEnter:
			r.press(dotmatrix.ButtonStart)
		case tcell.KeyBackspace, tcell.KeyBackspace2:
			r.press(dotmatrix.ButtonSelect)
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'z', 'Z':
				r.press(dotmatrix.ButtonA)
			case 'x', 'X':
				r.press(dotmatrix.ButtonB)
			}
		}
	}
	return false
}

func (r *TerminalRenderer) press(button dotmatrix.Button) {
	if r.held[button] == 0 {
		r.emu.SetButton(button, true)
	}
	r.held[button] = holdFrames
}

func (r *TerminalRenderer) releaseExpired() {
	for button, frames := range r.held {
		if frames <= 1 {
			r.emu.SetButton(button, false)
			delete(r.held, button)
			continue
		}
		r.held[button] = frames - 1
	}
}

func (r *TerminalRenderer) draw() {
	frame := r.emu.Framebuffer()
	style := tcell.StyleDefault

	// two scan-lines per text row
	for y := 0; y < video.FramebufferHeight; y += 2 {
		for x := 0; x < video.FramebufferWidth; x++ {
			top := frame[y*video.FramebufferWidth+x]
			bottom := top
			if y+1 < video.FramebufferHeight {
				bottom = frame[(y+1)*video.FramebufferWidth+x]
			}
			// approximate the pair with the darker shade's glyph
			shade := top
			if bottom > shade {
				shade = bottom
			}
			r.screen.SetContent(x, y/2, shadeRunes[shade], nil, style)
		}
	}
	r.screen.Show()
}

// RunHeadless drives the engine for a fixed machine-cycle budget with
// periodic progress logging, used by the CLI's headless mode.
func RunHeadless(emu *dotmatrix.Emu, cycles uint64) error {
	const logEvery = 600 // frames

	frames := uint64(0)
	for emu.Clock() < cycles {
		if err := emu.RunFrame(); err != nil {
			return err
		}
		frames++
		if frames%logEvery == 0 {
			slog.Info("Headless progress", "frames", frames, "mcycles", emu.Clock())
		}
	}
	return nil
}
