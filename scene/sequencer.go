package scene

import (
	"github.com/gdamore/tcell/v2"
)

// transitionSpeed is progress units per second; a full fade covers the
// 0..2 range, so one transition lasts 2/transitionSpeed seconds
const transitionSpeed = 2.5

// Sequencer drives the two-phase scene transition: the veil fades to
// opaque (progress 0..1), the scene swaps exactly at 1, and the veil
// fades back out (1..2). Transitions never overlap: a new SwitchTo
// force-completes the one in flight
type Sequencer struct {
	active        Scene
	incoming      Scene
	progress      float64
	transitioning bool
	swapped       bool
}

// NewSequencer creates an idle sequencer with no active scene
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Start activates the first scene without a transition
func (s *Sequencer) Start(first Scene) {
	if s.active != nil {
		s.SwitchTo(first)
		return
	}
	s.active = first
	s.active.Enter()
}

// Active returns the scene currently being driven
func (s *Sequencer) Active() Scene {
	return s.active
}

// Transitioning reports whether a fade is in flight
func (s *Sequencer) Transitioning() bool {
	return s.transitioning
}

// SwitchTo begins a transition to next. An in-flight transition is
// forced to completion first, so exit/enter hooks always run exactly
// once per swap and never interleave
func (s *Sequencer) SwitchTo(next Scene) {
	if s.transitioning {
		s.forceComplete()
	}
	if next == s.active {
		return
	}
	s.incoming = next
	s.progress = 0
	s.swapped = false
	s.transitioning = true
}

// forceComplete finishes the current transition instantly: swap if it
// has not happened yet, then reset to idle
func (s *Sequencer) forceComplete() {
	if !s.swapped {
		s.swap()
	}
	s.progress = 0
	s.incoming = nil
	s.transitioning = false
}

func (s *Sequencer) swap() {
	if s.active != nil {
		s.active.Exit()
	}
	s.active = s.incoming
	if s.active != nil {
		s.active.Enter()
	}
	s.swapped = true
}

// Update advances the fade and the active scene
func (s *Sequencer) Update(dt float64) {
	if s.transitioning {
		s.progress += dt * transitionSpeed
		if s.progress >= 1 && !s.swapped {
			s.swap()
		}
		if s.progress >= 2 {
			s.progress = 0
			s.incoming = nil
			s.transitioning = false
		}
	}
	if s.active != nil {
		s.active.Update(dt)
	}
}

// VeilOpacity maps the two-phase progress onto 0..1..0
func (s *Sequencer) VeilOpacity() float64 {
	if !s.transitioning {
		return 0
	}
	if s.progress <= 1 {
		return s.progress
	}
	return 2 - s.progress
}

// Draw renders the active scene, then overlays the veil while fading
func (s *Sequencer) Draw(screen tcell.Screen) {
	if s.active != nil {
		s.active.Draw(screen)
	}
	drawVeil(screen, s.VeilOpacity())
}

// drawVeil covers the viewport with a shade whose density follows the
// opacity. Terminal cells have no alpha, so coverage steps stand in
func drawVeil(screen tcell.Screen, opacity float64) {
	if opacity <= 0.05 {
		return
	}
	var glyph rune
	switch {
	case opacity > 0.75:
		glyph = '█'
	case opacity > 0.5:
		glyph = '▓'
	case opacity > 0.25:
		glyph = '▒'
	default:
		glyph = '░'
	}
	w, h := screen.Size()
	style := tcell.StyleDefault.Foreground(tcell.ColorBlack)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			screen.SetContent(x, y, glyph, nil, style)
		}
	}
}
