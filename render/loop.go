package render

import (
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"
)

// Target is whatever the loop drives each frame. In the wired client this
// is the scene transition sequencer, which delegates to the active scene
type Target interface {
	Update(dt float64)
	Draw(screen tcell.Screen)
}

// Loop drives update/draw on a fixed frame interval. Strictly cooperative:
// one tick in, one frame out; it never awaits network or audio work.
// The elapsed time fed to Update is clamped so a suspended terminal does
// not trigger a burst of simulated catch-up time
type Loop struct {
	screen   tcell.Screen
	target   Target
	interval time.Duration
	maxDelta time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewLoop creates a render loop over the given screen and frame target
func NewLoop(screen tcell.Screen, target Target, interval, maxDelta time.Duration, log *zap.Logger) *Loop {
	return &Loop{
		screen:   screen,
		target:   target,
		interval: interval,
		maxDelta: maxDelta,
		log:      log,
	}
}

// Start begins the per-frame callback. No-op if already running
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go l.run(l.stop, l.done)
}

// Stop halts the loop and waits for the in-flight frame to finish
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	stop, done := l.stop, l.done
	l.mu.Unlock()

	close(stop)
	<-done
}

func (l *Loop) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			if elapsed > l.maxDelta {
				l.log.Debug("frame delta clamped", zap.Duration("elapsed", elapsed))
				elapsed = l.maxDelta
			}
			l.frame(elapsed.Seconds())
		}
	}
}

func (l *Loop) frame(dt float64) {
	l.screen.Clear()
	l.target.Update(dt)
	l.target.Draw(l.screen)
	l.screen.Show()
}
