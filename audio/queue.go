package audio

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Backend plays one audio resource at a time. Play must schedule work
// asynchronously and invoke done exactly once when playback finishes or
// fails; it must never call done synchronously from Play itself.
// Implementations: the beep speaker backend, and a silent stub when no
// audio device is available
type Backend interface {
	Play(ref string, volume float64, fadeIn time.Duration, done func(error))
	Stop(fadeOut time.Duration)
	SetVolume(v float64)
}

// Queue holds pending audio-segment references and plays at most one at
// a time. The backlog is bounded: when full, the oldest queued item is
// dropped, never the one currently playing
type Queue struct {
	mu      sync.Mutex
	backend Backend
	log     *zap.Logger

	max     int
	volume  float64
	fadeIn  time.Duration
	fadeOut time.Duration

	pending []string
	playing bool
	current string

	// Generation token: bumped on every start and stop so a done
	// callback from a superseded playback cannot advance the queue
	gen uint64
}

// NewQueue creates a playback queue over the given backend
func NewQueue(backend Backend, max int, volume float64, fadeIn, fadeOut time.Duration, log *zap.Logger) *Queue {
	if max < 1 {
		max = 1
	}
	return &Queue{
		backend: backend,
		log:     log,
		max:     max,
		volume:  clampVolume(volume),
		fadeIn:  fadeIn,
		fadeOut: fadeOut,
	}
}

// Enqueue appends a reference and starts playback if idle
func (q *Queue) Enqueue(ref string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.playing {
		q.startLocked(ref)
		return
	}
	if len(q.pending) >= q.max {
		dropped := q.pending[0]
		q.pending = q.pending[1:]
		q.log.Warn("audio backlog full, dropping oldest", zap.String("ref", dropped))
	}
	q.pending = append(q.pending, ref)
}

// Stop clears the queue and fades out the currently playing item.
// Afterwards nothing is playing and nothing is queued
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = nil
	if q.playing {
		q.gen++
		q.playing = false
		q.current = ""
		q.backend.Stop(q.fadeOut)
	}
}

// ClearQueue drops pending items but lets the current one finish
// naturally. Used on soft phase changes where an abrupt cut would jar
func (q *Queue) ClearQueue() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
}

// SetVolume clamps to [0,1] and applies immediately to the playing item
// and to everything played afterwards
func (q *Queue) SetVolume(v float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.volume = clampVolume(v)
	q.backend.SetVolume(q.volume)
}

// Playing returns the currently audible reference, if any
func (q *Queue) Playing() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current, q.playing
}

// Pending returns the queued backlog length
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) startLocked(ref string) {
	q.gen++
	gen := q.gen
	q.playing = true
	q.current = ref
	q.backend.Play(ref, q.volume, q.fadeIn, func(err error) {
		q.finished(gen, ref, err)
	})
}

// finished advances the queue when a playback completes. A failed item
// counts as finished so one bad reference never stalls the queue
func (q *Queue) finished(gen uint64, ref string, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if gen != q.gen {
		// Superseded by a stop or a newer start
		return
	}
	if err != nil {
		q.log.Warn("playback failed, advancing", zap.String("ref", ref), zap.Error(err))
	}

	q.playing = false
	q.current = ""
	if len(q.pending) > 0 {
		next := q.pending[0]
		q.pending = q.pending[1:]
		q.startLocked(next)
	}
}

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
