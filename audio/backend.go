package audio

import (
	"bytes"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/wav"
	"github.com/pkg/errors"
)

const backendSampleRate = beep.SampleRate(44100)

// SpeakerBackend plays remote audio resources through the beep speaker.
// One resource plays at a time; starting a new one replaces the old
type SpeakerBackend struct {
	mu    sync.Mutex
	fetch func(ref string) (beep.Streamer, beep.Format, error)

	ctrl  *beep.Ctrl
	fader *fader
	vol   *effects.Volume

	// Generation token: bumped by Play and Stop so a fetch still in
	// flight when its playback is superseded cannot install itself
	gen uint64
}

// NewSpeakerBackend initializes the speaker. Returns an error when no
// audio device is available; callers fall back to the silent backend
func NewSpeakerBackend() (*SpeakerBackend, error) {
	if err := speaker.Init(backendSampleRate, backendSampleRate.N(100*time.Millisecond)); err != nil {
		return nil, errors.Wrap(err, "init speaker")
	}
	return &SpeakerBackend{fetch: fetchRef}, nil
}

// Play fetches and decodes ref, then streams it with a gain ramp from
// silence up to the requested volume. done fires once on completion or
// failure, never synchronously. The previous playback is replaced
// before the fetch starts; a fetch whose generation has been superseded
// by a later Play or Stop is discarded instead of installed
func (b *SpeakerBackend) Play(ref string, volume float64, fadeIn time.Duration, done func(error)) {
	b.mu.Lock()
	b.gen++
	gen := b.gen
	if b.ctrl != nil {
		speaker.Lock()
		b.ctrl.Paused = true
		speaker.Unlock()
		b.ctrl = nil
		b.fader = nil
		b.vol = nil
	}
	b.mu.Unlock()

	go func() {
		stream, format, err := b.fetch(ref)
		if err != nil {
			done(errors.Wrapf(err, "fetch %q", ref))
			return
		}

		var s beep.Streamer = stream
		if format.SampleRate != backendSampleRate {
			s = beep.Resample(4, format.SampleRate, backendSampleRate, stream)
		}

		f := newFader(s, backendSampleRate.N(fadeIn))
		v := &effects.Volume{Streamer: f, Base: 10, Volume: gainFor(volume), Silent: volume == 0}

		b.mu.Lock()
		if gen != b.gen {
			b.mu.Unlock()
			done(errors.Errorf("playback of %q superseded", ref))
			return
		}
		ctrl := &beep.Ctrl{Streamer: beep.Seq(v, beep.Callback(func() { done(nil) }))}
		b.ctrl = ctrl
		b.fader = f
		b.vol = v
		b.mu.Unlock()

		speaker.Play(ctrl)
	}()
}

// Stop ramps the current playback down to silence over fadeOut; the
// drained streamer then ends on its own. Bumping the generation also
// invalidates any fetch still in flight
func (b *SpeakerBackend) Stop(fadeOut time.Duration) {
	b.mu.Lock()
	b.gen++
	f := b.fader
	b.ctrl = nil
	b.fader = nil
	b.vol = nil
	b.mu.Unlock()

	if f == nil {
		return
	}
	speaker.Lock()
	f.fadeTo(0, backendSampleRate.N(fadeOut))
	f.endOnSilence = true
	speaker.Unlock()
}

// SetVolume applies the master volume to the current playback
func (b *SpeakerBackend) SetVolume(v float64) {
	b.mu.Lock()
	vol := b.vol
	b.mu.Unlock()

	if vol == nil {
		return
	}
	speaker.Lock()
	vol.Volume = gainFor(v)
	vol.Silent = v == 0
	speaker.Unlock()
}

// gainFor maps linear volume [0,1] onto the exponential scale used by
// effects.Volume (base 10)
func gainFor(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Log10(v)
}

// fetchRef downloads an opaque audio locator and decodes it by suffix.
// The locator is never interpreted beyond picking a decoder
func fetchRef(ref string) (beep.Streamer, beep.Format, error) {
	resp, err := http.Get(ref)
	if err != nil {
		return nil, beep.Format{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, beep.Format{}, errors.Errorf("fetch %q: status %d", ref, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, beep.Format{}, err
	}

	if strings.HasSuffix(strings.ToLower(ref), ".wav") {
		return decodeWAV(data)
	}
	return decodeMP3(data)
}

func decodeMP3(data []byte) (beep.Streamer, beep.Format, error) {
	s, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	return s, format, err
}

func decodeWAV(data []byte) (beep.Streamer, beep.Format, error) {
	s, format, err := wav.Decode(bytes.NewReader(data))
	return s, format, err
}

// fader multiplies samples by a gain that ramps linearly toward a target
// over a fixed number of samples. With endOnSilence set, a fully faded
// stream reports completion so the queue can release it
type fader struct {
	s            beep.Streamer
	gain         float64
	target       float64
	step         float64
	endOnSilence bool
}

// newFader starts silent and ramps up to full gain over rampSamples
func newFader(s beep.Streamer, rampSamples int) *fader {
	f := &fader{s: s, gain: 0, target: 1}
	if rampSamples <= 0 {
		f.gain = 1
		return f
	}
	f.step = 1 / float64(rampSamples)
	return f
}

// fadeTo redirects the ramp. Callers must hold the speaker lock
func (f *fader) fadeTo(target float64, rampSamples int) {
	f.target = target
	if rampSamples <= 0 {
		f.gain = target
		f.step = 0
		return
	}
	f.step = math.Abs(f.gain-target) / float64(rampSamples)
}

func (f *fader) Stream(samples [][2]float64) (int, bool) {
	if f.endOnSilence && f.gain == 0 && f.target == 0 {
		return 0, false
	}
	n, ok := f.s.Stream(samples)
	for i := 0; i < n; i++ {
		samples[i][0] *= f.gain
		samples[i][1] *= f.gain
		if f.gain < f.target {
			f.gain = math.Min(f.gain+f.step, f.target)
		} else if f.gain > f.target {
			f.gain = math.Max(f.gain-f.step, f.target)
		}
	}
	return n, ok
}

func (f *fader) Err() error { return f.s.Err() }

// NopBackend discards playback instantly but still reports completion,
// keeping queue semantics intact when audio is muted or unavailable
type NopBackend struct{}

// Play reports immediate completion on a fresh goroutine
func (NopBackend) Play(_ string, _ float64, _ time.Duration, done func(error)) {
	go done(nil)
}

// Stop is a no-op
func (NopBackend) Stop(time.Duration) {}

// SetVolume is a no-op
func (NopBackend) SetVolume(float64) {}
