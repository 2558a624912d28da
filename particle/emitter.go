package particle

import (
	"math"
	"math/rand"
)

// Type selects an emitter's behavior profile
type Type int

const (
	TypeFire Type = iota
	TypeMotes
	TypeSparks
	TypeOwls
	TypeStars
)

// sizeFloor is the visibility cutoff; particles decaying below it are culled
const sizeFloor = 0.05

// Particle is one simulated element. Purely decorative: nothing in the
// game state machine reads particle data
type Particle struct {
	X, Y   float64
	VX, VY float64
	Life   float64 // Seconds remaining
	Size   float64
	Glyph  rune
	Phase  float64 // Per-particle perturbation offset
}

// profile declares per-type emission rate and pool bound
type profile struct {
	rate    int
	max     int
	minLife float64
	maxLife float64
	glyphs  []rune
}

var profiles = map[Type]profile{
	TypeFire:   {rate: 3, max: 64, minLife: 0.6, maxLife: 1.6, glyphs: []rune("▲^*'")},
	TypeMotes:  {rate: 1, max: 32, minLife: 3.0, maxLife: 8.0, glyphs: []rune("·.˙")},
	TypeSparks: {rate: 2, max: 48, minLife: 0.3, maxLife: 0.9, glyphs: []rune("*+x")},
	TypeOwls:   {rate: 1, max: 4, minLife: 6.0, maxLife: 14.0, glyphs: []rune("vw")},
	TypeStars:  {rate: 1, max: 40, minLife: 4.0, maxLife: 12.0, glyphs: []rune("*·+")},
}

// Emitter maintains a bounded pool of particles of one type. Scenes call
// Emit every frame to keep the pool topped up and Update to advance it
type Emitter struct {
	typ   Type
	prof  profile
	parts []Particle
	rng   *rand.Rand
	time  float64
}

// NewEmitter creates an emitter for the given effect type
func NewEmitter(t Type, seed int64) *Emitter {
	prof := profiles[t]
	return &Emitter{
		typ:   t,
		prof:  prof,
		parts: make([]Particle, 0, prof.max),
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Type returns the emitter's effect type
func (e *Emitter) Type() Type { return e.typ }

// Len returns the live particle count
func (e *Emitter) Len() int { return len(e.parts) }

// Max returns the pool bound
func (e *Emitter) Max() int { return e.prof.max }

// Particles exposes the live pool for drawing
func (e *Emitter) Particles() []Particle { return e.parts }

// Emit adds up to the emitter's rate of new particles around (x, y),
// unless the pool is already full
func (e *Emitter) Emit(x, y float64) {
	for i := 0; i < e.prof.rate; i++ {
		if len(e.parts) >= e.prof.max {
			return
		}
		e.parts = append(e.parts, e.spawn(x, y))
	}
}

func (e *Emitter) spawn(x, y float64) Particle {
	p := Particle{
		X:     x + e.rng.Float64()*4 - 2,
		Y:     y + e.rng.Float64()*2 - 1,
		Life:  e.prof.minLife + e.rng.Float64()*(e.prof.maxLife-e.prof.minLife),
		Size:  1.0,
		Glyph: e.prof.glyphs[e.rng.Intn(len(e.prof.glyphs))],
		Phase: e.rng.Float64() * 2 * math.Pi,
	}
	switch e.typ {
	case TypeFire:
		p.VX = e.rng.Float64()*0.6 - 0.3
		p.VY = -1.5 - e.rng.Float64()
	case TypeMotes:
		p.VX = e.rng.Float64()*0.4 - 0.2
		p.VY = e.rng.Float64()*0.2 - 0.1
	case TypeSparks:
		angle := e.rng.Float64() * 2 * math.Pi
		speed := 2 + e.rng.Float64()*3
		p.VX = math.Cos(angle) * speed
		p.VY = math.Sin(angle)*speed - 1
	case TypeOwls:
		p.VX = 1 + e.rng.Float64()*2
		if e.rng.Intn(2) == 0 {
			p.VX = -p.VX
		}
		p.VY = 0
	case TypeStars:
		// Stars hold position and twinkle in place
	}
	return p
}

// Update advances every particle by dt seconds: integrate velocity,
// decrement life, apply the per-type perturbation, cull the expired and
// the invisible
func (e *Emitter) Update(dt float64) {
	e.time += dt
	alive := e.parts[:0]
	for i := range e.parts {
		p := &e.parts[i]
		p.Life -= dt
		p.X += p.VX * dt
		p.Y += p.VY * dt

		switch e.typ {
		case TypeFire:
			// Horizontal sway and size decay as the flame rises
			p.X += math.Sin(e.time*4+p.Phase) * dt
			p.Size -= 0.5 * dt
		case TypeMotes:
			p.X += math.Sin(e.time+p.Phase) * 0.3 * dt
			p.Y += math.Cos(e.time*0.7+p.Phase) * 0.2 * dt
		case TypeSparks:
			// Gravity pulls sparks back down, brightness decays fast
			p.VY += 4 * dt
			p.Size -= 0.8 * dt
		case TypeOwls:
			// Slow vertical glide oscillation
			p.Y += math.Sin(e.time*0.8+p.Phase) * 0.5 * dt
		case TypeStars:
			// Twinkle: size oscillates, never integrates away
			p.Size = 0.55 + 0.45*math.Sin(e.time*2+p.Phase)
		}

		if p.Life <= 0 {
			continue
		}
		if e.typ != TypeStars && p.Size < sizeFloor {
			continue
		}
		alive = append(alive, *p)
	}
	e.parts = alive
}

// Reset drops the whole pool
func (e *Emitter) Reset() {
	e.parts = e.parts[:0]
}
