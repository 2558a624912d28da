package scene

import (
	"github.com/gdamore/tcell/v2"

	"github.com/emberhollow/vigil/game"
)

// Scene is one renderable stage of the game. Enter and Exit fire exactly
// once per activation, bracketing the scene's ownership of its local
// animation state
type Scene interface {
	Name() string
	Enter()
	Exit()
	Update(dt float64)
	Draw(screen tcell.Screen)
}

// Registry maps phases to their scenes. Unmapped phases fall back to a
// default so a server-added phase degrades instead of blanking the view
type Registry struct {
	scenes   map[game.Phase]Scene
	fallback Scene
}

// NewRegistry creates a registry with the given fallback scene
func NewRegistry(fallback Scene) *Registry {
	return &Registry{
		scenes:   make(map[game.Phase]Scene),
		fallback: fallback,
	}
}

// Register binds a phase to a scene
func (r *Registry) Register(phase game.Phase, s Scene) {
	r.scenes[phase] = s
}

// Get returns the scene for a phase, or the fallback
func (r *Registry) Get(phase game.Phase) Scene {
	if s, ok := r.scenes[phase]; ok {
		return s
	}
	return r.fallback
}

// Director glues the model's phase to the transition sequencer: each
// frame it checks for a phase change, switches scenes accordingly, and
// delegates update/draw. It is the render loop's frame target
type Director struct {
	model     *game.Model
	registry  *Registry
	sequencer *Sequencer
	phase     game.Phase
	started   bool
}

// NewDirector creates a director over the model and registry
func NewDirector(model *game.Model, registry *Registry, sequencer *Sequencer) *Director {
	return &Director{
		model:     model,
		registry:  registry,
		sequencer: sequencer,
	}
}

// Update advances the active scene, switching first on a phase change
func (d *Director) Update(dt float64) {
	phase := d.model.Snapshot().Phase
	if !d.started {
		d.started = true
		d.phase = phase
		d.sequencer.Start(d.registry.Get(phase))
	} else if phase != d.phase {
		d.phase = phase
		d.sequencer.SwitchTo(d.registry.Get(phase))
	}
	d.sequencer.Update(dt)
}

// Draw renders the active scene and any transition veil
func (d *Director) Draw(screen tcell.Screen) {
	d.sequencer.Draw(screen)
}
