package scene

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/emberhollow/vigil/game"
	"github.com/emberhollow/vigil/particle"
	"github.com/emberhollow/vigil/render"
)

// WorldWidth and WorldHeight are the village dimensions in world cells
const (
	WorldWidth  = 160
	WorldHeight = 48
)

// participantStyles cycles stable colors by the model-assigned index
var participantStyles = []tcell.Color{
	tcell.ColorGreen, tcell.ColorAqua, tcell.ColorYellow, tcell.ColorFuchsia,
	tcell.ColorBlue, tcell.ColorRed, tcell.ColorLime, tcell.ColorSilver,
}

// baseScene carries what every stage needs: the model snapshot source,
// the camera, and the shared transcript/roster/notice chrome
type baseScene struct {
	name     string
	model    *game.Model
	camera   *render.Camera
	emitters []*particle.Emitter
	emitX    float64
	emitY    float64
}

func (b *baseScene) Name() string { return b.name }

func (b *baseScene) Enter() {
	for _, e := range b.emitters {
		e.Reset()
	}
	b.camera.Follow(WorldWidth/2, WorldHeight/2)
	b.camera.SnapToTarget()
}

func (b *baseScene) Exit() {}

func (b *baseScene) Update(dt float64) {
	for _, e := range b.emitters {
		// Scenes keep the pool topped up every frame
		e.Emit(b.emitX, b.emitY)
		e.Update(dt)
	}
	b.camera.Update(dt)
}

func (b *baseScene) Draw(screen tcell.Screen) {
	snap := b.model.Snapshot()
	b.drawParticles(screen)
	b.drawRoster(screen, snap)
	b.drawTranscript(screen, snap)
	b.drawStatus(screen, snap)
}

func (b *baseScene) drawParticles(screen tcell.Screen) {
	style := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	for _, e := range b.emitters {
		for _, p := range e.Particles() {
			if !b.camera.IsVisible(render.Rect{X: p.X, Y: p.Y, W: 1, H: 1}) {
				continue
			}
			sx, sy := b.camera.WorldToScreen(p.X, p.Y)
			screen.SetContent(int(sx), int(sy), p.Glyph, nil, style)
		}
	}
}

func (b *baseScene) drawRoster(screen tcell.Screen, snap game.Snapshot) {
	for i, p := range snap.Participants {
		style := tcell.StyleDefault.Foreground(participantStyles[p.ColorIndex%len(participantStyles)])
		marker := '●'
		if !p.Alive {
			marker = '✝'
			style = style.Dim(true)
		}
		line := fmt.Sprintf("%c %s", marker, p.Name)
		if len(p.Effects) > 0 {
			line += fmt.Sprintf(" (%d)", len(p.Effects))
		}
		drawText(screen, 1, 1+i, line, style)
	}
}

func (b *baseScene) drawTranscript(screen tcell.Screen, snap game.Snapshot) {
	w, h := screen.Size()
	x := w / 3
	y := h - 10
	drawText(screen, x, y-1, fmt.Sprintf("— %s —", snap.Selected), tcell.StyleDefault.Dim(true))

	start := 0
	if n := len(snap.Transcript); n > 8 {
		start = n - 8
	}
	for i, e := range snap.Transcript[start:] {
		style := tcell.StyleDefault
		if e.AudioRef != "" && !e.Played {
			style = style.Bold(true)
		}
		drawText(screen, x, y+i, fmt.Sprintf("%s: %s", e.Speaker, e.Content), style)
	}
}

func (b *baseScene) drawStatus(screen tcell.Screen, snap game.Snapshot) {
	w, _ := screen.Size()
	status := fmt.Sprintf("%s · round %d", snap.Phase, snap.Round)
	if !snap.Connected {
		status += fmt.Sprintf(" · reconnecting (%d)", snap.RetryCount)
	}
	drawText(screen, 1, 0, status, tcell.StyleDefault.Dim(true))

	for i, n := range snap.Notices {
		drawText(screen, w-len(n.Text)-1, 1+i, n.Text, tcell.StyleDefault.Foreground(tcell.ColorYellow))
	}
	if snap.TerminalNotice != "" {
		drawText(screen, w/2-len(snap.TerminalNotice)/2, 0, snap.TerminalNotice,
			tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true))
	}
}

func drawText(screen tcell.Screen, x, y int, text string, style tcell.Style) {
	for i, r := range []rune(text) {
		screen.SetContent(x+i, y, r, nil, style)
	}
}

// CampfireScene is the shared-circle stage: fire and sparks at center
type CampfireScene struct {
	baseScene
}

// NewCampfireScene builds the campfire stage
func NewCampfireScene(model *game.Model, camera *render.Camera) *CampfireScene {
	return &CampfireScene{baseScene{
		name:   "campfire",
		model:  model,
		camera: camera,
		emitters: []*particle.Emitter{
			particle.NewEmitter(particle.TypeFire, 1),
			particle.NewEmitter(particle.TypeSparks, 2),
		},
		emitX: WorldWidth / 2,
		emitY: WorldHeight / 2,
	}}
}

// NightScene is the dark stage: stars and the occasional owl
type NightScene struct {
	baseScene
}

// NewNightScene builds the night stage
func NewNightScene(model *game.Model, camera *render.Camera) *NightScene {
	return &NightScene{baseScene{
		name:   "night",
		model:  model,
		camera: camera,
		emitters: []*particle.Emitter{
			particle.NewEmitter(particle.TypeStars, 3),
			particle.NewEmitter(particle.TypeOwls, 4),
		},
		emitX: WorldWidth / 2,
		emitY: 6,
	}}
}

// DayScene is the open-village stage with drifting motes
type DayScene struct {
	baseScene
}

// NewDayScene builds a daylight stage under the given name; morning,
// day and houses share the profile
func NewDayScene(name string, model *game.Model, camera *render.Camera) *DayScene {
	return &DayScene{baseScene{
		name:   name,
		model:  model,
		camera: camera,
		emitters: []*particle.Emitter{
			particle.NewEmitter(particle.TypeMotes, 5),
		},
		emitX: WorldWidth / 2,
		emitY: WorldHeight / 3,
	}}
}

// VoteScene renders the tally on top of the day chrome
type VoteScene struct {
	baseScene
}

// NewVoteScene builds the voting stage
func NewVoteScene(model *game.Model, camera *render.Camera) *VoteScene {
	return &VoteScene{baseScene{
		name:   "vote",
		model:  model,
		camera: camera,
		emitters: []*particle.Emitter{
			particle.NewEmitter(particle.TypeSparks, 6),
		},
		emitX: WorldWidth / 2,
		emitY: WorldHeight / 2,
	}}
}

func (v *VoteScene) Draw(screen tcell.Screen) {
	v.baseScene.Draw(screen)
	snap := v.model.Snapshot()

	tally := make(map[string]int)
	for _, target := range snap.Votes {
		tally[target]++
	}
	w, _ := screen.Size()
	row := 1
	drawText(screen, w/2-4, row, "— tally —", tcell.StyleDefault.Bold(true))
	for _, p := range snap.Participants {
		if n := tally[p.ID]; n > 0 {
			row++
			drawText(screen, w/2-4, row, fmt.Sprintf("%s: %d", p.Name, n), tcell.StyleDefault)
		}
	}
}

// ExileScene shows the outcome of the vote
type ExileScene struct {
	baseScene
}

// NewExileScene builds the exile stage
func NewExileScene(model *game.Model, camera *render.Camera) *ExileScene {
	return &ExileScene{baseScene{
		name:   "exile",
		model:  model,
		camera: camera,
		emitters: []*particle.Emitter{
			particle.NewEmitter(particle.TypeMotes, 7),
		},
		emitX: WorldWidth / 2,
		emitY: WorldHeight / 2,
	}}
}

func (e *ExileScene) Draw(screen tcell.Screen) {
	e.baseScene.Draw(screen)
	snap := e.model.Snapshot()
	if snap.LastOutcome == "" {
		return
	}
	w, h := screen.Size()
	msg := fmt.Sprintf("the village has exiled %s", snap.LastOutcome)
	drawText(screen, w/2-len(msg)/2, h/2, msg, tcell.StyleDefault.Bold(true))
}

// GameOverScene announces the winner
type GameOverScene struct {
	baseScene
}

// NewGameOverScene builds the end-of-match stage
func NewGameOverScene(model *game.Model, camera *render.Camera) *GameOverScene {
	return &GameOverScene{baseScene{
		name:   "game_over",
		model:  model,
		camera: camera,
		emitters: []*particle.Emitter{
			particle.NewEmitter(particle.TypeStars, 8),
		},
		emitX: WorldWidth / 2,
		emitY: WorldHeight / 3,
	}}
}

func (g *GameOverScene) Draw(screen tcell.Screen) {
	g.baseScene.Draw(screen)
	snap := g.model.Snapshot()
	w, h := screen.Size()
	msg := "the game is over"
	if snap.Winner != "" {
		msg = fmt.Sprintf("victory: %s", snap.Winner)
	}
	drawText(screen, w/2-len(msg)/2, h/2, msg, tcell.StyleDefault.Bold(true))
}

// BuildRegistry wires every phase to its stage
func BuildRegistry(model *game.Model, camera *render.Camera) *Registry {
	lobby := NewDayScene("lobby", model, camera)
	reg := NewRegistry(lobby)
	reg.Register(game.PhaseLobby, lobby)
	reg.Register(game.PhaseMorning, NewDayScene("morning", model, camera))
	reg.Register(game.PhaseCampfire, NewCampfireScene(model, camera))
	reg.Register(game.PhaseDay, NewDayScene("day", model, camera))
	reg.Register(game.PhaseHouses, NewDayScene("houses", model, camera))
	reg.Register(game.PhaseVote, NewVoteScene(model, camera))
	reg.Register(game.PhaseNight, NewNightScene(model, camera))
	reg.Register(game.PhaseExile, NewExileScene(model, camera))
	reg.Register(game.PhaseGameOver, NewGameOverScene(model, camera))
	return reg
}
