package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/emberhollow/vigil/audio"
	"github.com/emberhollow/vigil/config"
	"github.com/emberhollow/vigil/game"
	"github.com/emberhollow/vigil/netclient"
	"github.com/emberhollow/vigil/render"
	"github.com/emberhollow/vigil/scene"
	"github.com/emberhollow/vigil/session"
)

var (
	nameFlag    = flag.String("name", "watcher", "Display name for this participant")
	sessionFlag = flag.String("session", "", "Join an existing session instead of creating one")
	startFlag   = flag.Bool("start", false, "Start the game immediately after creating the session")
)

func main() {
	var screen tcell.Screen

	// Panic recovery: restore the terminal before the stack trace prints,
	// or the trace lands in an unreadable alternate screen
	defer func() {
		if r := recover(); r != nil {
			if screen != nil {
				screen.Fini()
			}
			fmt.Fprintf(os.Stderr, "\nvigil crashed: %v\n", r)
			fmt.Fprintf(os.Stderr, "%s\n", debug.Stack())
			os.Exit(1)
		}
	}()

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	backend := pickBackend(cfg, logger)
	queue := audio.NewQueue(backend, cfg.QueueMax, cfg.Volume, cfg.FadeIn, cfg.FadeOut, logger)

	model := game.NewModel(queue, game.Timings{
		Veil:        cfg.VeilDuration,
		VisitLinger: cfg.VisitLinger,
		Notice:      cfg.NoticeDuration,
	}, logger)

	lobby := session.NewClient(cfg.SessionURL, logger)
	sess, err := joinOrCreate(lobby)
	if err != nil {
		fmt.Fprintf(os.Stderr, "session: %v\n", err)
		os.Exit(1)
	}

	manager := netclient.NewManager(netclient.Options{
		URL:          cfg.ServerURL,
		RetryMax:     cfg.RetryMax,
		RetryDelay:   cfg.RetryDelay,
		Heartbeat:    cfg.Heartbeat,
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}, model, logger)
	model.SetSender(manager)
	manager.Connect(sess.ID, sess.ParticipantID)
	defer manager.Disconnect()

	screen, err = tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "terminal: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "terminal: %v\n", err)
		os.Exit(1)
	}
	defer screen.Fini()

	w, h := screen.Size()
	camera := render.NewCamera(float64(w), float64(h), scene.WorldWidth, scene.WorldHeight, cfg.CameraSmoothing)

	registry := scene.BuildRegistry(model, camera)
	director := scene.NewDirector(model, registry, scene.NewSequencer())

	loop := render.NewLoop(screen, director, cfg.FrameInterval, cfg.MaxFrameDelta, logger)
	loop.Start()
	defer loop.Stop()

	logger.Info("client up",
		zap.String("session", sess.ID),
		zap.String("participant", sess.ParticipantID))

	runInput(screen, model, queue, camera, cfg.Volume)
}

func joinOrCreate(lobby *session.Client) (session.Session, error) {
	ctx := context.Background()
	if *sessionFlag != "" {
		return lobby.Join(ctx, *sessionFlag, *nameFlag)
	}
	sess, err := lobby.Create(ctx, *nameFlag)
	if err != nil {
		return session.Session{}, err
	}
	if *startFlag {
		if err := lobby.Start(ctx, sess.ID); err != nil {
			return session.Session{}, err
		}
	}
	return sess, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{cfg.LogPath}
	zcfg.ErrorOutputPaths = []string{cfg.LogPath}
	zcfg.Encoding = "console"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.LogDebug {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zcfg.Build()
}

// pickBackend prefers the real speaker and degrades to silence; a
// missing audio device must never stop the client
func pickBackend(cfg *config.Config, logger *zap.Logger) audio.Backend {
	if cfg.Muted {
		return audio.NopBackend{}
	}
	backend, err := audio.NewSpeakerBackend()
	if err != nil {
		logger.Warn("audio unavailable, continuing silent", zap.Error(err))
		return audio.NopBackend{}
	}
	return backend
}

// runInput blocks on terminal events until the user quits
func runInput(screen tcell.Screen, model *game.Model, queue *audio.Queue, camera *render.Camera, volume float64) {
	muted := false
	for {
		ev := screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventResize:
			w, h := ev.Size()
			camera.Resize(float64(w), float64(h))
			screen.Sync()
		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyEscape, ev.Key() == tcell.KeyCtrlC, ev.Rune() == 'q':
				return
			case ev.Key() == tcell.KeyTab:
				cycleChannel(model)
			case ev.Rune() == 'm':
				muted = !muted
				if muted {
					queue.SetVolume(0)
				} else {
					queue.SetVolume(volume)
				}
			case ev.Rune() == '+':
				volume = min(volume+0.1, 1)
				if !muted {
					queue.SetVolume(volume)
				}
			case ev.Rune() == '-':
				volume = max(volume-0.1, 0)
				if !muted {
					queue.SetVolume(volume)
				}
			case ev.Rune() >= '1' && ev.Rune() <= '9':
				castVoteAt(model, int(ev.Rune()-'1'))
			}
		}
	}
}

// cycleChannel selects the next conversation channel in a stable order,
// campfire first
func cycleChannel(model *game.Model) {
	snap := model.Snapshot()
	keys := snap.ChannelKeys
	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == game.CampfireChannel {
			return true
		}
		if keys[j] == game.CampfireChannel {
			return false
		}
		return keys[i] < keys[j]
	})
	for i, key := range keys {
		if key == snap.Selected {
			model.SelectChannel(keys[(i+1)%len(keys)])
			return
		}
	}
	if len(keys) > 0 {
		model.SelectChannel(keys[0])
	}
}

// castVoteAt targets the nth living roster entry during the vote phase
func castVoteAt(model *game.Model, idx int) {
	snap := model.Snapshot()
	if snap.Phase != game.PhaseVote {
		return
	}
	if idx < 0 || idx >= len(snap.Participants) {
		return
	}
	target := snap.Participants[idx]
	if !target.Alive {
		return
	}
	model.CastVote(target.ID)
}
