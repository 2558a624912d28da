package game

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/emberhollow/vigil/event"
)

// Phase is the top-level stage of the game. Exactly one is active
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseMorning  Phase = "morning"
	PhaseCampfire Phase = "campfire"
	PhaseDay      Phase = "day"
	PhaseHouses   Phase = "houses"
	PhaseVote     Phase = "vote"
	PhaseNight    Phase = "night"
	PhaseExile    Phase = "exile"
	PhaseGameOver Phase = "game_over"
)

var knownPhases = map[Phase]struct{}{
	PhaseLobby: {}, PhaseMorning: {}, PhaseCampfire: {}, PhaseDay: {},
	PhaseHouses: {}, PhaseVote: {}, PhaseNight: {}, PhaseExile: {},
	PhaseGameOver: {},
}

// ParsePhase validates a server-sent phase string
func ParsePhase(s string) (Phase, bool) {
	p := Phase(s)
	_, ok := knownPhases[p]
	return p, ok
}

// CampfireChannel is the shared conversation channel every participant
// belongs to; all other channels are private visits keyed by visit id
const CampfireChannel = "campfire"

// ActiveEffect is a transient condition attached to a participant.
// Expiry is server-driven: the client removes effects only on an explicit
// removal event or when the participant is eliminated
type ActiveEffect struct {
	ID          string
	Type        string
	Name        string
	Description string
	Consequence string
	Rounds      int
	Source      string
}

// Participant mixes server-authoritative fields with client-only
// rendering state. Merges overwrite the former and preserve the latter
type Participant struct {
	ID        string
	Name      string
	Role      string
	Alive     bool
	ColorHint string
	Location  string
	Effects   []ActiveEffect

	// Client-only, preserved across merges
	ScreenX, ScreenY float64
	ColorIndex       int
}

// Entry is one transcript line; AudioRef is an opaque locator compared
// only by identity
type Entry struct {
	Speaker  string
	Content  string
	AudioRef string
	Played   bool
}

// Channel is a conversation transcript: the shared campfire or a visit
type Channel struct {
	Key     string
	Host    string
	Guest   string
	Entries []*Entry
	Ended   bool
}

// Notice is a soft, auto-expiring user-facing message
type Notice struct {
	Text   string
	Level  string
	Expiry time.Time
}

// AudioSink is the playback queue surface the reducer drives
type AudioSink interface {
	Enqueue(ref string)
	Stop()
	ClearQueue()
}

// Sender transmits outbound actions; satisfied by the connection manager
type Sender interface {
	Send(kind event.Kind, payload any)
}

// Timings are the model's fixed delays
type Timings struct {
	Veil        time.Duration // Transition veil self-clear
	VisitLinger time.Duration // Transcript retention after visit end
	Notice      time.Duration // Soft notice lifetime
}

// Model is the single shared client state. It is mutated only through
// the reducer entry points, which serialize on one mutex; everything
// else reads snapshots
type Model struct {
	mu     sync.Mutex
	log    *zap.Logger
	audio  AudioSink
	sender Sender
	tm     Timings

	// Timer injection point for tests; defaults to time.AfterFunc
	afterFunc func(time.Duration, func()) *time.Timer

	sessionID     string
	participantID string

	phase   Phase
	round   int
	closing bool

	participants map[string]*Participant
	order        []string

	channels map[string]*Channel
	selected string

	votes       map[string]string
	lastOutcome string

	gameOver bool
	winner   string

	veilActive bool
	veilEpoch  uint64

	connected      bool
	retryCount     int
	notices        []Notice
	terminalNotice string
}

// NewModel constructs a fresh model. One model per client; tests build
// their own
func NewModel(audio AudioSink, tm Timings, log *zap.Logger) *Model {
	m := &Model{
		log:          log,
		audio:        audio,
		tm:           tm,
		afterFunc:    time.AfterFunc,
		phase:        PhaseLobby,
		participants: make(map[string]*Participant),
		channels:     make(map[string]*Channel),
		votes:        make(map[string]string),
		selected:     CampfireChannel,
	}
	m.channels[CampfireChannel] = &Channel{Key: CampfireChannel}
	return m
}

// SetSender wires the outbound path after the connection manager exists
func (m *Model) SetSender(s Sender) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sender = s
}

// Snapshot is an immutable copy of everything scenes draw from
type Snapshot struct {
	Phase          Phase
	Round          int
	Closing        bool
	Participants   []Participant
	Selected       string
	Transcript     []Entry
	ChannelKeys    []string
	Votes          map[string]string
	LastOutcome    string
	GameOver       bool
	Winner         string
	VeilActive     bool
	Connected      bool
	RetryCount     int
	Notices        []Notice
	TerminalNotice string
}

// Snapshot copies the current state for one frame. Expired notices are
// pruned on the way out
func (m *Model) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pruneNoticesLocked(time.Now())

	s := Snapshot{
		Phase:          m.phase,
		Round:          m.round,
		Closing:        m.closing,
		Selected:       m.selected,
		LastOutcome:    m.lastOutcome,
		GameOver:       m.gameOver,
		Winner:         m.winner,
		VeilActive:     m.veilActive,
		Connected:      m.connected,
		RetryCount:     m.retryCount,
		TerminalNotice: m.terminalNotice,
		Votes:          make(map[string]string, len(m.votes)),
		Notices:        append([]Notice(nil), m.notices...),
	}
	for _, id := range m.order {
		s.Participants = append(s.Participants, *m.participants[id])
	}
	for voter, target := range m.votes {
		s.Votes[voter] = target
	}
	if ch, ok := m.channels[m.selected]; ok {
		for _, e := range ch.Entries {
			s.Transcript = append(s.Transcript, *e)
		}
	}
	for key := range m.channels {
		s.ChannelKeys = append(s.ChannelKeys, key)
	}
	return s
}

// SetScreenPosition records a client-derived on-screen location for a
// participant; preserved across server merges
func (m *Model) SetScreenPosition(id string, x, y float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.participants[id]; ok {
		p.ScreenX, p.ScreenY = x, y
	}
}

// SetConnected records connection state changes from the manager
func (m *Model) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
	if connected {
		m.retryCount = 0
	}
}

// RetryScheduled records a pending reconnection attempt
func (m *Model) RetryScheduled(attempt int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retryCount = attempt
	m.addNoticeLocked("connection lost, retrying", "warn")
}

// TerminalFailure surfaces the retry-budget-exhausted state. Blocking
// and emitted at most once; recovery requires a restart
func (m *Model) TerminalFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.terminalNotice != "" {
		return
	}
	m.terminalNotice = "connection lost and could not be restored"
	m.log.Error("retry budget exhausted")
}

// AddNotice publishes a soft, auto-expiring message
func (m *Model) AddNotice(text, level string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addNoticeLocked(text, level)
}

func (m *Model) addNoticeLocked(text, level string) {
	m.notices = append(m.notices, Notice{
		Text:   text,
		Level:  level,
		Expiry: time.Now().Add(m.tm.Notice),
	})
}

func (m *Model) pruneNoticesLocked(now time.Time) {
	kept := m.notices[:0]
	for _, n := range m.notices {
		if now.Before(n.Expiry) {
			kept = append(kept, n)
		}
	}
	m.notices = kept
}
