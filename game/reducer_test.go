package game

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/emberhollow/vigil/event"
)

// sinkCall records one playback-queue operation in order
type sinkCall struct {
	op  string
	ref string
}

type fakeSink struct {
	calls []sinkCall
}

func (f *fakeSink) Enqueue(ref string) { f.calls = append(f.calls, sinkCall{"enqueue", ref}) }
func (f *fakeSink) Stop()              { f.calls = append(f.calls, sinkCall{op: "stop"}) }
func (f *fakeSink) ClearQueue()        { f.calls = append(f.calls, sinkCall{op: "clear"}) }

func (f *fakeSink) ops() []string {
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.op
	}
	return out
}

// testModel builds a model with captured timers so linger and veil
// callbacks run only when the test fires them
func testModel(t *testing.T) (*Model, *fakeSink, *[]func()) {
	t.Helper()
	sink := &fakeSink{}
	m := NewModel(sink, Timings{
		Veil:        time.Second,
		VisitLinger: 5 * time.Second,
		Notice:      time.Minute,
	}, zap.NewNop())

	timers := &[]func(){}
	m.afterFunc = func(_ time.Duration, fn func()) *time.Timer {
		*timers = append(*timers, fn)
		return nil
	}
	return m, sink, timers
}

func fireTimers(timers *[]func()) {
	pending := *timers
	*timers = nil
	for _, fn := range pending {
		fn()
	}
}

func alive(v bool) *bool { return &v }

func TestVisitStartIsIdempotent(t *testing.T) {
	m, _, _ := testModel(t)

	start := &event.VisitStartPayload{VisitID: "v1", Host: "a", Guest: "b"}
	m.Apply(event.KindVisitStart, start)
	m.Apply(event.KindVisitExchange, &event.VisitExchangePayload{VisitID: "v1", Speaker: "a", Content: "hi"})
	m.Apply(event.KindVisitStart, start) // Duplicate delivery

	ch, ok := m.channels["v1"]
	if !ok {
		t.Fatal("expected visit channel to exist")
	}
	if len(ch.Entries) != 1 {
		t.Errorf("duplicate start corrupted transcript: %d entries", len(ch.Entries))
	}
	if n := len(m.channels); n != 2 { // campfire + v1
		t.Errorf("expected exactly 2 channels, got %d", n)
	}
}

func TestExchangeBeforeStartIsDropped(t *testing.T) {
	m, sink, _ := testModel(t)

	m.Apply(event.KindVisitExchange, &event.VisitExchangePayload{VisitID: "ghost", Speaker: "a", Content: "early"})

	if _, ok := m.channels["ghost"]; ok {
		t.Error("out-of-order exchange must not create a channel")
	}
	if len(sink.calls) != 0 {
		t.Errorf("dropped exchange must not touch audio, got %v", sink.calls)
	}
}

func TestVisitEndForUnknownVisitIsDropped(t *testing.T) {
	m, _, timers := testModel(t)
	m.Apply(event.KindVisitEnd, &event.VisitEndPayload{VisitID: "nope"})
	if len(*timers) != 0 {
		t.Error("unknown visit end must not schedule cleanup")
	}
}

func TestVisitEndLingersThenRemoves(t *testing.T) {
	m, _, timers := testModel(t)

	m.Apply(event.KindVisitStart, &event.VisitStartPayload{VisitID: "v1", Host: "a", Guest: "b"})
	m.SelectChannel("v1")
	m.Apply(event.KindVisitEnd, &event.VisitEndPayload{VisitID: "v1"})

	if _, ok := m.channels["v1"]; !ok {
		t.Fatal("transcript must linger after visit end")
	}

	fireTimers(timers)
	if _, ok := m.channels["v1"]; ok {
		t.Error("expected channel removed after linger delay")
	}
	if m.selected != CampfireChannel {
		t.Errorf("expected selection to fall back to campfire, got %q", m.selected)
	}
}

func TestDuplicateVisitEndSchedulesOneCleanup(t *testing.T) {
	m, _, timers := testModel(t)
	m.Apply(event.KindVisitStart, &event.VisitStartPayload{VisitID: "v1"})
	m.Apply(event.KindVisitEnd, &event.VisitEndPayload{VisitID: "v1"})
	m.Apply(event.KindVisitEnd, &event.VisitEndPayload{VisitID: "v1"})
	if len(*timers) != 1 {
		t.Errorf("expected one cleanup timer, got %d", len(*timers))
	}
}

func TestAudioRoutedOnlyToSelectedChannel(t *testing.T) {
	m, sink, _ := testModel(t)

	m.Apply(event.KindVisitStart, &event.VisitStartPayload{VisitID: "v1", Host: "a", Guest: "b"})

	// Campfire is selected; visit audio is stored, not played
	m.Apply(event.KindAudio, &event.AudioPayload{Ref: "u1", Channel: "v1", Speaker: "a"})
	if len(sink.calls) != 0 {
		t.Fatalf("unselected channel audio must not play, got %v", sink.calls)
	}
	ch := m.channels["v1"]
	if len(ch.Entries) != 1 || ch.Entries[0].AudioRef != "u1" || ch.Entries[0].Played {
		t.Fatalf("expected stored unplayed entry, got %+v", ch.Entries)
	}

	// Campfire audio plays immediately
	m.Apply(event.KindAudio, &event.AudioPayload{Ref: "u2", Channel: CampfireChannel, Speaker: "c"})
	if len(sink.calls) != 1 || sink.calls[0] != (sinkCall{"enqueue", "u2"}) {
		t.Errorf("expected campfire audio enqueued, got %v", sink.calls)
	}
}

func TestAudioForUnknownChannelIsDropped(t *testing.T) {
	m, sink, _ := testModel(t)
	m.Apply(event.KindAudio, &event.AudioPayload{Ref: "u1", Channel: "missing"})
	if len(sink.calls) != 0 {
		t.Errorf("unknown channel audio must be dropped, got %v", sink.calls)
	}
}

func TestAudioAttachesToAwaitingTranscriptLine(t *testing.T) {
	m, _, _ := testModel(t)

	m.Apply(event.KindVisitStart, &event.VisitStartPayload{VisitID: "v1"})
	m.Apply(event.KindVisitExchange, &event.VisitExchangePayload{VisitID: "v1", Speaker: "a", Content: "line"})
	m.Apply(event.KindAudio, &event.AudioPayload{Ref: "u1", Channel: "v1", Speaker: "a"})

	ch := m.channels["v1"]
	if len(ch.Entries) != 1 {
		t.Fatalf("audio should attach to the existing line, got %d entries", len(ch.Entries))
	}
	if ch.Entries[0].AudioRef != "u1" {
		t.Errorf("expected ref attached, got %q", ch.Entries[0].AudioRef)
	}
}

func TestChannelSwitchTunesIntoMostRecentUnplayed(t *testing.T) {
	m, sink, _ := testModel(t)

	m.Apply(event.KindVisitStart, &event.VisitStartPayload{VisitID: "A"})
	chA := m.channels["A"]
	chA.Entries = []*Entry{
		{Speaker: "a", AudioRef: "old", Played: true},
		{Speaker: "a", AudioRef: "mid", Played: false},
		{Speaker: "a", AudioRef: "new", Played: false},
	}

	sink.calls = nil
	m.SelectChannel("A")

	want := []sinkCall{{op: "stop"}, {"enqueue", "new"}}
	if len(sink.calls) != 2 || sink.calls[0] != want[0] || sink.calls[1] != want[1] {
		t.Fatalf("expected stop then enqueue of most recent unplayed, got %v", sink.calls)
	}
	if !chA.Entries[2].Played {
		t.Error("tuned-in segment must be marked played")
	}
	if chA.Entries[1].Played {
		t.Error("older unplayed segment must stay unplayed")
	}
}

func TestSelectSameChannelIsNoOp(t *testing.T) {
	m, sink, _ := testModel(t)
	m.SelectChannel(CampfireChannel)
	if len(sink.calls) != 0 {
		t.Errorf("re-selecting the active channel must not stop audio, got %v", sink.calls)
	}
}

func TestSelectUnknownChannelIgnored(t *testing.T) {
	m, sink, _ := testModel(t)
	m.SelectChannel("missing")
	if m.selected != CampfireChannel || len(sink.calls) != 0 {
		t.Error("selecting an unknown channel must change nothing")
	}
}

func TestPhaseRepeatDoesNotReclear(t *testing.T) {
	m, _, timers := testModel(t)

	m.Apply(event.KindPhase, &event.PhasePayload{Phase: "vote", Round: 2})
	m.Apply(event.KindVote, &event.VotePayload{Voter: "a", Target: "x"})
	veils := len(*timers)

	m.Apply(event.KindPhase, &event.PhasePayload{Phase: "vote", Round: 2})

	if len(m.votes) != 1 {
		t.Errorf("repeat phase event cleared the vote ledger: %d entries", len(m.votes))
	}
	if len(*timers) != veils {
		t.Error("repeat phase event re-triggered the transition veil")
	}
}

func TestSubPhaseCloseReturnsToCampfirePreservingTranscripts(t *testing.T) {
	m, sink, timers := testModel(t)

	m.Apply(event.KindPhase, &event.PhasePayload{Phase: "houses"})
	m.Apply(event.KindVisitStart, &event.VisitStartPayload{VisitID: "v1"})
	m.Apply(event.KindVisitExchange, &event.VisitExchangePayload{VisitID: "v1", Speaker: "a", Content: "psst"})
	m.SelectChannel("v1")

	veils := len(*timers)
	sink.calls = nil
	m.Apply(event.KindPhase, &event.PhasePayload{Phase: "houses", Closing: true})

	if m.selected != CampfireChannel {
		t.Errorf("close variant must return to the shared channel, got %q", m.selected)
	}
	if ch, ok := m.channels["v1"]; !ok || len(ch.Entries) != 1 {
		t.Error("close variant must preserve per-visit transcripts")
	}
	if len(*timers) != veils {
		t.Error("sub-phase signal must not trigger the veil")
	}
	if len(sink.calls) == 0 || sink.calls[0].op != "stop" {
		t.Errorf("returning to campfire must stop visit audio first, got %v", sink.calls)
	}
}

func TestSubPhaseCloseOnCampfireDropsBacklogSoftly(t *testing.T) {
	m, sink, _ := testModel(t)

	m.Apply(event.KindPhase, &event.PhasePayload{Phase: "houses"})

	// Already on the shared channel: the close signal must not cut the
	// current segment, only drop what is queued behind it
	sink.calls = nil
	m.Apply(event.KindPhase, &event.PhasePayload{Phase: "houses", Closing: true})

	if len(sink.calls) != 1 || sink.calls[0].op != "clear" {
		t.Fatalf("expected a single soft clear, got %v", sink.calls)
	}
	if m.selected != CampfireChannel {
		t.Errorf("expected campfire selected, got %q", m.selected)
	}
}

func TestMorningClearsTranscriptsVotesAndOutcome(t *testing.T) {
	m, _, _ := testModel(t)

	m.Apply(event.KindRoster, &event.RosterPayload{Participants: []event.ParticipantRecord{{ID: "x", Name: "X"}}})
	m.Apply(event.KindPhase, &event.PhasePayload{Phase: "vote"})
	m.Apply(event.KindVote, &event.VotePayload{Voter: "a", Target: "x"})
	m.Apply(event.KindPhase, &event.PhasePayload{Phase: "exile", Exiled: "x"})
	m.Apply(event.KindVisitStart, &event.VisitStartPayload{VisitID: "v9"})

	m.Apply(event.KindPhase, &event.PhasePayload{Phase: "morning", Round: 3})

	if len(m.votes) != 0 {
		t.Error("morning must clear the vote ledger")
	}
	if m.lastOutcome != "" {
		t.Error("morning must clear the last outcome")
	}
	if _, ok := m.channels["v9"]; ok {
		t.Error("morning must clear visit transcripts")
	}
	if m.selected != CampfireChannel {
		t.Errorf("morning must select campfire, got %q", m.selected)
	}
	if m.round != 3 {
		t.Errorf("expected round 3, got %d", m.round)
	}
}

func TestVoteLedgerLastWriteWins(t *testing.T) {
	m, _, _ := testModel(t)
	m.Apply(event.KindPhase, &event.PhasePayload{Phase: "vote"})
	m.Apply(event.KindVote, &event.VotePayload{Voter: "a", Target: "x"})
	m.Apply(event.KindVote, &event.VotePayload{Voter: "a", Target: "y"})

	if len(m.votes) != 1 || m.votes["a"] != "y" {
		t.Errorf("expected single entry a->y, got %v", m.votes)
	}
}

func TestVoteThenExileScenario(t *testing.T) {
	m, _, _ := testModel(t)

	m.Apply(event.KindRoster, &event.RosterPayload{Participants: []event.ParticipantRecord{
		{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "x"},
	}})
	m.Apply(event.KindEffectAdded, &event.EffectAddedPayload{
		ParticipantID: "x",
		Effect:        event.EffectRecord{ID: "e1", Type: "curse", Name: "Marked"},
	})

	m.Apply(event.KindPhase, &event.PhasePayload{Phase: "vote"})
	for _, voter := range []string{"a", "b", "c"} {
		m.Apply(event.KindVote, &event.VotePayload{Voter: voter, Target: "x"})
	}
	if len(m.votes) != 3 {
		t.Fatalf("expected 3 ledger entries before exile, got %d", len(m.votes))
	}

	m.Apply(event.KindPhase, &event.PhasePayload{Phase: "exile", Exiled: "x"})

	if m.phase != PhaseExile {
		t.Errorf("expected exile phase, got %q", m.phase)
	}
	x := m.participants["x"]
	if x.Alive {
		t.Error("exiled participant must be marked dead")
	}
	if len(x.Effects) != 0 {
		t.Errorf("exiled participant must have zero effects, got %d", len(x.Effects))
	}
	if m.lastOutcome != "x" {
		t.Errorf("expected outcome x, got %q", m.lastOutcome)
	}
}

func TestEliminationDropsVisitsKeyedByParticipant(t *testing.T) {
	m, _, _ := testModel(t)

	m.Apply(event.KindRoster, &event.RosterPayload{Participants: []event.ParticipantRecord{{ID: "a"}, {ID: "b"}}})
	m.Apply(event.KindVisitStart, &event.VisitStartPayload{VisitID: "v1", Host: "a", Guest: "b"})
	m.SelectChannel("v1")

	m.Apply(event.KindEliminated, &event.EliminatedPayload{ParticipantID: "a"})

	if _, ok := m.channels["v1"]; ok {
		t.Error("visits involving the eliminated participant must be dropped")
	}
	if m.selected != CampfireChannel {
		t.Error("selection must fall back when its channel is dropped")
	}
}

func TestParticipantMergePreservesClientFields(t *testing.T) {
	m, _, _ := testModel(t)

	m.Apply(event.KindRoster, &event.RosterPayload{Participants: []event.ParticipantRecord{
		{ID: "a", Name: "Ada", Role: "seer"},
	}})
	m.SetScreenPosition("a", 12, 7)
	colorBefore := m.participants["a"].ColorIndex

	// Partial authoritative update omitting everything client-derived
	m.Apply(event.KindRoster, &event.RosterPayload{Participants: []event.ParticipantRecord{
		{ID: "a", Location: "well", Alive: alive(false)},
	}})

	p := m.participants["a"]
	if p.Name != "Ada" || p.Role != "seer" {
		t.Error("omitted authoritative fields must be preserved")
	}
	if p.ScreenX != 12 || p.ScreenY != 7 || p.ColorIndex != colorBefore {
		t.Error("client-only fields must survive the merge")
	}
	if p.Alive {
		t.Error("explicit alive=false must apply")
	}
	if p.Location != "well" {
		t.Errorf("expected location well, got %q", p.Location)
	}
}

func TestVeilEpochIgnoresStaleTimer(t *testing.T) {
	m, _, timers := testModel(t)

	m.Apply(event.KindPhase, &event.PhasePayload{Phase: "day"})
	stale := (*timers)[0]
	*timers = nil

	m.Apply(event.KindPhase, &event.PhasePayload{Phase: "night"})
	stale() // Late clear from the first transition

	if !m.veilActive {
		t.Error("stale veil timer cleared a newer veil")
	}
	fireTimers(timers)
	if m.veilActive {
		t.Error("current veil timer should clear the veil")
	}
}

func TestPhaseTransitionStopsAudio(t *testing.T) {
	m, sink, _ := testModel(t)
	m.Apply(event.KindPhase, &event.PhasePayload{Phase: "campfire"})
	if len(sink.calls) == 0 || sink.calls[0].op != "stop" {
		t.Errorf("real transition must stop audio, got %v", sink.calls)
	}
}

func TestUnknownPhaseDropped(t *testing.T) {
	m, _, _ := testModel(t)
	m.Apply(event.KindPhase, &event.PhasePayload{Phase: "intermission"})
	if m.phase != PhaseLobby {
		t.Errorf("unknown phase must not transition, got %q", m.phase)
	}
}

func TestUnrecognizedEventIgnored(t *testing.T) {
	m, _, _ := testModel(t)
	// Unregistered payload shape stands in for a server-added kind
	m.Apply(event.Kind("future_thing"), map[string]any{"x": 1})
	if m.phase != PhaseLobby {
		t.Error("unrecognized event must leave state untouched")
	}
}

func TestEffectRemovalIsServerDriven(t *testing.T) {
	m, _, _ := testModel(t)
	m.Apply(event.KindRoster, &event.RosterPayload{Participants: []event.ParticipantRecord{{ID: "a"}}})
	m.Apply(event.KindEffectAdded, &event.EffectAddedPayload{ParticipantID: "a", Effect: event.EffectRecord{ID: "e1", Rounds: 1}})
	m.Apply(event.KindEffectAdded, &event.EffectAddedPayload{ParticipantID: "a", Effect: event.EffectRecord{ID: "e1", Rounds: 1}})

	if len(m.participants["a"].Effects) != 1 {
		t.Fatal("duplicate effect delivery must not stack")
	}

	// Rounds elapsing does nothing client-side; only removal events do
	m.Apply(event.KindPhase, &event.PhasePayload{Phase: "morning", Round: 9})
	if len(m.participants["a"].Effects) != 1 {
		t.Error("effects must not expire client-side")
	}

	m.Apply(event.KindEffectRemoved, &event.EffectRemovedPayload{ParticipantID: "a", EffectID: "e1"})
	if len(m.participants["a"].Effects) != 0 {
		t.Error("explicit removal must detach the effect")
	}
}

func TestTerminalFailureEmittedOnce(t *testing.T) {
	m, _, _ := testModel(t)
	m.TerminalFailure()
	first := m.terminalNotice
	m.TerminalFailure()
	if m.terminalNotice != first {
		t.Error("terminal notice must be set at most once")
	}
	if first == "" {
		t.Error("terminal notice must be set")
	}
}

func TestSnapshotReflectsSelectedTranscript(t *testing.T) {
	m, _, _ := testModel(t)
	m.Apply(event.KindVisitStart, &event.VisitStartPayload{VisitID: "v1"})
	m.Apply(event.KindVisitExchange, &event.VisitExchangePayload{VisitID: "v1", Speaker: "a", Content: "one"})
	m.SelectChannel("v1")

	snap := m.Snapshot()
	if snap.Selected != "v1" {
		t.Errorf("expected selected v1, got %q", snap.Selected)
	}
	if len(snap.Transcript) != 1 || snap.Transcript[0].Content != "one" {
		t.Errorf("snapshot transcript mismatch: %+v", snap.Transcript)
	}
}
