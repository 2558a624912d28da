package game

import (
	"go.uber.org/zap"

	"github.com/emberhollow/vigil/event"
)

// Apply folds one decoded server event into the model. It must be
// idempotent and order-tolerant: the server delivers at-least-once with
// no ordering guarantee, and there are no sequence numbers to lean on.
// Semantically invalid events are dropped with a diagnostic, never a
// panic or an error to the transport
func (m *Model) Apply(kind event.Kind, payload any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch p := payload.(type) {
	case *event.ConnectedPayload:
		m.sessionID = p.SessionID
		m.participantID = p.ParticipantID
	case *event.RosterPayload:
		for _, rec := range p.Participants {
			m.mergeParticipantLocked(rec)
		}
	case *event.PhasePayload:
		m.applyPhaseLocked(p)
	case *event.VotePayload:
		m.applyVoteLocked(p)
	case *event.VisitStartPayload:
		m.applyVisitStartLocked(p)
	case *event.VisitExchangePayload:
		m.applyVisitExchangeLocked(p)
	case *event.VisitEndPayload:
		m.applyVisitEndLocked(p)
	case *event.AudioPayload:
		m.applyAudioLocked(p)
	case *event.EliminatedPayload:
		m.eliminateLocked(p.ParticipantID)
	case *event.EffectAddedPayload:
		m.applyEffectAddedLocked(p)
	case *event.EffectRemovedPayload:
		m.applyEffectRemovedLocked(p)
	case *event.GameOverPayload:
		m.gameOver = true
		m.winner = p.Winner
	case *event.NoticePayload:
		m.addNoticeLocked(p.Text, p.Level)
	default:
		// Forward compatibility: server-added kinds must not crash us
		m.log.Warn("ignoring unrecognized event", zap.String("kind", string(kind)))
	}
}

// mergeParticipantLocked overwrites server-authoritative fields and
// preserves client-only ones when the record omits them
func (m *Model) mergeParticipantLocked(rec event.ParticipantRecord) {
	if rec.ID == "" {
		m.log.Warn("participant record without id dropped")
		return
	}
	p, ok := m.participants[rec.ID]
	if !ok {
		p = &Participant{ID: rec.ID, Alive: true, ColorIndex: len(m.order)}
		m.participants[rec.ID] = p
		m.order = append(m.order, rec.ID)
	}
	if rec.Name != "" {
		p.Name = rec.Name
	}
	if rec.Role != "" {
		p.Role = rec.Role
	}
	if rec.ColorHint != "" {
		p.ColorHint = rec.ColorHint
	}
	if rec.Location != "" {
		p.Location = rec.Location
	}
	if rec.Alive != nil {
		p.Alive = *rec.Alive
	}
}

// applyPhaseLocked handles both real transitions and sub-phase signals.
// A transition is real only when the phase actually changes; repeats and
// close variants never re-clear slices or re-trigger the veil
func (m *Model) applyPhaseLocked(p *event.PhasePayload) {
	phase, ok := ParsePhase(p.Phase)
	if !ok {
		m.log.Warn("unknown phase dropped", zap.String("phase", p.Phase))
		return
	}
	for _, rec := range p.Participants {
		m.mergeParticipantLocked(rec)
	}
	if p.Round > 0 {
		m.round = p.Round
	}

	if phase == m.phase {
		if p.Closing && !m.closing {
			// Sub-phase: everyone returns to the shared channel, but
			// per-visit transcripts are preserved for reading. When the
			// shared channel is already selected there is nothing to
			// stop; the backlog is dropped and the current segment
			// finishes naturally
			m.closing = true
			if m.selected == CampfireChannel {
				m.audio.ClearQueue()
			} else {
				m.selectChannelLocked(CampfireChannel)
			}
		}
		return
	}

	// Real transition
	m.audio.Stop()
	m.phase = phase
	m.closing = false

	switch phase {
	case PhaseVote:
		m.votes = make(map[string]string)
	case PhaseMorning:
		m.resetChannelsLocked()
		m.votes = make(map[string]string)
		m.lastOutcome = ""
	case PhaseExile:
		if p.Exiled != "" {
			m.eliminateLocked(p.Exiled)
			m.lastOutcome = p.Exiled
		}
	case PhaseGameOver:
		m.gameOver = true
	}

	m.raiseVeilLocked()
}

// raiseVeilLocked starts the transition veil and schedules its
// self-clear. The epoch token keeps a stale timer from clearing a veil
// raised by a later transition
func (m *Model) raiseVeilLocked() {
	m.veilActive = true
	m.veilEpoch++
	epoch := m.veilEpoch
	m.afterFunc(m.tm.Veil, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.veilEpoch == epoch {
			m.veilActive = false
		}
	})
}

func (m *Model) resetChannelsLocked() {
	m.channels = map[string]*Channel{
		CampfireChannel: {Key: CampfireChannel},
	}
	m.selected = CampfireChannel
}

func (m *Model) applyVoteLocked(p *event.VotePayload) {
	if p.Voter == "" {
		m.log.Warn("vote without voter dropped")
		return
	}
	// Last write wins: one target per voter
	m.votes[p.Voter] = p.Target
}

func (m *Model) applyVisitStartLocked(p *event.VisitStartPayload) {
	if p.VisitID == "" {
		m.log.Warn("visit start without id dropped")
		return
	}
	if _, exists := m.channels[p.VisitID]; exists {
		m.log.Warn("duplicate visit start dropped", zap.String("visit", p.VisitID))
		return
	}
	m.channels[p.VisitID] = &Channel{Key: p.VisitID, Host: p.Host, Guest: p.Guest}
}

func (m *Model) applyVisitExchangeLocked(p *event.VisitExchangePayload) {
	ch, ok := m.channels[p.VisitID]
	if !ok {
		m.log.Warn("exchange for unknown visit dropped", zap.String("visit", p.VisitID))
		return
	}
	entry := &Entry{Speaker: p.Speaker, Content: p.Content, AudioRef: p.AudioRef}
	ch.Entries = append(ch.Entries, entry)
	if entry.AudioRef != "" && m.selected == ch.Key {
		entry.Played = true
		m.audio.Enqueue(entry.AudioRef)
	}
}

// applyVisitEndLocked marks the visit over and schedules transcript
// removal after a linger delay so the user can finish reading. The
// pointer identity check guards against a re-used visit id
func (m *Model) applyVisitEndLocked(p *event.VisitEndPayload) {
	ch, ok := m.channels[p.VisitID]
	if !ok {
		m.log.Warn("end for unknown visit dropped", zap.String("visit", p.VisitID))
		return
	}
	if ch.Ended {
		return
	}
	ch.Ended = true
	m.afterFunc(m.tm.VisitLinger, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if cur, ok := m.channels[ch.Key]; ok && cur == ch {
			m.removeChannelLocked(ch.Key)
		}
	})
}

// applyAudioLocked attaches a segment to its channel's transcript and
// plays it only when that channel is the selected one. At most one
// channel is ever audible, and it is always the selected one
func (m *Model) applyAudioLocked(p *event.AudioPayload) {
	if p.Ref == "" {
		m.log.Warn("audio event without ref dropped")
		return
	}
	ch, ok := m.channels[p.Channel]
	if !ok {
		m.log.Warn("audio for unknown channel dropped", zap.String("channel", p.Channel))
		return
	}

	entry := m.attachAudioLocked(ch, p)
	if m.selected == ch.Key {
		entry.Played = true
		m.audio.Enqueue(entry.AudioRef)
	}
}

// attachAudioLocked binds the ref to the latest transcript line still
// waiting for audio, or appends a standalone line
func (m *Model) attachAudioLocked(ch *Channel, p *event.AudioPayload) *Entry {
	for i := len(ch.Entries) - 1; i >= 0; i-- {
		e := ch.Entries[i]
		if e.AudioRef == "" && (p.Speaker == "" || e.Speaker == p.Speaker) {
			e.AudioRef = p.Ref
			return e
		}
	}
	entry := &Entry{Speaker: p.Speaker, Content: p.Content, AudioRef: p.Ref}
	ch.Entries = append(ch.Entries, entry)
	return entry
}

// eliminateLocked marks a participant dead, strips their effects, and
// garbage-collects every transient object keyed by them
func (m *Model) eliminateLocked(id string) {
	p, ok := m.participants[id]
	if !ok {
		m.log.Warn("elimination of unknown participant dropped", zap.String("participant", id))
		return
	}
	p.Alive = false
	p.Effects = nil

	for key, ch := range m.channels {
		if key == CampfireChannel {
			continue
		}
		if ch.Host == id || ch.Guest == id {
			m.removeChannelLocked(key)
		}
	}
	for voter := range m.votes {
		if voter == id {
			delete(m.votes, voter)
		}
	}
}

func (m *Model) removeChannelLocked(key string) {
	delete(m.channels, key)
	if m.selected == key {
		m.selected = CampfireChannel
	}
}

func (m *Model) applyEffectAddedLocked(p *event.EffectAddedPayload) {
	target, ok := m.participants[p.ParticipantID]
	if !ok {
		m.log.Warn("effect for unknown participant dropped", zap.String("participant", p.ParticipantID))
		return
	}
	eff := ActiveEffect{
		ID:          p.Effect.ID,
		Type:        p.Effect.Type,
		Name:        p.Effect.Name,
		Description: p.Effect.Description,
		Consequence: p.Effect.Consequence,
		Rounds:      p.Effect.Rounds,
		Source:      p.Effect.Source,
	}
	// Duplicate delivery replaces in place instead of stacking
	for i, existing := range target.Effects {
		if existing.ID == eff.ID {
			target.Effects[i] = eff
			return
		}
	}
	target.Effects = append(target.Effects, eff)
}

func (m *Model) applyEffectRemovedLocked(p *event.EffectRemovedPayload) {
	target, ok := m.participants[p.ParticipantID]
	if !ok {
		m.log.Warn("effect removal for unknown participant dropped", zap.String("participant", p.ParticipantID))
		return
	}
	for i, eff := range target.Effects {
		if eff.ID == p.EffectID {
			target.Effects = append(target.Effects[:i], target.Effects[i+1:]...)
			return
		}
	}
}

// SelectChannel switches which conversation is observed. Any playing
// audio stops first; then the most recent unplayed segment of the new
// channel is enqueued, so switching feels like tuning in, not restarting
func (m *Model) SelectChannel(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selectChannelLocked(key)
}

func (m *Model) selectChannelLocked(key string) {
	ch, ok := m.channels[key]
	if !ok {
		m.log.Warn("select of unknown channel ignored", zap.String("channel", key))
		return
	}
	if key == m.selected {
		return
	}

	// Stop strictly before the lookup: no stale enqueue can outrun it
	m.audio.Stop()
	m.selected = key

	for i := len(ch.Entries) - 1; i >= 0; i-- {
		e := ch.Entries[i]
		if e.AudioRef != "" && !e.Played {
			e.Played = true
			m.audio.Enqueue(e.AudioRef)
			return
		}
	}
}
