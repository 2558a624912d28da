package game

import (
	"go.uber.org/zap"

	"github.com/emberhollow/vigil/event"
)

// Outbound dispatchers. Actions are fire-and-forget: the connection
// manager drops them while disconnected and nothing is queued or
// retried; the player re-issues if it still matters after a reconnect.

// Speak sends a spoken line into the given conversation channel
func (m *Model) Speak(channel, content string) {
	m.dispatch(event.KindSpeak, &event.SpeakPayload{Channel: channel, Content: content})
}

// CastVote targets a participant during the vote phase
func (m *Model) CastVote(target string) {
	m.dispatch(event.KindCastVote, &event.CastVotePayload{Target: target})
}

// ChooseLocation picks a house during the houses phase
func (m *Model) ChooseLocation(location string) {
	m.dispatch(event.KindChooseLocation, &event.ChooseLocationPayload{Location: location})
}

func (m *Model) dispatch(kind event.Kind, payload any) {
	m.mu.Lock()
	sender := m.sender
	m.mu.Unlock()

	if sender == nil {
		m.log.Warn("action dropped, no transport", zap.String("kind", string(kind)))
		return
	}
	sender.Send(kind, payload)
}
