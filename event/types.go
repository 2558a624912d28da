package event

import (
	"encoding/json"
)

// Kind identifies a server event or client action on the wire
type Kind string

// Inbound kinds pushed by the game server
// Delivery is at-least-once and unordered; consumers must tolerate
// duplicates and out-of-order arrival
const (
	KindConnected     Kind = "connected"
	KindRoster        Kind = "roster"
	KindPhase         Kind = "phase"
	KindVote          Kind = "vote"
	KindVisitStart    Kind = "visit_start"
	KindVisitExchange Kind = "visit_exchange"
	KindVisitEnd      Kind = "visit_end"
	KindAudio         Kind = "audio"
	KindEliminated    Kind = "eliminated"
	KindEffectAdded   Kind = "effect_added"
	KindEffectRemoved Kind = "effect_removed"
	KindGameOver      Kind = "game_over"
	KindNotice        Kind = "notice"
)

// Outbound kinds sent by the client
const (
	KindPing           Kind = "ping"
	KindSpeak          Kind = "speak"
	KindCastVote       Kind = "cast_vote"
	KindChooseLocation Kind = "choose_location"
)

// Envelope is the wire framing for both directions: a kind tag and an
// opaque payload interpreted per kind
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ParticipantRecord is the server-authoritative slice of a participant.
// Fields the server omits (empty values) must not clobber locally derived
// state during a merge
type ParticipantRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role,omitempty"`
	Alive     *bool  `json:"alive,omitempty"`
	ColorHint string `json:"color,omitempty"`
	Location  string `json:"location,omitempty"`
}

// EffectRecord describes a transient effect attached to a participant
type EffectRecord struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Consequence string `json:"consequence,omitempty"`
	Rounds      int    `json:"rounds,omitempty"`
	Source      string `json:"source,omitempty"`
}

// ConnectedPayload acknowledges the session after the socket opens
type ConnectedPayload struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
}

// RosterPayload replaces or merges the participant list
type RosterPayload struct {
	Participants []ParticipantRecord `json:"participants"`
}

// PhasePayload signals a phase transition or a sub-phase variant of the
// current phase (Closing). Exiled is set when entering the exile phase
type PhasePayload struct {
	Phase        string              `json:"phase"`
	Round        int                 `json:"round"`
	Closing      bool                `json:"closing,omitempty"`
	Participants []ParticipantRecord `json:"participants,omitempty"`
	Exiled       string              `json:"exiled,omitempty"`
}

// VotePayload records one voter's current target; last write wins
type VotePayload struct {
	Voter  string `json:"voter"`
	Target string `json:"target"`
}

// VisitStartPayload opens a private conversation channel. The VisitID is
// server-issued and is the idempotency key for the whole visit lifecycle
type VisitStartPayload struct {
	VisitID string `json:"visit_id"`
	Host    string `json:"host"`
	Guest   string `json:"guest"`
}

// VisitExchangePayload appends one spoken line to a visit transcript
type VisitExchangePayload struct {
	VisitID  string `json:"visit_id"`
	Speaker  string `json:"speaker"`
	Content  string `json:"content"`
	AudioRef string `json:"audio_ref,omitempty"`
}

// VisitEndPayload closes a visit; the transcript lingers client-side for
// a fixed delay so the user can finish reading
type VisitEndPayload struct {
	VisitID string `json:"visit_id"`
}

// AudioPayload attaches a playable segment to a conversation channel.
// Channel is "campfire" or a visit id; routing compares it against the
// currently selected channel
type AudioPayload struct {
	Ref     string `json:"ref"`
	Channel string `json:"channel"`
	Speaker string `json:"speaker,omitempty"`
	Content string `json:"content,omitempty"`
}

// EliminatedPayload marks a participant as dead
type EliminatedPayload struct {
	ParticipantID string `json:"participant_id"`
	Cause         string `json:"cause,omitempty"`
}

// EffectAddedPayload attaches an effect to a participant
type EffectAddedPayload struct {
	ParticipantID string       `json:"participant_id"`
	Effect        EffectRecord `json:"effect"`
}

// EffectRemovedPayload detaches an effect by id. Effect expiry is
// server-driven; the client never ages effects out on its own
type EffectRemovedPayload struct {
	ParticipantID string `json:"participant_id"`
	EffectID      string `json:"effect_id"`
}

// GameOverPayload ends the match
type GameOverPayload struct {
	Winner string `json:"winner"`
	Detail string `json:"detail,omitempty"`
}

// NoticePayload carries a server-sent user-facing message
type NoticePayload struct {
	Level string `json:"level,omitempty"`
	Text  string `json:"text"`
}

// SpeakPayload is the outbound spoken-line action
type SpeakPayload struct {
	Channel string `json:"channel"`
	Content string `json:"content"`
	Audio   []byte `json:"audio,omitempty"`
}

// CastVotePayload is the outbound vote action
type CastVotePayload struct {
	Target string `json:"target"`
}

// ChooseLocationPayload is the outbound location pick during the houses phase
type ChooseLocationPayload struct {
	Location string `json:"location"`
}
