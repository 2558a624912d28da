package event

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// ErrUnknownKind marks event kinds the client does not understand.
// Forward compatibility: callers log and drop, never fail
var ErrUnknownKind = errors.New("unknown event kind")

// decoders maps each known inbound kind to its payload constructor.
// A closed mapping keeps unhandled kinds a deliberate fallthrough instead
// of silent duck-typed field access
var decoders = map[Kind]func() any{
	KindConnected:     func() any { return &ConnectedPayload{} },
	KindRoster:        func() any { return &RosterPayload{} },
	KindPhase:         func() any { return &PhasePayload{} },
	KindVote:          func() any { return &VotePayload{} },
	KindVisitStart:    func() any { return &VisitStartPayload{} },
	KindVisitExchange: func() any { return &VisitExchangePayload{} },
	KindVisitEnd:      func() any { return &VisitEndPayload{} },
	KindAudio:         func() any { return &AudioPayload{} },
	KindEliminated:    func() any { return &EliminatedPayload{} },
	KindEffectAdded:   func() any { return &EffectAddedPayload{} },
	KindEffectRemoved: func() any { return &EffectRemovedPayload{} },
	KindGameOver:      func() any { return &GameOverPayload{} },
	KindNotice:        func() any { return &NoticePayload{} },
}

// Known reports whether the kind has a registered payload shape
func Known(k Kind) bool {
	_, ok := decoders[k]
	return ok
}

// Decode parses the raw payload for the given kind into its typed struct.
// Returns ErrUnknownKind for unregistered kinds and a wrapped JSON error
// for malformed payloads
func Decode(k Kind, raw json.RawMessage) (any, error) {
	ctor, ok := decoders[k]
	if !ok {
		return nil, ErrUnknownKind
	}
	payload := ctor()
	if len(raw) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, errors.Wrapf(err, "decode %q payload", k)
	}
	return payload, nil
}

// DecodeEnvelope parses a full wire frame: envelope first, then the
// kind-specific payload
func DecodeEnvelope(data []byte) (Kind, any, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, errors.Wrap(err, "decode envelope")
	}
	payload, err := Decode(env.Kind, env.Payload)
	if err != nil {
		return env.Kind, nil, err
	}
	return env.Kind, payload, nil
}

// Marshal frames an outbound action as an envelope
func Marshal(k Kind, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrapf(err, "marshal %q payload", k)
		}
		raw = b
	}
	data, err := json.Marshal(Envelope{Kind: k, Payload: raw})
	if err != nil {
		return nil, errors.Wrap(err, "marshal envelope")
	}
	return data, nil
}
