// Package events defines the messages exchanged over a party room relay and validates
// them at the boundary. Every message travels in an Envelope carrying the room code;
// Decode returns a typed Event or one of the sentinel errors and never a partial value.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type represents the kind of relay message
type Type string

const (
	TypeHello       Type = "hello"
	TypeHere        Type = "here"
	TypeBeat        Type = "beat"
	TypeBye         Type = "bye"
	TypeNick        Type = "nick"
	TypeSpinResult  Type = "spin_result"
	TypeSyncRequest Type = "sync_request"
	TypeVote        Type = "vote"
	TypeChat        Type = "chat"
)

var (
	ErrMalformed   = errors.New("malformed event")
	ErrForeignRoom = errors.New("event for another room")
	ErrUnknownType = errors.New("unknown event type")
)

// Envelope is the wire form of every relay message
type Envelope struct {
	Type Type            `json:"type"`
	Code string          `json:"code"`
	Data json.RawMessage `json:"data"`
}

// Event is a decoded, validated relay message
type Event struct {
	Code    string
	Payload Payload
}

// Type returns the discriminant of the event
func (e Event) Type() Type {
	return e.Payload.EventType()
}

// SenderID returns the id of the peer that produced the event, if the payload carries one
func (e Event) SenderID() string {
	switch p := e.Payload.(type) {
	case *AnnouncePayload:
		return p.ClientID
	case *BeatPayload:
		return p.ClientID
	case *ByePayload:
		return p.ClientID
	case *NickPayload:
		return p.ClientID
	case *SyncRequestPayload:
		return p.ClientID
	case *VotePayload:
		return p.ClientID
	case *ChatPayload:
		return p.From
	default:
		return ""
	}
}

// Encode marshals a payload into an envelope for the given room
func Encode(code string, payload Payload) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", payload.EventType(), err)
	}
	return json.Marshal(Envelope{Type: payload.EventType(), Code: code, Data: data})
}

// Decode parses raw into an Event and rejects anything not addressed to room code
func Decode(raw []byte, code string) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Code != code {
		return Event{}, fmt.Errorf("%w: got %q", ErrForeignRoom, env.Code)
	}
	return DecodeEnvelope(env)
}

// DecodeEnvelope parses the payload of an already unwrapped envelope
func DecodeEnvelope(env Envelope) (Event, error) {
	payload, err := newPayload(env.Type)
	if err != nil {
		return Event{}, err
	}
	if len(env.Data) == 0 {
		return Event{}, malformed("%s without data", env.Type)
	}
	if sc, ok := payload.(shapeChecker); ok {
		if err := sc.checkShape(env.Data); err != nil {
			return Event{}, err
		}
	}
	if err := json.Unmarshal(env.Data, payload); err != nil {
		return Event{}, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
	}
	if err := payload.validate(); err != nil {
		return Event{}, err
	}
	return Event{Code: env.Code, Payload: payload}, nil
}

func newPayload(t Type) (Payload, error) {
	switch t {
	case TypeHello:
		return &AnnouncePayload{}, nil
	case TypeHere:
		return &AnnouncePayload{reply: true}, nil
	case TypeBeat:
		return &BeatPayload{}, nil
	case TypeBye:
		return &ByePayload{}, nil
	case TypeNick:
		return &NickPayload{}, nil
	case TypeSpinResult:
		return &SpinResultPayload{}, nil
	case TypeSyncRequest:
		return &SyncRequestPayload{}, nil
	case TypeVote:
		return &VotePayload{}, nil
	case TypeChat:
		return &ChatPayload{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}
