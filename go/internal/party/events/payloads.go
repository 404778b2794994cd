package events

import (
	"encoding/json"

	"github.com/mcdev12/partyspin/go/internal/models"
)

// Payload is implemented by every relay message body
type Payload interface {
	EventType() Type
	validate() error
}

// shapeChecker is implemented by payloads whose raw form must be checked before decoding,
// because fixed-size fields silently zero-fill missing or short input
type shapeChecker interface {
	checkShape(raw json.RawMessage) error
}

// AnnouncePayload is the payload for hello and here events
type AnnouncePayload struct {
	ClientID string `json:"clientId"`
	Nickname string `json:"nickname"`
	Creator  bool   `json:"creator"`
	reply    bool
}

// BeatPayload is the payload for a beat event
type BeatPayload struct {
	ClientID string `json:"clientId"`
}

// ByePayload is the payload for a bye event
type ByePayload struct {
	ClientID string `json:"clientId"`
}

// NickPayload is the payload for a nick event
type NickPayload struct {
	ClientID string `json:"clientId"`
	Nickname string `json:"nickname"`
}

// SpinResultPayload carries the host's authoritative spin state
type SpinResultPayload struct {
	Slots   models.Triple          `json:"slots"`
	Locks   [models.SlotCount]bool `json:"locks"`
	Summary string                 `json:"summary"`
}

// SyncRequestPayload asks the current host to re-send its spin state
type SyncRequestPayload struct {
	ClientID string `json:"clientId"`
}

// VoteKind is a ballot choice for a slot
type VoteKind string

const (
	VoteKeep   VoteKind = "keep"
	VoteReroll VoteKind = "reroll"
)

// Valid reports whether k is a known ballot choice
func (k VoteKind) Valid() bool {
	return k == VoteKeep || k == VoteReroll
}

// VotePayload is the payload for a vote event. ID identifies the ballot so redelivered
// copies can be dropped.
type VotePayload struct {
	ID       string   `json:"id"`
	Idx      int      `json:"idx"`
	Kind     VoteKind `json:"kind"`
	VoterID  string   `json:"voterId"`
	ClientID string   `json:"clientId"`
}

// ChatPayload is the payload for a chat event
type ChatPayload struct {
	ID   string `json:"id"`
	TS   int64  `json:"ts"` // unix millis
	From string `json:"from"`
	Text string `json:"text"`
}

// NewHello builds the announce sent on join
func NewHello(clientID, nickname string, creator bool) *AnnouncePayload {
	return &AnnouncePayload{ClientID: clientID, Nickname: nickname, Creator: creator}
}

// NewHere builds the announce sent in reply to a hello
func NewHere(clientID, nickname string, creator bool) *AnnouncePayload {
	return &AnnouncePayload{ClientID: clientID, Nickname: nickname, Creator: creator, reply: true}
}

func (p *AnnouncePayload) EventType() Type {
	if p.reply {
		return TypeHere
	}
	return TypeHello
}
func (p *BeatPayload) EventType() Type        { return TypeBeat }
func (p *ByePayload) EventType() Type         { return TypeBye }
func (p *NickPayload) EventType() Type        { return TypeNick }
func (p *SpinResultPayload) EventType() Type  { return TypeSpinResult }
func (p *SyncRequestPayload) EventType() Type { return TypeSyncRequest }
func (p *VotePayload) EventType() Type        { return TypeVote }
func (p *ChatPayload) EventType() Type        { return TypeChat }

func (p *AnnouncePayload) validate() error    { return requireClientID(p.ClientID) }
func (p *BeatPayload) validate() error        { return requireClientID(p.ClientID) }
func (p *ByePayload) validate() error         { return requireClientID(p.ClientID) }
func (p *SyncRequestPayload) validate() error { return requireClientID(p.ClientID) }

func (p *NickPayload) validate() error {
	if err := requireClientID(p.ClientID); err != nil {
		return err
	}
	if p.Nickname == "" {
		return malformed("nickname is required")
	}
	return nil
}

func (p *SpinResultPayload) checkShape(raw json.RawMessage) error {
	var shape struct {
		Slots   *[]json.RawMessage `json:"slots"`
		Locks   *[]json.RawMessage `json:"locks"`
		Summary *string            `json:"summary"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return malformed("spin_result: %v", err)
	}
	switch {
	case shape.Slots == nil:
		return malformed("spin_result without slots")
	case len(*shape.Slots) != models.SlotCount:
		return malformed("spin_result has %d slots, want %d", len(*shape.Slots), models.SlotCount)
	case shape.Locks == nil:
		return malformed("spin_result without locks")
	case len(*shape.Locks) != models.SlotCount:
		return malformed("spin_result has %d locks, want %d", len(*shape.Locks), models.SlotCount)
	case shape.Summary == nil || *shape.Summary == "":
		return malformed("spin_result without summary")
	}
	return nil
}

func (p *SpinResultPayload) validate() error {
	for i, d := range p.Slots {
		if d != nil && d.ID == "" {
			return malformed("slot %d has a dish without id", i)
		}
	}
	return nil
}

func (p *VotePayload) validate() error {
	if !models.ValidSlot(p.Idx) {
		return malformed("slot index %d out of range", p.Idx)
	}
	if !p.Kind.Valid() {
		return malformed("unknown vote kind %q", p.Kind)
	}
	if p.VoterID == "" {
		return malformed("voterId is required")
	}
	if p.ClientID == "" {
		// older peers only sent voterId
		p.ClientID = p.VoterID
	}
	return nil
}

func (p *ChatPayload) validate() error {
	if p.ID == "" || p.From == "" {
		return malformed("chat id and from are required")
	}
	return nil
}

func requireClientID(id string) error {
	if id == "" {
		return malformed("clientId is required")
	}
	return nil
}
