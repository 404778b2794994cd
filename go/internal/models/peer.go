package models

import "time"

// Peer represents one connected session in a party room
type Peer struct {
	ID         string    `json:"client_id"`
	Nickname   string    `json:"nickname"`
	IsCreator  bool      `json:"creator"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// IsLocal returns true if this peer is the current session
func (p Peer) IsLocal(localID string) bool {
	return p.ID == localID
}

// DisplayName returns the nickname, falling back to a short form of the id
func (p Peer) DisplayName() string {
	if p.Nickname != "" {
		return p.Nickname
	}
	if len(p.ID) > 8 {
		return p.ID[:8]
	}
	return p.ID
}
