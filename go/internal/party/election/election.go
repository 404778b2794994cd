// Package election picks the coordinating peer of a room. The host is a pure function of
// the live peer set; nothing here stores who the host was.
package election

import "github.com/mcdev12/partyspin/go/internal/models"

// Host returns the peer that ranks first by (creator desc, id asc).
// ok is false when the live set is empty.
func Host(live []models.Peer) (host models.Peer, ok bool) {
	for _, p := range live {
		if !ok || outranks(p, host) {
			host, ok = p, true
		}
	}
	return host, ok
}

// HostID returns the host's id, or "" when there is none
func HostID(live []models.Peer) string {
	h, ok := Host(live)
	if !ok {
		return ""
	}
	return h.ID
}

// IsHost reports whether id is the host of the live set
func IsHost(live []models.Peer, id string) bool {
	return id != "" && HostID(live) == id
}

func outranks(a, b models.Peer) bool {
	if a.IsCreator != b.IsCreator {
		return a.IsCreator
	}
	return a.ID < b.ID
}
