package draw

import (
	"context"
	"errors"

	"github.com/mcdev12/partyspin/go/internal/models"
)

var ErrBadResponse = errors.New("draw service returned an invalid response")

// Request asks the selection service for a fresh triple. Locked indices must come back
// untouched; Recent lists dish ids the service should avoid when it can.
type Request struct {
	Categories  []string            `json:"categories"`
	Constraints map[string]string   `json:"constraints,omitempty"`
	Locked      []models.LockedSlot `json:"locked"`
	Powerups    []string            `json:"powerups,omitempty"`
	Recent      []string            `json:"recent,omitempty"`
}

// Result is the triple returned by the selection service
type Result struct {
	Slots models.Triple `json:"slots"`
}

// Drawer is the external selection service
type Drawer interface {
	Draw(ctx context.Context, req Request) (Result, error)
}

// DrawerFunc adapts a function to the Drawer interface
type DrawerFunc func(ctx context.Context, req Request) (Result, error)

// Draw implements Drawer
func (f DrawerFunc) Draw(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}
