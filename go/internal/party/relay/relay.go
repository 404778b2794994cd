// Package relay provides the per-room publish/subscribe transport peers talk over.
//
// A Bus moves opaque messages between subjects; a Channel is one peer's handle on a single
// room. Delivery is at-least-once at best and unordered; nothing above this package may
// assume otherwise.
package relay

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrClosed      = errors.New("relay closed")
	ErrInvalidCode = errors.New("invalid room code")
)

var codePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// MsgHandler receives a message published on subject
type MsgHandler func(subject string, data []byte)

// Subscription is an active bus subscription
type Subscription interface {
	Unsubscribe() error
}

// Bus is a subject-based pub/sub transport shared by many rooms
type Bus interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Subscribe(subject string, handler MsgHandler) (Subscription, error)
	Close() error
}

// Channel is a peer's handle on one room
type Channel interface {
	Emit(ctx context.Context, data []byte) error
	Listen(handler func(data []byte)) error
	Close() error
}

// ValidateCode checks that a room code is usable as a subject token
func ValidateCode(code string) error {
	if !codePattern.MatchString(code) {
		return fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	return nil
}

// RoomSubject returns the subject a room publishes on
func RoomSubject(prefix, code string) string {
	return prefix + "." + code
}

// RoomWildcard returns the subject matching every room under prefix
func RoomWildcard(prefix string) string {
	return prefix + ".*"
}
