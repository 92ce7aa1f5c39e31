// Package storage defines the durable key/value boundary that storefront
// sessions persist carts and pending guest checkout details through.
package storage

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by Load when nothing is stored under the key.
var ErrNotFound = errors.New("not found")

// Storage persists opaque values under well-known keys.
type Storage interface {
	Save(ctx context.Context, key string, value []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// CartKey is the key a session's cart snapshot is stored under.
func CartKey(sessionID string) string {
	return "cart:" + sessionID
}

// GuestCheckoutKey is the key pending guest checkout details are stored under.
func GuestCheckoutKey(sessionID string) string {
	return "guest_checkout:" + sessionID
}
