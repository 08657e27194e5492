// Package nonce issues and redeems the single-use state tokens that tie an
// install callback to the request that started it.
package nonce

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrNotFound is returned by RedeemOnce when no live state exists for the
// shop, either because none was issued, it expired, or it was already used.
var ErrNotFound = errors.New("nonce: state not found")

// Store issues and redeems state tokens keyed by shop domain.
//
// Create replaces any previous token for the shop. RedeemOnce returns the
// token as it was before removal; a second call for the same token must
// return ErrNotFound. Any other error is a backend failure.
type Store interface {
	Create(ctx context.Context, shop string) (string, error)
	RedeemOnce(ctx context.Context, shop string) (string, error)
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Generate returns a random state token: 32 bytes, base64url without padding.
func Generate() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
