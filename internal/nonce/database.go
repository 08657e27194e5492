package nonce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/obot-platform/shopinstall/internal/logger"
	"github.com/obot-platform/shopinstall/internal/model"
	"github.com/obot-platform/shopinstall/internal/store"
)

// DatabaseStore keeps state tokens in the oauth_states table.
type DatabaseStore struct {
	store *store.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewDatabaseStore creates a DatabaseStore whose tokens live for ttl.
func NewDatabaseStore(s *store.Store, ttl time.Duration) *DatabaseStore {
	return &DatabaseStore{store: s, ttl: ttl, now: time.Now}
}

// Create implements Store.
func (d *DatabaseStore) Create(ctx context.Context, shop string) (string, error) {
	token, err := Generate()
	if err != nil {
		return "", err
	}
	now := d.now()
	err = d.store.SaveOAuthState(ctx, &model.OAuthState{
		Shop:      shop,
		Nonce:     token,
		ExpiresAt: now.Add(d.ttl),
		CreatedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("failed to save state: %w", err)
	}
	return token, nil
}

// RedeemOnce implements Store. Expired rows are consumed and reported as
// not found.
func (d *DatabaseStore) RedeemOnce(ctx context.Context, shop string) (string, error) {
	state, err := d.store.RedeemOAuthState(ctx, shop)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to redeem state: %w", err)
	}
	if state.Expired(d.now()) {
		return "", ErrNotFound
	}
	return state.Nonce, nil
}

// Ping implements Pinger.
func (d *DatabaseStore) Ping(ctx context.Context) error {
	return d.store.Ping(ctx)
}

// RunPurge deletes expired states every interval until ctx is done.
func (d *DatabaseStore) RunPurge(ctx context.Context, interval time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.purge(ctx, log)
		case <-ctx.Done():
			return
		}
	}
}

func (d *DatabaseStore) purge(ctx context.Context, log *logger.Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("state purge panicked", "panic", rec)
		}
	}()

	n, err := d.store.DeleteExpiredOAuthStates(ctx, d.now())
	if err != nil {
		log.Warn("failed to purge expired states", "error", err)
		return
	}
	if n > 0 {
		log.Debug("purged expired states", "count", n)
	}
}
