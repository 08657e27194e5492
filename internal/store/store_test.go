package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/obot-platform/shopinstall/internal/config"
	"github.com/obot-platform/shopinstall/internal/database"
	"github.com/obot-platform/shopinstall/internal/model"
	"github.com/obot-platform/shopinstall/internal/store"
)

func newTestStore(t *testing.T) (*store.Store, *gorm.DB) {
	t.Helper()

	cfg := &config.Config{
		DatabaseDSN:    fmt.Sprintf("sqlite3://%s/test.db", t.TempDir()),
		DatabaseDriver: "sqlite",
	}
	db, err := database.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	return store.New(db.DB), db.DB
}

// findState reads a row directly, bypassing the store.
func findState(t *testing.T, db *gorm.DB, shop string) (*model.OAuthState, bool) {
	t.Helper()
	var state model.OAuthState
	err := db.First(&state, "shop = ?", shop).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false
	}
	require.NoError(t, err)
	return &state, true
}

func TestSaveOAuthState_ReplacesPrevious(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Minute)

	require.NoError(t, s.SaveOAuthState(ctx, &model.OAuthState{Shop: "foo.myshopify.com", Nonce: "first", ExpiresAt: expires}))
	require.NoError(t, s.SaveOAuthState(ctx, &model.OAuthState{Shop: "foo.myshopify.com", Nonce: "second", ExpiresAt: expires}))

	got, ok := findState(t, db, "foo.myshopify.com")
	require.True(t, ok)
	assert.Equal(t, "second", got.Nonce)
}

func TestRedeemOAuthState_SingleUse(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveOAuthState(ctx, &model.OAuthState{
		Shop:      "foo.myshopify.com",
		Nonce:     "abc",
		ExpiresAt: time.Now().Add(time.Minute),
	}))

	got, err := s.RedeemOAuthState(ctx, "foo.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, "abc", got.Nonce)

	_, err = s.RedeemOAuthState(ctx, "foo.myshopify.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, ok := findState(t, db, "foo.myshopify.com")
	assert.False(t, ok)
}

func TestRedeemOAuthState_Missing(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.RedeemOAuthState(context.Background(), "nobody.myshopify.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRedeemOAuthState_ConcurrentRedeemers(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveOAuthState(ctx, &model.OAuthState{
		Shop:      "race.myshopify.com",
		Nonce:     "once",
		ExpiresAt: time.Now().Add(time.Minute),
	}))

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.RedeemOAuthState(ctx, "race.myshopify.com"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestDeleteExpiredOAuthStates(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.SaveOAuthState(ctx, &model.OAuthState{Shop: "old.myshopify.com", Nonce: "a", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, s.SaveOAuthState(ctx, &model.OAuthState{Shop: "new.myshopify.com", Nonce: "b", ExpiresAt: now.Add(time.Minute)}))

	n, err := s.DeleteExpiredOAuthStates(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok := findState(t, db, "old.myshopify.com")
	assert.False(t, ok)
	_, ok = findState(t, db, "new.myshopify.com")
	assert.True(t, ok)
}
