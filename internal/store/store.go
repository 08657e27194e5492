// Package store provides database operations using GORM.
package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/obot-platform/shopinstall/internal/model"
)

// Common errors
var (
	ErrNotFound = errors.New("record not found")
)

// Store wraps GORM DB for database operations.
type Store struct {
	db *gorm.DB
}

// New creates a new Store with the given GORM DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// --- OAuth States ---

// SaveOAuthState inserts the state for a shop, replacing any previous one.
func (s *Store) SaveOAuthState(ctx context.Context, state *model.OAuthState) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "shop"}},
		DoUpdates: clause.AssignmentColumns([]string{"nonce", "expires_at", "created_at"}),
	}).Create(state).Error
}

// RedeemOAuthState atomically reads and deletes the state for a shop.
// The returned record is the row as it was before deletion. When two
// redemptions race, only the one whose DELETE removes the row succeeds;
// the other gets ErrNotFound.
func (s *Store) RedeemOAuthState(ctx context.Context, shop string) (*model.OAuthState, error) {
	var state model.OAuthState

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&state, "shop = ?", shop).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		// Match on the nonce too so a concurrent re-initiate is not deleted
		// under a stale read.
		result := tx.Where("shop = ? AND nonce = ?", state.Shop, state.Nonce).Delete(&model.OAuthState{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &state, nil
}

// DeleteExpiredOAuthStates removes states that expired before the given time.
func (s *Store) DeleteExpiredOAuthStates(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at <= ?", before).Delete(&model.OAuthState{})
	return result.RowsAffected, result.Error
}
