package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/iliyamo/movieflix/internal/model"
)

// TokenRepo persists and rotates refresh tokens (single 'token_hash' column).
type TokenRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewTokenRepo(db *gorm.DB) *TokenRepo {
	return &TokenRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	return r.db.WithContext(ctx).Create(&model.RefreshToken{
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: exp.UTC(),
	}).Error
}

// Rotate revokes oldHash and stores newHash for the same user in one
// transaction.  It fails with ErrTokenInvalid when oldHash is not active.
func (r *TokenRepo) Rotate(ctx context.Context, oldHash, newHash string, exp time.Time) (uint64, error) {
	var userID uint64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := r.active(tx, oldHash)
		if err != nil {
			return err
		}
		now := r.now()
		res := tx.Model(&model.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", t.ID).
			Update("revoked_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTokenInvalid // rotated concurrently
		}
		userID = t.UserID
		return tx.Create(&model.RefreshToken{UserID: t.UserID, TokenHash: newHash, ExpiresAt: exp.UTC()}).Error
	})
	if err != nil {
		return 0, err
	}
	return userID, nil
}

// RevokeByHash marks a token as revoked.  Only tokens of userID are touched.
func (r *TokenRepo) RevokeByHash(ctx context.Context, userID uint64, tokenHash string) error {
	return r.db.WithContext(ctx).Model(&model.RefreshToken{}).
		Where("token_hash = ? AND user_id = ? AND revoked_at IS NULL", tokenHash, userID).
		Update("revoked_at", r.now()).Error
}

// RevokeAllForUser revokes all user's active tokens.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	return r.db.WithContext(ctx).Model(&model.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", r.now()).Error
}

// PurgeStale deletes tokens that expired or were revoked before cutoff and
// returns how many rows were removed.
func (r *TokenRepo) PurgeStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ? OR (revoked_at IS NOT NULL AND revoked_at < ?)", cutoff, cutoff).
		Delete(&model.RefreshToken{})
	return res.RowsAffected, res.Error
}

func (r *TokenRepo) active(db *gorm.DB, tokenHash string) (*model.RefreshToken, error) {
	var t model.RefreshToken
	if err := db.Where("token_hash = ?", tokenHash).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	if t.RevokedAt != nil || r.now().After(t.ExpiresAt) {
		return nil, ErrTokenInvalid
	}
	return &t, nil
}
