package repository

import (
	"context"
	"errors"
	"math"

	"gorm.io/gorm"

	"github.com/iliyamo/movieflix/internal/model"
)

// EntryRepo encapsulates all database queries related to collection
// entries.  Every method takes the caller's user id and filters on it
// together with the entry id; there is no unscoped lookup.
type EntryRepo struct {
	db *gorm.DB
}

// NewEntryRepo constructs an EntryRepo with the provided GORM handle.
func NewEntryRepo(db *gorm.DB) *EntryRepo {
	return &EntryRepo{db: db}
}

// List returns one page of the user's entries, newest first.  Ties on
// created_at are broken by id so pages never overlap.  page starts at 1.
func (r *EntryRepo) List(ctx context.Context, userID uint64, page, limit int) ([]model.Entry, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	entries := make([]model.Entry, 0, limit)
	if page-1 > math.MaxInt/limit {
		// past any reachable offset
		return entries, nil
	}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Get fetches a single entry owned by userID.  It returns ErrEntryNotFound
// when the entry is missing or belongs to another user.
func (r *EntryRepo) Get(ctx context.Context, userID, id uint64) (*model.Entry, error) {
	return r.first(r.db.WithContext(ctx), userID, id)
}

// Create inserts a new entry owned by userID.  The owner is always the
// caller; identity and timestamps are assigned by the database layer.
func (r *EntryRepo) Create(ctx context.Context, userID uint64, f model.EntryFields) (*model.Entry, error) {
	e := &model.Entry{UserID: userID}
	f.Apply(e)
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// Update overwrites every editable column of the entry matching (id,
// userID) and refreshes updated_at.  Nil nullable fields are written as
// null.  The lookup and the write share one transaction.
func (r *EntryRepo) Update(ctx context.Context, userID, id uint64, f model.EntryFields) (*model.Entry, error) {
	var out *model.Entry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := r.first(tx, userID, id)
		if err != nil {
			return err
		}
		f.Apply(e)
		if err := tx.Save(e).Error; err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the entry matching (id, userID) and returns the row as it
// was before deletion.
func (r *EntryRepo) Delete(ctx context.Context, userID, id uint64) (*model.Entry, error) {
	var out *model.Entry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := r.first(tx, userID, id)
		if err != nil {
			return err
		}
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Entry{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrEntryNotFound
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *EntryRepo) first(db *gorm.DB, userID, id uint64) (*model.Entry, error) {
	var e model.Entry
	if err := db.Where("id = ? AND user_id = ?", id, userID).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return &e, nil
}
