package usage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Get returns the stored counter, or a zero counter when none exists yet.
func (r *Repo) Get(ctx context.Context, userID string) (*Counter, error) {
	var c Counter
	err := r.db.WithContext(ctx).First(&c, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Counter{UserID: userID}, nil
		}
		return nil, err
	}
	return &c, nil
}

// Increment bumps one counter by 1, creating the row on first use.
// The upsert is a single statement, so concurrent increments never lose updates.
func (r *Repo) Increment(ctx context.Context, userID string, kind Kind) (*Counter, error) {
	now := time.Now()
	row := Counter{UserID: userID, CreatedAt: now, UpdatedAt: now}
	if kind == KindResponse {
		row.ResponseCount = 1
	} else {
		row.RequestCount = 1
	}

	col := kind.column()
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			col:          gorm.Expr(Counter{}.TableName() + "." + col + " + 1"),
			"updated_at": now,
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, userID)
}

// Reset zeroes both counters for one user, creating the row if needed.
func (r *Repo) Reset(ctx context.Context, userID string) (*Counter, error) {
	now := time.Now()
	row := Counter{UserID: userID, CreatedAt: now, UpdatedAt: now}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"request_count":  0,
			"response_count": 0,
			"updated_at":     now,
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, userID)
}

// ResetAll zeroes every stored counter and returns how many rows it touched.
func (r *Repo) ResetAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Model(&Counter{}).
		Where("1 = 1").
		Updates(map[string]any{
			"request_count":  0,
			"response_count": 0,
			"updated_at":     time.Now(),
		})
	return res.RowsAffected, res.Error
}

// ListByUserIDs returns stored counters keyed by user id. Users without a row
// are absent from the map.
func (r *Repo) ListByUserIDs(ctx context.Context, userIDs []string) (map[string]Counter, error) {
	out := make(map[string]Counter, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var rows []Counter
	if err := r.db.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, c := range rows {
		out[c.UserID] = c
	}
	return out, nil
}

func (r *Repo) Delete(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&Counter{}).Error
}
