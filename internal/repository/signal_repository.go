package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"SignalRelay/internal/domain/models"
	"SignalRelay/internal/domain/repository"
)

type signalRepo struct {
	data *Data
}

func NewSignalRepository(data *Data) repository.SignalStore {
	return &signalRepo{data: data}
}

// Upsert inserts s unless its fingerprint exists. The insert is a single
// ON CONFLICT DO NOTHING statement, so concurrent sightings of one
// fingerprint yield exactly one isNew.
func (r *signalRepo) Upsert(ctx context.Context, s *models.Signal) (*models.Signal, bool, error) {
	db := r.data.DB(ctx)
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fingerprint"}},
		DoNothing: true,
	}).Create(s)
	if res.Error != nil {
		return nil, false, fmt.Errorf("insert signal: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return s, true, nil
	}

	err := db.Model(&models.Signal{}).
		Where("fingerprint = ?", s.Fingerprint).
		Updates(map[string]interface{}{
			"pattern_age":   s.PatternAge,
			"trading_style": s.TradingStyle,
			"last_seen_at":  s.LastSeenAt,
		}).Error
	if err != nil {
		return nil, false, fmt.Errorf("update signal: %w", err)
	}

	var stored models.Signal
	if err := db.Where("fingerprint = ?", s.Fingerprint).First(&stored).Error; err != nil {
		return nil, false, fmt.Errorf("reload signal: %w", err)
	}
	return &stored, false, nil
}

func (r *signalRepo) Reconcile(ctx context.Context, active []string) (int64, error) {
	if len(active) == 0 {
		return 0, nil
	}
	res := r.data.DB(ctx).Where("fingerprint NOT IN ?", active).Delete(&models.Signal{})
	if res.Error != nil {
		return 0, fmt.Errorf("reconcile signals: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *signalRepo) GetByID(ctx context.Context, id int64) (*models.Signal, error) {
	var s models.Signal
	if err := r.data.DB(ctx).First(&s, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("signal %d: %w", id, models.ErrNotFound)
		}
		return nil, err
	}
	return &s, nil
}

func (r *signalRepo) ListRecent(ctx context.Context, pair string, style models.TradingStyle, limit int) ([]*models.Signal, error) {
	if limit <= 0 {
		limit = 5
	}
	var out []*models.Signal
	err := r.data.DB(ctx).
		Where("pair = ? AND trading_style = ?", pair, style).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	return out, nil
}
