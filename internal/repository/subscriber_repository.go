package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"SignalRelay/internal/domain/models"
	"SignalRelay/internal/domain/repository"
)

type subscriberRepo struct {
	data *Data
}

func NewSubscriberRepository(data *Data) repository.SubscriberStore {
	return &subscriberRepo{data: data}
}

func (r *subscriberRepo) Get(ctx context.Context, id int64) (*models.Subscriber, error) {
	var s models.Subscriber
	if err := r.data.DB(ctx).First(&s, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("subscriber %d: %w", id, models.ErrNotFound)
		}
		return nil, err
	}
	return &s, nil
}

// GetOrCreate registers who on first contact and keeps the display names
// current afterwards.
func (r *subscriberRepo) GetOrCreate(ctx context.Context, who models.Requester) (*models.Subscriber, error) {
	db := r.data.DB(ctx)
	fresh := models.NewSubscriber(who.ID, who.Username, who.FirstName)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(fresh).Error; err != nil {
		return nil, fmt.Errorf("create subscriber: %w", err)
	}

	s, err := r.Get(ctx, who.ID)
	if err != nil {
		return nil, err
	}
	if s.Username != who.Username || s.FirstName != who.FirstName {
		s.Username, s.FirstName = who.Username, who.FirstName
		err := db.Model(&models.Subscriber{}).Where("id = ?", s.ID).
			Updates(map[string]interface{}{"username": who.Username, "first_name": who.FirstName}).Error
		if err != nil {
			return nil, fmt.Errorf("update subscriber names: %w", err)
		}
	}
	return s, nil
}

// GetForUpdate reads the subscriber with a row lock held until the
// surrounding transaction ends.
func (r *subscriberRepo) GetForUpdate(ctx context.Context, id int64) (*models.Subscriber, error) {
	var s models.Subscriber
	err := r.data.DB(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&s, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("subscriber %d: %w", id, models.ErrNotFound)
		}
		return nil, err
	}
	return &s, nil
}

// SavePreferences writes only the user-editable columns of s.
func (r *subscriberRepo) SavePreferences(ctx context.Context, s *models.Subscriber) error {
	return r.updateColumns(ctx, s.ID, map[string]interface{}{
		"notifications_on": s.NotificationsOn,
		"auto_trade":       s.AutoTrade,
		"symbol_prefix":    s.SymbolPrefix,
		"symbol_suffix":    s.SymbolSuffix,
	})
}

// SaveEntitlements writes only the subscription columns of s.
func (r *subscriberRepo) SaveEntitlements(ctx context.Context, s *models.Subscriber) error {
	return r.updateColumns(ctx, s.ID, map[string]interface{}{
		"trial_used":      s.TrialUsed,
		"main_package":    s.MainPackage,
		"main_status":     s.Main.Status,
		"main_ends_at":    s.Main.EndsAt,
		"main_unbounded":  s.Main.Unbounded,
		"addon_status":    s.Addon.Status,
		"addon_ends_at":   s.Addon.EndsAt,
		"addon_unbounded": s.Addon.Unbounded,
	})
}

func (r *subscriberRepo) updateColumns(ctx context.Context, id int64, cols map[string]interface{}) error {
	res := r.data.DB(ctx).Model(&models.Subscriber{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return fmt.Errorf("update subscriber %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("subscriber %d: %w", id, models.ErrNotFound)
	}
	return nil
}

func (r *subscriberRepo) ListNotifiable(ctx context.Context) ([]*models.Subscriber, error) {
	var out []*models.Subscriber
	err := r.data.DB(ctx).
		Where("main_status = ? AND notifications_on = ?", models.StatusActive, true).
		Order("id").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list notifiable: %w", err)
	}
	return out, nil
}

// ExpireLapsed marks ACTIVE bounded subscriptions whose end date passed as
// EXPIRED. Auto-trade is switched off together with the add-on.
func (r *subscriberRepo) ExpireLapsed(ctx context.Context, now time.Time) (int64, int64, error) {
	var mainN, addonN int64
	err := r.data.Exec(ctx, func(ctx context.Context) error {
		db := r.data.DB(ctx)
		res := db.Model(&models.Subscriber{}).
			Where("main_status = ? AND main_unbounded = ? AND main_ends_at <= ?", models.StatusActive, false, now).
			Update("main_status", models.StatusExpired)
		if res.Error != nil {
			return res.Error
		}
		mainN = res.RowsAffected

		res = db.Model(&models.Subscriber{}).
			Where("addon_status = ? AND addon_unbounded = ? AND addon_ends_at <= ?", models.StatusActive, false, now).
			Updates(map[string]interface{}{"addon_status": models.StatusExpired, "auto_trade": false})
		if res.Error != nil {
			return res.Error
		}
		addonN = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("expire lapsed: %w", err)
	}
	return mainN, addonN, nil
}
