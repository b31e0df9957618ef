// Package profiles persists per-user security profiles. The failed-attempt
// counter is the one value that needs atomic read-modify-write under
// concurrent verification attempts, so it is only ever touched through SQL
// expressions inside a transaction.
package profiles

import (
	"context"
	"errors"
	"time"

	"github.com/authcore-dev/authcore/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrProfileNotFound = errors.New("security profile not found")

type ProfileRepository interface {
	Get(ctx context.Context, userID uint, siteID string) (*model.SecurityProfile, error)
	Upsert(ctx context.Context, profile *model.SecurityProfile) error
	Updates(ctx context.Context, userID uint, siteID string, columns map[string]interface{}) error
	// IncrementFailedAttempts atomically bumps the counter and arms
	// LockedUntil once the threshold is reached. Two concurrent failures can
	// never both miss the threshold.
	IncrementFailedAttempts(ctx context.Context, userID uint, siteID string, threshold uint, lockFor time.Duration) (uint, *time.Time, error)
	ResetFailedAttempts(ctx context.Context, userID uint, siteID string, verifiedAt time.Time) error
	AdjustSessionCount(ctx context.Context, userID uint, siteID string, delta int) error
	SetSessionCount(ctx context.Context, userID uint, siteID string, count uint) error
}

type profileRepository struct {
	db *gorm.DB
}

func (r *profileRepository) Get(ctx context.Context, userID uint, siteID string) (*model.SecurityProfile, error) {
	var profile model.SecurityProfile
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND site_id = ?", userID, siteID).
		First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	return &profile, err
}

func (r *profileRepository) Upsert(ctx context.Context, profile *model.SecurityProfile) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "site_id"}},
			UpdateAll: true,
		}).
		Create(profile).Error
}

func (r *profileRepository) Updates(ctx context.Context, userID uint, siteID string, columns map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.SecurityProfile{}).
		Where("user_id = ? AND site_id = ?", userID, siteID).
		Updates(columns).Error
}

func (r *profileRepository) IncrementFailedAttempts(ctx context.Context, userID uint, siteID string, threshold uint, lockFor time.Duration) (uint, *time.Time, error) {
	var (
		attempts    uint
		lockedUntil *time.Time
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.SecurityProfile{}).
			Where("user_id = ? AND site_id = ?", userID, siteID).
			UpdateColumn("failed_attempts", gorm.Expr("failed_attempts + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrProfileNotFound
		}

		var profile model.SecurityProfile
		if err := tx.Where("user_id = ? AND site_id = ?", userID, siteID).First(&profile).Error; err != nil {
			return err
		}
		attempts = profile.FailedAttempts
		lockedUntil = profile.LockedUntil

		if attempts >= threshold && !profile.IsLocked(time.Now()) {
			until := time.Now().Add(lockFor)
			if err := tx.Model(&model.SecurityProfile{}).
				Where("user_id = ? AND site_id = ?", userID, siteID).
				UpdateColumn("locked_until", until).Error; err != nil {
				return err
			}
			lockedUntil = &until
		}
		return nil
	})
	return attempts, lockedUntil, err
}

func (r *profileRepository) ResetFailedAttempts(ctx context.Context, userID uint, siteID string, verifiedAt time.Time) error {
	return r.Updates(ctx, userID, siteID, map[string]interface{}{
		"failed_attempts":       0,
		"locked_until":          nil,
		"last_mfa_verification": verifiedAt,
	})
}

func (r *profileRepository) AdjustSessionCount(ctx context.Context, userID uint, siteID string, delta int) error {
	expr := gorm.Expr("active_session_count + ?", delta)
	if delta < 0 {
		// guard against underflow when counts drift
		expr = gorm.Expr("CASE WHEN active_session_count >= ? THEN active_session_count - ? ELSE 0 END", -delta, -delta)
	}
	return r.db.WithContext(ctx).
		Model(&model.SecurityProfile{}).
		Where("user_id = ? AND site_id = ?", userID, siteID).
		UpdateColumn("active_session_count", expr).Error
}

func (r *profileRepository) SetSessionCount(ctx context.Context, userID uint, siteID string, count uint) error {
	return r.Updates(ctx, userID, siteID, map[string]interface{}{"active_session_count": count})
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}
