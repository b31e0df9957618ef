package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/authcore-dev/authcore/model"
	"gorm.io/gorm"
)

type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	Get(ctx context.Context, sessionID string) (*model.Session, error)
	Updates(ctx context.Context, sessionID string, columns map[string]interface{}) error
	// FindRecent returns the user's sessions created since the given time,
	// newest first, bounded by limit.
	FindRecent(ctx context.Context, userID uint, since time.Time, limit int) ([]*model.Session, error)
	// FindActive returns the user's usable sessions, oldest first.
	FindActive(ctx context.Context, userID uint) ([]*model.Session, error)
	CountActive(ctx context.Context, userID uint) (int64, error)
	HasVerifiedFingerprint(ctx context.Context, userID uint, fingerprint string) (bool, error)
	// FindExpiredActive returns sessions past expiry that are still flagged
	// active, for the reconciliation sweep.
	FindExpiredActive(ctx context.Context, now time.Time, limit int) ([]*model.Session, error)
	// FindSince returns sessions for analytics range queries; userID zero
	// means all users of the site.
	FindSince(ctx context.Context, siteID string, userID uint, since time.Time) ([]*model.Session, error)
}

type sessionRepository struct {
	db *gorm.DB
}

func (r *sessionRepository) Create(ctx context.Context, session *model.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepository) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).First(&session, "session_id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	return &session, err
}

func (r *sessionRepository) Updates(ctx context.Context, sessionID string, columns map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("session_id = ?", sessionID).
		Updates(columns).Error
}

func (r *sessionRepository) FindRecent(ctx context.Context, userID uint, since time.Time, limit int) ([]*model.Session, error) {
	var sessions []*model.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at DESC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepository) FindActive(ctx context.Context, userID uint) ([]*model.Session, error) {
	var sessions []*model.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND active = ? AND terminated = ? AND expires_at > ?", userID, true, false, time.Now()).
		Order("created_at ASC").
		Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepository) CountActive(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("user_id = ? AND active = ? AND terminated = ? AND expires_at > ?", userID, true, false, time.Now()).
		Count(&count).Error
	return count, err
}

func (r *sessionRepository) HasVerifiedFingerprint(ctx context.Context, userID uint, fingerprint string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("user_id = ? AND device_fingerprint = ? AND verified = ?", userID, fingerprint, true).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

func (r *sessionRepository) FindExpiredActive(ctx context.Context, now time.Time, limit int) ([]*model.Session, error) {
	var sessions []*model.Session
	err := r.db.WithContext(ctx).
		Where("active = ? AND terminated = ? AND expires_at <= ?", true, false, now).
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepository) FindSince(ctx context.Context, siteID string, userID uint, since time.Time) ([]*model.Session, error) {
	q := r.db.WithContext(ctx).Where("site_id = ? AND created_at >= ?", siteID, since)
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	var sessions []*model.Session
	err := q.Order("created_at ASC").Find(&sessions).Error
	return sessions, err
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}
