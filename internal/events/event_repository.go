package events

import (
	"context"
	"time"

	"github.com/authcore-dev/authcore/model"
	"gorm.io/gorm"
)

// Filter narrows a range query over the event log. Zero values are ignored.
type Filter struct {
	SiteID string
	UserID uint
	Types  []string
	From   time.Time
	To     time.Time
	Limit  int
}

type EventRepository interface {
	Insert(ctx context.Context, event *model.SecurityEvent) error
	Find(ctx context.Context, filter Filter) ([]*model.SecurityEvent, error)
	Count(ctx context.Context, filter Filter) (int64, error)
}

type eventRepository struct {
	db *gorm.DB
}

func (r *eventRepository) Insert(ctx context.Context, event *model.SecurityEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *eventRepository) query(ctx context.Context, filter Filter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.SecurityEvent{})
	if filter.SiteID != "" {
		q = q.Where("site_id = ?", filter.SiteID)
	}
	if filter.UserID != 0 {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if len(filter.Types) > 0 {
		q = q.Where("event_type IN ?", filter.Types)
	}
	if !filter.From.IsZero() {
		q = q.Where("created_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("created_at < ?", filter.To)
	}
	return q
}

func (r *eventRepository) Find(ctx context.Context, filter Filter) ([]*model.SecurityEvent, error) {
	q := r.query(ctx, filter).Order("created_at ASC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var entries []*model.SecurityEvent
	return entries, q.Find(&entries).Error
}

func (r *eventRepository) Count(ctx context.Context, filter Filter) (int64, error) {
	var count int64
	return count, r.query(ctx, filter).Count(&count).Error
}

func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}
