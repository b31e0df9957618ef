package password

import (
	"context"

	"github.com/authcore-dev/authcore/model"
	"gorm.io/gorm"
)

type HistoryRepository interface {
	Insert(ctx context.Context, entry *model.PasswordHistoryEntry) error
	FindRecent(ctx context.Context, userID uint, limit int) ([]*model.PasswordHistoryEntry, error)
}

type historyRepository struct {
	db *gorm.DB
}

func (r *historyRepository) Insert(ctx context.Context, entry *model.PasswordHistoryEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *historyRepository) FindRecent(ctx context.Context, userID uint, limit int) ([]*model.PasswordHistoryEntry, error) {
	var entries []*model.PasswordHistoryEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}
