package mfa

import (
	"context"
	"errors"
	"time"

	"github.com/authcore-dev/authcore/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FactorSecretRepository interface {
	Upsert(ctx context.Context, secret *model.FactorSecret) error
	Get(ctx context.Context, userID uint, factorType string) (*model.FactorSecret, error)
	DeleteAll(ctx context.Context, userID uint) error
}

type factorSecretRepository struct {
	db *gorm.DB
}

func (r *factorSecretRepository) Upsert(ctx context.Context, secret *model.FactorSecret) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "factor_type"}},
			UpdateAll: true,
		}).
		Create(secret).Error
}

func (r *factorSecretRepository) Get(ctx context.Context, userID uint, factorType string) (*model.FactorSecret, error) {
	var secret model.FactorSecret
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND factor_type = ?", userID, factorType).
		First(&secret).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFactorNotEnrolled
	}
	return &secret, err
}

func (r *factorSecretRepository) DeleteAll(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.FactorSecret{}).Error
}

func NewFactorSecretRepository(db *gorm.DB) FactorSecretRepository {
	return &factorSecretRepository{db: db}
}

type BackupCodeRepository interface {
	// ReplaceAll drops any existing codes for the user and stores the new
	// hash set in one transaction.
	ReplaceAll(ctx context.Context, userID uint, codes []*model.BackupCode) error
	FindUnused(ctx context.Context, userID uint) ([]*model.BackupCode, error)
	CountUnused(ctx context.Context, userID uint) (int64, error)
	// MarkUsed consumes a code; it reports false when the code was already
	// consumed by a concurrent verification.
	MarkUsed(ctx context.Context, codeID uint, usedAt time.Time) (bool, error)
	DeleteAll(ctx context.Context, userID uint) error
}

type backupCodeRepository struct {
	db *gorm.DB
}

func (r *backupCodeRepository) ReplaceAll(ctx context.Context, userID uint, codes []*model.BackupCode) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.BackupCode{}).Error; err != nil {
			return err
		}
		return tx.Create(codes).Error
	})
}

func (r *backupCodeRepository) FindUnused(ctx context.Context, userID uint) ([]*model.BackupCode, error) {
	var codes []*model.BackupCode
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND used_at IS NULL", userID).
		Find(&codes).Error
	return codes, err
}

func (r *backupCodeRepository) CountUnused(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.BackupCode{}).
		Where("user_id = ? AND used_at IS NULL", userID).
		Count(&count).Error
	return count, err
}

func (r *backupCodeRepository) MarkUsed(ctx context.Context, codeID uint, usedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.BackupCode{}).
		Where("id = ? AND used_at IS NULL", codeID).
		UpdateColumn("used_at", usedAt)
	return res.RowsAffected == 1, res.Error
}

func (r *backupCodeRepository) DeleteAll(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.BackupCode{}).Error
}

func NewBackupCodeRepository(db *gorm.DB) BackupCodeRepository {
	return &backupCodeRepository{db: db}
}
