// Package accounts exposes the read-only account directory the security core
// consults for user existence and delivery targets.
package accounts

import (
	"context"
	"errors"

	"github.com/authcore-dev/authcore/model"
	"gorm.io/gorm"
)

var ErrAccountNotFound = errors.New("account not found")

type AccountRepository interface {
	GetByID(ctx context.Context, userID uint) (*model.Account, error)
	GetByUsername(ctx context.Context, username string) (*model.Account, error)
}

type accountRepository struct {
	db *gorm.DB
}

func (r *accountRepository) GetByID(ctx context.Context, userID uint) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).First(&account, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	return &account, err
}

func (r *accountRepository) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).First(&account, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	return &account, err
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}
