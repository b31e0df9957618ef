package model

import (
	"time"

	"gorm.io/gorm"
)

// Account is the minimal projection of the platform user that the security
// core needs: identity plus delivery targets. Account management itself lives
// outside the core.
type Account struct {
	ID        uint   `gorm:"primarykey"`
	Username  string `gorm:"uniqueIndex;size:32;not null"`
	Email     string `gorm:"uniqueIndex;size:256;not null"`
	FullName  string `gorm:"size:64"`
	Phone     string `gorm:"size:32"`
	Disabled  bool   `gorm:"default:false;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == 0 {
		a.ID = GenerateID()
	}
	return nil
}
