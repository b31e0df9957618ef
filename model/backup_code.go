package model

import (
	"time"

	"gorm.io/gorm"
)

// BackupCode is a single-use MFA recovery code. Only the bcrypt hash of the
// raw code is stored; UsedAt marks consumption and is never cleared.
type BackupCode struct {
	ID        uint   `gorm:"primarykey"`
	UserID    uint   `gorm:"not null;index"`
	CodeHash  string `gorm:"size:64;not null"`
	UsedAt    *time.Time
	CreatedAt time.Time
}

func (c *BackupCode) BeforeCreate(tx *gorm.DB) error {
	if c.ID == 0 {
		c.ID = GenerateID()
	}
	return nil
}

func (c *BackupCode) IsUsed() bool {
	return c.UsedAt != nil
}
