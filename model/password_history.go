package model

import (
	"time"

	"gorm.io/gorm"
)

// PasswordHistoryEntry is an append-only record of a previously used password
// hash, queried for reuse detection and never mutated.
type PasswordHistoryEntry struct {
	ID           uint   `gorm:"primarykey"`
	UserID       uint   `gorm:"not null;index"`
	PasswordHash string `gorm:"size:64;not null"`
	CreatedAt    time.Time `gorm:"index"`
}

func (e *PasswordHistoryEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == 0 {
		e.ID = GenerateID()
	}
	return nil
}
