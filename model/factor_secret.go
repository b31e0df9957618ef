package model

import (
	"time"

	"gorm.io/gorm"
)

// FactorSecret is a confirmed MFA factor secret, one row per user and factor
// type. Secret holds the AES-GCM sealed secret material; biometric factors
// store the registered device public key (PEM) in PublicKey instead.
type FactorSecret struct {
	ID         uint   `gorm:"primarykey"`
	UserID     uint   `gorm:"not null;index:idx_factor_user_type,unique"`
	FactorType string `gorm:"size:32;not null;index:idx_factor_user_type,unique"`
	Secret     string `gorm:"size:512"`
	PublicKey  string `gorm:"size:1024"`
	Target     string `gorm:"size:256"` // phone number or email address for delivery factors
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

func (s *FactorSecret) BeforeCreate(tx *gorm.DB) error {
	if s.ID == 0 {
		s.ID = GenerateID()
	}
	return nil
}
