package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	MFAMethodTOTP          = "totp"
	MFAMethodSMS           = "sms"
	MFAMethodEmail         = "email"
	MFAMethodHardwareToken = "hardware_token"
	MFAMethodBiometric     = "biometric"
	MFAMethodBackupCode    = "backup_code"
)

// SecurityProfile holds the per-user authentication security state for a site.
// LockedUntil is only ever set once FailedAttempts reaches the policy
// threshold; both reset together on a fully successful verification.
type SecurityProfile struct {
	ID                  uint   `gorm:"primarykey"`
	UserID              uint   `gorm:"not null;index:idx_profile_user_site,unique"`
	SiteID              string `gorm:"size:64;not null;index:idx_profile_user_site,unique"`
	MFAEnabled          bool   `gorm:"default:false;not null"`
	MFAMethod           string `gorm:"size:32"`
	RiskScore           int    `gorm:"default:0;not null"`
	RiskFactors         datatypes.JSON
	FailedAttempts      uint `gorm:"default:0;not null"`
	LockedUntil         *time.Time
	PasswordHash        string `gorm:"size:64"`
	PasswordChangedAt   time.Time
	PasswordExpiresAt   time.Time
	LastMFAVerification *time.Time
	ActiveSessionCount  uint `gorm:"default:0;not null"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
	DeletedAt           gorm.DeletedAt `gorm:"index"`
}

func (p *SecurityProfile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == 0 {
		p.ID = GenerateID()
	}
	return nil
}

func (p *SecurityProfile) IsLocked(now time.Time) bool {
	return p.LockedUntil != nil && now.Before(*p.LockedUntil)
}
