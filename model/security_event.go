package model

import (
	"time"

	"gorm.io/datatypes"
)

// SecurityEvent is one append-only entry in the security event log. Payload
// carries the per-kind structured data with PayloadKind as the discriminant;
// rows are never updated or deleted outside of retention.
type SecurityEvent struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	EventType   string `gorm:"size:64;not null;index"`
	Severity    string `gorm:"size:16;not null;index"`
	UserID      uint   `gorm:"index"` // zero when the event is not user scoped
	SiteID      string `gorm:"size:64;not null;index"`
	Success     bool   `gorm:"not null"`
	PayloadKind string `gorm:"size:32;not null"`
	Payload     datatypes.JSON
	CreatedAt   time.Time `gorm:"autoCreateTime;index"`
}

func (SecurityEvent) TableName() string {
	return "security_event"
}
