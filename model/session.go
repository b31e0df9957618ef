package model

import "time"

// Session terminal-state reasons recorded on termination.
const (
	TerminateReasonLogout      = "logout"
	TerminateReasonExpired     = "expired"
	TerminateReasonEvicted     = "concurrent_session_limit"
	TerminateReasonAdminAction = "admin_action"
	TerminateReasonSuspicious  = "suspicious_activity"
)

// Session is one login session. A session is usable only while
// Active && !Terminated && now < ExpiresAt; Expired and Terminated are both
// terminal, a new login always mints a new session id.
type Session struct {
	SessionID         string `gorm:"primarykey;size:64"`
	UserID            uint   `gorm:"not null;index"`
	SiteID            string `gorm:"size:64;not null;index"`
	DeviceFingerprint string `gorm:"size:64;not null;index"`
	IPAddress         string `gorm:"size:45;not null"`
	Country           string `gorm:"size:64"`
	City              string `gorm:"size:128"`
	CreatedAt         time.Time
	LastActivity      time.Time
	ExpiresAt         time.Time
	Active            bool `gorm:"default:true;not null"`
	Terminated        bool `gorm:"default:false;not null"`
	TerminatedReason  string `gorm:"size:64"`
	Suspicious        bool `gorm:"default:false;not null"`
	Verified          bool `gorm:"default:false;not null"`
}

func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

func (s *Session) IsUsable(now time.Time) bool {
	return s.Active && !s.Terminated && now.Before(s.ExpiresAt)
}
