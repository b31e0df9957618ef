// Package sessions manages login sessions: creation with device trust and
// anomaly signals, validation, termination and the expiry sweep.
package sessions

import (
	"context"
	"log/slog"
	"time"

	"github.com/authcore-dev/authcore/internal/events"
	"github.com/authcore-dev/authcore/internal/profiles"
	"github.com/authcore-dev/authcore/model"
	"github.com/authcore-dev/authcore/params"
	"github.com/google/uuid"
)

// Warning flags raised at session creation.
const (
	WarningNewIPAddress    = "new_ip_address"
	WarningNewDevice       = "new_device"
	WarningLocationAnomaly = "location_anomaly"
)

type Location struct {
	Country string `json:"country"`
	City    string `json:"city"`
}

type Manager struct {
	sessionRepo   SessionRepository
	profileRepo   profiles.ProfileRepository
	fingerprinter *Fingerprinter
	eventLog      *events.Logger
	maxAge        time.Duration
	maxConcurrent int
}

func NewManager(sessionRepo SessionRepository, profileRepo profiles.ProfileRepository, fingerprinter *Fingerprinter, eventLog *events.Logger, maxAge time.Duration, maxConcurrent int) *Manager {
	return &Manager{
		sessionRepo:   sessionRepo,
		profileRepo:   profileRepo,
		fingerprinter: fingerprinter,
		eventLog:      eventLog,
		maxAge:        maxAge,
		maxConcurrent: maxConcurrent,
	}
}

// CreateResult is returned when a session is minted.
type CreateResult struct {
	SessionID     string    `json:"sessionId"`
	ExpiresAt     time.Time `json:"expiresAt"`
	TrustedDevice bool      `json:"trustedDevice"`
	WarningFlags  []string  `json:"warningFlags"`
}

// CreateSession mints a session for an already-authenticated user, computing
// trust and suspicion signals against the recent session history. When the
// concurrent-session cap is exceeded the oldest active session is evicted
// first; the check-then-create is best effort, the periodic sweep reconciles
// drift.
func (m *Manager) CreateSession(ctx context.Context, userID uint, siteID string, ipAddress string, deviceInfo DeviceInfo, location *Location) (*CreateResult, error) {
	now := time.Now()
	fingerprint := m.fingerprinter.Fingerprint(deviceInfo)

	recent, err := m.sessionRepo.FindRecent(ctx, userID, now.Add(-params.SessionLookbackWindow), params.SessionLookbackLimit)
	if err != nil {
		return nil, err
	}
	warnings := trustSignals(recent, ipAddress, fingerprint, location, now)

	trusted, err := m.sessionRepo.HasVerifiedFingerprint(ctx, userID, fingerprint)
	if err != nil {
		return nil, err
	}

	if err := m.evictOverCap(ctx, userID, siteID); err != nil {
		return nil, err
	}

	session := &model.Session{
		SessionID:         uuid.NewString(),
		UserID:            userID,
		SiteID:            siteID,
		DeviceFingerprint: fingerprint,
		IPAddress:         ipAddress,
		CreatedAt:         now,
		LastActivity:      now,
		ExpiresAt:         now.Add(m.maxAge),
		Active:            true,
		Suspicious:        len(warnings) > 0,
		Verified:          trusted,
	}
	if location != nil {
		session.Country = location.Country
		session.City = location.City
	}
	if err := m.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}
	if err := m.profileRepo.AdjustSessionCount(ctx, userID, siteID, 1); err != nil {
		slog.Warn("Could not bump active session count", "user", userID, "error", err)
	}

	m.eventLog.RecordSession(ctx, events.EventTypeSessionCreated, userID, siteID, events.SessionPayload{
		SessionID:    session.SessionID,
		Fingerprint:  fingerprint,
		IP:           ipAddress,
		Country:      session.Country,
		WarningFlags: warnings,
	})
	m.eventLog.Record(ctx, events.Event{
		Type:     events.EventTypeLoginSuccess,
		Severity: events.SeverityInfo,
		UserID:   userID,
		SiteID:   siteID,
		Success:  true,
		Kind:     events.PayloadKindLogin,
		Payload:  events.LoginPayload{IP: ipAddress, UserAgent: deviceInfo.UserAgent},
	})

	return &CreateResult{
		SessionID:     session.SessionID,
		ExpiresAt:     session.ExpiresAt,
		TrustedDevice: trusted,
		WarningFlags:  warnings,
	}, nil
}

// trustSignals compares the new login against the lookback window. A first
// ever login raises no flags.
func trustSignals(recent []*model.Session, ipAddress, fingerprint string, location *Location, now time.Time) []string {
	warnings := []string{}
	if len(recent) == 0 {
		return warnings
	}

	knownIP, knownDevice := false, false
	for _, s := range recent {
		if s.IPAddress == ipAddress {
			knownIP = true
		}
		if s.DeviceFingerprint == fingerprint {
			knownDevice = true
		}
	}
	if !knownIP {
		warnings = append(warnings, WarningNewIPAddress)
	}
	if !knownDevice {
		warnings = append(warnings, WarningNewDevice)
	}

	// recent[0] is the newest prior session
	last := recent[0]
	if location != nil && last.Country != "" && location.Country != last.Country &&
		now.Sub(last.CreatedAt) < params.LocationAnomalyWindow {
		warnings = append(warnings, WarningLocationAnomaly)
	}
	return warnings
}

func (m *Manager) evictOverCap(ctx context.Context, userID uint, siteID string) error {
	if m.maxConcurrent <= 0 {
		return nil
	}
	active, err := m.sessionRepo.FindActive(ctx, userID)
	if err != nil {
		return err
	}
	for len(active) >= m.maxConcurrent {
		oldest := active[0]
		if _, err := m.TerminateSession(ctx, oldest.SessionID, model.TerminateReasonEvicted, ""); err != nil {
			return err
		}
		active = active[1:]
	}
	return nil
}

// ValidateResult is the outcome of a session validity check.
type ValidateResult struct {
	Valid    bool           `json:"valid"`
	Session  *model.Session `json:"session,omitempty"`
	Warnings []string       `json:"warnings"`
}

// ValidateSession checks usability and refreshes the activity timestamp. A
// session is usable exactly while active && !terminated && now < expiresAt.
func (m *Manager) ValidateSession(ctx context.Context, sessionID string) (*ValidateResult, error) {
	session, err := m.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Terminated || !session.Active {
		return &ValidateResult{Valid: false, Warnings: []string{"Session terminated"}}, nil
	}
	now := time.Now()
	if session.IsExpired(now) {
		return &ValidateResult{Valid: false, Warnings: []string{"Session expired"}}, nil
	}

	session.LastActivity = now
	if err := m.sessionRepo.Updates(ctx, sessionID, map[string]interface{}{"last_activity": now}); err != nil {
		return nil, err
	}
	return &ValidateResult{Valid: true, Session: session, Warnings: []string{}}, nil
}

// TerminateSession moves a session to its terminal state. Terminating an
// already-terminated session reports false without another event.
func (m *Manager) TerminateSession(ctx context.Context, sessionID string, reason string, terminatedBy string) (bool, error) {
	session, err := m.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if session.Terminated {
		return false, nil
	}
	err = m.sessionRepo.Updates(ctx, sessionID, map[string]interface{}{
		"active":            false,
		"terminated":        true,
		"terminated_reason": reason,
	})
	if err != nil {
		return false, err
	}
	if err := m.profileRepo.AdjustSessionCount(ctx, session.UserID, session.SiteID, -1); err != nil {
		slog.Warn("Could not decrement active session count", "user", session.UserID, "error", err)
	}
	m.eventLog.RecordSession(ctx, events.EventTypeSessionTerminated, session.UserID, session.SiteID, events.SessionPayload{
		SessionID:    sessionID,
		Reason:       reason,
		TerminatedBy: terminatedBy,
	})
	return true, nil
}

// IsTrustedDevice reports whether the fingerprint matches a previously
// verified session of the user. Consulted by the MFA manager for device
// trust on verification.
func (m *Manager) IsTrustedDevice(ctx context.Context, userID uint, deviceInfo DeviceInfo) (bool, error) {
	return m.sessionRepo.HasVerifiedFingerprint(ctx, userID, m.fingerprinter.Fingerprint(deviceInfo))
}

// Fingerprint exposes the device fingerprint derivation.
func (m *Manager) Fingerprint(deviceInfo DeviceInfo) string {
	return m.fingerprinter.Fingerprint(deviceInfo)
}

// SweepExpired marks expired-but-active sessions terminated and reconciles
// per-profile session counts. It runs off the login path.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	now := time.Now()
	expired, err := m.sessionRepo.FindExpiredActive(ctx, now, 500)
	if err != nil {
		return 0, err
	}
	for _, session := range expired {
		err := m.sessionRepo.Updates(ctx, session.SessionID, map[string]interface{}{
			"active":            false,
			"terminated":        true,
			"terminated_reason": model.TerminateReasonExpired,
		})
		if err != nil {
			return 0, err
		}
		count, err := m.sessionRepo.CountActive(ctx, session.UserID)
		if err != nil {
			return 0, err
		}
		if err := m.profileRepo.SetSessionCount(ctx, session.UserID, session.SiteID, uint(count)); err != nil {
			slog.Warn("Could not reconcile session count", "user", session.UserID, "error", err)
		}
	}
	return len(expired), nil
}

// StartSweeper runs the expiry sweep on a ticker until ctx is canceled.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := m.SweepExpired(ctx)
			if err != nil {
				slog.Error("Session sweep failed", "error", err)
			} else if swept > 0 {
				slog.Debug("Session sweep done", "terminated", swept)
			}
		}
	}
}
