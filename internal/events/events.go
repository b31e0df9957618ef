// Package events implements the append-only security event log. Every
// security-relevant action in the core is recorded here; consumers only ever
// read ranges, entries are never mutated.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/authcore-dev/authcore/model"
)

const (
	EventTypeLoginSuccess          = "login_success"
	EventTypeLoginFailure          = "login_failure"
	EventTypeMFASetupInitiated     = "mfa_setup_initiated"
	EventTypeMFAEnabled            = "mfa_enabled"
	EventTypeMFADisabled           = "mfa_disabled"
	EventTypeMFAVerification       = "mfa_verification"
	EventTypeMFAVerificationFailed = "mfa_verification_failed"
	EventTypeSessionCreated        = "session_created"
	EventTypeSessionTerminated     = "session_terminated"
	EventTypePasswordChange        = "password_change"
	EventTypePasswordChangeFailed  = "password_change_failed"
	EventTypeAccountLocked         = "account_locked"
	EventTypeSuspiciousActivity    = "suspicious_activity"
	EventTypePolicyViolation       = "policy_violation"
)

const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Payload kinds discriminate the structured payload stored with each event.
const (
	PayloadKindLogin    = "login"
	PayloadKindMFA      = "mfa"
	PayloadKindSession  = "session"
	PayloadKindPassword = "password"
	PayloadKindAnomaly  = "anomaly"
)

// LoginPayload carries login attempt context. Identifiers are masked by the
// caller; raw credentials never reach the log.
type LoginPayload struct {
	Method    string `json:"method,omitempty"`
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type MFAPayload struct {
	Method         string `json:"method"`
	Reason         string `json:"reason,omitempty"`
	AttemptsLeft   int    `json:"attemptsLeft,omitempty"`
	MaskedTarget   string `json:"maskedTarget,omitempty"`
	TrustedDevice  bool   `json:"trustedDevice,omitempty"`
	BackupRequired bool   `json:"backupRequired,omitempty"`
}

type SessionPayload struct {
	SessionID    string   `json:"sessionId"`
	Fingerprint  string   `json:"fingerprint,omitempty"`
	IP           string   `json:"ip,omitempty"`
	Country      string   `json:"country,omitempty"`
	WarningFlags []string `json:"warningFlags,omitempty"`
	Reason       string   `json:"reason,omitempty"`
	TerminatedBy string   `json:"terminatedBy,omitempty"`
}

type PasswordPayload struct {
	Policy string   `json:"policy,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

type AnomalyPayload struct {
	AnomalyType string  `json:"anomalyType"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// Event is one log entry before persistence. Exactly one payload field is set,
// matching Kind.
type Event struct {
	Type     string
	Severity string
	UserID   uint
	SiteID   string
	Success  bool
	Kind     string
	Payload  any
}

// Sink receives recorded events for long-term storage or alerting. Sinks must
// not block; failures are the sink's problem, never the caller's.
type Sink interface {
	Consume(event *model.SecurityEvent)
}

// Logger records security events. Persistence failures are logged and
// swallowed so that observability never fails an authentication operation.
type Logger struct {
	repo    EventRepository
	sink    Sink
	metrics *Metrics
}

func NewLogger(repo EventRepository, sink Sink, metrics *Metrics) *Logger {
	return &Logger{
		repo:    repo,
		sink:    sink,
		metrics: metrics,
	}
}

// Record persists the event. It never returns an error: a broken event log
// must not become a new point of failure for authentication.
func (l *Logger) Record(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		slog.Error("Could not marshal security event payload", "type", ev.Type, "error", err)
		payload = []byte("{}")
	}
	entry := &model.SecurityEvent{
		EventType:   ev.Type,
		Severity:    ev.Severity,
		UserID:      ev.UserID,
		SiteID:      ev.SiteID,
		Success:     ev.Success,
		PayloadKind: ev.Kind,
		Payload:     payload,
		CreatedAt:   time.Now(),
	}
	if err := l.repo.Insert(ctx, entry); err != nil {
		slog.Error("Could not record security event", "type", ev.Type, "user", ev.UserID, "error", err)
		return
	}
	if l.metrics != nil {
		l.metrics.ObserveEvent(ev.Type, ev.Success)
		if ev.Kind == PayloadKindAnomaly {
			l.metrics.ObserveAnomaly()
		}
	}
	if l.sink != nil {
		l.sink.Consume(entry)
	}
}

func (l *Logger) RecordMFA(ctx context.Context, eventType string, userID uint, siteID string, success bool, payload MFAPayload) {
	severity := SeverityInfo
	if !success {
		severity = SeverityWarning
	}
	l.Record(ctx, Event{
		Type:     eventType,
		Severity: severity,
		UserID:   userID,
		SiteID:   siteID,
		Success:  success,
		Kind:     PayloadKindMFA,
		Payload:  payload,
	})
}

func (l *Logger) RecordSession(ctx context.Context, eventType string, userID uint, siteID string, payload SessionPayload) {
	l.Record(ctx, Event{
		Type:     eventType,
		Severity: SeverityInfo,
		UserID:   userID,
		SiteID:   siteID,
		Success:  true,
		Kind:     PayloadKindSession,
		Payload:  payload,
	})
}

func (l *Logger) RecordPassword(ctx context.Context, eventType string, userID uint, siteID string, success bool, payload PasswordPayload) {
	severity := SeverityInfo
	if !success {
		severity = SeverityWarning
	}
	l.Record(ctx, Event{
		Type:     eventType,
		Severity: severity,
		UserID:   userID,
		SiteID:   siteID,
		Success:  success,
		Kind:     PayloadKindPassword,
		Payload:  payload,
	})
}

func (l *Logger) RecordAccountLocked(ctx context.Context, userID uint, siteID string, payload MFAPayload) {
	l.Record(ctx, Event{
		Type:     EventTypeAccountLocked,
		Severity: SeverityCritical,
		UserID:   userID,
		SiteID:   siteID,
		Success:  false,
		Kind:     PayloadKindMFA,
		Payload:  payload,
	})
}

func (l *Logger) RecordAnomaly(ctx context.Context, userID uint, siteID string, payload AnomalyPayload) {
	l.Record(ctx, Event{
		Type:     EventTypeSuspiciousActivity,
		Severity: SeverityWarning,
		UserID:   userID,
		SiteID:   siteID,
		Success:  false,
		Kind:     PayloadKindAnomaly,
		Payload:  payload,
	})
}
