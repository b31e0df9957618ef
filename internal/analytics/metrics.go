package analytics

import (
	"context"
	"math"
	"time"

	"github.com/authcore-dev/authcore/internal/events"
)

type AuthenticationMetrics struct {
	TotalLogins      int     `json:"totalLogins"`
	SuccessfulLogins int     `json:"successfulLogins"`
	FailedLogins     int     `json:"failedLogins"`
	SuccessRate      float64 `json:"successRate"`
	MFAUsage         int     `json:"mfaUsage"`
	UniqueUsers      int     `json:"uniqueUsers"`
	NewUsers         int     `json:"newUsers"`
	BlockedAttempts  int     `json:"blockedAttempts"`
}

// GetAuthenticationMetrics aggregates the event log over the range. Logins
// are success and failure events together; unique users counts every user
// seen in any event of the range.
func (e *Engine) GetAuthenticationMetrics(ctx context.Context, siteID string, r Range) (*AuthenticationMetrics, error) {
	entries, err := e.eventRepo.Find(ctx, events.Filter{SiteID: siteID, From: r.From, To: r.To})
	if err != nil {
		return nil, err
	}

	m := &AuthenticationMetrics{}
	seen := map[uint]bool{}
	for _, ev := range entries {
		switch ev.EventType {
		case events.EventTypeLoginSuccess:
			m.SuccessfulLogins++
		case events.EventTypeLoginFailure:
			m.FailedLogins++
		case events.EventTypeMFAVerification:
			if ev.Success {
				m.MFAUsage++
			}
		case events.EventTypeAccountLocked:
			m.BlockedAttempts++
		}
		if ev.UserID != 0 && !seen[ev.UserID] {
			seen[ev.UserID] = true
		}
	}
	m.TotalLogins = m.SuccessfulLogins + m.FailedLogins
	m.UniqueUsers = len(seen)
	m.SuccessRate = percentage(m.SuccessfulLogins, m.TotalLogins)

	for userID := range seen {
		before, err := e.eventRepo.Count(ctx, events.Filter{SiteID: siteID, UserID: userID, To: r.From})
		if err != nil {
			return nil, err
		}
		if before == 0 {
			m.NewUsers++
		}
	}
	return m, nil
}

type SecurityMetrics struct {
	SuspiciousActivities int     `json:"suspiciousActivities"`
	SecurityIncidents    int     `json:"securityIncidents"`
	PolicyViolations     int     `json:"policyViolations"`
	RiskScore            int     `json:"riskScore"`
	Vulnerabilities      int     `json:"vulnerabilities"`
	ComplianceScore      float64 `json:"complianceScore"`
}

// GetSecurityMetrics aggregates the failure side of the log. The compliance
// score is the share of successful events; the risk score is the failure
// share scaled to 0..100.
func (e *Engine) GetSecurityMetrics(ctx context.Context, siteID string, r Range) (*SecurityMetrics, error) {
	entries, err := e.eventRepo.Find(ctx, events.Filter{SiteID: siteID, From: r.From, To: r.To})
	if err != nil {
		return nil, err
	}

	m := &SecurityMetrics{}
	compliant := 0
	affected := map[uint]bool{}
	for _, ev := range entries {
		if ev.Success {
			compliant++
		}
		switch ev.EventType {
		case events.EventTypeSuspiciousActivity:
			m.SuspiciousActivities++
			affected[ev.UserID] = true
		case events.EventTypeAccountLocked:
			m.SecurityIncidents++
			affected[ev.UserID] = true
		case events.EventTypePolicyViolation, events.EventTypePasswordChangeFailed:
			m.PolicyViolations++
		}
	}
	total := len(entries)
	if total > 0 {
		m.RiskScore = int(math.Round(float64(total-compliant) / float64(total) * 100))
	}
	m.ComplianceScore = percentage(compliant, total)
	delete(affected, 0)
	m.Vulnerabilities = len(affected)
	return m, nil
}

type SessionMetrics struct {
	TotalSessions      int            `json:"totalSessions"`
	ActiveSessions     int            `json:"activeSessions"`
	SuspiciousSessions int            `json:"suspiciousSessions"`
	UniqueDevices      int            `json:"uniqueDevices"`
	AverageDuration    time.Duration  `json:"averageDuration"`
	ByCountry          map[string]int `json:"byCountry"`
	ByHour             [24]int        `json:"byHour"`
	ByDayOfWeek        [7]int         `json:"byDayOfWeek"`
}

func (e *Engine) GetSessionMetrics(ctx context.Context, siteID string, r Range) (*SessionMetrics, error) {
	all, err := e.sessionRepo.FindSince(ctx, siteID, 0, r.From)
	if err != nil {
		return nil, err
	}

	m := &SessionMetrics{ByCountry: map[string]int{}}
	devices := map[string]bool{}
	var totalDuration time.Duration
	now := time.Now()
	for _, s := range all {
		if !r.To.IsZero() && !s.CreatedAt.Before(r.To) {
			continue
		}
		m.TotalSessions++
		if s.IsUsable(now) {
			m.ActiveSessions++
		}
		if s.Suspicious {
			m.SuspiciousSessions++
		}
		devices[s.DeviceFingerprint] = true
		if s.Country != "" {
			m.ByCountry[s.Country]++
		}
		m.ByHour[s.CreatedAt.Hour()]++
		m.ByDayOfWeek[int(s.CreatedAt.Weekday())]++
		totalDuration += s.LastActivity.Sub(s.CreatedAt)
	}
	m.UniqueDevices = len(devices)
	if m.TotalSessions > 0 {
		m.AverageDuration = totalDuration / time.Duration(m.TotalSessions)
	}
	return m, nil
}

type UserBehaviorMetrics struct {
	LoginsByHour      [24]int        `json:"loginsByHour"`
	LoginsByDayOfWeek [7]int         `json:"loginsByDayOfWeek"`
	Countries         map[string]int `json:"countries"`
	DeviceCount       int            `json:"deviceCount"`
	AverageSession    time.Duration  `json:"averageSession"`
}

// GetUserBehaviorMetrics profiles one user's login habits over the range:
// when they log in, from where and from how many devices.
func (e *Engine) GetUserBehaviorMetrics(ctx context.Context, siteID string, userID uint, r Range) (*UserBehaviorMetrics, error) {
	logins, err := e.eventRepo.Find(ctx, events.Filter{
		SiteID: siteID,
		UserID: userID,
		Types:  []string{events.EventTypeLoginSuccess},
		From:   r.From,
		To:     r.To,
	})
	if err != nil {
		return nil, err
	}
	userSessions, err := e.sessionRepo.FindSince(ctx, siteID, userID, r.From)
	if err != nil {
		return nil, err
	}

	m := &UserBehaviorMetrics{Countries: map[string]int{}}
	for _, ev := range logins {
		m.LoginsByHour[ev.CreatedAt.Hour()]++
		m.LoginsByDayOfWeek[int(ev.CreatedAt.Weekday())]++
	}
	devices := map[string]bool{}
	var totalDuration time.Duration
	counted := 0
	for _, s := range userSessions {
		if !r.To.IsZero() && !s.CreatedAt.Before(r.To) {
			continue
		}
		devices[s.DeviceFingerprint] = true
		if s.Country != "" {
			m.Countries[s.Country]++
		}
		totalDuration += s.LastActivity.Sub(s.CreatedAt)
		counted++
	}
	m.DeviceCount = len(devices)
	if counted > 0 {
		m.AverageSession = totalDuration / time.Duration(counted)
	}
	return m, nil
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*100*100) / 100
}
