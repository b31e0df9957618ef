package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/authcore-dev/authcore/internal/events"
	"github.com/authcore-dev/authcore/model"
	"github.com/authcore-dev/authcore/params"
)

const (
	AnomalyTypeUnusualLoginTime = "unusual_login_time"
	AnomalyTypeNewDevices       = "multiple_new_devices"
	AnomalyTypeImpossibleTravel = "impossible_travel"
	AnomalyTypeBruteForce       = "brute_force_pattern"
)

type Anomaly struct {
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Severity    string         `json:"severity"`
	Confidence  float64        `json:"confidence"`
	Timestamp   time.Time      `json:"timestamp"`
	UserID      uint           `json:"userId,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// AnomalyReport is the combined output of all detectors. Empty slices mean
// nothing triggered, never an error.
type AnomalyReport struct {
	Anomalies       []Anomaly `json:"anomalies"`
	RiskFactors     []string  `json:"riskFactors"`
	Recommendations []string  `json:"recommendations"`
}

// DetectAnomalies runs the independent detectors over the trailing window.
// userID zero scans the whole site.
func (e *Engine) DetectAnomalies(ctx context.Context, siteID string, userID uint, windowDays int) (*AnomalyReport, error) {
	since := time.Now().AddDate(0, 0, -windowDays)

	windowSessions, err := e.sessionRepo.FindSince(ctx, siteID, userID, since)
	if err != nil {
		return nil, err
	}
	failedLogins, err := e.eventRepo.Count(ctx, events.Filter{
		SiteID: siteID,
		UserID: userID,
		Types:  []string{events.EventTypeLoginFailure, events.EventTypeMFAVerificationFailed},
		From:   since,
	})
	if err != nil {
		return nil, err
	}

	report := &AnomalyReport{
		Anomalies:       []Anomaly{},
		RiskFactors:     []string{},
		Recommendations: []string{},
	}
	e.detectOffHours(report, windowSessions, userID)
	e.detectNewDevices(report, windowSessions, userID)
	e.detectImpossibleTravel(report, windowSessions, userID)
	e.detectBruteForce(report, failedLogins, userID)
	return report, nil
}

func (e *Engine) detectOffHours(report *AnomalyReport, windowSessions []*model.Session, userID uint) {
	count := 0
	var last time.Time
	for _, s := range windowSessions {
		hour := s.CreatedAt.Hour()
		if hour >= params.AnomalyOffHoursStart && hour < params.AnomalyOffHoursEnd {
			count++
			last = s.CreatedAt
		}
	}
	if count == 0 {
		return
	}
	report.Anomalies = append(report.Anomalies, Anomaly{
		Type:        AnomalyTypeUnusualLoginTime,
		Description: fmt.Sprintf("%d logins between %02d:00 and %02d:00", count, params.AnomalyOffHoursStart, params.AnomalyOffHoursEnd),
		Severity:    events.SeverityWarning,
		Confidence:  clampConfidence(0.4 + 0.1*float64(count)),
		Timestamp:   last,
		UserID:      userID,
		Metadata:    map[string]any{"count": count},
	})
	report.RiskFactors = append(report.RiskFactors, "Logins during unusual hours")
	report.Recommendations = append(report.Recommendations, "Confirm off-hours logins with the account owner")
}

func (e *Engine) detectNewDevices(report *AnomalyReport, windowSessions []*model.Session, userID uint) {
	devices := map[string]bool{}
	var last time.Time
	for _, s := range windowSessions {
		devices[s.DeviceFingerprint] = true
		if s.CreatedAt.After(last) {
			last = s.CreatedAt
		}
	}
	if len(devices) <= params.AnomalyNewDeviceLimit {
		return
	}
	report.Anomalies = append(report.Anomalies, Anomaly{
		Type:        AnomalyTypeNewDevices,
		Description: fmt.Sprintf("%d distinct devices seen in the window", len(devices)),
		Severity:    events.SeverityWarning,
		Confidence:  0.7,
		Timestamp:   last,
		UserID:      userID,
		Metadata:    map[string]any{"deviceCount": len(devices)},
	})
	report.RiskFactors = append(report.RiskFactors, "Unusually many new devices")
	report.Recommendations = append(report.Recommendations, "Review device list and terminate unrecognized sessions")
}

// detectImpossibleTravel flags consecutive sessions from different countries
// closer together than a plausible travel time. Sessions arrive oldest first.
func (e *Engine) detectImpossibleTravel(report *AnomalyReport, windowSessions []*model.Session, userID uint) {
	for i := 1; i < len(windowSessions); i++ {
		prev, cur := windowSessions[i-1], windowSessions[i]
		if prev.Country == "" || cur.Country == "" || prev.Country == cur.Country {
			continue
		}
		if prev.UserID != cur.UserID {
			continue
		}
		gap := cur.CreatedAt.Sub(prev.CreatedAt)
		if gap >= params.AnomalyTravelWindowHours*time.Hour {
			continue
		}
		report.Anomalies = append(report.Anomalies, Anomaly{
			Type:        AnomalyTypeImpossibleTravel,
			Description: fmt.Sprintf("Sessions from %s and %s within %s", prev.Country, cur.Country, gap.Round(time.Minute)),
			Severity:    events.SeverityCritical,
			Confidence:  0.9,
			Timestamp:   cur.CreatedAt,
			UserID:      cur.UserID,
			Metadata: map[string]any{
				"fromCountry": prev.Country,
				"toCountry":   cur.Country,
				"gapMinutes":  int(gap.Minutes()),
			},
		})
		report.RiskFactors = append(report.RiskFactors, "Geographically impossible session sequence")
		report.Recommendations = append(report.Recommendations, "Force re-authentication and review recent sessions")
		return
	}
}

func (e *Engine) detectBruteForce(report *AnomalyReport, failedLogins int64, userID uint) {
	if failedLogins <= params.AnomalyFailedLoginLimit {
		return
	}
	report.Anomalies = append(report.Anomalies, Anomaly{
		Type:        AnomalyTypeBruteForce,
		Description: fmt.Sprintf("%d failed login attempts in the window", failedLogins),
		Severity:    events.SeverityCritical,
		Confidence:  0.85,
		Timestamp:   time.Now(),
		UserID:      userID,
		Metadata:    map[string]any{"failedAttempts": failedLogins},
	})
	report.RiskFactors = append(report.RiskFactors, "Sustained failed login pattern")
	report.Recommendations = append(report.Recommendations, "Enable MFA and consider tightening the lockout policy")
}

func clampConfidence(c float64) float64 {
	if c > 0.95 {
		return 0.95
	}
	return c
}
