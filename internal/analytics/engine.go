// Package analytics aggregates the event log and session store into
// authentication metrics, anomaly reports, per-user risk assessments and
// trend series. It reads the shared state, it never mutates it; detected
// anomalies are fed back through the event log only.
package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/authcore-dev/authcore/internal/events"
	"github.com/authcore-dev/authcore/internal/profiles"
	"github.com/authcore-dev/authcore/internal/sessions"
)

// Range bounds a metrics query: From inclusive, To exclusive.
type Range struct {
	From time.Time
	To   time.Time
}

// LastDays is the range covering the trailing n days.
func LastDays(n int) Range {
	now := time.Now()
	return Range{From: now.AddDate(0, 0, -n), To: now}
}

type Engine struct {
	eventRepo   events.EventRepository
	sessionRepo sessions.SessionRepository
	profileRepo profiles.ProfileRepository
	eventLog    *events.Logger
}

func NewEngine(eventRepo events.EventRepository, sessionRepo sessions.SessionRepository, profileRepo profiles.ProfileRepository, eventLog *events.Logger) *Engine {
	return &Engine{
		eventRepo:   eventRepo,
		sessionRepo: sessionRepo,
		profileRepo: profileRepo,
		eventLog:    eventLog,
	}
}

// SweepAnomalies runs the detectors site-wide and records every finding as a
// suspicious_activity event.
func (e *Engine) SweepAnomalies(ctx context.Context, siteIDs []string, windowDays int) {
	for _, siteID := range siteIDs {
		report, err := e.DetectAnomalies(ctx, siteID, 0, windowDays)
		if err != nil {
			slog.Error("Anomaly sweep failed", "site", siteID, "error", err)
			continue
		}
		for _, anomaly := range report.Anomalies {
			e.eventLog.RecordAnomaly(ctx, anomaly.UserID, siteID, events.AnomalyPayload{
				AnomalyType: anomaly.Type,
				Description: anomaly.Description,
				Confidence:  anomaly.Confidence,
			})
		}
	}
}

// StartSweeper runs the anomaly sweep on a ticker until ctx is canceled. It
// runs off the login path.
func (e *Engine) StartSweeper(ctx context.Context, interval time.Duration, siteIDs []string, windowDays int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.SweepAnomalies(ctx, siteIDs, windowDays)
		}
	}
}
