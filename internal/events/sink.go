package events

import (
	"log/slog"

	"github.com/authcore-dev/authcore/model"
)

// LogSink mirrors every recorded event to the process log. It stands in for
// an external audit pipeline; swapping it out does not touch the Logger.
type LogSink struct{}

func (LogSink) Consume(event *model.SecurityEvent) {
	slog.Info("security event",
		"type", event.EventType,
		"severity", event.Severity,
		"user", event.UserID,
		"site", event.SiteID,
		"success", event.Success,
	)
}
