package analytics

import (
	"context"
	"time"

	"github.com/authcore-dev/authcore/internal/events"
)

const (
	GranularityHour = "hour"
	GranularityDay  = "day"
	GranularityWeek = "week"
)

type Dataset struct {
	Label string `json:"label"`
	Data  []int  `json:"data"`
}

// Trends is a label axis with one aligned series per tracked event type.
type Trends struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

var trackedSeries = []struct {
	label string
	types []string
}{
	{"Successful logins", []string{events.EventTypeLoginSuccess}},
	{"Failed logins", []string{events.EventTypeLoginFailure}},
	{"MFA usage", []string{events.EventTypeMFAVerification}},
	{"Suspicious activity", []string{events.EventTypeSuspiciousActivity}},
}

// GetAuthenticationTrends buckets the trailing days of events into periods of
// the requested granularity. Unknown granularities fall back to daily.
func (e *Engine) GetAuthenticationTrends(ctx context.Context, siteID string, days int, granularity string) (*Trends, error) {
	step, labelFormat := bucketStep(granularity)
	now := time.Now()
	start := now.AddDate(0, 0, -days).Truncate(step)
	buckets := int(now.Sub(start)/step) + 1

	trends := &Trends{
		Labels:   make([]string, buckets),
		Datasets: make([]Dataset, len(trackedSeries)),
	}
	for i := 0; i < buckets; i++ {
		trends.Labels[i] = start.Add(time.Duration(i) * step).Format(labelFormat)
	}

	allTypes := []string{}
	for _, series := range trackedSeries {
		allTypes = append(allTypes, series.types...)
	}
	entries, err := e.eventRepo.Find(ctx, events.Filter{
		SiteID: siteID,
		Types:  allTypes,
		From:   start,
	})
	if err != nil {
		return nil, err
	}

	for i, series := range trackedSeries {
		data := make([]int, buckets)
		for _, ev := range entries {
			if !matchesType(ev.EventType, series.types) {
				continue
			}
			idx := int(ev.CreatedAt.Sub(start) / step)
			if idx >= 0 && idx < buckets {
				data[idx]++
			}
		}
		trends.Datasets[i] = Dataset{Label: series.label, Data: data}
	}
	return trends, nil
}

func bucketStep(granularity string) (time.Duration, string) {
	switch granularity {
	case GranularityHour:
		return time.Hour, "2006-01-02 15:00"
	case GranularityWeek:
		return 7 * 24 * time.Hour, "2006-01-02"
	default:
		return 24 * time.Hour, "2006-01-02"
	}
}

func matchesType(eventType string, types []string) bool {
	for _, t := range types {
		if t == eventType {
			return true
		}
	}
	return false
}
