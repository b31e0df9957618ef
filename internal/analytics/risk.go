package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/authcore-dev/authcore/internal/profiles"
	"github.com/authcore-dev/authcore/params"
)

const (
	RiskLevelLow      = "low"
	RiskLevelMedium   = "medium"
	RiskLevelHigh     = "high"
	RiskLevelCritical = "critical"
)

type RiskFactor struct {
	Name   string `json:"name"`
	Impact int    `json:"impact"`
}

type RiskAssessment struct {
	OverallRisk     int          `json:"overallRisk"`
	RiskLevel       string       `json:"riskLevel"`
	Factors         []RiskFactor `json:"factors"`
	Recommendations []string     `json:"recommendations"`
	Score           int          `json:"score"`
}

// AssessUserRisk computes the additive risk model over the user's security
// profile. A user without a profile gets the fixed default-risk posture for
// unknown accounts rather than a computed score.
func (e *Engine) AssessUserRisk(ctx context.Context, userID uint, siteID string) (*RiskAssessment, error) {
	profile, err := e.profileRepo.Get(ctx, userID, siteID)
	if errors.Is(err, profiles.ErrProfileNotFound) {
		return &RiskAssessment{
			OverallRisk:     50,
			RiskLevel:       RiskLevelMedium,
			Factors:         []RiskFactor{{Name: "No security profile", Impact: 50}},
			Recommendations: []string{"Create a security profile and enable MFA"},
			Score:           50,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	assessment := &RiskAssessment{
		Factors:         []RiskFactor{},
		Recommendations: []string{},
	}
	score := 0
	add := func(impact int, name, recommendation string) {
		score += impact
		assessment.Factors = append(assessment.Factors, RiskFactor{Name: name, Impact: impact})
		if recommendation != "" {
			assessment.Recommendations = append(assessment.Recommendations, recommendation)
		}
	}

	if !profile.MFAEnabled {
		add(30, "MFA disabled", "Enable multi-factor authentication")
	}
	if profile.FailedAttempts > 0 {
		impact := int(profile.FailedAttempts) * 5
		if impact > 25 {
			impact = 25
		}
		add(impact, "Recent failed verification attempts", "Investigate repeated verification failures")
	}
	if profile.ActiveSessionCount > params.RiskSessionCountLimit {
		add(15, "High concurrent session count", "Review and terminate unused sessions")
	}
	if profile.LastMFAVerification == nil || time.Since(*profile.LastMFAVerification) > params.RiskStaleLoginAge {
		add(10, "No recent verified login", "")
	}
	for _, factor := range storedRiskFactors(profile.RiskFactors) {
		add(10, factor, "")
	}

	if score > 100 {
		score = 100
	}
	assessment.OverallRisk = score
	assessment.Score = score
	assessment.RiskLevel = riskLevel(score)
	return assessment, nil
}

func storedRiskFactors(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var factors []string
	if err := json.Unmarshal(raw, &factors); err != nil {
		return nil
	}
	return factors
}

func riskLevel(score int) string {
	switch {
	case score < 30:
		return RiskLevelLow
	case score < 60:
		return RiskLevelMedium
	case score < 80:
		return RiskLevelHigh
	default:
		return RiskLevelCritical
	}
}
