// Package password implements the password policy engine: validation and
// scoring against named policy presets, reuse and breach detection, secure
// generation, change handling and expiry checks.
package password

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/authcore-dev/authcore/internal/accounts"
	"github.com/authcore-dev/authcore/internal/breach"
	"github.com/authcore-dev/authcore/internal/delivery"
	"github.com/authcore-dev/authcore/internal/events"
	"github.com/authcore-dev/authcore/internal/profiles"
	"github.com/authcore-dev/authcore/internal/render"
	"github.com/authcore-dev/authcore/model"
	"github.com/authcore-dev/authcore/params"
	"golang.org/x/crypto/bcrypt"
)

type Engine struct {
	profileRepo   profiles.ProfileRepository
	historyRepo   HistoryRepository
	breachChecker breach.Checker
	accountRepo   accounts.AccountRepository
	mailSender    delivery.MailSender
	renderer      *render.Renderer
	eventLog      *events.Logger
}

func NewEngine(profileRepo profiles.ProfileRepository, historyRepo HistoryRepository, breachChecker breach.Checker, accountRepo accounts.AccountRepository, mailSender delivery.MailSender, renderer *render.Renderer, eventLog *events.Logger) *Engine {
	return &Engine{
		profileRepo:   profileRepo,
		historyRepo:   historyRepo,
		breachChecker: breachChecker,
		accountRepo:   accountRepo,
		mailSender:    mailSender,
		renderer:      renderer,
		eventLog:      eventLog,
	}
}

// Validate runs the full ordered check set for a candidate password. History
// reuse is checked when userID is non-zero; the breach lookup fails open with
// a logged warning so a third-party outage never blocks a password change.
func (e *Engine) Validate(ctx context.Context, password string, policyName string, info *UserInfo, userID uint) (*Result, error) {
	policy := GetPolicy(policyName)
	result := checkLocal(password, policy, info)

	if userID != 0 && policy.HistoryCount > 0 {
		reused, err := e.isReused(ctx, userID, password, policy.HistoryCount)
		if err != nil {
			return nil, err
		}
		if reused {
			result.addError("Password was used recently")
			result.suggest("Choose a password you have not used before")
		}
	}

	breachCtx, cancel := context.WithTimeout(ctx, params.BreachCheckTimeout)
	defer cancel()
	if breached, err := e.breachChecker.IsKnownBreached(breachCtx, password); err != nil {
		slog.Warn("Breach check unavailable, failing open", "error", err)
	} else if breached {
		result.addError("Password has appeared in a data breach")
		result.suggest("Choose a password not found in breach corpora")
	}

	result.finalize()
	return result, nil
}

func (e *Engine) isReused(ctx context.Context, userID uint, password string, historyCount int) (bool, error) {
	entries, err := e.historyRepo.FindRecent(ctx, userID, historyCount)
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if bcrypt.CompareHashAndPassword([]byte(entry.PasswordHash), []byte(password)) == nil {
			return true, nil
		}
	}
	return false, nil
}

// ChangeResult reports the outcome of a password change request.
type ChangeResult struct {
	Success     bool     `json:"success"`
	Errors      []string `json:"errors"`
	RequiresMFA bool     `json:"requiresMFA,omitempty"`
}

// ChangePassword verifies the current credential, validates the replacement
// and swaps the stored hash. Nothing is mutated before the checks pass; a
// storage failure after the swap is recorded as password_change_failed and
// returned to the caller.
func (e *Engine) ChangePassword(ctx context.Context, userID uint, siteID string, currentPassword, newPassword, confirmPassword string, policyName string, info *UserInfo) (*ChangeResult, error) {
	policy := GetPolicy(policyName)
	fail := func(reasons ...string) *ChangeResult {
		e.eventLog.RecordPassword(ctx, events.EventTypePasswordChangeFailed, userID, siteID, false, events.PasswordPayload{
			Policy: policy.Name,
			Errors: reasons,
		})
		return &ChangeResult{Success: false, Errors: reasons}
	}

	if newPassword != confirmPassword {
		return fail("New password and confirmation do not match"), ErrPasswordMismatch
	}

	profile, err := e.profileRepo.Get(ctx, userID, siteID)
	if errors.Is(err, profiles.ErrProfileNotFound) {
		// unknown users fail the same way as a wrong password
		return fail("Current password is incorrect"), ErrCurrentPasswordInvalid
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(currentPassword)) != nil {
		return fail("Current password is incorrect"), ErrCurrentPasswordInvalid
	}

	result, err := e.Validate(ctx, newPassword, policyName, info, userID)
	if err != nil {
		return nil, err
	}
	if !result.IsValid {
		return fail(result.Errors...), ErrPasswordPolicyViolated
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	err = e.profileRepo.Updates(ctx, userID, siteID, map[string]interface{}{
		"password_hash":       string(newHash),
		"password_changed_at": now,
		"password_expires_at": now.Add(policy.MaxAge),
	})
	if err != nil {
		fail("Password change could not be saved")
		return nil, err
	}
	if err := e.historyRepo.Insert(ctx, &model.PasswordHistoryEntry{
		UserID:       userID,
		PasswordHash: string(newHash),
	}); err != nil {
		// the new hash is already live; flag the missing history entry
		fail("Password history could not be recorded")
		return nil, err
	}

	e.eventLog.RecordPassword(ctx, events.EventTypePasswordChange, userID, siteID, true, events.PasswordPayload{
		Policy: policy.Name,
	})
	e.notifyChanged(ctx, userID)
	return &ChangeResult{
		Success:     true,
		Errors:      []string{},
		RequiresMFA: profile.MFAEnabled,
	}, nil
}

// notifyChanged mails the account's address that its password changed. The
// notice is best effort: delivery problems are logged, the completed change
// stands either way.
func (e *Engine) notifyChanged(ctx context.Context, userID uint) {
	if e.mailSender == nil {
		return
	}
	account, err := e.accountRepo.GetByID(ctx, userID)
	if err != nil {
		slog.Warn("Could not resolve account for password change notice", "user", userID, "error", err)
		return
	}
	if err := delivery.SendPasswordChangedNotice(e.mailSender, e.renderer, account.Email); err != nil {
		slog.Warn("Could not send password change notice", "user", userID, "error", err)
	}
}

// Generate returns a random password satisfying the named policy: one
// character from each required class first, the rest from the full charset,
// then a Fisher-Yates shuffle so required characters do not cluster at the
// front.
func (e *Engine) Generate(length int, policyName string) (string, error) {
	return Generate(length, policyName)
}

func Generate(length int, policyName string) (string, error) {
	policy := GetPolicy(policyName)

	const (
		lower  = "abcdefghijklmnopqrstuvwxyz"
		upper  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
		digits = "0123456789"
	)
	special := policy.SpecialChars
	if special == "" {
		special = defaultSpecialChars
	}

	var required []string
	full := ""
	for _, class := range []struct {
		chars    string
		required bool
	}{
		{lower, policy.RequireLowercase},
		{upper, policy.RequireUppercase},
		{digits, policy.RequireDigit},
		{special, policy.RequireSpecial},
	} {
		full += class.chars
		if class.required {
			required = append(required, class.chars)
		}
	}
	if length < len(required) || length < policy.MinLength {
		return "", ErrGenerateLengthTooShort
	}

	buf := make([]byte, 0, length)
	for _, chars := range required {
		ch, err := randomChar(chars)
		if err != nil {
			return "", err
		}
		buf = append(buf, ch)
	}
	for len(buf) < length {
		ch, err := randomChar(full)
		if err != nil {
			return "", err
		}
		buf = append(buf, ch)
	}

	for i := len(buf) - 1; i > 0; i-- {
		j, err := randomInt(i + 1)
		if err != nil {
			return "", err
		}
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf), nil
}

func randomChar(charset string) (byte, error) {
	idx, err := randomInt(len(charset))
	if err != nil {
		return 0, err
	}
	return charset[idx], nil
}

func randomInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// ExpiryStatus reports how far a user's password is from forced rotation.
type ExpiryStatus struct {
	Expired         bool       `json:"expired"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
	DaysUntilExpiry int        `json:"daysUntilExpiry,omitempty"`
}

func (e *Engine) CheckExpiry(ctx context.Context, userID uint, siteID string) (*ExpiryStatus, error) {
	profile, err := e.profileRepo.Get(ctx, userID, siteID)
	if err != nil {
		return nil, err
	}
	if profile.PasswordExpiresAt.IsZero() {
		return &ExpiryStatus{Expired: false}, nil
	}
	expiresAt := profile.PasswordExpiresAt
	now := time.Now()
	if !now.Before(expiresAt) {
		return &ExpiryStatus{Expired: true, ExpiresAt: &expiresAt}, nil
	}
	return &ExpiryStatus{
		Expired:         false,
		ExpiresAt:       &expiresAt,
		DaysUntilExpiry: int(expiresAt.Sub(now).Hours() / 24),
	}, nil
}
