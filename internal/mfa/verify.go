package mfa

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/authcore-dev/authcore/internal/events"
	"github.com/authcore-dev/authcore/internal/profiles"
	"github.com/authcore-dev/authcore/internal/sessions"
	"github.com/authcore-dev/authcore/internal/store"
	"github.com/authcore-dev/authcore/model"
)

// VerifyRequest is one verification attempt. DeviceInfo is optional; without
// it the device trust signal stays false.
type VerifyRequest struct {
	UserID     uint
	SiteID     string
	Method     string
	Token      string
	DeviceInfo *sessions.DeviceInfo
}

// VerifyResult is the outcome of an attempt. A wrong token is Success=false
// with a nil error; errors are reserved for requests that could not be
// evaluated at all.
type VerifyResult struct {
	Success        bool       `json:"success"`
	Method         string     `json:"method"`
	TrustedDevice  bool       `json:"trustedDevice"`
	RequiresBackup bool       `json:"requiresBackup"`
	AttemptsLeft   int        `json:"attemptsLeft"`
	LockedUntil    *time.Time `json:"lockedUntil,omitempty"`
}

// VerifyMFA evaluates a factor token. The lockout gate runs before any secret
// is touched; every failure bumps the shared failed-attempt counter and the
// threshold arms the lockout atomically.
func (s *Service) VerifyMFA(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	profile, err := s.profileRepo.Get(ctx, req.UserID, req.SiteID)
	if errors.Is(err, profiles.ErrProfileNotFound) {
		if _, aerr := s.accountRepo.GetByID(ctx, req.UserID); aerr != nil {
			return nil, ErrUserNotFound
		}
		return nil, ErrFactorNotEnrolled
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if profile.IsLocked(now) {
		return nil, NewRateLimitedError(*profile.LockedUntil)
	}

	var ok bool
	switch req.Method {
	case model.MFAMethodTOTP:
		ok, err = s.verifyTOTPToken(ctx, req.UserID, req.Token)
	case model.MFAMethodSMS, model.MFAMethodEmail:
		ok, err = s.verifyDeliveredCode(ctx, req.UserID, req.SiteID, req.Method, req.Token)
	case model.MFAMethodBackupCode:
		ok, err = s.verifyBackupCode(ctx, req.UserID, req.Token, now)
	case model.MFAMethodBiometric:
		ok, err = s.verifyBiometricAssertion(ctx, req.UserID, req.Token, now)
	default:
		return nil, ErrUnsupportedMethod
	}
	if err != nil {
		return nil, err
	}

	if !ok {
		return s.recordFailure(ctx, req)
	}
	return s.recordSuccess(ctx, req, now)
}

func (s *Service) verifyTOTPToken(ctx context.Context, userID uint, token string) (bool, error) {
	factor, err := s.factorRepo.Get(ctx, userID, model.MFAMethodTOTP)
	if err != nil {
		return false, err
	}
	secret, err := s.cipher.Open(factor.Secret)
	if err != nil {
		return false, err
	}
	return validateTOTP(token, secret), nil
}

// verifyDeliveredCode checks a staged SMS or email code. The first successful
// verification doubles as enrollment confirmation: the target is promoted to
// a confirmed factor and the staged code is consumed.
func (s *Service) verifyDeliveredCode(ctx context.Context, userID uint, siteID string, method string, token string) (bool, error) {
	pending, err := s.pending.GetPending(ctx, userID, method)
	if errors.Is(err, store.ErrNotFound) {
		return false, ErrPendingFactorExpired
	}
	if err != nil {
		return false, err
	}
	code, err := s.cipher.Open(pending.SealedSecret)
	if err != nil {
		return false, err
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(token)) != 1 {
		return false, nil
	}

	s.pending.Remove(ctx, userID, method)

	if _, err := s.factorRepo.Get(ctx, userID, method); errors.Is(err, ErrFactorNotEnrolled) {
		err := s.factorRepo.Upsert(ctx, &model.FactorSecret{
			UserID:     userID,
			FactorType: method,
			Target:     pending.Target,
		})
		if err != nil {
			return false, err
		}
		err = s.profileRepo.Updates(ctx, userID, siteID, map[string]interface{}{
			"mfa_enabled": true,
			"mfa_method":  method,
		})
		if err != nil {
			return false, err
		}
		s.eventLog.RecordMFA(ctx, events.EventTypeMFAEnabled, userID, siteID, true, events.MFAPayload{
			Method:       method,
			MaskedTarget: maskTarget(pending.Target),
		})
	} else if err != nil {
		return false, err
	}
	return true, nil
}

// verifyBackupCode consumes a matching unused code. MarkUsed is guarded on
// used_at so a code raced by two attempts is spent exactly once.
func (s *Service) verifyBackupCode(ctx context.Context, userID uint, token string, now time.Time) (bool, error) {
	codes, err := s.backupRepo.FindUnused(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, code := range codes {
		if bcryptMatches(code.CodeHash, token) {
			consumed, err := s.backupRepo.MarkUsed(ctx, code.ID, now)
			if err != nil {
				return false, err
			}
			return consumed, nil
		}
	}
	return false, nil
}

func (s *Service) verifyBiometricAssertion(ctx context.Context, userID uint, assertion string, now time.Time) (bool, error) {
	factor, err := s.factorRepo.Get(ctx, userID, model.MFAMethodBiometric)
	if err != nil {
		return false, err
	}
	if err := verifyLoginAssertion(assertion, factor.PublicKey, now); err != nil {
		if errors.Is(err, ErrAssertionInvalid) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Service) recordSuccess(ctx context.Context, req VerifyRequest, now time.Time) (*VerifyResult, error) {
	if err := s.profileRepo.ResetFailedAttempts(ctx, req.UserID, req.SiteID, now); err != nil {
		return nil, err
	}

	trusted := false
	if req.DeviceInfo != nil && s.trust != nil {
		var err error
		trusted, err = s.trust.IsTrustedDevice(ctx, req.UserID, *req.DeviceInfo)
		if err != nil {
			slog.Warn("Could not evaluate device trust", "user", req.UserID, "error", err)
			trusted = false
		}
	}

	s.eventLog.RecordMFA(ctx, events.EventTypeMFAVerification, req.UserID, req.SiteID, true, events.MFAPayload{
		Method:        req.Method,
		TrustedDevice: trusted,
	})
	return &VerifyResult{
		Success:       true,
		Method:        req.Method,
		TrustedDevice: trusted,
		AttemptsLeft:  int(s.cfg.MaxAttempts),
	}, nil
}

func (s *Service) recordFailure(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	attempts, lockedUntil, err := s.profileRepo.IncrementFailedAttempts(ctx, req.UserID, req.SiteID, s.cfg.MaxAttempts, s.cfg.LockDuration)
	if err != nil {
		return nil, err
	}

	attemptsLeft := 0
	if attempts < s.cfg.MaxAttempts {
		attemptsLeft = int(s.cfg.MaxAttempts - attempts)
	}
	requiresBackup := req.Method != model.MFAMethodBackupCode

	s.eventLog.RecordMFA(ctx, events.EventTypeMFAVerificationFailed, req.UserID, req.SiteID, false, events.MFAPayload{
		Method:         req.Method,
		AttemptsLeft:   attemptsLeft,
		BackupRequired: requiresBackup,
	})
	if lockedUntil != nil && attempts == s.cfg.MaxAttempts {
		s.eventLog.RecordAccountLocked(ctx, req.UserID, req.SiteID, events.MFAPayload{
			Method: req.Method,
			Reason: "failed attempt threshold reached",
		})
	}

	return &VerifyResult{
		Success:        false,
		Method:         req.Method,
		RequiresBackup: requiresBackup,
		AttemptsLeft:   attemptsLeft,
		LockedUntil:    lockedUntil,
	}, nil
}
