// Package mfa implements multi-factor enrollment and verification: TOTP,
// SMS and email codes, single-use backup codes and biometric assertions.
package mfa

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"math/big"
	"strings"
	"time"

	"github.com/authcore-dev/authcore/internal/accounts"
	"github.com/authcore-dev/authcore/internal/delivery"
	"github.com/authcore-dev/authcore/internal/events"
	"github.com/authcore-dev/authcore/internal/profiles"
	"github.com/authcore-dev/authcore/internal/render"
	"github.com/authcore-dev/authcore/internal/secrets"
	"github.com/authcore-dev/authcore/internal/sessions"
	"github.com/authcore-dev/authcore/internal/store"
	"github.com/authcore-dev/authcore/model"
	"github.com/authcore-dev/authcore/params"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
)

// TrustChecker reports whether a device was seen on a previously verified
// session. Satisfied by the session manager.
type TrustChecker interface {
	IsTrustedDevice(ctx context.Context, userID uint, deviceInfo sessions.DeviceInfo) (bool, error)
}

type Config struct {
	Issuer       string        // TOTP provisioning issuer, usually the site name
	MaxAttempts  uint          // failed verifications before lockout
	LockDuration time.Duration // lockout window once the threshold trips
}

type Service struct {
	cfg         Config
	accountRepo accounts.AccountRepository
	profileRepo profiles.ProfileRepository
	factorRepo  FactorSecretRepository
	backupRepo  BackupCodeRepository
	pending     *pendingFactorStore
	cipher      *secrets.Cipher
	smsSender   delivery.SMSSender
	mailSender  delivery.MailSender
	renderer    *render.Renderer
	trust       TrustChecker
	eventLog    *events.Logger
}

func NewService(
	cfg Config,
	accountRepo accounts.AccountRepository,
	profileRepo profiles.ProfileRepository,
	factorRepo FactorSecretRepository,
	backupRepo BackupCodeRepository,
	storage store.Storage,
	cipher *secrets.Cipher,
	smsSender delivery.SMSSender,
	mailSender delivery.MailSender,
	renderer *render.Renderer,
	trust TrustChecker,
	eventLog *events.Logger,
) *Service {
	return &Service{
		cfg:         cfg,
		accountRepo: accountRepo,
		profileRepo: profileRepo,
		factorRepo:  factorRepo,
		backupRepo:  backupRepo,
		pending:     newPendingFactorStore(storage),
		cipher:      cipher,
		smsSender:   smsSender,
		mailSender:  mailSender,
		renderer:    renderer,
		trust:       trust,
		eventLog:    eventLog,
	}
}

// ensureProfile loads the user's security profile, creating it on first
// interaction.
func (s *Service) ensureProfile(ctx context.Context, userID uint, siteID string) (*model.SecurityProfile, error) {
	profile, err := s.profileRepo.Get(ctx, userID, siteID)
	if errors.Is(err, profiles.ErrProfileNotFound) {
		profile = &model.SecurityProfile{
			UserID:            userID,
			SiteID:            siteID,
			PasswordChangedAt: time.Now(),
			PasswordExpiresAt: time.Now().Add(params.PasswordExpiryDuration),
		}
		if err := s.profileRepo.Upsert(ctx, profile); err != nil {
			return nil, err
		}
		return profile, nil
	}
	return profile, err
}

func generateOTP(length int) string {
	var b strings.Builder
	b.Grow(length)
	ten := big.NewInt(10)
	for i := 0; i < length; i++ {
		n, _ := rand.Int(rand.Reader, ten)
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String()
}

// TOTPSetup is returned once at enrollment; the raw secret and backup codes
// are never retrievable again.
type TOTPSetup struct {
	Secret      string   `json:"secret"`
	QRCodePNG   string   `json:"qrCodePng"` // base64 PNG of the provisioning URI
	BackupCodes []string `json:"backupCodes"`
}

// SetupTOTP stages a new TOTP secret and issues fresh backup codes. The
// profile stays mfaEnabled=false until VerifyTOTPSetup confirms the secret.
func (s *Service) SetupTOTP(ctx context.Context, userID uint, siteID string) (*TOTPSetup, error) {
	account, err := s.accountRepo.GetByID(ctx, userID)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.ensureProfile(ctx, userID, siteID); err != nil {
		return nil, err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.cfg.Issuer,
		AccountName: account.Username,
	})
	if err != nil {
		return nil, err
	}

	img, err := key.Image(256, 256)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	rawCodes, hashedCodes, err := generateBackupCodes(userID)
	if err != nil {
		return nil, err
	}
	if err := s.backupRepo.ReplaceAll(ctx, userID, hashedCodes); err != nil {
		return nil, err
	}

	sealed, err := s.cipher.Seal(key.Secret())
	if err != nil {
		return nil, err
	}
	err = s.pending.Stage(ctx, userID, PendingFactor{
		FactorType:   model.MFAMethodTOTP,
		SealedSecret: sealed,
	}, params.TOTPEnrollExpiration)
	if err != nil {
		return nil, err
	}

	s.eventLog.RecordMFA(ctx, events.EventTypeMFASetupInitiated, userID, siteID, true, events.MFAPayload{
		Method: model.MFAMethodTOTP,
	})
	return &TOTPSetup{
		Secret:      key.Secret(),
		QRCodePNG:   base64.StdEncoding.EncodeToString(buf.Bytes()),
		BackupCodes: rawCodes,
	}, nil
}

// VerifyTOTPSetup confirms a staged TOTP secret. Failure does not touch the
// lockout counter at setup time.
func (s *Service) VerifyTOTPSetup(ctx context.Context, userID uint, siteID string, token string) (bool, error) {
	pending, err := s.pending.GetPending(ctx, userID, model.MFAMethodTOTP)
	if errors.Is(err, store.ErrNotFound) {
		return false, ErrPendingFactorExpired
	}
	if err != nil {
		return false, err
	}
	secret, err := s.cipher.Open(pending.SealedSecret)
	if err != nil {
		return false, err
	}

	if !validateTOTP(token, secret) {
		s.eventLog.RecordMFA(ctx, events.EventTypeMFAVerificationFailed, userID, siteID, false, events.MFAPayload{
			Method: model.MFAMethodTOTP,
			Reason: "setup verification failed",
		})
		return false, nil
	}

	err = s.factorRepo.Upsert(ctx, &model.FactorSecret{
		UserID:     userID,
		FactorType: model.MFAMethodTOTP,
		Secret:     pending.SealedSecret,
	})
	if err != nil {
		return false, err
	}
	err = s.profileRepo.Updates(ctx, userID, siteID, map[string]interface{}{
		"mfa_enabled": true,
		"mfa_method":  model.MFAMethodTOTP,
	})
	if err != nil {
		return false, err
	}
	s.pending.Remove(ctx, userID, model.MFAMethodTOTP)

	s.eventLog.RecordMFA(ctx, events.EventTypeMFAEnabled, userID, siteID, true, events.MFAPayload{
		Method: model.MFAMethodTOTP,
	})
	return true, nil
}

// CodeSetup is the result of staging a delivery-based factor.
type CodeSetup struct {
	VerificationCode string    `json:"verificationCode"`
	ExpiresAt        time.Time `json:"expiresAt"`
}

// SetupSMS stages a 6-digit code and dispatches it to the phone number. A
// dispatch failure fails the enrollment step without leaving a usable staged
// code behind.
func (s *Service) SetupSMS(ctx context.Context, userID uint, siteID string, phoneNumber string) (*CodeSetup, error) {
	return s.setupCodeFactor(ctx, userID, siteID, model.MFAMethodSMS, phoneNumber, params.SMSCodeExpiration, func(code string) error {
		return s.smsSender.SendCode(phoneNumber, code)
	})
}

// SetupEmail mirrors SetupSMS over the mail gateway.
func (s *Service) SetupEmail(ctx context.Context, userID uint, siteID string, address string) (*CodeSetup, error) {
	return s.setupCodeFactor(ctx, userID, siteID, model.MFAMethodEmail, address, params.EmailCodeExpiration, func(code string) error {
		return delivery.SendVerificationCode(s.mailSender, s.renderer, address, code, int(params.EmailCodeExpiration.Minutes()))
	})
}

func (s *Service) setupCodeFactor(ctx context.Context, userID uint, siteID string, method string, target string, ttl time.Duration, dispatch func(code string) error) (*CodeSetup, error) {
	if _, err := s.accountRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if _, err := s.ensureProfile(ctx, userID, siteID); err != nil {
		return nil, err
	}

	code := generateOTP(params.VerificationCodeLength)
	sealed, err := s.cipher.Seal(code)
	if err != nil {
		return nil, err
	}
	if err := s.pending.Stage(ctx, userID, PendingFactor{
		FactorType:   method,
		SealedSecret: sealed,
		Target:       target,
	}, ttl); err != nil {
		return nil, err
	}

	if err := dispatch(code); err != nil {
		// fail closed for this enrollment step, leave no staged code behind
		s.pending.Remove(ctx, userID, method)
		return nil, fmt.Errorf("%w: %v", ErrDeliveryUnavailable, err)
	}

	s.eventLog.RecordMFA(ctx, events.EventTypeMFASetupInitiated, userID, siteID, true, events.MFAPayload{
		Method:       method,
		MaskedTarget: maskTarget(target),
	})
	return &CodeSetup{
		VerificationCode: code,
		ExpiresAt:        time.Now().Add(ttl),
	}, nil
}

// BiometricSetup carries the registration challenge in WebAuthn shape.
type BiometricSetup struct {
	ChallengeID         string         `json:"challengeId"`
	Challenge           string         `json:"challenge"`
	RegistrationOptions map[string]any `json:"registrationOptions"`
}

// SetupBiometric stages a short-lived registration challenge for the device.
func (s *Service) SetupBiometric(ctx context.Context, userID uint, siteID string, deviceInfo sessions.DeviceInfo) (*BiometricSetup, error) {
	account, err := s.accountRepo.GetByID(ctx, userID)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.ensureProfile(ctx, userID, siteID); err != nil {
		return nil, err
	}

	challenge, err := randomChallenge(32)
	if err != nil {
		return nil, err
	}
	challengeID := uuid.NewString()
	sealed, err := s.cipher.Seal(challenge)
	if err != nil {
		return nil, err
	}
	if err := s.pending.Stage(ctx, userID, PendingFactor{
		FactorType:   model.MFAMethodBiometric,
		SealedSecret: sealed,
		ChallengeID:  challengeID,
	}, params.BiometricChallengeMaxAge); err != nil {
		return nil, err
	}

	s.eventLog.RecordMFA(ctx, events.EventTypeMFASetupInitiated, userID, siteID, true, events.MFAPayload{
		Method: model.MFAMethodBiometric,
	})
	return &BiometricSetup{
		ChallengeID: challengeID,
		Challenge:   challenge,
		RegistrationOptions: map[string]any{
			"challenge": challenge,
			"rp":        map[string]any{"name": s.cfg.Issuer},
			"user": map[string]any{
				"id":   fmt.Sprintf("%d", userID),
				"name": account.Username,
			},
			"pubKeyCredParams": []map[string]any{
				{"type": "public-key", "alg": -7}, // ES256
			},
			"timeout": params.BiometricChallengeMaxAge.Milliseconds(),
		},
	}, nil
}

// RegisterBiometric confirms a staged biometric challenge: the device proves
// possession of its private key by signing the challenge, and the public key
// becomes the confirmed factor.
func (s *Service) RegisterBiometric(ctx context.Context, userID uint, siteID string, challengeID string, publicKeyPEM string, assertion string) error {
	pending, err := s.pending.GetPending(ctx, userID, model.MFAMethodBiometric)
	if errors.Is(err, store.ErrNotFound) {
		return ErrPendingFactorExpired
	}
	if err != nil {
		return err
	}
	if pending.ChallengeID != challengeID {
		return ErrAssertionInvalid
	}
	challenge, err := s.cipher.Open(pending.SealedSecret)
	if err != nil {
		return err
	}
	if err := verifyAssertion(assertion, publicKeyPEM, challenge); err != nil {
		s.eventLog.RecordMFA(ctx, events.EventTypeMFAVerificationFailed, userID, siteID, false, events.MFAPayload{
			Method: model.MFAMethodBiometric,
			Reason: "registration assertion invalid",
		})
		return err
	}

	err = s.factorRepo.Upsert(ctx, &model.FactorSecret{
		UserID:     userID,
		FactorType: model.MFAMethodBiometric,
		PublicKey:  publicKeyPEM,
	})
	if err != nil {
		return err
	}
	err = s.profileRepo.Updates(ctx, userID, siteID, map[string]interface{}{
		"mfa_enabled": true,
		"mfa_method":  model.MFAMethodBiometric,
	})
	if err != nil {
		return err
	}
	s.pending.Remove(ctx, userID, model.MFAMethodBiometric)

	s.eventLog.RecordMFA(ctx, events.EventTypeMFAEnabled, userID, siteID, true, events.MFAPayload{
		Method: model.MFAMethodBiometric,
	})
	return nil
}

// DisableMFA clears the user's factors, backup codes and enabled state.
func (s *Service) DisableMFA(ctx context.Context, userID uint, siteID string, actingAdminID uint) error {
	err := s.profileRepo.Updates(ctx, userID, siteID, map[string]interface{}{
		"mfa_enabled": false,
		"mfa_method":  "",
	})
	if err != nil {
		return err
	}
	if err := s.factorRepo.DeleteAll(ctx, userID); err != nil {
		return err
	}
	if err := s.backupRepo.DeleteAll(ctx, userID); err != nil {
		return err
	}

	reason := "disabled by user"
	if actingAdminID != 0 {
		reason = fmt.Sprintf("disabled by admin %d", actingAdminID)
	}
	s.eventLog.RecordMFA(ctx, events.EventTypeMFADisabled, userID, siteID, true, events.MFAPayload{
		Reason: reason,
	})
	return nil
}

// Status summarizes the user's MFA posture.
type Status struct {
	Enabled              bool       `json:"enabled"`
	Method               string     `json:"method,omitempty"`
	BackupCodesRemaining int        `json:"backupCodesRemaining"`
	LastVerification     *time.Time `json:"lastVerification,omitempty"`
}

func (s *Service) GetMFAStatus(ctx context.Context, userID uint, siteID string) (*Status, error) {
	profile, err := s.profileRepo.Get(ctx, userID, siteID)
	if errors.Is(err, profiles.ErrProfileNotFound) {
		return &Status{Enabled: false}, nil
	}
	if err != nil {
		return nil, err
	}
	remaining, err := s.backupRepo.CountUnused(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Status{
		Enabled:              profile.MFAEnabled,
		Method:               profile.MFAMethod,
		BackupCodesRemaining: int(remaining),
		LastVerification:     profile.LastMFAVerification,
	}, nil
}

func maskTarget(target string) string {
	if at := strings.IndexByte(target, '@'); at > 0 {
		if at <= 2 {
			return "**" + target[at:]
		}
		return target[:2] + "***" + target[at:]
	}
	if len(target) <= 4 {
		return "****"
	}
	return "****" + target[len(target)-4:]
}
