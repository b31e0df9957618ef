package mfa

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"testing"
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
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
)

type fakeAccountRepo struct {
	accounts map[uint]*model.Account
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, userID uint) (*model.Account, error) {
	account, ok := r.accounts[userID]
	if !ok {
		return nil, accounts.ErrAccountNotFound
	}
	return account, nil
}

func (r *fakeAccountRepo) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	for _, account := range r.accounts {
		if account.Username == username {
			return account, nil
		}
	}
	return nil, accounts.ErrAccountNotFound
}

type fakeProfileRepo struct {
	profiles map[string]*model.SecurityProfile
}

func (r *fakeProfileRepo) key(userID uint, siteID string) string {
	return fmt.Sprintf("%d/%s", userID, siteID)
}

func (r *fakeProfileRepo) Get(ctx context.Context, userID uint, siteID string) (*model.SecurityProfile, error) {
	profile, ok := r.profiles[r.key(userID, siteID)]
	if !ok {
		return nil, profiles.ErrProfileNotFound
	}
	copied := *profile
	return &copied, nil
}

func (r *fakeProfileRepo) Upsert(ctx context.Context, profile *model.SecurityProfile) error {
	copied := *profile
	r.profiles[r.key(profile.UserID, profile.SiteID)] = &copied
	return nil
}

func (r *fakeProfileRepo) Updates(ctx context.Context, userID uint, siteID string, columns map[string]interface{}) error {
	profile, ok := r.profiles[r.key(userID, siteID)]
	if !ok {
		return profiles.ErrProfileNotFound
	}
	for col, val := range columns {
		switch col {
		case "mfa_enabled":
			profile.MFAEnabled = val.(bool)
		case "mfa_method":
			profile.MFAMethod = val.(string)
		case "failed_attempts":
			profile.FailedAttempts = uint(val.(int))
		case "locked_until":
			if val == nil {
				profile.LockedUntil = nil
			} else {
				t := val.(time.Time)
				profile.LockedUntil = &t
			}
		case "last_mfa_verification":
			t := val.(time.Time)
			profile.LastMFAVerification = &t
		}
	}
	return nil
}

func (r *fakeProfileRepo) IncrementFailedAttempts(ctx context.Context, userID uint, siteID string, threshold uint, lockFor time.Duration) (uint, *time.Time, error) {
	profile, ok := r.profiles[r.key(userID, siteID)]
	if !ok {
		return 0, nil, profiles.ErrProfileNotFound
	}
	profile.FailedAttempts++
	if profile.FailedAttempts >= threshold && !profile.IsLocked(time.Now()) {
		until := time.Now().Add(lockFor)
		profile.LockedUntil = &until
	}
	return profile.FailedAttempts, profile.LockedUntil, nil
}

func (r *fakeProfileRepo) ResetFailedAttempts(ctx context.Context, userID uint, siteID string, verifiedAt time.Time) error {
	profile, ok := r.profiles[r.key(userID, siteID)]
	if !ok {
		return profiles.ErrProfileNotFound
	}
	profile.FailedAttempts = 0
	profile.LockedUntil = nil
	profile.LastMFAVerification = &verifiedAt
	return nil
}

func (r *fakeProfileRepo) AdjustSessionCount(ctx context.Context, userID uint, siteID string, delta int) error {
	return nil
}

func (r *fakeProfileRepo) SetSessionCount(ctx context.Context, userID uint, siteID string, count uint) error {
	return nil
}

type fakeFactorRepo struct {
	factors map[string]*model.FactorSecret
}

func factorKey(userID uint, factorType string) string {
	return fmt.Sprintf("%d/%s", userID, factorType)
}

func (r *fakeFactorRepo) Upsert(ctx context.Context, secret *model.FactorSecret) error {
	r.factors[factorKey(secret.UserID, secret.FactorType)] = secret
	return nil
}

func (r *fakeFactorRepo) Get(ctx context.Context, userID uint, factorType string) (*model.FactorSecret, error) {
	secret, ok := r.factors[factorKey(userID, factorType)]
	if !ok {
		return nil, ErrFactorNotEnrolled
	}
	return secret, nil
}

func (r *fakeFactorRepo) DeleteAll(ctx context.Context, userID uint) error {
	for key, secret := range r.factors {
		if secret.UserID == userID {
			delete(r.factors, key)
		}
	}
	return nil
}

type fakeBackupRepo struct {
	codes  []*model.BackupCode
	nextID uint
}

func (r *fakeBackupRepo) ReplaceAll(ctx context.Context, userID uint, codes []*model.BackupCode) error {
	kept := r.codes[:0]
	for _, code := range r.codes {
		if code.UserID != userID {
			kept = append(kept, code)
		}
	}
	r.codes = kept
	for _, code := range codes {
		r.nextID++
		code.ID = r.nextID
		r.codes = append(r.codes, code)
	}
	return nil
}

func (r *fakeBackupRepo) FindUnused(ctx context.Context, userID uint) ([]*model.BackupCode, error) {
	var out []*model.BackupCode
	for _, code := range r.codes {
		if code.UserID == userID && !code.IsUsed() {
			out = append(out, code)
		}
	}
	return out, nil
}

func (r *fakeBackupRepo) CountUnused(ctx context.Context, userID uint) (int64, error) {
	unused, _ := r.FindUnused(ctx, userID)
	return int64(len(unused)), nil
}

func (r *fakeBackupRepo) MarkUsed(ctx context.Context, codeID uint, usedAt time.Time) (bool, error) {
	for _, code := range r.codes {
		if code.ID == codeID {
			if code.IsUsed() {
				return false, nil
			}
			code.UsedAt = &usedAt
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeBackupRepo) DeleteAll(ctx context.Context, userID uint) error {
	return r.ReplaceAll(ctx, userID, nil)
}

type fakeTrust struct {
	trusted bool
}

func (f *fakeTrust) IsTrustedDevice(ctx context.Context, userID uint, deviceInfo sessions.DeviceInfo) (bool, error) {
	return f.trusted, nil
}

type fakeSMSSender struct {
	sent []string
	fail bool
}

func (f *fakeSMSSender) SendCode(phoneNumber string, code string) error {
	if f.fail {
		return errors.New("gateway down")
	}
	f.sent = append(f.sent, code)
	return nil
}

type fakeMailSender struct {
	messages []*delivery.Message
	fail     bool
}

func (f *fakeMailSender) Send(message *delivery.Message) error {
	if f.fail {
		return errors.New("smtp down")
	}
	f.messages = append(f.messages, message)
	return nil
}

type testHarness struct {
	service     *Service
	accountRepo *fakeAccountRepo
	profileRepo *fakeProfileRepo
	factorRepo  *fakeFactorRepo
	backupRepo  *fakeBackupRepo
	smsSender   *fakeSMSSender
	mailSender  *fakeMailSender
	trust       *fakeTrust
	cipher      *secrets.Cipher
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	cipher, err := secrets.NewCipher("test-master-key")
	if err != nil {
		t.Fatal(err)
	}
	renderer, err := render.New(map[string]interface{}{"siteName": "Test"}, "")
	if err != nil {
		t.Fatal(err)
	}
	h := &testHarness{
		accountRepo: &fakeAccountRepo{accounts: map[uint]*model.Account{
			1: {ID: 1, Username: "alice", Email: "alice@example.com", Phone: "+15550100"},
		}},
		profileRepo: &fakeProfileRepo{profiles: map[string]*model.SecurityProfile{}},
		factorRepo:  &fakeFactorRepo{factors: map[string]*model.FactorSecret{}},
		backupRepo:  &fakeBackupRepo{},
		smsSender:   &fakeSMSSender{},
		mailSender:  &fakeMailSender{},
		trust:       &fakeTrust{},
		cipher:      cipher,
	}
	eventLog := events.NewLogger(&fakeEventRepo{}, nil, nil)
	h.service = NewService(
		Config{Issuer: "Test", MaxAttempts: 3, LockDuration: 15 * time.Minute},
		h.accountRepo, h.profileRepo, h.factorRepo, h.backupRepo,
		store.NewMemoryStorage(), cipher, h.smsSender, h.mailSender, renderer,
		h.trust, eventLog,
	)
	return h
}

type fakeEventRepo struct {
	entries []*model.SecurityEvent
}

func (r *fakeEventRepo) Insert(ctx context.Context, event *model.SecurityEvent) error {
	r.entries = append(r.entries, event)
	return nil
}

func (r *fakeEventRepo) Find(ctx context.Context, filter events.Filter) ([]*model.SecurityEvent, error) {
	return r.entries, nil
}

func (r *fakeEventRepo) Count(ctx context.Context, filter events.Filter) (int64, error) {
	return int64(len(r.entries)), nil
}

func enrollTOTP(t *testing.T, h *testHarness) string {
	t.Helper()
	ctx := context.Background()
	setup, err := h.service.SetupTOTP(ctx, 1, "site-a")
	if err != nil {
		t.Fatal(err)
	}
	token, err := totp.GenerateCode(setup.Secret, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	verified, err := h.service.VerifyTOTPSetup(ctx, 1, "site-a", token)
	if err != nil {
		t.Fatal(err)
	}
	if !verified {
		t.Fatal("fresh token must confirm enrollment")
	}
	return setup.Secret
}

func TestSetupTOTP(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	setup, err := h.service.SetupTOTP(ctx, 1, "site-a")
	if err != nil {
		t.Fatal(err)
	}
	if setup.Secret == "" || setup.QRCodePNG == "" {
		t.Error("setup must return the secret and a provisioning image")
	}
	if len(setup.BackupCodes) != 10 {
		t.Errorf("expected 10 backup codes, got %d", len(setup.BackupCodes))
	}

	profile, err := h.profileRepo.Get(ctx, 1, "site-a")
	if err != nil {
		t.Fatal(err)
	}
	if profile.MFAEnabled {
		t.Error("MFA must stay disabled until the secret is confirmed")
	}

	if _, err := h.service.SetupTOTP(ctx, 99, "site-a"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound for unknown user, got %v", err)
	}
}

func TestVerifyTOTPSetupPromotesSecret(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	enrollTOTP(t, h)

	profile, _ := h.profileRepo.Get(ctx, 1, "site-a")
	if !profile.MFAEnabled || profile.MFAMethod != model.MFAMethodTOTP {
		t.Error("confirmed enrollment must enable MFA with the totp method")
	}
	factor, err := h.factorRepo.Get(ctx, 1, model.MFAMethodTOTP)
	if err != nil {
		t.Fatal(err)
	}
	if factor.Secret == "" {
		t.Error("confirmed factor must carry the sealed secret")
	}
	// a second confirmation attempt finds no pending factor
	if _, err := h.service.VerifyTOTPSetup(ctx, 1, "site-a", "000000"); !errors.Is(err, ErrPendingFactorExpired) {
		t.Errorf("expected ErrPendingFactorExpired after promotion, got %v", err)
	}
}

func TestVerifyMFATOTPWindow(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	secret := enrollTOTP(t, h)

	// one step of skew back stays inside the accept window
	token, err := totp.GenerateCode(secret, time.Now().Add(-30*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	result, err := h.service.VerifyMFA(ctx, VerifyRequest{UserID: 1, SiteID: "site-a", Method: model.MFAMethodTOTP, Token: token})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Error("token within the skew window must verify")
	}

	// far outside the window
	stale, err := totp.GenerateCode(secret, time.Now().Add(-10*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	result, err = h.service.VerifyMFA(ctx, VerifyRequest{UserID: 1, SiteID: "site-a", Method: model.MFAMethodTOTP, Token: stale})
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Error("token outside the skew window must be rejected")
	}
	if !result.RequiresBackup {
		t.Error("failed primary verification should offer the backup path")
	}
}

func TestBackupCodeSingleUse(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	setup, err := h.service.SetupTOTP(ctx, 1, "site-a")
	if err != nil {
		t.Fatal(err)
	}
	code := setup.BackupCodes[0]

	before, _ := h.backupRepo.CountUnused(ctx, 1)
	result, err := h.service.VerifyMFA(ctx, VerifyRequest{UserID: 1, SiteID: "site-a", Method: model.MFAMethodBackupCode, Token: code})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatal("unused backup code must verify")
	}
	if result.RequiresBackup {
		t.Error("a backup verification must not require another backup")
	}
	after, _ := h.backupRepo.CountUnused(ctx, 1)
	if after != before-1 {
		t.Errorf("remaining codes must drop by exactly one: %d -> %d", before, after)
	}

	result, err = h.service.VerifyMFA(ctx, VerifyRequest{UserID: 1, SiteID: "site-a", Method: model.MFAMethodBackupCode, Token: code})
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Error("a spent backup code must never verify again")
	}
}

func TestVerifyMFALockout(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	enrollTOTP(t, h)

	var lastAttempts uint
	for i := 0; i < 3; i++ {
		result, err := h.service.VerifyMFA(ctx, VerifyRequest{UserID: 1, SiteID: "site-a", Method: model.MFAMethodTOTP, Token: "000000"})
		if err != nil {
			t.Fatal(err)
		}
		if result.Success {
			t.Fatal("bogus token must not verify")
		}
		profile, _ := h.profileRepo.Get(ctx, 1, "site-a")
		if profile.FailedAttempts <= lastAttempts {
			t.Error("failed attempts must increase monotonically")
		}
		lastAttempts = profile.FailedAttempts
	}

	profile, _ := h.profileRepo.Get(ctx, 1, "site-a")
	if profile.LockedUntil == nil || !profile.LockedUntil.After(time.Now()) {
		t.Fatal("reaching the threshold must arm a future lockout")
	}

	var rateLimited *RateLimitedError
	_, err := h.service.VerifyMFA(ctx, VerifyRequest{UserID: 1, SiteID: "site-a", Method: model.MFAMethodTOTP, Token: "000000"})
	if !errors.As(err, &rateLimited) {
		t.Fatalf("locked profile must refuse attempts with RateLimitedError, got %v", err)
	}
	if rateLimited.RetryAfter <= 0 {
		t.Error("RetryAfter must be positive while the lock holds")
	}
}

func TestVerifyMFAResetsCounterOnSuccess(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	secret := enrollTOTP(t, h)

	for i := 0; i < 2; i++ {
		h.service.VerifyMFA(ctx, VerifyRequest{UserID: 1, SiteID: "site-a", Method: model.MFAMethodTOTP, Token: "000000"})
	}
	token, _ := totp.GenerateCode(secret, time.Now())
	h.trust.trusted = true
	result, err := h.service.VerifyMFA(ctx, VerifyRequest{
		UserID: 1, SiteID: "site-a", Method: model.MFAMethodTOTP, Token: token,
		DeviceInfo: &sessions.DeviceInfo{UserAgent: "test"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatal("valid token must verify")
	}
	if !result.TrustedDevice {
		t.Error("trusted fingerprint must surface in the result")
	}

	profile, _ := h.profileRepo.Get(ctx, 1, "site-a")
	if profile.FailedAttempts != 0 || profile.LockedUntil != nil {
		t.Error("success must reset the counter and clear any lock")
	}
	if profile.LastMFAVerification == nil {
		t.Error("success must stamp the verification time")
	}
}

func TestSetupSMSAndVerify(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	setup, err := h.service.SetupSMS(ctx, 1, "site-a", "+15550100")
	if err != nil {
		t.Fatal(err)
	}
	if len(h.smsSender.sent) != 1 || h.smsSender.sent[0] != setup.VerificationCode {
		t.Fatal("the staged code must be dispatched over SMS")
	}
	if len(setup.VerificationCode) != 6 {
		t.Errorf("expected a 6 digit code, got %q", setup.VerificationCode)
	}

	result, err := h.service.VerifyMFA(ctx, VerifyRequest{UserID: 1, SiteID: "site-a", Method: model.MFAMethodSMS, Token: "999999"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Error("wrong code must not verify")
	}

	// wrong attempt consumed nothing, the staged code is still valid
	result, err = h.service.VerifyMFA(ctx, VerifyRequest{UserID: 1, SiteID: "site-a", Method: model.MFAMethodSMS, Token: setup.VerificationCode})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatal("correct code must verify")
	}

	factor, err := h.factorRepo.Get(ctx, 1, model.MFAMethodSMS)
	if err != nil {
		t.Fatal(err)
	}
	if factor.Target != "+15550100" {
		t.Error("first verification must promote the delivery target to a confirmed factor")
	}

	// the staged code is consumed by the successful verification
	if _, err := h.service.VerifyMFA(ctx, VerifyRequest{UserID: 1, SiteID: "site-a", Method: model.MFAMethodSMS, Token: setup.VerificationCode}); !errors.Is(err, ErrPendingFactorExpired) {
		t.Errorf("replaying a consumed code must fail, got %v", err)
	}
}

func TestSetupSMSDeliveryFailure(t *testing.T) {
	h := newTestHarness(t)
	h.smsSender.fail = true
	ctx := context.Background()

	if _, err := h.service.SetupSMS(ctx, 1, "site-a", "+15550100"); !errors.Is(err, ErrDeliveryUnavailable) {
		t.Fatalf("dispatch failure must fail closed, got %v", err)
	}
	// no staged code may survive the failed dispatch
	if _, err := h.service.pending.GetPending(ctx, 1, model.MFAMethodSMS); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected no pending factor after failed dispatch, got %v", err)
	}
}

func TestSetupEmailDispatchesCode(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	setup, err := h.service.SetupEmail(ctx, 1, "site-a", "alice@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(h.mailSender.messages) != 1 {
		t.Fatal("the code must be mailed out")
	}
	if h.mailSender.messages[0].To[0] != "alice@example.com" {
		t.Error("mail must target the enrollment address")
	}
	result, err := h.service.VerifyMFA(ctx, VerifyRequest{UserID: 1, SiteID: "site-a", Method: model.MFAMethodEmail, Token: setup.VerificationCode})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Error("mailed code must verify")
	}
}

func signAssertion(t *testing.T, key *ecdsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func TestBiometricEnrollAndVerify(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	publicKeyPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	setup, err := h.service.SetupBiometric(ctx, 1, "site-a", sessions.DeviceInfo{UserAgent: "test"})
	if err != nil {
		t.Fatal(err)
	}
	if setup.Challenge == "" || setup.ChallengeID == "" {
		t.Fatal("setup must return a challenge")
	}

	// wrong challenge is refused
	bad := signAssertion(t, key, jwt.MapClaims{"challenge": "not-the-challenge"})
	if err := h.service.RegisterBiometric(ctx, 1, "site-a", setup.ChallengeID, publicKeyPEM, bad); !errors.Is(err, ErrAssertionInvalid) {
		t.Fatalf("expected ErrAssertionInvalid, got %v", err)
	}

	good := signAssertion(t, key, jwt.MapClaims{"challenge": setup.Challenge})
	if err := h.service.RegisterBiometric(ctx, 1, "site-a", setup.ChallengeID, publicKeyPEM, good); err != nil {
		t.Fatal(err)
	}

	login := signAssertion(t, key, jwt.MapClaims{"iat": jwt.NewNumericDate(time.Now())})
	result, err := h.service.VerifyMFA(ctx, VerifyRequest{UserID: 1, SiteID: "site-a", Method: model.MFAMethodBiometric, Token: login})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Error("fresh assertion signed by the registered key must verify")
	}

	stale := signAssertion(t, key, jwt.MapClaims{"iat": jwt.NewNumericDate(time.Now().Add(-5 * time.Minute))})
	result, err = h.service.VerifyMFA(ctx, VerifyRequest{UserID: 1, SiteID: "site-a", Method: model.MFAMethodBiometric, Token: stale})
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Error("stale assertion must be rejected")
	}

	other, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	forged := signAssertion(t, other, jwt.MapClaims{"iat": jwt.NewNumericDate(time.Now())})
	result, err = h.service.VerifyMFA(ctx, VerifyRequest{UserID: 1, SiteID: "site-a", Method: model.MFAMethodBiometric, Token: forged})
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Error("assertion signed by a different key must be rejected")
	}
}

func TestDisableMFA(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	enrollTOTP(t, h)

	if err := h.service.DisableMFA(ctx, 1, "site-a", 0); err != nil {
		t.Fatal(err)
	}
	profile, _ := h.profileRepo.Get(ctx, 1, "site-a")
	if profile.MFAEnabled {
		t.Error("disable must clear the enabled flag")
	}
	if _, err := h.factorRepo.Get(ctx, 1, model.MFAMethodTOTP); !errors.Is(err, ErrFactorNotEnrolled) {
		t.Error("disable must remove the confirmed factors")
	}
	remaining, _ := h.backupRepo.CountUnused(ctx, 1)
	if remaining != 0 {
		t.Error("disable must revoke the backup codes")
	}
}

func TestGetMFAStatus(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	status, err := h.service.GetMFAStatus(ctx, 1, "site-a")
	if err != nil {
		t.Fatal(err)
	}
	if status.Enabled {
		t.Error("unknown profile must report disabled")
	}

	enrollTOTP(t, h)
	status, err = h.service.GetMFAStatus(ctx, 1, "site-a")
	if err != nil {
		t.Fatal(err)
	}
	if !status.Enabled || status.Method != model.MFAMethodTOTP {
		t.Errorf("expected enabled totp status, got %+v", status)
	}
	if status.BackupCodesRemaining != 10 {
		t.Errorf("expected 10 backup codes remaining, got %d", status.BackupCodesRemaining)
	}
}

func TestPendingFactorExpiryEnforcedOnRead(t *testing.T) {
	pending := newPendingFactorStore(store.NewMemoryStorage())
	ctx := context.Background()

	err := pending.Set(ctx, pendingKey(1, model.MFAMethodTOTP), PendingFactor{
		FactorType:   model.MFAMethodTOTP,
		SealedSecret: "sealed",
		CreatedAt:    time.Now().Add(-20 * time.Minute),
		ExpiresAt:    time.Now().Add(-5 * time.Minute),
	}, 0)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := pending.GetPending(ctx, 1, model.MFAMethodTOTP); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("a factor past its TTL must read as absent, got %v", err)
	}
}

func TestMaskTarget(t *testing.T) {
	tests := map[string]string{
		"alice@example.com": "al***@example.com",
		"ab@example.com":    "**@example.com",
		"+15550100":         "****0100",
		"123":               "****",
	}
	for in, want := range tests {
		if got := maskTarget(in); got != want {
			t.Errorf("maskTarget(%q) = %q, want %q", in, got, want)
		}
	}
}
