package sessions

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/authcore-dev/authcore/internal/events"
	"github.com/authcore-dev/authcore/model"
)

type fakeSessionRepo struct {
	sessions map[string]*model.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]*model.Session{}}
}

func (r *fakeSessionRepo) Create(ctx context.Context, session *model.Session) error {
	copied := *session
	r.sessions[session.SessionID] = &copied
	return nil
}

func (r *fakeSessionRepo) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (r *fakeSessionRepo) Updates(ctx context.Context, sessionID string, columns map[string]interface{}) error {
	session, ok := r.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	for col, val := range columns {
		switch col {
		case "active":
			session.Active = val.(bool)
		case "terminated":
			session.Terminated = val.(bool)
		case "terminated_reason":
			session.TerminatedReason = val.(string)
		case "last_activity":
			session.LastActivity = val.(time.Time)
		}
	}
	return nil
}

func (r *fakeSessionRepo) FindRecent(ctx context.Context, userID uint, since time.Time, limit int) ([]*model.Session, error) {
	var out []*model.Session
	for _, s := range r.sessions {
		if s.UserID == userID && !s.CreatedAt.Before(since) {
			copied := *s
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeSessionRepo) FindActive(ctx context.Context, userID uint) ([]*model.Session, error) {
	now := time.Now()
	var out []*model.Session
	for _, s := range r.sessions {
		if s.UserID == userID && s.IsUsable(now) {
			copied := *s
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeSessionRepo) CountActive(ctx context.Context, userID uint) (int64, error) {
	active, _ := r.FindActive(ctx, userID)
	return int64(len(active)), nil
}

func (r *fakeSessionRepo) HasVerifiedFingerprint(ctx context.Context, userID uint, fingerprint string) (bool, error) {
	for _, s := range r.sessions {
		if s.UserID == userID && s.DeviceFingerprint == fingerprint && s.Verified {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeSessionRepo) FindExpiredActive(ctx context.Context, now time.Time, limit int) ([]*model.Session, error) {
	var out []*model.Session
	for _, s := range r.sessions {
		if s.Active && !s.Terminated && s.IsExpired(now) {
			copied := *s
			out = append(out, &copied)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeSessionRepo) FindSince(ctx context.Context, siteID string, userID uint, since time.Time) ([]*model.Session, error) {
	var out []*model.Session
	for _, s := range r.sessions {
		if s.SiteID == siteID && !s.CreatedAt.Before(since) && (userID == 0 || s.UserID == userID) {
			copied := *s
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type fakeProfileRepo struct {
	counts map[string]int
}

func (r *fakeProfileRepo) key(userID uint, siteID string) string {
	return siteID
}

func (r *fakeProfileRepo) Get(ctx context.Context, userID uint, siteID string) (*model.SecurityProfile, error) {
	return nil, nil
}

func (r *fakeProfileRepo) Upsert(ctx context.Context, profile *model.SecurityProfile) error {
	return nil
}

func (r *fakeProfileRepo) Updates(ctx context.Context, userID uint, siteID string, columns map[string]interface{}) error {
	return nil
}

func (r *fakeProfileRepo) IncrementFailedAttempts(ctx context.Context, userID uint, siteID string, threshold uint, lockFor time.Duration) (uint, *time.Time, error) {
	return 0, nil, nil
}

func (r *fakeProfileRepo) ResetFailedAttempts(ctx context.Context, userID uint, siteID string, verifiedAt time.Time) error {
	return nil
}

func (r *fakeProfileRepo) AdjustSessionCount(ctx context.Context, userID uint, siteID string, delta int) error {
	r.counts[r.key(userID, siteID)] += delta
	return nil
}

func (r *fakeProfileRepo) SetSessionCount(ctx context.Context, userID uint, siteID string, count uint) error {
	r.counts[r.key(userID, siteID)] = int(count)
	return nil
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

func newTestManager(maxConcurrent int) (*Manager, *fakeSessionRepo, *fakeProfileRepo) {
	sessionRepo := newFakeSessionRepo()
	profileRepo := &fakeProfileRepo{counts: map[string]int{}}
	eventLog := events.NewLogger(&fakeEventRepo{}, nil, nil)
	manager := NewManager(sessionRepo, profileRepo, NewFingerprinter("test-master-key"), eventLog, time.Hour, maxConcurrent)
	return manager, sessionRepo, profileRepo
}

var testDevice = DeviceInfo{UserAgent: "Mozilla/5.0", Screen: "1920x1080", Timezone: "UTC", Language: "en-US"}

func TestCreateSessionFirstLogin(t *testing.T) {
	manager, repo, profiles := newTestManager(10)
	ctx := context.Background()

	result, err := manager.CreateSession(ctx, 1, "site-a", "203.0.113.1", testDevice, &Location{Country: "DE", City: "Berlin"})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.WarningFlags) != 0 {
		t.Errorf("first ever login must raise no flags, got %v", result.WarningFlags)
	}
	if result.TrustedDevice {
		t.Error("a never seen device cannot be trusted")
	}

	session, err := repo.Get(ctx, result.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if !session.IsUsable(time.Now()) {
		t.Error("a freshly minted session must be usable")
	}
	if session.Suspicious {
		t.Error("a login without warnings must not be flagged suspicious")
	}
	if session.Country != "DE" || session.City != "Berlin" {
		t.Error("location must be recorded on the session")
	}
	if profiles.counts["site-a"] != 1 {
		t.Errorf("active session count must be bumped, got %d", profiles.counts["site-a"])
	}
}

func TestCreateSessionWarningFlags(t *testing.T) {
	manager, repo, _ := newTestManager(10)
	ctx := context.Background()

	repo.Create(ctx, &model.Session{
		SessionID:         "prior",
		UserID:            1,
		SiteID:            "site-a",
		DeviceFingerprint: manager.Fingerprint(testDevice),
		IPAddress:         "203.0.113.1",
		Country:           "DE",
		CreatedAt:         time.Now().Add(-30 * time.Minute),
		ExpiresAt:         time.Now().Add(time.Hour),
		Active:            true,
	})

	// same device from a new address and a new country within the travel window
	otherDevice := DeviceInfo{UserAgent: "curl/8.0", Screen: "", Timezone: "Asia/Tokyo", Language: "ja"}
	result, err := manager.CreateSession(ctx, 1, "site-a", "198.51.100.7", otherDevice, &Location{Country: "JP"})
	if err != nil {
		t.Fatal(err)
	}

	flags := map[string]bool{}
	for _, f := range result.WarningFlags {
		flags[f] = true
	}
	for _, want := range []string{WarningNewIPAddress, WarningNewDevice, WarningLocationAnomaly} {
		if !flags[want] {
			t.Errorf("expected flag %s, got %v", want, result.WarningFlags)
		}
	}

	session, _ := repo.Get(ctx, result.SessionID)
	if !session.Suspicious {
		t.Error("a flagged login must mark the session suspicious")
	}

	// known address and device again, no flags
	result, err = manager.CreateSession(ctx, 1, "site-a", "203.0.113.1", testDevice, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.WarningFlags) != 0 {
		t.Errorf("known address and device must raise no flags, got %v", result.WarningFlags)
	}
}

func TestCreateSessionNoLocationAnomalyAfterWindow(t *testing.T) {
	manager, repo, _ := newTestManager(10)
	ctx := context.Background()

	repo.Create(ctx, &model.Session{
		SessionID:         "prior",
		UserID:            1,
		SiteID:            "site-a",
		DeviceFingerprint: manager.Fingerprint(testDevice),
		IPAddress:         "203.0.113.1",
		Country:           "DE",
		CreatedAt:         time.Now().Add(-20 * time.Hour),
		ExpiresAt:         time.Now().Add(-19 * time.Hour),
	})

	result, err := manager.CreateSession(ctx, 1, "site-a", "203.0.113.1", testDevice, &Location{Country: "JP"})
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range result.WarningFlags {
		if f == WarningLocationAnomaly {
			t.Error("a country change after a long gap is ordinary travel, not an anomaly")
		}
	}
}

func TestCreateSessionTrustedDevice(t *testing.T) {
	manager, repo, _ := newTestManager(10)
	ctx := context.Background()

	repo.Create(ctx, &model.Session{
		SessionID:         "verified",
		UserID:            1,
		SiteID:            "site-a",
		DeviceFingerprint: manager.Fingerprint(testDevice),
		IPAddress:         "203.0.113.1",
		CreatedAt:         time.Now().Add(-time.Hour),
		ExpiresAt:         time.Now().Add(time.Hour),
		Active:            true,
		Verified:          true,
	})

	result, err := manager.CreateSession(ctx, 1, "site-a", "203.0.113.1", testDevice, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !result.TrustedDevice {
		t.Error("a fingerprint seen on a verified session must be trusted")
	}
	session, _ := repo.Get(ctx, result.SessionID)
	if !session.Verified {
		t.Error("trust must carry over onto the new session")
	}

	trusted, err := manager.IsTrustedDevice(ctx, 1, testDevice)
	if err != nil {
		t.Fatal(err)
	}
	if !trusted {
		t.Error("IsTrustedDevice must agree with session creation")
	}
	trusted, _ = manager.IsTrustedDevice(ctx, 2, testDevice)
	if trusted {
		t.Error("trust must not leak across users")
	}
}

func TestConcurrentSessionEviction(t *testing.T) {
	manager, repo, _ := newTestManager(2)
	ctx := context.Background()

	first, err := manager.CreateSession(ctx, 1, "site-a", "203.0.113.1", testDevice, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := manager.CreateSession(ctx, 1, "site-a", "203.0.113.1", testDevice, nil)
	if err != nil {
		t.Fatal(err)
	}
	// the cap is reached, the next login evicts the oldest session
	third, err := manager.CreateSession(ctx, 1, "site-a", "203.0.113.1", testDevice, nil)
	if err != nil {
		t.Fatal(err)
	}

	evicted, _ := repo.Get(ctx, first.SessionID)
	if !evicted.Terminated || evicted.TerminatedReason != model.TerminateReasonEvicted {
		t.Errorf("oldest session must be evicted with reason %q, got %+v", model.TerminateReasonEvicted, evicted)
	}
	for _, id := range []string{second.SessionID, third.SessionID} {
		s, _ := repo.Get(ctx, id)
		if !s.IsUsable(time.Now()) {
			t.Errorf("session %s must survive the eviction", id)
		}
	}
	count, _ := repo.CountActive(ctx, 1)
	if count != 2 {
		t.Errorf("active sessions must stay at the cap, got %d", count)
	}
}

func TestValidateSession(t *testing.T) {
	manager, repo, _ := newTestManager(10)
	ctx := context.Background()

	created, err := manager.CreateSession(ctx, 1, "site-a", "203.0.113.1", testDevice, nil)
	if err != nil {
		t.Fatal(err)
	}

	result, err := manager.ValidateSession(ctx, created.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Valid {
		t.Fatalf("fresh session must validate, warnings %v", result.Warnings)
	}
	if result.Session == nil {
		t.Fatal("a valid result must carry the session")
	}

	// validation refreshes the activity timestamp
	stored, _ := repo.Get(ctx, created.SessionID)
	if stored.LastActivity.Before(stored.CreatedAt) {
		t.Error("last activity must be refreshed on validation")
	}

	if _, err := manager.ValidateSession(ctx, "no-such-session"); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestValidateSessionExpired(t *testing.T) {
	manager, repo, _ := newTestManager(10)
	ctx := context.Background()

	repo.Create(ctx, &model.Session{
		SessionID: "old",
		UserID:    1,
		SiteID:    "site-a",
		CreatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
		Active:    true,
	})

	result, err := manager.ValidateSession(ctx, "old")
	if err != nil {
		t.Fatal(err)
	}
	if result.Valid {
		t.Fatal("expired session must not validate")
	}
	if len(result.Warnings) != 1 || result.Warnings[0] != "Session expired" {
		t.Errorf("expected the expiry warning, got %v", result.Warnings)
	}
}

func TestValidateSessionTerminated(t *testing.T) {
	manager, _, _ := newTestManager(10)
	ctx := context.Background()

	created, err := manager.CreateSession(ctx, 1, "site-a", "203.0.113.1", testDevice, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := manager.TerminateSession(ctx, created.SessionID, model.TerminateReasonLogout, "user"); err != nil {
		t.Fatal(err)
	}

	result, err := manager.ValidateSession(ctx, created.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if result.Valid {
		t.Fatal("terminated session must not validate")
	}
	if len(result.Warnings) != 1 || result.Warnings[0] != "Session terminated" {
		t.Errorf("expected the termination warning, got %v", result.Warnings)
	}
}

func TestTerminateSessionIdempotent(t *testing.T) {
	manager, repo, profiles := newTestManager(10)
	ctx := context.Background()

	created, err := manager.CreateSession(ctx, 1, "site-a", "203.0.113.1", testDevice, nil)
	if err != nil {
		t.Fatal(err)
	}

	terminated, err := manager.TerminateSession(ctx, created.SessionID, model.TerminateReasonLogout, "user")
	if err != nil {
		t.Fatal(err)
	}
	if !terminated {
		t.Fatal("first termination must report true")
	}
	if profiles.counts["site-a"] != 0 {
		t.Errorf("termination must release the session count, got %d", profiles.counts["site-a"])
	}

	terminated, err = manager.TerminateSession(ctx, created.SessionID, model.TerminateReasonLogout, "user")
	if err != nil {
		t.Fatal(err)
	}
	if terminated {
		t.Error("terminating an already terminated session must report false")
	}
	if profiles.counts["site-a"] != 0 {
		t.Error("a repeated termination must not release the count twice")
	}

	session, _ := repo.Get(ctx, created.SessionID)
	if session.TerminatedReason != model.TerminateReasonLogout {
		t.Errorf("expected reason %q, got %q", model.TerminateReasonLogout, session.TerminatedReason)
	}
}

func TestSweepExpired(t *testing.T) {
	manager, repo, profiles := newTestManager(10)
	ctx := context.Background()

	repo.Create(ctx, &model.Session{
		SessionID: "stale",
		UserID:    1,
		SiteID:    "site-a",
		CreatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
		Active:    true,
	})
	repo.Create(ctx, &model.Session{
		SessionID: "live",
		UserID:    1,
		SiteID:    "site-a",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
		Active:    true,
	})

	swept, err := manager.SweepExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if swept != 1 {
		t.Fatalf("expected one swept session, got %d", swept)
	}

	stale, _ := repo.Get(ctx, "stale")
	if !stale.Terminated || stale.TerminatedReason != model.TerminateReasonExpired {
		t.Errorf("swept session must be terminated as expired, got %+v", stale)
	}
	live, _ := repo.Get(ctx, "live")
	if live.Terminated {
		t.Error("sweep must not touch live sessions")
	}
	if profiles.counts["site-a"] != 1 {
		t.Errorf("sweep must reconcile the count to the live sessions, got %d", profiles.counts["site-a"])
	}
}

func TestFingerprintStability(t *testing.T) {
	fp := NewFingerprinter("test-master-key")
	if fp.Fingerprint(testDevice) != fp.Fingerprint(testDevice) {
		t.Error("same signals must derive the same fingerprint")
	}

	changed := testDevice
	changed.Timezone = "Asia/Tokyo"
	if fp.Fingerprint(testDevice) == fp.Fingerprint(changed) {
		t.Error("any changed signal must derive a different fingerprint")
	}

	other := NewFingerprinter("another-key")
	if fp.Fingerprint(testDevice) == other.Fingerprint(testDevice) {
		t.Error("fingerprints must be keyed by the master key")
	}
}

func TestSessionUsabilityBoundary(t *testing.T) {
	now := time.Now()
	session := &model.Session{Active: true, ExpiresAt: now}
	if session.IsUsable(now) {
		t.Error("a session is unusable exactly at its expiry instant")
	}
	session.ExpiresAt = now.Add(time.Nanosecond)
	if !session.IsUsable(now) {
		t.Error("a session is usable strictly before its expiry instant")
	}
}
