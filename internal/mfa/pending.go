package mfa

import (
	"context"
	"fmt"
	"time"

	"github.com/authcore-dev/authcore/internal/store"
	"github.com/authcore-dev/authcore/params"
)

// PendingFactor is a staged, unconfirmed factor secret. It lives in the
// ephemeral store under a (user, factor type) key, so at most one pending
// factor of a type can exist per user; the TTL alone reclaims abandoned
// enrollments.
type PendingFactor struct {
	FactorType   string    `redis:"factor_type"`
	SealedSecret string    `redis:"sealed_secret"` // AES-GCM sealed secret or code
	Target       string    `redis:"target"`        // phone number or email for delivery factors
	ChallengeID  string    `redis:"challenge_id"`  // biometric registration challenge id
	CreatedAt    time.Time `redis:"created_at"`
	ExpiresAt    time.Time `redis:"expires_at"`
}

type pendingFactorStore struct {
	store.Store[PendingFactor]
}

func pendingKey(userID uint, factorType string) string {
	return fmt.Sprintf("%d:%s", userID, factorType)
}

// Get treats a factor past its TTL as absent even if the backend has not
// evicted it yet.
func (s *pendingFactorStore) GetPending(ctx context.Context, userID uint, factorType string) (*PendingFactor, error) {
	pending, err := s.Get(ctx, pendingKey(userID, factorType))
	if err != nil {
		return nil, err
	}
	if !pending.ExpiresAt.IsZero() && !time.Now().Before(pending.ExpiresAt) {
		s.Delete(ctx, pendingKey(userID, factorType))
		return nil, store.ErrNotFound
	}
	return &pending, nil
}

func (s *pendingFactorStore) Stage(ctx context.Context, userID uint, pending PendingFactor, ttl time.Duration) error {
	now := time.Now()
	pending.CreatedAt = now
	pending.ExpiresAt = now.Add(ttl)
	return s.Set(ctx, pendingKey(userID, pending.FactorType), pending, ttl)
}

func (s *pendingFactorStore) Remove(ctx context.Context, userID uint, factorType string) error {
	return s.Delete(ctx, pendingKey(userID, factorType))
}

func newPendingFactorStore(storage store.Storage) *pendingFactorStore {
	return &pendingFactorStore{
		Store: store.New[PendingFactor](storage, params.PendingFactorKeyPrefix),
	}
}
