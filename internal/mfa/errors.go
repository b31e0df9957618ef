package mfa

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrFactorNotEnrolled    = errors.New("factor not enrolled")
	ErrPendingFactorExpired = errors.New("pending factor expired or not found")
	ErrUnsupportedMethod    = errors.New("unsupported MFA method")
	ErrDeliveryUnavailable  = errors.New("code delivery unavailable")
	ErrAssertionInvalid     = errors.New("biometric assertion invalid")
)

// RateLimitedError is returned while the lockout window is active.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many failed attempts, retry after %s", e.RetryAfter.Round(time.Second))
}

func NewRateLimitedError(until time.Time) *RateLimitedError {
	return &RateLimitedError{RetryAfter: time.Until(until)}
}
