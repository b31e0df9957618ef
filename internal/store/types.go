package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Storage is the ephemeral key-value backend used for staged factor secrets
// and other TTL-bound state. Values are stored as hashes so individual fields
// can be updated and incremented atomically.
type Storage interface {
	Get(ctx context.Context, key string, val any) error
	Set(ctx context.Context, key string, val any, expiresIn time.Duration) error
	Delete(ctx context.Context, key string) error
	SetAttr(ctx context.Context, key string, field string, val any) error
	GetAttr(ctx context.Context, key, field string, val any) error
	IncrAttr(ctx context.Context, key, field string, delta int64) (int64, error)
}

// Store is a typed view over a Storage with a fixed key prefix.
type Store[T any] interface {
	Get(ctx context.Context, key string) (T, error)
	Set(ctx context.Context, key string, val T, expiresIn time.Duration) error
	Delete(ctx context.Context, key string) error
	SetAttr(ctx context.Context, key string, field string, val any) error
	GetAttr(ctx context.Context, key, field string, val any) error
	IncrAttr(ctx context.Context, key string, field string, delta int64) (int64, error)
}
