package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/gofiber/storage/memory/v2"
)

// MemoryStorage is a process-local Storage for tests and single-node runs
// without redis. Values are stored as JSON objects; attribute updates reload
// and rewrite the whole object, which is fine at this scale but loses the
// original TTL, so attribute-level writes are only used on non-expiring keys.
type MemoryStorage struct {
	db *memory.Storage
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{db: memory.New()}
}

func (s *MemoryStorage) Get(ctx context.Context, key string, val any) error {
	raw, err := s.db.Get(key)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return ErrNotFound
	}
	return json.Unmarshal(raw, val)
}

func (s *MemoryStorage) Set(ctx context.Context, key string, val any, expiresIn time.Duration) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return s.db.Set(key, raw, expiresIn)
}

func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	return s.db.Delete(key)
}

func (s *MemoryStorage) loadObject(key string) (map[string]json.RawMessage, error) {
	obj := map[string]json.RawMessage{}
	raw, err := s.db.Get(key)
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

func (s *MemoryStorage) saveObject(key string, obj map[string]json.RawMessage) error {
	raw, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return s.db.Set(key, raw, 0)
}

func (s *MemoryStorage) SetAttr(ctx context.Context, key string, field string, val any) error {
	obj, err := s.loadObject(key)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	obj[field] = raw
	return s.saveObject(key, obj)
}

func (s *MemoryStorage) GetAttr(ctx context.Context, key, field string, val any) error {
	obj, err := s.loadObject(key)
	if err != nil {
		return err
	}
	raw, ok := obj[field]
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(raw, val)
}

func (s *MemoryStorage) IncrAttr(ctx context.Context, key, field string, delta int64) (int64, error) {
	obj, err := s.loadObject(key)
	if err != nil {
		return 0, err
	}
	var current int64
	if raw, ok := obj[field]; ok {
		if v, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
			current = v
		}
	}
	current += delta
	obj[field] = json.RawMessage(strconv.FormatInt(current, 10))
	return current, s.saveObject(key, obj)
}
