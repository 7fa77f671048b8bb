package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskboard-api/internal/domain"
)

// TempDataStore keeps pending-action payloads in Redis under tmp:{action}:{userKey}.
// Expiry is delegated to the key TTL.
type TempDataStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

type tempRecord struct {
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func NewTempDataStore(client redis.UniversalClient, ttl time.Duration) *TempDataStore {
	return &TempDataStore{redis: client, prefix: "tmp", ttl: ttl}
}

func (s *TempDataStore) key(action domain.ActionType, userKey string) string {
	return s.prefix + ":" + string(action) + ":" + userKey
}

func (s *TempDataStore) Set(ctx context.Context, action domain.ActionType, userKey string, payload domain.Payload) error {
	if payload == nil || payload.Action() != action {
		return fmt.Errorf("payload does not belong to %s: %w", action, domain.ErrBadRequest)
	}
	raw, err := domain.MarshalPayload(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	encoded, err := json.Marshal(tempRecord{Payload: raw, CreatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal pending action: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(action, userKey), encoded, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *TempDataStore) Get(ctx context.Context, action domain.ActionType, userKey string) (domain.Payload, bool, error) {
	data, err := s.redis.Get(ctx, s.key(action, userKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var rec tempRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, fmt.Errorf("decode pending action: %w", err)
	}
	p, err := domain.UnmarshalPayload(action, rec.Payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode payload: %w", err)
	}
	return p, true, nil
}

func (s *TempDataStore) Delete(ctx context.Context, action domain.ActionType, userKey string) error {
	if err := s.redis.Del(ctx, s.key(action, userKey)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close is a no-op; the shared client is closed by its owner.
func (s *TempDataStore) Close() error { return nil }
