package redisstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskboard-api/internal/domain"
	"github.com/taskboard-api/internal/pkg/otp"
)

// consumeCodeLua deletes KEYS[1] only when it holds ARGV[1].
// Returns 1 on consume, 0 when absent, -1 on mismatch.
var consumeCodeLua = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
  return 0
end
if v ~= ARGV[1] then
  return -1
end
redis.call('DEL', KEYS[1])
return 1
`)

// CodeStore keeps one-time codes in Redis under code:{userKey}:{action}.
// A code past its TTL is dropped by Redis, so expiry reads as absent.
type CodeStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	digits int
	random io.Reader
}

func NewCodeStore(client redis.UniversalClient, ttl time.Duration, digits int, random io.Reader) *CodeStore {
	if digits == 0 {
		digits = otp.MinDigits
	}
	return &CodeStore{redis: client, prefix: "code", ttl: ttl, digits: digits, random: random}
}

func (s *CodeStore) key(userKey string, action domain.ActionType) string {
	return s.prefix + ":" + userKey + ":" + string(action)
}

func (s *CodeStore) GenerateAndStore(ctx context.Context, userKey string, action domain.ActionType) (string, error) {
	code, err := otp.Generate(s.random, s.digits)
	if err != nil {
		return "", err
	}
	if err := s.redis.Set(ctx, s.key(userKey, action), code, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return code, nil
}

func (s *CodeStore) ValidateAndConsume(ctx context.Context, userKey string, action domain.ActionType, supplied string) error {
	supplied = strings.TrimSpace(supplied)
	if supplied == "" {
		return &domain.CodeInvalidError{Reason: domain.CodeMismatch}
	}
	res, err := consumeCodeLua.Run(ctx, s.redis, []string{s.key(userKey, action)}, supplied).Int()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	switch res {
	case 1:
		return nil
	case 0:
		return &domain.CodeInvalidError{Reason: domain.CodeAbsent}
	default:
		return &domain.CodeInvalidError{Reason: domain.CodeMismatch}
	}
}

func (s *CodeStore) Peek(ctx context.Context, userKey string, action domain.ActionType) (string, bool, error) {
	code, err := s.redis.Get(ctx, s.key(userKey, action)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return code, true, nil
}

func (s *CodeStore) Delete(ctx context.Context, userKey string, action domain.ActionType) error {
	if err := s.redis.Del(ctx, s.key(userKey, action)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close is a no-op; the shared client is closed by its owner.
func (s *CodeStore) Close() error { return nil }
