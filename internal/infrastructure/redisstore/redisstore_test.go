package redisstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskboard-api/internal/domain"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func codeReason(t *testing.T, err error) domain.CodeReason {
	t.Helper()
	var ce *domain.CodeInvalidError
	require.True(t, errors.As(err, &ce), "want CodeInvalidError, got %v", err)
	return ce.Reason
}

func TestCodeStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewCodeStore(client, 10*time.Minute, 6, nil)

	code, err := s.GenerateAndStore(ctx, "u1", domain.ActionEmailChange)
	require.NoError(t, err)
	require.Len(t, code, 6)
	assert.True(t, mr.Exists("code:u1:emailChange"))

	peeked, ok, err := s.Peek(ctx, "u1", domain.ActionEmailChange)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, code, peeked)

	require.NoError(t, s.ValidateAndConsume(ctx, "u1", domain.ActionEmailChange, " "+code+" "))
	assert.False(t, mr.Exists("code:u1:emailChange"))
	assert.Equal(t, domain.CodeAbsent, codeReason(t, s.ValidateAndConsume(ctx, "u1", domain.ActionEmailChange, code)))
}

func TestCodeStore_MismatchKeepsCode(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewCodeStore(client, 10*time.Minute, 6, nil)

	code, err := s.GenerateAndStore(ctx, "u1", domain.ActionAccountDeletion)
	require.NoError(t, err)
	wrong := "000000"
	if code == wrong {
		wrong = "999999"
	}

	assert.Equal(t, domain.CodeMismatch, codeReason(t, s.ValidateAndConsume(ctx, "u1", domain.ActionAccountDeletion, wrong)))
	assert.True(t, mr.Exists("code:u1:accountDeletion"))
	assert.NoError(t, s.ValidateAndConsume(ctx, "u1", domain.ActionAccountDeletion, code))
}

func TestCodeStore_ExpiresWithTTL(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewCodeStore(client, time.Minute, 6, nil)

	code, err := s.GenerateAndStore(ctx, "u1", domain.ActionConnectGoogle)
	require.NoError(t, err)
	mr.FastForward(time.Minute + time.Second)

	assert.Equal(t, domain.CodeAbsent, codeReason(t, s.ValidateAndConsume(ctx, "u1", domain.ActionConnectGoogle, code)))
	_, ok, err := s.Peek(ctx, "u1", domain.ActionConnectGoogle)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCodeStore_ConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	s := NewCodeStore(client, time.Minute, 6, nil)

	code, err := s.GenerateAndStore(ctx, "u1", domain.ActionRegistration)
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.ValidateAndConsume(ctx, "u1", domain.ActionRegistration, code) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestCodeStore_Unavailable(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewCodeStore(client, time.Minute, 6, nil)
	mr.Close()

	_, err := s.GenerateAndStore(context.Background(), "u1", domain.ActionRegistration)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestTempDataStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewTempDataStore(client, 15*time.Minute)

	p := domain.RegistrationPayload{Email: "neo@example.com", Login: "neo", PasswordHash: "$2a$hash"}
	require.NoError(t, s.Set(ctx, domain.ActionRegistration, "key-1", p))
	assert.True(t, mr.Exists("tmp:registration:key-1"))
	assert.Equal(t, 15*time.Minute, mr.TTL("tmp:registration:key-1"))

	got, ok, err := s.Get(ctx, domain.ActionRegistration, "key-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, p, got)

	require.NoError(t, s.Delete(ctx, domain.ActionRegistration, "key-1"))
	_, ok, err = s.Get(ctx, domain.ActionRegistration, "key-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTempDataStore_Expiry(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewTempDataStore(client, time.Minute)

	require.NoError(t, s.Set(ctx, domain.ActionDisableGoogle, "u1", domain.DisableGooglePayload{}))
	mr.FastForward(2 * time.Minute)

	_, ok, err := s.Get(ctx, domain.ActionDisableGoogle, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTempDataStore_RejectsMismatchedPayload(t *testing.T) {
	_, client := newTestRedis(t)
	s := NewTempDataStore(client, time.Minute)
	err := s.Set(context.Background(), domain.ActionEmailChange, "u1", domain.AccountDeletionPayload{})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}
