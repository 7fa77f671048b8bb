package memory

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/taskboard-api/internal/domain"
	"github.com/taskboard-api/internal/pkg/clock"
	"github.com/taskboard-api/internal/pkg/otp"
)

type codeKey struct {
	userKey string
	action  domain.ActionType
}

// CodeStore keeps one-time confirmation codes in process memory.
// All reads and the validate-and-consume step run under a single mutex.
type CodeStore struct {
	mu      sync.Mutex
	entries map[codeKey]domain.ConfirmationCode
	ttl     time.Duration
	digits  int
	clock   clock.Clock
	random  io.Reader
	sweeper *sweeper
}

type CodeOptions struct {
	TTL           time.Duration
	Digits        int
	SweepInterval time.Duration
	Clock         clock.Clock
	Random        io.Reader // crypto/rand when nil
}

func NewCodeStore(opts CodeOptions) *CodeStore {
	if opts.Clock == nil {
		opts.Clock = clock.System()
	}
	if opts.Digits == 0 {
		opts.Digits = otp.MinDigits
	}
	s := &CodeStore{
		entries: make(map[codeKey]domain.ConfirmationCode),
		ttl:     opts.TTL,
		digits:  opts.Digits,
		clock:   opts.Clock,
		random:  opts.Random,
	}
	s.sweeper = startSweeper(opts.SweepInterval, func() { s.Sweep() })
	return s
}

// GenerateAndStore issues a fresh code for (userKey, action), replacing any live one.
func (s *CodeStore) GenerateAndStore(_ context.Context, userKey string, action domain.ActionType) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, err := otp.Generate(s.random, s.digits)
	if err != nil {
		return "", err
	}
	s.entries[codeKey{userKey, action}] = domain.ConfirmationCode{
		UserKey:   userKey,
		Action:    action,
		Code:      code,
		CreatedAt: s.clock.Now(),
	}
	return code, nil
}

// ValidateAndConsume deletes the entry when supplied matches a live code.
// Any other outcome returns *domain.CodeInvalidError and leaves the store unchanged.
func (s *CodeStore) ValidateAndConsume(_ context.Context, userKey string, action domain.ActionType, supplied string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := codeKey{userKey, action}
	e, ok := s.entries[k]
	if !ok {
		return &domain.CodeInvalidError{Reason: domain.CodeAbsent}
	}
	if s.expired(e.CreatedAt) {
		return &domain.CodeInvalidError{Reason: domain.CodeExpired}
	}
	if !otp.Equal(e.Code, supplied) {
		return &domain.CodeInvalidError{Reason: domain.CodeMismatch}
	}
	delete(s.entries, k)
	return nil
}

// Peek returns the live code without consuming it.
func (s *CodeStore) Peek(_ context.Context, userKey string, action domain.ActionType) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[codeKey{userKey, action}]
	if !ok || s.expired(e.CreatedAt) {
		return "", false, nil
	}
	return e.Code, true, nil
}

func (s *CodeStore) Delete(_ context.Context, userKey string, action domain.ActionType) error {
	s.mu.Lock()
	delete(s.entries, codeKey{userKey, action})
	s.mu.Unlock()
	return nil
}

// Sweep removes expired codes and returns how many were removed.
func (s *CodeStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.entries {
		if s.expired(e.CreatedAt) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

func (s *CodeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the sweeper and drops every code.
func (s *CodeStore) Close() error {
	s.sweeper.stop()
	s.mu.Lock()
	s.entries = make(map[codeKey]domain.ConfirmationCode)
	s.mu.Unlock()
	return nil
}

func (s *CodeStore) expired(createdAt time.Time) bool {
	return s.clock.Now().Sub(createdAt) > s.ttl
}
