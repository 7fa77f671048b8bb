package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/taskboard-api/internal/domain"
	"github.com/taskboard-api/internal/pkg/clock"
)

type tempKey struct {
	action  domain.ActionType
	userKey string
}

// TempDataStore keeps pending-action payloads in process memory.
// An entry older than the TTL reads as absent and is removed by the sweeper.
type TempDataStore struct {
	mu      sync.Mutex
	entries map[tempKey]domain.PendingAction
	ttl     time.Duration
	clock   clock.Clock
	sweeper *sweeper
}

// TempDataOptions configures a TempDataStore. A zero SweepInterval disables the sweeper.
type TempDataOptions struct {
	TTL           time.Duration
	SweepInterval time.Duration
	Clock         clock.Clock
}

func NewTempDataStore(opts TempDataOptions) *TempDataStore {
	if opts.Clock == nil {
		opts.Clock = clock.System()
	}
	s := &TempDataStore{
		entries: make(map[tempKey]domain.PendingAction),
		ttl:     opts.TTL,
		clock:   opts.Clock,
	}
	s.sweeper = startSweeper(opts.SweepInterval, func() { s.Sweep() })
	return s
}

// Set stores payload under (action, userKey), replacing any previous entry.
func (s *TempDataStore) Set(_ context.Context, action domain.ActionType, userKey string, payload domain.Payload) error {
	if payload == nil || payload.Action() != action {
		return fmt.Errorf("payload does not belong to %s: %w", action, domain.ErrBadRequest)
	}
	s.mu.Lock()
	s.entries[tempKey{action, userKey}] = domain.PendingAction{
		UserKey:   userKey,
		Payload:   payload,
		CreatedAt: s.clock.Now(),
	}
	s.mu.Unlock()
	return nil
}

func (s *TempDataStore) Get(_ context.Context, action domain.ActionType, userKey string) (domain.Payload, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[tempKey{action, userKey}]
	if !ok || s.expired(e.CreatedAt) {
		return nil, false, nil
	}
	return e.Payload, true, nil
}

func (s *TempDataStore) Delete(_ context.Context, action domain.ActionType, userKey string) error {
	s.mu.Lock()
	delete(s.entries, tempKey{action, userKey})
	s.mu.Unlock()
	return nil
}

// Sweep removes expired entries and returns how many were removed.
func (s *TempDataStore) Sweep() int {
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

// Len counts stored entries, including expired ones not yet swept.
func (s *TempDataStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the sweeper and drops every entry.
func (s *TempDataStore) Close() error {
	s.sweeper.stop()
	s.mu.Lock()
	s.entries = make(map[tempKey]domain.PendingAction)
	s.mu.Unlock()
	return nil
}

func (s *TempDataStore) expired(createdAt time.Time) bool {
	return s.clock.Now().Sub(createdAt) > s.ttl
}
