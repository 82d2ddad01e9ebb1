package settings

import (
	"context"
	"sync"
	"time"

	"github.com/Spok95/podvest/internal/domain/event"
)

// Store holds the single registry record. Update applies fn to a copy and keeps it
// only when fn succeeds.
type Store interface {
	Get(ctx context.Context) (*Registry, error)
	// Init stores r unless a registry already exists, and returns the stored one.
	Init(ctx context.Context, r *Registry) (*Registry, error)
	Update(ctx context.Context, fn func(r *Registry) error) (*Registry, error)
}

type MemStore struct {
	mu     sync.Mutex
	reg    *Registry
	outbox *event.MemoryOutbox
}

func NewMemStore(outbox *event.MemoryOutbox) *MemStore { return &MemStore{outbox: outbox} }

func (s *MemStore) Get(_ context.Context) (*Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reg == nil {
		return nil, ErrNotFound
	}
	return s.reg.clone(), nil
}

func (s *MemStore) Init(_ context.Context, r *Registry) (*Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reg == nil {
		s.reg = r.clone()
		s.reg.events = nil
	}
	return s.reg.clone(), nil
}

func (s *MemStore) Update(_ context.Context, fn func(r *Registry) error) (*Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reg == nil {
		return nil, ErrNotFound
	}
	next := s.reg.clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	envs, err := event.SealAll(next.Events(), time.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.reg = next
	s.outbox.Append(envs...)
	return next.clone(), nil
}
