package pod

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Spok95/podvest/internal/domain/event"
)

// Store persists pods. Update runs fn against a private copy of the pod and
// commits the copy together with its events only when fn returns nil. Updates to
// one pod are serialized; different pods never wait on each other.
type Store interface {
	Create(ctx context.Context, p *Pod) error
	Get(ctx context.Context, id string) (*Pod, error)
	List(ctx context.Context) ([]*Pod, error)
	Update(ctx context.Context, id string, fn func(p *Pod) error) (*Pod, error)
}

type record struct {
	mu  sync.Mutex
	pod *Pod
}

type MemStore struct {
	mu      sync.RWMutex
	records map[string]*record
	outbox  *event.MemoryOutbox
}

func NewMemStore(outbox *event.MemoryOutbox) *MemStore {
	return &MemStore{records: map[string]*record{}, outbox: outbox}
}

func (s *MemStore) Create(_ context.Context, p *Pod) error {
	envs, err := event.SealAll(p.Events(), time.Now().UTC())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[p.ID]; ok {
		return ErrInvalidParams
	}
	s.records[p.ID] = &record{pod: p.clone()}
	s.outbox.Append(envs...)
	return nil
}

func (s *MemStore) lookup(id string) (*record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *MemStore) Get(_ context.Context, id string) (*Pod, error) {
	rec, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.pod.clone(), nil
}

func (s *MemStore) List(_ context.Context) ([]*Pod, error) {
	s.mu.RLock()
	recs := make([]*record, 0, len(s.records))
	for _, r := range s.records {
		recs = append(recs, r)
	}
	s.mu.RUnlock()

	out := make([]*Pod, 0, len(recs))
	for _, r := range recs {
		r.mu.Lock()
		out = append(out, r.pod.clone())
		r.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemStore) Update(_ context.Context, id string, fn func(p *Pod) error) (*Pod, error) {
	rec, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	next := rec.pod.clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	envs, err := event.SealAll(next.Events(), time.Now().UTC())
	if err != nil {
		return nil, err
	}
	rec.pod = next
	s.outbox.Append(envs...)
	return next.clone(), nil
}
