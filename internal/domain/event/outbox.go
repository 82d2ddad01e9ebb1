package event

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outbox is the read side the relay worker drains.
type Outbox interface {
	ListPending(ctx context.Context, limit int) ([]Envelope, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
}

// SealAll assigns fresh ids to events in order.
func SealAll(events []Event, createdAt time.Time) ([]Envelope, error) {
	out := make([]Envelope, 0, len(events))
	for _, ev := range events {
		env, err := Seal(uuid.NewString(), ev, createdAt)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, nil
}

// MemoryOutbox keeps envelopes in process. It backs the in-memory stores.
type MemoryOutbox struct {
	mu   sync.Mutex
	seq  int64
	rows []memRow
}

type memRow struct {
	seq int64
	env Envelope
}

func NewMemoryOutbox() *MemoryOutbox { return &MemoryOutbox{} }

func (o *MemoryOutbox) Append(envs ...Envelope) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, e := range envs {
		o.seq++
		o.rows = append(o.rows, memRow{seq: o.seq, env: e})
	}
}

func (o *MemoryOutbox) ListPending(_ context.Context, limit int) ([]Envelope, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := []Envelope{}
	for _, r := range o.rows {
		if r.env.SentAt != nil {
			continue
		}
		out = append(out, r.env)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (o *MemoryOutbox) MarkSent(_ context.Context, id string, at time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.rows {
		if o.rows[i].env.ID == id {
			t := at
			o.rows[i].env.SentAt = &t
			return nil
		}
	}
	return nil
}

// All returns every envelope ever appended, oldest first.
func (o *MemoryOutbox) All() []Envelope {
	o.mu.Lock()
	defer o.mu.Unlock()
	rows := append([]memRow(nil), o.rows...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	out := make([]Envelope, len(rows))
	for i, r := range rows {
		out[i] = r.env
	}
	return out
}
