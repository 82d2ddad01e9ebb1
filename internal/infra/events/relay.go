package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Spok95/podvest/internal/domain/event"
)

// Sink receives every committed event once the relay picks it up. Names must be
// unique within a relay.
type Sink interface {
	Name() string
	Publish(ctx context.Context, env event.Envelope) error
}

// Relay drains the outbox into the sinks. A row is marked sent only after every
// sink accepted it; the first failure ends the batch so later rows never
// overtake an earlier one. Sinks that already took a pending row are skipped
// when it is retried. That memory is per process, so delivery is at least
// once: after a restart a sink can see a row again and must tolerate
// duplicate event ids.
type Relay struct {
	log       *slog.Logger
	outbox    event.Outbox
	sinks     []Sink
	interval  time.Duration
	batchSize int
	nowFn     func() time.Time

	mu        sync.Mutex
	delivered map[string]map[string]struct{} // event id -> sink names
}

func NewRelay(log *slog.Logger, outbox event.Outbox, interval time.Duration, batchSize int, sinks ...Sink) *Relay {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{
		log:       log,
		outbox:    outbox,
		sinks:     sinks,
		interval:  interval,
		batchSize: batchSize,
		nowFn:     func() time.Time { return time.Now().UTC() },
		delivered: map[string]map[string]struct{}{},
	}
}

func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if _, err := r.ProcessOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.log.ErrorContext(ctx, "outbox relay iteration failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessOnce relays one batch and reports how many rows were marked sent.
func (r *Relay) ProcessOnce(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending, err := r.outbox.ListPending(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, env := range pending {
		done := r.delivered[env.ID]
		if done == nil {
			done = map[string]struct{}{}
			r.delivered[env.ID] = done
		}
		for _, s := range r.sinks {
			if _, ok := done[s.Name()]; ok {
				continue
			}
			if err := s.Publish(ctx, env); err != nil {
				r.log.WarnContext(ctx, "sink rejected event",
					"sink", s.Name(), "event_id", env.ID, "type", env.Type, "err", err)
				return sent, nil
			}
			done[s.Name()] = struct{}{}
		}
		if err := r.outbox.MarkSent(ctx, env.ID, r.nowFn()); err != nil {
			return sent, err
		}
		delete(r.delivered, env.ID)
		sent++
	}
	return sent, nil
}

// LogSink writes every event to the structured log.
type LogSink struct{ log *slog.Logger }

func NewLogSink(log *slog.Logger) *LogSink { return &LogSink{log: log} }

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Publish(ctx context.Context, env event.Envelope) error {
	s.log.InfoContext(ctx, "event",
		"id", env.ID,
		"type", env.Type,
		"subject", env.Subject,
		"occurred_at", env.OccurredAt,
		"data", string(env.Data),
	)
	return nil
}
