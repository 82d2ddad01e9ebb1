package event

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

// Insert writes envelopes inside the caller's transaction so they commit together
// with the state change that produced them.
func Insert(ctx context.Context, tx pgx.Tx, envs []Envelope) error {
	for _, e := range envs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO outbox (id, type, subject, occurred_at, data, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, e.ID, string(e.Type), e.Subject, int64(e.OccurredAt), []byte(e.Data), e.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) ListPending(ctx context.Context, limit int) ([]Envelope, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, type, subject, occurred_at, data, created_at
		FROM outbox
		WHERE sent_at IS NULL
		ORDER BY seq
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Envelope{}
	for rows.Next() {
		var (
			e          Envelope
			typ        string
			occurredAt int64
			data       []byte
		)
		if err := rows.Scan(&e.ID, &typ, &e.Subject, &occurredAt, &data, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = Type(typ)
		e.OccurredAt = uint64(occurredAt)
		e.Data = data
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repo) MarkSent(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE outbox SET sent_at = $2 WHERE id = $1`, id, at)
	return err
}
