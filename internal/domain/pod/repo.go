package pod

import (
	"context"
	"errors"
	"time"

	"github.com/Spok95/podvest/internal/domain/asset"
	"github.com/Spok95/podvest/internal/domain/event"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ db *pgxpool.Pool }

func NewRepo(db *pgxpool.Pool) *Repo { return &Repo{db: db} }

const podColumns = `id,name,description,forum_url,funds_vault,token_vault,
	total_raised,total_allocated,founder_claimed_funds,tokens_deposited,exit_refunds,
	subscription_start,subscription_end,vesting_start,vesting_duration,
	token_price,price_multiplier,min_goal,max_goal,immediate_unlock_fraction,
	pod_exit_fee,pod_exit_small_fee,small_fee_duration,subscription_cancel_fee,
	failure_announced,admin_hash,created_at`

// Amounts and ms timestamps are BIGINT columns; Create and the settings
// registry keep every stored value within fixed.MaxStored.
func scanPod(row pgx.Row) (*Pod, error) {
	var (
		p            Pod
		funds, token int64
		created      int64
		n            [18]int64
	)
	if err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.ForumURL,
		&funds, &token,
		&n[0], &n[1], &n[2], &n[3], &n[17],
		&n[4], &n[5], &n[6], &n[7],
		&n[8], &n[9], &n[10], &n[11], &n[12],
		&n[13], &n[14], &n[15], &n[16],
		&p.FailureAnnounced, &p.AdminHash, &created,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.FundsVault = asset.Mint[asset.Funds](uint64(funds))
	p.TokenVault = asset.Mint[asset.Tokens](uint64(token))
	p.TotalRaised = uint64(n[0])
	p.TotalAllocated = uint64(n[1])
	p.FounderClaimedFunds = uint64(n[2])
	p.TokensDeposited = uint64(n[3])
	p.ExitRefunds = uint64(n[17])
	p.SubscriptionStart = uint64(n[4])
	p.SubscriptionEnd = uint64(n[5])
	p.VestingStart = uint64(n[6])
	p.VestingDuration = uint64(n[7])
	p.TokenPrice = uint64(n[8])
	p.PriceMultiplier = uint64(n[9])
	p.MinGoal = uint64(n[10])
	p.MaxGoal = uint64(n[11])
	p.ImmediateUnlockFraction = uint64(n[12])
	p.Fees = Fees{
		PodExitFee:            uint64(n[13]),
		PodExitSmallFee:       uint64(n[14]),
		SmallFeeDuration:      uint64(n[15]),
		SubscriptionCancelFee: uint64(n[16]),
	}
	p.CreatedAt = uint64(created)
	p.ledger = map[string]*Investment{}
	p.keys = map[string]string{}
	return &p, nil
}

func podArgs(p *Pod) []any {
	return []any{
		p.ID, p.Name, p.Description, p.ForumURL,
		int64(p.FundsVault.Value()), int64(p.TokenVault.Value()),
		int64(p.TotalRaised), int64(p.TotalAllocated), int64(p.FounderClaimedFunds), int64(p.TokensDeposited), int64(p.ExitRefunds),
		int64(p.SubscriptionStart), int64(p.SubscriptionEnd), int64(p.VestingStart), int64(p.VestingDuration),
		int64(p.TokenPrice), int64(p.PriceMultiplier), int64(p.MinGoal), int64(p.MaxGoal), int64(p.ImmediateUnlockFraction),
		int64(p.Fees.PodExitFee), int64(p.Fees.PodExitSmallFee), int64(p.Fees.SmallFeeDuration), int64(p.Fees.SubscriptionCancelFee),
		p.FailureAnnounced, p.AdminHash, int64(p.CreatedAt),
	}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadLedger(ctx context.Context, q querier, p *Pod) error {
	rows, err := q.Query(ctx, `SELECT investor,invested,allocation,claimed_tokens,key_hash
	                           FROM pod_allocations
	                           WHERE pod_id=$1`, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			investor, hash string
			v              [3]int64
		)
		if err := rows.Scan(&investor, &v[0], &v[1], &v[2], &hash); err != nil {
			return err
		}
		p.ledger[investor] = &Investment{
			Invested:      uint64(v[0]),
			Allocation:    uint64(v[1]),
			ClaimedTokens: uint64(v[2]),
		}
		p.keys[investor] = hash
	}
	return rows.Err()
}

func writeLedger(ctx context.Context, tx pgx.Tx, p *Pod) error {
	if _, err := tx.Exec(ctx, `DELETE FROM pod_allocations WHERE pod_id=$1`, p.ID); err != nil {
		return err
	}
	positions := p.Positions()
	if len(positions) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"pod_allocations"},
		[]string{"pod_id", "investor", "invested", "allocation", "claimed_tokens", "key_hash"},
		pgx.CopyFromSlice(len(positions), func(i int) ([]any, error) {
			pos := positions[i]
			return []any{p.ID, pos.Investor, int64(pos.Invested), int64(pos.Allocation), int64(pos.ClaimedTokens), p.keys[pos.Investor]}, nil
		}),
	)
	return err
}

func (r *Repo) Create(ctx context.Context, p *Pod) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `INSERT INTO pods (` + podColumns + `)
	           VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27)`
	if _, err := tx.Exec(ctx, q, podArgs(p)...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrInvalidParams
		}
		return err
	}
	if err := writeLedger(ctx, tx, p); err != nil {
		return err
	}
	envs, err := event.SealAll(p.Events(), time.Now().UTC())
	if err != nil {
		return err
	}
	if err := event.Insert(ctx, tx, envs); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repo) Get(ctx context.Context, id string) (*Pod, error) {
	p, err := scanPod(r.db.QueryRow(ctx, `SELECT `+podColumns+` FROM pods WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	if err := loadLedger(ctx, r.db, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Repo) List(ctx context.Context) ([]*Pod, error) {
	rows, err := r.db.Query(ctx, `SELECT `+podColumns+` FROM pods ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	var out []*Pod
	for rows.Next() {
		p, err := scanPod(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, p := range out {
		if err := loadLedger(ctx, r.db, p); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Update locks the pod row for the whole transaction, so concurrent updates to
// the same pod queue up behind it.
func (r *Repo) Update(ctx context.Context, id string, fn func(p *Pod) error) (*Pod, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p, err := scanPod(tx.QueryRow(ctx, `SELECT `+podColumns+` FROM pods WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if err := loadLedger(ctx, tx, p); err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}

	const q = `
UPDATE pods
SET name=$2, description=$3, forum_url=$4, funds_vault=$5, token_vault=$6,
    total_raised=$7, total_allocated=$8, founder_claimed_funds=$9, tokens_deposited=$10, exit_refunds=$11,
    subscription_start=$12, subscription_end=$13, vesting_start=$14, vesting_duration=$15,
    token_price=$16, price_multiplier=$17, min_goal=$18, max_goal=$19, immediate_unlock_fraction=$20,
    pod_exit_fee=$21, pod_exit_small_fee=$22, small_fee_duration=$23, subscription_cancel_fee=$24,
    failure_announced=$25, admin_hash=$26, created_at=$27,
    updated_at = NOW()
WHERE id = $1
`
	if _, err := tx.Exec(ctx, q, podArgs(p)...); err != nil {
		return nil, err
	}
	if err := writeLedger(ctx, tx, p); err != nil {
		return nil, err
	}
	envs, err := event.SealAll(p.Events(), time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := event.Insert(ctx, tx, envs); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return p, nil
}
