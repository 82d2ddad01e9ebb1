package settings

import (
	"context"
	"errors"
	"time"

	"github.com/Spok95/podvest/internal/domain/event"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

const selectRegistry = `
	SELECT max_immediate_unlock_fraction, min_vesting_duration, min_subscription_duration,
	       pod_exit_fee, pod_exit_small_fee, small_fee_duration, subscription_cancel_fee, admin_hash
	FROM platform_settings
	WHERE id = 1`

func scanRegistry(row pgx.Row) (*Registry, error) {
	var (
		r Registry
		v [7]int64
	)
	if err := row.Scan(&v[0], &v[1], &v[2], &v[3], &v[4], &v[5], &v[6], &r.AdminHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	r.MaxImmediateUnlockFraction = uint64(v[0])
	r.MinVestingDuration = uint64(v[1])
	r.MinSubscriptionDuration = uint64(v[2])
	r.PodExitFee = uint64(v[3])
	r.PodExitSmallFee = uint64(v[4])
	r.SmallFeeDuration = uint64(v[5])
	r.SubscriptionCancelFee = uint64(v[6])
	return &r, nil
}

func (r *Repo) Get(ctx context.Context) (*Registry, error) {
	return scanRegistry(r.pool.QueryRow(ctx, selectRegistry))
}

func (r *Repo) Init(ctx context.Context, reg *Registry) (*Registry, error) {
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO platform_settings (id, max_immediate_unlock_fraction, min_vesting_duration,
			min_subscription_duration, pod_exit_fee, pod_exit_small_fee, small_fee_duration,
			subscription_cancel_fee, admin_hash)
		VALUES (1,$1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO NOTHING
	`, int64(reg.MaxImmediateUnlockFraction), int64(reg.MinVestingDuration), int64(reg.MinSubscriptionDuration),
		int64(reg.PodExitFee), int64(reg.PodExitSmallFee), int64(reg.SmallFeeDuration),
		int64(reg.SubscriptionCancelFee), reg.AdminHash); err != nil {
		return nil, err
	}
	return r.Get(ctx)
}

func (r *Repo) Update(ctx context.Context, fn func(reg *Registry) error) (*Registry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	reg, err := scanRegistry(tx.QueryRow(ctx, selectRegistry+" FOR UPDATE"))
	if err != nil {
		return nil, err
	}
	if err := fn(reg); err != nil {
		return nil, err
	}

	if _, err = tx.Exec(ctx, `
		UPDATE platform_settings SET
			max_immediate_unlock_fraction = $1, min_vesting_duration = $2,
			min_subscription_duration = $3, pod_exit_fee = $4, pod_exit_small_fee = $5,
			small_fee_duration = $6, subscription_cancel_fee = $7, updated_at = now()
		WHERE id = 1
	`, int64(reg.MaxImmediateUnlockFraction), int64(reg.MinVestingDuration), int64(reg.MinSubscriptionDuration),
		int64(reg.PodExitFee), int64(reg.PodExitSmallFee), int64(reg.SmallFeeDuration),
		int64(reg.SubscriptionCancelFee)); err != nil {
		return nil, err
	}

	envs, err := event.SealAll(reg.Events(), time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := event.Insert(ctx, tx, envs); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return reg, nil
}
