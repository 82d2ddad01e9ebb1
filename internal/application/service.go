package application

import (
	"context"
	"time"

	"github.com/Spok95/podvest/internal/domain/asset"
	"github.com/Spok95/podvest/internal/domain/pod"
	"github.com/Spok95/podvest/internal/domain/settings"
	"github.com/Spok95/podvest/internal/domain/vesting"
)

func (s *Service) done(ctx context.Context, op string, started time.Time, err error, attrs ...any) {
	s.metrics.Observe(op, started, err)
	attrs = append([]any{"op", op}, attrs...)
	if err != nil {
		s.log.WarnContext(ctx, "operation rejected", append(attrs, "err", err)...)
		return
	}
	s.log.InfoContext(ctx, "operation done", attrs...)
}

// update reads the clock inside the store's critical section, so operations on
// one pod observe non-decreasing times.
func (s *Service) update(ctx context.Context, id string, fn func(p *pod.Pod, now uint64) error) (*pod.Pod, uint64, error) {
	var now uint64
	p, err := s.pods.Update(ctx, id, func(p *pod.Pod) error {
		now = s.nowFn()
		return fn(p, now)
	})
	return p, now, err
}

/* settings */

func (s *Service) Settings(ctx context.Context) (settings.Params, error) {
	reg, err := s.settings.Get(ctx)
	if err != nil {
		return settings.Params{}, err
	}
	return reg.Params, nil
}

func (s *Service) UpdateSettings(ctx context.Context, adminSecret string, u settings.Update) (params settings.Params, err error) {
	defer func(started time.Time) { s.done(ctx, "update_settings", started, err) }(time.Now())

	reg, err := s.settings.Update(ctx, func(r *settings.Registry) error {
		return r.Update(settings.NewPlatformAdminCap(adminSecret), u, s.nowFn())
	})
	if err != nil {
		return settings.Params{}, err
	}
	return reg.Params, nil
}

/* pods: anyone */

func (s *Service) CreatePod(ctx context.Context, in CreatePodInput) (res CreatePodResult, err error) {
	defer func(started time.Time) { s.done(ctx, "create_pod", started, err, "pod_id", res.Pod.ID) }(time.Now())

	reg, err := s.settings.Get(ctx)
	if err != nil {
		return CreatePodResult{}, err
	}
	now := s.nowFn()
	p, c, err := pod.Create(reg.Params, pod.CreateParams{
		ID:                      s.newID(),
		AdminSecret:             s.newID(),
		Name:                    in.Name,
		Description:             in.Description,
		ForumURL:                in.ForumURL,
		TokenPrice:              in.TokenPrice,
		PriceMultiplier:         in.PriceMultiplier,
		MinGoal:                 in.MinGoal,
		MaxGoal:                 in.MaxGoal,
		SubscriptionStart:       in.SubscriptionStart,
		SubscriptionDuration:    in.SubscriptionDuration,
		VestingDuration:         in.VestingDuration,
		ImmediateUnlockFraction: in.ImmediateUnlockFraction,
	}, asset.Mint[asset.Tokens](in.TokenDeposit), now)
	if err != nil {
		return CreatePodResult{}, err
	}
	view := viewOf(p, now)
	if err := s.pods.Create(ctx, p); err != nil {
		return CreatePodResult{}, err
	}
	s.metrics.TokensIn(in.TokenDeposit)
	return CreatePodResult{Pod: view, AdminToken: c.Token()}, nil
}

func (s *Service) GetPod(ctx context.Context, id string) (PodView, error) {
	p, err := s.pods.Get(ctx, id)
	if err != nil {
		return PodView{}, err
	}
	return viewOf(p, s.nowFn()), nil
}

func (s *Service) ListPods(ctx context.Context) ([]PodView, error) {
	pods, err := s.pods.List(ctx)
	if err != nil {
		return nil, err
	}
	now := s.nowFn()
	out := make([]PodView, 0, len(pods))
	for _, p := range pods {
		out = append(out, viewOf(p, now))
	}
	return out, nil
}

// Snapshot returns a detached copy of the pod and the time it was read at.
func (s *Service) Snapshot(ctx context.Context, id string) (*pod.Pod, uint64, error) {
	p, err := s.pods.Get(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	return p, s.nowFn(), nil
}

func (s *Service) Status(ctx context.Context, id string) (pod.Status, error) {
	p, err := s.pods.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return p.Status(s.nowFn()), nil
}

func (s *Service) FounderClaimable(ctx context.Context, id string) (uint64, error) {
	p, err := s.pods.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return p.FounderClaimable(s.nowFn())
}

func (s *Service) Position(ctx context.Context, id, investor string) (PositionView, error) {
	p, err := s.pods.Get(ctx, id)
	if err != nil {
		return PositionView{}, err
	}
	inv, ok := p.Position(investor)
	if !ok {
		return PositionView{}, pod.ErrNoInvestment
	}
	vested, err := p.VestedTokens(s.nowFn(), investor)
	if err != nil {
		return PositionView{}, err
	}
	return PositionView{Position: pod.Position{Investor: investor, Investment: inv}, VestedTokens: vested}, nil
}

// VestedTokens is the bare schedule, independent of any pod.
func (s *Service) VestedTokens(elapsed, duration, unlockFraction, total uint64) (uint64, error) {
	return vesting.VestedTokens(elapsed, duration, unlockFraction, total)
}

/* pods: investors */

// Invest adds amount to the investor's position. A new investor gets a fresh
// key in the result; an existing one must present the key issued earlier.
func (s *Service) Invest(ctx context.Context, id, investor, key string, amount uint64) (res InvestResult, err error) {
	defer func(started time.Time) {
		s.done(ctx, "invest", started, err, "pod_id", id, "investor", investor, "accepted", res.Accepted, "excess", res.Excess)
	}(time.Now())

	p, now, err := s.update(ctx, id, func(p *pod.Pod, now uint64) error {
		res = InvestResult{}
		k := key
		if _, ok := p.Position(investor); !ok {
			k = s.newID()
			res.InvestorKey = k
		}
		excess, err := p.Invest(now, pod.NewInvestorCap(investor, k), asset.Mint[asset.Funds](amount))
		if err != nil {
			return err
		}
		res.Excess = excess.Value()
		res.Accepted = amount - res.Excess
		return nil
	})
	if err != nil {
		return InvestResult{}, err
	}
	inv, _ := p.Position(investor)
	res.TotalInvested = inv.Invested
	res.Status = p.Status(now)
	s.metrics.FundsIn(res.Accepted)
	return res, nil
}

func (s *Service) CancelSubscription(ctx context.Context, id, investor, key string) (refund uint64, err error) {
	defer func(started time.Time) {
		s.done(ctx, "cancel_subscription", started, err, "pod_id", id, "investor", investor, "refund", refund)
	}(time.Now())

	var out uint64
	_, _, err = s.update(ctx, id, func(p *pod.Pod, now uint64) error {
		b, err := p.CancelSubscription(now, pod.NewInvestorCap(investor, key))
		out = b.Value()
		return err
	})
	if err != nil {
		return 0, err
	}
	s.metrics.FundsOut(out)
	return out, nil
}

func (s *Service) ClaimTokens(ctx context.Context, id, investor, key string) (tokens uint64, err error) {
	defer func(started time.Time) {
		s.done(ctx, "claim_tokens", started, err, "pod_id", id, "investor", investor, "tokens", tokens)
	}(time.Now())

	var out uint64
	_, _, err = s.update(ctx, id, func(p *pod.Pod, now uint64) error {
		b, err := p.ClaimTokens(now, pod.NewInvestorCap(investor, key))
		out = b.Value()
		return err
	})
	if err != nil {
		return 0, err
	}
	s.metrics.TokensOut(out)
	return out, nil
}

func (s *Service) ExitInvestment(ctx context.Context, id, investor, key string) (res ExitResult, err error) {
	defer func(started time.Time) {
		s.done(ctx, "exit_investment", started, err, "pod_id", id, "investor", investor, "refund", res.Refund, "tokens", res.Tokens)
	}(time.Now())

	var out ExitResult
	_, _, err = s.update(ctx, id, func(p *pod.Pod, now uint64) error {
		r, err := p.ExitInvestment(now, pod.NewInvestorCap(investor, key))
		if err != nil {
			return err
		}
		out = ExitResult{Refund: r.Refund.Value(), Tokens: r.Tokens.Value(), Fee: r.Fee, Forfeited: r.Forfeited}
		return nil
	})
	if err != nil {
		return ExitResult{}, err
	}
	s.metrics.FundsOut(out.Refund)
	s.metrics.TokensOut(out.Tokens)
	return out, nil
}

func (s *Service) FailedPodRefund(ctx context.Context, id, investor, key string) (refund uint64, err error) {
	defer func(started time.Time) {
		s.done(ctx, "failed_pod_refund", started, err, "pod_id", id, "investor", investor, "refund", refund)
	}(time.Now())

	var out uint64
	_, _, err = s.update(ctx, id, func(p *pod.Pod, now uint64) error {
		b, err := p.FailedPodRefund(now, pod.NewInvestorCap(investor, key))
		out = b.Value()
		return err
	})
	if err != nil {
		return 0, err
	}
	s.metrics.FundsOut(out)
	return out, nil
}

/* pods: founder */

func (s *Service) FounderClaimFunds(ctx context.Context, id, adminToken string) (funds uint64, err error) {
	defer func(started time.Time) {
		s.done(ctx, "founder_claim_funds", started, err, "pod_id", id, "funds", funds)
	}(time.Now())

	c, err := pod.ParseAdminCap(adminToken)
	if err != nil {
		return 0, err
	}
	var out uint64
	_, _, err = s.update(ctx, id, func(p *pod.Pod, now uint64) error {
		b, err := p.FounderClaimFunds(now, c)
		out = b.Value()
		return err
	})
	if err != nil {
		return 0, err
	}
	s.metrics.FundsOut(out)
	return out, nil
}

func (s *Service) FailedPodWithdraw(ctx context.Context, id, adminToken string) (tokens uint64, err error) {
	defer func(started time.Time) {
		s.done(ctx, "failed_pod_withdraw", started, err, "pod_id", id, "tokens", tokens)
	}(time.Now())

	c, err := pod.ParseAdminCap(adminToken)
	if err != nil {
		return 0, err
	}
	var out uint64
	_, _, err = s.update(ctx, id, func(p *pod.Pod, now uint64) error {
		b, err := p.FailedPodWithdraw(now, c)
		out = b.Value()
		return err
	})
	if err != nil {
		return 0, err
	}
	s.metrics.TokensOut(out)
	return out, nil
}
