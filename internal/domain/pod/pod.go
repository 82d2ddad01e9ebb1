package pod

import (
	"github.com/Spok95/podvest/internal/domain/asset"
	"github.com/Spok95/podvest/internal/domain/capability"
	"github.com/Spok95/podvest/internal/domain/event"
	"github.com/Spok95/podvest/internal/domain/fixed"
	"github.com/Spok95/podvest/internal/domain/settings"
	"github.com/Spok95/podvest/internal/domain/vesting"
)

// Every operation below checks all preconditions and computes every new value
// before it touches the pod, so a returned error leaves the pod unchanged.

type CreateParams struct {
	ID          string
	AdminSecret string

	Name        string
	Description string
	ForumURL    string

	TokenPrice      uint64
	PriceMultiplier uint64
	MinGoal         uint64
	MaxGoal         uint64

	SubscriptionStart       uint64
	SubscriptionDuration    uint64
	VestingDuration         uint64
	ImmediateUnlockFraction uint64
}

// RequiredDeposit is the token amount a pod with these parameters is sized for.
func RequiredDeposit(maxGoal, priceMultiplier, tokenPrice uint64) (uint64, error) {
	return fixed.MulDiv(maxGoal, priceMultiplier, tokenPrice)
}

// Create opens a pod funded with exactly the required token deposit and returns
// the founder's admin capability.
func Create(reg settings.Params, in CreateParams, tokens asset.Balance[asset.Tokens], now uint64) (*Pod, AdminCap, error) {
	switch {
	case in.ID == "" || in.AdminSecret == "":
		return nil, AdminCap{}, ErrInvalidParams
	case in.TokenPrice == 0 || in.PriceMultiplier == 0:
		return nil, AdminCap{}, ErrInvalidParams
	case in.TokenPrice > fixed.MaxStored || in.PriceMultiplier > fixed.MaxStored:
		return nil, AdminCap{}, ErrInvalidParams
	case in.MaxGoal > fixed.MaxStored || in.VestingDuration > fixed.MaxStored:
		return nil, AdminCap{}, ErrInvalidParams
	case in.MinGoal == 0 || in.MaxGoal < in.MinGoal:
		return nil, AdminCap{}, ErrInvalidParams
	case in.SubscriptionDuration < reg.MinSubscriptionDuration:
		return nil, AdminCap{}, ErrInvalidParams
	case in.VestingDuration < reg.MinVestingDuration:
		return nil, AdminCap{}, ErrInvalidParams
	case in.ImmediateUnlockFraction > reg.MaxImmediateUnlockFraction:
		return nil, AdminCap{}, ErrInvalidParams
	}

	required, err := RequiredDeposit(in.MaxGoal, in.PriceMultiplier, in.TokenPrice)
	if err != nil {
		return nil, AdminCap{}, err
	}
	if required > fixed.MaxStored {
		return nil, AdminCap{}, ErrInvalidParams
	}
	if tokens.Value() != required {
		return nil, AdminCap{}, ErrWrongDeposit
	}
	end, err := fixed.Add(in.SubscriptionStart, in.SubscriptionDuration)
	if err != nil {
		return nil, AdminCap{}, err
	}
	if end > fixed.MaxStored {
		return nil, AdminCap{}, ErrInvalidParams
	}

	p := &Pod{
		ID:                      in.ID,
		Name:                    in.Name,
		Description:             in.Description,
		ForumURL:                in.ForumURL,
		TokenVault:              tokens,
		TokensDeposited:         required,
		SubscriptionStart:       in.SubscriptionStart,
		SubscriptionEnd:         end,
		VestingStart:            end,
		VestingDuration:         in.VestingDuration,
		TokenPrice:              in.TokenPrice,
		PriceMultiplier:         in.PriceMultiplier,
		MinGoal:                 in.MinGoal,
		MaxGoal:                 in.MaxGoal,
		ImmediateUnlockFraction: in.ImmediateUnlockFraction,
		Fees: Fees{
			PodExitFee:            reg.PodExitFee,
			PodExitSmallFee:       reg.PodExitSmallFee,
			SmallFeeDuration:      reg.SmallFeeDuration,
			SubscriptionCancelFee: reg.SubscriptionCancelFee,
		},
		AdminHash: capability.Hash(in.AdminSecret),
		CreatedAt: now,
		ledger:    map[string]*Investment{},
		keys:      map[string]string{},
	}
	p.emit(now, event.PodCreated, event.PodCreatedData{
		PodID:             p.ID,
		Name:              p.Name,
		TokenPrice:        p.TokenPrice,
		PriceMultiplier:   p.PriceMultiplier,
		MinGoal:           p.MinGoal,
		MaxGoal:           p.MaxGoal,
		SubscriptionStart: p.SubscriptionStart,
		SubscriptionEnd:   p.SubscriptionEnd,
		VestingDuration:   p.VestingDuration,
		TokensDeposited:   required,
	})
	return p, NewAdminCap(p.ID, in.AdminSecret), nil
}

// Invest accepts payment up to the remaining room under MaxGoal and hands back
// whatever did not fit. Filling the goal closes the subscription at now.
// The first investment binds c's key to the position; later ones must match it.
func (p *Pod) Invest(now uint64, c InvestorCap, payment asset.Balance[asset.Funds]) (asset.Balance[asset.Funds], error) {
	zero := asset.Zero[asset.Funds]()
	investor := c.investor
	if investor == "" {
		return zero, ErrInvalidParams
	}
	if p.Status(now) != StatusSubscription {
		return zero, ErrNotSubscription
	}
	if p.TotalRaised >= p.MaxGoal {
		return zero, ErrGoalReached
	}
	if payment.IsZero() {
		return zero, ErrZeroAmount
	}

	room := p.MaxGoal - p.TotalRaised
	excess := zero
	if payment.Value() > room {
		excess, _ = payment.Split(payment.Value() - room)
	}
	accepted := payment.Value()

	allocation, err := fixed.MulDiv(accepted, p.PriceMultiplier, p.TokenPrice)
	if err != nil {
		return zero, err
	}
	var entry Investment
	keyHash := capability.Hash(c.key)
	if cur, ok := p.ledger[investor]; ok {
		if !capability.Matches(p.keys[investor], c.key) {
			return zero, ErrNotInvestor
		}
		entry = *cur
		keyHash = p.keys[investor]
	} else if c.key == "" {
		return zero, ErrInvalidParams
	}
	if entry.Invested, err = fixed.Add(entry.Invested, accepted); err != nil {
		return zero, err
	}
	if entry.Allocation, err = fixed.Add(entry.Allocation, allocation); err != nil {
		return zero, err
	}
	totalRaised, err := fixed.Add(p.TotalRaised, accepted)
	if err != nil {
		return zero, err
	}
	totalAllocated, err := fixed.Add(p.TotalAllocated, allocation)
	if err != nil {
		return zero, err
	}
	vault := p.FundsVault
	if err := vault.Join(payment); err != nil {
		return zero, err
	}

	p.FundsVault = vault
	p.TotalRaised = totalRaised
	p.TotalAllocated = totalAllocated
	p.ledger[investor] = &entry
	p.keys[investor] = keyHash

	p.emit(now, event.InvestmentMade, event.InvestmentMadeData{
		Investor:      investor,
		Amount:        accepted,
		TotalInvested: entry.Invested,
	})
	if p.TotalRaised == p.MaxGoal {
		p.SubscriptionEnd = now
		p.emit(now, event.MaxGoalReached, event.MaxGoalReachedData{TotalRaised: p.TotalRaised})
	}
	return excess, nil
}

// CancelSubscription shrinks the investor's position to the cancel-fee permille of
// what they invested and refunds the rest. The entry stays in the ledger, so a
// second call shrinks it again.
func (p *Pod) CancelSubscription(now uint64, c InvestorCap) (asset.Balance[asset.Funds], error) {
	zero := asset.Zero[asset.Funds]()
	if p.Status(now) != StatusSubscription {
		return zero, ErrNotSubscription
	}
	cur, err := p.authorizeInvestor(c)
	if err != nil {
		return zero, err
	}
	if cur.Invested == 0 {
		return zero, ErrNothingToCancel
	}

	newInvested, err := fixed.Permille(cur.Invested, p.Fees.SubscriptionCancelFee)
	if err != nil {
		return zero, err
	}
	newAllocation, err := fixed.MulDiv(cur.Allocation, newInvested, cur.Invested)
	if err != nil {
		return zero, err
	}
	refund, err := fixed.Sub(cur.Invested, newInvested)
	if err != nil {
		return zero, err
	}
	released, err := fixed.Sub(cur.Allocation, newAllocation)
	if err != nil {
		return zero, err
	}
	totalRaised, err := fixed.Sub(p.TotalRaised, refund)
	if err != nil {
		return zero, err
	}
	totalAllocated, err := fixed.Sub(p.TotalAllocated, released)
	if err != nil {
		return zero, err
	}
	vault := p.FundsVault
	out, err := vault.Split(refund)
	if err != nil {
		return zero, err
	}

	p.FundsVault = vault
	p.TotalRaised = totalRaised
	p.TotalAllocated = totalAllocated
	cur.Invested = newInvested
	cur.Allocation = newAllocation

	p.emit(now, event.SubscriptionCancelled, event.SubscriptionCancelledData{
		Investor:   c.investor,
		Refund:     refund,
		Invested:   newInvested,
		Allocation: newAllocation,
	})
	return out, nil
}

// vestedAt measures vesting from SubscriptionEnd.
func (p *Pod) vestedAt(now, total uint64) (uint64, error) {
	elapsed, err := fixed.Sub(now, p.SubscriptionEnd)
	if err != nil {
		return 0, err
	}
	return vesting.VestedTokens(elapsed, p.VestingDuration, p.ImmediateUnlockFraction, total)
}

// ClaimTokens pays out everything vested and not yet claimed.
func (p *Pod) ClaimTokens(now uint64, c InvestorCap) (asset.Balance[asset.Tokens], error) {
	zero := asset.Zero[asset.Tokens]()
	if p.Status(now) != StatusVesting {
		return zero, ErrNotVesting
	}
	cur, err := p.authorizeInvestor(c)
	if err != nil {
		return zero, err
	}
	vested, err := p.vestedAt(now, cur.Allocation)
	if err != nil {
		return zero, err
	}
	claimable, err := fixed.Sub(vested, cur.ClaimedTokens)
	if err != nil {
		return zero, err
	}
	if claimable == 0 {
		return zero, ErrNothingToClaim
	}
	vault := p.TokenVault
	out, err := vault.Split(claimable)
	if err != nil {
		return zero, err
	}

	p.TokenVault = vault
	cur.ClaimedTokens = vested

	p.emit(now, event.TokensClaimed, event.TokensClaimedData{
		Investor:     c.investor,
		Amount:       claimable,
		TotalClaimed: cur.ClaimedTokens,
	})
	return out, nil
}

// ExitResult is what an exiting investor walks away with.
type ExitResult struct {
	Refund    asset.Balance[asset.Funds]
	Tokens    asset.Balance[asset.Tokens]
	Fee       uint64
	Forfeited uint64
}

// ExitInvestment closes the position for good: the unvested share of the
// investment is refunded minus the exit fee, and vested but unclaimed tokens are
// paid out. Unvested tokens go back to the pod's unallocated supply.
func (p *Pod) ExitInvestment(now uint64, c InvestorCap) (ExitResult, error) {
	if p.Status(now) != StatusVesting {
		return ExitResult{}, ErrNotVesting
	}
	cur, err := p.authorizeInvestor(c)
	if err != nil {
		return ExitResult{}, err
	}
	if cur.ClaimedTokens >= cur.Allocation {
		return ExitResult{}, ErrAlreadyExited
	}

	vested, err := p.vestedAt(now, cur.Allocation)
	if err != nil {
		return ExitResult{}, err
	}
	vestedPortion, err := fixed.MulDiv(vested, fixed.Precision, cur.Allocation)
	if err != nil {
		return ExitResult{}, err
	}
	unvestedPortion, err := fixed.Sub(fixed.Precision, vestedPortion)
	if err != nil {
		return ExitResult{}, err
	}
	unvestedInvestment, err := fixed.Permille(cur.Invested, unvestedPortion)
	if err != nil {
		return ExitResult{}, err
	}

	smallFeeEnd, err := fixed.Add(p.VestingStart, p.Fees.SmallFeeDuration)
	if err != nil {
		return ExitResult{}, err
	}
	rate := p.Fees.PodExitFee
	if now < smallFeeEnd {
		rate = p.Fees.PodExitSmallFee
	}
	fee, err := fixed.Permille(unvestedInvestment, rate)
	if err != nil {
		return ExitResult{}, err
	}
	refund, err := fixed.Sub(unvestedInvestment, fee)
	if err != nil {
		return ExitResult{}, err
	}
	tokens, err := fixed.Sub(vested, cur.ClaimedTokens)
	if err != nil {
		return ExitResult{}, err
	}
	forfeited, err := fixed.Sub(cur.Allocation, vested)
	if err != nil {
		return ExitResult{}, err
	}
	totalAllocated, err := fixed.Sub(p.TotalAllocated, forfeited)
	if err != nil {
		return ExitResult{}, err
	}
	exitRefunds, err := fixed.Add(p.ExitRefunds, refund)
	if err != nil {
		return ExitResult{}, err
	}

	funds, vault := p.FundsVault, p.TokenVault
	refundOut, err := funds.Split(refund)
	if err != nil {
		return ExitResult{}, err
	}
	tokensOut, err := vault.Split(tokens)
	if err != nil {
		return ExitResult{}, err
	}

	p.FundsVault, p.TokenVault = funds, vault
	p.TotalAllocated = totalAllocated
	p.ExitRefunds = exitRefunds
	p.forget(c.investor)

	p.emit(now, event.InvestmentExited, event.InvestmentExitedData{
		Investor:  c.investor,
		Refund:    refund,
		Fee:       fee,
		Tokens:    tokens,
		Forfeited: forfeited,
	})
	return ExitResult{Refund: refundOut, Tokens: tokensOut, Fee: fee, Forfeited: forfeited}, nil
}

// announceFailure emits pod.failed the first time a failed-pod path runs.
func (p *Pod) announceFailure(now uint64) {
	if p.FailureAnnounced {
		return
	}
	p.FailureAnnounced = true
	p.emit(now, event.PodFailed, event.PodFailedData{TotalRaised: p.TotalRaised, MinGoal: p.MinGoal})
}

// FailedPodRefund returns the investor's full principal from a pod that missed its
// minimum goal and removes the entry.
func (p *Pod) FailedPodRefund(now uint64, c InvestorCap) (asset.Balance[asset.Funds], error) {
	zero := asset.Zero[asset.Funds]()
	if p.Status(now) != StatusFailed {
		return zero, ErrNotFailed
	}
	cur, err := p.authorizeInvestor(c)
	if err != nil {
		return zero, err
	}
	vault := p.FundsVault
	out, err := vault.Split(cur.Invested)
	if err != nil {
		return zero, err
	}

	p.FundsVault = vault
	p.forget(c.investor)

	p.announceFailure(now)
	p.emit(now, event.FailedRefund, event.FailedRefundData{Investor: c.investor, Amount: out.Value()})
	return out, nil
}

// FailedPodWithdraw hands the whole token reservoir back to the founder.
func (p *Pod) FailedPodWithdraw(now uint64, c AdminCap) (asset.Balance[asset.Tokens], error) {
	zero := asset.Zero[asset.Tokens]()
	if err := p.authorize(c); err != nil {
		return zero, err
	}
	if p.Status(now) != StatusFailed {
		return zero, ErrNotFailed
	}
	out := p.TokenVault.Drain()

	p.announceFailure(now)
	p.emit(now, event.FailedWithdraw, event.FailedWithdrawData{Tokens: out.Value()})
	return out, nil
}

// FounderClaimable is the total amount of raised funds unlocked for the founder so
// far, including what was already claimed. It is zero outside vesting. The
// schedule runs over the raise minus what exiting investors took back, so the
// founder never reaches into the principal of investors who are still in.
func (p *Pod) FounderClaimable(now uint64) (uint64, error) {
	if p.Status(now) != StatusVesting {
		return 0, nil
	}
	elapsed, err := fixed.Sub(now, p.SubscriptionEnd)
	if err != nil {
		return 0, err
	}
	base, err := fixed.Sub(p.TotalRaised, p.ExitRefunds)
	if err != nil {
		return 0, err
	}
	return vesting.FounderClaimable(elapsed, p.VestingDuration, p.ImmediateUnlockFraction, base)
}

// VestedTokens is the investor's vested total so far, zero outside vesting.
func (p *Pod) VestedTokens(now uint64, investor string) (uint64, error) {
	cur, ok := p.ledger[investor]
	if !ok {
		return 0, ErrNoInvestment
	}
	if p.Status(now) != StatusVesting {
		return 0, nil
	}
	return p.vestedAt(now, cur.Allocation)
}

// FounderClaimFunds pays the founder the funds unlocked since the last claim.
func (p *Pod) FounderClaimFunds(now uint64, c AdminCap) (asset.Balance[asset.Funds], error) {
	zero := asset.Zero[asset.Funds]()
	if err := p.authorize(c); err != nil {
		return zero, err
	}
	if p.Status(now) != StatusVesting {
		return zero, ErrNotVesting
	}
	total, err := p.FounderClaimable(now)
	if err != nil {
		return zero, err
	}
	// An exit can shrink the schedule below what was already claimed.
	if total <= p.FounderClaimedFunds {
		return zero, ErrNothingToClaim
	}
	claimable := total - p.FounderClaimedFunds
	claimed, err := fixed.Add(p.FounderClaimedFunds, claimable)
	if err != nil {
		return zero, err
	}
	vault := p.FundsVault
	out, err := vault.Split(claimable)
	if err != nil {
		return zero, err
	}

	p.FundsVault = vault
	p.FounderClaimedFunds = claimed

	p.emit(now, event.FounderClaimed, event.FounderClaimedData{Amount: claimable, TotalClaimed: claimed})
	return out, nil
}
