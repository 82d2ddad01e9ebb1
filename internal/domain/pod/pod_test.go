package pod

import (
	"testing"

	"github.com/Spok95/podvest/internal/domain/asset"
	"github.com/Spok95/podvest/internal/domain/event"
	"github.com/Spok95/podvest/internal/domain/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registry() settings.Params {
	return settings.Params{
		MaxImmediateUnlockFraction: 200,
		MinVestingDuration:         1000,
		MinSubscriptionDuration:    100,
		PodExitFee:                 50,
		PodExitSmallFee:            100,
		SmallFeeDuration:           500,
		SubscriptionCancelFee:      1,
	}
}

func createParams() CreateParams {
	return CreateParams{
		ID:                      "pod-1",
		AdminSecret:             "founder-secret",
		Name:                    "Demo",
		TokenPrice:              1,
		PriceMultiplier:         1,
		MinGoal:                 1000,
		MaxGoal:                 2000,
		SubscriptionStart:       100,
		SubscriptionDuration:    1000,
		VestingDuration:         1000,
		ImmediateUnlockFraction: 50,
	}
}

func tokensFor(t *testing.T, in CreateParams) asset.Balance[asset.Tokens] {
	t.Helper()
	required, err := RequiredDeposit(in.MaxGoal, in.PriceMultiplier, in.TokenPrice)
	require.NoError(t, err)
	return asset.Mint[asset.Tokens](required)
}

// newPod creates a pod and drains the creation event.
func newPod(t *testing.T, reg settings.Params, in CreateParams) (*Pod, AdminCap) {
	t.Helper()
	p, c, err := Create(reg, in, tokensFor(t, in), 0)
	require.NoError(t, err)
	p.Events()
	return p, c
}

func funds(v uint64) asset.Balance[asset.Funds] { return asset.Mint[asset.Funds](v) }

func key(investor string) InvestorCap { return NewInvestorCap(investor, investor+"-key") }

func eventTypes(evs []event.Event) []event.Type {
	out := make([]event.Type, len(evs))
	for i, e := range evs {
		out[i] = e.Type
	}
	return out
}

func TestCreate(t *testing.T) {
	in := createParams()
	p, c, err := Create(registry(), in, asset.Mint[asset.Tokens](2000), 7)
	require.NoError(t, err)

	assert.Equal(t, uint64(2000), p.TokenVault.Value())
	assert.Equal(t, uint64(2000), p.TokensDeposited)
	assert.Equal(t, uint64(1100), p.SubscriptionEnd)
	assert.Equal(t, uint64(1100), p.VestingStart)
	assert.Equal(t, Fees{PodExitFee: 50, PodExitSmallFee: 100, SmallFeeDuration: 500, SubscriptionCancelFee: 1}, p.Fees)
	assert.Equal(t, "pod-1", c.PodID())
	assert.NotEqual(t, "founder-secret", p.AdminHash)

	evs := p.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, event.PodCreated, evs[0].Type)
	assert.Equal(t, uint64(7), evs[0].At)
	assert.Equal(t, uint64(2000), evs[0].Data.(event.PodCreatedData).TokensDeposited)
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateParams)
		deposit uint64
		wantErr error
	}{
		{"zero min goal", func(in *CreateParams) { in.MinGoal = 0 }, 2000, ErrInvalidParams},
		{"max below min", func(in *CreateParams) { in.MaxGoal = 999 }, 999, ErrInvalidParams},
		{"short subscription", func(in *CreateParams) { in.SubscriptionDuration = 99 }, 2000, ErrInvalidParams},
		{"short vesting", func(in *CreateParams) { in.VestingDuration = 999 }, 2000, ErrInvalidParams},
		{"unlock above cap", func(in *CreateParams) { in.ImmediateUnlockFraction = 201 }, 2000, ErrInvalidParams},
		{"zero token price", func(in *CreateParams) { in.TokenPrice = 0 }, 2000, ErrInvalidParams},
		{"missing secret", func(in *CreateParams) { in.AdminSecret = "" }, 2000, ErrInvalidParams},
		{"max goal beyond storage", func(in *CreateParams) { in.MaxGoal = 1 << 63 }, 2000, ErrInvalidParams},
		{"deposit beyond storage", func(in *CreateParams) { in.MaxGoal, in.PriceMultiplier = 1<<62, 2 }, 2000, ErrInvalidParams},
		{"end beyond storage", func(in *CreateParams) { in.SubscriptionStart = 1<<63 - 10 }, 2000, ErrInvalidParams},
		{"under deposit", func(*CreateParams) {}, 1999, ErrWrongDeposit},
		{"over deposit", func(*CreateParams) {}, 2001, ErrWrongDeposit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := createParams()
			tt.mutate(&in)
			_, _, err := Create(registry(), in, asset.Mint[asset.Tokens](tt.deposit), 0)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRequiredDepositTruncates(t *testing.T) {
	got, err := RequiredDeposit(1000, 3, 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(428), got)
}

func TestStatusIsDerived(t *testing.T) {
	p, _ := newPod(t, registry(), createParams())

	assert.Equal(t, StatusInactive, p.Status(99))
	assert.Equal(t, StatusSubscription, p.Status(100))
	assert.Equal(t, StatusSubscription, p.Status(1099))
	assert.Equal(t, StatusFailed, p.Status(1100))

	_, err := p.Invest(500, key("alice"), funds(1000))
	require.NoError(t, err)
	assert.Equal(t, StatusVesting, p.Status(1100))
}

func TestInvestFillsGoalAndClosesEarly(t *testing.T) {
	p, _ := newPod(t, registry(), createParams())

	excess, err := p.Invest(200, key("alice"), funds(1500))
	require.NoError(t, err)
	assert.True(t, excess.IsZero())
	assert.Equal(t, uint64(1500), p.TotalRaised)
	assert.Equal(t, StatusSubscription, p.Status(200))

	excess, err = p.Invest(300, key("bob"), funds(800))
	require.NoError(t, err)
	assert.Equal(t, uint64(300), excess.Value())
	assert.Equal(t, uint64(2000), p.TotalRaised)
	assert.Equal(t, uint64(2000), p.FundsVault.Value())
	assert.Equal(t, uint64(300), p.SubscriptionEnd)
	assert.Equal(t, uint64(1100), p.VestingStart)
	assert.Equal(t, StatusVesting, p.Status(300))

	alice, ok := p.Position("alice")
	require.True(t, ok)
	assert.Equal(t, Investment{Invested: 1500, Allocation: 1500}, alice)
	bob, _ := p.Position("bob")
	assert.Equal(t, Investment{Invested: 500, Allocation: 500}, bob)
	assert.Equal(t, uint64(2000), p.TotalAllocated)

	evs := p.Events()
	assert.Equal(t, []event.Type{event.InvestmentMade, event.InvestmentMade, event.MaxGoalReached}, eventTypes(evs))
	assert.Equal(t, event.InvestmentMadeData{Investor: "bob", Amount: 500, TotalInvested: 500}, evs[1].Data)

	_, err = p.Invest(300, key("carol"), funds(10))
	assert.ErrorIs(t, err, ErrNotSubscription)
}

func TestInvestAccumulates(t *testing.T) {
	in := createParams()
	in.TokenPrice = 3
	in.PriceMultiplier = 2
	p, _ := newPod(t, registry(), in)

	_, err := p.Invest(200, key("alice"), funds(100))
	require.NoError(t, err)
	_, err = p.Invest(210, key("alice"), funds(50))
	require.NoError(t, err)

	got, _ := p.Position("alice")
	// 100*2/3 = 66, 50*2/3 = 33
	assert.Equal(t, Investment{Invested: 150, Allocation: 99}, got)
	assert.Equal(t, uint64(99), p.TotalAllocated)
}

func TestInvestRejects(t *testing.T) {
	p, _ := newPod(t, registry(), createParams())

	_, err := p.Invest(99, key("alice"), funds(10))
	assert.ErrorIs(t, err, ErrNotSubscription)
	_, err = p.Invest(200, key("alice"), funds(0))
	assert.ErrorIs(t, err, ErrZeroAmount)
	_, err = p.Invest(1100, key("alice"), funds(10))
	assert.ErrorIs(t, err, ErrNotSubscription)
	assert.Zero(t, p.TotalRaised)
	assert.Empty(t, p.Events())
}

func TestCancelSubscriptionCompounds(t *testing.T) {
	p, _ := newPod(t, registry(), createParams())
	_, err := p.Invest(200, key("alice"), funds(1000))
	require.NoError(t, err)
	p.Events()

	refund, err := p.CancelSubscription(300, key("alice"))
	require.NoError(t, err)
	assert.Equal(t, uint64(999), refund.Value())
	got, _ := p.Position("alice")
	assert.Equal(t, Investment{Invested: 1, Allocation: 1}, got)
	assert.Equal(t, uint64(1), p.TotalRaised)
	assert.Equal(t, uint64(1), p.TotalAllocated)
	assert.Equal(t, uint64(1), p.FundsVault.Value())

	evs := p.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, event.SubscriptionCancelledData{Investor: "alice", Refund: 999, Invested: 1, Allocation: 1}, evs[0].Data)

	refund, err = p.CancelSubscription(310, key("alice"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), refund.Value())
	got, ok := p.Position("alice")
	assert.True(t, ok)
	assert.Equal(t, Investment{}, got)

	_, err = p.CancelSubscription(320, key("alice"))
	assert.ErrorIs(t, err, ErrNothingToCancel)
}

func TestCancelSubscriptionRejects(t *testing.T) {
	p, _ := newPod(t, registry(), createParams())

	_, err := p.CancelSubscription(200, key("alice"))
	assert.ErrorIs(t, err, ErrNoInvestment)

	_, err = p.Invest(200, key("alice"), funds(2000))
	require.NoError(t, err)
	_, err = p.CancelSubscription(200, key("alice"))
	assert.ErrorIs(t, err, ErrNotSubscription)
}

// fullPod returns a pod whose goal was filled at t=200 by two investors of 1000.
func fullPod(t *testing.T, in CreateParams) (*Pod, AdminCap) {
	t.Helper()
	p, c := newPod(t, registry(), in)
	_, err := p.Invest(200, key("alice"), funds(1000))
	require.NoError(t, err)
	_, err = p.Invest(200, key("bob"), funds(1000))
	require.NoError(t, err)
	require.Equal(t, uint64(200), p.SubscriptionEnd)
	p.Events()
	return p, c
}

func TestClaimTokensConvergesToAllocation(t *testing.T) {
	p, _ := fullPod(t, createParams())

	_, err := p.ClaimTokens(200, key("alice"))
	assert.ErrorIs(t, err, ErrNothingToClaim)

	first, err := p.ClaimTokens(700, key("alice"))
	require.NoError(t, err)
	assert.Equal(t, uint64(525), first.Value())

	_, err = p.ClaimTokens(700, key("alice"))
	assert.ErrorIs(t, err, ErrNothingToClaim)

	second, err := p.ClaimTokens(5000, key("alice"))
	require.NoError(t, err)
	assert.Equal(t, uint64(475), second.Value())

	got, _ := p.Position("alice")
	assert.Equal(t, got.Allocation, got.ClaimedTokens)
	assert.Equal(t, got.Allocation, first.Value()+second.Value())
	assert.Equal(t, uint64(1000), p.TokenVault.Value())

	_, err = p.ClaimTokens(6000, key("alice"))
	assert.ErrorIs(t, err, ErrNothingToClaim)
	_, err = p.ClaimTokens(700, key("carol"))
	assert.ErrorIs(t, err, ErrNoInvestment)
}

func TestExitInvestmentSmallFee(t *testing.T) {
	p, _ := fullPod(t, createParams())

	res, err := p.ExitInvestment(700, key("alice"))
	require.NoError(t, err)
	// vested 525, unvested 475 of 1000 invested, small fee 10%
	assert.Equal(t, uint64(47), res.Fee)
	assert.Equal(t, uint64(428), res.Refund.Value())
	assert.Equal(t, uint64(525), res.Tokens.Value())
	assert.Equal(t, uint64(475), res.Forfeited)
	assert.Equal(t, uint64(1525), p.TotalAllocated)
	assert.Equal(t, uint64(2000-428), p.FundsVault.Value())

	_, ok := p.Position("alice")
	assert.False(t, ok)
	_, err = p.ExitInvestment(700, key("alice"))
	assert.ErrorIs(t, err, ErrNoInvestment)

	evs := p.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, event.InvestmentExitedData{Investor: "alice", Refund: 428, Fee: 47, Tokens: 525, Forfeited: 475}, evs[0].Data)
}

func TestExitInvestmentStandardFee(t *testing.T) {
	in := createParams()
	in.VestingDuration = 4000
	p, _ := fullPod(t, in)

	// small fee window ends at vesting start 1100 + 500
	res, err := p.ExitInvestment(1700, key("bob"))
	require.NoError(t, err)
	// elapsed 1500: 50 + 1500*950/4000 = 406 vested
	assert.Equal(t, uint64(406), res.Tokens.Value())
	assert.Equal(t, uint64(29), res.Fee)
	assert.Equal(t, uint64(565), res.Refund.Value())
	assert.Equal(t, uint64(594), res.Forfeited)
}

func TestExitMatchesClaimThenExit(t *testing.T) {
	for _, now := range []uint64{201, 450, 700, 1199} {
		direct, _ := fullPod(t, createParams())
		viaClaim, _ := fullPod(t, createParams())

		exit, err := direct.ExitInvestment(now, key("alice"))
		require.NoError(t, err)

		claimed, err := viaClaim.ClaimTokens(now, key("alice"))
		require.NoError(t, err)
		rest, err := viaClaim.ExitInvestment(now, key("alice"))
		require.NoError(t, err)

		assert.Equal(t, exit.Tokens.Value(), claimed.Value()+rest.Tokens.Value(), "now=%d", now)
		assert.Equal(t, exit.Refund.Value(), rest.Refund.Value(), "now=%d", now)
		assert.Equal(t, direct.TotalAllocated, viaClaim.TotalAllocated, "now=%d", now)
	}
}

func TestExitAfterFullClaim(t *testing.T) {
	p, _ := fullPod(t, createParams())
	_, err := p.ClaimTokens(1200, key("alice"))
	require.NoError(t, err)

	_, err = p.ExitInvestment(1300, key("alice"))
	assert.ErrorIs(t, err, ErrAlreadyExited)
	_, ok := p.Position("alice")
	assert.True(t, ok)
}

func TestFailedPodPaths(t *testing.T) {
	reg := registry()
	reg.SubscriptionCancelFee = 100
	p, c := newPod(t, reg, createParams())

	_, err := p.Invest(200, key("alice"), funds(900))
	require.NoError(t, err)
	_, err = p.CancelSubscription(300, key("alice"))
	require.NoError(t, err)
	_, err = p.Invest(400, key("bob"), funds(50))
	require.NoError(t, err)
	p.Events()

	_, err = p.FailedPodRefund(1000, key("alice"))
	assert.ErrorIs(t, err, ErrNotFailed)

	refund, err := p.FailedPodRefund(1100, key("alice"))
	require.NoError(t, err)
	assert.Equal(t, uint64(90), refund.Value())
	_, ok := p.Position("alice")
	assert.False(t, ok)
	_, err = p.FailedPodRefund(1100, key("alice"))
	assert.ErrorIs(t, err, ErrNoInvestment)

	_, err = p.FailedPodWithdraw(1200, NewAdminCap("pod-2", "founder-secret"))
	assert.ErrorIs(t, err, ErrNotPodAdmin)
	_, err = p.FailedPodWithdraw(1200, NewAdminCap("pod-1", "guess"))
	assert.ErrorIs(t, err, ErrNotPodAdmin)

	tokens, err := p.FailedPodWithdraw(1200, c)
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), tokens.Value())
	assert.True(t, p.TokenVault.IsZero())

	refund, err = p.FailedPodRefund(1300, key("bob"))
	require.NoError(t, err)
	assert.Equal(t, uint64(50), refund.Value())
	assert.True(t, p.FundsVault.IsZero())

	assert.Equal(t, []event.Type{
		event.PodFailed,
		event.FailedRefund,
		event.FailedWithdraw,
		event.FailedRefund,
	}, eventTypes(p.Events()))
}

func TestFounderClaimFunds(t *testing.T) {
	p, c := fullPod(t, createParams())

	_, err := p.FounderClaimFunds(700, NewAdminCap("pod-1", "wrong"))
	assert.ErrorIs(t, err, ErrNotPodAdmin)

	total, err := p.FounderClaimable(700)
	require.NoError(t, err)
	assert.Equal(t, uint64(1050), total)

	got, err := p.FounderClaimFunds(700, c)
	require.NoError(t, err)
	assert.Equal(t, uint64(1050), got.Value())
	_, err = p.FounderClaimFunds(700, c)
	assert.ErrorIs(t, err, ErrNothingToClaim)

	got, err = p.FounderClaimFunds(1200, c)
	require.NoError(t, err)
	assert.Equal(t, uint64(950), got.Value())
	assert.Equal(t, uint64(2000), p.FounderClaimedFunds)
	assert.True(t, p.FundsVault.IsZero())
}

func TestFounderClaimOutsideVesting(t *testing.T) {
	p, c := newPod(t, registry(), createParams())

	total, err := p.FounderClaimable(500)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = p.FounderClaimFunds(500, c)
	assert.ErrorIs(t, err, ErrNotVesting)
	_, err = p.FailedPodWithdraw(500, c)
	assert.ErrorIs(t, err, ErrNotFailed)
}

func TestAdminCapToken(t *testing.T) {
	c := NewAdminCap("pod-1", "secret")
	parsed, err := ParseAdminCap(c.Token())
	require.NoError(t, err)
	assert.Equal(t, c, parsed)

	for _, bad := range []string{"", "pod-1", ".secret", "pod-1."} {
		_, err := ParseAdminCap(bad)
		assert.ErrorIs(t, err, ErrMalformedCap, bad)
	}
}

func TestFounderScheduleExcludesExitRefunds(t *testing.T) {
	p, c := fullPod(t, createParams())
	_, err := p.ExitInvestment(700, key("alice"))
	require.NoError(t, err)

	// 1572 left after alice's 428 refund: 78 + 700*1494/1000
	got, err := p.FounderClaimFunds(900, c)
	require.NoError(t, err)
	assert.Equal(t, uint64(1123), got.Value())

	res, err := p.ExitInvestment(900, key("bob"))
	require.NoError(t, err)
	assert.Equal(t, uint64(257), res.Refund.Value())
	assert.Equal(t, uint64(715), res.Tokens.Value())
	assert.Equal(t, uint64(428+257), p.ExitRefunds)
	assert.Equal(t, p.TotalRaised-p.ExitRefunds-p.FounderClaimedFunds, p.FundsVault.Value())

	got, err = p.FounderClaimFunds(1200, c)
	require.NoError(t, err)
	assert.Equal(t, uint64(192), got.Value())
	assert.True(t, p.FundsVault.IsZero())
	_, err = p.FounderClaimFunds(1300, c)
	assert.ErrorIs(t, err, ErrNothingToClaim)
}

func TestLateFounderClaimLeavesExitFunded(t *testing.T) {
	p, c := fullPod(t, createParams())
	_, err := p.ExitInvestment(700, key("alice"))
	require.NoError(t, err)

	got, err := p.FounderClaimFunds(1199, c)
	require.NoError(t, err)
	assert.Equal(t, uint64(1570), got.Value())
	assert.Equal(t, uint64(2), p.FundsVault.Value())

	res, err := p.ExitInvestment(1199, key("bob"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Refund.Value())
	assert.Equal(t, uint64(999), res.Tokens.Value())

	got, err = p.FounderClaimFunds(1300, c)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Value())
	assert.True(t, p.FundsVault.IsZero())
}

func TestInvestorKeyGuardsPosition(t *testing.T) {
	p, _ := newPod(t, registry(), createParams())
	_, err := p.Invest(200, key("alice"), funds(1000))
	require.NoError(t, err)
	p.Events()

	stranger := NewInvestorCap("alice", "stolen")
	_, err = p.Invest(210, stranger, funds(10))
	assert.ErrorIs(t, err, ErrNotInvestor)
	_, err = p.CancelSubscription(210, stranger)
	assert.ErrorIs(t, err, ErrNotInvestor)
	_, err = p.Invest(210, NewInvestorCap("carol", ""), funds(10))
	assert.ErrorIs(t, err, ErrInvalidParams)

	got, _ := p.Position("alice")
	assert.Equal(t, Investment{Invested: 1000, Allocation: 1000}, got)
	assert.Equal(t, uint64(1000), p.FundsVault.Value())
	assert.Empty(t, p.Events())

	_, err = p.Invest(220, key("alice"), funds(1000))
	require.NoError(t, err)
	_, err = p.ClaimTokens(700, stranger)
	assert.ErrorIs(t, err, ErrNotInvestor)
	_, err = p.ExitInvestment(700, stranger)
	assert.ErrorIs(t, err, ErrNotInvestor)
	_, err = p.ExitInvestment(700, NewInvestorCap("alice", ""))
	assert.ErrorIs(t, err, ErrNotInvestor)

	_, err = p.ExitInvestment(700, key("alice"))
	require.NoError(t, err)
	_, ok := p.keys["alice"]
	assert.False(t, ok)
}
