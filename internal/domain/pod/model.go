package pod

import (
	"errors"
	"sort"
	"strings"

	"github.com/Spok95/podvest/internal/domain/asset"
	"github.com/Spok95/podvest/internal/domain/capability"
	"github.com/Spok95/podvest/internal/domain/event"
)

var (
	ErrInvalidParams   = errors.New("pod: invalid creation parameters")
	ErrWrongDeposit    = errors.New("pod: token deposit does not match required amount")
	ErrNotSubscription = errors.New("pod: not in subscription")
	ErrNotVesting      = errors.New("pod: not vesting")
	ErrNotFailed       = errors.New("pod: not failed")
	ErrNotPodAdmin     = errors.New("pod: admin capability does not match this pod")
	ErrNotInvestor     = errors.New("pod: investor key does not match this position")
	ErrNoInvestment    = errors.New("pod: no investment for caller")
	ErrAlreadyExited   = errors.New("pod: position already exited")
	ErrGoalReached     = errors.New("pod: max goal already reached")
	ErrNothingToClaim  = errors.New("pod: nothing to claim")
	ErrNothingToCancel = errors.New("pod: nothing left to cancel")
	ErrZeroAmount      = errors.New("pod: amount must be > 0")
	ErrNotFound        = errors.New("pod: not found")
	ErrMalformedCap    = errors.New("pod: malformed admin token")
)

type Status string

const (
	StatusInactive     Status = "inactive"
	StatusSubscription Status = "subscription"
	StatusFailed       Status = "failed"
	StatusVesting      Status = "vesting"
)

// Fees are copied from the platform registry when the pod is created and never
// change afterwards.
type Fees struct {
	PodExitFee            uint64 `json:"pod_exit_fee"`
	PodExitSmallFee       uint64 `json:"pod_exit_small_fee"`
	SmallFeeDuration      uint64 `json:"small_fee_duration"`
	SubscriptionCancelFee uint64 `json:"subscription_cancel_fee"`
}

// Investment is one investor's position in a pod.
type Investment struct {
	Invested      uint64 `json:"invested"`
	Allocation    uint64 `json:"allocation"`
	ClaimedTokens uint64 `json:"claimed_tokens"`
}

// Position is an Investment together with its owner.
type Position struct {
	Investor string `json:"investor"`
	Investment
}

type Pod struct {
	ID          string
	Name        string
	Description string
	ForumURL    string

	FundsVault asset.Balance[asset.Funds]
	TokenVault asset.Balance[asset.Tokens]

	TotalRaised         uint64
	TotalAllocated      uint64
	FounderClaimedFunds uint64
	TokensDeposited     uint64
	// ExitRefunds is the principal paid back to investors who exited during
	// vesting. It no longer belongs to the founder's schedule.
	ExitRefunds uint64

	SubscriptionStart uint64
	SubscriptionEnd   uint64
	// VestingStart is fixed at creation to the planned end of the subscription.
	// Early closure moves SubscriptionEnd only; claims measure vesting from
	// SubscriptionEnd and VestingStart is read by the exit fee tier alone.
	VestingStart    uint64
	VestingDuration uint64

	TokenPrice      uint64
	PriceMultiplier uint64
	MinGoal         uint64
	MaxGoal         uint64

	ImmediateUnlockFraction uint64
	Fees                    Fees

	FailureAnnounced bool
	AdminHash        string
	CreatedAt        uint64

	ledger map[string]*Investment
	keys   map[string]string // investor -> key hash
	events []event.Event
}

// Status is derived from the clock and the raised amount on every call.
func (p *Pod) Status(now uint64) Status {
	switch {
	case now < p.SubscriptionStart:
		return StatusInactive
	case now < p.SubscriptionEnd:
		return StatusSubscription
	case p.TotalRaised < p.MinGoal:
		return StatusFailed
	default:
		return StatusVesting
	}
}

// Position returns a copy of the investor's ledger entry.
func (p *Pod) Position(investor string) (Investment, bool) {
	inv, ok := p.ledger[investor]
	if !ok {
		return Investment{}, false
	}
	return *inv, true
}

// Positions lists the ledger ordered by investor.
func (p *Pod) Positions() []Position {
	out := make([]Position, 0, len(p.ledger))
	for k, v := range p.ledger {
		out = append(out, Position{Investor: k, Investment: *v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Investor < out[j].Investor })
	return out
}

// Events hands over and clears what the pod recorded.
func (p *Pod) Events() []event.Event {
	ev := p.events
	p.events = nil
	return ev
}

func (p *Pod) emit(now uint64, t event.Type, data any) {
	p.events = append(p.events, event.Event{Type: t, Subject: p.ID, At: now, Data: data})
}

func (p *Pod) clone() *Pod {
	c := *p
	c.ledger = make(map[string]*Investment, len(p.ledger))
	for k, v := range p.ledger {
		inv := *v
		c.ledger[k] = &inv
	}
	c.keys = make(map[string]string, len(p.keys))
	for k, v := range p.keys {
		c.keys[k] = v
	}
	c.events = append([]event.Event(nil), p.events...)
	return &c
}

// AdminCap is the founder's credential for one pod.
type AdminCap struct {
	podID  string
	secret string
}

func NewAdminCap(podID, secret string) AdminCap { return AdminCap{podID: podID, secret: secret} }

func (c AdminCap) PodID() string { return c.podID }

// Token is the wire form of the capability: "<pod id>.<secret>".
func (c AdminCap) Token() string { return c.podID + "." + c.secret }

func ParseAdminCap(token string) (AdminCap, error) {
	podID, secret, ok := strings.Cut(token, ".")
	if !ok || podID == "" || secret == "" {
		return AdminCap{}, ErrMalformedCap
	}
	return AdminCap{podID: podID, secret: secret}, nil
}

func (p *Pod) authorize(c AdminCap) error {
	if c.podID != p.ID || !capability.Matches(p.AdminHash, c.secret) {
		return ErrNotPodAdmin
	}
	return nil
}

// InvestorCap is an investor's credential for their own position. The key is
// issued on the first investment; the pod keeps only its hash.
type InvestorCap struct {
	investor string
	key      string
}

func NewInvestorCap(investor, key string) InvestorCap {
	return InvestorCap{investor: investor, key: key}
}

func (c InvestorCap) Investor() string { return c.investor }

func (p *Pod) authorizeInvestor(c InvestorCap) (*Investment, error) {
	cur, ok := p.ledger[c.investor]
	if !ok {
		return nil, ErrNoInvestment
	}
	if !capability.Matches(p.keys[c.investor], c.key) {
		return nil, ErrNotInvestor
	}
	return cur, nil
}

func (p *Pod) forget(investor string) {
	delete(p.ledger, investor)
	delete(p.keys, investor)
}
