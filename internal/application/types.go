package application

import (
	"log/slog"
	"time"

	"github.com/Spok95/podvest/internal/domain/pod"
	"github.com/Spok95/podvest/internal/domain/settings"
	"github.com/google/uuid"
)

// Recorder receives operation outcomes and asset movements.
type Recorder interface {
	Observe(op string, started time.Time, err error)
	FundsIn(v uint64)
	FundsOut(v uint64)
	TokensIn(v uint64)
	TokensOut(v uint64)
}

type nopRecorder struct{}

func (nopRecorder) Observe(string, time.Time, error) {}
func (nopRecorder) FundsIn(uint64)                   {}
func (nopRecorder) FundsOut(uint64)                  {}
func (nopRecorder) TokensIn(uint64)                  {}
func (nopRecorder) TokensOut(uint64)                 {}

type CreatePodInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ForumURL    string `json:"forum_url"`

	TokenPrice      uint64 `json:"token_price"`
	PriceMultiplier uint64 `json:"price_multiplier"`
	MinGoal         uint64 `json:"min_goal"`
	MaxGoal         uint64 `json:"max_goal"`

	SubscriptionStart       uint64 `json:"subscription_start"`
	SubscriptionDuration    uint64 `json:"subscription_duration"`
	VestingDuration         uint64 `json:"vesting_duration"`
	ImmediateUnlockFraction uint64 `json:"immediate_unlock_fraction"`

	// TokenDeposit must equal max_goal * price_multiplier / token_price.
	TokenDeposit uint64 `json:"token_deposit"`
}

type CreatePodResult struct {
	Pod PodView `json:"pod"`
	// AdminToken is shown once; only its hash is stored.
	AdminToken string `json:"admin_token"`
}

type PodView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ForumURL    string     `json:"forum_url"`
	Status      pod.Status `json:"status"`

	FundsVault          uint64 `json:"funds_vault"`
	TokenVault          uint64 `json:"token_vault"`
	TotalRaised         uint64 `json:"total_raised"`
	TotalAllocated      uint64 `json:"total_allocated"`
	FounderClaimedFunds uint64 `json:"founder_claimed_funds"`
	TokensDeposited     uint64 `json:"tokens_deposited"`
	ExitRefunds         uint64 `json:"exit_refunds"`

	SubscriptionStart uint64 `json:"subscription_start"`
	SubscriptionEnd   uint64 `json:"subscription_end"`
	VestingStart      uint64 `json:"vesting_start"`
	VestingDuration   uint64 `json:"vesting_duration"`

	TokenPrice              uint64   `json:"token_price"`
	PriceMultiplier         uint64   `json:"price_multiplier"`
	MinGoal                 uint64   `json:"min_goal"`
	MaxGoal                 uint64   `json:"max_goal"`
	ImmediateUnlockFraction uint64   `json:"immediate_unlock_fraction"`
	Fees                    pod.Fees `json:"fees"`

	Investors int    `json:"investors"`
	CreatedAt uint64 `json:"created_at"`
}

func viewOf(p *pod.Pod, now uint64) PodView {
	return PodView{
		ID:                      p.ID,
		Name:                    p.Name,
		Description:             p.Description,
		ForumURL:                p.ForumURL,
		Status:                  p.Status(now),
		FundsVault:              p.FundsVault.Value(),
		TokenVault:              p.TokenVault.Value(),
		TotalRaised:             p.TotalRaised,
		TotalAllocated:          p.TotalAllocated,
		FounderClaimedFunds:     p.FounderClaimedFunds,
		TokensDeposited:         p.TokensDeposited,
		ExitRefunds:             p.ExitRefunds,
		SubscriptionStart:       p.SubscriptionStart,
		SubscriptionEnd:         p.SubscriptionEnd,
		VestingStart:            p.VestingStart,
		VestingDuration:         p.VestingDuration,
		TokenPrice:              p.TokenPrice,
		PriceMultiplier:         p.PriceMultiplier,
		MinGoal:                 p.MinGoal,
		MaxGoal:                 p.MaxGoal,
		ImmediateUnlockFraction: p.ImmediateUnlockFraction,
		Fees:                    p.Fees,
		Investors:               len(p.Positions()),
		CreatedAt:               p.CreatedAt,
	}
}

type PositionView struct {
	pod.Position
	VestedTokens uint64 `json:"vested_tokens"`
}

type InvestResult struct {
	Accepted      uint64     `json:"accepted"`
	Excess        uint64     `json:"excess"`
	TotalInvested uint64     `json:"total_invested"`
	Status        pod.Status `json:"status"`
	// InvestorKey is set on the investor's first investment in the pod and is
	// shown only then.
	InvestorKey string `json:"investor_key,omitempty"`
}

type ExitResult struct {
	Refund    uint64 `json:"refund"`
	Tokens    uint64 `json:"tokens"`
	Fee       uint64 `json:"fee"`
	Forfeited uint64 `json:"forfeited_tokens"`
}

type Service struct {
	pods     pod.Store
	settings settings.Store
	metrics  Recorder
	log      *slog.Logger

	nowFn func() uint64
	newID func() string
}

type Dependencies struct {
	Pods     pod.Store
	Settings settings.Store
	Metrics  Recorder
	Log      *slog.Logger
	// Now overrides the wall clock (ms since epoch).
	Now func() uint64
}

func NewService(deps Dependencies) *Service {
	rec := deps.Metrics
	if rec == nil {
		rec = nopRecorder{}
	}
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = func() uint64 { return uint64(time.Now().UnixMilli()) }
	}
	return &Service{
		pods:     deps.Pods,
		settings: deps.Settings,
		metrics:  rec,
		log:      log,
		nowFn:    now,
		newID:    uuid.NewString,
	}
}
