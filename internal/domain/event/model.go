package event

import (
	"encoding/json"
	"time"
)

type Type string

const (
	PodCreated            Type = "pod.created"
	InvestmentMade        Type = "pod.investment_made"
	MaxGoalReached        Type = "pod.max_goal_reached"
	PodFailed             Type = "pod.failed"
	SubscriptionCancelled Type = "pod.subscription_cancelled"
	TokensClaimed         Type = "pod.tokens_claimed"
	InvestmentExited      Type = "pod.investment_exited"
	FailedRefund          Type = "pod.failed_refund"
	FailedWithdraw        Type = "pod.failed_withdraw"
	FounderClaimed        Type = "pod.founder_claimed"
	SettingsUpdated       Type = "settings.updated"
)

// Event is what an aggregate records while an operation runs. Stores turn events
// into envelopes and append them to the outbox in the same commit as the state.
type Event struct {
	Type    Type
	Subject string // pod id, or "platform" for the settings registry
	At      uint64 // ms, the operation's now
	Data    any
}

// Envelope is an outbox row.
type Envelope struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	Subject    string          `json:"subject"`
	OccurredAt uint64          `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
	CreatedAt  time.Time       `json:"created_at"`
	SentAt     *time.Time      `json:"sent_at,omitempty"`
}

// Seal marshals ev into an envelope with the given id.
func Seal(id string, ev Event, createdAt time.Time) (Envelope, error) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:         id,
		Type:       ev.Type,
		Subject:    ev.Subject,
		OccurredAt: ev.At,
		Data:       data,
		CreatedAt:  createdAt,
	}, nil
}

/* payloads */

type PodCreatedData struct {
	PodID             string `json:"pod_id"`
	Name              string `json:"name"`
	TokenPrice        uint64 `json:"token_price"`
	PriceMultiplier   uint64 `json:"price_multiplier"`
	MinGoal           uint64 `json:"min_goal"`
	MaxGoal           uint64 `json:"max_goal"`
	SubscriptionStart uint64 `json:"subscription_start"`
	SubscriptionEnd   uint64 `json:"subscription_end"`
	VestingDuration   uint64 `json:"vesting_duration"`
	TokensDeposited   uint64 `json:"tokens_deposited"`
}

type InvestmentMadeData struct {
	Investor      string `json:"investor"`
	Amount        uint64 `json:"amount"`
	TotalInvested uint64 `json:"total_invested"`
}

type MaxGoalReachedData struct {
	TotalRaised uint64 `json:"total_raised"`
}

type PodFailedData struct {
	TotalRaised uint64 `json:"total_raised"`
	MinGoal     uint64 `json:"min_goal"`
}

type SubscriptionCancelledData struct {
	Investor   string `json:"investor"`
	Refund     uint64 `json:"refund"`
	Invested   uint64 `json:"invested"`
	Allocation uint64 `json:"allocation"`
}

type TokensClaimedData struct {
	Investor     string `json:"investor"`
	Amount       uint64 `json:"amount"`
	TotalClaimed uint64 `json:"total_claimed"`
}

type InvestmentExitedData struct {
	Investor  string `json:"investor"`
	Refund    uint64 `json:"refund"`
	Fee       uint64 `json:"fee"`
	Tokens    uint64 `json:"tokens"`
	Forfeited uint64 `json:"forfeited_tokens"`
}

type FailedRefundData struct {
	Investor string `json:"investor"`
	Amount   uint64 `json:"amount"`
}

type FailedWithdrawData struct {
	Tokens uint64 `json:"tokens"`
}

type FounderClaimedData struct {
	Amount       uint64 `json:"amount"`
	TotalClaimed uint64 `json:"total_claimed"`
}

type SettingsUpdatedData struct {
	MaxImmediateUnlockFraction uint64 `json:"max_immediate_unlock_fraction"`
	MinVestingDuration         uint64 `json:"min_vesting_duration"`
	MinSubscriptionDuration    uint64 `json:"min_subscription_duration"`
	PodExitFee                 uint64 `json:"pod_exit_fee"`
	PodExitSmallFee            uint64 `json:"pod_exit_small_fee"`
	SmallFeeDuration           uint64 `json:"small_fee_duration"`
	SubscriptionCancelFee      uint64 `json:"subscription_cancel_fee"`
}
