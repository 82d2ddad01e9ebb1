package settings

import (
	"errors"

	"github.com/Spok95/podvest/internal/domain/capability"
	"github.com/Spok95/podvest/internal/domain/event"
	"github.com/Spok95/podvest/internal/domain/fixed"
)

var (
	ErrNotPlatformAdmin = errors.New("settings: platform admin capability required")
	ErrInvalidSettings  = errors.New("settings: invalid value")
	ErrNotFound         = errors.New("settings: registry not initialised")
)

// Subject is the event subject used for registry events.
const Subject = "platform"

// Params are the platform-wide knobs. Fractions are permille, durations milliseconds.
type Params struct {
	MaxImmediateUnlockFraction uint64 `mapstructure:"max_immediate_unlock_fraction" json:"max_immediate_unlock_fraction"`
	MinVestingDuration         uint64 `mapstructure:"min_vesting_duration" json:"min_vesting_duration"`
	MinSubscriptionDuration    uint64 `mapstructure:"min_subscription_duration" json:"min_subscription_duration"`
	PodExitFee                 uint64 `mapstructure:"pod_exit_fee" json:"pod_exit_fee"`
	PodExitSmallFee            uint64 `mapstructure:"pod_exit_small_fee" json:"pod_exit_small_fee"`
	SmallFeeDuration           uint64 `mapstructure:"small_fee_duration" json:"small_fee_duration"`
	SubscriptionCancelFee      uint64 `mapstructure:"subscription_cancel_fee" json:"subscription_cancel_fee"`
}

func (p Params) validate() error {
	for _, v := range []uint64{p.MaxImmediateUnlockFraction, p.PodExitFee, p.PodExitSmallFee, p.SubscriptionCancelFee} {
		if v > fixed.Precision {
			return ErrInvalidSettings
		}
	}
	for _, v := range []uint64{p.MinVestingDuration, p.MinSubscriptionDuration, p.SmallFeeDuration} {
		if v > fixed.MaxStored {
			return ErrInvalidSettings
		}
	}
	return nil
}

// PlatformAdminCap authorises registry updates.
type PlatformAdminCap struct {
	secret string
}

func NewPlatformAdminCap(secret string) PlatformAdminCap { return PlatformAdminCap{secret: secret} }

type Registry struct {
	Params
	AdminHash string

	events []event.Event
}

// New builds a registry governed by the holder of adminSecret.
func New(p Params, adminSecret string) (*Registry, error) {
	if adminSecret == "" {
		return nil, ErrInvalidSettings
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Registry{Params: p, AdminHash: capability.Hash(adminSecret)}, nil
}

// Update carries the fields to change; nil leaves a field as is.
type Update struct {
	MaxImmediateUnlockFraction *uint64 `json:"max_immediate_unlock_fraction,omitempty"`
	MinVestingDuration         *uint64 `json:"min_vesting_duration,omitempty"`
	MinSubscriptionDuration    *uint64 `json:"min_subscription_duration,omitempty"`
	PodExitFee                 *uint64 `json:"pod_exit_fee,omitempty"`
	PodExitSmallFee            *uint64 `json:"pod_exit_small_fee,omitempty"`
	SmallFeeDuration           *uint64 `json:"small_fee_duration,omitempty"`
	SubscriptionCancelFee      *uint64 `json:"subscription_cancel_fee,omitempty"`
}

func (r *Registry) Update(c PlatformAdminCap, u Update, now uint64) error {
	if !capability.Matches(r.AdminHash, c.secret) {
		return ErrNotPlatformAdmin
	}
	next := r.Params
	set := func(dst *uint64, v *uint64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&next.MaxImmediateUnlockFraction, u.MaxImmediateUnlockFraction)
	set(&next.MinVestingDuration, u.MinVestingDuration)
	set(&next.MinSubscriptionDuration, u.MinSubscriptionDuration)
	set(&next.PodExitFee, u.PodExitFee)
	set(&next.PodExitSmallFee, u.PodExitSmallFee)
	set(&next.SmallFeeDuration, u.SmallFeeDuration)
	set(&next.SubscriptionCancelFee, u.SubscriptionCancelFee)
	if err := next.validate(); err != nil {
		return err
	}

	r.Params = next
	r.events = append(r.events, event.Event{
		Type:    event.SettingsUpdated,
		Subject: Subject,
		At:      now,
		Data:    event.SettingsUpdatedData(next),
	})
	return nil
}

// Events hands over and clears what the registry recorded.
func (r *Registry) Events() []event.Event {
	ev := r.events
	r.events = nil
	return ev
}

func (r *Registry) clone() *Registry {
	c := *r
	c.events = append([]event.Event(nil), r.events...)
	return &c
}
