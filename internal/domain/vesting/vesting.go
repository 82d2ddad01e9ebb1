// Package vesting computes how much of an allocation has unlocked after some time.
// Investors and founders use the same schedule: an immediate permille fraction
// followed by a linear release of the rest over the vesting duration.
package vesting

import "github.com/Spok95/podvest/internal/domain/fixed"

// VestedTokens returns the part of total unlocked after elapsed milliseconds.
// Nothing is unlocked at elapsed == 0, not even the immediate fraction.
func VestedTokens(elapsed, duration, unlockFraction, total uint64) (uint64, error) {
	if elapsed == 0 {
		return 0, nil
	}
	immediate, err := fixed.Permille(total, unlockFraction)
	if err != nil {
		return 0, err
	}
	rest, err := fixed.Sub(total, immediate)
	if err != nil {
		return 0, err
	}
	vested := rest
	if elapsed < duration {
		vested, err = fixed.MulDiv(elapsed, rest, duration)
		if err != nil {
			return 0, err
		}
	}
	return fixed.Add(immediate, vested)
}

// FounderClaimable is VestedTokens applied to the total raised funds.
func FounderClaimable(elapsed, duration, unlockFraction, totalRaised uint64) (uint64, error) {
	return VestedTokens(elapsed, duration, unlockFraction, totalRaised)
}
