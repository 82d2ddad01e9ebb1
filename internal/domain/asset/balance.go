// Package asset models the fungible reservoirs a pod holds. A Balance can only be
// created empty or minted by the host ledger; after that value moves between
// balances through Split, Join and Drain, never by assignment.
package asset

import (
	"errors"

	"github.com/Spok95/podvest/internal/domain/fixed"
)

var ErrInsufficientBalance = errors.New("asset: insufficient balance")

// Funds is the funding currency investors pay with.
type Funds struct{}

// Tokens is the project token a pod distributes.
type Tokens struct{}

type Balance[A any] struct {
	value uint64
}

func Zero[A any]() Balance[A] { return Balance[A]{} }

// Mint wraps value that entered the system from outside (a deposit, or a stored
// reservoir being loaded back by a store).
func Mint[A any](value uint64) Balance[A] { return Balance[A]{value: value} }

func (b Balance[A]) Value() uint64 { return b.value }

func (b Balance[A]) IsZero() bool { return b.value == 0 }

// Split takes exactly amount out of b.
func (b *Balance[A]) Split(amount uint64) (Balance[A], error) {
	if amount > b.value {
		return Balance[A]{}, ErrInsufficientBalance
	}
	b.value -= amount
	return Balance[A]{value: amount}, nil
}

// Join moves all of other into b.
func (b *Balance[A]) Join(other Balance[A]) error {
	sum, err := fixed.Add(b.value, other.value)
	if err != nil {
		return err
	}
	b.value = sum
	return nil
}

// Drain empties b and returns what it held.
func (b *Balance[A]) Drain() Balance[A] {
	out := Balance[A]{value: b.value}
	b.value = 0
	return out
}
