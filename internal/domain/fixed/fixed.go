// Package fixed holds the checked integer arithmetic every pod computation goes through.
// Fractions are expressed in permille: Precision is 1.0.
package fixed

import (
	"errors"
	"math"
	"math/bits"
)

const Precision uint64 = 1000

// MaxStored is the largest amount or timestamp the Postgres BIGINT columns hold.
const MaxStored uint64 = math.MaxInt64

var (
	ErrOverflow     = errors.New("fixed: overflow")
	ErrUnderflow    = errors.New("fixed: underflow")
	ErrDivideByZero = errors.New("fixed: divide by zero")
)

func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// Div truncates toward zero.
func Div(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, ErrDivideByZero
	}
	return a / b, nil
}

// MulDiv returns a*b/c. The product must fit in 64 bits on its own; callers rely on
// that to reproduce the same aborts and rounding as the on-chain formulas.
func MulDiv(a, b, c uint64) (uint64, error) {
	p, err := Mul(a, b)
	if err != nil {
		return 0, err
	}
	return Div(p, c)
}

// Permille applies a permille fraction to v: v*fraction/Precision.
func Permille(v, fraction uint64) (uint64, error) {
	return MulDiv(v, fraction, Precision)
}
