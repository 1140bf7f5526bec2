package issuance

import (
	"errors"
	"fmt"
	"math/bits"
)

// MaxDecimals is the largest exponent for which 10^decimals fits in a uint64.
const MaxDecimals = 19

var (
	ErrInvalidDecimals = errors.New("issuance: decimals out of range")
	ErrSupplyOverflow  = errors.New("issuance: supply overflows uint64 smallest units")
)

// Pow10 returns 10^exp using integer multiplication only.
func Pow10(exp uint8) (uint64, error) {
	if exp > MaxDecimals {
		return 0, fmt.Errorf("%w: %d (max %d)", ErrInvalidDecimals, exp, MaxDecimals)
	}
	p := uint64(1)
	for i := uint8(0); i < exp; i++ {
		p *= 10
	}
	return p, nil
}

// ToSmallestUnit scales whole units to the smallest unit: whole * 10^decimals.
func ToSmallestUnit(whole uint64, decimals uint8) (uint64, error) {
	p, err := Pow10(decimals)
	if err != nil {
		return 0, err
	}
	hi, lo := bits.Mul64(whole, p)
	if hi != 0 {
		return 0, fmt.Errorf("%w: %d * 10^%d", ErrSupplyOverflow, whole, decimals)
	}
	return lo, nil
}
