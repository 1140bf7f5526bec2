package issuance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSmallestUnit(t *testing.T) {
	tests := []struct {
		name     string
		whole    uint64
		decimals uint8
		want     uint64
	}{
		{name: "two decimals", whole: 10, decimals: 2, want: 1000},
		{name: "nine decimals", whole: 1, decimals: 9, want: 1_000_000_000},
		{name: "zero decimals", whole: 42, decimals: 0, want: 42},
		{name: "eighteen decimals", whole: 1, decimals: 18, want: 1_000_000_000_000_000_000},
		{name: "eighteen decimals times eighteen", whole: 18, decimals: 18, want: 18_000_000_000_000_000_000},
		{name: "nineteen decimals", whole: 1, decimals: 19, want: 10_000_000_000_000_000_000},
		{name: "zero supply", whole: 0, decimals: 9, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToSmallestUnit(tt.whole, tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToSmallestUnit_Overflow(t *testing.T) {
	_, err := ToSmallestUnit(19, 18)
	require.ErrorIs(t, err, ErrSupplyOverflow)

	_, err = ToSmallestUnit(^uint64(0), 1)
	require.ErrorIs(t, err, ErrSupplyOverflow)
}

func TestPow10_OutOfRange(t *testing.T) {
	_, err := Pow10(20)
	require.ErrorIs(t, err, ErrInvalidDecimals)

	p, err := Pow10(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p)
}
