package solana

import (
	"bytes"
	"testing"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/metaplex/token_metadata"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindProgramAddress_Deterministic(t *testing.T) {
	seeds := [][]byte{[]byte("favorites"), types.NewAccount().PublicKey.Bytes()}
	program := types.NewAccount().PublicKey

	a1, b1, err := FindProgramAddress(seeds, program)
	require.NoError(t, err)
	a2, b2, err := FindProgramAddress(seeds, program)
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.Equal(t, b1, b2)
}

func TestFindProgramAddress_NeverOnCurve(t *testing.T) {
	program := types.NewAccount().PublicKey
	for i := 0; i < 64; i++ {
		seed := types.NewAccount().PublicKey.Bytes()
		addr, bump, err := FindProgramAddress([][]byte{seed}, program)
		require.NoError(t, err)
		assert.False(t, IsOnCurve(addr.Bytes()))

		// every bump above the returned one must have landed on the curve
		for b := 255; b > int(bump); b-- {
			_, err := CreateProgramAddress([][]byte{seed, {byte(b)}}, program)
			require.ErrorIs(t, err, ErrAddressOnCurve)
		}
	}
}

func TestFindProgramAddress_MatchesSDK(t *testing.T) {
	program := types.NewAccount().PublicKey
	seeds := [][]byte{[]byte("metadata"), types.NewAccount().PublicKey.Bytes()}

	got, gotBump, err := FindProgramAddress(seeds, program)
	require.NoError(t, err)
	want, wantBump, err := common.FindProgramAddress(seeds, program)
	require.NoError(t, err)

	assert.Equal(t, want, got)
	assert.Equal(t, wantBump, gotBump)
}

func TestFindAssociatedHoldingAddress_MatchesSDK(t *testing.T) {
	owner := types.NewAccount().PublicKey
	mint := types.NewAccount().PublicKey

	got, _, err := FindAssociatedHoldingAddress(owner, mint)
	require.NoError(t, err)
	want, _, err := common.FindAssociatedTokenAddress(owner, mint)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// the pair is ordered
	swapped, _, err := FindAssociatedHoldingAddress(mint, owner)
	require.NoError(t, err)
	assert.NotEqual(t, got, swapped)
}

func TestFindMetadataAddress_MatchesSDK(t *testing.T) {
	mint := types.NewAccount().PublicKey

	got, _, err := FindMetadataAddress(mint)
	require.NoError(t, err)
	want, err := token_metadata.GetTokenMetaPubkey(mint)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCreateProgramAddress_SeedLimits(t *testing.T) {
	program := types.NewAccount().PublicKey

	_, err := CreateProgramAddress([][]byte{bytes.Repeat([]byte{1}, MaxSeedLength+1)}, program)
	require.ErrorIs(t, err, ErrMaxSeedLengthExceeded)

	tooMany := make([][]byte, MaxSeeds+1)
	for i := range tooMany {
		tooMany[i] = []byte{byte(i)}
	}
	_, err = CreateProgramAddress(tooMany, program)
	require.ErrorIs(t, err, ErrMaxSeedsExceeded)

	// FindProgramAddress appends the bump, so MaxSeeds user seeds is one too many
	_, _, err = FindProgramAddress(tooMany[:MaxSeeds], program)
	require.ErrorIs(t, err, ErrMaxSeedsExceeded)
}

func TestIsOnCurve(t *testing.T) {
	// a real keypair's public key is a curve point
	assert.True(t, IsOnCurve(types.NewAccount().PublicKey.Bytes()))
	assert.False(t, IsOnCurve([]byte{1, 2, 3}))

	ata, _, err := FindAssociatedHoldingAddress(types.NewAccount().PublicKey, types.NewAccount().PublicKey)
	require.NoError(t, err)
	assert.False(t, IsOnCurve(ata.Bytes()))
	assert.NotEqual(t, common.PublicKey{}, ata)
}
