// internal/infra/solana/address.go
package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/blocto/solana-go-sdk/common"
)

const (
	MaxSeeds      = 16
	MaxSeedLength = 32

	pdaMarker       = "ProgramDerivedAddress"
	publicKeyLength = 32
)

var (
	ErrMaxSeedsExceeded      = errors.New("address: too many seeds")
	ErrMaxSeedLengthExceeded = errors.New("address: seed is too long")
	ErrAddressOnCurve        = errors.New("address: derived address is on the ed25519 curve")
	ErrBumpNotFound          = errors.New("address: unable to find a viable bump")
)

// IsOnCurve reports whether b decodes as an ed25519 point, i.e. whether a
// private key could exist for it.
func IsOnCurve(b []byte) bool {
	if len(b) != publicKeyLength {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// CreateProgramAddress hashes seeds ‖ program ‖ marker and rejects results that
// land on the curve.
func CreateProgramAddress(seeds [][]byte, programID common.PublicKey) (common.PublicKey, error) {
	if len(seeds) > MaxSeeds {
		return common.PublicKey{}, fmt.Errorf("%w: %d > %d", ErrMaxSeedsExceeded, len(seeds), MaxSeeds)
	}
	h := sha256.New()
	for i, s := range seeds {
		if len(s) > MaxSeedLength {
			return common.PublicKey{}, fmt.Errorf("%w: seed[%d] has %d bytes", ErrMaxSeedLengthExceeded, i, len(s))
		}
		h.Write(s)
	}
	h.Write(programID.Bytes())
	h.Write([]byte(pdaMarker))
	sum := h.Sum(nil)

	if IsOnCurve(sum) {
		return common.PublicKey{}, ErrAddressOnCurve
	}
	return common.PublicKeyFromBytes(sum), nil
}

// FindProgramAddress searches bumps from 255 downwards and returns the first
// off-curve address. It is a pure function of its inputs.
func FindProgramAddress(seeds [][]byte, programID common.PublicKey) (common.PublicKey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrAddressOnCurve) {
			return common.PublicKey{}, 0, err
		}
	}
	return common.PublicKey{}, 0, ErrBumpNotFound
}

// FindAssociatedHoldingAddress derives the canonical holding account of owner for mint.
func FindAssociatedHoldingAddress(owner, mint common.PublicKey) (common.PublicKey, uint8, error) {
	return FindProgramAddress(
		[][]byte{owner.Bytes(), TokenProgramID.Bytes(), mint.Bytes()},
		AssociatedTokenProgramID,
	)
}

// FindMetadataAddress derives the Metaplex metadata account of mint.
func FindMetadataAddress(mint common.PublicKey) (common.PublicKey, uint8, error) {
	return FindProgramAddress(
		[][]byte{[]byte("metadata"), MetadataProgramID.Bytes(), mint.Bytes()},
		MetadataProgramID,
	)
}
