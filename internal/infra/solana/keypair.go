// internal/infra/solana/keypair.go
package solana

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"

	issuance "narratives-mint/internal/domain/issuance"
)

var (
	ErrKeyNotConfigured = errors.New("keypair: key source not configured")
	ErrInvalidKeypair   = errors.New("keypair: invalid secret key")
)

// DecodeKeypairJSON restores the 64 key bytes from a solana-keygen keypair file.
// The payload is a JSON array of 64 integers in 0..255.
func DecodeKeypairJSON(data []byte) ([]byte, error) {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return nil, fmt.Errorf("%w: unmarshal keypair json: %v", ErrInvalidKeypair, err)
	}
	if len(ints) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeypair, len(ints), ed25519.PrivateKeySize)
	}
	b := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: byte %d out of range: %d", ErrInvalidKeypair, i, v)
		}
		b[i] = byte(v)
	}
	return b, nil
}

// EncodeKeypairJSON renders acc in the solana-keygen file format.
func EncodeKeypairJSON(acc types.Account) ([]byte, error) {
	if len(acc.PrivateKey) != ed25519.PrivateKeySize {
		return nil, ErrInvalidKeypair
	}
	secret := make([]int, len(acc.PrivateKey))
	for i, b := range acc.PrivateKey {
		secret[i] = int(b)
	}
	return json.Marshal(secret)
}

// EncodeBase58Secret renders the 64-byte secret as base-58 text (wallet import format).
func EncodeBase58Secret(acc types.Account) string {
	return base58.Encode(acc.PrivateKey)
}

// AccountFromBase58 restores a keypair from a base-58 encoded 64-byte secret.
func AccountFromBase58(s string) (types.Account, error) {
	raw, err := base58.Decode(strings.TrimSpace(s))
	if err != nil {
		return types.Account{}, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
	}
	return accountFromSecret(raw)
}

// ParseSecret accepts either a JSON byte array or base-58 text.
func ParseSecret(text string) (types.Account, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return types.Account{}, ErrKeyNotConfigured
	}
	if strings.HasPrefix(s, "[") {
		raw, err := DecodeKeypairJSON([]byte(s))
		if err != nil {
			return types.Account{}, err
		}
		return accountFromSecret(raw)
	}
	return AccountFromBase58(s)
}

// LoadKeypairFile reads a solana-keygen keypair file.
func LoadKeypairFile(path string) (types.Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Account{}, fmt.Errorf("keypair: read %s: %w", path, err)
	}
	return ParseSecret(string(data))
}

// WriteKeypairFile writes acc as a solana-keygen file readable only by the owner.
func WriteKeypairFile(path string, acc types.Account) error {
	data, err := EncodeKeypairJSON(acc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func accountFromSecret(raw []byte) (types.Account, error) {
	if len(raw) != ed25519.PrivateKeySize {
		return types.Account{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeypair, len(raw), ed25519.PrivateKeySize)
	}
	acc, err := types.AccountFromBytes(raw)
	if err != nil {
		return types.Account{}, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
	}
	// the trailing 32 bytes must be the public half of the seed
	derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], raw[ed25519.SeedSize:]) {
		return types.Account{}, fmt.Errorf("%w: public key does not match seed", ErrInvalidKeypair)
	}
	return acc, nil
}

// SecretKeySource serves a fee payer from secret text held in configuration
// (SECRET_KEY in the environment).
type SecretKeySource struct {
	Secret string
}

var _ issuance.KeySource = SecretKeySource{}

func (s SecretKeySource) FeePayer(_ context.Context) (types.Account, error) {
	return ParseSecret(s.Secret)
}

// FileKeySource serves a fee payer from a solana-keygen keypair file.
type FileKeySource struct {
	Path string
}

var _ issuance.KeySource = FileKeySource{}

func (s FileKeySource) FeePayer(_ context.Context) (types.Account, error) {
	if strings.TrimSpace(s.Path) == "" {
		return types.Account{}, ErrKeyNotConfigured
	}
	return LoadKeypairFile(s.Path)
}
