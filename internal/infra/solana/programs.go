// internal/infra/solana/programs.go
package solana

import "github.com/blocto/solana-go-sdk/common"

// Solana Devnet RPC endpoint (default)
const DevnetEndpoint = "https://api.devnet.solana.com"

// well-known program/sysvar ids
var (
	SystemProgramID          = common.PublicKeyFromString("11111111111111111111111111111111")
	TokenProgramID           = common.PublicKeyFromString("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedTokenProgramID = common.PublicKeyFromString("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	MetadataProgramID        = common.PublicKeyFromString("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")
	ComputeBudgetProgramID   = common.ComputeBudgetProgramID
	MemoProgramID            = common.MemoProgramID
)

// Account layout sizes owned by the token program.
const (
	MintAccountSize  uint64 = 82
	TokenAccountSize uint64 = 165
	LamportsPerSOL   uint64 = 1_000_000_000
)
