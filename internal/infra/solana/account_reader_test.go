package solana

import (
	"context"
	"testing"
	"time"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerReader_ListHoldings(t *testing.T) {
	srv := rpcStub(t, map[string]string{
		"getTokenAccountsByOwner": `"result":{"context":{"slot":7},"value":[
			{"pubkey":"HoldA","account":{"data":{"program":"spl-token","parsed":{"info":{"mint":"MintA","owner":"W","tokenAmount":{"amount":"1000","decimals":2}},"type":"account"},"space":165},"owner":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"}},
			{"pubkey":"HoldB","account":{"data":{"program":"spl-token","parsed":{"info":{"mint":"MintB","owner":"W","tokenAmount":{"amount":"0","decimals":0}},"type":"account"},"space":165},"owner":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"}},
			{"pubkey":"HoldA2","account":{"data":{"program":"spl-token","parsed":{"info":{"mint":"MintA","owner":"W","tokenAmount":{"amount":"5","decimals":2}},"type":"account"},"space":165},"owner":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"}},
			{"pubkey":"HoldC","account":{"data":{"program":"spl-token","parsed":{"info":{"mint":"MintC","owner":"W","tokenAmount":{"amount":"1","decimals":0}},"type":"account"},"space":165},"owner":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"}}
		]}`,
	})
	r := NewLedgerReader(NewJSONRPCClient(srv.URL, time.Second), "")

	hs, err := r.ListHoldings(context.Background(), "W")
	require.NoError(t, err)
	assert.Equal(t, []Holding{
		{Mint: "MintA", HoldingAccount: "HoldA", Amount: 1005, Decimals: 2},
		{Mint: "MintC", HoldingAccount: "HoldC", Amount: 1, Decimals: 0},
	}, hs)

	mints, err := r.ListOwnedTokenMints(context.Background(), "W")
	require.NoError(t, err)
	assert.Equal(t, []string{"MintA", "MintC"}, mints)

	_, err = r.ListHoldings(context.Background(), " ")
	require.Error(t, err)
}

func TestLedgerReader_TokenBalanceOfMissingAccountIsZero(t *testing.T) {
	srv := rpcStub(t, map[string]string{
		"getTokenAccountBalance": `"error":{"code":-32602,"message":"Invalid param: could not find account"}`,
		"getAccountInfo":         `"result":{"context":{"slot":1},"value":null}`,
	})
	r := NewLedgerReader(NewJSONRPCClient(srv.URL, time.Second), CommitmentFinalized)
	addr := types.NewAccount().PublicKey

	bal, err := r.TokenBalance(context.Background(), addr)
	require.NoError(t, err)
	assert.Zero(t, bal)

	ok, err := r.AccountExists(context.Background(), addr)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedgerReader_Unconfigured(t *testing.T) {
	var r *LedgerReader
	_, err := r.AccountExists(context.Background(), types.NewAccount().PublicKey)
	require.Error(t, err)
	_, err = r.ListOwnedTokenMints(context.Background(), "W")
	require.Error(t, err)
}
