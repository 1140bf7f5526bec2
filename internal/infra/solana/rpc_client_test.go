package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcStub answers each JSON-RPC method with a canned result or error object.
func rpcStub(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int64           `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		body, ok := results[req.Method]
		if !ok {
			http.Error(w, "unknown method", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + jsonInt(req.ID) + `,` + body + `}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestJSONRPCClient_LatestBlockhashAndHeight(t *testing.T) {
	srv := rpcStub(t, map[string]string{
		"getLatestBlockhash": `"result":{"context":{"slot":1},"value":{"blockhash":"EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N","lastValidBlockHeight":300}}`,
		"getBlockHeight":     `"result":150`,
	})
	c := NewJSONRPCClient(srv.URL, time.Second)

	lb, err := c.GetLatestBlockhash(context.Background(), CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, LatestBlockhash{Blockhash: testAnchor.Blockhash, LastValidBlockHeight: 300}, lb)

	h, err := c.GetBlockHeight(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, uint64(150), h)
}

func TestJSONRPCClient_SignatureStatuses(t *testing.T) {
	srv := rpcStub(t, map[string]string{
		"getSignatureStatuses": `"result":{"context":{"slot":5},"value":[null,{"slot":4,"confirmations":null,"err":{"InstructionError":[0,"InvalidArgument"]},"confirmationStatus":"finalized"}]}`,
	})
	c := NewJSONRPCClient(srv.URL, time.Second)

	sts, err := c.GetSignatureStatuses(context.Background(), "a", "b")
	require.NoError(t, err)
	require.Len(t, sts, 2)
	assert.Nil(t, sts[0])
	assert.True(t, sts[1].Failed())
	assert.True(t, sts[1].Reached(CommitmentConfirmed))

	_, err = c.GetSignatureStatuses(context.Background(), "a")
	require.Error(t, err, "length mismatch must be reported")
}

func TestSignatureStatus_Reached(t *testing.T) {
	st := &SignatureStatus{ConfirmationStatus: CommitmentConfirmed, Err: json.RawMessage("null")}
	assert.False(t, st.Failed())
	assert.True(t, st.Reached(CommitmentProcessed))
	assert.True(t, st.Reached(CommitmentConfirmed))
	assert.False(t, st.Reached(CommitmentFinalized))

	var none *SignatureStatus
	assert.False(t, none.Reached(CommitmentProcessed))
	assert.False(t, none.Failed())
}

func TestJSONRPCClient_AccountExists(t *testing.T) {
	srv := rpcStub(t, map[string]string{
		"getAccountInfo": `"result":{"context":{"slot":1},"value":null}`,
	})
	c := NewJSONRPCClient(srv.URL, time.Second)
	ok, err := c.GetAccountExists(context.Background(), testAnchor.Blockhash, "")
	require.NoError(t, err)
	assert.False(t, ok)

	srv2 := rpcStub(t, map[string]string{
		"getAccountInfo": `"result":{"context":{"slot":1},"value":{"lamports":2039280,"owner":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA","data":["","base64"],"executable":false,"rentEpoch":0}}`,
	})
	c2 := NewJSONRPCClient(srv2.URL, time.Second)
	ok, err = c2.GetAccountExists(context.Background(), testAnchor.Blockhash, "")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = c2.GetAccountExists(context.Background(), "  ", "")
	require.Error(t, err)
}

func TestJSONRPCClient_TokenAccountBalance(t *testing.T) {
	srv := rpcStub(t, map[string]string{
		"getTokenAccountBalance": `"result":{"context":{"slot":1},"value":{"amount":"1000","decimals":2,"uiAmountString":"10"}}`,
	})
	c := NewJSONRPCClient(srv.URL, time.Second)
	amt, err := c.GetTokenAccountBalance(context.Background(), "x", "")
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), amt)

	missing := rpcStub(t, map[string]string{
		"getTokenAccountBalance": `"error":{"code":-32602,"message":"Invalid param: could not find account"}`,
	})
	c = NewJSONRPCClient(missing.URL, time.Second)
	_, err = c.GetTokenAccountBalance(context.Background(), "x", "")
	require.ErrorIs(t, err, ErrRPCAccountNotFound)
}

func TestJSONRPCClient_ErrorsAndStatus(t *testing.T) {
	srv := rpcStub(t, map[string]string{
		"getBlockHeight": `"error":{"code":-32005,"message":"Node is behind by 42 slots"}`,
	})
	c := NewJSONRPCClient(srv.URL, time.Second)

	_, err := c.GetBlockHeight(context.Background(), "")
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32005, rpcErr.Code)

	_, err = c.GetLatestBlockhash(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http status=404")

	var nilClient *JSONRPCClient
	_, err = nilClient.GetBlockHeight(context.Background(), "")
	require.Error(t, err)
}

func TestNewJSONRPCClient_Defaults(t *testing.T) {
	c := NewJSONRPCClient("  ", 0)
	assert.Equal(t, DevnetEndpoint, c.Endpoint)
	assert.Equal(t, 12*time.Second, c.HTTP.Timeout)
}
