// internal/infra/solana/rpc_client.go
package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Commitment levels accepted by the RPC.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// ErrRPCAccountNotFound is returned by reads of accounts the ledger does not hold.
var ErrRPCAccountNotFound = errors.New("solana rpc: account not found")

// RPCError is a JSON-RPC error object returned by the node.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("solana rpc: error code=%d message=%s", e.Code, e.Message)
}

// JSONRPCClient is a simple HTTP JSON-RPC client for the reads blocto's client
// does not expose in the shape we need.
type JSONRPCClient struct {
	Endpoint string
	HTTP     *http.Client

	nextID atomic.Int64
}

// NewJSONRPCClient creates a Solana JSON-RPC client. An empty endpoint uses devnet.
func NewJSONRPCClient(endpoint string, timeout time.Duration) *JSONRPCClient {
	ep := strings.TrimSpace(endpoint)
	if ep == "" {
		ep = DevnetEndpoint
	}
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &JSONRPCClient{
		Endpoint: ep,
		HTTP: &http.Client{
			Timeout: timeout,
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

func (c *JSONRPCClient) call(ctx context.Context, method string, params any, out any) error {
	if c == nil || c.Endpoint == "" || c.HTTP == nil {
		return fmt.Errorf("solana rpc: client not configured")
	}

	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("solana rpc: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("solana rpc: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("solana rpc: %s: http do: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("solana rpc: %s: http status=%d", method, resp.StatusCode)
	}

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("solana rpc: %s: decode response: %w", method, err)
	}
	if rr.Error != nil {
		return rr.Error
	}

	if out != nil {
		if err := json.Unmarshal(rr.Result, out); err != nil {
			return fmt.Errorf("solana rpc: %s: unmarshal result: %w", method, err)
		}
	}
	return nil
}

func commitmentConfig(commitment string) map[string]any {
	if commitment == "" {
		commitment = CommitmentConfirmed
	}
	return map[string]any{"commitment": commitment}
}

// LatestBlockhash is the value of getLatestBlockhash.
type LatestBlockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

func (c *JSONRPCClient) GetLatestBlockhash(ctx context.Context, commitment string) (LatestBlockhash, error) {
	var out struct {
		Value LatestBlockhash `json:"value"`
	}
	if err := c.call(ctx, "getLatestBlockhash", []any{commitmentConfig(commitment)}, &out); err != nil {
		return LatestBlockhash{}, err
	}
	if out.Value.Blockhash == "" {
		return LatestBlockhash{}, fmt.Errorf("solana rpc: getLatestBlockhash: empty blockhash")
	}
	return out.Value, nil
}

func (c *JSONRPCClient) GetBlockHeight(ctx context.Context, commitment string) (uint64, error) {
	var out uint64
	if err := c.call(ctx, "getBlockHeight", []any{commitmentConfig(commitment)}, &out); err != nil {
		return 0, err
	}
	return out, nil
}

// SignatureStatus is one entry of getSignatureStatuses. Err is the raw
// TransactionError JSON, nil when the transaction succeeded.
type SignatureStatus struct {
	Slot               uint64          `json:"slot"`
	Confirmations      *uint64         `json:"confirmations"`
	Err                json.RawMessage `json:"err"`
	ConfirmationStatus string          `json:"confirmationStatus"`
}

// Failed reports whether the ledger recorded an execution error.
func (s *SignatureStatus) Failed() bool {
	if s == nil {
		return false
	}
	e := strings.TrimSpace(string(s.Err))
	return e != "" && e != "null"
}

// Reached reports whether the status satisfies the wanted commitment.
func (s *SignatureStatus) Reached(commitment string) bool {
	if s == nil {
		return false
	}
	rank := map[string]int{CommitmentProcessed: 1, CommitmentConfirmed: 2, CommitmentFinalized: 3}
	want, ok := rank[commitment]
	if !ok {
		want = rank[CommitmentConfirmed]
	}
	return rank[s.ConfirmationStatus] >= want
}

// GetSignatureStatuses returns one entry per signature; unknown signatures are nil.
func (c *JSONRPCClient) GetSignatureStatuses(ctx context.Context, signatures ...string) ([]*SignatureStatus, error) {
	var out struct {
		Value []*SignatureStatus `json:"value"`
	}
	params := []any{signatures, map[string]any{"searchTransactionHistory": false}}
	if err := c.call(ctx, "getSignatureStatuses", params, &out); err != nil {
		return nil, err
	}
	if len(out.Value) != len(signatures) {
		return nil, fmt.Errorf("solana rpc: getSignatureStatuses: got %d statuses for %d signatures", len(out.Value), len(signatures))
	}
	return out.Value, nil
}

// GetAccountExists calls getAccountInfo and reports whether value is non-null.
func (c *JSONRPCClient) GetAccountExists(ctx context.Context, address string, commitment string) (bool, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return false, fmt.Errorf("solana rpc: address is empty")
	}
	cfg := commitmentConfig(commitment)
	cfg["encoding"] = "base64"
	cfg["dataSlice"] = map[string]any{"offset": 0, "length": 0}

	var out struct {
		Value json.RawMessage `json:"value"`
	}
	if err := c.call(ctx, "getAccountInfo", []any{address, cfg}, &out); err != nil {
		return false, err
	}
	v := strings.TrimSpace(string(out.Value))
	return v != "" && v != "null", nil
}

// GetTokenAccountBalance returns the raw smallest-unit amount of a token account.
func (c *JSONRPCClient) GetTokenAccountBalance(ctx context.Context, address string, commitment string) (uint64, error) {
	var out struct {
		Value struct {
			Amount   string `json:"amount"`
			Decimals int    `json:"decimals"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getTokenAccountBalance", []any{address, commitmentConfig(commitment)}, &out); err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && strings.Contains(strings.ToLower(rpcErr.Message), "could not find account") {
			return 0, fmt.Errorf("%w: %s", ErrRPCAccountNotFound, address)
		}
		return 0, err
	}
	amt, err := strconv.ParseUint(strings.TrimSpace(out.Value.Amount), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("solana rpc: getTokenAccountBalance: parse amount %q: %w", out.Value.Amount, err)
	}
	return amt, nil
}

// GetTokenAccountsByOwnerResult is the decoded `result` object for getTokenAccountsByOwner (jsonParsed).
type GetTokenAccountsByOwnerResult struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value []struct {
		Pubkey  string `json:"pubkey"`
		Account struct {
			Data struct {
				Program string `json:"program"`
				Parsed  struct {
					Info struct {
						Mint        string `json:"mint"`
						Owner       string `json:"owner"`
						TokenAmount struct {
							Amount   string `json:"amount"`   // string integer
							Decimals int    `json:"decimals"` // for UI conversion
						} `json:"tokenAmount"`
					} `json:"info"`
					Type string `json:"type"`
				} `json:"parsed"`
				Space uint64 `json:"space"`
			} `json:"data"`
			Owner string `json:"owner"`
		} `json:"account"`
	} `json:"value"`
}

func (c *JSONRPCClient) GetTokenAccountsByOwner(ctx context.Context, owner string, programID string) (GetTokenAccountsByOwnerResult, error) {
	var out GetTokenAccountsByOwnerResult

	owner = strings.TrimSpace(owner)
	if owner == "" {
		return out, fmt.Errorf("solana rpc: owner is empty")
	}
	if programID == "" {
		programID = TokenProgramID.ToBase58()
	}

	params := []any{
		owner,
		map[string]any{
			"programId": programID,
		},
		map[string]any{
			"commitment": CommitmentFinalized,
			"encoding":   "jsonParsed",
		},
	}

	if err := c.call(ctx, "getTokenAccountsByOwner", params, &out); err != nil {
		return GetTokenAccountsByOwnerResult{}, err
	}
	return out, nil
}
