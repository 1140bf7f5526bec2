package mail

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	issuance "narratives-mint/internal/domain/issuance"
)

func record() issuance.Record {
	return issuance.Record{
		Mint:           "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
		HoldingAccount: "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
		Owner:          "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T",
		Decimals:       2,
		Amount:         1000,
		Signature:      "5VER",
		Symbol:         "UAB-3",
		IssuedAt:       time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
	}
}

func TestIssuanceNotifier_SendsToAllRecipients(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer SG.test", r.Header.Get("Authorization"))
		b, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(b, &payload))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := sendgrid.NewSendClient("SG.test")
	client.BaseURL = srv.URL + "/v3/mail/send"

	n := NewIssuanceNotifier("SG.test", "mint@narratives.example", "Narratives Mint", []string{"a@narratives.example", "b@narratives.example"}, nil)
	n.Sender = client

	require.NoError(t, n.NotifyIssued(context.Background(), record()))

	assert.Equal(t, "[narratives-mint] issued UAB-3", payload["subject"])
	pers := payload["personalizations"].([]any)
	require.Len(t, pers, 1)
	assert.Len(t, pers[0].(map[string]any)["to"], 2)
}

func TestIssuanceNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"forbidden"}]}`, http.StatusForbidden)
	}))
	defer srv.Close()

	client := sendgrid.NewSendClient("SG.bad")
	client.BaseURL = srv.URL + "/v3/mail/send"
	n := NewIssuanceNotifier("SG.bad", "mint@narratives.example", "", []string{"a@narratives.example"}, nil)
	n.Sender = client

	err := n.NotifyIssued(context.Background(), record())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=403")
}

func TestIssuanceNotifier_Unconfigured(t *testing.T) {
	n := NewIssuanceNotifier("SG.x", "", "", nil, nil)
	require.Error(t, n.NotifyIssued(context.Background(), record()))
	n.From = "mint@narratives.example"
	require.Error(t, n.NotifyIssued(context.Background(), record()))
}

func TestRenderAndFormatUnits(t *testing.T) {
	n := NewIssuanceNotifier("SG.x", "f", "", []string{"t"}, nil)
	subject, body := n.render(record())
	assert.Equal(t, "[narratives-mint] issued UAB-3", subject)
	assert.Contains(t, body, "amount:          10\n")
	assert.Contains(t, body, "https://explorer.solana.com/tx/5VER?cluster=devnet")

	assert.Equal(t, "10", formatUnits(1000, 2))
	assert.Equal(t, "0.05", formatUnits(5, 2))
	assert.Equal(t, "1.5", formatUnits(15, 1))
	assert.Equal(t, "7", formatUnits(7, 0))
	assert.Equal(t, "0.000000001", formatUnits(1, 9))
}
