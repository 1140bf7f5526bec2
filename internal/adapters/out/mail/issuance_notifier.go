// internal/adapters/out/mail/issuance_notifier.go
package mail

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	issuance "narratives-mint/internal/domain/issuance"
)

// Sender is the SendGrid call we need. *sendgrid.Client satisfies it.
type Sender interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

// IssuanceNotifier mails a summary of every confirmed issuance.
type IssuanceNotifier struct {
	Sender   Sender
	From     string
	FromName string
	To       []string
	// ExplorerURL is prefixed to transaction signatures in the mail body.
	ExplorerURL string
	Cluster     string
	Logger      *zap.Logger

	// sendgrid.Client keeps the request body on itself
	mu sync.Mutex
}

var _ issuance.Notifier = (*IssuanceNotifier)(nil)

func NewIssuanceNotifier(apiKey, from, fromName string, to []string, logger *zap.Logger) *IssuanceNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IssuanceNotifier{
		Sender:      sendgrid.NewSendClient(apiKey),
		From:        from,
		FromName:    fromName,
		To:          to,
		ExplorerURL: "https://explorer.solana.com/tx/",
		Cluster:     "devnet",
		Logger:      logger.Named("sendgrid"),
	}
}

func (n *IssuanceNotifier) NotifyIssued(ctx context.Context, rec issuance.Record) error {
	if n == nil || n.Sender == nil {
		return errors.New("sendgrid: notifier not configured")
	}
	if strings.TrimSpace(n.From) == "" {
		return fmt.Errorf("sendgrid: from address is empty")
	}
	if len(n.To) == 0 {
		return fmt.Errorf("sendgrid: no recipients")
	}

	subject, body := n.render(rec)

	msg := sgmail.NewV3Mail()
	msg.SetFrom(sgmail.NewEmail(n.FromName, n.From))
	msg.Subject = subject
	p := sgmail.NewPersonalization()
	for _, to := range n.To {
		p.AddTos(sgmail.NewEmail("", to))
	}
	msg.AddPersonalizations(p)
	msg.AddContent(
		sgmail.NewContent("text/plain", body),
		sgmail.NewContent("text/html", fmt.Sprintf("<pre>%s</pre>", html.EscapeString(body))),
	)

	n.mu.Lock()
	resp, err := n.Sender.SendWithContext(ctx, msg)
	n.mu.Unlock()
	if err != nil {
		return fmt.Errorf("sendgrid send error: %w", err)
	}
	if resp.StatusCode >= 400 {
		n.Logger.Warn("[sendgrid] send failed", zap.Int("status", resp.StatusCode), zap.String("body", resp.Body))
		return fmt.Errorf("sendgrid send failed: status=%d, body=%s", resp.StatusCode, resp.Body)
	}

	n.Logger.Info("[sendgrid] issuance mail sent",
		zap.Int("status", resp.StatusCode),
		zap.Int("recipients", len(n.To)),
		zap.String("subject", subject),
	)
	return nil
}

func (n *IssuanceNotifier) render(rec issuance.Record) (string, string) {
	label := rec.Symbol
	if label == "" {
		label = rec.Mint
	}
	subject := fmt.Sprintf("[narratives-mint] issued %s", label)

	var b strings.Builder
	fmt.Fprintf(&b, "mint:            %s\n", rec.Mint)
	fmt.Fprintf(&b, "holding account: %s\n", rec.HoldingAccount)
	fmt.Fprintf(&b, "owner:           %s\n", rec.Owner)
	fmt.Fprintf(&b, "amount:          %s\n", formatUnits(rec.Amount, rec.Decimals))
	if rec.Name != "" {
		fmt.Fprintf(&b, "name:            %s\n", rec.Name)
	}
	if rec.URI != "" {
		fmt.Fprintf(&b, "metadata:        %s\n", rec.URI)
	}
	fmt.Fprintf(&b, "transaction:     %s%s", n.ExplorerURL, rec.Signature)
	if n.Cluster != "" {
		fmt.Fprintf(&b, "?cluster=%s", n.Cluster)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "issued at:       %s\n", rec.IssuedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	return subject, b.String()
}

// formatUnits renders a smallest-unit amount as a decimal string.
func formatUnits(amount uint64, decimals uint8) string {
	s := fmt.Sprintf("%d", amount)
	if decimals == 0 {
		return s
	}
	d := int(decimals)
	if len(s) <= d {
		s = strings.Repeat("0", d-len(s)+1) + s
	}
	whole, frac := s[:len(s)-d], strings.TrimRight(s[len(s)-d:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}
