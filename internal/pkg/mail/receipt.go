package mail

import (
	"bytes"
	"context"
	"fmt"
	"strings"
)

// Receipt is the purchase confirmation sent after a checkout completed.
type Receipt struct {
	Username    string
	Email       string
	ProductName string
	Amount      int64
	Currency    string
	Reference   string
}

// FormatAmount renders minor units as "14.90 BRL".
func FormatAmount(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, strings.ToUpper(currency))
}

// RenderReceipt returns subject and HTML body of a receipt.
func RenderReceipt(ctx context.Context, r Receipt) (string, string, error) {
	var buf bytes.Buffer
	if err := receiptBody(r).Render(ctx, &buf); err != nil {
		return "", "", err
	}
	return "Your JACKMINE purchase: " + r.ProductName, buf.String(), nil
}

// SendReceipt renders r and hands it to sender.
func SendReceipt(ctx context.Context, sender Sender, r Receipt) error {
	if strings.TrimSpace(r.Email) == "" {
		return fmt.Errorf("receipt for %s has no email", r.Username)
	}
	subject, body, err := RenderReceipt(ctx, r)
	if err != nil {
		return fmt.Errorf("failed to render receipt: %w", err)
	}
	return sender.Send(ctx, r.Email, subject, body)
}
