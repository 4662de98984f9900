package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackmine/storefront/internal/pkg/billing"
	"github.com/jackmine/storefront/internal/pkg/catalog"
	"github.com/jackmine/storefront/internal/pkg/mail"
)

func (q *Queue) processReceiptJob(ctx context.Context, job *Job) error {
	payload, err := GrantJobPayloadFromMap(job.Payload)
	if err != nil {
		return permanent(fmt.Errorf("invalid receipt payload: %w", err))
	}
	if payload.Email == "" {
		return permanent(errors.New("receipt payload has no email"))
	}
	if q.deps.Mailer == nil {
		return permanent(errors.New("no mailer configured"))
	}

	return mail.SendReceipt(ctx, q.deps.Mailer, mail.Receipt{
		Username:    payload.Username,
		Email:       payload.Email,
		ProductName: productName(payload.Kind, payload.ProductID),
		Amount:      payload.Amount,
		Currency:    payload.Currency,
		Reference:   payload.EventID,
	})
}

func productName(kind billing.GrantKind, productID string) string {
	switch kind {
	case billing.GrantSubscription:
		if p, ok := catalog.SubscriptionProduct(productID); ok {
			return p.Name
		}
	case billing.GrantItem:
		if p, ok := catalog.ItemProduct(productID); ok {
			return p.Name
		}
	}
	return productID
}
