package jobqueue

import (
	"context"

	"github.com/jackmine/storefront/internal/pkg/billing"
)

// Enqueuer turns reconciled grants into queue jobs.
type Enqueuer struct {
	queue *Queue
}

var _ billing.Enqueuer = (*Enqueuer)(nil)

func NewEnqueuer(queue *Queue) *Enqueuer {
	return &Enqueuer{queue: queue}
}

func (e *Enqueuer) EnqueueGrant(ctx context.Context, grant billing.Grant) error {
	_, err := e.queue.EnqueueJob(ctx, JobTypeGrantEntitlement, GrantJobPayloadFrom(grant).ToMap())
	return err
}

// EnqueueReceipt is a no-op for grants without an email.
func (e *Enqueuer) EnqueueReceipt(ctx context.Context, grant billing.Grant) error {
	if grant.Email == "" {
		return nil
	}
	_, err := e.queue.EnqueueJob(ctx, JobTypeSendReceipt, GrantJobPayloadFrom(grant).ToMap())
	return err
}
