package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/jackmine/storefront/internal/pkg/billing"
	"github.com/jackmine/storefront/internal/pkg/catalog"
	"github.com/jackmine/storefront/internal/pkg/entitlements"
	"github.com/jackmine/storefront/internal/pkg/gameserver"
)

// processGrantJob applies a stored entitlement change on the game server.
// The provider event id is the idempotency key, so a retried job is applied once.
func (q *Queue) processGrantJob(ctx context.Context, job *Job) error {
	payload, err := GrantJobPayloadFromMap(job.Payload)
	if err != nil {
		return permanent(fmt.Errorf("invalid grant payload: %w", err))
	}
	if strings.TrimSpace(payload.Username) == "" {
		return permanent(errors.New("grant payload has no username"))
	}
	if q.deps.Accounts == nil {
		return permanent(errors.New("no game server client configured"))
	}

	var res *gameserver.Result
	switch payload.Kind {
	case billing.GrantSubscription:
		plan, ok := catalog.FindPlan(payload.ProductID)
		if !ok || !plan.Purchasable() {
			return permanent(fmt.Errorf("unknown plan %q", payload.ProductID))
		}
		res, err = q.deps.Accounts.UpdatePlayerAccount(ctx, payload.EventID, payload.Username, plan.Type, plan.Days)

	case billing.GrantItem:
		res, err = q.deps.Accounts.AddItemToPlayer(ctx, payload.EventID, payload.Username, payload.ProductID, 1)

	case billing.GrantSync:
		if q.deps.Plans == nil {
			return permanent(errors.New("no plan resolver configured"))
		}
		status, rerr := q.deps.Plans.Resolve(ctx, payload.Username)
		if rerr != nil {
			return fmt.Errorf("resolve plan of %s: %w", payload.Username, rerr)
		}
		days := remainingDays(status.SubscriptionType, status.SubscriptionEnd, time.Now())
		res, err = q.deps.Accounts.UpdatePlayerAccount(ctx, payload.EventID, payload.Username, status.SubscriptionType, days)

	default:
		return permanent(fmt.Errorf("unknown grant kind %q", payload.Kind))
	}
	if err != nil {
		return err
	}

	if res != nil {
		log.Infof("[JobQueue] Grant %s for %s applied: %s", payload.Kind, payload.Username, res.Message)
	}
	return nil
}

// remainingDays is how long the game server should keep plan active.
// Paid plans without a known end get the catalog duration; at least one day is granted.
func remainingDays(plan entitlements.Plan, end *time.Time, now time.Time) int {
	if plan == entitlements.PlanFree {
		return 0
	}
	if end == nil {
		return catalog.PlanFor(plan).Days
	}
	days := int(math.Ceil(end.Sub(now).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}
