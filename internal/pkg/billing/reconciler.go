package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/jackmine/storefront/app/models"
	"github.com/jackmine/storefront/app/repository"
	"github.com/jackmine/storefront/internal/pkg/env"
	"github.com/jackmine/storefront/internal/pkg/metrics"
)

const (
	EventCheckoutSessionCompleted    = "checkout.session.completed"
	EventCustomerSubscriptionUpdated = "customer.subscription.updated"
	EventCustomerSubscriptionDeleted = "customer.subscription.deleted"
)

// Enqueuer hands stored entitlement changes to background workers.
type Enqueuer interface {
	EnqueueGrant(ctx context.Context, grant Grant) error
	EnqueueReceipt(ctx context.Context, grant Grant) error
}

// Reconciler applies verified provider webhook events to the entitlement store.
type Reconciler struct {
	secret   string
	currency string
	gateway  Gateway
	subs     repository.SubscriptionRepository
	orders   repository.OrderRepository
	events   repository.WebhookEventRepository
	enqueuer Enqueuer
	cache    StatusCache
	now      func() time.Time
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithEnqueuer sends grant and receipt jobs for newly processed events.
func WithEnqueuer(e Enqueuer) ReconcilerOption {
	return func(r *Reconciler) { r.enqueuer = e }
}

// WithStatusCache invalidates cached statuses of affected players.
func WithStatusCache(c StatusCache) ReconcilerOption {
	return func(r *Reconciler) { r.cache = c }
}

// WithCurrency sets the currency reported on receipts.
func WithCurrency(currency string) ReconcilerOption {
	return func(r *Reconciler) { r.currency = strings.ToLower(strings.TrimSpace(currency)) }
}

func NewReconciler(secret string, gateway Gateway, repos *repository.Repositories, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		secret:   strings.TrimSpace(secret),
		currency: defaultCheckoutCurrency,
		gateway:  gateway,
		subs:     repos.Subscription,
		orders:   repos.Order,
		events:   repos.WebhookEvent,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewReconcilerFromEnv reads STRIPE_WEBHOOK_SECRET and STRIPE_CURRENCY.
func NewReconcilerFromEnv(gateway Gateway, repos *repository.Repositories, opts ...ReconcilerOption) *Reconciler {
	opts = append([]ReconcilerOption{WithCurrency(env.GetEnv("STRIPE_CURRENCY", defaultCheckoutCurrency))}, opts...)
	return NewReconciler(env.GetEnv("STRIPE_WEBHOOK_SECRET", ""), gateway, repos, opts...)
}

// outcome is what a dispatched event changed.
type outcome struct {
	grants   []Grant
	receipt  *Grant
	username string
}

// HandleWebhook verifies and applies one delivery. A signature failure returns
// ErrInvalidSignature before anything is written. Every other failure is
// returned so the provider redelivers; the store writes are idempotent.
func (r *Reconciler) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if r.secret == "" {
		return ErrWebhookNotConfigured
	}
	if strings.TrimSpace(signature) == "" {
		log.Warn("[Billing] Webhook without signature header rejected")
		return ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, r.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		log.Warnf("[Billing] Webhook signature verification failed: %v", err)
		metrics.WebhookEvents.WithLabelValues("unverified", "invalid_signature").Inc()
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	log.Infof("[Billing] Webhook event received: %s (%s)", event.Type, event.ID)

	created, stored, err := r.events.CreateIfNotExists(ctx, &models.WebhookEvent{
		Provider:        models.WebhookProviderStripe,
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		PayloadJSON:     string(payload),
	})
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(string(event.Type), "error").Inc()
		return upstream("record webhook event", err)
	}
	alreadyProcessed := !created && stored.WasProcessed()

	out, procErr := r.dispatch(ctx, event)
	if out != nil && out.username != "" {
		r.invalidate(ctx, out.username)
	}

	if alreadyProcessed {
		// Jobs went out with the first successful delivery.
		if procErr == nil {
			log.Infof("[Billing] Redelivered event %s re-applied", event.ID)
		}
		metrics.WebhookEvents.WithLabelValues(string(event.Type), resultLabel(procErr, "redelivered")).Inc()
		return procErr
	}

	if procErr == nil && out != nil {
		procErr = r.enqueue(ctx, out)
	}

	errMsg := ""
	if procErr != nil {
		errMsg = procErr.Error()
	}
	if err := r.events.MarkProcessed(ctx, stored.ID, errMsg); err != nil {
		log.Errorf("[Billing] Failed to mark webhook event %s processed: %v", event.ID, err)
		if procErr == nil {
			procErr = upstream("mark webhook event processed", err)
		}
	}
	metrics.WebhookEvents.WithLabelValues(string(event.Type), resultLabel(procErr, "processed")).Inc()
	return procErr
}

func resultLabel(err error, ok string) string {
	if err != nil {
		return "error"
	}
	return ok
}

func (r *Reconciler) dispatch(ctx context.Context, event stripe.Event) (*outcome, error) {
	if event.Data == nil {
		return nil, nil
	}

	switch string(event.Type) {
	case EventCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		return r.handleCheckoutCompleted(ctx, event.ID, &session)

	case EventCustomerSubscriptionUpdated:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		return r.handleSubscriptionUpdated(ctx, event.ID, &sub)

	case EventCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		return r.handleSubscriptionDeleted(ctx, event.ID, &sub)

	default:
		log.Debugf("[Billing] Ignoring webhook event type %s", event.Type)
		return nil, nil
	}
}

func (r *Reconciler) handleCheckoutCompleted(ctx context.Context, eventID string, session *stripe.CheckoutSession) (*outcome, error) {
	username := strings.TrimSpace(session.Metadata["username"])
	productType := normalizeProductType(session.Metadata["product_type"])
	productID := strings.ToLower(strings.TrimSpace(session.Metadata["product_id"]))
	if username == "" || productType == "" || productID == "" {
		log.Warnf("[Billing] Checkout session %s carries no storefront metadata, ignoring", session.ID)
		return nil, nil
	}

	email := ""
	if session.CustomerDetails != nil {
		email = strings.TrimSpace(session.CustomerDetails.Email)
	}
	customerID := ""
	if session.Customer != nil {
		customerID = session.Customer.ID
	}

	log.Infof("[Billing] Checkout completed: %s, user %s, type %s", session.ID, username, productType)

	out := &outcome{username: username}

	switch productType {
	case productTypeSubscription:
		if !isSubscriptionType(productID) {
			log.Warnf("[Billing] Checkout session %s names unknown plan %q, ignoring", session.ID, productID)
			return out, nil
		}

		providerSub, err := r.gateway.LatestSubscription(ctx, customerID)
		if err != nil {
			return out, upstream("list customer subscriptions", err)
		}
		if providerSub == nil {
			log.Warnf("[Billing] No subscription found for customer %s after session %s", customerID, session.ID)
			return out, nil
		}

		row := &models.Subscription{
			Username:                username,
			Email:                   email,
			SubscriptionType:        productID,
			ExternalCustomerRef:     customerID,
			ExternalSubscriptionRef: providerSub.ID,
			Status:                  models.SubscriptionStatusActive,
			LastEventRef:            eventID,
		}
		if !providerSub.CurrentPeriodEnd.IsZero() {
			end := providerSub.CurrentPeriodEnd
			row.EndDate = &end
		}
		if err := r.subs.Upsert(ctx, row); err != nil {
			return out, upstream("upsert subscription", err)
		}

		grant := Grant{
			EventID:   eventID,
			Kind:      GrantSubscription,
			Username:  username,
			Email:     email,
			ProductID: productID,
			Amount:    session.AmountTotal,
			Currency:  r.currency,
		}
		out.grants = append(out.grants, grant)
		if email != "" {
			out.receipt = &grant
		}
		return out, nil

	case productTypeItem:
		status := models.OrderStatusPending
		if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
			status = models.OrderStatusCompleted
		}

		order := &models.Order{
			Email:              email,
			Username:           username,
			ExternalSessionRef: session.ID,
			ProductType:        productType,
			ProductID:          productID,
			Amount:             session.AmountTotal,
			Status:             status,
			LastEventRef:       eventID,
		}
		inserted, err := r.orders.CreateIfNotExists(ctx, order)
		if err != nil {
			return out, upstream("insert order", err)
		}
		if !inserted {
			log.Infof("[Billing] Order for session %s already recorded", session.ID)
		}

		if status != models.OrderStatusCompleted {
			return out, nil
		}
		grant := Grant{
			EventID:   eventID,
			Kind:      GrantItem,
			Username:  username,
			Email:     email,
			ProductID: productID,
			Amount:    session.AmountTotal,
			Currency:  r.currency,
		}
		out.grants = append(out.grants, grant)
		if email != "" {
			out.receipt = &grant
		}
		return out, nil

	default:
		log.Warnf("[Billing] Checkout session %s has unknown product type %q, ignoring", session.ID, productType)
		return out, nil
	}
}

func (r *Reconciler) handleSubscriptionUpdated(ctx context.Context, eventID string, sub *stripe.Subscription) (*outcome, error) {
	log.Infof("[Billing] Subscription updated: %s, status %s", sub.ID, sub.Status)

	username, err := r.subscriptionOwner(ctx, sub)
	if err != nil {
		return nil, err
	}
	if username == "" {
		log.Warnf("[Billing] No owner known for subscription %s, skipping", sub.ID)
		return nil, nil
	}

	update := repository.SubscriptionUpdate{
		Status:       subscriptionStatusFromProvider(string(sub.Status)),
		LastEventRef: eventID,
	}
	if p := fromStripeSubscription(sub); !p.CurrentPeriodEnd.IsZero() {
		end := p.CurrentPeriodEnd
		update.EndDate = &end
	}

	if _, err := r.subs.UpdateByExternalRef(ctx, sub.ID, update); err != nil {
		return nil, upstream("update subscription", err)
	}

	return &outcome{
		username: username,
		grants:   []Grant{{EventID: eventID, Kind: GrantSync, Username: username}},
	}, nil
}

func (r *Reconciler) handleSubscriptionDeleted(ctx context.Context, eventID string, sub *stripe.Subscription) (*outcome, error) {
	log.Infof("[Billing] Subscription canceled: %s", sub.ID)

	n, err := r.subs.UpdateByExternalRef(ctx, sub.ID, repository.SubscriptionUpdate{
		Status:       models.SubscriptionStatusCanceled,
		LastEventRef: eventID,
	})
	if err != nil {
		return nil, upstream("cancel subscription", err)
	}
	if n == 0 {
		return nil, nil
	}

	// The row is canceled either way; the owner only drives cache and game server sync.
	username, err := r.subscriptionOwner(ctx, sub)
	if err != nil || username == "" {
		if err != nil {
			log.Warnf("[Billing] Could not resolve owner of subscription %s: %v", sub.ID, err)
		}
		return nil, nil
	}
	return &outcome{
		username: username,
		grants:   []Grant{{EventID: eventID, Kind: GrantSync, Username: username}},
	}, nil
}

// subscriptionOwner returns the player a provider subscription was bought for.
// A customer is shared by every player bought with the same email, so the
// stored row is consulted before the customer metadata.
func (r *Reconciler) subscriptionOwner(ctx context.Context, sub *stripe.Subscription) (string, error) {
	row, err := r.subs.FindByExternalRef(ctx, sub.ID)
	if err != nil {
		return "", upstream("find subscription", err)
	}
	if row != nil {
		return row.Username, nil
	}
	if sub.Customer == nil || sub.Customer.ID == "" {
		return "", nil
	}
	username, err := r.gateway.CustomerUsername(ctx, sub.Customer.ID)
	if err != nil {
		return "", upstream("retrieve customer", err)
	}
	return username, nil
}

func (r *Reconciler) enqueue(ctx context.Context, out *outcome) error {
	if r.enqueuer == nil {
		return nil
	}
	for _, g := range out.grants {
		if err := r.enqueuer.EnqueueGrant(ctx, g); err != nil {
			return upstream("enqueue entitlement grant", err)
		}
	}
	if out.receipt != nil {
		if err := r.enqueuer.EnqueueReceipt(ctx, *out.receipt); err != nil {
			// Receipt failures never fail the delivery, the grants are already queued.
			log.Errorf("[Billing] Failed to enqueue receipt for %s: %v", out.receipt.Username, err)
		}
	}
	return nil
}

func (r *Reconciler) invalidate(ctx context.Context, username string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, StatusCacheKey(username)); err != nil {
		log.Warnf("[Billing] Status cache invalidation for %s failed: %v", username, err)
	}
}

// IsSignatureError reports whether err means the delivery was not authentic.
func IsSignatureError(err error) bool {
	return errors.Is(err, ErrInvalidSignature)
}
