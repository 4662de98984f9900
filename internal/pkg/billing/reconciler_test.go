package billing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/jackmine/storefront/app/models"
	"github.com/jackmine/storefront/internal/pkg/entitlements"
)

const testWebhookSecret = "whsec_test_secret"

func eventPayload(t *testing.T, id, eventType string, object map[string]interface{}) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"api_version": "2023-10-16",
		"created":     time.Now().Unix(),
		"data":        map[string]interface{}{"object": object},
	})
	require.NoError(t, err)
	return body
}

func sign(payload []byte, secret string) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

func subscriptionCheckout(eventID string) func(t *testing.T) []byte {
	return func(t *testing.T) []byte {
		return eventPayload(t, eventID, EventCheckoutSessionCompleted, map[string]interface{}{
			"id":             "cs_test_sub",
			"object":         "checkout.session",
			"customer":       "cus_Steve",
			"amount_total":   1990,
			"payment_status": "paid",
			"mode":           "subscription",
			"customer_details": map[string]interface{}{
				"email": "steve@example.com",
			},
			"metadata": map[string]interface{}{
				"username":     "Steve",
				"product_type": "subscription",
				"product_id":   "vip",
			},
		})
	}
}

func itemCheckout(eventID, sessionID, paymentStatus string) func(t *testing.T) []byte {
	return func(t *testing.T) []byte {
		return eventPayload(t, eventID, EventCheckoutSessionCompleted, map[string]interface{}{
			"id":             sessionID,
			"object":         "checkout.session",
			"customer":       "cus_Steve",
			"amount_total":   2500,
			"payment_status": paymentStatus,
			"mode":           "payment",
			"customer_details": map[string]interface{}{
				"email": "steve@example.com",
			},
			"metadata": map[string]interface{}{
				"username":     "Steve",
				"product_type": "item",
				"product_id":   "elytra",
			},
		})
	}
}

type reconcilerFixture struct {
	store    *memStore
	gateway  *fakeGateway
	enqueuer *fakeEnqueuer
	cache    *mapCache
	rec      *Reconciler
}

func newReconcilerFixture() *reconcilerFixture {
	f := &reconcilerFixture{
		store:    newMemStore(),
		gateway:  newFakeGateway(),
		enqueuer: &fakeEnqueuer{},
		cache:    newMapCache(),
	}
	f.gateway.usernames["cus_Steve"] = "Steve"
	f.gateway.subscription = &ProviderSubscription{
		ID:               "sub_123",
		CustomerID:       "cus_Steve",
		Status:           "active",
		CurrentPeriodEnd: time.Date(2026, 11, 15, 12, 0, 0, 0, time.UTC),
	}
	f.rec = NewReconciler(testWebhookSecret, f.gateway, f.store.repositories(),
		WithEnqueuer(f.enqueuer), WithStatusCache(f.cache))
	return f
}

func (f *reconcilerFixture) deliver(payload []byte) error {
	return f.rec.HandleWebhook(context.Background(), payload, sign(payload, testWebhookSecret))
}

func TestHandleWebhookSubscriptionCheckoutUpserts(t *testing.T) {
	f := newReconcilerFixture()

	require.NoError(t, f.deliver(subscriptionCheckout("evt_1")(t)))

	rows := f.store.subscriptionRows("Steve")
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "vip", row.SubscriptionType)
	assert.Equal(t, models.SubscriptionStatusActive, row.Status)
	assert.Equal(t, "steve@example.com", row.Email)
	assert.Equal(t, "cus_Steve", row.ExternalCustomerRef)
	assert.Equal(t, "sub_123", row.ExternalSubscriptionRef)
	assert.Equal(t, "evt_1", row.LastEventRef)
	require.NotNil(t, row.EndDate)
	assert.True(t, row.EndDate.Equal(time.Date(2026, 11, 15, 12, 0, 0, 0, time.UTC)))

	require.Len(t, f.enqueuer.grants, 1)
	assert.Equal(t, GrantSubscription, f.enqueuer.grants[0].Kind)
	assert.Equal(t, "evt_1", f.enqueuer.grants[0].EventID)
	assert.Len(t, f.enqueuer.receipts, 1)
	assert.Contains(t, f.cache.deletes, "subscription_status:steve")
}

func TestHandleWebhookRedeliveryIsIdempotent(t *testing.T) {
	f := newReconcilerFixture()
	payload := subscriptionCheckout("evt_1")(t)

	require.NoError(t, f.deliver(payload))
	firstID := f.store.subscriptionRows("Steve")[0].ID

	// Provider renewed the period between deliveries.
	f.gateway.subscription.CurrentPeriodEnd = time.Date(2026, 12, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, f.deliver(payload))

	rows := f.store.subscriptionRows("Steve")
	require.Len(t, rows, 1, "second delivery must update in place")
	assert.Equal(t, firstID, rows[0].ID)
	assert.True(t, rows[0].EndDate.Equal(time.Date(2026, 12, 15, 12, 0, 0, 0, time.UTC)))

	assert.Len(t, f.enqueuer.grants, 1, "jobs are not re-enqueued for a processed event")
	assert.Len(t, f.store.events, 1)
}

func TestHandleWebhookSameCheckoutDifferentEventIDsKeepsOneRow(t *testing.T) {
	f := newReconcilerFixture()

	require.NoError(t, f.deliver(subscriptionCheckout("evt_1")(t)))
	require.NoError(t, f.deliver(subscriptionCheckout("evt_2")(t)))

	rows := f.store.subscriptionRows("Steve")
	require.Len(t, rows, 1)
	assert.Equal(t, "evt_2", rows[0].LastEventRef)
}

func TestHandleWebhookInvalidSignatureWritesNothing(t *testing.T) {
	tests := []struct {
		name      string
		signature func(payload []byte) string
	}{
		{name: "wrong secret", signature: func(p []byte) string { return sign(p, "whsec_other") }},
		{name: "garbage header", signature: func(p []byte) string { return "t=1,v1=deadbeef" }},
		{name: "missing header", signature: func(p []byte) string { return "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReconcilerFixture()
			payload := subscriptionCheckout("evt_forged")(t)

			err := f.rec.HandleWebhook(context.Background(), payload, tt.signature(payload))
			require.Error(t, err)
			assert.True(t, IsSignatureError(err))
			assert.Zero(t, f.store.writeCount())
			assert.Empty(t, f.store.events)
			assert.Empty(t, f.enqueuer.grants)
		})
	}
}

func TestHandleWebhookTamperedBodyRejected(t *testing.T) {
	f := newReconcilerFixture()
	payload := subscriptionCheckout("evt_1")(t)
	header := sign(payload, testWebhookSecret)

	tampered := itemCheckout("evt_1", "cs_1", "paid")(t)
	err := f.rec.HandleWebhook(context.Background(), tampered, header)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Zero(t, f.store.writeCount())
}

func TestHandleWebhookWithoutSecret(t *testing.T) {
	f := newReconcilerFixture()
	rec := NewReconciler("", f.gateway, f.store.repositories())
	payload := subscriptionCheckout("evt_1")(t)

	err := rec.HandleWebhook(context.Background(), payload, sign(payload, testWebhookSecret))
	assert.ErrorIs(t, err, ErrWebhookNotConfigured)
	assert.Zero(t, f.store.writeCount())
}

func TestHandleWebhookItemOrders(t *testing.T) {
	f := newReconcilerFixture()

	require.NoError(t, f.deliver(itemCheckout("evt_paid", "cs_paid", "paid")(t)))
	require.NoError(t, f.deliver(itemCheckout("evt_unpaid", "cs_unpaid", "unpaid")(t)))
	// Same session under a new event id is ignored by the store.
	require.NoError(t, f.deliver(itemCheckout("evt_paid_again", "cs_paid", "paid")(t)))

	require.Len(t, f.store.orders, 2)
	byRef := map[string]models.Order{}
	for _, o := range f.store.orders {
		byRef[o.ExternalSessionRef] = o
	}
	assert.Equal(t, models.OrderStatusCompleted, byRef["cs_paid"].Status)
	assert.Equal(t, int64(2500), byRef["cs_paid"].Amount)
	assert.Equal(t, "evt_paid", byRef["cs_paid"].LastEventRef)
	assert.Equal(t, models.OrderStatusPending, byRef["cs_unpaid"].Status)

	for _, g := range f.enqueuer.grants {
		assert.Equal(t, GrantItem, g.Kind)
		assert.Equal(t, "elytra", g.ProductID)
	}
	assert.NotEmpty(t, f.enqueuer.grants)
	assert.Empty(t, f.store.subscriptionRows("Steve"))
}

func TestHandleWebhookSubscriptionUpdated(t *testing.T) {
	f := newReconcilerFixture()
	require.NoError(t, f.deliver(subscriptionCheckout("evt_1")(t)))

	newEnd := time.Date(2027, 1, 15, 12, 0, 0, 0, time.UTC)
	updated := eventPayload(t, "evt_2", EventCustomerSubscriptionUpdated, map[string]interface{}{
		"id":                 "sub_123",
		"object":             "subscription",
		"customer":           "cus_Steve",
		"status":             "past_due",
		"current_period_end": newEnd.Unix(),
	})
	require.NoError(t, f.deliver(updated))

	row := f.store.subscriptionRows("Steve")[0]
	assert.Equal(t, models.SubscriptionStatusInactive, row.Status)
	assert.True(t, row.EndDate.Equal(newEnd))
	assert.Equal(t, "evt_2", row.LastEventRef)
	assert.Equal(t, GrantSync, f.enqueuer.grants[len(f.enqueuer.grants)-1].Kind)

	reactivated := eventPayload(t, "evt_3", EventCustomerSubscriptionUpdated, map[string]interface{}{
		"id":                 "sub_123",
		"object":             "subscription",
		"customer":           "cus_Steve",
		"status":             "active",
		"current_period_end": newEnd.Unix(),
	})
	require.NoError(t, f.deliver(reactivated))
	assert.Equal(t, models.SubscriptionStatusActive, f.store.subscriptionRows("Steve")[0].Status)
}

func TestHandleWebhookSubscriptionUpdatedWithoutKnownOwnerSkips(t *testing.T) {
	f := newReconcilerFixture()
	delete(f.gateway.usernames, "cus_Steve")

	updated := eventPayload(t, "evt_2", EventCustomerSubscriptionUpdated, map[string]interface{}{
		"id":       "sub_unknown",
		"object":   "subscription",
		"customer": "cus_Steve",
		"status":   "canceled",
	})
	require.NoError(t, f.deliver(updated))
	assert.Empty(t, f.store.subs)
	assert.Empty(t, f.enqueuer.grants)
}

func TestHandleWebhookSubscriptionUpdatedFollowsStoredOwner(t *testing.T) {
	f := newReconcilerFixture()
	require.NoError(t, f.deliver(subscriptionCheckout("evt_1")(t)))

	// Same email buys for a second player; the provider customer keeps Steve's metadata.
	f.gateway.subscription = &ProviderSubscription{
		ID:               "sub_456",
		CustomerID:       "cus_Steve",
		Status:           "active",
		CurrentPeriodEnd: time.Date(2026, 11, 20, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.deliver(eventPayload(t, "evt_2", EventCheckoutSessionCompleted, map[string]interface{}{
		"id":             "cs_test_alex",
		"object":         "checkout.session",
		"customer":       "cus_Steve",
		"amount_total":   1490,
		"payment_status": "paid",
		"mode":           "subscription",
		"customer_details": map[string]interface{}{
			"email": "steve@example.com",
		},
		"metadata": map[string]interface{}{
			"username":     "Alex",
			"product_type": "subscription",
			"product_id":   "vip",
		},
	})))
	require.Len(t, f.store.subscriptionRows("Alex"), 1)

	f.cache.deletes = nil
	require.NoError(t, f.deliver(eventPayload(t, "evt_3", EventCustomerSubscriptionUpdated, map[string]interface{}{
		"id":       "sub_456",
		"object":   "subscription",
		"customer": "cus_Steve",
		"status":   "past_due",
	})))

	assert.Equal(t, models.SubscriptionStatusInactive, f.store.subscriptionRows("Alex")[0].Status)
	assert.Equal(t, models.SubscriptionStatusActive, f.store.subscriptionRows("Steve")[0].Status)

	last := f.enqueuer.grants[len(f.enqueuer.grants)-1]
	assert.Equal(t, GrantSync, last.Kind)
	assert.Equal(t, "Alex", last.Username)
	assert.Equal(t, []string{"subscription_status:alex"}, f.cache.deletes)

	require.NoError(t, f.deliver(eventPayload(t, "evt_4", EventCustomerSubscriptionDeleted, map[string]interface{}{
		"id":       "sub_456",
		"object":   "subscription",
		"customer": "cus_Steve",
		"status":   "canceled",
	})))
	assert.Equal(t, models.SubscriptionStatusCanceled, f.store.subscriptionRows("Alex")[0].Status)
	assert.Equal(t, "Alex", f.enqueuer.grants[len(f.enqueuer.grants)-1].Username)
}

func TestHandleWebhookSubscriptionDeleted(t *testing.T) {
	f := newReconcilerFixture()
	require.NoError(t, f.deliver(subscriptionCheckout("evt_1")(t)))

	deleted := eventPayload(t, "evt_2", EventCustomerSubscriptionDeleted, map[string]interface{}{
		"id":       "sub_123",
		"object":   "subscription",
		"customer": "cus_Steve",
		"status":   "canceled",
	})
	require.NoError(t, f.deliver(deleted))

	row := f.store.subscriptionRows("Steve")[0]
	assert.Equal(t, models.SubscriptionStatusCanceled, row.Status)
	assert.Equal(t, "evt_2", row.LastEventRef)
}

func TestHandleWebhookUnknownEventAcknowledged(t *testing.T) {
	f := newReconcilerFixture()
	payload := eventPayload(t, "evt_9", "invoice.paid", map[string]interface{}{"id": "in_1", "object": "invoice"})

	require.NoError(t, f.deliver(payload))
	assert.Empty(t, f.store.subs)
	assert.Empty(t, f.store.orders)
	require.Len(t, f.store.events, 1)
	assert.NotNil(t, f.store.events[0].ProcessedAt)
}

func TestHandleWebhookStoreFailureIsRetryable(t *testing.T) {
	f := newReconcilerFixture()
	payload := subscriptionCheckout("evt_1")(t)

	f.store.failOn = "upsert"
	err := f.deliver(payload)
	require.Error(t, err)
	assert.False(t, IsSignatureError(err))
	var ue *UpstreamError
	assert.True(t, errors.As(err, &ue))
	require.Len(t, f.store.events, 1)
	assert.NotEmpty(t, f.store.events[0].ProcessingError)
	assert.Empty(t, f.enqueuer.grants)

	// The provider redelivers once the store is back.
	f.store.failOn = ""
	require.NoError(t, f.deliver(payload))
	assert.Len(t, f.store.subscriptionRows("Steve"), 1)
	assert.Len(t, f.enqueuer.grants, 1)
	assert.Empty(t, f.store.events[0].ProcessingError)
}

func TestHandleWebhookEnqueueFailureIsRetryable(t *testing.T) {
	f := newReconcilerFixture()
	payload := subscriptionCheckout("evt_1")(t)

	f.enqueuer.err = errors.New("redis down")
	require.Error(t, f.deliver(payload))
	assert.Len(t, f.store.subscriptionRows("Steve"), 1, "store write is kept")

	f.enqueuer.err = nil
	require.NoError(t, f.deliver(payload))
	assert.Len(t, f.enqueuer.grants, 1)
}

func TestCheckoutToEntitlementScenario(t *testing.T) {
	f := newReconcilerFixture()
	svc := NewCheckoutService(f.gateway, "brl", "")
	repos := f.store.repositories()
	resolver := NewStatusResolver(repos.Subscription, repos.Order, WithResolverCache(f.cache, time.Minute))

	before := resolver.ResolveOrFree(context.Background(), "Steve")
	assert.Equal(t, entitlements.PlanFree, before.SubscriptionType)

	res, err := svc.CreateCheckoutSession(context.Background(), CheckoutRequest{
		Username:    "Steve",
		Email:       "steve@example.com",
		ProductType: "subscription",
		ProductID:   "vip",
		Price:       19.90,
		ProductName: "VIP",
	}, "https://shop.example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, res.URL)
	assert.Equal(t, int64(1990), f.gateway.sessions[0].UnitAmount)

	require.NoError(t, f.deliver(subscriptionCheckout("evt_steve")(t)))

	rows := f.store.subscriptionRows("Steve")
	require.Len(t, rows, 1)
	assert.Equal(t, "vip", rows[0].SubscriptionType)
	assert.Equal(t, models.SubscriptionStatusActive, rows[0].Status)

	after, err := resolver.Resolve(context.Background(), "Steve")
	require.NoError(t, err)
	assert.Equal(t, entitlements.PlanVIP, after.SubscriptionType)
	require.NotNil(t, after.SubscriptionEnd)
}
