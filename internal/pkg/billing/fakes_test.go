package billing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackmine/storefront/app/models"
	"github.com/jackmine/storefront/app/repository"
)

// memStore is an in-memory entitlement store honouring the same unique keys as the SQL schema.
type memStore struct {
	mu     sync.Mutex
	subs   []models.Subscription
	orders []models.Order
	events []models.WebhookEvent
	writes int
	failOn string
}

func newMemStore() *memStore {
	return &memStore{}
}

func (m *memStore) repositories() *repository.Repositories {
	return &repository.Repositories{
		Subscription: &memSubscriptions{m},
		Order:        &memOrders{m},
		WebhookEvent: &memEvents{m},
	}
}

func (m *memStore) fail(op string) error {
	if m.failOn == op {
		return errors.New(op + " failed")
	}
	return nil
}

func (m *memStore) subscriptionRows(username string) []models.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Subscription
	for _, s := range m.subs {
		if s.Username == username {
			out = append(out, s)
		}
	}
	return out
}

func (m *memStore) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

type memSubscriptions struct{ m *memStore }

func (r *memSubscriptions) Upsert(ctx context.Context, sub *models.Subscription) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("upsert"); err != nil {
		return err
	}
	r.m.writes++
	for i := range r.m.subs {
		s := &r.m.subs[i]
		if s.Username == sub.Username && s.SubscriptionType == sub.SubscriptionType {
			s.Email = sub.Email
			s.ExternalCustomerRef = sub.ExternalCustomerRef
			s.ExternalSubscriptionRef = sub.ExternalSubscriptionRef
			s.EndDate = sub.EndDate
			s.Status = sub.Status
			s.LastEventRef = sub.LastEventRef
			s.UpdatedAt = time.Now()
			*sub = *s
			return nil
		}
	}
	sub.ID = uint(len(r.m.subs) + 1)
	sub.CreatedAt = time.Now()
	sub.UpdatedAt = sub.CreatedAt
	r.m.subs = append(r.m.subs, *sub)
	return nil
}

func (r *memSubscriptions) ListActive(ctx context.Context, username string) ([]models.Subscription, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("find"); err != nil {
		return nil, err
	}
	var active []models.Subscription
	for _, s := range r.m.subs {
		if s.Username == username && s.Status == models.SubscriptionStatusActive {
			active = append(active, s)
		}
	}
	return active, nil
}

func (r *memSubscriptions) FindByExternalRef(ctx context.Context, ref string) (*models.Subscription, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("find"); err != nil {
		return nil, err
	}
	for _, s := range r.m.subs {
		if s.ExternalSubscriptionRef == ref {
			found := s
			return &found, nil
		}
	}
	return nil, nil
}

func (r *memSubscriptions) UpdateByExternalRef(ctx context.Context, ref string, update repository.SubscriptionUpdate) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("update"); err != nil {
		return 0, err
	}
	r.m.writes++
	var n int64
	for i := range r.m.subs {
		s := &r.m.subs[i]
		if s.ExternalSubscriptionRef != ref {
			continue
		}
		s.Status = update.Status
		s.LastEventRef = update.LastEventRef
		if update.EndDate != nil {
			s.EndDate = update.EndDate
		}
		n++
	}
	return n, nil
}

func (r *memSubscriptions) ExpireOverdue(ctx context.Context, cutoff time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for i := range r.m.subs {
		s := &r.m.subs[i]
		if s.Status == models.SubscriptionStatusActive && s.EndDate != nil && s.EndDate.Before(cutoff) {
			s.Status = models.SubscriptionStatusInactive
			n++
		}
	}
	return n, nil
}

type memOrders struct{ m *memStore }

func (r *memOrders) CreateIfNotExists(ctx context.Context, order *models.Order) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("order"); err != nil {
		return false, err
	}
	r.m.writes++
	for _, o := range r.m.orders {
		if o.ExternalSessionRef == order.ExternalSessionRef {
			return false, nil
		}
	}
	order.ID = uint(len(r.m.orders) + 1)
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	r.m.orders = append(r.m.orders, *order)
	return true, nil
}

func (r *memOrders) ListRecentCompleted(ctx context.Context, username string, limit int) ([]models.Order, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("orders"); err != nil {
		return nil, err
	}
	var out []models.Order
	for _, o := range r.m.orders {
		if o.Username == username && o.Status == models.OrderStatusCompleted {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memEvents struct{ m *memStore }

func (r *memEvents) CreateIfNotExists(ctx context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("event"); err != nil {
		return false, nil, err
	}
	for _, e := range r.m.events {
		if e.Provider == event.Provider && e.ProviderEventID == event.ProviderEventID {
			stored := e
			return false, &stored, nil
		}
	}
	r.m.writes++
	event.ID = uint(len(r.m.events) + 1)
	r.m.events = append(r.m.events, *event)
	stored := *event
	return true, &stored, nil
}

func (r *memEvents) MarkProcessed(ctx context.Context, id uint, processingError string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.writes++
	for i := range r.m.events {
		if r.m.events[i].ID == id {
			now := time.Now()
			r.m.events[i].ProcessedAt = &now
			r.m.events[i].ProcessingError = processingError
		}
	}
	return nil
}

// fakeGateway records what the services ask of the provider.
type fakeGateway struct {
	mu           sync.Mutex
	customers    map[string]string
	usernames    map[string]string
	sessions     []SessionParams
	subscription *ProviderSubscription
	url          string
	err          error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		customers: map[string]string{},
		usernames: map[string]string{},
		url:       "https://checkout.stripe.com/c/pay/cs_test_123",
	}
}

func (g *fakeGateway) FindOrCreateCustomer(ctx context.Context, email, username string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	if id, ok := g.customers[email]; ok {
		return id, nil
	}
	id := "cus_" + username
	g.customers[email] = id
	g.usernames[id] = username
	return id, nil
}

func (g *fakeGateway) CreateSession(ctx context.Context, params SessionParams) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.sessions = append(g.sessions, params)
	return g.url, nil
}

func (g *fakeGateway) LatestSubscription(ctx context.Context, customerID string) (*ProviderSubscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	return g.subscription, nil
}

func (g *fakeGateway) CustomerUsername(ctx context.Context, customerID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	return g.usernames[customerID], nil
}

// fakeEnqueuer collects queued jobs.
type fakeEnqueuer struct {
	mu       sync.Mutex
	grants   []Grant
	receipts []Grant
	err      error
}

func (e *fakeEnqueuer) EnqueueGrant(ctx context.Context, g Grant) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.grants = append(e.grants, g)
	return nil
}

func (e *fakeEnqueuer) EnqueueReceipt(ctx context.Context, g Grant) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.receipts = append(e.receipts, g)
	return nil
}

// mapCache is a StatusCache over a plain map.
type mapCache struct {
	mu      sync.Mutex
	entries map[string]*SubscriptionStatus
	deletes []string
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string]*SubscriptionStatus{}}
}

func (c *mapCache) GetJSON(ctx context.Context, key string, dst interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	*(dst.(*SubscriptionStatus)) = *v
	return true, nil
}

func (c *mapCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := *(value.(*SubscriptionStatus))
	c.entries[key] = &v
	return nil
}

func (c *mapCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.deletes = append(c.deletes, key)
	return nil
}
