package jobqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jackmine/storefront/app/models"
	"github.com/jackmine/storefront/app/repository"
	"github.com/jackmine/storefront/internal/pkg/billing"
	"github.com/jackmine/storefront/internal/pkg/entitlements"
	"github.com/jackmine/storefront/internal/pkg/gameserver"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

type accountCall struct {
	Key      string
	Username string
	Plan     entitlements.Plan
	Days     int
	ItemID   string
	Quantity int
}

type fakeAccounts struct {
	mu    sync.Mutex
	calls []accountCall
	err   error
}

func (f *fakeAccounts) UpdatePlayerAccount(ctx context.Context, key, username string, plan entitlements.Plan, days int) (*gameserver.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, accountCall{Key: key, Username: username, Plan: plan, Days: days})
	if f.err != nil {
		return nil, f.err
	}
	return &gameserver.Result{Success: true, Message: "ok"}, nil
}

func (f *fakeAccounts) AddItemToPlayer(ctx context.Context, key, username, itemID string, qty int) (*gameserver.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, accountCall{Key: key, Username: username, ItemID: itemID, Quantity: qty})
	if f.err != nil {
		return nil, f.err
	}
	return &gameserver.Result{Success: true, Message: "ok"}, nil
}

func (f *fakeAccounts) Calls() []accountCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]accountCall, len(f.calls))
	copy(out, f.calls)
	return out
}

type fakePlans struct {
	status *billing.SubscriptionStatus
	err    error
}

func (f *fakePlans) Resolve(ctx context.Context, username string) (*billing.SubscriptionStatus, error) {
	return f.status, f.err
}

type sentMail struct {
	To, Subject, Body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

type fakeSubscriptions struct {
	mu      sync.Mutex
	cutoffs []time.Time
	expired int64
	err     error
}

func (f *fakeSubscriptions) Upsert(ctx context.Context, sub *models.Subscription) error { return nil }

func (f *fakeSubscriptions) ListActive(ctx context.Context, username string) ([]models.Subscription, error) {
	return nil, nil
}

func (f *fakeSubscriptions) FindByExternalRef(ctx context.Context, ref string) (*models.Subscription, error) {
	return nil, nil
}

func (f *fakeSubscriptions) UpdateByExternalRef(ctx context.Context, ref string, update repository.SubscriptionUpdate) (int64, error) {
	return 0, nil
}

func (f *fakeSubscriptions) ExpireOverdue(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.expired, f.err
}

func (f *fakeSubscriptions) Cutoffs() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Time, len(f.cutoffs))
	copy(out, f.cutoffs)
	return out
}

type fakeInvalidator struct {
	prefixes []string
}

func (f *fakeInvalidator) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	f.prefixes = append(f.prefixes, prefix)
	return 1, nil
}

// runNext dequeues and processes one job synchronously.
func runNext(t *testing.T, q *Queue) *Job {
	t.Helper()
	job, err := q.dequeueJob(context.Background())
	require.NoError(t, err)
	q.processJob(context.Background(), job)
	return job
}
