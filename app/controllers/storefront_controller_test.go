package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackmine/storefront/internal/pkg/billing"
	"github.com/jackmine/storefront/internal/pkg/checkoutflow"
	"github.com/jackmine/storefront/internal/pkg/entitlements"
	"github.com/jackmine/storefront/internal/pkg/session"
)

type fakeCreator struct {
	url    string
	err    error
	calls  int
	req    billing.CheckoutRequest
	origin string
}

func (f *fakeCreator) CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest, origin string) (*billing.CheckoutResult, error) {
	f.calls++
	f.req = req
	f.origin = origin
	if f.err != nil {
		return nil, f.err
	}
	return &billing.CheckoutResult{URL: f.url}, nil
}

type fakeStatus struct {
	status   *billing.SubscriptionStatus
	err      error
	username string
}

func (f *fakeStatus) Resolve(ctx context.Context, username string) (*billing.SubscriptionStatus, error) {
	f.username = username
	if f.err != nil {
		return nil, f.err
	}
	return f.status, nil
}

func (f *fakeStatus) ResolveOrFree(ctx context.Context, username string) *billing.SubscriptionStatus {
	status, err := f.Resolve(ctx, username)
	if err != nil {
		return billing.FreeStatus()
	}
	return status
}

type fakeWebhooks struct {
	err       error
	payload   string
	signature string
}

func (f *fakeWebhooks) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	f.payload = string(payload)
	f.signature = signature
	return f.err
}

type fakeCaptcha struct {
	pass  bool
	token string
}

func (f *fakeCaptcha) Enabled() bool { return true }

func (f *fakeCaptcha) Verify(ctx context.Context, token string) (bool, error) {
	f.token = token
	return f.pass, nil
}

type harness struct {
	app      *fiber.App
	creator  *fakeCreator
	status   *fakeStatus
	webhooks *fakeWebhooks
}

func newHarness(t *testing.T, captcha CaptchaVerifier) *harness {
	t.Helper()
	session.UseStore(session.NewStore(nil))

	h := &harness{
		creator:  &fakeCreator{url: "https://checkout.stripe.test/c/pay/cs_1"},
		status:   &fakeStatus{status: billing.FreeStatus()},
		webhooks: &fakeWebhooks{},
	}
	sc := NewStorefrontController(StorefrontDeps{
		Checkout:       h.creator,
		Status:         h.status,
		Webhooks:       h.webhooks,
		Captcha:        captcha,
		CaptchaSiteKey: "site-key",
		ServerAddress:  "play.jackmine.net",
		RequestTimeout: time.Second,
	})

	app := fiber.New()
	app.Get("/", sc.HandleStart)
	app.Get("/store", sc.HandleStore)
	app.Get("/subscriptions", sc.HandleSubscriptions)
	app.Get("/payment/success", sc.HandlePaymentSuccess)
	app.Get("/checkout/item/:itemId", sc.HandleCheckoutItem)
	app.Post("/checkout/item/:itemId", sc.HandleCheckoutItemSubmit)
	app.Get("/checkout/:type", sc.HandleCheckoutPlan)
	app.Post("/checkout/:type", sc.HandleCheckoutPlanSubmit)
	app.Post("/api/create-checkout", sc.HandleCreateCheckout)
	app.Post("/api/check-subscription", sc.HandleCheckSubscription)
	app.Post("/api/stripe-webhook", sc.HandleStripeWebhook)
	h.app = app
	return h
}

func (h *harness) do(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func jsonRequest(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func formRequest(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestCreateCheckout_ReturnsURL(t *testing.T) {
	h := newHarness(t, nil)
	req := jsonRequest("/api/create-checkout",
		`{"username":"Steve","email":"steve@example.com","productType":"item","productId":"elytra","price":25,"productName":"Elytra"}`)
	req.Header.Set("Origin", "https://shop.jackmine.net")

	resp, body := h.do(t, req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"url":"https://checkout.stripe.test/c/pay/cs_1"}`, body)
	assert.Equal(t, "https://shop.jackmine.net", h.creator.origin)
	assert.Equal(t, "elytra", h.creator.req.ProductID)
	assert.Equal(t, 25.0, h.creator.req.Price)
}

func TestCreateCheckout_ErrorsAnswer500(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		err     error
		message string
	}{
		{"validation", `{"username":""}`, &billing.ValidationError{Field: "username", Message: "is required"}, "username: is required"},
		{"upstream", `{"username":"Steve"}`, &billing.UpstreamError{Op: "create checkout session", Err: errors.New("card network down")}, "create checkout session: card network down"},
		{"malformed body", `{`, nil, "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.creator.err = tt.err

			resp, body := h.do(t, jsonRequest("/api/create-checkout", tt.body))

			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
			var got map[string]string
			require.NoError(t, json.Unmarshal([]byte(body), &got))
			assert.Equal(t, tt.message, got["error"])
		})
	}
}

func TestCheckSubscription(t *testing.T) {
	h := newHarness(t, nil)
	end := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	h.status.status = &billing.SubscriptionStatus{
		SubscriptionType: entitlements.PlanTop,
		SubscriptionEnd:  &end,
		Orders:           []billing.OrderSummary{},
	}

	resp, body := h.do(t, jsonRequest("/api/check-subscription", `{"username":"Alex"}`))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Alex", h.status.username)
	assert.JSONEq(t, `{"subscriptionType":"TOP","subscriptionEnd":"2026-11-01T00:00:00Z","orders":[]}`, body)
}

func TestCheckSubscription_FailureAnswers500(t *testing.T) {
	h := newHarness(t, nil)
	h.status.err = &billing.UpstreamError{Op: "query subscriptions", Err: errors.New("db down")}

	resp, body := h.do(t, jsonRequest("/api/check-subscription", `{"username":"Alex"}`))

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body, "db down")
}

func TestStripeWebhook(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"applied", nil, http.StatusOK, `{"received":true}`},
		{"bad signature", billing.ErrInvalidSignature, http.StatusBadRequest, `{"error":"Webhook Error: invalid webhook signature"}`},
		{"store failure", errors.New("insert order: deadlock"), http.StatusInternalServerError, `{"error":"insert order: deadlock"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.webhooks.err = tt.err
			req := httptest.NewRequest(http.MethodPost, "/api/stripe-webhook", strings.NewReader(`{"id":"evt_1"}`))
			req.Header.Set("Stripe-Signature", "t=1,v1=abc")

			resp, body := h.do(t, req)

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.JSONEq(t, tt.body, body)
			assert.Equal(t, `{"id":"evt_1"}`, h.webhooks.payload)
			assert.Equal(t, "t=1,v1=abc", h.webhooks.signature)
		})
	}
}

func TestCheckoutPage_UnknownProductRedirects(t *testing.T) {
	h := newHarness(t, nil)

	resp, _ := h.do(t, httptest.NewRequest(http.MethodGet, "/checkout/diamond", nil))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp, _ = h.do(t, httptest.NewRequest(http.MethodGet, "/checkout/free", nil))
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp, _ = h.do(t, httptest.NewRequest(http.MethodGet, "/checkout/item/netherite-pickaxe", nil))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/store", resp.Header.Get("Location"))
}

func TestCheckoutPage_RendersSummary(t *testing.T) {
	h := newHarness(t, nil)

	resp, body := h.do(t, httptest.NewRequest(http.MethodGet, "/checkout/vip", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "VIP Monthly")
	assert.Contains(t, body, "R$ 14.90")
	assert.Contains(t, body, `action="/checkout/vip"`)
	assert.NotContains(t, body, "h-captcha")
}

func TestCheckoutSubmit_RedirectsAndRemembersBuyer(t *testing.T) {
	h := newHarness(t, nil)
	req := formRequest("/checkout/item/elytra", url.Values{"username": {" Steve "}, "email": {"steve@example.com"}})
	req.Header.Set("Origin", "https://shop.jackmine.net")

	resp, _ := h.do(t, req)

	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "https://checkout.stripe.test/c/pay/cs_1", resp.Header.Get("Location"))
	assert.Equal(t, "Steve", h.creator.req.Username)
	assert.Equal(t, "item", h.creator.req.ProductType)
	assert.Equal(t, "Elytra", h.creator.req.ProductName)
	assert.Equal(t, "https://shop.jackmine.net", h.creator.origin)

	var sessionCookie *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == "session_id" {
			sessionCookie = ck
		}
	}
	require.NotNil(t, sessionCookie)

	next := httptest.NewRequest(http.MethodGet, "/checkout/top", nil)
	next.AddCookie(&http.Cookie{Name: sessionCookie.Name, Value: sessionCookie.Value})
	_, body := h.do(t, next)
	assert.Contains(t, body, `value="steve@example.com"`)
}

func TestCheckoutSubmit_FieldErrorsStayLocal(t *testing.T) {
	h := newHarness(t, nil)

	resp, body := h.do(t, formRequest("/checkout/vip", url.Values{"username": {"Steve"}, "email": {"steve@"}}))

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, 0, h.creator.calls)
	assert.Contains(t, body, `data-field="email"`)
	assert.Contains(t, body, `value="Steve"`)
}

func TestCheckoutSubmit_CreatorFailureKeepsValues(t *testing.T) {
	h := newHarness(t, nil)
	h.creator.err = errors.New("provider timeout")

	resp, body := h.do(t, formRequest("/checkout/top", url.Values{"username": {"Alex"}, "email": {"alex@example.com"}}))

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, 1, h.creator.calls)
	assert.Contains(t, body, checkoutflow.RetryNotice)
	assert.Contains(t, body, `value="Alex"`)
	assert.Contains(t, body, `value="alex@example.com"`)
}

func TestCheckoutSubmit_Captcha(t *testing.T) {
	captcha := &fakeCaptcha{}
	h := newHarness(t, captcha)

	resp, body := h.do(t, formRequest("/checkout/vip", url.Values{
		"username": {"Steve"}, "email": {"steve@example.com"}, "h-captcha-response": {"tok"},
	}))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, captchaNotice)
	assert.Contains(t, body, `data-sitekey="site-key"`)
	assert.Equal(t, "tok", captcha.token)
	assert.Equal(t, 0, h.creator.calls)

	captcha.pass = true
	resp, _ = h.do(t, formRequest("/checkout/vip", url.Values{
		"username": {"Steve"}, "email": {"steve@example.com"}, "h-captcha-response": {"tok"},
	}))
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, 1, h.creator.calls)
}

func TestStorePages(t *testing.T) {
	h := newHarness(t, nil)

	resp, body := h.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `href="/checkout/vip"`)

	_, body = h.do(t, httptest.NewRequest(http.MethodGet, "/store?category=weapons", nil))
	assert.Contains(t, body, "/checkout/item/enchanted-diamond-sword")
	assert.NotContains(t, body, "/checkout/item/elytra")

	_, body = h.do(t, httptest.NewRequest(http.MethodGet, "/store?category=nope", nil))
	assert.Contains(t, body, "/checkout/item/elytra")
}

func TestSubscriptionsPage_FallsBackToFree(t *testing.T) {
	h := newHarness(t, nil)
	h.status.err = errors.New("db down")

	resp, body := h.do(t, httptest.NewRequest(http.MethodGet, "/subscriptions?username=Steve", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Steve", h.status.username)
	assert.Contains(t, body, "Steve is on <strong>FREE</strong>")
}

func TestPaymentSuccess_ShowsServerAddress(t *testing.T) {
	h := newHarness(t, nil)

	resp, body := h.do(t, httptest.NewRequest(http.MethodGet, "/payment/success", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "play.jackmine.net")
	assert.Empty(t, h.status.username)
	assert.NotContains(t, body, "current plan")
}
