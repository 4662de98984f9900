package checkoutflow

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackmine/storefront/internal/pkg/billing"
	"github.com/jackmine/storefront/internal/pkg/catalog"
)

// State is a step of the checkout form.
type State string

const (
	StateForm        State = "form"
	StateValidating  State = "validating"
	StateSubmitting  State = "submitting"
	StateRedirecting State = "redirecting"
	StateError       State = "error"
)

// RetryNotice is shown when the checkout session could not be created.
const RetryNotice = "We could not start the payment. Please try again in a moment."

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// ErrNotSubmittable is returned when Submit is called while a submission is
// in flight or the browser is already being redirected.
var ErrNotSubmittable = errors.New("checkout form is not accepting input")

// Creator creates checkout sessions.
type Creator interface {
	CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest, origin string) (*billing.CheckoutResult, error)
}

// FieldErrors flags the inputs that failed local validation.
type FieldErrors struct {
	Username bool
	Email    bool
}

func (e FieldErrors) Any() bool {
	return e.Username || e.Email
}

// Flow drives one checkout form. It is scoped to a single request and holds
// the values entered so far.
type Flow struct {
	product catalog.Product
	creator Creator
	origin  string

	state       State
	history     []State
	Username    string
	Email       string
	Errors      FieldErrors
	Notice      string
	RedirectURL string
}

func New(product catalog.Product, creator Creator, origin string) *Flow {
	return &Flow{
		product: product,
		creator: creator,
		origin:  origin,
		state:   StateForm,
		history: []State{StateForm},
	}
}

func (f *Flow) State() State {
	return f.state
}

// History lists every state the flow passed through, starting with form.
func (f *Flow) History() []State {
	out := make([]State, len(f.history))
	copy(out, f.history)
	return out
}

// Editable reports whether the form accepts input.
func (f *Flow) Editable() bool {
	return f.state == StateForm || f.state == StateError
}

func (f *Flow) transition(to State) {
	f.state = to
	f.history = append(f.history, to)
}

// Submit validates the entered values locally and, when they pass, asks the
// creator for a checkout session. There is no automatic retry: a failed
// submission leaves the flow in StateError with the values kept.
func (f *Flow) Submit(ctx context.Context, username, email string) (State, error) {
	if !f.Editable() {
		return f.state, ErrNotSubmittable
	}

	f.Username = username
	f.Email = email
	f.Notice = ""
	f.RedirectURL = ""

	f.transition(StateValidating)
	f.Errors = Validate(username, email)
	if f.Errors.Any() {
		f.transition(StateForm)
		return f.state, nil
	}

	f.transition(StateSubmitting)
	res, err := f.creator.CreateCheckoutSession(ctx, billing.CheckoutRequest{
		Username:    strings.TrimSpace(username),
		Email:       strings.TrimSpace(email),
		ProductType: f.product.Type,
		ProductID:   f.product.ID,
		Price:       f.product.Price,
		ProductName: f.product.Name,
	}, f.origin)
	if err != nil {
		f.Notice = RetryNotice
		f.transition(StateError)
		return f.state, err
	}

	f.RedirectURL = res.URL
	f.transition(StateRedirecting)
	return f.state, nil
}

// Validate runs the local field checks.
func Validate(username, email string) FieldErrors {
	return FieldErrors{
		Username: strings.TrimSpace(username) == "",
		Email:    !emailPattern.MatchString(strings.TrimSpace(email)),
	}
}
