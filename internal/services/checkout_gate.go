package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/areebabashir/intrnecommerceproj1/internal/domain"
)

var (
	// ErrCheckoutStepInvalid indicates the current step has validation errors.
	ErrCheckoutStepInvalid = errors.New("checkout gate: step invalid")
	// ErrCheckoutInvalidField indicates an unknown form section or field.
	ErrCheckoutInvalidField = errors.New("checkout gate: invalid field")
	// ErrCheckoutInvalidTransition indicates the requested move is not allowed from the current step.
	ErrCheckoutInvalidTransition = errors.New("checkout gate: invalid transition")
	// ErrCheckoutEmptyCart indicates confirmation was attempted without items.
	ErrCheckoutEmptyCart = errors.New("checkout gate: cart is empty")

	errCheckoutCartRequired = errors.New("checkout gate: cart is required")
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// FieldErrors maps form field names to messages.
type FieldErrors map[string]string

// CheckoutValidationError carries the field errors of a failed step.
type CheckoutValidationError struct {
	Step   domain.CheckoutStep
	Fields FieldErrors
}

func (e *CheckoutValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("checkout step %s invalid: %s", e.Step, strings.Join(names, ", "))
}

// Unwrap exposes ErrCheckoutStepInvalid.
func (e *CheckoutValidationError) Unwrap() error {
	return ErrCheckoutStepInvalid
}

type fieldAccessor func(form *domain.CheckoutForm) *string

var checkoutFields = map[string]map[string]fieldAccessor{
	"contactInfo": {
		"email": func(f *domain.CheckoutForm) *string { return &f.Contact.Email },
	},
	"shippingInfo": {
		"firstName":     func(f *domain.CheckoutForm) *string { return &f.Shipping.FirstName },
		"lastName":      func(f *domain.CheckoutForm) *string { return &f.Shipping.LastName },
		"country":       func(f *domain.CheckoutForm) *string { return &f.Shipping.Country },
		"streetAddress": func(f *domain.CheckoutForm) *string { return &f.Shipping.StreetAddress },
		"addressLine2":  func(f *domain.CheckoutForm) *string { return &f.Shipping.AddressLine2 },
		"city":          func(f *domain.CheckoutForm) *string { return &f.Shipping.City },
		"state":         func(f *domain.CheckoutForm) *string { return &f.Shipping.State },
		"zipCode":       func(f *domain.CheckoutForm) *string { return &f.Shipping.ZipCode },
		"phoneNumber":   func(f *domain.CheckoutForm) *string { return &f.Shipping.PhoneNumber },
	},
	"paymentInfo": {
		"paymentMethod":  func(f *domain.CheckoutForm) *string { return &f.Payment.PaymentMethod },
		"cardNumber":     func(f *domain.CheckoutForm) *string { return &f.Payment.CardNumber },
		"expiryDate":     func(f *domain.CheckoutForm) *string { return &f.Payment.ExpiryDate },
		"cvv":            func(f *domain.CheckoutForm) *string { return &f.Payment.CVV },
		"cardholderName": func(f *domain.CheckoutForm) *string { return &f.Payment.CardholderName },
	},
}

type requiredField struct {
	name    string
	message string
	value   func(form domain.CheckoutForm) string
}

var shippingRequired = []requiredField{
	{"firstName", "First name is required", func(f domain.CheckoutForm) string { return f.Shipping.FirstName }},
	{"lastName", "Last name is required", func(f domain.CheckoutForm) string { return f.Shipping.LastName }},
	{"streetAddress", "Address is required", func(f domain.CheckoutForm) string { return f.Shipping.StreetAddress }},
	{"city", "City is required", func(f domain.CheckoutForm) string { return f.Shipping.City }},
	{"state", "State is required", func(f domain.CheckoutForm) string { return f.Shipping.State }},
	{"zipCode", "ZIP code is required", func(f domain.CheckoutForm) string { return f.Shipping.ZipCode }},
	{"phoneNumber", "Phone number is required", func(f domain.CheckoutForm) string { return f.Shipping.PhoneNumber }},
}

var paymentRequired = []requiredField{
	{"cardNumber", "Card number is required", func(f domain.CheckoutForm) string { return f.Payment.CardNumber }},
	{"expiryDate", "Expiry date is required", func(f domain.CheckoutForm) string { return f.Payment.ExpiryDate }},
	{"cvv", "CVV is required", func(f domain.CheckoutForm) string { return f.Payment.CVV }},
	{"cardholderName", "Cardholder name is required", func(f domain.CheckoutForm) string { return f.Payment.CardholderName }},
}

// NewCheckoutForm returns an empty form with the storefront defaults.
func NewCheckoutForm() domain.CheckoutForm {
	return domain.CheckoutForm{
		Shipping: domain.ShippingInfo{Country: "United States"},
		Payment:  domain.PaymentInfo{PaymentMethod: "credit"},
	}
}

// ValidateCheckoutStep returns the field errors of step for form. Steps without input validate clean.
func ValidateCheckoutStep(form domain.CheckoutForm, step domain.CheckoutStep) FieldErrors {
	errs := FieldErrors{}
	switch step {
	case domain.CheckoutStepContact:
		email := strings.TrimSpace(form.Contact.Email)
		switch {
		case email == "":
			errs["email"] = "Email is required"
		case !emailPattern.MatchString(email):
			errs["email"] = "Invalid email format"
		}
	case domain.CheckoutStepShipping:
		collectRequired(errs, form, shippingRequired)
	case domain.CheckoutStepPayment:
		collectRequired(errs, form, paymentRequired)
	}
	return errs
}

func collectRequired(errs FieldErrors, form domain.CheckoutForm, fields []requiredField) {
	for _, field := range fields {
		if strings.TrimSpace(field.value(form)) == "" {
			errs[field.name] = field.message
		}
	}
}

// CheckoutView is the display state of the wizard. Card number and CVV are never included.
type CheckoutView struct {
	Step         domain.CheckoutStep
	Form         domain.CheckoutForm
	Errors       FieldErrors
	Summary      domain.CheckoutSummary
	Cart         CartSnapshot
	Confirmation *domain.CheckoutConfirmation
}

// CheckoutGateDeps wires a per-session checkout wizard.
type CheckoutGateDeps struct {
	Cart        *CartStore
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

// CheckoutGate is the linear contact, shipping, payment, preview, confirmation wizard. Form data
// lives only in memory.
type CheckoutGate struct {
	cart   *CartStore
	now    func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)

	mu           sync.Mutex
	step         domain.CheckoutStep
	form         domain.CheckoutForm
	errors       FieldErrors
	confirmation *domain.CheckoutConfirmation
}

// NewCheckoutGate constructs a gate starting at the contact step.
func NewCheckoutGate(deps CheckoutGateDeps) (*CheckoutGate, error) {
	if deps.Cart == nil {
		return nil, errCheckoutCartRequired
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &CheckoutGate{
		cart:   deps.Cart,
		now:    func() time.Time { return clock().UTC() },
		newID:  newID,
		logger: logger,
		step:   domain.CheckoutStepContact,
		form:   NewCheckoutForm(),
		errors: FieldErrors{},
	}, nil
}

// SetField updates one form field and clears its error.
func (g *CheckoutGate) SetField(section, field, value string) (CheckoutView, error) {
	fields, ok := checkoutFields[section]
	if !ok {
		return CheckoutView{}, fmt.Errorf("%w: unknown section %q", ErrCheckoutInvalidField, section)
	}
	accessor, ok := fields[field]
	if !ok {
		return CheckoutView{}, fmt.Errorf("%w: unknown field %q in %s", ErrCheckoutInvalidField, field, section)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.step == domain.CheckoutStepConfirmation {
		return CheckoutView{}, fmt.Errorf("%w: checkout already confirmed", ErrCheckoutInvalidTransition)
	}
	*accessor(&g.form) = value
	delete(g.errors, field)
	return g.viewLocked(), nil
}

// Validate evaluates step against the current form and stores the resulting errors.
func (g *CheckoutGate) Validate(step domain.CheckoutStep) FieldErrors {
	g.mu.Lock()
	defer g.mu.Unlock()
	errs := ValidateCheckoutStep(g.form, step)
	g.errors = errs
	return copyFieldErrors(errs)
}

// Advance moves forward from contact, shipping or payment once the current step validates.
// Leaving the preview requires Confirm.
func (g *CheckoutGate) Advance() (CheckoutView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.step {
	case domain.CheckoutStepContact, domain.CheckoutStepShipping, domain.CheckoutStepPayment:
	case domain.CheckoutStepPreview:
		return g.viewLocked(), fmt.Errorf("%w: confirm the order to leave preview", ErrCheckoutInvalidTransition)
	default:
		return g.viewLocked(), fmt.Errorf("%w: checkout already confirmed", ErrCheckoutInvalidTransition)
	}

	errs := ValidateCheckoutStep(g.form, g.step)
	g.errors = errs
	if len(errs) > 0 {
		return g.viewLocked(), &CheckoutValidationError{Step: g.step, Fields: copyFieldErrors(errs)}
	}
	g.step++
	return g.viewLocked(), nil
}

// Back moves one step backwards, stopping at contact. A confirmed checkout cannot go back.
func (g *CheckoutGate) Back() (CheckoutView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.step == domain.CheckoutStepConfirmation {
		return g.viewLocked(), fmt.Errorf("%w: checkout already confirmed", ErrCheckoutInvalidTransition)
	}
	if g.step > domain.CheckoutStepContact {
		g.step--
	}
	g.errors = FieldErrors{}
	return g.viewLocked(), nil
}

// Summary returns the masked preview of the form.
func (g *CheckoutGate) Summary() domain.CheckoutSummary {
	g.mu.Lock()
	defer g.mu.Unlock()
	return summarize(g.form)
}

// View returns the current wizard state with the live cart.
func (g *CheckoutGate) View() CheckoutView {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.viewLocked()
}

// Confirm finalises the preview: every input step is revalidated, a reference is issued and the
// cart is cleared. Orders are not stored.
func (g *CheckoutGate) Confirm(ctx context.Context) (domain.CheckoutConfirmation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.step != domain.CheckoutStepPreview {
		return domain.CheckoutConfirmation{}, fmt.Errorf("%w: confirm is only allowed from preview", ErrCheckoutInvalidTransition)
	}
	for _, step := range []domain.CheckoutStep{domain.CheckoutStepContact, domain.CheckoutStepShipping, domain.CheckoutStepPayment} {
		if errs := ValidateCheckoutStep(g.form, step); len(errs) > 0 {
			g.step = step
			g.errors = errs
			return domain.CheckoutConfirmation{}, &CheckoutValidationError{Step: step, Fields: copyFieldErrors(errs)}
		}
	}
	placed, ok := g.cart.completeCheckout(ctx)
	if !ok {
		return domain.CheckoutConfirmation{}, ErrCheckoutEmptyCart
	}
	confirmation := domain.CheckoutConfirmation{
		Reference:   g.newID(),
		Items:       placed.Items,
		Totals:      placed.Totals,
		Summary:     summarize(g.form),
		ConfirmedAt: g.now(),
	}
	g.form.Payment.CardNumber = maskedCard(confirmation.Summary.CardLast4)
	g.form.Payment.CVV = ""
	g.step = domain.CheckoutStepConfirmation
	g.errors = FieldErrors{}
	g.confirmation = &confirmation

	g.logger(ctx, "checkout.confirmed", map[string]any{
		"sessionId": g.cart.SessionID(),
		"reference": confirmation.Reference,
		"total":     confirmation.Totals.Total.StringFixed(2),
		"items":     confirmation.Totals.ItemCount,
	})
	return confirmation, nil
}

// Reset clears the form and returns to the contact step.
func (g *CheckoutGate) Reset() CheckoutView {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.step = domain.CheckoutStepContact
	g.form = NewCheckoutForm()
	g.errors = FieldErrors{}
	g.confirmation = nil
	return g.viewLocked()
}

func (g *CheckoutGate) viewLocked() CheckoutView {
	form := g.form
	form.Payment.CardNumber = ""
	form.Payment.CVV = ""
	view := CheckoutView{
		Step:    g.step,
		Form:    form,
		Errors:  copyFieldErrors(g.errors),
		Summary: summarize(g.form),
		Cart:    g.cart.Snapshot(),
	}
	if g.confirmation != nil {
		confirmation := *g.confirmation
		view.Confirmation = &confirmation
	}
	return view
}

func summarize(form domain.CheckoutForm) domain.CheckoutSummary {
	return domain.CheckoutSummary{
		Email:    strings.TrimSpace(form.Contact.Email),
		FullName: strings.TrimSpace(form.Shipping.FirstName + " " + form.Shipping.LastName),
		Address: domain.CheckoutAddress{
			Street:  form.Shipping.StreetAddress,
			Line2:   form.Shipping.AddressLine2,
			City:    form.Shipping.City,
			State:   form.Shipping.State,
			ZipCode: form.Shipping.ZipCode,
			Country: form.Shipping.Country,
		},
		Phone:         form.Shipping.PhoneNumber,
		PaymentMethod: form.Payment.PaymentMethod,
		CardLast4:     cardLast4(form.Payment.CardNumber),
	}
}

// cardLast4 returns the final four runes of a card number. Numbers of four runes or fewer would
// be shown whole, so they yield nothing.
func cardLast4(number string) string {
	digits := []rune(strings.ReplaceAll(strings.TrimSpace(number), " ", ""))
	if len(digits) <= 4 {
		return ""
	}
	return string(digits[len(digits)-4:])
}

// maskedCard is what the form keeps after confirmation; cardLast4 still yields last4 from it.
func maskedCard(last4 string) string {
	if last4 == "" {
		return ""
	}
	return "****" + last4
}

func copyFieldErrors(errs FieldErrors) FieldErrors {
	out := make(FieldErrors, len(errs))
	for k, v := range errs {
		out[k] = v
	}
	return out
}
