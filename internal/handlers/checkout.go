package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/areebabashir/intrnecommerceproj1/internal/domain"
	"github.com/areebabashir/intrnecommerceproj1/internal/platform/format"
	"github.com/areebabashir/intrnecommerceproj1/internal/platform/httpx"
	"github.com/areebabashir/intrnecommerceproj1/internal/services"
)

// CheckoutHandlers drives the session checkout wizard.
type CheckoutHandlers struct {
	sessions services.SessionProvider
}

// NewCheckoutHandlers constructs checkout handlers.
func NewCheckoutHandlers(sessions services.SessionProvider) *CheckoutHandlers {
	return &CheckoutHandlers{sessions: sessions}
}

// Routes wires the /checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getCheckout)
	r.Delete("/", h.resetCheckout)
	r.Patch("/form", h.setField)
	r.Post("/advance", h.advance)
	r.Post("/back", h.back)
	r.Post("/confirm", h.confirm)
}

type checkoutFieldRequest struct {
	Section string `json:"section"`
	Field   string `json:"field"`
	Value   string `json:"value"`
}

type checkoutFormPayload struct {
	ContactInfo  map[string]string `json:"contactInfo"`
	ShippingInfo map[string]string `json:"shippingInfo"`
	PaymentInfo  map[string]string `json:"paymentInfo"`
}

type checkoutSummaryPayload struct {
	Email         string            `json:"email"`
	FullName      string            `json:"fullName"`
	Address       map[string]string `json:"address"`
	Phone         string            `json:"phone"`
	PaymentMethod string            `json:"paymentMethod"`
	CardLast4     string            `json:"cardLast4"`
}

type confirmationPayload struct {
	Reference       string                 `json:"reference"`
	Items           []lineItemPayload      `json:"items"`
	Totals          totalsPayload          `json:"totals"`
	FormattedTotals totalsPayload          `json:"formattedTotals"`
	Summary         checkoutSummaryPayload `json:"summary"`
	ConfirmedAt     string                 `json:"confirmedAt"`
}

type checkoutPayload struct {
	Step         string                 `json:"step"`
	StepNumber   int                    `json:"stepNumber"`
	Form         checkoutFormPayload    `json:"form"`
	Errors       map[string]string      `json:"errors"`
	Summary      checkoutSummaryPayload `json:"summary"`
	Cart         cartPayload            `json:"cart"`
	Confirmation *confirmationPayload   `json:"confirmation"`
}

type checkoutResponse struct {
	Checkout checkoutPayload `json:"checkout"`
}

func (h *CheckoutHandlers) getCheckout(w http.ResponseWriter, r *http.Request) {
	session, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}
	h.writeCheckout(w, r, session.Checkout.View())
}

func (h *CheckoutHandlers) setField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req checkoutFieldRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if strings.TrimSpace(req.Section) == "" || strings.TrimSpace(req.Field) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "section and field are required", http.StatusBadRequest))
		return
	}
	session, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}
	view, err := session.Checkout.SetField(req.Section, req.Field, req.Value)
	if err != nil {
		writeStoreError(ctx, w, err)
		return
	}
	h.writeCheckout(w, r, view)
}

func (h *CheckoutHandlers) advance(w http.ResponseWriter, r *http.Request) {
	session, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}
	view, err := session.Checkout.Advance()
	if err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}
	h.writeCheckout(w, r, view)
}

func (h *CheckoutHandlers) back(w http.ResponseWriter, r *http.Request) {
	session, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}
	view, err := session.Checkout.Back()
	if err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}
	h.writeCheckout(w, r, view)
}

func (h *CheckoutHandlers) confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}
	if _, err := session.Checkout.Confirm(ctx); err != nil {
		writeStoreError(ctx, w, err)
		return
	}
	h.writeCheckout(w, r, session.Checkout.View())
}

func (h *CheckoutHandlers) resetCheckout(w http.ResponseWriter, r *http.Request) {
	session, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}
	h.writeCheckout(w, r, session.Checkout.Reset())
}

func (h *CheckoutHandlers) writeCheckout(w http.ResponseWriter, r *http.Request, view services.CheckoutView) {
	setNoStoreHeaders(w)
	f := format.NewFormatter(r.Header.Get("Accept-Language"))
	httpx.WriteJSON(w, http.StatusOK, checkoutResponse{Checkout: buildCheckoutPayload(view, f)})
}

func buildCheckoutPayload(view services.CheckoutView, f format.Formatter) checkoutPayload {
	errs := make(map[string]string, len(view.Errors))
	for field, message := range view.Errors {
		errs[field] = message
	}
	payload := checkoutPayload{
		Step:       view.Step.String(),
		StepNumber: int(view.Step),
		Form:       buildCheckoutForm(view.Form),
		Errors:     errs,
		Summary:    buildCheckoutSummary(view.Summary),
		Cart:       buildCartPayload(view.Cart, f),
	}
	if c := view.Confirmation; c != nil {
		payload.Confirmation = &confirmationPayload{
			Reference:       c.Reference,
			Items:           buildLineItems(c.Items, f),
			Totals:          buildTotalsPayload(c.Totals),
			FormattedTotals: buildFormattedTotals(c.Totals, f),
			Summary:         buildCheckoutSummary(c.Summary),
			ConfirmedAt:     formatTime(c.ConfirmedAt),
		}
	}
	return payload
}

// buildCheckoutForm echoes the editable form. Card number and CVV are never returned.
func buildCheckoutForm(form domain.CheckoutForm) checkoutFormPayload {
	return checkoutFormPayload{
		ContactInfo: map[string]string{
			"email": form.Contact.Email,
		},
		ShippingInfo: map[string]string{
			"firstName":     form.Shipping.FirstName,
			"lastName":      form.Shipping.LastName,
			"country":       form.Shipping.Country,
			"streetAddress": form.Shipping.StreetAddress,
			"addressLine2":  form.Shipping.AddressLine2,
			"city":          form.Shipping.City,
			"state":         form.Shipping.State,
			"zipCode":       form.Shipping.ZipCode,
			"phoneNumber":   form.Shipping.PhoneNumber,
		},
		PaymentInfo: map[string]string{
			"paymentMethod":  form.Payment.PaymentMethod,
			"expiryDate":     form.Payment.ExpiryDate,
			"cardholderName": form.Payment.CardholderName,
		},
	}
}

func buildCheckoutSummary(summary domain.CheckoutSummary) checkoutSummaryPayload {
	return checkoutSummaryPayload{
		Email:    summary.Email,
		FullName: summary.FullName,
		Address: map[string]string{
			"street":  summary.Address.Street,
			"line2":   summary.Address.Line2,
			"city":    summary.Address.City,
			"state":   summary.Address.State,
			"zipCode": summary.Address.ZipCode,
			"country": summary.Address.Country,
		},
		Phone:         summary.Phone,
		PaymentMethod: summary.PaymentMethod,
		CardLast4:     summary.CardLast4,
	}
}
