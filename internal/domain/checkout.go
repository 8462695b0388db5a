package domain

import "time"

// CheckoutStep enumerates the linear checkout wizard stages.
type CheckoutStep int

const (
	CheckoutStepContact CheckoutStep = iota + 1
	CheckoutStepShipping
	CheckoutStepPayment
	CheckoutStepPreview
	CheckoutStepConfirmation
)

// String returns the lowercase step name used in API payloads.
func (s CheckoutStep) String() string {
	switch s {
	case CheckoutStepContact:
		return "contact"
	case CheckoutStepShipping:
		return "shipping"
	case CheckoutStepPayment:
		return "payment"
	case CheckoutStepPreview:
		return "preview"
	case CheckoutStepConfirmation:
		return "confirmation"
	default:
		return "unknown"
	}
}

// ContactInfo holds the first checkout step.
type ContactInfo struct {
	Email string
}

// ShippingInfo holds the delivery address.
type ShippingInfo struct {
	FirstName     string
	LastName      string
	Country       string
	StreetAddress string
	AddressLine2  string
	City          string
	State         string
	ZipCode       string
	PhoneNumber   string
}

// PaymentInfo holds card details. It lives only in process memory.
type PaymentInfo struct {
	PaymentMethod  string
	CardNumber     string
	ExpiryDate     string
	CVV            string
	CardholderName string
}

// CheckoutForm aggregates every checkout section.
type CheckoutForm struct {
	Contact  ContactInfo
	Shipping ShippingInfo
	Payment  PaymentInfo
}

// CheckoutAddress is the display form of the shipping address.
type CheckoutAddress struct {
	Street  string
	Line2   string
	City    string
	State   string
	ZipCode string
	Country string
}

// CheckoutSummary is the read-only preview of a checkout form with card data masked.
type CheckoutSummary struct {
	Email         string
	FullName      string
	Address       CheckoutAddress
	Phone         string
	PaymentMethod string
	CardLast4     string
}

// CheckoutConfirmation is returned once the preview is confirmed.
type CheckoutConfirmation struct {
	Reference   string
	Items       []LineItem
	Totals      CartTotals
	Summary     CheckoutSummary
	ConfirmedAt time.Time
}
