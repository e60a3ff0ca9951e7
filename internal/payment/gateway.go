// Package payment creates gateway payments for appointments and reconciles
// confirmed payments back into appointment state.
package payment

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrGatewayDisabled = errors.New("payment gateway is not configured")
)

// MetadataAppointmentIDs is the gateway metadata key listing the appointments a payment covers.
const MetadataAppointmentIDs = "appointmentIds"

type LineItem struct {
	Name   string
	Amount int64 // minor units
}

type CheckoutRequest struct {
	Items      []LineItem
	Metadata   map[string]string
	SuccessURL string
	CancelURL  string
}

type Checkout struct {
	SessionID string
	URL       string
}

type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
}

// Status is the gateway's authoritative view of a payment.
type Status struct {
	IntentID string
	State    string
	// AppointmentIDs comes from the payment's metadata; empty when the payment carried none.
	AppointmentIDs []string
}

func (s Status) Succeeded() bool { return s.State == "succeeded" }

// Gateway is the card-payment provider.
type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	CreatePaymentIntent(ctx context.Context, amount int64, metadata map[string]string) (*Intent, error)
	// Lookup resolves a checkout session id or a payment intent id.
	Lookup(ctx context.Context, ref string) (*Status, error)
}

func splitIDs(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
