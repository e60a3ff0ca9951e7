package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// StripeGateway talks to Stripe. Every call is bounded by timeout.
type StripeGateway struct {
	api      *client.API
	currency string
	timeout  time.Duration
}

// NewStripeGateway builds a gateway for key. backends may be nil to use Stripe's defaults.
func NewStripeGateway(key, currency string, timeout time.Duration, backends *stripe.Backends) *StripeGateway {
	api := &client.API{}
	api.Init(key, backends)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StripeGateway{api: api, currency: strings.ToLower(currency), timeout: timeout}
}

func (g *StripeGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	for _, item := range req.Items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(g.currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(item.Amount),
			},
			Quantity: stripe.Int64(1),
		})
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create checkout session: %w", err)
	}
	return &Checkout{SessionID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, amount int64, metadata map[string]string) (*Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amount),
		Currency:           stripe.String(g.currency),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create payment intent: %w", err)
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, Amount: pi.Amount}, nil
}

// Lookup follows a checkout session to its payment intent. Ids without the
// checkout session prefix are treated as payment intent ids.
func (g *StripeGateway) Lookup(ctx context.Context, ref string) (*Status, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	intentID := ref
	var metadata map[string]string

	if strings.HasPrefix(ref, "cs_") {
		params := &stripe.CheckoutSessionParams{}
		params.Context = ctx
		s, err := g.api.CheckoutSessions.Get(ref, params)
		if err != nil {
			return nil, fmt.Errorf("stripe get checkout session: %w", err)
		}
		if s.PaymentIntent == nil || s.PaymentIntent.ID == "" {
			return &Status{State: string(s.PaymentStatus)}, nil
		}
		intentID = s.PaymentIntent.ID
		metadata = s.Metadata
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe get payment intent: %w", err)
	}
	if metadata == nil {
		metadata = pi.Metadata
	}

	return &Status{
		IntentID:       pi.ID,
		State:          string(pi.Status),
		AppointmentIDs: splitIDs(metadata[MetadataAppointmentIDs]),
	}, nil
}

// DisabledGateway rejects every call. It stands in when no Stripe key is configured.
type DisabledGateway struct{}

func (DisabledGateway) CreateCheckout(context.Context, CheckoutRequest) (*Checkout, error) {
	return nil, ErrGatewayDisabled
}

func (DisabledGateway) CreatePaymentIntent(context.Context, int64, map[string]string) (*Intent, error) {
	return nil, ErrGatewayDisabled
}

func (DisabledGateway) Lookup(context.Context, string) (*Status, error) {
	return nil, ErrGatewayDisabled
}
