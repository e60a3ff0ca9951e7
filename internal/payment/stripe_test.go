package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

func stripeStub(t *testing.T, routes map[string]string) *StripeGateway {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such object"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return NewStripeGateway("sk_test_123", "USD", 2*time.Second, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
}

func TestStripeLookupFollowsCheckoutSession(t *testing.T) {
	gw := stripeStub(t, map[string]string{
		"GET /v1/checkout/sessions/cs_test_1": `{"id":"cs_test_1","object":"checkout.session","payment_intent":"pi_1","payment_status":"paid","metadata":{"appointmentIds":"a, b"}}`,
		"GET /v1/payment_intents/pi_1":        `{"id":"pi_1","object":"payment_intent","status":"succeeded","metadata":{}}`,
	})

	st, err := gw.Lookup(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.True(t, st.Succeeded())
	assert.Equal(t, "pi_1", st.IntentID)
	assert.Equal(t, []string{"a", "b"}, st.AppointmentIDs)
}

func TestStripeLookupPaymentIntent(t *testing.T) {
	gw := stripeStub(t, map[string]string{
		"GET /v1/payment_intents/pi_2": `{"id":"pi_2","object":"payment_intent","status":"processing","metadata":{"appointmentIds":"x"}}`,
	})

	st, err := gw.Lookup(context.Background(), "pi_2")
	require.NoError(t, err)
	assert.False(t, st.Succeeded())
	assert.Equal(t, "processing", st.State)
	assert.Equal(t, []string{"x"}, st.AppointmentIDs)
}

func TestStripeLookupUnknownID(t *testing.T) {
	gw := stripeStub(t, nil)

	_, err := gw.Lookup(context.Background(), "pi_missing")
	assert.Error(t, err)
}

func TestStripeCreatePaymentIntent(t *testing.T) {
	gw := stripeStub(t, map[string]string{
		"POST /v1/payment_intents": `{"id":"pi_3","object":"payment_intent","client_secret":"pi_3_secret","amount":2400,"status":"requires_payment_method"}`,
	})

	intent, err := gw.CreatePaymentIntent(context.Background(), 2400, map[string]string{MetadataAppointmentIDs: "x"})
	require.NoError(t, err)
	assert.Equal(t, "pi_3", intent.ID)
	assert.Equal(t, "pi_3_secret", intent.ClientSecret)
	assert.Equal(t, int64(2400), intent.Amount)
}

func TestSplitIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitIDs(" a,,b ,"))
	assert.Empty(t, splitIDs(""))
}
