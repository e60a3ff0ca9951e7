package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hasnainmunshi/diagnostic-management/internal/appointment"
	"github.com/Hasnainmunshi/diagnostic-management/internal/apperr"
	"github.com/Hasnainmunshi/diagnostic-management/internal/auth"
	"github.com/Hasnainmunshi/diagnostic-management/internal/config"
)

type fakeGateway struct {
	status    *Status
	lookupErr error
	checkouts []CheckoutRequest
	intents   []int64
}

func (g *fakeGateway) CreateCheckout(_ context.Context, req CheckoutRequest) (*Checkout, error) {
	g.checkouts = append(g.checkouts, req)
	return &Checkout{SessionID: "cs_test_1", URL: "https://checkout.example/cs_test_1"}, nil
}

func (g *fakeGateway) CreatePaymentIntent(_ context.Context, amount int64, _ map[string]string) (*Intent, error) {
	g.intents = append(g.intents, amount)
	return &Intent{ID: "pi_new", ClientSecret: "pi_new_secret", Amount: amount}, nil
}

func (g *fakeGateway) Lookup(context.Context, string) (*Status, error) {
	if g.lookupErr != nil {
		return nil, g.lookupErr
	}
	return g.status, nil
}

type memStore struct {
	mu       sync.Mutex
	appts    map[uuid.UUID]*appointment.Appointment
	attached map[uuid.UUID]string
	events   int
}

func newMemStore(appts ...*appointment.Appointment) *memStore {
	s := &memStore{appts: map[uuid.UUID]*appointment.Appointment{}, attached: map[uuid.UUID]string{}}
	for _, a := range appts {
		s.appts[a.ID] = a
	}
	return s
}

func (s *memStore) GetMany(_ context.Context, ids []uuid.UUID) ([]appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []appointment.Appointment
	for _, id := range ids {
		if a, ok := s.appts[id]; ok {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *memStore) MarkPaid(_ context.Context, ids []uuid.UUID, intentID string) ([]appointment.PaidRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []appointment.PaidRecord
	for _, id := range ids {
		a, ok := s.appts[id]
		if !ok || a.Status.Terminal() {
			continue
		}
		fresh := !a.Paid()
		a.Status = appointment.StatusBooked
		a.PaymentStatus = appointment.PaymentPaid
		if fresh {
			a.PaymentIntentID = &intentID
		}
		out = append(out, appointment.PaidRecord{Appointment: *a, NewlyPaid: fresh})
	}
	return out, nil
}

func (s *memStore) AttachPaymentIntent(_ context.Context, ids []uuid.UUID, intentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.attached[id] = intentID
	}
	return nil
}

func (s *memStore) InsertEvent(context.Context, appointment.EventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events++
	return nil
}

type countingEffects struct {
	calls  []uuid.UUID
	failOn uuid.UUID
}

func (e *countingEffects) Paid(_ context.Context, a appointment.Appointment) []appointment.SideEffectFailure {
	e.calls = append(e.calls, a.ID)
	if a.ID == e.failOn {
		return []appointment.SideEffectFailure{{AppointmentID: a.ID, Stage: "invoice", Message: "render failed"}}
	}
	return nil
}

func pending(kind appointment.Kind, patient uuid.UUID, amount int64) *appointment.Appointment {
	return &appointment.Appointment{
		ID:            uuid.New(),
		Kind:          kind,
		PatientID:     patient,
		Amount:        amount,
		Status:        appointment.StatusPending,
		PaymentStatus: appointment.PaymentUnpaid,
		Snapshot:      appointment.Snapshot{SubjectName: "Dr. House"},
	}
}

func newService(store Store, gw Gateway, eff Effects) *Service {
	cfg := config.Config{PublicURL: "http://app.local", SideEffectTimeout: time.Second}
	return NewService(store, gw, eff, cfg, zerolog.Nop(), nil)
}

func TestConfirmPaymentNotSucceededTouchesNothing(t *testing.T) {
	patient := uuid.New()
	a := pending(appointment.KindDoctor, patient, 100)
	store := newMemStore(a)
	gw := &fakeGateway{status: &Status{IntentID: "pi_1", State: "requires_payment_method"}}
	svc := newService(store, gw, &countingEffects{})

	_, err := svc.ConfirmPayment(context.Background(), auth.Caller{ID: patient, Role: auth.RoleUser}, "cs_1", []string{a.ID.String()})
	require.ErrorIs(t, err, apperr.ErrPaymentNotCompleted)
	assert.Equal(t, appointment.StatusPending, store.appts[a.ID].Status)
}

func TestConfirmPaymentLookupFailure(t *testing.T) {
	svc := newService(newMemStore(), &fakeGateway{lookupErr: errors.New("timeout")}, nil)

	_, err := svc.ConfirmPayment(context.Background(), auth.Caller{Role: auth.RoleAdmin}, "pi_x", []string{uuid.NewString()})
	assert.ErrorIs(t, err, apperr.ErrPaymentLookup)
}

func TestConfirmPaymentValidation(t *testing.T) {
	svc := newService(newMemStore(), &fakeGateway{}, nil)
	ctx := context.Background()
	admin := auth.Caller{Role: auth.RoleAdmin}

	_, err := svc.ConfirmPayment(ctx, admin, "", []string{uuid.NewString()})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.ConfirmPayment(ctx, admin, "pi_1", nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.ConfirmPayment(ctx, admin, "pi_1", []string{"bogus"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestConfirmPaymentUpdatesAndOmits(t *testing.T) {
	patient := uuid.New()
	doctorAppt := pending(appointment.KindDoctor, patient, 5000)
	testAppt := pending(appointment.KindTest, patient, 1200)
	cancelled := pending(appointment.KindTest, patient, 800)
	cancelled.Status = appointment.StatusCancelled
	missing := uuid.New()

	store := newMemStore(doctorAppt, testAppt, cancelled)
	eff := &countingEffects{failOn: testAppt.ID}
	gw := &fakeGateway{status: &Status{IntentID: "pi_ok", State: "succeeded"}}
	svc := newService(store, gw, eff)

	res, err := svc.ConfirmPayment(context.Background(), auth.Caller{ID: patient, Role: auth.RoleUser}, "pi_ok",
		[]string{doctorAppt.ID.String(), testAppt.ID.String(), cancelled.ID.String(), missing.String()})
	require.NoError(t, err)

	assert.Len(t, res.Updated, 2)
	assert.ElementsMatch(t, []Omission{
		{ID: cancelled.ID, Reason: ReasonTerminal},
		{ID: missing, Reason: ReasonNotFound},
	}, res.Omitted)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, testAppt.ID, res.Failed[0].AppointmentID)

	// the failed invoice does not undo the payment
	assert.True(t, store.appts[testAppt.ID].Paid())
	assert.Equal(t, appointment.StatusBooked, store.appts[testAppt.ID].Status)
	assert.Equal(t, "pi_ok", *store.appts[doctorAppt.ID].PaymentIntentID)
	assert.Equal(t, appointment.StatusCancelled, store.appts[cancelled.ID].Status)
}

func TestConfirmPaymentReplayIsNoOp(t *testing.T) {
	patient := uuid.New()
	a := pending(appointment.KindDoctor, patient, 5000)
	store := newMemStore(a)
	eff := &countingEffects{}
	gw := &fakeGateway{status: &Status{IntentID: "pi_ok", State: "succeeded"}}
	svc := newService(store, gw, eff)
	caller := auth.Caller{ID: patient, Role: auth.RoleUser}

	first, err := svc.ConfirmPayment(context.Background(), caller, "cs_1", []string{a.ID.String()})
	require.NoError(t, err)
	second, err := svc.ConfirmPayment(context.Background(), caller, "cs_1", []string{a.ID.String(), a.ID.String()})
	require.NoError(t, err)

	assert.Equal(t, first.Updated[0].Status, second.Updated[0].Status)
	assert.Equal(t, first.Updated[0].PaymentStatus, second.Updated[0].PaymentStatus)
	assert.Len(t, second.Updated, 1)
	assert.Equal(t, []uuid.UUID{a.ID}, eff.calls, "side effects run once")
	assert.Equal(t, 1, store.events)
}

func TestConfirmPaymentRespectsMetadataAndOwnership(t *testing.T) {
	patient := uuid.New()
	covered := pending(appointment.KindDoctor, patient, 100)
	uncovered := pending(appointment.KindDoctor, patient, 100)
	someoneElse := pending(appointment.KindDoctor, uuid.New(), 100)

	store := newMemStore(covered, uncovered, someoneElse)
	gw := &fakeGateway{status: &Status{
		IntentID:       "pi_ok",
		State:          "succeeded",
		AppointmentIDs: []string{covered.ID.String(), someoneElse.ID.String()},
	}}
	svc := newService(store, gw, nil)

	res, err := svc.ConfirmPayment(context.Background(), auth.Caller{ID: patient, Role: auth.RoleUser}, "cs_1",
		[]string{covered.ID.String(), uncovered.ID.String(), someoneElse.ID.String()})
	require.NoError(t, err)

	require.Len(t, res.Updated, 1)
	assert.Equal(t, covered.ID, res.Updated[0].ID)
	assert.ElementsMatch(t, []Omission{
		{ID: uncovered.ID, Reason: ReasonNotCovered},
		{ID: someoneElse.ID, Reason: ReasonNotOwner},
	}, res.Omitted)
	assert.False(t, store.appts[someoneElse.ID].Paid())
}

func TestCreateCheckout(t *testing.T) {
	patient := uuid.New()
	a := pending(appointment.KindDoctor, patient, 5000)
	b := pending(appointment.KindDoctor, patient, 3000)
	gw := &fakeGateway{}
	svc := newService(newMemStore(a, b), gw, nil)

	checkout, err := svc.CreateCheckout(context.Background(), auth.Caller{ID: patient, Role: auth.RoleUser}, []string{a.ID.String(), b.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", checkout.SessionID)

	require.Len(t, gw.checkouts, 1)
	req := gw.checkouts[0]
	assert.Equal(t, []LineItem{{Name: "Dr. House", Amount: 5000}, {Name: "Dr. House", Amount: 3000}}, req.Items)
	assert.Equal(t, a.ID.String()+","+b.ID.String(), req.Metadata[MetadataAppointmentIDs])
	assert.Equal(t, "http://app.local/success?appointmentIds="+a.ID.String()+","+b.ID.String()+"&sessionId={CHECKOUT_SESSION_ID}", req.SuccessURL)
	assert.Equal(t, "http://app.local/cancel", req.CancelURL)
}

func TestCreateCheckoutRejects(t *testing.T) {
	patient := uuid.New()
	paid := pending(appointment.KindDoctor, patient, 100)
	paid.PaymentStatus = appointment.PaymentPaid
	paid.Status = appointment.StatusBooked
	test := pending(appointment.KindTest, patient, 100)
	other := pending(appointment.KindDoctor, uuid.New(), 100)
	svc := newService(newMemStore(paid, test, other), &fakeGateway{}, nil)
	ctx := context.Background()
	caller := auth.Caller{ID: patient, Role: auth.RoleUser}

	_, err := svc.CreateCheckout(ctx, caller, []string{paid.ID.String()})
	assert.ErrorIs(t, err, apperr.ErrAlreadyPaid)

	_, err = svc.CreateCheckout(ctx, caller, []string{test.ID.String()})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.CreateCheckout(ctx, caller, []string{other.ID.String()})
	assert.ErrorIs(t, err, apperr.ErrOwnership)

	_, err = svc.CreateCheckout(ctx, caller, []string{uuid.NewString()})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.CreateCheckout(ctx, auth.Caller{ID: uuid.New(), Role: auth.RoleDoctor}, []string{paid.ID.String()})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestCreatePaymentIntentSumsPositivePrices(t *testing.T) {
	patient := uuid.New()
	a := pending(appointment.KindTest, patient, 1200)
	b := pending(appointment.KindTest, patient, 0)
	store := newMemStore(a, b)
	gw := &fakeGateway{}
	svc := newService(store, gw, nil)

	intent, err := svc.CreatePaymentIntent(context.Background(), auth.Caller{ID: patient, Role: auth.RoleUser}, []string{a.ID.String(), b.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, "pi_new_secret", intent.ClientSecret)
	assert.Equal(t, []int64{1200}, gw.intents)
	assert.Equal(t, "pi_new", store.attached[a.ID])

	_, err = svc.CreatePaymentIntent(context.Background(), auth.Caller{ID: patient, Role: auth.RoleUser}, []string{b.ID.String()})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
