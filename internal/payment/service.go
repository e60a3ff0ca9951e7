package payment

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Hasnainmunshi/diagnostic-management/internal/appointment"
	"github.com/Hasnainmunshi/diagnostic-management/internal/apperr"
	"github.com/Hasnainmunshi/diagnostic-management/internal/auth"
	"github.com/Hasnainmunshi/diagnostic-management/internal/config"
	"github.com/Hasnainmunshi/diagnostic-management/internal/metrics"
)

const EventPaymentConfirmed = "PAYMENT_CONFIRMED"

// Omission reasons.
const (
	ReasonNotFound   = "not_found"
	ReasonTerminal   = "terminal"
	ReasonNotCovered = "not_covered"
	ReasonNotOwner   = "not_owner"
)

// Store is the appointment persistence the reconciler needs.
type Store interface {
	GetMany(ctx context.Context, ids []uuid.UUID) ([]appointment.Appointment, error)
	MarkPaid(ctx context.Context, ids []uuid.UUID, intentID string) ([]appointment.PaidRecord, error)
	AttachPaymentIntent(ctx context.Context, ids []uuid.UUID, intentID string) error
	InsertEvent(ctx context.Context, ev appointment.EventLog) error
}

// Effects produces the documents and emails that follow a payment.
type Effects interface {
	Paid(ctx context.Context, a appointment.Appointment) []appointment.SideEffectFailure
}

type Omission struct {
	ID     uuid.UUID `json:"id"`
	Reason string    `json:"reason"`
}

// Confirmation is the outcome of ConfirmPayment. Failed lists side effects
// that did not complete; the payment state in Updated is committed regardless.
type Confirmation struct {
	IntentID string
	Updated  []appointment.Appointment
	Omitted  []Omission
	Failed   []appointment.SideEffectFailure
}

type Service struct {
	store   Store
	gateway Gateway
	effects Effects
	metrics *metrics.Recorder
	cfg     config.Config
	logger  zerolog.Logger
}

func NewService(store Store, gateway Gateway, effects Effects, cfg config.Config, logger zerolog.Logger, rec *metrics.Recorder) *Service {
	return &Service{
		store:   store,
		gateway: gateway,
		effects: effects,
		metrics: rec,
		cfg:     cfg,
		logger:  logger,
	}
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, apperr.Validation("appointmentIds", "at least one appointment id is required")
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(strings.TrimSpace(r))
		if err != nil {
			return nil, apperr.Validation("appointmentIds", fmt.Sprintf("%q is not a valid UUID", r))
		}
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// payable loads ids and checks that caller may pay for every one of them.
func (s *Service) payable(ctx context.Context, caller auth.Caller, ids []uuid.UUID, kind appointment.Kind) ([]appointment.Appointment, error) {
	if caller.Role != auth.RoleUser && caller.Role != auth.RoleAdmin {
		return nil, apperr.Forbidden("only patients can pay for appointments")
	}

	found, err := s.store.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}

	byID := make(map[uuid.UUID]appointment.Appointment, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}

	out := make([]appointment.Appointment, 0, len(ids))
	for _, id := range ids {
		a, ok := byID[id]
		switch {
		case !ok:
			return nil, apperr.NotFound("appointment", id.String())
		case a.Kind != kind:
			return nil, apperr.Validation("appointmentIds", fmt.Sprintf("appointment %s is not a %s appointment", id, kind))
		case caller.Role == auth.RoleUser && a.PatientID != caller.ID:
			return nil, apperr.Ownership(id.String())
		case a.Status.Terminal():
			return nil, apperr.AlreadyTerminal(id.String(), string(a.Status))
		case a.Paid():
			return nil, apperr.AlreadyPaid(id.String())
		}
		out = append(out, a)
	}
	return out, nil
}

func joinIDs(ids []uuid.UUID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}

// CreateCheckout opens a hosted checkout session for the caller's unpaid doctor appointments.
func (s *Service) CreateCheckout(ctx context.Context, caller auth.Caller, rawIDs []string) (*Checkout, error) {
	ids, err := parseIDs(rawIDs)
	if err != nil {
		return nil, err
	}
	appts, err := s.payable(ctx, caller, ids, appointment.KindDoctor)
	if err != nil {
		return nil, err
	}

	joined := joinIDs(ids)
	req := CheckoutRequest{
		Metadata:   map[string]string{MetadataAppointmentIDs: joined},
		SuccessURL: s.cfg.PublicURL + "/success?appointmentIds=" + joined + "&sessionId={CHECKOUT_SESSION_ID}",
		CancelURL:  s.cfg.PublicURL + "/cancel",
	}
	for _, a := range appts {
		req.Items = append(req.Items, LineItem{Name: a.Snapshot.SubjectName, Amount: a.Amount})
	}

	checkout, err := s.gateway.CreateCheckout(ctx, req)
	if err != nil {
		return nil, apperr.PaymentLookup("", err)
	}

	s.logger.Info().
		Str("session_id", checkout.SessionID).
		Int("appointments", len(ids)).
		Msg("checkout session created")
	return checkout, nil
}

// CreatePaymentIntent sums the caller's unpaid test appointments into one
// intent. Appointments without a positive price add nothing to the total.
func (s *Service) CreatePaymentIntent(ctx context.Context, caller auth.Caller, rawIDs []string) (*Intent, error) {
	ids, err := parseIDs(rawIDs)
	if err != nil {
		return nil, err
	}
	appts, err := s.payable(ctx, caller, ids, appointment.KindTest)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, a := range appts {
		if a.Amount > 0 {
			total += a.Amount
		}
	}
	if total <= 0 {
		return nil, apperr.Validation("appointmentIds", "nothing to pay")
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, total, map[string]string{MetadataAppointmentIDs: joinIDs(ids)})
	if err != nil {
		return nil, apperr.PaymentLookup("", err)
	}

	if err := s.store.AttachPaymentIntent(ctx, ids, intent.ID); err != nil {
		s.logger.Warn().Err(err).Str("intent_id", intent.ID).Msg("failed to attach payment intent")
	}

	return intent, nil
}

// ConfirmPayment checks ref with the gateway and marks the referenced
// appointments paid. Replays are harmless: appointments already paid come
// back in Updated but get no second round of side effects.
func (s *Service) ConfirmPayment(ctx context.Context, caller auth.Caller, ref string, rawIDs []string) (res *Confirmation, err error) {
	defer func() { s.metrics.Payment(err) }()

	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, apperr.Validation("sessionId", "sessionId is required")
	}
	ids, err := parseIDs(rawIDs)
	if err != nil {
		return nil, err
	}

	status, err := s.gateway.Lookup(ctx, ref)
	if err != nil {
		return nil, apperr.PaymentLookup(ref, err)
	}
	if !status.Succeeded() {
		return nil, apperr.PaymentNotCompleted(ref, status.State)
	}

	res = &Confirmation{IntentID: status.IntentID}

	found, err := s.store.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	byID := make(map[uuid.UUID]appointment.Appointment, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}

	eligible := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		a, ok := byID[id]
		switch {
		case !ok:
			res.Omitted = append(res.Omitted, Omission{ID: id, Reason: ReasonNotFound})
		case len(status.AppointmentIDs) > 0 && !slices.Contains(status.AppointmentIDs, id.String()):
			res.Omitted = append(res.Omitted, Omission{ID: id, Reason: ReasonNotCovered})
		case caller.Role == auth.RoleUser && a.PatientID != caller.ID:
			res.Omitted = append(res.Omitted, Omission{ID: id, Reason: ReasonNotOwner})
		case a.Status.Terminal():
			res.Omitted = append(res.Omitted, Omission{ID: id, Reason: ReasonTerminal})
		default:
			eligible = append(eligible, id)
		}
	}
	if len(eligible) == 0 {
		return res, nil
	}

	records, err := s.store.MarkPaid(ctx, eligible, status.IntentID)
	if err != nil {
		return nil, fmt.Errorf("mark appointments paid: %w", err)
	}

	updated := make(map[uuid.UUID]bool, len(records))
	for _, rec := range records {
		updated[rec.ID] = true
		res.Updated = append(res.Updated, rec.Appointment)
	}
	// Rows that went terminal between the read and the update.
	for _, id := range eligible {
		if !updated[id] {
			res.Omitted = append(res.Omitted, Omission{ID: id, Reason: ReasonTerminal})
		}
	}

	for _, rec := range records {
		if !rec.NewlyPaid {
			continue
		}
		appointment.LogEvent(ctx, s.store, s.logger, rec.ID, EventPaymentConfirmed, map[string]any{
			"intent_id": status.IntentID,
			"amount":    rec.Amount,
		})
		res.Failed = append(res.Failed, s.runEffects(ctx, rec.Appointment)...)
	}

	s.logger.Info().
		Str("intent_id", status.IntentID).
		Int("updated", len(res.Updated)).
		Int("omitted", len(res.Omitted)).
		Int("failed_side_effects", len(res.Failed)).
		Msg("payment confirmed")

	return res, nil
}

func (s *Service) runEffects(ctx context.Context, a appointment.Appointment) []appointment.SideEffectFailure {
	if s.effects == nil {
		return nil
	}

	timeout := s.cfg.SideEffectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	effCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	failed := s.effects.Paid(effCtx, a)
	for _, f := range failed {
		s.logger.Warn().
			Str("appointment_id", f.AppointmentID.String()).
			Str("stage", f.Stage).
			Str("error", f.Message).
			Msg("post-payment side effect failed")
	}
	return failed
}
