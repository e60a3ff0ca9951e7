package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Hasnainmunshi/diagnostic-management/internal/apperr"
	"github.com/Hasnainmunshi/diagnostic-management/internal/auth"
	"github.com/Hasnainmunshi/diagnostic-management/internal/catalog"
	"github.com/Hasnainmunshi/diagnostic-management/internal/config"
	"github.com/Hasnainmunshi/diagnostic-management/internal/metrics"
	redisclient "github.com/Hasnainmunshi/diagnostic-management/internal/redis"
	"github.com/Hasnainmunshi/diagnostic-management/internal/slots"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentExpired   = "APPOINTMENT_EXPIRED"
	EventAppointmentPaid      = "APPOINTMENT_PAID"
)

const maxStaleRetries = 3

// Catalog resolves the entities a booking references. Missing entities are
// reported as apperr.ErrNotFound naming the entity.
type Catalog interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*catalog.Person, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*catalog.Doctor, error)
	GetCenter(ctx context.Context, id uuid.UUID) (*catalog.Center, error)
	GetTest(ctx context.Context, id uuid.UUID) (*catalog.TestOffering, error)
}

// Effects runs documents and notifications for committed transitions.
// Implementations report failures instead of returning errors.
type Effects interface {
	Completed(ctx context.Context, a Appointment) []SideEffectFailure
	Cancelled(ctx context.Context, a Appointment) []SideEffectFailure
}

type Service struct {
	repo    Repository
	catalog Catalog
	locker  redisclient.Locker
	effects Effects
	metrics *metrics.Recorder
	cfg     config.Config
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(repo Repository, cat Catalog, locker redisclient.Locker, effects Effects, cfg config.Config, logger zerolog.Logger, rec *metrics.Recorder) *Service {
	return &Service{
		repo:    repo,
		catalog: cat,
		locker:  locker,
		effects: effects,
		metrics: rec,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

type DoctorBooking struct {
	PatientID string
	DoctorID  string
	CenterID  string
	SlotDate  string
	SlotTime  string
}

type TestBooking struct {
	PatientID     string
	TestID        string
	CenterID      string
	Date          string
	Time          string
	PaymentStatus string
}

func (s *Service) today() time.Time { return slots.Today(s.now(), s.cfg.Zone()) }

func required(fields ...[2]string) error {
	for _, f := range fields {
		if f[1] == "" {
			return apperr.Validation(f[0], f[0]+" is required")
		}
	}
	return nil
}

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation(field, field+" must be a valid UUID")
	}
	return id, nil
}

func parseSlot(dateField, timeField, date, clock string) (slots.Key, error) {
	d, err := slots.ParseDate(date)
	if err != nil {
		return slots.Key{}, apperr.Validation(dateField, dateField+" must be YYYY-MM-DD")
	}
	c, err := slots.ParseClock(clock)
	if err != nil {
		return slots.Key{}, apperr.Validation(timeField, timeField+" must be HH:MM")
	}
	return slots.Key{Date: d, Time: c}, nil
}

// checkBooker lets patients book only for themselves; staff and admins may book for anyone.
func checkBooker(c auth.Caller, patientID uuid.UUID) error {
	switch {
	case c.Role == auth.RoleUser && c.ID == patientID:
		return nil
	case c.Role == auth.RoleUser:
		return apperr.Ownership(patientID.String())
	case c.Role == auth.RoleAdmin || c.IsCenterStaff():
		return nil
	}
	return apperr.Forbidden("role " + string(c.Role) + " cannot book appointments")
}

// BookDoctorAppointment claims a ledger slot and creates a pending appointment.
// Validation runs in order and the first failure wins: required fields, id
// format, date not in the past, referenced entities exist, slot free.
func (s *Service) BookDoctorAppointment(ctx context.Context, caller auth.Caller, in DoctorBooking) (appt *Appointment, err error) {
	defer func() { s.metrics.Booking(string(KindDoctor), err) }()

	if err := required(
		[2]string{"patientId", in.PatientID},
		[2]string{"doctorId", in.DoctorID},
		[2]string{"centerId", in.CenterID},
		[2]string{"slotDate", in.SlotDate},
		[2]string{"slotTime", in.SlotTime},
	); err != nil {
		return nil, err
	}

	patientID, err := parseID("patientId", in.PatientID)
	if err != nil {
		return nil, err
	}
	doctorID, err := parseID("doctorId", in.DoctorID)
	if err != nil {
		return nil, err
	}
	centerID, err := parseID("centerId", in.CenterID)
	if err != nil {
		return nil, err
	}
	key, err := parseSlot("slotDate", "slotTime", in.SlotDate, in.SlotTime)
	if err != nil {
		return nil, err
	}

	if key.Date.Before(s.today()) {
		return nil, apperr.PastDate("slotDate", in.SlotDate)
	}
	if err := checkBooker(caller, patientID); err != nil {
		return nil, err
	}

	doctor, err := s.catalog.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	patient, err := s.catalog.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	center, err := s.catalog.GetCenter(ctx, centerID)
	if err != nil {
		return nil, err
	}

	a := &Appointment{
		ID:            uuid.New(),
		Kind:          KindDoctor,
		PatientID:     patientID,
		CenterID:      centerID,
		SubjectID:     doctorID,
		Date:          key.Date,
		Time:          key.Time,
		Amount:        doctor.Fee,
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
		Snapshot: Snapshot{
			PatientName:   patient.Name,
			PatientEmail:  patient.Email,
			SubjectName:   doctor.Name,
			SubjectDetail: doctor.Specialty,
			SubjectEmail:  doctor.Email,
			CenterName:    center.Name,
			CenterAddress: center.Address,
		},
	}

	maxSlots := doctor.MaxSlots
	if maxSlots <= 0 {
		maxSlots = s.cfg.MaxSlots
	}

	err = s.locker.WithLock(ctx, redisclient.DoctorKey(doctorID), func(lockCtx context.Context) error {
		return s.repo.CreateDoctor(lockCtx, a, maxSlots)
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, apperr.SlotConflict(doctorID.String(), "doctor ledger is busy, retry")
		}
		if apperr.KindOf(err) != nil {
			return nil, err
		}
		return nil, fmt.Errorf("create doctor appointment: %w", err)
	}

	s.logEvent(ctx, a.ID, EventAppointmentCreated, map[string]any{
		"kind":      KindDoctor,
		"doctor_id": doctorID.String(),
		"slot":      key.String(),
	})
	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("doctor_id", doctorID.String()).
		Str("slot", key.String()).
		Msg("doctor appointment booked")

	return a, nil
}

// BookTestAppointment creates a test appointment. A booking recorded as
// already paid starts in booked; only staff and admins may record that.
func (s *Service) BookTestAppointment(ctx context.Context, caller auth.Caller, in TestBooking) (appt *Appointment, err error) {
	defer func() { s.metrics.Booking(string(KindTest), err) }()

	if err := required(
		[2]string{"patientId", in.PatientID},
		[2]string{"testId", in.TestID},
		[2]string{"centerId", in.CenterID},
		[2]string{"appointmentDate", in.Date},
		[2]string{"appointmentTime", in.Time},
	); err != nil {
		return nil, err
	}

	patientID, err := parseID("patientId", in.PatientID)
	if err != nil {
		return nil, err
	}
	testID, err := parseID("testId", in.TestID)
	if err != nil {
		return nil, err
	}
	centerID, err := parseID("centerId", in.CenterID)
	if err != nil {
		return nil, err
	}
	key, err := parseSlot("appointmentDate", "appointmentTime", in.Date, in.Time)
	if err != nil {
		return nil, err
	}

	payment := PaymentUnpaid
	switch PaymentStatus(in.PaymentStatus) {
	case "", PaymentUnpaid:
	case PaymentPaid:
		payment = PaymentPaid
	default:
		return nil, apperr.Validation("paymentStatus", "paymentStatus must be unpaid or paid")
	}

	if key.Date.Before(s.today()) {
		return nil, apperr.PastDate("appointmentDate", in.Date)
	}
	if err := checkBooker(caller, patientID); err != nil {
		return nil, err
	}
	if payment == PaymentPaid && caller.Role == auth.RoleUser {
		return nil, apperr.Forbidden("patients cannot record a payment at booking")
	}

	patient, err := s.catalog.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	test, err := s.catalog.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	center, err := s.catalog.GetCenter(ctx, centerID)
	if err != nil {
		return nil, err
	}
	if test.CenterID != centerID {
		return nil, apperr.Validation("centerId", "test is not offered by this center")
	}

	status := StatusPending
	if payment == PaymentPaid {
		status = StatusBooked
	}

	a := &Appointment{
		ID:               uuid.New(),
		Kind:             KindTest,
		PatientID:        patientID,
		CenterID:         centerID,
		SubjectID:        testID,
		Date:             key.Date,
		Time:             key.Time,
		Amount:           test.Price,
		Status:           status,
		PaymentStatus:    payment,
		InvoiceGenerated: payment == PaymentPaid,
		Snapshot: Snapshot{
			PatientName:   patient.Name,
			PatientEmail:  patient.Email,
			SubjectName:   test.Name,
			SubjectDetail: test.Category,
			CenterName:    center.Name,
			CenterAddress: center.Address,
		},
	}

	err = s.locker.WithLock(ctx, redisclient.TestSlotKey(testID, key.Date.Format(slots.DateLayout), key.Time), func(lockCtx context.Context) error {
		taken, err := s.repo.TestSlotTaken(lockCtx, testID, key.Date, key.Time)
		if err != nil {
			return err
		}
		if taken {
			return apperr.SlotConflict(testID.String(), "slot "+key.String()+" is already booked")
		}
		return s.repo.CreateTest(lockCtx, a)
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, apperr.SlotConflict(testID.String(), "test slot is busy, retry")
		}
		if apperr.KindOf(err) != nil {
			return nil, err
		}
		return nil, fmt.Errorf("create test appointment: %w", err)
	}

	s.logEvent(ctx, a.ID, EventAppointmentCreated, map[string]any{
		"kind":           KindTest,
		"test_id":        testID.String(),
		"slot":           key.String(),
		"payment_status": payment,
	})
	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("test_id", testID.String()).
		Str("status", string(status)).
		Msg("test appointment booked")

	return a, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, apperr.NotFound("appointment", id.String())
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return a, nil
}

// mutate loads id, runs guard on it and applies write against the observed
// status. When write loses a compare-and-set race the cycle reruns, so the
// loser is judged against the winner's state.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, guard func(*Appointment) error, write func(*Appointment) (*Appointment, error)) (*Appointment, error) {
	for attempt := 0; ; attempt++ {
		a, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := guard(a); err != nil {
			return nil, err
		}

		updated, err := write(a)
		if errors.Is(err, ErrStaleState) {
			if attempt < maxStaleRetries {
				continue
			}
			return nil, apperr.AlreadyTerminal(id.String(), "changed concurrently")
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
}

// CompleteDoctorAppointment lets the owning doctor close a booked appointment.
func (s *Service) CompleteDoctorAppointment(ctx context.Context, caller auth.Caller, id uuid.UUID) (res *Result, err error) {
	defer func() { s.metrics.Transition(string(ActionComplete), err) }()

	updated, err := s.mutate(ctx, id,
		func(a *Appointment) error { return checkCompleteDoctor(caller, a) },
		func(a *Appointment) (*Appointment, error) {
			return s.repo.Transition(ctx, a.ID, a.Status, StatusCompleted)
		},
	)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCompleted, map[string]any{"by": caller.ID.String()})
	return &Result{Appointment: updated, Failed: s.runEffects(ctx, *updated, s.effects.Completed)}, nil
}

// CompleteTestAppointment lets the center's staff close a booked test appointment.
func (s *Service) CompleteTestAppointment(ctx context.Context, caller auth.Caller, id uuid.UUID) (res *Result, err error) {
	defer func() { s.metrics.Transition(string(ActionComplete), err) }()

	updated, err := s.mutate(ctx, id,
		func(a *Appointment) error { return checkCompleteTest(caller, a) },
		func(a *Appointment) (*Appointment, error) {
			return s.repo.Transition(ctx, a.ID, a.Status, StatusCompleted)
		},
	)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCompleted, map[string]any{"by": caller.ID.String()})
	return &Result{Appointment: updated, Failed: s.runEffects(ctx, *updated, s.effects.Completed)}, nil
}

// CancelAppointment cancels either kind. Doctor appointments give their
// ledger entry back in the same write.
func (s *Service) CancelAppointment(ctx context.Context, caller auth.Caller, id uuid.UUID) (res *Result, err error) {
	defer func() { s.metrics.Transition(string(ActionCancel), err) }()

	updated, err := s.cancel(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{
		"by":   caller.ID.String(),
		"role": caller.Role,
	})
	s.logger.Info().
		Str("appointment_id", updated.ID.String()).
		Str("kind", string(updated.Kind)).
		Msg("appointment cancelled")

	return &Result{Appointment: updated, Failed: s.runEffects(ctx, *updated, s.effects.Cancelled)}, nil
}

func (s *Service) cancel(ctx context.Context, caller auth.Caller, id uuid.UUID) (*Appointment, error) {
	return s.mutate(ctx, id,
		func(a *Appointment) error { return checkCancel(caller, a) },
		func(a *Appointment) (*Appointment, error) {
			return s.writeCancel(ctx, a, cancelAllowedAfterPayment(caller, a))
		},
	)
}

// writeCancel cancels a against its observed status, holding the doctor's
// ledger lock for doctor appointments.
func (s *Service) writeCancel(ctx context.Context, a *Appointment, allowPaid bool) (*Appointment, error) {
	if a.Kind != KindDoctor {
		return s.repo.Cancel(ctx, a, allowPaid)
	}

	var updated *Appointment
	err := s.locker.WithLock(ctx, redisclient.DoctorKey(a.SubjectID), func(lockCtx context.Context) error {
		var err error
		updated, err = s.repo.Cancel(lockCtx, a, allowPaid)
		return err
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return nil, apperr.SlotConflict(a.SubjectID.String(), "doctor ledger is busy, retry")
	}
	return updated, err
}

// runEffects invokes fn with its own deadline. The caller's transition is
// already committed, so failures are logged and returned, never raised.
func (s *Service) runEffects(ctx context.Context, a Appointment, fn func(context.Context, Appointment) []SideEffectFailure) []SideEffectFailure {
	if s.effects == nil {
		return nil
	}

	timeout := s.cfg.SideEffectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	effCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	failed := fn(effCtx, a)
	for _, f := range failed {
		s.logger.Warn().
			Str("appointment_id", f.AppointmentID.String()).
			Str("stage", f.Stage).
			Str("error", f.Message).
			Msg("side effect failed")
	}
	return failed
}

// GetAppointment returns an appointment visible to the caller.
func (s *Service) GetAppointment(ctx context.Context, caller auth.Caller, id uuid.UUID) (*Appointment, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeView(caller, a); err != nil {
		return nil, err
	}
	return a, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListAppointmentsByPatient retrieves appointments for a specific patient
func (s *Service) ListAppointmentsByPatient(ctx context.Context, caller auth.Caller, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if caller.Role == auth.RoleUser && caller.ID != patientID {
		return nil, apperr.Ownership(patientID.String())
	}
	if caller.Role != auth.RoleUser && caller.Role != auth.RoleAdmin {
		return nil, apperr.Forbidden("only the patient or an admin can list a patient's appointments")
	}
	return s.list(ctx, ListFilter{PatientID: &patientID}, limit, offset)
}

// ListAppointmentsByDoctor retrieves a doctor's appointments
func (s *Service) ListAppointmentsByDoctor(ctx context.Context, caller auth.Caller, doctorID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if caller.Role != auth.RoleAdmin && !(caller.Role == auth.RoleDoctor && caller.ID == doctorID) {
		return nil, apperr.Ownership(doctorID.String())
	}
	return s.list(ctx, ListFilter{DoctorID: &doctorID}, limit, offset)
}

// ListAppointmentsByCenter retrieves appointments of both kinds at one center
func (s *Service) ListAppointmentsByCenter(ctx context.Context, caller auth.Caller, centerID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if caller.Role != auth.RoleAdmin && !(caller.IsCenterStaff() && caller.CenterID == centerID) {
		return nil, apperr.Ownership(centerID.String())
	}
	return s.list(ctx, ListFilter{CenterID: &centerID}, limit, offset)
}

// PaymentHistory lists a patient's paid appointments.
func (s *Service) PaymentHistory(ctx context.Context, caller auth.Caller, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if caller.Role != auth.RoleAdmin && caller.ID != patientID {
		return nil, apperr.Ownership(patientID.String())
	}
	return s.list(ctx, ListFilter{PatientID: &patientID, PaidOnly: true}, limit, offset)
}

func (s *Service) list(ctx context.Context, f ListFilter, limit, offset int) ([]Appointment, error) {
	f.Limit, f.Offset = clampPage(limit, offset)
	appointments, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appointments, nil
}

// ExpirePendingHolds is intended to be called by the worker periodically. It
// cancels unpaid doctor holds older than the configured TTL so their slots are
// released. A hold paid after it was selected is left alone.
func (s *Service) ExpirePendingHolds(ctx context.Context) (int, error) {
	if s.cfg.PendingHoldTTL <= 0 {
		return 0, nil
	}

	candidates, err := s.repo.FindExpiredPending(ctx, s.now().Add(-s.cfg.PendingHoldTTL))
	if err != nil {
		return 0, fmt.Errorf("find expired pending appointments: %w", err)
	}

	expired := 0
	for _, appt := range candidates {
		_, err := s.mutate(ctx, appt.ID, checkExpire, func(a *Appointment) (*Appointment, error) {
			return s.writeCancel(ctx, a, false)
		})
		if errors.Is(err, errHoldSettled) {
			s.logger.Debug().Str("appointment_id", appt.ID.String()).Msg("hold settled before expiry")
			continue
		}
		if err != nil {
			if apperr.KindOf(err) == nil {
				s.logger.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to expire appointment")
			}
			continue
		}
		s.logEvent(ctx, appt.ID, EventAppointmentExpired, map[string]any{
			"reason": "worker",
		})
		expired++
	}

	return expired, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	LogEvent(ctx, s.repo, s.logger, appointmentID, eventType, payload)
}

// EventSink is the part of a repository that stores events.
type EventSink interface {
	InsertEvent(ctx context.Context, ev EventLog) error
}

// LogEvent appends an event row. Failures are logged and otherwise ignored.
func LogEvent(ctx context.Context, sink EventSink, logger zerolog.Logger, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Warn().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := sink.InsertEvent(context.WithoutCancel(ctx), ev); err != nil {
		logger.Warn().Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}
