package slots

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Hasnainmunshi/diagnostic-management/internal/apperr"
	"github.com/Hasnainmunshi/diagnostic-management/internal/auth"
	redisclient "github.com/Hasnainmunshi/diagnostic-management/internal/redis"
)

// Doctors resolves a doctor's ledger cap. Unknown doctors yield apperr.ErrNotFound.
type Doctors interface {
	LedgerCap(ctx context.Context, doctorID uuid.UUID) (int, error)
}

type SlotInput struct {
	Date string
	Time string
}

type Service struct {
	store   Store
	doctors Doctors
	locker  redisclient.Locker
	loc     *time.Location
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(store Store, doctors Doctors, locker redisclient.Locker, loc *time.Location, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		doctors: doctors,
		locker:  locker,
		loc:     loc,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *Service) today() time.Time { return Today(s.now(), s.loc) }

// AddSlots publishes free entries on a doctor's ledger. Only the doctor or an admin may do so.
func (s *Service) AddSlots(ctx context.Context, caller auth.Caller, doctorID uuid.UUID, inputs []SlotInput) (int, error) {
	if caller.Role != auth.RoleAdmin && !(caller.Role == auth.RoleDoctor && caller.ID == doctorID) {
		return 0, apperr.Forbidden("only the doctor or an admin can publish slots")
	}
	if len(inputs) == 0 {
		return 0, apperr.Validation("slots", "at least one slot is required")
	}

	today := s.today()
	keys := make([]Key, 0, len(inputs))
	for _, in := range inputs {
		k, err := ParseKey(in.Date, in.Time)
		if err != nil {
			return 0, err
		}
		if k.Date.Before(today) {
			return 0, apperr.PastDate("date", in.Date)
		}
		keys = append(keys, k)
	}

	max, err := s.doctors.LedgerCap(ctx, doctorID)
	if err != nil {
		return 0, err
	}

	var added int
	err = s.locker.WithLock(ctx, redisclient.DoctorKey(doctorID), func(ctx context.Context) error {
		n, addErr := s.store.Add(ctx, doctorID, keys, max)
		added = n
		return addErr
	})
	if err != nil {
		return 0, fmt.Errorf("add slots: %w", err)
	}

	s.logger.Info().Str("doctor_id", doctorID.String()).Int("added", added).Msg("slots published")
	return added, nil
}

// ListAvailable returns the doctor's free entries dated today or later.
func (s *Service) ListAvailable(ctx context.Context, doctorID uuid.UUID) (iter.Seq[Entry], error) {
	max, err := s.doctors.LedgerCap(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	ledger, err := s.store.Load(ctx, doctorID, max)
	if err != nil {
		return nil, err
	}
	return ledger.Available(s.today()), nil
}

// PrunePast removes free entries dated before today across all ledgers.
func (s *Service) PrunePast(ctx context.Context) (int64, error) {
	return s.store.PruneBefore(ctx, s.today())
}

// ParseKey validates and normalizes a date/time pair.
func ParseKey(date, clock string) (Key, error) {
	if date == "" {
		return Key{}, apperr.Validation("date", "date is required")
	}
	if clock == "" {
		return Key{}, apperr.Validation("time", "time is required")
	}
	d, err := ParseDate(date)
	if err != nil {
		return Key{}, apperr.Validation("date", "date must be YYYY-MM-DD")
	}
	c, err := ParseClock(clock)
	if err != nil {
		return Key{}, apperr.Validation("time", "time must be HH:MM")
	}
	return Key{Date: d, Time: c}, nil
}
