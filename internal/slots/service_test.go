package slots

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hasnainmunshi/diagnostic-management/internal/apperr"
	"github.com/Hasnainmunshi/diagnostic-management/internal/auth"
	redisclient "github.com/Hasnainmunshi/diagnostic-management/internal/redis"
)

type memStore struct {
	ledgers map[uuid.UUID]*Ledger
	pruned  time.Time
}

func (m *memStore) ledger(id uuid.UUID, max int) *Ledger {
	l, ok := m.ledgers[id]
	if !ok {
		l = NewLedger(max)
		m.ledgers[id] = l
	}
	return l
}

func (m *memStore) Load(_ context.Context, id uuid.UUID, max int) (*Ledger, error) {
	return NewLedger(max, m.ledger(id, max).Entries()...), nil
}

func (m *memStore) Add(_ context.Context, id uuid.UUID, keys []Key, max int) (int, error) {
	return m.ledger(id, max).Add(keys...)
}

func (m *memStore) PruneBefore(_ context.Context, date time.Time) (int64, error) {
	m.pruned = date
	return 0, nil
}

type capLookup map[uuid.UUID]int

func (c capLookup) LedgerCap(_ context.Context, id uuid.UUID) (int, error) {
	n, ok := c[id]
	if !ok {
		return 0, apperr.NotFound("doctor", id.String())
	}
	return n, nil
}

func newService(doctor uuid.UUID) (*Service, *memStore) {
	store := &memStore{ledgers: map[uuid.UUID]*Ledger{}}
	svc := NewService(store, capLookup{doctor: 3}, redisclient.NewLocalLocker(), time.UTC, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) }
	return svc, store
}

func TestAddSlotsAndListAvailable(t *testing.T) {
	doctor := uuid.New()
	svc, _ := newService(doctor)
	caller := auth.Caller{ID: doctor, Role: auth.RoleDoctor}

	n, err := svc.AddSlots(context.Background(), caller, doctor, []SlotInput{
		{Date: "2025-06-02", Time: "10:00"},
		{Date: "2025-06-01", Time: "16:00"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	seq, err := svc.ListAvailable(context.Background(), doctor)
	require.NoError(t, err)
	got := slices.Collect(seq)
	require.Len(t, got, 2)
	assert.Equal(t, "16:00", got[0].Time)
}

func TestAddSlotsRules(t *testing.T) {
	doctor := uuid.New()
	svc, _ := newService(doctor)
	ctx := context.Background()

	_, err := svc.AddSlots(ctx, auth.Caller{ID: uuid.New(), Role: auth.RoleDoctor}, doctor,
		[]SlotInput{{Date: "2025-06-02", Time: "10:00"}})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	admin := auth.Caller{ID: uuid.New(), Role: auth.RoleAdmin}
	_, err = svc.AddSlots(ctx, admin, doctor, []SlotInput{{Date: "2025-05-31", Time: "10:00"}})
	assert.ErrorIs(t, err, apperr.ErrPastDate)

	_, err = svc.AddSlots(ctx, admin, uuid.New(), []SlotInput{{Date: "2025-06-02", Time: "10:00"}})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.AddSlots(ctx, admin, doctor, []SlotInput{
		{Date: "2025-06-02", Time: "10:00"}, {Date: "2025-06-02", Time: "11:00"},
		{Date: "2025-06-02", Time: "12:00"}, {Date: "2025-06-02", Time: "13:00"},
	})
	assert.ErrorIs(t, err, apperr.ErrSlotConflict)
}

func TestListAvailableUnknownDoctor(t *testing.T) {
	svc, _ := newService(uuid.New())
	_, err := svc.ListAvailable(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPrunePastUsesToday(t *testing.T) {
	svc, store := newService(uuid.New())
	_, err := svc.PrunePast(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), store.pruned)
}
