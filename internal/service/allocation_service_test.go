package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/domain"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/repository"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/repository/memory"
)

// recorder captures notifications synchronously for assertions.
type recorder struct {
	mu     sync.Mutex
	events []domain.Notification
}

func (r *recorder) Notify(n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n)
}

func (r *recorder) kinds() []domain.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]domain.EventKind, 0, len(r.events))
	for _, n := range r.events {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

var testEpoch = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, totalSpots int, subscribers ...string) (*AllocationService, *memory.Store, *recorder) {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	require.NoError(t, store.Spots().EnsurePool(ctx, totalSpots))
	for _, code := range subscribers {
		_, err := store.Subscribers().Create(ctx, &domain.Subscriber{Code: code, Name: "Subscriber " + code})
		require.NoError(t, err)
	}

	rec := &recorder{}
	svc := NewAllocationService(store, rec, DefaultConfig())
	svc.now = func() time.Time { return testEpoch }
	return svc, store, rec
}

func setClock(svc *AllocationService, at time.Time) {
	svc.now = func() time.Time { return at }
}

func TestDeposit(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns lowest free spot", func(t *testing.T) {
		svc, _, rec := newTestEngine(t, 3, "sub-1", "sub-2", "sub-3")

		first, err := svc.Deposit(ctx, "sub-1")
		require.NoError(t, err)
		second, err := svc.Deposit(ctx, "sub-2")
		require.NoError(t, err)

		assert.Equal(t, 1, first.SpotID)
		assert.Equal(t, 2, second.SpotID)
		assert.Equal(t, domain.SessionOpen, first.Status)
		assert.Equal(t, testEpoch.Add(4*time.Hour), first.ExpectedExit)
		assert.Regexp(t, `^PK-[0-9A-F]{8}$`, first.ParkingCode)
		assert.Equal(t, []domain.EventKind{domain.EventVehicleDeposited, domain.EventVehicleDeposited}, rec.kinds())
	})

	t.Run("reuses freed spot", func(t *testing.T) {
		svc, _, _ := newTestEngine(t, 3, "sub-1", "sub-2", "sub-3")

		_, err := svc.Deposit(ctx, "sub-1")
		require.NoError(t, err)
		second, err := svc.Deposit(ctx, "sub-2")
		require.NoError(t, err)

		_, err = svc.Retrieve(ctx, second.ParkingCode)
		require.NoError(t, err)

		third, err := svc.Deposit(ctx, "sub-3")
		require.NoError(t, err)
		assert.Equal(t, 2, third.SpotID)
	})

	t.Run("rejects a second open session", func(t *testing.T) {
		svc, _, _ := newTestEngine(t, 3, "sub-1")

		_, err := svc.Deposit(ctx, "sub-1")
		require.NoError(t, err)
		_, err = svc.Deposit(ctx, "sub-1")
		assert.ErrorIs(t, err, ErrSubscriberAlreadyParked)
	})

	t.Run("rejects when full", func(t *testing.T) {
		svc, _, _ := newTestEngine(t, 1, "sub-1", "sub-2")

		_, err := svc.Deposit(ctx, "sub-1")
		require.NoError(t, err)
		_, err = svc.Deposit(ctx, "sub-2")
		assert.ErrorIs(t, err, ErrNoSpotAvailable)
	})

	t.Run("rejects unknown subscriber", func(t *testing.T) {
		svc, _, _ := newTestEngine(t, 1, "sub-1")

		_, err := svc.Deposit(ctx, "nobody")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestDepositConcurrent(t *testing.T) {
	ctx := context.Background()
	subscribers := []string{"c-1", "c-2", "c-3", "c-4", "c-5", "c-6", "c-7", "c-8"}
	svc, _, _ := newTestEngine(t, 5, subscribers...)

	var wg sync.WaitGroup
	var mu sync.Mutex
	spotsTaken := make(map[int]string)
	var rejected int

	for _, code := range subscribers {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			session, err := svc.Deposit(ctx, code)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, ErrNoSpotAvailable)
				rejected++
				return
			}
			prev, taken := spotsTaken[session.SpotID]
			assert.False(t, taken, "spot %d assigned to both %s and %s", session.SpotID, prev, code)
			spotsTaken[session.SpotID] = code
		}(code)
	}
	wg.Wait()

	assert.Len(t, spotsTaken, 5)
	assert.Equal(t, 3, rejected)
}

func TestReserve(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts a start inside the lead window", func(t *testing.T) {
		svc, _, rec := newTestEngine(t, 2, "sub-1")

		start := testEpoch.Add(48 * time.Hour)
		res, err := svc.Reserve(ctx, "sub-1", start)
		require.NoError(t, err)

		assert.Equal(t, domain.ReservationActive, res.Status)
		assert.Equal(t, start, res.StartTime)
		assert.Equal(t, start.Add(4*time.Hour), res.EndTime)
		assert.False(t, res.SpotID.Valid)
		assert.Regexp(t, `^RS-[0-9A-F]{8}$`, res.ConfirmationCode)
		assert.Equal(t, []domain.EventKind{domain.EventReservationConfirmed}, rec.kinds())
	})

	t.Run("rejects starts outside the lead window", func(t *testing.T) {
		svc, _, _ := newTestEngine(t, 2, "sub-1")

		for name, start := range map[string]time.Time{
			"in the past":      testEpoch.Add(-time.Hour),
			"too soon":         testEpoch.Add(23 * time.Hour),
			"beyond the limit": testEpoch.Add(8 * 24 * time.Hour),
		} {
			_, err := svc.Reserve(ctx, "sub-1", start)
			assert.ErrorIs(t, err, ErrInvalidWindow, name)
		}
	})

	t.Run("rejects when the window has no capacity", func(t *testing.T) {
		svc, _, _ := newTestEngine(t, 1, "sub-1", "sub-2")

		start := testEpoch.Add(48 * time.Hour)
		_, err := svc.Reserve(ctx, "sub-1", start)
		require.NoError(t, err)

		// Second hold on the only spot, shifted but still overlapping.
		_, err = svc.Reserve(ctx, "sub-2", start.Add(time.Hour))
		assert.ErrorIs(t, err, ErrNoCapacity)

		// A disjoint window is fine.
		_, err = svc.Reserve(ctx, "sub-2", start.Add(24*time.Hour))
		assert.NoError(t, err)
	})

	t.Run("counts open sessions against capacity", func(t *testing.T) {
		svc, _, _ := newTestEngine(t, 1, "sub-1", "sub-2")

		_, err := svc.Deposit(ctx, "sub-1")
		require.NoError(t, err)

		// The open session runs until testEpoch+4h; a reservation far in the
		// future does not collide with it.
		_, err = svc.Reserve(ctx, "sub-2", testEpoch.Add(48*time.Hour))
		assert.NoError(t, err)
	})
}

func TestFulfillReservation(t *testing.T) {
	ctx := context.Background()

	reserve := func(t *testing.T, svc *AllocationService, subscriber string) *domain.Reservation {
		t.Helper()
		res, err := svc.Reserve(ctx, subscriber, testEpoch.Add(48*time.Hour))
		require.NoError(t, err)
		return res
	}

	t.Run("opens a session inside the grace window", func(t *testing.T) {
		svc, store, rec := newTestEngine(t, 2, "sub-1")
		res := reserve(t, svc, "sub-1")

		setClock(svc, res.StartTime.Add(5*time.Minute))
		session, err := svc.FulfillReservation(ctx, res.ConfirmationCode)
		require.NoError(t, err)

		assert.Equal(t, 1, session.SpotID)
		assert.Equal(t, "sub-1", session.SubscriberCode)

		updated, err := store.Reservations().FindByConfirmationCode(ctx, res.ConfirmationCode)
		require.NoError(t, err)
		assert.Equal(t, domain.ReservationFulfilled, updated.Status)
		assert.Equal(t, int64(1), updated.SpotID.Int64)
		assert.Contains(t, rec.kinds(), domain.EventReservationFulfilled)
	})

	t.Run("rejects fulfillment before the grace window", func(t *testing.T) {
		svc, _, _ := newTestEngine(t, 2, "sub-1")
		res := reserve(t, svc, "sub-1")

		setClock(svc, res.StartTime.Add(-time.Hour))
		_, err := svc.FulfillReservation(ctx, res.ConfirmationCode)
		assert.ErrorIs(t, err, ErrFulfillTooEarly)
	})

	t.Run("rejects fulfillment after the grace window", func(t *testing.T) {
		svc, _, _ := newTestEngine(t, 2, "sub-1")
		res := reserve(t, svc, "sub-1")

		setClock(svc, res.StartTime.Add(16*time.Minute))
		_, err := svc.FulfillReservation(ctx, res.ConfirmationCode)
		assert.ErrorIs(t, err, ErrReservationExpired)
	})

	t.Run("rejects a second fulfillment", func(t *testing.T) {
		svc, _, _ := newTestEngine(t, 2, "sub-1")
		res := reserve(t, svc, "sub-1")

		setClock(svc, res.StartTime)
		session, err := svc.FulfillReservation(ctx, res.ConfirmationCode)
		require.NoError(t, err)

		// Even with the first session gone, the reservation is spent.
		_, err = svc.Retrieve(ctx, session.ParkingCode)
		require.NoError(t, err)
		_, err = svc.FulfillReservation(ctx, res.ConfirmationCode)
		assert.ErrorIs(t, err, ErrAlreadyFulfilled)
	})

	t.Run("rejects an unknown confirmation code", func(t *testing.T) {
		svc, _, _ := newTestEngine(t, 2, "sub-1")

		_, err := svc.FulfillReservation(ctx, "RS-DEADBEEF")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestCancelReservation(t *testing.T) {
	ctx := context.Background()
	svc, store, rec := newTestEngine(t, 1, "sub-1", "sub-2")

	res, err := svc.Reserve(ctx, "sub-1", testEpoch.Add(48*time.Hour))
	require.NoError(t, err)

	require.NoError(t, svc.CancelReservation(ctx, res.ConfirmationCode))
	updated, err := store.Reservations().FindByConfirmationCode(ctx, res.ConfirmationCode)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationCancelled, updated.Status)
	assert.Contains(t, rec.kinds(), domain.EventReservationCancelled)

	// Cancelling releases the capacity hold for other subscribers.
	_, err = svc.Reserve(ctx, "sub-2", res.StartTime)
	assert.NoError(t, err)

	// A cancelled reservation can be neither cancelled nor fulfilled again.
	assert.ErrorIs(t, svc.CancelReservation(ctx, res.ConfirmationCode), ErrReservationNotActive)
	setClock(svc, res.StartTime)
	_, err = svc.FulfillReservation(ctx, res.ConfirmationCode)
	assert.ErrorIs(t, err, ErrReservationNotActive)
}

func TestExtend(t *testing.T) {
	ctx := context.Background()

	t.Run("pushes the expected exit once", func(t *testing.T) {
		svc, _, rec := newTestEngine(t, 1, "sub-1")

		session, err := svc.Deposit(ctx, "sub-1")
		require.NoError(t, err)

		extended, err := svc.Extend(ctx, "sub-1")
		require.NoError(t, err)
		assert.Equal(t, session.ExpectedExit.Add(4*time.Hour), extended.ExpectedExit)
		assert.True(t, extended.Extended)
		assert.Contains(t, rec.kinds(), domain.EventSessionExtended)

		_, err = svc.Extend(ctx, "sub-1")
		assert.ErrorIs(t, err, ErrAlreadyExtended)
	})

	t.Run("requires an open session", func(t *testing.T) {
		svc, _, _ := newTestEngine(t, 1, "sub-1")

		_, err := svc.Extend(ctx, "sub-1")
		assert.ErrorIs(t, err, repository.ErrNoOpenSession)
	})

	t.Run("still works on a late session", func(t *testing.T) {
		svc, _, _ := newTestEngine(t, 1, "sub-1")

		session, err := svc.Deposit(ctx, "sub-1")
		require.NoError(t, err)

		setClock(svc, session.ExpectedExit.Add(time.Hour))
		_, err = svc.SweepOverdue(ctx)
		require.NoError(t, err)

		extended, err := svc.Extend(ctx, "sub-1")
		require.NoError(t, err)
		assert.True(t, extended.Late, "extension does not clear the late flag")
	})
}

func TestRetrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("closes the session and frees the spot", func(t *testing.T) {
		svc, store, rec := newTestEngine(t, 1, "sub-1")

		session, err := svc.Deposit(ctx, "sub-1")
		require.NoError(t, err)

		exitAt := testEpoch.Add(2 * time.Hour)
		setClock(svc, exitAt)
		closed, err := svc.Retrieve(ctx, session.ParkingCode)
		require.NoError(t, err)

		assert.Equal(t, domain.SessionClosed, closed.Status)
		assert.False(t, closed.Late)
		assert.Equal(t, exitAt, closed.ExitTime.Time)

		spot, err := store.Spots().FindByID(ctx, session.SpotID)
		require.NoError(t, err)
		assert.Equal(t, domain.SpotFree, spot.Status)

		records, err := svc.HistoryBySubscriber(ctx, "sub-1")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, session.EntryTime, records[0].EntryTime)
		assert.Equal(t, exitAt, records[0].ExitTime)
		assert.Contains(t, rec.kinds(), domain.EventVehicleRetrieved)
	})

	t.Run("flags a late exit", func(t *testing.T) {
		svc, _, _ := newTestEngine(t, 1, "sub-1")

		session, err := svc.Deposit(ctx, "sub-1")
		require.NoError(t, err)

		setClock(svc, session.ExpectedExit.Add(time.Minute))
		closed, err := svc.Retrieve(ctx, session.ParkingCode)
		require.NoError(t, err)
		assert.True(t, closed.Late)
	})

	t.Run("rejects an unknown or spent parking code", func(t *testing.T) {
		svc, _, _ := newTestEngine(t, 1, "sub-1")

		session, err := svc.Deposit(ctx, "sub-1")
		require.NoError(t, err)
		_, err = svc.Retrieve(ctx, session.ParkingCode)
		require.NoError(t, err)

		_, err = svc.Retrieve(ctx, session.ParkingCode)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestAvailability(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestEngine(t, 3, "sub-1")

	free, total, spots, err := svc.Availability(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, free)
	assert.Equal(t, 3, total)
	require.Len(t, spots, 3)

	_, err = svc.Deposit(ctx, "sub-1")
	require.NoError(t, err)

	free, total, _, err = svc.Availability(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, free)
	assert.Equal(t, 3, total)
}
