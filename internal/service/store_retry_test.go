package service

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/domain"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/repository"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/repository/memory"
)

// flakyStore fails the first N WithinTx calls with a fixed error, then
// delegates to the wrapped store.
type flakyStore struct {
	repository.Store
	failures int
	failErr  error
	attempts int
}

func (f *flakyStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.attempts++
	if f.attempts <= f.failures {
		return f.failErr
	}
	return f.Store.WithinTx(ctx, fn)
}

func newFlakyEngine(t *testing.T, failures int, failErr error) (*AllocationService, *flakyStore) {
	t.Helper()
	ctx := context.Background()

	inner := memory.NewStore()
	require.NoError(t, inner.Spots().EnsurePool(ctx, 1))
	_, err := inner.Subscribers().Create(ctx, &domain.Subscriber{Code: "sub-1", Name: "Subscriber One"})
	require.NoError(t, err)

	store := &flakyStore{Store: inner, failures: failures, failErr: failErr}
	cfg := DefaultConfig()
	cfg.StoreTimeout = time.Second
	svc := NewAllocationService(store, nil, cfg)
	svc.now = func() time.Time { return testEpoch }
	return svc, store
}

func TestWithStoreRetries(t *testing.T) {
	ctx := context.Background()

	t.Run("recovers from transient timeouts", func(t *testing.T) {
		svc, store := newFlakyEngine(t, 2, context.DeadlineExceeded)

		session, err := svc.Deposit(ctx, "sub-1")
		require.NoError(t, err)
		assert.Equal(t, 1, session.SpotID)
		assert.Equal(t, 3, store.attempts, "two failures then the committing attempt")
	})

	t.Run("recovers from a bad connection", func(t *testing.T) {
		svc, store := newFlakyEngine(t, 1, driver.ErrBadConn)

		_, err := svc.Deposit(ctx, "sub-1")
		require.NoError(t, err)
		assert.Equal(t, 2, store.attempts)
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		svc, store := newFlakyEngine(t, 100, context.DeadlineExceeded)

		_, err := svc.Deposit(ctx, "sub-1")
		assert.ErrorIs(t, err, ErrStoreUnavailable)
		assert.Equal(t, DefaultConfig().StoreRetries, store.attempts)

		sessions, err := svc.ActiveSessions(ctx)
		require.NoError(t, err)
		assert.Empty(t, sessions, "no partial state after giving up")
	})

	t.Run("does not retry domain errors", func(t *testing.T) {
		boom := errors.New("permission denied for table parking_sessions")
		svc, store := newFlakyEngine(t, 100, boom)

		_, err := svc.Deposit(ctx, "sub-1")
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrStoreUnavailable)
		assert.Equal(t, 1, store.attempts, "non-transient failures surface immediately")
	})
}
