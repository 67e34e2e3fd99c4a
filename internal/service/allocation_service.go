package service

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gopkg.in/guregu/null.v4"

	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/domain"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/notify"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/repository"
)

// Config carries the temporal policy of the allocation engine. Zero fields
// fall back to the defaults below.
type Config struct {
	DefaultDuration time.Duration // session length granted on deposit/fulfillment
	Extension       time.Duration // added by Extend, once per session
	ReservationSpan time.Duration // width of a reserved window
	MinLeadTime     time.Duration // earliest allowed reservation start, from now
	MaxLeadTime     time.Duration // latest allowed reservation start, from now
	FulfillGrace    time.Duration // fulfillment allowed within start +/- grace
	StoreTimeout    time.Duration
	StoreRetries    int
}

func DefaultConfig() Config {
	return Config{
		DefaultDuration: 4 * time.Hour,
		Extension:       4 * time.Hour,
		ReservationSpan: 4 * time.Hour,
		MinLeadTime:     24 * time.Hour,
		MaxLeadTime:     7 * 24 * time.Hour,
		FulfillGrace:    15 * time.Minute,
		StoreTimeout:    5 * time.Second,
		StoreRetries:    3,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.DefaultDuration <= 0 {
		c.DefaultDuration = def.DefaultDuration
	}
	if c.Extension <= 0 {
		c.Extension = def.Extension
	}
	if c.ReservationSpan <= 0 {
		c.ReservationSpan = def.ReservationSpan
	}
	if c.MinLeadTime <= 0 {
		c.MinLeadTime = def.MinLeadTime
	}
	if c.MaxLeadTime <= 0 {
		c.MaxLeadTime = def.MaxLeadTime
	}
	if c.FulfillGrace <= 0 {
		c.FulfillGrace = def.FulfillGrace
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = def.StoreTimeout
	}
	if c.StoreRetries <= 0 {
		c.StoreRetries = def.StoreRetries
	}
	return c
}

// AllocationService owns every transition of spot, session and reservation
// state. Each operation runs under the engine mutex plus one store
// transaction, which is the mutual-exclusion unit the rest of the system
// relies on: the sweeper goes through the same methods, and the dispatcher
// never touches the store directly.
type AllocationService struct {
	store    repository.Store
	notifier notify.Notifier
	cfg      Config

	mu  sync.Mutex
	now func() time.Time
}

func NewAllocationService(store repository.Store, notifier notify.Notifier, cfg Config) *AllocationService {
	return &AllocationService{
		store:    store,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// withStore runs fn as one transaction with a bounded timeout, retrying
// transient store failures a fixed number of times before surfacing
// ErrStoreUnavailable. Domain errors pass through untouched on the first
// attempt.
func (s *AllocationService) withStore(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < s.cfg.StoreRetries; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
		err = s.store.WithinTx(opCtx, fn)
		cancel()
		if err == nil || !isTransient(err) {
			return err
		}
		log.Printf("allocation engine: transient store failure (attempt %d/%d): %v",
			attempt+1, s.cfg.StoreRetries, err)
		select {
		case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, ctx.Err())
		}
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func isTransient(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn)
}

func (s *AllocationService) notify(subscriberCode string, kind domain.EventKind, payload map[string]interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(domain.Notification{
		SubscriberCode: subscriberCode,
		Kind:           kind,
		Payload:        payload,
		OccurredAt:     s.now(),
	})
}

// Deposit assigns the lowest-id free spot to the subscriber and opens a
// session for the default duration.
func (s *AllocationService) Deposit(ctx context.Context, subscriberCode string) (*domain.ParkingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var created *domain.ParkingSession
	err := s.withStore(ctx, func(ctx context.Context) error {
		if _, err := s.store.Subscribers().FindByCode(ctx, subscriberCode); err != nil {
			return err
		}
		if _, err := s.store.Sessions().FindOpenBySubscriber(ctx, subscriberCode); err == nil {
			return ErrSubscriberAlreadyParked
		} else if !errors.Is(err, repository.ErrNoOpenSession) {
			return err
		}

		spot, err := s.store.Spots().FindFirstFree(ctx)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNoSpotAvailable
			}
			return err
		}

		session, err := s.openSession(ctx, subscriberCode, spot.ID)
		if err != nil {
			return err
		}
		created = session
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("deposit: subscriber %s parked at spot %d (code %s, until %s)",
		subscriberCode, created.SpotID, created.ParkingCode, created.ExpectedExit.Format(time.RFC3339))
	s.notify(subscriberCode, domain.EventVehicleDeposited, map[string]interface{}{
		"spot_id":            created.SpotID,
		"parking_code":       created.ParkingCode,
		"expected_exit_time": created.ExpectedExit,
	})
	return created, nil
}

// openSession creates an open session for the subscriber at the given spot
// and flips the spot to occupied. Callers hold the engine mutex and run
// inside a transaction.
func (s *AllocationService) openSession(ctx context.Context, subscriberCode string, spotID int) (*domain.ParkingSession, error) {
	code, err := s.newParkingCode(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	session := &domain.ParkingSession{
		SubscriberCode: subscriberCode,
		SpotID:         spotID,
		ParkingCode:    code,
		EntryTime:      now,
		ExpectedExit:   now.Add(s.cfg.DefaultDuration),
		Status:         domain.SessionOpen,
	}
	created, err := s.store.Sessions().Create(ctx, session)
	if err != nil {
		return nil, err
	}
	if err := s.store.Spots().UpdateStatus(ctx, spotID, domain.SpotOccupied); err != nil {
		return nil, err
	}
	return created, nil
}

// Reserve books a pool-wide capacity hold for a window starting between 24
// hours and 7 days from now. No spot is bound until fulfillment.
func (s *AllocationService) Reserve(ctx context.Context, subscriberCode string, start time.Time) (*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	start = start.UTC()
	if start.Before(now.Add(s.cfg.MinLeadTime)) || start.After(now.Add(s.cfg.MaxLeadTime)) {
		return nil, ErrInvalidWindow
	}

	var created *domain.Reservation
	err := s.withStore(ctx, func(ctx context.Context) error {
		if _, err := s.store.Subscribers().FindByCode(ctx, subscriberCode); err != nil {
			return err
		}

		total, err := s.store.Spots().Count(ctx)
		if err != nil {
			return err
		}
		end := start.Add(s.cfg.ReservationSpan)
		overlappingRes, err := s.store.Reservations().FindActiveOverlapping(ctx, start, end)
		if err != nil {
			return err
		}
		overlappingSes, err := s.store.Sessions().FindOpenOverlapping(ctx, start, end)
		if err != nil {
			return err
		}
		if len(overlappingRes)+len(overlappingSes) >= total {
			return ErrNoCapacity
		}

		code, err := s.newConfirmationCode(ctx)
		if err != nil {
			return err
		}
		res := &domain.Reservation{
			SubscriberCode:   subscriberCode,
			ConfirmationCode: code,
			StartTime:        start,
			EndTime:          end,
			Status:           domain.ReservationActive,
		}
		created, err = s.store.Reservations().Create(ctx, res)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("reserve: subscriber %s holds %s for %s",
		subscriberCode, created.ConfirmationCode, created.StartTime.Format(time.RFC3339))
	s.notify(subscriberCode, domain.EventReservationConfirmed, map[string]interface{}{
		"confirmation_code": created.ConfirmationCode,
		"start_time":        created.StartTime,
	})
	return created, nil
}

// FulfillReservation turns an active reservation into an open session. Only
// valid within the grace window around the reserved start; outside it the
// reservation is (or is about to be) expired.
func (s *AllocationService) FulfillReservation(ctx context.Context, confirmationCode string) (*domain.ParkingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var created *domain.ParkingSession
	var subscriberCode string
	err := s.withStore(ctx, func(ctx context.Context) error {
		res, err := s.store.Reservations().FindByConfirmationCode(ctx, confirmationCode)
		if err != nil {
			return err
		}
		switch res.Status {
		case domain.ReservationFulfilled:
			return ErrAlreadyFulfilled
		case domain.ReservationExpired:
			return ErrReservationExpired
		case domain.ReservationCancelled:
			return ErrReservationNotActive
		}

		now := s.now()
		if now.Before(res.StartTime.Add(-s.cfg.FulfillGrace)) {
			return ErrFulfillTooEarly
		}
		if now.After(res.StartTime.Add(s.cfg.FulfillGrace)) {
			// The sweeper has not expired it yet, but the window is gone.
			return ErrReservationExpired
		}

		if _, err := s.store.Sessions().FindOpenBySubscriber(ctx, res.SubscriberCode); err == nil {
			return ErrSubscriberAlreadyParked
		} else if !errors.Is(err, repository.ErrNoOpenSession) {
			return err
		}

		spot, err := s.store.Spots().FindFirstFree(ctx)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNoSpotAvailable
			}
			return err
		}

		session, err := s.openSession(ctx, res.SubscriberCode, spot.ID)
		if err != nil {
			return err
		}

		res.Status = domain.ReservationFulfilled
		res.SpotID = null.IntFrom(int64(spot.ID))
		if _, err := s.store.Reservations().Update(ctx, res); err != nil {
			return err
		}

		created = session
		subscriberCode = res.SubscriberCode
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("fulfill: reservation %s became session at spot %d for subscriber %s",
		confirmationCode, created.SpotID, subscriberCode)
	s.notify(subscriberCode, domain.EventReservationFulfilled, map[string]interface{}{
		"confirmation_code": confirmationCode,
		"spot_id":           created.SpotID,
		"parking_code":      created.ParkingCode,
	})
	return created, nil
}

// CancelReservation releases an active reservation's capacity hold.
func (s *AllocationService) CancelReservation(ctx context.Context, confirmationCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var subscriberCode string
	err := s.withStore(ctx, func(ctx context.Context) error {
		res, err := s.store.Reservations().FindByConfirmationCode(ctx, confirmationCode)
		if err != nil {
			return err
		}
		if res.Status != domain.ReservationActive {
			return ErrReservationNotActive
		}
		res.Status = domain.ReservationCancelled
		if _, err := s.store.Reservations().Update(ctx, res); err != nil {
			return err
		}
		subscriberCode = res.SubscriberCode
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("cancel: reservation %s cancelled by subscriber %s", confirmationCode, subscriberCode)
	s.notify(subscriberCode, domain.EventReservationCancelled, map[string]interface{}{
		"confirmation_code": confirmationCode,
	})
	return nil
}

// Extend pushes the expected exit of the subscriber's open session by the
// fixed extension, at most once per session. A session already marked late
// may still be extended; the late flag is not cleared.
func (s *AllocationService) Extend(ctx context.Context, subscriberCode string) (*domain.ParkingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated *domain.ParkingSession
	err := s.withStore(ctx, func(ctx context.Context) error {
		session, err := s.store.Sessions().FindOpenBySubscriber(ctx, subscriberCode)
		if err != nil {
			return err
		}
		if session.Extended {
			return ErrAlreadyExtended
		}
		session.Extended = true
		session.ExpectedExit = session.ExpectedExit.Add(s.cfg.Extension)
		updated, err = s.store.Sessions().Update(ctx, session)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("extend: subscriber %s now expected out at %s",
		subscriberCode, updated.ExpectedExit.Format(time.RFC3339))
	s.notify(subscriberCode, domain.EventSessionExtended, map[string]interface{}{
		"expected_exit_time": updated.ExpectedExit,
	})
	return updated, nil
}

// Retrieve closes the open session identified by the parking code, writes its
// history row and frees the spot. All of it commits together or not at all.
func (s *AllocationService) Retrieve(ctx context.Context, parkingCode string) (*domain.ParkingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var closed *domain.ParkingSession
	err := s.withStore(ctx, func(ctx context.Context) error {
		session, err := s.store.Sessions().FindOpenByParkingCode(ctx, parkingCode)
		if err != nil {
			return err
		}

		now := s.now()
		session.ExitTime = null.TimeFrom(now)
		if now.After(session.ExpectedExit) {
			session.Late = true
		}
		session.Status = domain.SessionClosed

		if _, err := s.store.History().Create(ctx, &domain.ParkingHistory{
			SubscriberCode: session.SubscriberCode,
			SpotID:         session.SpotID,
			EntryTime:      session.EntryTime,
			ExitTime:       now,
			Extended:       session.Extended,
			Late:           session.Late,
		}); err != nil {
			return err
		}
		if _, err := s.store.Sessions().Update(ctx, session); err != nil {
			return err
		}
		if err := s.store.Spots().UpdateStatus(ctx, session.SpotID, domain.SpotFree); err != nil {
			return err
		}
		closed = session
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("retrieve: spot %d freed by subscriber %s (late=%t, extended=%t)",
		closed.SpotID, closed.SubscriberCode, closed.Late, closed.Extended)
	s.notify(closed.SubscriberCode, domain.EventVehicleRetrieved, map[string]interface{}{
		"spot_id": closed.SpotID,
		"late":    closed.Late,
	})
	return closed, nil
}

// --- read-side queries ---

func (s *AllocationService) ActiveSessions(ctx context.Context) ([]domain.ParkingSession, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.store.Sessions().FindAllOpen(opCtx)
}

func (s *AllocationService) HistoryBySubscriber(ctx context.Context, subscriberCode string) ([]domain.ParkingHistory, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.store.History().FindBySubscriber(opCtx, subscriberCode)
}

func (s *AllocationService) Subscriber(ctx context.Context, code string) (*domain.Subscriber, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.store.Subscribers().FindByCode(opCtx, code)
}

// Availability reports the free/total spot counts plus the spot list, for
// kiosk and display use.
func (s *AllocationService) Availability(ctx context.Context) (free, total int, spots []domain.ParkingSpot, err error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	spots, err = s.store.Spots().FindAll(opCtx)
	if err != nil {
		return 0, 0, nil, err
	}
	for _, spot := range spots {
		if spot.Status == domain.SpotFree {
			free++
		}
	}
	return free, len(spots), spots, nil
}
