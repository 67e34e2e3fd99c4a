// Package memory implements repository.Store entirely in process memory.
// It backs the test suite and local runs without PostgreSQL. WithinTx takes a
// snapshot of the whole state and restores it when fn fails, so the atomicity
// contract matches the SQL implementation.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/domain"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/repository"
)

type txMarker struct{}

type state struct {
	subscribers  map[string]domain.Subscriber
	spots        map[int]domain.ParkingSpot
	sessions     map[int]domain.ParkingSession
	reservations map[int]domain.Reservation
	history      []domain.ParkingHistory

	nextSessionID     int
	nextReservationID int
	nextHistoryID     int
}

type Store struct {
	mu sync.Mutex
	st state
}

func NewStore() *Store {
	return &Store{
		st: state{
			subscribers:       make(map[string]domain.Subscriber),
			spots:             make(map[int]domain.ParkingSpot),
			sessions:          make(map[int]domain.ParkingSession),
			reservations:      make(map[int]domain.Reservation),
			nextSessionID:     1,
			nextReservationID: 1,
			nextHistoryID:     1,
		},
	}
}

func (s *Store) Subscribers() repository.SubscriberRepository   { return &subscriberRepo{s} }
func (s *Store) Spots() repository.SpotRepository               { return &spotRepo{s} }
func (s *Store) Sessions() repository.SessionRepository         { return &sessionRepo{s} }
func (s *Store) Reservations() repository.ReservationRepository { return &reservationRepo{s} }
func (s *Store) History() repository.HistoryRepository          { return &historyRepo{s} }

// lock acquires the store mutex unless the context is already inside a
// WithinTx call, which holds it for the whole transaction.
func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txMarker{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(context.WithValue(ctx, txMarker{}, struct{}{})); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (st state) clone() state {
	out := state{
		subscribers:       make(map[string]domain.Subscriber, len(st.subscribers)),
		spots:             make(map[int]domain.ParkingSpot, len(st.spots)),
		sessions:          make(map[int]domain.ParkingSession, len(st.sessions)),
		reservations:      make(map[int]domain.Reservation, len(st.reservations)),
		history:           make([]domain.ParkingHistory, len(st.history)),
		nextSessionID:     st.nextSessionID,
		nextReservationID: st.nextReservationID,
		nextHistoryID:     st.nextHistoryID,
	}
	for k, v := range st.subscribers {
		out.subscribers[k] = v
	}
	for k, v := range st.spots {
		out.spots[k] = v
	}
	for k, v := range st.sessions {
		out.sessions[k] = v
	}
	for k, v := range st.reservations {
		out.reservations[k] = v
	}
	copy(out.history, st.history)
	return out
}

// --- subscribers ---

type subscriberRepo struct{ s *Store }

func (r *subscriberRepo) Create(ctx context.Context, sub *domain.Subscriber) (*domain.Subscriber, error) {
	defer r.s.lock(ctx)()
	if _, ok := r.s.st.subscribers[sub.Code]; ok {
		return nil, repository.ErrDuplicateEntry
	}
	sub.CreatedAt = time.Now().UTC()
	r.s.st.subscribers[sub.Code] = *sub
	return sub, nil
}

func (r *subscriberRepo) FindByCode(ctx context.Context, code string) (*domain.Subscriber, error) {
	defer r.s.lock(ctx)()
	sub, ok := r.s.st.subscribers[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &sub, nil
}

func (r *subscriberRepo) FindAll(ctx context.Context) ([]domain.Subscriber, error) {
	defer r.s.lock(ctx)()
	subs := make([]domain.Subscriber, 0, len(r.s.st.subscribers))
	for _, sub := range r.s.st.subscribers {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Code < subs[j].Code })
	return subs, nil
}

// --- spots ---

type spotRepo struct{ s *Store }

func (r *spotRepo) EnsurePool(ctx context.Context, total int) error {
	defer r.s.lock(ctx)()
	for id := 1; id <= total; id++ {
		if _, ok := r.s.st.spots[id]; !ok {
			r.s.st.spots[id] = domain.ParkingSpot{ID: id, Status: domain.SpotFree, UpdatedAt: time.Now().UTC()}
		}
	}
	return nil
}

func (r *spotRepo) FindByID(ctx context.Context, id int) (*domain.ParkingSpot, error) {
	defer r.s.lock(ctx)()
	spot, ok := r.s.st.spots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &spot, nil
}

func (r *spotRepo) FindAll(ctx context.Context) ([]domain.ParkingSpot, error) {
	defer r.s.lock(ctx)()
	return r.sortedSpots(), nil
}

func (r *spotRepo) sortedSpots() []domain.ParkingSpot {
	spots := make([]domain.ParkingSpot, 0, len(r.s.st.spots))
	for _, spot := range r.s.st.spots {
		spots = append(spots, spot)
	}
	sort.Slice(spots, func(i, j int) bool { return spots[i].ID < spots[j].ID })
	return spots
}

func (r *spotRepo) FindFirstFree(ctx context.Context) (*domain.ParkingSpot, error) {
	defer r.s.lock(ctx)()
	for _, spot := range r.sortedSpots() {
		if spot.Status == domain.SpotFree {
			return &spot, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *spotRepo) Count(ctx context.Context) (int, error) {
	defer r.s.lock(ctx)()
	return len(r.s.st.spots), nil
}

func (r *spotRepo) CountByStatus(ctx context.Context, status domain.SpotStatus) (int, error) {
	defer r.s.lock(ctx)()
	count := 0
	for _, spot := range r.s.st.spots {
		if spot.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *spotRepo) UpdateStatus(ctx context.Context, id int, status domain.SpotStatus) error {
	defer r.s.lock(ctx)()
	spot, ok := r.s.st.spots[id]
	if !ok {
		return repository.ErrNotFound
	}
	spot.Status = status
	spot.UpdatedAt = time.Now().UTC()
	r.s.st.spots[id] = spot
	return nil
}

// --- sessions ---

type sessionRepo struct{ s *Store }

func (r *sessionRepo) Create(ctx context.Context, session *domain.ParkingSession) (*domain.ParkingSession, error) {
	defer r.s.lock(ctx)()
	for _, existing := range r.s.st.sessions {
		if existing.Status != domain.SessionOpen {
			continue
		}
		if existing.SubscriberCode == session.SubscriberCode ||
			existing.SpotID == session.SpotID ||
			existing.ParkingCode == session.ParkingCode {
			return nil, repository.ErrDuplicateEntry
		}
	}
	now := time.Now().UTC()
	session.ID = r.s.st.nextSessionID
	r.s.st.nextSessionID++
	session.CreatedAt = now
	session.UpdatedAt = now
	r.s.st.sessions[session.ID] = *session
	return session, nil
}

func (r *sessionRepo) FindByID(ctx context.Context, id int) (*domain.ParkingSession, error) {
	defer r.s.lock(ctx)()
	session, ok := r.s.st.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &session, nil
}

func (r *sessionRepo) FindOpenBySubscriber(ctx context.Context, subscriberCode string) (*domain.ParkingSession, error) {
	defer r.s.lock(ctx)()
	for _, session := range r.s.st.sessions {
		if session.Status == domain.SessionOpen && session.SubscriberCode == subscriberCode {
			return &session, nil
		}
	}
	return nil, repository.ErrNoOpenSession
}

func (r *sessionRepo) FindOpenByParkingCode(ctx context.Context, parkingCode string) (*domain.ParkingSession, error) {
	defer r.s.lock(ctx)()
	for _, session := range r.s.st.sessions {
		if session.Status == domain.SessionOpen && session.ParkingCode == parkingCode {
			return &session, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *sessionRepo) FindAllOpen(ctx context.Context) ([]domain.ParkingSession, error) {
	defer r.s.lock(ctx)()
	return r.openSessions(func(domain.ParkingSession) bool { return true }), nil
}

func (r *sessionRepo) FindOpenOverlapping(ctx context.Context, from, to time.Time) ([]domain.ParkingSession, error) {
	defer r.s.lock(ctx)()
	return r.openSessions(func(session domain.ParkingSession) bool {
		return session.EntryTime.Before(to) && session.ExpectedExit.After(from)
	}), nil
}

func (r *sessionRepo) openSessions(match func(domain.ParkingSession) bool) []domain.ParkingSession {
	var sessions []domain.ParkingSession
	for _, session := range r.s.st.sessions {
		if session.Status == domain.SessionOpen && match(session) {
			sessions = append(sessions, session)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].EntryTime.Before(sessions[j].EntryTime) })
	return sessions
}

func (r *sessionRepo) Update(ctx context.Context, session *domain.ParkingSession) (*domain.ParkingSession, error) {
	defer r.s.lock(ctx)()
	if _, ok := r.s.st.sessions[session.ID]; !ok {
		return nil, repository.ErrNotFound
	}
	session.UpdatedAt = time.Now().UTC()
	r.s.st.sessions[session.ID] = *session
	return session, nil
}

func (r *sessionRepo) ParkingCodeInUse(ctx context.Context, parkingCode string) (bool, error) {
	defer r.s.lock(ctx)()
	for _, session := range r.s.st.sessions {
		if session.Status == domain.SessionOpen && session.ParkingCode == parkingCode {
			return true, nil
		}
	}
	return false, nil
}

// --- reservations ---

type reservationRepo struct{ s *Store }

func (r *reservationRepo) Create(ctx context.Context, res *domain.Reservation) (*domain.Reservation, error) {
	defer r.s.lock(ctx)()
	for _, existing := range r.s.st.reservations {
		if existing.ConfirmationCode == res.ConfirmationCode {
			return nil, repository.ErrDuplicateEntry
		}
	}
	now := time.Now().UTC()
	res.ID = r.s.st.nextReservationID
	r.s.st.nextReservationID++
	res.CreatedAt = now
	res.UpdatedAt = now
	r.s.st.reservations[res.ID] = *res
	return res, nil
}

func (r *reservationRepo) FindByConfirmationCode(ctx context.Context, code string) (*domain.Reservation, error) {
	defer r.s.lock(ctx)()
	for _, res := range r.s.st.reservations {
		if res.ConfirmationCode == code {
			return &res, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *reservationRepo) FindActiveOverlapping(ctx context.Context, from, to time.Time) ([]domain.Reservation, error) {
	defer r.s.lock(ctx)()
	return r.activeReservations(func(res domain.Reservation) bool {
		return res.StartTime.Before(to) && res.EndTime.After(from)
	}), nil
}

func (r *reservationRepo) FindActiveStartedBefore(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error) {
	defer r.s.lock(ctx)()
	return r.activeReservations(func(res domain.Reservation) bool {
		return res.StartTime.Before(cutoff)
	}), nil
}

func (r *reservationRepo) activeReservations(match func(domain.Reservation) bool) []domain.Reservation {
	var reservations []domain.Reservation
	for _, res := range r.s.st.reservations {
		if res.Status == domain.ReservationActive && match(res) {
			reservations = append(reservations, res)
		}
	}
	sort.Slice(reservations, func(i, j int) bool { return reservations[i].StartTime.Before(reservations[j].StartTime) })
	return reservations
}

func (r *reservationRepo) FindBySubscriber(ctx context.Context, subscriberCode string) ([]domain.Reservation, error) {
	defer r.s.lock(ctx)()
	var reservations []domain.Reservation
	for _, res := range r.s.st.reservations {
		if res.SubscriberCode == subscriberCode {
			reservations = append(reservations, res)
		}
	}
	sort.Slice(reservations, func(i, j int) bool { return reservations[i].StartTime.After(reservations[j].StartTime) })
	return reservations, nil
}

func (r *reservationRepo) Update(ctx context.Context, res *domain.Reservation) (*domain.Reservation, error) {
	defer r.s.lock(ctx)()
	if _, ok := r.s.st.reservations[res.ID]; !ok {
		return nil, repository.ErrNotFound
	}
	res.UpdatedAt = time.Now().UTC()
	r.s.st.reservations[res.ID] = *res
	return res, nil
}

func (r *reservationRepo) ConfirmationCodeInUse(ctx context.Context, code string) (bool, error) {
	defer r.s.lock(ctx)()
	for _, res := range r.s.st.reservations {
		if res.ConfirmationCode == code {
			return true, nil
		}
	}
	return false, nil
}

// --- history ---

type historyRepo struct{ s *Store }

func (r *historyRepo) Create(ctx context.Context, record *domain.ParkingHistory) (*domain.ParkingHistory, error) {
	defer r.s.lock(ctx)()
	record.ID = r.s.st.nextHistoryID
	r.s.st.nextHistoryID++
	record.CreatedAt = time.Now().UTC()
	r.s.st.history = append(r.s.st.history, *record)
	return record, nil
}

func (r *historyRepo) FindBySubscriber(ctx context.Context, subscriberCode string) ([]domain.ParkingHistory, error) {
	defer r.s.lock(ctx)()
	var records []domain.ParkingHistory
	for _, record := range r.s.st.history {
		if record.SubscriberCode == subscriberCode {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].EntryTime.After(records[j].EntryTime) })
	return records, nil
}

func (r *historyRepo) FindByEntryMonth(ctx context.Context, year int, month time.Month) ([]domain.ParkingHistory, error) {
	defer r.s.lock(ctx)()
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	var records []domain.ParkingHistory
	for _, record := range r.s.st.history {
		if !record.EntryTime.Before(from) && record.EntryTime.Before(to) {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].EntryTime.Before(records[j].EntryTime) })
	return records, nil
}
