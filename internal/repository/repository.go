package repository

import (
	"context"
	"errors"
	"time"

	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/domain"
)

var ErrNotFound = errors.New("record not found")
var ErrDuplicateEntry = errors.New("record already exists")
var ErrNoOpenSession = errors.New("no open parking session for the given subscriber")

type SubscriberRepository interface {
	Create(ctx context.Context, sub *domain.Subscriber) (*domain.Subscriber, error)
	FindByCode(ctx context.Context, code string) (*domain.Subscriber, error)
	FindAll(ctx context.Context) ([]domain.Subscriber, error)
}

type SpotRepository interface {
	// EnsurePool creates spots 1..total if they do not exist yet. Existing
	// spots and their statuses are left untouched.
	EnsurePool(ctx context.Context, total int) error
	FindByID(ctx context.Context, id int) (*domain.ParkingSpot, error)
	FindAll(ctx context.Context) ([]domain.ParkingSpot, error)
	// FindFirstFree returns the free spot with the lowest id, so allocation
	// stays deterministic. ErrNotFound when every spot is occupied.
	FindFirstFree(ctx context.Context) (*domain.ParkingSpot, error)
	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context, status domain.SpotStatus) (int, error)
	UpdateStatus(ctx context.Context, id int, status domain.SpotStatus) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *domain.ParkingSession) (*domain.ParkingSession, error)
	FindByID(ctx context.Context, id int) (*domain.ParkingSession, error)
	// FindOpenBySubscriber returns ErrNoOpenSession when the subscriber has
	// no open session.
	FindOpenBySubscriber(ctx context.Context, subscriberCode string) (*domain.ParkingSession, error)
	FindOpenByParkingCode(ctx context.Context, parkingCode string) (*domain.ParkingSession, error)
	FindAllOpen(ctx context.Context) ([]domain.ParkingSession, error)
	// FindOpenOverlapping returns open sessions whose [entry, expected exit)
	// window intersects [from, to).
	FindOpenOverlapping(ctx context.Context, from, to time.Time) ([]domain.ParkingSession, error)
	Update(ctx context.Context, session *domain.ParkingSession) (*domain.ParkingSession, error)
	ParkingCodeInUse(ctx context.Context, parkingCode string) (bool, error)
}

type ReservationRepository interface {
	Create(ctx context.Context, res *domain.Reservation) (*domain.Reservation, error)
	FindByConfirmationCode(ctx context.Context, code string) (*domain.Reservation, error)
	// FindActiveOverlapping returns active reservations whose
	// [start, end) window intersects [from, to).
	FindActiveOverlapping(ctx context.Context, from, to time.Time) ([]domain.Reservation, error)
	// FindActiveStartedBefore returns active reservations with a start time
	// before the cutoff, i.e. candidates for expiry.
	FindActiveStartedBefore(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error)
	FindBySubscriber(ctx context.Context, subscriberCode string) ([]domain.Reservation, error)
	Update(ctx context.Context, res *domain.Reservation) (*domain.Reservation, error)
	ConfirmationCodeInUse(ctx context.Context, code string) (bool, error)
}

type HistoryRepository interface {
	Create(ctx context.Context, record *domain.ParkingHistory) (*domain.ParkingHistory, error)
	FindBySubscriber(ctx context.Context, subscriberCode string) ([]domain.ParkingHistory, error)
	// FindByEntryMonth returns records whose entry time falls inside the
	// given calendar month (UTC).
	FindByEntryMonth(ctx context.Context, year int, month time.Month) ([]domain.ParkingHistory, error)
}

// Store bundles the repositories behind a single transactional boundary.
// WithinTx runs fn atomically: repository calls made with the ctx passed to
// fn are applied together or not at all.
type Store interface {
	Subscribers() SubscriberRepository
	Spots() SpotRepository
	Sessions() SessionRepository
	Reservations() ReservationRepository
	History() HistoryRepository
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
