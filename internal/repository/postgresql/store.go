package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/repository"
)

// querier is satisfied by both *sql.DB and *sql.Tx so every repository method
// works inside and outside a transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type txKey struct{}

// uniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation (SQLSTATE 23505) and returns the violated constraint's name.
// The pgx stdlib driver surfaces these as *pgconn.PgError.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}

type Store struct {
	db           *sql.DB
	subscribers  *pgSubscriberRepository
	spots        *pgSpotRepository
	sessions     *pgSessionRepository
	reservations *pgReservationRepository
	history      *pgHistoryRepository
}

func NewStore(db *sql.DB) *Store {
	s := &Store{db: db}
	s.subscribers = &pgSubscriberRepository{store: s}
	s.spots = &pgSpotRepository{store: s}
	s.sessions = &pgSessionRepository{store: s}
	s.reservations = &pgReservationRepository{store: s}
	s.history = &pgHistoryRepository{store: s}
	return s
}

func (s *Store) Subscribers() repository.SubscriberRepository   { return s.subscribers }
func (s *Store) Spots() repository.SpotRepository               { return s.spots }
func (s *Store) Sessions() repository.SessionRepository         { return s.sessions }
func (s *Store) Reservations() repository.ReservationRepository { return s.reservations }
func (s *Store) History() repository.HistoryRepository          { return s.history }

// q resolves the executor for a call: the transaction carried by the context
// when inside WithinTx, the pool otherwise.
func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		// Already inside a transaction; join it.
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back after %v: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
