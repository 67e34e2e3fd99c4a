package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/domain"
	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/repository"
)

type pgSessionRepository struct {
	store *Store
}

const sessionColumns = `id, subscriber_code, spot_id, parking_code, entry_time,
	expected_exit_time, exit_time, extended, late, status, created_at, updated_at`

func (r *pgSessionRepository) scanSession(row interface{ Scan(...interface{}) error }) (*domain.ParkingSession, error) {
	session := &domain.ParkingSession{}
	err := row.Scan(
		&session.ID, &session.SubscriberCode, &session.SpotID, &session.ParkingCode,
		&session.EntryTime, &session.ExpectedExit, &session.ExitTime,
		&session.Extended, &session.Late, &session.Status,
		&session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	session.EntryTime = session.EntryTime.In(time.UTC)
	session.ExpectedExit = session.ExpectedExit.In(time.UTC)
	if session.ExitTime.Valid {
		session.ExitTime.Time = session.ExitTime.Time.In(time.UTC)
	}
	session.CreatedAt = session.CreatedAt.In(time.UTC)
	session.UpdatedAt = session.UpdatedAt.In(time.UTC)
	return session, nil
}

func (r *pgSessionRepository) Create(ctx context.Context, session *domain.ParkingSession) (*domain.ParkingSession, error) {
	query := `INSERT INTO parking_sessions
	           (subscriber_code, spot_id, parking_code, entry_time, expected_exit_time,
	            exit_time, extended, late, status, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	           RETURNING id, created_at, updated_at`

	var exitTimeVal sql.NullTime
	if session.ExitTime.Valid {
		exitTimeVal = sql.NullTime{Time: session.ExitTime.Time, Valid: true}
	}

	err := r.store.q(ctx).QueryRowContext(ctx, query,
		session.SubscriberCode, session.SpotID, session.ParkingCode,
		session.EntryTime, session.ExpectedExit, exitTimeVal,
		session.Extended, session.Late, session.Status,
	).Scan(&session.ID, &session.CreatedAt, &session.UpdatedAt)

	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			// Partial unique indexes guard the one-open-session invariants.
			return nil, fmt.Errorf("%w: open session conflict (%s)", repository.ErrDuplicateEntry, constraint)
		}
		return nil, fmt.Errorf("SessionRepository.Create: %w", err)
	}
	session.CreatedAt = session.CreatedAt.In(time.UTC)
	session.UpdatedAt = session.UpdatedAt.In(time.UTC)
	return session, nil
}

func (r *pgSessionRepository) FindByID(ctx context.Context, id int) (*domain.ParkingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM parking_sessions WHERE id = $1`
	session, err := r.scanSession(r.store.q(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("SessionRepository.FindByID: %w", err)
	}
	return session, nil
}

func (r *pgSessionRepository) FindOpenBySubscriber(ctx context.Context, subscriberCode string) (*domain.ParkingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM parking_sessions
	           WHERE subscriber_code = $1 AND status = $2
	           ORDER BY entry_time DESC LIMIT 1`
	session, err := r.scanSession(r.store.q(ctx).QueryRowContext(ctx, query, subscriberCode, domain.SessionOpen))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNoOpenSession
		}
		return nil, fmt.Errorf("SessionRepository.FindOpenBySubscriber: %w", err)
	}
	return session, nil
}

func (r *pgSessionRepository) FindOpenByParkingCode(ctx context.Context, parkingCode string) (*domain.ParkingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM parking_sessions
	           WHERE parking_code = $1 AND status = $2 LIMIT 1`
	session, err := r.scanSession(r.store.q(ctx).QueryRowContext(ctx, query, parkingCode, domain.SessionOpen))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("SessionRepository.FindOpenByParkingCode: %w", err)
	}
	return session, nil
}

func (r *pgSessionRepository) FindAllOpen(ctx context.Context) ([]domain.ParkingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM parking_sessions
	           WHERE status = $1 ORDER BY entry_time`
	return r.querySessions(ctx, "FindAllOpen", query, domain.SessionOpen)
}

func (r *pgSessionRepository) FindOpenOverlapping(ctx context.Context, from, to time.Time) ([]domain.ParkingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM parking_sessions
	           WHERE status = $1 AND entry_time < $3 AND expected_exit_time > $2
	           ORDER BY entry_time`
	return r.querySessions(ctx, "FindOpenOverlapping", query, domain.SessionOpen, from, to)
}

func (r *pgSessionRepository) querySessions(ctx context.Context, op, query string, args ...interface{}) ([]domain.ParkingSession, error) {
	rows, err := r.store.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("SessionRepository.%s: %w", op, err)
	}
	defer rows.Close()

	var sessions []domain.ParkingSession
	for rows.Next() {
		session, err := r.scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("SessionRepository.%s (scanning row): %w", op, err)
		}
		sessions = append(sessions, *session)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("SessionRepository.%s (rows error): %w", op, err)
	}
	return sessions, nil
}

func (r *pgSessionRepository) Update(ctx context.Context, session *domain.ParkingSession) (*domain.ParkingSession, error) {
	query := `UPDATE parking_sessions
	           SET expected_exit_time = $1, exit_time = $2, extended = $3, late = $4,
	               status = $5, updated_at = CURRENT_TIMESTAMP
	           WHERE id = $6
	           RETURNING updated_at`

	var exitTimeVal sql.NullTime
	if session.ExitTime.Valid {
		exitTimeVal = sql.NullTime{Time: session.ExitTime.Time, Valid: true}
	}

	err := r.store.q(ctx).QueryRowContext(ctx, query,
		session.ExpectedExit, exitTimeVal, session.Extended, session.Late,
		session.Status, session.ID,
	).Scan(&session.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("SessionRepository.Update: %w", err)
	}
	session.UpdatedAt = session.UpdatedAt.In(time.UTC)
	return session, nil
}

func (r *pgSessionRepository) ParkingCodeInUse(ctx context.Context, parkingCode string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM parking_sessions WHERE parking_code = $1 AND status = $2)`
	err := r.store.q(ctx).QueryRowContext(ctx, query, parkingCode, domain.SessionOpen).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("SessionRepository.ParkingCodeInUse: %w", err)
	}
	return exists, nil
}
