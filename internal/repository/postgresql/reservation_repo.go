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

type pgReservationRepository struct {
	store *Store
}

const reservationColumns = `id, subscriber_code, confirmation_code, start_time,
	end_time, spot_id, status, created_at, updated_at`

func (r *pgReservationRepository) scanReservation(row interface{ Scan(...interface{}) error }) (*domain.Reservation, error) {
	res := &domain.Reservation{}
	err := row.Scan(
		&res.ID, &res.SubscriberCode, &res.ConfirmationCode,
		&res.StartTime, &res.EndTime, &res.SpotID, &res.Status,
		&res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.StartTime = res.StartTime.In(time.UTC)
	res.EndTime = res.EndTime.In(time.UTC)
	res.CreatedAt = res.CreatedAt.In(time.UTC)
	res.UpdatedAt = res.UpdatedAt.In(time.UTC)
	return res, nil
}

func (r *pgReservationRepository) Create(ctx context.Context, res *domain.Reservation) (*domain.Reservation, error) {
	query := `INSERT INTO reservations
	           (subscriber_code, confirmation_code, start_time, end_time, spot_id, status, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	           RETURNING id, created_at, updated_at`

	var spotIDVal sql.NullInt64
	if res.SpotID.Valid {
		spotIDVal = sql.NullInt64{Int64: res.SpotID.Int64, Valid: true}
	}

	err := r.store.q(ctx).QueryRowContext(ctx, query,
		res.SubscriberCode, res.ConfirmationCode, res.StartTime, res.EndTime,
		spotIDVal, res.Status,
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return nil, fmt.Errorf("%w: confirmation code '%s'", repository.ErrDuplicateEntry, res.ConfirmationCode)
		}
		return nil, fmt.Errorf("ReservationRepository.Create: %w", err)
	}
	res.CreatedAt = res.CreatedAt.In(time.UTC)
	res.UpdatedAt = res.UpdatedAt.In(time.UTC)
	return res, nil
}

func (r *pgReservationRepository) FindByConfirmationCode(ctx context.Context, code string) (*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE confirmation_code = $1`
	res, err := r.scanReservation(r.store.q(ctx).QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ReservationRepository.FindByConfirmationCode: %w", err)
	}
	return res, nil
}

func (r *pgReservationRepository) FindActiveOverlapping(ctx context.Context, from, to time.Time) ([]domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
	           WHERE status = $1 AND start_time < $3 AND end_time > $2
	           ORDER BY start_time`
	return r.queryReservations(ctx, "FindActiveOverlapping", query, domain.ReservationActive, from, to)
}

func (r *pgReservationRepository) FindActiveStartedBefore(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
	           WHERE status = $1 AND start_time < $2
	           ORDER BY start_time`
	return r.queryReservations(ctx, "FindActiveStartedBefore", query, domain.ReservationActive, cutoff)
}

func (r *pgReservationRepository) FindBySubscriber(ctx context.Context, subscriberCode string) ([]domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
	           WHERE subscriber_code = $1
	           ORDER BY start_time DESC`
	return r.queryReservations(ctx, "FindBySubscriber", query, subscriberCode)
}

func (r *pgReservationRepository) queryReservations(ctx context.Context, op, query string, args ...interface{}) ([]domain.Reservation, error) {
	rows, err := r.store.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ReservationRepository.%s: %w", op, err)
	}
	defer rows.Close()

	var reservations []domain.Reservation
	for rows.Next() {
		res, err := r.scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("ReservationRepository.%s (scanning row): %w", op, err)
		}
		reservations = append(reservations, *res)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ReservationRepository.%s (rows error): %w", op, err)
	}
	return reservations, nil
}

func (r *pgReservationRepository) Update(ctx context.Context, res *domain.Reservation) (*domain.Reservation, error) {
	query := `UPDATE reservations
	           SET spot_id = $1, status = $2, updated_at = CURRENT_TIMESTAMP
	           WHERE id = $3
	           RETURNING updated_at`

	var spotIDVal sql.NullInt64
	if res.SpotID.Valid {
		spotIDVal = sql.NullInt64{Int64: res.SpotID.Int64, Valid: true}
	}

	err := r.store.q(ctx).QueryRowContext(ctx, query, spotIDVal, res.Status, res.ID).Scan(&res.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ReservationRepository.Update: %w", err)
	}
	res.UpdatedAt = res.UpdatedAt.In(time.UTC)
	return res, nil
}

func (r *pgReservationRepository) ConfirmationCodeInUse(ctx context.Context, code string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM reservations WHERE confirmation_code = $1)`
	err := r.store.q(ctx).QueryRowContext(ctx, query, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ReservationRepository.ConfirmationCodeInUse: %w", err)
	}
	return exists, nil
}
