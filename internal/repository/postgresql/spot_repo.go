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

type pgSpotRepository struct {
	store *Store
}

func (r *pgSpotRepository) EnsurePool(ctx context.Context, total int) error {
	query := `INSERT INTO parking_spots (id, status, updated_at)
	           VALUES ($1, $2, CURRENT_TIMESTAMP)
	           ON CONFLICT (id) DO NOTHING`
	for id := 1; id <= total; id++ {
		if _, err := r.store.q(ctx).ExecContext(ctx, query, id, domain.SpotFree); err != nil {
			return fmt.Errorf("SpotRepository.EnsurePool (spot %d): %w", id, err)
		}
	}
	return nil
}

func (r *pgSpotRepository) FindByID(ctx context.Context, id int) (*domain.ParkingSpot, error) {
	spot := &domain.ParkingSpot{}
	query := `SELECT id, status, updated_at FROM parking_spots WHERE id = $1`
	err := r.store.q(ctx).QueryRowContext(ctx, query, id).Scan(&spot.ID, &spot.Status, &spot.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("SpotRepository.FindByID: %w", err)
	}
	spot.UpdatedAt = spot.UpdatedAt.In(time.UTC)
	return spot, nil
}

func (r *pgSpotRepository) FindAll(ctx context.Context) ([]domain.ParkingSpot, error) {
	query := `SELECT id, status, updated_at FROM parking_spots ORDER BY id`
	rows, err := r.store.q(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("SpotRepository.FindAll: %w", err)
	}
	defer rows.Close()

	var spots []domain.ParkingSpot
	for rows.Next() {
		var spot domain.ParkingSpot
		if err := rows.Scan(&spot.ID, &spot.Status, &spot.UpdatedAt); err != nil {
			return nil, fmt.Errorf("SpotRepository.FindAll (scanning row): %w", err)
		}
		spot.UpdatedAt = spot.UpdatedAt.In(time.UTC)
		spots = append(spots, spot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("SpotRepository.FindAll (rows error): %w", err)
	}
	return spots, nil
}

func (r *pgSpotRepository) FindFirstFree(ctx context.Context) (*domain.ParkingSpot, error) {
	spot := &domain.ParkingSpot{}
	query := `SELECT id, status, updated_at FROM parking_spots
	           WHERE status = $1 ORDER BY id LIMIT 1 FOR UPDATE`
	err := r.store.q(ctx).QueryRowContext(ctx, query, domain.SpotFree).Scan(&spot.ID, &spot.Status, &spot.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("SpotRepository.FindFirstFree: %w", err)
	}
	spot.UpdatedAt = spot.UpdatedAt.In(time.UTC)
	return spot, nil
}

func (r *pgSpotRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.store.q(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM parking_spots`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("SpotRepository.Count: %w", err)
	}
	return count, nil
}

func (r *pgSpotRepository) CountByStatus(ctx context.Context, status domain.SpotStatus) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM parking_spots WHERE status = $1`
	err := r.store.q(ctx).QueryRowContext(ctx, query, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("SpotRepository.CountByStatus: %w", err)
	}
	return count, nil
}

func (r *pgSpotRepository) UpdateStatus(ctx context.Context, id int, status domain.SpotStatus) error {
	query := `UPDATE parking_spots SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	result, err := r.store.q(ctx).ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("SpotRepository.UpdateStatus: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("SpotRepository.UpdateStatus (rows affected): %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
