package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/domain"
)

type pgHistoryRepository struct {
	store *Store
}

const historyColumns = `id, subscriber_code, spot_id, entry_time, exit_time, extended, late, created_at`

func (r *pgHistoryRepository) Create(ctx context.Context, record *domain.ParkingHistory) (*domain.ParkingHistory, error) {
	query := `INSERT INTO parking_history
	           (subscriber_code, spot_id, entry_time, exit_time, extended, late, created_at)
	           VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
	           RETURNING id, created_at`
	err := r.store.q(ctx).QueryRowContext(ctx, query,
		record.SubscriberCode, record.SpotID, record.EntryTime, record.ExitTime,
		record.Extended, record.Late,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("HistoryRepository.Create: %w", err)
	}
	record.CreatedAt = record.CreatedAt.In(time.UTC)
	return record, nil
}

func (r *pgHistoryRepository) FindBySubscriber(ctx context.Context, subscriberCode string) ([]domain.ParkingHistory, error) {
	query := `SELECT ` + historyColumns + ` FROM parking_history
	           WHERE subscriber_code = $1
	           ORDER BY entry_time DESC`
	return r.queryHistory(ctx, "FindBySubscriber", query, subscriberCode)
}

func (r *pgHistoryRepository) FindByEntryMonth(ctx context.Context, year int, month time.Month) ([]domain.ParkingHistory, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	query := `SELECT ` + historyColumns + ` FROM parking_history
	           WHERE entry_time >= $1 AND entry_time < $2
	           ORDER BY entry_time`
	return r.queryHistory(ctx, "FindByEntryMonth", query, from, to)
}

func (r *pgHistoryRepository) queryHistory(ctx context.Context, op, query string, args ...interface{}) ([]domain.ParkingHistory, error) {
	rows, err := r.store.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("HistoryRepository.%s: %w", op, err)
	}
	defer rows.Close()

	var records []domain.ParkingHistory
	for rows.Next() {
		var record domain.ParkingHistory
		if err := rows.Scan(
			&record.ID, &record.SubscriberCode, &record.SpotID,
			&record.EntryTime, &record.ExitTime, &record.Extended, &record.Late,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("HistoryRepository.%s (scanning row): %w", op, err)
		}
		record.EntryTime = record.EntryTime.In(time.UTC)
		record.ExitTime = record.ExitTime.In(time.UTC)
		record.CreatedAt = record.CreatedAt.In(time.UTC)
		records = append(records, record)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("HistoryRepository.%s (rows error): %w", op, err)
	}
	return records, nil
}
