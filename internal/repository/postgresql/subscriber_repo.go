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

type pgSubscriberRepository struct {
	store *Store
}

func (r *pgSubscriberRepository) Create(ctx context.Context, sub *domain.Subscriber) (*domain.Subscriber, error) {
	query := `INSERT INTO subscribers (code, name, email, phone, created_at)
	           VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
	           RETURNING created_at`
	err := r.store.q(ctx).QueryRowContext(ctx, query,
		sub.Code, sub.Name, sub.Email, sub.Phone,
	).Scan(&sub.CreatedAt)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return nil, fmt.Errorf("%w: subscriber '%s'", repository.ErrDuplicateEntry, sub.Code)
		}
		return nil, fmt.Errorf("SubscriberRepository.Create: %w", err)
	}
	sub.CreatedAt = sub.CreatedAt.In(time.UTC)
	return sub, nil
}

func (r *pgSubscriberRepository) FindByCode(ctx context.Context, code string) (*domain.Subscriber, error) {
	sub := &domain.Subscriber{}
	query := `SELECT code, name, email, phone, created_at FROM subscribers WHERE code = $1`
	err := r.store.q(ctx).QueryRowContext(ctx, query, code).Scan(
		&sub.Code, &sub.Name, &sub.Email, &sub.Phone, &sub.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("SubscriberRepository.FindByCode: %w", err)
	}
	sub.CreatedAt = sub.CreatedAt.In(time.UTC)
	return sub, nil
}

func (r *pgSubscriberRepository) FindAll(ctx context.Context) ([]domain.Subscriber, error) {
	query := `SELECT code, name, email, phone, created_at FROM subscribers ORDER BY code`
	rows, err := r.store.q(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("SubscriberRepository.FindAll: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscriber
	for rows.Next() {
		var sub domain.Subscriber
		if err := rows.Scan(&sub.Code, &sub.Name, &sub.Email, &sub.Phone, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("SubscriberRepository.FindAll (scanning row): %w", err)
		}
		sub.CreatedAt = sub.CreatedAt.In(time.UTC)
		subs = append(subs, sub)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("SubscriberRepository.FindAll (rows error): %w", err)
	}
	return subs, nil
}
