package postgres

import (
	"context"
	"database/sql"

	"matatu/internal/domain"
	"matatu/internal/repository"
)

// AlertRepository is a PostgreSQL implementation of repository.AlertRepository.
type AlertRepository struct {
	db *sql.DB
}

// NewAlertRepository creates a new PostgreSQL alert repository.
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create persists a new alert.
func (r *AlertRepository) Create(ctx context.Context, a *domain.Alert) error {
	query := `
		INSERT INTO alerts (id, user_id, message, type, read)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		a.ID, a.UserID, a.Message, a.Type, a.Read,
	).Scan(&a.CreatedAt)
	return mapError(err)
}

// ListByUser retrieves the alerts of a user, newest first.
func (r *AlertRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Alert, error) {
	query := `
		SELECT id, user_id, message, type, read, created_at
		FROM alerts WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 100
	`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		var a domain.Alert
		if err := rows.Scan(&a.ID, &a.UserID, &a.Message, &a.Type, &a.Read, &a.CreatedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, &a)
	}

	return alerts, rows.Err()
}

// MarkRead flags the alert as read.
func (r *AlertRepository) MarkRead(ctx context.Context, id, userID string) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE alerts SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Ensure AlertRepository implements repository.AlertRepository.
var _ repository.AlertRepository = (*AlertRepository)(nil)
