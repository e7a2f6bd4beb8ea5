package postgres

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"matatu/internal/domain"
	"matatu/internal/repository"
)

// WithdrawalRepository is a PostgreSQL implementation of repository.WithdrawalRepository.
type WithdrawalRepository struct {
	db *sql.DB
}

// NewWithdrawalRepository creates a new PostgreSQL withdrawal repository.
func NewWithdrawalRepository(db *sql.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

const withdrawalSelect = `
	SELECT id, user_id, amount, status, note, review_note, processed_by,
		requested_at, processed_at
	FROM withdrawals
`

// LockWallet takes a transaction-scoped advisory lock on the user's wallet.
// Outside a unit of work the lock is released as soon as it is taken.
func (r *WithdrawalRepository) LockWallet(ctx context.Context, userID string) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`, "wallet:"+userID,
	)
	return err
}

// Create persists a new withdrawal.
func (r *WithdrawalRepository) Create(ctx context.Context, w *domain.Withdrawal) error {
	query := `
		INSERT INTO withdrawals (id, user_id, amount, status, note)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING requested_at
	`
	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		w.ID, w.UserID, w.Amount, w.Status, nullString(w.Note),
	).Scan(&w.RequestedAt)
	return mapError(err)
}

// GetByIDForUpdate retrieves a withdrawal and locks its row.
func (r *WithdrawalRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Withdrawal, error) {
	w, err := scanWithdrawal(conn(ctx, r.db).QueryRowContext(ctx,
		withdrawalSelect+` WHERE id = $1 FOR UPDATE`, id,
	))
	if err != nil {
		return nil, mapError(err)
	}
	return w, nil
}

// Update stores the status and review fields of a withdrawal.
func (r *WithdrawalRepository) Update(ctx context.Context, w *domain.Withdrawal) error {
	query := `
		UPDATE withdrawals
		SET status = $1, review_note = $2, processed_by = $3, processed_at = $4
		WHERE id = $5
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		w.Status,
		nullString(w.ReviewNote),
		nullString(w.ProcessedBy),
		nullTime(w.ProcessedAt),
		w.ID,
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

// List retrieves the withdrawals of userID, or of everyone when userID is
// empty, newest first.
func (r *WithdrawalRepository) List(ctx context.Context, userID string) ([]*domain.Withdrawal, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, withdrawalSelect+`
		WHERE ($1 = '' OR user_id = $1)
		ORDER BY requested_at DESC
		LIMIT 200
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}

	return out, rows.Err()
}

// Reserved sums userID's pending and approved withdrawals.
func (r *WithdrawalRepository) Reserved(ctx context.Context, userID string) (decimal.Decimal, error) {
	var reserved decimal.Decimal
	err := conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM withdrawals
		WHERE user_id = $1 AND status IN ($2, $3)
	`, userID, domain.WithdrawalStatusPending, domain.WithdrawalStatusApproved).Scan(&reserved)
	if err != nil {
		return decimal.Zero, err
	}
	return reserved, nil
}

func scanWithdrawal(row rowScanner) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	var note, reviewNote, processedBy sql.NullString
	var processedAt sql.NullTime

	if err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.Amount,
		&w.Status,
		&note,
		&reviewNote,
		&processedBy,
		&w.RequestedAt,
		&processedAt,
	); err != nil {
		return nil, err
	}

	w.Note = note.String
	w.ReviewNote = reviewNote.String
	w.ProcessedBy = processedBy.String
	if processedAt.Valid {
		w.ProcessedAt = processedAt.Time
	}

	return &w, nil
}

// Ensure WithdrawalRepository implements repository.WithdrawalRepository.
var _ repository.WithdrawalRepository = (*WithdrawalRepository)(nil)
