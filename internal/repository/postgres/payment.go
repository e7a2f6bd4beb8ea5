package postgres

import (
	"context"
	"database/sql"
	"time"

	"matatu/internal/domain"
	"matatu/internal/repository"
)

// PaymentRepository is a PostgreSQL implementation of repository.PaymentRepository.
type PaymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository creates a new PostgreSQL payment repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentSelect = `
	SELECT id, trip_id, amount, phone_number, status, provider_ref, session_id,
		receipt_code, raw_callback, created_at, confirmed_at
	FROM payments
`

// Create persists a new payment.
func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (id, trip_id, amount, phone_number, status, provider_ref, session_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		p.ID,
		p.TripID,
		p.Amount,
		p.PhoneNumber,
		p.Status,
		nullString(p.ProviderRef),
		nullString(p.SessionID),
	).Scan(&p.CreatedAt)

	return mapError(err)
}

// GetByID retrieves a payment by ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	return r.getOne(ctx, paymentSelect+` WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves a payment and locks its row.
func (r *PaymentRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Payment, error) {
	return r.getOne(ctx, paymentSelect+` WHERE id = $1 FOR UPDATE`, id)
}

// GetBySessionID retrieves a payment by gateway session id.
func (r *PaymentRepository) GetBySessionID(ctx context.Context, sessionID string) (*domain.Payment, error) {
	return r.getOne(ctx, paymentSelect+` WHERE session_id = $1 ORDER BY created_at DESC LIMIT 1`, sessionID)
}

// GetByProviderRef retrieves a payment by provider reference.
func (r *PaymentRepository) GetByProviderRef(ctx context.Context, ref string) (*domain.Payment, error) {
	return r.getOne(ctx, paymentSelect+` WHERE provider_ref = $1 ORDER BY created_at DESC LIMIT 1`, ref)
}

// LatestPendingForTrip retrieves the newest pending payment of a trip
// created at or after since.
func (r *PaymentRepository) LatestPendingForTrip(ctx context.Context, tripID string, since time.Time) (*domain.Payment, error) {
	query := paymentSelect + `
		WHERE trip_id = $1 AND status = $2 AND created_at >= $3
		ORDER BY created_at DESC LIMIT 1
	`
	return r.getOne(ctx, query, tripID, domain.PaymentStatusPending, since)
}

// FindPending retrieves the newest pending payment for a trip and phone.
func (r *PaymentRepository) FindPending(ctx context.Context, tripID, phone string, since time.Time) (*domain.Payment, error) {
	query := paymentSelect + `
		WHERE trip_id = $1 AND phone_number = $2 AND status = $3 AND created_at >= $4
		ORDER BY created_at DESC LIMIT 1
	`
	return r.getOne(ctx, query, tripID, phone, domain.PaymentStatusPending, since)
}

// HasReceived reports whether the trip has a received payment.
func (r *PaymentRepository) HasReceived(ctx context.Context, tripID string) (bool, error) {
	var ok bool
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE trip_id = $1 AND status = $2)`,
		tripID, domain.PaymentStatusReceived,
	).Scan(&ok)
	return ok, err
}

// ListByTrip retrieves all payments of a trip, newest first.
func (r *PaymentRepository) ListByTrip(ctx context.Context, tripID string) ([]*domain.Payment, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		paymentSelect+` WHERE trip_id = $1 ORDER BY created_at DESC`, tripID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}

	return payments, rows.Err()
}

// Update updates the mutable fields of a payment.
func (r *PaymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	query := `
		UPDATE payments
		SET status = $1, provider_ref = $2, session_id = $3, receipt_code = $4,
			raw_callback = $5, confirmed_at = $6
		WHERE id = $7
	`

	var raw any
	if len(p.RawCallback) > 0 {
		raw = []byte(p.RawCallback)
	}

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		p.Status,
		nullString(p.ProviderRef),
		nullString(p.SessionID),
		nullString(p.ReceiptCode),
		raw,
		nullTime(p.ConfirmedAt),
		p.ID,
	)
	if err != nil {
		return mapError(err)
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

func (r *PaymentRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Payment, error) {
	p, err := scanPayment(conn(ctx, r.db).QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var p domain.Payment
	var providerRef, sessionID, receipt sql.NullString
	var raw []byte
	var confirmedAt sql.NullTime

	if err := row.Scan(
		&p.ID,
		&p.TripID,
		&p.Amount,
		&p.PhoneNumber,
		&p.Status,
		&providerRef,
		&sessionID,
		&receipt,
		&raw,
		&p.CreatedAt,
		&confirmedAt,
	); err != nil {
		return nil, err
	}

	p.ProviderRef = providerRef.String
	p.SessionID = sessionID.String
	p.ReceiptCode = receipt.String
	if len(raw) > 0 {
		p.RawCallback = raw
	}
	if confirmedAt.Valid {
		p.ConfirmedAt = confirmedAt.Time
	}

	return &p, nil
}

// Ensure PaymentRepository implements repository.PaymentRepository.
var _ repository.PaymentRepository = (*PaymentRepository)(nil)
