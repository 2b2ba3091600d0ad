package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inspection_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ── Domain Models ─────────────────────────────────────────────────────────────

// Reservation is a credit held for a comparison that has not finished yet.
// The balance debit happened when the reservation was created; settling the
// reservation either converts it into a usage entry or refunds it.
type Reservation struct {
	UserID        uuid.UUID `db:"user_id"`
	ComparisonID  uuid.UUID `db:"comparison_id"`
	Credits       int64     `db:"credits"`
	CreditsBefore int64     `db:"credits_before"`
	CreditsAfter  int64     `db:"credits_after"`
	CreatedAt     time.Time `db:"created_at"`
}

// UsageEntry is the immutable audit record of one committed credit spend.
type UsageEntry struct {
	ID            uuid.UUID `db:"id"`
	UserID        uuid.UUID `db:"user_id"`
	ComparisonID  uuid.UUID `db:"comparison_id"`
	CreditsUsed   int64     `db:"credits_used"`
	CreditsBefore int64     `db:"credits_before"`
	CreditsAfter  int64     `db:"credits_after"`
	Reason        string    `db:"reason"`
	CreatedAt     time.Time `db:"created_at"`
}

// ErrNoReservation is returned when settling a comparison that has no open
// reservation, typically because it was already settled.
var ErrNoReservation = errors.New("no open credit reservation")

// ── Repository ────────────────────────────────────────────────────────────────

// Repository provides database operations for the credit ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new credits repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetBalance returns the user's current credit balance.
func (r *Repository) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var balance int64
	query := `SELECT credit_balance FROM users WHERE id = $1`

	if err := r.pool.QueryRow(ctx, query, userID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperr.NotFound("user not found")
		}
		return 0, fmt.Errorf("failed to get credit balance: %w", err)
	}
	return balance, nil
}

// Commit settles an open reservation into a usage entry. The reservation is
// consumed and exactly one audit row is written; the balance was already
// debited at reservation time. Returns ErrNoReservation when the comparison
// has no open reservation.
func (r *Repository) Commit(ctx context.Context, comparisonID uuid.UUID, reason string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	res, err := consumeReservation(ctx, tx, comparisonID)
	if err != nil {
		return err
	}

	usageQuery := `
		INSERT INTO credit_usage (
			id, user_id, comparison_id, credits_used, credits_before, credits_after,
			reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (comparison_id) DO NOTHING`

	if _, err := tx.Exec(ctx, usageQuery,
		uuid.New(), res.UserID, res.ComparisonID, res.Credits,
		res.CreditsBefore, res.CreditsAfter, reason, time.Now(),
	); err != nil {
		return fmt.Errorf("failed to insert usage entry: %w", err)
	}

	return tx.Commit(ctx)
}

// Release refunds an open reservation back to the user's balance. No usage
// entry is written. Returns ErrNoReservation when there is nothing to
// release.
func (r *Repository) Release(ctx context.Context, comparisonID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	res, err := consumeReservation(ctx, tx, comparisonID)
	if err != nil {
		return err
	}

	refundQuery := `UPDATE users SET credit_balance = credit_balance + $2 WHERE id = $1`
	if _, err := tx.Exec(ctx, refundQuery, res.UserID, res.Credits); err != nil {
		return fmt.Errorf("failed to refund credits: %w", err)
	}

	return tx.Commit(ctx)
}

func consumeReservation(ctx context.Context, tx pgx.Tx, comparisonID uuid.UUID) (*Reservation, error) {
	var res Reservation
	query := `
		DELETE FROM credit_reservations WHERE comparison_id = $1
		RETURNING user_id, comparison_id, credits, credits_before, credits_after, created_at`

	err := tx.QueryRow(ctx, query, comparisonID).Scan(
		&res.UserID, &res.ComparisonID, &res.Credits,
		&res.CreditsBefore, &res.CreditsAfter, &res.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoReservation
		}
		return nil, fmt.Errorf("failed to consume reservation: %w", err)
	}
	return &res, nil
}

// ListUsage returns the user's usage entries, newest first.
func (r *Repository) ListUsage(ctx context.Context, userID uuid.UUID) ([]UsageEntry, error) {
	query := `
		SELECT id, user_id, comparison_id, credits_used, credits_before, credits_after,
			reason, created_at
		FROM credit_usage
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query credit usage: %w", err)
	}
	defer rows.Close()

	var entries []UsageEntry
	for rows.Next() {
		var e UsageEntry
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.ComparisonID, &e.CreditsUsed,
			&e.CreditsBefore, &e.CreditsAfter, &e.Reason, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan usage entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage entries: %w", err)
	}
	return entries, nil
}
