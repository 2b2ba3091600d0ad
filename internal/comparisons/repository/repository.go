package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inspection_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ── Domain Models ─────────────────────────────────────────────────────────────

// Comparison statuses. processing is the only non-terminal status; completed
// and failed are terminal and never transition again.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Inspection types.
const (
	InspectionTypeMoveIn  = "move_in"
	InspectionTypeMoveOut = "move_out"
)

// Comparison is the database model for a move-in/move-out comparison.
type Comparison struct {
	ID                  uuid.UUID  `db:"id"`
	UserID              uuid.UUID  `db:"user_id"`
	PropertyID          uuid.UUID  `db:"property_id"`
	MoveInInspectionID  uuid.UUID  `db:"move_in_inspection_id"`
	MoveOutInspectionID uuid.UUID  `db:"move_out_inspection_id"`
	Status              string     `db:"status"`
	AnalysisStrictness  string     `db:"analysis_strictness"`
	TotalDifferences    int        `db:"total_differences"`
	NewDamagesCount     int        `db:"new_damages_count"`
	TotalEstimatedCost  float64    `db:"total_estimated_cost"`
	ErrorMessage        *string    `db:"error_message"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
	CompletedAt         *time.Time `db:"completed_at"`
}

// Inspection is the subset of an inspection the pipeline needs.
type Inspection struct {
	ID                 uuid.UUID `db:"id"`
	UserID             uuid.UUID `db:"user_id"`
	PropertyID         uuid.UUID `db:"property_id"`
	Type               string    `db:"type"`
	StrictnessOverride *string   `db:"strictness_override"`
	CreatedAt          time.Time `db:"created_at"`
}

// InspectionPhoto is the database model for one uploaded inspection photo.
type InspectionPhoto struct {
	ID           uuid.UUID `db:"id"`
	InspectionID uuid.UUID `db:"inspection_id"`
	RoomName     string    `db:"room_name"`
	FileKey      string    `db:"file_key"`
	ContentType  string    `db:"content_type"`
	CreatedAt    time.Time `db:"created_at"`
}

// Difference is one detected change persisted for a comparison. The photo ids
// record exactly which move-in and move-out photos the analysis compared.
type Difference struct {
	ID            uuid.UUID      `db:"id"`
	ComparisonID  uuid.UUID      `db:"comparison_id"`
	RoomName      string         `db:"room_name"`
	BeforePhotoID uuid.UUID      `db:"before_photo_id"`
	AfterPhotoID  uuid.UUID      `db:"after_photo_id"`
	Description   string         `db:"description"`
	IsNewDamage   bool           `db:"is_new_damage"`
	IsNaturalWear bool           `db:"is_natural_wear"`
	Severity      string         `db:"severity"`
	EstimatedCost float64        `db:"estimated_cost"`
	Markers       map[string]any `db:"markers"`
	CreatedAt     time.Time      `db:"created_at"`
}

// RunTotals are the counters accumulated during a pipeline run.
type RunTotals struct {
	TotalDifferences   int
	NewDamagesCount    int
	TotalEstimatedCost float64
}

// ListFilter narrows the comparison list query.
type ListFilter struct {
	PropertyID *uuid.UUID
	Status     *string
}

// ListItem is a comparison row joined with its property and the inspection
// timestamps for list views.
type ListItem struct {
	Comparison
	PropertyName     string    `db:"property_name"`
	PropertyAddress  string    `db:"property_address"`
	MoveInCreatedAt  time.Time `db:"move_in_created_at"`
	MoveOutCreatedAt time.Time `db:"move_out_created_at"`
}

// ── Repository ────────────────────────────────────────────────────────────────

const (
	comparisonNotFoundMsg = "comparison not found"
	inspectionNotFoundMsg = "inspection not found"
)

// Repository provides database operations for comparisons.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new comparisons repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetInspection loads one inspection by id, without user scoping. Ownership
// checks belong to the service layer, which must return not-found for
// inspections owned by someone else.
func (r *Repository) GetInspection(ctx context.Context, id uuid.UUID) (*Inspection, error) {
	var ins Inspection
	query := `
		SELECT id, user_id, property_id, type, strictness_override, created_at
		FROM inspections WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&ins.ID, &ins.UserID, &ins.PropertyID, &ins.Type, &ins.StrictnessOverride, &ins.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(inspectionNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get inspection: %w", err)
	}
	return &ins, nil
}

// GetUserDefaultStrictness returns the user's default analysis strictness,
// nil when the user has not set one.
func (r *Repository) GetUserDefaultStrictness(ctx context.Context, userID uuid.UUID) (*string, error) {
	var strictness *string
	query := `SELECT default_strictness FROM users WHERE id = $1`

	if err := r.pool.QueryRow(ctx, query, userID).Scan(&strictness); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, fmt.Errorf("failed to get user strictness: %w", err)
	}
	return strictness, nil
}

// CreateWithReservation inserts the comparison and reserves one credit in a
// single transaction. Either everything persists or nothing does:
//   - a duplicate inspection pair raises the unique constraint and maps to
//     a conflict error;
//   - an insufficient balance maps to a payment-required error.
func (r *Repository) CreateWithReservation(ctx context.Context, cmp *Comparison) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insertQuery := `
		INSERT INTO comparisons (
			id, user_id, property_id, move_in_inspection_id, move_out_inspection_id,
			status, analysis_strictness, total_differences, new_damages_count,
			total_estimated_cost, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, 0, $8, $8)`

	if _, err := tx.Exec(ctx, insertQuery,
		cmp.ID, cmp.UserID, cmp.PropertyID, cmp.MoveInInspectionID, cmp.MoveOutInspectionID,
		cmp.Status, cmp.AnalysisStrictness, cmp.CreatedAt,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperr.Conflict("a comparison for this inspection pair already exists")
		}
		return fmt.Errorf("failed to insert comparison: %w", err)
	}

	var balanceAfter int64
	debitQuery := `
		UPDATE users SET credit_balance = credit_balance - 1
		WHERE id = $1 AND credit_balance >= 1
		RETURNING credit_balance`

	if err := tx.QueryRow(ctx, debitQuery, cmp.UserID).Scan(&balanceAfter); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.PaymentRequired("insufficient credit balance")
		}
		return fmt.Errorf("failed to reserve credit: %w", err)
	}

	reservationQuery := `
		INSERT INTO credit_reservations (
			user_id, comparison_id, credits, credits_before, credits_after, created_at
		) VALUES ($1, $2, 1, $3, $4, $5)`

	if _, err := tx.Exec(ctx, reservationQuery,
		cmp.UserID, cmp.ID, balanceAfter+1, balanceAfter, cmp.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to record credit reservation: %w", err)
	}

	return tx.Commit(ctx)
}

// GetByID loads a comparison without user scoping. Used by the worker.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Comparison, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

// GetForUser loads a comparison scoped to its owner.
func (r *Repository) GetForUser(ctx context.Context, id, userID uuid.UUID) (*Comparison, error) {
	return r.get(ctx, `WHERE id = $1 AND user_id = $2`, id, userID)
}

func (r *Repository) get(ctx context.Context, where string, args ...any) (*Comparison, error) {
	var c Comparison
	query := `
		SELECT id, user_id, property_id, move_in_inspection_id, move_out_inspection_id,
			status, analysis_strictness, total_differences, new_damages_count,
			total_estimated_cost, error_message, created_at, updated_at, completed_at
		FROM comparisons ` + where

	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&c.ID, &c.UserID, &c.PropertyID, &c.MoveInInspectionID, &c.MoveOutInspectionID,
		&c.Status, &c.AnalysisStrictness, &c.TotalDifferences, &c.NewDamagesCount,
		&c.TotalEstimatedCost, &c.ErrorMessage, &c.CreatedAt, &c.UpdatedAt, &c.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(comparisonNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get comparison: %w", err)
	}
	return &c, nil
}

// List returns the user's comparisons joined with their property, newest
// first.
func (r *Repository) List(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]ListItem, error) {
	query := `
		SELECT c.id, c.user_id, c.property_id, c.move_in_inspection_id, c.move_out_inspection_id,
			c.status, c.analysis_strictness, c.total_differences, c.new_damages_count,
			c.total_estimated_cost, c.error_message, c.created_at, c.updated_at, c.completed_at,
			p.name, p.address, mi.created_at, mo.created_at
		FROM comparisons c
		JOIN properties p ON p.id = c.property_id
		JOIN inspections mi ON mi.id = c.move_in_inspection_id
		JOIN inspections mo ON mo.id = c.move_out_inspection_id
		WHERE c.user_id = $1`

	args := []any{userID}
	if filter.PropertyID != nil {
		args = append(args, *filter.PropertyID)
		query += fmt.Sprintf(" AND c.property_id = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND c.status = $%d", len(args))
	}
	query += " ORDER BY c.created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query comparisons: %w", err)
	}
	defer rows.Close()

	var items []ListItem
	for rows.Next() {
		var it ListItem
		if err := rows.Scan(
			&it.ID, &it.UserID, &it.PropertyID, &it.MoveInInspectionID, &it.MoveOutInspectionID,
			&it.Status, &it.AnalysisStrictness, &it.TotalDifferences, &it.NewDamagesCount,
			&it.TotalEstimatedCost, &it.ErrorMessage, &it.CreatedAt, &it.UpdatedAt, &it.CompletedAt,
			&it.PropertyName, &it.PropertyAddress, &it.MoveInCreatedAt, &it.MoveOutCreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan comparison: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comparisons: %w", err)
	}
	return items, nil
}

// ListPhotos returns the non-deleted photos of one inspection ordered by
// room name.
func (r *Repository) ListPhotos(ctx context.Context, inspectionID uuid.UUID) ([]InspectionPhoto, error) {
	query := `
		SELECT id, inspection_id, room_name, file_key, content_type, created_at
		FROM inspection_photos
		WHERE inspection_id = $1 AND deleted_at IS NULL
		ORDER BY room_name ASC, created_at ASC`

	rows, err := r.pool.Query(ctx, query, inspectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query inspection photos: %w", err)
	}
	defer rows.Close()

	var photos []InspectionPhoto
	for rows.Next() {
		var p InspectionPhoto
		if err := rows.Scan(&p.ID, &p.InspectionID, &p.RoomName, &p.FileKey, &p.ContentType, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan inspection photo: %w", err)
		}
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate inspection photos: %w", err)
	}
	return photos, nil
}

// InsertDifference persists one detected difference.
func (r *Repository) InsertDifference(ctx context.Context, d *Difference) error {
	query := `
		INSERT INTO comparison_differences (
			id, comparison_id, room_name, before_photo_id, after_photo_id,
			description, is_new_damage, is_natural_wear,
			severity, estimated_cost, markers, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	if _, err := r.pool.Exec(ctx, query,
		d.ID, d.ComparisonID, d.RoomName, d.BeforePhotoID, d.AfterPhotoID,
		d.Description, d.IsNewDamage, d.IsNaturalWear,
		d.Severity, d.EstimatedCost, d.Markers, d.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert difference: %w", err)
	}
	return nil
}

// ListDifferences returns all differences of a comparison in insertion order.
func (r *Repository) ListDifferences(ctx context.Context, comparisonID uuid.UUID) ([]Difference, error) {
	query := `
		SELECT id, comparison_id, room_name, before_photo_id, after_photo_id,
			description, is_new_damage, is_natural_wear,
			severity, estimated_cost, markers, created_at
		FROM comparison_differences
		WHERE comparison_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, comparisonID)
	if err != nil {
		return nil, fmt.Errorf("failed to query differences: %w", err)
	}
	defer rows.Close()

	var diffs []Difference
	for rows.Next() {
		var d Difference
		if err := rows.Scan(
			&d.ID, &d.ComparisonID, &d.RoomName, &d.BeforePhotoID, &d.AfterPhotoID,
			&d.Description, &d.IsNewDamage, &d.IsNaturalWear,
			&d.Severity, &d.EstimatedCost, &d.Markers, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan difference: %w", err)
		}
		diffs = append(diffs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate differences: %w", err)
	}
	return diffs, nil
}

// Finalize moves a processing comparison to a terminal status and writes the
// accumulated counters. The status guard makes terminal states sticky: once
// completed or failed, a comparison is never finalized again.
func (r *Repository) Finalize(ctx context.Context, id uuid.UUID, status string, totals RunTotals, errorMessage *string) error {
	query := `
		UPDATE comparisons SET
			status = $2, total_differences = $3, new_damages_count = $4,
			total_estimated_cost = $5, error_message = $6,
			completed_at = $7, updated_at = $7
		WHERE id = $1 AND status = $8`

	result, err := r.pool.Exec(ctx, query,
		id, status, totals.TotalDifferences, totals.NewDamagesCount,
		totals.TotalEstimatedCost, errorMessage, time.Now(), StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize comparison: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.Conflict("comparison is not in a finalizable state")
	}
	return nil
}
