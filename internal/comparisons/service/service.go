// Package service implements the comparison pipeline: creating a comparison
// reserves a credit and enqueues a durable run; the run matches rooms,
// analyzes each pair and settles the credit based on the outcome.
package service

import (
	"context"
	"io"
	"time"

	"inspection_backend/internal/adapters/storage"
	"inspection_backend/internal/comparisons/analyzer"
	"inspection_backend/internal/comparisons/repository"
	"inspection_backend/internal/comparisons/transport"
	"inspection_backend/platform/apperr"
	"inspection_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence surface the service needs. Implemented by the
// comparisons repository.
type Store interface {
	GetInspection(ctx context.Context, id uuid.UUID) (*repository.Inspection, error)
	GetUserDefaultStrictness(ctx context.Context, userID uuid.UUID) (*string, error)
	CreateWithReservation(ctx context.Context, cmp *repository.Comparison) error
	GetByID(ctx context.Context, id uuid.UUID) (*repository.Comparison, error)
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*repository.Comparison, error)
	List(ctx context.Context, userID uuid.UUID, filter repository.ListFilter) ([]repository.ListItem, error)
	ListPhotos(ctx context.Context, inspectionID uuid.UUID) ([]repository.InspectionPhoto, error)
	InsertDifference(ctx context.Context, d *repository.Difference) error
	ListDifferences(ctx context.Context, comparisonID uuid.UUID) ([]repository.Difference, error)
	Finalize(ctx context.Context, id uuid.UUID, status string, totals repository.RunTotals, errorMessage *string) error
}

// Ledger settles the credit reserved for a comparison. Implemented by the
// credits service.
type Ledger interface {
	Commit(ctx context.Context, userID, comparisonID uuid.UUID) error
	Release(ctx context.Context, userID, comparisonID uuid.UUID) error
}

// JobQueue enqueues comparison runs on the durable queue. Implemented by the
// scheduler client.
type JobQueue interface {
	EnqueueComparisonRun(ctx context.Context, comparisonID, userID uuid.UUID) error
}

// PhotoStore is the slice of object storage the pipeline needs.
type PhotoStore interface {
	DownloadFile(ctx context.Context, bucket, fileKey string) (io.ReadCloser, error)
	GenerateDownloadURL(ctx context.Context, bucket, fileKey string) (*storage.PresignedURL, error)
}

// Service provides business logic for comparisons.
type Service struct {
	store    Store
	ledger   Ledger
	jobs     JobQueue
	photos   PhotoStore
	bucket   string
	analyzer analyzer.RoomAnalyzer
	log      *logger.Logger
}

// New creates a new comparisons service.
func New(store Store, ledger Ledger, log *logger.Logger) *Service {
	return &Service{store: store, ledger: ledger, log: log}
}

// SetJobQueue injects the durable queue client. Required by the API binary.
func (s *Service) SetJobQueue(jobs JobQueue) {
	s.jobs = jobs
}

// SetAnalyzer injects the vision analyzer. Required by the worker binary.
func (s *Service) SetAnalyzer(a analyzer.RoomAnalyzer) {
	s.analyzer = a
}

// SetPhotoStore injects object storage and the inspection photo bucket.
func (s *Service) SetPhotoStore(photos PhotoStore, bucket string) {
	s.photos = photos
	s.bucket = bucket
}

// Create validates the inspection pair, atomically inserts the comparison
// with one reserved credit and enqueues the analysis run.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, req transport.CreateComparisonRequest) (*repository.Comparison, error) {
	if req.MoveInInspectionID == req.MoveOutInspectionID {
		return nil, apperr.BadRequest("move-in and move-out inspections must differ")
	}

	moveIn, err := s.store.GetInspection(ctx, req.MoveInInspectionID)
	if err != nil {
		return nil, err
	}
	moveOut, err := s.store.GetInspection(ctx, req.MoveOutInspectionID)
	if err != nil {
		return nil, err
	}

	// Foreign inspections are reported as not found, not forbidden, so the
	// response does not leak their existence.
	if moveIn.UserID != userID || moveOut.UserID != userID {
		return nil, apperr.NotFound("inspection not found")
	}
	// A property id that matches neither inspection is indistinguishable from
	// a property that does not exist or is not the caller's.
	if moveIn.PropertyID != req.PropertyID || moveOut.PropertyID != req.PropertyID {
		return nil, apperr.NotFound("property not found")
	}
	if moveIn.Type != repository.InspectionTypeMoveIn {
		return nil, apperr.BadRequest("move_in_inspection_id does not reference a move-in inspection")
	}
	if moveOut.Type != repository.InspectionTypeMoveOut {
		return nil, apperr.BadRequest("move_out_inspection_id does not reference a move-out inspection")
	}

	strictness, err := s.resolveStrictness(ctx, userID, moveIn, moveOut)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	cmp := &repository.Comparison{
		ID:                  uuid.New(),
		UserID:              userID,
		PropertyID:          req.PropertyID,
		MoveInInspectionID:  req.MoveInInspectionID,
		MoveOutInspectionID: req.MoveOutInspectionID,
		Status:              repository.StatusProcessing,
		AnalysisStrictness:  string(strictness),
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.store.CreateWithReservation(ctx, cmp); err != nil {
		return nil, err
	}

	if err := s.jobs.EnqueueComparisonRun(ctx, cmp.ID, userID); err != nil {
		s.log.Error("failed to enqueue comparison run", "comparison_id", cmp.ID, "error", err)
		msg := "failed to schedule analysis run"
		if ferr := s.store.Finalize(ctx, cmp.ID, repository.StatusFailed, repository.RunTotals{}, &msg); ferr != nil {
			s.log.Error("failed to mark unscheduled comparison failed", "comparison_id", cmp.ID, "error", ferr)
		}
		if rerr := s.ledger.Release(ctx, userID, cmp.ID); rerr != nil {
			s.log.Error("failed to release credit for unscheduled comparison", "comparison_id", cmp.ID, "error", rerr)
		}
		return nil, apperr.Internal("failed to schedule comparison analysis")
	}

	return cmp, nil
}

// resolveStrictness applies the precedence: per-inspection override (move-out
// wins over move-in), then the user's default, then standard. Unknown values
// are skipped rather than rejected.
func (s *Service) resolveStrictness(ctx context.Context, userID uuid.UUID, moveIn, moveOut *repository.Inspection) (analyzer.Strictness, error) {
	for _, override := range []*string{moveOut.StrictnessOverride, moveIn.StrictnessOverride} {
		if override == nil {
			continue
		}
		if level, ok := analyzer.ParseStrictness(*override); ok {
			return level, nil
		}
		s.log.Warn("ignoring unknown strictness override", "value", *override)
	}

	def, err := s.store.GetUserDefaultStrictness(ctx, userID)
	if err != nil {
		return "", err
	}
	if def != nil {
		if level, ok := analyzer.ParseStrictness(*def); ok {
			return level, nil
		}
		s.log.Warn("ignoring unknown default strictness", "user_id", userID, "value", *def)
	}

	return analyzer.StrictnessStandard, nil
}

// Get returns one comparison with its differences, scoped to the owner.
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*repository.Comparison, []repository.Difference, error) {
	cmp, err := s.store.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, nil, err
	}
	diffs, err := s.store.ListDifferences(ctx, cmp.ID)
	if err != nil {
		return nil, nil, err
	}
	return cmp, diffs, nil
}

// List returns the user's comparisons joined with their property.
func (s *Service) List(ctx context.Context, userID uuid.UUID, filter repository.ListFilter) ([]repository.ListItem, error) {
	return s.store.List(ctx, userID, filter)
}

// InspectionPhotos returns the non-deleted photos of one inspection of a
// comparison the user owns.
func (s *Service) InspectionPhotos(ctx context.Context, inspectionID uuid.UUID) ([]repository.InspectionPhoto, error) {
	return s.store.ListPhotos(ctx, inspectionID)
}

// PresignPhoto creates a short-lived download URL for one photo.
func (s *Service) PresignPhoto(ctx context.Context, fileKey string) (*storage.PresignedURL, error) {
	if s.photos == nil {
		return nil, apperr.Internal("photo storage not configured")
	}
	return s.photos.GenerateDownloadURL(ctx, s.bucket, fileKey)
}
