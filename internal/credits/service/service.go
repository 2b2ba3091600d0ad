// Package service implements the credit ledger. Credits are reserved when a
// comparison is created (the balance debit happens there, atomically with the
// comparison insert), then either committed into an audit entry when the run
// completes or released back to the balance when it fails.
package service

import (
	"context"
	"errors"
	"fmt"

	"inspection_backend/internal/credits/repository"
	"inspection_backend/platform/logger"

	"github.com/google/uuid"
)

// ReasonComparisonAnalysis is the usage-entry reason for a completed
// comparison run.
const ReasonComparisonAnalysis = "comparison_analysis"

// Store is the persistence surface the service needs.
type Store interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	Commit(ctx context.Context, comparisonID uuid.UUID, reason string) error
	Release(ctx context.Context, comparisonID uuid.UUID) error
	ListUsage(ctx context.Context, userID uuid.UUID) ([]repository.UsageEntry, error)
}

// Service provides credit ledger operations.
type Service struct {
	store Store
	log   *logger.Logger
}

// New creates a new credits service.
func New(store Store, log *logger.Logger) *Service {
	return &Service{store: store, log: log}
}

// Balance returns the user's current credit balance.
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.store.GetBalance(ctx, userID)
}

// Usage returns the user's audit trail of committed credit spends.
func (s *Service) Usage(ctx context.Context, userID uuid.UUID) ([]repository.UsageEntry, error) {
	return s.store.ListUsage(ctx, userID)
}

// Commit settles the reservation held for a completed comparison into a
// usage entry. Calling it again for the same comparison is a no-op: the
// reservation is gone and the audit row already exists.
func (s *Service) Commit(ctx context.Context, userID, comparisonID uuid.UUID) error {
	err := s.store.Commit(ctx, comparisonID, ReasonComparisonAnalysis)
	if errors.Is(err, repository.ErrNoReservation) {
		s.log.Warn("credit commit skipped, no open reservation",
			"user_id", userID, "comparison_id", comparisonID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("commit credit for comparison %s: %w", comparisonID, err)
	}
	return nil
}

// Release refunds the reservation held for a failed comparison. Like Commit
// it is idempotent: a missing reservation means the comparison was already
// settled.
func (s *Service) Release(ctx context.Context, userID, comparisonID uuid.UUID) error {
	err := s.store.Release(ctx, comparisonID)
	if errors.Is(err, repository.ErrNoReservation) {
		s.log.Warn("credit release skipped, no open reservation",
			"user_id", userID, "comparison_id", comparisonID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("release credit for comparison %s: %w", comparisonID, err)
	}
	return nil
}
