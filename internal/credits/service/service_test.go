package service

import (
	"context"
	"errors"
	"testing"

	"inspection_backend/internal/credits/repository"
	"inspection_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	balance      int64
	balanceErr   error
	commitErr    error
	releaseErr   error
	commitCalls  []uuid.UUID
	releaseCalls []uuid.UUID
	reasons      []string
	usage        []repository.UsageEntry
}

func (f *fakeStore) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return f.balance, f.balanceErr
}

func (f *fakeStore) Commit(ctx context.Context, comparisonID uuid.UUID, reason string) error {
	f.commitCalls = append(f.commitCalls, comparisonID)
	f.reasons = append(f.reasons, reason)
	return f.commitErr
}

func (f *fakeStore) Release(ctx context.Context, comparisonID uuid.UUID) error {
	f.releaseCalls = append(f.releaseCalls, comparisonID)
	return f.releaseErr
}

func (f *fakeStore) ListUsage(ctx context.Context, userID uuid.UUID) ([]repository.UsageEntry, error) {
	return f.usage, nil
}

func newTestService(store *fakeStore) *Service {
	return New(store, logger.New("test"))
}

func TestCommitRecordsComparisonReason(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	comparisonID := uuid.New()
	if err := svc.Commit(context.Background(), uuid.New(), comparisonID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.commitCalls) != 1 || store.commitCalls[0] != comparisonID {
		t.Fatalf("expected one commit for %s, got %v", comparisonID, store.commitCalls)
	}
	if store.reasons[0] != ReasonComparisonAnalysis {
		t.Errorf("expected reason %q, got %q", ReasonComparisonAnalysis, store.reasons[0])
	}
}

func TestCommitIsIdempotentWhenReservationGone(t *testing.T) {
	store := &fakeStore{commitErr: repository.ErrNoReservation}
	svc := newTestService(store)

	if err := svc.Commit(context.Background(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("expected nil for already-settled reservation, got %v", err)
	}
}

func TestCommitPropagatesStoreFailure(t *testing.T) {
	storeErr := errors.New("connection reset")
	store := &fakeStore{commitErr: storeErr}
	svc := newTestService(store)

	err := svc.Commit(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestReleaseIsIdempotentWhenReservationGone(t *testing.T) {
	store := &fakeStore{releaseErr: repository.ErrNoReservation}
	svc := newTestService(store)

	if err := svc.Release(context.Background(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("expected nil for already-settled reservation, got %v", err)
	}
}

func TestReleasePropagatesStoreFailure(t *testing.T) {
	storeErr := errors.New("connection reset")
	store := &fakeStore{releaseErr: storeErr}
	svc := newTestService(store)

	err := svc.Release(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestBalancePassthrough(t *testing.T) {
	store := &fakeStore{balance: 7}
	svc := newTestService(store)

	balance, err := svc.Balance(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 7 {
		t.Errorf("expected balance 7, got %d", balance)
	}
}
