package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"inspection_backend/internal/adapters/storage"
	"inspection_backend/internal/comparisons/analyzer"
	"inspection_backend/internal/comparisons/repository"
	"inspection_backend/internal/comparisons/transport"
	"inspection_backend/platform/apperr"
	"inspection_backend/platform/logger"

	"github.com/google/uuid"
)

// ── Fakes ─────────────────────────────────────────────────────────────────────

type fakeStore struct {
	inspections       map[uuid.UUID]*repository.Inspection
	defaultStrictness *string

	created   *repository.Comparison
	createErr error

	comparison *repository.Comparison

	photos    map[uuid.UUID][]repository.InspectionPhoto
	photosErr map[uuid.UUID]error

	inserted       []repository.Difference
	insertFailCall int // 1-based call number that fails, 0 = never
	insertCalls    int

	finalizeStatus string
	finalizeTotals repository.RunTotals
	finalizeErrMsg *string
	finalizeCalls  int
	finalizeErr    error
}

func (f *fakeStore) GetInspection(ctx context.Context, id uuid.UUID) (*repository.Inspection, error) {
	if ins, ok := f.inspections[id]; ok {
		return ins, nil
	}
	return nil, apperr.NotFound("inspection not found")
}

func (f *fakeStore) GetUserDefaultStrictness(ctx context.Context, userID uuid.UUID) (*string, error) {
	return f.defaultStrictness, nil
}

func (f *fakeStore) CreateWithReservation(ctx context.Context, cmp *repository.Comparison) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = cmp
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*repository.Comparison, error) {
	if f.comparison == nil || f.comparison.ID != id {
		return nil, apperr.NotFound("comparison not found")
	}
	return f.comparison, nil
}

func (f *fakeStore) GetForUser(ctx context.Context, id, userID uuid.UUID) (*repository.Comparison, error) {
	cmp, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cmp.UserID != userID {
		return nil, apperr.NotFound("comparison not found")
	}
	return cmp, nil
}

func (f *fakeStore) List(ctx context.Context, userID uuid.UUID, filter repository.ListFilter) ([]repository.ListItem, error) {
	return nil, nil
}

func (f *fakeStore) ListPhotos(ctx context.Context, inspectionID uuid.UUID) ([]repository.InspectionPhoto, error) {
	if err := f.photosErr[inspectionID]; err != nil {
		return nil, err
	}
	return f.photos[inspectionID], nil
}

func (f *fakeStore) InsertDifference(ctx context.Context, d *repository.Difference) error {
	f.insertCalls++
	if f.insertFailCall != 0 && f.insertCalls == f.insertFailCall {
		return errors.New("insert failed")
	}
	f.inserted = append(f.inserted, *d)
	return nil
}

func (f *fakeStore) ListDifferences(ctx context.Context, comparisonID uuid.UUID) ([]repository.Difference, error) {
	return f.inserted, nil
}

func (f *fakeStore) Finalize(ctx context.Context, id uuid.UUID, status string, totals repository.RunTotals, errorMessage *string) error {
	if f.finalizeErr != nil {
		return f.finalizeErr
	}
	f.finalizeCalls++
	f.finalizeStatus = status
	f.finalizeTotals = totals
	f.finalizeErrMsg = errorMessage
	return nil
}

type fakeLedger struct {
	commits   []uuid.UUID
	releases  []uuid.UUID
	commitErr error
}

func (f *fakeLedger) Commit(ctx context.Context, userID, comparisonID uuid.UUID) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.commits = append(f.commits, comparisonID)
	return nil
}

func (f *fakeLedger) Release(ctx context.Context, userID, comparisonID uuid.UUID) error {
	f.releases = append(f.releases, comparisonID)
	return nil
}

type fakeQueue struct {
	enqueued []uuid.UUID
	err      error
}

func (f *fakeQueue) EnqueueComparisonRun(ctx context.Context, comparisonID, userID uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, comparisonID)
	return nil
}

type fakeAnalyzer struct {
	results map[string]analyzer.Result // keyed by lowercased room name
	calls   []string
}

func (f *fakeAnalyzer) AnalyzeRoom(ctx context.Context, req analyzer.RoomAnalysisRequest) analyzer.Result {
	f.calls = append(f.calls, req.RoomName)
	return f.results[strings.ToLower(strings.TrimSpace(req.RoomName))]
}

type fakePhotoStore struct {
	failKeys map[string]bool
}

func (f *fakePhotoStore) DownloadFile(ctx context.Context, bucket, fileKey string) (io.ReadCloser, error) {
	if f.failKeys[fileKey] {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader([]byte("image-bytes"))), nil
}

func (f *fakePhotoStore) GenerateDownloadURL(ctx context.Context, bucket, fileKey string) (*storage.PresignedURL, error) {
	return &storage.PresignedURL{URL: "https://storage.test/" + fileKey, FileKey: fileKey}, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

type fixture struct {
	svc    *Service
	store  *fakeStore
	ledger *fakeLedger
	queue  *fakeQueue
	vision *fakeAnalyzer

	userID     uuid.UUID
	propertyID uuid.UUID
	moveInID   uuid.UUID
	moveOutID  uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{
		store:      &fakeStore{inspections: map[uuid.UUID]*repository.Inspection{}, photos: map[uuid.UUID][]repository.InspectionPhoto{}, photosErr: map[uuid.UUID]error{}},
		ledger:     &fakeLedger{},
		queue:      &fakeQueue{},
		vision:     &fakeAnalyzer{results: map[string]analyzer.Result{}},
		userID:     uuid.New(),
		propertyID: uuid.New(),
		moveInID:   uuid.New(),
		moveOutID:  uuid.New(),
	}
	f.store.inspections[f.moveInID] = &repository.Inspection{
		ID: f.moveInID, UserID: f.userID, PropertyID: f.propertyID, Type: repository.InspectionTypeMoveIn,
	}
	f.store.inspections[f.moveOutID] = &repository.Inspection{
		ID: f.moveOutID, UserID: f.userID, PropertyID: f.propertyID, Type: repository.InspectionTypeMoveOut,
	}

	f.svc = New(f.store, f.ledger, logger.New("test"))
	f.svc.SetJobQueue(f.queue)
	f.svc.SetAnalyzer(f.vision)
	f.svc.SetPhotoStore(&fakePhotoStore{}, "inspection-photos")
	return f
}

func (f *fixture) createRequest() transport.CreateComparisonRequest {
	return transport.CreateComparisonRequest{
		PropertyID:          f.propertyID,
		MoveInInspectionID:  f.moveInID,
		MoveOutInspectionID: f.moveOutID,
	}
}

func (f *fixture) addPhoto(inspectionID uuid.UUID, room string) {
	f.store.photos[inspectionID] = append(f.store.photos[inspectionID], repository.InspectionPhoto{
		ID: uuid.New(), InspectionID: inspectionID, RoomName: room,
		FileKey: "photos/" + uuid.NewString(), ContentType: "image/jpeg",
	})
}

func (f *fixture) processingComparison(strictness string) *repository.Comparison {
	cmp := &repository.Comparison{
		ID:                  uuid.New(),
		UserID:              f.userID,
		PropertyID:          f.propertyID,
		MoveInInspectionID:  f.moveInID,
		MoveOutInspectionID: f.moveOutID,
		Status:              repository.StatusProcessing,
		AnalysisStrictness:  strictness,
	}
	f.store.comparison = cmp
	return cmp
}

func diff(desc string, newDamage bool, severity string, cost float64) analyzer.Difference {
	return analyzer.Difference{
		Description: desc, IsNewDamage: newDamage, IsNaturalWear: !newDamage,
		Severity: severity, EstimatedCost: cost, Location: "somewhere",
	}
}

// ── Create ────────────────────────────────────────────────────────────────────

func TestCreateReservesCreditAndEnqueuesRun(t *testing.T) {
	f := newFixture()

	cmp, err := f.svc.Create(context.Background(), f.userID, f.createRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmp.Status != repository.StatusProcessing {
		t.Errorf("status %q, want %q", cmp.Status, repository.StatusProcessing)
	}
	if cmp.AnalysisStrictness != string(analyzer.StrictnessStandard) {
		t.Errorf("strictness %q, want standard", cmp.AnalysisStrictness)
	}
	if f.store.created == nil {
		t.Fatal("expected comparison to be persisted")
	}
	if len(f.queue.enqueued) != 1 || f.queue.enqueued[0] != cmp.ID {
		t.Errorf("expected one enqueued run for %s, got %v", cmp.ID, f.queue.enqueued)
	}
}

func TestCreateRejectsSameInspectionTwice(t *testing.T) {
	f := newFixture()
	req := f.createRequest()
	req.MoveOutInspectionID = req.MoveInInspectionID

	_, err := f.svc.Create(context.Background(), f.userID, req)
	if !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
}

func TestCreateRejectsForeignInspectionAsNotFound(t *testing.T) {
	f := newFixture()
	f.store.inspections[f.moveOutID].UserID = uuid.New()

	_, err := f.svc.Create(context.Background(), f.userID, f.createRequest())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(f.queue.enqueued) != 0 {
		t.Error("expected no enqueued run")
	}
}

func TestCreateRejectsWrongInspectionType(t *testing.T) {
	f := newFixture()
	f.store.inspections[f.moveOutID].Type = repository.InspectionTypeMoveIn

	_, err := f.svc.Create(context.Background(), f.userID, f.createRequest())
	if !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
}

func TestCreateRejectsWrongPropertyAsNotFound(t *testing.T) {
	f := newFixture()
	req := f.createRequest()
	req.PropertyID = uuid.New()

	_, err := f.svc.Create(context.Background(), f.userID, req)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateInsufficientBalance(t *testing.T) {
	f := newFixture()
	f.store.createErr = apperr.PaymentRequired("insufficient credit balance")

	_, err := f.svc.Create(context.Background(), f.userID, f.createRequest())
	if !apperr.Is(err, apperr.KindPaymentRequired) {
		t.Fatalf("expected payment required, got %v", err)
	}
	if len(f.queue.enqueued) != 0 {
		t.Error("expected no enqueued run when reservation fails")
	}
}

func TestCreateDuplicatePairConflict(t *testing.T) {
	f := newFixture()
	f.store.createErr = apperr.Conflict("a comparison for this inspection pair already exists")

	_, err := f.svc.Create(context.Background(), f.userID, f.createRequest())
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateEnqueueFailureFailsComparisonAndRefunds(t *testing.T) {
	f := newFixture()
	f.queue.err = errors.New("redis down")

	_, err := f.svc.Create(context.Background(), f.userID, f.createRequest())
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if f.store.finalizeStatus != repository.StatusFailed {
		t.Errorf("expected comparison finalized as failed, got %q", f.store.finalizeStatus)
	}
	if len(f.ledger.releases) != 1 {
		t.Errorf("expected one credit release, got %d", len(f.ledger.releases))
	}
}

// ── Strictness resolution ─────────────────────────────────────────────────────

func TestStrictnessMoveOutOverrideWins(t *testing.T) {
	f := newFixture()
	strict := string(analyzer.StrictnessStrict)
	veryStrict := string(analyzer.StrictnessVeryStrict)
	f.store.inspections[f.moveInID].StrictnessOverride = &strict
	f.store.inspections[f.moveOutID].StrictnessOverride = &veryStrict

	cmp, err := f.svc.Create(context.Background(), f.userID, f.createRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmp.AnalysisStrictness != veryStrict {
		t.Errorf("strictness %q, want %q", cmp.AnalysisStrictness, veryStrict)
	}
}

func TestStrictnessFallsBackToUserDefault(t *testing.T) {
	f := newFixture()
	strict := string(analyzer.StrictnessStrict)
	f.store.defaultStrictness = &strict

	cmp, err := f.svc.Create(context.Background(), f.userID, f.createRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmp.AnalysisStrictness != strict {
		t.Errorf("strictness %q, want %q", cmp.AnalysisStrictness, strict)
	}
}

func TestStrictnessIgnoresUnknownValues(t *testing.T) {
	f := newFixture()
	bogus := "draconian"
	f.store.inspections[f.moveOutID].StrictnessOverride = &bogus
	f.store.defaultStrictness = &bogus

	cmp, err := f.svc.Create(context.Background(), f.userID, f.createRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmp.AnalysisStrictness != string(analyzer.StrictnessStandard) {
		t.Errorf("strictness %q, want standard", cmp.AnalysisStrictness)
	}
}

// ── Run ───────────────────────────────────────────────────────────────────────

func TestRunCompletesAndCommitsCredit(t *testing.T) {
	f := newFixture()
	cmp := f.processingComparison("standard")

	f.addPhoto(f.moveInID, "Sala")
	f.addPhoto(f.moveOutID, "sala")
	f.addPhoto(f.moveInID, "Quarto 1")
	f.addPhoto(f.moveOutID, "quarto 1 ")

	f.vision.results["sala"] = analyzer.Result{
		HasDifference: true,
		Differences: []analyzer.Difference{
			diff("hole in wall", true, "high", 300),
			diff("faded paint", false, "low", 0),
		},
	}
	f.vision.results["quarto 1"] = analyzer.Result{
		HasDifference: true,
		Differences: []analyzer.Difference{
			diff("broken window latch", true, "medium", 80),
		},
	}

	if err := f.svc.Run(context.Background(), cmp.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.store.finalizeStatus != repository.StatusCompleted {
		t.Fatalf("status %q, want completed", f.store.finalizeStatus)
	}
	totals := f.store.finalizeTotals
	if totals.TotalDifferences != 3 {
		t.Errorf("total differences %d, want 3", totals.TotalDifferences)
	}
	if totals.NewDamagesCount != 2 {
		t.Errorf("new damages %d, want 2", totals.NewDamagesCount)
	}
	if totals.TotalEstimatedCost != 380 {
		t.Errorf("estimated cost %v, want 380", totals.TotalEstimatedCost)
	}
	if len(f.store.inserted) != 3 {
		t.Errorf("persisted rows %d, want 3", len(f.store.inserted))
	}
	if len(f.ledger.commits) != 1 || f.ledger.commits[0] != cmp.ID {
		t.Errorf("expected one credit commit for %s, got %v", cmp.ID, f.ledger.commits)
	}
	if len(f.ledger.releases) != 0 {
		t.Errorf("expected no releases, got %d", len(f.ledger.releases))
	}
}

func TestRunSkipsOneSidedRooms(t *testing.T) {
	f := newFixture()
	cmp := f.processingComparison("standard")

	f.addPhoto(f.moveInID, "Sala")
	f.addPhoto(f.moveOutID, "sala")
	f.addPhoto(f.moveInID, "Cozinha") // no move-out photo
	f.addPhoto(f.moveOutID, "Varanda") // no move-in photo

	if err := f.svc.Run(context.Background(), cmp.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.vision.calls) != 1 || f.vision.calls[0] != "Sala" {
		t.Errorf("expected analysis only for Sala, got %v", f.vision.calls)
	}
	if f.store.finalizeStatus != repository.StatusCompleted {
		t.Errorf("status %q, want completed", f.store.finalizeStatus)
	}
}

func TestRunUnparseableReplyYieldsZeroDifferences(t *testing.T) {
	f := newFixture()
	cmp := f.processingComparison("standard")

	f.addPhoto(f.moveInID, "Sala")
	f.addPhoto(f.moveOutID, "Sala")
	f.vision.results["sala"] = analyzer.Result{Unparseable: true}

	if err := f.svc.Run(context.Background(), cmp.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.store.finalizeStatus != repository.StatusCompleted {
		t.Fatalf("status %q, want completed", f.store.finalizeStatus)
	}
	if f.store.finalizeTotals.TotalDifferences != 0 {
		t.Errorf("expected zero differences, got %d", f.store.finalizeTotals.TotalDifferences)
	}
	if len(f.ledger.commits) != 1 {
		t.Errorf("expected credit commit even for an empty result, got %d", len(f.ledger.commits))
	}
}

func TestRunFatalErrorFailsAndRefunds(t *testing.T) {
	f := newFixture()
	cmp := f.processingComparison("standard")
	f.store.photosErr[f.moveInID] = errors.New("database gone")

	if err := f.svc.Run(context.Background(), cmp.ID); err != nil {
		t.Fatalf("expected nil (failure is absorbed), got %v", err)
	}

	if f.store.finalizeStatus != repository.StatusFailed {
		t.Fatalf("status %q, want failed", f.store.finalizeStatus)
	}
	if f.store.finalizeErrMsg == nil || !strings.Contains(*f.store.finalizeErrMsg, "database gone") {
		t.Errorf("expected error message recorded, got %v", f.store.finalizeErrMsg)
	}
	if len(f.ledger.releases) != 1 || f.ledger.releases[0] != cmp.ID {
		t.Errorf("expected one credit release for %s, got %v", cmp.ID, f.ledger.releases)
	}
	if len(f.ledger.commits) != 0 {
		t.Errorf("expected no commits, got %d", len(f.ledger.commits))
	}
}

func TestRunRecordsAnalyzedPhotoIDs(t *testing.T) {
	f := newFixture()
	cmp := f.processingComparison("standard")

	f.addPhoto(f.moveInID, "Sala")
	f.addPhoto(f.moveInID, "Sala") // later upload, not analyzed
	f.addPhoto(f.moveOutID, "Sala")

	f.vision.results["sala"] = analyzer.Result{
		HasDifference: true,
		Differences:   []analyzer.Difference{diff("hole in wall", true, "high", 300)},
	}

	if err := f.svc.Run(context.Background(), cmp.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.store.inserted) != 1 {
		t.Fatalf("persisted rows %d, want 1", len(f.store.inserted))
	}
	row := f.store.inserted[0]
	if row.BeforePhotoID != f.store.photos[f.moveInID][0].ID {
		t.Errorf("before photo id %s, want the first move-in photo", row.BeforePhotoID)
	}
	if row.AfterPhotoID != f.store.photos[f.moveOutID][0].ID {
		t.Errorf("after photo id %s, want the first move-out photo", row.AfterPhotoID)
	}
}

func TestRunCommitFailureSurfaces(t *testing.T) {
	f := newFixture()
	cmp := f.processingComparison("standard")

	f.addPhoto(f.moveInID, "Sala")
	f.addPhoto(f.moveOutID, "Sala")
	f.ledger.commitErr = errors.New("reservation table unreachable")

	err := f.svc.Run(context.Background(), cmp.ID)
	if err == nil || !strings.Contains(err.Error(), "reservation table unreachable") {
		t.Fatalf("expected the commit failure returned, got %v", err)
	}

	// The comparison stays completed; the dangling reservation is surfaced
	// through the task outcome, never refunded.
	if f.store.finalizeStatus != repository.StatusCompleted {
		t.Errorf("status %q, want completed", f.store.finalizeStatus)
	}
	if len(f.ledger.releases) != 0 {
		t.Errorf("expected no releases, got %d", len(f.ledger.releases))
	}
}

func TestRunFatalErrorMidLoopKeepsRowsAndTotals(t *testing.T) {
	f := newFixture()
	cmp := f.processingComparison("standard")

	f.addPhoto(f.moveInID, "Sala")
	f.addPhoto(f.moveOutID, "Sala")
	f.addPhoto(f.moveInID, "Quarto")
	f.addPhoto(f.moveOutID, "Quarto")

	// The run is cancelled while Sala is being analyzed, so the loop aborts
	// before reaching Quarto.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.svc.SetAnalyzer(analyzerFunc(func(ctx context.Context, req analyzer.RoomAnalysisRequest) analyzer.Result {
		cancel()
		return analyzer.Result{
			HasDifference: true,
			Differences: []analyzer.Difference{
				diff("hole in wall", true, "high", 100),
				diff("faded paint", false, "low", 0),
			},
		}
	}))

	if err := f.svc.Run(ctx, cmp.ID); err != nil {
		t.Fatalf("expected nil (failure is absorbed), got %v", err)
	}

	if f.store.finalizeStatus != repository.StatusFailed {
		t.Fatalf("status %q, want failed", f.store.finalizeStatus)
	}
	// Sala's rows and counters survive the abort.
	if len(f.store.inserted) != 2 {
		t.Fatalf("persisted rows %d, want 2", len(f.store.inserted))
	}
	totals := f.store.finalizeTotals
	if totals.TotalDifferences != 2 || totals.NewDamagesCount != 1 || totals.TotalEstimatedCost != 100 {
		t.Errorf("totals %+v, want 2/1/100", totals)
	}
	if f.store.finalizeErrMsg == nil || !strings.Contains(*f.store.finalizeErrMsg, "context canceled") {
		t.Errorf("expected cancellation recorded, got %v", f.store.finalizeErrMsg)
	}
	if len(f.ledger.releases) != 1 {
		t.Errorf("expected one credit release, got %d", len(f.ledger.releases))
	}
	if len(f.ledger.commits) != 0 {
		t.Errorf("expected no commits, got %d", len(f.ledger.commits))
	}
}

func TestRunSkipsFinalizedComparison(t *testing.T) {
	f := newFixture()
	cmp := f.processingComparison("standard")
	cmp.Status = repository.StatusCompleted

	if err := f.svc.Run(context.Background(), cmp.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.vision.calls) != 0 {
		t.Error("expected no analysis for a finalized comparison")
	}
	if f.store.finalizeCalls != 0 {
		t.Error("expected no finalize call")
	}
	if len(f.ledger.commits)+len(f.ledger.releases) != 0 {
		t.Error("expected no ledger activity")
	}
}

func TestRunInsertFailureSkipsRestOfRoom(t *testing.T) {
	f := newFixture()
	cmp := f.processingComparison("standard")

	f.addPhoto(f.moveInID, "Sala")
	f.addPhoto(f.moveOutID, "Sala")
	f.addPhoto(f.moveInID, "Quarto")
	f.addPhoto(f.moveOutID, "Quarto")

	f.vision.results["sala"] = analyzer.Result{
		HasDifference: true,
		Differences: []analyzer.Difference{
			diff("first", true, "low", 10),
			diff("second", true, "low", 20),
			diff("third", true, "low", 30),
		},
	}
	f.vision.results["quarto"] = analyzer.Result{
		HasDifference: true,
		Differences:   []analyzer.Difference{diff("dent", true, "medium", 50)},
	}
	f.store.insertFailCall = 2 // second insert in Sala fails

	if err := f.svc.Run(context.Background(), cmp.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Sala keeps its first row, Quarto is unaffected.
	if len(f.store.inserted) != 2 {
		t.Fatalf("persisted rows %d, want 2", len(f.store.inserted))
	}
	totals := f.store.finalizeTotals
	if totals.TotalDifferences != 2 || totals.NewDamagesCount != 2 || totals.TotalEstimatedCost != 60 {
		t.Errorf("totals %+v, want 2/2/60", totals)
	}
	if f.store.finalizeStatus != repository.StatusCompleted {
		t.Errorf("status %q, want completed", f.store.finalizeStatus)
	}
}

func TestRunImageLoadFailureIsolatedToRoom(t *testing.T) {
	f := newFixture()
	cmp := f.processingComparison("standard")

	f.addPhoto(f.moveInID, "Sala")
	f.addPhoto(f.moveOutID, "Sala")
	f.addPhoto(f.moveInID, "Quarto")
	f.addPhoto(f.moveOutID, "Quarto")

	failing := f.store.photos[f.moveInID][0].FileKey // Sala's move-in photo
	f.svc.SetPhotoStore(&fakePhotoStore{failKeys: map[string]bool{failing: true}}, "inspection-photos")

	f.vision.results["quarto"] = analyzer.Result{
		HasDifference: true,
		Differences:   []analyzer.Difference{diff("dent", true, "medium", 50)},
	}

	if err := f.svc.Run(context.Background(), cmp.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.vision.calls) != 1 || f.vision.calls[0] != "Quarto" {
		t.Errorf("expected only Quarto analyzed, got %v", f.vision.calls)
	}
	if f.store.finalizeStatus != repository.StatusCompleted {
		t.Errorf("status %q, want completed", f.store.finalizeStatus)
	}
	if f.store.finalizeTotals.TotalDifferences != 1 {
		t.Errorf("total differences %d, want 1", f.store.finalizeTotals.TotalDifferences)
	}
}

func TestRunStrictnessPassedToAnalyzer(t *testing.T) {
	f := newFixture()
	cmp := f.processingComparison(string(analyzer.StrictnessVeryStrict))

	f.addPhoto(f.moveInID, "Sala")
	f.addPhoto(f.moveOutID, "Sala")

	var seen analyzer.Strictness
	f.svc.SetAnalyzer(analyzerFunc(func(ctx context.Context, req analyzer.RoomAnalysisRequest) analyzer.Result {
		seen = req.Strictness
		return analyzer.Result{}
	}))

	if err := f.svc.Run(context.Background(), cmp.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != analyzer.StrictnessVeryStrict {
		t.Errorf("strictness %q, want very_strict", seen)
	}
}

type analyzerFunc func(ctx context.Context, req analyzer.RoomAnalysisRequest) analyzer.Result

func (f analyzerFunc) AnalyzeRoom(ctx context.Context, req analyzer.RoomAnalysisRequest) analyzer.Result {
	return f(ctx, req)
}
