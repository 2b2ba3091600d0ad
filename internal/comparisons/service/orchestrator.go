package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"inspection_backend/internal/adapters/storage"
	"inspection_backend/internal/comparisons/analyzer"
	"inspection_backend/internal/comparisons/matcher"
	"inspection_backend/internal/comparisons/repository"

	"github.com/google/uuid"
)

// Run executes one comparison end to end. It is invoked by the worker for
// each dequeued task and never returns an error for analysis problems: a
// fatal pipeline error finalizes the comparison as failed and refunds the
// reserved credit, keeping any difference rows written before the failure.
func (s *Service) Run(ctx context.Context, comparisonID uuid.UUID) error {
	cmp, err := s.store.GetByID(ctx, comparisonID)
	if err != nil {
		return err
	}

	// Terminal statuses are sticky. A redelivered or manually re-enqueued
	// task for a finalized comparison is a no-op.
	if cmp.Status != repository.StatusProcessing {
		s.log.Warn("comparison already finalized, skipping run",
			"comparison_id", cmp.ID, "status", cmp.Status)
		return nil
	}

	totals, runErr := s.analyzeRooms(ctx, cmp)
	if runErr != nil {
		s.failRun(ctx, cmp, totals, runErr)
		return nil
	}

	if err := s.store.Finalize(ctx, cmp.ID, repository.StatusCompleted, totals, nil); err != nil {
		s.failRun(ctx, cmp, totals, err)
		return nil
	}

	// A commit failure leaves the reservation dangling and the sticky status
	// means no later run will settle it. Returning the error archives the
	// task so the reservation can be reconciled by hand.
	if err := s.ledger.Commit(ctx, cmp.UserID, cmp.ID); err != nil {
		s.log.Error("failed to commit credit for completed comparison",
			"comparison_id", cmp.ID, "error", err)
		return fmt.Errorf("failed to commit credit for comparison %s: %w", cmp.ID, err)
	}

	s.log.Info("comparison run completed", "comparison_id", cmp.ID,
		"differences", totals.TotalDifferences, "new_damages", totals.NewDamagesCount)
	return nil
}

func (s *Service) failRun(ctx context.Context, cmp *repository.Comparison, totals repository.RunTotals, cause error) {
	s.log.Error("comparison run failed", "comparison_id", cmp.ID, "error", cause)

	msg := cause.Error()
	if err := s.store.Finalize(ctx, cmp.ID, repository.StatusFailed, totals, &msg); err != nil {
		// Finalize only fails here when the comparison is no longer in
		// processing; the credit was settled by whoever finalized it.
		s.log.Error("failed to mark comparison failed", "comparison_id", cmp.ID, "error", err)
		return
	}
	if err := s.ledger.Release(ctx, cmp.UserID, cmp.ID); err != nil {
		s.log.Error("failed to release reserved credit", "comparison_id", cmp.ID, "error", err)
	}
}

// analyzeRooms runs the sequential per-room pipeline and returns the counters
// accumulated so far. An error return is fatal for the run; per-room problems
// (image loads, model calls, difference inserts) are logged and isolated to
// their room.
func (s *Service) analyzeRooms(ctx context.Context, cmp *repository.Comparison) (repository.RunTotals, error) {
	var totals repository.RunTotals

	if s.analyzer == nil {
		return totals, fmt.Errorf("room analyzer not configured")
	}
	if s.photos == nil {
		return totals, fmt.Errorf("photo storage not configured")
	}

	beforePhotos, err := s.store.ListPhotos(ctx, cmp.MoveInInspectionID)
	if err != nil {
		return totals, fmt.Errorf("list move-in photos: %w", err)
	}
	afterPhotos, err := s.store.ListPhotos(ctx, cmp.MoveOutInspectionID)
	if err != nil {
		return totals, fmt.Errorf("list move-out photos: %w", err)
	}

	level, ok := analyzer.ParseStrictness(cmp.AnalysisStrictness)
	if !ok {
		level = analyzer.StrictnessStandard
	}

	pairs := matcher.MatchRooms(toMatcherPhotos(beforePhotos), toMatcherPhotos(afterPhotos))
	s.log.Info("room matching finished", "comparison_id", cmp.ID,
		"rooms", len(pairs), "strictness", string(level))

	// Rooms are analyzed one at a time; the vision API is the bottleneck and
	// parallel calls only trip its rate limits.
	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return totals, err
		}

		if len(pair.BeforePhotos) == 0 || len(pair.AfterPhotos) == 0 {
			s.log.Info("room skipped, photos missing on one side",
				"comparison_id", cmp.ID, "room", pair.RoomName)
			continue
		}

		// Each side is represented by its first photo for the room.
		if err := storage.ValidateContentType(pair.BeforePhotos[0].ContentType); err != nil {
			s.log.Warn("room skipped, unsupported photo format",
				"comparison_id", cmp.ID, "room", pair.RoomName, "error", err)
			continue
		}
		if err := storage.ValidateContentType(pair.AfterPhotos[0].ContentType); err != nil {
			s.log.Warn("room skipped, unsupported photo format",
				"comparison_id", cmp.ID, "room", pair.RoomName, "error", err)
			continue
		}

		before, err := s.loadImage(ctx, pair.BeforePhotos[0])
		if err != nil {
			s.log.Error("failed to load move-in photo, skipping room",
				"comparison_id", cmp.ID, "room", pair.RoomName, "error", err)
			continue
		}
		after, err := s.loadImage(ctx, pair.AfterPhotos[0])
		if err != nil {
			s.log.Error("failed to load move-out photo, skipping room",
				"comparison_id", cmp.ID, "room", pair.RoomName, "error", err)
			continue
		}

		result := s.analyzer.AnalyzeRoom(ctx, analyzer.RoomAnalysisRequest{
			RoomName:   pair.RoomName,
			Strictness: level,
			Before:     before,
			After:      after,
		})
		s.log.AnalysisEvent("room analyzed", cmp.ID.String(), pair.RoomName, len(result.Differences))

		for _, diff := range result.Differences {
			row := &repository.Difference{
				ID:            uuid.New(),
				ComparisonID:  cmp.ID,
				RoomName:      pair.RoomName,
				BeforePhotoID: pair.BeforePhotos[0].ID,
				AfterPhotoID:  pair.AfterPhotos[0].ID,
				Description:   diff.Description,
				IsNewDamage:   diff.IsNewDamage,
				IsNaturalWear: diff.IsNaturalWear,
				Severity:      diff.Severity,
				EstimatedCost: diff.EstimatedCost,
				Markers:       map[string]any{"location": diff.Location},
				CreatedAt:     time.Now(),
			}
			if err := s.store.InsertDifference(ctx, row); err != nil {
				s.log.Error("failed to persist difference, skipping rest of room",
					"comparison_id", cmp.ID, "room", pair.RoomName, "error", err)
				break
			}
			totals.TotalDifferences++
			if diff.IsNewDamage {
				totals.NewDamagesCount++
				totals.TotalEstimatedCost += diff.EstimatedCost
			}
		}
	}

	return totals, nil
}

func (s *Service) loadImage(ctx context.Context, photo matcher.Photo) (analyzer.ImageData, error) {
	rc, err := s.photos.DownloadFile(ctx, s.bucket, photo.FileKey)
	if err != nil {
		return analyzer.ImageData{}, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return analyzer.ImageData{}, err
	}
	return analyzer.ImageData{MIMEType: photo.ContentType, Data: data}, nil
}

func toMatcherPhotos(photos []repository.InspectionPhoto) []matcher.Photo {
	out := make([]matcher.Photo, 0, len(photos))
	for _, p := range photos {
		out = append(out, matcher.Photo{
			ID:          p.ID,
			RoomName:    p.RoomName,
			FileKey:     p.FileKey,
			ContentType: p.ContentType,
		})
	}
	return out
}
