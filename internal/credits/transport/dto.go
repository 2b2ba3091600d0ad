// Package transport defines the HTTP request/response shapes for credits.
package transport

import (
	"time"

	"inspection_backend/internal/credits/repository"

	"github.com/google/uuid"
)

// BalanceResponse reports the caller's current credit balance.
type BalanceResponse struct {
	Balance int64 `json:"balance"`
}

// UsageEntryResponse is one committed credit spend.
type UsageEntryResponse struct {
	ID            uuid.UUID `json:"id"`
	ComparisonID  uuid.UUID `json:"comparison_id"`
	CreditsUsed   int64     `json:"credits_used"`
	CreditsBefore int64     `json:"credits_before"`
	CreditsAfter  int64     `json:"credits_after"`
	Reason        string    `json:"reason"`
	CreatedAt     time.Time `json:"created_at"`
}

// UsageResponse wraps the usage audit trail.
type UsageResponse struct {
	Entries []UsageEntryResponse `json:"entries"`
}

// ToUsageResponse maps repository entries into the wire shape.
func ToUsageResponse(entries []repository.UsageEntry) UsageResponse {
	out := UsageResponse{Entries: make([]UsageEntryResponse, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, UsageEntryResponse{
			ID:            e.ID,
			ComparisonID:  e.ComparisonID,
			CreditsUsed:   e.CreditsUsed,
			CreditsBefore: e.CreditsBefore,
			CreditsAfter:  e.CreditsAfter,
			Reason:        e.Reason,
			CreatedAt:     e.CreatedAt,
		})
	}
	return out
}
