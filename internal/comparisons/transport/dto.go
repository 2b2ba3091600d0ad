// Package transport defines the HTTP request/response shapes for comparisons.
package transport

import (
	"time"

	"inspection_backend/internal/comparisons/repository"

	"github.com/google/uuid"
)

// CreateComparisonRequest starts a comparison between two inspections of the
// same property.
type CreateComparisonRequest struct {
	PropertyID          uuid.UUID `json:"property_id" validate:"required"`
	MoveInInspectionID  uuid.UUID `json:"move_in_inspection_id" validate:"required"`
	MoveOutInspectionID uuid.UUID `json:"move_out_inspection_id" validate:"required"`
}

// ComparisonResponse is the wire shape of one comparison.
type ComparisonResponse struct {
	ID                  uuid.UUID  `json:"id"`
	PropertyID          uuid.UUID  `json:"property_id"`
	MoveInInspectionID  uuid.UUID  `json:"move_in_inspection_id"`
	MoveOutInspectionID uuid.UUID  `json:"move_out_inspection_id"`
	Status              string     `json:"status"`
	AnalysisStrictness  string     `json:"analysis_strictness"`
	TotalDifferences    int        `json:"total_differences"`
	NewDamagesCount     int        `json:"new_damages_count"`
	TotalEstimatedCost  float64    `json:"total_estimated_cost"`
	ErrorMessage        *string    `json:"error_message,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
}

// ListItemResponse is a comparison row joined with its property and the
// creation times of both inspections.
type ListItemResponse struct {
	ComparisonResponse
	PropertyName     string    `json:"property_name"`
	PropertyAddress  string    `json:"property_address"`
	MoveInCreatedAt  time.Time `json:"move_in_created_at"`
	MoveOutCreatedAt time.Time `json:"move_out_created_at"`
}

// ListResponse wraps the comparison list.
type ListResponse struct {
	Items []ListItemResponse `json:"items"`
}

// DifferenceResponse is one detected change. The photo ids identify exactly
// which move-in and move-out photos the analysis compared; the URLs are their
// presigned downloads.
type DifferenceResponse struct {
	ID             uuid.UUID `json:"id"`
	RoomName       string    `json:"room_name"`
	BeforePhotoID  uuid.UUID `json:"before_photo_id"`
	AfterPhotoID   uuid.UUID `json:"after_photo_id"`
	Description    string    `json:"description"`
	IsNewDamage    bool      `json:"is_new_damage"`
	IsNaturalWear  bool      `json:"is_natural_wear"`
	Severity       string    `json:"severity"`
	EstimatedCost  float64   `json:"estimated_cost"`
	Location       string    `json:"location"`
	BeforePhotoURL string    `json:"before_photo_url,omitempty"`
	AfterPhotoURL  string    `json:"after_photo_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// PhotoResponse is one inspection photo with a presigned download URL.
type PhotoResponse struct {
	ID        uuid.UUID `json:"id"`
	RoomName  string    `json:"room_name"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DetailResponse is a comparison with its differences and the photos of both
// inspections.
type DetailResponse struct {
	ComparisonResponse
	Differences   []DifferenceResponse `json:"differences"`
	MoveInPhotos  []PhotoResponse      `json:"move_in_photos"`
	MoveOutPhotos []PhotoResponse      `json:"move_out_photos"`
}

// ToComparisonResponse maps the database model into the wire shape.
func ToComparisonResponse(c *repository.Comparison) ComparisonResponse {
	return ComparisonResponse{
		ID:                  c.ID,
		PropertyID:          c.PropertyID,
		MoveInInspectionID:  c.MoveInInspectionID,
		MoveOutInspectionID: c.MoveOutInspectionID,
		Status:              c.Status,
		AnalysisStrictness:  c.AnalysisStrictness,
		TotalDifferences:    c.TotalDifferences,
		NewDamagesCount:     c.NewDamagesCount,
		TotalEstimatedCost:  c.TotalEstimatedCost,
		ErrorMessage:        c.ErrorMessage,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
		CompletedAt:         c.CompletedAt,
	}
}

// ToListResponse maps joined list rows into the wire shape.
func ToListResponse(items []repository.ListItem) ListResponse {
	out := ListResponse{Items: make([]ListItemResponse, 0, len(items))}
	for i := range items {
		out.Items = append(out.Items, ListItemResponse{
			ComparisonResponse: ToComparisonResponse(&items[i].Comparison),
			PropertyName:       items[i].PropertyName,
			PropertyAddress:    items[i].PropertyAddress,
			MoveInCreatedAt:    items[i].MoveInCreatedAt,
			MoveOutCreatedAt:   items[i].MoveOutCreatedAt,
		})
	}
	return out
}

// ToDifferenceResponse maps one persisted difference, pulling the location
// out of its markers.
func ToDifferenceResponse(d *repository.Difference) DifferenceResponse {
	location := ""
	if d.Markers != nil {
		if loc, ok := d.Markers["location"].(string); ok {
			location = loc
		}
	}
	return DifferenceResponse{
		ID:            d.ID,
		RoomName:      d.RoomName,
		BeforePhotoID: d.BeforePhotoID,
		AfterPhotoID:  d.AfterPhotoID,
		Description:   d.Description,
		IsNewDamage:   d.IsNewDamage,
		IsNaturalWear: d.IsNaturalWear,
		Severity:      d.Severity,
		EstimatedCost: d.EstimatedCost,
		Location:      location,
		CreatedAt:     d.CreatedAt,
	}
}

// AttachDifferencePhotoURLs fills each difference's before/after URLs from the
// presigned photos, matched by photo id. A photo deleted since the run keeps
// its id on the difference but gets no URL.
func AttachDifferencePhotoURLs(diffs []DifferenceResponse, moveIn, moveOut []PhotoResponse) {
	urls := make(map[uuid.UUID]string, len(moveIn)+len(moveOut))
	for _, p := range moveIn {
		urls[p.ID] = p.URL
	}
	for _, p := range moveOut {
		urls[p.ID] = p.URL
	}

	for i := range diffs {
		diffs[i].BeforePhotoURL = urls[diffs[i].BeforePhotoID]
		diffs[i].AfterPhotoURL = urls[diffs[i].AfterPhotoID]
	}
}
