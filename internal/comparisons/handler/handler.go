package handler

import (
	"net/http"

	"inspection_backend/internal/comparisons/repository"
	"inspection_backend/internal/comparisons/service"
	"inspection_backend/internal/comparisons/transport"
	"inspection_backend/platform/httpkit"
	"inspection_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for comparisons.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new comparisons handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the comparison routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.GetByID)
}

func (h *Handler) Create(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.CreateComparisonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	cmp, err := h.svc.Create(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, transport.ToComparisonResponse(cmp))
}

func (h *Handler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var filter repository.ListFilter
	if raw := c.Query("property_id"); raw != "" {
		propertyID, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		filter.PropertyID = &propertyID
	}
	if status := c.Query("status"); status != "" {
		switch status {
		case repository.StatusProcessing, repository.StatusCompleted, repository.StatusFailed:
			filter.Status = &status
		default:
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
	}

	items, err := h.svc.List(c.Request.Context(), identity.UserID(), filter)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToListResponse(items))
}

func (h *Handler) GetByID(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	cmp, diffs, err := h.svc.Get(c.Request.Context(), identity.UserID(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.DetailResponse{
		ComparisonResponse: transport.ToComparisonResponse(cmp),
		Differences:        make([]transport.DifferenceResponse, 0, len(diffs)),
	}
	for i := range diffs {
		resp.Differences = append(resp.Differences, transport.ToDifferenceResponse(&diffs[i]))
	}

	moveInPhotos, err := h.svc.InspectionPhotos(c.Request.Context(), cmp.MoveInInspectionID)
	if httpkit.HandleError(c, err) {
		return
	}
	moveOutPhotos, err := h.svc.InspectionPhotos(c.Request.Context(), cmp.MoveOutInspectionID)
	if httpkit.HandleError(c, err) {
		return
	}

	resp.MoveInPhotos, err = h.presignPhotos(c, moveInPhotos)
	if httpkit.HandleError(c, err) {
		return
	}
	resp.MoveOutPhotos, err = h.presignPhotos(c, moveOutPhotos)
	if httpkit.HandleError(c, err) {
		return
	}

	transport.AttachDifferencePhotoURLs(resp.Differences, resp.MoveInPhotos, resp.MoveOutPhotos)

	httpkit.OK(c, resp)
}

// presignPhotos fans out presigned URL generation; MinIO signs locally so the
// limit just caps goroutines on large inspections.
func (h *Handler) presignPhotos(c *gin.Context, photos []repository.InspectionPhoto) ([]transport.PhotoResponse, error) {
	out := make([]transport.PhotoResponse, len(photos))

	g, ctx := errgroup.WithContext(c.Request.Context())
	g.SetLimit(8)
	for i := range photos {
		g.Go(func() error {
			presigned, err := h.svc.PresignPhoto(ctx, photos[i].FileKey)
			if err != nil {
				return err
			}
			out[i] = transport.PhotoResponse{
				ID:        photos[i].ID,
				RoomName:  photos[i].RoomName,
				URL:       presigned.URL,
				ExpiresAt: presigned.ExpiresAt,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
