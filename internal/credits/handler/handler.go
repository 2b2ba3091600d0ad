package handler

import (
	"inspection_backend/internal/credits/service"
	"inspection_backend/internal/credits/transport"
	"inspection_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for the credit ledger.
type Handler struct {
	svc *service.Service
}

// New creates a new credits handler.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the credit routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/balance", h.GetBalance)
	rg.GET("/usage", h.ListUsage)
}

func (h *Handler) GetBalance(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	balance, err := h.svc.Balance(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.BalanceResponse{Balance: balance})
}

func (h *Handler) ListUsage(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	entries, err := h.svc.Usage(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToUsageResponse(entries))
}
