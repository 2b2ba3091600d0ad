// Package comparisons provides the move-in/move-out comparison domain module.
package comparisons

import (
	"inspection_backend/internal/comparisons/handler"
	"inspection_backend/internal/comparisons/repository"
	"inspection_backend/internal/comparisons/service"
	apphttp "inspection_backend/internal/http"
	"inspection_backend/platform/logger"
	"inspection_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the comparisons domain module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates a new comparisons module. The job queue, analyzer and
// photo store are injected afterwards; which of them a binary wires depends
// on whether it serves the API or runs the worker.
func NewModule(pool *pgxpool.Pool, ledger service.Ledger, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, ledger, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "comparisons"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes registers the module's routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	comparisons := ctx.Protected.Group("/comparisons")
	m.handler.RegisterRoutes(comparisons)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
