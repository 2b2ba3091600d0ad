// Package credits provides the credit ledger domain module.
package credits

import (
	"inspection_backend/internal/credits/handler"
	"inspection_backend/internal/credits/repository"
	"inspection_backend/internal/credits/service"
	apphttp "inspection_backend/internal/http"
	"inspection_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the credits domain module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates a new credits module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, log)
	h := handler.New(svc)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "credits"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes registers the module's routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	credits := ctx.Protected.Group("/credits")
	m.handler.RegisterRoutes(credits)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
