package ballotaudit

import (
	"log/slog"

	httpadapter "agora/contexts/governance/ballot-audit-service/adapters/http"
	"agora/contexts/governance/ballot-audit-service/adapters/memory"
	"agora/contexts/governance/ballot-audit-service/application"
	"agora/contexts/governance/ballot-audit-service/ports"
)

// Module is the ballot-audit composition root exposed to runtime wiring.
type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Store   *memory.Store
}

// Dependencies captures all runtime ports required by NewModule.
type Dependencies struct {
	Repository ports.Repository
	IDGen      ports.IDGenerator
	Clock      ports.Clock
	Logger     *slog.Logger
}

// NewModule wires the audit service and transport handler using explicit ports.
func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:   deps.Repository,
		IDGen:  deps.IDGen,
		Clock:  deps.Clock,
		Logger: deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
		Service: service,
	}
}

// NewInMemoryModule wires the audit service against the in-memory store.
func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository: store,
		IDGen:      store,
		Clock:      store,
		Logger:     logger,
	})
	module.Store = store
	return module
}
