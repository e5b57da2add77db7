package ballotengine

import (
	"log/slog"
	"time"

	httpadapter "agora/contexts/governance/ballot-engine/adapters/http"
	"agora/contexts/governance/ballot-engine/adapters/memory"
	"agora/contexts/governance/ballot-engine/application/commands"
	"agora/contexts/governance/ballot-engine/application/queries"
	"agora/contexts/governance/ballot-engine/domain/entities"
	"agora/contexts/governance/ballot-engine/ports"
)

// Module is the composition surface for the ballot engine within Agora.
// Runtime wiring should consume Handler; Store is exposed for tests/inspection.
type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Ballots        ports.BallotRepository
	Idempotency    ports.IdempotencyStore
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// NewModule wires ballot use-cases against explicit ports.
func NewModule(deps Dependencies) Module {
	ballotUseCase := commands.BallotUseCase{
		Ballots:        deps.Ballots,
		Idempotency:    deps.Idempotency,
		Clock:          deps.Clock,
		IDGen:          deps.IDGen,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	getBallot := queries.GetBallotUseCase{
		Ballots: deps.Ballots,
		Logger:  deps.Logger,
	}
	getResults := queries.GetResultsUseCase{
		Ballots: deps.Ballots,
		Logger:  deps.Logger,
	}
	getVoter := queries.GetVoterUseCase{
		Ballots: deps.Ballots,
		Logger:  deps.Logger,
	}
	listBallots := queries.ListBallotsUseCase{
		Ballots: deps.Ballots,
		Logger:  deps.Logger,
	}

	return Module{
		Handler: httpadapter.Handler{
			Ballots:     ballotUseCase,
			GetBallot:   getBallot,
			GetResults:  getResults,
			GetVoter:    getVoter,
			ListBallots: listBallots,
			Logger:      deps.Logger,
		},
	}
}

// NewInMemoryModule wires ballot use cases against in-memory adapters for
// tests and local development without Postgres.
func NewInMemoryModule(seed []entities.Ballot, logger *slog.Logger) Module {
	store := memory.NewStore(seed, logger)
	module := NewModule(Dependencies{
		Ballots:        store,
		Idempotency:    store,
		Clock:          store,
		IDGen:          store,
		IdempotencyTTL: 7 * 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	return module
}
