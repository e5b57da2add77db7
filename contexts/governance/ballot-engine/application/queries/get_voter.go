package queries

import (
	"context"
	"log/slog"
	"strings"

	application "agora/contexts/governance/ballot-engine/application"
	"agora/contexts/governance/ballot-engine/domain/entities"
	domainerrors "agora/contexts/governance/ballot-engine/domain/errors"
	"agora/contexts/governance/ballot-engine/ports"
)

type GetVoterQuery struct {
	BallotID string
	Address  string
}

// GetVoterResult always carries a record: addresses never granted rights
// resolve to the explicit zero-value voter rather than a lookup failure.
type GetVoterResult struct {
	Voter      entities.Voter
	Registered bool
}

type GetVoterUseCase struct {
	Ballots ports.BallotRepository
	Logger  *slog.Logger
}

func (u GetVoterUseCase) Execute(ctx context.Context, query GetVoterQuery) (GetVoterResult, error) {
	logger := application.ResolveLogger(u.Logger)
	logger.Info("get voter started",
		"event", "get_voter_started",
		"module", "governance/ballot-engine",
		"layer", "application",
		"ballot_id", query.BallotID,
		"address", query.Address,
	)
	address := strings.TrimSpace(query.Address)
	if address == "" {
		return GetVoterResult{}, domainerrors.ErrInvalidRequest
	}

	ballot, err := u.Ballots.GetBallot(ctx, query.BallotID)
	if err != nil {
		logger.Error("get voter failed",
			"event", "get_voter_failed",
			"module", "governance/ballot-engine",
			"layer", "application",
			"ballot_id", query.BallotID,
			"address", address,
			"error", err.Error(),
		)
		return GetVoterResult{}, err
	}

	_, registered := ballot.Voters[address]
	logger.Info("get voter completed",
		"event", "get_voter_completed",
		"module", "governance/ballot-engine",
		"layer", "application",
		"ballot_id", ballot.BallotID,
		"address", address,
		"registered", registered,
	)
	return GetVoterResult{Voter: ballot.VoterOf(address), Registered: registered}, nil
}
