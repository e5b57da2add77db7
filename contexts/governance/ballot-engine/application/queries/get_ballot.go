package queries

import (
	"context"
	"log/slog"

	application "agora/contexts/governance/ballot-engine/application"
	"agora/contexts/governance/ballot-engine/domain/entities"
	"agora/contexts/governance/ballot-engine/ports"
)

type GetBallotQuery struct {
	BallotID string
}

type GetBallotResult struct {
	Ballot entities.Ballot
}

type GetBallotUseCase struct {
	Ballots ports.BallotRepository
	Logger  *slog.Logger
}

func (u GetBallotUseCase) Execute(ctx context.Context, query GetBallotQuery) (GetBallotResult, error) {
	logger := application.ResolveLogger(u.Logger)
	logger.Info("get ballot started",
		"event", "get_ballot_started",
		"module", "governance/ballot-engine",
		"layer", "application",
		"ballot_id", query.BallotID,
	)

	ballot, err := u.Ballots.GetBallot(ctx, query.BallotID)
	if err != nil {
		logger.Error("get ballot failed",
			"event", "get_ballot_failed",
			"module", "governance/ballot-engine",
			"layer", "application",
			"ballot_id", query.BallotID,
			"error", err.Error(),
		)
		return GetBallotResult{}, err
	}

	logger.Info("get ballot completed",
		"event", "get_ballot_completed",
		"module", "governance/ballot-engine",
		"layer", "application",
		"ballot_id", ballot.BallotID,
		"status", string(ballot.Status),
	)
	return GetBallotResult{Ballot: ballot}, nil
}
