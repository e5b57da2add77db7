package queries

import (
	"context"
	"log/slog"

	application "agora/contexts/governance/ballot-engine/application"
	"agora/contexts/governance/ballot-engine/domain/entities"
	"agora/contexts/governance/ballot-engine/ports"
)

type GetResultsQuery struct {
	BallotID string
}

// GetResultsResult reports the live standings; the winner fields follow the
// strictly-greatest rule with ties resolving to the lowest proposal index.
type GetResultsResult struct {
	Ballot        entities.Ballot
	WinningIndex  int
	WinnerName    string
	TotalWeight   int
	CountedWeight int
}

type GetResultsUseCase struct {
	Ballots ports.BallotRepository
	Logger  *slog.Logger
}

func (u GetResultsUseCase) Execute(ctx context.Context, query GetResultsQuery) (GetResultsResult, error) {
	logger := application.ResolveLogger(u.Logger)
	logger.Info("get ballot results started",
		"event", "get_ballot_results_started",
		"module", "governance/ballot-engine",
		"layer", "application",
		"ballot_id", query.BallotID,
	)

	ballot, err := u.Ballots.GetBallot(ctx, query.BallotID)
	if err != nil {
		logger.Error("get ballot results failed",
			"event", "get_ballot_results_failed",
			"module", "governance/ballot-engine",
			"layer", "application",
			"ballot_id", query.BallotID,
			"error", err.Error(),
		)
		return GetResultsResult{}, err
	}

	counted := 0
	for _, proposal := range ballot.Proposals {
		counted += proposal.VoteCount
	}
	total := counted
	for _, voter := range ballot.Voters {
		if !voter.Voted {
			total += voter.Weight
		}
	}

	result := GetResultsResult{
		Ballot:        ballot,
		WinningIndex:  ballot.WinningProposal(),
		WinnerName:    ballot.WinnerName(),
		TotalWeight:   total,
		CountedWeight: counted,
	}
	logger.Info("get ballot results completed",
		"event", "get_ballot_results_completed",
		"module", "governance/ballot-engine",
		"layer", "application",
		"ballot_id", ballot.BallotID,
		"winner_name", result.WinnerName,
		"counted_weight", counted,
	)
	return result, nil
}
