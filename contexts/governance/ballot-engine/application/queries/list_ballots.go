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

type ListBallotsQuery struct {
	Status string
	Cursor string
	Limit  int
}

type ListBallotsResult struct {
	Items      []entities.Ballot
	NextCursor string
}

type ListBallotsUseCase struct {
	Ballots ports.BallotRepository
	Logger  *slog.Logger
}

func (u ListBallotsUseCase) Execute(ctx context.Context, query ListBallotsQuery) (ListBallotsResult, error) {
	logger := application.ResolveLogger(u.Logger)
	logger.Info("list ballots started",
		"event", "list_ballots_started",
		"module", "governance/ballot-engine",
		"layer", "application",
		"status", query.Status,
		"limit", query.Limit,
	)

	status := entities.BallotStatus(strings.ToLower(strings.TrimSpace(query.Status)))
	switch status {
	case "", entities.BallotStatusOpen, entities.BallotStatusClosed:
	default:
		logger.Warn("list ballots rejected unknown status",
			"event", "list_ballots_validation_failed",
			"module", "governance/ballot-engine",
			"layer", "application",
			"status", query.Status,
		)
		return ListBallotsResult{}, domainerrors.ErrInvalidRequest
	}

	items, nextCursor, err := u.Ballots.ListBallots(ctx, ports.BallotListFilter{
		Status: status,
		Cursor: strings.TrimSpace(query.Cursor),
		Limit:  query.Limit,
	})
	if err != nil {
		logger.Error("list ballots failed",
			"event", "list_ballots_failed",
			"module", "governance/ballot-engine",
			"layer", "application",
			"status", query.Status,
			"error", err.Error(),
		)
		return ListBallotsResult{}, err
	}

	logger.Info("list ballots completed",
		"event", "list_ballots_completed",
		"module", "governance/ballot-engine",
		"layer", "application",
		"items_count", len(items),
	)
	return ListBallotsResult{Items: items, NextCursor: nextCursor}, nil
}
