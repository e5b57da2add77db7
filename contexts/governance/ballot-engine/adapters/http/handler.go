package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"agora/contexts/governance/ballot-engine/application"
	"agora/contexts/governance/ballot-engine/application/commands"
	"agora/contexts/governance/ballot-engine/application/queries"
	"agora/contexts/governance/ballot-engine/domain/entities"
	domainerrors "agora/contexts/governance/ballot-engine/domain/errors"
	httptransport "agora/contexts/governance/ballot-engine/transport/http"
)

type Handler struct {
	Ballots     commands.BallotUseCase
	GetBallot   queries.GetBallotUseCase
	GetResults  queries.GetResultsUseCase
	GetVoter    queries.GetVoterUseCase
	ListBallots queries.ListBallotsUseCase
	Logger      *slog.Logger
}

// CreateBallotHandler godoc
// @Summary Create a ballot
// @Description Creates an open ballot with the caller as chairperson.
// @Tags governance-ballot-engine
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param X-User-Id header string true "Chairperson id"
// @Param Idempotency-Key header string true "Idempotency key"
// @Param request body httptransport.CreateBallotRequest true "Ballot payload"
// @Success 200 {object} httptransport.CreateBallotResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /ballots [post]
func (h Handler) CreateBallotHandler(
	ctx context.Context,
	userID string,
	idempotencyKey string,
	req httptransport.CreateBallotRequest,
) (httptransport.CreateBallotResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Info("create ballot request received",
		"event", "http_create_ballot_received",
		"module", "governance/ballot-engine",
		"layer", "transport",
	)

	endsAt, err := parseOptionalTime(req.EndsAt)
	if err != nil {
		logger.Warn("create ballot request rejected",
			"event", "http_create_ballot_rejected",
			"module", "governance/ballot-engine",
			"layer", "transport",
			"error", err.Error(),
		)
		return httptransport.CreateBallotResponse{}, err
	}

	result, err := h.Ballots.CreateBallot(ctx, commands.CreateBallotCommand{
		ChairpersonID:  userID,
		IdempotencyKey: idempotencyKey,
		Proposals:      req.Proposals,
		EndsAt:         endsAt,
	})
	if err != nil {
		return httptransport.CreateBallotResponse{}, err
	}
	return httptransport.CreateBallotResponse{
		Item:     mapBallot(result.Ballot),
		Replayed: result.Replayed,
	}, nil
}

// ListBallotsHandler godoc
// @Summary List ballots
// @Description Returns ballots with status filter and cursor pagination.
// @Tags governance-ballot-engine
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param status query string false "Ballot status: open,closed"
// @Param cursor query string false "Cursor token"
// @Param limit query int false "Page size (max 50)"
// @Success 200 {object} httptransport.ListBallotsResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /ballots [get]
func (h Handler) ListBallotsHandler(ctx context.Context, req httptransport.ListBallotsRequest) (httptransport.ListBallotsResponse, error) {
	result, err := h.ListBallots.Execute(ctx, queries.ListBallotsQuery{
		Status: req.Status,
		Cursor: req.Cursor,
		Limit:  req.Limit,
	})
	if err != nil {
		return httptransport.ListBallotsResponse{}, err
	}

	items := make([]httptransport.BallotDTO, 0, len(result.Items))
	for _, ballot := range result.Items {
		items = append(items, mapBallot(ballot))
	}
	return httptransport.ListBallotsResponse{
		Items:      items,
		NextCursor: result.NextCursor,
	}, nil
}

// GetBallotHandler godoc
// @Summary Get ballot details
// @Description Returns one ballot by id.
// @Tags governance-ballot-engine
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param ballot_id path string true "Ballot id"
// @Success 200 {object} httptransport.GetBallotResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /ballots/{ballot_id} [get]
func (h Handler) GetBallotHandler(ctx context.Context, ballotID string) (httptransport.GetBallotResponse, error) {
	result, err := h.GetBallot.Execute(ctx, queries.GetBallotQuery{BallotID: ballotID})
	if err != nil {
		return httptransport.GetBallotResponse{}, err
	}
	return httptransport.GetBallotResponse{
		Item: mapBallot(result.Ballot),
	}, nil
}

// BallotResultsHandler godoc
// @Summary Get ballot results
// @Description Returns the current tally and winning proposal.
// @Tags governance-ballot-engine
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param ballot_id path string true "Ballot id"
// @Success 200 {object} httptransport.BallotResultsResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /ballots/{ballot_id}/results [get]
func (h Handler) BallotResultsHandler(ctx context.Context, ballotID string) (httptransport.BallotResultsResponse, error) {
	result, err := h.GetResults.Execute(ctx, queries.GetResultsQuery{BallotID: ballotID})
	if err != nil {
		return httptransport.BallotResultsResponse{}, err
	}
	return httptransport.BallotResultsResponse{
		BallotID:        result.Ballot.BallotID,
		Status:          string(result.Ballot.Status),
		WinningProposal: result.WinningIndex,
		WinnerName:      result.WinnerName,
		Proposals:       mapProposals(result.Ballot.Proposals),
		TotalWeight:     result.TotalWeight,
		CountedWeight:   result.CountedWeight,
	}, nil
}

// GetVoterHandler godoc
// @Summary Get voter state
// @Description Returns the voter record for an address, registered or not.
// @Tags governance-ballot-engine
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param ballot_id path string true "Ballot id"
// @Param address path string true "Voter address"
// @Success 200 {object} httptransport.GetVoterResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /ballots/{ballot_id}/voters/{address} [get]
func (h Handler) GetVoterHandler(ctx context.Context, ballotID string, address string) (httptransport.GetVoterResponse, error) {
	result, err := h.GetVoter.Execute(ctx, queries.GetVoterQuery{
		BallotID: ballotID,
		Address:  address,
	})
	if err != nil {
		return httptransport.GetVoterResponse{}, err
	}
	return httptransport.GetVoterResponse{
		BallotID:   ballotID,
		Item:       mapVoter(result.Voter),
		Registered: result.Registered,
	}, nil
}

// GrantRightHandler godoc
// @Summary Grant a right to vote
// @Description Chairperson grants one unit of voting weight to an address.
// @Tags governance-ballot-engine
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param X-User-Id header string true "Chairperson id"
// @Param Idempotency-Key header string true "Idempotency key"
// @Param ballot_id path string true "Ballot id"
// @Param request body httptransport.GrantRightRequest true "Grant payload"
// @Success 200 {object} httptransport.GrantRightResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /ballots/{ballot_id}/rights [post]
func (h Handler) GrantRightHandler(
	ctx context.Context,
	userID string,
	ballotID string,
	idempotencyKey string,
	req httptransport.GrantRightRequest,
) (httptransport.GrantRightResponse, error) {
	result, err := h.Ballots.GrantRight(ctx, commands.GrantRightCommand{
		BallotID:       ballotID,
		ChairpersonID:  userID,
		VoterAddress:   req.Voter,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.GrantRightResponse{}, err
	}
	return httptransport.GrantRightResponse{
		BallotID: result.Ballot.BallotID,
		Voter:    mapVoter(result.Voter),
		Replayed: result.Replayed,
	}, nil
}

// DelegateVoteHandler godoc
// @Summary Delegate voting weight
// @Description Transfers the caller's weight along the delegation chain.
// @Tags governance-ballot-engine
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param X-User-Id header string true "Voter address"
// @Param Idempotency-Key header string true "Idempotency key"
// @Param ballot_id path string true "Ballot id"
// @Param request body httptransport.DelegateVoteRequest true "Delegation payload"
// @Success 200 {object} httptransport.DelegateVoteResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /ballots/{ballot_id}/delegate [post]
func (h Handler) DelegateVoteHandler(
	ctx context.Context,
	userID string,
	ballotID string,
	idempotencyKey string,
	req httptransport.DelegateVoteRequest,
) (httptransport.DelegateVoteResponse, error) {
	result, err := h.Ballots.DelegateVote(ctx, commands.DelegateVoteCommand{
		BallotID:        ballotID,
		VoterAddress:    userID,
		DelegateAddress: req.To,
		IdempotencyKey:  idempotencyKey,
	})
	if err != nil {
		return httptransport.DelegateVoteResponse{}, err
	}
	return httptransport.DelegateVoteResponse{
		BallotID: result.Ballot.BallotID,
		Voter:    mapVoter(result.Voter),
		Replayed: result.Replayed,
	}, nil
}

// CastVoteHandler godoc
// @Summary Cast a vote
// @Description Spends the caller's full weight on one proposal.
// @Tags governance-ballot-engine
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param X-User-Id header string true "Voter address"
// @Param Idempotency-Key header string true "Idempotency key"
// @Param ballot_id path string true "Ballot id"
// @Param request body httptransport.CastVoteRequest true "Vote payload"
// @Success 200 {object} httptransport.CastVoteResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /ballots/{ballot_id}/votes [post]
func (h Handler) CastVoteHandler(
	ctx context.Context,
	userID string,
	ballotID string,
	idempotencyKey string,
	req httptransport.CastVoteRequest,
) (httptransport.CastVoteResponse, error) {
	result, err := h.Ballots.CastVote(ctx, commands.CastVoteCommand{
		BallotID:       ballotID,
		VoterAddress:   userID,
		ProposalIndex:  req.ProposalIndex,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.CastVoteResponse{}, err
	}
	return httptransport.CastVoteResponse{
		BallotID: result.Ballot.BallotID,
		Voter:    mapVoter(result.Voter),
		Replayed: result.Replayed,
	}, nil
}

// CloseBallotHandler godoc
// @Summary Close a ballot
// @Description Chairperson closes the ballot, freezing the tally.
// @Tags governance-ballot-engine
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param X-User-Id header string true "Chairperson id"
// @Param Idempotency-Key header string true "Idempotency key"
// @Param ballot_id path string true "Ballot id"
// @Success 200 {object} httptransport.CloseBallotResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /ballots/{ballot_id}/close [post]
func (h Handler) CloseBallotHandler(
	ctx context.Context,
	userID string,
	ballotID string,
	idempotencyKey string,
) (httptransport.CloseBallotResponse, error) {
	result, err := h.Ballots.CloseBallot(ctx, commands.CloseBallotCommand{
		BallotID:       ballotID,
		ChairpersonID:  userID,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.CloseBallotResponse{}, err
	}
	return httptransport.CloseBallotResponse{
		Item:            mapBallot(result.Ballot),
		WinningProposal: result.Ballot.WinningProposal(),
		WinnerName:      result.Ballot.WinnerName(),
		Replayed:        result.Replayed,
	}, nil
}

func mapBallot(ballot entities.Ballot) httptransport.BallotDTO {
	dto := httptransport.BallotDTO{
		BallotID:    ballot.BallotID,
		Chairperson: ballot.Chairperson,
		Status:      string(ballot.Status),
		Proposals:   mapProposals(ballot.Proposals),
		CreatedAt:   ballot.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		UpdatedAt:   ballot.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if ballot.EndsAt != nil {
		dto.EndsAt = ballot.EndsAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	return dto
}

func mapProposals(proposals []entities.Proposal) []httptransport.ProposalDTO {
	items := make([]httptransport.ProposalDTO, 0, len(proposals))
	for index, proposal := range proposals {
		items = append(items, httptransport.ProposalDTO{
			Index:     index,
			Name:      proposal.Name,
			VoteCount: proposal.VoteCount,
		})
	}
	return items
}

func mapVoter(voter entities.Voter) httptransport.VoterDTO {
	dto := httptransport.VoterDTO{
		Address:  voter.Address,
		Weight:   voter.Weight,
		Voted:    voter.Voted,
		Delegate: voter.Delegate,
	}
	if voter.Vote != nil {
		index := *voter.Vote
		dto.Vote = &index
	}
	return dto
}

func parseOptionalTime(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, domainerrors.ErrInvalidRequest
	}
	utc := parsed.UTC()
	return &utc, nil
}
