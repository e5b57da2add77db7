package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	application "agora/contexts/governance/ballot-engine/application"
	"agora/contexts/governance/ballot-engine/domain/entities"
	domainerrors "agora/contexts/governance/ballot-engine/domain/errors"
	"agora/contexts/governance/ballot-engine/ports"
)

// CreateBallotCommand is the write-model input for opening a new ballot.
type CreateBallotCommand struct {
	ChairpersonID  string
	IdempotencyKey string
	Proposals      []string
	EndsAt         *time.Time
}

// CreateBallotResult returns the stored ballot and the replay marker that the
// transport layer maps to API semantics.
type CreateBallotResult struct {
	Ballot   entities.Ballot
	Replayed bool
}

// GrantRightCommand asks the chairperson to hand a voter weight 1.
type GrantRightCommand struct {
	BallotID       string
	ChairpersonID  string
	VoterAddress   string
	IdempotencyKey string
}

// GrantRightResult carries the ballot state after the grant.
type GrantRightResult struct {
	Ballot   entities.Ballot
	Voter    entities.Voter
	Replayed bool
}

// DelegateVoteCommand transfers the caller's voting weight to another voter.
type DelegateVoteCommand struct {
	BallotID        string
	VoterAddress    string
	DelegateAddress string
	IdempotencyKey  string
}

// DelegateVoteResult exposes the caller's record, whose Delegate field holds
// the fully resolved terminus.
type DelegateVoteResult struct {
	Ballot   entities.Ballot
	Voter    entities.Voter
	Replayed bool
}

// CastVoteCommand spends the caller's full weight on one proposal.
type CastVoteCommand struct {
	BallotID       string
	VoterAddress   string
	ProposalIndex  int
	IdempotencyKey string
}

// CastVoteResult carries the ballot state after the vote landed.
type CastVoteResult struct {
	Ballot   entities.Ballot
	Voter    entities.Voter
	Replayed bool
}

// CloseBallotCommand ends the voting period ahead of or at schedule.
type CloseBallotCommand struct {
	BallotID       string
	ChairpersonID  string
	IdempotencyKey string
}

// CloseBallotResult returns the closed ballot with its final standings.
type CloseBallotResult struct {
	Ballot   entities.Ballot
	Replayed bool
}

// BallotUseCase orchestrates ballot commands while enforcing chairperson
// authority, delegation resolution, idempotency, and outbox event emission.
// Every mutation runs inside the repository write boundary so a rejected
// transition leaves no partial state behind.
type BallotUseCase struct {
	Ballots        ports.BallotRepository
	Idempotency    ports.IdempotencyStore
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// CreateBallot opens a ballot, registers the chairperson with weight 1, and
// seeds one proposal per name. The method is replay-safe via idempotency key
// plus request hash validation.
func (uc BallotUseCase) CreateBallot(ctx context.Context, cmd CreateBallotCommand) (CreateBallotResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("ballot create processing started",
		"event", "ballot_create_started",
		"module", "governance/ballot-engine",
		"layer", "application",
		"chairperson", strings.TrimSpace(cmd.ChairpersonID),
		"proposal_count", len(cmd.Proposals),
	)
	if strings.TrimSpace(cmd.ChairpersonID) == "" {
		logger.Warn("ballot create validation failed",
			"event", "ballot_create_validation_failed",
			"module", "governance/ballot-engine",
			"layer", "application",
			"chairperson", strings.TrimSpace(cmd.ChairpersonID),
		)
		return CreateBallotResult{}, domainerrors.ErrInvalidRequest
	}
	if len(cmd.Proposals) == 0 {
		logger.Warn("ballot create has no proposals",
			"event", "ballot_create_validation_failed",
			"module", "governance/ballot-engine",
			"layer", "application",
			"chairperson", strings.TrimSpace(cmd.ChairpersonID),
		)
		return CreateBallotResult{}, domainerrors.ErrNoProposals
	}
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		logger.Warn("ballot create idempotency key missing",
			"event", "ballot_create_idempotency_missing",
			"module", "governance/ballot-engine",
			"layer", "application",
			"chairperson", strings.TrimSpace(cmd.ChairpersonID),
		)
		return CreateBallotResult{}, domainerrors.ErrIdempotencyKeyRequired
	}

	now := uc.now()
	requestHash := hashCreateBallotCommand(cmd)
	if record, found, err := uc.Idempotency.Get(ctx, cmd.IdempotencyKey, now); err != nil {
		logger.Error("ballot create idempotency lookup failed",
			"event", "ballot_create_idempotency_lookup_failed",
			"module", "governance/ballot-engine",
			"layer", "application",
			"chairperson", strings.TrimSpace(cmd.ChairpersonID),
			"error", err.Error(),
		)
		return CreateBallotResult{}, err
	} else if found {
		if record.RequestHash != requestHash {
			logger.Warn("ballot create idempotency conflict",
				"event", "ballot_create_idempotency_conflict",
				"module", "governance/ballot-engine",
				"layer", "application",
				"chairperson", strings.TrimSpace(cmd.ChairpersonID),
			)
			return CreateBallotResult{}, domainerrors.ErrIdempotencyConflict
		}
		ballot, err := uc.Ballots.GetBallot(ctx, record.BallotID)
		if err != nil {
			return CreateBallotResult{}, err
		}
		logger.Info("ballot create replayed",
			"event", "ballot_create_replayed",
			"module", "governance/ballot-engine",
			"layer", "application",
			"ballot_id", ballot.BallotID,
			"chairperson", ballot.Chairperson,
		)
		return CreateBallotResult{Ballot: ballot, Replayed: true}, nil
	}

	ballotID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return CreateBallotResult{}, err
	}
	ballot, err := entities.NewBallot(ballotID, cmd.ChairpersonID, cmd.Proposals, cmd.EndsAt, now)
	if err != nil {
		return CreateBallotResult{}, err
	}

	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return CreateBallotResult{}, err
	}
	envelope, err := newBallotEnvelope(eventID, EventTypeBallotCreated, ballot.BallotID, now, map[string]any{
		"ballot_id":   ballot.BallotID,
		"chairperson": ballot.Chairperson,
		"proposals":   proposalNames(ballot),
		"ends_at":     formatOptionalTime(ballot.EndsAt),
		"occurred_at": now.Format(time.RFC3339),
	})
	if err != nil {
		return CreateBallotResult{}, err
	}
	if err := uc.Ballots.CreateBallotWithOutbox(ctx, ballot, envelope); err != nil {
		return CreateBallotResult{}, err
	}
	if err := uc.Idempotency.Put(ctx, ports.IdempotencyRecord{
		Key:         cmd.IdempotencyKey,
		RequestHash: requestHash,
		BallotID:    ballot.BallotID,
		ExpiresAt:   now.Add(uc.resolveIdempotencyTTL()),
	}); err != nil {
		return CreateBallotResult{}, err
	}

	logger.Info("ballot created",
		"event", "ballot_created",
		"module", "governance/ballot-engine",
		"layer", "application",
		"ballot_id", ballot.BallotID,
		"chairperson", ballot.Chairperson,
		"proposal_count", len(ballot.Proposals),
	)
	return CreateBallotResult{Ballot: ballot}, nil
}

// GrantRight lets the chairperson authorize one voter. Grants are replay-safe
// and fail without side effects when the voter already voted or holds rights.
func (uc BallotUseCase) GrantRight(ctx context.Context, cmd GrantRightCommand) (GrantRightResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("ballot grant right processing started",
		"event", "ballot_grant_right_started",
		"module", "governance/ballot-engine",
		"layer", "application",
		"ballot_id", strings.TrimSpace(cmd.BallotID),
		"chairperson", strings.TrimSpace(cmd.ChairpersonID),
		"voter", strings.TrimSpace(cmd.VoterAddress),
	)
	ballotID := strings.TrimSpace(cmd.BallotID)
	chairperson := strings.TrimSpace(cmd.ChairpersonID)
	voterAddress := strings.TrimSpace(cmd.VoterAddress)
	if ballotID == "" || chairperson == "" || voterAddress == "" {
		logger.Warn("ballot grant right validation failed",
			"event", "ballot_grant_right_validation_failed",
			"module", "governance/ballot-engine",
			"layer", "application",
			"ballot_id", ballotID,
			"voter", voterAddress,
		)
		return GrantRightResult{}, domainerrors.ErrInvalidRequest
	}
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		logger.Warn("ballot grant right idempotency key missing",
			"event", "ballot_grant_right_idempotency_missing",
			"module", "governance/ballot-engine",
			"layer", "application",
			"ballot_id", ballotID,
			"voter", voterAddress,
		)
		return GrantRightResult{}, domainerrors.ErrIdempotencyKeyRequired
	}

	now := uc.now()
	requestHash := hashGrantRightCommand(cmd)
	if record, found, err := uc.Idempotency.Get(ctx, cmd.IdempotencyKey, now); err != nil {
		logger.Error("ballot grant right idempotency lookup failed",
			"event", "ballot_grant_right_idempotency_lookup_failed",
			"module", "governance/ballot-engine",
			"layer", "application",
			"ballot_id", ballotID,
			"voter", voterAddress,
			"error", err.Error(),
		)
		return GrantRightResult{}, err
	} else if found {
		if record.RequestHash != requestHash {
			logger.Warn("ballot grant right idempotency conflict",
				"event", "ballot_grant_right_idempotency_conflict",
				"module", "governance/ballot-engine",
				"layer", "application",
				"ballot_id", ballotID,
				"voter", voterAddress,
			)
			return GrantRightResult{}, domainerrors.ErrIdempotencyConflict
		}
		ballot, err := uc.Ballots.GetBallot(ctx, record.BallotID)
		if err != nil {
			return GrantRightResult{}, err
		}
		logger.Info("ballot grant right replayed",
			"event", "ballot_grant_right_replayed",
			"module", "governance/ballot-engine",
			"layer", "application",
			"ballot_id", ballot.BallotID,
			"voter", voterAddress,
		)
		return GrantRightResult{Ballot: ballot, Voter: ballot.VoterOf(voterAddress), Replayed: true}, nil
	}

	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return GrantRightResult{}, err
	}
	ballot, err := uc.Ballots.UpdateBallotWithOutbox(ctx, ballotID, func(ballot *entities.Ballot) (ports.EventEnvelope, error) {
		if err := ballot.GrantRight(chairperson, voterAddress); err != nil {
			return ports.EventEnvelope{}, err
		}
		ballot.UpdatedAt = now
		return newBallotEnvelope(eventID, EventTypeRightGranted, ballot.BallotID, now, map[string]any{
			"ballot_id":   ballot.BallotID,
			"voter":       voterAddress,
			"granted_by":  chairperson,
			"weight":      ballot.VoterOf(voterAddress).Weight,
			"occurred_at": now.Format(time.RFC3339),
		})
	})
	if err != nil {
		return GrantRightResult{}, err
	}
	if err := uc.Idempotency.Put(ctx, ports.IdempotencyRecord{
		Key:         cmd.IdempotencyKey,
		RequestHash: requestHash,
		BallotID:    ballot.BallotID,
		ExpiresAt:   now.Add(uc.resolveIdempotencyTTL()),
	}); err != nil {
		return GrantRightResult{}, err
	}

	logger.Info("ballot voting right granted",
		"event", "ballot_right_granted",
		"module", "governance/ballot-engine",
		"layer", "application",
		"ballot_id", ballot.BallotID,
		"voter", voterAddress,
		"granted_by", chairperson,
	)
	return GrantRightResult{Ballot: ballot, Voter: ballot.VoterOf(voterAddress)}, nil
}

// DelegateVote resolves the delegation chain to its terminus and moves the
// caller's weight there: onto the terminus voter when they have not voted
// yet, straight onto their chosen proposal when they have.
func (uc BallotUseCase) DelegateVote(ctx context.Context, cmd DelegateVoteCommand) (DelegateVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("ballot delegation processing started",
		"event", "ballot_delegate_started",
		"module", "governance/ballot-engine",
		"layer", "application",
		"ballot_id", strings.TrimSpace(cmd.BallotID),
		"voter", strings.TrimSpace(cmd.VoterAddress),
		"delegate", strings.TrimSpace(cmd.DelegateAddress),
	)
	ballotID := strings.TrimSpace(cmd.BallotID)
	voterAddress := strings.TrimSpace(cmd.VoterAddress)
	delegateAddress := strings.TrimSpace(cmd.DelegateAddress)
	if ballotID == "" || voterAddress == "" || delegateAddress == "" {
		logger.Warn("ballot delegation validation failed",
			"event", "ballot_delegate_validation_failed",
			"module", "governance/ballot-engine",
			"layer", "application",
			"ballot_id", ballotID,
			"voter", voterAddress,
		)
		return DelegateVoteResult{}, domainerrors.ErrInvalidRequest
	}
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		logger.Warn("ballot delegation idempotency key missing",
			"event", "ballot_delegate_idempotency_missing",
			"module", "governance/ballot-engine",
			"layer", "application",
			"ballot_id", ballotID,
			"voter", voterAddress,
		)
		return DelegateVoteResult{}, domainerrors.ErrIdempotencyKeyRequired
	}

	now := uc.now()
	requestHash := hashDelegateVoteCommand(cmd)
	if record, found, err := uc.Idempotency.Get(ctx, cmd.IdempotencyKey, now); err != nil {
		logger.Error("ballot delegation idempotency lookup failed",
			"event", "ballot_delegate_idempotency_lookup_failed",
			"module", "governance/ballot-engine",
			"layer", "application",
			"ballot_id", ballotID,
			"voter", voterAddress,
			"error", err.Error(),
		)
		return DelegateVoteResult{}, err
	} else if found {
		if record.RequestHash != requestHash {
			logger.Warn("ballot delegation idempotency conflict",
				"event", "ballot_delegate_idempotency_conflict",
				"module", "governance/ballot-engine",
				"layer", "application",
				"ballot_id", ballotID,
				"voter", voterAddress,
			)
			return DelegateVoteResult{}, domainerrors.ErrIdempotencyConflict
		}
		ballot, err := uc.Ballots.GetBallot(ctx, record.BallotID)
		if err != nil {
			return DelegateVoteResult{}, err
		}
		logger.Info("ballot delegation replayed",
			"event", "ballot_delegate_replayed",
			"module", "governance/ballot-engine",
			"layer", "application",
			"ballot_id", ballot.BallotID,
			"voter", voterAddress,
		)
		return DelegateVoteResult{Ballot: ballot, Voter: ballot.VoterOf(voterAddress), Replayed: true}, nil
	}

	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return DelegateVoteResult{}, err
	}
	ballot, err := uc.Ballots.UpdateBallotWithOutbox(ctx, ballotID, func(ballot *entities.Ballot) (ports.EventEnvelope, error) {
		outcome, err := ballot.Delegate(voterAddress, delegateAddress)
		if err != nil {
			return ports.EventEnvelope{}, err
		}
		ballot.UpdatedAt = now
		data := map[string]any{
			"ballot_id":          ballot.BallotID,
			"voter":              voterAddress,
			"requested_delegate": delegateAddress,
			"resolved_delegate":  outcome.Delegate,
			"hops":               outcome.Hops,
			"weight_moved":       outcome.WeightMoved,
			"occurred_at":        now.Format(time.RFC3339),
		}
		if outcome.AppliedToProposal != nil {
			data["applied_to_proposal"] = *outcome.AppliedToProposal
		}
		return newBallotEnvelope(eventID, EventTypeVoteDelegated, ballot.BallotID, now, data)
	})
	if err != nil {
		return DelegateVoteResult{}, err
	}
	if err := uc.Idempotency.Put(ctx, ports.IdempotencyRecord{
		Key:         cmd.IdempotencyKey,
		RequestHash: requestHash,
		BallotID:    ballot.BallotID,
		ExpiresAt:   now.Add(uc.resolveIdempotencyTTL()),
	}); err != nil {
		return DelegateVoteResult{}, err
	}

	voter := ballot.VoterOf(voterAddress)
	logger.Info("ballot vote delegated",
		"event", "ballot_vote_delegated",
		"module", "governance/ballot-engine",
		"layer", "application",
		"ballot_id", ballot.BallotID,
		"voter", voterAddress,
		"resolved_delegate", voter.Delegate,
		"weight_moved", voter.Weight,
	)
	return DelegateVoteResult{Ballot: ballot, Voter: voter}, nil
}

// CastVote spends the caller's full weight on the proposal at ProposalIndex.
func (uc BallotUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (CastVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("ballot vote processing started",
		"event", "ballot_vote_cast_started",
		"module", "governance/ballot-engine",
		"layer", "application",
		"ballot_id", strings.TrimSpace(cmd.BallotID),
		"voter", strings.TrimSpace(cmd.VoterAddress),
		"proposal_index", cmd.ProposalIndex,
	)
	ballotID := strings.TrimSpace(cmd.BallotID)
	voterAddress := strings.TrimSpace(cmd.VoterAddress)
	if ballotID == "" || voterAddress == "" {
		logger.Warn("ballot vote validation failed",
			"event", "ballot_vote_cast_validation_failed",
			"module", "governance/ballot-engine",
			"layer", "application",
			"ballot_id", ballotID,
			"voter", voterAddress,
		)
		return CastVoteResult{}, domainerrors.ErrInvalidRequest
	}
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		logger.Warn("ballot vote idempotency key missing",
			"event", "ballot_vote_cast_idempotency_missing",
			"module", "governance/ballot-engine",
			"layer", "application",
			"ballot_id", ballotID,
			"voter", voterAddress,
		)
		return CastVoteResult{}, domainerrors.ErrIdempotencyKeyRequired
	}

	now := uc.now()
	requestHash := hashCastVoteCommand(cmd)
	if record, found, err := uc.Idempotency.Get(ctx, cmd.IdempotencyKey, now); err != nil {
		logger.Error("ballot vote idempotency lookup failed",
			"event", "ballot_vote_cast_idempotency_lookup_failed",
			"module", "governance/ballot-engine",
			"layer", "application",
			"ballot_id", ballotID,
			"voter", voterAddress,
			"error", err.Error(),
		)
		return CastVoteResult{}, err
	} else if found {
		if record.RequestHash != requestHash {
			logger.Warn("ballot vote idempotency conflict",
				"event", "ballot_vote_cast_idempotency_conflict",
				"module", "governance/ballot-engine",
				"layer", "application",
				"ballot_id", ballotID,
				"voter", voterAddress,
			)
			return CastVoteResult{}, domainerrors.ErrIdempotencyConflict
		}
		ballot, err := uc.Ballots.GetBallot(ctx, record.BallotID)
		if err != nil {
			return CastVoteResult{}, err
		}
		logger.Info("ballot vote replayed",
			"event", "ballot_vote_cast_replayed",
			"module", "governance/ballot-engine",
			"layer", "application",
			"ballot_id", ballot.BallotID,
			"voter", voterAddress,
		)
		return CastVoteResult{Ballot: ballot, Voter: ballot.VoterOf(voterAddress), Replayed: true}, nil
	}

	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return CastVoteResult{}, err
	}
	ballot, err := uc.Ballots.UpdateBallotWithOutbox(ctx, ballotID, func(ballot *entities.Ballot) (ports.EventEnvelope, error) {
		if err := ballot.Vote(voterAddress, cmd.ProposalIndex); err != nil {
			return ports.EventEnvelope{}, err
		}
		ballot.UpdatedAt = now
		return newBallotEnvelope(eventID, EventTypeVoteCast, ballot.BallotID, now, map[string]any{
			"ballot_id":      ballot.BallotID,
			"voter":          voterAddress,
			"proposal_index": cmd.ProposalIndex,
			"proposal_name":  ballot.Proposals[cmd.ProposalIndex].Name,
			"weight":         ballot.VoterOf(voterAddress).Weight,
			"occurred_at":    now.Format(time.RFC3339),
		})
	})
	if err != nil {
		return CastVoteResult{}, err
	}
	if err := uc.Idempotency.Put(ctx, ports.IdempotencyRecord{
		Key:         cmd.IdempotencyKey,
		RequestHash: requestHash,
		BallotID:    ballot.BallotID,
		ExpiresAt:   now.Add(uc.resolveIdempotencyTTL()),
	}); err != nil {
		return CastVoteResult{}, err
	}

	logger.Info("ballot vote cast",
		"event", "ballot_vote_cast",
		"module", "governance/ballot-engine",
		"layer", "application",
		"ballot_id", ballot.BallotID,
		"voter", voterAddress,
		"proposal_index", cmd.ProposalIndex,
	)
	return CastVoteResult{Ballot: ballot, Voter: ballot.VoterOf(voterAddress)}, nil
}

// CloseBallot ends the voting period on chairperson request and freezes the
// standings.
func (uc BallotUseCase) CloseBallot(ctx context.Context, cmd CloseBallotCommand) (CloseBallotResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("ballot close processing started",
		"event", "ballot_close_started",
		"module", "governance/ballot-engine",
		"layer", "application",
		"ballot_id", strings.TrimSpace(cmd.BallotID),
		"chairperson", strings.TrimSpace(cmd.ChairpersonID),
	)
	ballotID := strings.TrimSpace(cmd.BallotID)
	chairperson := strings.TrimSpace(cmd.ChairpersonID)
	if ballotID == "" || chairperson == "" {
		logger.Warn("ballot close validation failed",
			"event", "ballot_close_validation_failed",
			"module", "governance/ballot-engine",
			"layer", "application",
			"ballot_id", ballotID,
		)
		return CloseBallotResult{}, domainerrors.ErrInvalidRequest
	}
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		logger.Warn("ballot close idempotency key missing",
			"event", "ballot_close_idempotency_missing",
			"module", "governance/ballot-engine",
			"layer", "application",
			"ballot_id", ballotID,
		)
		return CloseBallotResult{}, domainerrors.ErrIdempotencyKeyRequired
	}

	now := uc.now()
	requestHash := hashCloseBallotCommand(cmd)
	if record, found, err := uc.Idempotency.Get(ctx, cmd.IdempotencyKey, now); err != nil {
		logger.Error("ballot close idempotency lookup failed",
			"event", "ballot_close_idempotency_lookup_failed",
			"module", "governance/ballot-engine",
			"layer", "application",
			"ballot_id", ballotID,
			"error", err.Error(),
		)
		return CloseBallotResult{}, err
	} else if found {
		if record.RequestHash != requestHash {
			logger.Warn("ballot close idempotency conflict",
				"event", "ballot_close_idempotency_conflict",
				"module", "governance/ballot-engine",
				"layer", "application",
				"ballot_id", ballotID,
			)
			return CloseBallotResult{}, domainerrors.ErrIdempotencyConflict
		}
		ballot, err := uc.Ballots.GetBallot(ctx, record.BallotID)
		if err != nil {
			return CloseBallotResult{}, err
		}
		logger.Info("ballot close replayed",
			"event", "ballot_close_replayed",
			"module", "governance/ballot-engine",
			"layer", "application",
			"ballot_id", ballot.BallotID,
		)
		return CloseBallotResult{Ballot: ballot, Replayed: true}, nil
	}

	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return CloseBallotResult{}, err
	}
	ballot, err := uc.Ballots.UpdateBallotWithOutbox(ctx, ballotID, func(ballot *entities.Ballot) (ports.EventEnvelope, error) {
		if err := ballot.Close(chairperson, now); err != nil {
			return ports.EventEnvelope{}, err
		}
		return newBallotEnvelope(eventID, EventTypeBallotClosed, ballot.BallotID, now, map[string]any{
			"ballot_id":        ballot.BallotID,
			"closed_by":        chairperson,
			"reason":           "chairperson_closed",
			"winning_proposal": ballot.WinningProposal(),
			"winner_name":      ballot.WinnerName(),
			"occurred_at":      now.Format(time.RFC3339),
		})
	})
	if err != nil {
		return CloseBallotResult{}, err
	}
	if err := uc.Idempotency.Put(ctx, ports.IdempotencyRecord{
		Key:         cmd.IdempotencyKey,
		RequestHash: requestHash,
		BallotID:    ballot.BallotID,
		ExpiresAt:   now.Add(uc.resolveIdempotencyTTL()),
	}); err != nil {
		return CloseBallotResult{}, err
	}

	logger.Info("ballot closed",
		"event", "ballot_closed",
		"module", "governance/ballot-engine",
		"layer", "application",
		"ballot_id", ballot.BallotID,
		"closed_by", chairperson,
		"winner_name", ballot.WinnerName(),
	)
	return CloseBallotResult{Ballot: ballot}, nil
}

func (uc BallotUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc BallotUseCase) resolveIdempotencyTTL() time.Duration {
	if uc.IdempotencyTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return uc.IdempotencyTTL
}

func proposalNames(ballot entities.Ballot) []string {
	names := make([]string, 0, len(ballot.Proposals))
	for _, proposal := range ballot.Proposals {
		names = append(names, proposal.Name)
	}
	return names
}

func formatOptionalTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func hashCreateBallotCommand(cmd CreateBallotCommand) string {
	trimmed := make([]string, 0, len(cmd.Proposals))
	for _, name := range cmd.Proposals {
		trimmed = append(trimmed, strings.TrimSpace(name))
	}
	payload := map[string]string{
		"chairperson": strings.TrimSpace(cmd.ChairpersonID),
		"proposals":   strings.Join(trimmed, "\x1f"),
		"ends_at":     formatOptionalTime(cmd.EndsAt),
		"op":          "create_ballot",
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func hashGrantRightCommand(cmd GrantRightCommand) string {
	payload := map[string]string{
		"ballot_id":   strings.TrimSpace(cmd.BallotID),
		"chairperson": strings.TrimSpace(cmd.ChairpersonID),
		"voter":       strings.TrimSpace(cmd.VoterAddress),
		"op":          "grant_right",
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func hashDelegateVoteCommand(cmd DelegateVoteCommand) string {
	payload := map[string]string{
		"ballot_id": strings.TrimSpace(cmd.BallotID),
		"voter":     strings.TrimSpace(cmd.VoterAddress),
		"delegate":  strings.TrimSpace(cmd.DelegateAddress),
		"op":        "delegate_vote",
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func hashCastVoteCommand(cmd CastVoteCommand) string {
	payload := map[string]string{
		"ballot_id":      strings.TrimSpace(cmd.BallotID),
		"voter":          strings.TrimSpace(cmd.VoterAddress),
		"proposal_index": strconv.Itoa(cmd.ProposalIndex),
		"op":             "cast_vote",
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func hashCloseBallotCommand(cmd CloseBallotCommand) string {
	payload := map[string]string{
		"ballot_id":   strings.TrimSpace(cmd.BallotID),
		"chairperson": strings.TrimSpace(cmd.ChairpersonID),
		"op":          "close_ballot",
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
