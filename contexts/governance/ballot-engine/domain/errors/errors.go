package errors

import "errors"

var (
	ErrUnauthorized           = errors.New("caller is not the chairperson")
	ErrAlreadyVoted           = errors.New("voter already voted")
	ErrAlreadyHasRights       = errors.New("voter already has voting rights")
	ErrNoRightToVote          = errors.New("voter has no right to vote")
	ErrSelfDelegation         = errors.New("self delegation is forbidden")
	ErrDelegationLoop         = errors.New("delegation chain loops back to caller")
	ErrDelegationChainTooLong = errors.New("delegation chain exceeds hop limit")
	ErrInvalidProposal        = errors.New("proposal index out of range")
	ErrNoProposals            = errors.New("ballot requires at least one proposal")
	ErrBallotNotFound         = errors.New("ballot not found")
	ErrBallotClosed           = errors.New("ballot is closed")
	ErrInvalidRequest         = errors.New("invalid ballot request")
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrIdempotencyConflict    = errors.New("idempotency key conflict")

	ErrRepositoryInvariantBroke = errors.New("ballot repository invariant violated")
)
