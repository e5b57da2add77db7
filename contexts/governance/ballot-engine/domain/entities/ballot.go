package entities

import (
	"strings"
	"time"

	domainerrors "agora/contexts/governance/ballot-engine/domain/errors"
)

// MaxDelegationHops bounds delegation chain resolution so a walk over stored
// delegate pointers always terminates.
const MaxDelegationHops = 64

type BallotStatus string

const (
	BallotStatusOpen   BallotStatus = "open"
	BallotStatusClosed BallotStatus = "closed"
)

// Proposal name is immutable after construction; VoteCount only ever grows
// through Vote and Delegate.
type Proposal struct {
	Name      string
	VoteCount int
}

// Voter tracks one identity inside a ballot. Once Voted is true the record is
// immutable: exactly one of Vote (direct ballot) or Delegate (delegated away)
// is populated.
type Voter struct {
	Address  string
	Weight   int
	Voted    bool
	Delegate string
	Vote     *int
}

// DelegationOutcome reports where a delegation landed after chain resolution.
type DelegationOutcome struct {
	Delegate          string
	Hops              int
	AppliedToProposal *int
	WeightMoved       int
}

// Ballot is the aggregate root for one weighted vote with delegation.
// Methods validate every precondition before writing, so a failed operation
// leaves the ballot untouched. The aggregate is not safe for concurrent use;
// repositories serialize access to it.
type Ballot struct {
	BallotID    string
	Chairperson string
	Status      BallotStatus
	Proposals   []Proposal
	Voters      map[string]Voter
	EndsAt      *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewBallot creates an open ballot with one proposal per name (order decides
// tie-break precedence) and registers the chairperson with weight 1.
func NewBallot(
	ballotID string,
	chairperson string,
	proposalNames []string,
	endsAt *time.Time,
	now time.Time,
) (Ballot, error) {
	id := strings.TrimSpace(ballotID)
	chair := strings.TrimSpace(chairperson)
	if id == "" || chair == "" {
		return Ballot{}, domainerrors.ErrInvalidRequest
	}
	if len(proposalNames) == 0 {
		return Ballot{}, domainerrors.ErrNoProposals
	}
	proposals := make([]Proposal, 0, len(proposalNames))
	for _, name := range proposalNames {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			return Ballot{}, domainerrors.ErrNoProposals
		}
		proposals = append(proposals, Proposal{Name: trimmed})
	}
	if endsAt != nil && !endsAt.UTC().After(now.UTC()) {
		return Ballot{}, domainerrors.ErrInvalidRequest
	}

	ballot := Ballot{
		BallotID:    id,
		Chairperson: chair,
		Status:      BallotStatusOpen,
		Proposals:   proposals,
		Voters: map[string]Voter{
			chair: {Address: chair, Weight: 1},
		},
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	if endsAt != nil {
		ends := endsAt.UTC()
		ballot.EndsAt = &ends
	}
	return ballot, nil
}

// VoterOf returns the voter record for address. Absent voters resolve to an
// explicit zero-value record (weight 0, not voted) without being inserted.
func (b Ballot) VoterOf(address string) Voter {
	if voter, ok := b.Voters[address]; ok {
		return voter
	}
	return Voter{Address: address}
}

// GrantRight gives target a weight of 1. Only the chairperson may grant, a
// voter that voted or already holds rights cannot be granted again.
func (b *Ballot) GrantRight(caller string, target string) error {
	if b.Status == BallotStatusClosed {
		return domainerrors.ErrBallotClosed
	}
	if caller != b.Chairperson {
		return domainerrors.ErrUnauthorized
	}
	voter := b.VoterOf(target)
	if voter.Voted {
		return domainerrors.ErrAlreadyVoted
	}
	if voter.Weight != 0 {
		return domainerrors.ErrAlreadyHasRights
	}

	voter.Weight = 1
	b.Voters[target] = voter
	return nil
}

// Delegate transfers the caller's weight to another voter. The stored
// delegate pointer is the fully resolved terminal address: while the target
// has delegated away, resolution follows its pointer, bounded by
// MaxDelegationHops and failing if the walk returns to the caller.
func (b *Ballot) Delegate(caller string, to string) (DelegationOutcome, error) {
	if b.Status == BallotStatusClosed {
		return DelegationOutcome{}, domainerrors.ErrBallotClosed
	}
	sender := b.VoterOf(caller)
	if sender.Weight == 0 {
		return DelegationOutcome{}, domainerrors.ErrNoRightToVote
	}
	if sender.Voted {
		return DelegationOutcome{}, domainerrors.ErrAlreadyVoted
	}
	if to == caller {
		return DelegationOutcome{}, domainerrors.ErrSelfDelegation
	}

	resolved := to
	hops := 0
	for {
		next := b.VoterOf(resolved).Delegate
		if next == "" {
			break
		}
		hops++
		if hops > MaxDelegationHops {
			return DelegationOutcome{}, domainerrors.ErrDelegationChainTooLong
		}
		resolved = next
		if resolved == caller {
			return DelegationOutcome{}, domainerrors.ErrDelegationLoop
		}
	}

	sender.Voted = true
	sender.Delegate = resolved
	b.Voters[caller] = sender

	outcome := DelegationOutcome{
		Delegate:    resolved,
		Hops:        hops,
		WeightMoved: sender.Weight,
	}
	target := b.VoterOf(resolved)
	if target.Vote != nil {
		// A resolved terminus never holds a delegate pointer, so Voted there
		// always means a direct vote with the index set.
		index := *target.Vote
		b.Proposals[index].VoteCount += sender.Weight
		outcome.AppliedToProposal = &index
	} else {
		target.Weight += sender.Weight
		b.Voters[resolved] = target
	}
	return outcome, nil
}

// Vote casts the caller's full weight on the proposal at proposalIndex.
func (b *Ballot) Vote(caller string, proposalIndex int) error {
	if b.Status == BallotStatusClosed {
		return domainerrors.ErrBallotClosed
	}
	voter := b.VoterOf(caller)
	if voter.Weight == 0 {
		return domainerrors.ErrNoRightToVote
	}
	if voter.Voted {
		return domainerrors.ErrAlreadyVoted
	}
	if proposalIndex < 0 || proposalIndex >= len(b.Proposals) {
		return domainerrors.ErrInvalidProposal
	}

	voter.Voted = true
	index := proposalIndex
	voter.Vote = &index
	b.Voters[caller] = voter
	b.Proposals[proposalIndex].VoteCount += voter.Weight
	return nil
}

// Close transitions the ballot to closed. Expiry sweeps close on behalf of
// the chairperson.
func (b *Ballot) Close(caller string, now time.Time) error {
	if b.Status == BallotStatusClosed {
		return domainerrors.ErrBallotClosed
	}
	if caller != b.Chairperson {
		return domainerrors.ErrUnauthorized
	}
	b.Status = BallotStatusClosed
	b.UpdatedAt = now.UTC()
	return nil
}

// WinningProposal scans in construction order and keeps the first proposal
// holding the strictly greatest count, so ties resolve to the lowest index.
// With no votes cast it reports index 0.
func (b Ballot) WinningProposal() int {
	winning := 0
	winningCount := 0
	for index, proposal := range b.Proposals {
		if proposal.VoteCount > winningCount {
			winningCount = proposal.VoteCount
			winning = index
		}
	}
	return winning
}

// WinnerName returns the name of the winning proposal.
func (b Ballot) WinnerName() string {
	if len(b.Proposals) == 0 {
		return ""
	}
	return b.Proposals[b.WinningProposal()].Name
}

// Expired reports whether an open ballot passed its scheduled end.
func (b Ballot) Expired(now time.Time) bool {
	return b.Status == BallotStatusOpen &&
		b.EndsAt != nil &&
		b.EndsAt.UTC().Before(now.UTC())
}

// Clone returns a deep copy so repositories can hand out snapshots and apply
// copy-on-write updates.
func (b Ballot) Clone() Ballot {
	clone := b
	clone.Proposals = append([]Proposal(nil), b.Proposals...)
	clone.Voters = make(map[string]Voter, len(b.Voters))
	for address, voter := range b.Voters {
		if voter.Vote != nil {
			index := *voter.Vote
			voter.Vote = &index
		}
		clone.Voters[address] = voter
	}
	if b.EndsAt != nil {
		ends := *b.EndsAt
		clone.EndsAt = &ends
	}
	return clone
}
