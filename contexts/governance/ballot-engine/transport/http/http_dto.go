package httptransport

type CreateBallotRequest struct {
	Proposals []string `json:"proposals"`
	EndsAt    string   `json:"ends_at,omitempty"`
}

type ProposalDTO struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	VoteCount int    `json:"vote_count"`
}

type VoterDTO struct {
	Address  string `json:"address"`
	Weight   int    `json:"weight"`
	Voted    bool   `json:"voted"`
	Delegate string `json:"delegate,omitempty"`
	Vote     *int   `json:"vote,omitempty"`
}

type BallotDTO struct {
	BallotID    string        `json:"ballot_id"`
	Chairperson string        `json:"chairperson"`
	Status      string        `json:"status"`
	Proposals   []ProposalDTO `json:"proposals"`
	EndsAt      string        `json:"ends_at,omitempty"`
	CreatedAt   string        `json:"created_at"`
	UpdatedAt   string        `json:"updated_at"`
}

type CreateBallotResponse struct {
	Item     BallotDTO `json:"item"`
	Replayed bool      `json:"replayed,omitempty"`
}

type ListBallotsRequest struct {
	Status string `json:"status,omitempty"`
	Cursor string `json:"cursor,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type ListBallotsResponse struct {
	Items      []BallotDTO `json:"items"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

type GetBallotResponse struct {
	Item BallotDTO `json:"item"`
}

type BallotResultsResponse struct {
	BallotID        string        `json:"ballot_id"`
	Status          string        `json:"status"`
	WinningProposal int           `json:"winning_proposal"`
	WinnerName      string        `json:"winner_name"`
	Proposals       []ProposalDTO `json:"proposals"`
	TotalWeight     int           `json:"total_weight"`
	CountedWeight   int           `json:"counted_weight"`
}

type GetVoterResponse struct {
	BallotID   string   `json:"ballot_id"`
	Item       VoterDTO `json:"item"`
	Registered bool     `json:"registered"`
}

type GrantRightRequest struct {
	Voter string `json:"voter"`
}

type GrantRightResponse struct {
	BallotID string   `json:"ballot_id"`
	Voter    VoterDTO `json:"voter"`
	Replayed bool     `json:"replayed,omitempty"`
}

type DelegateVoteRequest struct {
	To string `json:"to"`
}

type DelegateVoteResponse struct {
	BallotID string   `json:"ballot_id"`
	Voter    VoterDTO `json:"voter"`
	Replayed bool     `json:"replayed,omitempty"`
}

type CastVoteRequest struct {
	ProposalIndex int `json:"proposal_index"`
}

type CastVoteResponse struct {
	BallotID string   `json:"ballot_id"`
	Voter    VoterDTO `json:"voter"`
	Replayed bool     `json:"replayed,omitempty"`
}

type CloseBallotResponse struct {
	Item            BallotDTO `json:"item"`
	WinningProposal int       `json:"winning_proposal"`
	WinnerName      string    `json:"winner_name"`
	Replayed        bool      `json:"replayed,omitempty"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
