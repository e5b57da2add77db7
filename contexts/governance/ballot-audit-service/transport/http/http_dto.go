package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type AuditEntryDTO struct {
	EntryID    string `json:"entry_id"`
	BallotID   string `json:"ballot_id"`
	EventID    string `json:"event_id"`
	EventType  string `json:"event_type"`
	Actor      string `json:"actor"`
	OccurredAt string `json:"occurred_at"`
	RecordedAt string `json:"recorded_at"`
}

type BallotActivityResponse struct {
	Status string `json:"status"`
	Data   struct {
		BallotID string          `json:"ballot_id"`
		Items    []AuditEntryDTO `json:"items"`
	} `json:"data"`
}

type AuditSummaryResponse struct {
	Status string `json:"status"`
	Data   struct {
		TotalEntries   int            `json:"total_entries"`
		Ballots        int            `json:"ballots"`
		CountsByType   map[string]int `json:"counts_by_type"`
		LastRecordedAt string         `json:"last_recorded_at,omitempty"`
	} `json:"data"`
}
