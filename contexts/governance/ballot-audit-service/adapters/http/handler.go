package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"agora/contexts/governance/ballot-audit-service/application"
	httptransport "agora/contexts/governance/ballot-audit-service/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) BallotActivityHandler(
	ctx context.Context,
	ballotID string,
	limit int,
) (httptransport.BallotActivityResponse, error) {
	items, err := h.Service.ListBallotActivity(ctx, ballotID, limit)
	if err != nil {
		return httptransport.BallotActivityResponse{}, err
	}

	resp := httptransport.BallotActivityResponse{Status: "success"}
	resp.Data.BallotID = ballotID
	resp.Data.Items = make([]httptransport.AuditEntryDTO, 0, len(items))
	for _, entry := range items {
		resp.Data.Items = append(resp.Data.Items, httptransport.AuditEntryDTO{
			EntryID:    entry.EntryID,
			BallotID:   entry.BallotID,
			EventID:    entry.EventID,
			EventType:  entry.EventType,
			Actor:      entry.Actor,
			OccurredAt: entry.OccurredAt.UTC().Format(time.RFC3339),
			RecordedAt: entry.RecordedAt.UTC().Format(time.RFC3339),
		})
	}
	return resp, nil
}

func (h Handler) AuditSummaryHandler(ctx context.Context) (httptransport.AuditSummaryResponse, error) {
	summary, err := h.Service.GetSummary(ctx)
	if err != nil {
		return httptransport.AuditSummaryResponse{}, err
	}

	resp := httptransport.AuditSummaryResponse{Status: "success"}
	resp.Data.TotalEntries = summary.TotalEntries
	resp.Data.Ballots = summary.Ballots
	resp.Data.CountsByType = summary.CountsByType
	if resp.Data.CountsByType == nil {
		resp.Data.CountsByType = map[string]int{}
	}
	if summary.LastRecordedAt != nil {
		resp.Data.LastRecordedAt = summary.LastRecordedAt.UTC().Format(time.RFC3339)
	}
	return resp, nil
}
