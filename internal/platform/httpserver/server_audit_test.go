package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	ballotaudit "agora/contexts/governance/ballot-audit-service"
	auditports "agora/contexts/governance/ballot-audit-service/ports"
	audithttp "agora/contexts/governance/ballot-audit-service/transport/http"
	ballotengine "agora/contexts/governance/ballot-engine"
)

func newAuditTestServer() (*Server, ballotaudit.Module) {
	auditModule := ballotaudit.NewInMemoryModule(slog.Default())
	server := New(
		ballotengine.NewInMemoryModule(nil, slog.Default()),
		auditModule,
		nil,
		slog.Default(),
		":0",
	)
	return server, auditModule
}

func TestAuditSummaryStartsEmpty(t *testing.T) {
	server, _ := newAuditTestServer()

	req := httptest.NewRequest(http.MethodGet, "/v1/audit/summary", nil)
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var resp audithttp.AuditSummaryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode summary response: %v", err)
	}
	if resp.Status != "success" || resp.Data.TotalEntries != 0 {
		t.Fatalf("expected empty summary, got %s", rr.Body.String())
	}
}

func TestAuditBallotActivityListsIngestedEvents(t *testing.T) {
	server, auditModule := newAuditTestServer()

	_, err := auditModule.Service.IngestBallotEvent(context.Background(), auditports.EventEnvelope{
		EventID:      "evt-1",
		EventType:    "ballot.vote_cast",
		OccurredAt:   time.Date(2026, time.April, 3, 11, 0, 0, 0, time.UTC),
		PartitionKey: "ballot-7",
		Data:         json.RawMessage(`{"ballot_id":"ballot-7","voter":"alice"}`),
	})
	if err != nil {
		t.Fatalf("ingest event: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/audit/ballots/ballot-7", nil)
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var resp audithttp.BallotActivityResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode activity response: %v", err)
	}
	if resp.Data.BallotID != "ballot-7" || len(resp.Data.Items) != 1 {
		t.Fatalf("expected one entry for ballot-7, got %s", rr.Body.String())
	}
	if resp.Data.Items[0].EventType != "ballot.vote_cast" || resp.Data.Items[0].Actor != "alice" {
		t.Fatalf("unexpected entry %+v", resp.Data.Items[0])
	}
}

func TestAuditBallotActivityRejectsInvalidLimit(t *testing.T) {
	server, _ := newAuditTestServer()

	req := httptest.NewRequest(http.MethodGet, "/v1/audit/ballots/ballot-7?limit=abc", nil)
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}
