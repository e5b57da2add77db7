package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	ballotaudit "agora/contexts/governance/ballot-audit-service"
	ballotengine "agora/contexts/governance/ballot-engine"
	ballothttp "agora/contexts/governance/ballot-engine/transport/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestServer() *Server {
	return New(
		ballotengine.NewInMemoryModule(nil, slog.Default()),
		ballotaudit.NewInMemoryModule(slog.Default()),
		nil,
		slog.Default(),
		":0",
	)
}

func doJSON(t *testing.T, server *Server, method string, target string, userID string, idempotencyKey string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	return rr
}

func createTestBallot(t *testing.T, server *Server, chairperson string, proposals []string) string {
	t.Helper()

	rr := doJSON(t, server, http.MethodPost, "/v1/ballots", chairperson, "create-"+chairperson,
		ballothttp.CreateBallotRequest{Proposals: proposals})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var resp ballothttp.CreateBallotResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if resp.Item.BallotID == "" {
		t.Fatalf("expected ballot id in response, got %s", rr.Body.String())
	}
	return resp.Item.BallotID
}

func TestCreateBallotRequiresUserHeader(t *testing.T) {
	server := newTestServer()

	rr := doJSON(t, server, http.MethodPost, "/v1/ballots", "", "create-1",
		ballothttp.CreateBallotRequest{Proposals: []string{"alpha"}})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreateBallotRejectsInvalidJSON(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/v1/ballots", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "chair-1")
	req.Header.Set("Idempotency-Key", "create-1")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreateBallotRequiresIdempotencyKey(t *testing.T) {
	server := newTestServer()

	rr := doJSON(t, server, http.MethodPost, "/v1/ballots", "chair-1", "",
		ballothttp.CreateBallotRequest{Proposals: []string{"alpha"}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}

	var errResp ballothttp.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != "idempotency_key_required" {
		t.Fatalf("expected idempotency_key_required, got %s", errResp.Code)
	}
}

func TestBallotLifecycleOverHTTP(t *testing.T) {
	server := newTestServer()
	ballotID := createTestBallot(t, server, "chair-1", []string{"alpha", "beta"})

	rr := doJSON(t, server, http.MethodPost, "/v1/ballots/"+ballotID+"/rights", "chair-1", "grant-1",
		ballothttp.GrantRightRequest{Voter: "voter-1"})
	if rr.Code != http.StatusOK {
		t.Fatalf("grant right: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodPost, "/v1/ballots/"+ballotID+"/votes", "voter-1", "vote-1",
		ballothttp.CastVoteRequest{ProposalIndex: 1})
	if rr.Code != http.StatusOK {
		t.Fatalf("cast vote: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodPost, "/v1/ballots/"+ballotID+"/close", "chair-1", "close-1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("close: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var closeResp ballothttp.CloseBallotResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &closeResp); err != nil {
		t.Fatalf("decode close response: %v", err)
	}
	if closeResp.WinningProposal != 1 || closeResp.WinnerName != "beta" {
		t.Fatalf("expected beta (1) to win, got %d %q", closeResp.WinningProposal, closeResp.WinnerName)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/ballots/"+ballotID+"/results", nil)
	rr = httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("results: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var results ballothttp.BallotResultsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode results response: %v", err)
	}
	if results.Status != "closed" || results.WinningProposal != 1 {
		t.Fatalf("expected closed ballot won by 1, got status=%s winner=%d", results.Status, results.WinningProposal)
	}
}

func TestGrantRightRejectsNonChairperson(t *testing.T) {
	server := newTestServer()
	ballotID := createTestBallot(t, server, "chair-1", []string{"alpha"})

	rr := doJSON(t, server, http.MethodPost, "/v1/ballots/"+ballotID+"/rights", "voter-9", "grant-1",
		ballothttp.GrantRightRequest{Voter: "voter-1"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCastVoteWithoutRightForbidden(t *testing.T) {
	server := newTestServer()
	ballotID := createTestBallot(t, server, "chair-1", []string{"alpha"})

	rr := doJSON(t, server, http.MethodPost, "/v1/ballots/"+ballotID+"/votes", "stranger-1", "vote-1",
		ballothttp.CastVoteRequest{ProposalIndex: 0})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestGetBallotNotFound(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/v1/ballots/missing", nil)
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestListBallotsRejectsInvalidLimit(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/v1/ballots?limit=abc", nil)
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestRequestMetricsCountResponses(t *testing.T) {
	registry := prometheus.NewRegistry()
	server := New(
		ballotengine.NewInMemoryModule(nil, slog.Default()),
		ballotaudit.NewInMemoryModule(slog.Default()),
		registry,
		slog.Default(),
		":0",
	)

	req := httptest.NewRequest(http.MethodGet, "/v1/ballots", nil)
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	counted := testutil.ToFloat64(server.metrics.requestsTotal.WithLabelValues("GET /v1/ballots", fmt.Sprint(http.StatusOK)))
	if counted != 1 {
		t.Fatalf("expected 1 counted request, got %f", counted)
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr = httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics endpoint: expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "agora_http_requests_total") {
		t.Fatalf("expected exposition to include agora_http_requests_total, got %s", rr.Body.String())
	}
}
