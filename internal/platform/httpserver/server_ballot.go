package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	ballotdomainerrors "agora/contexts/governance/ballot-engine/domain/errors"
	ballothttp "agora/contexts/governance/ballot-engine/transport/http"
)

func writeBallotError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ballothttp.ErrorResponse{Code: code, Message: message})
}

func writeBallotDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ballotdomainerrors.ErrBallotNotFound):
		writeBallotError(w, http.StatusNotFound, "ballot_not_found", err.Error())
	case errors.Is(err, ballotdomainerrors.ErrUnauthorized):
		writeBallotError(w, http.StatusForbidden, "not_chairperson", err.Error())
	case errors.Is(err, ballotdomainerrors.ErrNoRightToVote):
		writeBallotError(w, http.StatusForbidden, "no_right_to_vote", err.Error())
	case errors.Is(err, ballotdomainerrors.ErrBallotClosed):
		writeBallotError(w, http.StatusConflict, "ballot_closed", err.Error())
	case errors.Is(err, ballotdomainerrors.ErrAlreadyVoted):
		writeBallotError(w, http.StatusConflict, "already_voted", err.Error())
	case errors.Is(err, ballotdomainerrors.ErrAlreadyHasRights):
		writeBallotError(w, http.StatusConflict, "already_has_rights", err.Error())
	case errors.Is(err, ballotdomainerrors.ErrIdempotencyConflict):
		writeBallotError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, ballotdomainerrors.ErrSelfDelegation):
		writeBallotError(w, http.StatusUnprocessableEntity, "self_delegation", err.Error())
	case errors.Is(err, ballotdomainerrors.ErrDelegationLoop):
		writeBallotError(w, http.StatusUnprocessableEntity, "delegation_loop", err.Error())
	case errors.Is(err, ballotdomainerrors.ErrDelegationChainTooLong):
		writeBallotError(w, http.StatusUnprocessableEntity, "delegation_chain_too_long", err.Error())
	case errors.Is(err, ballotdomainerrors.ErrInvalidProposal):
		writeBallotError(w, http.StatusBadRequest, "invalid_proposal", err.Error())
	case errors.Is(err, ballotdomainerrors.ErrNoProposals):
		writeBallotError(w, http.StatusBadRequest, "no_proposals", err.Error())
	case errors.Is(err, ballotdomainerrors.ErrIdempotencyKeyRequired):
		writeBallotError(w, http.StatusBadRequest, "idempotency_key_required", err.Error())
	case errors.Is(err, ballotdomainerrors.ErrInvalidRequest):
		writeBallotError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeBallotError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleCreateBallot(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeBallotError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req ballothttp.CreateBallotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBallotError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.ballots.Handler.CreateBallotHandler(
		r.Context(),
		userID,
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListBallots(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := ballothttp.ListBallotsRequest{
		Status: query.Get("status"),
		Cursor: query.Get("cursor"),
	}

	if limitRaw := query.Get("limit"); limitRaw != "" {
		limit, err := strconv.Atoi(limitRaw)
		if err != nil {
			writeBallotError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		req.Limit = limit
	}

	resp, err := s.ballots.Handler.ListBallotsHandler(r.Context(), req)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetBallot(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ballots.Handler.GetBallotHandler(r.Context(), r.PathValue("ballot_id"))
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBallotResults(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ballots.Handler.BallotResultsHandler(r.Context(), r.PathValue("ballot_id"))
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetVoter(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ballots.Handler.GetVoterHandler(
		r.Context(),
		r.PathValue("ballot_id"),
		r.PathValue("address"),
	)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGrantRight(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeBallotError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req ballothttp.GrantRightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBallotError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.ballots.Handler.GrantRightHandler(
		r.Context(),
		userID,
		r.PathValue("ballot_id"),
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDelegateVote(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeBallotError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req ballothttp.DelegateVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBallotError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.ballots.Handler.DelegateVoteHandler(
		r.Context(),
		userID,
		r.PathValue("ballot_id"),
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeBallotError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req ballothttp.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBallotError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.ballots.Handler.CastVoteHandler(
		r.Context(),
		userID,
		r.PathValue("ballot_id"),
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCloseBallot(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeBallotError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	resp, err := s.ballots.Handler.CloseBallotHandler(
		r.Context(),
		userID,
		r.PathValue("ballot_id"),
		r.Header.Get("Idempotency-Key"),
	)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
