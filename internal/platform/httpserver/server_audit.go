package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	auditdomainerrors "agora/contexts/governance/ballot-audit-service/domain/errors"
	audithttp "agora/contexts/governance/ballot-audit-service/transport/http"
)

func writeAuditError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, audithttp.ErrorResponse{Code: code, Message: message})
}

func writeAuditDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auditdomainerrors.ErrInvalidRequest):
		writeAuditError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, auditdomainerrors.ErrUnknownEventType):
		writeAuditError(w, http.StatusBadRequest, "unknown_event_type", err.Error())
	default:
		writeAuditError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleAuditBallotActivity(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitRaw := r.URL.Query().Get("limit"); limitRaw != "" {
		parsed, err := strconv.Atoi(limitRaw)
		if err != nil {
			writeAuditError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = parsed
	}

	resp, err := s.audit.Handler.BallotActivityHandler(r.Context(), r.PathValue("ballot_id"), limit)
	if err != nil {
		writeAuditDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAuditSummary(w http.ResponseWriter, r *http.Request) {
	resp, err := s.audit.Handler.AuditSummaryHandler(r.Context())
	if err != nil {
		writeAuditDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
