package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/drewdunne/prbounty/internal/bounty"
	"github.com/drewdunne/prbounty/internal/eligibility"
	"github.com/drewdunne/prbounty/internal/ledger"
	"github.com/drewdunne/prbounty/internal/pipeline"
	"github.com/drewdunne/prbounty/internal/provider"
	"github.com/drewdunne/prbounty/internal/registry"
	"github.com/drewdunne/prbounty/internal/store"
)

// ErrorResponse is the body of every failed API request.
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// AlreadyClaimedResponse carries the existing claim.
type AlreadyClaimedResponse struct {
	ErrorResponse
	ClaimedBy string     `json:"claimed_by"`
	Amount    float64    `json:"amount"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
}

func writeErr(w http.ResponseWriter, code, msg string, status int) {
	var resp ErrorResponse
	resp.Error.Code, resp.Error.Message = code, msg
	writeJSON(w, status, resp)
}

// apiError pairs an error with its code and status.
type apiError struct {
	target error
	code   string
	status int
}

var apiErrors = []apiError{
	{eligibility.ErrInvalidPullRequestURL, "INVALID_PR_URL", http.StatusBadRequest},
	{eligibility.ErrUnauthenticated, "UNAUTHENTICATED", http.StatusUnauthorized},
	{eligibility.ErrWrongRepository, "WRONG_REPOSITORY", http.StatusForbidden},
	{eligibility.ErrNotAuthor, "NOT_AUTHOR", http.StatusForbidden},
	{eligibility.ErrNotMerged, "NOT_MERGED", http.StatusUnprocessableEntity},
	{pipeline.ErrProjectNotFound, "PROJECT_NOT_FOUND", http.StatusNotFound},
	{store.ErrNotFound, "NOT_FOUND", http.StatusNotFound},
	{bounty.ErrInvalidRange, "INVALID_BOUNTY_RANGE", http.StatusUnprocessableEntity},
	{registry.ErrUnsupportedHost, "UNSUPPORTED_HOST", http.StatusUnprocessableEntity},
	{ledger.ErrInvalidAmount, "INVALID_AMOUNT", http.StatusUnprocessableEntity},
	{ledger.ErrStorageConflict, "STORAGE_CONFLICT", http.StatusConflict},
	{provider.ErrNotFound, "PR_NOT_FOUND", http.StatusNotFound},
	{provider.ErrRateLimited, "RATE_LIMITED", http.StatusTooManyRequests},
	{provider.ErrUnauthorized, "PLATFORM_UNAUTHORIZED", http.StatusBadGateway},
	{provider.ErrUnavailable, "PLATFORM_UNAVAILABLE", http.StatusBadGateway},
	{context.DeadlineExceeded, "TIMEOUT", http.StatusGatewayTimeout},
	{context.Canceled, "CANCELLED", http.StatusServiceUnavailable},
}

// writeError maps a pipeline error to the error envelope. Unknown errors
// are logged and reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var already *ledger.AlreadyClaimedError
	if errors.As(err, &already) {
		resp := AlreadyClaimedResponse{
			ClaimedBy: already.ClaimedBy,
			Amount:    already.Amount,
			ClaimedAt: already.ClaimedAt,
		}
		resp.Error.Code, resp.Error.Message = "ALREADY_CLAIMED", err.Error()
		writeJSON(w, http.StatusConflict, resp)
		return
	}

	for _, e := range apiErrors {
		if errors.Is(err, e.target) {
			writeErr(w, e.code, err.Error(), e.status)
			return
		}
	}

	logFrom(r, s.log).Errorw("request failed", "error", err)
	writeErr(w, "INTERNAL", "internal error", http.StatusInternalServerError)
}
