package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/drewdunne/prbounty/internal/logging"
	"github.com/drewdunne/prbounty/internal/pipeline"
)

// ScoreRequest is the body of POST /api/v1/score.
type ScoreRequest struct {
	PRURL     string `json:"pr_url"`
	ProjectID string `json:"project_id"`
}

// ClaimRequest is the body of POST /api/v1/claims.
type ClaimRequest struct {
	PRURL       string `json:"pr_url"`
	ProjectID   string `json:"project_id"`
	DeveloperID string `json:"developer_id,omitempty"`
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var in ScoreRequest
	if !decode(w, r, &in) {
		return
	}
	if in.PRURL == "" || in.ProjectID == "" {
		writeErr(w, "BAD_REQUEST", "pr_url and project_id are required", http.StatusBadRequest)
		return
	}

	scored, err := s.pipeline.ValidateAndScore(r.Context(), pipeline.ScoreRequest{
		PRURL:      in.PRURL,
		ProjectID:  in.ProjectID,
		UserHandle: userFrom(r.Context()),
		Token:      r.Header.Get(headerPlatformToken),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scored)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var in ClaimRequest
	if !decode(w, r, &in) {
		return
	}
	if in.PRURL == "" || in.ProjectID == "" {
		writeErr(w, "BAD_REQUEST", "pr_url and project_id are required", http.StatusBadRequest)
		return
	}

	claim, err := s.pipeline.ClaimBounty(r.Context(), pipeline.ClaimRequest{
		PRURL:       in.PRURL,
		ProjectID:   in.ProjectID,
		UserHandle:  userFrom(r.Context()),
		DeveloperID: in.DeveloperID,
		Token:       r.Header.Get(headerPlatformToken),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, claim)
}

// handleClaimState serves GET /api/v1/claims?project_id=&pr_url=.
func (s *Server) handleClaimState(w http.ResponseWriter, r *http.Request) {
	projectID := strings.TrimSpace(r.URL.Query().Get("project_id"))
	prURL := strings.TrimSpace(r.URL.Query().Get("pr_url"))
	if projectID == "" || prURL == "" {
		writeErr(w, "BAD_REQUEST", "project_id and pr_url are required", http.StatusBadRequest)
		return
	}

	unit, err := s.pipeline.State(r.Context(), projectID, prURL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, unit.WithDefaults())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeErr(w, "BAD_REQUEST", "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func logFrom(r *http.Request, fallback *zap.SugaredLogger) *zap.SugaredLogger {
	return logging.FromContextOr(r.Context(), fallback)
}
