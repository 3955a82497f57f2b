package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"prdash/internal/domain"
	"prdash/internal/service"
)

type lanesResponse struct {
	Lanes []service.Lane `json:"lanes"`
}

// HandleLanes returns all active records grouped into dashboard lanes.
// Merged records are shown for the current UTC day only.
func (s *Server) HandleLanes(w http.ResponseWriter, r *http.Request) {
	now := s.nowFunc().UTC()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	records, err := s.records.ListActive(r.Context(), todayStart)
	if err != nil {
		s.handleError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, lanesResponse{Lanes: service.ClassifyLanes(records)})
}

type transitionRequest struct {
	Lane  string `json:"lane"`
	Draft bool   `json:"draft"`
}

type transitionResponse struct {
	Result *domain.TransitionResult `json:"result"`
	Error  *apiError                `json:"error,omitempty"`
}

// HandleTransition runs the workflow transition resolver. When the run
// fails after applying steps, the partial progress is reported next to
// the error: those steps are remote mutations with no rollback.
func (s *Server) HandleTransition(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	key := chi.URLParam(r, "key")
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeDomainError(w, http.StatusBadRequest, domain.ErrorCode("BAD_REQUEST"), "invalid JSON body")
		return
	}

	result, err := s.transitions.Resolve(r.Context(), key, req.Lane, req.Draft)
	if err != nil {
		var de *domain.DomainError
		if errors.As(err, &de) && result != nil {
			s.writeJSON(w, statusForCode(de.Code), transitionResponse{
				Result: result,
				Error:  &apiError{Code: string(de.Code), Message: de.Message},
			})
			return
		}
		s.handleError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, transitionResponse{Result: result})
}

type fixComponentsRequest struct {
	Repo string `json:"repo"`
}

type fixComponentsResponse struct {
	Key        string   `json:"key"`
	Components []string `json:"components"`
}

func (s *Server) HandleFixComponents(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	key := chi.URLParam(r, "key")
	var req fixComponentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeDomainError(w, http.StatusBadRequest, domain.ErrorCode("BAD_REQUEST"), "invalid JSON body")
		return
	}
	if req.Repo == "" {
		s.writeDomainError(w, http.StatusBadRequest, domain.ErrorCode("BAD_REQUEST"), "repo is required")
		return
	}

	added, err := s.tracker.FixComponents(r.Context(), key, req.Repo)
	if err != nil {
		s.handleError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, fixComponentsResponse{Key: key, Components: added})
}

type assignResponse struct {
	Key       string `json:"key"`
	AccountID string `json:"account_id"`
}

func (s *Server) HandleAssign(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	accountID, err := s.tracker.AssignToMe(r.Context(), key)
	if err != nil {
		s.handleError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, assignResponse{Key: key, AccountID: accountID})
}
