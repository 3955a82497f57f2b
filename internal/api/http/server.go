package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"prdash/internal/domain"
)

// RecordLister reads the dashboard's records from the store.
type RecordLister interface {
	ListActive(ctx context.Context, mergedSince time.Time) ([]domain.PullRequestRecord, error)
}

// TransitionRunner executes a lane transition for one issue.
type TransitionRunner interface {
	Resolve(ctx context.Context, key, lane string, draft bool) (*domain.TransitionResult, error)
}

// TrackerActions are the remaining user-triggered tracker mutations.
type TrackerActions interface {
	FixComponents(ctx context.Context, key, repoName string) ([]string, error)
	AssignToMe(ctx context.Context, key string) (string, error)
}

type Server struct {
	records     RecordLister
	transitions TransitionRunner
	tracker     TrackerActions
	logger      *slog.Logger
	nowFunc     func() time.Time
}

func NewServer(records RecordLister, transitions TransitionRunner, tracker TrackerActions, logger *slog.Logger) *Server {
	return &Server{
		records:     records,
		transitions: transitions,
		tracker:     tracker,
		logger:      logger,
		nowFunc:     time.Now,
	}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *Server) writeDomainError(w http.ResponseWriter, status int, code domain.ErrorCode, message string) {
	resp := errorResponse{
		Error: apiError{
			Code:    string(code),
			Message: message,
		},
	}
	s.writeJSON(w, status, resp)
}

func statusForCode(code domain.ErrorCode) int {
	switch code {
	case domain.ErrorCodeNotFound:
		return http.StatusNotFound
	case domain.ErrorCodeConfigurationGap:
		return http.StatusUnprocessableEntity
	case domain.ErrorCodeTransitionUnreachable:
		return http.StatusConflict
	case domain.ErrorCodeAuthorizationDenied:
		return http.StatusForbidden
	case domain.ErrorCodeRemoteUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var de *domain.DomainError
	if errors.As(err, &de) {
		s.writeDomainError(w, statusForCode(de.Code), de.Code, de.Message)
		return
	}

	if errors.Is(err, sql.ErrNoRows) {
		s.writeDomainError(w, http.StatusNotFound, domain.ErrorCodeNotFound, "resource not found")
		return
	}

	s.logger.Error("unexpected error", "error", err)
	s.writeDomainError(w, http.StatusInternalServerError, domain.ErrorCode("INTERNAL"), "internal server error")
}

func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
