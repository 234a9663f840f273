// Package handlers implements the HTTP API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/colaso96/beforeyouradvisor/internal/api/middleware"
	"github.com/colaso96/beforeyouradvisor/internal/chat"
	"github.com/colaso96/beforeyouradvisor/internal/classify"
	"github.com/colaso96/beforeyouradvisor/internal/domain"
	"github.com/colaso96/beforeyouradvisor/internal/infra/postgres"
	"github.com/colaso96/beforeyouradvisor/internal/jobs"
	"github.com/colaso96/beforeyouradvisor/internal/logger"
	"github.com/colaso96/beforeyouradvisor/internal/pipeline"
)

// JobService starts and reports ingestion and analysis jobs.
type JobService interface {
	StartIngestion(ctx context.Context, userID, token, folderID string) (*jobs.Job, error)
	StartAnalysis(ctx context.Context, userID string, req classify.Request) (*jobs.Job, error)
	JobStatus(ctx context.Context, jobID, userID string) (*jobs.Job, error)
}

// TransactionReader serves the listing and summary endpoints.
type TransactionReader interface {
	ListTransactions(ctx context.Context, userID string, f postgres.ListFilter) ([]domain.Transaction, error)
	DeductionTotals(ctx context.Context, userID string) ([]domain.CategoryTotal, error)
}

// ChatService answers questions about a user's transactions.
type ChatService interface {
	Ask(ctx context.Context, userID, question string) (*domain.ChatMessage, error)
	History(ctx context.Context, userID string) ([]domain.ChatMessage, error)
	Clear(ctx context.Context, userID string) error
}

// apiError is an error already mapped to a response.
type apiError struct {
	Status  int
	Message string
}

// toAPIError maps service errors onto HTTP statuses.
func toAPIError(err error) apiError {
	switch {
	case errors.Is(err, pipeline.ErrMissingFolder),
		errors.Is(err, pipeline.ErrUnknownBusinessType),
		errors.Is(err, chat.ErrEmptyQuestion):
		return apiError{Status: http.StatusBadRequest, Message: err.Error()}
	case errors.Is(err, jobs.ErrJobNotFound):
		return apiError{Status: http.StatusNotFound, Message: "Job not found"}
	case errors.Is(err, chat.ErrNotEligible):
		return apiError{Status: http.StatusConflict, Message: "Ingest at least two transactions before chatting"}
	}
	return apiError{Status: http.StatusInternalServerError, Message: "Internal server error"}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	apiErr := toAPIError(err)
	if apiErr.Status >= http.StatusInternalServerError {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg(msg)
	}
	middleware.WriteError(w, apiErr.Status, apiErr.Message)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// JobsHandler handles ingestion, analysis and job status endpoints.
type JobsHandler struct {
	svc JobService
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(svc JobService) *JobsHandler {
	return &JobsHandler{svc: svc}
}

// StartIngestion handles POST /api/ingest
func (h *JobsHandler) StartIngestion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FolderID string `json:"folderId"`
	}
	if !decode(w, r, &req) {
		return
	}

	job, err := h.svc.StartIngestion(r.Context(), middleware.UserID(r.Context()), r.Header.Get(middleware.HeaderDriveToken), req.FolderID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to start ingestion")
		return
	}
	middleware.WriteJSON(w, http.StatusAccepted, job)
}

// StartAnalysis handles POST /api/analyze
func (h *JobsHandler) StartAnalysis(w http.ResponseWriter, r *http.Request) {
	var req classify.Request
	if !decode(w, r, &req) {
		return
	}

	job, err := h.svc.StartAnalysis(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		writeServiceError(w, r, err, "Failed to start analysis")
		return
	}
	middleware.WriteJSON(w, http.StatusAccepted, job)
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.svc.JobStatus(r.Context(), jobID, middleware.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err, "Failed to get job")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// TransactionsHandler handles transaction listing and summary endpoints.
type TransactionsHandler struct {
	repo TransactionReader
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(repo TransactionReader) *TransactionsHandler {
	return &TransactionsHandler{repo: repo}
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := postgres.ListFilter{
		ClassifiedOnly: query.Get("classified") == "true",
		DeductibleOnly: query.Get("deductible") == "true",
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := query.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid "+name)
			return
		}
		*dst = n
	}

	txs, err := h.repo.ListTransactions(r.Context(), middleware.UserID(r.Context()), filter)
	if err != nil {
		writeServiceError(w, r, err, "Failed to list transactions")
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

// Summary handles GET /api/summary
func (h *TransactionsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	totals, err := h.repo.DeductionTotals(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err, "Failed to summarize transactions")
		return
	}

	var deductible float64
	for _, t := range totals {
		deductible += t.Deductible
	}
	if totals == nil {
		totals = []domain.CategoryTotal{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories":      totals,
		"deductibleTotal": deductible,
	})
}

// ChatHandler handles the chat endpoints.
type ChatHandler struct {
	svc ChatService
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// Ask handles POST /api/chat
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if !decode(w, r, &req) {
		return
	}

	msg, err := h.svc.Ask(r.Context(), middleware.UserID(r.Context()), req.Message)
	if err != nil {
		writeServiceError(w, r, err, "Chat turn failed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, msg)
}

// History handles GET /api/chat
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.svc.History(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err, "Failed to load chat history")
		return
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

// Clear handles DELETE /api/chat
func (h *ChatHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Clear(r.Context(), middleware.UserID(r.Context())); err != nil {
		writeServiceError(w, r, err, "Failed to clear chat history")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Register mounts every route on mux.
func Register(mux *http.ServeMux, jobsHandler *JobsHandler, txHandler *TransactionsHandler, chatHandler *ChatHandler) {
	mux.HandleFunc("/api/ingest", method(http.MethodPost, jobsHandler.StartIngestion))
	mux.HandleFunc("/api/analyze", method(http.MethodPost, jobsHandler.StartAnalysis))

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		// Extract job ID from path
		jobID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/jobs/"), "/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		jobsHandler.GetJob(w, r, jobID)
	})

	mux.HandleFunc("/api/transactions", method(http.MethodGet, txHandler.ListTransactions))
	mux.HandleFunc("/api/summary", method(http.MethodGet, txHandler.Summary))

	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			chatHandler.Ask(w, r)
		case http.MethodGet:
			chatHandler.History(w, r)
		case http.MethodDelete:
			chatHandler.Clear(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
}

func method(m string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != m {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}
