package rest

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/clintrovert/ourstreet/internal/api"
	"github.com/clintrovert/ourstreet/internal/autopost"
	"github.com/clintrovert/ourstreet/internal/config"
	"github.com/clintrovert/ourstreet/internal/feed"
	"github.com/clintrovert/ourstreet/internal/platform"
	"github.com/clintrovert/ourstreet/internal/temporal"
	"github.com/clintrovert/ourstreet/pkg/types"
)

const unauthorizedMessage = "Unauthorized - Admin access required"

// Poster runs single and batch posting
type Poster interface {
	PostIssue(ctx context.Context, issue *types.Issue, opts types.PostOptions) types.TweetResult
	PostMultipleIssues(ctx context.Context, issues []*types.Issue, opts types.BatchOptions) types.BatchResult
}

// Account exposes the platform client's thread and diagnostic operations
type Account interface {
	PostThread(ctx context.Context, texts []string) types.TweetResult
	VerifyCredentials(ctx context.Context) bool
	GetAccountInfo(ctx context.Context) (*platform.AccountInfo, error)
	LookupPost(ctx context.Context, id string) (*platform.Post, error)
}

// Batches starts, inspects and cancels durable batch runs
type Batches interface {
	StartBatchPosting(ctx context.Context, issues []types.Issue, opts types.BatchOptions) (string, error)
	GetBatchStatus(ctx context.Context, workflowID string) (*temporal.BatchStatus, error)
	CancelBatch(ctx context.Context, workflowID string) error
}

// Trigger queues newly created issues for auto-posting
type Trigger interface {
	Trigger(issue *types.Issue) error
	TriggerByID(ctx context.Context, id string) (*types.Issue, error)
}

// Handler handles REST API requests
type Handler struct {
	poster     Poster
	account    Account
	batches    Batches
	trigger    Trigger
	cfg        *config.Config
	adminToken string
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures a Handler
type Option func(*Handler)

// WithAccount enables the thread and diagnostic routes
func WithAccount(a Account) Option {
	return func(h *Handler) {
		h.account = a
	}
}

// WithBatches enables durable batches
func WithBatches(b Batches) Option {
	return func(h *Handler) {
		h.batches = b
	}
}

// WithTrigger enables the issue-created webhook
func WithTrigger(t Trigger) Option {
	return func(h *Handler) {
		h.trigger = t
	}
}

// NewHandler creates a new REST handler
func NewHandler(poster Poster, cfg *config.Config, logger *zap.Logger, opts ...Option) *Handler {
	h := &Handler{
		poster:     poster,
		cfg:        cfg,
		adminToken: cfg.AdminToken,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers REST API routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/social-media", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Post("/issue-created", h.IssueCreated)
			r.Post("/post-issue", h.PostIssue)
			r.Get("/status", h.GetStatus)
			r.Post("/batch", h.PostBatch)
			r.Get("/batch/{id}", h.GetBatch)
			r.Delete("/batch/{id}", h.CancelBatch)
			r.Post("/thread", h.PostThread)
			r.Get("/account", h.GetAccount)
			r.Get("/posts/{id}", h.GetPost)
		})
	})
}

// requireAdmin checks the admin bearer token
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if h.adminToken == "" || !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
			writeJSON(w, http.StatusUnauthorized, api.PostResponse{Success: false, Error: unauthorizedMessage})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PostIssue handles POST /post-issue
func (h *Handler) PostIssue(w http.ResponseWriter, r *http.Request) {
	var payload api.IssuePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, api.PostResponse{Success: false, Error: "invalid JSON body"})
		return
	}

	issue, err := payload.Issue(h.now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, api.PostResponse{Success: false, Error: err.Error()})
		return
	}

	h.logger.Info("posting issue to social media", zap.String("issue_id", issue.ID), zap.String("title", issue.Title))

	resp := api.NewPostResponse(h.poster.PostIssue(r.Context(), issue, payload.Options()))
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

type statusResponse struct {
	Success bool       `json:"success"`
	Status  api.Status `json:"status"`
}

// GetStatus handles GET /status
func (h *Handler) GetStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Success: true, Status: api.NewStatus(h.cfg)})
}

type batchStartedResponse struct {
	Success    bool   `json:"success"`
	WorkflowID string `json:"workflowId"`
}

// PostBatch handles POST /batch
func (h *Handler) PostBatch(w http.ResponseWriter, r *http.Request) {
	var payload api.BatchPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, api.PostResponse{Success: false, Error: "invalid JSON body"})
		return
	}

	issues, opts, err := payload.Batch(h.now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, api.PostResponse{Success: false, Error: err.Error()})
		return
	}

	if payload.Durable {
		if h.batches == nil {
			writeJSON(w, http.StatusServiceUnavailable, api.PostResponse{Success: false, Error: "durable batches are not enabled"})
			return
		}
		values := make([]types.Issue, len(issues))
		for i, issue := range issues {
			values[i] = *issue
		}
		id, err := h.batches.StartBatchPosting(r.Context(), values, opts)
		if err != nil {
			h.logger.Error("failed to start batch workflow", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, api.PostResponse{Success: false, Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusAccepted, batchStartedResponse{Success: true, WorkflowID: id})
		return
	}

	writeJSON(w, http.StatusOK, h.poster.PostMultipleIssues(r.Context(), issues, opts))
}

// GetBatch handles GET /batch/{id}
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	if h.batches == nil {
		writeJSON(w, http.StatusServiceUnavailable, api.PostResponse{Success: false, Error: "durable batches are not enabled"})
		return
	}

	status, err := h.batches.GetBatchStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, api.PostResponse{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// CancelBatch handles DELETE /batch/{id}
func (h *Handler) CancelBatch(w http.ResponseWriter, r *http.Request) {
	if h.batches == nil {
		writeJSON(w, http.StatusServiceUnavailable, api.PostResponse{Success: false, Error: "durable batches are not enabled"})
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.batches.CancelBatch(r.Context(), id); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, temporal.ErrBatchNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, api.PostResponse{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, batchStartedResponse{Success: true, WorkflowID: id})
}

type threadRequest struct {
	Texts []string `json:"texts"`
}

// PostThread handles POST /thread
func (h *Handler) PostThread(w http.ResponseWriter, r *http.Request) {
	if h.account == nil {
		writeJSON(w, http.StatusServiceUnavailable, api.PostResponse{Success: false, Error: platform.NotConfiguredMessage})
		return
	}

	var req threadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, api.PostResponse{Success: false, Error: "invalid JSON body"})
		return
	}

	resp := api.NewPostResponse(h.account.PostThread(r.Context(), req.Texts))
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

type accountResponse struct {
	Success bool                  `json:"success"`
	Valid   bool                  `json:"valid"`
	Account *platform.AccountInfo `json:"account,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// GetAccount handles GET /account
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	if h.account == nil {
		writeJSON(w, http.StatusServiceUnavailable, accountResponse{Error: platform.NotConfiguredMessage})
		return
	}

	if !h.account.VerifyCredentials(r.Context()) {
		writeJSON(w, http.StatusOK, accountResponse{Success: true, Valid: false})
		return
	}

	info, err := h.account.GetAccountInfo(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, accountResponse{Valid: true, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{Success: true, Valid: true, Account: info})
}

// GetPost handles GET /posts/{id}
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	if h.account == nil {
		writeJSON(w, http.StatusServiceUnavailable, api.PostResponse{Success: false, Error: platform.NotConfiguredMessage})
		return
	}

	post, err := h.account.LookupPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		status := http.StatusBadGateway
		var apiErr *platform.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			status = http.StatusNotFound
		}
		writeJSON(w, status, api.PostResponse{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, post)
}

type issueCreatedResponse struct {
	Queued bool   `json:"queued"`
	Reason string `json:"reason,omitempty"`
}

// IssueCreated handles POST /issue-created, called by the issue system
// after an insert. A body carrying only an id is resolved from the store.
func (h *Handler) IssueCreated(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		writeJSON(w, http.StatusOK, issueCreatedResponse{Queued: false, Reason: "auto-post disabled"})
		return
	}

	var req api.IssuePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, issueCreatedResponse{Reason: "invalid JSON body"})
		return
	}

	var err error
	issue, convErr := req.Issue(h.now())
	switch {
	case convErr == nil:
		err = h.trigger.Trigger(issue)
	case req.ID != "":
		_, err = h.trigger.TriggerByID(r.Context(), req.ID)
	default:
		writeJSON(w, http.StatusBadRequest, issueCreatedResponse{Reason: convErr.Error()})
		return
	}

	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, issueCreatedResponse{Queued: true})
	case errors.Is(err, autopost.ErrNotEligible):
		writeJSON(w, http.StatusOK, issueCreatedResponse{Queued: false, Reason: err.Error()})
	case errors.Is(err, feed.ErrNotFound):
		writeJSON(w, http.StatusNotFound, issueCreatedResponse{Reason: err.Error()})
	case errors.Is(err, feed.ErrNoSource):
		writeJSON(w, http.StatusBadRequest, issueCreatedResponse{Reason: api.ErrMissingFields.Error()})
	case errors.Is(err, autopost.ErrQueueFull):
		writeJSON(w, http.StatusServiceUnavailable, issueCreatedResponse{Reason: err.Error()})
	default:
		h.logger.Error("failed to queue issue", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, issueCreatedResponse{Reason: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
