package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Meetwin/AI-Lecturer/internal/apierr"
	"github.com/Meetwin/AI-Lecturer/internal/core"
	"github.com/Meetwin/AI-Lecturer/internal/logger"
	"github.com/Meetwin/AI-Lecturer/internal/metrics"
)

const serviceVersion = "4.0.0"

var activeFeatures = []string{"chat", "upload", "groups", "voice", "lecturers", "notifications"}

type ctxKey int

const sessionUserKey ctxKey = iota

// Services bundles what the handlers depend on.
type Services struct {
	Chat     *core.ChatService
	Stories  *core.StoryService
	Accounts *core.AccountService
	Groups   *core.GroupService
	Uploads  *core.UploadService
	LLM      *core.LLMService
}

type Options struct {
	UploadDir      string
	MaxUploadBytes int64
	CORSOrigins    []string
	Log            *logger.Logger
	Metrics        *metrics.Metrics
}

type APIHandler struct {
	chatService    *core.ChatService
	storyService   *core.StoryService
	accountService *core.AccountService
	groupService   *core.GroupService
	uploadService  *core.UploadService
	llmService     *core.LLMService

	uploadDir      string
	maxUploadBytes int64
	corsOrigins    []string
	log            *logger.Logger
	metrics        *metrics.Metrics
	now            func() time.Time
}

func NewAPIHandler(svc Services, opts Options) *APIHandler {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	return &APIHandler{
		chatService:    svc.Chat,
		storyService:   svc.Stories,
		accountService: svc.Accounts,
		groupService:   svc.Groups,
		uploadService:  svc.Uploads,
		llmService:     svc.LLM,
		uploadDir:      opts.UploadDir,
		maxUploadBytes: opts.MaxUploadBytes,
		corsOrigins:    opts.CORSOrigins,
		log:            log.With("component", "api"),
		metrics:        opts.Metrics,
		now:            time.Now,
	}
}

// SessionMiddleware resolves an optional "Authorization: Bearer <token>"
// header into the session user. Requests without the header pass through;
// requests with a bad token are rejected.
func (h *APIHandler) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		userID, err := h.accountService.SessionUser(tokenString)
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), sessionUserKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionUser(r *http.Request) string {
	userID, _ := r.Context().Value(sessionUserKey).(string)
	return userID
}

// requestUser prefers the explicit id and falls back to the session user.
func requestUser(r *http.Request, explicit string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	return sessionUser(r)
}

// unmatchedRoute is the route label for requests that matched no pattern.
const unmatchedRoute = "unmatched"

// RequestLogger logs one line per request and counts it by route pattern.
func (h *APIHandler) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := unmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		h.metrics.ObserveHTTP(r.Method, route, strconv.Itoa(status))
		h.log.Info("HTTP request",
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (h *APIHandler) RootHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Mentora - Enhanced AI Learning Platform",
		"status":   "operational",
		"features": []string{"google_auth", "ai_lecturers", "image_generation", "voice_synthesis", "group_management"},
		"version":  serviceVersion,
	})
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	keyState := "missing_key"
	if h.llmService.Configured() {
		keyState = "connected"
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"timestamp":       h.now(),
		"provider":        h.llmService.ProviderName(),
		"alleai":          keyState,
		"features_active": activeFeatures,
	})
}

// decodeJSON treats an empty body as an empty object.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apierr.Validation("Invalid request body: " + err.Error())
	}
	return nil
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("Failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierr.From(err)
	if apiErr.Status >= http.StatusInternalServerError {
		h.log.Error("Request failed", "route", r.URL.Path, "error", err, "details", apiErr.Detail)
	} else if apierr.IsNotFound(err) {
		h.log.Debug("Resource not found", "route", r.URL.Path, "error", err)
	}
	h.writeJSON(w, apiErr.Status, errorResponse{
		Success: false,
		Error:   apiErr.Error(),
		Code:    apiErr.Code,
		Details: apiErr.Detail,
	})
}
