package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	gorillaws "github.com/gorilla/websocket"

	"github.com/liftoff-ranking/internal/config"
	"github.com/liftoff-ranking/internal/domain"
	"github.com/liftoff-ranking/internal/validation"
	"github.com/liftoff-ranking/internal/websocket"
)

// UserIDHeader carries the authenticated user id, set by the auth gateway
const UserIDHeader = "X-User-ID"

// RankingService is the part of the ranking service the API exposes
type RankingService interface {
	GetUserRanking(ctx context.Context, userID int64) (*domain.UserRanking, error)
	RecalculateUser(ctx context.Context, userID int64) (*domain.UserRanking, error)
	GetLeaderboard(ctx context.Context, q domain.LeaderboardQuery) (*domain.LeaderboardPage, error)
	Tiers() []domain.TierInfo
}

// ReadinessCheck probes one dependency for the /ready endpoint
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler provides HTTP handlers for the ranking API
type Handler struct {
	service   RankingService
	hub       *websocket.Hub
	upgrader  *gorillaws.Upgrader
	validator *validation.Validator
	config    *config.ServerConfig
	checks    []ReadinessCheck
	logger    *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	service RankingService,
	hub *websocket.Hub,
	cfg *config.ServerConfig,
	logger *slog.Logger,
	checks ...ReadinessCheck,
) *Handler {
	return &Handler{
		service:   service,
		hub:       hub,
		upgrader:  websocket.NewUpgrader(cfg.AllowedOrigins),
		validator: validation.New(),
		config:    cfg,
		checks:    checks,
		logger:    logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TierResponse is one row of the tier table as presented to clients
type TierResponse struct {
	Tier      domain.Tier `json:"tier"`
	Level     int         `json:"level"`
	Color     string      `json:"color"`
	MinPoints int         `json:"min_points"`
	MaxPoints *int        `json:"max_points"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", UserIDHeader},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tiers", h.GetTiers)

		r.Route("/rankings", func(r chi.Router) {
			r.Get("/me", h.GetMyRanking)
			r.Post("/recalculate", h.RecalculateMe)

			r.Route("/users/{userID}", func(r chi.Router) {
				r.Get("/", h.GetUserRanking)
				r.Post("/recalculate", h.RecalculateUser)
			})
		})

		r.Route("/leaderboards", func(r chi.Router) {
			r.Get("/global", h.leaderboard(domain.ScopeGlobal))
			r.Get("/friends", h.leaderboard(domain.ScopeFriends))
		})

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data any) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeServiceError maps a service error to a status code. Unexpected
// errors are logged and hidden behind ErrInternalError.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case domain.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, domain.ErrUserNotFound)
	case errors.Is(err, domain.ErrUnauthenticated):
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthenticated)
	case errors.Is(err, domain.ErrInvalidScope), errors.Is(err, domain.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, err)
	default:
		h.logger.Error(msg, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// currentUser reads the authenticated user id. ok is false when the header
// is absent; a malformed header is an error.
func currentUser(r *http.Request) (int64, bool, error) {
	raw := r.Header.Get(UserIDHeader)
	if raw == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false, domain.ErrUnauthenticated
	}
	return id, true, nil
}

// requireUser is currentUser for endpoints that need an identity
func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok, err := currentUser(r)
	if err != nil || !ok {
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthenticated)
		return 0, false
	}
	return id, true
}

// pathUserID parses the {userID} URL parameter
func (h *Handler) pathUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return 0, false
	}
	return id, true
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.upgrader, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.hub.Stats())
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck reports ready once every dependency answers
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			h.logger.Warn("readiness check failed", "dependency", c.Name, "error", err)
			h.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("%s unavailable", c.Name))
			return
		}
	}
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// GetTiers returns the tier table
func (h *Handler) GetTiers(w http.ResponseWriter, r *http.Request) {
	tiers := h.service.Tiers()
	resp := make([]TierResponse, len(tiers))
	for i, t := range tiers {
		resp[i] = TierResponse{
			Tier:      t.Tier,
			Level:     t.Level,
			Color:     t.Color,
			MinPoints: t.MinPoints,
		}
		if !t.IsTop() {
			maxPoints := t.MaxPoints - 1
			resp[i].MaxPoints = &maxPoints
		}
	}
	h.writeSuccess(w, resp)
}

// GetMyRanking returns the current user's live ranking
func (h *Handler) GetMyRanking(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	h.writeRanking(w, r, userID)
}

// GetUserRanking returns a user's live ranking
func (h *Handler) GetUserRanking(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}
	h.writeRanking(w, r, userID)
}

func (h *Handler) writeRanking(w http.ResponseWriter, r *http.Request, userID int64) {
	result, err := h.service.GetUserRanking(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "failed to get ranking")
		return
	}
	h.writeSuccess(w, result)
}

// RecalculateMe recalculates and stores the current user's ranking
func (h *Handler) RecalculateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	h.recalculate(w, r, userID)
}

// RecalculateUser recalculates and stores a user's ranking
func (h *Handler) RecalculateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}
	h.recalculate(w, r, userID)
}

func (h *Handler) recalculate(w http.ResponseWriter, r *http.Request, userID int64) {
	result, err := h.service.RecalculateUser(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "failed to recalculate ranking")
		return
	}
	h.writeSuccess(w, result)
}

// leaderboard returns the handler for one leaderboard scope
func (h *Handler) leaderboard(scope domain.Scope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := parseLeaderboardQuery(r)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		q.Scope = scope

		userID, ok, err := currentUser(r)
		if err != nil || (scope == domain.ScopeFriends && !ok) {
			h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthenticated)
			return
		}
		q.CurrentUserID = userID

		if err := h.validator.Validate(q); err != nil {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}

		page, err := h.service.GetLeaderboard(r.Context(), q)
		if err != nil {
			h.writeServiceError(w, err, "failed to get leaderboard")
			return
		}
		h.writeSuccess(w, page)
	}
}

// parseLeaderboardQuery reads the integer query parameters. Range checks are
// left to the validator.
func parseLeaderboardQuery(r *http.Request) (domain.LeaderboardQuery, error) {
	values := r.URL.Query()
	q := domain.LeaderboardQuery{MuscleGroup: values.Get("muscle_group")}

	params := []struct {
		name string
		dst  *int
	}{
		{"page", &q.Page},
		{"per_page", &q.PerPage},
		{"min_age", &q.MinAge},
		{"max_age", &q.MaxAge},
	}
	for _, p := range params {
		raw := values.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidRequest, p.name)
		}
		*p.dst = n
	}
	return q, nil
}
