package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/djec2006-hash/News-Flow-sub001/internal/models"
	"github.com/djec2006-hash/News-Flow-sub001/internal/service"
)

type accountResolver interface {
	FindByToken(ctx context.Context, token string) (*models.UserAccount, error)
}

type flowGenerator interface {
	Generate(ctx context.Context, user *models.UserAccount, extraInstructions string) (*service.GenerateResult, error)
}

type flowReader interface {
	GetByID(ctx context.Context, id int64) (*models.Flow, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]models.Flow, error)
}

type usageReporter interface {
	Usage(ctx context.Context, user *models.UserAccount) (count, limit int, err error)
}

type pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	addr     string
	log      *slog.Logger
	accounts accountResolver
	flows    flowGenerator
	reader   flowReader
	usage    usageReporter
	db       pinger
	router   *chi.Mux
}

func NewServer(addr string, log *slog.Logger, accounts accountResolver, flows flowGenerator, reader flowReader, usage usageReporter, db pinger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		addr:     addr,
		log:      log,
		accounts: accounts,
		flows:    flows,
		reader:   reader,
		usage:    usage,
		db:       db,
		router:   r,
	}
	r.Get("/healthz", s.handleHealth)
	r.Group(func(protected chi.Router) {
		protected.Use(s.authMiddleware())
		protected.Post("/flows", s.handleGenerateFlow)
		protected.Get("/flows", s.handleListFlows)
		protected.Get("/flows/{id}", s.handleGetFlow)
		protected.Get("/usage", s.handleUsage)
	})
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute, // flow generation holds the connection
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("api shutdown error", "err", err)
		}
	}()

	s.log.Info("api listening", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api listen: %w", err)
	}
	return nil
}

type contextKey string

const userContextKey contextKey = "user"

func (s *Server) authMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				s.writeError(w, http.StatusUnauthorized, &service.FlowError{Code: service.CodeUnauthenticated, Message: "missing bearer token"})
				return
			}
			user, err := s.accounts.FindByToken(r.Context(), token)
			if err != nil {
				s.internalError(w, err)
				return
			}
			if user == nil {
				s.writeError(w, http.StatusUnauthorized, &service.FlowError{Code: service.CodeUnauthenticated, Message: "unknown token"})
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func userFrom(r *http.Request) *models.UserAccount {
	user, _ := r.Context().Value(userContextKey).(*models.UserAccount)
	return user
}

type generateRequest struct {
	ExtraInstructions string `json:"extra_instructions"`
}

type flowResponse struct {
	ID                 int64                `json:"id,omitempty"`
	Warning            string               `json:"warning,omitempty"`
	Summary            string               `json:"summary"`
	Body               string               `json:"body"`
	Sections           []models.FlowSection `json:"sections,omitempty"`
	Sources            []string             `json:"sources,omitempty"`
	ElapsedTimeSeconds float64              `json:"elapsed_time_seconds"`
}

func (s *Server) handleGenerateFlow(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req generateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}

	result, err := s.flows.Generate(r.Context(), user, req.ExtraInstructions)
	if err != nil {
		if fe, ok := service.AsFlowError(err); ok {
			s.writeError(w, statusForCode(fe.Code), fe)
			return
		}
		s.internalError(w, err)
		return
	}

	elapsed := result.Elapsed.Seconds()
	if result.Saved {
		s.writeJSON(w, http.StatusCreated, flowResponse{
			ID:                 result.ID,
			Summary:            result.Summary,
			Body:               result.Body,
			ElapsedTimeSeconds: elapsed,
		})
		return
	}
	// Persistence degraded: still a success, with the full content inline.
	s.writeJSON(w, http.StatusOK, flowResponse{
		Warning:            result.Warning,
		Summary:            result.Summary,
		Body:               result.Body,
		Sections:           result.Sections,
		Sources:            result.Sources,
		ElapsedTimeSeconds: elapsed,
	})
}

type flowListItem struct {
	ID            int64     `json:"id"`
	Summary       string    `json:"summary"`
	TopicsCovered string    `json:"topics_covered"`
	Delivered     bool      `json:"delivered"`
	CreatedAt     time.Time `json:"created_at"`
}

func (s *Server) handleListFlows(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	flows, err := s.reader.ListByUser(r.Context(), user.ID, 20)
	if err != nil {
		s.internalError(w, err)
		return
	}
	items := make([]flowListItem, 0, len(flows))
	for _, f := range flows {
		items = append(items, flowListItem{
			ID:            f.ID,
			Summary:       f.Summary,
			TopicsCovered: f.TopicsCovered,
			Delivered:     f.Delivered,
			CreatedAt:     f.CreatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, items)
}

type flowDetail struct {
	ID            int64               `json:"id"`
	Summary       string              `json:"summary"`
	Body          string              `json:"body"`
	TopicsCovered string              `json:"topics_covered"`
	Document      models.FlowDocument `json:"document"`
	Delivered     bool                `json:"delivered"`
	CreatedAt     time.Time           `json:"created_at"`
}

func (s *Server) handleGetFlow(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	flow, err := s.reader.GetByID(r.Context(), id)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if flow == nil || flow.OwnerID != user.ID {
		http.Error(w, "flow not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, flowDetail{
		ID:            flow.ID,
		Summary:       flow.Summary,
		Body:          flow.Body,
		TopicsCovered: flow.TopicsCovered,
		Document:      flow.Document,
		Delivered:     flow.Delivered,
		CreatedAt:     flow.CreatedAt,
	})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	count, limit, err := s.usage.Usage(r.Context(), user)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"week_count":     count,
		"week_limit":     limit,
		"credit_balance": user.CreditBalance,
		"plan_tier":      user.PlanTier,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		http.Error(w, "db unavailable", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func statusForCode(code string) int {
	switch code {
	case service.CodeUnauthenticated:
		return http.StatusUnauthorized
	case service.CodeLimitReached:
		return http.StatusTooManyRequests
	case service.CodeCreditsExceeded:
		return http.StatusPaymentRequired
	case service.CodeNoActiveTopics:
		return http.StatusUnprocessableEntity
	case service.CodeNoSectionsGenerated:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	Count   int    `json:"count,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, fe *service.FlowError) {
	s.writeJSON(w, status, errorResponse{
		Code:    fe.Code,
		Message: fe.Message,
		Count:   fe.Count,
		Limit:   fe.Limit,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("api handler error", "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func parseID(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}
