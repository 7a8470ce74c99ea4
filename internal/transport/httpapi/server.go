// Package httpapi exposes the ranking pipeline over HTTP: a query
// endpoint, a health check, and Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/siprank/internal/domain"
	"github.com/kailas-cloud/siprank/internal/usecase/health"
	"github.com/kailas-cloud/siprank/internal/usecase/rank"
)

// Pipeline is the ranking surface the server fronts.
type Pipeline interface {
	Rank(ctx context.Context, query string) (rank.Result, error)
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server handles the HTTP API.
type Server struct {
	pipeline      Pipeline
	health        *health.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(pipeline Pipeline, healthSvc *health.Service, logger *zap.Logger) *Server {
	s := &Server{
		pipeline: pipeline,
		health:   healthSvc,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway),
		sentinelHandler(domain.ErrRetrievalFailed, http.StatusBadGateway),
		sentinelHandler(domain.ErrCatalogNotLoaded, http.StatusServiceUnavailable),
	}
	return s
}

// Routes registers all endpoints on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/api/query", s.handleQuery)
	r.Get("/api/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

type queryRequest struct {
	Query string `json:"query"`
}

type productResponse struct {
	ProductID     string  `json:"product_id"`
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	Category      string  `json:"category"`
	Temperature   string  `json:"temperature"`
	Price         float64 `json:"price"`
	Calories      float64 `json:"calories"`
	SugarGrams    float64 `json:"sugar_g"`
	CaffeineMg    float64 `json:"caffeine_mg"`
	ContainsDairy bool    `json:"contains_dairy"`
	IsVegan       bool    `json:"is_vegan"`
	Score         float64 `json:"score"`
}

type queryResponse struct {
	Products []productResponse `json:"products"`
	Query    string            `json:"query"`
	Count    int               `json:"count"`
	Relaxed  bool              `json:"relaxed,omitempty"`
	Degraded bool              `json:"degraded,omitempty"`
}

// handleQuery handles POST /api/query.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "no query provided")
		return
	}

	result, err := s.pipeline.Rank(r.Context(), req.Query)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	products := make([]productResponse, len(result.Candidates))
	for i := range result.Candidates {
		p := result.Candidates[i].Product()
		products[i] = productResponse{
			ProductID:     p.ID,
			Name:          p.Name,
			Description:   p.Description,
			Category:      string(p.Category),
			Temperature:   string(p.Temperature),
			Price:         p.Price,
			Calories:      p.Calories,
			SugarGrams:    p.SugarGrams,
			CaffeineMg:    p.CaffeineMg,
			ContainsDairy: p.ContainsDairy,
			IsVegan:       p.IsVegan,
			Score:         result.Candidates[i].Score(),
		}
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Products: products,
		Query:    req.Query,
		Count:    len(products),
		Relaxed:  result.Relaxed,
		Degraded: result.Degraded,
	})
}

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != health.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrEmbeddingProviderError,
		domain.ErrExtractionProviderError,
		domain.ErrRetrievalFailed,
		domain.ErrCatalogNotLoaded,
		domain.ErrNotFound,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
