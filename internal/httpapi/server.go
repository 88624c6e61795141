package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/sitecheck/internal/batch"
	"github.com/hamed0406/sitecheck/internal/domain"
	apimw "github.com/hamed0406/sitecheck/internal/httpapi/middleware"
	"github.com/hamed0406/sitecheck/internal/repo"
	"github.com/hamed0406/sitecheck/internal/targets"
)

const (
	maxBodyBytes = 1 << 20
	maxListLimit = 500
)

// Limits are per-IP request budgets; zero RPM disables a limiter.
type Limits struct {
	PublicRPM   int
	PublicBurst int
	AdminRPM    int
	AdminBurst  int
}

type Server struct {
	Logger  *zap.Logger
	Runner  *batch.Runner
	Store   repo.BatchStore
	Metrics http.Handler // optional, served on /metrics

	// AllowedOrigins feeds CORS; empty allows any origin.
	AllowedOrigins []string

	validate *validator.Validate
}

func NewServer(l *zap.Logger, r *batch.Runner, store repo.BatchStore, metrics http.Handler) *Server {
	return &Server{
		Logger:   l,
		Runner:   r,
		Store:    store,
		Metrics:  metrics,
		validate: validator.New(),
	}
}

func (s *Server) Router(keys apimw.Keys, lim Limits) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(apimw.RequestLog(s.Logger))
	origins := s.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(lim.PublicRPM, lim.PublicBurst))
			r.Use(apimw.RequireAny(keys))
			r.Get("/batches", s.handleListBatches)
			r.Get("/batches/latest", s.handleLatestBatch)
			r.Get("/batches/{id}", s.handleGetBatch)
		})
		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(lim.AdminRPM, lim.AdminBurst))
			r.Use(apimw.RequireAdmin(keys))
			r.Post("/checks", s.handleRunChecks)
		})
	})

	return r
}

type checkRequest struct {
	URLs    []string `json:"urls" validate:"required,min=1,max=1000,dive,required,url"`
	Ordered *bool    `json:"ordered"`
}

type batchResponse struct {
	*domain.Batch
	Summary domain.Summary `json:"summary"`
}

func (s *Server) handleRunChecks(w http.ResponseWriter, r *http.Request) {
	var p checkRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if err := s.validate.Struct(p); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	for i, u := range p.URLs {
		if !targets.IsValidURL(u) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("urls[%d]: only http and https urls can be checked", i))
			return
		}
	}

	runner := *s.Runner
	if p.Ordered != nil {
		runner.Ordered = *p.Ordered
	}
	b, err := runner.Run(r.Context(), p.URLs)
	if err != nil {
		s.Logger.Error("check_request_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "batch did not complete")
		return
	}

	s.Logger.Info("check_request_done",
		zap.String("batch_id", b.ID.String()),
		zap.Int("targets", len(p.URLs)),
	)
	writeJSON(w, http.StatusOK, batchResponse{Batch: b, Summary: b.Summary()})
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxListLimit {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxListLimit))
			return
		}
		limit = n
	}

	list, err := s.Store.List(r.Context(), limit)
	if err != nil {
		s.Logger.Error("list_batches_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	if list == nil {
		list = []repo.BatchInfo{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleLatestBatch(w http.ResponseWriter, r *http.Request) {
	b, err := s.Store.Latest(r.Context())
	s.writeBatch(w, b, err)
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid batch id")
		return
	}
	b, err := s.Store.Get(r.Context(), id)
	s.writeBatch(w, b, err)
}

func (s *Server) writeBatch(w http.ResponseWriter, b *domain.Batch, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "batch not found")
	case err != nil:
		s.Logger.Error("get_batch_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup error")
	default:
		writeJSON(w, http.StatusOK, batchResponse{Batch: b, Summary: b.Summary()})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "invalid request"
	}
	fe := ve[0]
	return fmt.Sprintf("%s failed validation: %s", fe.Namespace(), fe.Tag())
}
