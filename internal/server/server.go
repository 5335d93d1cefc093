package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/paperdigest/paper-service/internal/config"
	"github.com/paperdigest/paper-service/internal/model"
	"github.com/paperdigest/paper-service/internal/pipeline"
	"github.com/paperdigest/paper-service/internal/store"
	"github.com/paperdigest/paper-service/internal/submit"
)

const maxBatchSize = 50

// Server exposes the paper service over HTTP.
type Server struct {
	store     store.Store
	submitter *submit.Service
	pipeline  *pipeline.Pipeline
	crawlCfg  config.CrawlConfig
	http      *http.Server
}

func New(st store.Store, submitter *submit.Service, p *pipeline.Pipeline, cfg config.ServerConfig, crawlCfg config.CrawlConfig) *Server {
	s := &Server{
		store:     st,
		submitter: submitter,
		pipeline:  p,
		crawlCfg:  crawlCfg,
	}
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/papers/submit", s.handleSubmit)
		r.Get("/papers", s.handleListPapers)
		r.Get("/papers/{id}", s.handleGetPaper)
		r.Post("/tasks/crawl", s.handleCrawl)
	})
	return r
}

// Start begins serving and blocks until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	zap.L().Info("http server listening", zap.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

type submitRequest struct {
	Source   string   `json:"source"`
	PaperIDs []string `json:"paper_ids"`
}

type submitResponse struct {
	Total   int                      `json:"total"`
	Results []model.SubmissionResult `json:"results"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, "source is required")
		return
	}
	if len(req.PaperIDs) == 0 {
		writeError(w, http.StatusBadRequest, "paper_ids must not be empty")
		return
	}
	if len(req.PaperIDs) > maxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("paper_ids exceeds maximum of %d", maxBatchSize))
		return
	}

	results, err := s.submitter.Submit(r.Context(), req.Source, req.PaperIDs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Kick off enrichment for newly queued papers without holding the
	// request open.
	for _, result := range results {
		if result.Status != model.SubmissionQueued {
			continue
		}
		paperID := result.PaperID
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			if err := s.pipeline.ProcessPaper(ctx, paperID); err != nil {
				zap.L().Error("paper processing failed",
					zap.Int64("paper_id", paperID),
					zap.Error(err))
			}
		}()
	}

	writeJSON(w, http.StatusAccepted, submitResponse{Total: len(results), Results: results})
}

func (s *Server) handleListPapers(w http.ResponseWriter, r *http.Request) {
	filter := store.PaperFilter{
		Category: r.URL.Query().Get("category"),
		Status:   r.URL.Query().Get("status"),
	}
	filter.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	filter.PageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))

	papers, err := s.store.ListPapers(r.Context(), filter)
	if err != nil {
		zap.L().Error("list papers failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list papers")
		return
	}
	if papers == nil {
		papers = []model.Paper{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"papers": papers})
}

func (s *Server) handleGetPaper(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid paper id")
		return
	}

	paper, err := s.store.GetPaper(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "paper not found")
		return
	}
	if err != nil {
		zap.L().Error("get paper failed", zap.Int64("paper_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load paper")
		return
	}
	writeJSON(w, http.StatusOK, paper)
}

func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()
		if err := s.pipeline.CrawlOnce(ctx, s.crawlCfg); err != nil {
			zap.L().Error("crawl failed", zap.Error(err))
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "crawl started"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
