package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/newsradar/backend/internal/config"
	"github.com/newsradar/backend/internal/enrich"
	"github.com/newsradar/backend/internal/export"
	"github.com/newsradar/backend/internal/fetch"
	"github.com/newsradar/backend/internal/logger"
	"github.com/newsradar/backend/internal/models"
	"github.com/newsradar/backend/internal/pipeline"
	"github.com/newsradar/backend/internal/store"
)

const (
	inferenceTimeout = 30 * time.Second
	runTimeout       = 2 * time.Minute
)

func main() {
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	storeClient, err := store.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init store", slog.Any("err", err))
		os.Exit(1)
	}

	writer := export.NewWriter(cfg.ArtifactDir, log)
	runner := newRunner(cfg.Pipeline, storeClient, writer, log)

	srv := &server{log: log, store: storeClient, writer: writer, runner: runner}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)
	r.Post("/api/news", srv.handleIngest)
	r.Get("/api/download/{searchWord}", srv.handleDownload)

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      runTimeout + 15*time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

// newRunner wires the pipeline stages against live collaborators.
func newRunner(cfg config.Pipeline, storeClient *store.Client, writer *export.Writer, log *slog.Logger) *pipeline.Runner {
	fetcher := fetch.New(cfg.GoogleNewsBase, writer, log)

	classifier := enrich.NewCategoryClassifier(cfg.ClassifierURL, cfg.InferenceToken, inferenceTimeout)
	analyzers := sentimentAnalyzers(cfg)
	enricher := enrich.New(classifier, analyzers, cfg.EnrichConcurrency, log)

	return pipeline.NewRunner(fetcher, enricher, storeClient, writer, log)
}

// sentimentAnalyzers builds the sentiment-eligible category table. Adding a
// category means adding a URL here; merge and export are unaffected.
func sentimentAnalyzers(cfg config.Pipeline) map[models.Category]enrich.SentimentAnalyzer {
	analyzers := make(map[models.Category]enrich.SentimentAnalyzer)
	if cfg.SentimentWorldURL != "" {
		analyzers[models.CategoryWorld] = enrich.NewSentimentModel(cfg.SentimentWorldURL, cfg.InferenceToken, inferenceTimeout)
	}
	if cfg.SentimentBusinessURL != "" {
		analyzers[models.CategoryBusiness] = enrich.NewSentimentModel(cfg.SentimentBusinessURL, cfg.InferenceToken, inferenceTimeout)
	}
	return analyzers
}

type server struct {
	log    *slog.Logger
	store  *store.Client
	writer *export.Writer
	runner *pipeline.Runner
}

type ingestRequest struct {
	SearchWord string `json:"search_word"`
	DaysBack   int    `json:"days_back"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), runTimeout)
	defer cancel()

	if err := s.runner.Run(ctx, req.SearchWord, req.DaysBack); err != nil {
		s.log.Error("pipeline run failed",
			slog.String("search_word", req.SearchWord),
			slog.Any("err", err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to process news data"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "news data processed"})
}

func (s *server) handleDownload(w http.ResponseWriter, r *http.Request) {
	searchWord := strings.TrimSpace(chi.URLParam(r, "searchWord"))
	// The search word is interpolated into artifact filenames.
	if searchWord == "" || strings.ContainsAny(searchWord, `/\`) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid search word"})
		return
	}
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	if category == "" {
		category = export.NameAll
	}

	f, err := s.writer.Open(searchWord, category)
	if errors.Is(err, export.ErrArtifactNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "file not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(f.Name())+`"`)
	if _, err := io.Copy(w, f); err != nil {
		s.log.Error("send artifact", slog.Any("err", err))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// nothing better to do
	}
}
