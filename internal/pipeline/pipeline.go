package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/newsradar/backend/internal/models"
)

// Fetcher is the fetch adapter stage.
type Fetcher interface {
	Fetch(ctx context.Context, searchWord string, daysBack int) ([]models.HeadlineRecord, error)
}

// Enricher is the classification and sentiment stage.
type Enricher interface {
	Enrich(ctx context.Context, rows []models.HeadlineRecord) []models.HeadlineRecord
}

// Store is the consolidated headline store.
type Store interface {
	Merge(ctx context.Context, rows []models.HeadlineRecord) error
	QueryBySearchWord(ctx context.Context, searchWord string) ([]models.HeadlineRecord, error)
}

// Exporter regenerates the category export set.
type Exporter interface {
	WriteSet(searchWord string, rows []models.HeadlineRecord) error
	SortArtifacts(searchWord string) error
}

// Runner sequences fetch -> enrich -> merge -> export for one request. Any
// stage failure aborts the remaining stages; durable side effects already
// produced (the Fragment artifact, the store mutation) stay in place.
type Runner struct {
	fetcher  Fetcher
	enricher Enricher
	store    Store
	exporter Exporter
	log      *slog.Logger
}

// NewRunner wires the four stages.
func NewRunner(fetcher Fetcher, enricher Enricher, store Store, exporter Exporter, log *slog.Logger) *Runner {
	return &Runner{
		fetcher:  fetcher,
		enricher: enricher,
		store:    store,
		exporter: exporter,
		log:      log,
	}
}

// Run executes one pipeline request to completion.
func (r *Runner) Run(ctx context.Context, searchWord string, daysBack int) error {
	searchWord = strings.TrimSpace(searchWord)
	if searchWord == "" {
		return fmt.Errorf("search_word must not be empty")
	}
	// The search word is interpolated into artifact filenames.
	if strings.ContainsAny(searchWord, `/\`) {
		return fmt.Errorf("search_word must not contain path separators")
	}
	if daysBack < 0 {
		return fmt.Errorf("days_back cannot be negative")
	}

	log := r.log.With(
		slog.String("run_id", uuid.NewString()),
		slog.String("search_word", searchWord),
	)

	rows, err := r.fetcher.Fetch(ctx, searchWord, daysBack)
	if err != nil {
		return fmt.Errorf("fetch stage: %w", err)
	}

	enriched := r.enricher.Enrich(ctx, rows)
	log.Info("enriched headlines", slog.Int("fetched", len(rows)), slog.Int("kept", len(enriched)))

	if err := r.store.Merge(ctx, enriched); err != nil {
		return fmt.Errorf("merge stage: %w", err)
	}

	stored, err := r.store.QueryBySearchWord(ctx, searchWord)
	if err != nil {
		return fmt.Errorf("export stage: %w", err)
	}

	if err := r.exporter.WriteSet(searchWord, stored); err != nil {
		return fmt.Errorf("export stage: %w", err)
	}

	if err := r.exporter.SortArtifacts(searchWord); err != nil {
		return fmt.Errorf("sort stage: %w", err)
	}

	log.Info("pipeline run completed", slog.Int("stored", len(stored)))
	return nil
}
