package enrich

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/newsradar/backend/internal/models"
)

// Classifier assigns a category from the fixed set to a headline title.
type Classifier interface {
	Classify(ctx context.Context, title string) (models.Category, error)
}

// SentimentAnalyzer labels a headline title with a sentiment. One analyzer is
// configured per sentiment-eligible category; each is an independent
// capability.
type SentimentAnalyzer interface {
	Analyze(ctx context.Context, title string) (models.Sentiment, error)
}

// Enricher populates category and sentiment on fetched rows. All model
// failures degrade the affected row (absent field) instead of aborting the
// batch; rows left without a category are dropped here, which is the single
// filtering point before the store.
type Enricher struct {
	classifier  Classifier
	analyzers   map[models.Category]SentimentAnalyzer
	concurrency int
	log         *slog.Logger
}

// New builds an Enricher. analyzers maps each sentiment-eligible category to
// its model; categories absent from the map keep sentiment unset.
func New(classifier Classifier, analyzers map[models.Category]SentimentAnalyzer, concurrency int, log *slog.Logger) *Enricher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Enricher{
		classifier:  classifier,
		analyzers:   analyzers,
		concurrency: concurrency,
		log:         log,
	}
}

// Enrich classifies every row and assigns sentiment where the row's category
// has a configured analyzer. Per-row model calls run on a bounded worker
// pool; each row's outcome is independent, so one category's model failure
// never blocks rows in another category.
func (e *Enricher) Enrich(ctx context.Context, rows []models.HeadlineRecord) []models.HeadlineRecord {
	if len(rows) == 0 {
		return nil
	}

	classified := make([]models.HeadlineRecord, len(rows))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			category, err := e.classifier.Classify(ctx, row.Title)
			if err != nil {
				e.log.Debug("classify failed, dropping row",
					slog.String("title", row.Title), slog.Any("err", err))
			} else {
				row.Category = category
			}
			classified[i] = row
			return nil
		})
	}
	g.Wait()

	kept := make([]models.HeadlineRecord, 0, len(classified))
	for _, row := range classified {
		if row.Category == "" {
			continue
		}
		kept = append(kept, row)
	}

	e.analyzeSentiment(ctx, kept)
	return kept
}

// analyzeSentiment partitions kept rows by category and dispatches each
// eligible row to its category's analyzer on the shared pool.
func (e *Enricher) analyzeSentiment(ctx context.Context, rows []models.HeadlineRecord) {
	byCategory := make(map[models.Category][]int)
	for i, row := range rows {
		if _, eligible := e.analyzers[row.Category]; eligible {
			byCategory[row.Category] = append(byCategory[row.Category], i)
		}
	}

	// Each goroutine writes a distinct index, so no locking is needed.
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for category, indexes := range byCategory {
		category := category
		analyzer := e.analyzers[category]
		for _, i := range indexes {
			i := i
			g.Go(func() error {
				sentiment, err := analyzer.Analyze(ctx, rows[i].Title)
				if err != nil {
					e.log.Debug("sentiment failed, leaving absent",
						slog.String("category", string(category)),
						slog.String("title", rows[i].Title),
						slog.Any("err", err))
					return nil
				}
				rows[i].Sentiment = sentiment
				return nil
			})
		}
	}
	g.Wait()
}
