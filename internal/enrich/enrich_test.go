package enrich_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/newsradar/backend/internal/enrich"
	"github.com/newsradar/backend/internal/models"
)

type stubClassifier struct {
	labels map[string]models.Category
}

func (s *stubClassifier) Classify(_ context.Context, title string) (models.Category, error) {
	category, ok := s.labels[title]
	if !ok {
		return "", errors.New("model unavailable")
	}
	return category, nil
}

type stubAnalyzer struct {
	sentiment models.Sentiment
	err       error
}

func (s *stubAnalyzer) Analyze(context.Context, string) (models.Sentiment, error) {
	return s.sentiment, s.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func headline(title string) models.HeadlineRecord {
	return models.HeadlineRecord{
		Title:      title,
		Datetime:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Link:       "http://example.com",
		SearchWord: "q",
	}
}

func TestEnrichDropsUnclassifiedRows(t *testing.T) {
	classifier := &stubClassifier{labels: map[string]models.Category{
		"classified": models.CategoryTechnology,
	}}
	e := enrich.New(classifier, nil, 2, discard())

	got := e.Enrich(context.Background(), []models.HeadlineRecord{
		headline("classified"),
		headline("unclassifiable"),
	})

	require.Len(t, got, 1)
	require.Equal(t, "classified", got[0].Title)
	require.Equal(t, models.CategoryTechnology, got[0].Category)
}

func TestEnrichSentimentOnlyForEligibleCategories(t *testing.T) {
	classifier := &stubClassifier{labels: map[string]models.Category{
		"world story": models.CategoryWorld,
		"tech story":  models.CategoryTechnology,
	}}
	analyzers := map[models.Category]enrich.SentimentAnalyzer{
		models.CategoryWorld: &stubAnalyzer{sentiment: models.SentimentNegative},
	}
	e := enrich.New(classifier, analyzers, 2, discard())

	got := e.Enrich(context.Background(), []models.HeadlineRecord{
		headline("world story"),
		headline("tech story"),
	})

	require.Len(t, got, 2)
	for _, row := range got {
		switch row.Category {
		case models.CategoryWorld:
			require.Equal(t, models.SentimentNegative, row.Sentiment)
		case models.CategoryTechnology:
			require.Empty(t, row.Sentiment)
		}
	}
}

func TestEnrichOneAnalyzerFailureDoesNotBlockOthers(t *testing.T) {
	classifier := &stubClassifier{labels: map[string]models.Category{
		"world story":    models.CategoryWorld,
		"business story": models.CategoryBusiness,
	}}
	analyzers := map[models.Category]enrich.SentimentAnalyzer{
		models.CategoryWorld:    &stubAnalyzer{err: errors.New("model down")},
		models.CategoryBusiness: &stubAnalyzer{sentiment: models.SentimentPositive},
	}
	e := enrich.New(classifier, analyzers, 2, discard())

	got := e.Enrich(context.Background(), []models.HeadlineRecord{
		headline("world story"),
		headline("business story"),
	})

	require.Len(t, got, 2)
	for _, row := range got {
		switch row.Category {
		case models.CategoryWorld:
			require.Empty(t, row.Sentiment, "failed analyzer degrades the row")
		case models.CategoryBusiness:
			require.Equal(t, models.SentimentPositive, row.Sentiment)
		}
	}
}

func TestEnrichEmptyBatch(t *testing.T) {
	e := enrich.New(&stubClassifier{}, nil, 2, discard())
	require.Empty(t, e.Enrich(context.Background(), nil))
}

func TestCategoryClassifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[{"label":"Business","score":0.91},{"label":"World","score":0.05}]]`))
	}))
	defer srv.Close()

	c := enrich.NewCategoryClassifier(srv.URL, "", time.Second)
	category, err := c.Classify(context.Background(), "Markets rally")
	require.NoError(t, err)
	require.Equal(t, models.CategoryBusiness, category)
}

func TestCategoryClassifierRejectsUnknownLabel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[{"label":"Gossip","score":0.99}]]`))
	}))
	defer srv.Close()

	c := enrich.NewCategoryClassifier(srv.URL, "", time.Second)
	_, err := c.Classify(context.Background(), "title")
	require.Error(t, err)
}

func TestCategoryClassifierEndpointError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := enrich.NewCategoryClassifier(srv.URL, "", time.Second)
	_, err := c.Classify(context.Background(), "title")
	require.Error(t, err)
}

func TestSentimentModelLabelMapping(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		want  models.Sentiment
		fails bool
	}{
		{name: "plain label", body: `[[{"label":"positive","score":0.8}]]`, want: models.SentimentPositive},
		{name: "flat shape", body: `[{"label":"neutral","score":0.7}]`, want: models.SentimentNeutral},
		{name: "indexed label", body: `[[{"label":"LABEL_0","score":0.9}]]`, want: models.SentimentNegative},
		{name: "top score wins", body: `[[{"label":"negative","score":0.2},{"label":"positive","score":0.7}]]`, want: models.SentimentPositive},
		{name: "unknown label", body: `[[{"label":"ambivalent","score":0.9}]]`, fails: true},
		{name: "empty response", body: `[]`, fails: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			m := enrich.NewSentimentModel(srv.URL, "", time.Second)
			sentiment, err := m.Analyze(context.Background(), "title")
			if tt.fails {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, sentiment)
		})
	}
}
