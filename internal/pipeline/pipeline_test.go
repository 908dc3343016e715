package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/newsradar/backend/internal/models"
	"github.com/newsradar/backend/internal/pipeline"
)

type stubFetcher struct {
	rows []models.HeadlineRecord
	err  error
}

func (s *stubFetcher) Fetch(context.Context, string, int) ([]models.HeadlineRecord, error) {
	return s.rows, s.err
}

type stubEnricher struct {
	called bool
}

func (s *stubEnricher) Enrich(_ context.Context, rows []models.HeadlineRecord) []models.HeadlineRecord {
	s.called = true
	out := make([]models.HeadlineRecord, len(rows))
	for i, row := range rows {
		row.Category = models.CategoryWorld
		out[i] = row
	}
	return out
}

type stubStore struct {
	merged   []models.HeadlineRecord
	mergeErr error
	queryErr error
}

func (s *stubStore) Merge(_ context.Context, rows []models.HeadlineRecord) error {
	if s.mergeErr != nil {
		return s.mergeErr
	}
	s.merged = append(s.merged, rows...)
	return nil
}

func (s *stubStore) QueryBySearchWord(context.Context, string) ([]models.HeadlineRecord, error) {
	return s.merged, s.queryErr
}

type stubExporter struct {
	wroteSet bool
	sorted   bool
	writeErr error
	sortErr  error
}

func (s *stubExporter) WriteSet(string, []models.HeadlineRecord) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.wroteSet = true
	return nil
}

func (s *stubExporter) SortArtifacts(string) error {
	if s.sortErr != nil {
		return s.sortErr
	}
	s.sorted = true
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fetched() []models.HeadlineRecord {
	return []models.HeadlineRecord{{
		Title:      "A",
		Datetime:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Link:       "http://x",
		SearchWord: "q",
	}}
}

func TestRunHappyPath(t *testing.T) {
	enricher := &stubEnricher{}
	st := &stubStore{}
	exporter := &stubExporter{}
	r := pipeline.NewRunner(&stubFetcher{rows: fetched()}, enricher, st, exporter, discard())

	require.NoError(t, r.Run(context.Background(), "q", 3))
	require.True(t, enricher.called)
	require.Len(t, st.merged, 1)
	require.True(t, exporter.wroteSet)
	require.True(t, exporter.sorted)
}

func TestRunFetchFailureAbortsRemainingStages(t *testing.T) {
	enricher := &stubEnricher{}
	st := &stubStore{}
	exporter := &stubExporter{}
	r := pipeline.NewRunner(&stubFetcher{err: errors.New("source down")}, enricher, st, exporter, discard())

	require.Error(t, r.Run(context.Background(), "q", 3))
	require.False(t, enricher.called)
	require.Empty(t, st.merged)
	require.False(t, exporter.wroteSet)
}

func TestRunMergeFailureAbortsExport(t *testing.T) {
	exporter := &stubExporter{}
	st := &stubStore{mergeErr: errors.New("store down")}
	r := pipeline.NewRunner(&stubFetcher{rows: fetched()}, &stubEnricher{}, st, exporter, discard())

	require.Error(t, r.Run(context.Background(), "q", 3))
	require.False(t, exporter.wroteSet)
	require.False(t, exporter.sorted)
}

func TestRunSortFailureSurfaces(t *testing.T) {
	exporter := &stubExporter{sortErr: errors.New("corrupt artifact")}
	r := pipeline.NewRunner(&stubFetcher{rows: fetched()}, &stubEnricher{}, &stubStore{}, exporter, discard())

	err := r.Run(context.Background(), "q", 3)
	require.Error(t, err)
	require.True(t, exporter.wroteSet, "write set ran before the sort pass failed")
}

func TestRunValidatesRequest(t *testing.T) {
	r := pipeline.NewRunner(&stubFetcher{}, &stubEnricher{}, &stubStore{}, &stubExporter{}, discard())

	require.Error(t, r.Run(context.Background(), "  ", 3))
	require.Error(t, r.Run(context.Background(), "q", -1))
}

func TestRunRejectsPathSeparatorsInSearchWord(t *testing.T) {
	st := &stubStore{}
	exporter := &stubExporter{}
	r := pipeline.NewRunner(&stubFetcher{rows: fetched()}, &stubEnricher{}, st, exporter, discard())

	require.Error(t, r.Run(context.Background(), "../escape", 3))
	require.Error(t, r.Run(context.Background(), `..\escape`, 3))
	require.Empty(t, st.merged)
	require.False(t, exporter.wroteSet)
}
