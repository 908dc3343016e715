package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/newsradar/backend/internal/export"
)

func downloadRequest(searchWord, category string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/download/word", nil)
	if category != "" {
		q := req.URL.Query()
		q.Set("category", category)
		req.URL.RawQuery = q.Encode()
	}

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("searchWord", searchWord)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestHandleDownloadRejectsPathSeparators(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := &server{log: log, writer: export.NewWriter(t.TempDir(), log)}

	for _, word := range []string{"../secret", `..\secret`, "a/b"} {
		rec := httptest.NewRecorder()
		srv.handleDownload(rec, downloadRequest(word, ""))
		require.Equal(t, http.StatusBadRequest, rec.Code, "search word %q must be rejected", word)
	}
}

func TestHandleDownloadMissingArtifactIs404(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := &server{log: log, writer: export.NewWriter(t.TempDir(), log)}

	rec := httptest.NewRecorder()
	srv.handleDownload(rec, downloadRequest("word", "World"))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
