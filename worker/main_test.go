package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	searchWord string
	daysBack   int
	err        error
	calls      int
}

func (s *stubRunner) Run(_ context.Context, searchWord string, daysBack int) error {
	s.calls++
	s.searchWord = searchWord
	s.daysBack = daysBack
	return s.err
}

func TestProcessMessageRunsPipeline(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := &stubRunner{}

	payload, err := json.Marshal(ingestRequest{SearchWord: "climate", DaysBack: 7})
	require.NoError(t, err)

	require.NoError(t, processMessage(context.Background(), log, runner, kafka.Message{Value: payload}))
	require.Equal(t, 1, runner.calls)
	require.Equal(t, "climate", runner.searchWord)
	require.Equal(t, 7, runner.daysBack)
}

func TestProcessMessageRejectsBadPayload(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := &stubRunner{}

	err := processMessage(context.Background(), log, runner, kafka.Message{Value: []byte("not json")})
	require.Error(t, err)
	require.Zero(t, runner.calls)
}
