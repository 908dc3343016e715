package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

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

// ingestRequest is the message shape consumed from the request topic.
type ingestRequest struct {
	SearchWord string `json:"search_word"`
	DaysBack   int    `json:"days_back"`
}

type pipelineRunner interface {
	Run(ctx context.Context, searchWord string, daysBack int) error
}

func main() {
	log := logger.New("worker")
	cfg, err := config.LoadWorker()
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0, // Disable auto-commit; manual commit only
	})
	defer reader.Close()

	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaTopic + "_dlq",
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", cfg.KafkaTopic+"_dlq"),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := processMessage(ctx, log, runner, msg); err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)

			dlqMsg := kafka.Message{
				Value: msg.Value,
				Headers: append(msg.Headers,
					kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
					kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
					kafka.Header{Key: "error", Value: []byte(err.Error())},
					kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
				),
			}

			// Retry DLQ write with exponential backoff
			dlqSuccess := false
			for attempt := 0; attempt < 5; attempt++ {
				if dlqErr := dlqWriter.WriteMessages(ctx, dlqMsg); dlqErr == nil {
					dlqSuccess = true
					break
				} else {
					backoff := time.Duration(1<<uint(attempt)) * time.Second
					log.Warn("DLQ write failed, retrying",
						slog.Any("err", dlqErr),
						slog.Int("attempt", attempt+1),
						slog.Duration("backoff", backoff),
					)
					select {
					case <-time.After(backoff):
					case <-ctx.Done():
						log.Info("context canceled during DLQ retry")
						return
					}
				}
			}

			// Only commit if the DLQ write succeeded; otherwise reprocess on restart
			if dlqSuccess {
				if err := reader.CommitMessages(ctx, msg); err != nil {
					log.Error("commit failed message to dlq", slog.Any("err", err))
				}
			} else {
				log.Error("DLQ write exhausted retries",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
			}
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

// newRunner wires the pipeline stages against live collaborators.
func newRunner(cfg config.Pipeline, storeClient *store.Client, writer *export.Writer, log *slog.Logger) *pipeline.Runner {
	fetcher := fetch.New(cfg.GoogleNewsBase, writer, log)

	classifier := enrich.NewCategoryClassifier(cfg.ClassifierURL, cfg.InferenceToken, inferenceTimeout)
	analyzers := make(map[models.Category]enrich.SentimentAnalyzer)
	if cfg.SentimentWorldURL != "" {
		analyzers[models.CategoryWorld] = enrich.NewSentimentModel(cfg.SentimentWorldURL, cfg.InferenceToken, inferenceTimeout)
	}
	if cfg.SentimentBusinessURL != "" {
		analyzers[models.CategoryBusiness] = enrich.NewSentimentModel(cfg.SentimentBusinessURL, cfg.InferenceToken, inferenceTimeout)
	}
	enricher := enrich.New(classifier, analyzers, cfg.EnrichConcurrency, log)

	return pipeline.NewRunner(fetcher, enricher, storeClient, writer, log)
}

func processMessage(ctx context.Context, log *slog.Logger, runner pipelineRunner, msg kafka.Message) error {
	var req ingestRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	if err := runner.Run(runCtx, req.SearchWord, req.DaysBack); err != nil {
		return err
	}

	log.Info("processed ingest request",
		slog.String("search_word", req.SearchWord),
		slog.Int("days_back", req.DaysBack),
	)
	return nil
}
