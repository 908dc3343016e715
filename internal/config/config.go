package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Common contains Elasticsearch and artifact parameters shared by every service.
type Common struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string
	ArtifactDir        string
}

// Pipeline holds the fetch and enrichment settings used by both trigger paths.
type Pipeline struct {
	GoogleNewsBase       string
	ClassifierURL        string
	SentimentWorldURL    string
	SentimentBusinessURL string
	InferenceToken       string
	EnrichConcurrency    int
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	Pipeline
	BindAddr string
}

// Worker holds configuration for the Kafka -> pipeline worker.
type Worker struct {
	Common
	Pipeline
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaConsumer string
}

// Retention configures the artifact cleanup loop.
type Retention struct {
	Common
	Interval time.Duration
	MaxAge   time.Duration
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{
		Common:   loadCommon(),
		Pipeline: loadPipeline(),
		BindAddr: getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
	}

	if err := c.Pipeline.validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	c := &Worker{
		Common:        loadCommon(),
		Pipeline:      loadPipeline(),
		KafkaBrokers:  splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "news_requests"),
		KafkaConsumer: getEnv("KAFKA_CONSUMER_GROUP", "news-worker"),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}

	if err := c.Pipeline.validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{
		Common:   loadCommon(),
		Interval: getDuration("RETENTION_CRON", "24h"),
		MaxAge:   getDuration("RETENTION_MAX_AGE", "168h"),
	}

	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}

	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_CRON must be positive")
	}

	return c, nil
}

func loadCommon() Common {
	return Common{
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "headlindex"),
		ArtifactDir:        getEnv("ARTIFACT_DIR", "temp"),
	}
}

func loadPipeline() Pipeline {
	return Pipeline{
		GoogleNewsBase: getEnv("GOOGLE_NEWS_BASE", "https://news.google.com/rss/search"),
		ClassifierURL: getEnv("CLASSIFIER_URL",
			"https://api-inference.huggingface.co/models/logicalqubit/deberta-v3-large-news-classifier"),
		SentimentWorldURL: getEnv("SENTIMENT_URL_WORLD",
			"https://api-inference.huggingface.co/models/cardiffnlp/twitter-roberta-base-sentiment-latest"),
		SentimentBusinessURL: getEnv("SENTIMENT_URL_BUSINESS",
			"https://api-inference.huggingface.co/models/ahmedrachid/FinancialBERT-Sentiment-Analysis"),
		InferenceToken:    getEnv("INFERENCE_TOKEN", ""),
		EnrichConcurrency: getInt("ENRICH_CONCURRENCY", 4),
	}
}

func (p Pipeline) validate() error {
	if p.GoogleNewsBase == "" {
		return fmt.Errorf("GOOGLE_NEWS_BASE must not be empty")
	}
	if p.ClassifierURL == "" {
		return fmt.Errorf("CLASSIFIER_URL must not be empty")
	}
	if p.EnrichConcurrency <= 0 {
		return fmt.Errorf("ENRICH_CONCURRENCY must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
