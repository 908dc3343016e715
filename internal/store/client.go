package store

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/newsradar/backend/internal/dedupe"
	"github.com/newsradar/backend/internal/models"
)

// ErrOperation marks any failed read or write against the consolidated store.
var ErrOperation = errors.New("store operation failed")

// maxResultWindow is the Elasticsearch default search window; the consolidated
// store for a single search term is expected to stay well below it.
const maxResultWindow = 10_000

// Client wraps go-elasticsearch with the consolidated headline store
// operations. One fixed index holds every headline ever ingested across all
// search terms; rows are disambiguated by the search_word field.
type Client struct {
	es    *elasticsearch.Client
	index string
	log   *slog.Logger

	// Serializes merges so two concurrent runs cannot interleave writes.
	mu sync.Mutex
}

// Option adjusts the underlying Elasticsearch configuration.
type Option func(*elasticsearch.Config)

// WithTransport overrides the HTTP transport. Tests use it to point the
// client at an in-memory index.
func WithTransport(rt http.RoundTripper) Option {
	return func(cfg *elasticsearch.Config) {
		cfg.Transport = rt
	}
}

// New instantiates the store client.
func New(addr, index string, logger *slog.Logger, opts ...Option) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{es: es, index: index, log: logger}, nil
}

// DocumentID derives the deterministic store ID for a title. Indexing with
// this ID makes every write an upsert-by-title: an incoming row always
// replaces a stored row sharing its title.
func DocumentID(title string) string {
	s := sha1.Sum([]byte(title))
	return hex.EncodeToString(s[:])
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// Health pings the cluster to ensure connectivity.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}

// EnsureIndex creates the store index with its mapping. Creation is
// idempotent: an index that already exists is a no-op.
func (c *Client) EnsureIndex(ctx context.Context) error {
	exists, err := c.es.Indices.Exists(
		[]string{c.index},
		c.es.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: check index: %v", ErrOperation, err)
	}
	exists.Body.Close()
	if exists.StatusCode == http.StatusOK {
		return nil
	}

	mapping := map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"title":       map[string]any{"type": "keyword"},
				"datetime":    map[string]any{"type": "date"},
				"link":        map[string]any{"type": "keyword"},
				"search_word": map[string]any{"type": "keyword"},
				"category":    map[string]any{"type": "keyword"},
				"sentiment":   map[string]any{"type": "keyword"},
			},
		},
	}

	payload, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("%w: marshal mapping: %v", ErrOperation, err)
	}

	res, err := c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return fmt.Errorf("%w: create index: %v", ErrOperation, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		// A concurrent creator may have won the race; that still satisfies us.
		if strings.Contains(string(body), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("%w: create index: %s", ErrOperation, strings.TrimSpace(string(body)))
	}

	return nil
}

// Merge absorbs incoming rows into the store with upsert-by-title semantics.
// Incoming rows are deduplicated keep-last, rows without a category are never
// persisted, and every document is indexed under DocumentID(title) so a row
// sharing a stored title replaces it wholesale. Merges are serialized.
func (c *Client) Merge(ctx context.Context, incoming []models.HeadlineRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.EnsureIndex(ctx); err != nil {
		return err
	}

	rows := persistable(dedupe.KeepLastByTitle(incoming))
	if len(rows) == 0 {
		return nil
	}

	payload, err := bulkBody(rows)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOperation, err)
	}

	res, err := c.es.Bulk(
		bytes.NewReader(payload),
		c.es.Bulk.WithContext(ctx),
		c.es.Bulk.WithIndex(c.index),
		c.es.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("%w: bulk index: %v", ErrOperation, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%w: bulk index: %s", ErrOperation, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("%w: decode bulk response: %v", ErrOperation, err)
	}
	if parsed.Errors {
		return fmt.Errorf("%w: bulk index reported item failures", ErrOperation)
	}

	c.log.Info("merged headlines", slog.Int("rows", len(rows)))
	return nil
}

// QueryBySearchWord returns every stored row whose search_word matches
// exactly, sorted ascending by datetime.
func (c *Client) QueryBySearchWord(ctx context.Context, searchWord string) ([]models.HeadlineRecord, error) {
	body := map[string]any{
		"size":             maxResultWindow,
		"track_total_hits": true,
		"query": map[string]any{
			"term": map[string]any{
				"search_word": searchWord,
			},
		},
		"sort": []map[string]any{
			{"datetime": map[string]any{"order": "asc"}},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal query: %v", ErrOperation, err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrOperation, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		// The index is created lazily on first merge; no index means no rows.
		return nil, nil
	}

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("%w: search: %s", ErrOperation, strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.HeadlineRecord `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode search response: %v", ErrOperation, err)
	}

	if parsed.Hits.Total.Value > len(parsed.Hits.Hits) {
		c.log.Warn("search results truncated at the result window",
			slog.String("search_word", searchWord),
			slog.Int("total", parsed.Hits.Total.Value),
			slog.Int("returned", len(parsed.Hits.Hits)),
		)
	}

	rows := make([]models.HeadlineRecord, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		rows = append(rows, hit.Source)
	}

	return rows, nil
}

// persistable filters out rows that must never reach the store.
func persistable(rows []models.HeadlineRecord) []models.HeadlineRecord {
	out := make([]models.HeadlineRecord, 0, len(rows))
	for _, row := range rows {
		if row.Category == "" || row.Title == "" || row.Datetime.IsZero() {
			continue
		}
		out = append(out, row)
	}
	return out
}

// bulkBody renders rows as an Elasticsearch bulk request, one index action
// per row keyed by DocumentID(title).
func bulkBody(rows []models.HeadlineRecord) ([]byte, error) {
	var buf bytes.Buffer
	for _, row := range rows {
		action := map[string]any{
			"index": map[string]any{"_id": DocumentID(row.Title)},
		}
		meta, err := json.Marshal(action)
		if err != nil {
			return nil, fmt.Errorf("marshal bulk action: %w", err)
		}
		doc, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("marshal doc: %w", err)
		}
		buf.Write(meta)
		buf.WriteByte('\n')
		buf.Write(doc)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
