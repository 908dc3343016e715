package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/newsradar/backend/internal/dedupe"
	"github.com/newsradar/backend/internal/models"
)

var (
	// ErrEmpty means the news source yielded zero items for the window. Fatal
	// to the run; there is no retry.
	ErrEmpty = errors.New("news source returned no items")

	// ErrPersist means the Fragment snapshot could not be written. The
	// in-memory fetch result is still returned alongside it.
	ErrPersist = errors.New("fragment artifact write failed")
)

type feedParser interface {
	ParseURLWithContext(feedURL string, ctx context.Context) (*gofeed.Feed, error)
}

type snapshotWriter interface {
	WriteFragment(searchWord string, rows []models.HeadlineRecord) error
}

// Fetcher retrieves raw headlines for a search term from the Google News RSS
// endpoint and normalizes them into canonical rows.
type Fetcher struct {
	baseURL  string
	parser   feedParser
	snapshot snapshotWriter
	log      *slog.Logger
}

// New returns a Fetcher against baseURL that records each run's Fragment
// snapshot through snapshot.
func New(baseURL string, snapshot snapshotWriter, log *slog.Logger) *Fetcher {
	return &Fetcher{
		baseURL:  strings.TrimRight(baseURL, "/"),
		parser:   gofeed.NewParser(),
		snapshot: snapshot,
		log:      log,
	}
}

// Fetch pulls headlines for searchWord over the window
// [today-daysBack, today], validates, dedupes keep-last by title, sorts
// ascending by datetime and persists the Fragment snapshot.
//
// A feed whose items are all missing required fields produces an empty,
// well-typed result; only a feed with zero items at all is ErrEmpty.
func (f *Fetcher) Fetch(ctx context.Context, searchWord string, daysBack int) ([]models.HeadlineRecord, error) {
	if daysBack < 0 {
		return nil, fmt.Errorf("days_back cannot be negative")
	}

	feedURL := f.queryURL(searchWord, daysBack)
	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", searchWord, err)
	}

	if feed == nil || len(feed.Items) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmpty, searchWord)
	}

	rows := make([]models.HeadlineRecord, 0, len(feed.Items))
	for _, item := range feed.Items {
		row, ok := normalize(item, searchWord)
		if !ok {
			continue
		}
		rows = append(rows, row)
	}

	rows = dedupe.KeepLastByTitle(rows)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Datetime.Before(rows[j].Datetime) })

	f.log.Info("fetched headlines",
		slog.String("search_word", searchWord),
		slog.Int("raw", len(feed.Items)),
		slog.Int("kept", len(rows)),
	)

	if err := f.snapshot.WriteFragment(searchWord, rows); err != nil {
		return rows, fmt.Errorf("%w: %v", ErrPersist, err)
	}

	return rows, nil
}

// queryURL encodes the search term and window as a Google News RSS query.
// The after:/before: operators are exclusive, so the window is widened by a
// day on each side to keep [start, today] inclusive.
func (f *Fetcher) queryURL(searchWord string, daysBack int) string {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -daysBack)

	q := fmt.Sprintf("%s after:%s before:%s",
		searchWord,
		start.AddDate(0, 0, -1).Format("2006-01-02"),
		today.AddDate(0, 0, 1).Format("2006-01-02"),
	)

	v := url.Values{}
	v.Set("q", q)
	v.Set("hl", "en-US")
	v.Set("gl", "US")
	v.Set("ceid", "US:en")
	return f.baseURL + "?" + v.Encode()
}

// normalize validates one raw feed item into a canonical row. Order matters:
// title non-empty, link begins with http, datetime parses. Malformed items
// are dropped silently.
func normalize(item *gofeed.Item, searchWord string) (models.HeadlineRecord, bool) {
	if item == nil {
		return models.HeadlineRecord{}, false
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return models.HeadlineRecord{}, false
	}

	link := strings.TrimSpace(item.Link)
	if !strings.HasPrefix(link, "http") {
		return models.HeadlineRecord{}, false
	}

	var ts time.Time
	if item.PublishedParsed != nil {
		ts = *item.PublishedParsed
	} else {
		ts = parseTimestamp(item.Published)
	}
	if ts.IsZero() {
		return models.HeadlineRecord{}, false
	}

	return models.HeadlineRecord{
		Title:      title,
		Datetime:   ts.UTC(),
		Link:       link,
		SearchWord: searchWord,
	}, true
}

func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}

	formats := []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}

	for _, f := range formats {
		if ts, err := time.Parse(f, raw); err == nil {
			return ts
		}
	}

	return time.Time{}
}
