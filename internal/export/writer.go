package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/newsradar/backend/internal/models"
)

var (
	// ErrSortTargetCorrupt means one artifact's datetime column failed to
	// parse during the sort pass. It is scoped to that artifact only.
	ErrSortTargetCorrupt = errors.New("artifact datetime column corrupt")

	// ErrArtifactNotFound means a requested download does not exist. It is a
	// query-time condition, not a pipeline failure.
	ErrArtifactNotFound = errors.New("artifact not found")
)

// Artifact names that are not category names.
const (
	NameAll      = "All"
	NameFragment = "Fragment"
)

// Writer produces and maintains the per-search-term CSV artifacts in a
// destination directory. Artifacts are derived data; the consolidated store
// stays authoritative and every write here regenerates the file in full.
type Writer struct {
	dir string
	log *slog.Logger
}

// NewWriter returns a Writer rooted at dir. The directory is created on the
// first write.
func NewWriter(dir string, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Writer{dir: dir, log: log}
}

// ArtifactPath maps (searchWord, name) to the artifact file path. Name is a
// category, "All" or "Fragment".
func (w *Writer) ArtifactPath(searchWord, name string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s_%s.csv", searchWord, name))
}

// WriteFragment persists the as-fetched snapshot of one run, independent of
// the consolidated store.
func (w *Writer) WriteFragment(searchWord string, rows []models.HeadlineRecord) error {
	return w.writeArtifact(searchWord, NameFragment, rows)
}

// WriteSet regenerates the full category export set for a search term: one
// artifact per category in the fixed order, header-only when no rows match,
// plus the "All" artifact holding every row.
func (w *Writer) WriteSet(searchWord string, rows []models.HeadlineRecord) error {
	for _, category := range models.Categories {
		matched := make([]models.HeadlineRecord, 0, len(rows))
		for _, row := range rows {
			if row.Category == category {
				matched = append(matched, row)
			}
		}
		if err := w.writeArtifact(searchWord, string(category), matched); err != nil {
			return err
		}
	}

	return w.writeArtifact(searchWord, NameAll, rows)
}

// SortArtifacts is the idempotent normalization pass: it re-reads every
// existing artifact for the search term from disk and rewrites it sorted
// ascending by datetime. One corrupt artifact does not block the others; the
// per-artifact failures are joined into the returned error.
func (w *Writer) SortArtifacts(searchWord string) error {
	names := make([]string, 0, len(models.Categories)+2)
	names = append(names, NameAll, NameFragment)
	for _, category := range models.Categories {
		names = append(names, string(category))
	}

	var errs []error
	for _, name := range names {
		path := w.ArtifactPath(searchWord, name)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := sortFile(path); err != nil {
			errs = append(errs, fmt.Errorf("artifact %s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

// Open returns the artifact file for download. Unknown names and missing
// files both report ErrArtifactNotFound.
func (w *Writer) Open(searchWord, name string) (*os.File, error) {
	if !knownArtifact(name) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
	}

	f, err := os.Open(w.ArtifactPath(searchWord, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s_%s", ErrArtifactNotFound, searchWord, name)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// PruneOlderThan deletes export artifacts not regenerated within maxAge and
// returns how many were removed. Artifacts are regenerable, so pruning never
// loses authoritative data.
func (w *Writer) PruneOlderThan(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(w.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read artifact dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(w.dir, entry.Name())); err != nil {
			return removed, fmt.Errorf("remove %s: %w", entry.Name(), err)
		}
		removed++
	}

	return removed, nil
}

func (w *Writer) writeArtifact(searchWord, name string, rows []models.HeadlineRecord) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	path := w.ArtifactPath(searchWord, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact %s: %w", name, err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(models.CSVHeader); err != nil {
		f.Close()
		return fmt.Errorf("write artifact %s: %w", name, err)
	}
	for _, row := range rows {
		if err := cw.Write(row.CSVRow()); err != nil {
			f.Close()
			return fmt.Errorf("write artifact %s: %w", name, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write artifact %s: %w", name, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close artifact %s: %w", name, err)
	}

	w.log.Debug("wrote artifact", slog.String("path", path), slog.Int("rows", len(rows)))
	return nil
}

// sortFile rewrites one CSV artifact with its data rows sorted ascending by
// the datetime column. It re-reads whatever is on disk at call time so the
// pass can run standalone.
func sortFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	f.Close()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSortTargetCorrupt, err)
	}

	if len(records) <= 1 {
		return nil
	}

	header, data := records[0], records[1:]
	dtCol := -1
	for i, col := range header {
		if col == "datetime" {
			dtCol = i
			break
		}
	}
	if dtCol < 0 {
		return fmt.Errorf("%w: missing datetime column", ErrSortTargetCorrupt)
	}

	type datedRow struct {
		ts  time.Time
		row []string
	}

	dated := make([]datedRow, len(data))
	for i, row := range data {
		if dtCol >= len(row) {
			return fmt.Errorf("%w: short row %d", ErrSortTargetCorrupt, i+1)
		}
		ts, err := time.Parse(time.RFC3339, row[dtCol])
		if err != nil {
			return fmt.Errorf("%w: row %d: %v", ErrSortTargetCorrupt, i+1, err)
		}
		dated[i] = datedRow{ts: ts, row: row}
	}

	sort.SliceStable(dated, func(i, j int) bool { return dated[i].ts.Before(dated[j].ts) })

	for i, d := range dated {
		data[i] = d.row
	}

	return writeRaw(path, header, data)
}

func writeRaw(path string, header []string, data [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		f.Close()
		return err
	}
	for _, row := range data {
		if err := cw.Write(row); err != nil {
			f.Close()
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func knownArtifact(name string) bool {
	if name == NameAll || name == NameFragment {
		return true
	}
	return models.Category(name).IsValid()
}
