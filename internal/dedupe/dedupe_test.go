package dedupe_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/newsradar/backend/internal/dedupe"
	"github.com/newsradar/backend/internal/models"
)

func row(title, link string, day int) models.HeadlineRecord {
	return models.HeadlineRecord{
		Title:      title,
		Link:       link,
		Datetime:   time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		SearchWord: "q",
	}
}

func TestKeepLastByTitle(t *testing.T) {
	rows := []models.HeadlineRecord{
		row("A", "http://x", 2),
		row("B", "http://b", 1),
		row("A", "http://y", 1),
	}

	got := dedupe.KeepLastByTitle(rows)
	require.Len(t, got, 2)
	require.Equal(t, "B", got[0].Title)
	require.Equal(t, "A", got[1].Title)
	require.Equal(t, "http://y", got[1].Link, "last occurrence must win")
}

func TestKeepLastByTitleNoDuplicates(t *testing.T) {
	rows := []models.HeadlineRecord{row("A", "http://a", 1), row("B", "http://b", 2)}
	require.Equal(t, rows, dedupe.KeepLastByTitle(rows))
}

func TestKeepLastByTitleEmpty(t *testing.T) {
	require.Empty(t, dedupe.KeepLastByTitle(nil))
}
