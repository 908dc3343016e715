package dedupe

import "github.com/newsradar/backend/internal/models"

// KeepLastByTitle removes rows sharing a title, keeping the last occurrence.
// Relative order of the surviving rows is preserved. Both the fetch adapter
// and the store merge rely on keep-last: whatever arrives later wins.
func KeepLastByTitle(rows []models.HeadlineRecord) []models.HeadlineRecord {
	if len(rows) == 0 {
		return rows
	}

	last := make(map[string]int, len(rows))
	for i, row := range rows {
		last[row.Title] = i
	}

	out := make([]models.HeadlineRecord, 0, len(last))
	for i, row := range rows {
		if last[row.Title] == i {
			out = append(out, row)
		}
	}
	return out
}
