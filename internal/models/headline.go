package models

import "time"

// Category labels a headline with one entry from the fixed category set.
type Category string

const (
	CategoryWorld         Category = "World"
	CategoryBusiness      Category = "Business"
	CategoryTechnology    Category = "Technology"
	CategoryEntertainment Category = "Entertainment"
	CategorySports        Category = "Sports"
	CategoryScience       Category = "Science"
	CategoryHealth        Category = "Health"
)

// Categories is the fixed category set in export order.
var Categories = []Category{
	CategoryWorld,
	CategoryBusiness,
	CategoryTechnology,
	CategoryEntertainment,
	CategorySports,
	CategoryScience,
	CategoryHealth,
}

// IsValid reports whether c belongs to the fixed category set.
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Sentiment is the tone assigned to headlines in sentiment-eligible categories.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// HeadlineRecord is one canonical news item. Title is the dedup key across
// the consolidated store; an empty Category means classification has not
// happened (or failed) and the row must not be persisted.
type HeadlineRecord struct {
	Title      string    `json:"title"`
	Datetime   time.Time `json:"datetime"`
	Link       string    `json:"link"`
	SearchWord string    `json:"search_word"`
	Category   Category  `json:"category,omitempty"`
	Sentiment  Sentiment `json:"sentiment,omitempty"`
}

// CSVHeader is the canonical column order of every exported artifact.
var CSVHeader = []string{"title", "datetime", "link", "search_word", "category", "sentiment"}

// CSVRow renders the record in CSVHeader order. Datetime uses RFC 3339 so
// the sort pass can re-parse it losslessly.
func (h HeadlineRecord) CSVRow() []string {
	return []string{
		h.Title,
		h.Datetime.UTC().Format(time.RFC3339),
		h.Link,
		h.SearchWord,
		string(h.Category),
		string(h.Sentiment),
	}
}
