package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/newsradar/backend/internal/models"
)

// inferenceClient calls a hosted text-classification endpoint that scores an
// input against a label set (Hugging Face inference protocol).
type inferenceClient struct {
	url        string
	token      string
	httpClient *http.Client
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func newInferenceClient(url, token string, timeout time.Duration) *inferenceClient {
	return &inferenceClient{
		url:        url,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// topLabel returns the highest-scored label for text.
func (c *inferenceClient) topLabel(ctx context.Context, text string) (string, error) {
	requestBody := map[string]any{"inputs": text}

	payload, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("inference endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	scores, err := decodeScores(body)
	if err != nil {
		return "", err
	}

	best := scores[0]
	for _, s := range scores[1:] {
		if s.Score > best.Score {
			best = s
		}
	}
	return best.Label, nil
}

// decodeScores accepts both response shapes the protocol produces: a nested
// [[{label,score}]] batch and a flat [{label,score}] list.
func decodeScores(body []byte) ([]labelScore, error) {
	var nested [][]labelScore
	if err := json.Unmarshal(body, &nested); err == nil && len(nested) > 0 && len(nested[0]) > 0 {
		return nested[0], nil
	}

	var flat []labelScore
	if err := json.Unmarshal(body, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}

	return nil, fmt.Errorf("no labels in inference response")
}

// CategoryClassifier implements Classifier over a hosted news classifier.
type CategoryClassifier struct {
	client *inferenceClient
}

// NewCategoryClassifier builds the classifier capability.
func NewCategoryClassifier(url, token string, timeout time.Duration) *CategoryClassifier {
	return &CategoryClassifier{client: newInferenceClient(url, token, timeout)}
}

// Classify returns the model's label, rejecting anything outside the fixed
// category set.
func (c *CategoryClassifier) Classify(ctx context.Context, title string) (models.Category, error) {
	label, err := c.client.topLabel(ctx, title)
	if err != nil {
		return "", err
	}

	category := models.Category(label)
	if !category.IsValid() {
		return "", fmt.Errorf("unknown category label %q", label)
	}
	return category, nil
}

// SentimentModel implements SentimentAnalyzer over a hosted sentiment model.
type SentimentModel struct {
	client *inferenceClient
}

// NewSentimentModel builds one category's sentiment capability.
func NewSentimentModel(url, token string, timeout time.Duration) *SentimentModel {
	return &SentimentModel{client: newInferenceClient(url, token, timeout)}
}

// Analyze maps the model's label onto {positive, negative, neutral}.
func (m *SentimentModel) Analyze(ctx context.Context, title string) (models.Sentiment, error) {
	label, err := m.client.topLabel(ctx, title)
	if err != nil {
		return "", err
	}

	switch strings.ToLower(label) {
	case "positive", "label_2":
		return models.SentimentPositive, nil
	case "negative", "label_0":
		return models.SentimentNegative, nil
	case "neutral", "label_1":
		return models.SentimentNeutral, nil
	}
	return "", fmt.Errorf("unknown sentiment label %q", label)
}
