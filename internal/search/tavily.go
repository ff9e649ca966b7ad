package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"briefing_agent/internal/model"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// Tavily searches news articles through the Tavily API.
type Tavily struct {
	client   HTTPClient
	apiKey   string
	endpoint string
}

// NewTavily creates a Tavily provider with the given HTTP client.
func NewTavily(client HTTPClient, apiKey string) *Tavily {
	return &Tavily{client: client, apiKey: apiKey, endpoint: tavilyEndpoint}
}

type tavilyRequest struct {
	APIKey            string `json:"api_key"`
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results"`
	SearchDepth       string `json:"search_depth"`
	Topic             string `json:"topic"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type tavilyResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		PublishedDate string  `json:"published_date"`
		Score         float64 `json:"score"`
	} `json:"results"`
}

// Search executes one Tavily news search.
func (t *Tavily) Search(ctx context.Context, query string, maxResults int) ([]model.Article, error) {
	payload, err := json.Marshal(tavilyRequest{
		APIKey:      t.apiKey,
		Query:       query,
		MaxResults:  maxResults,
		SearchDepth: "advanced",
		Topic:       "news",
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, &ProviderError{Status: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusBadRequest:
		return nil, &InvalidQueryError{Query: query, Reason: string(body)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("tavily authentication failed: status %d", resp.StatusCode)
	default:
		// 429 and 5xx are transient.
		return nil, &ProviderError{Status: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	articles := make([]model.Article, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		articles = append(articles, model.Article{
			URL:         r.URL,
			Title:       r.Title,
			Content:     r.Content,
			PublishedAt: parsePublished(r.PublishedDate),
			Score:       r.Score,
		})
	}
	return articles, nil
}

var publishedLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"Mon, 02 Jan 2006 15:04:05 MST",
	"2006-01-02",
}

func parsePublished(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range publishedLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return &ts
		}
	}
	return nil
}
