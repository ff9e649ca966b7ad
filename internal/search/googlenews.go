package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/mmcdole/gofeed"

	"briefing_agent/internal/model"
)

const googleNewsEndpoint = "https://news.google.com/rss/search"

// GoogleNews searches news articles through the Google News RSS feed. It
// needs no API key, which makes it a useful fallback backend.
type GoogleNews struct {
	client   HTTPClient
	endpoint string
}

// NewGoogleNews creates a GoogleNews provider with the given HTTP client.
func NewGoogleNews(client HTTPClient) *GoogleNews {
	return &GoogleNews{client: client, endpoint: googleNewsEndpoint}
}

// Search fetches and parses the RSS results for one query. Relevance scores
// are positional: the feed is already ranked, so earlier items score higher.
func (g *GoogleNews) Search(ctx context.Context, query string, maxResults int) ([]model.Article, error) {
	if query == "" {
		return nil, &InvalidQueryError{Query: query, Reason: "empty query"}
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("hl", "en-US")
	params.Set("gl", "US")
	params.Set("ceid", "US:en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "BriefingAgent/1.0")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Status: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, &ProviderError{Status: resp.StatusCode, Err: err}
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	n := len(feed.Items)
	if maxResults > 0 && n > maxResults {
		n = maxResults
	}

	articles := make([]model.Article, 0, n)
	for i, item := range feed.Items[:n] {
		articles = append(articles, model.Article{
			URL:         item.Link,
			Title:       item.Title,
			Content:     item.Description,
			PublishedAt: item.PublishedParsed,
			Score:       1 - float64(i)/float64(len(feed.Items)),
		})
	}
	return articles, nil
}
