package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"briefing_agent/internal/model"
)

const groqEndpoint = "https://api.groq.com/openai/v1/chat/completions"

// At most this many search queries are derived per run.
const maxQueries = 2

// Summarize sends at most this much article content to the model.
const maxContentChars = 500

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Groq talks to the Groq chat-completions API (OpenAI-compatible).
type Groq struct {
	client   HTTPClient
	apiKey   string
	model    string
	endpoint string
}

// NewGroq creates a Groq client for the given model.
func NewGroq(client HTTPClient, apiKey, modelName string) *Groq {
	return &Groq{client: client, apiKey: apiKey, model: modelName, endpoint: groqEndpoint}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// AnalyzeTopics derives a short ordered list of search queries from the
// user's topics, capped at two queries.
func (g *Groq) AnalyzeTopics(ctx context.Context, topics []string) ([]string, error) {
	if len(topics) == 0 {
		return nil, nil
	}

	system := "You are a news search query generator. Given user topics of interest, " +
		"generate 1-2 concise, effective search queries that will find relevant recent " +
		"news articles. Return only the queries, one per line."
	user := fmt.Sprintf("User topics: %s\n\nGenerate search queries:", strings.Join(topics, ", "))

	content, err := g.complete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	var queries []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. "))
		if line == "" {
			continue
		}
		queries = append(queries, line)
		if len(queries) == maxQueries {
			break
		}
	}
	return queries, nil
}

// Summarize generates a one-to-two-line summary of an article.
func (g *Groq) Summarize(ctx context.Context, article model.Article) (string, error) {
	system := "You are a news summarizer. Generate concise, engaging 1-2 line summaries " +
		"of news articles in TLDR style. Focus on key facts and why it matters."

	content := article.Content
	if len(content) > maxContentChars {
		content = content[:maxContentChars]
	}
	user := fmt.Sprintf("Article Title: %s\n\nContent: %s\n\nGenerate a 1-2 line summary:",
		article.Title, content)

	summary, err := g.complete(ctx, system, user)
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(summary), `"'`), nil
}

func (g *Groq) complete(ctx context.Context, system, user string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", &ProviderError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return "", &ProviderError{Status: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusBadRequest:
		return "", &ContentPolicyError{Reason: string(body)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("groq authentication failed: status %d", resp.StatusCode)
	default:
		return "", &ProviderError{Status: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	if parsed.Choices[0].FinishReason == "content_filter" {
		return "", &ContentPolicyError{Reason: "completion stopped by content filter"}
	}
	return parsed.Choices[0].Message.Content, nil
}
