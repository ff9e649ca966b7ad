package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"

	"briefing_agent/internal/model"
)

type mockTransport struct {
	body       string
	statusCode int
	err        error
	lastReq    *http.Request
	lastBody   []byte
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	m.lastReq = req
	if req.Body != nil {
		m.lastBody, _ = io.ReadAll(req.Body)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

func completion(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestAnalyzeTopics(t *testing.T) {
	tests := []struct {
		name    string
		content string
		topics  []string
		want    []string
	}{
		{
			name:    "plain lines",
			content: "artificial intelligence breakthroughs\nsemiconductor industry news",
			topics:  []string{"ai", "chips"},
			want:    []string{"artificial intelligence breakthroughs", "semiconductor industry news"},
		},
		{
			name:    "numbered list trimmed and capped at two",
			content: "1. ai news today\n2. ml research\n3. robotics",
			topics:  []string{"ai"},
			want:    []string{"ai news today", "ml research"},
		},
		{
			name:    "blank lines skipped",
			content: "\n\nquantum computing news\n\n",
			topics:  []string{"quantum"},
			want:    []string{"quantum computing news"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGroq(&mockTransport{body: completion(tt.content), statusCode: 200}, "gsk-test", "llama-test")
			got, err := g.AnalyzeTopics(context.Background(), tt.topics)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("AnalyzeTopics mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAnalyzeTopicsEmptyTopics(t *testing.T) {
	transport := &mockTransport{body: completion("x"), statusCode: 200}
	g := NewGroq(transport, "gsk-test", "llama-test")
	got, err := g.AnalyzeTopics(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected no queries for empty topics, got %v", got)
	}
	if transport.lastReq != nil {
		t.Error("no request should be made for empty topics")
	}
}

func TestSummarize(t *testing.T) {
	transport := &mockTransport{body: completion(`"A short, punchy summary."`), statusCode: 200}
	g := NewGroq(transport, "gsk-test", "llama-test")

	got, err := g.Summarize(context.Background(), model.Article{
		Title:   "Big News",
		Content: "Lots of article text.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff("A short, punchy summary.", got); diff != "" {
		t.Errorf("Summarize mismatch (-want +got):\n%s", diff)
	}

	if auth := transport.lastReq.Header.Get("Authorization"); auth != "Bearer gsk-test" {
		t.Errorf("missing bearer auth, got %q", auth)
	}
	var req chatRequest
	if err := json.Unmarshal(transport.lastBody, &req); err != nil {
		t.Fatalf("decode sent request: %v", err)
	}
	if req.Model != "llama-test" {
		t.Errorf("model = %q", req.Model)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
		t.Errorf("unexpected messages: %+v", req.Messages)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		transport  *mockTransport
		wantRetry  bool
		wantPolicy bool
	}{
		{
			name:      "rate limit is retryable",
			transport: &mockTransport{body: "slow down", statusCode: 429},
			wantRetry: true,
		},
		{
			name:      "server error is retryable",
			transport: &mockTransport{body: "boom", statusCode: 500},
			wantRetry: true,
		},
		{
			name:      "network error is retryable",
			transport: &mockTransport{err: io.ErrUnexpectedEOF},
			wantRetry: true,
		},
		{
			name:       "bad request is a content policy rejection",
			transport:  &mockTransport{body: "refused", statusCode: 400},
			wantPolicy: true,
		},
		{
			name:      "auth failure is fatal",
			transport: &mockTransport{body: "no", statusCode: 401},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGroq(tt.transport, "gsk-test", "llama-test")
			_, err := g.Summarize(context.Background(), model.Article{Title: "T"})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := IsRetryable(err); got != tt.wantRetry {
				t.Errorf("IsRetryable = %v, want %v (err: %v)", got, tt.wantRetry, err)
			}
			var cp *ContentPolicyError
			if got := errors.As(err, &cp); got != tt.wantPolicy {
				t.Errorf("ContentPolicyError = %v, want %v (err: %v)", got, tt.wantPolicy, err)
			}
		})
	}
}
