package dedup

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"briefing_agent/internal/model"
	"briefing_agent/internal/storage"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return New(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func articles(urls ...string) []model.Article {
	var out []model.Article
	for _, u := range urls {
		out = append(out, model.Article{URL: u, Title: "Title for " + u})
	}
	return out
}

func TestFilterPassesFreshArticles(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	in := articles("https://example.com/a", "https://example.com/b")
	got, err := e.Filter(ctx, in, "u1")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("Filter mismatch (-want +got):\n%s", diff)
	}
}

func TestCommittedArticleNeverSurvivesFilter(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	in := articles("https://example.com/a")
	if err := e.Commit(ctx, in, "u1"); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := e.Filter(ctx, in, "u1")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("committed article survived filter: %v", got)
	}
}

func TestFilterIsPerUser(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	in := articles("https://example.com/a")
	if err := e.Commit(ctx, in, "u1"); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// Another user's history does not hide the article from this one.
	got, err := e.Filter(ctx, in, "u2")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("global history leaked into user filter (-want +got):\n%s", diff)
	}
}

func TestCommitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	in := articles("https://example.com/a", "https://example.com/b")
	if err := e.Commit(ctx, in, "u1"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := e.Commit(ctx, in, "u1"); err != nil {
		t.Fatalf("second commit: %v", err)
	}

	got, err := e.Filter(ctx, in, "u1")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("articles survived filter after double commit: %v", got)
	}
}

func TestFilterDropsOnlyDeliveredSubset(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	all := articles("https://example.com/a", "https://example.com/b", "https://example.com/c")
	if err := e.Commit(ctx, all[:1], "u1"); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := e.Filter(ctx, all, "u1")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if diff := cmp.Diff(all[1:], got); diff != "" {
		t.Errorf("Filter mismatch (-want +got):\n%s", diff)
	}
}
