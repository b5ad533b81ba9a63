package agent

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"debatebot/internal/platform"
	"debatebot/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fakePlatform implements platform.Client with per-method hooks.
type fakePlatform struct {
	mu         sync.Mutex
	fetchNew   func(source string, limit int) ([]platform.Item, error)
	fetchRepl  func(threadID string, since time.Time) ([]platform.Item, error)
	submit     func(parentID, text string) (string, error)
	submits    []string
	submitTime []time.Time
}

func (f *fakePlatform) FetchNewItems(ctx context.Context, source string, limit int) ([]platform.Item, error) {
	if f.fetchNew == nil {
		return nil, nil
	}
	return f.fetchNew(source, limit)
}

func (f *fakePlatform) FetchReplies(ctx context.Context, threadID string, since time.Time) ([]platform.Item, error) {
	if f.fetchRepl == nil {
		return nil, nil
	}
	return f.fetchRepl(threadID, since)
}

func (f *fakePlatform) SubmitReply(ctx context.Context, parentID, text string) (string, error) {
	f.mu.Lock()
	f.submits = append(f.submits, parentID)
	f.submitTime = append(f.submitTime, time.Now())
	f.mu.Unlock()
	if f.submit == nil {
		return "t1_generated", nil
	}
	return f.submit(parentID, text)
}

func (f *fakePlatform) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submits)
}

// fakeLLM implements llm.Generator with an injectable generate function.
type fakeLLM struct {
	generate func(prompt string) (string, error)
	mu       sync.Mutex
	prompts  []string
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.generate(prompt)
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

// fakeNotifier records messages for assertion.
type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) Notify(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
}

func post(id, title, body string, created time.Time) platform.Item {
	return platform.Item{
		ID:        id,
		Subreddit: "test",
		Author:    "someone",
		Title:     title,
		Body:      body,
		CreatedAt: created,
	}
}

func comment(id, parentID, author, body string, created time.Time) platform.Item {
	return platform.Item{
		ID:        id,
		ParentID:  parentID,
		Subreddit: "test",
		Author:    author,
		Body:      body,
		CreatedAt: created,
	}
}
