package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"cardnews/internal/model"
)

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) Available() bool {
	return m.Called().Bool(0)
}

func (m *mockLLM) Chat(ctx context.Context, system, user string) (string, error) {
	args := m.Called(ctx, system, user)
	return args.String(0), args.Error(1)
}

func (m *mockLLM) GetPrompt(key string) string {
	return "prompt:" + key
}

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Fetch(ctx context.Context, q Query) ([]model.NewsItem, error) {
	args := m.Called(ctx, q)
	items, _ := args.Get(0).([]model.NewsItem)
	return items, args.Error(1)
}

type memoryRecorder struct {
	mu      sync.Mutex
	results []model.GenerationResult
}

func (r *memoryRecorder) Append(_ context.Context, res *model.GenerationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, *res)
	return nil
}

func (r *memoryRecorder) all() []model.GenerationResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.GenerationResult(nil), r.results...)
}

func newsItem(n int, link string) model.NewsItem {
	return model.NewsItem{
		Title:       "Story " + link,
		Link:        link,
		Description: "Description of " + link,
		PublishedAt: time.Now().Add(-time.Duration(n) * time.Minute),
		Source:      "Test",
	}
}

func analyzedNews(link string, importance int, category string) model.AnalyzedNews {
	return model.AnalyzedNews{
		NewsItem:   newsItem(0, link),
		Summary:    "Summary of " + link,
		Importance: importance,
		Category:   category,
		Tags:       []string{category, "IT", "tech", "extra"},
	}
}
