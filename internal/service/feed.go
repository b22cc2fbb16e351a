package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"cardnews/internal/model"
)

// FeedService 抓取配置中的RSS源
type FeedService struct {
	parser *gofeed.Parser
}

func NewFeedService(timeout time.Duration) *FeedService {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	return &FeedService{parser: parser}
}

// Fetch 抓取单个Feed, Query.Term 为Feed地址
func (s *FeedService) Fetch(ctx context.Context, q Query) ([]model.NewsItem, error) {
	if q.Kind != QueryFeed {
		return nil, fmt.Errorf("feed source does not serve %s queries", q.Kind)
	}

	parsed, err := s.parser.ParseURLWithContext(q.Term, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", q.Term, err)
	}

	source := parsed.Title
	if source == "" {
		source = q.Term
	}

	items := make([]model.NewsItem, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		description := item.Description
		if description == "" {
			description = item.Content
		}

		news := model.NewsItem{
			Title:       strings.TrimSpace(item.Title),
			Link:        item.Link,
			Description: strings.TrimSpace(description),
			PublishedAt: s.parseTime(item),
			Source:      source,
		}
		if item.Image != nil {
			news.ImageURL = item.Image.URL
		}
		if !news.Valid() {
			continue
		}
		items = append(items, news)
	}

	return items, nil
}

func (s *FeedService) parseTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Now()
}
