package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cardnews/config"
	"cardnews/internal/model"
)

const (
	newsAPISourceName = "News API"
	newsAPIPageSize   = 50
)

// NewsAPIClient 访问 newsapi.org 的 top-headlines 和 everything 接口
type NewsAPIClient struct {
	cfg    config.NewsConfig
	client *http.Client
	now    func() time.Time
}

type newsAPIResponse struct {
	Status       string           `json:"status"`
	Code         string           `json:"code"`
	Message      string           `json:"message"`
	TotalResults int              `json:"totalResults"`
	Articles     []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
}

func NewNewsAPIClient(cfg config.NewsConfig, client *http.Client) *NewsAPIClient {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &NewsAPIClient{cfg: cfg, client: client, now: time.Now}
}

// Fetch 热门查询走 top-headlines, 关键词查询走 everything
func (c *NewsAPIClient) Fetch(ctx context.Context, q Query) ([]model.NewsItem, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	var endpoint string
	params := url.Values{}
	params.Set("pageSize", fmt.Sprint(newsAPIPageSize))

	switch q.Kind {
	case QueryTrending:
		endpoint = "/top-headlines"
		params.Set("country", c.cfg.Country)
		params.Set("category", c.cfg.Category)
	case QueryKeyword:
		endpoint = "/everything"
		params.Set("q", q.Term)
		params.Set("language", c.cfg.Language)
		params.Set("sortBy", "publishedAt")
		if c.cfg.WindowDays > 0 {
			from := c.now().AddDate(0, 0, -c.cfg.WindowDays)
			params.Set("from", from.Format("2006-01-02"))
		}
	default:
		return nil, fmt.Errorf("news api does not serve %s queries", q.Kind)
	}

	reqURL := strings.TrimRight(c.cfg.BaseURL, "/") + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news api request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read news api response: %w", err)
	}

	var parsed newsAPIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode news api response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || parsed.Status == "error" {
		return nil, fmt.Errorf("news api returned %d: %s %s", resp.StatusCode, parsed.Code, parsed.Message)
	}

	return c.toNewsItems(parsed.Articles), nil
}

func (c *NewsAPIClient) toNewsItems(articles []newsAPIArticle) []model.NewsItem {
	items := make([]model.NewsItem, 0, len(articles))
	for _, a := range articles {
		item := model.NewsItem{
			Title:       strings.TrimSpace(a.Title),
			Link:        a.URL,
			Description: strings.TrimSpace(a.Description),
			Source:      a.Source.Name,
			ImageURL:    a.URLToImage,
		}
		if item.Source == "" {
			item.Source = newsAPISourceName
		}
		if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			item.PublishedAt = t
		}
		if !item.Valid() {
			continue
		}
		items = append(items, item)
	}
	return items
}
