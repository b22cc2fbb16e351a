package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cardnews/config"
	"cardnews/internal/model"
)

type QueryKind int

const (
	QueryTrending QueryKind = iota
	QueryKeyword
	QueryFeed
)

func (k QueryKind) String() string {
	switch k {
	case QueryTrending:
		return "trending"
	case QueryKeyword:
		return "keyword"
	case QueryFeed:
		return "feed"
	default:
		return "unknown"
	}
}

// Query 一次独立的抓取, Term 为关键词或Feed地址
type Query struct {
	Kind QueryKind
	Term string
}

// CacheKey 缓存文件名
func (q Query) CacheKey() string {
	switch q.Kind {
	case QueryTrending:
		return "all"
	case QueryFeed:
		h := fnv.New32a()
		h.Write([]byte(q.Term))
		return fmt.Sprintf("feed_%08x", h.Sum32())
	default:
		return "kw_" + slug(q.Term)
	}
}

func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// Source 新闻来源
type Source interface {
	Fetch(ctx context.Context, q Query) ([]model.NewsItem, error)
}

// Collector 从多个查询采集新闻, 永不返回错误
type Collector struct {
	cfg    config.NewsConfig
	search Source
	feeds  Source
	cache  *NewsCache
	logger *zap.Logger
	now    func() time.Time
}

func NewCollector(cfg config.NewsConfig, search, feeds Source, cache *NewsCache, logger *zap.Logger) *Collector {
	return &Collector{
		cfg:    cfg,
		search: search,
		feeds:  feeds,
		cache:  cache,
		logger: logger.Named("collector"),
		now:    time.Now,
	}
}

func (c *Collector) queries() []Query {
	qs := []Query{{Kind: QueryTrending}}
	for _, kw := range c.cfg.Keywords {
		qs = append(qs, Query{Kind: QueryKeyword, Term: kw})
	}
	if c.feeds != nil {
		for _, feed := range c.cfg.Feeds {
			qs = append(qs, Query{Kind: QueryFeed, Term: feed})
		}
	}
	return qs
}

// Collect 并发执行全部查询, 合并去重后截断到 MaxItems
func (c *Collector) Collect(ctx context.Context) Outcome[[]model.NewsItem] {
	queries := c.queries()
	results := make([][]model.NewsItem, len(queries))
	errs := make([]error, len(queries))

	var g errgroup.Group
	for i, q := range queries {
		g.Go(func() error {
			results[i], errs[i] = c.fetchQuery(ctx, q)
			return nil
		})
	}
	_ = g.Wait()

	var merged []model.NewsItem
	for _, batch := range results {
		merged = append(merged, batch...)
	}
	merged = capItems(dedupeByLink(merged), c.cfg.MaxItems)

	failed := 0
	missingKey := 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed++
		if errors.Is(err, ErrMissingAPIKey) {
			missingKey++
		}
		c.logger.Error("news query failed",
			zap.String("kind", queries[i].Kind.String()),
			zap.String("term", queries[i].Term),
			zap.Error(err))
	}

	switch {
	case failed == len(queries):
		cause := CauseUpstream
		if missingKey == failed {
			cause = CauseMissingCredential
		}
		c.logger.Warn("all news queries failed, using fallback items", zap.String("cause", string(cause)))
		return degraded(fallbackNewsItems(c.now()), cause, errors.Join(errs...))
	case len(merged) == 0:
		c.logger.Warn("no news collected, using fallback items")
		return degraded(fallbackNewsItems(c.now()), CauseEmptyInput, nil)
	}

	c.logger.Info("news collected", zap.Int("count", len(merged)), zap.Int("failed_queries", failed))
	return ok(merged)
}

// CollectArchive 月度任务: 本次采集结果加上全部历史缓存
func (c *Collector) CollectArchive(ctx context.Context) Outcome[[]model.NewsItem] {
	current := c.Collect(ctx)

	archived, err := c.cache.LoadAll()
	if err != nil {
		c.logger.Error("failed to read cached news", zap.Error(err))
	}

	// 历史缓存不按发布时间过滤
	all := append(withoutFallback(current.Value), c.keep(archived, time.Time{})...)
	all = capItems(dedupeByLink(all), c.cfg.MonthlyMaxItems)
	if len(all) == 0 {
		return current
	}

	c.logger.Info("monthly news collected", zap.Int("count", len(all)), zap.Int("archived", len(archived)))
	if current.Degraded {
		return degraded(all, current.Cause, current.Err)
	}
	return ok(all)
}

func (c *Collector) fetchQuery(ctx context.Context, q Query) ([]model.NewsItem, error) {
	key := q.CacheKey()
	if items, hit := c.cache.Load(key); hit {
		collectorQueries.WithLabelValues(q.Kind.String(), "cache").Inc()
		c.logger.Debug("cache hit", zap.String("key", key), zap.Int("count", len(items)))
		return items, nil
	}

	src := c.search
	if q.Kind == QueryFeed {
		src = c.feeds
	}
	if src == nil {
		return nil, fmt.Errorf("no source for %s query", q.Kind)
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	items, err := src.Fetch(ctx, q)
	if err != nil {
		collectorQueries.WithLabelValues(q.Kind.String(), "error").Inc()
		return nil, err
	}
	collectorQueries.WithLabelValues(q.Kind.String(), "fetched").Inc()

	items = c.filter(items)
	if len(items) > 0 {
		if err := c.cache.Save(key, items); err != nil {
			c.logger.Error("failed to save cache", zap.String("key", key), zap.Error(err))
		}
	}
	return items, nil
}

// filter 去掉无效, 过旧, 以及含宣传词的新闻
func (c *Collector) filter(items []model.NewsItem) []model.NewsItem {
	var cutoff time.Time
	if c.cfg.WindowDays > 0 {
		cutoff = c.now().AddDate(0, 0, -c.cfg.WindowDays)
	}
	return c.keep(items, cutoff)
}

// keep cutoff 为零值时不检查发布时间
func (c *Collector) keep(items []model.NewsItem, cutoff time.Time) []model.NewsItem {
	out := make([]model.NewsItem, 0, len(items))
	for _, item := range items {
		if !item.Valid() || item.Fallback {
			continue
		}
		if !cutoff.IsZero() && !item.PublishedAt.IsZero() && item.PublishedAt.Before(cutoff) {
			continue
		}
		if containsAny(item.Title, c.cfg.Blocklist) || containsAny(item.Description, c.cfg.Blocklist) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func containsAny(s string, terms []string) bool {
	lower := strings.ToLower(s)
	for _, t := range terms {
		if t != "" && strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// dedupeByLink 按链接去重, 先出现的保留
func dedupeByLink(items []model.NewsItem) []model.NewsItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]model.NewsItem, 0, len(items))
	for _, item := range items {
		if _, dup := seen[item.Link]; dup {
			continue
		}
		seen[item.Link] = struct{}{}
		out = append(out, item)
	}
	return out
}

func capItems(items []model.NewsItem, limit int) []model.NewsItem {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func withoutFallback(items []model.NewsItem) []model.NewsItem {
	out := make([]model.NewsItem, 0, len(items))
	for _, item := range items {
		if !item.Fallback {
			out = append(out, item)
		}
	}
	return out
}

func fallbackNewsItems(now time.Time) []model.NewsItem {
	return []model.NewsItem{
		{
			Title:       "IT news is temporarily unavailable",
			Link:        "urn:cardnews:fallback:1",
			Description: "News sources could not be reached. The next scheduled run will retry.",
			PublishedAt: now,
			Source:      "fallback",
			Fallback:    true,
		},
		{
			Title:       "Check news API credentials and network access",
			Link:        "urn:cardnews:fallback:2",
			Description: "This item was generated locally because no articles were collected.",
			PublishedAt: now,
			Source:      "fallback",
			Fallback:    true,
		},
	}
}
