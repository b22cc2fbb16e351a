package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cardnews/internal/model"
)

const (
	summaryMaxRunes   = 100
	defaultImportance = 7
)

// LLM 分析和生成所需的模型能力
type LLM interface {
	Available() bool
	Chat(ctx context.Context, system, user string) (string, error)
	GetPrompt(key string) string
}

// categoryRules 按顺序匹配标题, 先命中者生效
var categoryRules = []struct {
	category string
	terms    []string
}{
	{model.CategoryAI, []string{"ai", "artificial intelligence", "machine learning", "deep learning", "llm", "gpt", "chatgpt", "인공지능", "머신러닝", "딥러닝", "생성형"}},
	{model.CategoryCloud, []string{"cloud", "aws", "azure", "saas", "클라우드"}},
	{model.CategorySecurity, []string{"security", "hacking", "hack", "breach", "ransomware", "malware", "vulnerability", "보안", "해킹", "랜섬웨어"}},
	{model.CategoryMobile, []string{"mobile", "smartphone", "iphone", "android", "app", "모바일", "스마트폰", "앱"}},
	{model.CategorySoftware, []string{"software", "sw", "developer", "open source", "소프트웨어", "개발"}},
}

var categoryAliases = map[string]string{
	"인공지능":  model.CategoryAI,
	"클라우드":  model.CategoryCloud,
	"보안":    model.CategorySecurity,
	"모바일":   model.CategoryMobile,
	"소프트웨어": model.CategorySoftware,
	"하드웨어":  model.CategoryHardware,
	"블록체인":  model.CategoryBlockchain,
	"기타":    model.CategoryOther,
}

type analysisResponse struct {
	Summary    string   `json:"summary"`
	Importance int      `json:"importance"`
	Category   string   `json:"category"`
	Tags       []string `json:"tags"`
}

// Analyzer 调用模型分析新闻, 失败时使用规则分析
type Analyzer struct {
	llm         LLM
	concurrency int
	logger      *zap.Logger
}

func NewAnalyzer(llm LLM, concurrency int, logger *zap.Logger) *Analyzer {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Analyzer{llm: llm, concurrency: concurrency, logger: logger.Named("analyzer")}
}

// Analyze 分析单条新闻, 不会失败
func (a *Analyzer) Analyze(ctx context.Context, item model.NewsItem) Outcome[model.AnalyzedNews] {
	if a.llm == nil || !a.llm.Available() {
		return degraded(BasicAnalysis(item), CauseMissingCredential, ErrModelUnavailable)
	}

	analyzed, err := a.analyzeWithModel(ctx, item)
	if err != nil {
		cause := classify(err)
		a.logger.Warn("model analysis failed, using rule-based analysis",
			zap.String("link", item.Link),
			zap.String("cause", string(cause)),
			zap.Error(err))
		return degraded(BasicAnalysis(item), cause, err)
	}
	return ok(analyzed)
}

func (a *Analyzer) analyzeWithModel(ctx context.Context, item model.NewsItem) (model.AnalyzedNews, error) {
	user := fmt.Sprintf("Title: %s\nContent: %s\nSource: %s\nLink: %s", item.Title, item.Description, item.Source, item.Link)

	content, err := a.llm.Chat(ctx, a.llm.GetPrompt(model.SettingPromptAnalyze), user)
	if err != nil {
		return model.AnalyzedNews{}, err
	}

	var resp analysisResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return model.AnalyzedNews{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	summary := strings.TrimSpace(resp.Summary)
	if summary == "" {
		return model.AnalyzedNews{}, fmt.Errorf("%w: empty summary", ErrMalformedResponse)
	}
	if resp.Importance < model.MinImportance || resp.Importance > model.MaxImportance {
		return model.AnalyzedNews{}, fmt.Errorf("%w: importance %d out of range", ErrMalformedResponse, resp.Importance)
	}

	return model.AnalyzedNews{
		NewsItem:   item,
		Summary:    truncateRunes(summary, summaryMaxRunes),
		Importance: resp.Importance,
		Category:   normalizeCategory(resp.Category),
		Tags:       cleanTags(resp.Tags, model.MaxTags),
	}, nil
}

// AnalyzeAll 并发分析, 输出顺序与输入一致
func (a *Analyzer) AnalyzeAll(ctx context.Context, items []model.NewsItem) []Outcome[model.AnalyzedNews] {
	results := make([]Outcome[model.AnalyzedNews], len(items))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, item := range items {
		g.Go(func() error {
			results[i] = a.Analyze(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// SelectTopN 按重要性降序稳定排序后截取前n条
func SelectTopN(analyzed []model.AnalyzedNews, n int) []model.AnalyzedNews {
	if n <= 0 {
		return []model.AnalyzedNews{}
	}

	sorted := make([]model.AnalyzedNews, len(analyzed))
	copy(sorted, analyzed)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Importance > sorted[j].Importance
	})

	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// BasicAnalysis 基于规则的确定性分析
func BasicAnalysis(item model.NewsItem) model.AnalyzedNews {
	category := inferCategory(item.Title)
	return model.AnalyzedNews{
		NewsItem:   item,
		Summary:    truncateRunes(item.Description, summaryMaxRunes),
		Importance: defaultImportance,
		Category:   category,
		Tags:       []string{category, "IT", "tech"},
	}
}

func inferCategory(title string) string {
	lower := strings.ToLower(title)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	padded := " " + strings.Join(words, " ") + " "

	for _, rule := range categoryRules {
		for _, term := range rule.terms {
			if isASCII(term) {
				if strings.Contains(padded, " "+term+" ") {
					return rule.category
				}
			} else if strings.Contains(lower, term) {
				return rule.category
			}
		}
	}
	return model.CategoryOther
}

func normalizeCategory(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, c := range model.Categories {
		if strings.EqualFold(raw, c) {
			return c
		}
	}
	if c, ok := categoryAliases[raw]; ok {
		return c
	}
	return model.CategoryOther
}

func cleanTags(tags []string, limit int) []string {
	out := make([]string, 0, limit)
	for _, t := range tags {
		if t = strings.TrimSpace(t); t == "" {
			continue
		}
		out = append(out, t)
		if len(out) == limit {
			break
		}
	}
	return out
}

// truncateRunes 超出 n 个字符时截断并加省略号
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-3]) + "..."
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
