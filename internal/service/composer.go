package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"cardnews/internal/model"
)

const maxSlideTags = 3

// Composer 把分析结果组织成幻灯片
type Composer struct {
	llm    LLM
	logDir string
	logger *zap.Logger
	now    func() time.Time
}

func NewComposer(llm LLM, logDir string, logger *zap.Logger) *Composer {
	return &Composer{llm: llm, logDir: logDir, logger: logger.Named("composer"), now: time.Now}
}

type composeItem struct {
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	Importance int      `json:"importance"`
	Category   string   `json:"category"`
	Tags       []string `json:"tags"`
	Link       string   `json:"link"`
	Source     string   `json:"source"`
}

// Compose 生成幻灯片, 不会失败
func (c *Composer) Compose(ctx context.Context, analyzed []model.AnalyzedNews, freq model.Frequency) Outcome[model.Deck] {
	if len(analyzed) == 0 {
		deck := EmptyDeck(freq, c.now())
		c.dump(deck)
		return degraded(deck, CauseEmptyInput, nil)
	}

	if c.llm == nil || !c.llm.Available() {
		deck := FallbackDeck(analyzed, freq, c.now())
		c.dump(deck)
		return degraded(deck, CauseMissingCredential, ErrModelUnavailable)
	}

	deck, err := c.composeWithModel(ctx, analyzed, freq)
	if err != nil {
		cause := classify(err)
		c.logger.Warn("model composition failed, using deterministic deck",
			zap.String("cause", string(cause)),
			zap.Error(err))
		deck = FallbackDeck(analyzed, freq, c.now())
		c.dump(deck)
		return degraded(deck, cause, err)
	}

	c.dump(deck)
	return ok(deck)
}

func (c *Composer) composeWithModel(ctx context.Context, analyzed []model.AnalyzedNews, freq model.Frequency) (model.Deck, error) {
	items := make([]composeItem, len(analyzed))
	for i, a := range analyzed {
		items[i] = composeItem{
			Title:      a.Title,
			Summary:    a.Summary,
			Importance: a.Importance,
			Category:   a.Category,
			Tags:       a.Tags,
			Link:       a.Link,
			Source:     a.Source,
		}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return model.Deck{}, err
	}

	user := fmt.Sprintf("Edition: %s IT news, %s\nArticles (most important first):\n%s",
		freq.Label(), c.now().Format("2006-01-02"), payload)

	content, err := c.llm.Chat(ctx, c.llm.GetPrompt(model.SettingPromptCompose), user)
	if err != nil {
		return model.Deck{}, err
	}

	var deck model.Deck
	if err := json.Unmarshal([]byte(content), &deck); err != nil {
		return model.Deck{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := deck.Validate(); err != nil {
		return model.Deck{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return deck, nil
}

// dump 保存生成内容便于排查, 失败只记录日志
func (c *Composer) dump(deck model.Deck) {
	if c.logDir == "" {
		return
	}

	data, err := json.MarshalIndent(deck, "", "  ")
	if err != nil {
		c.logger.Warn("failed to encode deck for dump", zap.Error(err))
		return
	}

	if err := os.MkdirAll(c.logDir, 0o755); err != nil {
		c.logger.Warn("failed to create log dir", zap.Error(err))
		return
	}

	name := fmt.Sprintf("cardnews-content-%s.json", c.now().Format("20060102-150405.000"))
	if err := os.WriteFile(filepath.Join(c.logDir, name), data, 0o644); err != nil {
		c.logger.Warn("failed to write deck dump", zap.Error(err))
	}
}

func coverSlide(freq model.Frequency, now time.Time) model.Slide {
	title := "Today's IT News"
	subtitle := now.Format("January 2, 2006")
	if freq == model.Monthly {
		title = "This Month's IT News"
		subtitle = now.Format("January 2006")
	}
	return model.Slide{Type: model.SlideCover, Title: title, Subtitle: subtitle}
}

// EmptyDeck 没有新闻时的两页说明
func EmptyDeck(freq model.Frequency, now time.Time) model.Deck {
	return model.Deck{Slides: []model.Slide{
		coverSlide(freq, now),
		{
			Type:    model.SlideSummary,
			Title:   "No news today",
			Content: "Sorry, no IT news could be collected for this edition. Please check back with the next update.",
		},
	}}
}

// ErrorDeck 渲染失败后重试用的最小幻灯片
func ErrorDeck(freq model.Frequency, now time.Time) model.Deck {
	return model.Deck{Slides: []model.Slide{
		coverSlide(freq, now),
		{
			Type:    model.SlideSummary,
			Title:   "Card news unavailable",
			Content: "An error occurred while generating this edition. It will be regenerated on the next run.",
		},
	}}
}

// FallbackDeck 不依赖模型的确定性幻灯片: 封面, 每条新闻一页, 总结
func FallbackDeck(analyzed []model.AnalyzedNews, freq model.Frequency, now time.Time) model.Deck {
	slides := make([]model.Slide, 0, len(analyzed)+2)
	slides = append(slides, coverSlide(freq, now))

	for _, a := range analyzed {
		tags := a.Tags
		if len(tags) > maxSlideTags {
			tags = tags[:maxSlideTags]
		}
		slides = append(slides, model.Slide{
			Type:      model.SlideNews,
			Title:     a.Title,
			Content:   a.Summary,
			Tags:      append([]string(nil), tags...),
			SourceURL: a.Link,
		})
	}

	slides = append(slides, model.Slide{
		Type:    model.SlideSummary,
		Title:   "Key Trends",
		Content: trendSummary(analyzed),
	})
	return model.Deck{Slides: slides}
}

// trendSummary 按出现顺序统计分类
func trendSummary(analyzed []model.AnalyzedNews) string {
	counts := make(map[string]int)
	var order []string
	for _, a := range analyzed {
		if _, seen := counts[a.Category]; !seen {
			order = append(order, a.Category)
		}
		counts[a.Category]++
	}

	parts := make([]string, len(order))
	for i, cat := range order {
		parts[i] = fmt.Sprintf("%s (%d)", cat, counts[cat])
	}
	return fmt.Sprintf("%d stories covered. Topics: %s.", len(analyzed), strings.Join(parts, ", "))
}
