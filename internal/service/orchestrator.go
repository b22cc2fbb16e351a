package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cardnews/config"
	"cardnews/internal/model"
)

// ResultRecorder 保存运行记录
type ResultRecorder interface {
	Append(ctx context.Context, r *model.GenerationResult) error
}

// Artifact 最近一次运行的产物
type Artifact struct {
	Path        string    `json:"path"`
	Kind        string    `json:"type"`
	CompletedAt time.Time `json:"completed_at"`
}

// Orchestrator 串联 采集 -> 分析 -> 排序 -> 生成 -> 渲染 -> 记录
type Orchestrator struct {
	collector *Collector
	analyzer  *Analyzer
	composer  *Composer
	renderer  *Renderer
	results   ResultRecorder
	cfg       config.PipelineConfig
	logger    *zap.Logger

	mu      sync.Mutex // 同一时间只运行一个任务
	running atomic.Bool
	last    atomic.Pointer[Artifact]
}

func NewOrchestrator(
	collector *Collector,
	analyzer *Analyzer,
	composer *Composer,
	renderer *Renderer,
	results ResultRecorder,
	cfg config.PipelineConfig,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		collector: collector,
		analyzer:  analyzer,
		composer:  composer,
		renderer:  renderer,
		results:   results,
		cfg:       cfg,
		logger:    logger.Named("orchestrator"),
	}
}

// RunDaily 每日卡片新闻
func (o *Orchestrator) RunDaily(ctx context.Context) (string, error) {
	return o.run(ctx, model.Daily)
}

// RunMonthly 月度汇总, 使用全部缓存的新闻
func (o *Orchestrator) RunMonthly(ctx context.Context) (string, error) {
	return o.run(ctx, model.Monthly)
}

// RunTaskManually 按类型运行
func (o *Orchestrator) RunTaskManually(ctx context.Context, kind string) (string, error) {
	switch model.Frequency(kind) {
	case model.Daily:
		return o.RunDaily(ctx)
	case model.Monthly:
		return o.RunMonthly(ctx)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// LastArtifactPath 最近完成的运行产物, 运行中返回上一次的值
func (o *Orchestrator) LastArtifactPath() (string, bool) {
	a := o.last.Load()
	if a == nil {
		return "", false
	}
	return a.Path, true
}

// LastArtifact 最近完成的运行产物及完成时间
func (o *Orchestrator) LastArtifact() (Artifact, bool) {
	a := o.last.Load()
	if a == nil {
		return Artifact{}, false
	}
	return *a, true
}

// Running 是否有任务在运行
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// run 各阶段都有降级值, 只有连占位文件都写不出时才返回错误
func (o *Orchestrator) run(ctx context.Context, freq model.Frequency) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running.Store(true)
	defer o.running.Store(false)

	start := time.Now()
	runID := uuid.NewString()
	log := o.logger.With(zap.String("run_id", runID), zap.String("kind", string(freq)))
	log.Info("run started")

	causes := causeSet{}
	note := func(stage string, cause Cause) {
		if cause == CauseNone {
			return
		}
		causes.add(cause)
		recordFallback(stage, cause)
	}

	// collecting
	topN := o.cfg.DailyTopN
	var collected Outcome[[]model.NewsItem]
	if freq == model.Monthly {
		topN = o.cfg.MonthlyTopN
		collected = o.collector.CollectArchive(ctx)
	} else {
		collected = o.collector.Collect(ctx)
	}
	if collected.Degraded {
		note("collect", collected.Cause)
	}
	news := withoutFallback(collected.Value)
	log.Info("news collected", zap.Int("count", len(news)), zap.Bool("degraded", collected.Degraded))

	// analyzing
	outcomes := o.analyzer.AnalyzeAll(ctx, news)
	analyzed := make([]model.AnalyzedNews, len(outcomes))
	fallbacks := 0
	for i, out := range outcomes {
		analyzed[i] = out.Value
		if out.Degraded {
			fallbacks++
			note("analyze", out.Cause)
		}
	}
	log.Info("news analyzed", zap.Int("count", len(analyzed)), zap.Int("rule_based", fallbacks))

	// ranking
	selected := SelectTopN(analyzed, topN)

	// composing
	deck := o.composer.Compose(ctx, selected, freq)
	if deck.Degraded {
		note("compose", deck.Cause)
	}
	log.Info("deck composed", zap.Int("slides", len(deck.Value.Slides)), zap.Bool("degraded", deck.Degraded))

	// rendering
	path, err := o.render(deck.Value, freq, log, note)
	if err != nil {
		runsTotal.WithLabelValues(string(freq), "failed").Inc()
		log.Error("run failed, no artifact written", zap.Error(err))
		return "", err
	}

	// persisting
	if o.results != nil {
		result := &model.GenerationResult{
			RunID:         runID,
			Kind:          freq,
			Date:          start.Format("2006-01-02"),
			Path:          path,
			NewsCount:     len(news),
			AnalyzedCount: len(analyzed),
			SelectedCount: len(selected),
			Degraded:      len(causes) > 0,
			Causes:        causes.String(),
		}
		if err := o.results.Append(ctx, result); err != nil {
			log.Error("failed to record generation result", zap.Error(err))
		}
	}

	o.last.Store(&Artifact{Path: path, Kind: string(freq), CompletedAt: time.Now()})

	outcome := "ok"
	if len(causes) > 0 {
		outcome = "degraded"
	}
	runsTotal.WithLabelValues(string(freq), outcome).Inc()
	runDuration.WithLabelValues(string(freq)).Observe(time.Since(start).Seconds())

	log.Info("run finished",
		zap.String("path", path),
		zap.String("outcome", outcome),
		zap.String("causes", causes.String()),
		zap.Duration("elapsed", time.Since(start)))
	return path, nil
}

// render 依次尝试: 正常渲染, 转换文本产物, 错误说明页, 占位文件
func (o *Orchestrator) render(deck model.Deck, freq model.Frequency, log *zap.Logger, note func(string, Cause)) (string, error) {
	rendered := o.renderer.Render(deck, freq)
	if !rendered.Degraded {
		return rendered.Value, nil
	}
	note("render", rendered.Cause)

	if rendered.Value != "" {
		return o.renderer.ToPortableDocument(rendered.Value), nil
	}

	log.Warn("render failed, rendering error deck", zap.Error(rendered.Err))
	fallback := o.renderer.Render(ErrorDeck(freq, time.Now()), freq)
	if fallback.Value != "" {
		return fallback.Value, nil
	}

	log.Error("error deck render failed, writing placeholder", zap.Error(fallback.Err))
	return o.renderer.WritePlaceholder(freq, rendered.Err)
}
