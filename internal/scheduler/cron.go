package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"cardnews/config"
)

// Runner 定时触发的任务
type Runner interface {
	RunDaily(ctx context.Context) (string, error)
	RunMonthly(ctx context.Context) (string, error)
}

type Scheduler struct {
	cron           *cron.Cron
	runner         Runner
	config         config.CronConfig
	logger         *zap.Logger
	dailyEntryID   cron.EntryID
	monthlyEntryID cron.EntryID
}

func NewScheduler(runner Runner, cfg config.CronConfig, logger *zap.Logger) *Scheduler {
	logger = logger.Named("cron")
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		runner: runner,
		config: cfg,
		logger: logger,
	}
}

// Start 注册任务并启动, 表达式无效时返回错误
func (s *Scheduler) Start() error {
	var err error

	// 每日卡片新闻
	s.dailyEntryID, err = s.cron.AddFunc(s.config.Daily, func() {
		s.logger.Info("running daily card news")
		s.run("daily", s.runner.RunDaily)
	})
	if err != nil {
		return fmt.Errorf("invalid daily cron %q: %w", s.config.Daily, err)
	}

	// 月度汇总
	s.monthlyEntryID, err = s.cron.AddFunc(s.config.Monthly, func() {
		s.logger.Info("running monthly card news")
		s.run("monthly", s.runner.RunMonthly)
	})
	if err != nil {
		s.cron.Remove(s.dailyEntryID)
		return fmt.Errorf("invalid monthly cron %q: %w", s.config.Monthly, err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("daily", s.config.Daily),
		zap.String("monthly", s.config.Monthly))
	return nil
}

func (s *Scheduler) run(kind string, fn func(context.Context) (string, error)) {
	path, err := fn(context.Background())
	if err != nil {
		s.logger.Error("scheduled run failed", zap.String("kind", kind), zap.Error(err))
		return
	}
	s.logger.Info("scheduled run finished", zap.String("kind", kind), zap.String("path", path))
}

// GetNextDailyTime 下次每日任务时间
func (s *Scheduler) GetNextDailyTime() time.Time {
	return s.cron.Entry(s.dailyEntryID).Next
}

// GetNextMonthlyTime 下次月度任务时间
func (s *Scheduler) GetNextMonthlyTime() time.Time {
	return s.cron.Entry(s.monthlyEntryID).Next
}

// Stop 停止调度并等待正在运行的任务
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// cronLogger 把 cron 的日志接到 zap
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
