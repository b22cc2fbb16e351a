package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"cardnews/config"
	"cardnews/internal/handler"
	"cardnews/internal/logger"
	"cardnews/internal/model"
	"cardnews/internal/scheduler"
	"cardnews/internal/service"
)

const shutdownTimeout = 30 * time.Second

var configPath string

// app 持有启动后的全部服务
type app struct {
	cfg          *config.Config
	log          *zap.Logger
	settings     *service.SettingsService
	llm          *service.LLMService
	results      *service.ResultStore
	orchestrator *service.Orchestrator
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "cardnews",
		Short:         "IT card news generator",
		Long:          `Collects IT news, analyzes it with a language model and renders card news decks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.log.Sync() }()
			return a.serve(cmd.Context())
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the yaml config file")

	rootCmd.AddCommand(&cobra.Command{
		Use:       "run [daily|monthly]",
		Short:     "Run one generation and exit",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(model.Daily), string(model.Monthly)},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.log.Sync() }()
			path, err := a.orchestrator.RunTaskManually(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("run %s: %w", args[0], err)
			}
			a.log.Info("card news generated", zap.String("path", path))
			return nil
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func bootstrap(path string) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogDir:      cfg.Pipeline.LogDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	if missing := cfg.MissingCredentials(); len(missing) > 0 {
		log.Warn("credentials missing, fallback paths will be used", zap.Strings("missing", missing))
	}

	// 初始化数据库
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database dir: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(cfg.Database.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 自动迁移
	if err := db.AutoMigrate(&model.Setting{}, &model.GenerationResult{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// 初始化服务
	settingsSvc := service.NewSettingsService(db)
	if err := settingsSvc.InitDefaults(); err != nil {
		return nil, fmt.Errorf("failed to init settings: %w", err)
	}
	llmSvc := service.NewLLMService(cfg.LLM, settingsSvc, log)
	resultStore := service.NewResultStore(db)

	collector := service.NewCollector(
		cfg.News,
		service.NewNewsAPIClient(cfg.News, &http.Client{Timeout: cfg.News.Timeout}),
		service.NewFeedService(cfg.News.Timeout),
		service.NewNewsCache(cfg.News.CacheDir, cfg.News.CacheTTL),
		log,
	)
	orchestrator := service.NewOrchestrator(
		collector,
		service.NewAnalyzer(llmSvc, cfg.Pipeline.Concurrency, log),
		service.NewComposer(llmSvc, cfg.Pipeline.LogDir, log),
		service.NewRenderer(cfg.Pipeline.OutputDir, cfg.Render, log),
		resultStore,
		cfg.Pipeline,
		log,
	)

	return &app{
		cfg:          cfg,
		log:          log,
		settings:     settingsSvc,
		llm:          llmSvc,
		results:      resultStore,
		orchestrator: orchestrator,
	}, nil
}

func (a *app) serve(ctx context.Context) error {
	cfg, log := a.cfg, a.log

	// 启动定时任务
	sched := scheduler.NewScheduler(a.orchestrator, cfg.Cron, log)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	// 初始化Gin
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery(), handler.LoggerMiddleware(log))

	r.Static("/output", cfg.Pipeline.OutputDir)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 注册路由
	h := handler.NewHandler(
		cfg,
		a.orchestrator,
		a.llm,
		a.settings,
		a.results,
		service.NewStatusService(a.results, cfg.Pipeline.OutputDir, cfg.News.CacheDir),
		log,
	)
	h.SetScheduler(sched)
	h.RegisterRoutes(r)

	// 启动服务
	srv := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
		log.Error("server error", zap.Error(serveErr))
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}
	return serveErr
}
