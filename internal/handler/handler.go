package handler

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cardnews/config"
	"cardnews/internal/model"
	"cardnews/internal/service"
)

// recentWindow 没有运行记录时, 视为刚生成的产物的时间范围
const recentWindow = 5 * time.Minute

// Pipeline 卡片新闻生成流程
type Pipeline interface {
	RunTaskManually(ctx context.Context, kind string) (string, error)
	LastArtifact() (service.Artifact, bool)
	Running() bool
}

type Handler struct {
	pipeline  Pipeline
	llm       *service.LLMService
	settings  *service.SettingsService
	results   *service.ResultStore
	status    *service.StatusService
	outputDir string
	missing   func() []string
	logger    *zap.Logger
	now       func() time.Time
	scheduler interface {
		GetNextDailyTime() time.Time
		GetNextMonthlyTime() time.Time
	}
}

func NewHandler(
	cfg *config.Config,
	pipeline Pipeline,
	llm *service.LLMService,
	settings *service.SettingsService,
	results *service.ResultStore,
	status *service.StatusService,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		pipeline:  pipeline,
		llm:       llm,
		settings:  settings,
		results:   results,
		status:    status,
		outputDir: cfg.Pipeline.OutputDir,
		missing:   cfg.MissingCredentials,
		logger:    logger.Named("handler"),
		now:       time.Now,
	}
}

// SetScheduler 设置调度器引用
func (h *Handler) SetScheduler(scheduler interface {
	GetNextDailyTime() time.Time
	GetNextMonthlyTime() time.Time
}) {
	h.scheduler = scheduler
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		// Card news
		api.GET("/card-news", h.ListCardNews)
		api.POST("/run-daily", h.RunDaily)
		api.POST("/run-monthly", h.RunMonthly)
		api.GET("/task-status", h.TaskStatus)
		api.GET("/results", h.ListResults)

		// Config
		api.GET("/config", h.GetConfig)
		api.POST("/config", h.SaveConfig)

		// LLM
		api.GET("/llm/models", h.GetLLMModels)
		api.POST("/llm/test", h.TestLLMConnection)

		// Status
		api.GET("/status", h.GetStatus)
	}
}

// ===== Card news =====

func (h *Handler) ListCardNews(c *gin.Context) {
	files, err := service.ListArtifacts(h.outputDir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, files)
}

func (h *Handler) RunDaily(c *gin.Context) {
	h.startRun(c, model.Daily)
}

func (h *Handler) RunMonthly(c *gin.Context) {
	h.startRun(c, model.Monthly)
}

// startRun 校验凭证后在后台运行, 立即返回 202
func (h *Handler) startRun(c *gin.Context, kind model.Frequency) {
	if missing := h.missing(); len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing credentials",
			"missing": missing,
		})
		return
	}

	go func() {
		path, err := h.pipeline.RunTaskManually(context.Background(), string(kind))
		if err != nil {
			h.logger.Error("manual run failed", zap.String("kind", string(kind)), zap.Error(err))
			return
		}
		h.logger.Info("manual run finished", zap.String("kind", string(kind)), zap.String("path", path))
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"message": kind.Label() + " card news generation started",
		"type":    kind,
	})
}

func (h *Handler) TaskStatus(c *gin.Context) {
	running := h.pipeline.Running()
	resp := gin.H{
		"completed":         false,
		"running":           running,
		"recentFile":        nil,
		"lastGeneratedInfo": nil,
		"lastUpdate":        h.now(),
	}

	if last, ok := h.pipeline.LastArtifact(); ok {
		resp["completed"] = !running
		resp["lastGeneratedInfo"] = last
		resp["lastUpdate"] = last.CompletedAt
		if info, err := os.Stat(last.Path); err == nil {
			resp["recentFile"] = service.ArtifactFile{
				Filename:  filepath.Base(last.Path),
				URL:       "/output/" + filepath.Base(last.Path),
				CreatedAt: info.ModTime(),
				Size:      info.Size(),
			}
		}
	} else if recent, ok := service.RecentArtifact(h.outputDir, recentWindow, h.now()); ok {
		resp["completed"] = !running
		resp["recentFile"] = recent
		resp["lastUpdate"] = recent.CreatedAt
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListResults(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	results, err := h.results.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": results})
}

// ===== Config相关 =====

func (h *Handler) GetConfig(c *gin.Context) {
	settings, err := h.settings.All()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *Handler) SaveConfig(c *gin.Context) {
	var input map[string]string
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.settings.Save(input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "saved"})
}

// ===== LLM相关 =====

func (h *Handler) GetLLMModels(c *gin.Context) {
	models, err := h.llm.GetModels(c.Request.Context())
	if err != nil {
		c.JSON(llmErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"models": models})
}

func (h *Handler) TestLLMConnection(c *gin.Context) {
	response, err := h.llm.TestConnection(c.Request.Context())
	if err != nil {
		c.JSON(llmErrorStatus(err), gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"provider": h.llm.Provider(),
		"response": response,
	})
}

func llmErrorStatus(err error) int {
	if errors.Is(err, service.ErrModelUnavailable) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// ===== Status相关 =====

func (h *Handler) GetStatus(c *gin.Context) {
	status, err := h.status.GetSystemStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status.Running = h.pipeline.Running()
	if h.llm != nil {
		status.LLMProvider = h.llm.Provider()
		status.LLMAvailable = h.llm.Available()
	}

	// 添加定时任务信息
	if h.scheduler != nil {
		status.NextDailyTime = h.scheduler.GetNextDailyTime()
		status.NextMonthlyTime = h.scheduler.GetNextMonthlyTime()
	}

	c.JSON(http.StatusOK, status)
}
