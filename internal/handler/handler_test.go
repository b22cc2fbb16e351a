package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cardnews/config"
	"cardnews/internal/service"
)

type fakePipeline struct {
	calls   atomic.Int32
	kind    atomic.Value
	last    *service.Artifact
	running bool
}

func (p *fakePipeline) RunTaskManually(_ context.Context, kind string) (string, error) {
	p.kind.Store(kind)
	p.calls.Add(1)
	return "out.pdf", nil
}

func (p *fakePipeline) LastArtifact() (service.Artifact, bool) {
	if p.last == nil {
		return service.Artifact{}, false
	}
	return *p.last, true
}

func (p *fakePipeline) Running() bool { return p.running }

func newTestRouter(t *testing.T, cfg *config.Config, p Pipeline) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(cfg, p, nil, nil, nil, nil, zap.NewNop()).RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestRunEndpoints_MissingCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.OutputDir = t.TempDir()
	p := &fakePipeline{}
	r := newTestRouter(t, cfg, p)

	for _, path := range []string{"/api/run-daily", "/api/run-monthly"} {
		w := do(r, http.MethodPost, path)

		require.Equal(t, http.StatusBadRequest, w.Code, path)
		var body struct {
			Missing []string `json:"missing"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, []string{"NEWS_API_KEY", "LLM_API_KEY"}, body.Missing)
	}
	assert.Zero(t, p.calls.Load())
}

func TestRunEndpoints_StartsBackgroundRun(t *testing.T) {
	cfg := config.Default()
	cfg.News.APIKey = "news-key"
	cfg.LLM.ApiKey = "llm-key"
	cfg.Pipeline.OutputDir = t.TempDir()
	p := &fakePipeline{}
	r := newTestRouter(t, cfg, p)

	w := do(r, http.MethodPost, "/api/run-monthly")

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "Monthly card news generation started")
	assert.Eventually(t, func() bool { return p.calls.Load() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "monthly", p.kind.Load())
}

func TestTaskStatus(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "Daily_IT_News_2026-10-16_abc123.pdf")
	require.NoError(t, os.WriteFile(artifact, []byte("%PDF-"), 0o644))

	cfg := config.Default()
	cfg.Pipeline.OutputDir = dir

	t.Run("from last artifact", func(t *testing.T) {
		p := &fakePipeline{last: &service.Artifact{Path: artifact, Kind: "daily", CompletedAt: time.Now()}}
		w := do(newTestRouter(t, cfg, p), http.MethodGet, "/api/task-status")

		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, true, body["completed"])
		assert.Equal(t, false, body["running"])
		recent := body["recentFile"].(map[string]any)
		assert.Equal(t, "Daily_IT_News_2026-10-16_abc123.pdf", recent["filename"])
		assert.Equal(t, "/output/Daily_IT_News_2026-10-16_abc123.pdf", recent["url"])
	})

	t.Run("running keeps completed false", func(t *testing.T) {
		p := &fakePipeline{running: true, last: &service.Artifact{Path: artifact}}
		w := do(newTestRouter(t, cfg, p), http.MethodGet, "/api/task-status")

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, false, body["completed"])
		assert.Equal(t, true, body["running"])
	})

	t.Run("recent file without run", func(t *testing.T) {
		w := do(newTestRouter(t, cfg, &fakePipeline{}), http.MethodGet, "/api/task-status")

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, true, body["completed"])
		assert.NotNil(t, body["recentFile"])
		assert.Nil(t, body["lastGeneratedInfo"])
	})

	t.Run("nothing generated", func(t *testing.T) {
		empty := config.Default()
		empty.Pipeline.OutputDir = t.TempDir()
		w := do(newTestRouter(t, empty, &fakePipeline{}), http.MethodGet, "/api/task-status")

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, false, body["completed"])
		assert.Nil(t, body["recentFile"])
	})
}

func TestListCardNews(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("%PDF-"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	cfg := config.Default()
	cfg.Pipeline.OutputDir = dir

	w := do(newTestRouter(t, cfg, &fakePipeline{}), http.MethodGet, "/api/card-news")

	require.Equal(t, http.StatusOK, w.Code)
	var files []service.ArtifactFile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &files))
	require.Len(t, files, 1)
	assert.Equal(t, "a.pdf", files[0].Filename)
	assert.Equal(t, "/output/a.pdf", files[0].URL)
}

func TestLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(LoggerMiddleware(zap.NewNop()))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := do(r, http.MethodGet, "/ping?x=1")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}
