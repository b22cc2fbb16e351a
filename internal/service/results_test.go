package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"cardnews/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Setting{}, &model.GenerationResult{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestResultStore_AppendAndList(t *testing.T) {
	store := NewResultStore(newTestDB(t))
	ctx := t.Context()

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	base := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	for i, kind := range []model.Frequency{model.Daily, model.Monthly, model.Daily} {
		require.NoError(t, store.Append(ctx, &model.GenerationResult{
			RunID:     string(rune('a' + i)),
			Kind:      kind,
			Date:      base.AddDate(0, 0, i).Format("2006-01-02"),
			Path:      "data/output/x.pdf",
			NewsCount: i + 1,
			Degraded:  i == 2,
			Causes:    "upstream_unavailable",
			CreatedAt: base.AddDate(0, 0, i),
		}))
	}

	results, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c", results[0].RunID)
	assert.Equal(t, "b", results[1].RunID)

	latest, err = store.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "c", latest.RunID)

	total, degradedRuns, err := store.CountByKind(ctx, model.Daily)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.EqualValues(t, 1, degradedRuns)
}

func TestSettingsService(t *testing.T) {
	s := NewSettingsService(newTestDB(t))
	require.NoError(t, s.InitDefaults())
	require.NoError(t, s.InitDefaults(), "init must be idempotent")

	all, err := s.All()
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, defaultAnalyzePrompt, s.GetPrompt(model.SettingPromptAnalyze))

	require.NoError(t, s.Save(map[string]string{model.SettingPromptAnalyze: "custom"}))
	assert.Equal(t, "custom", s.GetPrompt(model.SettingPromptAnalyze))

	err = s.Save(map[string]string{"llm_api_key": "secret"})
	assert.ErrorContains(t, err, "unknown setting")
	assert.Equal(t, "", s.GetPrompt("llm_api_key"))
}

func TestStatusService(t *testing.T) {
	db := newTestDB(t)
	store := NewResultStore(db)
	outputDir := t.TempDir()
	cacheDir := t.TempDir()

	require.NoError(t, store.Append(t.Context(), &model.GenerationResult{RunID: "r1", Kind: model.Daily, Degraded: true}))
	require.NoError(t, os.WriteFile(filepath.Join(outputDir, "Daily_IT_News_2026-10-16_abc123.pdf"), []byte("%PDF-"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(outputDir, "Daily_IT_News_2026-10-16_abc123.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "all_news.json"), []byte("[]"), 0o644))

	status, err := NewStatusService(store, outputDir, cacheDir).GetSystemStatus(t.Context())

	require.NoError(t, err)
	assert.EqualValues(t, 1, status.DailyRuns)
	assert.EqualValues(t, 1, status.DailyDegraded)
	assert.Zero(t, status.MonthlyRuns)
	assert.Equal(t, 1, status.Artifacts)
	assert.Equal(t, 1, status.CachedQuery)
	require.NotNil(t, status.LastResult)
	assert.Equal(t, "r1", status.LastResult.RunID)
}

func TestListArtifacts_NewestFirst(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"old.pdf", "new.pptx", "skip.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.pdf"), past, past))

	files, err := ListArtifacts(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "new.pptx", files[0].Filename)
	assert.Equal(t, "/output/old.pdf", files[1].URL)

	recent, ok := RecentArtifact(dir, 5*time.Minute, time.Now())
	assert.True(t, ok)
	assert.Equal(t, "new.pptx", recent.Filename)

	_, ok = RecentArtifact(dir, 5*time.Minute, time.Now().Add(time.Hour))
	assert.False(t, ok)

	missing, err := ListArtifacts(filepath.Join(dir, "absent"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}
