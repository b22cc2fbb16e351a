package service

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cardnews/internal/model"
)

// ArtifactFile 输出目录中的一个产物
type ArtifactFile struct {
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
	Size      int64     `json:"size"`
}

var artifactExts = map[string]bool{".pdf": true, ".pptx": true}

// ListArtifacts 列出PDF/PPTX产物, 新的在前
func ListArtifacts(dir string) ([]ArtifactFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ArtifactFile{}, nil
		}
		return nil, err
	}

	files := make([]ArtifactFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !artifactExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, ArtifactFile{
			Filename:  e.Name(),
			URL:       "/output/" + e.Name(),
			CreatedAt: info.ModTime(),
			Size:      info.Size(),
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})
	return files, nil
}

// RecentArtifact within 时间内生成的最新产物
func RecentArtifact(dir string, within time.Duration, now time.Time) (ArtifactFile, bool) {
	files, err := ListArtifacts(dir)
	if err != nil || len(files) == 0 {
		return ArtifactFile{}, false
	}
	if now.Sub(files[0].CreatedAt) > within {
		return ArtifactFile{}, false
	}
	return files[0], true
}

type StatusService struct {
	results   *ResultStore
	outputDir string
	cacheDir  string
}

type SystemStatus struct {
	// 运行统计
	DailyRuns       int64 `json:"daily_runs"`
	DailyDegraded   int64 `json:"daily_degraded"`
	MonthlyRuns     int64 `json:"monthly_runs"`
	MonthlyDegraded int64 `json:"monthly_degraded"`

	LastResult *model.GenerationResult `json:"last_result,omitempty"`
	Running    bool                    `json:"running"`

	// 文件统计
	Artifacts   int `json:"artifacts"`
	CachedQuery int `json:"cached_queries"`

	LLMProvider  string `json:"llm_provider"`
	LLMAvailable bool   `json:"llm_available"`

	// 定时任务信息
	NextDailyTime   time.Time `json:"next_daily_time"`
	NextMonthlyTime time.Time `json:"next_monthly_time"`
}

func NewStatusService(results *ResultStore, outputDir, cacheDir string) *StatusService {
	return &StatusService{results: results, outputDir: outputDir, cacheDir: cacheDir}
}

// GetSystemStatus 获取系统状态
func (s *StatusService) GetSystemStatus(ctx context.Context) (*SystemStatus, error) {
	status := &SystemStatus{}

	var err error
	if status.DailyRuns, status.DailyDegraded, err = s.results.CountByKind(ctx, model.Daily); err != nil {
		return nil, err
	}
	if status.MonthlyRuns, status.MonthlyDegraded, err = s.results.CountByKind(ctx, model.Monthly); err != nil {
		return nil, err
	}
	if status.LastResult, err = s.results.Latest(ctx); err != nil {
		return nil, err
	}

	if files, err := ListArtifacts(s.outputDir); err == nil {
		status.Artifacts = len(files)
	}
	if matches, err := filepath.Glob(filepath.Join(s.cacheDir, "*"+cacheSuffix)); err == nil {
		status.CachedQuery = len(matches)
	}

	return status, nil
}
