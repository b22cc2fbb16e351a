package service

import (
	"fmt"

	"gorm.io/gorm"

	"cardnews/internal/model"
)

const defaultAnalyzePrompt = `You analyze IT news articles. Respond with a single JSON object only:
{
  "summary": "core point of the article, at most 100 characters",
  "importance": 1-10 (10 = most important for IT trend watchers),
  "category": "one of: AI, cloud, security, mobile, software, hardware, blockchain, other",
  "tags": ["up to 5 keywords"]
}
Prefer trend and analysis pieces over product announcements.`

const defaultComposePrompt = `You create card-news slide decks from ranked IT news. Respond with a single JSON object only:
{
  "slides": [
    {"type": "cover", "title": "...", "subtitle": "the key trend"},
    {"type": "news", "title": "short catchy title", "content": "1-2 sentences", "tags": ["..."], "sourceUrl": "original link", "imagePrompt": "visual idea"},
    {"type": "summary", "title": "...", "content": "overall trend summary"}
  ]
}
Use exactly one cover slide first, one news slide per article in the given order, and one summary slide last.`

var defaultSettings = map[string]string{
	model.SettingPromptAnalyze: defaultAnalyzePrompt,
	model.SettingPromptCompose: defaultComposePrompt,
}

// SettingsService 读写 settings 表
type SettingsService struct {
	db *gorm.DB
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{db: db}
}

// InitDefaults 写入缺省的提示词, 已存在的不覆盖
func (s *SettingsService) InitDefaults() error {
	for key, value := range defaultSettings {
		if err := s.db.Where("key = ?", key).FirstOrCreate(&model.Setting{Key: key, Value: value}).Error; err != nil {
			return fmt.Errorf("init setting %s: %w", key, err)
		}
	}
	return nil
}

// GetPrompt 数据库没有时返回内置默认值
func (s *SettingsService) GetPrompt(key string) string {
	if s != nil && s.db != nil {
		var setting model.Setting
		if err := s.db.Where("key = ?", key).First(&setting).Error; err == nil && setting.Value != "" {
			return setting.Value
		}
	}
	return defaultSettings[key]
}

// All 返回全部配置
func (s *SettingsService) All() (map[string]string, error) {
	var items []model.Setting
	if err := s.db.Find(&items).Error; err != nil {
		return nil, err
	}

	result := make(map[string]string, len(items))
	for _, item := range items {
		result[item.Key] = item.Value
	}
	return result, nil
}

// Save 只接受已知的键
func (s *SettingsService) Save(input map[string]string) error {
	for key := range input {
		if _, known := defaultSettings[key]; !known {
			return fmt.Errorf("unknown setting %q", key)
		}
	}

	for key, value := range input {
		err := s.db.Where("key = ?", key).
			Assign(model.Setting{Value: value}).
			FirstOrCreate(&model.Setting{Key: key}).Error
		if err != nil {
			return fmt.Errorf("save setting %s: %w", key, err)
		}
	}
	return nil
}
