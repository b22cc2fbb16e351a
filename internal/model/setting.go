package model

import "time"

// Setting 可在运行时修改的键值配置(提示词等)
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Key       string    `gorm:"size:100;uniqueIndex;not null" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// 预定义配置键
const (
	SettingPromptAnalyze = "prompt_analyze"
	SettingPromptCompose = "prompt_compose"
)
