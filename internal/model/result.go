package model

import "time"

// GenerationResult 一次运行的记录, 只追加不修改
type GenerationResult struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	RunID         string    `gorm:"size:36;index;not null" json:"run_id"`
	Kind          Frequency `gorm:"size:16;index;not null" json:"type"`
	Date          string    `gorm:"size:10" json:"date"`
	Path          string    `gorm:"size:500" json:"path"`
	NewsCount     int       `json:"news_count"`
	AnalyzedCount int       `json:"analyzed_count"`
	SelectedCount int       `json:"selected_count"`
	Degraded      bool      `json:"degraded"`
	Causes        string    `gorm:"size:255" json:"causes,omitempty"` // 逗号分隔
	CreatedAt     time.Time `json:"created_at"`
}
