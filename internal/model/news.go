package model

import "time"

// NewsItem 采集到的原始新闻, Link 为去重键
type NewsItem struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description"`
	PublishedAt time.Time `json:"publish_date"`
	Source      string    `json:"source"`
	ImageURL    string    `json:"image_url,omitempty"`
	Fallback    bool      `json:"fallback,omitempty"` // 采集全部失败时的占位新闻
}

// Valid 标题和描述都不能为空
func (n NewsItem) Valid() bool {
	return n.Title != "" && n.Description != ""
}

// 固定的分类词表
const (
	CategoryAI         = "AI"
	CategoryCloud      = "cloud"
	CategorySecurity   = "security"
	CategoryMobile     = "mobile"
	CategorySoftware   = "software"
	CategoryHardware   = "hardware"
	CategoryBlockchain = "blockchain"
	CategoryOther      = "other"
)

var Categories = []string{
	CategoryAI,
	CategoryCloud,
	CategorySecurity,
	CategoryMobile,
	CategorySoftware,
	CategoryHardware,
	CategoryBlockchain,
	CategoryOther,
}

const (
	MinImportance = 1
	MaxImportance = 10
	MaxTags       = 5
)

// AnalyzedNews 经过分析的新闻
type AnalyzedNews struct {
	NewsItem
	Summary    string   `json:"summary"`
	Importance int      `json:"importance"` // 1~10, 10最重要
	Category   string   `json:"category"`
	Tags       []string `json:"tags"`
}
