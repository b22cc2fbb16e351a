package model

import "fmt"

type SlideType string

const (
	SlideCover   SlideType = "cover"
	SlideNews    SlideType = "news"
	SlideSummary SlideType = "summary"
)

// Frequency 运行频率
type Frequency string

const (
	Daily   Frequency = "daily"
	Monthly Frequency = "monthly"
)

// Valid 是否为已知频率
func (f Frequency) Valid() bool {
	return f == Daily || f == Monthly
}

// Label 用于文件名, Daily / Monthly
func (f Frequency) Label() string {
	if f == Monthly {
		return "Monthly"
	}
	return "Daily"
}

type Slide struct {
	Type        SlideType `json:"type"`
	Title       string    `json:"title"`
	Subtitle    string    `json:"subtitle,omitempty"`
	Content     string    `json:"content,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	SourceURL   string    `json:"sourceUrl,omitempty"`
	ImagePrompt string    `json:"imagePrompt,omitempty"`
}

// Deck 幻灯片序列, 顺序即展示顺序
type Deck struct {
	Slides []Slide `json:"slides"`
}

// Validate 检查幻灯片结构
func (d Deck) Validate() error {
	if len(d.Slides) == 0 {
		return fmt.Errorf("deck has no slides")
	}
	for i, s := range d.Slides {
		switch s.Type {
		case SlideCover, SlideNews, SlideSummary:
		default:
			return fmt.Errorf("slide %d: unknown type %q", i, s.Type)
		}
		if s.Title == "" {
			return fmt.Errorf("slide %d: missing title", i)
		}
	}
	return nil
}
