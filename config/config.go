package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Cron     CronConfig     `yaml:"cron"`
	News     NewsConfig     `yaml:"news"`
	LLM      LLMConfig      `yaml:"llm"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Render   RenderConfig   `yaml:"render"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type CronConfig struct {
	Daily   string `yaml:"daily"`   // 每日卡片新闻
	Monthly string `yaml:"monthly"` // 每月汇总
}

type NewsConfig struct {
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	Country         string        `yaml:"country"`
	Language        string        `yaml:"language"`
	Category        string        `yaml:"category"`
	Keywords        []string      `yaml:"keywords"`
	Feeds           []string      `yaml:"feeds"` // 额外的RSS源
	Blocklist       []string      `yaml:"blocklist"`
	WindowDays      int           `yaml:"window_days"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxItems        int           `yaml:"max_items"`
	MonthlyMaxItems int           `yaml:"monthly_max_items"`
	CacheDir        string        `yaml:"cache_dir"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
}

type LLMConfig struct {
	Provider string        `yaml:"provider"` // openai, anthropic
	ApiURL   string        `yaml:"api_url"`
	ApiKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

type PipelineConfig struct {
	DailyTopN   int    `yaml:"daily_top_n"`
	MonthlyTopN int    `yaml:"monthly_top_n"` // 5~10
	Concurrency int    `yaml:"concurrency"`
	OutputDir   string `yaml:"output_dir"`
	LogDir      string `yaml:"log_dir"`
}

type RenderConfig struct {
	FontPath      string `yaml:"font_path"`
	BoldFontPath  string `yaml:"bold_font_path"`
	BackgroundDir string `yaml:"background_dir"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "3000",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Path: "data/cardnews.db",
		},
		Cron: CronConfig{
			Daily:   "0 8 * * *", // 每天08:00
			Monthly: "0 9 1 * *", // 每月1日09:00
		},
		News: NewsConfig{
			BaseURL:         "https://newsapi.org/v2",
			Country:         "kr",
			Language:        "ko",
			Category:        "technology",
			Keywords:        []string{"AI", "cloud", "cybersecurity", "semiconductor"},
			Blocklist:       []string{"출시", "발표", "신제품", "launch", "release", "unveil", "product announcement"},
			WindowDays:      3,
			Timeout:         10 * time.Second,
			MaxItems:        10,
			MonthlyMaxItems: 30,
			CacheDir:        "data/news",
			CacheTTL:        time.Hour,
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			Timeout:  60 * time.Second,
		},
		Pipeline: PipelineConfig{
			DailyTopN:   5,
			MonthlyTopN: 7,
			Concurrency: 4,
			OutputDir:   "data/output",
			LogDir:      "logs",
		},
		Render: RenderConfig{
			FontPath:      "assets/fonts/Pretendard-Regular.ttf",
			BoldFontPath:  "assets/fonts/Pretendard-Bold.ttf",
			BackgroundDir: "assets/backgrounds",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	cfg := Default()

	// .env 不存在时忽略
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to load .env: %v", err)
	}

	// 如果配置文件存在,读取配置
	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else {
		log.Printf("config file %s not found, using defaults", configPath)
	}

	cfg.applyEnv()
	cfg.clamp()

	return cfg, nil
}

// applyEnv 环境变量覆盖配置
func (c *Config) applyEnv() {
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.Mode, "GIN_MODE")
	setString(&c.Database.Path, "DB_PATH")
	setString(&c.Cron.Daily, "DAILY_CRON")
	setString(&c.Cron.Monthly, "MONTHLY_CRON")
	setString(&c.News.APIKey, "NEWS_API_KEY")
	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.ApiURL, "LLM_API_URL")
	setString(&c.Log.Level, "LOG_LEVEL")

	// 兼容 OPENAI_* 变量
	setString(&c.LLM.ApiKey, "OPENAI_API_KEY")
	setString(&c.LLM.Model, "OPENAI_MODEL")
	if c.LLM.Provider == "anthropic" {
		setString(&c.LLM.ApiKey, "ANTHROPIC_API_KEY")
	}
	setString(&c.LLM.ApiKey, "LLM_API_KEY")
	setString(&c.LLM.Model, "LLM_MODEL")

	if v := os.Getenv("NEWS_KEYWORDS"); v != "" {
		c.News.Keywords = splitList(v)
	}
	if v := os.Getenv("NEWS_FEEDS"); v != "" {
		c.News.Feeds = splitList(v)
	}
	if n, err := strconv.Atoi(os.Getenv("MONTHLY_TOP_N")); err == nil {
		c.Pipeline.MonthlyTopN = n
	}
}

// clamp 修正越界的数值
func (c *Config) clamp() {
	if c.Pipeline.DailyTopN <= 0 {
		c.Pipeline.DailyTopN = 5
	}
	if c.Pipeline.MonthlyTopN < 5 {
		c.Pipeline.MonthlyTopN = 5
	}
	if c.Pipeline.MonthlyTopN > 10 {
		c.Pipeline.MonthlyTopN = 10
	}
	if c.Pipeline.Concurrency <= 0 {
		c.Pipeline.Concurrency = 1
	}
	if c.News.MaxItems <= 0 {
		c.News.MaxItems = 10
	}
	if c.News.MonthlyMaxItems < c.News.MaxItems {
		c.News.MonthlyMaxItems = c.News.MaxItems
	}
}

// MissingCredentials 返回缺失的外部凭证名称
func (c *Config) MissingCredentials() []string {
	var missing []string
	if c.News.APIKey == "" {
		missing = append(missing, "NEWS_API_KEY")
	}
	if c.LLM.ApiKey == "" || c.LLM.ApiKey == "your_openai_api_key_here" {
		missing = append(missing, "LLM_API_KEY")
	}
	return missing
}

// GetServerAddress 获取服务器监听地址
func (c *Config) GetServerAddress() string {
	// 如果端口是纯数字,加上冒号前缀
	if _, err := strconv.Atoi(c.Server.Port); err == nil {
		return ":" + c.Server.Port
	}
	return c.Server.Port
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
