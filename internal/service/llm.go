package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"cardnews/config"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	placeholderAPIKey = "your_openai_api_key_here"
	maxOutputTokens   = 4096
)

type LLMService struct {
	cfg       config.LLMConfig
	settings  *SettingsService
	openai    *openai.Client
	anthropic *anthropic.Client
	logger    *zap.Logger
}

// NewLLMService 根据 provider 初始化客户端; 未配置密钥时 Available 返回 false
func NewLLMService(cfg config.LLMConfig, settings *SettingsService, logger *zap.Logger) *LLMService {
	s := &LLMService{
		cfg:      cfg,
		settings: settings,
		logger:   logger.Named("llm"),
	}

	if cfg.ApiKey == "" || cfg.ApiKey == placeholderAPIKey {
		s.logger.Warn("LLM api key not configured, rule-based fallbacks will be used")
		return s
	}

	switch cfg.Provider {
	case ProviderAnthropic:
		opts := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(cfg.ApiKey),
			anthropicoption.WithMaxRetries(1),
		}
		if cfg.ApiURL != "" {
			opts = append(opts, anthropicoption.WithBaseURL(cfg.ApiURL))
		}
		client := anthropic.NewClient(opts...)
		s.anthropic = &client
	default:
		opts := []option.RequestOption{
			option.WithAPIKey(cfg.ApiKey),
			option.WithMaxRetries(1),
		}
		if cfg.ApiURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.ApiURL))
		}
		client := openai.NewClient(opts...)
		s.openai = &client
	}

	s.logger.Info("LLM client initialised", zap.String("provider", s.Provider()), zap.String("model", cfg.Model))
	return s
}

// Provider 当前使用的服务商
func (s *LLMService) Provider() string {
	if s.cfg.Provider == ProviderAnthropic {
		return ProviderAnthropic
	}
	return ProviderOpenAI
}

// Available 客户端是否可用
func (s *LLMService) Available() bool {
	return s.openai != nil || s.anthropic != nil
}

// Chat 调用LLM, 返回去掉代码块包裹后的文本
func (s *LLMService) Chat(ctx context.Context, system, user string) (string, error) {
	if !s.Available() {
		return "", ErrModelUnavailable
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	var (
		content string
		err     error
	)
	if s.anthropic != nil {
		content, err = s.chatAnthropic(ctx, system, user)
	} else {
		content, err = s.chatOpenAI(ctx, system, user)
	}
	if err != nil {
		return "", err
	}

	return cleanJSONResponse(content), nil
}

func (s *LLMService) chatOpenAI(ctx context.Context, system, user string) (string, error) {
	resp, err := s.openai.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no response from openai: %w", ErrMalformedResponse)
	}

	return resp.Choices[0].Message.Content, nil
}

func (s *LLMService) chatAnthropic(ctx context.Context, system, user string) (string, error) {
	resp, err := s.anthropic.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.cfg.Model),
		MaxTokens: maxOutputTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	if len(resp.Content) == 0 || resp.Content[0].Text == "" {
		return "", fmt.Errorf("no response from anthropic: %w", ErrMalformedResponse)
	}

	return resp.Content[0].Text, nil
}

// GetPrompt 获取提示词
func (s *LLMService) GetPrompt(key string) string {
	return s.settings.GetPrompt(key)
}

// GetModels 获取可用模型列表
func (s *LLMService) GetModels(ctx context.Context) ([]string, error) {
	if !s.Available() {
		return nil, ErrModelUnavailable
	}

	var models []string
	if s.anthropic != nil {
		iter := s.anthropic.Models.ListAutoPaging(ctx, anthropic.ModelListParams{})
		for iter.Next() {
			models = append(models, iter.Current().ID)
		}
		if err := iter.Err(); err != nil {
			return nil, fmt.Errorf("list anthropic models: %w", err)
		}
		return models, nil
	}

	iter := s.openai.Models.ListAutoPaging(ctx)
	for iter.Next() {
		models = append(models, iter.Current().ID)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list openai models: %w", err)
	}
	return models, nil
}

// TestConnection 测试LLM连接
func (s *LLMService) TestConnection(ctx context.Context) (string, error) {
	if !s.Available() {
		return "", ErrModelUnavailable
	}
	if s.cfg.Model == "" {
		return "", fmt.Errorf("model not configured")
	}

	return s.Chat(ctx, "Reply with a short greeting.", "Hi")
}

// cleanJSONResponse 去掉模型返回中的```json包裹和多余文字
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}
