package component

import (
	"context"
	"fmt"

	arkext "github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"tutor/internal/config"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	defaultArkBaseURL  = "https://ark.cn-beijing.volces.com/api/v3"
)

// NewChatModel 创建支持工具调用的 ChatModel
// 支持 Provider: openai, azure, ark
func NewChatModel(ctx context.Context, cfg *config.AIConfig) (model.ToolCallingChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required for provider: %s", cfg.Provider)
	}

	switch cfg.Provider {
	case "openai", "":
		return newOpenAIChatModel(ctx, cfg)
	case "azure":
		return newAzureChatModel(ctx, cfg)
	case "ark":
		return newArkChatModel(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}
}

func newOpenAIChatModel(ctx context.Context, cfg *config.AIConfig) (model.ToolCallingChatModel, error) {
	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultOpenAIModel
	}

	modelCfg := &openai.ChatModelConfig{
		Model:   modelName,
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
	}
	applyOpenAIOptions(modelCfg, &cfg.Options)

	return openai.NewChatModel(ctx, modelCfg)
}

func newAzureChatModel(ctx context.Context, cfg *config.AIConfig) (model.ToolCallingChatModel, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base_url is required for provider: azure")
	}

	modelCfg := &openai.ChatModelConfig{
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		ByAzure: true,
	}
	applyOpenAIOptions(modelCfg, &cfg.Options)

	return openai.NewChatModel(ctx, modelCfg)
}

func applyOpenAIOptions(modelCfg *openai.ChatModelConfig, opts *config.AIOptionsConfig) {
	if opts.Temperature > 0 {
		temp := float32(opts.Temperature)
		modelCfg.Temperature = &temp
	}
	if opts.MaxTokens > 0 {
		maxTokens := opts.MaxTokens
		modelCfg.MaxTokens = &maxTokens
	}
	if opts.TopP > 0 {
		topP := float32(opts.TopP)
		modelCfg.TopP = &topP
	}
}

// newArkChatModel 火山方舟，经 eino-ext 接入
func newArkChatModel(ctx context.Context, cfg *config.AIConfig) (model.ToolCallingChatModel, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultArkBaseURL
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model (endpoint id) is required for provider: ark")
	}

	modelCfg := &arkext.ChatModelConfig{
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
		BaseURL: baseURL,
	}
	if cfg.Options.Temperature > 0 {
		temp := float32(cfg.Options.Temperature)
		modelCfg.Temperature = &temp
	}
	if cfg.Options.MaxTokens > 0 {
		maxTokens := cfg.Options.MaxTokens
		modelCfg.MaxTokens = &maxTokens
	}
	if cfg.Options.TopP > 0 {
		topP := float32(cfg.Options.TopP)
		modelCfg.TopP = &topP
	}

	return arkext.NewChatModel(ctx, modelCfg)
}
