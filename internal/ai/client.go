package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"tutor/internal/ai/component"
	"tutor/internal/config"
	"tutor/internal/model"
)

// ErrEmptyResponse 模型没有返回消息
var ErrEmptyResponse = errors.New("llm returned an empty response")

// LLMClient 单次对话补全
// 编排层只依赖这个接口，测试中用脚本化的实现替换
type LLMClient interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Request 一次模型调用
type Request struct {
	Messages    []*schema.Message
	Tools       []*schema.ToolInfo // 为空时不挂载工具
	Temperature *float32
}

// Response 模型返回的助手消息及 token 用量
type Response struct {
	Message *schema.Message
	Usage   *model.TokenUsage
}

// ToolCalls 返回模型请求的工具调用
func (r *Response) ToolCalls() []schema.ToolCall {
	if r == nil || r.Message == nil {
		return nil
	}
	return r.Message.ToolCalls
}

// Content 返回助手消息文本
func (r *Response) Content() string {
	if r == nil || r.Message == nil {
		return ""
	}
	return r.Message.Content
}

// EinoClient 基于 eino ToolCallingChatModel 的实现，每次调用带超时
type EinoClient struct {
	chatModel einomodel.ToolCallingChatModel
	timeout   time.Duration
}

// NewEinoClient 包装已有的 ChatModel
func NewEinoClient(chatModel einomodel.ToolCallingChatModel, timeout time.Duration) *EinoClient {
	return &EinoClient{chatModel: chatModel, timeout: timeout}
}

// NewClient 按配置创建带重试的 LLMClient
func NewClient(ctx context.Context, cfg *config.AIConfig) (LLMClient, error) {
	chatModel, err := component.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	log.Info().
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Dur("timeout", cfg.Timeout).
		Int("max_retries", cfg.MaxRetries).
		Msg("llm client initialized")

	return NewRetryClient(NewEinoClient(chatModel, cfg.Timeout), cfg.MaxRetries, cfg.RetryBackoff), nil
}

// Complete 调用模型，Tools 非空时先绑定工具（不修改共享的 ChatModel）
func (c *EinoClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	chatModel := c.chatModel
	if len(req.Tools) > 0 {
		withTools, err := chatModel.WithTools(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("bind tools: %w", err)
		}
		chatModel = withTools
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var opts []einomodel.Option
	if req.Temperature != nil {
		opts = append(opts, einomodel.WithTemperature(*req.Temperature))
	}

	msg, err := chatModel.Generate(ctx, req.Messages, opts...)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrEmptyResponse
	}

	return &Response{Message: msg, Usage: usageFromMessage(msg)}, nil
}

func usageFromMessage(msg *schema.Message) *model.TokenUsage {
	if msg.ResponseMeta == nil || msg.ResponseMeta.Usage == nil {
		return nil
	}
	u := msg.ResponseMeta.Usage
	return &model.TokenUsage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}
