package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/schema"

	"tutor/internal/ai"
	"tutor/internal/model"
)

// ScriptedLLM 按顺序返回预设回复的 LLMClient，并记录每次请求
type ScriptedLLM struct {
	mu        sync.Mutex
	responses []*ai.Response
	errs      []error
	requests  []*ai.Request
}

// NewScriptedLLM 创建脚本化 LLM
func NewScriptedLLM() *ScriptedLLM { return &ScriptedLLM{} }

// ReplyText 追加一条纯文本回复
func (l *ScriptedLLM) ReplyText(content string) *ScriptedLLM {
	return l.push(&ai.Response{
		Message: schema.AssistantMessage(content, nil),
		Usage:   &model.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil)
}

// ReplyJSON 追加一条 JSON 内容的回复
func (l *ScriptedLLM) ReplyJSON(v any) *ScriptedLLM {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return l.ReplyText(string(raw))
}

// ToolCall 描述一次工具调用请求
type ToolCall struct {
	ID   string
	Name string
	Args any
}

// ReplyToolCalls 追加一条请求工具调用的回复
func (l *ScriptedLLM) ReplyToolCalls(calls ...ToolCall) *ScriptedLLM {
	toolCalls := make([]schema.ToolCall, 0, len(calls))
	for i, c := range calls {
		args, ok := c.Args.(string)
		if !ok {
			raw, err := json.Marshal(c.Args)
			if err != nil {
				panic(err)
			}
			args = string(raw)
		}
		id := c.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i+1)
		}
		toolCalls = append(toolCalls, schema.ToolCall{
			ID:       id,
			Type:     "function",
			Function: schema.FunctionCall{Name: c.Name, Arguments: args},
		})
	}
	return l.push(&ai.Response{
		Message: schema.AssistantMessage("", toolCalls),
		Usage:   &model.TokenUsage{PromptTokens: 20, CompletionTokens: 8, TotalTokens: 28},
	}, nil)
}

// ReplyError 追加一次失败
func (l *ScriptedLLM) ReplyError(err error) *ScriptedLLM {
	return l.push(nil, err)
}

func (l *ScriptedLLM) push(resp *ai.Response, err error) *ScriptedLLM {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.responses = append(l.responses, resp)
	l.errs = append(l.errs, err)
	return l
}

// Complete 实现 ai.LLMClient
func (l *ScriptedLLM) Complete(_ context.Context, req *ai.Request) (*ai.Response, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := len(l.requests)
	l.requests = append(l.requests, req)
	if idx >= len(l.responses) {
		return nil, fmt.Errorf("scripted llm: unexpected call #%d", idx+1)
	}
	return l.responses[idx], l.errs[idx]
}

// Calls 已发生的调用次数
func (l *ScriptedLLM) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}

// Request 第 i 次调用的请求
func (l *ScriptedLLM) Request(i int) *ai.Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.requests[i]
}
