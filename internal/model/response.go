package model

import "time"

// TokenUsage Token 使用统计
type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// ExerciseSource 题目来源标记
type ExerciseSource struct {
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
}

// ExerciseItem 对外返回的一道练习题
type ExerciseItem struct {
	ID         string         `json:"id"`
	Topic      string         `json:"topic"`
	Difficulty string         `json:"difficulty"`
	Statement  string         `json:"statement"`
	Steps      []string       `json:"steps"`
	Answer     string         `json:"answer"`
	Source     ExerciseSource `json:"source"`
}

// ExercisesPayload 结构化练习题列表
type ExercisesPayload struct {
	Exercises []*ExerciseItem `json:"exercises"`
}

// ToolStatus 工具调用结果状态
type ToolStatus string

const (
	ToolStatusOK    ToolStatus = "ok"
	ToolStatusError ToolStatus = "error"
)

// ToolEvent 单次工具调用的观测记录
type ToolEvent struct {
	Name      string         `json:"name"`
	Args      map[string]any `json:"args"`
	Status    ToolStatus     `json:"status"`
	ElapsedMs int64          `json:"ms"`
	Summary   string         `json:"summary"`
}

// TurnTimings 每次模型调用的耗时
type TurnTimings struct {
	InitialMs  int64  `json:"initialMs"`
	FollowupMs *int64 `json:"followupMs,omitempty"`
}

// TurnTokens 每次模型调用的 token 用量
type TurnTokens struct {
	Initial  *TokenUsage `json:"initial"`
	Followup *TokenUsage `json:"followup,omitempty"`
}

// TurnMeta 一轮对话的诊断信息
type TurnMeta struct {
	Timings   TurnTimings  `json:"timings"`
	Tokens    TurnTokens   `json:"tokens"`
	Tools     []*ToolEvent `json:"tools"`
	SourceURL string       `json:"sourceUrl,omitempty"`
}

// TextChatResponse 纯文本回复
type TextChatResponse struct {
	Text           string    `json:"text"`
	ConversationID string    `json:"conversationId"`
	Source         string    `json:"source,omitempty"`
	Meta           *TurnMeta `json:"meta,omitempty"`
}

// ExercisesChatResponse 结构化练习题回复
type ExercisesChatResponse struct {
	Data           *ExercisesPayload `json:"data"`
	ConversationID string            `json:"conversationId"`
	Source         string            `json:"source,omitempty"`
	Meta           *TurnMeta         `json:"meta,omitempty"`
}

// ConversationSummary GET /conversations 列表项
type ConversationSummary struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	LastMessagePreview string     `json:"lastMessagePreview"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	LastMessageAt      *time.Time `json:"lastMessageAt"`
}

// MessageView 会话详情中的消息
type MessageView struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ExerciseView 会话详情中的练习题
type ExerciseView struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	Difficulty string    `json:"difficulty"`
	Statement  string    `json:"statement"`
	Steps      []string  `json:"steps"`
	Answer     string    `json:"answer"`
	SourceURL  string    `json:"sourceUrl,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	MessageID  string    `json:"messageId"`
}

// ConversationDetail GET /conversations/:id 响应
type ConversationDetail struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Messages  []*MessageView  `json:"messages"`
	Exercises []*ExerciseView `json:"exercises"`
}
