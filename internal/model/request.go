package model

// ChatRequest POST /chat 请求体
type ChatRequest struct {
	Text           string `json:"text"`
	ConversationID string `json:"conversationId,omitempty"`
}
