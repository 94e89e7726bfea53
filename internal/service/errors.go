package service

import "errors"

var (
	// ErrInvalidInput 用户输入为空、过长或会话 id 格式错误
	ErrInvalidInput = errors.New("invalid input")
	// ErrConversationNotFound 会话不存在或不属于当前客户端
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrUpstream 语言模型调用失败，本轮对话无法完成
	ErrUpstream = errors.New("llm upstream failure")
)
