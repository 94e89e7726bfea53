package service

import (
	"context"
	"errors"
	"strings"

	"tutor/internal/model"
	"tutor/internal/pkg/id"
	"tutor/internal/repository"
)

// maxConversationList 列表接口最多返回的会话数
const maxConversationList = 200

// ConversationService 会话查询，只返回当前客户端自己的会话
type ConversationService struct {
	store *repository.Store
}

// NewConversationService 创建会话服务
func NewConversationService(store *repository.Store) *ConversationService {
	return &ConversationService{store: store}
}

// List 按最近活动倒序列出客户端的会话
func (s *ConversationService) List(ctx context.Context, clientID string) ([]*model.ConversationSummary, error) {
	convs, err := s.store.Conversations.ListByClientID(ctx, clientID, maxConversationList)
	if err != nil {
		return nil, err
	}

	out := make([]*model.ConversationSummary, 0, len(convs))
	for _, c := range convs {
		out = append(out, &model.ConversationSummary{
			ID:                 c.ID,
			Title:              c.Title,
			LastMessagePreview: c.LastMessagePreview,
			UpdatedAt:          c.UpdatedAt,
			LastMessageAt:      c.LastMessageAt,
		})
	}
	return out, nil
}

// Get 会话详情：对话消息与已保存的练习题
// id 格式错误、不存在或属于其他客户端时都返回 ErrConversationNotFound
func (s *ConversationService) Get(ctx context.Context, rawID, clientID string) (*model.ConversationDetail, error) {
	convID, ok := id.Normalize(strings.TrimSpace(rawID))
	if !ok {
		return nil, ErrConversationNotFound
	}

	conv, err := s.store.Conversations.FindByID(ctx, convID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if conv.ClientID != clientID {
		return nil, ErrConversationNotFound
	}

	messages, err := s.store.Messages.FindByConversationID(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	exercises, err := s.store.Exercises.FindByConversationID(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	detail := &model.ConversationDetail{
		ID:        conv.ID,
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
		Messages:  make([]*model.MessageView, 0, len(messages)),
		Exercises: make([]*model.ExerciseView, 0, len(exercises)),
	}
	for _, m := range messages {
		if !m.IsConversational() {
			continue
		}
		detail.Messages = append(detail.Messages, &model.MessageView{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	for _, e := range exercises {
		detail.Exercises = append(detail.Exercises, &model.ExerciseView{
			ID:         e.ID,
			Topic:      e.Topic,
			Difficulty: e.Difficulty,
			Statement:  e.Statement,
			Steps:      e.Steps,
			Answer:     e.Answer,
			SourceURL:  e.SourceURL,
			CreatedAt:  e.CreatedAt,
			MessageID:  e.MessageID,
		})
	}
	return detail, nil
}
