// Package testutil 提供测试辅助工具：内存仓库、脚本化的 LLM 与种子题库桩
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"tutor/internal/model"
	"tutor/internal/repository"
)

// MemoryStore 内存版会话存储，同时满足三个仓库接口
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[string]*model.Conversation
	messages      []*model.Message
	exercises     []*model.Exercise

	// FailMessageCreate 非空时 Messages().Create 返回该错误
	FailMessageCreate error
}

// NewMemoryStore 创建空存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[string]*model.Conversation)}
}

// Conversations 会话仓库视图
func (s *MemoryStore) Conversations() repository.ConversationRepository {
	return (*memConversations)(s)
}

// Messages 消息仓库视图
func (s *MemoryStore) Messages() repository.MessageRepository { return (*memMessages)(s) }

// Exercises 练习题仓库视图
func (s *MemoryStore) Exercises() repository.ExerciseRepository { return (*memExercises)(s) }

// ConversationCount 已创建的会话数
func (s *MemoryStore) ConversationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

// Conversation 返回会话副本
func (s *MemoryStore) Conversation(id string) (*model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}

// AllMessages 指定会话的全部消息（含工具消息），按写入顺序
func (s *MemoryStore) AllMessages(conversationID string) []*model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out
}

// AllExercises 指定会话的全部练习题，按写入顺序
func (s *MemoryStore) AllExercises(conversationID string) []*model.Exercise {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Exercise
	for _, e := range s.exercises {
		if e.ConversationID == conversationID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out
}

type memConversations MemoryStore

func (r *memConversations) Create(_ context.Context, conv *model.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[conv.ID]; ok {
		return errors.New("duplicate conversation id")
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now()
	}
	conv.UpdatedAt = conv.CreatedAt
	if conv.Title == "" {
		conv.Title = model.DefaultConversationTitle
	}
	cp := *conv
	r.conversations[conv.ID] = &cp
	return nil
}

func (r *memConversations) FindByID(_ context.Context, id string) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memConversations) ListByClientID(_ context.Context, clientID string, limit int64) ([]*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Conversation, 0)
	for _, c := range r.conversations {
		if c.ClientID == clientID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return activity(out[i]).After(activity(out[j]))
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func activity(c *model.Conversation) time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return time.Time{}
}

func (r *memConversations) SetTitleIfDefault(_ context.Context, id, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conversations[id]; ok && c.Title == model.DefaultConversationTitle {
		c.Title = title
		c.UpdatedAt = time.Now()
	}
	return nil
}

func (r *memConversations) TouchLastMessage(_ context.Context, id, preview string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.LastMessagePreview = preview
	c.LastMessageAt = &at
	c.UpdatedAt = at
	return nil
}

type memMessages MemoryStore

func (r *memMessages) Create(_ context.Context, msg *model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailMessageCreate != nil {
		return r.FailMessageCreate
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	cp := *msg
	r.messages = append(r.messages, &cp)
	return nil
}

func (r *memMessages) FindByConversationID(_ context.Context, conversationID string) ([]*model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Message, 0)
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type memExercises MemoryStore

func (r *memExercises) CreateMany(_ context.Context, exercises []*model.Exercise) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range exercises {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now()
		}
		cp := *e
		r.exercises = append(r.exercises, &cp)
	}
	return nil
}

func (r *memExercises) FindByConversationID(_ context.Context, conversationID string) ([]*model.Exercise, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Exercise, 0)
	for _, e := range r.exercises {
		if e.ConversationID == conversationID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Store 以 repository.Store 形式返回
func (s *MemoryStore) Store() *repository.Store {
	return &repository.Store{
		Conversations: s.Conversations(),
		Messages:      s.Messages(),
		Exercises:     s.Exercises(),
	}
}
