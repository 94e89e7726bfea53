package model

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Role 消息角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// 消息 metadata 中使用的 key
const (
	MetaKind       = "kind"
	MetaSourceURL  = "sourceUrl"
	MetaToolName   = "tool"
	MetaToolCallID = "toolCallId"
	MetaToolCalls  = "toolCalls"
	MetaStatus     = "status"
)

// 助手消息的种类
const (
	KindText      = "text"
	KindExercises = "exercises"
	KindToolCall  = "tool_call"
)

// Message 会话中的一条消息，同一会话内按 created_at 全序
type Message struct {
	ID             string         `bson:"id" json:"id"`
	ConversationID string         `bson:"conversation_id" json:"conversationId"`
	Role           Role           `bson:"role" json:"role"`
	Content        string         `bson:"content" json:"content"`
	Metadata       map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt      time.Time      `bson:"created_at" json:"createdAt"`
}

// Kind 返回 metadata 中记录的消息种类
func (m *Message) Kind() string {
	if m.Metadata == nil {
		return ""
	}
	kind, _ := m.Metadata[MetaKind].(string)
	return kind
}

// IsConversational 是否属于用户可见的对话文本（排除工具调用请求与工具结果）
func (m *Message) IsConversational() bool {
	switch m.Role {
	case RoleUser:
		return true
	case RoleAssistant:
		return m.Kind() != KindToolCall
	default:
		return false
	}
}

// Collection 返回集合名称
func (m *Message) Collection() string { return "messages" }

// EnsureIndexes 创建和维护索引
func (m *Message) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(m.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName("idx_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("idx_conversation_created"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
