package model

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultConversationTitle 新会话在第一条用户消息之前的标题
const DefaultConversationTitle = "Nueva conversación"

// Conversation 会话实体
// 归属于某个匿名客户端，只能被同一客户端读取或续写
type Conversation struct {
	ID       string `bson:"id" json:"id"`
	ClientID string `bson:"client_id" json:"-"`
	Title    string `bson:"title" json:"title"`

	LastMessagePreview string     `bson:"last_message_preview,omitempty" json:"lastMessagePreview,omitempty"`
	LastMessageAt      *time.Time `bson:"last_message_at,omitempty" json:"lastMessageAt,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// Collection 返回集合名称
func (c *Conversation) Collection() string { return "conversations" }

// EnsureIndexes 创建和维护索引
func (c *Conversation) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(c.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName("idx_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "client_id", Value: 1}, {Key: "last_message_at", Value: -1}},
			Options: options.Index().SetName("idx_client_last_message"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
