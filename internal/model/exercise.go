package model

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Exercise 持久化的练习题
// 同一批生成的题目共享 MessageID，用于分组展示
type Exercise struct {
	ID             string    `bson:"id" json:"id"`
	ConversationID string    `bson:"conversation_id" json:"conversationId"`
	MessageID      string    `bson:"message_id" json:"messageId"`
	Topic          string    `bson:"topic" json:"topic"`
	Difficulty     string    `bson:"difficulty" json:"difficulty"`
	Statement      string    `bson:"statement" json:"statement"`
	Steps          []string  `bson:"steps" json:"steps"`
	Answer         string    `bson:"answer" json:"answer"`
	SourceType     string    `bson:"source_type" json:"sourceType"`
	SourceURL      string    `bson:"source_url,omitempty" json:"sourceUrl,omitempty"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
}

// Collection 返回集合名称
func (e *Exercise) Collection() string { return "exercises" }

// EnsureIndexes 创建和维护索引
func (e *Exercise) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(e.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName("idx_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("idx_conversation_created"),
		},
		{
			Keys:    bson.D{{Key: "message_id", Value: 1}},
			Options: options.Index().SetName("idx_message_id"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
