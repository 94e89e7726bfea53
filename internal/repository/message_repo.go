package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tutor/internal/model"
)

// MessageRepository 消息仓库接口
type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) error
	// FindByConversationID 按创建时间正序返回
	FindByConversationID(ctx context.Context, conversationID string) ([]*model.Message, error)
}

// MessageRepo 消息仓库
type MessageRepo struct {
	coll *mongo.Collection
}

// NewMessageRepo 创建消息仓库
func NewMessageRepo(db *mongo.Database) *MessageRepo {
	var m model.Message
	return &MessageRepo{coll: db.Collection(m.Collection())}
}

// Create 写入消息，CreatedAt 由调用方指定时保留
func (r *MessageRepo) Create(ctx context.Context, msg *model.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	_, err := r.coll.InsertOne(ctx, msg)
	return err
}

// FindByConversationID 按创建时间正序返回
func (r *MessageRepo) FindByConversationID(ctx context.Context, conversationID string) ([]*model.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	msgs := make([]*model.Message, 0)
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}
