package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tutor/internal/model"
)

// ConversationRepository 会话仓库接口（供 service 层依赖）
type ConversationRepository interface {
	Create(ctx context.Context, conv *model.Conversation) error
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
	ListByClientID(ctx context.Context, clientID string, limit int64) ([]*model.Conversation, error)
	// SetTitleIfDefault 仅当标题仍为默认值时更新
	SetTitleIfDefault(ctx context.Context, id, title string) error
	// TouchLastMessage 更新最近消息预览与活动时间
	TouchLastMessage(ctx context.Context, id, preview string, at time.Time) error
}

// ConversationRepo 会话仓库
type ConversationRepo struct {
	coll *mongo.Collection
}

// NewConversationRepo 创建会话仓库
func NewConversationRepo(db *mongo.Database) *ConversationRepo {
	var c model.Conversation
	return &ConversationRepo{coll: db.Collection(c.Collection())}
}

// Create 创建会话
func (r *ConversationRepo) Create(ctx context.Context, conv *model.Conversation) error {
	now := time.Now()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	conv.UpdatedAt = conv.CreatedAt
	if conv.Title == "" {
		conv.Title = model.DefaultConversationTitle
	}
	_, err := r.coll.InsertOne(ctx, conv)
	return err
}

// FindByID 根据ID查询
func (r *ConversationRepo) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	var c model.Conversation
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&c); err != nil {
		return nil, translateErr(err)
	}
	return &c, nil
}

// ListByClientID 客户端的会话列表，按最近活动倒序
func (r *ConversationRepo) ListByClientID(ctx context.Context, clientID string, limit int64) ([]*model.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_message_at", Value: -1}, {Key: "updated_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := r.coll.Find(ctx, bson.M{"client_id": clientID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	convs := make([]*model.Conversation, 0)
	if err := cur.All(ctx, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// SetTitleIfDefault 仅当标题仍为默认值时更新
func (r *ConversationRepo) SetTitleIfDefault(ctx context.Context, id, title string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"id": id, "title": model.DefaultConversationTitle},
		bson.M{"$set": bson.M{"title": title, "updated_at": time.Now()}},
	)
	return err
}

// TouchLastMessage 更新最近消息预览与活动时间
func (r *ConversationRepo) TouchLastMessage(ctx context.Context, id, preview string, at time.Time) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"id": id},
		bson.M{"$set": bson.M{
			"last_message_preview": preview,
			"last_message_at":      at,
			"updated_at":           at,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
