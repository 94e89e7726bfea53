package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tutor/internal/model"
)

// ExerciseRepository 练习题仓库接口
type ExerciseRepository interface {
	CreateMany(ctx context.Context, exercises []*model.Exercise) error
	// FindByConversationID 按创建时间正序返回
	FindByConversationID(ctx context.Context, conversationID string) ([]*model.Exercise, error)
}

// ExerciseRepo 练习题仓库
type ExerciseRepo struct {
	coll *mongo.Collection
}

// NewExerciseRepo 创建练习题仓库
func NewExerciseRepo(db *mongo.Database) *ExerciseRepo {
	var e model.Exercise
	return &ExerciseRepo{coll: db.Collection(e.Collection())}
}

// CreateMany 批量写入同一批题目
func (r *ExerciseRepo) CreateMany(ctx context.Context, exercises []*model.Exercise) error {
	if len(exercises) == 0 {
		return nil
	}
	now := time.Now()
	docs := make([]any, 0, len(exercises))
	for _, e := range exercises {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		docs = append(docs, e)
	}
	_, err := r.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	return err
}

// FindByConversationID 按创建时间正序返回
func (r *ExerciseRepo) FindByConversationID(ctx context.Context, conversationID string) ([]*model.Exercise, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	exercises := make([]*model.Exercise, 0)
	if err := cur.All(ctx, &exercises); err != nil {
		return nil, err
	}
	return exercises, nil
}
