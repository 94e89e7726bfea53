package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"tutor/internal/model"
)

// EnsureIndexes 启动时为所有持久化模型创建索引
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	return EnsureAllIndexes(ctx, db,
		&model.Conversation{},
		&model.Message{},
		&model.Exercise{},
	)
}
