package repository

import "go.mongodb.org/mongo-driver/mongo"

// Store 会话存储：会话、消息、练习题三个仓库
type Store struct {
	Conversations ConversationRepository
	Messages      MessageRepository
	Exercises     ExerciseRepository
}

// NewMongoStore 基于同一个数据库创建三个仓库
func NewMongoStore(db *mongo.Database) *Store {
	return &Store{
		Conversations: NewConversationRepo(db),
		Messages:      NewMessageRepo(db),
		Exercises:     NewExerciseRepo(db),
	}
}
