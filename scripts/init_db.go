package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"tutor/internal/config"
	"tutor/internal/model"
	"tutor/internal/pkg/logger"
	"tutor/internal/pkg/mongodb"
)

// 初始化数据库：创建全部索引并打印各集合的文档数
//
//	go run ./scripts
func main() {
	// 1. 加载配置（与 cmd/root.go 保持一致的搜索路径）
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.tutor")

	viper.SetEnvPrefix("TUTOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
		os.Exit(1)
	}

	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to unmarshal config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// 2. 连接 MongoDB
	client, err := mongodb.New(ctx, &cfg.Mongo)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect mongo")
	}
	defer func() {
		_ = client.Close(context.Background())
	}()

	db := client.Database()

	// 3. 创建索引
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("ensure indexes failed")
	}

	// 4. 统计
	for _, m := range []mongodb.Model{&model.Conversation{}, &model.Message{}, &model.Exercise{}} {
		n, err := db.Collection(m.Collection()).EstimatedDocumentCount(ctx)
		if err != nil {
			log.Fatal().Err(err).Str("collection", m.Collection()).Msg("count documents failed")
		}
		fmt.Printf("%-14s %d\n", m.Collection(), n)
	}

	fmt.Printf("Database initialized: %s\n", cfg.Mongo.Database)
}
