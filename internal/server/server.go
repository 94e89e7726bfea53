package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"tutor/internal/ai"
	"tutor/internal/config"
	"tutor/internal/handler"
	"tutor/internal/pkg/cache"
	"tutor/internal/pkg/mathtools"
	"tutor/internal/pkg/mongodb"
	"tutor/internal/repository"
	"tutor/internal/server/middleware"
	"tutor/internal/service"
)

const defaultIdentitySecret = "default-secret-key-change-in-production"

// Services 路由依赖的服务
type Services struct {
	Chat          *service.ChatService
	Conversations *service.ConversationService
	Identity      *service.IdentityService
	DB            handler.Pinger
}

// Server HTTP 服务器
type Server struct {
	cfg    *config.Config
	engine *gin.Engine
	mongo  *mongodb.Client
	redis  *cache.RedisCache
}

// New 创建服务器实例：连接 MongoDB（必需）与 Redis（可选），组装模型客户端和种子题库
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	mongoClient, err := mongodb.New(ctx, &cfg.Mongo)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

	if err := mongodb.EnsureIndexes(ctx, mongoClient.Database()); err != nil {
		_ = mongoClient.Close(context.Background())
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	// 初始化 Redis (可选)
	var redisCache *cache.RedisCache
	seedOpts := []mathtools.SeedOption{}
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(ctx, &cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, seed dataset cache disabled")
		} else {
			redisCache = rc
			seedOpts = append(seedOpts, mathtools.WithDatasetCache(rc))
			log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
		}
	}

	seeds, err := mathtools.NewSeedFetcher(&cfg.Seed, seedOpts...)
	if err != nil {
		_ = mongoClient.Close(context.Background())
		return nil, fmt.Errorf("seed source: %w", err)
	}

	llm, err := ai.NewClient(ctx, &cfg.AI)
	if err != nil {
		_ = mongoClient.Close(context.Background())
		return nil, fmt.Errorf("llm client: %w", err)
	}
	log.Info().Str("provider", cfg.AI.Provider).Str("model", cfg.AI.Model).Msg("initialized LLM client")

	secret := cfg.Identity.Secret
	if secret == "" {
		secret = defaultIdentitySecret
		log.Warn().Str("mode", cfg.Server.Mode).Msg("identity secret not configured, using development default")
	}
	maxAge := cfg.Identity.MaxAge
	if maxAge <= 0 {
		maxAge = 365 * 24 * time.Hour
	}

	store := repository.NewMongoStore(mongoClient.Database())
	services := &Services{
		Chat: service.NewChatService(llm, store, seeds, service.ChatOptions{
			Seed:        cfg.Seed,
			SampleSize:  cfg.Seed.SampleSize,
			Temperature: float32(cfg.AI.Options.Temperature),
		}),
		Conversations: service.NewConversationService(store),
		Identity:      service.NewIdentityService(secret, maxAge),
		DB:            mongoClient,
	}

	srv := NewWithServices(cfg, services)
	srv.mongo = mongoClient
	srv.redis = redisCache
	return srv, nil
}

// NewWithServices 用现成的服务组装路由，不建立任何外部连接
func NewWithServices(cfg *config.Config, services *Services) *Server {
	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &Server{
		cfg:    cfg,
		engine: gin.New(),
	}
	srv.setupRoutes(services)
	return srv
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(services *Services) {
	// 全局中间件
	s.engine.Use(middleware.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger())
	s.engine.Use(middleware.CORS(s.cfg.CORS.AllowedOrigins))

	// 健康检查
	healthHandler := handler.NewHealthHandler(services.DB)
	s.engine.GET("/health", healthHandler.Health)
	s.engine.GET("/ready", healthHandler.Ready)

	// Swagger 文档
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 需要匿名身份的接口
	api := s.engine.Group("")
	api.Use(middleware.Identity(services.Identity, &s.cfg.Identity))
	{
		chatHandler := handler.NewChatHandler(services.Chat)
		api.POST("/chat", chatHandler.Chat)

		conversationHandler := handler.NewConversationHandler(services.Conversations)
		api.GET("/conversations", conversationHandler.List)
		api.GET("/conversations/:id", conversationHandler.Get)
	}
}

// Run 启动服务器
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	// 启动服务器
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待关闭信号或错误
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		// 关闭连接
		if s.mongo != nil {
			if err := s.mongo.Close(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to close MongoDB connection")
			}
		}
		if s.redis != nil {
			if err := s.redis.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close Redis connection")
			}
		}
		return err
	case err := <-errCh:
		return err
	}
}

// Engine 获取 Gin 引擎 (用于测试)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
