package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"knowledgehub/internal/ai"
	"knowledgehub/internal/config"
	"knowledgehub/internal/model"
	mysqlClient "knowledgehub/internal/platform/mysql"
	rabbitmqClient "knowledgehub/internal/platform/rabbitmq"
	redisClient "knowledgehub/internal/platform/redis"
	"knowledgehub/internal/repository"
	"knowledgehub/internal/worker"
)

type App struct {
	Config      *config.Config
	MySQL       *gorm.DB
	Redis       *redis.Client
	MQConn      *amqp.Connection
	AIClient    *ai.OpenAICompatibleClient
	IndexWorker *worker.IndexWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(
		&model.Organization{},
		&model.Project{},
		&model.ProjectMember{},
		&model.Document{},
		&model.Chunk{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	aiClient := ai.NewOpenAICompatibleClient()

	docRepo := repository.NewDocumentRepository(mysqlDB)
	chunkRepo := repository.NewChunkRepository(mysqlDB)
	indexWorker := worker.NewIndexWorker(
		mqConn,
		docRepo,
		chunkRepo,
		aiClient,
		EmbeddingConfig(cfg),
		cfg.RabbitMQ.IndexQueue,
	)
	if err := indexWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start index worker failed: %w", err)
	}

	return &App{
		Config:      cfg,
		MySQL:       mysqlDB,
		Redis:       redisCli,
		MQConn:      mqConn,
		AIClient:    aiClient,
		IndexWorker: indexWorker,
		StartedAt:   time.Now(),
	}, nil
}

// EmbeddingConfig builds the provider settings for embedding calls.
func EmbeddingConfig(cfg *config.Config) ai.EmbeddingConfig {
	return ai.EmbeddingConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.EmbeddingModel,
		Timeout: time.Duration(cfg.LLM.CallTimeoutSeconds) * time.Second,
	}
}

// ChatConfig builds the provider settings for generation calls.
func ChatConfig(cfg *config.Config) ai.ChatConfig {
	return ai.ChatConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: time.Duration(cfg.LLM.CallTimeoutSeconds) * time.Second,
	}
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.IndexWorker != nil {
		a.IndexWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
