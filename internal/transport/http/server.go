package http

import (
	"time"

	"github.com/gin-gonic/gin"

	appsvc "knowledgehub/internal/app"
	"knowledgehub/internal/bootstrap"
	"knowledgehub/internal/cache"
	"knowledgehub/internal/platform/rabbitmq"
	"knowledgehub/internal/repository"
	"knowledgehub/internal/transport/http/handler"
	"knowledgehub/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), middleware.RequestID())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	docRepo := repository.NewDocumentRepository(app.MySQL)
	chunkRepo := repository.NewChunkRepository(app.MySQL)
	dirRepo := repository.NewDirectoryRepository(app.MySQL)
	dirCache := cache.NewDirectoryCache(
		app.Redis,
		dirRepo,
		time.Duration(app.Config.Redis.DirectoryTTLSeconds)*time.Second,
	)
	indexPublisher := rabbitmq.NewIndexPublisher(app.MQConn, app.Config.RabbitMQ.IndexQueue)

	retrievalService := appsvc.NewRetrievalService(
		docRepo,
		chunkRepo,
		dirCache,
		app.AIClient,
		bootstrap.EmbeddingConfig(app.Config),
		bootstrap.ChatConfig(app.Config),
		appsvc.RetrievalOptions{
			DefaultThreshold: app.Config.Retrieval.MatchThreshold,
			DefaultCount:     app.Config.Retrieval.MatchCount,
			ContextBudget:    app.Config.Retrieval.ContextBudget,
			PerDocumentCap:   app.Config.Retrieval.PerDocumentChunks,
			Personas:         app.Config.Personas,
			DefaultPersona:   app.Config.Retrieval.DefaultPersona,
		},
	)
	lifecycleService := appsvc.NewLifecycleService(docRepo, chunkRepo, indexPublisher, dirCache)

	queryHandler := handler.NewQueryHandler(retrievalService)
	documentHandler := handler.NewDocumentHandler(lifecycleService)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))

	v1.POST("/query", queryHandler.Ask)

	docs := v1.Group("/documents")
	docs.POST("", documentHandler.Create)
	docs.GET("", documentHandler.List)
	docs.GET("/:id", documentHandler.Get)
	docs.POST("/:id/submit", documentHandler.Submit)
	docs.POST("/:id/approve", documentHandler.Approve)
	docs.POST("/:id/reject", documentHandler.Reject)
	docs.POST("/:id/revise", documentHandler.Revise)
	docs.POST("/:id/archive", documentHandler.Archive)
	docs.DELETE("/:id", documentHandler.Delete)

	return router
}
