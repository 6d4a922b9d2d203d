package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"tattoo-app/media-service/internal/config"
	"tattoo-app/media-service/internal/handler"
	"tattoo-app/media-service/internal/repository"
	service "tattoo-app/media-service/internal/services"
	"tattoo-app/media-service/internal/utils"
	"tattoo-app/pkg/identity"
	"tattoo-app/pkg/mongodb"
	"tattoo-app/pkg/shutdown"
)

func main() {
	ctx, shutdownManager := shutdown.NewManager(context.Background())
	shutdownManager.StartListening()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	mongoClient, err := mongodb.Connect(ctx, cfg.MongoDB)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	db := mongoClient.Database(cfg.MongoDB.DBName)

	shutdownManager.Register(func(ctx context.Context) error {
		log.Println("[SHUTDOWN] Closing MongoDB connection...")
		return mongoClient.Disconnect(ctx)
	})

	storage, err := utils.NewMinioStorage(ctx, cfg.Minio)
	if err != nil {
		log.Fatalf("minio init: %v", err)
	}

	repo := repository.NewMediaRepository(db)
	if err := repo.EnsureIndexes(ctx); err != nil {
		log.Fatal("Failed to create media indexes:", err)
	}
	if cfg.OpenAI.APIKey == "" {
		log.Println("[IMAGES] OPENAI_API_KEY is not set, openai requests will fail")
	}
	if cfg.DashScope.APIKey == "" {
		log.Println("[IMAGES] DASHSCOPE_API_KEY is not set, dashscope requests will fail")
	}

	mediaSvc := service.NewMediaService(repo, storage, cfg.Images.MaxUploadBytes)
	imageSvc := service.NewImageService(
		repo,
		mediaSvc,
		utils.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model),
		utils.NewDashScopeClient(cfg.DashScope.APIKey, cfg.DashScope.Region),
		utils.NewCatalogClient(cfg.CatalogURL),
		service.ImageDefaults{
			DailyLimit: cfg.Images.DailyLimit,
			Size:       cfg.Images.DefaultSize,
			Background: cfg.Images.DefaultBackground,
		},
	)
	h := handler.NewMediaHandler(mediaSvc, imageSvc)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.RedirectTrailingSlash = false
	// multipart сверх лимита уходит во временные файлы
	router.MaxMultipartMemory = cfg.Images.MaxUploadBytes
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	authMW := identity.AuthMiddleware(identity.NewClient(cfg.AuthServiceURL))

	media := router.Group("/api/media")
	media.Use(authMW)
	{
		media.POST("/upload", h.Upload)
		media.GET("/mine", h.ListMine)
	}

	images := router.Group("/api/images")
	images.Use(authMW)
	{
		images.POST("/generate", h.Generate)
		images.POST("/edit", h.Edit)
	}

	server := &http.Server{
		Addr:    cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Printf("Media Service running on %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Регистрация graceful shutdown сервера
	shutdownManager.Register(func(ctx context.Context) error {
		log.Println("[SHUTDOWN] Shutting down HTTP server...")
		return server.Shutdown(ctx)
	})

	// Ожидание сигналов завершения
	select {}
}
