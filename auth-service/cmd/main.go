package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"tattoo-app/auth-service/internal/config"
	handlers "tattoo-app/auth-service/internal/handler"
	repositories "tattoo-app/auth-service/internal/repository"
	"tattoo-app/auth-service/internal/services"
	"tattoo-app/auth-service/internal/utils"
	"tattoo-app/pkg/identity"
	"tattoo-app/pkg/mongodb"
	"tattoo-app/pkg/shutdown"
)

func main() {
	baseCtx := context.Background()
	ctx, shutdownManager := shutdown.NewManager(baseCtx)
	shutdownManager.StartListening()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// 1. Инициализация MongoDB
	mongoClient, err := mongodb.Connect(ctx, cfg.MongoDB)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	db := mongoClient.Database(cfg.MongoDB.DBName)

	shutdownManager.Register(func(ctx context.Context) error {
		log.Println("[SHUTDOWN] Closing MongoDB connection...")
		return mongoClient.Disconnect(ctx)
	})

	// 2. Инициализация Redis
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal("Invalid Redis URL:", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to ping Redis:", err)
	}

	shutdownManager.Register(func(ctx context.Context) error {
		log.Println("[SHUTDOWN] Closing Redis connection...")
		return rdb.Close()
	})

	// 3. Репозитории и сервисы
	userRepo := repositories.NewUserRepository(db)
	if err := userRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal("Failed to create user indexes:", err)
	}
	jwtUtil := utils.NewJWTUtil(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authService := services.NewAuthService(userRepo, jwtUtil, utils.NewSessionStore(rdb))
	authHandler := handlers.NewAuthHandler(authService)

	// 4. Роутер
	router := gin.Default()
	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	auth := router.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.GET("/validate", authHandler.Validate)

		protected := auth.Group("/")
		protected.Use(identity.AuthMiddleware(authService))
		{
			protected.POST("/logout", authHandler.Logout)
			protected.GET("/profile", authHandler.GetProfile)
		}
	}

	// только для других сервисов, gateway это не проксирует
	router.GET("/internal/users/:id", authHandler.GetUser)

	server := &http.Server{
		Addr:    cfg.ServerPort,
		Handler: router,
	}

	// 5. Запускаем сервер
	go func() {
		log.Printf("Auth service running on %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	shutdownManager.Register(func(ctx context.Context) error {
		log.Println("[SHUTDOWN] Shutting down HTTP server...")
		return server.Shutdown(ctx)
	})

	select {}
}
