package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"tattoo-app/chat-service/internal/config"
	"tattoo-app/chat-service/internal/handler"
	"tattoo-app/chat-service/internal/repository"
	"tattoo-app/chat-service/internal/services"
	"tattoo-app/chat-service/internal/utils"
	"tattoo-app/pkg/events"
	"tattoo-app/pkg/identity"
	"tattoo-app/pkg/lock"
	"tattoo-app/pkg/mongodb"
	"tattoo-app/pkg/shutdown"
)

func main() {
	ctx, shutdownManager := shutdown.NewManager(context.Background())
	shutdownManager.StartListening()

	// Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// MongoDB
	mongoClient, err := mongodb.Connect(ctx, cfg.MongoDB)
	if err != nil {
		log.Fatal("Mongo connection failed:", err)
	}

	// Регистрация завершения работы MongoDB
	shutdownManager.Register(func(ctx context.Context) error {
		log.Println("[SHUTDOWN] Closing MongoDB connection...")
		return mongoClient.Disconnect(ctx)
	})

	db := mongoClient.Database(cfg.MongoDB.DBName)

	// Redis: блокировки тредов и сигналы подписчикам
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

	// Репозиторий, уведомления и сервис сообщений
	repo := repository.NewChatRepository(db)
	if err := repo.EnsureIndexes(ctx); err != nil {
		log.Fatal("Failed to create chat indexes:", err)
	}
	authClient := identity.NewClient(cfg.AuthServiceURL)
	chatService := services.NewChatService(
		repo,
		lock.NewRedisLocker(rdb, "lock:", cfg.LockTTL, cfg.LockWait),
		authClient,
		utils.NewRedisThreadNotifier(rdb),
		events.NewRedisPublisher(rdb),
		services.Options{PollInterval: cfg.PollInterval, MaxLifetime: cfg.MaxLifetime},
	)
	chatHandler := handler.NewChatHandler(chatService, authClient)

	// Роутер и эндпоинты
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := router.Group("/api/chat")
	// SSE проверяет токен сам: ошибки уходят событием, а не JSON
	api.GET("/threads/:id/sse", chatHandler.Stream)

	authorized := api.Group("")
	authorized.Use(identity.AuthMiddleware(authClient))
	{
		authorized.POST("/threads/ensure", chatHandler.EnsureThread)
		authorized.GET("/threads", chatHandler.ListThreads)
		authorized.GET("/threads/:id/messages", chatHandler.ListMessages)
		authorized.POST("/threads/:id/messages", chatHandler.SendMessage)
		authorized.POST("/threads/:id/read", chatHandler.MarkRead)
	}

	// HTTP-сервер без WriteTimeout: SSE живёт долго.
	// Запросы наследуют ctx, поэтому стримы закрываются при остановке.
	server := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Printf("Chat service running on %s", cfg.ServerPort)
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
