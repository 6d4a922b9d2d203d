package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"tattoo-app/notification-service/internal/config"
	"tattoo-app/notification-service/internal/handler"
	"tattoo-app/notification-service/internal/repository"
	"tattoo-app/notification-service/internal/services"
	"tattoo-app/notification-service/internal/utils"
	"tattoo-app/pkg/identity"
	"tattoo-app/pkg/mongodb"
	"tattoo-app/pkg/shutdown"
)

func main() {
	// 1. Контекст и shutdown-менеджер
	ctx, shutdownManager := shutdown.NewManager(context.Background())
	shutdownManager.StartListening()

	// 2. Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// 3. Подключение к MongoDB
	mongoClient, err := mongodb.Connect(ctx, cfg.MongoDB)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	db := mongoClient.Database(cfg.MongoDB.DBName)

	shutdownManager.Register(func(ctx context.Context) error {
		log.Println("[SHUTDOWN] Closing MongoDB connection...")
		return mongoClient.Disconnect(ctx)
	})

	// 4. Подключение к Redis
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal("Invalid Redis URL:", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to ping Redis:", err)
	}

	shutdownManager.Register(func(ctx context.Context) error {
		log.Println("[SHUTDOWN] Closing Redis connection...")
		return rdb.Close()
	})

	// 5. Инициализация слоев
	repo := repository.NewNotificationRepository(db)
	if err := repo.EnsureIndexes(ctx); err != nil {
		log.Fatal("Failed to create notification indexes:", err)
	}
	notificationService := services.NewNotificationService(repo)
	notificationHandler := handler.NewNotificationHandler(notificationService)

	go utils.SubscribeToEvents(ctx, rdb, notificationService, services.Channels()...)

	// 6. Инициализация маршрутов
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := router.Group("/api/notifications")
	api.Use(identity.AuthMiddleware(identity.NewClient(cfg.AuthServiceURL)))
	{
		api.GET("", notificationHandler.GetNotifications)
		api.GET("/unread-count", notificationHandler.UnreadCount)
		api.PUT("/:id/read", notificationHandler.MarkAsRead)
	}

	// 7. Запуск HTTP сервера
	server := &http.Server{
		Addr:    cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Printf("Notification service running on %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	shutdownManager.Register(func(ctx context.Context) error {
		log.Println("[SHUTDOWN] Shutting down HTTP server...")
		return server.Shutdown(ctx)
	})

	// Ожидаем завершения
	select {}
}
