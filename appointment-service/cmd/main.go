package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"tattoo-app/appointment-service/internal/config"
	"tattoo-app/appointment-service/internal/handler"
	"tattoo-app/appointment-service/internal/repository"
	"tattoo-app/appointment-service/internal/services"
	"tattoo-app/appointment-service/internal/utils"
	"tattoo-app/pkg/events"
	"tattoo-app/pkg/identity"
	"tattoo-app/pkg/lock"
	"tattoo-app/pkg/mongodb"
	"tattoo-app/pkg/shutdown"
)

func main() {
	// 1. Базовый контекст + менеджер завершения
	ctx, shutdownManager := shutdown.NewManager(context.Background())
	shutdownManager.StartListening()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// 2. Инициализация MongoDB
	mongoClient, err := mongodb.Connect(ctx, cfg.MongoDB)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	db := mongoClient.Database(cfg.MongoDB.DBName)

	shutdownManager.Register(func(ctx context.Context) error {
		log.Println("[SHUTDOWN] Closing MongoDB connection...")
		return mongoClient.Disconnect(ctx)
	})

	// 3. Инициализация Redis
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

	// 4. Инициализация сервисов
	appointmentRepo := repository.NewAppointmentRepository(db)
	if err := appointmentRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal("Failed to create appointment indexes:", err)
	}

	var locker lock.Locker
	switch cfg.LockBackend {
	case "local":
		log.Println("[BOOKING] Using in-process artist locks, run a single instance only")
		locker = lock.NewLocalLocker()
	default:
		locker = lock.NewRedisLocker(rdb, "lock:", cfg.LockTTL, cfg.LockWait)
	}

	authClient := identity.NewClient(cfg.AuthServiceURL)
	publisher := events.NewRedisPublisher(rdb)
	appointmentService := services.NewAppointmentService(
		appointmentRepo,
		locker,
		utils.NewCatalogClient(cfg.CatalogURL),
		authClient,
		utils.NewRedisCache(rdb),
		publisher,
		services.WithLockHold(cfg.LockTTL*3/4),
	)
	appointmentHandler := handler.NewAppointmentHandler(appointmentService)

	// 5. Фоновые задачи
	cron := services.NewCronJobService(appointmentRepo, appointmentService, publisher, cfg.CompletionGrace)
	cron.Start(ctx)

	// 6. Настройка роутера
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.POST("/api/payments/webhook", appointmentHandler.PaymentWebhook)

	appointments := router.Group("/api/appointments")
	appointments.Use(identity.AuthMiddleware(authClient))
	{
		appointments.POST("", identity.RequireRoles(identity.RoleClient), appointmentHandler.Book)
		appointments.GET("/me", appointmentHandler.ListMine)
		appointments.POST("/:id/pay", appointmentHandler.Pay)
		appointments.POST("/:id/cancel", appointmentHandler.Cancel)
	}

	// 7. Запуск сервера
	server := &http.Server{
		Addr:    cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Printf("Appointment service running on %s", cfg.ServerPort)
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
