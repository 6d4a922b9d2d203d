package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"tattoo-app/catalog-service/config"
	handlers "tattoo-app/catalog-service/internal/handler"
	"tattoo-app/catalog-service/internal/repository"
	services "tattoo-app/catalog-service/internal/service"
	"tattoo-app/catalog-service/utils"
	"tattoo-app/pkg/identity"
	"tattoo-app/pkg/mongodb"
	"tattoo-app/pkg/shutdown"
)

func main() {
	ctx, shutdownManager := shutdown.NewManager(context.Background())
	shutdownManager.StartListening()

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Error parsing configs: %v", err)
	}

	// Connect to MongoDB
	client, err := mongodb.Connect(ctx, cfg.MongoDB)
	if err != nil {
		log.Fatalf("Error connecting to MongoDB: %v", err)
	}
	shutdownManager.Register(func(ctx context.Context) error {
		log.Println("[SHUTDOWN] Closing MongoDB connection...")
		return client.Disconnect(ctx)
	})

	// Connect to Redis
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("Invalid Redis URL: %v", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to ping Redis: %v", err)
	}
	shutdownManager.Register(func(ctx context.Context) error {
		log.Println("[SHUTDOWN] Closing Redis connection...")
		return rdb.Close()
	})

	// Initialize components
	designRepo := repository.NewDesignRepository(client.Database(cfg.MongoDB.DBName))
	if err := designRepo.EnsureIndexes(ctx); err != nil {
		log.Fatalf("Error creating indexes: %v", err)
	}
	authClient := identity.NewClient(cfg.AuthService.URL)
	designSrv := services.NewDesignService(designRepo, utils.NewRedisCache(rdb), authClient, cfg.Redis.CacheTTL)
	designHandler := handlers.NewDesignHandler(designSrv)

	// Setup router
	router := mux.NewRouter()
	router.Use(utils.LoggingMiddleware)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	// Public endpoints
	designs := router.PathPrefix("/api/designs").Subrouter()
	designs.HandleFunc("", designHandler.ListDesigns).Methods(http.MethodGet)
	designs.HandleFunc("/{id}", designHandler.GetDesign).Methods(http.MethodGet)

	// Artist endpoints with authentication
	artistOnly := identity.HTTPMiddleware(authClient, identity.RoleArtist)
	designs.Handle("", artistOnly(http.HandlerFunc(designHandler.CreateDesign))).Methods(http.MethodPost)
	designs.Handle("/{id}", artistOnly(http.HandlerFunc(designHandler.UpdateDesign))).Methods(http.MethodPut)
	designs.Handle("/{id}", artistOnly(http.HandlerFunc(designHandler.DeleteDesign))).Methods(http.MethodDelete)

	// Start server
	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Catalog service started on port %s", cfg.Server.Port)
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
