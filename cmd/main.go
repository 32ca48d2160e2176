package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"knowledge-vault/internal/blob"
	"knowledge-vault/internal/config"
	"knowledge-vault/internal/logger"
	"knowledge-vault/internal/queue"
	"knowledge-vault/internal/telemetry"
	"knowledge-vault/internal/vector"
	"knowledge-vault/middleware"
	"knowledge-vault/routes"
	"knowledge-vault/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	redisClient, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("knowledge-vault", cfg.OTLPEndpoint)
		if err != nil {
			log.Fatal("Failed to init tracer:", err)
		}
		defer shutdown()
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

	blobStore, err := blob.NewFSStore(cfg.BlobRoot)
	if err != nil {
		log.Fatal("Failed to open blob store:", err)
	}

	index, err := vector.NewQdrantIndex(vector.QdrantConfig{
		Host:           cfg.QdrantHost,
		Port:           cfg.QdrantPort,
		RequestTimeout: cfg.VectorTimeout,
	})
	if err != nil {
		log.Fatal("Failed to connect to Qdrant:", err)
	}
	defer index.Close()

	// Service graph. The queue client is bound after construction so
	// the worker hand-offs have somewhere to go.
	settingsSvc := services.NewSettingsService(db, cfg)
	taskSvc := services.NewTaskService(db, cfg.MongoTimeout)
	vaultSvc := services.NewVaultService(db, cfg, blobStore, index, settingsSvc, taskSvc)
	indexingSvc := services.NewIndexingService(db, cfg, blobStore, index, settingsSvc, taskSvc)
	orchestrationSvc := services.NewOrchestrationService(db, index, settingsSvc, taskSvc, indexingSvc, vaultSvc)
	workspaceSvc := services.NewWorkspaceService(db, cfg, settingsSvc, vaultSvc)
	searchSvc := services.NewSearchService(db, index, settingsSvc, indexingSvc)
	arxivClient := services.NewArxivClient(cfg.ArxivTimeout)
	taskSvc.BindMetrics(metrics)
	vaultSvc.BindMetrics(metrics)
	indexingSvc.BindMetrics(metrics)

	queueClient := queue.NewClient(cfg)
	defer queueClient.Close()
	vaultSvc.BindQueue(queueClient)
	orchestrationSvc.BindQueue(queueClient)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := workspaceSvc.EnsureDefault(ctx); err != nil {
		cancel()
		log.Fatal("Failed to ensure default workspace:", err)
	}
	cancel()

	scheduler := services.StartTaskCleanup(taskSvc, cfg.TaskRetentionHours)
	defer scheduler.Stop()

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	if cfg.TracingEnabled {
		router.Use(middleware.TracingMiddleware())
		router.Use(middleware.EnrichTrace())
	}
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.RateLimitMiddleware(redisClient, cfg))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	routes.SetupRoutes(router, cfg, &routes.Services{
		Vault:         vaultSvc,
		Indexing:      indexingSvc,
		Orchestration: orchestrationSvc,
		Workspaces:    workspaceSvc,
		Settings:      settingsSvc,
		Tasks:         taskSvc,
		Search:        searchSvc,
		Arxiv:         arxivClient,
		Queue:         queueClient,
		Metrics:       metrics,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}
	logger.Info("server exited")
}
