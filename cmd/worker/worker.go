package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"knowledge-vault/internal/blob"
	"knowledge-vault/internal/config"
	"knowledge-vault/internal/logger"
	"knowledge-vault/internal/queue"
	"knowledge-vault/internal/telemetry"
	"knowledge-vault/internal/vector"
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

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

	settingsSvc := services.NewSettingsService(db, cfg)
	taskSvc := services.NewTaskService(db, cfg.MongoTimeout)
	vaultSvc := services.NewVaultService(db, cfg, blobStore, index, settingsSvc, taskSvc)
	indexingSvc := services.NewIndexingService(db, cfg, blobStore, index, settingsSvc, taskSvc)
	orchestrationSvc := services.NewOrchestrationService(db, index, settingsSvc, taskSvc, indexingSvc, vaultSvc)
	taskSvc.BindMetrics(metrics)
	vaultSvc.BindMetrics(metrics)
	indexingSvc.BindMetrics(metrics)

	// Workers enqueue follow-up tasks themselves (ingestion hands off
	// to indexing), so the worker process carries a producer too.
	queueClient := queue.NewClient(cfg)
	defer queueClient.Close()
	vaultSvc.BindQueue(queueClient)
	orchestrationSvc.BindQueue(queueClient)

	server := asynq.NewServer(
		queue.RedisOpt(cfg),
		asynq.Config{
			Concurrency: 20,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task handler failed", "type", task.Type(), "error", err.Error())
			}),
		},
	)

	processor := queue.NewTaskProcessor(vaultSvc, indexingSvc, orchestrationSvc)

	logger.Info("worker starting",
		"concurrency", 20,
		"redis", cfg.RedisURL,
		"queues", "critical(6) default(3) low(1)")

	if err := server.Run(processor.Mux()); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
