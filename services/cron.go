package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"knowledge-vault/internal/logger"
)

// StartTaskCleanup schedules the hourly purge of terminal task records
// past the retention window. Returns the scheduler so main can stop it
// on shutdown.
func StartTaskCleanup(tasks *TaskService, retentionHours int) *gocron.Scheduler {
	scheduler := gocron.NewScheduler(time.UTC)

	scheduler.Every(1).Hour().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := tasks.Cleanup(ctx, retentionHours); err != nil {
			logger.Error("scheduled task cleanup failed", "error", err.Error())
		}
	})

	scheduler.StartAsync()
	logger.Info("task cleanup scheduled", "retention_hours", retentionHours)
	return scheduler
}
