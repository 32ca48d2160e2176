package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"knowledge-vault/internal/logger"
	"knowledge-vault/internal/telemetry"
	"knowledge-vault/models"
	"knowledge-vault/utils"
)

// TaskService tracks background jobs in a persisted Mongo collection.
// Asynq only delivers work; these records are what clients poll and
// what survives restarts.
type TaskService struct {
	col     *mongo.Collection
	timeout time.Duration
	metrics *telemetry.Metrics
}

func NewTaskService(db *mongo.Database, timeout time.Duration) *TaskService {
	return &TaskService{col: db.Collection("tasks"), timeout: timeout}
}

// BindMetrics attaches the telemetry instrument set. Optional; a nil
// set records nothing.
func (s *TaskService) BindMetrics(m *telemetry.Metrics) { s.metrics = m }

func (s *TaskService) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Create inserts a pending task and returns it.
func (s *TaskService) Create(ctx context.Context, taskType string, metadata map[string]interface{}, workspaceID string) (*models.Task, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	if workspaceID == "" {
		workspaceID = models.DefaultWorkspaceID
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	now := time.Now().UTC()
	task := &models.Task{
		ID:          uuid.NewString(),
		Type:        taskType,
		Status:      models.TaskStatusPending,
		Progress:    0,
		Message:     "Initializing...",
		Metadata:    metadata,
		WorkspaceID: workspaceID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.col.InsertOne(ctx, task); err != nil {
		return nil, err
	}
	logger.Info("task created", "task_id", task.ID, "type", taskType, "workspace_id", workspaceID)
	return task, nil
}

// TaskUpdate carries the fields a worker may change on its own task.
type TaskUpdate struct {
	Status    string
	Progress  *int
	Message   string
	ErrorCode string
	Result    map[string]interface{}
}

// Update applies a partial update. Progress uses $max so it stays
// monotonic within an attempt regardless of update ordering.
func (s *TaskService) Update(ctx context.Context, taskID string, upd TaskUpdate) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Status != "" {
		set["status"] = upd.Status
	}
	if upd.Message != "" {
		set["message"] = upd.Message
	}
	if upd.ErrorCode != "" {
		set["error_code"] = upd.ErrorCode
	}
	if upd.Result != nil {
		set["result"] = upd.Result
	}

	update := bson.M{"$set": set}
	if upd.Progress != nil {
		update["$max"] = bson.M{"progress": *upd.Progress}
	}

	// Terminal states only change through Retry or Cleanup. A late
	// progress update from a worker must not resurrect a canceled task.
	filter := bson.M{"id": taskID}
	if !models.IsTerminalTaskStatus(upd.Status) {
		filter["status"] = bson.M{"$nin": []string{
			models.TaskStatusCompleted, models.TaskStatusFailed, models.TaskStatusCanceled,
		}}
	}

	if models.IsTerminalTaskStatus(upd.Status) {
		var task models.Task
		err := s.col.FindOneAndUpdate(ctx, filter, update,
			options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&task)
		if err == mongo.ErrNoDocuments {
			return nil
		}
		if err != nil {
			return err
		}
		s.metrics.RecordTaskOutcome(ctx, task.Type, task.Status)
		return nil
	}

	_, err := s.col.UpdateOne(ctx, filter, update)
	return err
}

// Get returns a task by id.
func (s *TaskService) Get(ctx context.Context, taskID string) (*models.Task, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	var task models.Task
	err := s.col.FindOne(ctx, bson.M{"id": taskID}).Decode(&task)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewNotFoundError("Task " + taskID + " not found")
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// List returns tasks filtered by optional type and workspace, newest first.
func (s *TaskService) List(ctx context.Context, taskType, workspaceID string, limit int64) ([]models.Task, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	filter := bson.M{}
	if taskType != "" {
		filter["type"] = taskType
	}
	if workspaceID != "" {
		filter["workspace_id"] = workspaceID
	}

	cursor, err := s.col.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	tasks := []models.Task{}
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Cancel flags a non-terminal task as canceled. The flag is observed by
// the worker at its next checkpoint; nothing is force-killed.
func (s *TaskService) Cancel(ctx context.Context, taskID string) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	res, err := s.col.UpdateOne(ctx,
		bson.M{"id": taskID, "status": bson.M{"$in": []string{models.TaskStatusPending, models.TaskStatusProcessing}}},
		bson.M{"$set": bson.M{
			"status":     models.TaskStatusCanceled,
			"message":    "Task canceled by user.",
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		task, getErr := s.Get(ctx, taskID)
		if getErr != nil {
			return getErr
		}
		return utils.NewConflictError("Task is already terminal", map[string]interface{}{"status": task.Status})
	}
	logger.Info("task canceled", "task_id", taskID)
	return nil
}

// Retry resets a failed task of a retryable type back to pending and
// returns the refreshed record so the caller can re-enqueue it.
// Ingestion tasks are rejected: the uploaded bytes are gone.
func (s *TaskService) Retry(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := s.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != models.TaskStatusFailed {
		return nil, utils.NewConflictError("Only failed tasks can be retried", map[string]interface{}{"status": task.Status})
	}
	if !models.IsRetryableTaskType(task.Type) {
		return nil, utils.NewValidationError("Task type '"+task.Type+"' is not retryable", map[string]interface{}{"type": task.Type})
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	// New attempt: progress resets, so a plain $set bypasses the
	// monotonic $max used during an attempt.
	_, err = s.col.UpdateOne(ctx, bson.M{"id": taskID}, bson.M{"$set": bson.M{
		"status":     models.TaskStatusPending,
		"progress":   0,
		"message":    "Retrying...",
		"error_code": "",
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return nil, err
	}
	task.Status = models.TaskStatusPending
	task.Progress = 0
	logger.Info("task reset for retry", "task_id", taskID, "type", task.Type)
	return task, nil
}

// Cleanup removes terminal tasks older than the retention window.
func (s *TaskService) Cleanup(ctx context.Context, olderThanHours int) (int64, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	cutoff := time.Now().UTC().Add(-time.Duration(olderThanHours) * time.Hour)
	res, err := s.col.DeleteMany(ctx, bson.M{
		"status":     bson.M{"$in": []string{models.TaskStatusCompleted, models.TaskStatusFailed, models.TaskStatusCanceled}},
		"updated_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, err
	}
	if res.DeletedCount > 0 {
		logger.Info("tasks cleaned", "deleted", res.DeletedCount, "older_than_hours", olderThanHours)
	}
	return res.DeletedCount, nil
}

// Token returns the cancellation token for a task, threaded through
// every long-running call chain.
func (s *TaskService) Token(taskID string) *CancelToken {
	return &CancelToken{svc: s, taskID: taskID}
}

// CancelToken is a cooperative cancellation flag backed by the task
// record. Workers poll it at checkpoints: before expensive I/O and
// after each phase.
type CancelToken struct {
	svc    *TaskService
	taskID string
}

// Cancelled reports whether the task was canceled (or deleted). A nil
// token never cancels, so synchronous call paths can pass nil.
func (t *CancelToken) Cancelled(ctx context.Context) bool {
	if t == nil {
		return false
	}
	task, err := t.svc.Get(ctx, t.taskID)
	if err != nil {
		return true // task gone: stop doing work for it
	}
	return task.Status == models.TaskStatusCanceled
}

// TaskID exposes the token's task for progress updates.
func (t *CancelToken) TaskID() string {
	if t == nil {
		return ""
	}
	return t.taskID
}
