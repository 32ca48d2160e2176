package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"knowledge-vault/internal/config"
	"knowledge-vault/internal/logger"
	"knowledge-vault/services"
)

const (
	TaskIngestDocument = "vault:ingest"
	TaskIndexDocument  = "vault:index"
	TaskWorkspaceOp    = "workspace:op"
)

// IngestPayload references staged upload bytes on local disk. The
// staging file is consumed by the first attempt, which is why ingestion
// tasks carry MaxRetry(0).
type IngestPayload struct {
	TaskID      string `json:"task_id"`
	WorkspaceID string `json:"workspace_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Strategy    string `json:"strategy"`
	StagingPath string `json:"staging_path"`
}

type IndexPayload struct {
	TaskID      string `json:"task_id"`
	DocumentID  string `json:"document_id"`
	WorkspaceID string `json:"workspace_id"`
	Force       bool   `json:"force"`
}

type WorkspaceOpPayload struct {
	TaskID string `json:"task_id"`
}

// RedisOpt builds the asynq connection options from config.
func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// Task creators
func NewIngestTask(p IngestPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskIngestDocument,
		payload,
		asynq.MaxRetry(0),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

func NewIndexTask(p IndexPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskIndexDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(15*time.Minute),
		asynq.Queue("default"),
	), nil
}

func NewWorkspaceOpTask(taskID string) (*asynq.Task, error) {
	payload, err := json.Marshal(WorkspaceOpPayload{TaskID: taskID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskWorkspaceOp,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("default"),
	), nil
}

// Client wraps the asynq producer and implements services.Enqueuer.
type Client struct {
	inner *asynq.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{inner: asynq.NewClient(RedisOpt(cfg))}
}

func (c *Client) Close() error { return c.inner.Close() }

func (c *Client) EnqueueIngestion(ctx context.Context, p IngestPayload) error {
	task, err := NewIngestTask(p)
	if err != nil {
		return err
	}
	_, err = c.inner.EnqueueContext(ctx, task)
	return err
}

func (c *Client) EnqueueIndexing(ctx context.Context, taskID, docID, workspaceID string, force bool) error {
	task, err := NewIndexTask(IndexPayload{TaskID: taskID, DocumentID: docID, WorkspaceID: workspaceID, Force: force})
	if err != nil {
		return err
	}
	_, err = c.inner.EnqueueContext(ctx, task)
	return err
}

func (c *Client) EnqueueWorkspaceOp(ctx context.Context, taskID string) error {
	task, err := NewWorkspaceOpTask(taskID)
	if err != nil {
		return err
	}
	_, err = c.inner.EnqueueContext(ctx, task)
	return err
}

// TaskProcessor holds the worker-side handlers.
type TaskProcessor struct {
	vault         *services.VaultService
	indexing      *services.IndexingService
	orchestration *services.OrchestrationService
}

func NewTaskProcessor(vault *services.VaultService, indexing *services.IndexingService, orchestration *services.OrchestrationService) *TaskProcessor {
	return &TaskProcessor{vault: vault, indexing: indexing, orchestration: orchestration}
}

// HandleIngest reads the staged upload and runs the ingestion pipeline.
// The staging file is removed regardless of outcome.
func (p *TaskProcessor) HandleIngest(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	data, err := os.ReadFile(payload.StagingPath)
	if err != nil {
		logger.Error("staged upload missing", "task_id", payload.TaskID, "path", payload.StagingPath)
		return fmt.Errorf("staged file unreadable: %w", asynq.SkipRetry)
	}
	defer os.Remove(payload.StagingPath)

	return p.vault.RunIngestion(ctx, payload.TaskID, payload.WorkspaceID,
		payload.Filename, payload.ContentType, payload.Strategy, data)
}

func (p *TaskProcessor) HandleIndex(ctx context.Context, t *asynq.Task) error {
	var payload IndexPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}
	return p.indexing.Run(ctx, payload.TaskID, payload.DocumentID, payload.WorkspaceID, payload.Force)
}

func (p *TaskProcessor) HandleWorkspaceOp(ctx context.Context, t *asynq.Task) error {
	var payload WorkspaceOpPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}
	return p.orchestration.RunWorkspaceOp(ctx, payload.TaskID)
}

// Mux registers all handlers on a fresh ServeMux.
func (p *TaskProcessor) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskIngestDocument, p.HandleIngest)
	mux.HandleFunc(TaskIndexDocument, p.HandleIndex)
	mux.HandleFunc(TaskWorkspaceOp, p.HandleWorkspaceOp)
	return mux
}
