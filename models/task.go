package models

import "time"

// Task is a persisted background job record. It survives process
// restarts; asynq only delivers the work, this row is the source of truth
// that clients poll.
type Task struct {
	ID          string                 `bson:"id" json:"id"`
	Type        string                 `bson:"type" json:"type"`
	Status      string                 `bson:"status" json:"status"`
	Progress    int                    `bson:"progress" json:"progress"` // advisory, monotonic per attempt
	Message     string                 `bson:"message" json:"message"`
	ErrorCode   string                 `bson:"error_code,omitempty" json:"error_code,omitempty"`
	Metadata    map[string]interface{} `bson:"metadata" json:"metadata"`
	Result      map[string]interface{} `bson:"result,omitempty" json:"result,omitempty"`
	WorkspaceID string                 `bson:"workspace_id" json:"workspace_id"`
	CreatedAt   time.Time              `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time              `bson:"updated_at" json:"updated_at"`
}

// Task types
const (
	TaskTypeIngestion   = "ingestion"
	TaskTypeIndexing    = "indexing"
	TaskTypeWorkspaceOp = "workspace_op"
)

// Task statuses
const (
	TaskStatusPending    = "pending"
	TaskStatusProcessing = "processing"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
	TaskStatusCanceled   = "canceled"
)

// IsTerminal reports whether a status admits no further transitions
// other than purge.
func IsTerminalTaskStatus(status string) bool {
	return status == TaskStatusCompleted || status == TaskStatusFailed || status == TaskStatusCanceled
}

// IsRetryableTaskType reports whether a failed task of this type may be
// reset to pending. Ingestion is excluded: the original bytes are not
// retained after the first attempt.
func IsRetryableTaskType(taskType string) bool {
	return taskType == TaskTypeIndexing || taskType == TaskTypeWorkspaceOp
}
