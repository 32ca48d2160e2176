package models

import "testing"

func TestIsTerminalTaskStatus(t *testing.T) {
	terminal := []string{TaskStatusCompleted, TaskStatusFailed, TaskStatusCanceled}
	for _, s := range terminal {
		if !IsTerminalTaskStatus(s) {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []string{TaskStatusPending, TaskStatusProcessing, ""} {
		if IsTerminalTaskStatus(s) {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestIsRetryableTaskType(t *testing.T) {
	if !IsRetryableTaskType(TaskTypeIndexing) || !IsRetryableTaskType(TaskTypeWorkspaceOp) {
		t.Fatal("indexing and workspace_op must be retryable")
	}
	if IsRetryableTaskType(TaskTypeIngestion) {
		t.Fatal("ingestion must not be retryable: the uploaded bytes are not retained")
	}
}
