package telemetry

import (
	"context"
	"testing"
)

func TestRecordersNoopOnNilMetrics(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	// Services bind metrics optionally; a nil set must never panic.
	m.RecordIngestion(ctx, "ws1")
	m.RecordIndexing(ctx, 1.5, true)
	m.RecordTaskOutcome(ctx, "indexing", "completed")
	m.RecordTaskOutcome(ctx, "ingestion", "failed")
	m.RecordVaultObject(ctx)
}

func TestInitMetricsCreatesInstruments(t *testing.T) {
	m, err := InitMetrics()
	if err != nil {
		t.Fatalf("InitMetrics failed: %v", err)
	}
	if m.IngestionCounter == nil || m.IndexingDuration == nil ||
		m.TasksCompleted == nil || m.TasksFailed == nil || m.VaultObjectsSaved == nil {
		t.Fatal("expected every instrument to be initialized")
	}
	// Recording through the global no-op meter must be safe.
	ctx := context.Background()
	m.RecordIngestion(ctx, "ws1")
	m.RecordIndexing(ctx, 0.2, false)
	m.RecordTaskOutcome(ctx, "workspace_op", "completed")
	m.RecordVaultObject(ctx)
}
