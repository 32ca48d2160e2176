package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter    metric.Int64Counter
	RequestDuration   metric.Float64Histogram
	IngestionCounter  metric.Int64Counter
	IndexingDuration  metric.Float64Histogram
	SearchCounter     metric.Int64Counter
	SearchDuration    metric.Float64Histogram
	TasksCompleted    metric.Int64Counter
	TasksFailed       metric.Int64Counter
	VaultObjectsSaved metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("knowledge-vault")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	ingestionCounter, err := meter.Int64Counter(
		"documents.ingested.total",
		metric.WithDescription("Documents ingested into the vault"),
	)
	if err != nil {
		return nil, err
	}

	indexingDuration, err := meter.Float64Histogram(
		"documents.indexing.duration",
		metric.WithDescription("Document indexing duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	searchCounter, err := meter.Int64Counter(
		"search.requests.total",
		metric.WithDescription("Hybrid search requests"),
	)
	if err != nil {
		return nil, err
	}

	searchDuration, err := meter.Float64Histogram(
		"search.request.duration",
		metric.WithDescription("Hybrid search duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	tasksCompleted, err := meter.Int64Counter(
		"tasks.completed.total",
		metric.WithDescription("Background tasks reaching completed state"),
	)
	if err != nil {
		return nil, err
	}

	tasksFailed, err := meter.Int64Counter(
		"tasks.failed.total",
		metric.WithDescription("Background tasks reaching failed state"),
	)
	if err != nil {
		return nil, err
	}

	vaultObjectsSaved, err := meter.Int64Counter(
		"vault.objects.saved.total",
		metric.WithDescription("Physical objects written to the vault"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:    requestCounter,
		RequestDuration:   requestDuration,
		IngestionCounter:  ingestionCounter,
		IndexingDuration:  indexingDuration,
		SearchCounter:     searchCounter,
		SearchDuration:    searchDuration,
		TasksCompleted:    tasksCompleted,
		TasksFailed:       tasksFailed,
		VaultObjectsSaved: vaultObjectsSaved,
	}, nil
}

// RecordRequest records one HTTP request outcome.
func (m *Metrics) RecordRequest(ctx context.Context, method, path, status string, duration float64) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.String("status", status),
	)
	m.RequestCounter.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, duration, attrs)
}

// RecordSearch records one retrieval request.
func (m *Metrics) RecordSearch(ctx context.Context, engine string, duration float64) {
	attrs := metric.WithAttributes(attribute.String("engine", engine))
	m.SearchCounter.Add(ctx, 1, attrs)
	m.SearchDuration.Record(ctx, duration, attrs)
}

// RecordIngestion counts one document committed to the vault. Nil
// receivers are no-ops so services run unchanged without telemetry.
func (m *Metrics) RecordIngestion(ctx context.Context, workspaceID string) {
	if m == nil {
		return
	}
	m.IngestionCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("workspace", workspaceID)))
}

// RecordIndexing records one indexing run.
func (m *Metrics) RecordIndexing(ctx context.Context, duration float64, reused bool) {
	if m == nil {
		return
	}
	m.IndexingDuration.Record(ctx, duration, metric.WithAttributes(attribute.Bool("reused", reused)))
}

// RecordTaskOutcome counts a task reaching a terminal state.
func (m *Metrics) RecordTaskOutcome(ctx context.Context, taskType, status string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("type", taskType))
	switch status {
	case "completed":
		m.TasksCompleted.Add(ctx, 1, attrs)
	case "failed":
		m.TasksFailed.Add(ctx, 1, attrs)
	}
}

// RecordVaultObject counts a physical object written to the store.
func (m *Metrics) RecordVaultObject(ctx context.Context) {
	if m == nil {
		return
	}
	m.VaultObjectsSaved.Add(ctx, 1)
}
