package vector

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"knowledge-vault/internal/logger"
)

// CollectionName returns the deterministic shard name for a dimension.
func CollectionName(dim int) string {
	return fmt.Sprintf("knowledge_base_%d", dim)
}

// QdrantConfig configures the Qdrant gRPC connection.
type QdrantConfig struct {
	Host           string
	Port           int // gRPC port (6334), not the 6333 REST port
	UseTLS         bool
	APIKey         string
	RequestTimeout time.Duration
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// QdrantIndex implements Index over the official Qdrant Go client.
type QdrantIndex struct {
	client  *qdrant.Client
	timeout time.Duration
}

// NewQdrantIndex connects to Qdrant and returns the index wrapper.
func NewQdrantIndex(cfg QdrantConfig) (*QdrantIndex, error) {
	cfg.ApplyDefaults()

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	logger.Info("Connected to Qdrant", "host", cfg.Host, "port", cfg.Port)
	return &QdrantIndex{client: client, timeout: cfg.RequestTimeout}, nil
}

func (q *QdrantIndex) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, q.timeout)
}

func (q *QdrantIndex) EnsureShard(ctx context.Context, dim int) error {
	ctx, cancel := q.withDeadline(ctx)
	defer cancel()

	name := CollectionName(dim)
	exists, err := q.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check shard %s: %w", name, err)
	}
	if exists {
		return nil
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create shard %s: %w", name, err)
	}
	logger.Info("Created vector shard", "collection", name, "dim", dim)
	return nil
}

func (q *QdrantIndex) ShardExists(ctx context.Context, dim int) (bool, error) {
	ctx, cancel := q.withDeadline(ctx)
	defer cancel()
	return q.client.CollectionExists(ctx, CollectionName(dim))
}

func (q *QdrantIndex) Upsert(ctx context.Context, dim int, points []ChunkPoint) error {
	if len(points) == 0 {
		return nil
	}
	ctx, cancel := q.withDeadline(ctx)
	defer cancel()

	qpoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		qpoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: toQdrantPayload(p.Payload),
		}
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: CollectionName(dim),
		Points:         qpoints,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("upsert %d points into %s: %w", len(points), CollectionName(dim), err)
	}
	return nil
}

func (q *QdrantIndex) Query(ctx context.Context, dim int, vec []float32, workspaceID string, limit int) ([]Scored, error) {
	ctx, cancel := q.withDeadline(ctx)
	defer cancel()

	res, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: CollectionName(dim),
		Query:          qdrant.NewQuery(vec...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         visibilityFilter(workspaceID),
	})
	if err != nil {
		return nil, fmt.Errorf("vector query in %s: %w", CollectionName(dim), err)
	}

	out := make([]Scored, len(res))
	for i, p := range res {
		out[i] = Scored{
			ChunkPoint: ChunkPoint{ID: extractPointID(p.Id), Payload: extractPayload(p.Payload)},
			Score:      p.Score,
		}
	}
	return out, nil
}

func (q *QdrantIndex) KeywordSearch(ctx context.Context, dim int, text, workspaceID string, limit int) ([]ChunkPoint, error) {
	filter := visibilityFilter(workspaceID)
	filter.Must = append(filter.Must, textMatch(PayloadText, text))
	return q.scroll(ctx, dim, filter, limit, false)
}

func (q *QdrantIndex) ScrollByDoc(ctx context.Context, dim int, docID string, limit int, withVectors bool) ([]ChunkPoint, error) {
	filter := &qdrant.Filter{Must: []*qdrant.Condition{fieldMatch(PayloadDocID, docID)}}
	return q.scroll(ctx, dim, filter, limit, withVectors)
}

func (q *QdrantIndex) ScrollByContentHash(ctx context.Context, dim int, contentHash string, limit int, withVectors bool) ([]ChunkPoint, error) {
	filter := &qdrant.Filter{Must: []*qdrant.Condition{fieldMatch(PayloadContentHash, contentHash)}}
	return q.scroll(ctx, dim, filter, limit, withVectors)
}

func (q *QdrantIndex) scroll(ctx context.Context, dim int, filter *qdrant.Filter, limit int, withVectors bool) ([]ChunkPoint, error) {
	ctx, cancel := q.withDeadline(ctx)
	defer cancel()

	res, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: CollectionName(dim),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(withVectors),
	})
	if err != nil {
		return nil, fmt.Errorf("scroll %s: %w", CollectionName(dim), err)
	}

	out := make([]ChunkPoint, len(res))
	for i, p := range res {
		out[i] = ChunkPoint{
			ID:      extractPointID(p.Id),
			Vector:  extractVectorOutput(p.Vectors),
			Payload: extractPayload(p.Payload),
		}
	}
	return out, nil
}

func (q *QdrantIndex) DeleteByDoc(ctx context.Context, dim int, docID, workspaceID string) error {
	conditions := []*qdrant.Condition{fieldMatch(PayloadDocID, docID)}
	if workspaceID != "" {
		conditions = append(conditions, fieldMatch(PayloadWorkspaceID, workspaceID))
	}
	return q.deleteByFilter(ctx, dim, &qdrant.Filter{Must: conditions})
}

func (q *QdrantIndex) DeleteByContentHash(ctx context.Context, dim int, contentHash string) error {
	return q.deleteByFilter(ctx, dim, &qdrant.Filter{
		Must: []*qdrant.Condition{fieldMatch(PayloadContentHash, contentHash)},
	})
}

func (q *QdrantIndex) deleteByFilter(ctx context.Context, dim int, filter *qdrant.Filter) error {
	ctx, cancel := q.withDeadline(ctx)
	defer cancel()

	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: CollectionName(dim),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
		},
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("delete points from %s: %w", CollectionName(dim), err)
	}
	return nil
}

func (q *QdrantIndex) SetSharedWith(ctx context.Context, dim int, docID string, sharedWith []string) error {
	ctx, cancel := q.withDeadline(ctx)
	defer cancel()

	_, err := q.client.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: CollectionName(dim),
		Payload:        map[string]*qdrant.Value{PayloadSharedWith: stringListValue(sharedWith)},
		PointsSelector: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{Must: []*qdrant.Condition{fieldMatch(PayloadDocID, docID)}},
			},
		},
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("patch shared_with for doc %s in %s: %w", docID, CollectionName(dim), err)
	}
	return nil
}

func (q *QdrantIndex) CountByDoc(ctx context.Context, dim int, docID string) (int, error) {
	ctx, cancel := q.withDeadline(ctx)
	defer cancel()

	count, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: CollectionName(dim),
		Filter:         &qdrant.Filter{Must: []*qdrant.Condition{fieldMatch(PayloadDocID, docID)}},
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("count points for doc %s in %s: %w", docID, CollectionName(dim), err)
	}
	return int(count), nil
}

func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

// ── filter and payload helpers ──

// visibilityFilter restricts results to points owned by or shared with
// the workspace.
func visibilityFilter(workspaceID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Filter{
					Filter: &qdrant.Filter{
						Should: []*qdrant.Condition{
							fieldMatch(PayloadWorkspaceID, workspaceID),
							fieldMatch(PayloadSharedWith, workspaceID),
						},
					},
				},
			},
		},
	}
}

func fieldMatch(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: value}},
			},
		},
	}
}

func textMatch(key, text string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Text{Text: text}},
			},
		},
	}
}

func stringListValue(values []string) *qdrant.Value {
	items := make([]*qdrant.Value, len(values))
	for i, v := range values {
		items[i] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
	}
	return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: items}}}
}

func toQdrantPayload(payload map[string]interface{}) map[string]*qdrant.Value {
	out := make(map[string]*qdrant.Value, len(payload))
	for k, v := range payload {
		out[k] = toQdrantValue(v)
	}
	return out
}

func toQdrantValue(v interface{}) *qdrant.Value {
	switch val := v.(type) {
	case string:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
	case int:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
	case int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
	case float64:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
	case []string:
		return stringListValue(val)
	case []interface{}:
		// Round-tripped list payloads come back as []interface{}.
		items := make([]*qdrant.Value, len(val))
		for i, item := range val {
			items[i] = toQdrantValue(item)
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: items}}}
	default:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: fmt.Sprintf("%v", val)}}
	}
}

func extractPointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	if num := id.GetNum(); num != 0 {
		return fmt.Sprintf("%d", num)
	}
	return ""
}

func extractVectorOutput(vectors *qdrant.VectorsOutput) []float32 {
	if vectors == nil {
		return nil
	}
	if vec := vectors.GetVector(); vec != nil {
		if dense := vec.GetDense(); dense != nil {
			return dense.GetData()
		}
	}
	return nil
}

func extractPayload(payload map[string]*qdrant.Value) map[string]interface{} {
	if payload == nil {
		return nil
	}
	result := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		result[k] = extractValue(v)
	}
	return result
}

func extractValue(v *qdrant.Value) interface{} {
	if v == nil {
		return nil
	}
	switch val := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_ListValue:
		items := make([]interface{}, len(val.ListValue.Values))
		for i, item := range val.ListValue.Values {
			items[i] = extractValue(item)
		}
		return items
	default:
		return nil
	}
}
