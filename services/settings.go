package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"knowledge-vault/internal/config"
	"knowledge-vault/internal/logger"
	"knowledge-vault/internal/ragconfig"
	"knowledge-vault/internal/vector"
	"knowledge-vault/models"
	"knowledge-vault/utils"
)

// SettingsService resolves the effective settings for a workspace:
// global env defaults overlaid with the workspace_settings record.
type SettingsService struct {
	col     *mongo.Collection
	cfg     *config.Config
	timeout time.Duration
}

func NewSettingsService(db *mongo.Database, cfg *config.Config) *SettingsService {
	return &SettingsService{
		col:     db.Collection("workspace_settings"),
		cfg:     cfg,
		timeout: cfg.MongoTimeout,
	}
}

// globalSettingsID is the sentinel record holding operator-set global
// defaults. Workspace ids are uuids (or "default"), so it cannot clash.
const globalSettingsID = "global"

// Defaults returns the global settings baseline from the environment.
func (s *SettingsService) Defaults() models.WorkspaceSettings {
	return models.WorkspaceSettings{
		EmbeddingProvider: s.cfg.DefaultEmbeddingProvider,
		EmbeddingModel:    s.cfg.DefaultEmbeddingModel,
		EmbeddingDim:      s.cfg.DefaultEmbeddingDim,
		ChunkSize:         s.cfg.DefaultChunkSize,
		ChunkOverlap:      s.cfg.DefaultChunkOverlap,
		RetrievalEngine:   s.cfg.DefaultEngine,
		RetrievalMode:     "hybrid",
		SearchLimit:       s.cfg.DefaultSearchLimit,
		HybridAlpha:       0.5,
		Theme:             "light",
	}
}

// GlobalDefaults returns the environment baseline overlaid with the
// operator-set global record. These seed every new workspace.
func (s *SettingsService) GlobalDefaults(ctx context.Context) (models.WorkspaceSettings, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var stored models.WorkspaceSettings
	err := s.col.FindOne(ctx, bson.M{"workspace_id": globalSettingsID}).Decode(&stored)
	if err == mongo.ErrNoDocuments {
		return s.Defaults(), nil
	}
	if err != nil {
		return models.WorkspaceSettings{}, err
	}
	return merge(s.Defaults(), stored), nil
}

// Get returns the effective settings for a workspace. A missing
// override record means the workspace runs on the global defaults.
func (s *SettingsService) Get(ctx context.Context, workspaceID string) (models.WorkspaceSettings, error) {
	base, err := s.GlobalDefaults(ctx)
	if err != nil {
		return models.WorkspaceSettings{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	var stored models.WorkspaceSettings
	err = s.col.FindOne(ctx, bson.M{"workspace_id": workspaceID}).Decode(&stored)
	if err == mongo.ErrNoDocuments {
		return base, nil
	}
	if err != nil {
		return models.WorkspaceSettings{}, err
	}
	return merge(base, stored), nil
}

// merge fills zero-valued fields of a stored record from the base, so
// partially written records still resolve to a complete view.
func merge(base, stored models.WorkspaceSettings) models.WorkspaceSettings {
	out := base
	if stored.EmbeddingProvider != "" {
		out.EmbeddingProvider = stored.EmbeddingProvider
	}
	if stored.EmbeddingModel != "" {
		out.EmbeddingModel = stored.EmbeddingModel
	}
	if stored.EmbeddingDim > 0 {
		out.EmbeddingDim = stored.EmbeddingDim
	}
	if stored.ChunkSize > 0 {
		out.ChunkSize = stored.ChunkSize
	}
	if stored.ChunkOverlap > 0 {
		out.ChunkOverlap = stored.ChunkOverlap
	}
	if stored.RetrievalEngine != "" {
		out.RetrievalEngine = stored.RetrievalEngine
	}
	if stored.GraphURI != "" {
		out.GraphURI = stored.GraphURI
	}
	if stored.GraphUser != "" {
		out.GraphUser = stored.GraphUser
	}
	if stored.GraphPassword != "" {
		out.GraphPassword = stored.GraphPassword
	}
	if stored.RetrievalMode != "" {
		out.RetrievalMode = stored.RetrievalMode
	}
	if stored.SearchLimit > 0 {
		out.SearchLimit = stored.SearchLimit
	}
	if stored.HybridAlpha > 0 {
		out.HybridAlpha = stored.HybridAlpha
	}
	if stored.Theme != "" {
		out.Theme = stored.Theme
	}
	out.ShowReasoning = stored.ShowReasoning
	return out
}

// Initialize writes the full settings record for a new workspace,
// freezing the embedding-affecting fields at their creation values.
func (s *SettingsService) Initialize(ctx context.Context, workspaceID string, settings models.WorkspaceSettings) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc := bson.M{
		"workspace_id":       workspaceID,
		"embedding_provider": settings.EmbeddingProvider,
		"embedding_model":    settings.EmbeddingModel,
		"embedding_dim":      settings.EmbeddingDim,
		"chunk_size":         settings.ChunkSize,
		"chunk_overlap":      settings.ChunkOverlap,
		"retrieval_engine":   settings.RetrievalEngine,
		"graph_uri":          settings.GraphURI,
		"graph_user":         settings.GraphUser,
		"graph_password":     settings.GraphPassword,
		"retrieval_mode":     settings.RetrievalMode,
		"search_limit":       settings.SearchLimit,
		"hybrid_alpha":       settings.HybridAlpha,
		"theme":              settings.Theme,
		"show_reasoning":     settings.ShowReasoning,
		"updated_at":         time.Now().UTC(),
	}
	_, err := s.col.UpdateOne(ctx,
		bson.M{"workspace_id": workspaceID},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true))
	return err
}

// Update applies a partial settings update. Immutable fields are
// rejected outright when the workspace already has a settings record,
// because its vectors were built with those values.
func (s *SettingsService) Update(ctx context.Context, workspaceID string, updates map[string]interface{}) (models.WorkspaceSettings, error) {
	if len(updates) == 0 {
		return s.Get(ctx, workspaceID)
	}

	if violations := ragconfig.ImmutableViolations(updates); len(violations) > 0 {
		return models.WorkspaceSettings{}, utils.NewValidationError(
			fmt.Sprintf("Settings are immutable after workspace creation: %s", strings.Join(violations, ", ")),
			map[string]interface{}{"fields": violations},
		)
	}
	if err := validateMutableSettings(updates); err != nil {
		return models.WorkspaceSettings{}, err
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range updates {
		set[k] = v
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.col.UpdateOne(ctx,
		bson.M{"workspace_id": workspaceID},
		bson.M{"$set": set},
		options.Update().SetUpsert(true))
	if err != nil {
		return models.WorkspaceSettings{}, err
	}
	logger.Info("settings updated", "workspace_id", workspaceID, "fields", len(updates))
	return s.Get(ctx, workspaceID)
}

// UpdateGlobal applies a partial update to the global defaults record.
// Embedding-affecting fields are allowed here: they only seed future
// workspaces, existing workspaces keep their frozen creation values.
func (s *SettingsService) UpdateGlobal(ctx context.Context, updates map[string]interface{}) (models.WorkspaceSettings, error) {
	if len(updates) == 0 {
		return s.GlobalDefaults(ctx)
	}
	if err := validateGlobalSettings(updates); err != nil {
		return models.WorkspaceSettings{}, err
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range updates {
		set[k] = v
	}

	mctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.col.UpdateOne(mctx,
		bson.M{"workspace_id": globalSettingsID},
		bson.M{"$set": set},
		options.Update().SetUpsert(true))
	if err != nil {
		return models.WorkspaceSettings{}, err
	}
	logger.Info("global settings updated", "fields", len(updates))
	return s.GlobalDefaults(ctx)
}

// fields accepted at the global level on top of the mutable set.
var globalFields = map[string]bool{
	"embedding_provider": true,
	"embedding_model":    true,
	"embedding_dim":      true,
	"chunk_size":         true,
	"chunk_overlap":      true,
	"retrieval_engine":   true,
	"graph_uri":          true,
	"graph_user":         true,
	"graph_password":     true,
}

func validateGlobalSettings(updates map[string]interface{}) error {
	mutable := map[string]interface{}{}
	for field, v := range updates {
		if mutableFields[field] {
			mutable[field] = v
			continue
		}
		if !globalFields[field] {
			return utils.NewValidationError("Unknown settings field '"+field+"'", map[string]interface{}{"field": field})
		}
	}
	if err := validateMutableSettings(mutable); err != nil {
		return err
	}
	for field := range mutable {
		updates[field] = mutable[field] // normalized values
	}

	if v, ok := updates["embedding_dim"]; ok {
		n, valid := toInt(v)
		if valid {
			valid = false
			for _, dim := range vector.DimensionShards {
				if n == dim {
					valid = true
					break
				}
			}
		}
		if !valid {
			return utils.NewValidationError(
				fmt.Sprintf("embedding_dim must be one of %v", vector.DimensionShards),
				map[string]interface{}{"embedding_dim": v})
		}
		updates["embedding_dim"] = n
	}
	if v, ok := updates["chunk_size"]; ok {
		n, valid := toInt(v)
		if !valid || n < 1 {
			return utils.NewValidationError("chunk_size must be a positive integer", map[string]interface{}{"chunk_size": v})
		}
		updates["chunk_size"] = n
	}
	if v, ok := updates["chunk_overlap"]; ok {
		n, valid := toInt(v)
		if !valid || n < 0 {
			return utils.NewValidationError("chunk_overlap must be zero or a positive integer", map[string]interface{}{"chunk_overlap": v})
		}
		updates["chunk_overlap"] = n
	}
	if v, ok := updates["retrieval_engine"]; ok {
		engine, _ := v.(string)
		switch engine {
		case models.EngineBasic, models.EngineGraph:
		default:
			return utils.NewValidationError("retrieval_engine must be 'basic' or 'graph'", map[string]interface{}{"retrieval_engine": v})
		}
	}
	return nil
}

// mutable fields accepted by Update; anything else is unknown.
var mutableFields = map[string]bool{
	"retrieval_mode": true,
	"search_limit":   true,
	"hybrid_alpha":   true,
	"theme":          true,
	"show_reasoning": true,
}

func validateMutableSettings(updates map[string]interface{}) error {
	for field := range updates {
		if !mutableFields[field] {
			return utils.NewValidationError("Unknown settings field '"+field+"'", map[string]interface{}{"field": field})
		}
	}
	if v, ok := updates["retrieval_mode"]; ok {
		mode, _ := v.(string)
		switch mode {
		case "hybrid", "vector", "keyword":
		default:
			return utils.NewValidationError("retrieval_mode must be one of hybrid, vector, keyword", map[string]interface{}{"retrieval_mode": v})
		}
	}
	if v, ok := updates["search_limit"]; ok {
		n, ok := toInt(v)
		if !ok || n < 1 || n > 20 {
			return utils.NewValidationError("search_limit must be between 1 and 20", map[string]interface{}{"search_limit": v})
		}
		updates["search_limit"] = n
	}
	if v, ok := updates["hybrid_alpha"]; ok {
		a, ok := toFloat(v)
		if !ok || a < 0 || a > 1 {
			return utils.NewValidationError("hybrid_alpha must be between 0 and 1", map[string]interface{}{"hybrid_alpha": v})
		}
		updates["hybrid_alpha"] = a
	}
	return nil
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
