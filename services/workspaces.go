package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"knowledge-vault/internal/config"
	"knowledge-vault/internal/logger"
	"knowledge-vault/models"
	"knowledge-vault/utils"
)

// WorkspaceService manages tenant workspaces. Deleting a workspace
// hands its documents over to the vault rather than destroying content.
type WorkspaceService struct {
	col     *mongo.Collection
	docs    *mongo.Collection
	vault   *VaultService
	sets    *SettingsService
	timeout time.Duration
}

func NewWorkspaceService(db *mongo.Database, cfg *config.Config, settings *SettingsService, vault *VaultService) *WorkspaceService {
	return &WorkspaceService{
		col:     db.Collection("workspaces"),
		docs:    db.Collection("documents"),
		vault:   vault,
		sets:    settings,
		timeout: cfg.MongoTimeout,
	}
}

// EnsureDefault creates the reserved default workspace on first boot.
func (s *WorkspaceService) EnsureDefault(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.col.UpdateOne(ctx,
		bson.M{"id": models.DefaultWorkspaceID},
		bson.M{"$setOnInsert": bson.M{
			"id":          models.DefaultWorkspaceID,
			"name":        "Default",
			"description": "System default workspace",
			"created_at":  time.Now().UTC(),
		}},
		options.Update().SetUpsert(true))
	return err
}

func validateWorkspaceName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return utils.NewValidationError("Workspace name cannot be empty", nil)
	}
	if len(name) > 64 {
		return utils.NewValidationError("Workspace name cannot exceed 64 characters", nil)
	}
	for _, r := range name {
		if strings.ContainsRune(models.IllegalFilenameChars, r) {
			return utils.NewValidationError("Workspace name contains illegal character '"+string(r)+"'",
				map[string]interface{}{"character": string(r)})
		}
	}
	return nil
}

// Create registers a workspace and freezes its embedding settings. Any
// immutable field left unset inherits the global default at this moment,
// not at some later read.
func (s *WorkspaceService) Create(ctx context.Context, name, description string, settings *models.WorkspaceSettings) (*models.Workspace, error) {
	if err := validateWorkspaceName(name); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)

	merged, err := s.sets.GlobalDefaults(ctx)
	if err != nil {
		return nil, err
	}
	if settings != nil {
		if settings.EmbeddingProvider != "" {
			merged.EmbeddingProvider = settings.EmbeddingProvider
		}
		if settings.EmbeddingModel != "" {
			merged.EmbeddingModel = settings.EmbeddingModel
		}
		if settings.EmbeddingDim > 0 {
			merged.EmbeddingDim = settings.EmbeddingDim
		}
		if settings.ChunkSize > 0 {
			merged.ChunkSize = settings.ChunkSize
		}
		if settings.ChunkOverlap > 0 {
			merged.ChunkOverlap = settings.ChunkOverlap
		}
		if settings.RetrievalEngine != "" {
			merged.RetrievalEngine = settings.RetrievalEngine
		}
		merged.GraphURI = settings.GraphURI
		merged.GraphUser = settings.GraphUser
		merged.GraphPassword = settings.GraphPassword
	}
	switch merged.RetrievalEngine {
	case models.EngineBasic, models.EngineGraph:
	default:
		return nil, utils.NewValidationError("retrieval_engine must be 'basic' or 'graph'",
			map[string]interface{}{"retrieval_engine": merged.RetrievalEngine})
	}

	ws := &models.Workspace{
		ID:          uuid.NewString()[:8],
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.col.InsertOne(ctx, ws); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, utils.NewConflictError("Workspace '"+name+"' already exists", nil)
		}
		return nil, err
	}
	if err := s.sets.Initialize(ctx, ws.ID, merged); err != nil {
		// Roll the row back so a half-created workspace never lingers.
		s.col.DeleteOne(ctx, bson.M{"id": ws.ID})
		return nil, err
	}
	ws.Settings = &merged
	logger.Info("workspace created", "workspace_id", ws.ID, "name", name, "engine", merged.RetrievalEngine)
	return ws, nil
}

// Get resolves a workspace by id, falling back to exact name match.
func (s *WorkspaceService) Get(ctx context.Context, idOrName string) (*models.Workspace, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var ws models.Workspace
	err := s.col.FindOne(ctx, bson.M{"$or": []bson.M{
		{"id": idOrName},
		{"name": idOrName},
	}}).Decode(&ws)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewNotFoundError("Workspace '" + idOrName + "' not found")
	}
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

// List returns all workspaces with owned-document counts and settings.
func (s *WorkspaceService) List(ctx context.Context) ([]models.Workspace, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cursor, err := s.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	workspaces := []models.Workspace{}
	if err := cursor.All(ctx, &workspaces); err != nil {
		return nil, err
	}
	for i := range workspaces {
		count, err := s.docs.CountDocuments(ctx, bson.M{"workspace_id": workspaces[i].ID})
		if err != nil {
			return nil, err
		}
		workspaces[i].Stats = &models.WorkspaceStats{DocCount: count}
		settings, err := s.sets.Get(ctx, workspaces[i].ID)
		if err != nil {
			return nil, err
		}
		workspaces[i].Settings = &settings
	}
	return workspaces, nil
}

// Details returns one workspace with stats and effective settings.
func (s *WorkspaceService) Details(ctx context.Context, idOrName string) (*models.Workspace, error) {
	ws, err := s.Get(ctx, idOrName)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	count, err := s.docs.CountDocuments(ctx, bson.M{"workspace_id": ws.ID})
	if err != nil {
		return nil, err
	}
	ws.Stats = &models.WorkspaceStats{DocCount: count}
	settings, err := s.sets.Get(ctx, ws.ID)
	if err != nil {
		return nil, err
	}
	ws.Settings = &settings
	return ws, nil
}

// Update changes name or description. The default workspace and all
// immutable settings are off limits here.
func (s *WorkspaceService) Update(ctx context.Context, workspaceID, name, description string) (*models.Workspace, error) {
	if workspaceID == models.DefaultWorkspaceID {
		return nil, utils.NewValidationError("The default workspace cannot be modified", nil)
	}
	set := bson.M{}
	if name != "" {
		if err := validateWorkspaceName(name); err != nil {
			return nil, err
		}
		set["name"] = strings.TrimSpace(name)
	}
	if description != "" {
		set["description"] = description
	}
	if len(set) == 0 {
		return s.Get(ctx, workspaceID)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := s.col.UpdateOne(ctx, bson.M{"id": workspaceID}, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, utils.NewConflictError("Workspace name already in use", nil)
		}
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, utils.NewNotFoundError("Workspace '" + workspaceID + "' not found")
	}
	return s.Get(ctx, workspaceID)
}

// Delete removes a workspace. Owned documents are soft-detached into
// the vault pool, shared documents just lose this workspace from their
// audience, and the workspace's vector points disappear with them.
func (s *WorkspaceService) Delete(ctx context.Context, workspaceID string) error {
	if workspaceID == models.DefaultWorkspaceID {
		return utils.NewValidationError("The default workspace cannot be deleted", nil)
	}
	ws, err := s.Get(ctx, workspaceID)
	if err != nil {
		return err
	}

	if err := s.vault.DetachAllForWorkspace(ctx, ws.ID); err != nil {
		return err
	}

	mctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.sets.col.DeleteOne(mctx, bson.M{"workspace_id": ws.ID}); err != nil {
		return err
	}
	if _, err := s.col.DeleteOne(mctx, bson.M{"id": ws.ID}); err != nil {
		return err
	}
	logger.Info("workspace deleted", "workspace_id", ws.ID, "name", ws.Name)
	return nil
}
