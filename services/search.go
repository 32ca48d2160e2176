package services

import (
	"context"
	"regexp"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"knowledge-vault/internal/logger"
	"knowledge-vault/internal/vector"
	"knowledge-vault/models"
	"knowledge-vault/utils"
)

// rrfK is the rank smoothing constant in reciprocal rank fusion.
const rrfK = 60

// FuseRRF merges ranked candidate lists with reciprocal rank fusion:
// each appearance contributes 1/(rrfK + rank + 1) with zero-based rank.
// Fusion is purely rank-based; raw similarity scores and the workspace
// hybrid_alpha setting do not enter the formula. Output is sorted by
// fused score descending, ties broken by ascending id, truncated to
// limit. The ordering is fully determined by the input lists.
func FuseRRF(limit int, lists ...[]models.SearchResult) []models.SearchResult {
	type entry struct {
		result models.SearchResult
		score  float64
	}
	fused := map[string]*entry{}
	for _, list := range lists {
		for rank, candidate := range list {
			contribution := 1.0 / float64(rrfK+rank+1)
			if e, ok := fused[candidate.ID]; ok {
				e.score += contribution
			} else {
				fused[candidate.ID] = &entry{result: candidate, score: contribution}
			}
		}
	}

	merged := make([]models.SearchResult, 0, len(fused))
	for _, e := range fused {
		e.result.Score = e.score
		merged = append(merged, e.result)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ID < merged[j].ID
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// RetrievalStrategy produces candidate result lists for fusion. Every
// strategy returns the same result shape; callers never branch on which
// engine produced it.
type RetrievalStrategy interface {
	Name() string
	CandidateLists(ctx context.Context, query, workspaceID string, settings models.WorkspaceSettings, fetch int) ([][]models.SearchResult, error)
}

// SearchService runs hybrid retrieval over a workspace's shard, picking
// the strategy the workspace was created with.
type SearchService struct {
	docs     *mongo.Collection
	wss      *mongo.Collection
	index    vector.Index
	sets     *SettingsService
	indexing *IndexingService
	timeout  time.Duration
}

func NewSearchService(db *mongo.Database, index vector.Index, sets *SettingsService, indexing *IndexingService) *SearchService {
	return &SearchService{
		docs:     db.Collection("documents"),
		wss:      db.Collection("workspaces"),
		index:    index,
		sets:     sets,
		indexing: indexing,
		timeout:  indexing.timeout,
	}
}

func (s *SearchService) strategy(settings models.WorkspaceSettings) RetrievalStrategy {
	if settings.RetrievalEngine == models.EngineGraph {
		return &graphStrategy{basicStrategy{index: s.index, indexing: s.indexing}}
	}
	return &basicStrategy{index: s.index, indexing: s.indexing}
}

// Search retrieves the top chunks visible to a workspace. A zero limit
// falls back to the workspace's configured search limit.
func (s *SearchService) Search(ctx context.Context, workspaceID, query string, limit int) ([]models.SearchResult, string, error) {
	if query == "" {
		return nil, "", utils.NewValidationError("Query cannot be empty", nil)
	}
	settings, err := s.sets.Get(ctx, workspaceID)
	if err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		limit = settings.SearchLimit
	}

	exists, err := s.index.ShardExists(ctx, settings.EmbeddingDim)
	if err != nil {
		return nil, "", err
	}
	if !exists {
		return []models.SearchResult{}, settings.RetrievalEngine, nil
	}

	strat := s.strategy(settings)
	// Each list over-fetches so fusion has real candidates to promote.
	lists, err := strat.CandidateLists(ctx, query, workspaceID, settings, limit*2)
	if err != nil {
		return nil, "", err
	}
	results := FuseRRF(limit, lists...)
	logger.Debug("search complete", "workspace_id", workspaceID, "engine", strat.Name(),
		"lists", len(lists), "results", len(results))
	return results, strat.Name(), nil
}

// basicStrategy fuses dense similarity with keyword matching.
type basicStrategy struct {
	index    vector.Index
	indexing *IndexingService
}

func (b *basicStrategy) Name() string { return models.EngineBasic }

func (b *basicStrategy) CandidateLists(ctx context.Context, query, workspaceID string, settings models.WorkspaceSettings, fetch int) ([][]models.SearchResult, error) {
	var lists [][]models.SearchResult

	switch settings.RetrievalMode {
	case "keyword":
	default: // hybrid, vector
		embedder, err := b.indexing.embedder(settings.EmbeddingProvider, settings.EmbeddingModel, settings.EmbeddingDim)
		if err != nil {
			return nil, err
		}
		vec, err := embedder.Embed(ctx, query)
		if err != nil {
			return nil, err
		}
		scored, err := b.index.Query(ctx, settings.EmbeddingDim, vec, workspaceID, fetch)
		if err != nil {
			return nil, err
		}
		dense := make([]models.SearchResult, 0, len(scored))
		for _, p := range scored {
			dense = append(dense, pointToResult(p.ChunkPoint))
		}
		lists = append(lists, dense)
	}

	if settings.RetrievalMode != "vector" {
		points, err := b.index.KeywordSearch(ctx, settings.EmbeddingDim, query, workspaceID, fetch)
		if err != nil {
			return nil, err
		}
		keyword := make([]models.SearchResult, 0, len(points))
		for _, p := range points {
			keyword = append(keyword, pointToResult(p))
		}
		lists = append(lists, keyword)
	}
	return lists, nil
}

// graphStrategy layers neighborhood expansion on top of the basic
// lists: chunks adjacent to the strongest dense hits join the candidate
// pool, rewarding passages whose surroundings also match.
type graphStrategy struct {
	basicStrategy
}

func (g *graphStrategy) Name() string { return models.EngineGraph }

func (g *graphStrategy) CandidateLists(ctx context.Context, query, workspaceID string, settings models.WorkspaceSettings, fetch int) ([][]models.SearchResult, error) {
	lists, err := g.basicStrategy.CandidateLists(ctx, query, workspaceID, settings, fetch)
	if err != nil {
		return nil, err
	}
	if len(lists) == 0 || len(lists[0]) == 0 {
		return lists, nil
	}

	// Expand around the top dense hits, strongest first.
	seedDocs := map[string]bool{}
	var expansion []models.SearchResult
	for _, seed := range lists[0] {
		if seed.DocID == "" || seedDocs[seed.DocID] {
			continue
		}
		seedDocs[seed.DocID] = true
		points, err := g.index.ScrollByDoc(ctx, settings.EmbeddingDim, seed.DocID, fetch, false)
		if err != nil {
			return nil, err
		}
		sort.Slice(points, func(i, j int) bool {
			return payloadInt(points[i].Payload, vector.PayloadIndex) < payloadInt(points[j].Payload, vector.PayloadIndex)
		})
		for _, p := range points {
			expansion = append(expansion, pointToResult(p))
		}
		if len(expansion) >= fetch {
			expansion = expansion[:fetch]
			break
		}
		if len(seedDocs) >= 3 {
			break
		}
	}
	if len(expansion) > 0 {
		lists = append(lists, expansion)
	}
	return lists, nil
}

func pointToResult(p vector.ChunkPoint) models.SearchResult {
	return models.SearchResult{
		ID:     p.ID,
		Text:   payloadString(p.Payload, vector.PayloadText),
		Source: payloadString(p.Payload, vector.PayloadSource),
		DocID:  payloadString(p.Payload, vector.PayloadDocID),
	}
}

// GlobalSearch is a synchronous metadata search over workspace names
// and document filenames, case-insensitive substring match.
func (s *SearchService) GlobalSearch(ctx context.Context, query string, limit int64) (*models.GlobalSearchResults, error) {
	if query == "" {
		return nil, utils.NewValidationError("Query cannot be empty", nil)
	}
	if limit <= 0 {
		limit = 20
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pattern := bson.M{"$regex": regexp.QuoteMeta(query), "$options": "i"}

	out := &models.GlobalSearchResults{Workspaces: []models.Workspace{}, Documents: []models.Document{}}
	wsCursor, err := s.wss.Find(ctx, bson.M{"$or": []bson.M{
		{"name": pattern},
		{"description": pattern},
	}}, options.Find().SetLimit(limit))
	if err != nil {
		return nil, err
	}
	if err := wsCursor.All(ctx, &out.Workspaces); err != nil {
		return nil, err
	}

	docCursor, err := s.docs.Find(ctx, bson.M{"filename": pattern},
		options.Find().SetLimit(limit).SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	if err := docCursor.All(ctx, &out.Documents); err != nil {
		return nil, err
	}
	return out, nil
}
