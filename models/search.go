package models

// SearchResult is one ranked chunk returned from hybrid retrieval.
// The shape is identical for every retrieval strategy; callers never
// branch on which engine produced it.
type SearchResult struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
	DocID  string  `json:"doc_id,omitempty"`
}

// ChunkRecord is a stored vector point's payload as returned by
// chunk listings.
type ChunkRecord struct {
	ID          string `json:"id"`
	DocID       string `json:"doc_id"`
	WorkspaceID string `json:"workspace_id"`
	Text        string `json:"text"`
	Index       int    `json:"index"`
	Source      string `json:"source"`
}

// GlobalSearchResults groups synchronous metadata search hits.
type GlobalSearchResults struct {
	Workspaces []Workspace `json:"workspaces"`
	Documents  []Document  `json:"documents"`
}
