package model

// QueryResult is the uniform result shape returned by every QueryExecutor,
// one per slice.
type QueryResult struct {
	TotalHits    int                    `json:"total_hits"`
	Documents    []Document             `json:"documents"`
	Aggregations map[string]interface{} `json:"aggregations,omitempty"`
	Success      bool                   `json:"success"`
	Error        string                 `json:"error,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}
