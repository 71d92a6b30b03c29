// Package search implements the QueryExecutor for a search-engine
// backend: it serializes a translated Plan's Body to JSON, issues it
// as a raw search request via go-elasticsearch/v7, and reshapes the
// response into a backend-agnostic model.QueryResult.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v7"

	pkgerrors "github.com/gcbaptista/nlq-query-builder/internal/errors"
	"github.com/gcbaptista/nlq-query-builder/model"
)

// Executor runs translated search-engine plans against a live index.
type Executor struct {
	client    *elasticsearch.Client
	indexName string
}

// New creates an Executor bound to an existing client and index.
func New(client *elasticsearch.Client, indexName string) *Executor {
	return &Executor{client: client, indexName: indexName}
}

// ExecuteOne runs a single translated plan. A failure becomes a
// QueryResult with success=false rather than a Go error, so one bad
// slice never sinks its siblings.
func (e *Executor) ExecuteOne(ctx context.Context, sliceIndex int, plan model.Plan) model.QueryResult {
	body, err := json.Marshal(plan.Body)
	if err != nil {
		return failure(pkgerrors.NewBackendError(sliceIndex, "search", "marshaling plan: "+err.Error()))
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.indexName),
		e.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return failure(pkgerrors.NewBackendError(sliceIndex, "search", err.Error()))
	}
	defer res.Body.Close()

	if res.IsError() {
		return failure(pkgerrors.NewBackendError(sliceIndex, "search", res.String()))
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
		Aggregations map[string]interface{} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return failure(pkgerrors.NewBackendError(sliceIndex, "search", "decoding response: "+err.Error()))
	}

	docs := make([]model.Document, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		docs = append(docs, model.Document(hit.Source))
	}

	result := model.QueryResult{
		TotalHits: parsed.Hits.Total.Value,
		Documents: docs,
		Success:   true,
	}
	if len(parsed.Aggregations) > 0 {
		result.Aggregations = parsed.Aggregations
	}
	return result
}

func failure(err error) model.QueryResult {
	return model.QueryResult{Success: false, Error: fmt.Sprint(err)}
}
