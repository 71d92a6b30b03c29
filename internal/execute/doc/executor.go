// Package doc implements the QueryExecutor for a document-store
// backend: it converts a translated Plan's pipeline stages (plain
// map[string]interface{}, JSON-safe) into bson.D via a JSON round-trip
// and runs them with mongo-driver's Aggregate.
package doc

import (
	"context"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	pkgerrors "github.com/gcbaptista/nlq-query-builder/internal/errors"
	"github.com/gcbaptista/nlq-query-builder/model"
)

// Executor runs translated document-store plans against a live collection.
type Executor struct {
	collection *mongo.Collection
}

// New creates an Executor bound to an existing collection handle.
func New(collection *mongo.Collection) *Executor {
	return &Executor{collection: collection}
}

// ExecuteOne runs a single translated plan. A failure becomes a
// QueryResult with success=false rather than a Go error.
func (e *Executor) ExecuteOne(ctx context.Context, sliceIndex int, plan model.Plan) model.QueryResult {
	rawStages, _ := plan.Body["pipeline"].([]interface{})

	pipeline := make(mongo.Pipeline, 0, len(rawStages))
	for _, stage := range rawStages {
		encoded, err := json.Marshal(stage)
		if err != nil {
			return failure(pkgerrors.NewBackendError(sliceIndex, "doc", "marshaling stage: "+err.Error()))
		}
		var doc bson.D
		if err := bson.UnmarshalExtJSON(encoded, false, &doc); err != nil {
			return failure(pkgerrors.NewBackendError(sliceIndex, "doc", "decoding stage: "+err.Error()))
		}
		pipeline = append(pipeline, doc)
	}

	cursor, err := e.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return failure(pkgerrors.NewBackendError(sliceIndex, "doc", err.Error()))
	}
	defer cursor.Close(ctx)

	var docs []model.Document
	aggregations := map[string]interface{}{}
	isGrouped := hasGroupStage(rawStages)

	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return failure(pkgerrors.NewBackendError(sliceIndex, "doc", "decoding result: "+err.Error()))
		}
		if isGrouped {
			bucketDocs, metrics := splitGroupedResult(raw)
			docs = append(docs, bucketDocs...)
			for k, v := range metrics {
				aggregations[k] = v
			}
		} else {
			docs = append(docs, model.Document(raw))
		}
	}
	if err := cursor.Err(); err != nil {
		return failure(pkgerrors.NewBackendError(sliceIndex, "doc", "reading cursor: "+err.Error()))
	}

	result := model.QueryResult{
		TotalHits: len(docs),
		Documents: docs,
		Success:   true,
	}
	if len(aggregations) > 0 {
		result.Aggregations = aggregations
	}
	return result
}

// splitGroupedResult separates a $group result document into its
// pushed documents and its scalar metric accumulators, so
// QueryResult.Aggregations only carries the latter.
func splitGroupedResult(raw bson.M) ([]model.Document, map[string]interface{}) {
	var bucketDocs []model.Document
	metrics := map[string]interface{}{}
	for key, value := range raw {
		switch key {
		case "_id":
			continue
		case "documents":
			if pushed, ok := value.(bson.A); ok {
				for _, d := range pushed {
					if m, ok := d.(bson.M); ok {
						bucketDocs = append(bucketDocs, model.Document(m))
					}
				}
			}
		default:
			metrics[key] = value
		}
	}
	return bucketDocs, metrics
}

func hasGroupStage(stages []interface{}) bool {
	for _, stage := range stages {
		if m, ok := stage.(map[string]interface{}); ok {
			if _, ok := m["$group"]; ok {
				return true
			}
		}
	}
	return false
}

func failure(err error) model.QueryResult {
	return model.QueryResult{Success: false, Error: fmt.Sprint(err)}
}
