// Package schema defines the schema-extraction contract:
// produce a flattened model.FieldMap from a backend, and resolve the
// distinct-value set for a field on demand. The two concrete
// implementations, esschema (search-engine mappings) and docschema
// (document-store sampling), satisfy this same interface so the rest
// of the pipeline (FilterSchemaBuilder, Orchestrator) never branches on
// which backend produced the FieldMap.
package schema

import (
	"context"

	"github.com/gcbaptista/nlq-query-builder/model"
)

// Extractor produces a normalized FieldMap from a backing store and
// resolves distinct values for category fields.
type Extractor interface {
	// Extract returns the backend's flattened, type-annotated field map.
	// Results are memoized; repeated calls after the first successful
	// extraction return the cached FieldMap without hitting the backend.
	Extract(ctx context.Context) (model.FieldMap, error)

	// Distinct returns up to limit distinct values observed for field.
	// Results are memoized per (field, limit).
	Distinct(ctx context.Context, field string, limit int) ([]string, error)
}
