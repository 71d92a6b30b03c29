// Package staticschema implements schema.Extractor over a FieldMap
// supplied directly by a caller rather than discovered from a live
// backend, serving as the collaborator behind the REST layer's
// raw-schema endpoint. It lets the rest of the pipeline (FilterSchemaBuilder,
// FilterValidator, QueryTranslator) run unchanged against a FieldMap
// that never touched a real index or collection, useful for previewing
// IR validation and plan translation before wiring a live backend, or
// for onboarding a schema a live extractor can't yet reach.
package staticschema

import (
	"context"

	pkgerrors "github.com/gcbaptista/nlq-query-builder/internal/errors"
	"github.com/gcbaptista/nlq-query-builder/model"
)

// Extractor serves a fixed FieldMap and its carried enum Values as
// distinct-value results; it never performs backend I/O.
type Extractor struct {
	fieldMap model.FieldMap
}

// New wraps a caller-supplied FieldMap. The map is used as-is; callers
// are responsible for its invariants: unique enum values, unique
// dotted paths, no parent path alongside its leaves.
func New(fieldMap model.FieldMap) *Extractor {
	return &Extractor{fieldMap: fieldMap}
}

// Extract returns the wrapped FieldMap. New accepts any map; an empty
// one is rejected here with a SchemaError.
func (e *Extractor) Extract(ctx context.Context) (model.FieldMap, error) {
	if len(e.fieldMap) == 0 {
		return nil, pkgerrors.NewSchemaError("static", "supplied field map is empty")
	}
	return e.fieldMap, nil
}

// Distinct returns the field's carried enum Values, up to limit. For a
// non-enum field it returns an empty slice: there is no live backend
// to sample distinct values from.
func (e *Extractor) Distinct(ctx context.Context, field string, limit int) ([]string, error) {
	spec, ok := e.fieldMap[field]
	if !ok {
		return nil, pkgerrors.NewSchemaError("static", "unknown field: "+field)
	}
	values := spec.Values
	if limit > 0 && limit < len(values) {
		values = values[:limit]
	}
	return values, nil
}
