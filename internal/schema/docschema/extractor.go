// Package docschema implements schema.Extractor against a document-store
// backend shaped like MongoDB: it samples documents with a $sample
// aggregation stage, folds the sampled documents into a per-path
// type-frequency tally, and resolves each path to its modal (most
// frequently observed) type.
package docschema

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	pkgerrors "github.com/gcbaptista/nlq-query-builder/internal/errors"
	"github.com/gcbaptista/nlq-query-builder/model"
)

// Config configures the document-store extractor.
type Config struct {
	CollectionName string
	CategoryFields []string
	FieldsToIgnore []string
	SampleSize     int // default 1000
	BucketSize     int // default 100, distinct() cap
}

// Extractor samples a document-store collection and infers a
// model.FieldMap from the observed documents. It satisfies schema.Extractor.
type Extractor struct {
	collection *mongo.Collection
	cfg        Config

	once     sync.Once
	onceErr  error
	fieldMap model.FieldMap

	mu       sync.Mutex
	distinct map[string][]string
}

// New creates an Extractor bound to an existing collection handle.
func New(collection *mongo.Collection, cfg Config) *Extractor {
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = 1000
	}
	if cfg.BucketSize <= 0 {
		cfg.BucketSize = 100
	}
	return &Extractor{
		collection: collection,
		cfg:        cfg,
		distinct:   make(map[string][]string),
	}
}

// typeTally counts how often each normalized type was observed for a path.
type typeTally map[model.FieldType]int

// Extract returns the memoized FieldMap, sampling the collection and
// resolving category-field distinct values on first use.
func (e *Extractor) Extract(ctx context.Context) (model.FieldMap, error) {
	e.once.Do(func() {
		e.fieldMap, e.onceErr = e.buildFieldMap(ctx)
	})
	return e.fieldMap, e.onceErr
}

func (e *Extractor) buildFieldMap(ctx context.Context) (model.FieldMap, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$sample", Value: bson.M{"size": e.cfg.SampleSize}}},
	}
	cursor, err := e.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, pkgerrors.NewSchemaError("doc", "sampling collection: "+err.Error())
	}
	defer cursor.Close(ctx)

	ignore := make(map[string]bool, len(e.cfg.FieldsToIgnore))
	for _, f := range e.cfg.FieldsToIgnore {
		ignore[f] = true
	}

	tallies := make(map[string]typeTally)
	itemTypes := make(map[string]model.FieldType)
	sampled := 0
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		sampled++
		tallyDocument("", doc, ignore, tallies, itemTypes)
	}
	if err := cursor.Err(); err != nil {
		return nil, pkgerrors.NewSchemaError("doc", "reading sample cursor: "+err.Error())
	}
	if sampled == 0 {
		return nil, pkgerrors.NewSchemaError("doc", "sample produced no documents")
	}

	fm := model.FieldMap{}
	for path, tally := range tallies {
		spec := model.FieldSpec{Type: modalType(tally)}
		if spec.Type == model.FieldTypeArray {
			spec.ItemType = itemTypes[path]
			if spec.ItemType == "" {
				spec.ItemType = model.FieldTypeString
			}
		}
		fm[path] = spec
	}

	categories := make(map[string]bool, len(e.cfg.CategoryFields))
	for _, f := range e.cfg.CategoryFields {
		categories[f] = true
	}
	for path := range categories {
		spec, ok := fm[path]
		if !ok || ignore[path] {
			continue
		}
		values, err := e.Distinct(ctx, path, e.cfg.BucketSize)
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			continue
		}
		spec.Type = model.FieldTypeEnum
		spec.Values = values
		fm[path] = spec
	}

	return fm, nil
}

// tallyDocument walks one sampled document, recursing into nested
// objects and incrementing the observed type for each leaf path. A
// field present with different shapes across the sample simply
// accumulates multiple candidate types, resolved later by modalType.
// itemTypes records, per array path, the normalized type of its first
// observed element, independent of and never overwritten by later
// samples.
func tallyDocument(prefix string, doc bson.M, ignore map[string]bool, tallies map[string]typeTally, itemTypes map[string]model.FieldType) {
	for key, value := range doc {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if ignore[path] {
			continue
		}

		switch v := value.(type) {
		case bson.M:
			if len(v) == 0 {
				recordType(tallies, path, model.FieldTypeObject)
				continue
			}
			tallyDocument(path, v, ignore, tallies, itemTypes)
		case bson.D:
			m := v.Map()
			if len(m) == 0 {
				recordType(tallies, path, model.FieldTypeObject)
				continue
			}
			tallyDocument(path, bson.M(m), ignore, tallies, itemTypes)
		case bson.A:
			recordType(tallies, path, model.FieldTypeArray)
			recordItemType(itemTypes, path, []interface{}(v))
		case []interface{}:
			recordType(tallies, path, model.FieldTypeArray)
			recordItemType(itemTypes, path, v)
		case string:
			recordType(tallies, path, model.FieldTypeString)
		case bool:
			recordType(tallies, path, model.FieldTypeBoolean)
		case int32, int64, float64:
			recordType(tallies, path, model.FieldTypeNumber)
		case nil:
			// an observed null contributes no type signal
		default:
			// primitive.DateTime, primitive.ObjectID, primitive.Decimal128
			// and the like are classified by typeFromBSONValue.
			recordType(tallies, path, typeFromBSONValue(v))
		}
	}
}

func recordType(tallies map[string]typeTally, path string, t model.FieldType) {
	tally, ok := tallies[path]
	if !ok {
		tally = typeTally{}
		tallies[path] = tally
	}
	tally[t]++
}

// recordItemType sets the element type for an array path the first
// time a non-empty array is observed at that path; later observations
// never overwrite it. Element types are first-observation, not modal.
func recordItemType(itemTypes map[string]model.FieldType, path string, arr []interface{}) {
	if _, ok := itemTypes[path]; ok {
		return
	}
	for _, elem := range arr {
		if t, ok := elementType(elem); ok {
			itemTypes[path] = t
			return
		}
	}
}

// elementType classifies a single array element using the same
// primitive-shape rules tallyDocument applies to top-level fields.
func elementType(v interface{}) (model.FieldType, bool) {
	switch e := v.(type) {
	case bson.M:
		return model.FieldTypeObject, true
	case bson.D:
		return model.FieldTypeObject, true
	case bson.A, []interface{}:
		return model.FieldTypeArray, true
	case string:
		return model.FieldTypeString, true
	case bool:
		return model.FieldTypeBoolean, true
	case int32, int64, float64:
		return model.FieldTypeNumber, true
	case nil:
		return "", false
	default:
		return typeFromBSONValue(e), true
	}
}

// modalType resolves a path's tally to the most frequently observed
// type, breaking ties by the declaration order of FieldType's zero
// value preference: string wins ties over the rest since it is the
// safest catch-all for display purposes.
func modalType(tally typeTally) model.FieldType {
	best := model.FieldTypeString
	bestCount := -1
	order := []model.FieldType{
		model.FieldTypeString, model.FieldTypeNumber, model.FieldTypeDate,
		model.FieldTypeBoolean, model.FieldTypeArray, model.FieldTypeObject,
	}
	for _, t := range order {
		if c := tally[t]; c > bestCount {
			bestCount = c
			best = t
		}
	}
	return best
}

// Distinct runs a distinct command over field and returns at most
// limit values (never more than 100). The full sorted result is
// memoized per field, and later calls truncate the cached set to their
// own limit.
func (e *Extractor) Distinct(ctx context.Context, field string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = e.cfg.BucketSize
	}
	if limit > 100 {
		limit = 100
	}
	cacheKey := field

	e.mu.Lock()
	if cached, ok := e.distinct[cacheKey]; ok {
		e.mu.Unlock()
		if len(cached) > limit {
			return cached[:limit], nil
		}
		return cached, nil
	}
	e.mu.Unlock()

	raw, err := e.collection.Distinct(ctx, field, bson.M{})
	if err != nil {
		return nil, pkgerrors.NewSchemaError("doc", "distinct("+field+"): "+err.Error())
	}

	values := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			values = append(values, s)
		}
	}
	sort.Strings(values)

	e.mu.Lock()
	e.distinct[cacheKey] = values
	e.mu.Unlock()

	if len(values) > limit {
		return values[:limit], nil
	}
	return values, nil
}

// typeFromBSONValue covers the remaining primitive.* types the driver's
// default bson.M decoding can produce: DateTime, Timestamp and
// Decimal128 each get a dedicated case, everything else (ObjectID,
// Regex, Binary, JavaScript, Symbol, DBPointer) collapses to string.
func typeFromBSONValue(v interface{}) model.FieldType {
	switch v.(type) {
	case primitive.DateTime, primitive.Timestamp:
		return model.FieldTypeDate
	case primitive.Decimal128:
		return model.FieldTypeNumber
	default:
		return model.FieldTypeString
	}
}
