// Package esschema implements schema.Extractor against a search-engine
// backend shaped like Elasticsearch: it walks the index's mapping
// "properties" tree and flattens it into a model.FieldMap, recursing
// into nested "properties" objects, treating a multi-field sibling
// ("fields": {"keyword": {...}}) as the exact-match signal, and
// treating "nested" as an array of object elements.
package esschema

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/elastic/go-elasticsearch/v7"

	"github.com/gcbaptista/nlq-query-builder/internal/applog"
	pkgerrors "github.com/gcbaptista/nlq-query-builder/internal/errors"
	"github.com/gcbaptista/nlq-query-builder/internal/typeregistry"
	"github.com/gcbaptista/nlq-query-builder/model"
)

// Config configures the search-engine extractor.
type Config struct {
	IndexName      string
	CategoryFields []string
	FieldsToIgnore []string
	BucketSize     int // default 100, terms-aggregation size for distinct()
}

// Extractor extracts a FieldMap from a live Elasticsearch-shaped
// mapping endpoint. It satisfies schema.Extractor.
type Extractor struct {
	client *elasticsearch.Client
	cfg    Config

	once     sync.Once
	onceErr  error
	fieldMap model.FieldMap

	mu       sync.Mutex
	distinct map[string][]string
}

// New creates an Extractor bound to an existing Elasticsearch client.
func New(client *elasticsearch.Client, cfg Config) *Extractor {
	if cfg.BucketSize <= 0 {
		cfg.BucketSize = 100
	}
	return &Extractor{
		client:   client,
		cfg:      cfg,
		distinct: make(map[string][]string),
	}
}

// Extract returns the memoized FieldMap, building it from the live
// mapping and any configured category-field distinct() calls on first use.
func (e *Extractor) Extract(ctx context.Context) (model.FieldMap, error) {
	e.once.Do(func() {
		e.fieldMap, e.onceErr = e.buildFieldMap(ctx)
	})
	return e.fieldMap, e.onceErr
}

func (e *Extractor) buildFieldMap(ctx context.Context) (model.FieldMap, error) {
	props, err := e.fetchProperties(ctx)
	if err != nil {
		return nil, pkgerrors.NewSchemaError("search", err.Error())
	}

	ignore := make(map[string]bool, len(e.cfg.FieldsToIgnore))
	for _, f := range e.cfg.FieldsToIgnore {
		ignore[f] = true
	}

	fm := model.FieldMap{}
	walkProperties("", props, ignore, fm)

	if len(fm) == 0 {
		return nil, pkgerrors.NewSchemaError("search", "mapping produced an empty field map")
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

// BuildFieldMap flattens a caller-supplied mapping "properties" tree
// into a FieldMap the same way Extract does against a live index, but
// without touching a backend at all: used by the REST layer's
// raw-schema endpoint, where category-field enum values must be
// supplied directly in categoryValues since there is no live index to
// run a terms aggregation against.
func BuildFieldMap(props map[string]interface{}, fieldsToIgnore []string, categoryValues map[string][]string) (model.FieldMap, error) {
	ignore := make(map[string]bool, len(fieldsToIgnore))
	for _, f := range fieldsToIgnore {
		ignore[f] = true
	}

	fm := model.FieldMap{}
	walkProperties("", props, ignore, fm)
	if len(fm) == 0 {
		return nil, pkgerrors.NewSchemaError("search", "mapping produced an empty field map")
	}

	for path, values := range categoryValues {
		spec, ok := fm[path]
		if !ok || ignore[path] || len(values) == 0 {
			continue
		}
		spec.Type = model.FieldTypeEnum
		spec.Values = values
		fm[path] = spec
	}

	return fm, nil
}

// fetchProperties retrieves the index's mapping and returns its raw
// "properties" object.
func (e *Extractor) fetchProperties(ctx context.Context) (map[string]interface{}, error) {
	resp, err := e.client.Indices.GetMapping(
		e.client.Indices.GetMapping.WithContext(ctx),
		e.client.Indices.GetMapping.WithIndex(e.cfg.IndexName),
	)
	if err != nil {
		return nil, fmt.Errorf("get mapping for index %q: %w", e.cfg.IndexName, err)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return nil, fmt.Errorf("get mapping for index %q: %s", e.cfg.IndexName, resp.String())
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading mapping response: %w", err)
	}

	var raw map[string]struct {
		Mappings struct {
			Properties map[string]interface{} `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding mapping response: %w", err)
	}
	for _, v := range raw {
		return v.Mappings.Properties, nil
	}
	return nil, fmt.Errorf("no mapping returned for index %q", e.cfg.IndexName)
}

// walkProperties recurses a mapping "properties" tree, writing one
// FieldSpec per leaf path into fm. Malformed entries are logged and
// skipped rather than aborting the whole walk.
func walkProperties(prefix string, props map[string]interface{}, ignore map[string]bool, fm model.FieldMap) {
	for name, raw := range props {
		def, ok := raw.(map[string]interface{})
		if !ok {
			applog.Warn("skipping malformed mapping entry", "field", name, "prefix", prefix)
			continue
		}
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		if ignore[path] {
			continue
		}

		backendType, _ := def["type"].(string)
		if backendType == "nested" {
			fm[path] = model.FieldSpec{Type: model.FieldTypeArray, ItemType: model.FieldTypeObject}
			continue
		}

		if children, ok := def["properties"].(map[string]interface{}); ok {
			walkProperties(path, children, ignore, fm)
			continue
		}

		normalized, ok := typeregistry.NormalizedSearchType(backendType)
		if !ok {
			applog.Warn("skipping mapping entry with unrecognized backend type", "field", path, "backend_type", backendType)
			continue
		}

		spec := model.FieldSpec{Type: normalized}
		if multiFields, ok := def["fields"].(map[string]interface{}); ok {
			if _, hasKeyword := multiFields["keyword"]; hasKeyword {
				spec.ExactMatchCapable = true
			}
		}
		fm[path] = spec
	}
}

// Distinct runs a terms aggregation over field, bounded to limit
// values, and memoizes the result per (field, limit).
func (e *Extractor) Distinct(ctx context.Context, field string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = e.cfg.BucketSize
	}
	cacheKey := fmt.Sprintf("%s|%d", field, limit)

	e.mu.Lock()
	if cached, ok := e.distinct[cacheKey]; ok {
		e.mu.Unlock()
		return cached, nil
	}
	e.mu.Unlock()

	aggField := field
	if !strings.HasSuffix(field, ".keyword") {
		aggField = field + ".keyword"
	}

	body := fmt.Sprintf(`{"size":0,"aggs":{"distinct":{"terms":{"field":%q,"size":%d}}}}`, aggField, limit)
	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.cfg.IndexName),
		e.client.Search.WithBody(strings.NewReader(body)),
	)
	if err != nil {
		return nil, pkgerrors.NewSchemaError("search", fmt.Sprintf("distinct(%s): %v", field, err))
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, pkgerrors.NewSchemaError("search", fmt.Sprintf("distinct(%s): %s", field, res.String()))
	}

	var parsed struct {
		Aggregations struct {
			Distinct struct {
				Buckets []struct {
					Key string `json:"key"`
				} `json:"buckets"`
			} `json:"distinct"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, pkgerrors.NewSchemaError("search", fmt.Sprintf("decoding distinct(%s) response: %v", field, err))
	}

	values := make([]string, 0, len(parsed.Aggregations.Distinct.Buckets))
	for _, b := range parsed.Aggregations.Distinct.Buckets {
		values = append(values, b.Key)
	}
	sort.Strings(values)

	e.mu.Lock()
	e.distinct[cacheKey] = values
	e.mu.Unlock()

	return values, nil
}
