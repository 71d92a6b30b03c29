// Package search implements the QueryTranslator for a search-engine
// backend shaped like Elasticsearch: condition predicates lower to
// bool/range/term/terms/wildcard/exists clauses, grouping lowers to
// nested terms/date_histogram aggregations, and having clauses lower
// to a bucket_selector script.
package search

import (
	"fmt"
	"strings"

	pkgerrors "github.com/gcbaptista/nlq-query-builder/internal/errors"
	"github.com/gcbaptista/nlq-query-builder/internal/filterschema"
	"github.com/gcbaptista/nlq-query-builder/internal/typeregistry"
	"github.com/gcbaptista/nlq-query-builder/model"
)

// Translator compiles a validated FilterIR into search-engine plans.
type Translator struct {
	schema      *filterschema.Schema
	bucketSize  int
	topHitsSize int
}

// New binds a Translator to the field schema and the two size knobs:
// bucketSize caps terms buckets per grouping level, topHitsSize caps
// per-bucket document collection.
func New(schema *filterschema.Schema, bucketSize, topHitsSize int) *Translator {
	if bucketSize <= 0 {
		bucketSize = 100
	}
	if topHitsSize <= 0 {
		topHitsSize = 100
	}
	return &Translator{schema: schema, bucketSize: bucketSize, topHitsSize: topHitsSize}
}

// Translate compiles every slice of ir into an ordered list of plans,
// preserving slice order.
func (t *Translator) Translate(ir model.FilterIR) ([]model.Plan, error) {
	plans := make([]model.Plan, len(ir.Slices))
	for i, slice := range ir.Slices {
		body, err := t.translateSlice(slice)
		if err != nil {
			return nil, err
		}
		plans[i] = model.Plan{Backend: model.BackendSearch, Body: body}
	}
	return plans, nil
}

func (t *Translator) translateSlice(slice model.Slice) (map[string]interface{}, error) {
	query, err := t.translateConditions(slice.Conditions)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{"query": query}

	if len(slice.Sort) > 0 {
		body["sort"] = t.translateSort(slice.Sort)
	}

	if len(slice.GroupBy) > 0 {
		aggs, err := t.translateGrouping(slice)
		if err != nil {
			return nil, err
		}
		body["size"] = 0
		body["aggs"] = aggs
		if slice.Limit != nil {
			// On group-only plans limit caps buckets, not documents: the
			// outermost terms level carries its own size already, and
			// limit further bounds it.
			if outer, ok := aggs["group_by_0"].(map[string]interface{}); ok {
				if terms, ok := outer["terms"].(map[string]interface{}); ok {
					if size, ok := terms["size"].(int); !ok || *slice.Limit < size {
						terms["size"] = *slice.Limit
					}
				}
			}
		}
		return body, nil
	}

	if slice.Limit != nil {
		body["size"] = *slice.Limit
	}

	return body, nil
}

func (t *Translator) translateConditions(conditions []model.Condition) (map[string]interface{}, error) {
	if len(conditions) == 0 {
		return map[string]interface{}{"match_all": map[string]interface{}{}}, nil
	}

	must := make([]interface{}, 0, len(conditions))
	for _, cond := range conditions {
		clause, err := t.translateCondition(cond)
		if err != nil {
			return nil, err
		}
		must = append(must, clause)
	}

	return map[string]interface{}{"bool": map[string]interface{}{"must": must}}, nil
}

func (t *Translator) translateCondition(cond model.Condition) (map[string]interface{}, error) {
	rule, ok := t.schema.Rule(cond.Field)
	if !ok {
		return nil, pkgerrors.NewTranslationError(fmt.Sprintf("condition references unknown field %q", cond.Field))
	}

	switch cond.Operator {
	case model.OpGreaterThan:
		return rangeClause(cond.Field, "gt", cond.Value), nil
	case model.OpLessThan:
		return rangeClause(cond.Field, "lt", cond.Value), nil
	case model.OpBetween:
		bounds := cond.Value.([]interface{})
		return map[string]interface{}{
			"range": map[string]interface{}{
				cond.Field: map[string]interface{}{"gte": bounds[0], "lte": bounds[1]},
			},
		}, nil
	case model.OpIs:
		return termClause(equalityField(cond.Field, rule), cond.Value), nil
	case model.OpDifferent:
		return map[string]interface{}{
			"bool": map[string]interface{}{"must_not": []interface{}{termClause(equalityField(cond.Field, rule), cond.Value)}},
		}, nil
	case model.OpIsIn:
		return termsClause(equalityField(cond.Field, rule), cond.Value), nil
	case model.OpNotIn:
		return map[string]interface{}{
			"bool": map[string]interface{}{"must_not": []interface{}{termsClause(equalityField(cond.Field, rule), cond.Value)}},
		}, nil
	case model.OpContains:
		pattern := "*" + escapeWildcard(strings.ToLower(cond.Value.(string))) + "*"
		return map[string]interface{}{
			"wildcard": map[string]interface{}{equalityField(cond.Field, rule): map[string]interface{}{"value": pattern}},
		}, nil
	case model.OpExists:
		exists := map[string]interface{}{"exists": map[string]interface{}{"field": cond.Field}}
		if cond.Value.(bool) {
			return exists, nil
		}
		return map[string]interface{}{"bool": map[string]interface{}{"must_not": []interface{}{exists}}}, nil
	default:
		return nil, pkgerrors.NewTranslationError(fmt.Sprintf("no lowering for operator %q", cond.Operator))
	}
}

// equalityField appends the exact-match suffix for string/enum fields
// that carry a keyword multi-field, per the Exact-match capable glossary entry.
func equalityField(field string, rule filterschema.FieldRule) string {
	if (rule.Type == model.FieldTypeString || rule.Type == model.FieldTypeEnum) && rule.ExactMatchCapable {
		return field + ".keyword"
	}
	return field
}

func rangeClause(field, op string, value interface{}) map[string]interface{} {
	return map[string]interface{}{"range": map[string]interface{}{field: map[string]interface{}{op: value}}}
}

func termClause(field string, value interface{}) map[string]interface{} {
	return map[string]interface{}{"term": map[string]interface{}{field: value}}
}

func termsClause(field string, value interface{}) map[string]interface{} {
	return map[string]interface{}{"terms": map[string]interface{}{field: value}}
}

func escapeWildcard(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "*", `\*`)
	s = strings.ReplaceAll(s, "?", `\?`)
	return s
}

func (t *Translator) translateSort(keys []model.SortKey) []interface{} {
	sort := make([]interface{}, len(keys))
	for i, k := range keys {
		sort[i] = map[string]interface{}{k.Field: map[string]interface{}{"order": string(k.Order)}}
	}
	return sort
}

// translateGrouping lowers group_by into nested terms/date_histogram
// aggregations, innermost level carrying metrics, top_hits, and any
// having bucket_selector.
func (t *Translator) translateGrouping(slice model.Slice) (map[string]interface{}, error) {
	return t.buildGroupLevel(slice, 0)
}

func (t *Translator) buildGroupLevel(slice model.Slice, level int) (map[string]interface{}, error) {
	field := slice.GroupBy[level]
	name := fmt.Sprintf("group_by_%d", level)

	rule, ok := t.schema.Rule(field)
	if !ok {
		return nil, pkgerrors.NewTranslationError(fmt.Sprintf("group_by references unknown field %q", field))
	}

	bucket := map[string]interface{}{}
	if rule.Type == model.FieldTypeDate && slice.Interval != nil {
		format, ok := typeregistry.FormatFor(*slice.Interval)
		if !ok {
			return nil, pkgerrors.NewTranslationError(fmt.Sprintf("no date format registered for interval %q", *slice.Interval))
		}
		bucket["date_histogram"] = map[string]interface{}{
			"field":             field,
			"calendar_interval": string(*slice.Interval),
			"format":            format,
		}
	} else {
		bucket["terms"] = map[string]interface{}{"field": equalityField(field, rule), "size": t.bucketSize}
	}

	if level == len(slice.GroupBy)-1 {
		inner, err := t.buildInnermostAggs(slice)
		if err != nil {
			return nil, err
		}
		bucket["aggs"] = inner
	} else {
		child, err := t.buildGroupLevel(slice, level+1)
		if err != nil {
			return nil, err
		}
		bucket["aggs"] = child
	}

	return map[string]interface{}{name: bucket}, nil
}

func (t *Translator) buildInnermostAggs(slice model.Slice) (map[string]interface{}, error) {
	aggs := map[string]interface{}{
		"documents": map[string]interface{}{"top_hits": map[string]interface{}{"size": t.topHitsSize}},
	}

	for _, agg := range slice.Aggregations {
		name := metricName(agg)
		aggs[name] = map[string]interface{}{
			metricPrimitive(agg.Kind): map[string]interface{}{"field": agg.Field},
		}
	}

	for _, agg := range slice.Aggregations {
		if !agg.HasHaving() {
			continue
		}
		op, ok := havingScriptOp(*agg.HavingOperator)
		if !ok {
			return nil, pkgerrors.NewTranslationError(fmt.Sprintf("no bucket_selector lowering for having operator %q", *agg.HavingOperator))
		}
		aggs["having_"+metricName(agg)] = map[string]interface{}{
			"bucket_selector": map[string]interface{}{
				"buckets_path": map[string]interface{}{"var_0": metricName(agg)},
				"script":       fmt.Sprintf("params.var_0 %s %v", op, agg.HavingValue),
			},
		}
	}

	return aggs, nil
}

func metricPrimitive(kind model.AggregationKind) string {
	switch kind {
	case model.AggSum:
		return "sum"
	case model.AggAvg:
		return "avg"
	case model.AggMin:
		return "min"
	case model.AggMax:
		return "max"
	case model.AggCount:
		return "value_count"
	default:
		return string(kind)
	}
}

func metricName(agg model.Aggregation) string {
	return fmt.Sprintf("%s_%s", agg.Kind, strings.ReplaceAll(agg.Field, ".", "_"))
}

func havingScriptOp(op model.HavingOperator) (string, bool) {
	switch op {
	case model.HavingGreaterThan:
		return ">", true
	case model.HavingLessThan:
		return "<", true
	case model.HavingIs:
		return "==", true
	case model.HavingDifferent:
		return "!=", true
	case model.HavingGreaterOrEqual:
		return ">=", true
	case model.HavingLessOrEqual:
		return "<=", true
	default:
		return "", false
	}
}
