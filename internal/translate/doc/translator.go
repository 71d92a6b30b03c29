// Package doc implements the query translator for a document-store
// backend shaped like MongoDB: a slice lowers to a fixed-order
// aggregation pipeline ($match, $group, $match-having, $sort, $limit),
// with stages omitted when their inputs are empty. The predicate table
// mirrors the search-engine translator using the store's native
// comparison operators.
package doc

import (
	"fmt"
	"regexp"
	"strings"

	pkgerrors "github.com/gcbaptista/nlq-query-builder/internal/errors"
	"github.com/gcbaptista/nlq-query-builder/internal/filterschema"
	"github.com/gcbaptista/nlq-query-builder/internal/typeregistry"
	"github.com/gcbaptista/nlq-query-builder/model"
)

// Translator compiles a validated FilterIR into document-store
// aggregation pipelines.
type Translator struct {
	schema      *filterschema.Schema
	topHitsSize int
}

// New binds a Translator to the field schema. topHitsSize is accepted
// for symmetry with the search translator; the $push accumulator has no
// native per-bucket cap, so it only guards the default.
func New(schema *filterschema.Schema, topHitsSize int) *Translator {
	if topHitsSize <= 0 {
		topHitsSize = 100
	}
	return &Translator{schema: schema, topHitsSize: topHitsSize}
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
		plans[i] = model.Plan{Backend: model.BackendDoc, Body: body}
	}
	return plans, nil
}

func (t *Translator) translateSlice(slice model.Slice) (map[string]interface{}, error) {
	pipeline := make([]interface{}, 0, 5)

	if len(slice.Conditions) > 0 {
		match, err := t.translateConditions(slice.Conditions)
		if err != nil {
			return nil, err
		}
		pipeline = append(pipeline, map[string]interface{}{"$match": match})
	}

	if len(slice.GroupBy) > 0 {
		group, err := t.translateGrouping(slice)
		if err != nil {
			return nil, err
		}
		pipeline = append(pipeline, map[string]interface{}{"$group": group})

		if having := t.translateHaving(slice); having != nil {
			pipeline = append(pipeline, map[string]interface{}{"$match": having})
		}
	}

	if len(slice.Sort) > 0 {
		pipeline = append(pipeline, map[string]interface{}{"$sort": t.translateSort(slice.Sort)})
	}

	if slice.Limit != nil {
		pipeline = append(pipeline, map[string]interface{}{"$limit": *slice.Limit})
	}

	return map[string]interface{}{"pipeline": pipeline}, nil
}

func (t *Translator) translateConditions(conditions []model.Condition) (map[string]interface{}, error) {
	match := map[string]interface{}{}
	var extra []interface{}
	for _, cond := range conditions {
		clause, err := t.translateCondition(cond)
		if err != nil {
			return nil, err
		}
		merged, ok := mergeFieldClause(match, cond.Field, clause)
		if ok {
			match[cond.Field] = merged
			continue
		}
		// Same field, conflicting operator keys: AND the clause in
		// explicitly instead of overwriting.
		extra = append(extra, map[string]interface{}{cond.Field: clause})
	}
	if len(extra) > 0 {
		match["$and"] = extra
	}
	return match, nil
}

// mergeFieldClause folds clause into any clause already present for
// field. Two operator maps with disjoint keys merge in place ($gt and
// $lt on the same field, say); anything else reports a conflict.
func mergeFieldClause(match map[string]interface{}, field string, clause interface{}) (interface{}, bool) {
	existing, present := match[field]
	if !present {
		return clause, true
	}
	existingOps, ok1 := existing.(map[string]interface{})
	newOps, ok2 := clause.(map[string]interface{})
	if !ok1 || !ok2 {
		return nil, false
	}
	for op := range newOps {
		if _, dup := existingOps[op]; dup {
			return nil, false
		}
	}
	for op, v := range newOps {
		existingOps[op] = v
	}
	return existingOps, true
}

func (t *Translator) translateCondition(cond model.Condition) (interface{}, error) {
	if _, ok := t.schema.Rule(cond.Field); !ok {
		return nil, pkgerrors.NewTranslationError(fmt.Sprintf("condition references unknown field %q", cond.Field))
	}

	switch cond.Operator {
	case model.OpGreaterThan:
		return map[string]interface{}{"$gt": cond.Value}, nil
	case model.OpLessThan:
		return map[string]interface{}{"$lt": cond.Value}, nil
	case model.OpBetween:
		bounds := cond.Value.([]interface{})
		return map[string]interface{}{"$gte": bounds[0], "$lte": bounds[1]}, nil
	case model.OpIs:
		return map[string]interface{}{"$eq": cond.Value}, nil
	case model.OpDifferent:
		return map[string]interface{}{"$ne": cond.Value}, nil
	case model.OpIsIn:
		return map[string]interface{}{"$in": cond.Value}, nil
	case model.OpNotIn:
		return map[string]interface{}{"$nin": cond.Value}, nil
	case model.OpContains:
		return map[string]interface{}{"$regex": regexp.QuoteMeta(cond.Value.(string)), "$options": "i"}, nil
	case model.OpExists:
		return map[string]interface{}{"$exists": cond.Value}, nil
	default:
		return nil, pkgerrors.NewTranslationError(fmt.Sprintf("no lowering for operator %q", cond.Operator))
	}
}

func (t *Translator) translateSort(keys []model.SortKey) map[string]interface{} {
	sort := map[string]interface{}{}
	for _, k := range keys {
		if k.Order == model.SortDesc {
			sort[k.Field] = -1
		} else {
			sort[k.Field] = 1
		}
	}
	return sort
}

// translateGrouping builds the single $group stage: a compound _id
// keying every grouped field (date levels via $dateToString), a
// documents accumulator pushing the whole root document, and one
// accumulator per aggregation.
func (t *Translator) translateGrouping(slice model.Slice) (map[string]interface{}, error) {
	id := map[string]interface{}{}
	for _, field := range slice.GroupBy {
		rule, ok := t.schema.Rule(field)
		if !ok {
			return nil, pkgerrors.NewTranslationError(fmt.Sprintf("group_by references unknown field %q", field))
		}
		key := strings.ReplaceAll(field, ".", "_")
		if rule.Type == model.FieldTypeDate && slice.Interval != nil {
			format, ok := typeregistry.DocStoreFormatFor(*slice.Interval)
			if !ok {
				return nil, pkgerrors.NewTranslationError(fmt.Sprintf("no date format registered for interval %q", *slice.Interval))
			}
			id[key] = map[string]interface{}{
				"$dateToString": map[string]interface{}{"format": format, "date": "$" + field},
			}
		} else {
			id[key] = "$" + field
		}
	}

	group := map[string]interface{}{
		"_id":       id,
		"documents": map[string]interface{}{"$push": "$$ROOT"},
	}

	for _, agg := range slice.Aggregations {
		name := metricName(agg)
		group[name] = metricAccumulator(agg)
	}

	return group, nil
}

// translateHaving builds the post-$group $match stage comparing each
// having-bearing aggregation's accumulator name against its
// having_value, combined with an implicit AND across aggregations.
func (t *Translator) translateHaving(slice model.Slice) map[string]interface{} {
	match := map[string]interface{}{}
	for _, agg := range slice.Aggregations {
		if !agg.HasHaving() {
			continue
		}
		match[metricName(agg)] = havingOperatorClause(*agg.HavingOperator, agg.HavingValue)
	}
	if len(match) == 0 {
		return nil
	}
	return match
}

func havingOperatorClause(op model.HavingOperator, value interface{}) map[string]interface{} {
	switch op {
	case model.HavingGreaterThan:
		return map[string]interface{}{"$gt": value}
	case model.HavingLessThan:
		return map[string]interface{}{"$lt": value}
	case model.HavingIs:
		return map[string]interface{}{"$eq": value}
	case model.HavingDifferent:
		return map[string]interface{}{"$ne": value}
	case model.HavingGreaterOrEqual:
		return map[string]interface{}{"$gte": value}
	case model.HavingLessOrEqual:
		return map[string]interface{}{"$lte": value}
	default:
		return map[string]interface{}{}
	}
}

func metricAccumulator(agg model.Aggregation) map[string]interface{} {
	switch agg.Kind {
	case model.AggSum:
		return map[string]interface{}{"$sum": "$" + agg.Field}
	case model.AggAvg:
		return map[string]interface{}{"$avg": "$" + agg.Field}
	case model.AggMin:
		return map[string]interface{}{"$min": "$" + agg.Field}
	case model.AggMax:
		return map[string]interface{}{"$max": "$" + agg.Field}
	case model.AggCount:
		return map[string]interface{}{"$sum": 1}
	default:
		return map[string]interface{}{}
	}
}

func metricName(agg model.Aggregation) string {
	return fmt.Sprintf("%s_%s", agg.Kind, strings.ReplaceAll(agg.Field, ".", "_"))
}
