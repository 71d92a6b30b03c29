// Package validator implements the FilterValidator: it turns an
// untyped filter document (the raw shape an external LLM produces)
// into a canonical model.FilterIR, checked against a
// filterschema.Schema. Validation is a pipeline of pure checking
// functions that canonicalizes its input rather than just
// accepting or rejecting it: irrecoverable violations fail hard,
// while fixable inconsistencies are auto-corrected and recorded as
// warnings.
package validator

import (
	"encoding/json"
	"fmt"

	pkgerrors "github.com/gcbaptista/nlq-query-builder/internal/errors"
	"github.com/gcbaptista/nlq-query-builder/internal/filterschema"
	"github.com/gcbaptista/nlq-query-builder/internal/typeregistry"
	"github.com/gcbaptista/nlq-query-builder/model"
)

// nullFieldSentinel is the placeholder field name some upstream
// callers emit; conditions referencing it are dropped defensively
// rather than rejected.
const nullFieldSentinel = "null"

// rawDocument is the wire shape of an unvalidated filter document:
// {"filters": [slice, ...]}. Its sub-shapes reuse model's own types
// directly since their fields and JSON tags already match.
type rawDocument struct {
	Filters []model.Slice `json:"filters"`
}

// Validator checks and canonicalizes raw filter documents against a
// fixed field schema.
type Validator struct {
	schema *filterschema.Schema
}

// New binds a Validator to the field rules derived by filterschema.Build.
func New(schema *filterschema.Schema) *Validator {
	return &Validator{schema: schema}
}

// Validate parses raw JSON shaped {"filters": [...]} and returns a
// canonical FilterIR, or the first irrecoverable ValidationError
// encountered. Auto-corrections are recorded as FilterIR.Warnings
// rather than raised.
func (v *Validator) Validate(raw []byte) (model.FilterIR, error) {
	var doc rawDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return model.FilterIR{}, pkgerrors.NewValidationError(pkgerrors.BadValueShape, "$", "document is not valid JSON: "+err.Error())
	}
	return v.ValidateDocument(doc.Filters)
}

// ValidateDocument runs the same checks as Validate against
// already-decoded slices, for callers that received a parsed document
// rather than raw bytes.
func (v *Validator) ValidateDocument(slices []model.Slice) (model.FilterIR, error) {
	if len(slices) == 0 {
		return model.FilterIR{}, pkgerrors.NewValidationError(pkgerrors.BadValueShape, "$.filters", "must contain at least one slice")
	}

	ir := model.FilterIR{Slices: make([]model.Slice, len(slices))}

	for i, slice := range slices {
		path := fmt.Sprintf("$.filters[%d]", i)
		canonical, warnings, err := v.validateSlice(path, slice)
		if err != nil {
			return model.FilterIR{}, err
		}
		ir.Slices[i] = canonical
		for j := range warnings {
			warnings[j].Slice = i
		}
		ir.Warnings = append(ir.Warnings, warnings...)
	}

	return ir, nil
}

// validateSlice runs per-condition checks, drops sentinel conditions,
// then applies the slice-level auto-corrections and the
// aggregation/having checks.
func (v *Validator) validateSlice(path string, slice model.Slice) (model.Slice, []model.Warning, error) {
	var warnings []model.Warning

	kept := make([]model.Condition, 0, len(slice.Conditions))
	for i, cond := range slice.Conditions {
		condPath := fmt.Sprintf("%s.conditions[%d]", path, i)
		if cond.Field == nullFieldSentinel {
			continue
		}
		if err := v.validateCondition(condPath, cond); err != nil {
			return model.Slice{}, nil, err
		}
		kept = append(kept, cond)
	}
	slice.Conditions = kept

	if slice.Limit != nil && *slice.Limit <= 0 {
		return model.Slice{}, nil, pkgerrors.NewValidationError(pkgerrors.BadValueShape, path+".limit", "limit must be a positive integer")
	}

	if len(slice.Aggregations) > 0 && len(slice.GroupBy) == 0 {
		slice.Aggregations = nil
		warnings = append(warnings, model.Warning{
			Rule:    "aggregations_without_group_by",
			Message: fmt.Sprintf("%s: aggregations present without group_by; aggregations cleared", path),
		})
	}

	if slice.Interval != nil && !anyGroupByIsDate(slice.GroupBy, v.schema) {
		slice.Interval = nil
		warnings = append(warnings, model.Warning{
			Rule:    "interval_without_date_group_by",
			Message: fmt.Sprintf("%s: interval present without a date field in group_by; interval cleared", path),
		})
	}

	if deduped, changed := dedupePreservingOrder(slice.GroupBy); changed {
		slice.GroupBy = deduped
		warnings = append(warnings, model.Warning{
			Rule:    "duplicate_group_by",
			Message: fmt.Sprintf("%s: duplicate group_by entries removed", path),
		})
	}

	if filtered, dropped := v.dropUnknownSortFields(slice.Sort); len(dropped) > 0 {
		slice.Sort = filtered
		for _, field := range dropped {
			warnings = append(warnings, model.Warning{
				Rule:    "unknown_sort_field",
				Field:   field,
				Message: fmt.Sprintf("%s: sort referenced unknown field %q; entry dropped", path, field),
			})
		}
	}

	for i, agg := range slice.Aggregations {
		aggPath := fmt.Sprintf("%s.aggregations[%d]", path, i)
		if err := v.validateAggregation(aggPath, agg); err != nil {
			return model.Slice{}, nil, err
		}
	}

	return slice, warnings, nil
}

// validateCondition checks field existence, operator legality, and
// value shape, in that order.
func (v *Validator) validateCondition(path string, cond model.Condition) error {
	rule, ok := v.schema.Rule(cond.Field)
	if !ok {
		return pkgerrors.NewValidationError(pkgerrors.UnknownField, path+".field", fmt.Sprintf("unknown field %q", cond.Field))
	}
	if !rule.LegalOperators[cond.Operator] {
		return pkgerrors.NewValidationError(pkgerrors.IllegalOperator, path+".operator", fmt.Sprintf("operator %q is not legal for field %q (type %s)", cond.Operator, cond.Field, rule.Type))
	}
	return v.validateValueShape(path+".value", cond.Operator, rule, cond.Value)
}

func (v *Validator) validateValueShape(path string, op model.Operator, rule filterschema.FieldRule, value interface{}) error {
	switch op {
	case model.OpBetween:
		list, ok := value.([]interface{})
		if !ok || len(list) != 2 {
			return pkgerrors.NewValidationError(pkgerrors.BadValueShape, path, "between requires a 2-element list")
		}
		lo, hi := list[0], list[1]
		if !scalarMatchesType(lo, rule.Type) || !scalarMatchesType(hi, rule.Type) {
			return pkgerrors.NewValidationError(pkgerrors.BadValueShape, path, "between bounds must match the field's type")
		}
		if compareScalars(lo, hi) > 0 {
			return pkgerrors.NewValidationError(pkgerrors.BadValueShape, path, "between requires lo <= hi")
		}
		return nil

	case model.OpIsIn, model.OpNotIn:
		list, ok := value.([]interface{})
		if !ok || len(list) == 0 {
			return pkgerrors.NewValidationError(pkgerrors.BadValueShape, path, fmt.Sprintf("%s requires a non-empty list", op))
		}
		if rule.Type == model.FieldTypeEnum {
			allowed := make(map[string]bool, len(rule.Values))
			for _, v := range rule.Values {
				allowed[v] = true
			}
			for _, elem := range list {
				s, ok := elem.(string)
				if !ok || !allowed[s] {
					return pkgerrors.NewValidationError(pkgerrors.BadEnumValue, path, fmt.Sprintf("value %v is not one of the field's enum values", elem))
				}
			}
		}
		return nil

	case model.OpContains:
		if rule.Type != model.FieldTypeString {
			return pkgerrors.NewValidationError(pkgerrors.BadValueShape, path, "contains is only legal on string fields")
		}
		if _, ok := value.(string); !ok {
			return pkgerrors.NewValidationError(pkgerrors.BadValueShape, path, "contains requires a scalar string")
		}
		return nil

	case model.OpExists:
		if _, ok := value.(bool); !ok {
			return pkgerrors.NewValidationError(pkgerrors.BadValueShape, path, "exists requires a boolean")
		}
		return nil

	default: // <, >, is, different
		if rule.Type == model.FieldTypeEnum {
			s, ok := value.(string)
			if !ok {
				return pkgerrors.NewValidationError(pkgerrors.BadValueShape, path, "value must be a scalar string for an enum field")
			}
			allowed := make(map[string]bool, len(rule.Values))
			for _, v := range rule.Values {
				allowed[v] = true
			}
			if !allowed[s] {
				return pkgerrors.NewValidationError(pkgerrors.BadEnumValue, path, fmt.Sprintf("value %q is not one of the field's enum values", s))
			}
			return nil
		}
		if !scalarMatchesType(value, rule.Type) {
			return pkgerrors.NewValidationError(pkgerrors.BadValueShape, path, fmt.Sprintf("value does not match field type %s", rule.Type))
		}
		return nil
	}
}

// validateAggregation checks kind legality and having shape.
func (v *Validator) validateAggregation(path string, agg model.Aggregation) error {
	switch agg.Kind {
	case model.AggSum, model.AggAvg, model.AggCount, model.AggMin, model.AggMax:
	default:
		return pkgerrors.NewValidationError(pkgerrors.BadValueShape, path+".kind", fmt.Sprintf("unknown aggregation kind %q", agg.Kind))
	}

	if agg.Kind == model.AggCount && agg.Field == "" {
		return pkgerrors.NewValidationError(pkgerrors.BadValueShape, path+".field", "count requires a field")
	}

	if typeregistry.AggregationRequiresNumber(agg.Kind) {
		rule, ok := v.schema.Rule(agg.Field)
		if !ok {
			return pkgerrors.NewValidationError(pkgerrors.UnknownField, path+".field", fmt.Sprintf("unknown field %q", agg.Field))
		}
		if rule.Type != model.FieldTypeNumber {
			return pkgerrors.NewValidationError(pkgerrors.BadValueShape, path+".field", fmt.Sprintf("%s requires a numeric field, got %s", agg.Kind, rule.Type))
		}
	}

	hasOp := agg.HavingOperator != nil
	hasVal := agg.HavingValue != nil
	if hasOp != hasVal {
		return pkgerrors.NewValidationError(pkgerrors.BadHaving, path, "having_operator and having_value must both be present or both absent")
	}
	if hasOp {
		switch *agg.HavingOperator {
		case model.HavingLessThan, model.HavingGreaterThan, model.HavingIs, model.HavingDifferent, model.HavingLessOrEqual, model.HavingGreaterOrEqual:
		default:
			return pkgerrors.NewValidationError(pkgerrors.BadHaving, path+".having_operator", fmt.Sprintf("unknown having operator %q", *agg.HavingOperator))
		}
		if !isScalar(agg.HavingValue) {
			return pkgerrors.NewValidationError(pkgerrors.BadHaving, path+".having_value", "having_value must be a scalar")
		}
	}

	return nil
}

func (v *Validator) dropUnknownSortFields(sort []model.SortKey) ([]model.SortKey, []string) {
	var kept []model.SortKey
	var dropped []string
	for _, key := range sort {
		if _, ok := v.schema.Rule(key.Field); ok {
			kept = append(kept, key)
		} else {
			dropped = append(dropped, key.Field)
		}
	}
	return kept, dropped
}

func anyGroupByIsDate(groupBy []string, schema *filterschema.Schema) bool {
	for _, field := range groupBy {
		if rule, ok := schema.Rule(field); ok && rule.Type == model.FieldTypeDate {
			return true
		}
	}
	return false
}

func dedupePreservingOrder(fields []string) ([]string, bool) {
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	changed := false
	for _, f := range fields {
		if seen[f] {
			changed = true
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out, changed
}

func isScalar(v interface{}) bool {
	switch v.(type) {
	case string, bool, float64, int, int64:
		return true
	default:
		return false
	}
}

func scalarMatchesType(v interface{}, t model.FieldType) bool {
	switch t {
	case model.FieldTypeString, model.FieldTypeDate:
		_, ok := v.(string)
		return ok
	case model.FieldTypeNumber:
		switch v.(type) {
		case float64, int, int64:
			return true
		default:
			return false
		}
	case model.FieldTypeBoolean:
		_, ok := v.(bool)
		return ok
	default:
		return false
	}
}

// compareScalars compares two already-type-checked scalars, returning
// -1, 0 or 1. It supports the two scalar kinds between allows: numbers
// and ISO-8601 date strings, both of which order correctly as plain
// string/float comparisons.
func compareScalars(a, b interface{}) int {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0
		}
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		default:
			return 0
		}
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return 0
	}
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	default:
		return 0
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
