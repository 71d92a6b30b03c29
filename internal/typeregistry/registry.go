// Package typeregistry holds the compile-time tables that every other
// component in the pipeline consults: backend-field-type → normalized
// type, interval → date-format string, which aggregation kinds need a
// numeric field, and which operators are legal per normalized type. The
// aggregation-kind → backend operator mapping is not kept here; each
// translator holds its own. These are closed, static lookup tables, so
// this package is plain map literals with no dependencies.
package typeregistry

import "github.com/gcbaptista/nlq-query-builder/model"

// SearchFieldTypes maps a search-engine mapping "type" value to its
// normalized model.FieldType.
var SearchFieldTypes = map[string]model.FieldType{
	"text":    model.FieldTypeString,
	"keyword": model.FieldTypeString,
	"integer": model.FieldTypeNumber,
	"long":    model.FieldTypeNumber,
	"double":  model.FieldTypeNumber,
	"float":   model.FieldTypeNumber,
	"boolean": model.FieldTypeBoolean,
	"date":    model.FieldTypeDate,
	"object":  model.FieldTypeObject,
	"nested":  model.FieldTypeArray,
}

// NormalizedSearchType looks up the normalized type for a search-engine
// mapping type, reporting whether it is known.
func NormalizedSearchType(backendType string) (model.FieldType, bool) {
	t, ok := SearchFieldTypes[backendType]
	return t, ok
}

// IntervalFormats maps a date-histogram interval to its format string,
// used by the search-engine translator; the document-store translator
// uses DocStoreFormatFor instead.
var IntervalFormats = map[model.Interval]string{
	model.IntervalDay:   "yyyy-MM-dd",
	model.IntervalWeek:  "yyyy-'W'ww",
	model.IntervalMonth: "yyyy-MM",
	model.IntervalYear:  "yyyy",
}

// FormatFor returns the format string for an interval, reporting
// whether the interval is recognized.
func FormatFor(interval model.Interval) (string, bool) {
	f, ok := IntervalFormats[interval]
	return f, ok
}

// docStoreDateFormats maps a date-histogram interval to the
// strftime-style format string used by the document-store backend's
// $dateToString expression.
var docStoreDateFormats = map[model.Interval]string{
	model.IntervalDay:   "%Y-%m-%d",
	model.IntervalWeek:  "%G-W%V",
	model.IntervalMonth: "%Y-%m",
	model.IntervalYear:  "%Y",
}

// DocStoreFormatFor returns the $dateToString format for an interval.
func DocStoreFormatFor(interval model.Interval) (string, bool) {
	f, ok := docStoreDateFormats[interval]
	return f, ok
}

// AggregationRequiresNumber reports whether an aggregation kind
// requires a numeric field; count is the one kind that does not.
func AggregationRequiresNumber(kind model.AggregationKind) bool {
	switch kind {
	case model.AggSum, model.AggAvg, model.AggMin, model.AggMax:
		return true
	default:
		return false
	}
}

// legalOperators is the per-normalized-type operator legality table.
var legalOperators = map[model.FieldType]map[model.Operator]bool{
	model.FieldTypeString:  setOf(model.OpIs, model.OpDifferent, model.OpContains, model.OpIsIn, model.OpNotIn, model.OpExists),
	model.FieldTypeNumber:  setOf(model.OpLessThan, model.OpGreaterThan, model.OpIs, model.OpDifferent, model.OpBetween, model.OpIsIn, model.OpNotIn, model.OpExists),
	model.FieldTypeDate:    setOf(model.OpLessThan, model.OpGreaterThan, model.OpIs, model.OpDifferent, model.OpBetween, model.OpExists),
	model.FieldTypeBoolean: setOf(model.OpIs, model.OpDifferent, model.OpExists),
	model.FieldTypeEnum:    setOf(model.OpIs, model.OpDifferent, model.OpIsIn, model.OpNotIn, model.OpExists),
	model.FieldTypeArray:   setOf(model.OpExists),
	model.FieldTypeObject:  setOf(model.OpExists),
}

func setOf(ops ...model.Operator) map[model.Operator]bool {
	s := make(map[model.Operator]bool, len(ops))
	for _, op := range ops {
		s[op] = true
	}
	return s
}

// LegalOperator reports whether operator op is legal for normalized
// type t.
func LegalOperator(t model.FieldType, op model.Operator) bool {
	ops, ok := legalOperators[t]
	if !ok {
		return false
	}
	return ops[op]
}

// LegalOperatorsFor returns the operator list for a normalized type,
// in a stable order, for use by the prompt descriptor.
func LegalOperatorsFor(t model.FieldType) []model.Operator {
	switch t {
	case model.FieldTypeString:
		return []model.Operator{model.OpIs, model.OpDifferent, model.OpContains, model.OpIsIn, model.OpNotIn, model.OpExists}
	case model.FieldTypeNumber:
		return []model.Operator{model.OpLessThan, model.OpGreaterThan, model.OpIs, model.OpDifferent, model.OpBetween, model.OpIsIn, model.OpNotIn, model.OpExists}
	case model.FieldTypeDate:
		return []model.Operator{model.OpLessThan, model.OpGreaterThan, model.OpIs, model.OpDifferent, model.OpBetween, model.OpExists}
	case model.FieldTypeBoolean:
		return []model.Operator{model.OpIs, model.OpDifferent, model.OpExists}
	case model.FieldTypeEnum:
		return []model.Operator{model.OpIs, model.OpDifferent, model.OpIsIn, model.OpNotIn, model.OpExists}
	case model.FieldTypeArray, model.FieldTypeObject:
		return []model.Operator{model.OpExists}
	default:
		return nil
	}
}
