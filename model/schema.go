// Package model holds the data types shared across the schema, filter,
// translation, and execution layers: the normalized FieldMap, the
// canonical FilterIR, backend plans, and query results.
package model

import "sort"

// FieldType is one of the closed set of normalized type tags a field in
// a FieldMap can carry.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeNumber  FieldType = "number"
	FieldTypeDate    FieldType = "date"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeEnum    FieldType = "enum"
	FieldTypeArray   FieldType = "array"
	FieldTypeObject  FieldType = "object"
)

// Valid reports whether t is one of the closed set of normalized types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeString, FieldTypeNumber, FieldTypeDate, FieldTypeBoolean,
		FieldTypeEnum, FieldTypeArray, FieldTypeObject:
		return true
	}
	return false
}

// FieldSpec describes one field of a flattened FieldMap.
type FieldSpec struct {
	Type              FieldType `json:"type"`
	Values            []string  `json:"values,omitempty"`     // present iff Type == FieldTypeEnum
	ItemType          FieldType `json:"item_type,omitempty"`  // present iff Type == FieldTypeArray
	ExactMatchCapable bool      `json:"exact_match_capable"`
}

// FieldMap is the canonical flattened description of queryable fields,
// keyed by dotted path (e.g. "transaction.receiver.name").
type FieldMap map[string]FieldSpec

// Paths returns the field map's dotted paths in sorted order, giving
// callers (the prompt descriptor, tests) a deterministic iteration
// order over an otherwise unordered Go map.
func (fm FieldMap) Paths() []string {
	paths := make([]string, 0, len(fm))
	for p := range fm {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
