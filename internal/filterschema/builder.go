// Package filterschema derives, from a model.FieldMap, everything the
// rest of the pipeline needs to accept or reject a filter document: a
// per-field rule set (legal operators, enum values, exact-match
// capability) plus a PromptDescriptor describing the same rules in a
// shape meant for an external prompt generator. It is a small derived
// contract everything downstream depends on instead of the raw
// FieldMap.
package filterschema

import (
	"github.com/gcbaptista/nlq-query-builder/internal/typeregistry"
	"github.com/gcbaptista/nlq-query-builder/model"
)

// FieldRule is the per-field rule set a FilterValidator checks
// conditions against.
type FieldRule struct {
	Type              model.FieldType
	LegalOperators    map[model.Operator]bool
	Values            []string // populated for enum fields
	ExactMatchCapable bool
}

// Schema is the derived, queryable view of a FieldMap: one FieldRule
// per known path.
type Schema struct {
	Rules map[string]FieldRule
}

// Rule looks up the rule set for a field path.
func (s *Schema) Rule(path string) (FieldRule, bool) {
	r, ok := s.Rules[path]
	return r, ok
}

// PromptDescriptorField is one field entry in a PromptDescriptor.
type PromptDescriptorField struct {
	Path              string          `json:"path"`
	Type              model.FieldType `json:"type"`
	LegalOperators    []model.Operator `json:"legal_operators"`
	Values            []string        `json:"values,omitempty"`
	ExactMatchCapable bool            `json:"exact_match_capable"`
	// Example is a human-readable sample value for the field: its first
	// enum value, or a type-shaped placeholder otherwise. It helps an
	// external prompt generator word a field's usage; the validator
	// never consults it.
	Example string `json:"example,omitempty"`
}

// PromptDescriptor enumerates every field an external prompt generator
// may reference, in a stable (path-sorted) order.
type PromptDescriptor struct {
	Fields []PromptDescriptorField `json:"fields"`
}

// Build derives a Schema and its companion PromptDescriptor from a
// FieldMap. The FieldMap is the source of truth; the descriptor is a
// read-only projection of it.
func Build(fm model.FieldMap) (*Schema, *PromptDescriptor) {
	schema := &Schema{Rules: make(map[string]FieldRule, len(fm))}

	paths := fm.Paths()
	descriptor := &PromptDescriptor{Fields: make([]PromptDescriptorField, 0, len(paths))}

	for _, path := range paths {
		spec := fm[path]
		legalOps := typeregistry.LegalOperatorsFor(spec.Type)

		legalSet := make(map[model.Operator]bool, len(legalOps))
		for _, op := range legalOps {
			legalSet[op] = true
		}

		schema.Rules[path] = FieldRule{
			Type:              spec.Type,
			LegalOperators:    legalSet,
			Values:            spec.Values,
			ExactMatchCapable: spec.ExactMatchCapable,
		}

		descriptor.Fields = append(descriptor.Fields, PromptDescriptorField{
			Path:              path,
			Type:              spec.Type,
			LegalOperators:    legalOps,
			Values:            spec.Values,
			ExactMatchCapable: spec.ExactMatchCapable,
			Example:           exampleValue(spec),
		})
	}

	return schema, descriptor
}

// exampleValue picks a human-readable sample for a field: its first
// enum value if it has one, otherwise a placeholder shaped by its
// normalized type.
func exampleValue(spec model.FieldSpec) string {
	if spec.Type == model.FieldTypeEnum && len(spec.Values) > 0 {
		return spec.Values[0]
	}
	switch spec.Type {
	case model.FieldTypeString:
		return "example"
	case model.FieldTypeNumber:
		return "123"
	case model.FieldTypeDate:
		return "2024-01-01"
	case model.FieldTypeBoolean:
		return "true"
	case model.FieldTypeArray:
		return "[...]"
	case model.FieldTypeObject:
		return "{...}"
	default:
		return ""
	}
}
