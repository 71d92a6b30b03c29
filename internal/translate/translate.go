// Package translate defines the QueryTranslator contract: compile a
// validated FilterIR into an ordered list of backend plans. The
// search and doc subpackages each provide one concrete implementation.
package translate

import "github.com/gcbaptista/nlq-query-builder/model"

// Translator lowers a FilterIR into backend plans, one per slice, in
// slice order.
type Translator interface {
	Translate(ir model.FilterIR) ([]model.Plan, error)
}
