package model

// Operator is the closed set of condition operators a Condition may use.
type Operator string

const (
	OpLessThan    Operator = "<"
	OpGreaterThan Operator = ">"
	OpIs          Operator = "is"
	OpDifferent   Operator = "different"
	OpIsIn        Operator = "isin"
	OpNotIn       Operator = "notin"
	OpBetween     Operator = "between"
	OpContains    Operator = "contains"
	OpExists      Operator = "exists"
)

// HavingOperator is the closed set of comparators usable in a having clause.
type HavingOperator string

const (
	HavingLessThan       HavingOperator = "<"
	HavingGreaterThan    HavingOperator = ">"
	HavingIs             HavingOperator = "is"
	HavingDifferent      HavingOperator = "different"
	HavingLessOrEqual    HavingOperator = "≤"
	HavingGreaterOrEqual HavingOperator = "≥"
)

// AggregationKind is the closed set of aggregation functions.
type AggregationKind string

const (
	AggSum   AggregationKind = "sum"
	AggAvg   AggregationKind = "avg"
	AggCount AggregationKind = "count"
	AggMin   AggregationKind = "min"
	AggMax   AggregationKind = "max"
)

// SortOrder is asc or desc.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Interval is the closed set of date-histogram bucket widths.
type Interval string

const (
	IntervalDay   Interval = "day"
	IntervalWeek  Interval = "week"
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// Condition is a single filter predicate: field, operator, value.
// Value's concrete Go type depends on Operator and the field's type:
// a scalar for <, >, is, different, contains; a two-element slice for
// between; a non-empty slice for isin/notin; a bool for exists.
type Condition struct {
	Field    string      `json:"field"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value"`
}

// SortKey orders results by a single field.
type SortKey struct {
	Field string    `json:"field"`
	Order SortOrder `json:"order"`
}

// Aggregation computes one metric, optionally filtered post-hoc by a
// having clause.
type Aggregation struct {
	Field          string          `json:"field"`
	Kind           AggregationKind `json:"kind"`
	HavingOperator *HavingOperator `json:"having_operator,omitempty"`
	HavingValue    interface{}     `json:"having_value,omitempty"`
}

// HasHaving reports whether both having fields are present.
func (a Aggregation) HasHaving() bool {
	return a.HavingOperator != nil && a.HavingValue != nil
}

// Slice is one AND-joined unit of a FilterIR: a set of conditions plus
// optional sort, limit, grouping, date-histogram interval, and
// aggregations. Slices are translated and executed independently, in
// declared order, so that a FilterIR with several slices expresses a
// side-by-side comparison query.
type Slice struct {
	Conditions   []Condition   `json:"conditions"`
	Sort         []SortKey     `json:"sort,omitempty"`
	Limit        *int          `json:"limit,omitempty"`
	GroupBy      []string      `json:"group_by,omitempty"`
	Interval     *Interval     `json:"interval,omitempty"`
	Aggregations []Aggregation `json:"aggregations,omitempty"`
}

// FilterIR is the canonical, validated form of a filter document: a
// non-empty, ordered list of slices. Warnings records the auto-corrections
// applied while canonicalizing an input document; it is never
// re-interpreted, only surfaced.
type FilterIR struct {
	Slices   []Slice   `json:"slices"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// Warning records one non-fatal auto-correction the validator applied
// while canonicalizing a FilterIR. Slice is the index of the slice the
// correction was applied to, letting a caller route a warning into
// that slice's QueryResult.Metadata.
type Warning struct {
	Rule    string `json:"rule"`
	Slice   int    `json:"slice"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}
