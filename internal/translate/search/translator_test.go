package search

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gcbaptista/nlq-query-builder/internal/filterschema"
	"github.com/gcbaptista/nlq-query-builder/model"
)

func testTranslator() *Translator {
	fm := model.FieldMap{
		"card_type": {Type: model.FieldTypeEnum, Values: []string{"GOLD", "SILVER"}, ExactMatchCapable: true},
		"t.ts":      {Type: model.FieldTypeDate},
		"t.amt":     {Type: model.FieldTypeNumber},
		"t.cur":     {Type: model.FieldTypeString, ExactMatchCapable: true},
		"t.loc":     {Type: model.FieldTypeString, ExactMatchCapable: true},
		"t.id":      {Type: model.FieldTypeString},
	}
	schema, _ := filterschema.Build(fm)
	return New(schema, 100, 100)
}

func ptrInt(i int) *int                             { return &i }
func ptrInterval(i model.Interval) *model.Interval  { return &i }
func ptrHaving(op model.HavingOperator) *model.HavingOperator { return &op }

// Equality on an exact-match-capable field rewrites to the .keyword
// subfield.
func TestTranslateEqualityWithKeywordRewrite(t *testing.T) {
	ir := model.FilterIR{Slices: []model.Slice{
		{Conditions: []model.Condition{{Field: "card_type", Operator: model.OpIs, Value: "GOLD"}}},
	}}

	plans, err := testTranslator().Translate(ir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"card_type.keyword": "GOLD"}},
				},
			},
		},
	}
	if diff := cmp.Diff(want, plans[0].Body); diff != "" {
		t.Errorf("unexpected plan (-want +got):\n%s", diff)
	}
}

// between on a date field lowers to range.gte/lte.
func TestTranslateBetweenOnDate(t *testing.T) {
	ir := model.FilterIR{Slices: []model.Slice{
		{Conditions: []model.Condition{{Field: "t.ts", Operator: model.OpBetween, Value: []interface{}{"2024-01-01", "2024-12-31"}}}},
	}}

	plans, err := testTranslator().Translate(ir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{"range": map[string]interface{}{"t.ts": map[string]interface{}{"gte": "2024-01-01", "lte": "2024-12-31"}}},
				},
			},
		},
	}
	if diff := cmp.Diff(want, plans[0].Body); diff != "" {
		t.Errorf("unexpected plan (-want +got):\n%s", diff)
	}
}

// Monthly grouping with two metrics: a date_histogram bucket with the
// month format, one metric agg per aggregation, and a capped top_hits
// collection.
func TestTranslateMonthlySumWithTwoMetrics(t *testing.T) {
	ir := model.FilterIR{Slices: []model.Slice{
		{
			GroupBy:      []string{"t.ts"},
			Interval:     ptrInterval(model.IntervalMonth),
			Aggregations: []model.Aggregation{{Field: "t.amt", Kind: model.AggSum}, {Field: "t.amt", Kind: model.AggCount}},
		},
	}}

	plans, err := testTranslator().Translate(ir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := plans[0].Body
	if body["size"] != 0 {
		t.Errorf("expected size 0 for a group-only plan, got %v", body["size"])
	}
	aggs := body["aggs"].(map[string]interface{})
	group0 := aggs["group_by_0"].(map[string]interface{})
	dh := group0["date_histogram"].(map[string]interface{})
	if dh["format"] != "yyyy-MM" {
		t.Errorf("expected format yyyy-MM, got %v", dh["format"])
	}

	inner := group0["aggs"].(map[string]interface{})
	if _, ok := inner["sum_t_amt"]; !ok {
		t.Error("expected sum_t_amt metric")
	}
	if _, ok := inner["count_t_amt"]; !ok {
		t.Error("expected count_t_amt metric")
	}
	docs := inner["documents"].(map[string]interface{})
	topHits := docs["top_hits"].(map[string]interface{})
	if topHits["size"] != 100 {
		t.Errorf("expected documents.top_hits.size 100, got %v", topHits["size"])
	}
}

// Multi-level grouping nests one terms bucket per level, metrics at
// the innermost level.
func TestTranslateMultiLevelTermsGrouping(t *testing.T) {
	ir := model.FilterIR{Slices: []model.Slice{
		{
			GroupBy:      []string{"t.cur", "t.loc"},
			Aggregations: []model.Aggregation{{Field: "t.amt", Kind: model.AggMin}, {Field: "t.amt", Kind: model.AggMax}},
		},
	}}

	plans, err := testTranslator().Translate(ir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	aggs := plans[0].Body["aggs"].(map[string]interface{})
	level0 := aggs["group_by_0"].(map[string]interface{})
	terms0 := level0["terms"].(map[string]interface{})
	if terms0["size"] != 100 {
		t.Errorf("expected size 100 for outer terms bucket, got %v", terms0["size"])
	}

	level1 := level0["aggs"].(map[string]interface{})["group_by_1"].(map[string]interface{})
	terms1 := level1["terms"].(map[string]interface{})
	if terms1["size"] != 100 {
		t.Errorf("expected size 100 for inner terms bucket, got %v", terms1["size"])
	}

	innerAggs := level1["aggs"].(map[string]interface{})
	if _, ok := innerAggs["min_t_amt"]; !ok {
		t.Error("expected min_t_amt at the innermost level")
	}
	if _, ok := innerAggs["max_t_amt"]; !ok {
		t.Error("expected max_t_amt at the innermost level")
	}
}

// A having clause becomes a bucket_selector referencing the metric.
func TestTranslateHaving(t *testing.T) {
	ir := model.FilterIR{Slices: []model.Slice{
		{
			GroupBy:  []string{"t.ts"},
			Interval: ptrInterval(model.IntervalDay),
			Aggregations: []model.Aggregation{
				{Field: "t.id", Kind: model.AggCount, HavingOperator: ptrHaving(model.HavingGreaterThan), HavingValue: float64(1)},
			},
		},
	}}

	plans, err := testTranslator().Translate(ir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	inner := plans[0].Body["aggs"].(map[string]interface{})["group_by_0"].(map[string]interface{})["aggs"].(map[string]interface{})
	selector, ok := inner["having_count_t_id"]
	if !ok {
		t.Fatal("expected a bucket_selector keyed off the count_t_id metric")
	}
	bs := selector.(map[string]interface{})["bucket_selector"].(map[string]interface{})
	bucketsPath := bs["buckets_path"].(map[string]interface{})
	if bucketsPath["var_0"] != "count_t_id" {
		t.Errorf("expected buckets_path to reference count_t_id, got %v", bucketsPath)
	}
	if bs["script"] != "params.var_0 > 1" {
		t.Errorf("expected script 'params.var_0 > 1', got %v", bs["script"])
	}
}

// Two slices translate to two independent plans in declared order.
func TestTranslateComparisonSlicesPreserveOrder(t *testing.T) {
	ir := model.FilterIR{Slices: []model.Slice{
		{Conditions: []model.Condition{{Field: "card_type", Operator: model.OpIs, Value: "GOLD"}}},
		{Conditions: []model.Condition{{Field: "card_type", Operator: model.OpIs, Value: "SILVER"}}},
	}}

	plans, err := testTranslator().Translate(ir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plans) != 2 {
		t.Fatalf("expected 2 plans, got %d", len(plans))
	}

	first := plans[0].Body["query"].(map[string]interface{})["bool"].(map[string]interface{})["must"].([]interface{})[0].(map[string]interface{})["term"].(map[string]interface{})
	second := plans[1].Body["query"].(map[string]interface{})["bool"].(map[string]interface{})["must"].([]interface{})[0].(map[string]interface{})["term"].(map[string]interface{})
	if first["card_type.keyword"] != "GOLD" || second["card_type.keyword"] != "SILVER" {
		t.Errorf("expected slice order preserved in independent plans, got %v then %v", first, second)
	}
}

func TestTranslateEmptyConditionsYieldsMatchAll(t *testing.T) {
	ir := model.FilterIR{Slices: []model.Slice{{}}}

	plans, err := testTranslator().Translate(ir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]interface{}{"query": map[string]interface{}{"match_all": map[string]interface{}{}}}
	if diff := cmp.Diff(want, plans[0].Body); diff != "" {
		t.Errorf("unexpected plan (-want +got):\n%s", diff)
	}
}

func TestTranslateNoGroupByProducesNoAggsBlock(t *testing.T) {
	ir := model.FilterIR{Slices: []model.Slice{
		{Conditions: []model.Condition{{Field: "t.amt", Operator: model.OpGreaterThan, Value: float64(10)}}},
	}}

	plans, err := testTranslator().Translate(ir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := plans[0].Body["aggs"]; ok {
		t.Error("expected no aggs block for a slice with no group_by")
	}
}

func TestTranslateIsDeterministic(t *testing.T) {
	ir := model.FilterIR{Slices: []model.Slice{
		{Conditions: []model.Condition{{Field: "t.amt", Operator: model.OpBetween, Value: []interface{}{float64(1), float64(2)}}}},
	}}

	tr := testTranslator()
	first, err := tr.Translate(ir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := tr.Translate(ir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("expected identical plans across calls (-first +second):\n%s", diff)
	}
}
