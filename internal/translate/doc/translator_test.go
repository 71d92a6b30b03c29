package doc

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gcbaptista/nlq-query-builder/internal/filterschema"
	"github.com/gcbaptista/nlq-query-builder/model"
)

func testTranslator() *Translator {
	fm := model.FieldMap{
		"card_type": {Type: model.FieldTypeEnum, Values: []string{"GOLD", "SILVER"}},
		"t.ts":      {Type: model.FieldTypeDate},
		"t.amt":     {Type: model.FieldTypeNumber},
		"t.cur":     {Type: model.FieldTypeString},
		"t.loc":     {Type: model.FieldTypeString},
		"t.id":      {Type: model.FieldTypeString},
	}
	schema, _ := filterschema.Build(fm)
	return New(schema, 100)
}

func ptrInterval(i model.Interval) *model.Interval             { return &i }
func ptrHaving(op model.HavingOperator) *model.HavingOperator { return &op }

// Equality needs no suffix rewrite on the document store; the
// predicate table uses $eq directly.
func TestTranslateEquality(t *testing.T) {
	ir := model.FilterIR{Slices: []model.Slice{
		{Conditions: []model.Condition{{Field: "card_type", Operator: model.OpIs, Value: "GOLD"}}},
	}}

	plans, err := testTranslator().Translate(ir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]interface{}{
		"pipeline": []interface{}{
			map[string]interface{}{"$match": map[string]interface{}{"card_type": map[string]interface{}{"$eq": "GOLD"}}},
		},
	}
	if diff := cmp.Diff(want, plans[0].Body); diff != "" {
		t.Errorf("unexpected plan (-want +got):\n%s", diff)
	}
}

// between on a date field lowers to $gte/$lte.
func TestTranslateBetweenOnDate(t *testing.T) {
	ir := model.FilterIR{Slices: []model.Slice{
		{Conditions: []model.Condition{{Field: "t.ts", Operator: model.OpBetween, Value: []interface{}{"2024-01-01", "2024-12-31"}}}},
	}}

	plans, err := testTranslator().Translate(ir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]interface{}{
		"pipeline": []interface{}{
			map[string]interface{}{"$match": map[string]interface{}{"t.ts": map[string]interface{}{"$gte": "2024-01-01", "$lte": "2024-12-31"}}},
		},
	}
	if diff := cmp.Diff(want, plans[0].Body); diff != "" {
		t.Errorf("unexpected plan (-want +got):\n%s", diff)
	}
}

// Monthly grouping with two metrics: one $group stage keyed by a
// $dateToString expression, one accumulator per metric.
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

	pipeline := plans[0].Body["pipeline"].([]interface{})
	if len(pipeline) != 1 {
		t.Fatalf("expected a single $group stage, got %d stages", len(pipeline))
	}
	group := pipeline[0].(map[string]interface{})["$group"].(map[string]interface{})

	id := group["_id"].(map[string]interface{})
	dateExpr := id["t_ts"].(map[string]interface{})["$dateToString"].(map[string]interface{})
	if dateExpr["format"] != "%Y-%m" {
		t.Errorf("expected format %%Y-%%m, got %v", dateExpr["format"])
	}
	if dateExpr["date"] != "$t.ts" {
		t.Errorf("expected date field reference $t.ts, got %v", dateExpr["date"])
	}

	if _, ok := group["sum_t_amt"]; !ok {
		t.Error("expected sum_t_amt accumulator")
	}
	if _, ok := group["count_t_amt"]; !ok {
		t.Error("expected count_t_amt accumulator")
	}
	if _, ok := group["documents"]; !ok {
		t.Error("expected a documents push accumulator")
	}
}

// Multi-level grouping becomes a single compound _id on the
// document store.
func TestTranslateMultiLevelGrouping(t *testing.T) {
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

	group := plans[0].Body["pipeline"].([]interface{})[0].(map[string]interface{})["$group"].(map[string]interface{})
	id := group["_id"].(map[string]interface{})
	if id["t_cur"] != "$t.cur" || id["t_loc"] != "$t.loc" {
		t.Errorf("expected compound _id keying both grouped fields, got %v", id)
	}
}

// A having clause becomes a post-$group $match on the accumulator name.
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

	pipeline := plans[0].Body["pipeline"].([]interface{})
	if len(pipeline) != 2 {
		t.Fatalf("expected $group followed by a having $match, got %d stages", len(pipeline))
	}
	having := pipeline[1].(map[string]interface{})["$match"].(map[string]interface{})
	clause := having["count_t_id"].(map[string]interface{})
	if clause["$gt"] != float64(1) {
		t.Errorf("expected count_t_id $gt 1, got %v", clause)
	}
}

// Auto-correction is the validator's job; here we only check that a
// group-less slice never emits $group.
func TestTranslateNoGroupByProducesNoGroupStage(t *testing.T) {
	ir := model.FilterIR{Slices: []model.Slice{
		{Conditions: []model.Condition{{Field: "t.amt", Operator: model.OpGreaterThan, Value: float64(10)}}},
	}}

	plans, err := testTranslator().Translate(ir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, stage := range plans[0].Body["pipeline"].([]interface{}) {
		if _, ok := stage.(map[string]interface{})["$group"]; ok {
			t.Error("expected no $group stage for a slice with no group_by")
		}
	}
}

func TestTranslateEmptySliceProducesEmptyPipeline(t *testing.T) {
	ir := model.FilterIR{Slices: []model.Slice{{}}}

	plans, err := testTranslator().Translate(ir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]interface{}{"pipeline": []interface{}{}}
	if diff := cmp.Diff(want, plans[0].Body); diff != "" {
		t.Errorf("unexpected plan (-want +got):\n%s", diff)
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
