package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/gcbaptista/nlq-query-builder/config"
	"github.com/gcbaptista/nlq-query-builder/internal/filterschema"
	"github.com/gcbaptista/nlq-query-builder/internal/orchestrator"
	"github.com/gcbaptista/nlq-query-builder/internal/schema/staticschema"
	searchTranslate "github.com/gcbaptista/nlq-query-builder/internal/translate/search"
	"github.com/gcbaptista/nlq-query-builder/model"
)

// fakeLLM returns a fixed raw filter document regardless of prompt,
// standing in for the out-of-scope LLM collaborator in tests.
type fakeLLM struct {
	raw []byte
	err error
}

func (f *fakeLLM) GenerateFilterIR(ctx context.Context, naturalLanguage string, descriptor *filterschema.PromptDescriptor) ([]byte, error) {
	return f.raw, f.err
}

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fieldMap := model.FieldMap{
		"card_type": {Type: model.FieldTypeEnum, Values: []string{"GOLD", "SILVER"}, ExactMatchCapable: true},
	}
	filterSchema, _ := filterschema.Build(fieldMap)
	tr := searchTranslate.New(filterSchema, 100, 100)

	extractor := staticschema.New(fieldMap)
	llm := &fakeLLM{raw: []byte(`{"filters":[{"conditions":[{"field":"card_type","operator":"is","value":"GOLD"}]}]}`)}

	o := orchestrator.New(extractor, tr, nil, llm, "search")
	cfg := config.Config{Backend: config.BackendSearch, BucketSize: 100, TopHitsSize: 100}

	router := gin.New()
	SetupRoutes(router, o, llm, cfg)
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthHandlerReportsReadiness(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	assert.Equal(t, false, body["schema_ready"], "no query has run, so the schema is not built yet")
}

func TestQueryHandlerReturnsCanonicalizedPlans(t *testing.T) {
	router := setupTestRouter(t)

	rec := postJSON(t, router, "/query", QueryRequest{NaturalLanguage: "gold cards", Execute: false})
	assert.Equal(t, http.StatusOK, rec.Code)

	var result orchestrator.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	assert.Len(t, result.DatabaseQueries, 1)
	assert.NotEmpty(t, result.QueryID, "expected a generated query ID")
}

func TestQueryHandlerRejectsMissingBody(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing natural_language, got %d", rec.Code)
	}
}

func TestRawSchemaQueryHandlerBuildsPlansWithoutLiveBackend(t *testing.T) {
	router := setupTestRouter(t)

	body := RawSchemaRequest{
		Mapping: map[string]interface{}{
			"card_type": map[string]interface{}{"type": "keyword"},
		},
		CategoryValues:  map[string][]string{"card_type": {"GOLD", "SILVER"}},
		NaturalLanguage: "gold cards",
	}

	rec := postJSON(t, router, "/query/raw-schema", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result orchestrator.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(result.DatabaseQueries) != 1 {
		t.Fatalf("expected 1 plan, got %d", len(result.DatabaseQueries))
	}
	if result.Results != nil {
		t.Fatalf("expected no results for a schema with no live backend, got %+v", result.Results)
	}
}

func TestRawSchemaQueryHandlerRejectsEmptyMapping(t *testing.T) {
	router := setupTestRouter(t)

	body := RawSchemaRequest{NaturalLanguage: "gold cards"}
	rec := postJSON(t, router, "/query/raw-schema", body)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for an empty mapping, got %d: %s", rec.Code, rec.Body.String())
	}
}
