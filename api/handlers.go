package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/nlq-query-builder/config"
	"github.com/gcbaptista/nlq-query-builder/internal/filterschema"
	"github.com/gcbaptista/nlq-query-builder/internal/orchestrator"
	"github.com/gcbaptista/nlq-query-builder/internal/schema/esschema"
	"github.com/gcbaptista/nlq-query-builder/internal/schema/staticschema"
	"github.com/gcbaptista/nlq-query-builder/internal/translate"
	docTranslate "github.com/gcbaptista/nlq-query-builder/internal/translate/doc"
	searchTranslate "github.com/gcbaptista/nlq-query-builder/internal/translate/search"
	"github.com/gcbaptista/nlq-query-builder/model"
	"github.com/gcbaptista/nlq-query-builder/services"
)

// API holds the dependencies every handler needs: the live, cached
// Orchestrator wired at startup against a real backend, plus enough of
// Config and the LLM client to build a second, transient Orchestrator
// per request for the raw-schema escape hatch, where the caller
// supplies a mapping/enum document in place of a live backend.
type API struct {
	orchestrator *orchestrator.Orchestrator
	llm          services.LLMClient
	cfg          config.Config
}

// NewAPI creates the API handler struct.
func NewAPI(o *orchestrator.Orchestrator, llm services.LLMClient, cfg config.Config) *API {
	return &API{orchestrator: o, llm: llm, cfg: cfg}
}

// SetupRoutes defines the query-builder's REST surface:
// one route against the live, configured backend and one against a
// caller-supplied schema document, plus a health check.
func SetupRoutes(router *gin.Engine, o *orchestrator.Orchestrator, llm services.LLMClient, cfg config.Config) {
	a := NewAPI(o, llm, cfg)

	router.GET("/health", a.HealthHandler)
	router.POST("/query", a.QueryHandler)
	router.POST("/query/raw-schema", a.RawSchemaQueryHandler)
}

// HealthHandler reports whether the live orchestrator's schema cache
// has been warmed.
func (a *API) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "schema_ready": a.orchestrator.Ready()})
}

// QueryRequest is the body for the primary endpoint.
type QueryRequest struct {
	NaturalLanguage string `json:"natural_language" binding:"required"`
	Execute         bool   `json:"execute"`
}

// QueryHandler binds a QueryRequest and delegates to the live
// Orchestrator. It contains no business logic of its own.
func (a *API) QueryHandler(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendError(c, http.StatusBadRequest, ErrorCodeInvalidJSON, "invalid request body: "+err.Error())
		return
	}

	result, err := a.orchestrator.Query(c.Request.Context(), req.NaturalLanguage, req.Execute)
	if err != nil {
		SendPipelineError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RawSchemaRequest supplies a schema document directly instead of
// reading one from a live backend. Exactly one of Mapping
// (a raw search-engine "properties" tree) or FieldMap (an
// already-normalized schema) must be set; CategoryValues supplies
// enum values for mapping-derived fields since there is no live index
// to run a distinct aggregation against.
type RawSchemaRequest struct {
	Mapping         map[string]interface{} `json:"mapping,omitempty"`
	FieldMap        model.FieldMap         `json:"field_map,omitempty"`
	FieldsToIgnore  []string               `json:"fields_to_ignore,omitempty"`
	CategoryValues  map[string][]string    `json:"category_values,omitempty"`
	NaturalLanguage string                 `json:"natural_language" binding:"required"`
}

// RawSchemaQueryHandler builds a one-off, execution-less Orchestrator
// from a caller-supplied schema document and runs the normal
// validate-then-translate pipeline against it. Since no live backend
// backs the supplied schema, results are never executed; the caller
// gets back the canonicalized IR and the translated plans only.
func (a *API) RawSchemaQueryHandler(c *gin.Context) {
	var req RawSchemaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendError(c, http.StatusBadRequest, ErrorCodeInvalidJSON, "invalid request body: "+err.Error())
		return
	}

	fieldMap, err := req.resolveFieldMap()
	if err != nil {
		SendPipelineError(c, err)
		return
	}

	extractor := staticschema.New(fieldMap)
	transient, err := a.buildTransientOrchestrator(c.Request.Context(), extractor)
	if err != nil {
		SendPipelineError(c, err)
		return
	}

	result, err := transient.Query(c.Request.Context(), req.NaturalLanguage, false)
	if err != nil {
		SendPipelineError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (req RawSchemaRequest) resolveFieldMap() (model.FieldMap, error) {
	if len(req.FieldMap) > 0 {
		return req.FieldMap, nil
	}
	return esschema.BuildFieldMap(req.Mapping, req.FieldsToIgnore, req.CategoryValues)
}

// buildTransientOrchestrator mirrors the startup wiring in
// cmd/querybuilder/main.go: extract once, build the filter schema, and
// bind a translator to it, for whichever backend this API instance is
// configured to target. No executor is wired, so Query(..., execute)
// with execute=true would simply never run any plans.
func (a *API) buildTransientOrchestrator(ctx context.Context, extractor *staticschema.Extractor) (*orchestrator.Orchestrator, error) {
	fieldMap, err := extractor.Extract(ctx)
	if err != nil {
		return nil, err
	}
	filterSchema, _ := filterschema.Build(fieldMap)

	var translator translate.Translator
	switch a.cfg.Backend {
	case config.BackendDoc:
		translator = docTranslate.New(filterSchema, a.cfg.TopHitsSize)
	default:
		translator = searchTranslate.New(filterSchema, a.cfg.BucketSize, a.cfg.TopHitsSize)
	}

	return orchestrator.New(extractor, translator, nil, a.llm, string(a.cfg.Backend)), nil
}
