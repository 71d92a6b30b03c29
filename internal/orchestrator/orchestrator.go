// Package orchestrator wires together a schema extractor, a filter
// validator built from its FieldMap, a query translator, an optional
// query executor, and an external LLM collaborator behind one
// synchronous entry point. It holds explicit references to its
// collaborators and an initialize-once schema cache; none of its state
// is process-wide.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gcbaptista/nlq-query-builder/internal/applog"
	pkgerrors "github.com/gcbaptista/nlq-query-builder/internal/errors"
	"github.com/gcbaptista/nlq-query-builder/internal/execute"
	"github.com/gcbaptista/nlq-query-builder/internal/filterschema"
	"github.com/gcbaptista/nlq-query-builder/internal/schema"
	"github.com/gcbaptista/nlq-query-builder/internal/translate"
	"github.com/gcbaptista/nlq-query-builder/internal/validator"
	"github.com/gcbaptista/nlq-query-builder/model"
	"github.com/gcbaptista/nlq-query-builder/services"
)

// maxConcurrentSlices bounds how many per-slice executor calls run at
// once.
const maxConcurrentSlices = 8

// Per-stage deadline caps. Each stage's actual deadline is the smaller
// of its cap and whatever remains on the caller's own context, so a
// caller-supplied deadline is never extended, only subdivided.
const (
	defaultSchemaTimeout = 10 * time.Second
	defaultLLMTimeout    = 20 * time.Second
	defaultSliceTimeout  = 15 * time.Second
)

// stageDeadline derives a child context bounded by budget, further
// capped by parent's own remaining deadline when it has one.
func stageDeadline(parent context.Context, budget time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := parent.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < budget {
			budget = remaining
		}
	}
	return context.WithTimeout(parent, budget)
}

// isDeadlineExceeded reports whether err (or the context it came from)
// resulted from a stage's deadline firing, as opposed to some other
// failure.
func isDeadlineExceeded(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
}

// Result is the orchestrator's public response shape. QueryID is a
// fresh identifier minted per call, used to correlate one Result with
// its applog lines across the pipeline.
type Result struct {
	QueryID              string              `json:"query_id"`
	NaturalLanguageQuery string              `json:"natural_language_query"`
	ExtractedFilters     model.FilterIR      `json:"extracted_filters"`
	DatabaseQueries      []model.Plan        `json:"database_queries"`
	Results              []model.QueryResult `json:"results,omitempty"`
}

// Orchestrator is an explicit value holding references to every
// collaborator it needs; none of its state is process-wide.
type Orchestrator struct {
	extractor  schema.Extractor
	translator translate.Translator
	executor   execute.Executor // nil when execution isn't wired
	llm        services.LLMClient
	backend    string // "search" or "doc", carried for BackendError/TimeoutError context

	once         sync.Once
	onceErr      error
	ready        atomic.Bool
	filterSchema *filterschema.Schema
	descriptor   *filterschema.PromptDescriptor
	validator    *validator.Validator
}

// New wires an Orchestrator. executor may be nil; Query then behaves
// as if execute was always false.
func New(extractor schema.Extractor, translator translate.Translator, executor execute.Executor, llm services.LLMClient, backend string) *Orchestrator {
	return &Orchestrator{
		extractor:  extractor,
		translator: translator,
		executor:   executor,
		llm:        llm,
		backend:    backend,
	}
}

// Ready reports whether the orchestrator's schema has already been
// built, without triggering a build. It exists as a cheap health check
// a REST layer can poll before accepting traffic.
func (o *Orchestrator) Ready() bool {
	return o.ready.Load()
}

// Query runs the full pipeline: fetch/cache the field schema, ask the
// LLM for a raw filter document, validate and canonicalize it,
// translate it to backend plans, and, if runQueries is true, run those
// plans and attach their results.
func (o *Orchestrator) Query(ctx context.Context, naturalLanguage string, runQueries bool) (Result, error) {
	queryID := uuid.New().String()

	if err := o.ensureSchema(ctx); err != nil {
		return Result{}, err
	}

	llmCtx, cancel := stageDeadline(ctx, defaultLLMTimeout)
	raw, err := o.llm.GenerateFilterIR(llmCtx, naturalLanguage, o.descriptor)
	cancel()
	if err != nil {
		if isDeadlineExceeded(llmCtx, err) {
			applog.Error("llm call timed out", "query_id", queryID)
			return Result{}, pkgerrors.NewTimeoutError("llm")
		}
		applog.Error("llm call failed", "query_id", queryID, "error", err)
		return Result{}, pkgerrors.NewLLMError(err.Error())
	}

	ir, err := o.validator.Validate(raw)
	if err != nil {
		applog.Warn("filter IR rejected", "query_id", queryID, "error", err)
		return Result{}, err
	}
	if len(ir.Warnings) > 0 {
		applog.Info("filter IR auto-corrected", "query_id", queryID, "warnings", ir.Warnings)
	}

	plans, err := o.translator.Translate(ir)
	if err != nil {
		applog.Error("translation failed", "query_id", queryID, "error", err)
		return Result{}, err
	}

	result := Result{
		QueryID:              queryID,
		NaturalLanguageQuery: naturalLanguage,
		ExtractedFilters:     ir,
		DatabaseQueries:      plans,
	}

	if runQueries && o.executor != nil {
		results, err := o.executeAll(ctx, plans)
		if err != nil {
			return Result{}, err
		}
		attachWarnings(results, ir.Warnings)
		result.Results = results
	}

	return result, nil
}

// attachWarnings copies each slice's auto-correction warnings into its
// QueryResult.Metadata, keyed by the slice index the validator
// recorded them against.
func attachWarnings(results []model.QueryResult, warnings []model.Warning) {
	if len(warnings) == 0 {
		return
	}
	bySlice := make(map[int][]model.Warning, len(warnings))
	for _, w := range warnings {
		bySlice[w.Slice] = append(bySlice[w.Slice], w)
	}
	for i := range results {
		sliceWarnings, ok := bySlice[i]
		if !ok {
			continue
		}
		if results[i].Metadata == nil {
			results[i].Metadata = make(map[string]interface{})
		}
		results[i].Metadata["warnings"] = sliceWarnings
	}
}

// RawQuery is the escape hatch for callers that already hold a
// backend-native plan: it skips schema, validation, and translation
// entirely.
func (o *Orchestrator) RawQuery(ctx context.Context, plan model.Plan) (model.QueryResult, error) {
	if o.executor == nil {
		return model.QueryResult{}, pkgerrors.NewBackendError(0, o.backend, "no executor wired")
	}
	return o.executor.ExecuteOne(ctx, 0, plan), nil
}

// ensureSchema builds the field schema, validator, and prompt
// descriptor exactly once; subsequent calls reuse the cached values
// lock-free.
func (o *Orchestrator) ensureSchema(ctx context.Context) error {
	o.once.Do(func() {
		schemaCtx, cancel := stageDeadline(ctx, defaultSchemaTimeout)
		defer cancel()

		fieldMap, err := o.extractor.Extract(schemaCtx)
		if err != nil {
			if isDeadlineExceeded(schemaCtx, err) {
				applog.Error("schema extraction timed out", "backend", o.backend)
				o.onceErr = pkgerrors.NewTimeoutError("schema")
				return
			}
			applog.Error("schema extraction failed", "backend", o.backend, "error", err)
			o.onceErr = err
			return
		}
		o.filterSchema, o.descriptor = filterschema.Build(fieldMap)
		o.validator = validator.New(o.filterSchema)
		o.ready.Store(true)
		applog.Info("schema ready", "backend", o.backend, "fields", len(fieldMap))
	})
	return o.onceErr
}

// executeAll runs every plan's executor call concurrently, bounded by
// maxConcurrentSlices, each against its own per-slice deadline derived
// from the remaining budget, and gathers results back in slice order.
// Cancellation is cooperative: if ctx is done before a slice starts, or
// any slice's own deadline fires mid-flight, the whole call fails with
// Timeout("execute") and its partial results are discarded rather than
// returned.
func (o *Orchestrator) executeAll(ctx context.Context, plans []model.Plan) ([]model.QueryResult, error) {
	results := make([]model.QueryResult, len(plans))
	sem := make(chan struct{}, maxConcurrentSlices)
	var wg sync.WaitGroup
	var timedOut atomic.Bool

	for i, plan := range plans {
		select {
		case <-ctx.Done():
			return nil, pkgerrors.NewTimeoutError("execute")
		default:
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, plan model.Plan) {
			defer wg.Done()
			defer func() { <-sem }()

			sliceCtx, cancel := stageDeadline(ctx, defaultSliceTimeout)
			defer cancel()

			results[i] = o.executor.ExecuteOne(sliceCtx, i, plan)
			if errors.Is(sliceCtx.Err(), context.DeadlineExceeded) {
				timedOut.Store(true)
			}
		}(i, plan)
	}

	wg.Wait()
	if timedOut.Load() {
		return nil, pkgerrors.NewTimeoutError("execute")
	}
	return results, nil
}
