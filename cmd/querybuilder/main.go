// Command querybuilder wires a Config, an extractor/translator/executor
// trio for the configured backend, and a REST front-end around one
// Orchestrator instance.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gcbaptista/nlq-query-builder/api"
	"github.com/gcbaptista/nlq-query-builder/config"
	"github.com/gcbaptista/nlq-query-builder/internal/applog"
	"github.com/gcbaptista/nlq-query-builder/internal/execute"
	docExecute "github.com/gcbaptista/nlq-query-builder/internal/execute/doc"
	searchExecute "github.com/gcbaptista/nlq-query-builder/internal/execute/search"
	"github.com/gcbaptista/nlq-query-builder/internal/filterschema"
	"github.com/gcbaptista/nlq-query-builder/internal/orchestrator"
	"github.com/gcbaptista/nlq-query-builder/internal/schema"
	"github.com/gcbaptista/nlq-query-builder/internal/schema/docschema"
	"github.com/gcbaptista/nlq-query-builder/internal/schema/esschema"
	"github.com/gcbaptista/nlq-query-builder/internal/schemacache"
	"github.com/gcbaptista/nlq-query-builder/internal/translate"
	docTranslate "github.com/gcbaptista/nlq-query-builder/internal/translate/doc"
	searchTranslate "github.com/gcbaptista/nlq-query-builder/internal/translate/search"
	"github.com/gcbaptista/nlq-query-builder/services"
)

func main() {
	var (
		help          = flag.Bool("help", false, "Show help message")
		port          = flag.String("port", "8080", "Port to run the server on")
		backend       = flag.String("backend", "search", `Backend to target: "search" or "doc"`)
		connectionURL = flag.String("connection-url", "", "Backend connection URL")
		indexOrColl   = flag.String("index", "", "Index name (search backend) or collection name (doc backend)")
		categoryCSV   = flag.String("category-fields", "", "Comma-separated list of category fields to resolve as enums")
		ignoreCSV     = flag.String("fields-to-ignore", "", "Comma-separated list of field paths to drop from the schema")
		sampleSize    = flag.Int("sample-size", 1000, "Document-store sample size (doc backend only)")
		bucketSize    = flag.Int("bucket-size", 100, "Terms-aggregation / grouping bucket cap")
		topHitsSize   = flag.Int("top-hits-size", 100, "Per-bucket document collection cap")
		llmModel      = flag.String("llm-model", "", "LLM model identifier (informational; no client ships in this module)")
		cacheDir      = flag.String("cache-dir", "./querybuilder_data", "Directory for the on-disk schema cache")
		debug         = flag.Bool("debug", false, "Enable human-readable debug logging")
	)
	flag.Parse()

	if *help {
		fmt.Printf("NLQ Query Builder - natural-language-to-database query pipeline\n\n")
		fmt.Printf("Usage: %s [options]\n\n", os.Args[0])
		flag.PrintDefaults()
		return
	}

	applog.Setup(*debug)

	cfg := config.Config{
		Backend:           config.BackendKind(*backend),
		ConnectionURL:     *connectionURL,
		IndexOrCollection: *indexOrColl,
		CategoryFields:    splitCSV(*categoryCSV),
		FieldsToIgnore:    splitCSV(*ignoreCSV),
		SampleSize:        *sampleSize,
		LLMModel:          *llmModel,
		BucketSize:        *bucketSize,
		TopHitsSize:       *topHitsSize,
	}
	cfg.ApplyDefaults()
	if problems := cfg.Validate(); len(problems) > 0 {
		applog.Error("invalid configuration", "problems", problems)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	extractor, translator, executor, err := wireBackend(ctx, cfg, *cacheDir)
	if err != nil {
		applog.Error("failed to wire backend", "error", err)
		os.Exit(1)
	}

	applog.Warn("no LLM client configured; wiring a deterministic stub client", "llm_model", cfg.LLMModel)
	llm := services.NewStubClient(nil)

	o := orchestrator.New(extractor, translator, executor, llm, string(cfg.Backend))

	router := gin.Default()
	api.SetupRoutes(router, o, llm, cfg)

	srv := &http.Server{
		Addr:           ":" + *port,
		Handler:        router,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		applog.Info("starting server", "port", *port, "backend", cfg.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			applog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	applog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		applog.Error("server forced to shutdown", "error", err)
	}
	applog.Info("server exited")
}

// wireBackend builds the extractor/translator/executor trio for
// whichever backend cfg.Backend names, with the extractor wrapped in
// an on-disk schema cache (internal/schemacache).
func wireBackend(ctx context.Context, cfg config.Config, cacheDir string) (schema.Extractor, translate.Translator, execute.Executor, error) {
	cachePath := fmt.Sprintf("%s/%s-%s.gob", strings.TrimRight(cacheDir, "/"), cfg.Backend, cfg.IndexOrCollection)

	switch cfg.Backend {
	case config.BackendDoc:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.ConnectionURL))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connecting to document store: %w", err)
		}
		collection := client.Database(cfg.IndexOrCollection).Collection(cfg.IndexOrCollection)

		raw := docschema.New(collection, docschema.Config{
			CollectionName: cfg.IndexOrCollection,
			CategoryFields: cfg.CategoryFields,
			FieldsToIgnore: cfg.FieldsToIgnore,
			SampleSize:     cfg.SampleSize,
			BucketSize:     cfg.BucketSize,
		})
		extractor := schemacache.New(raw, cachePath)

		fieldMap, err := extractor.Extract(ctx)
		if err != nil {
			return nil, nil, nil, err
		}
		filterSchema, _ := filterschema.Build(fieldMap)

		return extractor, docTranslate.New(filterSchema, cfg.TopHitsSize), docExecute.New(collection), nil

	default:
		client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{cfg.ConnectionURL}})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("creating search client: %w", err)
		}

		raw := esschema.New(client, esschema.Config{
			IndexName:      cfg.IndexOrCollection,
			CategoryFields: cfg.CategoryFields,
			FieldsToIgnore: cfg.FieldsToIgnore,
			BucketSize:     cfg.BucketSize,
		})
		extractor := schemacache.New(raw, cachePath)

		fieldMap, err := extractor.Extract(ctx)
		if err != nil {
			return nil, nil, nil, err
		}
		filterSchema, _ := filterschema.Build(fieldMap)

		return extractor, searchTranslate.New(filterSchema, cfg.BucketSize, cfg.TopHitsSize), searchExecute.New(client, cfg.IndexOrCollection), nil
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
