// Package services declares the narrow external-collaborator
// interfaces the orchestrator depends on but never implements itself.
// The LLM integration lives behind LLMClient; deployments plug in
// their own implementation.
package services

import (
	"context"

	"github.com/gcbaptista/nlq-query-builder/internal/filterschema"
)

// LLMClient turns a natural-language prompt plus a PromptDescriptor
// into a raw filter document shaped {"filters": [...]}. Implementors
// own prompt construction, model selection, and response parsing up
// to "valid JSON bytes"; FilterValidator owns everything beyond that.
type LLMClient interface {
	GenerateFilterIR(ctx context.Context, naturalLanguage string, descriptor *filterschema.PromptDescriptor) ([]byte, error)
}
