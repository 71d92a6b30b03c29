package services

import (
	"context"
	"encoding/json"

	"github.com/gcbaptista/nlq-query-builder/internal/filterschema"
)

// StubClient is a deterministic, no-network LLMClient: it always
// returns the same raw filter document regardless of the prompt or
// descriptor it is handed. cmd/querybuilder wires StubClient as its
// default so the binary is runnable end-to-end without a network
// dependency, loudly
// logging that it isn't a real model integration. A real deployment
// replaces this with its own LLMClient implementation; the interface
// in services/llm.go is the actual integration point.
type StubClient struct {
	Raw json.RawMessage
}

// NewStubClient wraps a fixed raw filter document. An empty Raw
// defaults to a single slice with no conditions, so an unconfigured
// stub still produces a valid (if useless) IR rather than an LLMError.
func NewStubClient(raw json.RawMessage) *StubClient {
	if len(raw) == 0 {
		raw = json.RawMessage(`{"filters":[{"conditions":[]}]}`)
	}
	return &StubClient{Raw: raw}
}

// GenerateFilterIR ignores its inputs and returns the wrapped document.
func (s *StubClient) GenerateFilterIR(ctx context.Context, naturalLanguage string, descriptor *filterschema.PromptDescriptor) ([]byte, error) {
	return s.Raw, nil
}
