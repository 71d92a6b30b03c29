// Package config provides the configuration structure for the query
// builder: which backend to target, how to reach it, and the sizing
// knobs. Loading configuration from environment or flags is the
// caller's job; this package only defines and validates the resulting
// struct.
package config

import "fmt"

// BackendKind selects which backend a Config targets.
type BackendKind string

const (
	BackendSearch BackendKind = "search"
	BackendDoc    BackendKind = "doc"
)

// Config holds every knob the pipeline reads.
type Config struct {
	Backend          BackendKind `json:"backend"`
	ConnectionURL    string      `json:"connection_url"`
	IndexOrCollection string     `json:"index_or_collection"`
	CategoryFields   []string    `json:"category_fields,omitempty"`
	FieldsToIgnore   []string    `json:"fields_to_ignore,omitempty"`
	SampleSize       int         `json:"sample_size,omitempty"` // doc-store only, default 1000
	LLMModel         string      `json:"llm_model"`
	LLMAPIKey        string      `json:"llm_api_key"`
	BucketSize       int         `json:"bucket_size,omitempty"`   // default 100
	TopHitsSize      int         `json:"top_hits_size,omitempty"` // default 100
}

// ApplyDefaults fills in the documented defaults for any field left at
// its zero value.
func (c *Config) ApplyDefaults() {
	if c.SampleSize <= 0 {
		c.SampleSize = 1000
	}
	if c.BucketSize <= 0 {
		c.BucketSize = 100
	}
	if c.TopHitsSize <= 0 {
		c.TopHitsSize = 100
	}
}

// Validate checks the config for the problems that would make it unusable
// and returns them all rather than failing on the first one.
func (c *Config) Validate() []string {
	var problems []string

	switch c.Backend {
	case BackendSearch, BackendDoc:
	default:
		problems = append(problems, fmt.Sprintf("backend must be %q or %q, got %q", BackendSearch, BackendDoc, c.Backend))
	}

	if c.ConnectionURL == "" {
		problems = append(problems, "connection_url is required")
	}
	if c.IndexOrCollection == "" {
		problems = append(problems, "index_or_collection is required")
	}
	if c.LLMModel == "" {
		problems = append(problems, "llm_model is required")
	}
	if c.SampleSize < 0 {
		problems = append(problems, "sample_size must not be negative")
	}
	if c.BucketSize <= 0 {
		problems = append(problems, "bucket_size must be positive")
	}
	if c.TopHitsSize <= 0 {
		problems = append(problems, "top_hits_size must be positive")
	}

	for _, f := range c.CategoryFields {
		if f == "" {
			problems = append(problems, "category_fields must not contain empty paths")
			break
		}
	}

	return problems
}
