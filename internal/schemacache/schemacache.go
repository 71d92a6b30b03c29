// Package schemacache decorates a schema.Extractor with a durable,
// gob-encoded on-disk cache for its FieldMap, built on
// internal/persistence's SaveGob/LoadGob. The extractors already
// memoize in memory for the lifetime of one process; a warm on-disk
// snapshot additionally lets a fresh process skip the live
// mapping-fetch or document-sampling round trip entirely when the
// backend's schema hasn't changed.
package schemacache

import (
	"context"
	"errors"
	"os"

	"github.com/gcbaptista/nlq-query-builder/internal/applog"
	"github.com/gcbaptista/nlq-query-builder/internal/persistence"
	"github.com/gcbaptista/nlq-query-builder/internal/schema"
	"github.com/gcbaptista/nlq-query-builder/model"
)

// Extractor wraps an underlying schema.Extractor, serving Extract from
// an on-disk gob snapshot when one exists and is loadable, and falling
// back to (and then refreshing) the underlying extractor otherwise.
// Distinct always delegates: distinct-value sets are not snapshotted,
// since they are cheap to recompute and may legitimately change more
// often than the field map's shape.
type Extractor struct {
	underlying schema.Extractor
	path       string
}

// New wraps underlying with a disk cache persisted at path.
func New(underlying schema.Extractor, path string) *Extractor {
	return &Extractor{underlying: underlying, path: path}
}

// Extract returns the on-disk FieldMap snapshot if one can be loaded;
// otherwise it builds a fresh one via the underlying extractor and
// persists it for next time. A corrupt or unreadable snapshot is
// treated as a cache miss, not a fatal error; the underlying
// extractor always remains the source of truth.
func (e *Extractor) Extract(ctx context.Context) (model.FieldMap, error) {
	var cached model.FieldMap
	if err := persistence.LoadGob(e.path, &cached); err == nil && len(cached) > 0 {
		applog.Debug("schema cache hit", "path", e.path, "fields", len(cached))
		return cached, nil
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		applog.Warn("schema cache unreadable, rebuilding", "path", e.path, "error", err)
	}

	fieldMap, err := e.underlying.Extract(ctx)
	if err != nil {
		return nil, err
	}

	if err := persistence.SaveGob(e.path, fieldMap); err != nil {
		applog.Warn("failed to persist schema cache", "path", e.path, "error", err)
	}

	return fieldMap, nil
}

// Distinct always delegates to the underlying extractor.
func (e *Extractor) Distinct(ctx context.Context, field string, limit int) ([]string, error) {
	return e.underlying.Distinct(ctx, field, limit)
}

// Invalidate removes the on-disk snapshot, forcing the next Extract to
// rebuild from the underlying extractor.
func (e *Extractor) Invalidate() error {
	err := os.Remove(e.path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
