// Package store persists package results for re-run bookkeeping.
package store

import (
	"context"

	"github.com/edupack/concord-stager/internal/pipeline"
)

// NoOp discards every result. Used when persistence is disabled.
type NoOp struct{}

// NewNoOp builds a NoOp store.
func NewNoOp() *NoOp {
	return &NoOp{}
}

// SaveResult discards the result.
func (*NoOp) SaveResult(context.Context, pipeline.PackageResult) error {
	return nil
}

// Close implements pipeline.ResultStore.
func (*NoOp) Close() error {
	return nil
}
