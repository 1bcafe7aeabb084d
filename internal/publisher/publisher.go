// Package publisher notifies the channel-building collaborator when a
// package is ready.
package publisher

import (
	"context"

	"github.com/edupack/concord-stager/internal/pipeline"
)

// NoOp discards every notification. Used when publishing is disabled.
type NoOp struct{}

// NewNoOp builds a NoOp publisher.
func NewNoOp() *NoOp {
	return &NoOp{}
}

// Publish discards the result.
func (*NoOp) Publish(context.Context, pipeline.PackageResult) error {
	return nil
}

// Close implements pipeline.Publisher.
func (*NoOp) Close() error {
	return nil
}
