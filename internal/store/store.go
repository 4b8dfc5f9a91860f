// Package store defines the persistence contracts of the engine: templates
// survive restarts and seed the gallery at process start; attendance
// sessions are the ledger the state machine writes.
package store

import (
	"context"
	"time"
)

// StoredTemplate is the persisted per-identity template artifact.
type StoredTemplate struct {
	ID         string
	Name       string
	Embedding  []float32
	Dim        int
	EnrolledAt time.Time
}

// TemplateStore persists one template per identity.
type TemplateStore interface {
	// Publish inserts or atomically replaces the identity's template.
	Publish(ctx context.Context, t StoredTemplate) error
	// LoadAll returns every stored template, ordered by enrollment time.
	LoadAll(ctx context.Context) ([]StoredTemplate, error)
	// Delete removes the identity's template.
	Delete(ctx context.Context, id string) error
}
