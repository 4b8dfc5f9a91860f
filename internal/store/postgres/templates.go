package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kiosklabs/facegate/internal/store"
)

// TemplateRepository provides PostgreSQL-backed template storage.
type TemplateRepository struct {
	pool *Pool
}

// NewTemplateRepository creates a new PostgreSQL template repository.
func NewTemplateRepository(pool *Pool) *TemplateRepository {
	return &TemplateRepository{pool: pool}
}

// Publish stores an identity's template (upsert).
func (r *TemplateRepository) Publish(ctx context.Context, t store.StoredTemplate) error {
	query := `
		INSERT INTO templates (identity_id, name, embedding, dim, enrolled_at)
		VALUES ($1, $2, $3::vector, $4, $5)
		ON CONFLICT (identity_id) DO UPDATE SET
			name = EXCLUDED.name,
			embedding = EXCLUDED.embedding,
			dim = EXCLUDED.dim,
			enrolled_at = EXCLUDED.enrolled_at
	`

	vec := pgvector.NewVector(t.Embedding)
	_, err := r.pool.Exec(ctx, query, t.ID, t.Name, vec, t.Dim, t.EnrolledAt)
	if err != nil {
		return fmt.Errorf("publish template: %w", err)
	}
	return nil
}

// LoadAll returns every stored template ordered by enrollment time, so the
// in-memory gallery is seeded in a stable order.
func (r *TemplateRepository) LoadAll(ctx context.Context) ([]store.StoredTemplate, error) {
	query := `
		SELECT identity_id, name, embedding, dim, enrolled_at
		FROM templates
		ORDER BY enrolled_at, identity_id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var templates []store.StoredTemplate
	for rows.Next() {
		var t store.StoredTemplate
		var vec pgvector.Vector

		if err := rows.Scan(&t.ID, &t.Name, &vec, &t.Dim, &t.EnrolledAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}

		t.Embedding = vec.Slice()
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}

	return templates, nil
}

// Delete removes the identity's template.
func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM templates WHERE identity_id = $1", id); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

// Verify interface compliance.
var _ store.TemplateStore = (*TemplateRepository)(nil)
