package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kiosklabs/facegate/internal/config"
	"github.com/kiosklabs/facegate/internal/gallery"
	"github.com/kiosklabs/facegate/internal/match"
	"github.com/kiosklabs/facegate/internal/store/postgres"
	"github.com/kiosklabs/facegate/internal/vision"
)

// engine bundles the components every command wires up the same way: the
// database pool, the template and attendance repositories, the in-memory
// gallery and the matcher over it.
type engine struct {
	cfg       *config.Config
	pool      *postgres.Pool
	templates *postgres.TemplateRepository
	ledger    *postgres.AttendanceRepository
	gallery   *gallery.Store
	index     *gallery.Index
	matcher   *match.Matcher
	client    *vision.Client
	lease     *vision.Lease
}

// newEngine connects to PostgreSQL, runs migrations and seeds the gallery
// from persisted templates.
func newEngine() (*engine, error) {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	e := &engine{
		cfg:       cfg,
		pool:      pool,
		templates: postgres.NewTemplateRepository(pool),
		ledger:    postgres.NewAttendanceRepository(pool),
		gallery:   gallery.NewStore(),
		client:    vision.NewClient(cfg.Vision.URL),
		lease:     vision.NewLease(),
	}

	// Attach the index before seeding so every publish and removal, now
	// and for the lifetime of the process, keeps it current.
	if cfg.Recognition.UseHNSW {
		e.index = gallery.NewIndex()
		e.gallery.AttachIndex(e.index)
	}

	n, err := e.seedGallery(context.Background())
	if err != nil {
		pool.Close()
		return nil, err
	}
	fmt.Printf("Gallery seeded with %d enrolled identities\n", n)

	e.matcher = match.New(e.gallery, cfg.Recognition.MatchThreshold)
	if e.index != nil {
		e.matcher = e.matcher.WithIndex(e.index)
		fmt.Printf("HNSW index built over %d templates\n", e.index.Count())
	}

	return e, nil
}

// seedGallery loads every persisted template into the in-memory gallery,
// in enrollment order.
func (e *engine) seedGallery(ctx context.Context) (int, error) {
	stored, err := e.templates.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading templates: %w", err)
	}
	for _, t := range stored {
		e.gallery.Publish(gallery.Template{
			ID:         t.ID,
			Name:       t.Name,
			Vector:     t.Embedding,
			EnrolledAt: t.EnrolledAt,
		})
	}
	return len(stored), nil
}

func (e *engine) Close() {
	if err := e.pool.Close(); err != nil {
		fmt.Printf("Warning: closing database: %v\n", err)
	}
}
