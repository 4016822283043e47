// Package test runs the driver contract suite against every available
// backend. SQLite always runs against a temp file; PostgreSQL runs when
// POSTGRES_TEST_DSN points at a database with the pgvector extension
// available.
package test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/notectx/notectx/internal/profile"
	"github.com/notectx/notectx/store"
	"github.com/notectx/notectx/store/db"
)

type backend struct {
	name    string
	profile *profile.Profile
}

func availableBackends(t *testing.T) []backend {
	backends := []backend{
		{
			name: "sqlite",
			profile: &profile.Profile{
				Mode:   "dev",
				Driver: "sqlite",
				DSN:    filepath.Join(t.TempDir(), "notectx_test.db"),
			},
		},
	}
	if dsn := os.Getenv("POSTGRES_TEST_DSN"); dsn != "" {
		backends = append(backends, backend{
			name: "postgres",
			profile: &profile.Profile{
				Mode:                  "dev",
				Driver:                "postgres",
				DSN:                   dsn,
				AIEmbeddingDimensions: 4,
			},
		})
	}
	return backends
}

// newTestingStore opens a migrated store for one backend and registers
// cleanup.
func newTestingStore(ctx context.Context, t *testing.T, b backend) *store.Store {
	driver, err := db.NewDBDriver(b.profile)
	if err != nil {
		t.Fatalf("failed to create %s driver: %v", b.name, err)
	}
	ts := store.New(driver, b.profile)
	if err := ts.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate %s: %v", b.name, err)
	}
	t.Cleanup(func() {
		_ = ts.Close()
	})
	return ts
}

// runOnAllBackends executes one contract test per available backend.
func runOnAllBackends(t *testing.T, fn func(t *testing.T, ts *store.Store)) {
	for _, b := range availableBackends(t) {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			fn(t, newTestingStore(ctx, t, b))
		})
	}
}
