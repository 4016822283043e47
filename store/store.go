package store

import (
	"context"
	"time"

	"github.com/notectx/notectx/internal/profile"
	"github.com/notectx/notectx/store/cache"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// Cache settings
	cacheConfig cache.Config

	// Caches
	contextStatsCache *cache.Cache // cache for context stats pages
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	// Context stats pages are cheap to recompute on postgres but O(notes)
	// on sqlite, so both backends sit behind a short TTL.
	cacheConfig := cache.Config{
		DefaultTTL:      5 * time.Minute,
		CleanupInterval: time.Minute,
		MaxItems:        1000,
	}

	return &Store{
		driver:            driver,
		profile:           profile,
		cacheConfig:       cacheConfig,
		contextStatsCache: cache.New(cacheConfig),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

// Migrate brings the backing schema up to date.
func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	s.contextStatsCache.Close()
	return s.driver.Close()
}
