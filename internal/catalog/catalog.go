// Package catalog provides read access to the canonical exercise catalog.
package catalog

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/allworkouts/internal/models"
	"github.com/patrickmn/go-cache"
)

// Accessor returns every catalog entry. Implementations do no filtering;
// an empty slice means the catalog is empty, not that an error occurred.
type Accessor interface {
	ListAll(ctx context.Context) ([]models.Exercise, error)
}

// Snapshot is an immutable, name-sorted view of the catalog taken once per import.
type Snapshot struct {
	entries []models.Exercise
	byID    map[uuid.UUID]int
}

// NewSnapshot copies entries and sorts them by name.
func NewSnapshot(entries []models.Exercise) *Snapshot {
	cp := make([]models.Exercise, len(entries))
	copy(cp, entries)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Name < cp[j].Name })

	byID := make(map[uuid.UUID]int, len(cp))
	for i, e := range cp {
		byID[e.ID] = i
	}
	return &Snapshot{entries: cp, byID: byID}
}

// Load takes a snapshot from an accessor.
func Load(ctx context.Context, a Accessor) (*Snapshot, error) {
	entries, err := a.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(entries), nil
}

// Entries returns the catalog entries sorted by name. Callers must not modify
// the returned slice.
func (s *Snapshot) Entries() []models.Exercise {
	return s.entries
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// ByID looks up an entry by id.
func (s *Snapshot) ByID(id uuid.UUID) (models.Exercise, bool) {
	i, ok := s.byID[id]
	if !ok {
		return models.Exercise{}, false
	}
	return s.entries[i], true
}

// FilterMuscle returns the entries that target the given muscle group.
func (s *Snapshot) FilterMuscle(group string) []models.Exercise {
	group = strings.TrimSpace(group)
	if group == "" {
		return s.entries
	}
	var out []models.Exercise
	for _, e := range s.entries {
		if e.TargetsMuscle(group) {
			out = append(out, e)
		}
	}
	return out
}

const cacheKey = "catalog"

// Cached wraps an Accessor with a process-wide TTL cache. The catalog is
// read-only to this service, so entries only go stale through seeding.
type Cached struct {
	next  Accessor
	cache *cache.Cache
}

// NewCached creates a cached accessor. A non-positive ttl defaults to five minutes.
func NewCached(next Accessor, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cached{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

var _ Accessor = (*Cached)(nil)

// ListAll returns the cached catalog, loading it from the wrapped accessor on a miss.
// Errors are not cached.
func (c *Cached) ListAll(ctx context.Context) ([]models.Exercise, error) {
	if v, ok := c.cache.Get(cacheKey); ok {
		return v.([]models.Exercise), nil
	}
	entries, err := c.next.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(cacheKey, entries)
	return entries, nil
}

// Invalidate drops the cached catalog.
func (c *Cached) Invalidate() {
	c.cache.Delete(cacheKey)
}
