package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"music-trivia-service/internal/catalog"
	"music-trivia-service/internal/domain"
)

// CatalogRepository caches track lists per selection with TTL to avoid
// repeated upstream fetches.
type CatalogRepository struct {
	loader catalog.Loader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedTracks
}

type cachedTracks struct {
	tracks    []domain.Track
	expiresAt time.Time
}

func NewCatalogRepository(loader catalog.Loader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedTracks),
	}
}

func (r *CatalogRepository) GetTracks(ctx context.Context, sel domain.Selection) ([]domain.Track, error) {
	key := sel.CacheKey()
	if tracks, ok := r.cached(key); ok {
		return tracks, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		if tracks, ok := r.cached(key); ok {
			return tracks, nil
		}

		tracks, err := r.loader.LoadTracks(ctx, sel)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[key] = cachedTracks{
			tracks:    tracks,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return tracks, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Track), nil
}

func (r *CatalogRepository) cached(key string) ([]domain.Track, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[key]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return nil, false
	}
	return entry.tracks, true
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticCatalogLoader serves fixed track lists, keyed by Selection.CacheKey.
// A loader built with a single list serves it for every selection.
type StaticCatalogLoader struct {
	bySelection map[string][]domain.Track
	fallback    []domain.Track
}

func NewStaticCatalogLoader(bySelection map[string][]domain.Track) *StaticCatalogLoader {
	return &StaticCatalogLoader{bySelection: bySelection}
}

// NewFixedCatalogLoader serves tracks for any selection (useful for tests/demos).
func NewFixedCatalogLoader(tracks []domain.Track) *StaticCatalogLoader {
	return &StaticCatalogLoader{fallback: tracks}
}

// LoadCatalogFile reads a JSON array of tracks from path.
func LoadCatalogFile(path string) (*StaticCatalogLoader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tracks []domain.Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, fmt.Errorf("decode catalog file: %w", err)
	}
	return NewFixedCatalogLoader(tracks), nil
}

func (l *StaticCatalogLoader) LoadTracks(_ context.Context, sel domain.Selection) ([]domain.Track, error) {
	if tracks, ok := l.bySelection[sel.CacheKey()]; ok {
		return tracks, nil
	}
	if l.fallback != nil {
		return l.fallback, nil
	}
	return nil, fmt.Errorf("no tracks for selection %q", sel.CacheKey())
}
