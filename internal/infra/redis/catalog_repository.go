package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"music-trivia-service/internal/catalog"
	"music-trivia-service/internal/domain"
)

// CatalogRepository caches track lists in Redis and falls back to a loader on cache miss.
// Each selection is stored as a JSON array under catalog:{source}:{sorted ids}.
type CatalogRepository struct {
	client *redis.Client
	loader catalog.Loader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewCatalogRepository(client *redis.Client, loader catalog.Loader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CatalogRepository) GetTracks(ctx context.Context, sel domain.Selection) ([]domain.Track, error) {
	key := r.key(sel)
	if tracks, ok := r.cached(ctx, key); ok {
		return tracks, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if tracks, ok := r.cached(ctx, key); ok {
			return tracks, nil
		}

		tracks, err := r.loader.LoadTracks(ctx, sel)
		if err != nil {
			return nil, err
		}

		raw, err := json.Marshal(tracks)
		if err != nil {
			return nil, err
		}
		// cache failures only cost a refetch
		if err := r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err(); err != nil {
			log.WithError(err).WithField("key", key).Warn("failed to cache catalog")
		}
		return tracks, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Track), nil
}

func (r *CatalogRepository) cached(ctx context.Context, key string) ([]domain.Track, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.WithError(err).WithField("key", key).Warn("catalog cache read failed")
		}
		return nil, false
	}
	var tracks []domain.Track
	if err := json.Unmarshal(raw, &tracks); err != nil {
		return nil, false
	}
	return tracks, true
}

func (r *CatalogRepository) key(sel domain.Selection) string {
	return "catalog:" + sel.CacheKey()
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
