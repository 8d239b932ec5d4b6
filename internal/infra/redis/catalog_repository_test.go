package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"music-trivia-service/internal/catalog"
	"music-trivia-service/internal/domain"
	"music-trivia-service/internal/infra/memory"
)

func TestCatalogRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{Loader: memory.NewFixedCatalogLoader(sampleTracks())}
	repo := NewCatalogRepository(client, loader, time.Minute)
	sel := domain.Selection{Source: "playlist", IDs: []string{"p2", "p1"}}

	tracks, err := repo.GetTracks(context.Background(), sel)
	if err != nil {
		t.Fatalf("get tracks: %v", err)
	}
	if len(tracks) != 2 || loader.calls != 1 {
		t.Fatalf("expected 2 tracks from one load, got %d tracks and %d calls", len(tracks), loader.calls)
	}
	if !mr.Exists("catalog:playlist:p1,p2") {
		t.Fatalf("expected redis key to be set")
	}

	// Second call should hit cache, loader not incremented.
	cached, _ := repo.GetTracks(context.Background(), domain.Selection{Source: "playlist", IDs: []string{"p1", "p2"}})
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if cached[0].Name != "Paper Boats" || cached[0].Artists[0] != "Quiet Coast" {
		t.Fatalf("unexpected cached track: %+v", cached[0])
	}

	mr.FastForward(2 * time.Minute)
	_, _ = repo.GetTracks(context.Background(), sel)
	if loader.calls != 2 {
		t.Fatalf("expected reload after expiry, loader calls=%d", loader.calls)
	}
}

type countingLoader struct {
	catalog.Loader
	calls int
}

func (l *countingLoader) LoadTracks(ctx context.Context, sel domain.Selection) ([]domain.Track, error) {
	l.calls++
	return l.Loader.LoadTracks(ctx, sel)
}

func sampleTracks() []domain.Track {
	return []domain.Track{
		{ID: "t1", Name: "Paper Boats", Artists: []string{"Quiet Coast"}, Album: "Low Tide"},
		{ID: "t2", Name: "Static Bloom", Artists: []string{"Quiet Coast", "Mira Vale"}, Album: "Low Tide"},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
