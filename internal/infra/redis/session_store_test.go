package redis

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"music-trivia-service/internal/app"
	"music-trivia-service/internal/domain"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(newClient(mr), time.Minute)

	store.Put(app.NewSession("game-1", "u1", domain.Selection{Source: "recent"}))
	if !mr.Exists("game:session:game-1") {
		t.Fatalf("expected redis key to be set")
	}
	if owner, _ := mr.Get("game:session:game-1"); owner != "u1" {
		t.Fatalf("expected owner u1, got %q", owner)
	}
	if _, ok := store.Get("game-1"); !ok {
		t.Fatalf("expected session to be retrievable")
	}

	store.Delete("game-1")
	if mr.Exists("game:session:game-1") {
		t.Fatalf("expected redis key to be removed")
	}
	if _, ok := store.Get("game-1"); ok {
		t.Fatalf("expected session to be gone")
	}
}
