// Package catalog turns raw track lists into quiz-ready pools: grouping
// recordings of the same song and fetching per-item data under rate limits.
package catalog

import (
	"context"

	"music-trivia-service/internal/domain"
)

// Loader fetches the tracks behind a selection from a backing source
// (streaming API, database, static file).
type Loader interface {
	LoadTracks(ctx context.Context, sel domain.Selection) ([]domain.Track, error)
}
