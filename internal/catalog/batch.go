package catalog

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// BatchConfig bounds how hard a per-item fetch hits the upstream API.
type BatchConfig struct {
	Size  int
	Delay time.Duration
}

// FetchInBatches calls fetch for every item, Size items concurrently at a time,
// sleeping Delay between batches. Results keep item order.
//
// A failing batch stops the remaining batches. Whatever earlier batches
// gathered is returned without an error; the error is only returned when
// nothing was gathered at all.
func FetchInBatches[T any](ctx context.Context, items []string, cfg BatchConfig, fetch func(ctx context.Context, item string) ([]T, error)) ([]T, error) {
	size := cfg.Size
	if size <= 0 {
		size = 1
	}

	var gathered []T
	for start := 0; start < len(items); start += size {
		if start > 0 && cfg.Delay > 0 {
			timer := time.NewTimer(cfg.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return gathered, ctx.Err()
			case <-timer.C:
			}
		}

		end := min(start+size, len(items))
		batch := items[start:end]
		parts := make([][]T, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for i, item := range batch {
			g.Go(func() error {
				res, err := fetch(gctx, item)
				if err != nil {
					return err
				}
				parts[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			if len(gathered) == 0 {
				return nil, err
			}
			log.WithFields(log.Fields{
				"fetched": start,
				"total":   len(items),
			}).WithError(err).Warn("catalog batch failed, returning partial results")
			return gathered, nil
		}
		for _, p := range parts {
			gathered = append(gathered, p...)
		}
	}
	return gathered, nil
}
