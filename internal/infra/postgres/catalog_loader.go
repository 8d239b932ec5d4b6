package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"music-trivia-service/internal/domain"
)

// CatalogLoader loads track JSONB rows from Postgres. Rows are grouped by
// source ("top-tracks", "playlist", ...) and source key (a playlist or artist
// id, empty for per-user lists) and kept in catalog order by position.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

func (l *CatalogLoader) LoadTracks(ctx context.Context, sel domain.Selection) ([]domain.Track, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if len(sel.IDs) == 0 {
		rows, err = l.pool.Query(ctx,
			`SELECT data FROM catalog_tracks WHERE source=$1 ORDER BY source_key, position`,
			sel.Source)
	} else {
		rows, err = l.pool.Query(ctx,
			`SELECT data FROM catalog_tracks WHERE source=$1 AND source_key = ANY($2)
			 ORDER BY array_position($2, source_key), position`,
			sel.Source, sel.IDs)
	}
	if err != nil {
		return nil, fmt.Errorf("load tracks: %w", err)
	}
	defer rows.Close()

	var tracks []domain.Track
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		var track domain.Track
		if err := json.Unmarshal(raw, &track); err != nil {
			return nil, fmt.Errorf("unmarshal track: %w", err)
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load tracks: %w", err)
	}
	return tracks, nil
}

// ReplaceTracks swaps the stored list for one source key in a single transaction.
func (l *CatalogLoader) ReplaceTracks(ctx context.Context, source, sourceKey string, tracks []domain.Track) error {
	return l.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM catalog_tracks WHERE source=$1 AND source_key=$2`, source, sourceKey); err != nil {
			return fmt.Errorf("clear tracks: %w", err)
		}
		for i, track := range tracks {
			raw, err := json.Marshal(track)
			if err != nil {
				return fmt.Errorf("marshal track %s: %w", track.ID, err)
			}
			_, err = tx.Exec(ctx,
				`INSERT INTO catalog_tracks (source, source_key, position, track_id, data) VALUES ($1, $2, $3, $4, $5)`,
				source, sourceKey, i, track.ID, raw)
			if err != nil {
				return fmt.Errorf("insert track %s: %w", track.ID, err)
			}
		}
		return nil
	})
}
