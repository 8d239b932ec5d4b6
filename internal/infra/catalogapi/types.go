package catalogapi

import (
	"time"

	"music-trivia-service/internal/domain"
)

type apiTrack struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name   string `json:"name"`
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
	PreviewURL string `json:"preview_url"`
	DurationMS int    `json:"duration_ms"`
}

func toTracks(raw []apiTrack) []domain.Track {
	tracks := make([]domain.Track, 0, len(raw))
	for _, t := range raw {
		if t.ID == "" || t.Name == "" {
			continue
		}
		tracks = append(tracks, t.toDomain())
	}
	return tracks
}

func (t apiTrack) toDomain() domain.Track {
	track := domain.Track{
		ID:         t.ID,
		Name:       t.Name,
		Album:      t.Album.Name,
		PreviewURL: t.PreviewURL,
		StartTime:  startOffset(t.DurationMS),
	}
	for _, a := range t.Artists {
		track.Artists = append(track.Artists, a.Name)
	}
	if len(t.Album.Images) > 0 {
		track.AlbumArtURL = t.Album.Images[0].URL
	}
	return track
}

// startOffset skips intros: playback starts a third of the way in, never
// later than a minute, and at zero for tracks too short to matter.
func startOffset(durationMS int) time.Duration {
	d := time.Duration(durationMS) * time.Millisecond
	if d < 45*time.Second {
		return 0
	}
	return min(d/3, time.Minute).Truncate(time.Second)
}
