// Package catalogapi fetches track lists from the streaming service's REST API.
package catalogapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"music-trivia-service/internal/catalog"
	"music-trivia-service/internal/domain"
)

// Sources understood by LoadTracks.
const (
	SourceTopTracks = "top-tracks"
	SourceRecent    = "recent"
	SourcePlaylist  = "playlist"
	SourceArtists   = "artists"
)

const pageLimit = 50

// Client implements catalog.Loader against the REST API.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	limiter *rate.Limiter
	batch   catalog.BatchConfig
	logger  log.FieldLogger
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit caps outgoing requests per second. Zero disables the limit.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

func WithBatch(cfg catalog.BatchConfig) Option {
	return func(c *Client) { c.batch = cfg }
}

func WithLogger(l log.FieldLogger) Option {
	return func(c *Client) { c.logger = l }
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		limiter: rate.NewLimiter(10, 1),
		batch:   catalog.BatchConfig{Size: 5, Delay: 200 * time.Millisecond},
		logger:  log.StandardLogger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// LoadTracks resolves a selection into tracks in catalog order.
func (c *Client) LoadTracks(ctx context.Context, sel domain.Selection) ([]domain.Track, error) {
	switch sel.Source {
	case SourceTopTracks:
		return c.fetchItems(ctx, "/me/top/tracks?"+limitQuery(), false)
	case SourceRecent:
		return c.fetchItems(ctx, "/me/player/recently-played?"+limitQuery(), true)
	case SourcePlaylist:
		if len(sel.IDs) == 0 {
			return nil, fmt.Errorf("playlist source needs a playlist id")
		}
		return catalog.FetchInBatches(ctx, sel.IDs, c.batch, func(ctx context.Context, id string) ([]domain.Track, error) {
			return c.fetchItems(ctx, "/playlists/"+url.PathEscape(id)+"/tracks?"+limitQuery(), true)
		})
	case SourceArtists:
		if len(sel.IDs) == 0 {
			return nil, fmt.Errorf("artists source needs at least one artist id")
		}
		return catalog.FetchInBatches(ctx, sel.IDs, c.batch, c.artistTopTracks)
	}
	return nil, fmt.Errorf("unknown catalog source %q", sel.Source)
}

func (c *Client) artistTopTracks(ctx context.Context, artistID string) ([]domain.Track, error) {
	var resp struct {
		Tracks []apiTrack `json:"tracks"`
	}
	if err := c.get(ctx, "/artists/"+url.PathEscape(artistID)+"/top-tracks", &resp); err != nil {
		return nil, err
	}
	return toTracks(resp.Tracks), nil
}

// fetchItems reads a list response. Some endpoints wrap each track in an
// object with a "track" field.
func (c *Client) fetchItems(ctx context.Context, path string, wrapped bool) ([]domain.Track, error) {
	if !wrapped {
		var resp struct {
			Items []apiTrack `json:"items"`
		}
		if err := c.get(ctx, path, &resp); err != nil {
			return nil, err
		}
		return toTracks(resp.Items), nil
	}

	var resp struct {
		Items []struct {
			Track *apiTrack `json:"track"`
		} `json:"items"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	raw := make([]apiTrack, 0, len(resp.Items))
	for _, it := range resp.Items {
		// removed or local items come back without a track
		if it.Track != nil {
			raw = append(raw, *it.Track)
		}
	}
	return toTracks(raw), nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.WithField("path", path).Debug("catalog request")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Path: path, Code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// StatusError reports a non-200 response.
type StatusError struct {
	Path string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog request %s: unexpected status %d", e.Path, e.Code)
}

func limitQuery() string {
	return url.Values{"limit": {fmt.Sprint(pageLimit)}}.Encode()
}
