package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"namegnome/internal/media"
	"namegnome/internal/providers/cache"
)

// MusicBrainz is a client for the MusicBrainz web service. MusicBrainz
// requires a meaningful User-Agent and allows one request per second,
// so the client runs a tighter rate limit than the other providers.
type MusicBrainz struct {
	core
	baseURL   string
	userAgent string
}

var _ MusicProvider = (*MusicBrainz)(nil)

// MusicBrainzOption configures a MusicBrainz client.
type MusicBrainzOption func(*MusicBrainz)

// WithMusicBrainzHTTPClient overrides the default HTTP client.
func WithMusicBrainzHTTPClient(client *http.Client) MusicBrainzOption {
	return func(c *MusicBrainz) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithMusicBrainzCache attaches a response cache.
func WithMusicBrainzCache(store *cache.Store) MusicBrainzOption {
	return func(c *MusicBrainz) {
		c.store = store
	}
}

// NewMusicBrainz creates a MusicBrainz client.
func NewMusicBrainz(baseURL, userAgent string, opts ...MusicBrainzOption) (*MusicBrainz, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("musicbrainz base url required")
	}
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return nil, errors.New("musicbrainz user agent required")
	}
	client := &MusicBrainz{
		core:      newCore(string(media.ProviderMusicBrainz)),
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
	}
	client.limiter = newRateLimiter(50, requestWindow)
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Name identifies the provider in source refs and warnings.
func (c *MusicBrainz) Name() media.ProviderName {
	return media.ProviderMusicBrainz
}

type mbRecordingResponse struct {
	Recordings []struct {
		ID           string `json:"id"`
		Title        string `json:"title"`
		ArtistCredit []struct {
			Name string `json:"name"`
		} `json:"artist-credit"`
		Releases []struct {
			Title string `json:"title"`
			Date  string `json:"date"`
			Media []struct {
				Tracks []struct {
					Number string `json:"number"`
				} `json:"track"`
			} `json:"media"`
		} `json:"releases"`
	} `json:"recordings"`
}

// SearchTrack searches MusicBrainz recordings by artist and title.
func (c *MusicBrainz) SearchTrack(ctx context.Context, artist, title string) ([]Recording, error) {
	artist = strings.TrimSpace(artist)
	title = strings.TrimSpace(title)
	if artist == "" || title == "" {
		return nil, errors.New("artist and title must not be empty")
	}

	query := fmt.Sprintf(`recording:%q AND artist:%q`, title, artist)
	params := url.Values{}
	params.Set("query", query)
	params.Set("fmt", "json")
	params.Set("limit", "10")
	endpoint := c.baseURL + "/recording?" + params.Encode()

	header := http.Header{}
	header.Set("User-Agent", c.userAgent)

	var payload mbRecordingResponse
	notFound, err := c.getJSON(ctx, cache.EntityTrack, endpoint, header, &payload)
	if err != nil || notFound {
		return nil, err
	}

	recordings := make([]Recording, 0, len(payload.Recordings))
	for _, rec := range payload.Recordings {
		recording := Recording{
			ID:    rec.ID,
			Title: rec.Title,
		}
		if len(rec.ArtistCredit) > 0 {
			recording.Artist = rec.ArtistCredit[0].Name
		}
		if len(rec.Releases) > 0 {
			release := rec.Releases[0]
			recording.Album = release.Title
			recording.Year = yearOf(release.Date)
			if len(release.Media) > 0 && len(release.Media[0].Tracks) > 0 {
				recording.Track = parseTrackNumber(release.Media[0].Tracks[0].Number)
			}
		}
		recordings = append(recordings, recording)
	}
	return recordings, nil
}

// parseTrackNumber handles plain ("7") and vinyl-style ("A3") numbers.
func parseTrackNumber(value string) int {
	digits := strings.TrimLeftFunc(value, func(r rune) bool {
		return r < '0' || r > '9'
	})
	number := 0
	for _, r := range digits {
		if r < '0' || r > '9' {
			break
		}
		number = number*10 + int(r-'0')
	}
	return number
}
