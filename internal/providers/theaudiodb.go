package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"namegnome/internal/media"
	"namegnome/internal/providers/cache"
)

// TheAudioDB is a client for TheAudioDB API. Optional in the music
// fallback chain.
type TheAudioDB struct {
	core
	apiKey  string
	baseURL string
}

var _ MusicProvider = (*TheAudioDB)(nil)

// TheAudioDBOption configures a TheAudioDB client.
type TheAudioDBOption func(*TheAudioDB)

// WithTheAudioDBHTTPClient overrides the default HTTP client.
func WithTheAudioDBHTTPClient(client *http.Client) TheAudioDBOption {
	return func(c *TheAudioDB) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTheAudioDBCache attaches a response cache.
func WithTheAudioDBCache(store *cache.Store) TheAudioDBOption {
	return func(c *TheAudioDB) {
		c.store = store
	}
}

// NewTheAudioDB creates a TheAudioDB client.
func NewTheAudioDB(apiKey, baseURL string, opts ...TheAudioDBOption) (*TheAudioDB, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("theaudiodb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("theaudiodb base url required")
	}
	client := &TheAudioDB{
		core:    newCore(string(media.ProviderTheAudioDB)),
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Name identifies the provider in source refs and warnings.
func (c *TheAudioDB) Name() media.ProviderName {
	return media.ProviderTheAudioDB
}

type audioDBTrackResponse struct {
	Track []struct {
		ID          string `json:"idTrack"`
		Track       string `json:"strTrack"`
		Artist      string `json:"strArtist"`
		Album       string `json:"strAlbum"`
		TrackNumber string `json:"intTrackNumber"`
		Year        string `json:"intYearReleased"`
	} `json:"track"`
}

// SearchTrack searches TheAudioDB for a track by artist and title.
func (c *TheAudioDB) SearchTrack(ctx context.Context, artist, title string) ([]Recording, error) {
	artist = strings.TrimSpace(artist)
	title = strings.TrimSpace(title)
	if artist == "" || title == "" {
		return nil, errors.New("artist and title must not be empty")
	}
	params := url.Values{}
	params.Set("s", artist)
	params.Set("t", title)
	endpoint := fmt.Sprintf("%s/%s/searchtrack.php?%s", c.baseURL, url.PathEscape(c.apiKey), params.Encode())

	var payload audioDBTrackResponse
	notFound, err := c.getJSON(ctx, cache.EntityTrack, endpoint, nil, &payload)
	if err != nil || notFound {
		return nil, err
	}

	recordings := make([]Recording, 0, len(payload.Track))
	for _, track := range payload.Track {
		number, _ := strconv.Atoi(track.TrackNumber)
		year, _ := strconv.Atoi(track.Year)
		recordings = append(recordings, Recording{
			ID:     track.ID,
			Title:  track.Track,
			Artist: track.Artist,
			Album:  track.Album,
			Track:  number,
			Year:   year,
		})
	}
	return recordings, nil
}
