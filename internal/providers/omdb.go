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

// OMDb is a client for the OMDb API. It is optional in both the TV and
// movie fallback chains; construction fails without a key, and the
// chains simply omit it then.
type OMDb struct {
	core
	apiKey  string
	baseURL string
}

var (
	_ SeriesProvider = (*OMDb)(nil)
	_ MovieProvider  = (*OMDb)(nil)
)

// OMDbOption configures an OMDb client.
type OMDbOption func(*OMDb)

// WithOMDbHTTPClient overrides the default HTTP client.
func WithOMDbHTTPClient(client *http.Client) OMDbOption {
	return func(c *OMDb) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithOMDbCache attaches a response cache.
func WithOMDbCache(store *cache.Store) OMDbOption {
	return func(c *OMDb) {
		c.store = store
	}
}

// NewOMDb creates an OMDb client.
func NewOMDb(apiKey, baseURL string, opts ...OMDbOption) (*OMDb, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("omdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("omdb base url required")
	}
	client := &OMDb{
		core:    newCore(string(media.ProviderOMDb)),
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Name identifies the provider in source refs and warnings.
func (c *OMDb) Name() media.ProviderName {
	return media.ProviderOMDb
}

type omdbTitleResponse struct {
	Response string `json:"Response"`
	Error    string `json:"Error"`
	Title    string `json:"Title"`
	Year     string `json:"Year"`
	IMDBID   string `json:"imdbID"`
	Type     string `json:"Type"`
}

type omdbSeasonResponse struct {
	Response string `json:"Response"`
	Error    string `json:"Error"`
	Episodes []struct {
		Title   string `json:"Title"`
		Episode string `json:"Episode"`
		IMDBID  string `json:"imdbID"`
	} `json:"Episodes"`
}

// SearchSeries looks up a series by exact title. OMDb's t= lookup
// returns at most one match, so the result has zero or one entry.
func (c *OMDb) SearchSeries(ctx context.Context, title string, year int) ([]Series, error) {
	payload, err := c.lookupTitle(ctx, cache.EntitySeries, title, year, "series")
	if err != nil || payload == nil {
		return nil, err
	}
	// Series years come back as a range ("2013–2016"); keep the start.
	return []Series{{ID: payload.IMDBID, Name: payload.Title, Year: yearOf(payload.Year)}}, nil
}

// SearchMovie looks up a movie by exact title.
func (c *OMDb) SearchMovie(ctx context.Context, title string, year int) ([]Movie, error) {
	payload, err := c.lookupTitle(ctx, cache.EntityMovie, title, year, "movie")
	if err != nil || payload == nil {
		return nil, err
	}
	movieYear, _ := strconv.Atoi(payload.Year)
	return []Movie{{ID: payload.IMDBID, Title: payload.Title, Year: movieYear}}, nil
}

func (c *OMDb) lookupTitle(ctx context.Context, entity cache.Entity, title string, year int, kind string) (*omdbTitleResponse, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title must not be empty")
	}
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("t", title)
	params.Set("type", kind)
	if year > 0 {
		params.Set("y", strconv.Itoa(year))
	}
	endpoint := c.baseURL + "/?" + params.Encode()

	var payload omdbTitleResponse
	notFound, err := c.getJSON(ctx, entity, endpoint, nil, &payload)
	if err != nil || notFound {
		return nil, err
	}
	// OMDb reports misses in-band with Response == "False".
	if !strings.EqualFold(payload.Response, "True") {
		return nil, nil
	}
	return &payload, nil
}

// SeriesEpisodes fetches one season of episodes for a series. The
// series id is the imdb id returned by SearchSeries.
func (c *OMDb) SeriesEpisodes(ctx context.Context, seriesID string, season int) ([]media.ProviderEpisode, error) {
	seriesID = strings.TrimSpace(seriesID)
	if seriesID == "" {
		return nil, errors.New("series id must not be empty")
	}
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("i", seriesID)
	params.Set("Season", strconv.Itoa(season))
	endpoint := c.baseURL + "/?" + params.Encode()

	var payload omdbSeasonResponse
	notFound, err := c.getJSON(ctx, cache.EntityEpisode, endpoint, nil, &payload)
	if err != nil || notFound {
		return nil, err
	}
	if !strings.EqualFold(payload.Response, "True") {
		return nil, nil
	}

	episodes := make([]media.ProviderEpisode, 0, len(payload.Episodes))
	for _, episode := range payload.Episodes {
		number, err := strconv.Atoi(episode.Episode)
		if err != nil {
			return nil, fmt.Errorf("parse omdb episode number %q: %w", episode.Episode, err)
		}
		episodes = append(episodes, media.ProviderEpisode{
			ID:     episode.IMDBID,
			Name:   episode.Title,
			Season: season,
			Number: number,
		})
	}
	return episodes, nil
}
