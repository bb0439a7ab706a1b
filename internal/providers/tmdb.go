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

// TMDB is a client for The Movie Database. It serves both the TV and
// movie fallback chains.
type TMDB struct {
	core
	apiKey   string
	baseURL  string
	language string
}

var (
	_ SeriesProvider = (*TMDB)(nil)
	_ MovieProvider  = (*TMDB)(nil)
)

// TMDBOption configures a TMDB client.
type TMDBOption func(*TMDB)

// WithTMDBHTTPClient overrides the default HTTP client.
func WithTMDBHTTPClient(client *http.Client) TMDBOption {
	return func(c *TMDB) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTMDBCache attaches a response cache.
func WithTMDBCache(store *cache.Store) TMDBOption {
	return func(c *TMDB) {
		c.store = store
	}
}

// NewTMDB creates a TMDB client.
func NewTMDB(apiKey, baseURL, language string, opts ...TMDBOption) (*TMDB, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	client := &TMDB{
		core:     newCore(string(media.ProviderTMDB)),
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: strings.TrimSpace(language),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Name identifies the provider in source refs and warnings.
func (c *TMDB) Name() media.ProviderName {
	return media.ProviderTMDB
}

type tmdbSearchResponse struct {
	Results []struct {
		ID           int64  `json:"id"`
		Title        string `json:"title"`
		Name         string `json:"name"`
		ReleaseDate  string `json:"release_date"`
		FirstAirDate string `json:"first_air_date"`
	} `json:"results"`
}

type tmdbSeasonResponse struct {
	Episodes []struct {
		ID            int64  `json:"id"`
		Name          string `json:"name"`
		SeasonNumber  int    `json:"season_number"`
		EpisodeNumber int    `json:"episode_number"`
	} `json:"episodes"`
}

// SearchSeries searches TMDB for TV series matching title.
func (c *TMDB) SearchSeries(ctx context.Context, title string, year int) ([]Series, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title must not be empty")
	}
	params := c.baseParams()
	params.Set("query", title)
	if year > 0 {
		params.Set("first_air_date_year", strconv.Itoa(year))
	}
	endpoint := c.baseURL + "/search/tv?" + params.Encode()

	var payload tmdbSearchResponse
	notFound, err := c.getJSON(ctx, cache.EntitySeries, endpoint, nil, &payload)
	if err != nil || notFound {
		return nil, err
	}

	series := make([]Series, 0, len(payload.Results))
	for _, result := range payload.Results {
		series = append(series, Series{
			ID:   strconv.FormatInt(result.ID, 10),
			Name: result.Name,
			Year: yearOf(result.FirstAirDate),
		})
	}
	return series, nil
}

// SeriesEpisodes fetches the episode list for one season of a series.
func (c *TMDB) SeriesEpisodes(ctx context.Context, seriesID string, season int) ([]media.ProviderEpisode, error) {
	id, err := strconv.ParseInt(seriesID, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid tmdb series id %q", seriesID)
	}
	if season < 0 {
		return nil, errors.New("season must not be negative")
	}
	endpoint := fmt.Sprintf("%s/tv/%d/season/%d?%s", c.baseURL, id, season, c.baseParams().Encode())

	var payload tmdbSeasonResponse
	notFound, err := c.getJSON(ctx, cache.EntityEpisode, endpoint, nil, &payload)
	if err != nil || notFound {
		return nil, err
	}

	episodes := make([]media.ProviderEpisode, 0, len(payload.Episodes))
	for _, episode := range payload.Episodes {
		episodes = append(episodes, media.ProviderEpisode{
			ID:     strconv.FormatInt(episode.ID, 10),
			Name:   episode.Name,
			Season: episode.SeasonNumber,
			Number: episode.EpisodeNumber,
		})
	}
	return episodes, nil
}

// SearchMovie searches TMDB for movies matching title.
func (c *TMDB) SearchMovie(ctx context.Context, title string, year int) ([]Movie, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title must not be empty")
	}
	params := c.baseParams()
	params.Set("query", title)
	if year > 0 {
		params.Set("primary_release_year", strconv.Itoa(year))
	}
	endpoint := c.baseURL + "/search/movie?" + params.Encode()

	var payload tmdbSearchResponse
	notFound, err := c.getJSON(ctx, cache.EntityMovie, endpoint, nil, &payload)
	if err != nil || notFound {
		return nil, err
	}

	movies := make([]Movie, 0, len(payload.Results))
	for _, result := range payload.Results {
		movies = append(movies, Movie{
			ID:    strconv.FormatInt(result.ID, 10),
			Title: result.Title,
			Year:  yearOf(result.ReleaseDate),
		})
	}
	return movies, nil
}

func (c *TMDB) baseParams() url.Values {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}
	return params
}

// yearOf extracts the year from a YYYY-MM-DD date string.
func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}
