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

// TVMaze is a client for the TVMaze API. No API key is required, which
// makes it the last resort of the TV fallback chain.
type TVMaze struct {
	core
	baseURL string
}

var _ SeriesProvider = (*TVMaze)(nil)

// TVMazeOption configures a TVMaze client.
type TVMazeOption func(*TVMaze)

// WithTVMazeHTTPClient overrides the default HTTP client.
func WithTVMazeHTTPClient(client *http.Client) TVMazeOption {
	return func(c *TVMaze) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTVMazeCache attaches a response cache.
func WithTVMazeCache(store *cache.Store) TVMazeOption {
	return func(c *TVMaze) {
		c.store = store
	}
}

// NewTVMaze creates a TVMaze client.
func NewTVMaze(baseURL string, opts ...TVMazeOption) (*TVMaze, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tvmaze base url required")
	}
	client := &TVMaze{
		core:    newCore(string(media.ProviderTVMaze)),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Name identifies the provider in source refs and warnings.
func (c *TVMaze) Name() media.ProviderName {
	return media.ProviderTVMaze
}

type tvmazeSearchResult struct {
	Show struct {
		ID        int64  `json:"id"`
		Name      string `json:"name"`
		Premiered string `json:"premiered"`
	} `json:"show"`
}

type tvmazeEpisode struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Season int    `json:"season"`
	Number int    `json:"number"`
}

// SearchSeries searches TVMaze for shows matching title. TVMaze search
// has no year parameter; year filtering happens locally.
func (c *TVMaze) SearchSeries(ctx context.Context, title string, year int) ([]Series, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title must not be empty")
	}
	params := url.Values{}
	params.Set("q", title)
	endpoint := c.baseURL + "/search/shows?" + params.Encode()

	var payload []tvmazeSearchResult
	notFound, err := c.getJSON(ctx, cache.EntitySeries, endpoint, nil, &payload)
	if err != nil || notFound {
		return nil, err
	}

	series := make([]Series, 0, len(payload))
	for _, result := range payload {
		premiered := yearOf(result.Show.Premiered)
		if year > 0 && premiered > 0 && premiered != year {
			continue
		}
		series = append(series, Series{
			ID:   strconv.FormatInt(result.Show.ID, 10),
			Name: result.Show.Name,
			Year: premiered,
		})
	}
	return series, nil
}

// SeriesEpisodes fetches all episodes for a show, filtered to the
// requested season when season >= 0.
func (c *TVMaze) SeriesEpisodes(ctx context.Context, seriesID string, season int) ([]media.ProviderEpisode, error) {
	seriesID = strings.TrimSpace(seriesID)
	if seriesID == "" {
		return nil, errors.New("series id must not be empty")
	}
	endpoint := fmt.Sprintf("%s/shows/%s/episodes", c.baseURL, url.PathEscape(seriesID))

	var payload []tvmazeEpisode
	notFound, err := c.getJSON(ctx, cache.EntityEpisode, endpoint, nil, &payload)
	if err != nil || notFound {
		return nil, err
	}

	episodes := make([]media.ProviderEpisode, 0, len(payload))
	for _, episode := range payload {
		if season >= 0 && episode.Season != season {
			continue
		}
		episodes = append(episodes, media.ProviderEpisode{
			ID:     strconv.FormatInt(episode.ID, 10),
			Name:   episode.Name,
			Season: episode.Season,
			Number: episode.Number,
		})
	}
	return episodes, nil
}
