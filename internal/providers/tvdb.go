package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"namegnome/internal/media"
	"namegnome/internal/providers/cache"
)

// TVDB is a client for TheTVDB v4 API. The API requires a bearer token
// obtained by exchanging the configured key at /login; the token is
// fetched lazily and reused for the life of the client.
type TVDB struct {
	core
	apiKey  string
	baseURL string

	tokenMu sync.Mutex
	token   string
}

var _ SeriesProvider = (*TVDB)(nil)

// TVDBOption configures a TVDB client.
type TVDBOption func(*TVDB)

// WithTVDBHTTPClient overrides the default HTTP client.
func WithTVDBHTTPClient(client *http.Client) TVDBOption {
	return func(c *TVDB) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTVDBCache attaches a response cache.
func WithTVDBCache(store *cache.Store) TVDBOption {
	return func(c *TVDB) {
		c.store = store
	}
}

// NewTVDB creates a TVDB client.
func NewTVDB(apiKey, baseURL string, opts ...TVDBOption) (*TVDB, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tvdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tvdb base url required")
	}
	client := &TVDB{
		core:    newCore(string(media.ProviderTVDB)),
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Name identifies the provider in source refs and warnings.
func (c *TVDB) Name() media.ProviderName {
	return media.ProviderTVDB
}

func (c *TVDB) bearerToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.token != "" {
		return c.token, nil
	}

	payload, err := json.Marshal(map[string]string{"apikey": c.apiKey})
	if err != nil {
		return "", fmt.Errorf("encode login payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", unavailable(c.provider, "login failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", unavailable(c.provider, "login returned %d", resp.StatusCode)
	}

	var decoded struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if decoded.Data.Token == "" {
		return "", unavailable(c.provider, "login returned empty token")
	}
	c.token = decoded.Data.Token
	return c.token, nil
}

func (c *TVDB) authHeader(ctx context.Context) (http.Header, error) {
	token, err := c.bearerToken(ctx)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	return header, nil
}

type tvdbSearchResponse struct {
	Data []struct {
		TVDBID string `json:"tvdb_id"`
		Name   string `json:"name"`
		Year   string `json:"year"`
	} `json:"data"`
}

type tvdbEpisodesResponse struct {
	Data struct {
		Episodes []struct {
			ID           int64  `json:"id"`
			Name         string `json:"name"`
			SeasonNumber int    `json:"seasonNumber"`
			Number       int    `json:"number"`
		} `json:"episodes"`
	} `json:"data"`
}

// SearchSeries searches TheTVDB for series matching title.
func (c *TVDB) SearchSeries(ctx context.Context, title string, year int) ([]Series, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title must not be empty")
	}
	header, err := c.authHeader(ctx)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("query", title)
	params.Set("type", "series")
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}
	endpoint := c.baseURL + "/search?" + params.Encode()

	var payload tvdbSearchResponse
	notFound, err := c.getJSON(ctx, cache.EntitySeries, endpoint, header, &payload)
	if err != nil || notFound {
		return nil, err
	}

	series := make([]Series, 0, len(payload.Data))
	for _, result := range payload.Data {
		seriesYear, _ := strconv.Atoi(result.Year)
		series = append(series, Series{
			ID:   result.TVDBID,
			Name: result.Name,
			Year: seriesYear,
		})
	}
	return series, nil
}

// SeriesEpisodes fetches the default-order episode list for a series,
// filtered to the requested season when season >= 0.
func (c *TVDB) SeriesEpisodes(ctx context.Context, seriesID string, season int) ([]media.ProviderEpisode, error) {
	seriesID = strings.TrimSpace(seriesID)
	if seriesID == "" {
		return nil, errors.New("series id must not be empty")
	}
	header, err := c.authHeader(ctx)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/series/%s/episodes/default?page=0", c.baseURL, url.PathEscape(seriesID))

	var payload tvdbEpisodesResponse
	notFound, err := c.getJSON(ctx, cache.EntityEpisode, endpoint, header, &payload)
	if err != nil || notFound {
		return nil, err
	}

	episodes := make([]media.ProviderEpisode, 0, len(payload.Data.Episodes))
	for _, episode := range payload.Data.Episodes {
		if season >= 0 && episode.SeasonNumber != season {
			continue
		}
		episodes = append(episodes, media.ProviderEpisode{
			ID:     strconv.FormatInt(episode.ID, 10),
			Name:   episode.Name,
			Season: episode.SeasonNumber,
			Number: episode.Number,
		})
	}
	return episodes, nil
}
