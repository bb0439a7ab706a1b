package main

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"namegnome/internal/config"
	"namegnome/internal/llm"
	"namegnome/internal/logging"
	"namegnome/internal/providers"
	"namegnome/internal/providers/cache"
	"namegnome/internal/resolve"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.New(logging.Options{
			Level:       cfg.Logging.Level,
			Format:      cfg.Logging.Format,
			OutputPaths: cfg.Logging.OutputPaths,
		})
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

// openCache opens the provider response cache. A nil store is a valid
// result: providers then hit the network on every call.
func (c *commandContext) openCache() (*cache.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Cache.Path) == "" {
		return nil, nil
	}
	return cache.Open(cfg.Cache.Path, time.Duration(cfg.Cache.DefaultTTLSeconds)*time.Second)
}

// buildPlanEngine wires provider chains, the model client, and the
// episode candidate fetcher from configuration. Providers without a
// configured key stay out of their chain; the chain order itself is
// fixed.
func (c *commandContext) buildPlanEngine(store *cache.Store) (*resolve.PlanEngine, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	var tv []providers.SeriesProvider
	var movie []providers.MovieProvider
	var music []providers.MusicProvider

	var tvdb *providers.TVDB
	if cfg.TVDB.APIKey != "" {
		tvdb, err = providers.NewTVDB(cfg.TVDB.APIKey, cfg.TVDB.BaseURL, providers.WithTVDBCache(store))
		if err != nil {
			return nil, err
		}
		tv = append(tv, tvdb)
	}

	var tmdb *providers.TMDB
	if cfg.TMDB.APIKey != "" {
		tmdb, err = providers.NewTMDB(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language, providers.WithTMDBCache(store))
		if err != nil {
			return nil, err
		}
		tv = append(tv, tmdb)
		movie = append(movie, tmdb)
	}

	if cfg.OMDb.APIKey != "" {
		omdb, err := providers.NewOMDb(cfg.OMDb.APIKey, cfg.OMDb.BaseURL, providers.WithOMDbCache(store))
		if err != nil {
			return nil, err
		}
		tv = append(tv, omdb)
		movie = append(movie, omdb)
	}

	tvmaze, err := providers.NewTVMaze(cfg.TVMaze.BaseURL, providers.WithTVMazeCache(store))
	if err != nil {
		return nil, err
	}
	tv = append(tv, tvmaze)

	musicbrainz, err := providers.NewMusicBrainz(cfg.MusicBrainz.BaseURL, cfg.MusicBrainz.UserAgent, providers.WithMusicBrainzCache(store))
	if err != nil {
		return nil, err
	}
	music = append(music, musicbrainz)

	if cfg.TheAudioDB.APIKey != "" {
		theaudiodb, err := providers.NewTheAudioDB(cfg.TheAudioDB.APIKey, cfg.TheAudioDB.BaseURL, providers.WithTheAudioDBCache(store))
		if err != nil {
			return nil, err
		}
		music = append(music, theaudiodb)
	}

	deterministic := resolve.NewDeterministicResolver(tv, movie, music, logger)

	var fuzzy *resolve.FuzzyResolver
	if cfg.LLM.APIKey != "" {
		client := llm.NewClient(llm.Config{
			APIKey:         cfg.LLM.APIKey,
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			Referer:        cfg.LLM.Referer,
			Title:          cfg.LLM.Title,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		})
		fuzzy = resolve.NewFuzzyResolver(client)
	}

	var fetcher *resolve.EpisodeCandidateFetcher
	if len(tv) > 0 {
		fetcher = &resolve.EpisodeCandidateFetcher{Provider: tv[0]}
	}

	return resolve.NewPlanEngine(deterministic, fuzzy, fetcher, logger), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
