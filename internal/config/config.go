package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// TMDB contains configuration for The Movie Database API.
type TMDB struct {
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
	Language string `toml:"language"`
}

// TVDB contains configuration for TheTVDB API.
type TVDB struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// OMDb contains configuration for the OMDb API. Optional; the TV and
// movie fallback chains skip OMDb when no key is configured.
type OMDb struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// TVMaze contains configuration for the TVMaze API (no key required).
type TVMaze struct {
	BaseURL string `toml:"base_url"`
}

// MusicBrainz contains configuration for the MusicBrainz API.
type MusicBrainz struct {
	BaseURL   string `toml:"base_url"`
	UserAgent string `toml:"user_agent"`
}

// TheAudioDB contains configuration for TheAudioDB API. Optional; the
// music fallback chain skips it when no key is configured.
type TheAudioDB struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// LLM contains the connection settings for the fuzzy anthology resolver.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Cache contains configuration for the provider response cache.
type Cache struct {
	Path              string `toml:"path"`
	DefaultTTLSeconds int    `toml:"default_ttl_seconds"`
}

// Apply contains defaults for the apply engine.
type Apply struct {
	OnCollision string `toml:"on_collision"`
	Mode        string `toml:"mode"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format      string   `toml:"format"`
	Level       string   `toml:"level"`
	OutputPaths []string `toml:"output_paths"`
}

// Config encapsulates all configuration values for namegnome.
type Config struct {
	TMDB        TMDB        `toml:"tmdb"`
	TVDB        TVDB        `toml:"tvdb"`
	OMDb        OMDb        `toml:"omdb"`
	TVMaze      TVMaze      `toml:"tvmaze"`
	MusicBrainz MusicBrainz `toml:"musicbrainz"`
	TheAudioDB  TheAudioDB  `toml:"theaudiodb"`
	LLM         LLM         `toml:"llm"`
	Cache       Cache       `toml:"cache"`
	Apply       Apply       `toml:"apply"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/namegnome/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded. A missing file yields defaults.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Cache.Path, err = expandPath(c.Cache.Path); err != nil {
		return fmt.Errorf("cache.path: %w", err)
	}
	c.Apply.OnCollision = strings.ToLower(strings.TrimSpace(c.Apply.OnCollision))
	c.Apply.Mode = strings.ToLower(strings.TrimSpace(c.Apply.Mode))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	for _, section := range []*string{
		&c.TMDB.APIKey, &c.TVDB.APIKey, &c.OMDb.APIKey, &c.TheAudioDB.APIKey, &c.LLM.APIKey,
	} {
		*section = strings.TrimSpace(*section)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	trimmed := strings.TrimSpace(pathValue)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Abs(trimmed)
}

// ExpandPath expands ~ and returns an absolute path.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the embedded sample configuration to path.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}
