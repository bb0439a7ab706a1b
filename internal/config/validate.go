package config

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError aggregates the individual problems found in a config.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

var validCollisions = map[string]bool{"backup": true, "overwrite": true, "skip": true}
var validModes = map[string]bool{"transactional": true, "continue_on_error": true, "dry_run": true}
var validFormats = map[string]bool{"console": true, "json": true}

// Validate checks the configuration for problems that would surface later
// as confusing runtime failures.
func (c *Config) Validate() error {
	var problems []string

	if c.Cache.Path == "" {
		problems = append(problems, "cache.path must not be empty")
	}
	if c.Cache.DefaultTTLSeconds <= 0 {
		problems = append(problems, "cache.default_ttl_seconds must be positive")
	}
	if !validCollisions[c.Apply.OnCollision] {
		problems = append(problems, fmt.Sprintf("apply.on_collision must be backup, overwrite, or skip (got %q)", c.Apply.OnCollision))
	}
	if !validModes[c.Apply.Mode] {
		problems = append(problems, fmt.Sprintf("apply.mode must be transactional, continue_on_error, or dry_run (got %q)", c.Apply.Mode))
	}
	if !validFormats[c.Logging.Format] {
		problems = append(problems, fmt.Sprintf("logging.format must be console or json (got %q)", c.Logging.Format))
	}
	if c.LLM.TimeoutSeconds <= 0 {
		problems = append(problems, "llm.timeout_seconds must be positive")
	}
	for name, baseURL := range map[string]string{
		"tmdb.base_url":        c.TMDB.BaseURL,
		"tvdb.base_url":        c.TVDB.BaseURL,
		"omdb.base_url":        c.OMDb.BaseURL,
		"tvmaze.base_url":      c.TVMaze.BaseURL,
		"musicbrainz.base_url": c.MusicBrainz.BaseURL,
		"theaudiodb.base_url":  c.TheAudioDB.BaseURL,
		"llm.base_url":         c.LLM.BaseURL,
	} {
		if baseURL == "" {
			problems = append(problems, name+" must not be empty")
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// AsValidationError unwraps err into a *ValidationError when possible.
func AsValidationError(err error) (*ValidationError, bool) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr, true
	}
	return nil, false
}
