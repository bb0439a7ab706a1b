// Package config loads and validates namegnome's TOML configuration.
//
// Configuration covers metadata provider credentials, the LLM connection
// used for anthology resolution, the provider response cache, apply
// defaults, and logging. Paths support ~ expansion and all values have
// repository defaults so a minimal config only needs API keys.
package config
