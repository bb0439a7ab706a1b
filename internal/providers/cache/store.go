package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; users clear the cache database after a mismatch.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Entity names the kind of payload stored, which selects the TTL.
type Entity string

const (
	EntitySeries  Entity = "series"
	EntityEpisode Entity = "episode"
	EntityMovie   Entity = "movie"
	EntityAlbum   Entity = "album"
	EntityTrack   Entity = "track"
)

// Store is a provider response cache backed by SQLite.
type Store struct {
	db         *sql.DB
	path       string
	defaultTTL time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// Open initializes or connects to the cache database at path.
func Open(path string, defaultTTL time.Duration) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("cache path required")
	}
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, defaultTTL: defaultTTL}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		return nil
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (run 'namegnome cache clear' or delete the database)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

// Key derives a stable cache key from the provider name and request parts.
func Key(provider string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(provider))
	for _, part := range parts {
		h.Write([]byte{0})
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// TTL returns the retention period for an entity type.
func (s *Store) TTL(entity Entity) time.Duration {
	switch entity {
	case EntitySeries, EntityMovie:
		return 24 * time.Hour
	case EntityEpisode, EntityAlbum, EntityTrack:
		return 12 * time.Hour
	default:
		return s.defaultTTL
	}
}

// Get returns the cached payload for key, or ok=false when missing or expired.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM provider_cache WHERE key = ? AND expires_at > ?",
		key, now,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		s.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	s.hits.Add(1)
	return payload, true, nil
}

// Put stores payload under key with the TTL for entity.
func (s *Store) Put(ctx context.Context, key, provider string, entity Entity, payload []byte) error {
	return s.PutWithTTL(ctx, key, provider, entity, payload, s.TTL(entity))
}

// PutWithTTL stores payload under key with an explicit retention period.
func (s *Store) PutWithTTL(ctx context.Context, key, provider string, entity Entity, payload []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO provider_cache (key, provider, entity, payload, created_at, expires_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET
            payload = excluded.payload,
            created_at = excluded.created_at,
            expires_at = excluded.expires_at`,
		key, provider, string(entity), payload,
		now.Format(time.RFC3339Nano),
		now.Add(ttl).Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Stats summarizes cache contents and session hit rates.
type Stats struct {
	Path    string `json:"path"`
	Entries int64  `json:"entries"`
	Expired int64  `json:"expired"`
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
}

// Stats reports entry counts and session hit/miss counters.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		Path:   s.path,
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM provider_cache").Scan(&stats.Entries); err != nil {
		return Stats{}, fmt.Errorf("count cache entries: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM provider_cache WHERE expires_at <= ?", now,
	).Scan(&stats.Expired); err != nil {
		return Stats{}, fmt.Errorf("count expired entries: %w", err)
	}
	return stats, nil
}

// Cleanup removes expired entries and reports how many were deleted.
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, "DELETE FROM provider_cache WHERE expires_at <= ?", now)
	if err != nil {
		return 0, fmt.Errorf("delete expired entries: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count removed entries: %w", err)
	}
	return removed, nil
}

// Clear removes all entries.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM provider_cache"); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}
