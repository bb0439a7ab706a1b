// Package cache provides a SQLite-backed response cache for metadata
// provider lookups. Entries are keyed by a sha256 digest over the
// provider name and request parameters and expire on a per-entity TTL.
package cache
