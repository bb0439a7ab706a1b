// Package providers contains the metadata provider boundary: typed
// interfaces for series, movie, and music lookups, the shared HTTP
// plumbing (rate limiting, retry with backoff, response caching), and
// concrete clients for TMDB, TVDB, TVMaze, OMDb, MusicBrainz, and
// TheAudioDB.
package providers
