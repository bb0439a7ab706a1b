package providers

import (
	"context"

	"namegnome/internal/media"
)

// Series is a normalized series search match.
type Series struct {
	ID   string
	Name string
	Year int
}

// Movie is a normalized movie search match.
type Movie struct {
	ID    string
	Title string
	Year  int
}

// Recording is a normalized music track match.
type Recording struct {
	ID     string
	Title  string
	Artist string
	Album  string
	Track  int
	Year   int
}

// SeriesProvider looks up TV series and their episode lists.
type SeriesProvider interface {
	Name() media.ProviderName
	SearchSeries(ctx context.Context, title string, year int) ([]Series, error)
	SeriesEpisodes(ctx context.Context, seriesID string, season int) ([]media.ProviderEpisode, error)
}

// MovieProvider looks up movies by title and optional year.
type MovieProvider interface {
	Name() media.ProviderName
	SearchMovie(ctx context.Context, title string, year int) ([]Movie, error)
}

// MusicProvider looks up music recordings by artist and title.
type MusicProvider interface {
	Name() media.ProviderName
	SearchTrack(ctx context.Context, artist, title string) ([]Recording, error)
}
