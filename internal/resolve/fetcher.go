package resolve

import (
	"context"
	"sort"
	"strings"

	"namegnome/internal/media"
	"namegnome/internal/providers"
)

// EpisodeCandidateFetcher collects the provider episode list a fuzzy
// resolution needs: one series lookup, one episode fetch, normalized.
type EpisodeCandidateFetcher struct {
	Provider providers.SeriesProvider
}

// Fetch returns deduplicated episode candidates sorted by (season,
// episode) for the record's series, filtered to the parsed season when
// one is known. A missing title or series yields an empty list.
func (f *EpisodeCandidateFetcher) Fetch(ctx context.Context, record media.MediaRecord) ([]media.ProviderEpisode, error) {
	if f == nil || f.Provider == nil || strings.TrimSpace(record.ParsedTitle) == "" {
		return nil, nil
	}

	candidates, err := f.Provider.SearchSeries(ctx, record.ParsedTitle, 0)
	if err != nil {
		return nil, err
	}
	series, ok := pickSeries(candidates, record.ParsedYear)
	if !ok {
		return nil, nil
	}

	season := -1
	if record.ParsedSeason > 0 {
		season = record.ParsedSeason
	}
	episodes, err := f.Provider.SeriesEpisodes(ctx, series.ID, season)
	if err != nil {
		return nil, err
	}
	return PrepareCandidates(episodes), nil
}

// pickSeries prefers the first exact year match, then the first result.
func pickSeries(candidates []providers.Series, year int) (providers.Series, bool) {
	if len(candidates) == 0 {
		return providers.Series{}, false
	}
	if year > 0 {
		for _, candidate := range candidates {
			if candidate.Year == year {
				return candidate, true
			}
		}
	}
	return candidates[0], true
}

// PrepareCandidates deduplicates episodes by id and sorts them by
// (season, episode), the shape the model prompt expects.
func PrepareCandidates(episodes []media.ProviderEpisode) []media.ProviderEpisode {
	seen := make(map[string]struct{}, len(episodes))
	cleaned := make([]media.ProviderEpisode, 0, len(episodes))
	for _, episode := range episodes {
		if episode.ID != "" {
			if _, dup := seen[episode.ID]; dup {
				continue
			}
			seen[episode.ID] = struct{}{}
		}
		cleaned = append(cleaned, episode)
	}
	sort.SliceStable(cleaned, func(i, j int) bool {
		if cleaned[i].Season != cleaned[j].Season {
			return cleaned[i].Season < cleaned[j].Season
		}
		return cleaned[i].Number < cleaned[j].Number
	})
	return cleaned
}
