package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"namegnome/internal/anthology"
	"namegnome/internal/logging"
	"namegnome/internal/media"
	"namegnome/internal/providers"
	"namegnome/internal/textutil"
)

// rankConfidences are the fixed scores by chain position: primary
// provider, first fallback, second, third.
var rankConfidences = [...]float64{1.0, 0.85, 0.7, 0.6}

func rankConfidence(position int) float64 {
	if position >= len(rankConfidences) {
		return rankConfidences[len(rankConfidences)-1]
	}
	return rankConfidences[position]
}

// displayNames maps provider identifiers to the casing used in warnings.
var displayNames = map[media.ProviderName]string{
	media.ProviderTMDB:        "TMDB",
	media.ProviderTVDB:        "TVDB",
	media.ProviderTVMaze:      "TVMaze",
	media.ProviderOMDb:        "OMDb",
	media.ProviderMusicBrainz: "MusicBrainz",
	media.ProviderTheAudioDB:  "TheAudioDB",
	media.ProviderAniList:     "AniList",
}

func displayName(name media.ProviderName) string {
	if display, ok := displayNames[name]; ok {
		return display
	}
	return string(name)
}

// searchTitle returns the parsed title, falling back to a title derived
// from the filename when the scanner could not parse one.
func searchTitle(record media.MediaRecord) string {
	if title := strings.TrimSpace(record.ParsedTitle); title != "" {
		return title
	}
	return textutil.DeriveTitle(record.Path)
}

// DeterministicResolver walks fixed provider fallback chains and
// returns the first single unambiguous match per record. Provider
// failures become warnings on the winning item, never errors.
type DeterministicResolver struct {
	tv     []providers.SeriesProvider
	movie  []providers.MovieProvider
	music  []providers.MusicProvider
	logger *slog.Logger
}

// NewDeterministicResolver builds a resolver over ordered provider
// chains. Chains may be shorter when optional providers are not
// configured; rank confidences follow chain position.
func NewDeterministicResolver(
	tv []providers.SeriesProvider,
	movie []providers.MovieProvider,
	music []providers.MusicProvider,
	logger *slog.Logger,
) *DeterministicResolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &DeterministicResolver{
		tv:     tv,
		movie:  movie,
		music:  music,
		logger: logging.NewComponentLogger(logger, "resolver"),
	}
}

// Resolve maps a record to a single plan item, or nil when no provider
// produced an unambiguous match.
func (r *DeterministicResolver) Resolve(ctx context.Context, record media.MediaRecord, mediaType media.MediaType) (*media.PlanItem, error) {
	switch mediaType {
	case media.TypeTV:
		return r.resolveTV(ctx, record)
	case media.TypeMovie:
		return r.resolveMovie(ctx, record)
	case media.TypeMusic:
		return r.resolveMusic(ctx, record)
	default:
		return nil, nil
	}
}

type seriesMatch struct {
	series     providers.Series
	provider   providers.SeriesProvider
	confidence float64
	warnings   []string
}

// findSeries walks the TV chain until one provider yields exactly one
// plausible series. Failures and ambiguity turn into warnings.
func (r *DeterministicResolver) findSeries(ctx context.Context, record media.MediaRecord) (*seriesMatch, []string, error) {
	var warnings []string

	for position, provider := range r.tv {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		name := displayName(provider.Name())

		results, err := provider.SearchSeries(ctx, searchTitle(record), record.ParsedYear)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s failed: %v", name, err))
			r.logger.Debug("series lookup failed",
				logging.String(logging.FieldProvider, string(provider.Name())),
				logging.Error(err))
			continue
		}
		series, reason := selectSeries(results, record.ParsedYear)
		if reason != "" {
			warnings = append(warnings, fmt.Sprintf("%s failed: %s", name, reason))
			continue
		}
		return &seriesMatch{
			series:     series,
			provider:   provider,
			confidence: rankConfidence(position),
		}, warnings, nil
	}
	return nil, warnings, nil
}

// selectSeries picks the single plausible candidate: the unique exact
// year match when a year is known, otherwise the sole result. Anything
// else is ambiguous.
func selectSeries(results []providers.Series, year int) (providers.Series, string) {
	switch {
	case len(results) == 0:
		return providers.Series{}, "no results"
	case len(results) == 1:
		return results[0], ""
	}
	if year > 0 {
		var matched []providers.Series
		for _, candidate := range results {
			if candidate.Year == year {
				matched = append(matched, candidate)
			}
		}
		if len(matched) == 1 {
			return matched[0], ""
		}
	}
	return providers.Series{}, fmt.Sprintf("ambiguous results (%d matches)", len(results))
}

func (r *DeterministicResolver) resolveTV(ctx context.Context, record media.MediaRecord) (*media.PlanItem, error) {
	if searchTitle(record) == "" {
		return nil, nil
	}
	// Without a parsed SxxEyy there is no deterministic destination;
	// the record stays unresolved so the model fallback can take it.
	if record.ParsedSeason <= 0 || record.ParsedEpisode <= 0 {
		return nil, nil
	}

	match, warnings, err := r.findSeries(ctx, record)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, nil
	}

	season := record.ParsedSeason
	episode := record.ParsedEpisode
	title := ""
	episodes, err := match.provider.SeriesEpisodes(ctx, match.series.ID, season)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("%s failed: episode lookup: %v", displayName(match.provider.Name()), err))
	} else {
		for _, candidate := range episodes {
			if candidate.Number == episode {
				title = candidate.Name
				break
			}
		}
	}

	show := match.series.Name
	if show == "" {
		show = searchTitle(record)
	}
	source, err := media.NewSourceRef(match.provider.Name(), match.series.ID)
	if err != nil {
		return nil, err
	}
	item, err := media.NewPlanItem(
		record.Path,
		TVPath(show, season, episode, episode, title, filepath.Ext(record.Path)),
		fmt.Sprintf("%s matched %q S%02dE%02d", displayName(match.provider.Name()), show, season, episode),
		match.confidence,
		[]media.SourceRef{source},
		append(warnings, match.warnings...),
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ResolveAnthology handles the anthology fast path: one plan item per
// simplified segment, skipping the model entirely. It returns nil when
// the record is not an anthology candidate or the simplifier punts.
func (r *DeterministicResolver) ResolveAnthology(ctx context.Context, record media.MediaRecord) ([]media.PlanItem, error) {
	if !record.AnthologyCandidate || record.ParsedSeason <= 0 || len(record.Segments) == 0 {
		return nil, nil
	}
	if searchTitle(record) == "" {
		return nil, nil
	}

	match, warnings, err := r.findSeries(ctx, record)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, nil
	}

	episodes, err := match.provider.SeriesEpisodes(ctx, match.series.ID, record.ParsedSeason)
	if err != nil || len(episodes) == 0 {
		return nil, nil
	}

	result := anthology.Simplify(record, episodes)
	if result.PuntToLLM || result.Confidence < 0.9 {
		return nil, nil
	}

	titlesByNumber := make(map[int]string, len(episodes))
	for _, candidate := range episodes {
		titlesByNumber[candidate.Number] = candidate.Name
	}

	show := match.series.Name
	if show == "" {
		show = searchTitle(record)
	}
	source, err := media.NewSourceRef(match.provider.Name(), match.series.ID)
	if err != nil {
		return nil, err
	}
	confidence := match.confidence
	if result.Confidence < confidence {
		confidence = result.Confidence
	}

	items := make([]media.PlanItem, 0, len(result.Segments))
	for _, segment := range result.Segments {
		if segment.Start == nil || segment.End == nil {
			continue
		}
		start, end := *segment.Start, *segment.End
		var titles []string
		for number := start; number <= end; number++ {
			if title := titlesByNumber[number]; title != "" {
				titles = append(titles, title)
			}
		}
		item, err := media.NewPlanItem(
			record.Path,
			TVPath(show, record.ParsedSeason, start, end, strings.Join(titles, " & "), filepath.Ext(record.Path)),
			fmt.Sprintf("%s matched %q anthology span S%02dE%02d-E%02d", displayName(match.provider.Name()), show, record.ParsedSeason, start, end),
			confidence,
			[]media.SourceRef{source},
			append(append([]string(nil), warnings...), result.Warnings...),
		)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items, nil
}

func (r *DeterministicResolver) resolveMovie(ctx context.Context, record media.MediaRecord) (*media.PlanItem, error) {
	query := searchTitle(record)
	if query == "" {
		return nil, nil
	}

	var warnings []string
	for position, provider := range r.movie {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := displayName(provider.Name())

		results, err := provider.SearchMovie(ctx, query, record.ParsedYear)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s failed: %v", name, err))
			r.logger.Debug("movie lookup failed",
				logging.String(logging.FieldProvider, string(provider.Name())),
				logging.Error(err))
			continue
		}
		movie, reason := selectMovie(results, record.ParsedYear)
		if reason != "" {
			warnings = append(warnings, fmt.Sprintf("%s failed: %s", name, reason))
			continue
		}

		title := movie.Title
		if title == "" {
			title = query
		}
		year := movie.Year
		if year == 0 {
			year = record.ParsedYear
		}
		source, err := media.NewSourceRef(provider.Name(), movie.ID)
		if err != nil {
			return nil, err
		}
		item, err := media.NewPlanItem(
			record.Path,
			MoviePath(title, year, filepath.Ext(record.Path)),
			fmt.Sprintf("%s matched %q (%d)", name, title, year),
			rankConfidence(position),
			[]media.SourceRef{source},
			warnings,
		)
		if err != nil {
			return nil, err
		}
		return &item, nil
	}
	return nil, nil
}

func selectMovie(results []providers.Movie, year int) (providers.Movie, string) {
	switch {
	case len(results) == 0:
		return providers.Movie{}, "no results"
	case len(results) == 1:
		return results[0], ""
	}
	if year > 0 {
		var matched []providers.Movie
		for _, candidate := range results {
			if candidate.Year == year {
				matched = append(matched, candidate)
			}
		}
		if len(matched) == 1 {
			return matched[0], ""
		}
	}
	return providers.Movie{}, fmt.Sprintf("ambiguous results (%d matches)", len(results))
}

func (r *DeterministicResolver) resolveMusic(ctx context.Context, record media.MediaRecord) (*media.PlanItem, error) {
	if strings.TrimSpace(record.ParsedTitle) == "" || strings.TrimSpace(record.ParsedArtist) == "" {
		return nil, nil
	}

	var warnings []string
	for position, provider := range r.music {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := displayName(provider.Name())

		results, err := provider.SearchTrack(ctx, record.ParsedArtist, record.ParsedTitle)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s failed: %v", name, err))
			r.logger.Debug("track lookup failed",
				logging.String(logging.FieldProvider, string(provider.Name())),
				logging.Error(err))
			continue
		}
		recording, reason := selectRecording(results, record)
		if reason != "" {
			warnings = append(warnings, fmt.Sprintf("%s failed: %s", name, reason))
			continue
		}
		artist := firstNonEmpty(recording.Artist, record.ParsedArtist)
		album := firstNonEmpty(recording.Album, record.ParsedAlbum)
		title := firstNonEmpty(recording.Title, record.ParsedTitle)
		track := recording.Track
		if track == 0 {
			track = record.ParsedTrack
		}

		source, err := media.NewSourceRef(provider.Name(), recording.ID)
		if err != nil {
			return nil, err
		}
		item, err := media.NewPlanItem(
			record.Path,
			MusicPath(artist, album, track, title, filepath.Ext(record.Path)),
			fmt.Sprintf("%s matched %q by %s", name, title, artist),
			rankConfidence(position),
			[]media.SourceRef{source},
			warnings,
		)
		if err != nil {
			return nil, err
		}
		return &item, nil
	}
	return nil, nil
}

// selectRecording prefers the candidate whose album matches the parsed
// album, falling back to the provider's best hit.
func selectRecording(results []providers.Recording, record media.MediaRecord) (providers.Recording, string) {
	if len(results) == 0 {
		return providers.Recording{}, "no results"
	}
	if record.ParsedAlbum != "" {
		for _, candidate := range results {
			if strings.EqualFold(candidate.Album, record.ParsedAlbum) {
				return candidate, ""
			}
		}
	}
	return results[0], ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
