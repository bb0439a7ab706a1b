package anthology

import (
	"fmt"
	"math"
	"sort"

	"namegnome/internal/media"
	"namegnome/internal/textutil"
)

// Warning labels attached by the simplifier. The punt set marks
// ambiguity the deterministic pass cannot resolve.
const (
	WarnOutOfBounds       = "out_of_bounds"
	WarnOverlapResolved   = "overlap_resolved"
	WarnOverlapUnresolved = "overlap_unresolved"
	WarnGapUnresolved     = "gap_unresolved"
	WarnSingletonCollapse = "singleton_collapse"
	WarnAmbiguousSegment  = "ambiguous_segment"
)

const titleMatchThreshold = 0.85

// Result is the outcome of deterministic interval simplification.
type Result struct {
	Segments   []media.EpisodeSegment
	Warnings   []string
	Confidence float64
	PuntToLLM  bool
}

// Simplify resolves cheap, deterministic ambiguity in an anthology
// record's segments against the provider episode list for its season.
func Simplify(record media.MediaRecord, episodes []media.ProviderEpisode) Result {
	segments := cloneSegments(record.Segments)

	var warnings []string
	confidence := 1.0

	if len(segments) == 0 {
		return Result{Segments: segments, Confidence: confidence}
	}

	normalizeSegments(segments)

	tokensByNumber, bounds := buildProviderLookup(episodes, record.ParsedSeason)

	if bounds != nil && clampToBounds(segments, *bounds) {
		warnings = append(warnings, WarnOutOfBounds)
		confidence = deduct(confidence, 0.1)
	}

	unresolvedOverlap, resolvedCount := resolveBoundaryOverlaps(segments, &warnings)
	if resolvedCount > 0 {
		confidence = deduct(confidence, 0.1*float64(resolvedCount))
	}
	if unresolvedOverlap {
		warnings = append(warnings, WarnOverlapUnresolved)
	}

	gapDetected := detectGaps(segments)
	if gapDetected {
		warnings = append(warnings, WarnGapUnresolved)
	}

	if maybeSingletonCollapse(segments, tokensByNumber) {
		warnings = append(warnings, WarnSingletonCollapse)
		confidence = deduct(confidence, 0.05)
	}

	ambiguous := false
	for _, segment := range segments {
		if segment.Start == nil || segment.End == nil {
			ambiguous = true
			break
		}
	}
	if ambiguous {
		warnings = append(warnings, WarnAmbiguousSegment)
	}

	punt := unresolvedOverlap || gapDetected || ambiguous || confidence < 0.9
	if punt {
		confidence = math.Min(confidence, 0.7)
	}

	updateRawSpans(segments)

	return Result{
		Segments:   segments,
		Warnings:   dedupePreserveOrder(warnings),
		Confidence: confidence,
		PuntToLLM:  punt,
	}
}

func cloneSegments(segments []media.EpisodeSegment) []media.EpisodeSegment {
	cloned := make([]media.EpisodeSegment, len(segments))
	for i, segment := range segments {
		cloned[i] = segment
		cloned[i].Start = cloneBound(segment.Start)
		cloned[i].End = cloneBound(segment.End)
		cloned[i].TitleTokens = append([]string(nil), segment.TitleTokens...)
	}
	return cloned
}

func cloneBound(bound *int) *int {
	if bound == nil {
		return nil
	}
	value := *bound
	return &value
}

func boundOrMax(bound *int) int {
	if bound == nil {
		return math.MaxInt
	}
	return *bound
}

// normalizeSegments sorts by (start, end) with missing bounds last, then
// fills a missing bound from the other and swaps inverted bounds.
func normalizeSegments(segments []media.EpisodeSegment) {
	sort.SliceStable(segments, func(i, j int) bool {
		si, sj := boundOrMax(segments[i].Start), boundOrMax(segments[j].Start)
		if si != sj {
			return si < sj
		}
		return boundOrMax(segments[i].End) < boundOrMax(segments[j].End)
	})

	for i := range segments {
		segment := &segments[i]
		switch {
		case segment.Start != nil && segment.End == nil:
			segment.End = cloneBound(segment.Start)
		case segment.Start == nil && segment.End != nil:
			segment.Start = cloneBound(segment.End)
		case segment.Start != nil && segment.End != nil && *segment.End < *segment.Start:
			segment.Start, segment.End = segment.End, segment.Start
		}
	}
}

type episodeBounds struct {
	low, high int
}

func buildProviderLookup(episodes []media.ProviderEpisode, season int) (map[int]map[string]struct{}, *episodeBounds) {
	tokensByNumber := make(map[int]map[string]struct{})
	var bounds *episodeBounds

	for _, episode := range episodes {
		if season > 0 && episode.Season > 0 && episode.Season != season {
			continue
		}
		if episode.Number == 0 {
			continue
		}
		tokensByNumber[episode.Number] = textutil.Tokenize(episode.Name)
		if bounds == nil {
			bounds = &episodeBounds{low: episode.Number, high: episode.Number}
			continue
		}
		if episode.Number < bounds.low {
			bounds.low = episode.Number
		}
		if episode.Number > bounds.high {
			bounds.high = episode.Number
		}
	}
	return tokensByNumber, bounds
}

func clampToBounds(segments []media.EpisodeSegment, bounds episodeBounds) bool {
	changed := false
	for i := range segments {
		segment := &segments[i]
		if segment.Start != nil && *segment.Start < bounds.low {
			*segment.Start = bounds.low
			changed = true
		}
		if segment.End != nil && *segment.End > bounds.high {
			*segment.End = bounds.high
			changed = true
		}
		if segment.Start != nil && segment.End != nil && *segment.End < *segment.Start {
			*segment.End = *segment.Start
		}
	}
	return changed
}

// resolveBoundaryOverlaps trims segments whose end touches the next
// segment's start. Deeper overlaps are left for the model.
func resolveBoundaryOverlaps(segments []media.EpisodeSegment, warnings *[]string) (unresolved bool, resolved int) {
	for i := 0; i < len(segments)-1; i++ {
		current, next := &segments[i], &segments[i+1]
		if current.Start == nil || current.End == nil || next.Start == nil || next.End == nil {
			continue
		}
		if *current.End < *next.Start {
			continue
		}
		if *current.End == *next.Start {
			*current.End = *current.End - 1
			if *current.End < *current.Start {
				*current.End = *current.Start
			}
			*warnings = append(*warnings, WarnOverlapResolved)
			resolved++
		} else {
			unresolved = true
		}
	}
	return unresolved, resolved
}

func detectGaps(segments []media.EpisodeSegment) bool {
	previousEnd := 0
	seen := false
	gap := false

	for _, segment := range segments {
		if segment.Start == nil || segment.End == nil {
			continue
		}
		if seen && *segment.Start > previousEnd+1 {
			gap = true
		}
		if !seen || *segment.End > previousEnd {
			previousEnd = *segment.End
		}
		seen = true
	}
	return gap
}

// maybeSingletonCollapse shrinks a lone multi-episode segment to a
// single episode when its title tokens match exactly one in-range
// provider episode.
func maybeSingletonCollapse(segments []media.EpisodeSegment, tokensByNumber map[int]map[string]struct{}) bool {
	if len(segments) != 1 {
		return false
	}
	segment := &segments[0]
	if segment.Start == nil || segment.End == nil || *segment.Start == *segment.End {
		return false
	}
	if len(segment.TitleTokens) == 0 {
		return false
	}

	matched, ok := matchUniqueEpisode(segment.TitleTokens, tokensByNumber, *segment.Start, *segment.End)
	if !ok {
		return false
	}
	*segment.Start = matched
	*segment.End = matched
	segment.RawSpan = fmt.Sprintf("E%02d", matched)
	return true
}

func matchUniqueEpisode(tokens []string, tokensByNumber map[int]map[string]struct{}, rangeStart, rangeEnd int) (int, bool) {
	segmentTokens := textutil.TokenSet(tokens)
	var matches []int
	for number, candidateTokens := range tokensByNumber {
		if textutil.JaccardSimilarity(segmentTokens, candidateTokens) >= titleMatchThreshold {
			matches = append(matches, number)
		}
	}
	if len(matches) == 0 {
		return 0, false
	}

	var inRange []int
	for _, number := range matches {
		if rangeStart <= number && number <= rangeEnd {
			inRange = append(inRange, number)
		}
	}
	if len(inRange) == 1 {
		return inRange[0], true
	}
	if len(matches) == 1 {
		return matches[0], true
	}
	return 0, false
}

func updateRawSpans(segments []media.EpisodeSegment) {
	for i := range segments {
		segment := &segments[i]
		switch {
		case segment.Start != nil && segment.End != nil && *segment.End != *segment.Start:
			segment.RawSpan = fmt.Sprintf("E%02d-E%02d", *segment.Start, *segment.End)
		case segment.Start != nil:
			segment.RawSpan = fmt.Sprintf("E%02d", *segment.Start)
		}
	}
}

func deduct(confidence, amount float64) float64 {
	return math.Max(confidence-amount, 0)
}

func dedupePreserveOrder(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	deduped := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		deduped = append(deduped, item)
	}
	return deduped
}
