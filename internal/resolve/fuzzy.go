package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"namegnome/internal/llm"
	"namegnome/internal/media"
)

// FuzzyResolver maps ambiguous TV records onto provider episode lists
// through a model call. The model's answer is never trusted as-is: the
// resolver validates the contract, clamps confidences, backfills
// titles, and normalizes overlapping spans deterministically.
type FuzzyResolver struct {
	runnable llm.Runnable
}

// NewFuzzyResolver wraps a model runnable.
func NewFuzzyResolver(runnable llm.Runnable) *FuzzyResolver {
	return &FuzzyResolver{runnable: runnable}
}

const (
	defaultLLMConfidence = 0.5
	maxLLMConfidence     = 0.99
)

type fuzzyPayload struct {
	Media      fuzzyMedia              `json:"media"`
	Candidates []media.ProviderEpisode `json:"candidates"`
}

type fuzzyMedia struct {
	Title              string `json:"title"`
	Season             int    `json:"season"`
	Episode            int    `json:"episode"`
	AnthologyCandidate bool   `json:"anthology_candidate"`
}

type assignment struct {
	Season       int      `json:"season"`
	EpisodeStart int      `json:"episode_start"`
	EpisodeEnd   int      `json:"episode_end"`
	EpisodeTitle string   `json:"episode_title"`
	Confidence   *float64 `json:"confidence"`
	Warnings     []string `json:"warnings"`
	Reason       string   `json:"reason"`
	Provider     struct {
		Provider string `json:"provider"`
		ID       string `json:"id"`
	} `json:"provider"`
}

// GenerateTVPlan produces plan items for a TV record via the model. A
// malformed response is a hard error: it signals a broken contract with
// the model, not routine ambiguity.
func (r *FuzzyResolver) GenerateTVPlan(ctx context.Context, record media.MediaRecord, candidates []media.ProviderEpisode) ([]media.PlanItem, error) {
	if strings.TrimSpace(record.ParsedTitle) == "" {
		return nil, nil
	}

	payload := fuzzyPayload{
		Media: fuzzyMedia{
			Title:              record.ParsedTitle,
			Season:             record.ParsedSeason,
			Episode:            record.ParsedEpisode,
			AnthologyCandidate: record.AnthologyCandidate,
		},
		Candidates: candidates,
	}

	content, err := r.runnable.Invoke(ctx, payload)
	if err != nil {
		return nil, err
	}
	assignments, err := parseAssignments(content)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return nil, nil
	}

	normalizeAssignments(assignments, candidates)

	items := make([]media.PlanItem, 0, len(assignments))
	for _, entry := range assignments {
		reason := entry.Reason
		if reason == "" {
			reason = fmt.Sprintf("LLM matched %q to S%02dE%02d", record.ParsedTitle, entry.Season, entry.EpisodeStart)
		}

		var sources []media.SourceRef
		if entry.Provider.ID != "" && media.KnownProvider(entry.Provider.Provider) {
			source, err := media.NewSourceRef(media.ProviderName(strings.ToLower(entry.Provider.Provider)), entry.Provider.ID)
			if err != nil {
				return nil, err
			}
			sources = append(sources, source)
		}

		item, err := media.NewPlanItem(
			record.Path,
			TVPath(record.ParsedTitle, entry.Season, entry.EpisodeStart, entry.EpisodeEnd, entry.EpisodeTitle, filepath.Ext(record.Path)),
			reason,
			*entry.Confidence,
			sources,
			entry.Warnings,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func parseAssignments(content string) ([]assignment, error) {
	var response struct {
		Assignments *[]json.RawMessage `json:"assignments"`
	}
	if err := llm.DecodeLLMJSON(content, &response); err != nil {
		return nil, fmt.Errorf("llm response: %w", err)
	}
	if response.Assignments == nil {
		return nil, fmt.Errorf("llm response missing 'assignments' list")
	}

	assignments := make([]assignment, 0, len(*response.Assignments))
	for index, raw := range *response.Assignments {
		var entry assignment
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("llm response: assignment %d is not a mapping: %w", index, err)
		}
		if entry.EpisodeStart <= 0 || entry.Season < 0 {
			return nil, fmt.Errorf("llm response: assignment %d has invalid span: %s", index, raw)
		}
		if entry.EpisodeEnd < entry.EpisodeStart {
			entry.EpisodeEnd = entry.EpisodeStart
		}
		assignments = append(assignments, entry)
	}
	return assignments, nil
}

// normalizeAssignments applies the mandatory deterministic post-pass:
// confidence coercion, title backfill, span ordering, and overlap
// trim/shift with warnings on the touched assignments.
func normalizeAssignments(assignments []assignment, candidates []media.ProviderEpisode) {
	titlesByID := make(map[string]string, len(candidates))
	for _, candidate := range candidates {
		titlesByID[candidate.ID] = candidate.Name
	}

	for i := range assignments {
		entry := &assignments[i]
		if entry.Confidence == nil {
			confidence := defaultLLMConfidence
			entry.Confidence = &confidence
		}
		if *entry.Confidence < 0 {
			*entry.Confidence = 0
		}
		if *entry.Confidence > maxLLMConfidence {
			*entry.Confidence = maxLLMConfidence
		}
		if entry.EpisodeTitle == "" && entry.Provider.ID != "" {
			entry.EpisodeTitle = titlesByID[entry.Provider.ID]
		}
	}

	sort.SliceStable(assignments, func(i, j int) bool {
		if assignments[i].Season != assignments[j].Season {
			return assignments[i].Season < assignments[j].Season
		}
		if assignments[i].EpisodeStart != assignments[j].EpisodeStart {
			return assignments[i].EpisodeStart < assignments[j].EpisodeStart
		}
		return assignments[i].EpisodeEnd < assignments[j].EpisodeEnd
	})

	for i := 0; i < len(assignments)-1; i++ {
		current, next := &assignments[i], &assignments[i+1]
		if current.Season != next.Season || current.EpisodeEnd < next.EpisodeStart {
			continue
		}

		trimmedEnd := next.EpisodeStart - 1
		if trimmedEnd < current.EpisodeStart {
			trimmedEnd = current.EpisodeStart
		}
		if trimmedEnd != current.EpisodeEnd {
			current.EpisodeEnd = trimmedEnd
			current.Warnings = append(current.Warnings, fmt.Sprintf(
				"Trimmed span to %s to avoid overlap with E%02d",
				spanLabel(current.EpisodeStart, current.EpisodeEnd), next.EpisodeStart))
		}
		if next.EpisodeStart <= current.EpisodeEnd {
			shiftedFrom := next.EpisodeStart
			next.EpisodeStart = current.EpisodeEnd + 1
			if next.EpisodeEnd < next.EpisodeStart {
				next.EpisodeEnd = next.EpisodeStart
			}
			next.Warnings = append(next.Warnings, fmt.Sprintf(
				"Shifted start from E%02d to E%02d to build contiguous run after E%02d",
				shiftedFrom, next.EpisodeStart, current.EpisodeEnd))
		}
	}
}

func spanLabel(start, end int) string {
	if end > start {
		return fmt.Sprintf("E%02d-E%02d", start, end)
	}
	return fmt.Sprintf("E%02d", start)
}
