package resolve

import (
	"context"
	"log/slog"

	"namegnome/internal/logging"
	"namegnome/internal/media"
)

// Resolution carries both sides of a record's resolution so the plan
// review can weigh deterministic results against model results.
type Resolution struct {
	Record        media.MediaRecord
	Deterministic []media.PlanItem
	LLM           []media.PlanItem
}

// Items returns the preferred plan items: deterministic when present.
func (r Resolution) Items() []media.PlanItem {
	if len(r.Deterministic) > 0 {
		return r.Deterministic
	}
	return r.LLM
}

// PlanEngine coordinates the resolvers: anthology fast path first, then
// the deterministic chain, and only then a model call for TV records.
type PlanEngine struct {
	deterministic *DeterministicResolver
	fuzzy         *FuzzyResolver
	fetcher       *EpisodeCandidateFetcher
	logger        *slog.Logger
}

// NewPlanEngine wires the resolvers together. fuzzy and fetcher may be
// nil when no model is configured; TV records then resolve
// deterministically or not at all.
func NewPlanEngine(deterministic *DeterministicResolver, fuzzy *FuzzyResolver, fetcher *EpisodeCandidateFetcher, logger *slog.Logger) *PlanEngine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &PlanEngine{
		deterministic: deterministic,
		fuzzy:         fuzzy,
		fetcher:       fetcher,
		logger:        logging.NewComponentLogger(logger, "planengine"),
	}
}

// ResolveRecord resolves one record. Provider trouble degrades to
// warnings or an empty resolution; a broken model contract is returned
// as an error.
func (e *PlanEngine) ResolveRecord(ctx context.Context, record media.MediaRecord, mediaType media.MediaType) (Resolution, error) {
	resolution := Resolution{Record: record}

	if mediaType == media.TypeTV {
		items, err := e.deterministic.ResolveAnthology(ctx, record)
		if err != nil {
			return resolution, err
		}
		if len(items) > 0 {
			resolution.Deterministic = items
			return resolution, nil
		}
	}

	item, err := e.deterministic.Resolve(ctx, record, mediaType)
	if err != nil {
		return resolution, err
	}
	if item != nil {
		resolution.Deterministic = []media.PlanItem{*item}
		return resolution, nil
	}

	if mediaType != media.TypeTV || e.fuzzy == nil {
		return resolution, nil
	}

	candidates, err := e.fetcher.Fetch(ctx, record)
	if err != nil {
		// Candidate fetch trouble means the model has nothing to match
		// against; the record stays unresolved rather than failing the run.
		e.logger.Warn("episode candidate fetch failed",
			logging.String(logging.FieldPath, record.Path),
			logging.Error(err))
		return resolution, nil
	}
	if len(candidates) == 0 {
		return resolution, nil
	}

	items, err := e.fuzzy.GenerateTVPlan(ctx, record, candidates)
	if err != nil {
		return resolution, err
	}
	resolution.LLM = items
	return resolution, nil
}
