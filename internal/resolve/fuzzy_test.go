package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"namegnome/internal/llm"
	"namegnome/internal/media"
)

type fakeRunnable struct {
	response string
	err      error
	payloads []any
}

func (f *fakeRunnable) Invoke(ctx context.Context, payload any) (string, error) {
	f.payloads = append(f.payloads, payload)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func firebudsRecord() media.MediaRecord {
	return media.MediaRecord{
		Path:         "/downloads/Firebuds S01E01.mkv",
		Size:         100,
		ParsedTitle:  "Firebuds",
		ParsedSeason: 1,
	}
}

func firebudsCandidates() []media.ProviderEpisode {
	return []media.ProviderEpisode{
		{ID: "ep1", Name: "Ready to Roll", Season: 1, Number: 1},
		{ID: "ep2", Name: "Two Alarm Fire", Season: 1, Number: 2},
		{ID: "ep3", Name: "Carmendale", Season: 1, Number: 3},
	}
}

// The system prompt documents the response schema the parser decodes;
// a drift between the two breaks every live resolution while staying
// invisible to fakes, so both directions are pinned here.
func TestGenerateTVPlanAcceptsPromptedResponseShape(t *testing.T) {
	for _, key := range []string{
		`"season"`, `"episode_start"`, `"episode_end"`, `"episode_title"`,
		`"provider"`, `"id"`, `"confidence"`, `"warnings"`, `"reason"`,
	} {
		if !strings.Contains(llm.EpisodeAssignmentPrompt, key) {
			t.Errorf("prompt does not document response key %s", key)
		}
	}

	// A full response following the prompt to the letter: one anthology
	// span plus a single episode with episode_end omitted, fenced the
	// way chat models like to answer.
	runnable := &fakeRunnable{response: "```json\n" + `{
		"assignments": [
			{
				"season": 1,
				"episode_start": 1,
				"episode_end": 2,
				"episode_title": "Ready to Roll",
				"provider": {"provider": "tvdb", "id": "ep1"},
				"confidence": 0.9,
				"warnings": ["span inferred from runtime"],
				"reason": "two stories in one file"
			},
			{
				"season": 1,
				"episode_start": 3,
				"provider": {"provider": "tvdb", "id": "ep3"},
				"confidence": 0.8,
				"reason": "title match"
			}
		]
	}` + "\n```"}
	resolver := NewFuzzyResolver(runnable)

	items, err := resolver.GenerateTVPlan(context.Background(), firebudsRecord(), firebudsCandidates())
	if err != nil {
		t.Fatalf("GenerateTVPlan: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
	if items[0].DstPath != "/tv/Firebuds/Season 01/Firebuds - S01E01-E02 - Ready to Roll.mkv" {
		t.Fatalf("dst = %q", items[0].DstPath)
	}
	if len(items[0].Warnings) != 1 || items[0].Warnings[0] != "span inferred from runtime" {
		t.Fatalf("warnings = %+v", items[0].Warnings)
	}
	// episode_end omitted collapses to a single episode; episode_title
	// omitted backfills from the candidate with the matching id.
	if items[1].DstPath != "/tv/Firebuds/Season 01/Firebuds - S01E03 - Carmendale.mkv" {
		t.Fatalf("dst = %q", items[1].DstPath)
	}
}

func TestGenerateTVPlanBuildsItems(t *testing.T) {
	runnable := &fakeRunnable{response: `{
		"assignments": [
			{
				"season": 1,
				"episode_start": 1,
				"episode_end": 1,
				"episode_title": "Ready to Roll",
				"confidence": 0.92,
				"reason": "exact title match",
				"provider": {"provider": "tvdb", "id": "ep1"}
			}
		]
	}`}
	resolver := NewFuzzyResolver(runnable)

	items, err := resolver.GenerateTVPlan(context.Background(), firebudsRecord(), firebudsCandidates())
	if err != nil {
		t.Fatalf("GenerateTVPlan: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %+v", items)
	}
	item := items[0]
	if item.DstPath != "/tv/Firebuds/Season 01/Firebuds - S01E01 - Ready to Roll.mkv" {
		t.Fatalf("dst = %q", item.DstPath)
	}
	if item.Confidence != 0.92 {
		t.Fatalf("confidence = %v", item.Confidence)
	}
	if item.Reason != "exact title match" {
		t.Fatalf("reason = %q", item.Reason)
	}
	if len(item.Sources) != 1 || item.Sources[0].Provider != media.ProviderTVDB || item.Sources[0].ID != "ep1" {
		t.Fatalf("sources = %+v", item.Sources)
	}
}

func TestGenerateTVPlanEmptyAssignmentsYieldsNoItems(t *testing.T) {
	runnable := &fakeRunnable{response: `{"assignments": []}`}
	resolver := NewFuzzyResolver(runnable)

	items, err := resolver.GenerateTVPlan(context.Background(), firebudsRecord(), firebudsCandidates())
	if err != nil {
		t.Fatal(err)
	}
	if items != nil {
		t.Fatalf("items = %+v", items)
	}
}

func TestGenerateTVPlanMissingAssignmentsIsHardError(t *testing.T) {
	runnable := &fakeRunnable{response: `{"results": []}`}
	resolver := NewFuzzyResolver(runnable)

	_, err := resolver.GenerateTVPlan(context.Background(), firebudsRecord(), firebudsCandidates())
	if err == nil || !strings.Contains(err.Error(), "assignments") {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerateTVPlanNonMappingAssignmentIsHardError(t *testing.T) {
	runnable := &fakeRunnable{response: `{"assignments": ["not a mapping"]}`}
	resolver := NewFuzzyResolver(runnable)

	_, err := resolver.GenerateTVPlan(context.Background(), firebudsRecord(), firebudsCandidates())
	if err == nil || !strings.Contains(err.Error(), "assignment 0") {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerateTVPlanInvalidSpanIsHardError(t *testing.T) {
	runnable := &fakeRunnable{response: `{"assignments": [{"season": 1, "episode_start": 0}]}`}
	resolver := NewFuzzyResolver(runnable)

	_, err := resolver.GenerateTVPlan(context.Background(), firebudsRecord(), firebudsCandidates())
	if err == nil || !strings.Contains(err.Error(), "invalid span") {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerateTVPlanPropagatesModelError(t *testing.T) {
	runnable := &fakeRunnable{err: errors.New("model unavailable")}
	resolver := NewFuzzyResolver(runnable)

	_, err := resolver.GenerateTVPlan(context.Background(), firebudsRecord(), firebudsCandidates())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestGenerateTVPlanSortsAndBackfillsTitles(t *testing.T) {
	candidates := []media.ProviderEpisode{
		{ID: "ep33", Name: "The Solo Act", Season: 1, Number: 3},
		{ID: "ep34", Name: "The Double Act", Season: 1, Number: 4},
	}
	runnable := &fakeRunnable{response: `{
		"assignments": [
			{"season": 1, "episode_start": 4, "provider": {"provider": "tvdb", "id": "ep34"}},
			{"season": 1, "episode_start": 3, "episode_title": "The Solo Act", "confidence": 0.8}
		]
	}`}
	resolver := NewFuzzyResolver(runnable)

	items, err := resolver.GenerateTVPlan(context.Background(), firebudsRecord(), candidates)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
	if items[0].DstPath != "/tv/Firebuds/Season 01/Firebuds - S01E03 - The Solo Act.mkv" {
		t.Fatalf("first dst = %q", items[0].DstPath)
	}
	if items[1].DstPath != "/tv/Firebuds/Season 01/Firebuds - S01E04 - The Double Act.mkv" {
		t.Fatalf("second dst = %q", items[1].DstPath)
	}
	if items[1].Confidence != defaultLLMConfidence {
		t.Fatalf("missing confidence should default, got %v", items[1].Confidence)
	}
}

func TestGenerateTVPlanClampsConfidence(t *testing.T) {
	runnable := &fakeRunnable{response: `{
		"assignments": [
			{"season": 1, "episode_start": 1, "episode_title": "A", "confidence": 1.7},
			{"season": 1, "episode_start": 2, "episode_title": "B", "confidence": -0.4}
		]
	}`}
	resolver := NewFuzzyResolver(runnable)

	items, err := resolver.GenerateTVPlan(context.Background(), firebudsRecord(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if items[0].Confidence != maxLLMConfidence {
		t.Fatalf("high confidence should clamp to %v, got %v", maxLLMConfidence, items[0].Confidence)
	}
	if items[1].Confidence != 0 {
		t.Fatalf("negative confidence should clamp to 0, got %v", items[1].Confidence)
	}
}

func TestGenerateTVPlanTrimsOverlappingSpans(t *testing.T) {
	runnable := &fakeRunnable{response: `{
		"assignments": [
			{"season": 1, "episode_start": 1, "episode_end": 2, "episode_title": "A"},
			{"season": 1, "episode_start": 3, "episode_end": 4, "episode_title": "B"},
			{"season": 1, "episode_start": 4, "episode_end": 5, "episode_title": "C"}
		]
	}`}
	resolver := NewFuzzyResolver(runnable)

	items, err := resolver.GenerateTVPlan(context.Background(), firebudsRecord(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %+v", items)
	}
	wantPaths := []string{
		"/tv/Firebuds/Season 01/Firebuds - S01E01-E02 - A.mkv",
		"/tv/Firebuds/Season 01/Firebuds - S01E03 - B.mkv",
		"/tv/Firebuds/Season 01/Firebuds - S01E04-E05 - C.mkv",
	}
	for i, want := range wantPaths {
		if items[i].DstPath != want {
			t.Fatalf("item %d dst = %q, want %q", i, items[i].DstPath, want)
		}
	}
	trimmed := items[1]
	if trimmed.Confidence != defaultLLMConfidence {
		t.Fatalf("trimmed confidence = %v", trimmed.Confidence)
	}
	found := false
	for _, warning := range trimmed.Warnings {
		if strings.Contains(warning, "Trimmed span to E03 to avoid overlap with E04") {
			found = true
		}
	}
	if !found {
		t.Fatalf("warnings = %v", trimmed.Warnings)
	}
}

func TestGenerateTVPlanShiftsIdenticalStarts(t *testing.T) {
	runnable := &fakeRunnable{response: `{
		"assignments": [
			{"season": 1, "episode_start": 1, "episode_title": "A"},
			{"season": 1, "episode_start": 1, "episode_title": "B"}
		]
	}`}
	resolver := NewFuzzyResolver(runnable)

	items, err := resolver.GenerateTVPlan(context.Background(), firebudsRecord(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
	if items[1].DstPath != "/tv/Firebuds/Season 01/Firebuds - S01E02 - B.mkv" {
		t.Fatalf("second dst = %q", items[1].DstPath)
	}
	found := false
	for _, warning := range items[1].Warnings {
		if strings.Contains(warning, "Shifted start from E01 to E02 to build contiguous run after E01") {
			found = true
		}
	}
	if !found {
		t.Fatalf("warnings = %v", items[1].Warnings)
	}
}

func TestGenerateTVPlanIgnoresUnknownProvider(t *testing.T) {
	runnable := &fakeRunnable{response: `{
		"assignments": [
			{"season": 1, "episode_start": 1, "episode_title": "A",
			 "provider": {"provider": "fancube", "id": "x1"}}
		]
	}`}
	resolver := NewFuzzyResolver(runnable)

	items, err := resolver.GenerateTVPlan(context.Background(), firebudsRecord(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(items[0].Sources) != 0 {
		t.Fatalf("sources = %+v", items[0].Sources)
	}
}

func TestGenerateTVPlanSendsCandidatePayload(t *testing.T) {
	runnable := &fakeRunnable{response: `{"assignments": []}`}
	resolver := NewFuzzyResolver(runnable)

	record := firebudsRecord()
	record.AnthologyCandidate = true
	if _, err := resolver.GenerateTVPlan(context.Background(), record, firebudsCandidates()); err != nil {
		t.Fatal(err)
	}
	if len(runnable.payloads) != 1 {
		t.Fatalf("payloads = %d", len(runnable.payloads))
	}
	encoded, err := json.Marshal(runnable.payloads[0])
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"title":"Firebuds"`, `"anthology_candidate":true`, `"Ready to Roll"`} {
		if !strings.Contains(string(encoded), want) {
			t.Fatalf("payload %s missing %s", encoded, want)
		}
	}
}
