package plan

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"namegnome/internal/media"
)

func fixedClock() time.Time {
	return time.Date(2026, time.March, 14, 9, 26, 53, 589793238, time.UTC)
}

func mustItem(t *testing.T, src, dst string, confidence float64, warnings ...string) media.PlanItem {
	t.Helper()
	item, err := media.NewPlanItem(src, dst, "matched", confidence, nil, warnings)
	if err != nil {
		t.Fatal(err)
	}
	return item
}

func testBuilder() *Builder {
	return NewBuilder(
		WithPlanID("pln_test"),
		WithScanID("scn_test"),
		WithSourceFingerprint("sha256:abc"),
		WithClock(fixedClock),
	)
}

func TestBuildNearTiePrefersDeterministic(t *testing.T) {
	record := media.MediaRecord{Path: "/downloads/a.mkv", Size: 10}
	dst := "/tv/Show/Season 01/Show - S01E01 - One.mkv"
	sources := []Source{{
		Record:        record,
		Deterministic: []media.PlanItem{mustItem(t, record.Path, dst, 0.85)},
		LLM:           []media.PlanItem{mustItem(t, record.Path, dst, 0.90)},
	}}

	review, err := testBuilder().Build(media.TypeTV, sources)
	if err != nil {
		t.Fatal(err)
	}
	if len(review.Items) != 1 {
		t.Fatalf("items = %+v", review.Items)
	}
	item := review.Items[0]
	if item.Origin != OriginDeterministic {
		t.Fatalf("origin = %s", item.Origin)
	}
	if item.Confidence != 0.85 {
		t.Fatalf("confidence = %v", item.Confidence)
	}
	found := false
	for _, warning := range item.Warnings {
		if warning == "tie_breaker_deterministic_preferred" {
			found = true
		}
	}
	if !found {
		t.Fatalf("warnings = %v", item.Warnings)
	}
	if len(item.Alternatives) != 1 || item.Alternatives[0].Origin != OriginLLM {
		t.Fatalf("alternatives = %+v", item.Alternatives)
	}
	want := "Deterministic results preferred for near-ties at: /downloads/a.mkv"
	if len(review.Notes) != 1 || review.Notes[0] != want {
		t.Fatalf("notes = %v", review.Notes)
	}
}

func TestBuildClearWinnerTakesHigherConfidence(t *testing.T) {
	record := media.MediaRecord{Path: "/downloads/a.mkv"}
	dst := "/tv/Show/Season 01/Show - S01E01 - One.mkv"
	sources := []Source{{
		Record:        record,
		Deterministic: []media.PlanItem{mustItem(t, record.Path, dst, 0.6)},
		LLM:           []media.PlanItem{mustItem(t, record.Path, dst, 0.95)},
	}}

	review, err := testBuilder().Build(media.TypeTV, sources)
	if err != nil {
		t.Fatal(err)
	}
	item := review.Items[0]
	if item.Origin != OriginLLM || item.Confidence != 0.95 {
		t.Fatalf("item = %+v", item)
	}
	if len(review.Notes) != 0 {
		t.Fatalf("notes = %v", review.Notes)
	}
}

func TestBuildItemIDsFollowInsertionOrder(t *testing.T) {
	recordB := media.MediaRecord{Path: "/downloads/b.mkv"}
	recordA := media.MediaRecord{Path: "/downloads/a.mkv"}
	sources := []Source{
		{
			Record: recordB,
			Deterministic: []media.PlanItem{
				mustItem(t, recordB.Path, "/tv/Show/Season 01/Show - S01E02 - Two.mkv", 0.9),
			},
		},
		{
			Record: recordA,
			Deterministic: []media.PlanItem{
				mustItem(t, recordA.Path, "/tv/Show/Season 01/Show - S01E01 - One.mkv", 0.9),
			},
		},
	}

	review, err := testBuilder().Build(media.TypeTV, sources)
	if err != nil {
		t.Fatal(err)
	}
	// a.mkv sorts first, but ids were handed out before sorting.
	if review.Items[0].Src.Path != "/downloads/a.mkv" || review.Items[0].ID != "pli_0002" {
		t.Fatalf("first item = %+v", review.Items[0])
	}
	if review.Items[1].Src.Path != "/downloads/b.mkv" || review.Items[1].ID != "pli_0001" {
		t.Fatalf("second item = %+v", review.Items[1])
	}
}

func TestBuildSortsTVItemsBySpan(t *testing.T) {
	record := media.MediaRecord{Path: "/downloads/a.mkv"}
	sources := []Source{{
		Record: record,
		Deterministic: []media.PlanItem{
			mustItem(t, record.Path, "/tv/Show/Season 02/Show - S02E01 - Later.mkv", 0.9),
			mustItem(t, record.Path, "/tv/Show/Season 01/Show - S01E03-E04 - Pair.mkv", 0.9),
			mustItem(t, record.Path, "/tv/Show/Season 01/Show - S01E01 - One.mkv", 0.9),
		},
	}}

	review, err := testBuilder().Build(media.TypeTV, sources)
	if err != nil {
		t.Fatal(err)
	}
	var order []string
	for _, item := range review.Items {
		order = append(order, item.Dst.Path)
	}
	want := []string{
		"/tv/Show/Season 01/Show - S01E01 - One.mkv",
		"/tv/Show/Season 01/Show - S01E03-E04 - Pair.mkv",
		"/tv/Show/Season 02/Show - S02E01 - Later.mkv",
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v", order)
		}
	}
}

func TestBuildSortsMusicByTrack(t *testing.T) {
	record := media.MediaRecord{Path: "/downloads/rip"}
	sources := []Source{{
		Record: record,
		Deterministic: []media.PlanItem{
			mustItem(t, record.Path, "/music/Queen/Opera/11 - Bohemian Rhapsody.flac", 0.9),
			mustItem(t, record.Path, "/music/Queen/Opera/02 - Lazing.flac", 0.9),
		},
	}}

	review, err := testBuilder().Build(media.TypeMusic, sources)
	if err != nil {
		t.Fatal(err)
	}
	if review.Items[0].Dst.Path != "/music/Queen/Opera/02 - Lazing.flac" {
		t.Fatalf("order = %+v", review.Items)
	}
	if review.Items[0].Sources != nil && len(review.Items[0].Sources) != 0 {
		t.Fatalf("sources = %+v", review.Items[0].Sources)
	}
}

func TestBuildGroupsAndSummary(t *testing.T) {
	recordA := media.MediaRecord{Path: "/downloads/a.mkv", Size: 7, AnthologyCandidate: true}
	recordB := media.MediaRecord{Path: "/downloads/B.mkv", NeedsDisambiguation: true, ParsedTitle: "Danger Mouse", ParsedYear: 2015}
	sources := []Source{
		{
			Record: recordA,
			Deterministic: []media.PlanItem{
				mustItem(t, recordA.Path, "/tv/Show/Season 01/Show - S01E01 - One.mkv", 0.95, "overlap_resolved"),
				mustItem(t, recordA.Path, "/tv/Show/Season 01/Show - S01E02 - Two.mkv", 0.78),
			},
		},
		{
			Record: recordB,
			LLM: []media.PlanItem{
				mustItem(t, recordB.Path, "/tv/Show/Season 01/Show - S01E03 - Three.mkv", 0.5),
			},
		},
	}

	review, err := testBuilder().Build(media.TypeTV, sources)
	if err != nil {
		t.Fatal(err)
	}

	if len(review.Groups) != 2 {
		t.Fatalf("groups = %+v", review.Groups)
	}
	groupA := review.Groups[0]
	if groupA.GroupKey != "/downloads/a.mkv" {
		t.Fatalf("group order = %q, %q", review.Groups[0].GroupKey, review.Groups[1].GroupKey)
	}
	if groupA.Rollup.Count != 2 || groupA.Rollup.ConfidenceMin != 0.78 || groupA.Rollup.ConfidenceMax != 0.95 {
		t.Fatalf("rollup = %+v", groupA.Rollup)
	}
	if len(groupA.Rollup.Warnings) != 1 || groupA.Rollup.Warnings[0] != "overlap_resolved" {
		t.Fatalf("rollup warnings = %v", groupA.Rollup.Warnings)
	}
	if groupA.SrcFile.Size == nil || *groupA.SrcFile.Size != 7 {
		t.Fatalf("src file = %+v", groupA.SrcFile)
	}

	summary := review.Summary
	if summary.TotalItems != 3 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.ByOrigin.Deterministic != 2 || summary.ByOrigin.LLM != 1 {
		t.Fatalf("by origin = %+v", summary.ByOrigin)
	}
	if summary.ByConfidence.High != 1 || summary.ByConfidence.Medium != 1 || summary.ByConfidence.Low != 1 {
		t.Fatalf("by confidence = %+v", summary.ByConfidence)
	}
	if summary.AnthologyCandidates != 2 || summary.Disambiguations != 1 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestBuildEncodesByteStably(t *testing.T) {
	record := media.MediaRecord{Path: "/downloads/a.mkv", Size: 1}
	sources := []Source{{
		Record: record,
		Deterministic: []media.PlanItem{
			mustItem(t, record.Path, "/tv/Show/Season 01/Show - S01E01 - One.mkv", 0.9),
		},
		LLM: []media.PlanItem{
			mustItem(t, record.Path, "/tv/Show/Season 01/Show - S01E01 - One.mkv", 0.88),
		},
	}}

	first, err := testBuilder().Build(media.TypeTV, sources)
	if err != nil {
		t.Fatal(err)
	}
	second, err := testBuilder().Build(media.TypeTV, sources)
	if err != nil {
		t.Fatal(err)
	}

	firstBytes, err := first.Encode()
	if err != nil {
		t.Fatal(err)
	}
	secondBytes, err := second.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(firstBytes, secondBytes) {
		t.Fatal("identical inputs must serialize identically")
	}
	if !strings.Contains(string(firstBytes), `"generated_at": "2026-03-14T09:26:53Z"`) {
		t.Fatalf("payload = %s", firstBytes)
	}

	decoded, err := DecodeReview(firstBytes)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.PlanID != "pln_test" || len(decoded.Items) != 1 {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestBuildGeneratesPlanID(t *testing.T) {
	review, err := NewBuilder(WithClock(fixedClock)).Build(media.TypeTV, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(review.PlanID, "pln_") || len(review.PlanID) != len("pln_")+32 {
		t.Fatalf("plan id = %q", review.PlanID)
	}
	if review.ScanID != nil || review.SourceFingerprint != nil {
		t.Fatalf("review = %+v", review)
	}
}

func TestBuildRejectsUnknownMediaType(t *testing.T) {
	if _, err := testBuilder().Build("podcast", nil); err == nil {
		t.Fatal("expected error")
	}
}
