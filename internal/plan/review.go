package plan

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"namegnome/internal/media"
)

// Origin records which resolver produced a plan item.
type Origin string

const (
	OriginDeterministic Origin = "deterministic"
	OriginLLM           Origin = "llm"
)

const schemaVersion = "1.0"

const tieBreakerWarning = "tie_breaker_deterministic_preferred"

// Source bundles one scanned record with the plan items each resolver
// produced for it.
type Source struct {
	Record        media.MediaRecord
	Deterministic []media.PlanItem
	LLM           []media.PlanItem
}

// Review is the reviewable plan document handed to the operator before
// an apply. Field order is fixed so repeated builds over the same
// inputs serialize byte for byte.
type Review struct {
	PlanID            string          `json:"plan_id"`
	SchemaVersion     string          `json:"schema_version"`
	GeneratedAt       string          `json:"generated_at"`
	ScanID            *string         `json:"scan_id"`
	SourceFingerprint *string         `json:"source_fingerprint"`
	MediaType         media.MediaType `json:"media_type"`
	Summary           Summary         `json:"summary"`
	Groups            []Group         `json:"groups"`
	Items             []Item          `json:"items"`
	Notes             []string        `json:"notes"`
}

// Summary aggregates counts across the final items.
type Summary struct {
	TotalItems          int          `json:"total_items"`
	ByOrigin            OriginCounts `json:"by_origin"`
	ByConfidence        BucketCounts `json:"by_confidence"`
	Warnings            int          `json:"warnings"`
	AnthologyCandidates int          `json:"anthology_candidates"`
	Disambiguations     int          `json:"disambiguations_required"`
}

type OriginCounts struct {
	Deterministic int `json:"deterministic"`
	LLM           int `json:"llm"`
}

type BucketCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Group collects every final item for one source file.
type Group struct {
	GroupKey string  `json:"group_key"`
	SrcFile  SrcFile `json:"src_file"`
	Items    []Item  `json:"items"`
	Rollup   Rollup  `json:"rollup"`
}

type SrcFile struct {
	Path  string  `json:"path"`
	Size  *int64  `json:"size"`
	Mtime *string `json:"mtime"`
	Hash  *string `json:"hash"`
}

type Rollup struct {
	Count         int      `json:"count"`
	ConfidenceMin float64  `json:"confidence_min"`
	ConfidenceMax float64  `json:"confidence_max"`
	Warnings      []string `json:"warnings"`
}

// Item is one winning rename with its evidence and losing alternatives.
type Item struct {
	ID               string          `json:"id"`
	Origin           Origin          `json:"origin"`
	Confidence       float64         `json:"confidence"`
	ConfidenceBucket string          `json:"confidence_bucket"`
	Src              ItemSrc         `json:"src"`
	Dst              ItemDst         `json:"dst"`
	Sources          []ItemSource    `json:"sources"`
	Warnings         []string        `json:"warnings"`
	Anthology        bool            `json:"anthology"`
	Disambiguation   *Disambiguation `json:"disambiguation"`
	Alternatives     []Alternative   `json:"alternatives"`
	Explain          *Explain        `json:"explain"`
}

type ItemSrc struct {
	Path    string  `json:"path"`
	Segment *string `json:"segment"`
}

type ItemDst struct {
	Path    string  `json:"path"`
	Episode *string `json:"episode"`
	Movie   *string `json:"movie"`
	Track   *string `json:"track"`
}

type ItemSource struct {
	Provider media.ProviderName `json:"provider"`
	ID       string             `json:"id"`
	Type     string             `json:"type"`
}

type Alternative struct {
	Origin     Origin         `json:"origin"`
	Confidence float64        `json:"confidence"`
	Dst        AlternativeDst `json:"dst"`
	Reason     *string        `json:"reason"`
}

type AlternativeDst struct {
	Path string `json:"path"`
}

type Disambiguation struct {
	Status string `json:"status"`
	Title  string `json:"title,omitempty"`
	Year   int    `json:"year,omitempty"`
}

type Explain struct {
	Reason string `json:"reason"`
}

// Encode serializes the review with a stable two-space indent.
func (r *Review) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode plan review: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeReview parses a previously encoded review document.
func DecodeReview(data []byte) (*Review, error) {
	var review Review
	if err := json.Unmarshal(data, &review); err != nil {
		return nil, fmt.Errorf("decode plan review: %w", err)
	}
	if review.SchemaVersion != schemaVersion {
		return nil, fmt.Errorf("plan review schema %q not supported", review.SchemaVersion)
	}
	return &review, nil
}

// Builder assembles review documents. The zero value stamps a fresh
// plan id and the current time; options pin those for reproducible
// output.
type Builder struct {
	planID            string
	scanID            *string
	sourceFingerprint *string
	now               func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithPlanID pins the plan identifier instead of generating one.
func WithPlanID(id string) Option {
	return func(b *Builder) { b.planID = id }
}

// WithScanID links the review to the scan document it came from.
func WithScanID(id string) Option {
	return func(b *Builder) { b.scanID = &id }
}

// WithSourceFingerprint records the scan input fingerprint.
func WithSourceFingerprint(fingerprint string) Option {
	return func(b *Builder) { b.sourceFingerprint = &fingerprint }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// NewBuilder constructs a Builder.
func NewBuilder(opts ...Option) *Builder {
	builder := &Builder{now: time.Now}
	for _, opt := range opts {
		opt(builder)
	}
	return builder
}

type planEntry struct {
	origin Origin
	item   media.PlanItem
}

// Build merges deterministic and model outputs into one review. Items
// that target the same (source, destination) pair compete: the higher
// confidence wins, with near-ties under 0.1 going to the deterministic
// side.
func (b *Builder) Build(mediaType media.MediaType, sources []Source) (*Review, error) {
	if _, err := media.ParseMediaType(string(mediaType)); err != nil {
		return nil, err
	}

	recordsBySrc := make(map[string]media.MediaRecord, len(sources))
	grouped := make(map[[2]string][]planEntry)
	var keyOrder [][2]string

	appendEntry := func(src string, origin Origin, item media.PlanItem) {
		key := [2]string{src, item.DstPath}
		if _, seen := grouped[key]; !seen {
			keyOrder = append(keyOrder, key)
		}
		grouped[key] = append(grouped[key], planEntry{origin: origin, item: item})
	}

	for _, source := range sources {
		recordsBySrc[source.Record.Path] = source.Record
		for _, item := range source.Deterministic {
			appendEntry(source.Record.Path, OriginDeterministic, item)
		}
		for _, item := range source.LLM {
			appendEntry(source.Record.Path, OriginLLM, item)
		}
	}

	items := make([]Item, 0, len(keyOrder))
	tiePaths := make(map[string]struct{})
	for index, key := range keyOrder {
		winner, alternatives, tie := selectWinner(grouped[key])
		record, ok := recordsBySrc[key[0]]
		item := buildItem(
			fmt.Sprintf("pli_%04d", index+1),
			winner, alternatives, tie, mediaType, record, ok,
		)
		items = append(items, item)
		if tie {
			tiePaths[key[0]] = struct{}{}
		}
	}

	sortItems(mediaType, items)

	generatedAt := b.now().UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
	planID := b.planID
	if planID == "" {
		planID = "pln_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	return &Review{
		PlanID:            planID,
		SchemaVersion:     schemaVersion,
		GeneratedAt:       generatedAt,
		ScanID:            b.scanID,
		SourceFingerprint: b.sourceFingerprint,
		MediaType:         mediaType,
		Summary:           buildSummary(items),
		Groups:            buildGroups(items, recordsBySrc),
		Items:             items,
		Notes:             buildNotes(tiePaths),
	}, nil
}

// selectWinner picks the final entry for one (src, dst) pair. When both
// origins are present and their best confidences differ by less than
// 0.1, the deterministic entry wins and the tie is flagged.
func selectWinner(entries []planEntry) (planEntry, []planEntry, bool) {
	bestDet := bestByOrigin(entries, OriginDeterministic)
	bestLLM := bestByOrigin(entries, OriginLLM)

	var winner *planEntry
	tie := false
	switch {
	case bestDet != nil && bestLLM != nil:
		if diff := bestDet.item.Confidence - bestLLM.item.Confidence; diff < 0.1 && diff > -0.1 {
			winner = bestDet
			tie = true
		} else if bestDet.item.Confidence > bestLLM.item.Confidence {
			winner = bestDet
		} else {
			winner = bestLLM
		}
	default:
		winner = &entries[0]
		for i := range entries {
			if entries[i].item.Confidence > winner.item.Confidence {
				winner = &entries[i]
			}
		}
	}

	alternatives := make([]planEntry, 0, len(entries)-1)
	for i := range entries {
		if &entries[i] != winner {
			alternatives = append(alternatives, entries[i])
		}
	}
	return *winner, alternatives, tie
}

func bestByOrigin(entries []planEntry, origin Origin) *planEntry {
	var best *planEntry
	for i := range entries {
		if entries[i].origin != origin {
			continue
		}
		if best == nil || entries[i].item.Confidence > best.item.Confidence {
			best = &entries[i]
		}
	}
	return best
}

func buildItem(id string, winner planEntry, alternatives []planEntry, tie bool, mediaType media.MediaType, record media.MediaRecord, haveRecord bool) Item {
	warnings := append([]string(nil), winner.item.Warnings...)
	if tie && !containsString(warnings, tieBreakerWarning) {
		warnings = append(warnings, tieBreakerWarning)
	}
	if warnings == nil {
		warnings = []string{}
	}

	itemSources := make([]ItemSource, 0, len(winner.item.Sources))
	for _, ref := range winner.item.Sources {
		itemSources = append(itemSources, ItemSource{
			Provider: ref.Provider,
			ID:       ref.ID,
			Type:     sourceType(mediaType),
		})
	}

	itemAlternatives := make([]Alternative, 0, len(alternatives))
	for _, alt := range alternatives {
		var reason *string
		if alt.item.Reason != "" {
			value := alt.item.Reason
			reason = &value
		}
		itemAlternatives = append(itemAlternatives, Alternative{
			Origin:     alt.origin,
			Confidence: alt.item.Confidence,
			Dst:        AlternativeDst{Path: alt.item.DstPath},
			Reason:     reason,
		})
	}

	var explain *Explain
	if winner.item.Reason != "" {
		explain = &Explain{Reason: winner.item.Reason}
	}

	item := Item{
		ID:               id,
		Origin:           winner.origin,
		Confidence:       winner.item.Confidence,
		ConfidenceBucket: confidenceBucket(winner.item.Confidence),
		Src:              ItemSrc{Path: winner.item.SrcPath},
		Dst:              ItemDst{Path: winner.item.DstPath},
		Sources:          itemSources,
		Warnings:         warnings,
		Alternatives:     itemAlternatives,
		Explain:          explain,
	}
	if haveRecord {
		item.Anthology = record.AnthologyCandidate
		item.Disambiguation = buildDisambiguation(record)
	}
	return item
}

func buildDisambiguation(record media.MediaRecord) *Disambiguation {
	if !record.NeedsDisambiguation {
		return nil
	}
	return &Disambiguation{
		Status: "needs_user_confirmation",
		Title:  record.ParsedTitle,
		Year:   record.ParsedYear,
	}
}

func confidenceBucket(value float64) string {
	switch {
	case value >= 0.90:
		return "high"
	case value >= 0.70:
		return "medium"
	default:
		return "low"
	}
}

func sourceType(mediaType media.MediaType) string {
	switch mediaType {
	case media.TypeTV:
		return "episode"
	case media.TypeMovie:
		return "movie"
	default:
		return "track"
	}
}

var (
	tvSortPattern    = regexp.MustCompile(`(?i)s(\d{1,2})e(\d{1,2})(?:-?e(\d{1,2}))?`)
	movieSortPattern = regexp.MustCompile(`\((\d{4})\)`)
	trackSortPattern = regexp.MustCompile(`/(\d{2})\s*[-_]`)
)

type itemSortKey struct {
	src     string
	numbers [3]int
	numeric bool
	dst     string
}

// sortKey extracts a media-aware ordering key from the destination
// path: season/episode span for TV, release year for movies, track
// number for music. Paths without the expected token fall back to
// plain (src, dst) ordering after the tokenized ones.
func sortKey(mediaType media.MediaType, item Item) itemSortKey {
	key := itemSortKey{
		src: strings.ToLower(item.Src.Path),
		dst: strings.ToLower(item.Dst.Path),
	}
	switch mediaType {
	case media.TypeTV:
		if match := tvSortPattern.FindStringSubmatch(key.dst); match != nil {
			season, _ := strconv.Atoi(match[1])
			episode, _ := strconv.Atoi(match[2])
			end := episode
			if match[3] != "" {
				end, _ = strconv.Atoi(match[3])
			}
			key.numbers = [3]int{season, episode, end}
			key.numeric = true
		}
	case media.TypeMovie:
		if match := movieSortPattern.FindStringSubmatch(key.dst); match != nil {
			year, _ := strconv.Atoi(match[1])
			key.numbers = [3]int{year, 0, 0}
			key.numeric = true
		}
	case media.TypeMusic:
		if match := trackSortPattern.FindStringSubmatch(key.dst); match != nil {
			track, _ := strconv.Atoi(match[1])
			key.numbers = [3]int{track, 0, 0}
			key.numeric = true
		}
	}
	return key
}

func sortItems(mediaType media.MediaType, items []Item) {
	type keyed struct {
		key  itemSortKey
		item Item
	}
	entries := make([]keyed, len(items))
	for i, item := range items {
		entries[i] = keyed{key: sortKey(mediaType, item), item: item}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].key, entries[j].key
		if a.src != b.src {
			return a.src < b.src
		}
		if a.numeric != b.numeric {
			return a.numeric
		}
		if a.numeric {
			for n := range a.numbers {
				if a.numbers[n] != b.numbers[n] {
					return a.numbers[n] < b.numbers[n]
				}
			}
		}
		return a.dst < b.dst
	})
	for i, entry := range entries {
		items[i] = entry.item
	}
}

func buildGroups(items []Item, recordsBySrc map[string]media.MediaRecord) []Group {
	grouped := make(map[string]*Group)
	var order []string

	for _, item := range items {
		src := item.Src.Path
		group, ok := grouped[src]
		if !ok {
			srcFile := SrcFile{Path: src}
			if record, have := recordsBySrc[src]; have {
				size := record.Size
				srcFile.Size = &size
				if record.Hash != "" {
					hash := record.Hash
					srcFile.Hash = &hash
				}
			}
			group = &Group{GroupKey: src, SrcFile: srcFile, Items: []Item{}}
			grouped[src] = group
			order = append(order, src)
		}
		group.Items = append(group.Items, item)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return strings.ToLower(order[i]) < strings.ToLower(order[j])
	})

	groups := make([]Group, 0, len(order))
	for _, src := range order {
		group := grouped[src]
		warningSet := make(map[string]struct{})
		minConfidence, maxConfidence := 0.0, 0.0
		for index, item := range group.Items {
			for _, warning := range item.Warnings {
				warningSet[warning] = struct{}{}
			}
			if index == 0 || item.Confidence < minConfidence {
				minConfidence = item.Confidence
			}
			if index == 0 || item.Confidence > maxConfidence {
				maxConfidence = item.Confidence
			}
		}
		warnings := make([]string, 0, len(warningSet))
		for warning := range warningSet {
			warnings = append(warnings, warning)
		}
		sort.Strings(warnings)
		group.Rollup = Rollup{
			Count:         len(group.Items),
			ConfidenceMin: minConfidence,
			ConfidenceMax: maxConfidence,
			Warnings:      warnings,
		}
		groups = append(groups, *group)
	}
	return groups
}

func buildSummary(items []Item) Summary {
	summary := Summary{TotalItems: len(items)}
	for _, item := range items {
		switch item.Origin {
		case OriginDeterministic:
			summary.ByOrigin.Deterministic++
		case OriginLLM:
			summary.ByOrigin.LLM++
		}
		switch item.ConfidenceBucket {
		case "high":
			summary.ByConfidence.High++
		case "medium":
			summary.ByConfidence.Medium++
		default:
			summary.ByConfidence.Low++
		}
		summary.Warnings += len(item.Warnings)
		if item.Anthology {
			summary.AnthologyCandidates++
		}
		if item.Disambiguation != nil {
			summary.Disambiguations++
		}
	}
	return summary
}

func buildNotes(tiePaths map[string]struct{}) []string {
	if len(tiePaths) == 0 {
		return []string{}
	}
	paths := make([]string, 0, len(tiePaths))
	for path := range tiePaths {
		paths = append(paths, path)
	}
	sort.SliceStable(paths, func(i, j int) bool {
		return strings.ToLower(paths[i]) < strings.ToLower(paths[j])
	})
	return []string{"Deterministic results preferred for near-ties at: " + strings.Join(paths, ", ")}
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
