package media

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// MediaType identifies the kind of library a record belongs to.
type MediaType string

const (
	TypeTV    MediaType = "tv"
	TypeMovie MediaType = "movie"
	TypeMusic MediaType = "music"
)

// ParseMediaType validates a media type string.
func ParseMediaType(value string) (MediaType, error) {
	switch MediaType(strings.ToLower(strings.TrimSpace(value))) {
	case TypeTV:
		return TypeTV, nil
	case TypeMovie:
		return TypeMovie, nil
	case TypeMusic:
		return TypeMusic, nil
	default:
		return "", fmt.Errorf("unsupported media type %q", value)
	}
}

// SegmentSource records where an episode segment was parsed from.
type SegmentSource string

const (
	SegmentFromFilename SegmentSource = "filename"
	SegmentFromDirname  SegmentSource = "dirname"
	SegmentFromBoth     SegmentSource = "both"
	SegmentFromUnknown  SegmentSource = "unknown"
)

// EpisodeSegment is one candidate episode sub-range within an anthology
// file. Start and End are nil when the parser could not determine a bound.
type EpisodeSegment struct {
	Start       *int          `json:"start"`
	End         *int          `json:"end"`
	TitleTokens []string      `json:"title_tokens"`
	RawSpan     string        `json:"raw_span"`
	Source      SegmentSource `json:"source"`
}

// NewSegment builds a segment and enforces end >= start when both bounds
// are present.
func NewSegment(start, end *int, tokens []string, rawSpan string, source SegmentSource) (EpisodeSegment, error) {
	if start != nil && end != nil && *end < *start {
		return EpisodeSegment{}, fmt.Errorf("segment end %d cannot be less than start %d", *end, *start)
	}
	if source == "" {
		source = SegmentFromUnknown
	}
	return EpisodeSegment{
		Start:       start,
		End:         end,
		TitleTokens: append([]string(nil), tokens...),
		RawSpan:     rawSpan,
		Source:      source,
	}, nil
}

// Span renders the segment in E%02d[-E%02d] form, falling back to the raw
// span when a bound is missing.
func (s EpisodeSegment) Span() string {
	switch {
	case s.Start != nil && s.End != nil && *s.End != *s.Start:
		return fmt.Sprintf("E%02d-E%02d", *s.Start, *s.End)
	case s.Start != nil:
		return fmt.Sprintf("E%02d", *s.Start)
	default:
		return s.RawSpan
	}
}

// MediaRecord is a single scanned file with everything the external parser
// extracted from its name and location. Records are produced once by the
// scanner and never mutated by the resolution engine.
type MediaRecord struct {
	Path                string           `json:"path"`
	Size                int64            `json:"size"`
	Hash                string           `json:"hash,omitempty"`
	ParsedTitle         string           `json:"parsed_title,omitempty"`
	ParsedSeason        int              `json:"parsed_season,omitempty"`
	ParsedEpisode       int              `json:"parsed_episode,omitempty"`
	ParsedYear          int              `json:"parsed_year,omitempty"`
	ParsedTrack         int              `json:"parsed_track,omitempty"`
	ParsedArtist        string           `json:"parsed_artist,omitempty"`
	ParsedAlbum         string           `json:"parsed_album,omitempty"`
	NeedsDisambiguation bool             `json:"needs_disambiguation,omitempty"`
	AnthologyCandidate  bool             `json:"anthology_candidate,omitempty"`
	Segments            []EpisodeSegment `json:"segments,omitempty"`
}

// ScanResult is the document the external scanner hands to the planner.
type ScanResult struct {
	RootPath  string        `json:"root_path"`
	MediaType MediaType     `json:"media_type"`
	Files     []MediaRecord `json:"files"`
	TotalSize int64         `json:"total_size"`
	FileCount int           `json:"file_count"`
}

// DecodeScanResult reads and validates a scan result document.
func DecodeScanResult(r io.Reader) (*ScanResult, error) {
	dec := json.NewDecoder(r)
	var result ScanResult
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("decode scan result: %w", err)
	}
	if _, err := ParseMediaType(string(result.MediaType)); err != nil {
		return nil, fmt.Errorf("scan result: %w", err)
	}
	for i := range result.Files {
		record := &result.Files[i]
		if strings.TrimSpace(record.Path) == "" {
			return nil, fmt.Errorf("scan result: file %d missing path", i)
		}
		for j, seg := range record.Segments {
			if seg.Start != nil && seg.End != nil && *seg.End < *seg.Start {
				return nil, fmt.Errorf("scan result: %s segment %d: end %d before start %d",
					record.Path, j, *seg.End, *seg.Start)
			}
		}
	}
	return &result, nil
}

// ProviderEpisode is a normalized episode candidate from a metadata
// provider, the shape the anthology simplifier and fuzzy resolver consume.
type ProviderEpisode struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Season int    `json:"seasonNumber"`
	Number int    `json:"number"`
}
