package media

import (
	"fmt"
	"strings"
)

// ProviderName identifies a metadata provider in a SourceRef.
type ProviderName string

const (
	ProviderTMDB        ProviderName = "tmdb"
	ProviderTVDB        ProviderName = "tvdb"
	ProviderMusicBrainz ProviderName = "musicbrainz"
	ProviderAniList     ProviderName = "anilist"
	ProviderOMDb        ProviderName = "omdb"
	ProviderTheAudioDB  ProviderName = "theaudiodb"
	ProviderTVMaze      ProviderName = "tvmaze"
)

var knownProviders = map[ProviderName]struct{}{
	ProviderTMDB:        {},
	ProviderTVDB:        {},
	ProviderMusicBrainz: {},
	ProviderAniList:     {},
	ProviderOMDb:        {},
	ProviderTheAudioDB:  {},
	ProviderTVMaze:      {},
}

// KnownProvider reports whether name is a supported provider identifier.
func KnownProvider(name string) bool {
	_, ok := knownProviders[ProviderName(strings.ToLower(strings.TrimSpace(name)))]
	return ok
}

// SourceRef is an immutable reference to a provider entity.
type SourceRef struct {
	Provider ProviderName `json:"provider"`
	ID       string       `json:"id"`
}

// NewSourceRef validates the provider name and entity id.
func NewSourceRef(provider ProviderName, id string) (SourceRef, error) {
	if _, ok := knownProviders[provider]; !ok {
		return SourceRef{}, fmt.Errorf("unknown provider %q", provider)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return SourceRef{}, fmt.Errorf("provider %s: entity id required", provider)
	}
	return SourceRef{Provider: provider, ID: id}, nil
}

// PlanItem is a single planned rename: source, destination, and the
// evidence behind the match. Items are immutable once constructed.
type PlanItem struct {
	SrcPath    string      `json:"src_path"`
	DstPath    string      `json:"dst_path"`
	Reason     string      `json:"reason"`
	Confidence float64     `json:"confidence"`
	Sources    []SourceRef `json:"sources"`
	Warnings   []string    `json:"warnings"`
}

// NewPlanItem validates confidence bounds at construction.
func NewPlanItem(srcPath, dstPath, reason string, confidence float64, sources []SourceRef, warnings []string) (PlanItem, error) {
	if strings.TrimSpace(srcPath) == "" {
		return PlanItem{}, fmt.Errorf("plan item: source path required")
	}
	if strings.TrimSpace(dstPath) == "" {
		return PlanItem{}, fmt.Errorf("plan item: destination path required")
	}
	if confidence < 0.0 || confidence > 1.0 {
		return PlanItem{}, fmt.Errorf("plan item: confidence %.3f outside [0, 1]", confidence)
	}
	return PlanItem{
		SrcPath:    srcPath,
		DstPath:    dstPath,
		Reason:     reason,
		Confidence: confidence,
		Sources:    append([]SourceRef(nil), sources...),
		Warnings:   append([]string(nil), warnings...),
	}, nil
}
