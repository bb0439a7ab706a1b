package resolve

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"namegnome/internal/media"
	"namegnome/internal/providers"
)

func TestFetchDeduplicatesAndSorts(t *testing.T) {
	provider := &fakeSeriesProvider{
		name:   media.ProviderTVDB,
		series: []providers.Series{{ID: "1", Name: "Firebuds", Year: 2022}},
		episodes: []media.ProviderEpisode{
			{ID: "e2", Name: "Two", Season: 1, Number: 2},
			{ID: "e1", Name: "One", Season: 1, Number: 1},
			{ID: "e2", Name: "Two again", Season: 1, Number: 2},
		},
	}
	fetcher := &EpisodeCandidateFetcher{Provider: provider}

	got, err := fetcher.Fetch(context.Background(), firebudsRecord())
	if err != nil {
		t.Fatal(err)
	}
	want := []media.ProviderEpisode{
		{ID: "e1", Name: "One", Season: 1, Number: 1},
		{ID: "e2", Name: "Two", Season: 1, Number: 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("candidates = %+v", got)
	}
}

func TestFetchPrefersExactYearMatch(t *testing.T) {
	provider := &fakeSeriesProvider{
		name: media.ProviderTVDB,
		series: []providers.Series{
			{ID: "old", Name: "Danger Mouse", Year: 1981},
			{ID: "new", Name: "Danger Mouse", Year: 2015},
		},
		episodes: []media.ProviderEpisode{{ID: "e1", Name: "One", Season: 1, Number: 1}},
	}
	fetcher := &EpisodeCandidateFetcher{Provider: provider}

	record := firebudsRecord()
	record.ParsedTitle = "Danger Mouse"
	record.ParsedYear = 2015

	got, err := fetcher.Fetch(context.Background(), record)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("candidates = %+v", got)
	}
}

func TestFetchNoSeriesYieldsEmpty(t *testing.T) {
	provider := &fakeSeriesProvider{name: media.ProviderTVDB}
	fetcher := &EpisodeCandidateFetcher{Provider: provider}

	got, err := fetcher.Fetch(context.Background(), firebudsRecord())
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("candidates = %+v", got)
	}
}

func TestFetchPropagatesProviderError(t *testing.T) {
	provider := &fakeSeriesProvider{name: media.ProviderTVDB, searchErr: errors.New("boom")}
	fetcher := &EpisodeCandidateFetcher{Provider: provider}

	if _, err := fetcher.Fetch(context.Background(), firebudsRecord()); err == nil {
		t.Fatal("expected error")
	}
}
