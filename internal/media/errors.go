package media

import "fmt"

// DisambiguationCandidate is one of the provider matches competing for a
// field that needs user confirmation.
type DisambiguationCandidate struct {
	Provider ProviderName `json:"provider"`
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	Year     int          `json:"year,omitempty"`
}

// DisambiguationError reports that a field matched multiple provider
// entities and user input is needed to proceed.
type DisambiguationError struct {
	Field       string
	Candidates  []DisambiguationCandidate
	SuggestedID string
}

func (e *DisambiguationError) Error() string {
	msg := fmt.Sprintf("disambiguation required for field %q: %d candidates found", e.Field, len(e.Candidates))
	if e.SuggestedID != "" {
		msg += fmt.Sprintf(" (suggested: %s)", e.SuggestedID)
	}
	return msg
}
