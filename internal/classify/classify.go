package classify

import (
	"strings"

	"orderwatch/internal/domain"
)

// Classifier decides whether an order's completion precondition is satisfied.
// The marker phrases are an external contract with the remote system's
// wording (two locale variants observed), so they come from configuration.
type Classifier struct {
	markers []string
}

// New lower-cases the configured markers; empty entries are dropped.
func New(markers []string) *Classifier {
	normalized := make([]string, 0, len(markers))
	for _, m := range markers {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == "" {
			continue
		}
		normalized = append(normalized, m)
	}
	return &Classifier{markers: normalized}
}

// Classify reports whether the detail text contains any precondition marker.
// Matching is case-insensitive substring containment, not structured parsing.
func (c *Classifier) Classify(detailText string) domain.Outcome {
	text := strings.ToLower(detailText)
	for _, marker := range c.markers {
		if strings.Contains(text, marker) {
			return domain.OutcomeCompletable
		}
	}
	return domain.OutcomeNotCompletable
}
