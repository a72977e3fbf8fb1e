package filter

import (
	"strings"

	"github.com/maxvaer/keyprobe/internal/scanner"
)

// MatchFilter only passes results whose reason or snippet contains a given
// string, case-insensitively.
type MatchFilter struct {
	needle string
}

// NewMatchFilter creates a filter that requires needle in reason or snippet.
func NewMatchFilter(needle string) *MatchFilter {
	return &MatchFilter{needle: strings.ToLower(needle)}
}

func (f *MatchFilter) Name() string { return "match" }

func (f *MatchFilter) ShouldFilter(result *scanner.ProbeResult) bool {
	return !strings.Contains(strings.ToLower(result.Reason), f.needle) &&
		!strings.Contains(strings.ToLower(result.Snippet), f.needle)
}
