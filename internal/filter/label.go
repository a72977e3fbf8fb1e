package filter

import (
	"github.com/maxvaer/keyprobe/internal/classify"
	"github.com/maxvaer/keyprobe/internal/scanner"
)

// LabelFilter only passes results carrying one of the given labels.
type LabelFilter struct {
	include map[classify.Label]struct{}
}

// NewLabelFilter creates a filter that keeps only the given labels.
func NewLabelFilter(labels []classify.Label) *LabelFilter {
	f := &LabelFilter{include: make(map[classify.Label]struct{}, len(labels))}
	for _, l := range labels {
		f.include[l] = struct{}{}
	}
	return f
}

func (f *LabelFilter) Name() string { return "label" }

func (f *LabelFilter) ShouldFilter(result *scanner.ProbeResult) bool {
	_, ok := f.include[result.Label]
	return !ok
}
