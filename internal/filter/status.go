package filter

import "github.com/maxvaer/keyprobe/internal/scanner"

// StatusFilter hides results with the given HTTP status codes. Code 0
// matches results that never got a response.
type StatusFilter struct {
	exclude map[int]struct{}
}

// NewStatusFilter creates a status code filter.
func NewStatusFilter(exclude []int) *StatusFilter {
	f := &StatusFilter{exclude: make(map[int]struct{}, len(exclude))}
	for _, code := range exclude {
		f.exclude[code] = struct{}{}
	}
	return f
}

func (f *StatusFilter) Name() string { return "status" }

func (f *StatusFilter) ShouldFilter(result *scanner.ProbeResult) bool {
	_, ok := f.exclude[result.StatusCode]
	return ok
}
