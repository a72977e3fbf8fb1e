package filter

import "github.com/maxvaer/keyprobe/internal/scanner"

// Filter decides whether a probe result should be hidden from output.
type Filter interface {
	Name() string
	ShouldFilter(result *scanner.ProbeResult) bool
}

// Chain applies multiple filters in order, short-circuiting on the first match.
type Chain struct {
	filters []Filter
}

// NewChain returns an empty filter chain.
func NewChain() *Chain {
	return &Chain{}
}

// Add appends a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Len returns the number of filters in the chain.
func (c *Chain) Len() int {
	return len(c.filters)
}

// Apply runs every filter against the result. Returns true and the filter
// name if the result should be filtered out.
func (c *Chain) Apply(result *scanner.ProbeResult) (bool, string) {
	for _, f := range c.filters {
		if f.ShouldFilter(result) {
			return true, f.Name()
		}
	}
	return false, ""
}

// Visible returns the results that pass the chain, keeping their order.
// The input slice is not modified.
func (c *Chain) Visible(results []scanner.ProbeResult) []scanner.ProbeResult {
	visible := make([]scanner.ProbeResult, 0, len(results))
	for i := range results {
		if filtered, _ := c.Apply(&results[i]); !filtered {
			visible = append(visible, results[i])
		}
	}
	return visible
}
