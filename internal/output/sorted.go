package output

import (
	"sort"

	"github.com/maxvaer/keyprobe/internal/classify"
	"github.com/maxvaer/keyprobe/internal/scanner"
)

// SortedWriter buffers results and replays them sorted by a field when
// WriteFooter is called. It wraps any other Writer. Ties keep catalog order.
type SortedWriter struct {
	inner   Writer
	sortBy  string
	results []*scanner.ProbeResult
}

// NewSortedWriter wraps inner and buffers results for sorted replay.
func NewSortedWriter(inner Writer, sortBy string) *SortedWriter {
	return &SortedWriter{inner: inner, sortBy: sortBy}
}

func (w *SortedWriter) WriteHeader() error {
	return w.inner.WriteHeader()
}

func (w *SortedWriter) WriteResult(result *scanner.ProbeResult) error {
	cpy := *result
	w.results = append(w.results, &cpy)
	return nil
}

func (w *SortedWriter) WriteFooter(stats Stats) error {
	sort.SliceStable(w.results, func(i, j int) bool {
		switch w.sortBy {
		case "label":
			return labelRank(w.results[i].Label) < labelRank(w.results[j].Label)
		case "status":
			return w.results[i].StatusCode < w.results[j].StatusCode
		case "api":
			return w.results[i].API < w.results[j].API
		default:
			return false
		}
	})
	for _, r := range w.results {
		if err := w.inner.WriteResult(r); err != nil {
			return err
		}
	}
	return w.inner.WriteFooter(stats)
}

func (w *SortedWriter) Close() error {
	return w.inner.Close()
}

// labelRank orders labels most severe first.
func labelRank(l classify.Label) int {
	for i, known := range classify.Labels {
		if l == known {
			return i
		}
	}
	return len(classify.Labels)
}
