package output

import (
	"time"

	"github.com/maxvaer/keyprobe/internal/classify"
	"github.com/maxvaer/keyprobe/internal/scanner"
)

// Stats holds aggregate scan statistics.
type Stats struct {
	Total        int
	Shown        int // results left after filtering
	Vulnerable   int
	Secure       int
	Undetermined int
	ErrorCount   int // probes with no HTTP response
	Duration     time.Duration
}

// Summarize counts labels and failures over a full scan outcome.
func Summarize(results []scanner.ProbeResult, shown int, d time.Duration) Stats {
	s := Stats{Total: len(results), Shown: shown, Duration: d}
	for i := range results {
		switch results[i].Label {
		case classify.Vulnerable:
			s.Vulnerable++
		case classify.Secure:
			s.Secure++
		default:
			s.Undetermined++
		}
		if !results[i].HasStatus() {
			s.ErrorCount++
		}
	}
	return s
}

// Writer is implemented by each output format.
type Writer interface {
	WriteHeader() error
	WriteResult(result *scanner.ProbeResult) error
	WriteFooter(stats Stats) error
	Close() error
}
