package output

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"

	"github.com/maxvaer/keyprobe/internal/classify"
	"github.com/maxvaer/keyprobe/internal/scanner"
)

// Progress tracks and displays scan progress on stderr.
type Progress struct {
	bar        *progressbar.ProgressBar
	vulnerable atomic.Int64
	errors     atomic.Int64
	noColor    bool
}

// NewProgress creates a progress bar over total probes. A quiet progress
// only counts.
func NewProgress(total int, quiet, noColor bool) *Progress {
	return newProgress(os.Stderr, total, quiet, noColor)
}

func newProgress(w io.Writer, total int, quiet, noColor bool) *Progress {
	p := &Progress{noColor: noColor}
	if quiet || total <= 0 {
		return p
	}
	saucer, head := "[green]=[reset]", "[green]>[reset]"
	if noColor {
		saucer, head = "=", ">"
	}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(!noColor),
		progressbar.OptionSetDescription(p.describe()),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        saucer,
			SaucerHead:    head,
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
	return p
}

// Increment records a completed probe.
func (p *Progress) Increment(result *scanner.ProbeResult) {
	if result.Label == classify.Vulnerable {
		p.vulnerable.Add(1)
	}
	if !result.HasStatus() {
		p.errors.Add(1)
	}
	if p.bar == nil {
		return
	}
	p.bar.Describe(p.describe())
	_ = p.bar.Add(1)
}

// Vulnerable returns how many vulnerable results have been seen.
func (p *Progress) Vulnerable() int64 { return p.vulnerable.Load() }

// Errors returns how many probes got no HTTP response.
func (p *Progress) Errors() int64 { return p.errors.Load() }

// Stop ends the progress display.
func (p *Progress) Stop() {
	if p.bar == nil {
		return
	}
	if !p.bar.IsFinished() {
		_ = p.bar.Finish()
	}
}

func (p *Progress) describe() string {
	if p.noColor {
		return fmt.Sprintf("Probing | vuln: %d | errors: %d", p.vulnerable.Load(), p.errors.Load())
	}
	return fmt.Sprintf("[cyan]Probing[reset] | [red]vuln: %d[reset] | errors: %d", p.vulnerable.Load(), p.errors.Load())
}
