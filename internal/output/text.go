package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/maxvaer/keyprobe/internal/classify"
	"github.com/maxvaer/keyprobe/internal/scanner"
)

// Column widths of the console table.
const (
	apiWidth    = 28
	statusWidth = 12
	httpWidth   = 4
)

// TextWriter renders results as a colored console table.
type TextWriter struct {
	w         io.Writer
	quiet     bool
	maxReason int // 0 = no limit

	title      *color.Color
	api        *color.Color
	dim        *color.Color
	vulnerable *color.Color
	secure     *color.Color
	undeterm   *color.Color
}

// NewTextWriter creates a text output writer. If outputFile is empty, stdout
// is used and the reason column is fitted to the terminal width. noColor
// disables ANSI escape codes.
func NewTextWriter(outputFile string, noColor, quiet bool) (*TextWriter, error) {
	var w io.Writer = os.Stdout
	maxReason := 0
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return nil, err
		}
		w = f
		noColor = true
	} else if fd := int(os.Stdout.Fd()); term.IsTerminal(fd) {
		if width, _, err := term.GetSize(fd); err == nil {
			maxReason = width - (apiWidth + statusWidth + httpWidth + 6)
		}
	}

	t := &TextWriter{
		w:          w,
		quiet:      quiet,
		maxReason:  maxReason,
		title:      color.New(color.Bold),
		api:        color.New(color.FgCyan, color.Bold),
		dim:        color.New(color.Faint),
		vulnerable: color.New(color.FgRed, color.Bold),
		secure:     color.New(color.FgGreen),
		undeterm:   color.New(color.FgYellow),
	}
	if noColor {
		for _, c := range []*color.Color{t.title, t.api, t.dim, t.vulnerable, t.secure, t.undeterm} {
			c.DisableColor()
		}
	}
	return t, nil
}

func (t *TextWriter) WriteHeader() error {
	if t.quiet {
		return nil
	}
	header := fmt.Sprintf("%-*s  %-*s  %*s  %s", apiWidth, "API", statusWidth, "Status", httpWidth, "HTTP", "Reason / Notes")
	_, err := fmt.Fprintf(t.w, "\n%s\n%s\n%s\n",
		t.title.Sprint("API Key Exposure Report"),
		t.dim.Sprint(header),
		t.dim.Sprint(strings.Repeat("─", len(header))),
	)
	return err
}

func (t *TextWriter) WriteResult(result *scanner.ProbeResult) error {
	status := "-"
	if result.HasStatus() {
		status = strconv.Itoa(result.StatusCode)
	}

	reason := result.Reason
	if t.maxReason > 10 {
		reason = classify.Truncate(reason, t.maxReason-3)
	}

	_, err := fmt.Fprintf(t.w, "%s  %s  %*s  %s\n",
		t.api.Sprintf("%-*s", apiWidth, result.API),
		t.labelColor(result.Label).Sprintf("%-*s", statusWidth, result.Label),
		httpWidth, status,
		t.dim.Sprint(reason),
	)
	return err
}

func (t *TextWriter) WriteFooter(stats Stats) error {
	count := t.vulnerable.Sprint(stats.Vulnerable)
	if stats.Vulnerable == 0 {
		count = t.secure.Sprint(0)
	}
	if _, err := fmt.Fprintf(t.w, "\nVulnerable APIs found: %s\n", count); err != nil {
		return err
	}
	if t.quiet {
		return nil
	}
	_, err := fmt.Fprintf(os.Stderr,
		"\nCompleted: %d probes | Shown: %d | Vulnerable: %d | Secure: %d | Undetermined: %d | Errors: %d\nScan completed in %.2f seconds.\n",
		stats.Total,
		stats.Shown,
		stats.Vulnerable,
		stats.Secure,
		stats.Undetermined,
		stats.ErrorCount,
		stats.Duration.Round(time.Millisecond).Seconds(),
	)
	return err
}

func (t *TextWriter) Close() error {
	if closer, ok := t.w.(io.Closer); ok && t.w != os.Stdout {
		return closer.Close()
	}
	return nil
}

func (t *TextWriter) labelColor(l classify.Label) *color.Color {
	switch l {
	case classify.Vulnerable:
		return t.vulnerable
	case classify.Secure:
		return t.secure
	default:
		return t.undeterm
	}
}
