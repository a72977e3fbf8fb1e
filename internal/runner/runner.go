package runner

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/maxvaer/keyprobe/internal/catalog"
	"github.com/maxvaer/keyprobe/internal/classify"
	"github.com/maxvaer/keyprobe/internal/config"
	"github.com/maxvaer/keyprobe/internal/filter"
	"github.com/maxvaer/keyprobe/internal/hook"
	"github.com/maxvaer/keyprobe/internal/output"
	"github.com/maxvaer/keyprobe/internal/scanner"
	"github.com/maxvaer/keyprobe/pkg/version"
)

// Run executes the full probe pipeline: load the catalog, probe every entry,
// then report the results through the configured writers.
func Run(ctx context.Context, opts *config.Options) error {
	// 1. Build the result filter chain up front so bad flags fail fast.
	chain, err := buildFilters(opts)
	if err != nil {
		return err
	}

	start := time.Now()
	var results []scanner.ProbeResult

	if opts.Demo {
		if !opts.Quiet {
			fmt.Fprintf(os.Stderr, "[*] Demo mode: showing sample results, no network calls\n")
		}
		results = DemoResults()
	} else {
		results, err = scan(ctx, opts)
		if err != nil {
			return err
		}
	}
	elapsed := time.Since(start)

	if ctx.Err() != nil && !opts.Quiet {
		fmt.Fprintf(os.Stderr, "\n[!] Scan interrupted, reporting partial results\n")
	}

	return report(ctx, opts, chain, results, elapsed)
}

// scan loads the catalog and probes every entry with the key.
func scan(ctx context.Context, opts *config.Options) ([]scanner.ProbeResult, error) {
	// 2. Load and narrow the catalog.
	entries, err := loadCatalog(opts)
	if err != nil {
		return nil, err
	}

	// 3. Create HTTP requester.
	req, err := scanner.NewRequester(opts)
	if err != nil {
		return nil, fmt.Errorf("creating requester: %w", err)
	}

	// 4. Print banner.
	if !opts.Quiet {
		printBanner(opts, len(entries))
	}

	// 5. Interactive pause, throttler and progress.
	pauser, restore := startStdinToggle(opts.Quiet)
	defer restore()

	throttler := scanner.NewThrottler(opts.Delay, opts.AdaptiveThrottle, opts.Quiet)
	progress := output.NewProgress(len(entries), opts.Quiet, opts.NoColor)

	cfg := scanner.WorkerConfig{
		Threads:   opts.Concurrency,
		Throttler: throttler,
		Pauser:    pauser,
		OnResult: func(c scanner.Completion) {
			progress.Increment(&c.Result)
		},
	}

	// 6. Probe.
	results := scanner.Scan(ctx, req, opts.Key, entries, cfg)
	progress.Stop()
	restore()

	if pauser != nil && !opts.Quiet {
		if paused := pauser.PausedDuration(); paused > 0 {
			fmt.Fprintf(os.Stderr, "[*] Paused for %s in total\n", paused.Round(time.Millisecond))
		}
	}
	return results, nil
}

func loadCatalog(opts *config.Options) ([]catalog.Entry, error) {
	entries := catalog.Default()
	if opts.CatalogPath != "" {
		loaded, err := catalog.Load(opts.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("loading catalog: %w", err)
		}
		entries = loaded
	}
	if len(opts.Only) > 0 {
		selected, err := catalog.Select(entries, opts.Only)
		if err != nil {
			return nil, err
		}
		entries = selected
	}
	return entries, nil
}

func buildFilters(opts *config.Options) (*filter.Chain, error) {
	chain := filter.NewChain()
	if len(opts.Labels) > 0 {
		labels := make([]classify.Label, 0, len(opts.Labels))
		for _, name := range opts.Labels {
			l, err := classify.ParseLabel(name)
			if err != nil {
				return nil, err
			}
			labels = append(labels, l)
		}
		chain.Add(filter.NewLabelFilter(labels))
	}
	if len(opts.ExcludeStatus) > 0 {
		chain.Add(filter.NewStatusFilter(opts.ExcludeStatus))
	}
	if opts.Match != "" {
		chain.Add(filter.NewMatchFilter(opts.Match))
	}
	return chain, nil
}

// report renders the results that pass the filter chain on the console and
// into the export files, then runs the result hook.
func report(ctx context.Context, opts *config.Options, chain *filter.Chain, results []scanner.ProbeResult, elapsed time.Duration) error {
	visible := chain.Visible(results)
	stats := output.Summarize(results, len(visible), elapsed)

	out, err := createWriter(opts)
	if err != nil {
		return fmt.Errorf("creating output writer: %w", err)
	}

	if err := out.WriteHeader(); err != nil {
		out.Close()
		return err
	}
	for i := range visible {
		if err := out.WriteResult(&visible[i]); err != nil {
			out.Close()
			return err
		}
	}
	if err := out.WriteFooter(stats); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if !opts.Quiet {
		if opts.OutputJSON != "" {
			fmt.Fprintf(os.Stderr, "[+] Saved JSON output to %s\n", opts.OutputJSON)
		}
		if opts.OutputCSV != "" {
			fmt.Fprintf(os.Stderr, "[+] Saved CSV output to %s\n", opts.OutputCSV)
		}
	}

	if opts.OnResultCmd != "" && ctx.Err() == nil {
		hookRunner := hook.NewRunner(opts.OnResultCmd, opts.Quiet)
		for i := range visible {
			hookRunner.Run(ctx, &visible[i])
		}
	}
	return nil
}

// createWriter combines the console table with any requested export files.
func createWriter(opts *config.Options) (output.Writer, error) {
	text, err := output.NewTextWriter("", opts.NoColor, opts.Quiet)
	if err != nil {
		return nil, err
	}
	writers := []output.Writer{text}

	if opts.OutputJSON != "" {
		w, err := output.NewJSONWriter(opts.OutputJSON)
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}
	if opts.OutputCSV != "" {
		w, err := output.NewCSVWriter(opts.OutputCSV)
		if err != nil {
			for _, open := range writers {
				open.Close()
			}
			return nil, err
		}
		writers = append(writers, w)
	}

	var out output.Writer = output.NewMultiWriter(writers...)
	if opts.SortBy != "" {
		out = output.NewSortedWriter(out, opts.SortBy)
	}
	return out, nil
}

// maskKey keeps the first and last four characters of a key.
func maskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

func printBanner(opts *config.Options, entryCount int) {
	cyan := color.New(color.FgCyan)
	white := color.New(color.FgHiWhite)
	dim := color.New(color.Faint)
	yellow := color.New(color.FgYellow)
	if opts.NoColor {
		for _, c := range []*color.Color{cyan, white, dim, yellow} {
			c.DisableColor()
		}
	}

	art := []string{
		`   __                                  __`,
		`  / /_____ __ __ ___  _______  ___  / /  ___`,
		` /  '_/ -_) // // _ \/ __/ _ \/ _ \/ _ \/ -_)`,
		`/_/\_\\__/\_, // .__/_/  \___/_.__/_.__/\__/`,
		`         /___//_/`,
	}
	fmt.Fprintln(os.Stderr)
	for _, l := range art {
		fmt.Fprintln(os.Stderr, cyan.Sprint(l))
	}
	fmt.Fprintf(os.Stderr, "    %s %s\n\n", white.Sprint("API Key Exposure Prober"), dim.Sprintf("v%s", version.Version))

	line := dim.Sprint("  ──────────────────────────────────────")
	fmt.Fprintln(os.Stderr, line)
	fmt.Fprintf(os.Stderr, "  %s          %s\n", dim.Sprint("Key:"), white.Sprint(maskKey(opts.Key)))
	fmt.Fprintf(os.Stderr, "  %s      %s\n", dim.Sprint("Catalog:"), white.Sprintf("%d APIs", entryCount))
	fmt.Fprintf(os.Stderr, "  %s  %s\n", dim.Sprint("Concurrency:"), yellow.Sprint(opts.Concurrency))
	fmt.Fprintf(os.Stderr, "  %s      %s\n", dim.Sprint("Timeout:"), white.Sprint(opts.Timeout))
	if opts.Delay > 0 || opts.AdaptiveThrottle {
		mode := "fixed"
		if opts.AdaptiveThrottle {
			mode = "adaptive"
		}
		fmt.Fprintf(os.Stderr, "  %s        %s\n", dim.Sprint("Delay:"), yellow.Sprintf("%s (%s)", opts.Delay, mode))
	}
	fmt.Fprintln(os.Stderr, line)
	fmt.Fprintln(os.Stderr)
}
