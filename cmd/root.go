package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/maxvaer/keyprobe/internal/classify"
	"github.com/maxvaer/keyprobe/internal/config"
	"github.com/maxvaer/keyprobe/internal/runner"
	"github.com/maxvaer/keyprobe/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var opts config.Options

type flagGroup struct {
	title string
	flags []string
}

var helpGroups = []flagGroup{
	{"TARGET", []string{"key", "catalog", "only", "demo"}},
	{"RATE-LIMIT", []string{"concurrency", "timeout", "delay", "adaptive-throttle"}},
	{"HTTP", []string{"header", "user-agent", "proxy", "insecure", "follow-redirects"}},
	{"FILTERS", []string{"label", "exclude-status", "match"}},
	{"OUTPUT", []string{"output-json", "output-csv", "sort", "quiet", "no-color", "on-result"}},
}

var sortKeys = []string{"label", "api", "status"}

var rootCmd = &cobra.Command{
	Use:     "keyprobe -k <api-key> [flags]",
	Short:   "Check which web APIs accept a leaked API key",
	Version: version.Version,
	Long: `keyprobe sends one request per API in its catalog with the given key
substituted in, and labels each response VULNERABLE, SECURE or UNDETERMINED.
Only run it against keys you own or are authorized to test.`,
	Example: `  keyprobe -k AIza...
  keyprobe -k AIza... -c 20 --timeout 5s --output-json results.json
  keyprobe -k AIza... --only "Geocode API,Directions API"
  keyprobe -k AIza... --label vulnerable --sort api
  keyprobe -k AIza... --catalog my-apis.json --delay 200ms --adaptive-throttle
  keyprobe -k AIza... --on-result "notify-send '{label}: {api}'"
  keyprobe --demo`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if opts.Key == "" && !opts.Demo {
			_ = cmd.Help()
			fmt.Fprintln(os.Stderr)
			return fmt.Errorf("missing required --key argument, use --key YOUR_API_KEY or run with --demo")
		}
		if opts.Concurrency < 1 {
			return fmt.Errorf("--concurrency must be at least 1")
		}
		if opts.Timeout <= 0 {
			return fmt.Errorf("--timeout must be positive")
		}
		if opts.SortBy != "" {
			opts.SortBy = strings.ToLower(opts.SortBy)
			if !contains(sortKeys, opts.SortBy) {
				return fmt.Errorf("--sort must be one of: %s", strings.Join(sortKeys, ", "))
			}
		}
		for _, l := range opts.Labels {
			if _, err := classify.ParseLabel(l); err != nil {
				return err
			}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return runner.Run(ctx, &opts)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.Flags()

	// Target
	f.StringVarP(&opts.Key, "key", "k", "", "API key to test")
	f.StringVar(&opts.CatalogPath, "catalog", "", "JSON catalog of APIs to probe (default: built-in)")
	f.StringSliceVar(&opts.Only, "only", nil, "Only probe these APIs by name (comma-separated)")
	f.BoolVar(&opts.Demo, "demo", false, "Show sample results without network calls")

	// Performance
	f.IntVarP(&opts.Concurrency, "concurrency", "c", 10, "Number of concurrent workers")
	f.DurationVar(&opts.Timeout, "timeout", 8*time.Second, "HTTP request timeout")
	f.DurationVar(&opts.Delay, "delay", 0, "Delay between dispatching requests")
	f.BoolVar(&opts.AdaptiveThrottle, "adaptive-throttle", false, "Auto back-off on 429/503")

	// HTTP
	f.StringArrayP("header", "H", nil, "Custom headers (Key: Value)")
	f.StringVar(&opts.UserAgent, "user-agent", "", "Custom User-Agent string")
	f.StringVar(&opts.Proxy, "proxy", "", "HTTP/SOCKS proxy URL")
	f.BoolVar(&opts.Insecure, "insecure", false, "Skip TLS certificate verification")
	f.BoolVar(&opts.FollowRedirects, "follow-redirects", true, "Follow HTTP redirects")

	// Filtering
	f.StringSliceVar(&opts.Labels, "label", nil, "Only show these labels: vulnerable, secure, undetermined")
	f.VarP(&intSliceValue{target: &opts.ExcludeStatus}, "exclude-status", "x", "Hide these status codes, 0 for no response (comma-separated)")
	f.StringVar(&opts.Match, "match", "", "Only show results whose reason or snippet contains this string")

	// Output
	f.StringVar(&opts.OutputJSON, "output-json", "", "Save results to JSON file")
	f.StringVar(&opts.OutputCSV, "output-csv", "", "Save results to CSV file")
	f.StringVar(&opts.SortBy, "sort", "", "Sort results: label, api, status")
	f.BoolVarP(&opts.Quiet, "quiet", "q", false, "Minimal output")
	f.BoolVar(&opts.NoColor, "no-color", false, "Disable colored output")
	f.StringVar(&opts.OnResultCmd, "on-result", "", "Shell command to run for each shown result (receives JSON on stdin)")

	// Custom help: categorized flags.
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		w := os.Stderr
		fmt.Fprint(w, helpBanner(cmd.Version))
		fmt.Fprintf(w, "%s\n\nUsage:\n  %s\n", cmd.Long, cmd.UseLine())
		fmt.Fprintf(w, "\nExamples:\n%s\n", cmd.Example)
		fmt.Fprintf(w, "\nFlags:\n")
		for _, g := range helpGroups {
			fmt.Fprintf(w, "\n%s:\n", g.title)
			for _, name := range g.flags {
				if f := cmd.Flags().Lookup(name); f != nil {
					fmt.Fprintln(w, formatFlag(f))
				}
			}
		}
		fmt.Fprintln(w)
	})

	// Parse headers from the string array into a map in PreRun.
	rootCmd.PreRunE = chainPreRun(rootCmd.PreRunE, func(cmd *cobra.Command, args []string) error {
		raw, _ := f.GetStringArray("header")
		headers, err := parseHeaders(raw)
		if err != nil {
			return err
		}
		opts.Headers = headers
		return nil
	})
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// chainPreRun combines two PreRunE functions.
func chainPreRun(first, second func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if first != nil {
			if err := first(cmd, args); err != nil {
				return err
			}
		}
		return second(cmd, args)
	}
}

// parseHeaders turns "Key: Value" strings into a header map.
func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("invalid header format %q, expected 'Key: Value'", h)
		}
		headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return headers, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// intSliceValue implements pflag.Value for comma-separated int slices.
type intSliceValue struct {
	target *[]int
}

func (v *intSliceValue) String() string {
	if v.target == nil || len(*v.target) == 0 {
		return ""
	}
	parts := make([]string, len(*v.target))
	for i, val := range *v.target {
		parts[i] = strconv.Itoa(val)
	}
	return strings.Join(parts, ",")
}

func (v *intSliceValue) Set(s string) error {
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid status code %q: %w", p, err)
		}
		*v.target = append(*v.target, n)
	}
	return nil
}

func (v *intSliceValue) Type() string { return "ints" }

func formatFlag(f *pflag.Flag) string {
	var left string
	if f.Shorthand != "" {
		left = fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	} else {
		left = fmt.Sprintf("    --%s", f.Name)
	}

	typ := f.Value.Type()
	if typ != "bool" {
		left += " " + typ
	}

	// Pad to fixed column width for aligned descriptions.
	const col = 36
	for len(left) < col {
		left += " "
	}

	right := f.Usage
	def := f.DefValue
	if def != "" && def != "false" && def != "0" && def != "0s" && def != "[]" {
		right += fmt.Sprintf(" (default %s)", def)
	}

	return "   " + left + right
}

func helpBanner(ver string) string {
	if ver != "dev" && ver != "" && !strings.HasPrefix(ver, "v") {
		ver = "v" + ver
	}
	return fmt.Sprintf(`
   __                          __
  / /_____ __ __ ___  _______ / /  ___
 /  '_/ -_) // // _ \/ __/ _ \/ _ \/ -_)
/_/\_\\__/\_, // .__/_/  \___/_.__/\__/   %s
         /___//_/

`, ver)
}
