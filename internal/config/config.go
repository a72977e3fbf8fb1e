package config

import "time"

// Options holds all configuration for a keyprobe scan.
type Options struct {
	// Target
	Key         string
	CatalogPath string   // empty = use embedded
	Only        []string // restrict the catalog to these api names
	Demo        bool

	// Performance
	Concurrency      int
	Timeout          time.Duration
	Delay            time.Duration // pause between dispatching consecutive probes
	AdaptiveThrottle bool

	// Result filtering (display/export only; the scan itself is never filtered)
	Labels        []string
	ExcludeStatus []int
	Match         string

	// Output
	OutputJSON  string
	OutputCSV   string
	SortBy      string // "", "label", "api", "status"
	Quiet       bool
	NoColor     bool
	OnResultCmd string

	// HTTP
	Headers         map[string]string
	UserAgent       string
	Proxy           string
	Insecure        bool
	FollowRedirects bool
}
