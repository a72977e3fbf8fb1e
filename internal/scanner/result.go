package scanner

import (
	"fmt"
	"time"

	"github.com/maxvaer/keyprobe/internal/catalog"
	"github.com/maxvaer/keyprobe/internal/classify"
)

// ProbeResult holds the outcome of probing one catalog entry. It is created
// once by whoever ran the probe and never modified afterwards.
type ProbeResult struct {
	API        string
	Method     string
	URL        string // resolved, key included
	StatusCode int    // 0 when no response was received
	Label      classify.Label
	Reason     string
	Snippet    string // truncated body preview, empty when absent
	Duration   time.Duration
	Err        error // transport or worker failure
}

// HasStatus reports whether an HTTP response was received.
func (r *ProbeResult) HasStatus() bool {
	return r.StatusCode != 0
}

// undetermined builds the record for a probe that produced no response.
func undetermined(entry catalog.Entry, key, reason string, err error) ProbeResult {
	return ProbeResult{
		API:    entry.Name,
		Method: entry.Method,
		URL:    entry.ResolveURL(key),
		Label:  classify.Undetermined,
		Reason: reason,
		Err:    err,
	}
}

func requestFailed(entry catalog.Entry, key string, err error) ProbeResult {
	return undetermined(entry, key, fmt.Sprintf("Request failed: %v", err), err)
}

func workerFailed(entry catalog.Entry, key string, err error) ProbeResult {
	return undetermined(entry, key, fmt.Sprintf("Exception in worker: %v", err), err)
}
