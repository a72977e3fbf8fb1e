package scanner

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maxvaer/keyprobe/internal/catalog"
	"github.com/maxvaer/keyprobe/internal/classify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProber returns a deterministic result per entry after a jittered sleep
// so completions arrive out of order.
type stubProber struct {
	panicOn  map[string]any
	failOn   map[string]bool
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
}

func (s *stubProber) Probe(ctx context.Context, entry catalog.Entry, key string) ProbeResult {
	s.calls.Add(1)
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	h := fnv.New32a()
	h.Write([]byte(entry.Name))
	time.Sleep(time.Duration(h.Sum32()%15) * time.Millisecond)

	if v, ok := s.panicOn[entry.Name]; ok {
		panic(v)
	}
	if s.failOn[entry.Name] {
		return requestFailed(entry, key, fmt.Errorf("dial tcp: connection refused"))
	}
	label := classify.Labels[h.Sum32()%uint32(len(classify.Labels))]
	return ProbeResult{
		API:        entry.Name,
		Method:     entry.Method,
		URL:        entry.ResolveURL(key),
		StatusCode: 200,
		Label:      label,
		Reason:     "stub " + entry.Name,
	}
}

func testEntries(n int) []catalog.Entry {
	entries := make([]catalog.Entry, n)
	for i := range entries {
		entries[i] = catalog.Entry{
			Name:   fmt.Sprintf("API %02d", i),
			Method: "GET",
			URL:    fmt.Sprintf("https://svc%d.test/v1?key={key}", i),
		}
	}
	return entries
}

func TestScan_PreservesCatalogOrder(t *testing.T) {
	entries := testEntries(25)
	results := Scan(context.Background(), &stubProber{}, "k", entries, WorkerConfig{Threads: 8})

	require.Len(t, results, len(entries))
	for i, r := range results {
		assert.Equal(t, entries[i].Name, r.API)
		assert.Equal(t, fmt.Sprintf("https://svc%d.test/v1?key=k", i), r.URL)
		assert.Contains(t, classify.Labels, r.Label)
	}
}

func TestScan_ConcurrencyDoesNotChangeOutcome(t *testing.T) {
	entries := testEntries(20)
	low := Scan(context.Background(), &stubProber{}, "k", entries, WorkerConfig{Threads: 2})
	high := Scan(context.Background(), &stubProber{}, "k", entries, WorkerConfig{Threads: 20})
	assert.Equal(t, low, high)
}

func TestScan_PanicIsIsolated(t *testing.T) {
	entries := testEntries(10)
	prober := &stubProber{panicOn: map[string]any{
		"API 03": "boom",
		"API 07": fmt.Errorf("nil map write"),
	}}

	results := Scan(context.Background(), prober, "k", entries, WorkerConfig{Threads: 3})

	require.Len(t, results, 10)
	for i, r := range results {
		assert.Equal(t, entries[i].Name, r.API)
		switch r.API {
		case "API 03":
			assert.Equal(t, classify.Undetermined, r.Label)
			assert.Equal(t, "Exception in worker: boom", r.Reason)
			assert.False(t, r.HasStatus())
			assert.Empty(t, r.Snippet)
			assert.Equal(t, "https://svc3.test/v1?key=k", r.URL)
		case "API 07":
			assert.Equal(t, "Exception in worker: nil map write", r.Reason)
			assert.Error(t, r.Err)
		default:
			assert.Equal(t, 200, r.StatusCode)
			assert.Equal(t, "stub "+r.API, r.Reason)
		}
	}
}

func TestScan_TransportFailureIsIsolated(t *testing.T) {
	entries := testEntries(6)
	prober := &stubProber{failOn: map[string]bool{"API 02": true}}

	results := Scan(context.Background(), prober, "k", entries, WorkerConfig{Threads: 2})

	require.Len(t, results, 6)
	failed := results[2]
	assert.Equal(t, classify.Undetermined, failed.Label)
	assert.Zero(t, failed.StatusCode)
	assert.Contains(t, failed.Reason, "Request failed")
	assert.Contains(t, failed.Reason, "connection refused")
	for i, r := range results {
		if i != 2 {
			assert.Equal(t, 200, r.StatusCode)
		}
	}
}

func TestScan_ThreadFloor(t *testing.T) {
	prober := &stubProber{}
	results := Scan(context.Background(), prober, "k", testEntries(12), WorkerConfig{Threads: 1})
	require.Len(t, results, 12)
	assert.LessOrEqual(t, prober.peak.Load(), int32(MinThreads))
	assert.Equal(t, int32(12), prober.calls.Load())
}

func TestScan_BoundedConcurrency(t *testing.T) {
	prober := &stubProber{}
	Scan(context.Background(), prober, "k", testEntries(40), WorkerConfig{Threads: 4})
	assert.LessOrEqual(t, prober.peak.Load(), int32(4))
}

func TestScan_DispatchDelay(t *testing.T) {
	entries := testEntries(4)
	cfg := WorkerConfig{
		Threads:   4,
		Throttler: NewThrottler(40*time.Millisecond, false, true),
	}

	start := time.Now()
	results := Scan(context.Background(), &stubProber{}, "k", entries, cfg)
	require.Len(t, results, 4)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestScan_OnResultSeesEveryCompletion(t *testing.T) {
	entries := testEntries(15)
	seen := make(map[int]bool)
	cfg := WorkerConfig{
		Threads: 5,
		OnResult: func(c Completion) {
			assert.False(t, seen[c.Index], "index %d reported twice", c.Index)
			seen[c.Index] = true
			assert.Equal(t, entries[c.Index].Name, c.Result.API)
		},
	}
	Scan(context.Background(), &stubProber{}, "k", entries, cfg)
	assert.Len(t, seen, 15)
}

func TestScan_CancelledKeepsFullLength(t *testing.T) {
	entries := testEntries(10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := Scan(ctx, &stubProber{}, "k", entries, WorkerConfig{
		Threads:   2,
		Throttler: NewThrottler(time.Hour, false, true),
	})

	require.Len(t, results, 10)
	for i, r := range results {
		assert.Equal(t, entries[i].Name, r.API)
		assert.Contains(t, classify.Labels, r.Label)
	}
}

func TestScan_EmptyCatalog(t *testing.T) {
	results := Scan(context.Background(), &stubProber{}, "k", nil, WorkerConfig{Threads: 4})
	assert.Empty(t, results)
}
