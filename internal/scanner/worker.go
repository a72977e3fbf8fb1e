package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/maxvaer/keyprobe/internal/catalog"
)

// MinThreads is the smallest worker pool ever started.
const MinThreads = 2

// errNotDispatched marks entries the scan never got to.
var errNotDispatched = errors.New("scan cancelled before probe")

// WorkItem is one unit of work: a catalog entry and its position.
type WorkItem struct {
	Index int
	Entry catalog.Entry
}

// Completion is a finished unit of work, tagged with its catalog index.
type Completion struct {
	Index  int
	Result ProbeResult
}

// WorkerConfig holds options for the worker pool.
type WorkerConfig struct {
	Threads   int
	Throttler *Throttler // nil = dispatch without delay
	Pauser    *Pauser    // nil = no pause support

	// OnResult is called from the collecting goroutine as each probe
	// finishes, in completion order.
	OnResult func(c Completion)
}

// RunWorkerPool dispatches one probe per entry across workers and returns a
// channel of completions in arbitrary order. The channel is closed when every
// dispatched item has been processed. A panic inside a probe is recovered and
// reported as an UNDETERMINED result for that entry. If ctx ends, entries not
// yet dispatched are skipped.
func RunWorkerPool(
	ctx context.Context,
	prober Prober,
	key string,
	entries []catalog.Entry,
	cfg WorkerConfig,
) <-chan Completion {
	threads := cfg.Threads
	if threads < MinThreads {
		threads = MinThreads
	}
	itemsCh := make(chan WorkItem)
	resultsCh := make(chan Completion, threads*2)

	var wg sync.WaitGroup

	// Producer: feed items, spaced out by the throttler.
	go func() {
		defer close(itemsCh)
		for i, entry := range entries {
			if cfg.Throttler != nil {
				if err := cfg.Throttler.Wait(ctx); err != nil {
					return
				}
			}
			select {
			case itemsCh <- WorkItem{Index: i, Entry: entry}:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Workers: consume items, produce completions.
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemsCh {
				if cfg.Pauser != nil {
					_ = cfg.Pauser.Wait(ctx)
				}

				result := safeProbe(ctx, prober, key, item.Entry)

				if cfg.Throttler != nil {
					if result.HasStatus() {
						cfg.Throttler.RecordStatus(result.StatusCode)
					} else {
						cfg.Throttler.RecordError()
					}
				}

				resultsCh <- Completion{Index: item.Index, Result: result}
			}
		}()
	}

	// Closer: when all workers finish, close the results channel.
	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	return resultsCh
}

// safeProbe runs one probe, converting a panic into a worker failure.
func safeProbe(ctx context.Context, prober Prober, key string, entry catalog.Entry) (result ProbeResult) {
	defer func() {
		if rec := recover(); rec != nil {
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("%v", rec)
			}
			result = workerFailed(entry, key, err)
		}
	}()
	return prober.Probe(ctx, entry, key)
}

// Scan probes every entry and returns one result per entry, in catalog order
// regardless of completion order. The returned slice always has
// len(entries) elements.
func Scan(
	ctx context.Context,
	prober Prober,
	key string,
	entries []catalog.Entry,
	cfg WorkerConfig,
) []ProbeResult {
	results := make([]ProbeResult, len(entries))
	filled := make([]bool, len(entries))

	for c := range RunWorkerPool(ctx, prober, key, entries, cfg) {
		results[c.Index] = c.Result
		filled[c.Index] = true
		if cfg.OnResult != nil {
			cfg.OnResult(c)
		}
	}

	for i, ok := range filled {
		if !ok {
			results[i] = undetermined(entries[i], key, "Scan cancelled before probe", errNotDispatched)
		}
	}
	return results
}
