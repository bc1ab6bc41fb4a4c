// Package pipeline wires the analysis run: file discovery feeds concurrent
// replay readers, readers feed concurrent stat-fetch workers, and once every
// stage has joined the cache is filled and the replays are folded into the
// report engine in a single pass.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vporokh/go-tank-metrics/internal/cache"
	"github.com/vporokh/go-tank-metrics/internal/model"
	"github.com/vporokh/go-tank-metrics/internal/parser"
	"github.com/vporokh/go-tank-metrics/internal/reports"
)

// Counters is the run summary. Per-unit failures land in Errors and never
// abort the batch; the run's exit status reflects only whether the pipeline
// itself could start and complete.
type Counters struct {
	Files    int
	Enriched int
	Errors   int
	Queries  int
	Fetch    cache.Counters
}

// Options configures a run.
type Options struct {
	Args     []string // replay files and directories
	Player   model.AccountID
	Readers  int
	Fetchers int
}

const (
	defaultReaders  = 4
	defaultFetchers = 2

	fileQueueDepth    = 64
	accountQueueDepth = 512
	replayQueueDepth  = 64
)

// Run executes the full pipeline and folds every successfully enriched
// replay into the engine. Setup failures cancel all outstanding work; a
// failed replay or account only increments the error counter.
func Run(ctx context.Context, opts Options, engine *reports.Engine, stats *cache.Cache,
	vehicles model.VehicleLookup, maps model.MapLookup, logger zerolog.Logger) (*Counters, error) {

	readers := opts.Readers
	if readers <= 0 {
		readers = defaultReaders
	}
	fetchers := opts.Fetchers
	if fetchers <= 0 {
		fetchers = defaultFetchers
	}

	files, err := parser.Discover(opts.Args)
	if err != nil {
		return nil, fmt.Errorf("discover replays: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no replay files found")
	}

	counters := &Counters{Files: len(files)}
	var mu sync.Mutex

	fileCh := make(chan string, fileQueueDepth)
	accountCh := make(chan model.AccountID, accountQueueDepth)
	replayCh := make(chan *model.EnrichedReplay, replayQueueDepth)

	g, gctx := errgroup.WithContext(ctx)

	// Discovery: single producer for the file queue.
	g.Go(func() error {
		defer close(fileCh)
		for _, path := range files {
			select {
			case fileCh <- path:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	// Readers: parse, enrich, register stat queries, queue account ids. The
	// account and replay queues close only after every reader has signalled
	// completion, so no consumer can block on a producer that already left.
	var readerWG sync.WaitGroup
	readerWG.Add(readers)
	for i := 0; i < readers; i++ {
		g.Go(func() error {
			defer readerWG.Done()
			for path := range fileCh {
				er, err := readOne(path, vehicles, maps, opts.Player, logger)
				if err != nil {
					logger.Warn().Err(err).Str("file", path).Msg("replay skipped")
					mu.Lock()
					counters.Errors++
					mu.Unlock()
					continue
				}
				for _, id := range stats.RegisterReplay(er) {
					select {
					case accountCh <- id:
					case <-gctx.Done():
						return gctx.Err()
					}
				}
				select {
				case replayCh <- er:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		readerWG.Wait()
		close(accountCh)
		close(replayCh)
	}()

	// Stat-fetch workers drain the account queue until it closes.
	for i := 0; i < fetchers; i++ {
		g.Go(func() error {
			fc := stats.Worker(gctx, accountCh)
			mu.Lock()
			counters.Fetch.Merge(fc)
			mu.Unlock()
			return nil
		})
	}

	// Collector: single consumer of enriched replays.
	var enriched []*model.EnrichedReplay
	g.Go(func() error {
		for er := range replayCh {
			enriched = append(enriched, er)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return counters, err
	}

	// Hard ordering barrier: every fetch has landed, fill is sequential, and
	// only then does aggregation read the cache.
	stats.Fill()
	counters.Queries = stats.QueryCount()

	for _, er := range enriched {
		stats.Attach(er)
		engine.AddReplay(er)
	}
	counters.Enriched = len(enriched)

	logger.Info().
		Int("files", counters.Files).
		Int("enriched", counters.Enriched).
		Int("errors", counters.Errors).
		Int("queries", counters.Queries).
		Int("api_calls", counters.Fetch.Calls).
		Msg("run complete")

	return counters, nil
}

// readOne parses and enriches a single replay file.
func readOne(path string, vehicles model.VehicleLookup, maps model.MapLookup,
	player model.AccountID, logger zerolog.Logger) (*model.EnrichedReplay, error) {

	raw, err := parser.ParseReplay(path)
	if err != nil {
		return nil, err
	}
	er, err := model.Enrich(raw, vehicles, maps, player, logger)
	if err != nil {
		return nil, err
	}
	return er, nil
}

// PrintSummary writes the human run summary.
func (c *Counters) PrintSummary(w io.Writer) {
	errStr := fmt.Sprintf("%d", c.Errors)
	if c.Errors > 0 {
		errStr = color.New(color.FgRed, color.Bold).Sprint(c.Errors)
	}
	fmt.Fprintf(w, "\nReplays: %d read, %d analyzed, %s skipped  |  Stats: %d queries, %d accounts, %d API calls (%d failed)\n",
		c.Files, c.Enriched, errStr, c.Queries, c.Fetch.Accounts, c.Fetch.Calls, c.Fetch.Errors)
}
