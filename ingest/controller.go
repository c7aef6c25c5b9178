package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"ncr_ingest/config"
	"ncr_ingest/models"
)

// State tracks where the controller is in its lifecycle. Transitions:
// Idle -> Running -> {Paused, Flushing, ShuttingDown} -> Terminated.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateFlushing
	StateShuttingDown
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateFlushing:
		return "flushing"
	case StateShuttingDown:
		return "shutting_down"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// CheckpointStore persists resume progress.
type CheckpointStore interface {
	Load() (*models.CheckpointState, error)
	Save(state *models.CheckpointState) error
}

// RecordStore is the durable destination for listing records. LoadSeenURLs
// reads every stored URL back so the dedup index can be reseeded at startup.
type RecordStore interface {
	RecordSink
	LoadSeenURLs(ctx context.Context) ([]string, error)
}

// OpsStore receives run records, per-city stats, and structured log rows.
// It is reporting-only; a nil OpsStore disables it without changing the loop.
type OpsStore interface {
	CreateRun(run *models.IngestRun) (int64, error)
	UpdateRun(run *models.IngestRun) error
	Log(runID *int64, level models.LogLevel, message, city string) error
	UpsertCityStats(stats *models.CityStats) error
	GetCityStats(city string) (*models.CityStats, error)
}

// Options narrow a run to part of the configured city list.
type Options struct {
	CityFilter string // slug; empty means all cities
	StartPage  int    // overrides the resume page for the first city run
	MaxPages   int    // overrides per-city max_pages when > 0
}

var errQuitRequested = errors.New("operator quit requested")

// Controller drives the city/page ingestion loop. One Controller owns the
// record store and checkpoint file for the process lifetime; concurrent
// instances against the same store are unsupported.
type Controller struct {
	cfg         *config.Config
	fetcher     PageFetcher
	store       RecordStore
	checkpoints CheckpointStore
	prompter    ChallengePrompter
	ops         OpsStore

	dedup  *DedupIndex
	buffer *RecordBuffer
	stats  *Tracker

	runMu        sync.Mutex
	stateMu      sync.Mutex
	state        State
	paused       bool
	shutdownOnce *sync.Once

	runID *int64
	total int

	curCity string
	curPage int
}

func NewController(cfg *config.Config, fetcher PageFetcher, store RecordStore, checkpoints CheckpointStore, prompter ChallengePrompter, ops OpsStore) *Controller {
	return &Controller{
		cfg:         cfg,
		fetcher:     fetcher,
		store:       store,
		checkpoints: checkpoints,
		prompter:    prompter,
		ops:         ops,
		dedup:       NewDedupIndex(),
		buffer:      NewRecordBuffer(),
		state:       StateIdle,
	}
}

func (c *Controller) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

// Pause and Resume gate scheduled runs; they do not interrupt a run that is
// already in flight.
func (c *Controller) Pause()         { c.stateMu.Lock(); c.paused = true; c.stateMu.Unlock() }
func (c *Controller) Resume()        { c.stateMu.Lock(); c.paused = false; c.stateMu.Unlock() }
func (c *Controller) IsPaused() bool { c.stateMu.Lock(); defer c.stateMu.Unlock(); return c.paused }

// AwaitIdle blocks until no run is in flight, so a daemon shutdown can wait
// out the final flush of a scheduled run.
func (c *Controller) AwaitIdle() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
}

// Summary returns the current run's aggregate counters.
func (c *Controller) Summary() Summary {
	if c.stats == nil {
		return Summary{PerCity: map[string]CityCount{}}
	}
	return c.stats.Summary()
}

// Run executes one full ingestion pass over the configured cities, resuming
// from the last checkpoint. It returns nil on normal completion, operator
// quit, or interrupt; only fatal storage/config errors are returned, and
// always after a best-effort flush and checkpoint.
func (c *Controller) Run(ctx context.Context, opts Options) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.IsPaused() {
		log.Println("Ingestion is paused, skipping run")
		return nil
	}

	c.setState(StateIdle)
	c.shutdownOnce = &sync.Once{}
	c.buffer = NewRecordBuffer()
	c.stats = NewTracker()
	c.curCity, c.curPage = "", 0
	c.total = 0

	cp, err := c.checkpoints.Load()
	if err != nil {
		// Unparsable checkpoint is treated as absent; the run starts fresh.
		log.Printf("Warning: checkpoint unreadable, starting fresh: %v", err)
		cp = nil
	}
	if cp != nil {
		log.Printf("Resuming from checkpoint: %s page %d (%d scraped)", cp.City, cp.Page, cp.TotalScraped)
		c.total = cp.TotalScraped
	}

	urls, err := c.store.LoadSeenURLs(ctx)
	if err != nil {
		return fmt.Errorf("seed dedup index: %w", err)
	}
	c.dedup.Seed(urls)
	log.Printf("History loaded: %d unique listings in store", c.dedup.Size())

	run := &models.IngestRun{
		UID:       uuid.New().String(),
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	if c.ops != nil {
		if id, err := c.ops.CreateRun(run); err != nil {
			log.Printf("Warning: failed to create run record: %v", err)
		} else {
			run.ID = id
			c.runID = &id
		}
	}

	runErr := c.runCities(ctx, cp, opts)

	c.shutdown()
	c.finalizeRun(run, runErr)

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, errQuitRequested) {
		return runErr
	}
	return nil
}

func (c *Controller) runCities(ctx context.Context, cp *models.CheckpointState, opts Options) error {
	order := c.cfg.CityOrder
	resumeIdx := 0
	if cp != nil {
		for i, slug := range order {
			if slug == cp.City {
				resumeIdx = i
				break
			}
		}
	}

	c.setState(StateRunning)

	for i, slug := range order {
		if opts.CityFilter != "" && slug != opts.CityFilter {
			continue
		}
		if opts.CityFilter == "" && i < resumeIdx {
			continue
		}

		city := c.cfg.Cities[slug]

		if c.cityDone(city) {
			c.logf(models.LogLevelInfo, slug, "target already reached, skipping")
			continue
		}

		from := 1
		if cp != nil && cp.City == slug {
			from = cp.Page + 1
		}
		if opts.StartPage > 0 {
			from = opts.StartPage
			opts.StartPage = 0 // only the first city run gets the override
		}

		if err := c.runCity(ctx, city, from, opts.MaxPages); err != nil {
			return err
		}

		// Point the checkpoint at the next city so a restart does not
		// re-walk the finished one.
		if next := nextRunnable(order, i, opts.CityFilter); next != "" {
			if err := c.saveCheckpoint(next, 0); err != nil {
				return err
			}
		}
	}

	return nil
}

func nextRunnable(order []string, i int, filter string) string {
	if filter != "" || i+1 >= len(order) {
		return ""
	}
	return order[i+1]
}

// cityDone reports whether a city's recorded stats already show it exhausted
// with its target met.
func (c *Controller) cityDone(city *config.CityConfig) bool {
	if c.ops == nil || city.TargetCount <= 0 {
		return false
	}
	stats, err := c.ops.GetCityStats(city.Slug)
	if err != nil || stats == nil {
		return false
	}
	return stats.Exhausted && stats.ListingsTotal >= city.TargetCount
}

func (c *Controller) runCity(ctx context.Context, city *config.CityConfig, from, maxPagesOverride int) error {
	slug := city.Slug
	maxPages := city.MaxPages
	if maxPagesOverride > 0 {
		maxPages = maxPagesOverride
	}

	c.logf(models.LogLevelInfo, slug, "starting at page %d (target %d, max pages %d)", from, city.TargetCount, maxPages)

	c.curCity = slug
	c.curPage = from - 1

	ing := c.cfg.Ingest
	collected := 0
	consecEmpty := 0
	attempts := 0
	pagesSinceFlush := 0
	exhausted := false

	page := from
	for page <= maxPages && (city.TargetCount <= 0 || collected < city.TargetCount) {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		outcome := c.fetcher.Fetch(ctx, city, page)

		switch outcome.Kind {
		case OutcomeFatal:
			// Fetchers fold cancellation into Fatal; an interrupt mid-fetch
			// is still a clean shutdown, not a failure.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("fetch %s page %d: %s", slug, page, outcome.Reason)

		case OutcomeBlocked:
			c.setState(StatePaused)
			c.logf(models.LogLevelWarn, slug, "blocking challenge on page %d: %s", page, outcome.Reason)
			if c.prompter == nil {
				return errQuitRequested
			}
			if c.prompter.Prompt(ctx, city.Name, page) == ChallengeQuit {
				return errQuitRequested
			}
			c.setState(StateRunning)
			continue // retry the same page

		case OutcomeTransient:
			attempts++
			if attempts > ing.MaxRetries {
				// Retry budget exhausted: the page's data is lost. Record
				// the gap and move on rather than stalling the run.
				c.logf(models.LogLevelError, slug, "page %d abandoned after %d attempts: %s (data loss)", page, attempts-1, outcome.Reason)
				c.stats.RecordPage(slug, 0, true)
				attempts = 0
				var err error
				page, pagesSinceFlush, err = c.advance(ctx, slug, page, pagesSinceFlush)
				if err != nil {
					return err
				}
				continue
			}
			c.setState(StatePaused)
			delay := backoffDelay(attempts, ing.BackoffBase, ing.BackoffMax)
			c.logf(models.LogLevelWarn, slug, "transient failure on page %d (%s), retry %d/%d in %s", page, outcome.Reason, attempts, ing.MaxRetries, delay)
			if err := sleepCtx(ctx, delay); err != nil {
				return err
			}
			c.setState(StateRunning)
			continue // retry the same page

		case OutcomeEmpty:
			attempts = 0
			consecEmpty++
			c.stats.RecordPage(slug, 0, false)
			c.logf(models.LogLevelInfo, slug, "page %d empty (%d/%d)", page, consecEmpty, ing.ConsecutiveEmptyLimit)
			if consecEmpty >= ing.ConsecutiveEmptyLimit {
				exhausted = true
			}
			var err error
			page, pagesSinceFlush, err = c.advance(ctx, slug, page, pagesSinceFlush)
			if err != nil {
				return err
			}
			if exhausted {
				c.logf(models.LogLevelInfo, slug, "city exhausted after %d empty pages", consecEmpty)
			}

		case OutcomeRecords:
			attempts = 0
			consecEmpty = 0
			fresh := 0
			for _, rec := range outcome.Records {
				if rec.URL == "" || c.dedup.Contains(rec.URL) {
					c.stats.Duplicate()
					continue
				}
				c.dedup.Add(rec.URL)
				c.buffer.Append(rec)
				fresh++
			}
			collected += fresh
			c.stats.RecordPage(slug, fresh, false)
			c.logf(models.LogLevelInfo, slug, "page %d: %d listings, %d new (buffer %d)", page, len(outcome.Records), fresh, c.buffer.Len())
			var err error
			page, pagesSinceFlush, err = c.advance(ctx, slug, page, pagesSinceFlush)
			if err != nil {
				return err
			}
		}

		if exhausted {
			break
		}
	}

	// City boundary: everything accumulated for it goes out, and the
	// checkpoint records the last processed page before the city switch.
	if err := c.flushAndCheckpoint(ctx, slug, c.curPage); err != nil {
		return err
	}

	c.recordCityStats(slug, exhausted)
	c.logf(models.LogLevelInfo, slug, "finished: %d new listings collected", collected)
	return nil
}

// advance marks page as fully processed and triggers the batch flush +
// checkpoint cadence. The returned page is the next one to fetch.
func (c *Controller) advance(ctx context.Context, slug string, page, pagesSinceFlush int) (int, int, error) {
	c.curPage = page
	pagesSinceFlush++
	if pagesSinceFlush >= c.cfg.Ingest.BatchPages {
		if err := c.flushAndCheckpoint(ctx, slug, page); err != nil {
			return page, pagesSinceFlush, err
		}
		pagesSinceFlush = 0
	}
	return page + 1, pagesSinceFlush, nil
}

// flushAndCheckpoint writes the buffer to the record store and only then
// persists the checkpoint. A checkpoint must never claim pages whose records
// are not durable yet.
func (c *Controller) flushAndCheckpoint(ctx context.Context, city string, page int) error {
	c.setState(StateFlushing)
	defer c.setState(StateRunning)

	n, err := c.buffer.Flush(ctx, c.store)
	if err != nil {
		return fmt.Errorf("flush records: %w", err)
	}
	if n > 0 {
		c.logf(models.LogLevelInfo, city, "flushed %d records", n)
	}
	c.total += n

	if page <= 0 && city == c.curCity {
		return nil
	}
	return c.saveCheckpoint(city, page)
}

func (c *Controller) saveCheckpoint(city string, page int) error {
	state := &models.CheckpointState{
		City:         city,
		Page:         page,
		TotalScraped: c.total,
		Timestamp:    time.Now(),
	}
	if err := c.checkpoints.Save(state); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// shutdown is the single exit path for every trigger (interrupt, quit,
// fatal error, normal completion). Secondary errors are logged, not
// returned, so they cannot mask the primary cause. It runs at most once per
// run and within the configured grace period.
func (c *Controller) shutdown() {
	c.shutdownOnce.Do(func() {
		c.setState(StateShuttingDown)

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Ingest.ShutdownGrace)
		defer cancel()

		flushed := true
		if n, err := c.buffer.Flush(ctx, c.store); err != nil {
			// The buffered records never became durable. Keep the previous
			// checkpoint so a restart refetches their pages instead of
			// skipping past them.
			flushed = false
			log.Printf("Error flushing buffer during shutdown: %v", err)
		} else if n > 0 {
			c.total += n
			log.Printf("Shutdown flush: %d records", n)
		}

		if flushed && c.curCity != "" && c.curPage > 0 {
			if err := c.saveCheckpoint(c.curCity, c.curPage); err != nil {
				log.Printf("Error saving checkpoint during shutdown: %v", err)
			}
		}

		c.fetcher.Close()
		c.setState(StateTerminated)
	})
}

func (c *Controller) finalizeRun(run *models.IngestRun, runErr error) {
	s := c.stats.Summary()
	now := time.Now()
	run.FinishedAt = &now
	run.PagesFetched = s.TotalPages
	run.ListingsFound = s.TotalFound + s.Duplicates
	run.ListingsNew = s.TotalFound
	run.Duplicates = s.Duplicates
	run.ErrorsCount = s.Errors

	switch {
	case runErr == nil:
		run.Status = models.RunStatusCompleted
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, errQuitRequested):
		run.Status = models.RunStatusCancelled
	default:
		run.Status = models.RunStatusFailed
	}

	if c.ops != nil {
		if err := c.ops.UpdateRun(run); err != nil {
			log.Printf("Warning: failed to update run record: %v", err)
		}
	}
	c.runID = nil
}

func (c *Controller) recordCityStats(slug string, exhausted bool) {
	if c.ops == nil {
		return
	}
	s := c.stats.Summary()
	cc := s.PerCity[slug]
	now := time.Now()
	stats := &models.CityStats{
		City:          slug,
		LastRunAt:     &now,
		PagesFetched:  cc.Pages,
		ListingsTotal: cc.Listings,
		ErrorsCount:   cc.Errors,
		Exhausted:     exhausted,
	}
	if err := c.ops.UpsertCityStats(stats); err != nil {
		log.Printf("Warning: failed to update city stats: %v", err)
	}
}

func (c *Controller) logf(level models.LogLevel, city, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[%s] %s: %s", level, city, msg)
	if c.ops != nil {
		c.ops.Log(c.runID, level, msg, city)
	}
}
