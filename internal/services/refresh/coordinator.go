// Package refresh runs the market-data refresh cycle and its scheduler.
//
// A cycle reads the holdings, fetches prices and then P/E + earnings for each
// symbol with fixed pacing, and writes every success into the cache. Only one
// cycle runs at a time: a caller that finds a cycle in progress is turned
// away, never queued.
package refresh

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/folio/internal/cache"
	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/metrics"
	"github.com/bobmcallan/folio/internal/models"
)

// Options holds the TTLs, pacing delays, and scheduler interval a cycle uses
type Options struct {
	PriceTTL    time.Duration
	PERatioTTL  time.Duration
	EarningsTTL time.Duration

	PriceDelay time.Duration // pause between price requests
	RatioDelay time.Duration // pause between P/E + earnings requests

	Interval time.Duration // scheduler period, used for NextRunAt
}

// OptionsFromConfig maps the config sections onto Options
func OptionsFromConfig(cfg *common.Config) Options {
	return Options{
		PriceTTL:    cfg.Cache.PriceTTL(),
		PERatioTTL:  cfg.Cache.PERatioTTL(),
		EarningsTTL: cfg.Cache.EarningsTTL(),
		PriceDelay:  cfg.Refresh.GetPriceDelay(),
		RatioDelay:  cfg.Refresh.GetRatioDelay(),
		Interval:    cfg.Refresh.Interval(),
	}
}

// Coordinator owns the refresh status and drives cycles against the cache
type Coordinator struct {
	source interfaces.PortfolioSource
	prices interfaces.PriceFetcher
	ratios interfaces.RatioFetcher
	store  *cache.Store
	opts   Options

	logger   *common.Logger
	metrics  *metrics.Metrics
	notifier interfaces.RefreshNotifier
	now      func() time.Time // injectable clock for testing

	mu     sync.Mutex
	status models.RefreshStatus
}

// CoordinatorOption configures a Coordinator
type CoordinatorOption func(*Coordinator)

// WithMetrics records cycle and fetch outcomes
func WithMetrics(m *metrics.Metrics) CoordinatorOption {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithNotifier publishes an event after every finished or skipped cycle
func WithNotifier(n interfaces.RefreshNotifier) CoordinatorOption {
	return func(c *Coordinator) {
		c.notifier = n
	}
}

// NewCoordinator creates a coordinator. The exclusion flag lives on store.
func NewCoordinator(
	source interfaces.PortfolioSource,
	prices interfaces.PriceFetcher,
	ratios interfaces.RatioFetcher,
	store *cache.Store,
	opts Options,
	logger *common.Logger,
	options ...CoordinatorOption,
) *Coordinator {
	c := &Coordinator{
		source: source,
		prices: prices,
		ratios: ratios,
		store:  store,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// cycleResult counts what one cycle wrote
type cycleResult struct {
	symbols  int
	prices   int
	ratios   int
	earnings int
	empty    bool
}

// TryRunCycle runs one refresh cycle on the calling goroutine. It returns
// false, without touching the cache or status, when a cycle is already running.
func (c *Coordinator) TryRunCycle(ctx context.Context) bool {
	if !c.store.TryLockRefresh() {
		c.skip()
		return false
	}
	c.runLocked(ctx)
	return true
}

// Trigger is TryRunCycle with the cycle body moved to a new goroutine.
// The flag is acquired before Trigger returns.
func (c *Coordinator) Trigger(ctx context.Context) bool {
	if !c.store.TryLockRefresh() {
		c.skip()
		return false
	}
	go c.runLocked(ctx)
	return true
}

// Status returns a copy of the refresh status
func (c *Coordinator) Status() models.RefreshStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := models.RefreshStatus{IsRunning: c.status.IsRunning}
	if c.status.LastRunAt != nil {
		t := *c.status.LastRunAt
		st.LastRunAt = &t
	}
	if c.status.NextRunAt != nil {
		t := *c.status.NextRunAt
		st.NextRunAt = &t
	}
	if c.status.LastError != nil {
		e := *c.status.LastError
		st.LastError = &e
	}
	return st
}

func (c *Coordinator) skip() {
	c.logger.Info().Msg("Refresh cycle already running, skipping")
	c.metrics.ObserveCycle(models.CycleSkipped, 0)
	now := c.now()
	c.notify(models.RefreshEvent{
		Outcome:    models.CycleSkipped,
		StartedAt:  now,
		FinishedAt: now,
	})
}

// runLocked runs the cycle body. The caller holds the exclusion flag; it is
// released here whatever the body does, panics included.
func (c *Coordinator) runLocked(ctx context.Context) {
	// a cycle is never cancelled mid-flight
	ctx = context.WithoutCancel(ctx)

	cycleID := uuid.New().String()[:8]
	started := c.now()
	log := c.logger.With().Str("cycle_id", cycleID).Logger()

	c.mu.Lock()
	c.status.IsRunning = true
	c.status.LastRunAt = &started
	c.mu.Unlock()

	var (
		res     cycleResult
		outcome = models.CycleCompleted
		errMsg  string
	)

	defer func() {
		if r := recover(); r != nil {
			outcome = models.CycleFailed
			errMsg = fmt.Sprintf("panic: %v", r)
			log.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Recovered from panic in refresh cycle")
		}

		finished := c.now()
		next := finished.Add(c.opts.Interval)

		c.mu.Lock()
		c.status.IsRunning = false
		c.status.NextRunAt = &next
		switch outcome {
		case models.CycleCompleted:
			c.status.LastError = nil
		case models.CycleFailed:
			e := errMsg
			c.status.LastError = &e
		}
		c.mu.Unlock()

		c.store.UnlockRefresh()

		elapsed := finished.Sub(started)
		c.metrics.ObserveCycle(outcome, elapsed)
		c.notify(models.RefreshEvent{
			CycleID:    cycleID,
			Outcome:    outcome,
			StartedAt:  started,
			FinishedAt: finished,
			Symbols:    res.symbols,
			Prices:     res.prices,
			Ratios:     res.ratios,
			Earnings:   res.earnings,
			Error:      errMsg,
		})

		log.Info().
			Str("outcome", outcome).
			Int("symbols", res.symbols).
			Int("prices", res.prices).
			Int("pe_ratios", res.ratios).
			Int("earnings", res.earnings).
			Dur("elapsed", elapsed).
			Time("next_run_at", next).
			Msg("Refresh cycle finished")
	}()

	log.Info().Msg("Refresh cycle starting")

	var err error
	res, err = c.cycle(ctx, &log)
	switch {
	case err != nil:
		outcome = models.CycleFailed
		errMsg = err.Error()
		log.Error().Err(err).Msg("Refresh cycle failed")
	case res.empty:
		outcome = models.CycleEmpty
	}
}

// cycle is the body: holdings, symbols, prices, then P/E + earnings.
// Only orchestration errors are returned; per-symbol failures are logged.
func (c *Coordinator) cycle(ctx context.Context, log *zerolog.Logger) (cycleResult, error) {
	var res cycleResult

	holdings, err := c.source.Holdings(ctx)
	if err != nil {
		return res, fmt.Errorf("read holdings: %w", err)
	}
	if len(holdings) == 0 {
		log.Info().Msg("No holdings in portfolio, nothing to refresh")
		res.empty = true
		return res, nil
	}

	symbols := symbolsOf(holdings)
	res.symbols = len(symbols)
	if len(symbols) == 0 {
		log.Warn().Int("holdings", len(holdings)).Msg("No symbols found in portfolio holdings")
		res.empty = true
		return res, nil
	}

	log.Info().Int("symbols", len(symbols)).Strs("list", symbols).Msg("Refreshing market data")

	res.prices = c.refreshPrices(ctx, symbols, log)
	if res.prices == 0 {
		log.Warn().Int("symbols", len(symbols)).Msg("No prices were fetched")
	}

	res.ratios, res.earnings = c.refreshRatios(ctx, symbols, log)

	return res, nil
}

func (c *Coordinator) refreshPrices(ctx context.Context, symbols []string, log *zerolog.Logger) int {
	if c.prices == nil {
		return 0
	}
	pacer := newPacer(c.opts.PriceDelay)
	written := 0

	for _, symbol := range symbols {
		if err := pacer.Wait(ctx); err != nil {
			log.Warn().Err(err).Msg("Price pacing interrupted")
			break
		}

		quote, err := c.prices.FetchPrice(ctx, symbol)
		c.metrics.ObserveFetch("price", err)
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("Price fetch failed")
			continue
		}
		if quote == nil {
			continue
		}

		c.store.Put(cache.PriceKey(symbol), *quote, c.opts.PriceTTL)
		written++
		log.Debug().Str("symbol", symbol).Float64("cmp", quote.Price).Msg("Cached price")
	}
	return written
}

func (c *Coordinator) refreshRatios(ctx context.Context, symbols []string, log *zerolog.Logger) (ratios, earnings int) {
	if c.ratios == nil {
		return 0, 0
	}
	pacer := newPacer(c.opts.RatioDelay)

	for _, symbol := range symbols {
		if err := pacer.Wait(ctx); err != nil {
			log.Warn().Err(err).Msg("P/E pacing interrupted")
			break
		}

		data, err := c.ratios.FetchRatioAndEarnings(ctx, symbol)
		c.metrics.ObserveFetch("pe_earnings", err)
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("P/E and earnings fetch failed")
			continue
		}
		if data == nil {
			continue
		}

		// each field is cached on its own
		if data.PERatio != nil {
			c.store.Put(cache.PERatioKey(symbol), *data.PERatio, c.opts.PERatioTTL)
			ratios++
		}
		if data.LatestEarnings != nil {
			c.store.Put(cache.EarningsKey(symbol), *data.LatestEarnings, c.opts.EarningsTTL)
			earnings++
		}
		log.Debug().Str("symbol", symbol).Bool("pe_ratio", data.PERatio != nil).Bool("earnings", data.LatestEarnings != nil).Msg("Cached P/E and earnings")
	}
	return ratios, earnings
}

func (c *Coordinator) notify(event models.RefreshEvent) {
	if c.notifier != nil {
		c.notifier.Notify(event)
	}
}

// symbolsOf drops empty and repeated symbols, keeping first-seen order
func symbolsOf(holdings []models.Holding) []string {
	seen := make(map[string]bool, len(holdings))
	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		if h.Symbol == "" || seen[h.Symbol] {
			continue
		}
		seen[h.Symbol] = true
		symbols = append(symbols, h.Symbol)
	}
	return symbols
}

// newPacer allows one request immediately and then one per delay.
// A zero delay means no pacing.
func newPacer(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

var _ interfaces.RefreshCoordinator = (*Coordinator)(nil)
