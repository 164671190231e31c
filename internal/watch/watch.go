// Package watch checks watched tokens for large 24h moves. It never mutates the
// watchlist, so a token that stays volatile is reported on every sweep.
package watch

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"token-alert-bot/internal/metrics"
	"token-alert-bot/internal/notify"
	"token-alert-bot/internal/price"
	"token-alert-bot/internal/store"
	"token-alert-bot/internal/types"
	"token-alert-bot/lib/helpers"
	"token-alert-bot/lib/translation"
)

const (
	schedulerName = "watch"

	DefaultThreshold = 20.0
)

type Options struct {
	Store         *store.WatchStore
	Fetcher       price.Fetcher
	Notifier      notify.Notifier
	Metrics       *metrics.Engine
	Threshold     float64
	Concurrency   int
	FetchTimeout  time.Duration
	NotifyTimeout time.Duration
}

type Scheduler struct {
	store         *store.WatchStore
	fetcher       price.Fetcher
	notifier      notify.Notifier
	metrics       *metrics.Engine
	threshold     float64
	concurrency   int
	fetchTimeout  time.Duration
	notifyTimeout time.Duration
}

type SweepReport struct {
	Checked      int
	Skipped      int
	Volatile     int
	Notified     int
	NotifyFailed int
	Persisted    bool
}

func NewScheduler(opts Options) *Scheduler {
	s := &Scheduler{
		store:         opts.Store,
		fetcher:       opts.Fetcher,
		notifier:      opts.Notifier,
		metrics:       opts.Metrics,
		threshold:     opts.Threshold,
		concurrency:   opts.Concurrency,
		fetchTimeout:  opts.FetchTimeout,
		notifyTimeout: opts.NotifyTimeout,
	}
	if s.threshold <= 0 {
		s.threshold = DefaultThreshold
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	if s.fetchTimeout <= 0 {
		s.fetchTimeout = price.DefaultTimeout
	}
	if s.notifyTimeout <= 0 {
		s.notifyTimeout = 10 * time.Second
	}
	if s.metrics == nil {
		s.metrics = metrics.NewUnregistered()
	}
	return s
}

// Volatile reports whether the absolute 24h change is strictly above threshold.
func Volatile(change24hPct *float64, threshold float64) bool {
	return change24hPct != nil && math.Abs(*change24hPct) > threshold
}

// Sweep checks every watch entry once.
func (s *Scheduler) Sweep(ctx context.Context) SweepReport {
	start := time.Now()
	defer func() {
		s.metrics.Sweeps.WithLabelValues(schedulerName).Inc()
		s.metrics.SweepDuration.WithLabelValues(schedulerName).Observe(time.Since(start).Seconds())
	}()

	entries := s.store.ListAll()
	s.metrics.WatchedTokens.Set(float64(len(entries)))
	log.Debugf("🔄 Checking %d watched tokens...", len(entries))

	var (
		report SweepReport
		mu     sync.Mutex
		g      errgroup.Group
	)
	g.SetLimit(s.concurrency)

	for _, e := range entries {
		e := e
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res := s.check(context.WithoutCancel(ctx), e)

			mu.Lock()
			defer mu.Unlock()
			switch res {
			case resultSkipped:
				report.Skipped++
			case resultCalm:
				report.Checked++
			case resultNotified:
				report.Checked++
				report.Volatile++
				report.Notified++
			case resultNotifyFailed:
				report.Checked++
				report.Volatile++
				report.NotifyFailed++
			}
			return nil
		})
	}
	_ = g.Wait()

	// the sweep itself never changes the watchlist; this retries a failed command-side write
	if s.store.Dirty() {
		if err := s.store.Persist(context.WithoutCancel(ctx)); err != nil {
			s.metrics.PersistFailures.WithLabelValues(store.BucketWatchlist).Inc()
			log.Errorf("❌ Failed to persist watchlist: %v", err)
		} else {
			report.Persisted = true
		}
	}

	log.WithFields(log.Fields{
		"checked":  report.Checked,
		"skipped":  report.Skipped,
		"volatile": report.Volatile,
	}).Debug("✅ Watchlist check completed")

	return report
}

type checkResult int

const (
	resultSkipped checkResult = iota
	resultCalm
	resultNotified
	resultNotifyFailed
)

func (s *Scheduler) check(ctx context.Context, e types.WatchEntry) checkResult {
	fields := log.Fields{"owner": e.OwnerID, "token": e.TokenAddress}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	res := s.fetcher.Fetch(fetchCtx, e.TokenAddress)
	cancel()
	s.metrics.Fetches.WithLabelValues(schedulerName, res.Outcome.String()).Inc()

	if res.Outcome != price.OutcomeFound {
		log.WithFields(fields).Warnf("⚠️ Skipping watched token (%s): %v", res.Outcome, res.Err)
		return resultSkipped
	}

	if !Volatile(res.Snapshot.Change24hPct, s.threshold) {
		return resultCalm
	}
	s.metrics.WatchVolatile.Inc()

	notifyCtx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	err := s.notifier.Notify(notifyCtx, e.OwnerID, Message(e, res.Snapshot))
	cancel()

	s.metrics.Notified(schedulerName, err)
	if err != nil {
		log.WithFields(fields).Errorf("❌ Failed to send volatility notification: %v", err)
		return resultNotifyFailed
	}
	return resultNotified
}

// Message is the volatility notification for a watched token
func Message(e types.WatchEntry, snap types.TokenSnapshot) string {
	symbol := e.TokenSymbol
	if symbol == "" {
		symbol = snap.Symbol
	}

	change := 0.0
	if snap.Change24hPct != nil {
		change = *snap.Change24hPct
	}

	icon := "📈"
	if change < 0 {
		icon = "📉"
	}

	lines := []string{
		fmt.Sprintf("%s %s", icon, translation.Translate("<b>High volatility on %s</b>", helpers.EscapeHTML(symbol))),
		"",
		translation.Translate("24h change: <b>%s</b>", helpers.FormatPercent(change)),
	}
	if snap.PriceUSD != nil {
		lines = append(lines, translation.Translate("Current price: <b>%s</b>", "$"+helpers.FormatPriceUS(*snap.PriceUSD)))
	}
	lines = append(lines, helpers.Code(e.TokenAddress))

	return strings.Join(lines, "\n")
}
