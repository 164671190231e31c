package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
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

const schedulerName = "alert"

// Options configures a Scheduler
type Options struct {
	Store         *store.AlertStore
	Fetcher       price.Fetcher
	Notifier      notify.Notifier
	Metrics       *metrics.Engine
	Concurrency   int
	FetchTimeout  time.Duration
	NotifyTimeout time.Duration
}

// Scheduler checks active alerts against fresh snapshots and delivers each triggered
// alert exactly once.
type Scheduler struct {
	store         *store.AlertStore
	fetcher       price.Fetcher
	notifier      notify.Notifier
	metrics       *metrics.Engine
	concurrency   int
	fetchTimeout  time.Duration
	notifyTimeout time.Duration

	// one sweep at a time
	sweepMu sync.Mutex
}

// SweepReport summarises one sweep
type SweepReport struct {
	Checked      int
	Skipped      int
	Triggered    int
	Notified     int
	NotifyFailed int
	Persisted    bool
}

type triggered struct {
	alert    types.Alert
	snapshot types.TokenSnapshot
}

func NewScheduler(opts Options) *Scheduler {
	s := &Scheduler{
		store:         opts.Store,
		fetcher:       opts.Fetcher,
		notifier:      opts.Notifier,
		metrics:       opts.Metrics,
		concurrency:   opts.Concurrency,
		fetchTimeout:  opts.FetchTimeout,
		notifyTimeout: opts.NotifyTimeout,
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

// Sweep runs one check over all active alerts. Once ctx is cancelled no further alert is
// started; work already under way is completed and persisted.
func (s *Scheduler) Sweep(ctx context.Context) SweepReport {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	start := time.Now()
	defer func() {
		s.metrics.Sweeps.WithLabelValues(schedulerName).Inc()
		s.metrics.SweepDuration.WithLabelValues(schedulerName).Observe(time.Since(start).Seconds())
	}()

	active := s.store.ListActive()
	s.metrics.ActiveAlerts.Set(float64(len(active)))
	log.Debugf("🔄 Checking %d active alerts...", len(active))

	var report SweepReport
	hits := s.evaluateAll(ctx, active, &report)

	// single writer: notify and deactivate in listing order
	detached := context.WithoutCancel(ctx)
	for _, hit := range hits {
		if hit == nil {
			continue
		}
		s.deliver(detached, *hit, &report)
	}

	// also retries a write that failed in an earlier sweep or command
	if report.Triggered > 0 || s.store.Dirty() {
		if err := s.store.Persist(detached); err != nil {
			s.metrics.PersistFailures.WithLabelValues(store.BucketAlerts).Inc()
			log.Errorf("❌ Failed to persist alerts: %v", err)
		} else {
			report.Persisted = true
		}
	}

	log.WithFields(log.Fields{
		"checked":   report.Checked,
		"skipped":   report.Skipped,
		"triggered": report.Triggered,
		"notified":  report.Notified,
	}).Debug("✅ Alert check completed")

	return report
}

// evaluateAll fetches snapshots with bounded concurrency. The result is indexed like
// alerts; nil entries did not trigger.
func (s *Scheduler) evaluateAll(ctx context.Context, alerts []types.Alert, report *SweepReport) []*triggered {
	hits := make([]*triggered, len(alerts))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.concurrency)

	for i, a := range alerts {
		i, a := i, a
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			hit, checked := s.evaluate(context.WithoutCancel(ctx), a)

			mu.Lock()
			defer mu.Unlock()
			if !checked {
				report.Skipped++
				return nil
			}
			report.Checked++
			hits[i] = hit
			return nil
		})
	}
	_ = g.Wait()

	return hits
}

func (s *Scheduler) evaluate(ctx context.Context, a types.Alert) (*triggered, bool) {
	fields := log.Fields{"alert": a.ID, "owner": a.Owner, "token": a.TokenAddress}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	res := s.fetcher.Fetch(fetchCtx, a.TokenAddress)
	s.metrics.Fetches.WithLabelValues(schedulerName, res.Outcome.String()).Inc()

	switch res.Outcome {
	case price.OutcomeNotFound:
		log.WithFields(fields).Warnf("⚠️ No price data found for token: %v", res.Err)
		return nil, false
	case price.OutcomeTransient:
		log.WithFields(fields).Warnf("⚠️ Price fetch failed, retrying next cycle: %v", res.Err)
		return nil, false
	}

	current := res.Snapshot.PriceUSD
	if current == nil {
		log.WithFields(fields).Debug("Provider returned no price")
	} else {
		log.WithFields(fields).Debugf("🔍 Checking %s alert | Target: %f | Current: %f", a.Condition, a.TargetValue, *current)
	}

	if !Evaluate(a.Condition, a.TargetValue, current) {
		return nil, true
	}
	return &triggered{alert: a, snapshot: res.Snapshot}, true
}

// deliver sends the notification and then deactivates the alert whatever the outcome
// of the send, so a flaky transport can never cause a second delivery.
func (s *Scheduler) deliver(ctx context.Context, hit triggered, report *SweepReport) {
	a := hit.alert
	report.Triggered++
	s.metrics.AlertsTriggered.Inc()

	notifyCtx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	err := s.notifier.Notify(notifyCtx, a.Owner, Message(a, hit.snapshot))
	cancel()

	s.metrics.Notified(schedulerName, err)
	if err != nil {
		report.NotifyFailed++
		log.WithField("owner", a.Owner).Errorf("❌ Failed to send alert notification for %s: %v", a.ID, err)
	} else {
		report.Notified++
		log.WithField("owner", a.Owner).Infof("✅ Alert notification sent for %s", a.ID)
	}

	if _, err := s.store.Deactivate(a.Owner, a.ID); err != nil {
		if errors.Is(err, store.ErrAlertNotFound) {
			// cancelled by the owner while the sweep was running
			log.WithField("alert", a.ID).Debug("Alert removed before deactivation")
			return
		}
		log.WithField("alert", a.ID).Errorf("❌ Failed to deactivate alert: %v", err)
	}
}

// Message is the notification text for a triggered alert
func Message(a types.Alert, snap types.TokenSnapshot) string {
	symbol := a.TokenSymbol
	if symbol == "" {
		symbol = snap.Symbol
	}

	current := "n/a"
	if snap.PriceUSD != nil {
		current = "$" + helpers.FormatPriceUS(*snap.PriceUSD)
	}

	title := translation.Translate("🚨 <b>Price Alert Triggered</b>")
	var body string
	switch a.Condition {
	case types.ConditionBelow:
		body = translation.Translate("<b>%s</b> dropped to or below your target of <b>$%s</b>",
			helpers.EscapeHTML(symbol), helpers.FormatPriceUS(a.TargetValue))
	default:
		body = translation.Translate("<b>%s</b> reached or rose above your target of <b>$%s</b>",
			helpers.EscapeHTML(symbol), helpers.FormatPriceUS(a.TargetValue))
	}

	return fmt.Sprintf("%s\n\n%s\n%s\n%s",
		title,
		body,
		translation.Translate("Current price: <b>%s</b>", current),
		helpers.Code(a.TokenAddress),
	)
}
