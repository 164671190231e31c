// Package schedule runs periodic tasks on background goroutines.
package schedule

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	log "github.com/sirupsen/logrus"
)

// Loop runs Task once at start and then every Interval until the context is cancelled.
// A task that is running when the context is cancelled is left to finish.
type Loop struct {
	Name     string
	Interval time.Duration
	Task     func(ctx context.Context)

	// Delay bounds before retrying a task that panicked. Zero means 1s and 1m.
	PanicMin time.Duration
	PanicMax time.Duration
}

func (l Loop) Run(ctx context.Context) {
	b := &backoff.Backoff{
		Min:    l.PanicMin,
		Max:    l.PanicMax,
		Factor: 2,
	}
	if b.Min <= 0 {
		b.Min = time.Second
	}
	if b.Max <= 0 {
		b.Max = time.Minute
	}

	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()

	log.Infof("🚀 %s loop started, every %s", l.Name, l.Interval)
	defer log.Infof("%s loop stopped", l.Name)

	for {
		if ctx.Err() != nil {
			return
		}

		if l.runOnce(ctx) {
			wait := b.Duration()
			log.Warnf("Restarting %s in %s", l.Name, wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		b.Reset()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (l Loop) runOnce(ctx context.Context) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			stackBuf := make([]byte, 4096)
			stackSize := runtime.Stack(stackBuf, false)
			log.Errorf("🔥 Panic recovered in %s: %v\nStack trace: %s", l.Name, r, stackBuf[:stackSize])
			panicked = true
		}
	}()

	l.Task(ctx)
	return false
}

// Group runs loops side by side so a slow loop never delays another.
type Group struct {
	wg sync.WaitGroup
}

func (g *Group) Go(ctx context.Context, l Loop) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		l.Run(ctx)
	}()
}

// Wait blocks until every loop has returned
func (g *Group) Wait() {
	g.wg.Wait()
}
