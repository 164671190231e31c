package watch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-alert-bot/internal/notify/notifytest"
	"token-alert-bot/internal/price"
	"token-alert-bot/internal/store"
	"token-alert-bot/internal/types"
)

const (
	tokenA = "So11111111111111111111111111111111111111112"
	tokenB = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	tokenC = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
)

func change(token string, pct float64) price.FetchResult {
	p := 1.5
	return price.Found(types.TokenSnapshot{Address: token, Symbol: "TK", PriceUSD: &p, Change24hPct: &pct})
}

type tableFetcher struct {
	mu      sync.Mutex
	results map[string]price.FetchResult
}

func (f *tableFetcher) Fetch(_ context.Context, token string) price.FetchResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.results[token]
}

func TestVolatile(t *testing.T) {
	v := func(f float64) *float64 { return &f }

	assert.True(t, Volatile(v(20.01), 20))
	assert.True(t, Volatile(v(-35), 20))
	assert.False(t, Volatile(v(20), 20))
	assert.False(t, Volatile(v(-20), 20))
	assert.False(t, Volatile(v(3), 20))
	assert.False(t, Volatile(nil, 20))
}

func TestScheduler_NotifiesEverySweepWhileVolatile(t *testing.T) {
	watches := store.NewWatchStore(store.NewMemoryBackend())
	_, err := watches.Add("u1", tokenA, "AAA")
	require.NoError(t, err)
	_, err = watches.Add("u2", tokenB, "BBB")
	require.NoError(t, err)
	_, err = watches.Add("u3", tokenC, "CCC")
	require.NoError(t, err)

	fetcher := &tableFetcher{results: map[string]price.FetchResult{
		tokenA: change(tokenA, 25),
		tokenB: change(tokenB, -4),
		tokenC: price.Transient(errors.New("502")),
	}}
	recorder := notifytest.NewRecorder()
	sched := NewScheduler(Options{Store: watches, Fetcher: fetcher, Notifier: recorder, Concurrency: 2})

	for i := 1; i <= 3; i++ {
		report := sched.Sweep(context.Background())
		assert.Equal(t, 2, report.Checked)
		assert.Equal(t, 1, report.Skipped)
		assert.Equal(t, 1, report.Volatile)
		assert.Equal(t, 1, report.Notified)

		msgs := recorder.Messages()
		require.Len(t, msgs, i)
		assert.Equal(t, "u1", msgs[i-1].RecipientID)
		assert.Contains(t, msgs[i-1].Text, "+25.00%")
	}

	assert.Len(t, watches.ListAll(), 3)
}

func TestScheduler_ConfigurableThreshold(t *testing.T) {
	watches := store.NewWatchStore(store.NewMemoryBackend())
	_, err := watches.Add("u1", tokenA, "AAA")
	require.NoError(t, err)

	fetcher := &tableFetcher{results: map[string]price.FetchResult{tokenA: change(tokenA, -7.5)}}
	recorder := notifytest.NewRecorder()

	report := NewScheduler(Options{Store: watches, Fetcher: fetcher, Notifier: recorder}).Sweep(context.Background())
	assert.Equal(t, 0, report.Volatile)

	report = NewScheduler(Options{Store: watches, Fetcher: fetcher, Notifier: recorder, Threshold: 5}).Sweep(context.Background())
	assert.Equal(t, 1, report.Volatile)
	require.Len(t, recorder.Messages(), 1)
	assert.Contains(t, recorder.Messages()[0].Text, "-7.50%")
	assert.Contains(t, recorder.Messages()[0].Text, "📉")
}

func TestScheduler_NotifyFailureIsIsolated(t *testing.T) {
	watches := store.NewWatchStore(store.NewMemoryBackend())
	_, err := watches.Add("u1", tokenA, "AAA")
	require.NoError(t, err)
	_, err = watches.Add("u2", tokenA, "AAA")
	require.NoError(t, err)

	fetcher := &tableFetcher{results: map[string]price.FetchResult{tokenA: change(tokenA, 50)}}
	recorder := notifytest.NewRecorder()
	recorder.Fail("u1", errors.New("chat not found"))

	report := NewScheduler(Options{Store: watches, Fetcher: fetcher, Notifier: recorder}).Sweep(context.Background())
	assert.Equal(t, 2, report.Volatile)
	assert.Equal(t, 1, report.NotifyFailed)
	assert.Equal(t, 1, report.Notified)

	msgs := recorder.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "u2", msgs[0].RecipientID)
}

func TestScheduler_CancelledBeforeStart(t *testing.T) {
	watches := store.NewWatchStore(store.NewMemoryBackend())
	_, err := watches.Add("u1", tokenA, "AAA")
	require.NoError(t, err)
	require.NoError(t, watches.Persist(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &tableFetcher{results: map[string]price.FetchResult{tokenA: change(tokenA, 50)}}
	recorder := notifytest.NewRecorder()
	report := NewScheduler(Options{Store: watches, Fetcher: fetcher, Notifier: recorder}).Sweep(ctx)
	assert.Equal(t, SweepReport{}, report)
	assert.Empty(t, recorder.Messages())
}

type flakyBackend struct {
	*store.MemoryBackend
	mu       sync.Mutex
	failures int
}

func (b *flakyBackend) Save(ctx context.Context, bucket string, records map[string][]byte) error {
	b.mu.Lock()
	if b.failures > 0 {
		b.failures--
		b.mu.Unlock()
		return errors.New("connection reset")
	}
	b.mu.Unlock()
	return b.MemoryBackend.Save(ctx, bucket, records)
}

func TestScheduler_RetriesFailedWatchlistWrite(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{MemoryBackend: store.NewMemoryBackend(), failures: 1}
	watches := store.NewWatchStore(backend)
	_, err := watches.Add("u1", tokenA, "AAA")
	require.NoError(t, err)
	assert.Error(t, watches.Persist(ctx))
	assert.True(t, watches.Dirty())

	fetcher := &tableFetcher{results: map[string]price.FetchResult{tokenA: change(tokenA, 1)}}
	sched := NewScheduler(Options{Store: watches, Fetcher: fetcher, Notifier: notifytest.NewRecorder()})

	report := sched.Sweep(ctx)
	assert.True(t, report.Persisted)
	assert.False(t, watches.Dirty())

	report = sched.Sweep(ctx)
	assert.False(t, report.Persisted)
	assert.Equal(t, 1, backend.Saves())

	restored := store.NewWatchStore(backend)
	require.NoError(t, restored.Load(ctx))
	assert.Len(t, restored.ListAll(), 1)
}
