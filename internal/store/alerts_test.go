package store

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-alert-bot/internal/types"
)

const (
	tokenA = "So11111111111111111111111111111111111111112"
	tokenB = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

type failingBackend struct {
	*MemoryBackend
	err error
}

func (f failingBackend) Save(context.Context, string, map[string][]byte) error {
	return f.err
}

func clock() func() time.Time {
	t := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newAlertStore() *AlertStore {
	s := NewAlertStore(NewMemoryBackend())
	s.now = clock()
	return s
}

func TestAlertStore_CreateValidation(t *testing.T) {
	s := newAlertStore()

	tests := []struct {
		name      string
		owner     string
		address   string
		condition types.Condition
		target    float64
		err       error
	}{
		{"empty owner", "", tokenA, types.ConditionAbove, 1, types.ErrInvalidOwner},
		{"bad address", "u1", "not-an-address", types.ConditionAbove, 1, types.ErrInvalidAddress},
		{"bad condition", "u1", tokenA, types.Condition("sideways"), 1, types.ErrInvalidCondition},
		{"zero target", "u1", tokenA, types.ConditionBelow, 0, types.ErrInvalidTarget},
		{"negative target", "u1", tokenA, types.ConditionBelow, -3, types.ErrInvalidTarget},
		{"nan target", "u1", tokenA, types.ConditionBelow, math.NaN(), types.ErrInvalidTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(tt.owner, tt.address, "SOL", tt.condition, tt.target)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.err), err)
		})
	}

	assert.Empty(t, s.ListActive())
}

func TestAlertStore_CreateDeterministicID(t *testing.T) {
	s := newAlertStore()

	first, err := s.Create("u1", tokenA, "SOL", types.ConditionAbove, 150)
	require.NoError(t, err)
	assert.True(t, first.IsActive)
	assert.Equal(t, types.DeriveAlertID("u1", tokenA, types.ConditionAbove, 150), first.ID)

	again, err := s.Create("u1", tokenA, "SOL", types.ConditionAbove, 150)
	assert.ErrorIs(t, err, ErrAlertExists)
	assert.Equal(t, first.ID, again.ID)

	other, err := s.Create("u1", tokenA, "SOL", types.ConditionBelow, 150)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	assert.Len(t, s.ListActive(), 2)
}

func TestAlertStore_RecreateAfterTrigger(t *testing.T) {
	s := newAlertStore()

	a, err := s.Create("u1", tokenA, "SOL", types.ConditionAbove, 150)
	require.NoError(t, err)
	_, err = s.Deactivate("u1", a.ID)
	require.NoError(t, err)

	b, err := s.Create("u1", tokenA, "SOL", types.ConditionAbove, 150)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, types.DeriveAlertIDGen("u1", tokenA, types.ConditionAbove, 150, 1), b.ID)
	assert.True(t, b.IsActive)

	// the spent alert stays spent
	spent, ok := s.Get("u1", a.ID)
	require.True(t, ok)
	assert.False(t, spent.IsActive)
	active := s.ListActive()
	require.Len(t, active, 1)
	assert.Equal(t, b.ID, active[0].ID)

	// the new generation still collides while active
	again, err := s.Create("u1", tokenA, "SOL", types.ConditionAbove, 150)
	assert.ErrorIs(t, err, ErrAlertExists)
	assert.Equal(t, b.ID, again.ID)

	changed, err := s.Deactivate("u1", b.ID)
	require.NoError(t, err)
	require.True(t, changed)
	c, err := s.Create("u1", tokenA, "SOL", types.ConditionAbove, 150)
	require.NoError(t, err)
	assert.Equal(t, types.DeriveAlertIDGen("u1", tokenA, types.ConditionAbove, 150, 2), c.ID)
	assert.Len(t, s.ListActive(), 1)
}

func TestAlertStore_DirtyUntilPersisted(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	s := NewAlertStore(backend)
	assert.False(t, s.Dirty())

	a, err := s.Create("u1", tokenA, "SOL", types.ConditionAbove, 150)
	require.NoError(t, err)
	assert.True(t, s.Dirty())
	require.NoError(t, s.Persist(ctx))
	assert.False(t, s.Dirty())

	_, err = s.Deactivate("u1", a.ID)
	require.NoError(t, err)
	assert.True(t, s.Dirty())

	// a failed write leaves the change pending
	broken := NewAlertStore(failingBackend{MemoryBackend: backend, err: errors.New("disk full")})
	_, err = broken.Create("u1", tokenA, "SOL", types.ConditionAbove, 150)
	require.NoError(t, err)
	assert.Error(t, broken.Persist(ctx))
	assert.True(t, broken.Dirty())

	// an already inactive alert is not a change
	require.NoError(t, s.Persist(ctx))
	_, err = s.Deactivate("u1", a.ID)
	require.NoError(t, err)
	assert.False(t, s.Dirty())

	require.NoError(t, s.Remove("u1", a.ID))
	assert.True(t, s.Dirty())

	restored := NewAlertStore(backend)
	require.NoError(t, restored.Load(ctx))
	assert.False(t, restored.Dirty())
}

func TestAlertStore_DeactivateIsIdempotent(t *testing.T) {
	s := newAlertStore()

	a, err := s.Create("u1", tokenA, "SOL", types.ConditionAbove, 150)
	require.NoError(t, err)

	changed, err := s.Deactivate("u1", a.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	stored, ok := s.Get("u1", a.ID)
	require.True(t, ok)
	require.NotNil(t, stored.TriggeredAt)
	triggeredAt := *stored.TriggeredAt

	changed, err = s.Deactivate("u1", a.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	stored, _ = s.Get("u1", a.ID)
	assert.Equal(t, triggeredAt, *stored.TriggeredAt)
	assert.Empty(t, s.ListActive())
	assert.Empty(t, s.ListByOwner("u1"))

	_, err = s.Deactivate("u1", "missing")
	assert.ErrorIs(t, err, ErrAlertNotFound)
}

func TestAlertStore_ListActiveIsStable(t *testing.T) {
	s := newAlertStore()

	_, err := s.Create("u2", tokenA, "SOL", types.ConditionAbove, 1)
	require.NoError(t, err)
	_, err = s.Create("u1", tokenB, "USDC", types.ConditionBelow, 2)
	require.NoError(t, err)
	_, err = s.Create("u1", tokenA, "SOL", types.ConditionAbove, 3)
	require.NoError(t, err)

	list := s.ListActive()
	require.Len(t, list, 3)
	assert.Equal(t, "u1", list[0].Owner)
	assert.Equal(t, 2.0, list[0].TargetValue)
	assert.Equal(t, "u1", list[1].Owner)
	assert.Equal(t, 3.0, list[1].TargetValue)
	assert.Equal(t, "u2", list[2].Owner)

	for i := 0; i < 5; i++ {
		assert.Equal(t, list, s.ListActive())
	}
}

func TestAlertStore_Remove(t *testing.T) {
	s := newAlertStore()

	a, err := s.Create("u1", tokenA, "SOL", types.ConditionAbove, 1)
	require.NoError(t, err)

	require.NoError(t, s.Remove("u1", a.ID))
	assert.ErrorIs(t, s.Remove("u1", a.ID), ErrAlertNotFound)
	assert.Empty(t, s.ListByOwner("u1"))
}

func TestAlertStore_PersistAndLoad(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()

	s := NewAlertStore(backend)
	s.now = clock()
	a, err := s.Create("u1", tokenA, "SOL", types.ConditionAbove, 150)
	require.NoError(t, err)
	b, err := s.Create("u2", tokenB, "USDC", types.ConditionBelow, 0.99)
	require.NoError(t, err)
	_, err = s.Deactivate("u2", b.ID)
	require.NoError(t, err)
	require.NoError(t, s.Persist(ctx))

	restored := NewAlertStore(backend)
	require.NoError(t, restored.Load(ctx))

	active := restored.ListActive()
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)
	assert.Equal(t, "SOL", active[0].TokenSymbol)
	assert.True(t, a.CreatedAt.Equal(active[0].CreatedAt))

	spent, ok := restored.Get("u2", b.ID)
	require.True(t, ok)
	assert.False(t, spent.IsActive)
}

func TestAlertStore_LoadSkipsMalformedRecords(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()

	good := NewAlertStore(backend)
	a, err := good.Create("u1", tokenA, "SOL", types.ConditionAbove, 150)
	require.NoError(t, err)
	require.NoError(t, good.Persist(ctx))

	records, err := backend.Load(ctx, BucketAlerts)
	require.NoError(t, err)
	records["u1/garbage"] = []byte("{not json")
	records["u1/bad-condition"] = []byte(`{"id":"bad-condition","owner":"u1","token_address":"` + tokenA + `","condition":"sideways","target_value":1,"is_active":true}`)
	records["u1/bad-target"] = []byte(`{"id":"bad-target","owner":"u1","token_address":"` + tokenA + `","condition":"above","target_value":-1,"is_active":true}`)
	records["u9/mismatch"] = []byte(`{"id":"other","owner":"u1","token_address":"` + tokenA + `","condition":"above","target_value":1,"is_active":true}`)
	require.NoError(t, backend.Save(ctx, BucketAlerts, records))

	s := NewAlertStore(backend)
	require.NoError(t, s.Load(ctx))

	active := s.ListActive()
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)
}

func TestAlertStore_LoadEmptyBackend(t *testing.T) {
	s := NewAlertStore(NewMemoryBackend())
	require.NoError(t, s.Load(context.Background()))
	assert.Empty(t, s.ListActive())
}

func TestAlertStore_PersistFailureKeepsMemoryState(t *testing.T) {
	s := NewAlertStore(failingBackend{MemoryBackend: NewMemoryBackend(), err: errors.New("disk full")})

	a, err := s.Create("u1", tokenA, "SOL", types.ConditionAbove, 150)
	require.NoError(t, err)

	err = s.Persist(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	active := s.ListActive()
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)
}
