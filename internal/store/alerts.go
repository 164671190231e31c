package store

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"token-alert-bot/internal/types"
)

var (
	ErrAlertExists   = errors.New("identical alert is already active")
	ErrAlertNotFound = errors.New("alert not found")
)

// AlertStore owns alert records. The in-memory map is authoritative; Persist writes a
// snapshot of it to the backend.
type AlertStore struct {
	mu        sync.RWMutex
	persistMu sync.Mutex
	alerts    map[string]map[string]*types.Alert // owner -> id -> alert
	backend   Backend
	now       func() time.Time

	// version counts mutations; persisted is the version last written successfully
	version   uint64
	persisted uint64
}

func NewAlertStore(backend Backend) *AlertStore {
	return &AlertStore{
		alerts:  make(map[string]map[string]*types.Alert),
		backend: backend,
		now:     time.Now,
	}
}

// Create validates and stores a new active alert.
func (s *AlertStore) Create(owner, tokenAddress, tokenSymbol string, condition types.Condition, targetValue float64) (types.Alert, error) {
	if owner == "" {
		return types.Alert{}, types.ErrInvalidOwner
	}
	if !types.ValidTokenAddress(tokenAddress) {
		return types.Alert{}, types.ErrInvalidAddress
	}
	if !condition.Valid() {
		return types.Alert{}, types.ErrInvalidCondition
	}
	if !validTarget(targetValue) {
		return types.Alert{}, types.ErrInvalidTarget
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// spent alerts keep their id; a new alert on the same tuple takes the next generation
	var id string
	for gen := 0; ; gen++ {
		id = types.DeriveAlertIDGen(owner, tokenAddress, condition, targetValue, gen)
		existing, ok := s.alerts[owner][id]
		if !ok {
			break
		}
		if existing.IsActive {
			return *existing, ErrAlertExists
		}
	}

	alert := &types.Alert{
		ID:           id,
		Owner:        owner,
		TokenAddress: tokenAddress,
		TokenSymbol:  tokenSymbol,
		Condition:    condition,
		TargetValue:  targetValue,
		IsActive:     true,
		CreatedAt:    s.now().UTC(),
	}
	if s.alerts[owner] == nil {
		s.alerts[owner] = make(map[string]*types.Alert)
	}
	s.alerts[owner][id] = alert
	s.version++

	return *alert, nil
}

// ListActive returns every active alert ordered by owner, creation time and id.
func (s *AlertStore) ListActive() []types.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Alert
	for _, byID := range s.alerts {
		for _, a := range byID {
			if a.IsActive {
				out = append(out, *a)
			}
		}
	}
	sortAlerts(out)
	return out
}

// ListByOwner returns the owner's active alerts.
func (s *AlertStore) ListByOwner(owner string) []types.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := lo.FilterMap(lo.Values(s.alerts[owner]), func(a *types.Alert, _ int) (types.Alert, bool) {
		return *a, a.IsActive
	})
	sortAlerts(out)
	return out
}

// Get returns a copy of the alert regardless of its state.
func (s *AlertStore) Get(owner, id string) (types.Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.alerts[owner][id]
	if !ok {
		return types.Alert{}, false
	}
	return *a, true
}

// Deactivate marks the alert inactive. It reports false without error when the alert
// was already inactive.
func (s *AlertStore) Deactivate(owner, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[owner][id]
	if !ok {
		return false, ErrAlertNotFound
	}
	if !a.IsActive {
		return false, nil
	}

	now := s.now().UTC()
	a.IsActive = false
	a.TriggeredAt = &now
	s.version++
	return true, nil
}

// Remove deletes the alert, used when the owner cancels it.
func (s *AlertStore) Remove(owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.alerts[owner][id]; !ok {
		return ErrAlertNotFound
	}
	delete(s.alerts[owner], id)
	if len(s.alerts[owner]) == 0 {
		delete(s.alerts, owner)
	}
	s.version++
	return nil
}

// Dirty reports whether there are changes not yet written by a successful Persist.
func (s *AlertStore) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version != s.persisted
}

// Persist writes the whole store to the backend.
func (s *AlertStore) Persist(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	version := s.version
	records := make(map[string][]byte)
	for owner, byID := range s.alerts {
		for id, a := range byID {
			content, err := json.Marshal(a)
			if err != nil {
				s.mu.RUnlock()
				return errors.Wrapf(err, "failed to marshal alert %s", id)
			}
			records[recordKey(owner, id)] = content
		}
	}
	s.mu.RUnlock()

	if err := s.backend.Save(ctx, BucketAlerts, records); err != nil {
		return errors.Wrap(err, "failed to persist alerts")
	}

	s.mu.Lock()
	if version > s.persisted {
		s.persisted = version
	}
	s.mu.Unlock()
	return nil
}

// Load replaces the in-memory state with the backend's. Malformed records are skipped.
func (s *AlertStore) Load(ctx context.Context) error {
	records, err := s.backend.Load(ctx, BucketAlerts)
	if err != nil {
		return errors.Wrap(err, "failed to load alerts")
	}

	loaded := make(map[string]map[string]*types.Alert)
	kept := 0
	for key, content := range records {
		var a types.Alert
		if err := json.Unmarshal(content, &a); err != nil {
			log.WithField("key", key).Warnf("Skipping malformed alert record: %v", err)
			continue
		}
		if err := checkAlert(key, a); err != nil {
			log.WithField("key", key).Warnf("Skipping malformed alert record: %v", err)
			continue
		}
		if loaded[a.Owner] == nil {
			loaded[a.Owner] = make(map[string]*types.Alert)
		}
		loaded[a.Owner][a.ID] = &a
		kept++
	}

	s.mu.Lock()
	s.alerts = loaded
	s.persisted = s.version
	s.mu.Unlock()

	log.Infof("Loaded %d of %d alert records", kept, len(records))
	return nil
}

func checkAlert(key string, a types.Alert) error {
	switch {
	case a.ID == "" || a.Owner == "":
		return types.ErrInvalidOwner
	case key != recordKey(a.Owner, a.ID):
		return errors.Errorf("record key %q does not match alert %s/%s", key, a.Owner, a.ID)
	case !types.ValidTokenAddress(a.TokenAddress):
		return types.ErrInvalidAddress
	case !a.Condition.Valid():
		return types.ErrInvalidCondition
	case !validTarget(a.TargetValue):
		return types.ErrInvalidTarget
	}
	return nil
}

func validTarget(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func sortAlerts(alerts []types.Alert) {
	sort.Slice(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if a.Owner != b.Owner {
			return a.Owner < b.Owner
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
