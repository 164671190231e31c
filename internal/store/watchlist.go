package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"token-alert-bot/internal/types"
)

// AddResult tells a fresh watch apart from a duplicate one
type AddResult int

const (
	Added AddResult = iota
	AlreadyPresent
)

func (r AddResult) String() string {
	if r == AlreadyPresent {
		return "already_present"
	}
	return "added"
}

// WatchStore owns the watched tokens of every owner.
type WatchStore struct {
	mu        sync.RWMutex
	persistMu sync.Mutex
	entries   map[string]map[string]*types.WatchEntry // owner -> address -> entry
	backend   Backend
	now       func() time.Time

	version   uint64
	persisted uint64
}

func NewWatchStore(backend Backend) *WatchStore {
	return &WatchStore{
		entries: make(map[string]map[string]*types.WatchEntry),
		backend: backend,
		now:     time.Now,
	}
}

// Add inserts the token into the owner's list unless it is already there.
func (s *WatchStore) Add(owner, tokenAddress, tokenSymbol string) (AddResult, error) {
	if owner == "" {
		return Added, types.ErrInvalidOwner
	}
	if !types.ValidTokenAddress(tokenAddress) {
		return Added, types.ErrInvalidAddress
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[owner][tokenAddress]; ok {
		return AlreadyPresent, nil
	}
	if s.entries[owner] == nil {
		s.entries[owner] = make(map[string]*types.WatchEntry)
	}
	s.entries[owner][tokenAddress] = &types.WatchEntry{
		OwnerID:      owner,
		TokenAddress: tokenAddress,
		TokenSymbol:  tokenSymbol,
		AddedAt:      s.now().UTC(),
	}
	s.version++
	return Added, nil
}

// Remove drops the token from the owner's list and reports whether it was there.
func (s *WatchStore) Remove(owner, tokenAddress string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[owner][tokenAddress]; !ok {
		return false
	}
	delete(s.entries[owner], tokenAddress)
	if len(s.entries[owner]) == 0 {
		delete(s.entries, owner)
	}
	s.version++
	return true
}

// Dirty reports whether there are changes not yet written by a successful Persist.
func (s *WatchStore) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version != s.persisted
}

func (s *WatchStore) ListAll() []types.WatchEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.WatchEntry
	for _, byAddress := range s.entries {
		for _, e := range byAddress {
			out = append(out, *e)
		}
	}
	sortEntries(out)
	return out
}

func (s *WatchStore) ListByOwner(owner string) []types.WatchEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := lo.Map(lo.Values(s.entries[owner]), func(e *types.WatchEntry, _ int) types.WatchEntry {
		return *e
	})
	sortEntries(out)
	return out
}

func (s *WatchStore) Persist(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	version := s.version
	records := make(map[string][]byte)
	for owner, byAddress := range s.entries {
		for address, e := range byAddress {
			content, err := json.Marshal(e)
			if err != nil {
				s.mu.RUnlock()
				return errors.Wrapf(err, "failed to marshal watch entry %s", address)
			}
			records[recordKey(owner, address)] = content
		}
	}
	s.mu.RUnlock()

	if err := s.backend.Save(ctx, BucketWatchlist, records); err != nil {
		return errors.Wrap(err, "failed to persist watchlist")
	}

	s.mu.Lock()
	if version > s.persisted {
		s.persisted = version
	}
	s.mu.Unlock()
	return nil
}

func (s *WatchStore) Load(ctx context.Context) error {
	records, err := s.backend.Load(ctx, BucketWatchlist)
	if err != nil {
		return errors.Wrap(err, "failed to load watchlist")
	}

	loaded := make(map[string]map[string]*types.WatchEntry)
	kept := 0
	for key, content := range records {
		var e types.WatchEntry
		if err := json.Unmarshal(content, &e); err != nil {
			log.WithField("key", key).Warnf("Skipping malformed watch record: %v", err)
			continue
		}
		if e.OwnerID == "" || !types.ValidTokenAddress(e.TokenAddress) || key != recordKey(e.OwnerID, e.TokenAddress) {
			log.WithField("key", key).Warn("Skipping malformed watch record: missing owner or bad address")
			continue
		}
		if loaded[e.OwnerID] == nil {
			loaded[e.OwnerID] = make(map[string]*types.WatchEntry)
		}
		loaded[e.OwnerID][e.TokenAddress] = &e
		kept++
	}

	s.mu.Lock()
	s.entries = loaded
	s.persisted = s.version
	s.mu.Unlock()

	log.Infof("Loaded %d of %d watch records", kept, len(records))
	return nil
}

func sortEntries(entries []types.WatchEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.OwnerID != b.OwnerID {
			return a.OwnerID < b.OwnerID
		}
		if !a.AddedAt.Equal(b.AddedAt) {
			return a.AddedAt.Before(b.AddedAt)
		}
		return a.TokenAddress < b.TokenAddress
	})
}
