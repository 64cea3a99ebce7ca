package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/cognicore/investigator/pkg/investigator/internalerr"
	"github.com/cognicore/investigator/pkg/investigator/network"
	"github.com/cognicore/investigator/pkg/investigator/store"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu        sync.RWMutex
	networks  map[string]store.SavedNetwork
	nameIndex map[string]string
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		networks:  make(map[string]store.SavedNetwork),
		nameIndex: make(map[string]string),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// SaveNetwork inserts or replaces a network, keyed by name.
func (s *Store) SaveNetwork(ctx context.Context, name string, rec network.Record) (store.Summary, error) {
	if name == "" {
		return store.Summary{}, fmt.Errorf("save network: empty name: %w", internalerr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.nameIndex[name]
	if !ok {
		id = store.NewID()
		s.nameIndex[name] = id
	}
	sum := store.Summarize(id, name, time.Now().UTC(), rec)
	s.networks[id] = store.SavedNetwork{Summary: sum, Record: copyRecord(rec)}
	return sum, nil
}

// LoadNetwork fetches a network by ID or name.
func (s *Store) LoadNetwork(ctx context.Context, ref string) (store.SavedNetwork, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sn, ok := s.lookup(ref)
	if !ok {
		return store.SavedNetwork{}, fmt.Errorf("network %q: %w", ref, internalerr.ErrNotFound)
	}
	sn.Record = copyRecord(sn.Record)
	return sn, nil
}

// ListNetworks returns every saved network, most recent first.
func (s *Store) ListNetworks(ctx context.Context) ([]store.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Summary, 0, len(s.networks))
	for _, sn := range s.networks {
		out = append(out, sn.Summary)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SavedAt.Equal(out[j].SavedAt) {
			return out[i].SavedAt.After(out[j].SavedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// DeleteNetwork removes a network by ID or name.
func (s *Store) DeleteNetwork(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sn, ok := s.lookup(ref)
	if !ok {
		return fmt.Errorf("network %q: %w", ref, internalerr.ErrNotFound)
	}
	delete(s.networks, sn.ID)
	delete(s.nameIndex, sn.Name)
	return nil
}

func (s *Store) lookup(ref string) (store.SavedNetwork, bool) {
	if sn, ok := s.networks[ref]; ok {
		return sn, true
	}
	if id, ok := s.nameIndex[ref]; ok {
		sn, ok := s.networks[id]
		return sn, ok
	}
	return store.SavedNetwork{}, false
}

func copyRecord(rec network.Record) network.Record {
	out := network.Record{
		Nodes:         slices.Clone(rec.Nodes),
		Edges:         slices.Clone(rec.Edges),
		EvidenceOrder: slices.Clone(rec.EvidenceOrder),
	}
	for i := range out.Nodes {
		out.Nodes[i].Position = slices.Clone(out.Nodes[i].Position)
	}
	return out
}
