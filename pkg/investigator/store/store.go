// Package store persists network records under a name.
package store

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/investigator/pkg/investigator/network"
)

// Store is the interface for saving and loading networks.
type Store interface {
	Close() error

	// SaveNetwork stores rec under name, replacing any network already
	// saved with that name. The ID of a replaced network is kept.
	SaveNetwork(ctx context.Context, name string, rec network.Record) (Summary, error)
	// LoadNetwork fetches a network by ID or name.
	LoadNetwork(ctx context.Context, ref string) (SavedNetwork, error)
	// ListNetworks returns every saved network, most recent first.
	ListNetworks(ctx context.Context) ([]Summary, error)
	// DeleteNetwork removes a network by ID or name.
	DeleteNetwork(ctx context.Context, ref string) error
}

// Summary describes a saved network without its contents.
type Summary struct {
	ID       string
	Name     string
	SavedAt  time.Time
	Nodes    int
	Edges    int
	Evidence int
}

// SavedNetwork is a stored record plus its metadata.
type SavedNetwork struct {
	Summary
	Record network.Record
}

// Summarize fills the counts of a summary from rec.
func Summarize(id, name string, savedAt time.Time, rec network.Record) Summary {
	s := Summary{ID: id, Name: name, SavedAt: savedAt, Nodes: len(rec.Nodes), Edges: len(rec.Edges)}
	for _, n := range rec.Nodes {
		if n.Evidence != network.TruthNone {
			s.Evidence++
		}
	}
	return s
}

var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a new lexically sortable network ID.
func NewID() string {
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Now(), idEntropy).String()
}
