package memstore

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/cognicore/investigator/pkg/investigator/internalerr"
	"github.com/cognicore/investigator/pkg/investigator/network"
	"github.com/cognicore/investigator/pkg/investigator/store"
)

var _ store.Store = (*Store)(nil)

func record() network.Record {
	return network.Record{
		Nodes: []network.NodeRecord{
			{Label: "a", Prior: 0.3, Position: []byte("xy")},
			{Label: "b", Kind: network.KindExclusion, Prior: 0.5, Evidence: network.TruthTrue},
		},
		Edges:         []network.EdgeRecord{{Parent: 0, Child: 1, Weight: 0.7}},
		EvidenceOrder: []int{1},
	}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	rec := record()
	sum, err := s.SaveNetwork(ctx, "net", rec)
	if err != nil {
		t.Fatalf("SaveNetwork: %v", err)
	}
	if sum.Nodes != 2 || sum.Edges != 1 || sum.Evidence != 1 {
		t.Errorf("unexpected summary: %+v", sum)
	}

	// Mutating the caller's record must not leak into the store.
	rec.Nodes[0].Position[0] = 'z'
	rec.Edges[0].Weight = 0

	got, err := s.LoadNetwork(ctx, "net")
	if err != nil {
		t.Fatalf("LoadNetwork: %v", err)
	}
	if !reflect.DeepEqual(got.Record, record()) {
		t.Errorf("record mismatch: %+v", got.Record)
	}
	if byID, err := s.LoadNetwork(ctx, sum.ID); err != nil || byID.Name != "net" {
		t.Errorf("LoadNetwork by ID: %v %+v", err, byID.Summary)
	}
}

func TestReplaceKeepsID(t *testing.T) {
	ctx := context.Background()
	s := New()
	first, _ := s.SaveNetwork(ctx, "net", record())
	second, _ := s.SaveNetwork(ctx, "net", network.Record{})
	if first.ID != second.ID {
		t.Errorf("ID changed: %s -> %s", first.ID, second.ID)
	}
	list, _ := s.ListNetworks(ctx)
	if len(list) != 1 || list[0].Nodes != 0 {
		t.Errorf("unexpected list: %+v", list)
	}
}

func TestDeleteAndNotFound(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.SaveNetwork(ctx, "", record()); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	s.SaveNetwork(ctx, "net", record())
	if err := s.DeleteNetwork(ctx, "net"); err != nil {
		t.Fatalf("DeleteNetwork: %v", err)
	}
	if _, err := s.LoadNetwork(ctx, "net"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteNetwork(ctx, "net"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
