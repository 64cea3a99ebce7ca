package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/investigator/pkg/investigator/internalerr"
	"github.com/cognicore/investigator/pkg/investigator/network"
)

// NetworkDoc is the hand-written YAML form of a network. Edges and the
// evidence order refer to nodes by label.
type NetworkDoc struct {
	DefaultPrior *float64  `yaml:"default_prior,omitempty"`
	Nodes        []NodeDoc `yaml:"nodes"`
	Edges        []EdgeDoc `yaml:"edges"`
	// EvidenceOrder overrides the order in which evidence is asserted.
	EvidenceOrder []string `yaml:"evidence_order,omitempty"`
}

// NodeDoc describes one node. Kind defaults to Main and Prior to the
// document's default prior.
type NodeDoc struct {
	Label     string        `yaml:"label"`
	Kind      network.Kind  `yaml:"kind,omitempty"`
	Prior     *float64      `yaml:"prior,omitempty"`
	Evidence  network.Truth `yaml:"evidence,omitempty"`
	Auxiliary bool          `yaml:"auxiliary,omitempty"`
}

// EdgeDoc describes one edge. Weight defaults to 1.
type EdgeDoc struct {
	From   string   `yaml:"from"`
	To     string   `yaml:"to"`
	Weight *float64 `yaml:"weight,omitempty"`
}

// LoadNetwork reads a network document from a YAML file.
func LoadNetwork(path string) (*NetworkDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc NetworkDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &doc, nil
}

// Save writes the document as YAML.
func (d *NetworkDoc) Save(path string) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ToRecord resolves labels into a network record.
func (d *NetworkDoc) ToRecord() (network.Record, error) {
	prior := network.DefaultPrior
	if d.DefaultPrior != nil {
		prior = *d.DefaultPrior
	}

	var rec network.Record
	index := make(map[string]int, len(d.Nodes))
	for i, n := range d.Nodes {
		if n.Label == "" {
			return rec, fmt.Errorf("node %d: empty label: %w", i, internalerr.ErrInvalidInput)
		}
		if _, dup := index[n.Label]; dup {
			return rec, fmt.Errorf("node %q: %w", n.Label, internalerr.ErrDuplicate)
		}
		index[n.Label] = i
		p := prior
		if n.Prior != nil {
			p = *n.Prior
		}
		rec.Nodes = append(rec.Nodes, network.NodeRecord{
			Label:     n.Label,
			Kind:      n.Kind,
			Evidence:  n.Evidence,
			Prior:     p,
			Auxiliary: n.Auxiliary,
		})
	}

	lookup := func(label string) (int, error) {
		i, ok := index[label]
		if !ok {
			return 0, fmt.Errorf("node %q: %w", label, internalerr.ErrNotFound)
		}
		return i, nil
	}
	for _, e := range d.Edges {
		from, err := lookup(e.From)
		if err != nil {
			return rec, fmt.Errorf("edge %s->%s: %w", e.From, e.To, err)
		}
		to, err := lookup(e.To)
		if err != nil {
			return rec, fmt.Errorf("edge %s->%s: %w", e.From, e.To, err)
		}
		w := network.DefaultWeight
		if e.Weight != nil {
			w = *e.Weight
		}
		rec.Edges = append(rec.Edges, network.EdgeRecord{Parent: from, Child: to, Weight: w})
	}
	for _, label := range d.EvidenceOrder {
		i, err := lookup(label)
		if err != nil {
			return rec, fmt.Errorf("evidence order: %w", err)
		}
		rec.EvidenceOrder = append(rec.EvidenceOrder, i)
	}
	return rec, nil
}

// Build resolves the document and constructs the network.
func (d *NetworkDoc) Build() (*network.Network, error) {
	rec, err := d.ToRecord()
	if err != nil {
		return nil, err
	}
	net, err := network.FromRecord(rec)
	if err != nil {
		return nil, err
	}
	if d.DefaultPrior != nil {
		if err := net.SetDefaultPrior(*d.DefaultPrior); err != nil {
			return nil, err
		}
	}
	return net, nil
}

// DocFromRecord converts a record into a document. Nodes without a label,
// or whose label is already taken, are named after their index.
func DocFromRecord(rec network.Record) *NetworkDoc {
	doc := &NetworkDoc{}
	labels := make([]string, len(rec.Nodes))
	taken := make(map[string]bool, len(rec.Nodes))
	for i, n := range rec.Nodes {
		label := n.Label
		if label == "" || taken[label] {
			label = "n" + strconv.Itoa(i)
		}
		for taken[label] {
			label += "_"
		}
		taken[label] = true
		labels[i] = label

		prior := n.Prior
		doc.Nodes = append(doc.Nodes, NodeDoc{
			Label:     label,
			Kind:      n.Kind,
			Prior:     &prior,
			Evidence:  n.Evidence,
			Auxiliary: n.Auxiliary,
		})
	}
	for _, e := range rec.Edges {
		w := e.Weight
		doc.Edges = append(doc.Edges, EdgeDoc{From: labels[e.Parent], To: labels[e.Child], Weight: &w})
	}
	for _, i := range rec.EvidenceOrder {
		doc.EvidenceOrder = append(doc.EvidenceOrder, labels[i])
	}
	return doc
}
