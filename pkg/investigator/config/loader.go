package config

import (
	"fmt"

	"github.com/cognicore/investigator/pkg/investigator/network"
)

// Loader loads all configuration files and constructs components
type Loader struct {
	EnginePath  string
	NetworkPath string
}

// Components holds all loaded configuration components
type Components struct {
	Engine  Engine
	Network *network.Network
}

// Load reads all configuration files and returns initialized components.
// Missing paths yield defaults and an empty network.
func (l *Loader) Load() (*Components, error) {
	comp := &Components{Engine: DefaultEngine()}

	if l.EnginePath != "" {
		cfg, err := LoadEngine(l.EnginePath)
		if err != nil {
			return nil, fmt.Errorf("load engine config: %w", err)
		}
		comp.Engine = cfg
	}

	if l.NetworkPath != "" {
		doc, err := LoadNetwork(l.NetworkPath)
		if err != nil {
			return nil, fmt.Errorf("load network: %w", err)
		}
		if doc.DefaultPrior == nil {
			p := comp.Engine.DefaultPrior
			doc.DefaultPrior = &p
		}
		net, err := doc.Build()
		if err != nil {
			return nil, fmt.Errorf("build network: %w", err)
		}
		comp.Network = net
	} else {
		comp.Network = network.New()
		if err := comp.Network.SetDefaultPrior(comp.Engine.DefaultPrior); err != nil {
			return nil, err
		}
	}

	return comp, nil
}
