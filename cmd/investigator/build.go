package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cognicore/investigator/pkg/investigator"
	"github.com/cognicore/investigator/pkg/investigator/config"
	"github.com/cognicore/investigator/pkg/investigator/store"
	"github.com/cognicore/investigator/pkg/investigator/store/sqlite"
)

// buildInvestigator loads the engine config and, when networkPath is set,
// the network document. The sqlite store is opened only when withStore is
// true so plain file runs never create a database.
func (a *app) buildInvestigator(ctx context.Context, networkPath string, withStore bool) (*investigator.Investigator, func(), error) {
	loader := config.Loader{
		EnginePath:  a.enginePath,
		NetworkPath: networkPath,
	}

	components, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	var st store.Store
	if withStore {
		st, err = sqlite.OpenSQLite(ctx, a.dbPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open store: %w", err)
		}
	}

	params := components.Engine.Params()
	inv := investigator.Wrap(components.Network, investigator.Options{
		Params: &params,
		Store:  st,
		Logger: a.logger,
		Seed:   components.Engine.Seed,
	})

	cleanup := func() {
		inv.Close()
	}

	return inv, cleanup, nil
}

// openNetwork resolves source as a YAML file if one exists at that path,
// otherwise as the ID or name of a saved network.
func (a *app) openNetwork(ctx context.Context, source string, withStore bool) (*investigator.Investigator, func(), error) {
	if info, err := os.Stat(source); err == nil && !info.IsDir() {
		return a.buildInvestigator(ctx, source, withStore)
	}

	inv, cleanup, err := a.buildInvestigator(ctx, "", true)
	if err != nil {
		return nil, nil, err
	}
	if _, err := inv.Load(ctx, source); err != nil {
		cleanup()
		return nil, nil, err
	}
	return inv, cleanup, nil
}
