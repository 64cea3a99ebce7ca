package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/investigator/pkg/investigator"
	"github.com/cognicore/investigator/pkg/investigator/config"
	"github.com/cognicore/investigator/pkg/investigator/inference"
	"github.com/cognicore/investigator/pkg/investigator/internalerr"
	"github.com/cognicore/investigator/pkg/investigator/network"
)

func (a *app) runCmd() *cobra.Command {
	var (
		mode        string
		allEvidence bool
		constrained bool
		evidence    []string
		saveAs      string
	)
	cmd := &cobra.Command{
		Use:   "run <network.yaml | saved network>",
		Short: "Update every probability in bayes or investigation mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := inference.ParseMode(mode)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			inv, cleanup, err := a.openNetwork(ctx, args[0], saveAs != "")
			if err != nil {
				return err
			}
			defer cleanup()

			if err := applyEvidence(inv, evidence); err != nil {
				return err
			}
			report, err := inv.Run(ctx, investigator.RunOptions{
				Mode:           m,
				UseAllEvidence: allEvidence,
				Constrained:    constrained,
			})
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}
			a.logger.Debug("run finished",
				zap.String("mode", m.String()),
				zap.Int("passes", report.Passes),
			)

			out := cmd.OutOrStdout()
			labels := labelsOf(inv.Nodes())
			renderNodes(out, inv.Nodes(), true)
			if m == inference.ModeInvestigation && len(report.Highlights) > 0 {
				renderEdges(out, inv.Edges(), labels)
			}
			renderReport(out, report, labels)

			if saveAs != "" {
				sum, err := inv.Save(ctx, saveAs)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "saved %s (%s)\n", sum.Name, sum.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "bayes", "bayes or investigation")
	cmd.Flags().BoolVar(&allEvidence, "all-evidence", false, "fit against every evidence node, not only the shallow ones")
	cmd.Flags().BoolVar(&constrained, "constrained", false, "keep fitted weights inside [0,1]")
	cmd.Flags().StringArrayVarP(&evidence, "evidence", "e", nil, "assert label=true|false|none (repeatable)")
	cmd.Flags().StringVar(&saveAs, "save", "", "save the network (with updated priors) under this name")
	return cmd
}

func (a *app) printCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print <network.yaml | saved network>",
		Short: "Show nodes and edges without running inference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, cleanup, err := a.openNetwork(cmd.Context(), args[0], false)
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			nodes := inv.Nodes()
			renderNodes(out, nodes, false)
			renderEdges(out, inv.Edges(), labelsOf(nodes))
			return nil
		},
	}
}

func (a *app) cyclesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cycles <network.yaml | saved network>",
		Short: "Count back edges; zero means the network can be run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, cleanup, err := a.openNetwork(cmd.Context(), args[0], false)
			if err != nil {
				return err
			}
			defer cleanup()

			n := inv.DetectCycles()
			fmt.Fprintf(cmd.OutOrStdout(), "back edges: %d\n", n)
			return nil
		},
	}
}

func (a *app) saveCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "save <network.yaml>",
		Short: "Store a network document in the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				base := filepath.Base(args[0])
				name = strings.TrimSuffix(base, filepath.Ext(base))
			}
			inv, cleanup, err := a.buildInvestigator(cmd.Context(), args[0], true)
			if err != nil {
				return err
			}
			defer cleanup()

			sum, err := inv.Save(cmd.Context(), name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s): %d nodes, %d edges\n", sum.Name, sum.ID, sum.Nodes, sum.Edges)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name to save under (default: file name)")
	return cmd
}

func (a *app) loadCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "load <saved network>",
		Short: "Export a saved network as a YAML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, cleanup, err := a.buildInvestigator(cmd.Context(), "", true)
			if err != nil {
				return err
			}
			defer cleanup()

			if _, err := inv.Load(cmd.Context(), args[0]); err != nil {
				return err
			}
			doc := config.DocFromRecord(inv.Record())
			if outPath != "" {
				return doc.Save(outPath)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(doc); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write to this file instead of stdout")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved networks, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inv, cleanup, err := a.buildInvestigator(cmd.Context(), "", true)
			if err != nil {
				return err
			}
			defer cleanup()

			list, err := inv.List(cmd.Context())
			if err != nil {
				return err
			}
			renderSaved(cmd.OutOrStdout(), list)
			return nil
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <saved network>",
		Short: "Remove a saved network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, cleanup, err := a.buildInvestigator(cmd.Context(), "", true)
			if err != nil {
				return err
			}
			defer cleanup()
			return inv.Delete(cmd.Context(), args[0])
		},
	}
}

// applyEvidence parses label=value assertions.
func applyEvidence(inv *investigator.Investigator, assertions []string) error {
	if len(assertions) == 0 {
		return nil
	}
	byLabel := make(map[string]investigator.NodeID)
	for _, n := range inv.Nodes() {
		byLabel[n.Label] = n.ID
	}
	for _, arg := range assertions {
		label, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("evidence %q: want label=value: %w", arg, internalerr.ErrInvalidInput)
		}
		id, found := byLabel[strings.TrimSpace(label)]
		if !found {
			return fmt.Errorf("evidence %q: no node labelled %q: %w", arg, label, internalerr.ErrNotFound)
		}
		t, err := network.ParseTruth(value)
		if err != nil {
			return fmt.Errorf("evidence %q: %w", arg, err)
		}
		if err := inv.SetEvidence(id, t); err != nil {
			return err
		}
	}
	return nil
}

func labelsOf(nodes []investigator.NodeView) map[investigator.NodeID]string {
	out := make(map[investigator.NodeID]string, len(nodes))
	for _, n := range nodes {
		out[n.ID] = displayLabel(n)
	}
	return out
}

func displayLabel(n investigator.NodeView) string {
	if n.Label != "" {
		return n.Label
	}
	return fmt.Sprintf("#%d", n.ID)
}
