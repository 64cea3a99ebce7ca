package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/cognicore/investigator/pkg/investigator"
	"github.com/cognicore/investigator/pkg/investigator/inference"
	"github.com/cognicore/investigator/pkg/investigator/store"
)

var (
	colorAccent  = lipgloss.Color("#20B9B4")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#2C4A54")

	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	styleHeader  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	styleCell    = lipgloss.NewStyle().Padding(0, 1)
	styleFlagged = styleCell.Foreground(colorError)
	styleChanged = styleCell.Foreground(colorWarning)
	styleBorder  = lipgloss.NewStyle().Foreground(colorMuted)
)

func formatProb(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(styleBorder).
		Headers(headers...)
}

// renderNodes prints one row per node. Contradicted evidence is drawn in
// the error colour when withResults is set.
func renderNodes(w io.Writer, nodes []investigator.NodeView, withResults bool) {
	headers := []string{"ID", "LABEL", "KIND", "PRIOR", "EVIDENCE", "PARENTS"}
	if withResults {
		headers = append(headers, "P", "THEORETICAL")
	}
	t := newTable(headers...)

	flagged := make(map[int]bool)
	labels := labelsOf(nodes)
	for i, n := range nodes {
		kind := n.Kind.String()
		if n.Auxiliary {
			kind += " (aux)"
		}
		parents := make([]string, 0, len(n.Parents))
		for _, p := range n.Parents {
			parents = append(parents, labels[p])
		}
		row := []string{
			strconv.Itoa(int(n.ID)),
			displayLabel(n),
			kind,
			formatProb(n.Prior),
			n.Evidence.String(),
			strings.Join(parents, ", "),
		}
		if withResults {
			theo := ""
			if n.HasTheoretical {
				theo = formatProb(n.Theoretical)
			}
			row = append(row, formatProb(n.Probability), theo)
		}
		if withResults && n.Contradiction {
			flagged[i] = true
		}
		t.Row(row...)
	}

	t.StyleFunc(func(row, _ int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return styleHeader
		case flagged[row]:
			return styleFlagged
		default:
			return styleCell
		}
	})
	fmt.Fprintln(w, styleTitle.Render("Nodes"))
	fmt.Fprintln(w, t.String())
}

// renderEdges prints the edge list; edges with a highlight other than none
// stand out.
func renderEdges(w io.Writer, edges []investigator.EdgeView, labels map[investigator.NodeID]string) {
	t := newTable("ID", "FROM", "TO", "WEIGHT", "TRIAL", "HIGHLIGHT")
	marked := make(map[int]investigator.Highlight)
	for i, e := range edges {
		if e.Highlight != investigator.HighlightNone {
			marked[i] = e.Highlight
		}
		t.Row(
			strconv.Itoa(int(e.ID)),
			labels[e.Parent],
			labels[e.Child],
			formatProb(e.Weight),
			formatProb(e.Trial),
			e.Highlight.String(),
		)
	}
	t.StyleFunc(func(row, _ int) lipgloss.Style {
		if row == table.HeaderRow {
			return styleHeader
		}
		switch marked[row] {
		case investigator.HighlightImplicated:
			return styleFlagged
		case investigator.HighlightIncrease, investigator.HighlightDecrease:
			return styleChanged
		default:
			return styleCell
		}
	})
	fmt.Fprintln(w, styleTitle.Render("Edges"))
	fmt.Fprintln(w, t.String())
}

func renderReport(w io.Writer, r inference.Report, labels map[investigator.NodeID]string) {
	fmt.Fprintf(w, "mode: %s, evidence: %d, passes: %d\n", r.Mode, r.Evidence, r.Passes)
	if r.Mode == inference.ModeBayesian && r.Evidence > 0 {
		fmt.Fprintf(w, "P(evidence) = %s\n", formatProb(r.EvidenceProbability))
	}
	if r.Mode == inference.ModeInvestigation {
		fmt.Fprintf(w, "iterations: priors %d, weights %d\n", r.PriorIterations, r.WeightIterations)
		if len(r.Contradictions) == 0 {
			fmt.Fprintln(w, "no contradictions")
		} else {
			names := make([]string, 0, len(r.Contradictions))
			for _, id := range r.Contradictions {
				names = append(names, labels[id])
			}
			fmt.Fprintln(w, styleFlagged.UnsetPadding().Render("contradictions: "+strings.Join(names, ", ")))
		}
	}
	if len(r.Faults) > 0 {
		faults := make([]string, 0, len(r.Faults))
		for _, f := range r.Faults {
			faults = append(faults, fmt.Sprintf("%s: %v", labels[f.Node], f.Err))
		}
		sort.Strings(faults)
		for _, f := range faults {
			fmt.Fprintln(w, "fault: "+f)
		}
	}
}

func renderSaved(w io.Writer, list []store.Summary) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no saved networks")
		return
	}
	t := newTable("ID", "NAME", "SAVED", "NODES", "EDGES", "EVIDENCE")
	for _, s := range list {
		t.Row(
			s.ID,
			s.Name,
			s.SavedAt.Local().Format(time.DateTime),
			strconv.Itoa(s.Nodes),
			strconv.Itoa(s.Edges),
			strconv.Itoa(s.Evidence),
		)
	}
	t.StyleFunc(func(row, _ int) lipgloss.Style {
		if row == table.HeaderRow {
			return styleHeader
		}
		return styleCell
	})
	fmt.Fprintln(w, t.String())
}
