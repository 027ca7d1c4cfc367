package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/depmap/pkg/analyze"
	"github.com/matzehuels/depmap/pkg/deps"
	"github.com/matzehuels/depmap/pkg/graph"
)

// statsCommand prints graph statistics, or a repository analysis with --repo.
func (c *CLI) statsCommand() *cobra.Command {
	var (
		top    int
		repo   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show graph statistics",
		Example: `  depmap stats
  depmap stats --top 5
  depmap stats --repo community --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			if repo != "" {
				ra, err := analyze.New(res.Graph, deps.AllKinds).AnalyzeRepository(cmd.Context(), repo, top)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(w, ra)
				}
				fmt.Fprintln(w, StyleTitle.Render(ra.Name))
				writeKeyValue(w, "Packages", strconv.Itoa(ra.PackageCount))
				writeKeyValue(w, "Dependencies", strconv.Itoa(ra.TotalDeps))
				writeKeyValue(w, "Average", strconv.FormatFloat(ra.AvgDeps, 'f', 2, 64))
				fmt.Fprintln(w)
				writeDegrees(w, "Most depended on", ra.MostDepended)
				writeDegrees(w, "Most dependencies (recursive)", ra.MostDependencies)
				if len(ra.CrossRepoDeps) > 0 {
					fmt.Fprintln(w, StyleTitle.Render("Cross-repository edges"))
					writeCounts(w, ra.CrossRepoDeps)
				}
				return nil
			}

			s := res.Graph.Stats(top)
			if asJSON {
				return writeJSON(w, s)
			}
			writeKeyValue(w, "Packages", strconv.Itoa(s.NodeCount))
			writeKeyValue(w, "Edges", strconv.Itoa(s.EdgeCount))
			for _, k := range deps.Kinds {
				writeKeyValue(w, "  "+k.String(), strconv.Itoa(s.EdgeCountByKind[k]))
			}
			writeKeyValue(w, "Sub-packages", strconv.Itoa(s.SubpackageCount))
			writeKeyValue(w, "Aliases", strconv.Itoa(s.AliasCount))
			writeKeyValue(w, "Orphans", strconv.Itoa(s.OrphanCount))
			writeKeyValue(w, "Unresolved", strconv.Itoa(s.UnresolvedCount))
			writeKeyValue(w, "Warnings", strconv.Itoa(s.WarningCount))
			fmt.Fprintln(w)
			if len(s.Repositories) > 0 {
				fmt.Fprintln(w, StyleTitle.Render("Repositories"))
				writeCounts(w, s.Repositories)
			}
			writeDegrees(w, "Most depended on", s.TopByInDegree)
			writeDegrees(w, "Most dependencies", s.TopByOutDegree)
			return nil
		},
	}
	cmd.Flags().IntVarP(&top, "top", "n", 10, "length of ranked lists")
	cmd.Flags().StringVar(&repo, "repo", "", "analyze a single repository")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

// reportCommand prints the whole-graph analysis report.
func (c *CLI) reportCommand() *cobra.Command {
	var (
		top    int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Analyze the whole graph",
		Long: `Report summarizes the graph: density, connectivity, per-repository
figures, core packages (depended on by at least ` + strconv.Itoa(analyze.CoreThreshold) + ` others),
the most connected packages and the dependency cycles.`,
		Args: cobra.NoArgs,
	}
	kinds := kindFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ks, err := kinds()
		if err != nil {
			return err
		}
		res, err := c.load(cmd.Context())
		if err != nil {
			return err
		}
		r, err := analyze.New(res.Graph, ks).Report(cmd.Context(), top)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if asJSON {
			return writeJSON(w, r)
		}

		writeKeyValue(w, "Packages", strconv.Itoa(r.Summary.Packages))
		writeKeyValue(w, "Edges", strconv.Itoa(r.Summary.Edges))
		writeKeyValue(w, "Density", strconv.FormatFloat(r.Summary.Density, 'g', 4, 64))
		writeKeyValue(w, "Components", strconv.Itoa(r.Summary.Components))
		writeKeyValue(w, "Acyclic", strconv.FormatBool(r.Summary.Acyclic))
		fmt.Fprintln(w)

		rows := make([][]string, 0, len(r.Repositories))
		for _, name := range slices.Sorted(maps.Keys(r.Repositories)) {
			rs := r.Repositories[name]
			cross := 0
			for _, n := range rs.CrossRepoDeps {
				cross += n
			}
			rows = append(rows, []string{name, strconv.Itoa(rs.PackageCount),
				strconv.FormatFloat(rs.AvgDeps, 'f', 2, 64), strconv.Itoa(cross)})
		}
		if len(rows) > 0 {
			writeTable(w, []string{"Repository", "Packages", "Avg deps", "Cross-repo"}, rows)
		}

		if len(r.CorePackages) > 0 {
			fmt.Fprintln(w, StyleTitle.Render(fmt.Sprintf("Core packages (%d)", len(r.CorePackages))))
			for _, name := range r.CorePackages {
				fmt.Fprintln(w, "  "+name)
			}
		}
		writeDegrees(w, "Most depended on", r.MostDepended)
		writeDegrees(w, "Most dependencies", r.MostDependencies)
		if r.CycleCount > 0 {
			fmt.Fprintln(w, StyleTitle.Render(fmt.Sprintf("Cycles (%d)", r.CycleCount)))
			for _, cy := range r.Cycles {
				fmt.Fprintln(w, "  "+joinPath(append(cy.Path, cy.Path[0])))
			}
		}
		return nil
	}
	cmd.Flags().IntVarP(&top, "top", "n", analyze.DefaultTop, "length of ranked lists")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func writeDegrees(w io.Writer, title string, entries []graph.DegreeEntry) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintln(w, StyleTitle.Render(title))
	for _, e := range entries {
		fmt.Fprintf(w, "  %s %s\n", StyleNumber.Render(fmt.Sprintf("%6d", e.Degree)), e.Name)
	}
}

func writeCounts(w io.Writer, counts map[string]int) {
	for _, k := range slices.Sorted(maps.Keys(counts)) {
		fmt.Fprintf(w, "  %s %s\n", StyleNumber.Render(fmt.Sprintf("%6d", counts[k])), k)
	}
}
