package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/depmap/pkg/analyze"
	"github.com/matzehuels/depmap/pkg/deps"
	"github.com/matzehuels/depmap/pkg/graph"
)

// kindFlag registers --type and returns a parser for it.
func kindFlag(cmd *cobra.Command) func() (deps.KindSet, error) {
	s := cmd.Flags().StringP("type", "t", "all", "dependency kinds: all, runtime, build, check (comma-separated)")
	return func() (deps.KindSet, error) { return deps.ParseKinds(*s) }
}

// depsCommand creates "deps" or, with reverse set, "rdeps".
func (c *CLI) depsCommand(reverse bool) *cobra.Command {
	var (
		recursive bool
		depth     int
		tree      bool
		asJSON    bool
	)
	use, short := "deps <package>", "Show what a package depends on"
	if reverse {
		use, short = "rdeps <package>", "Show what depends on a package"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Example: strings.ReplaceAll(`  depmap CMD curl
  depmap CMD curl --type build
  depmap CMD so:libz.so.1 -r --depth 2 --tree`, "CMD", strings.Fields(use)[0]),
		Args: cobra.ExactArgs(1),
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
		g := res.Graph
		name, err := resolveName(g, args[0])
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()

		if !recursive && !tree {
			var ns []graph.Neighbor
			if reverse {
				ns, err = g.ReverseDependencies(name, ks)
			} else {
				ns, err = g.Dependencies(name, ks)
			}
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(w, ns)
			}
			writeNeighbors(w, ns)
			return nil
		}

		if depth < 0 {
			depth = graph.Unlimited
		}
		var t *graph.Traversal
		if reverse {
			t, err = g.RecursiveReverseDependencies(cmd.Context(), name, ks, depth)
		} else {
			t, err = g.RecursiveDependencies(cmd.Context(), name, ks, depth)
		}
		if err != nil {
			return err
		}
		switch {
		case asJSON:
			return writeJSON(w, t)
		case tree:
			writeTree(w, t)
		default:
			writeLevels(w, t)
		}
		printDetail("%d packages", len(t.Nodes)-1)
		return nil
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "follow dependencies transitively")
	cmd.Flags().IntVarP(&depth, "depth", "d", -1, "maximum depth for --recursive/--tree (-1: unlimited)")
	cmd.Flags().BoolVar(&tree, "tree", false, "draw the transitive closure as a tree")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func (c *CLI) pathCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "path <from> <to>",
		Short:   "Show the shortest dependency chain between two packages",
		Example: "  depmap path curl musl\n  depmap path git so:libz.so.1 --type runtime",
		Args:    cobra.ExactArgs(2),
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
		from, err := resolveName(res.Graph, args[0])
		if err != nil {
			return err
		}
		to, err := resolveName(res.Graph, args[1])
		if err != nil {
			return err
		}
		path, err := res.Graph.ShortestPath(cmd.Context(), from, to, ks)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), joinPath(path))
		printDetail("%d hops", len(path)-1)
		return nil
	}
	return cmd
}

func (c *CLI) cyclesCommand() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "cycles",
		Short: "List dependency cycles",
		Long: `Cycles finds every group of packages that depend on each other
(strongly connected components) and prints one closed loop through each.`,
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
		cycles, err := res.Graph.DetectCycles(cmd.Context(), ks)
		if err != nil {
			return err
		}
		total := len(cycles)
		if limit > 0 && len(cycles) > limit {
			cycles = cycles[:limit]
		}
		w := cmd.OutOrStdout()
		if asJSON {
			return writeJSON(w, map[string]any{"count": total, "cycles": cycles})
		}
		if total == 0 {
			printSuccess("No cycles")
			return nil
		}
		for _, cy := range cycles {
			fmt.Fprintln(w, joinPath(append(cy.Path, cy.Path[0])))
			if len(cy.Members) > len(cy.Path) {
				printDetail("group of %d packages", len(cy.Members))
			}
		}
		printWarning("%d cycles", total)
		return nil
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n cycles (0: all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

// infoCommand prints a package record with its analysis.
func (c *CLI) infoCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "info <package>",
		Short: "Show package details and dependency figures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			name, err := resolveName(res.Graph, args[0])
			if err != nil {
				return err
			}
			p, err := res.Graph.Package(name)
			if err != nil {
				return err
			}
			a := analyze.New(res.Graph, deps.AllKinds)
			pa, err := a.AnalyzePackage(cmd.Context(), name)
			if err != nil {
				return err
			}
			fp, err := a.InstallFootprint(cmd.Context(), name)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(w, map[string]any{"package": p, "analysis": pa, "footprint": fp})
			}
			fmt.Fprintln(w, StyleTitle.Render(p.Name)+" "+StyleDim.Render(p.FullVersion()))
			if p.Description != "" {
				fmt.Fprintln(w, p.Description)
			}
			fmt.Fprintln(w)
			for _, kv := range [][2]string{
				{"Repository", p.Repository},
				{"Origin", p.Origin},
				{"URL", p.URL},
				{"License", p.License},
				{"Maintainer", p.Maintainer},
				{"Provides", strings.Join(p.Provides, " ")},
				{"Path", p.Path},
			} {
				if kv[1] != "" {
					writeKeyValue(w, kv[0], kv[1])
				}
			}
			fmt.Fprintln(w)
			writeKeyValue(w, "Dependencies", fmt.Sprintf("%d direct (%d runtime, %d build, %d check), %d total",
				pa.DirectDeps, pa.RuntimeDeps, pa.BuildDeps, pa.CheckDeps, pa.TotalDeps))
			writeKeyValue(w, "Dependents", fmt.Sprintf("%d direct, %d total", pa.DirectRdeps, pa.TotalRdeps))
			writeKeyValue(w, "Depth", fmt.Sprint(pa.Depth))
			writeKeyValue(w, "Install size", fmt.Sprintf("%d packages", fp.PackageCount))

			var flags []string
			if pa.Core {
				flags = append(flags, "core")
			}
			if pa.Root {
				flags = append(flags, "root")
			}
			if pa.Leaf {
				flags = append(flags, "leaf")
			}
			if len(flags) > 0 {
				writeKeyValue(w, "Flags", strings.Join(flags, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

// compareCommand contrasts the dependency closures of several packages.
func (c *CLI) compareCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "compare <package> <package>...",
		Short: "Show shared and unique transitive dependencies",
		Args:  cobra.MinimumNArgs(2),
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
		names := make([]string, len(args))
		for i, a := range args {
			if names[i], err = resolveName(res.Graph, a); err != nil {
				return err
			}
		}
		a := analyze.New(res.Graph, ks)
		common, err := a.CommonDependencies(cmd.Context(), names...)
		if err != nil {
			return err
		}
		unique := make(map[string][]string, len(names))
		for i, n := range names {
			others := append(append([]string{}, names[:i]...), names[i+1:]...)
			if unique[n], err = a.UniqueDependencies(cmd.Context(), n, others...); err != nil {
				return err
			}
		}

		w := cmd.OutOrStdout()
		if asJSON {
			return writeJSON(w, map[string]any{"common": common, "unique": unique})
		}
		fmt.Fprintln(w, StyleTitle.Render(fmt.Sprintf("Shared (%d)", len(common))))
		fmt.Fprintln(w, strings.Join(common, " "))
		for _, n := range names {
			fmt.Fprintln(w, StyleTitle.Render(fmt.Sprintf("Only %s (%d)", n, len(unique[n]))))
			fmt.Fprintln(w, strings.Join(unique[n], " "))
		}
		return nil
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}
