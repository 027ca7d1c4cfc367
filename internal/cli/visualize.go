package cli

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/depmap/pkg/errors"
	"github.com/matzehuels/depmap/pkg/graph"
	"github.com/matzehuels/depmap/pkg/io"
	"github.com/matzehuels/depmap/pkg/render/nodelink"
)

// Diagram output formats.
const (
	formatDOT  = "dot"
	formatSVG  = "svg"
	formatJSON = "json"
)

// visualizeCommand renders the neighbourhood of a package as a diagram.
func (c *CLI) visualizeCommand() *cobra.Command {
	var (
		output   string
		format   string
		depth    int
		reverse  bool
		detailed bool
		rankdir  string
	)
	cmd := &cobra.Command{
		Use:   "visualize <package>",
		Short: "Render a package's dependency neighbourhood",
		Long: `Visualize collects the packages within --depth hops of a package and
renders them as a node-link diagram. DOT is written as-is; SVG is laid out
with Graphviz; JSON is the node-link structure.

Runtime edges are solid, build edges dashed and check edges dotted.`,
		Example: `  depmap visualize curl -o curl.svg
  depmap visualize zlib --reverse --depth 1 --format dot
  depmap visualize openssl --type runtime --detailed -o openssl.svg`,
		Aliases: []string{"viz"},
		Args:    cobra.ExactArgs(1),
	}
	kinds := kindFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ks, err := kinds()
		if err != nil {
			return err
		}
		if format == "" {
			format = formatFromPath(output)
		}
		if format != formatDOT && format != formatSVG && format != formatJSON {
			return errors.New(errors.ErrCodeInvalidFormat, "unsupported format %q (want dot, svg or json)", format)
		}

		res, err := c.load(cmd.Context())
		if err != nil {
			return err
		}
		name, err := resolveName(res.Graph, args[0])
		if err != nil {
			return err
		}
		sg, err := res.Graph.Subgraph(cmd.Context(), name, ks, depth, reverse)
		if err != nil {
			return err
		}

		data, err := renderSubgraph(cmd, sg, format, nodelink.Options{Detailed: detailed, RankDir: rankdir})
		if err != nil {
			return err
		}
		if output == "" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(output, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", output, err)
		}
		printSuccess("Rendered %d packages, %d edges", len(sg.Nodes), len(sg.Edges))
		printFile(output)
		return nil
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format: dot, svg, json (default: from -o extension, else dot)")
	cmd.Flags().IntVarP(&depth, "depth", "d", 2, "hops to include around the package")
	cmd.Flags().BoolVar(&reverse, "reverse", false, "follow dependents instead of dependencies")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "add version and repository to labels")
	cmd.Flags().StringVar(&rankdir, "rankdir", "", "Graphviz rank direction: TB, LR, BT, RL")
	return cmd
}

func renderSubgraph(cmd *cobra.Command, sg *graph.Subgraph, format string, opts nodelink.Options) ([]byte, error) {
	switch format {
	case formatJSON:
		var buf bytes.Buffer
		if err := io.WriteSubgraph(sg, &buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case formatSVG:
		spinner := newSpinnerWithContext(cmd.Context(), "Laying out diagram...")
		spinner.Start()
		svg, err := nodelink.RenderSVG(cmd.Context(), nodelink.ToDOT(sg, opts))
		if err != nil {
			spinner.StopWithError("Layout failed")
			return nil, err
		}
		spinner.Stop()
		return svg, nil
	}
	return []byte(nodelink.ToDOT(sg, opts)), nil
}

func formatFromPath(path string) string {
	switch {
	case strings.HasSuffix(path, ".svg"):
		return formatSVG
	case strings.HasSuffix(path, ".json"):
		return formatJSON
	}
	return formatDOT
}
