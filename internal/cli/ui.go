package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/depmap/pkg/deps"
	"github.com/matzehuels/depmap/pkg/graph"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorBlue   = lipgloss.Color("75")  // Light blue - build edges
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleNumber for numeric values.
	StyleNumber = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleSuccess for success messages.
	StyleSuccess = lipgloss.NewStyle().Foreground(colorGreen)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleCached   = lipgloss.NewStyle().Foreground(colorGreen)
	styleComputed = lipgloss.NewStyle().Foreground(colorGray)
	styleCommand  = lipgloss.NewStyle().Foreground(colorBlue)
	styleHeader   = lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	// kindStyles colour dependency kinds the same way the DOT output does.
	kindStyles = map[deps.Kind]lipgloss.Style{
		deps.KindRuntime: lipgloss.NewStyle().Foreground(colorWhite),
		deps.KindBuild:   lipgloss.NewStyle().Foreground(colorBlue),
		deps.KindCheck:   lipgloss.NewStyle().Foreground(colorGray),
	}
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
	iconCached  = "cached"
	iconFresh   = "fresh"
)

// =============================================================================
// Status Output
// =============================================================================

func printSuccess(format string, args ...any) {
	fmt.Fprintln(os.Stderr, styleIconSuccess.Render(iconSuccess) + " " + fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, styleIconError.Render(iconError) + " " + fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(os.Stderr, styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	fmt.Fprintln(os.Stderr, styleIconInfo.Render(iconInfo) + " " + fmt.Sprintf(format, args...))
}

func printDetail(format string, args ...any) {
	fmt.Fprintln(os.Stderr, "  " + StyleDim.Render(fmt.Sprintf(format, args...)))
}

func printFile(path string) {
	fmt.Fprintln(os.Stderr, "  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

func printNextStep(description, cmd string) {
	fmt.Fprintln(os.Stderr, StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}

// printStats prints graph size and cache status on one line.
func printStats(nodeCount, edgeCount, unresolved int, cached bool) {
	parts := []string{
		fmt.Sprintf("%d packages", nodeCount),
		fmt.Sprintf("%d edges", edgeCount),
	}
	if unresolved > 0 {
		parts = append(parts, fmt.Sprintf("%d unresolved", unresolved))
	}
	status, statusStyle := iconFresh, styleComputed
	if cached {
		status, statusStyle = iconCached, styleCached
	}

	line := "  "
	for i, part := range parts {
		if i > 0 {
			line += StyleDim.Render(" · ")
		}
		line += StyleDim.Render(part)
	}
	fmt.Fprintln(os.Stderr, line + StyleDim.Render(" · ") + statusStyle.Render(status))
}

// =============================================================================
// Data Output (command results written to the command's stdout)
// =============================================================================

// writeKeyValue writes an aligned "key  value" line.
func writeKeyValue(w io.Writer, key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(14)
	fmt.Fprintln(w, keyStyle.Render(key)+" "+StyleValue.Render(value))
}

// writeTable renders rows under headers with a rounded border.
func writeTable(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 { // header
				return styleHeader.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	fmt.Fprintln(w, t.Render())
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// kindLabel renders a kind tag, omitting runtime which is the common case.
func kindLabel(k deps.Kind) string {
	if k == deps.KindRuntime {
		return ""
	}
	return " " + kindStyles[k].Render("("+k.String()+")")
}

// writeNeighbors lists direct neighbours one per line.
func writeNeighbors(w io.Writer, ns []graph.Neighbor) {
	for _, n := range ns {
		fmt.Fprintln(w, n.Name+kindLabel(n.Kind))
	}
}

// writeTree draws a traversal as an indented tree rooted at t.Root.
func writeTree(w io.Writer, t *graph.Traversal) {
	fmt.Fprintln(w, StyleTitle.Render(t.Root))
	var walk func(name, prefix string)
	walk = func(name, prefix string) {
		children := t.Children(name)
		for i, c := range children {
			branch, next := "├── ", "│   "
			if i == len(children)-1 {
				branch, next = "└── ", "    "
			}
			fmt.Fprintln(w, prefix+StyleDim.Render(branch)+c.Name+kindLabel(c.Kind))
			walk(c.Name, prefix+next)
		}
	}
	walk(t.Root, "")
}

// writeLevels lists a traversal grouped by depth.
func writeLevels(w io.Writer, t *graph.Traversal) {
	depth := -1
	for _, n := range t.Nodes {
		if n.Depth == 0 {
			continue
		}
		if n.Depth != depth {
			depth = n.Depth
			fmt.Fprintln(w, StyleDim.Render(fmt.Sprintf("depth %d:", depth)))
		}
		fmt.Fprintln(w, "  "+n.Name+kindLabel(n.Kind))
	}
}

func joinPath(path []string) string {
	return strings.Join(path, " "+StyleDim.Render(iconArrow)+" ")
}
