package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/depmap/pkg/deps"
	"github.com/matzehuels/depmap/pkg/graph"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// browseCommand opens the interactive package browser.
func (c *CLI) browseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "browse [package]",
		Short: "Browse packages and their dependencies interactively",
		Long: `Browse opens a terminal UI listing every package. Type / to filter,
enter to open a package, enter again on a dependency to follow it and
backspace to go back.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			m := NewBrowseModel(res.Graph)
			if len(args) == 1 {
				name, err := resolveName(res.Graph, args[0])
				if err != nil {
					return err
				}
				m = m.open(name)
			}
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
}

// =============================================================================
// BrowseModel - Interactive package browser
// =============================================================================

// BrowseModel is the bubbletea model for the package browser. It has two
// views: the filtered package list and the detail view of one package.
type BrowseModel struct {
	g *graph.Graph

	Names     []string // list view entries after filtering
	Filter    string
	Filtering bool
	Cursor    int
	Offset    int
	Height    int

	// History holds the opened packages; the last one is on screen.
	History []packageView
}

// packageView is the detail view of one package.
type packageView struct {
	pkg    deps.Package
	items  []graph.Neighbor // dependencies followed by dependents
	ndeps  int
	cursor int
}

// NewBrowseModel creates a browser over every package of g.
func NewBrowseModel(g *graph.Graph) BrowseModel {
	return BrowseModel{g: g, Names: g.Names(), Height: 15}
}

// Current returns the package on screen, or "" in the list view.
func (m BrowseModel) Current() string {
	if len(m.History) == 0 {
		return ""
	}
	return m.History[len(m.History)-1].pkg.Name
}

func (m BrowseModel) open(name string) BrowseModel {
	p, err := m.g.Package(name)
	if err != nil {
		return m
	}
	ds, _ := m.g.Dependencies(name, deps.AllKinds)
	rs, _ := m.g.ReverseDependencies(name, deps.AllKinds)
	v := packageView{pkg: p, ndeps: len(ds), items: append(ds, rs...)}
	m.History = append(m.History[:len(m.History):len(m.History)], v)
	return m
}

func (m BrowseModel) applyFilter() BrowseModel {
	if m.Filter == "" {
		m.Names = m.g.Names()
	} else {
		m.Names = m.g.Search(m.Filter, 0)
	}
	m.Cursor, m.Offset = 0, 0
	return m
}

func (m BrowseModel) Init() tea.Cmd {
	return nil
}

func (m BrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-8, 5)
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.Filtering {
			return m.updateFilter(msg), nil
		}
		if len(m.History) > 0 {
			return m.updateDetail(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m BrowseModel) updateFilter(msg tea.KeyMsg) BrowseModel {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		m.Filtering = false
	case tea.KeyBackspace:
		if m.Filter != "" {
			m.Filter = m.Filter[:len(m.Filter)-1]
			m = m.applyFilter()
		}
	case tea.KeyRunes:
		m.Filter += string(msg.Runes)
		m = m.applyFilter()
	}
	return m
}

func (m BrowseModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "/":
		m.Filtering = true
	case "up", "k":
		if m.Cursor > 0 {
			m.Cursor--
			if m.Cursor < m.Offset {
				m.Offset = m.Cursor
			}
		}
	case "down", "j":
		if m.Cursor < len(m.Names)-1 {
			m.Cursor++
			if m.Cursor >= m.Offset+m.Height {
				m.Offset = m.Cursor - m.Height + 1
			}
		}
	case "enter":
		if len(m.Names) > 0 {
			m = m.open(m.Names[m.Cursor])
		}
	}
	return m, nil
}

func (m BrowseModel) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	top := len(m.History) - 1
	v := m.History[top]
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "backspace", "esc", "left", "h":
		m.History = m.History[:top]
		return m, nil
	case "up", "k":
		if v.cursor > 0 {
			v.cursor--
		}
	case "down", "j":
		if v.cursor < len(v.items)-1 {
			v.cursor++
		}
	case "enter", "right", "l":
		if len(v.items) > 0 {
			return m.open(v.items[v.cursor].Name), nil
		}
	}
	m.History = append(m.History[:top:top], v)
	return m, nil
}

func (m BrowseModel) View() string {
	if len(m.History) > 0 {
		return m.viewDetail()
	}
	return m.viewList()
}

func (m BrowseModel) viewList() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Packages"))
	b.WriteString("\n")
	if m.Filtering || m.Filter != "" {
		b.WriteString("/" + m.Filter)
		if m.Filtering {
			b.WriteString("█")
		}
	} else {
		b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ open  / filter  q quit"))
	}
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Names))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		p, _ := m.g.Package(m.Names[i])
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{cursor, p.Name, p.FullVersion(), p.Repository,
			fmt.Sprint(m.g.OutDegree(p.Name, deps.AllKinds)), fmt.Sprint(m.g.InDegree(p.Name, deps.AllKinds))})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Package", "Version", "Repository", "Deps", "Rdeps").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			if m.Offset+row == m.Cursor {
				return listSelectedStyle
			}
			if col >= 2 {
				return listDimStyle
			}
			return listNormalStyle
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", min(m.Cursor+1, len(m.Names)), len(m.Names))))
	return b.String()
}

func (m BrowseModel) viewDetail() string {
	v := m.History[len(m.History)-1]
	p := v.pkg

	var b strings.Builder
	b.WriteString(StyleTitle.Render(p.Name) + " " + StyleDim.Render(p.FullVersion()))
	b.WriteString("\n")
	if p.Description != "" {
		b.WriteString(p.Description + "\n")
	}
	if p.Repository != "" {
		b.WriteString(listDimStyle.Render(p.Repository+"  "+p.Path) + "\n")
	}
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ follow  ⌫ back  q quit"))
	b.WriteString("\n")

	// Show a window of items around the cursor.
	start := max(0, min(v.cursor-m.Height/2, len(v.items)-m.Height))
	end := min(start+m.Height, len(v.items))
	for i := start; i < end; i++ {
		if i == 0 || i == v.ndeps {
			title := fmt.Sprintf("Dependencies (%d)", v.ndeps)
			if i == v.ndeps {
				title = fmt.Sprintf("Dependents (%d)", len(v.items)-v.ndeps)
			}
			b.WriteString("\n" + styleHeader.Render(title) + "\n")
		}
		n := v.items[i]
		line := "  " + n.Name + kindLabel(n.Kind)
		if i == v.cursor {
			line = listSelectedStyle.Render("▸ " + n.Name + kindLabel(n.Kind))
		}
		b.WriteString(line + "\n")
	}
	if len(v.items) == 0 {
		b.WriteString("\n" + listDimStyle.Render("  no dependencies or dependents") + "\n")
	}

	trail := make([]string, len(m.History))
	for i, h := range m.History {
		trail[i] = h.pkg.Name
	}
	b.WriteString("\n" + listDimStyle.Render("  "+strings.Join(trail, " › ")))
	return b.String()
}
