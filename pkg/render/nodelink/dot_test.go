package nodelink

import (
	"strings"
	"testing"

	"github.com/matzehuels/depmap/pkg/deps"
	"github.com/matzehuels/depmap/pkg/graph"
)

func sample() *graph.Subgraph {
	return &graph.Subgraph{
		Root: "curl",
		Nodes: []graph.Node{
			{Name: "curl", Version: "8.5.0-r1", Repository: "main", Root: true},
			{Name: "zlib", Version: "1.3-r0", Repository: "main", Depth: 1},
			{Name: "py3-pytest", Repository: "community", Depth: 1},
		},
		Edges: []graph.Edge{
			{From: "curl", To: "zlib", Kind: deps.KindRuntime},
			{From: "curl", To: "py3-pytest", Kind: deps.KindCheck},
		},
	}
}

func TestToDOT(t *testing.T) {
	dot := ToDOT(sample(), Options{})

	for _, want := range []string{
		"digraph G {",
		"rankdir=TB;",
		`"curl" [label="curl", fillcolor="#ffd866", penwidth=2];`,
		`"curl" -> "zlib" [style=solid];`,
		`"curl" -> "py3-pytest" [style=dotted, color="#8a8a8a"];`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
	if !strings.Contains(dot, `"py3-pytest" [label="py3-pytest", fillcolor="#eef6ee"];`) {
		t.Errorf("second repository not coloured:\n%s", dot)
	}
	if ToDOT(sample(), Options{}) != dot {
		t.Error("ToDOT is not deterministic")
	}
}

func TestToDOTDetailed(t *testing.T) {
	dot := ToDOT(sample(), Options{Detailed: true, RankDir: "LR"})
	if !strings.Contains(dot, `label="zlib\n1.3-r0\nmain"`) {
		t.Errorf("detailed label missing:\n%s", dot)
	}
	if !strings.Contains(dot, "rankdir=LR;") {
		t.Error("RankDir ignored")
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="100pt" height="50pt" viewBox="0.00 0.00 100.00 50.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	out := string(normalizeViewBox(in))
	if !strings.HasPrefix(out, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100.00 50.00" width="100" height="50">`) {
		t.Errorf("normalizeViewBox() = %s", out)
	}
	if got := normalizeViewBox([]byte("<svg>")); string(got) != "<svg>" {
		t.Errorf("svg without viewBox changed: %s", got)
	}
}
