package io

import (
	"bytes"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/matzehuels/depmap/pkg/deps"
	"github.com/matzehuels/depmap/pkg/errors"
	"github.com/matzehuels/depmap/pkg/graph"
)

func samplePackages() []deps.Package {
	curl := deps.Package{Name: "curl", Version: "8.5.0", Release: 1, Repository: "main", Path: "main/curl/APKBUILD"}
	curl.AddDeps(deps.KindRuntime, "libcurl=8.5.0-r1", "so:libz.so.1")
	curl.AddDeps(deps.KindBuild, "openssl-dev>3")
	curl.AddDeps(deps.KindCheck, "python3")

	libcurl := deps.Package{Name: "libcurl", Version: "8.5.0", Release: 1, Origin: "curl", Repository: "main"}
	zlib := deps.Package{Name: "zlib", Version: "1.3", Provides: []string{"so:libz.so.1=1.3"}, Repository: "main"}
	return []deps.Package{curl, libcurl, zlib}
}

func TestPackagesRoundTrip(t *testing.T) {
	pkgs := samplePackages()

	var buf bytes.Buffer
	if err := WritePackages(pkgs, &buf); err != nil {
		t.Fatalf("WritePackages: %v", err)
	}
	got, err := ReadPackages(&buf)
	if err != nil {
		t.Fatalf("ReadPackages: %v", err)
	}
	if len(got) != len(pkgs) {
		t.Fatalf("got %d packages, want %d", len(got), len(pkgs))
	}
	for i := range pkgs {
		if !got[i].Equal(&pkgs[i]) {
			t.Errorf("package %d:\n got %+v\nwant %+v", i, got[i], pkgs[i])
		}
	}

	g1, _ := graph.Build(pkgs)
	g2, err := graph.Build(got)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(g1.Edges(), g2.Edges()) || g1.Report().Unresolved[0] != g2.Report().Unresolved[0] {
		t.Error("graphs built before and after the round trip differ")
	}
}

func TestPackagesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkgs.json")
	if err := ExportPackages(samplePackages(), path); err != nil {
		t.Fatal(err)
	}
	got, err := ImportPackages(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].Name != "curl" {
		t.Errorf("ImportPackages() = %+v", got)
	}

	if _, err := ImportPackages(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, errors.ErrCodeInvalidPath) {
		t.Errorf("missing file error = %v", err)
	}
}

func TestReadPackagesErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		code errors.Code
	}{
		{"malformed", `{"format":`, errors.ErrCodeInvalidFormat},
		{"wrong format", `{"format":"other","version":1,"packages":[]}`, errors.ErrCodeInvalidFormat},
		{"future version", `{"format":"depmap/packages","version":99,"packages":[]}`, errors.ErrCodeUnsupported},
		{"bad kind", `{"format":"depmap/packages","version":1,"packages":[{"name":"a","dependencies":{"bogus":["b"]}}]}`, errors.ErrCodeInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPackages(strings.NewReader(tt.in))
			if !errors.Is(err, tt.code) {
				t.Errorf("ReadPackages() error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestGraphRoundTrip(t *testing.T) {
	g, err := graph.Build(samplePackages())
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteGraph(g, &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"kind": "build"`) && !strings.Contains(buf.String(), `"kind": "runtime"`) {
		t.Errorf("edge kinds not written as names:\n%s", buf.String())
	}

	g2, err := ReadGraph(&buf)
	if err != nil {
		t.Fatalf("ReadGraph: %v", err)
	}
	if !slices.Equal(g.Names(), g2.Names()) {
		t.Errorf("Names() = %v, want %v", g2.Names(), g.Names())
	}
	if !slices.Equal(g.Edges(), g2.Edges()) {
		t.Errorf("Edges() = %v, want %v", g2.Edges(), g.Edges())
	}
	p, _ := g2.Package("curl")
	if p.FullVersion() != "8.5.0-r1" {
		t.Errorf("version lost: %q", p.FullVersion())
	}
}

func TestReadGraphErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"unknown target", `{"nodes":[{"id":"a"}],"edges":[{"from":"a","to":"b","kind":"runtime"}]}`},
		{"unknown source", `{"nodes":[{"id":"a"}],"edges":[{"from":"x","to":"a","kind":"runtime"}]}`},
		{"missing kind", `{"nodes":[{"id":"a"},{"id":"b"}],"edges":[{"from":"a","to":"b"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadGraph(strings.NewReader(tt.in)); !errors.Is(err, errors.ErrCodeInvalidFormat) {
				t.Errorf("ReadGraph() error = %v, want INVALID_FORMAT", err)
			}
		})
	}
}

func TestWriteSubgraph(t *testing.T) {
	g, _ := graph.Build(samplePackages())
	sg, err := g.Subgraph(t.Context(), "curl", deps.AllKinds, 1, false)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteSubgraph(sg, &buf); err != nil {
		t.Fatal(err)
	}
	sub, err := ReadGraph(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if sub.NodeCount() != 3 || sub.EdgeCount() != 2 {
		t.Errorf("subgraph nodes=%d edges=%d", sub.NodeCount(), sub.EdgeCount())
	}
}
