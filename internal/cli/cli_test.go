package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/depmap/pkg/deps"
	"github.com/matzehuels/depmap/pkg/errors"
	"github.com/matzehuels/depmap/pkg/graph"
	depio "github.com/matzehuels/depmap/pkg/io"
)

// fixture writes a small package export and isolates config, cache and
// snapshot directories in t.TempDir.
func fixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))

	musl := deps.Package{Name: "musl", Version: "1.2.4", Release: 1, Repository: "main"}
	zlib := deps.Package{Name: "zlib", Version: "1.3", Repository: "main", Provides: []string{"so:libz.so.1=1.3"}}
	zlib.AddDeps(deps.KindRuntime, "musl")
	openssl := deps.Package{Name: "openssl", Version: "3.1.4", Repository: "main"}
	openssl.AddDeps(deps.KindRuntime, "musl", "so:libz.so.1")
	curl := deps.Package{Name: "curl", Version: "8.5.0", Repository: "main", Description: "URL retrieval utility"}
	curl.AddDeps(deps.KindRuntime, "openssl", "so:libz.so.1")
	curl.AddDeps(deps.KindBuild, "perl")
	perl := deps.Package{Name: "perl", Version: "5.38.2", Repository: "community"}
	perl.AddDeps(deps.KindRuntime, "musl")
	perl.AddDeps(deps.KindCheck, "curl")

	path := filepath.Join(dir, "packages.json")
	if err := depio.ExportPackages([]deps.Package{musl, zlib, openssl, curl, perl}, path); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out
}

func TestDepsCommands(t *testing.T) {
	from := fixture(t)

	tests := []struct {
		name string
		args []string
		want []string
		skip []string
	}{
		{"deps", []string{"deps", "curl"}, []string{"openssl", "zlib", "perl"}, []string{"musl"}},
		{"deps runtime", []string{"deps", "curl", "--type", "runtime"}, []string{"openssl", "zlib"}, []string{"perl"}},
		{"rdeps", []string{"rdeps", "musl"}, []string{"zlib", "openssl", "perl"}, []string{"curl"}},
		{"rdeps alias", []string{"rdeps", "so:libz.so.1"}, []string{"openssl", "curl"}, []string{"perl"}},
		{"recursive", []string{"deps", "curl", "-r"}, []string{"depth 1:", "depth 2:", "musl"}, nil},
		{"tree", []string{"deps", "openssl", "--tree"}, []string{"openssl", "└── ", "musl"}, nil},
		{"path", []string{"path", "curl", "musl"}, []string{"curl", "musl"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := mustRun(t, append(tt.args, "--from", from)...)
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, s := range tt.skip {
				if strings.Contains(out, s) {
					t.Errorf("output should not contain %q:\n%s", s, out)
				}
			}
		})
	}
}

func TestDepsRecursiveJSON(t *testing.T) {
	from := fixture(t)
	out := mustRun(t, "deps", "curl", "-r", "--json", "--from", from)

	var tr graph.Traversal
	if err := json.Unmarshal([]byte(out), &tr); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if tr.Root != "curl" || len(tr.Nodes) != 5 {
		t.Errorf("traversal = %s with %d nodes, want curl with 5", tr.Root, len(tr.Nodes))
	}

	out = mustRun(t, "deps", "curl", "-r", "--depth", "1", "--json", "--from", from)
	tr = graph.Traversal{}
	if err := json.Unmarshal([]byte(out), &tr); err != nil {
		t.Fatal(err)
	}
	if got := tr.Depth(); got != 1 {
		t.Errorf("depth-limited traversal reached depth %d", got)
	}
}

func TestUnknownPackage(t *testing.T) {
	from := fixture(t)
	_, err := run(t, "deps", "cur", "--from", from)
	if !errors.Is(err, errors.ErrCodePackageNotFound) {
		t.Fatalf("err = %v, want PACKAGE_NOT_FOUND", err)
	}
	if !strings.Contains(err.Error(), "curl") {
		t.Errorf("err = %v, want a suggestion", err)
	}
}

func TestInvalidKind(t *testing.T) {
	from := fixture(t)
	if _, err := run(t, "deps", "curl", "--type", "optional", "--from", from); err == nil {
		t.Fatal("expected an error for an unknown kind")
	}
}

func TestCyclesCommand(t *testing.T) {
	from := fixture(t)

	var res struct {
		Count  int           `json:"count"`
		Cycles []graph.Cycle `json:"cycles"`
	}
	out := mustRun(t, "cycles", "--json", "--from", from)
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatal(err)
	}
	if res.Count != 1 || len(res.Cycles[0].Members) != 2 {
		t.Errorf("cycles = %+v, want one curl/perl cycle", res)
	}

	out = mustRun(t, "cycles", "--type", "runtime", "--json", "--from", from)
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatal(err)
	}
	if res.Count != 0 {
		t.Errorf("runtime cycles = %d, want 0", res.Count)
	}
}

func TestStatsAndReport(t *testing.T) {
	from := fixture(t)

	var s graph.Stats
	if err := json.Unmarshal([]byte(mustRun(t, "stats", "--json", "--from", from)), &s); err != nil {
		t.Fatal(err)
	}
	if s.NodeCount != 5 || s.Repositories["community"] != 1 {
		t.Errorf("stats = %+v", s)
	}

	out := mustRun(t, "stats", "--repo", "main", "--json", "--from", from)
	if !strings.Contains(out, `"package_count": 4`) {
		t.Errorf("repository stats:\n%s", out)
	}
	if _, err := run(t, "stats", "--repo", "testing", "--from", from); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("unknown repository: err = %v", err)
	}

	var r struct {
		Summary struct {
			Packages int  `json:"packages"`
			Acyclic  bool `json:"acyclic"`
		} `json:"summary"`
	}
	if err := json.Unmarshal([]byte(mustRun(t, "report", "--json", "--from", from)), &r); err != nil {
		t.Fatal(err)
	}
	if r.Summary.Packages != 5 || r.Summary.Acyclic {
		t.Errorf("report summary = %+v", r.Summary)
	}
	mustRun(t, "report", "--from", from)
}

func TestInfoAndCompare(t *testing.T) {
	from := fixture(t)

	out := mustRun(t, "info", "curl", "--from", from)
	for _, want := range []string{"curl", "8.5.0", "URL retrieval utility", "main"} {
		if !strings.Contains(out, want) {
			t.Errorf("info missing %q:\n%s", want, out)
		}
	}

	var cmp struct {
		Common []string            `json:"common"`
		Unique map[string][]string `json:"unique"`
	}
	out = mustRun(t, "compare", "curl", "openssl", "--json", "--from", from)
	if err := json.Unmarshal([]byte(out), &cmp); err != nil {
		t.Fatal(err)
	}
	if len(cmp.Common) != 2 {
		t.Errorf("common = %v, want musl and zlib", cmp.Common)
	}
	if u := cmp.Unique["openssl"]; len(u) != 0 {
		t.Errorf("unique to openssl = %v, want none", u)
	}
}

func TestVisualize(t *testing.T) {
	from := fixture(t)

	out := mustRun(t, "visualize", "curl", "--depth", "1", "--from", from)
	if !strings.HasPrefix(out, "digraph") || !strings.Contains(out, `"openssl"`) {
		t.Errorf("dot output:\n%s", out)
	}

	out = mustRun(t, "visualize", "zlib", "--reverse", "--depth", "1", "--format", "json", "--from", from)
	var doc struct {
		Nodes []struct {
			ID string `json:"id"`
		} `json:"nodes"`
		Edges []graph.Edge `json:"edges"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	// zlib, openssl and curl, with openssl -> zlib, curl -> openssl and curl -> zlib.
	if len(doc.Nodes) != 3 || len(doc.Edges) != 3 {
		t.Errorf("node-link = %+v", doc)
	}

	if _, err := run(t, "visualize", "curl", "--format", "pdf", "--from", from); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("pdf: err = %v", err)
	}
}

func TestSnapshotLifecycle(t *testing.T) {
	from := fixture(t)

	mustRun(t, "snapshot", "save", "--name", "edge", "--from", from)

	var list []struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		PackageCount int    `json:"package_count"`
	}
	if err := json.Unmarshal([]byte(mustRun(t, "snapshot", "list", "--json")), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Name != "edge" || list[0].PackageCount != 5 {
		t.Fatalf("list = %+v", list)
	}

	out := mustRun(t, "rdeps", "musl", "--snapshot", "edge")
	if !strings.Contains(out, "perl") {
		t.Errorf("rdeps from snapshot:\n%s", out)
	}
	out = mustRun(t, "snapshot", "show", "latest")
	if !strings.Contains(out, list[0].ID) {
		t.Errorf("show:\n%s", out)
	}

	mustRun(t, "snapshot", "delete", "edge")
	if _, err := run(t, "snapshot", "show", "edge"); !errors.Is(err, errors.ErrCodeSnapshotNotFound) {
		t.Errorf("after delete: err = %v", err)
	}
}

func TestSourceRequired(t *testing.T) {
	fixture(t)
	t.Setenv("DEPMAP_APORTS", "")
	if _, err := run(t, "stats"); err == nil {
		t.Fatal("expected an error without --aports, --from or --snapshot")
	}
}

func TestConfigAndCachePath(t *testing.T) {
	fixture(t)

	out := mustRun(t, "cache", "path")
	if got, want := strings.TrimSpace(out), filepath.Join(os.Getenv("XDG_CACHE_HOME"), "depmap"); got != want {
		t.Errorf("cache path = %q, want %q", got, want)
	}

	out = mustRun(t, "config")
	if !strings.Contains(out, "[cache]") || !strings.Contains(out, "backend") {
		t.Errorf("config:\n%s", out)
	}
	out = mustRun(t, "config", "--path")
	if !strings.HasSuffix(strings.TrimSpace(out), filepath.Join("depmap", "config.toml")) {
		t.Errorf("config path = %q", out)
	}
}

func TestCompletion(t *testing.T) {
	out := mustRun(t, "completion", "bash")
	if !strings.Contains(out, "depmap") {
		t.Error("bash completion should mention depmap")
	}
}

const zlibAPKBUILD = `pkgname=zlib
pkgver=1.3.1
pkgrel=0
pkgdesc="A compression/decompression Library"
depends=""
subpackages="$pkgname-static $pkgname-dev"
`

func TestParseFile(t *testing.T) {
	fixture(t)
	path := filepath.Join(t.TempDir(), "main", "zlib", "APKBUILD")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(zlibAPKBUILD), 0o644); err != nil {
		t.Fatal(err)
	}

	pkgs, err := depio.ReadPackages(strings.NewReader(mustRun(t, "parse", path)))
	if err != nil {
		t.Fatal(err)
	}
	if len(pkgs) != 3 || pkgs[0].Name != "zlib" || pkgs[0].Repository != "main" {
		t.Errorf("parsed %+v", pkgs)
	}
}

func TestParseRemote(t *testing.T) {
	fixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/alpine/aports/-/raw/master/main/zlib/APKBUILD" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(zlibAPKBUILD))
	}))
	defer srv.Close()

	out := mustRun(t, "parse", "--remote", "main/zlib", "--gitlab-url", srv.URL, "--no-cache")
	pkgs, err := depio.ReadPackages(strings.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if len(pkgs) != 3 || pkgs[2].Name != "zlib-dev" {
		t.Errorf("parsed %+v", pkgs)
	}

	_, err = run(t, "parse", "--remote", "main/nosuch", "--gitlab-url", srv.URL, "--no-cache")
	if !errors.Is(err, errors.ErrCodePackageNotFound) {
		t.Errorf("missing remote: err = %v", err)
	}
}
