package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depmap/pkg/deps"
	"github.com/matzehuels/depmap/pkg/graph"
	"github.com/matzehuels/depmap/pkg/observability"
)

func testGraph(t *testing.T) *graph.Graph {
	t.Helper()
	curl := deps.Package{Name: "curl", Version: "8.5.0", Release: 1, Repository: "main", License: "curl"}
	curl.AddDeps(deps.KindRuntime, "libcurl", "so:libz.so.1")
	curl.AddDeps(deps.KindBuild, "openssl-dev")
	libcurl := deps.Package{Name: "libcurl", Origin: "curl", Repository: "main"}
	libcurl.AddDeps(deps.KindRuntime, "so:libz.so.1")
	zlib := deps.Package{Name: "zlib", Version: "1.3", Repository: "main", Provides: []string{"so:libz.so.1=1.3"}}
	a := deps.Package{Name: "cyc-a", Repository: "community"}
	a.AddDeps(deps.KindRuntime, "cyc-b")
	b := deps.Package{Name: "cyc-b", Repository: "community"}
	b.AddDeps(deps.KindRuntime, "cyc-a")

	g, err := graph.Build([]deps.Package{curl, libcurl, zlib, a, b})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	return g
}

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	s, err := New(testGraph(t), opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return s, ts
}

func get(t *testing.T, ts *httptest.Server, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, body
}

func getJSON(t *testing.T, ts *httptest.Server, path string, wantStatus int, v any) {
	t.Helper()
	resp, body := get(t, ts, path)
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d; body %s", path, resp.StatusCode, wantStatus, body)
	}
	if v != nil {
		if err := json.Unmarshal(body, v); err != nil {
			t.Fatalf("GET %s: decode %q: %v", path, body, err)
		}
	}
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	var body struct {
		Status   string `json:"status"`
		Packages int    `json:"packages"`
	}
	getJSON(t, ts, "/healthz", http.StatusOK, &body)
	if body.Status != "ok" || body.Packages != 5 {
		t.Errorf("healthz = %+v", body)
	}
}

func TestSearch(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	tests := []struct {
		query string
		want  []string
	}{
		{"cu", []string{"curl", "libcurl"}},
		{"CURL", []string{"curl", "libcurl"}},
		{"c", nil},
		{"nothing", nil},
	}
	for _, tt := range tests {
		var body struct {
			Results []packageRef `json:"results"`
		}
		getJSON(t, ts, "/api/search?q="+tt.query, http.StatusOK, &body)
		var got []string
		for _, r := range body.Results {
			got = append(got, r.Name)
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("search %q = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestPackage(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	var info packageInfo
	getJSON(t, ts, "/api/package/curl", http.StatusOK, &info)
	if info.Version != "8.5.0-r1" || info.DepsCount != 2 || info.TotalDepsCount != 2 || info.RdepsCount != 0 {
		t.Errorf("curl = %+v", info)
	}
	if info.Deps[1].Name != "zlib" || info.Deps[1].Kind != deps.KindRuntime {
		t.Errorf("curl deps = %+v", info.Deps)
	}

	getJSON(t, ts, "/api/package/so:libz.so.1", http.StatusOK, &info)
	if info.Name != "zlib" || info.RdepsCount != 2 {
		t.Errorf("alias lookup = %+v", info)
	}

	var e errorBody
	getJSON(t, ts, "/api/package/nope", http.StatusNotFound, &e)
	if e.Code != "PACKAGE_NOT_FOUND" {
		t.Errorf("error code = %q", e.Code)
	}
}

func TestDeps(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	var direct struct {
		Packages []packageRef `json:"packages"`
	}
	getJSON(t, ts, "/api/rdeps/zlib", http.StatusOK, &direct)
	if len(direct.Packages) != 2 {
		t.Errorf("rdeps zlib = %+v", direct.Packages)
	}

	var tr graph.Traversal
	getJSON(t, ts, "/api/deps/curl?recursive=true&type=runtime", http.StatusOK, &tr)
	if got := tr.Names(); !slices.Equal(got, []string{"libcurl", "zlib"}) {
		t.Errorf("recursive deps = %v", got)
	}
	getJSON(t, ts, "/api/deps/curl?recursive=1&depth=0", http.StatusOK, &tr)
	if len(tr.Nodes) != 1 {
		t.Errorf("depth 0 nodes = %v", tr.Nodes)
	}

	getJSON(t, ts, "/api/deps/curl?type=sideways", http.StatusBadRequest, nil)
	getJSON(t, ts, "/api/deps/curl?recursive=1&depth=-1", http.StatusBadRequest, nil)
}

func TestGraphFormats(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	var doc struct {
		Nodes []struct {
			ID string `json:"id"`
		} `json:"nodes"`
		Edges []graph.Edge `json:"edges"`
	}
	getJSON(t, ts, "/api/graph/curl?depth=1", http.StatusOK, &doc)
	if len(doc.Nodes) != 3 || len(doc.Edges) != 3 {
		t.Errorf("graph = %+v", doc)
	}

	getJSON(t, ts, "/api/rdeps-graph/zlib", http.StatusOK, &doc)
	if len(doc.Nodes) != 3 {
		t.Errorf("rdeps-graph nodes = %+v", doc.Nodes)
	}

	resp, body := get(t, ts, "/api/graph/curl?format=dot")
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/vnd.graphviz") {
		t.Errorf("dot content type = %q", ct)
	}
	if !strings.Contains(string(body), `"curl" -> "zlib"`) {
		t.Errorf("dot body = %s", body)
	}

	getJSON(t, ts, "/api/graph/curl?format=png", http.StatusBadRequest, nil)
	getJSON(t, ts, "/api/graph/curl?depth=99", http.StatusBadRequest, nil)
	getJSON(t, ts, "/api/graph/nope", http.StatusNotFound, nil)
}

func TestPath(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	var body struct {
		Path   []string `json:"path"`
		Length int      `json:"length"`
	}
	getJSON(t, ts, "/api/path?from=curl&to=so:libz.so.1", http.StatusOK, &body)
	if !slices.Equal(body.Path, []string{"curl", "zlib"}) || body.Length != 1 {
		t.Errorf("path = %+v", body)
	}

	var e errorBody
	getJSON(t, ts, "/api/path?from=zlib&to=curl", http.StatusNotFound, &e)
	if e.Code != "NO_PATH" {
		t.Errorf("no path code = %q", e.Code)
	}
	getJSON(t, ts, "/api/path?from=zlib", http.StatusBadRequest, nil)
	getJSON(t, ts, "/api/path?from=zlib&to=nope", http.StatusNotFound, &e)
	if e.Code != "PACKAGE_NOT_FOUND" {
		t.Errorf("unknown target code = %q", e.Code)
	}
}

func TestCyclesStatsReport(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	var cycles struct {
		Count  int           `json:"count"`
		Cycles []graph.Cycle `json:"cycles"`
	}
	getJSON(t, ts, "/api/cycles", http.StatusOK, &cycles)
	if cycles.Count != 1 || !slices.Equal(cycles.Cycles[0].Members, []string{"cyc-a", "cyc-b"}) {
		t.Errorf("cycles = %+v", cycles)
	}
	getJSON(t, ts, "/api/cycles?type=build", http.StatusOK, &cycles)
	if cycles.Count != 0 || cycles.Cycles == nil {
		t.Errorf("build cycles = %+v", cycles)
	}

	var stats graph.Stats
	getJSON(t, ts, "/api/stats", http.StatusOK, &stats)
	if stats.NodeCount != 5 || stats.UnresolvedCount != 1 || stats.Repositories["community"] != 2 {
		t.Errorf("stats = %+v", stats)
	}

	var most struct {
		Packages []struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		} `json:"packages"`
	}
	getJSON(t, ts, "/api/most-depended?n=1", http.StatusOK, &most)
	if len(most.Packages) != 1 || most.Packages[0].Name != "zlib" || most.Packages[0].Count != 2 {
		t.Errorf("most-depended = %+v", most)
	}

	var report struct {
		Summary struct {
			Packages   int  `json:"packages"`
			Acyclic    bool `json:"acyclic"`
			Components int  `json:"components"`
		} `json:"summary"`
		CycleCount int `json:"cycle_count"`
	}
	getJSON(t, ts, "/api/report", http.StatusOK, &report)
	if report.Summary.Packages != 5 || report.Summary.Acyclic || report.Summary.Components != 2 || report.CycleCount != 1 {
		t.Errorf("report = %+v", report)
	}

	var analysis struct {
		Package struct {
			TotalDeps int `json:"total_deps"`
		} `json:"package"`
		Footprint struct {
			PackageCount int `json:"package_count"`
		} `json:"footprint"`
	}
	getJSON(t, ts, "/api/analyze/curl", http.StatusOK, &analysis)
	if analysis.Package.TotalDeps != 2 || analysis.Footprint.PackageCount != 3 {
		t.Errorf("analyze = %+v", analysis)
	}
}

func TestResponseCache(t *testing.T) {
	s, ts := newTestServer(t, Options{})

	resp, first := get(t, ts, "/api/package/curl")
	if resp.Header.Get("X-Cache") != "MISS" {
		t.Errorf("first X-Cache = %q", resp.Header.Get("X-Cache"))
	}
	resp, second := get(t, ts, "/api/package/curl")
	if resp.Header.Get("X-Cache") != "HIT" || string(first) != string(second) {
		t.Errorf("second X-Cache = %q", resp.Header.Get("X-Cache"))
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("cached Content-Type = %q", ct)
	}

	// Errors are not cached.
	get(t, ts, "/api/package/nope")
	if resp, _ := get(t, ts, "/api/package/nope"); resp.Header.Get("X-Cache") != "MISS" {
		t.Error("error response was cached")
	}

	s.SetGraph(testGraph(t))
	if resp, _ := get(t, ts, "/api/package/curl"); resp.Header.Get("X-Cache") != "MISS" {
		t.Error("cache survived SetGraph")
	}
}

func TestResponseCacheDisabled(t *testing.T) {
	_, ts := newTestServer(t, Options{CacheEntries: -1})
	get(t, ts, "/api/stats")
	if resp, _ := get(t, ts, "/api/stats"); resp.Header.Get("X-Cache") != "MISS" {
		t.Error("disabled cache served a hit")
	}
}

func TestRequestID(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, _ := get(t, ts, "/healthz")
	if id := resp.Header.Get(RequestIDHeader); len(id) != 36 {
		t.Errorf("generated request ID = %q", id)
	}

	const id = "0b6f2a4e-5a7c-4f5e-9d0b-3c2f6a1e8d9c"
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	req.Header.Set(RequestIDHeader, id)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(RequestIDHeader); got != id {
		t.Errorf("echoed request ID = %q, want %q", got, id)
	}
}

func TestMetrics(t *testing.T) {
	t.Cleanup(observability.Reset)
	m := NewMetrics()
	m.Register()
	_, ts := newTestServer(t, Options{Metrics: m})

	get(t, ts, "/api/deps/curl")
	get(t, ts, "/api/deps/curl")
	get(t, ts, "/api/package/nope")

	_, body := get(t, ts, "/metrics")
	text := string(body)
	for _, want := range []string{
		`depmap_http_requests_total{code="200",route="/api/deps/{name}"} 2`,
		`depmap_http_requests_total{code="404",route="/api/package/{name}"} 1`,
		`depmap_cache_lookups_total{result="hit",type="resp"} 1`,
		`go_goroutines`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("/metrics missing %q", want)
		}
	}
}

func TestUnknownRoute(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	var e errorBody
	getJSON(t, ts, "/api/nothing", http.StatusNotFound, &e)
	if e.Code != "NOT_FOUND" {
		t.Errorf("code = %q", e.Code)
	}
}
