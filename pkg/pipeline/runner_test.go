package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depmap/pkg/cache"
	"github.com/matzehuels/depmap/pkg/errors"
	"github.com/matzehuels/depmap/pkg/io"
	"github.com/matzehuels/depmap/pkg/store"
)

func writeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"main/zlib/APKBUILD":   "pkgname=zlib\npkgver=1.3\npkgrel=0\nsubpackages=\"$pkgname-dev\"\n",
		"main/curl/APKBUILD":   "pkgname=curl\npkgver=8.5.0\npkgrel=0\ndepends=\"zlib\"\nmakedepends=\"zlib-dev perl\"\n",
		"main/broken/APKBUILD": "pkgname='broken\n",
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		os.MkdirAll(filepath.Dir(path), 0o755)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func quietLogger() *log.Logger {
	l := log.New(os.Stderr)
	l.SetLevel(log.FatalLevel)
	return l
}

func newRunner(t *testing.T) *Runner {
	t.Helper()
	c, err := cache.NewMemoryCache(16)
	if err != nil {
		t.Fatal(err)
	}
	return NewRunner(c, nil, quietLogger())
}

func TestExecuteScanThenCache(t *testing.T) {
	ctx := context.Background()
	root := writeTree(t)
	r := newRunner(t)
	opts := Options{Root: root, Workers: 2}

	first, err := r.Execute(ctx, opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if first.Source != SourceScan {
		t.Errorf("first Source = %s, want scan", first.Source)
	}
	if first.Stats.NodeCount != 3 || first.Stats.EdgeCount != 2 || first.Stats.Unresolved != 1 || first.Stats.Failed != 1 {
		t.Errorf("Stats = %+v", first.Stats)
	}

	second, err := r.Execute(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if second.Source != SourceCache {
		t.Errorf("second Source = %s, want cache", second.Source)
	}
	if second.Graph.EdgeCount() != first.Graph.EdgeCount() || len(second.Scan.Errors) != 1 {
		t.Errorf("cached result differs: edges=%d errors=%d", second.Graph.EdgeCount(), len(second.Scan.Errors))
	}

	refreshed, _ := r.Execute(ctx, Options{Root: root, Refresh: true})
	if refreshed.Source != SourceScan {
		t.Errorf("refresh Source = %s, want scan", refreshed.Source)
	}
}

func TestScanCacheInvalidatedByEdit(t *testing.T) {
	ctx := context.Background()
	root := writeTree(t)
	r := newRunner(t)

	if _, hit, err := r.Scan(ctx, Options{Root: root}); err != nil || hit {
		t.Fatalf("first Scan hit=%v err=%v", hit, err)
	}
	path := filepath.Join(root, "main", "curl", "APKBUILD")
	os.WriteFile(path, []byte("pkgname=curl\npkgver=8.6.0\npkgrel=0\n"), 0o644)

	res, hit, err := r.Scan(ctx, Options{Root: root})
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("edited tree served from cache")
	}
	for _, p := range res.Packages {
		if p.Name == "curl" && p.Version != "8.6.0" {
			t.Errorf("curl version = %s", p.Version)
		}
	}
}

func TestExecuteFromFile(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t)
	scanned, err := r.Execute(ctx, Options{Root: writeTree(t)})
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "pkgs.json")
	if err := io.ExportPackages(scanned.Packages, path); err != nil {
		t.Fatal(err)
	}
	res, err := r.Execute(ctx, Options{From: path})
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != SourceFile || res.Graph.EdgeCount() != scanned.Graph.EdgeCount() {
		t.Errorf("file load: source=%s edges=%d", res.Source, res.Graph.EdgeCount())
	}
}

func TestExecuteFromSnapshot(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t)
	scanned, err := r.Execute(ctx, Options{Root: writeTree(t)})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := r.Execute(ctx, Options{Snapshot: "latest"}); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("snapshot without store error = %v", err)
	}

	st, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r.Store = st
	snap := store.NewSnapshot("test", scanned.Scan.Root, scanned.Scan.Repositories, scanned.Scan.Fingerprint, scanned.Packages)
	st.Save(ctx, snap)

	res, err := r.Execute(ctx, Options{Snapshot: "test"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != SourceSnapshot || res.SnapshotID != snap.ID || res.Graph.NodeCount() != 3 {
		t.Errorf("snapshot load: %+v", res.Stats)
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		code errors.Code
	}{
		{"no source", Options{}, errors.ErrCodeInvalidInput},
		{"bad repository", Options{Root: "/x", Repositories: []string{"Main!"}}, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opts.Validate(); !errors.Is(err, tt.code) {
				t.Errorf("Validate() error = %v, want %s", err, tt.code)
			}
		})
	}

	o := Options{Root: "/x"}
	if err := o.Validate(); err != nil || o.CacheTTL != DefaultCacheTTL {
		t.Errorf("defaults: err=%v ttl=%v", err, o.CacheTTL)
	}
	if (&Options{From: "f", Root: "r"}).Source() != SourceFile {
		t.Error("From does not take precedence")
	}
}
