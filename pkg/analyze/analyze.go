package analyze

import (
	"cmp"
	"context"
	"maps"
	"math"
	"slices"

	"github.com/matzehuels/depmap/pkg/deps"
	"github.com/matzehuels/depmap/pkg/errors"
	"github.com/matzehuels/depmap/pkg/graph"
)

const (
	// CoreThreshold is the number of direct dependents above which a
	// package counts as core.
	CoreThreshold = 50

	// BaseThreshold is the number of direct dependents above which a
	// package counts as part of the base system.
	BaseThreshold = 20

	// DefaultTop is the length of ranked lists in reports.
	DefaultTop = 20
)

// Analyzer computes reports over a graph restricted to a set of edge kinds.
type Analyzer struct {
	g     *graph.Graph
	kinds deps.KindSet
}

// New returns an Analyzer over g. A zero kinds set means all kinds.
func New(g *graph.Graph, kinds deps.KindSet) *Analyzer {
	if kinds == 0 {
		kinds = deps.AllKinds
	}
	return &Analyzer{g: g, kinds: kinds}
}

// Graph returns the analyzed graph.
func (a *Analyzer) Graph() *graph.Graph { return a.g }

// PackageAnalysis describes one package's place in the graph.
type PackageAnalysis struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Repository  string `json:"repository,omitempty"`
	Origin      string `json:"origin,omitempty"`
	DirectDeps  int    `json:"direct_deps"`
	TotalDeps   int    `json:"total_deps"`
	RuntimeDeps int    `json:"runtime_deps"`
	BuildDeps   int    `json:"build_deps"`
	CheckDeps   int    `json:"check_deps"`
	DirectRdeps int    `json:"direct_rdeps"`
	TotalRdeps  int    `json:"total_rdeps"`
	Depth       int    `json:"depth"` // longest shortest path to a dependency
	Root        bool   `json:"root"`  // nothing depends on it
	Leaf        bool   `json:"leaf"`  // depends on nothing
	Core        bool   `json:"core"`
}

// AnalyzePackage reports on a single package. Per-kind counts are taken
// over direct dependencies regardless of the analyzer's kind filter.
func (a *Analyzer) AnalyzePackage(ctx context.Context, name string) (*PackageAnalysis, error) {
	p, err := a.g.Package(name)
	if err != nil {
		return nil, err
	}
	fwd, err := a.g.RecursiveDependencies(ctx, name, a.kinds, graph.Unlimited)
	if err != nil {
		return nil, err
	}
	rev, err := a.g.RecursiveReverseDependencies(ctx, name, a.kinds, graph.Unlimited)
	if err != nil {
		return nil, err
	}

	pa := &PackageAnalysis{
		Name:        p.Name,
		Version:     p.FullVersion(),
		Repository:  p.Repository,
		Origin:      p.Origin,
		DirectDeps:  a.g.OutDegree(name, a.kinds),
		TotalDeps:   len(fwd.Nodes) - 1,
		RuntimeDeps: a.g.OutDegree(name, deps.NewKindSet(deps.KindRuntime)),
		BuildDeps:   a.g.OutDegree(name, deps.NewKindSet(deps.KindBuild)),
		CheckDeps:   a.g.OutDegree(name, deps.NewKindSet(deps.KindCheck)),
		DirectRdeps: a.g.InDegree(name, a.kinds),
		TotalRdeps:  len(rev.Nodes) - 1,
		Depth:       fwd.Depth(),
	}
	pa.Root = pa.DirectRdeps == 0
	pa.Leaf = pa.DirectDeps == 0
	pa.Core = pa.DirectRdeps > CoreThreshold
	return pa, nil
}

// RepositoryAnalysis summarizes the packages of one repository.
type RepositoryAnalysis struct {
	Name             string              `json:"name"`
	PackageCount     int                 `json:"package_count"`
	TotalDeps        int                 `json:"total_deps"`
	AvgDeps          float64             `json:"avg_deps"`
	MostDepended     []graph.DegreeEntry `json:"most_depended"`
	MostDependencies []graph.DegreeEntry `json:"most_dependencies"`
	CrossRepoDeps    map[string]int      `json:"cross_repo_deps"` // edges into each other repository
}

// AnalyzeRepository reports on every package whose repository is repo.
// MostDependencies ranks packages by recursive dependency count, which
// walks the graph once per package; ctx bounds the work.
func (a *Analyzer) AnalyzeRepository(ctx context.Context, repo string, top int) (*RepositoryAnalysis, error) {
	if top <= 0 {
		top = DefaultTop
	}
	ra := &RepositoryAnalysis{Name: repo, CrossRepoDeps: map[string]int{}}
	repoOf := a.repositories()

	var depended, recursive []graph.DegreeEntry
	for _, name := range a.g.Names() {
		if repoOf[name] != repo {
			continue
		}
		ra.PackageCount++
		ra.TotalDeps += a.countDeps(name, repo, repoOf, ra.CrossRepoDeps)

		depended = append(depended, graph.DegreeEntry{Name: name, Degree: a.g.InDegree(name, a.kinds)})
		t, err := a.g.RecursiveDependencies(ctx, name, a.kinds, graph.Unlimited)
		if err != nil {
			return nil, err
		}
		recursive = append(recursive, graph.DegreeEntry{Name: name, Degree: len(t.Nodes) - 1})
	}
	if ra.PackageCount == 0 {
		return nil, errors.New(errors.ErrCodeNotFound, "repository %q has no packages", repo)
	}
	ra.AvgDeps = round2(float64(ra.TotalDeps) / float64(ra.PackageCount))
	ra.MostDepended = topN(depended, top)
	ra.MostDependencies = topN(recursive, top)
	return ra, nil
}

// CommonDependencies returns the recursive dependencies shared by every
// named package, sorted. The named packages themselves are excluded.
func (a *Analyzer) CommonDependencies(ctx context.Context, names ...string) ([]string, error) {
	if len(names) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no packages given")
	}
	var common map[string]struct{}
	for _, name := range names {
		set, err := a.closure(ctx, name)
		if err != nil {
			return nil, err
		}
		if common == nil {
			common = set
			continue
		}
		for k := range common {
			if _, ok := set[k]; !ok {
				delete(common, k)
			}
		}
	}
	for _, name := range names {
		delete(common, name)
	}
	return slices.Sorted(maps.Keys(common)), nil
}

// UniqueDependencies returns the recursive dependencies of name that none
// of others pulls in, sorted.
func (a *Analyzer) UniqueDependencies(ctx context.Context, name string, others ...string) ([]string, error) {
	own, err := a.closure(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, o := range others {
		set, err := a.closure(ctx, o)
		if err != nil {
			return nil, err
		}
		for k := range set {
			delete(own, k)
		}
		delete(own, o)
	}
	return slices.Sorted(maps.Keys(own)), nil
}

// Footprint is the set of packages an install of one package brings in.
type Footprint struct {
	Package      string         `json:"package"`
	PackageCount int            `json:"package_count"` // including the package itself
	ByRepository map[string]int `json:"by_repository"`
}

// InstallFootprint follows runtime dependencies only, whatever the
// analyzer's kind filter, since build and check dependencies are not
// installed alongside a package.
func (a *Analyzer) InstallFootprint(ctx context.Context, name string) (*Footprint, error) {
	t, err := a.g.RecursiveDependencies(ctx, name, deps.NewKindSet(deps.KindRuntime), graph.Unlimited)
	if err != nil {
		return nil, err
	}
	repoOf := a.repositories()
	f := &Footprint{Package: name, PackageCount: len(t.Nodes), ByRepository: map[string]int{}}
	for _, n := range t.Nodes {
		r := repoOf[n.Name]
		if r == "" {
			r = "unknown"
		}
		f.ByRepository[r]++
	}
	return f, nil
}

// BasePackages returns the packages with more than BaseThreshold direct
// dependents, most depended first.
func (a *Analyzer) BasePackages() []string {
	var out []string
	for _, e := range a.g.MostDepended(a.g.NodeCount(), a.kinds) {
		if e.Degree <= BaseThreshold {
			break
		}
		out = append(out, e.Name)
	}
	return out
}

// countDeps returns the number of distinct direct dependencies of name and
// tallies those living outside repo into cross.
func (a *Analyzer) countDeps(name, repo string, repoOf map[string]string, cross map[string]int) int {
	direct, _ := a.g.Dependencies(name, a.kinds)
	seen := make(map[string]struct{}, len(direct))
	for _, d := range direct {
		if _, ok := seen[d.Name]; ok {
			continue
		}
		seen[d.Name] = struct{}{}
		if r := repoOf[d.Name]; r != repo && r != "" {
			cross[r]++
		}
	}
	return len(seen)
}

func (a *Analyzer) closure(ctx context.Context, name string) (map[string]struct{}, error) {
	t, err := a.g.RecursiveDependencies(ctx, name, a.kinds, graph.Unlimited)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(t.Nodes))
	for _, n := range t.Names() {
		set[n] = struct{}{}
	}
	return set, nil
}

func (a *Analyzer) repositories() map[string]string {
	out := make(map[string]string, a.g.NodeCount())
	for _, p := range a.g.Packages() {
		out[p.Name] = p.Repository
	}
	return out
}

func topN(entries []graph.DegreeEntry, n int) []graph.DegreeEntry {
	slices.SortStableFunc(entries, func(a, b graph.DegreeEntry) int {
		return cmp.Compare(b.Degree, a.Degree)
	})
	return entries[:min(n, len(entries))]
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
