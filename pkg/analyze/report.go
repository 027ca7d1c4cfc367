package analyze

import (
	"context"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/depmap/pkg/deps"
	"github.com/matzehuels/depmap/pkg/errors"
	"github.com/matzehuels/depmap/pkg/graph"
)

// MaxReportedCycles bounds the cycles listed in a Report.
const MaxReportedCycles = 10

// Summary holds graph-wide figures.
type Summary struct {
	Packages   int     `json:"packages"`
	Edges      int     `json:"edges"`
	Density    float64 `json:"density"`
	Acyclic    bool    `json:"acyclic"`
	Components int     `json:"components"`
}

// RepositorySummary is the short form of a RepositoryAnalysis.
type RepositorySummary struct {
	PackageCount  int            `json:"package_count"`
	AvgDeps       float64        `json:"avg_deps"`
	CrossRepoDeps map[string]int `json:"cross_repo_deps"`
}

// Report is a whole-graph overview.
type Report struct {
	Summary          Summary                      `json:"summary"`
	Repositories     map[string]RepositorySummary `json:"repositories"`
	CorePackages     []string                     `json:"core_packages"`
	MostDepended     []graph.DegreeEntry          `json:"most_depended"`
	MostDependencies []graph.DegreeEntry          `json:"most_dependencies"`
	CycleCount       int                          `json:"cycle_count"`
	Cycles           []graph.Cycle                `json:"cycles"`
}

// Report builds an overview of the graph with ranked lists of length top.
// Unlike AnalyzeRepository it ranks MostDependencies by direct
// dependency count, which keeps it linear in the graph size.
func (a *Analyzer) Report(ctx context.Context, top int) (*Report, error) {
	if top <= 0 {
		top = DefaultTop
	}
	cycles, err := a.g.DetectCycles(ctx, a.kinds)
	if err != nil {
		return nil, err
	}

	r := &Report{
		Summary: Summary{
			Packages:   a.g.NodeCount(),
			Edges:      a.edgeCount(),
			Density:    a.g.Density(a.kinds),
			Acyclic:    len(cycles) == 0,
			Components: a.g.Components(a.kinds),
		},
		MostDepended:     a.g.MostDepended(top, a.kinds),
		MostDependencies: a.mostDependencies(top),
		CycleCount:       len(cycles),
		Cycles:           cycles[:min(MaxReportedCycles, len(cycles))],
	}

	for _, e := range a.g.MostDepended(a.g.NodeCount(), a.kinds) {
		if e.Degree <= CoreThreshold || len(r.CorePackages) == top {
			break
		}
		r.CorePackages = append(r.CorePackages, e.Name)
	}

	summaries, err := a.repositorySummaries(ctx)
	if err != nil {
		return nil, err
	}
	r.Repositories = summaries
	return r, nil
}

// repositorySummaries summarizes every repository in parallel. The graph
// and repoOf are only read, so workers share them without locking.
func (a *Analyzer) repositorySummaries(ctx context.Context) (map[string]RepositorySummary, error) {
	repos := deps.Repositories(a.g.Packages())
	repoOf := a.repositories()
	results := make([]RepositorySummary, len(repos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, repo := range repos {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return errors.Canceled(err)
			}
			results[i] = a.repositorySummary(repo, repoOf)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]RepositorySummary, len(repos))
	for i, repo := range repos {
		out[repo] = results[i]
	}
	return out, nil
}

func (a *Analyzer) edgeCount() int {
	n := 0
	for _, e := range a.g.Edges() {
		if a.kinds.Has(e.Kind) {
			n++
		}
	}
	return n
}

func (a *Analyzer) mostDependencies(top int) []graph.DegreeEntry {
	names := a.g.Names()
	entries := make([]graph.DegreeEntry, len(names))
	for i, n := range names {
		entries[i] = graph.DegreeEntry{Name: n, Degree: a.g.OutDegree(n, a.kinds)}
	}
	return topN(entries, top)
}

func (a *Analyzer) repositorySummary(repo string, repoOf map[string]string) RepositorySummary {
	s := RepositorySummary{CrossRepoDeps: map[string]int{}}
	total := 0
	for _, name := range a.g.Names() {
		if repoOf[name] != repo {
			continue
		}
		s.PackageCount++
		total += a.countDeps(name, repo, repoOf, s.CrossRepoDeps)
	}
	if s.PackageCount > 0 {
		s.AvgDeps = round2(float64(total) / float64(s.PackageCount))
	}
	return s
}

// IsCore reports whether name is in the report's core package list.
func (r *Report) IsCore(name string) bool {
	return slices.Contains(r.CorePackages, name)
}
