// Package aports scans an aports-style source tree and parses every package
// descriptor in it.
//
// The tree layout is <root>/<repository>/<package>/APKBUILD. A [Scanner]
// discovers descriptors in sorted order, parses them on a bounded worker
// pool and returns the packages in discovery order, so repeated scans of an
// unchanged tree produce identical package sets (and therefore identical
// graphs):
//
//	s, err := aports.New("/src/aports", aports.Options{Repositories: []string{"main"}})
//	res, err := s.Scan(ctx)
//	g, err := graph.Build(res.Packages)
//
// A descriptor that fails to parse is skipped and recorded in
// [Result.Errors]; it never aborts the scan. Only cancellation does.
package aports
