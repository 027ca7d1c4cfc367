package apkbuild

import (
	"slices"
	"strings"

	"github.com/matzehuels/depmap/pkg/deps"
)

// subpackage is one expanded "name[:func[:arch]]" entry of subpackages=.
type subpackage struct {
	name string
	fn   string
	arch string
}

// subpackageEntries splits the expanded subpackages list. Entries that are
// empty or name the primary package are dropped.
func subpackageEntries(list, primary string) []subpackage {
	var out []subpackage
	for _, entry := range strings.Fields(list) {
		fs := strings.SplitN(entry, ":", 3)
		s := subpackage{name: fs[0]}
		if s.name == "" || s.name == primary {
			continue
		}
		if len(fs) > 1 {
			s.fn = fs[1]
		}
		if len(fs) > 2 {
			s.arch = fs[2]
		}
		if s.fn == "" {
			s.fn = defaultSplitFunc(s.name)
		}
		out = append(out, s)
	}
	return out
}

// defaultSplitFunc returns the split function abuild calls for a
// sub-package declared without one: the text after the last '-'.
func defaultSplitFunc(name string) string {
	if i := strings.LastIndexByte(name, '-'); i >= 0 && i < len(name)-1 {
		return name[i+1:]
	}
	return name
}

// splitPackage builds a sub-package record. The split function's
// assignments run in a child of the final top-level scope, so anything it
// does not assign is inherited from the primary package. Provides and
// replaces are the exception: they belong to the package declaring them.
func (sc *script) splitPackage(parent *Scope, primary *deps.Package, s subpackage) (deps.Package, error) {
	scope := parent.Child()
	scope.Set("subpkgname", s.name)
	if s.arch != "" {
		scope.Set("subpkgarch", s.arch)
	}
	if body, ok := sc.funcs[s.fn]; ok {
		if err := sc.run(scope, body, false); err != nil {
			return deps.Package{}, err
		}
	}

	sub := deps.Package{
		Name:         s.name,
		Version:      primary.Version,
		Release:      primary.Release,
		Repository:   primary.Repository,
		Origin:       primary.Name,
		Description:  strings.TrimSpace(scope.Get("pkgdesc")),
		URL:          primary.URL,
		License:      strings.TrimSpace(scope.Get("license")),
		Arch:         strings.TrimSpace(scope.Get("arch")),
		Maintainer:   primary.Maintainer,
		Contributors: slices.Clone(primary.Contributors),
		Path:         primary.Path,
	}
	if s.arch != "" {
		sub.Arch = s.arch
	}
	if scope.IsLocal("provides") {
		sub.Provides = fields(scope.Get("provides"))
	}
	if scope.IsLocal("replaces") {
		sub.Replaces = fields(scope.Get("replaces"))
	}
	fillDependencies(&sub, scope)
	return sub, nil
}
