package deps

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Kind classifies a dependency edge by the phase that needs it.
type Kind uint8

// Dependency kinds. The zero value is not a valid kind.
const (
	KindRuntime Kind = iota + 1 // depends
	KindBuild                   // makedepends, makedepends_build, makedepends_host
	KindCheck                   // checkdepends
)

// Kinds lists every valid kind in canonical order.
var Kinds = []Kind{KindRuntime, KindBuild, KindCheck}

// String returns the lowercase kind name used in JSON, flags and URLs.
func (k Kind) String() string {
	switch k {
	case KindRuntime:
		return "runtime"
	case KindBuild:
		return "build"
	case KindCheck:
		return "check"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// MarshalText implements encoding.TextMarshaler so kinds can key JSON maps.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid dependency kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	return k >= KindRuntime && k <= KindCheck
}

// ParseKind parses a single kind name. "make" and "makedepends" are accepted
// as aliases for build, "depends" for runtime and "checkdepends" for check.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "runtime", "depends", "run":
		return KindRuntime, nil
	case "build", "make", "makedepends":
		return KindBuild, nil
	case "check", "checkdepends", "test":
		return KindCheck, nil
	}
	return 0, fmt.Errorf("unknown dependency kind %q (want runtime, build or check)", s)
}

// KindSet is a set of kinds used to filter edges during queries.
type KindSet uint8

// AllKinds selects every kind.
const AllKinds = KindSet(1<<KindRuntime | 1<<KindBuild | 1<<KindCheck)

// NewKindSet returns a set holding the given kinds. With no arguments it
// returns AllKinds.
func NewKindSet(kinds ...Kind) KindSet {
	if len(kinds) == 0 {
		return AllKinds
	}
	var s KindSet
	for _, k := range kinds {
		if k.Valid() {
			s |= 1 << k
		}
	}
	return s
}

// Has reports whether k is in the set.
func (s KindSet) Has(k Kind) bool {
	return s&(1<<k) != 0
}

// Kinds returns the members of s in canonical order.
func (s KindSet) Kinds() []Kind {
	var out []Kind
	for _, k := range Kinds {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// String returns the comma-separated member names.
func (s KindSet) String() string {
	if s == AllKinds {
		return "all"
	}
	names := make([]string, 0, 3)
	for _, k := range s.Kinds() {
		names = append(names, k.String())
	}
	return strings.Join(names, ",")
}

// ParseKinds parses a comma-separated list of kind names. An empty string or
// "all" selects every kind.
func ParseKinds(s string) (KindSet, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return AllKinds, nil
	}
	var set KindSet
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		k, err := ParseKind(part)
		if err != nil {
			return 0, err
		}
		set |= 1 << k
	}
	if set == 0 {
		return AllKinds, nil
	}
	return set, nil
}

// Package is the record extracted from one package descriptor. A descriptor
// that declares sub-packages yields one Package per sub-package in addition
// to the primary one.
type Package struct {
	Name         string            `json:"name" bson:"name"`
	Version      string            `json:"version,omitempty" bson:"version,omitempty"`
	Release      int               `json:"release,omitempty" bson:"release,omitempty"`
	Repository   string            `json:"repository,omitempty" bson:"repository,omitempty"`
	Origin       string            `json:"origin,omitempty" bson:"origin,omitempty"`
	Description  string            `json:"description,omitempty" bson:"description,omitempty"`
	URL          string            `json:"url,omitempty" bson:"url,omitempty"`
	License      string            `json:"license,omitempty" bson:"license,omitempty"`
	Arch         string            `json:"arch,omitempty" bson:"arch,omitempty"`
	Maintainer   string            `json:"maintainer,omitempty" bson:"maintainer,omitempty"`
	Contributors []string          `json:"contributors,omitempty" bson:"contributors,omitempty"`
	Provides     []string          `json:"provides,omitempty" bson:"provides,omitempty"`
	Replaces     []string          `json:"replaces,omitempty" bson:"replaces,omitempty"`
	Conflicts    []string          `json:"conflicts,omitempty" bson:"conflicts,omitempty"`
	Subpackages  []string          `json:"subpackages,omitempty" bson:"subpackages,omitempty"`
	Dependencies map[Kind][]string `json:"dependencies,omitempty" bson:"-"`
	Path         string            `json:"path,omitempty" bson:"path,omitempty"`
}

// Deps returns the raw dependency tokens of kind k.
func (p *Package) Deps(k Kind) []string {
	return p.Dependencies[k]
}

// AddDeps appends tokens to the list of kind k.
func (p *Package) AddDeps(k Kind, tokens ...string) {
	if len(tokens) == 0 {
		return
	}
	if p.Dependencies == nil {
		p.Dependencies = make(map[Kind][]string, len(Kinds))
	}
	p.Dependencies[k] = append(p.Dependencies[k], tokens...)
}

// DependencyCount returns the total number of tokens across all kinds.
func (p *Package) DependencyCount() int {
	n := 0
	for _, toks := range p.Dependencies {
		n += len(toks)
	}
	return n
}

// FullVersion returns "pkgver-rN" as used by apk, or the bare version when
// no version is known.
func (p *Package) FullVersion() string {
	if p.Version == "" {
		return ""
	}
	return fmt.Sprintf("%s-r%d", p.Version, p.Release)
}

// SplitFullVersion is the inverse of FullVersion: "1.2-r3" yields ("1.2", 3).
// A string without a valid "-rN" suffix is returned whole with release 0.
func SplitFullVersion(s string) (version string, release int) {
	i := strings.LastIndex(s, "-r")
	if i < 0 {
		return s, 0
	}
	n, err := strconv.Atoi(s[i+2:])
	if err != nil || n < 0 {
		return s, 0
	}
	return s[:i], n
}

// IsSubpackage reports whether p was split from another package.
func (p *Package) IsSubpackage() bool {
	return p.Origin != "" && p.Origin != p.Name
}

// Clone returns a deep copy of p.
func (p Package) Clone() Package {
	c := p
	c.Contributors = slices.Clone(p.Contributors)
	c.Provides = slices.Clone(p.Provides)
	c.Replaces = slices.Clone(p.Replaces)
	c.Conflicts = slices.Clone(p.Conflicts)
	c.Subpackages = slices.Clone(p.Subpackages)
	if p.Dependencies != nil {
		c.Dependencies = make(map[Kind][]string, len(p.Dependencies))
		for k, v := range p.Dependencies {
			c.Dependencies[k] = slices.Clone(v)
		}
	}
	return c
}

// Equal reports whether p and q hold the same data. Nil and empty slices are
// treated as equal so decoded records compare equal to parsed ones.
func (p *Package) Equal(q *Package) bool {
	if p.Name != q.Name || p.Version != q.Version || p.Release != q.Release ||
		p.Repository != q.Repository || p.Origin != q.Origin ||
		p.Description != q.Description || p.URL != q.URL || p.License != q.License ||
		p.Arch != q.Arch || p.Maintainer != q.Maintainer || p.Path != q.Path {
		return false
	}
	if !equalStrings(p.Contributors, q.Contributors) || !equalStrings(p.Provides, q.Provides) ||
		!equalStrings(p.Replaces, q.Replaces) || !equalStrings(p.Conflicts, q.Conflicts) ||
		!equalStrings(p.Subpackages, q.Subpackages) {
		return false
	}
	for _, k := range Kinds {
		if !equalStrings(p.Dependencies[k], q.Dependencies[k]) {
			return false
		}
	}
	return true
}

func equalStrings(a, b []string) bool {
	return len(a) == len(b) && (len(a) == 0 || slices.Equal(a, b))
}

// Repositories returns the distinct repositories of pkgs, sorted.
func Repositories(pkgs []Package) []string {
	seen := make(map[string]struct{})
	for i := range pkgs {
		if r := pkgs[i].Repository; r != "" {
			seen[r] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}
