package cache

import (
	"slices"
	"strings"
)

// Key prefixes.
const (
	PrefixScan     = "scan"
	PrefixResponse = "resp"
)

// ScanKeyOpts identifies one scan of an aports tree.
type ScanKeyOpts struct {
	Root         string   // absolute tree root
	Repositories []string // selected repositories; order does not matter
	Fingerprint  string   // digest of descriptor paths, sizes and mtimes
	Version      string   // parser build, so upgrades invalidate old entries
}

// Keyer derives cache keys.
type Keyer interface {
	// ScanKey names the package set produced by a scan.
	ScanKey(opts ScanKeyOpts) string
	// ResponseKey names a rendered HTTP response for a graph generation.
	ResponseKey(generation, route, query string) string
}

// DefaultKeyer hashes key components into fixed-length keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ScanKey implements Keyer.
func (DefaultKeyer) ScanKey(opts ScanKeyOpts) string {
	repos := slices.Clone(opts.Repositories)
	slices.Sort(repos)
	return hashKey(PrefixScan, opts.Root, repos, opts.Fingerprint, opts.Version)
}

// ResponseKey implements Keyer. Keys stay readable because responses are
// only ever held in memory.
func (DefaultKeyer) ResponseKey(generation, route, query string) string {
	return strings.Join([]string{PrefixResponse, generation, route, query}, ":")
}
