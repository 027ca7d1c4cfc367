package aports

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/depmap/pkg/deps"
	"github.com/matzehuels/depmap/pkg/deps/apkbuild"
	"github.com/matzehuels/depmap/pkg/errors"
	"github.com/matzehuels/depmap/pkg/observability"
)

// DefaultWorkers is the parse concurrency when Options.Workers is unset.
const DefaultWorkers = 16

// Options configures a Scanner.
type Options struct {
	// Repositories restricts the scan; empty means every repository
	// directory under the root.
	Repositories []string
	// Workers bounds concurrent parses.
	Workers int
	// Vars are predefined for every descriptor (CARCH, CTARGET, ...).
	Vars map[string]string
	// Logger receives per-file warnings; nil discards them.
	Logger *log.Logger
}

// WithDefaults fills unset fields.
func (o Options) WithDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	return o
}

// Descriptor is one discovered APKBUILD.
type Descriptor struct {
	Repository string
	Package    string // directory name
	Path       string
	Size       int64
	ModTime    time.Time
}

// FileError is a descriptor that could not be parsed.
type FileError struct {
	Path       string      `json:"path"`
	Repository string      `json:"repository"`
	Code       errors.Code `json:"code"`
	Message    string      `json:"message"`
}

// Stats summarizes a scan.
type Stats struct {
	Files    int           `json:"files"`
	Parsed   int           `json:"parsed"`
	Failed   int           `json:"failed"`
	Packages int           `json:"packages"`
	Duration time.Duration `json:"duration"`
}

// Result is the output of a scan.
type Result struct {
	Root         string         `json:"root"`
	Repositories []string       `json:"repositories"`
	Fingerprint  string         `json:"fingerprint"`
	Packages     []deps.Package `json:"packages"`
	Errors       []FileError    `json:"errors,omitempty"`
	Stats        Stats          `json:"stats"`
}

// Scanner walks one aports tree.
type Scanner struct {
	root string
	opts Options
}

// New validates root and the selected repositories.
func New(root string, opts Options) (*Scanner, error) {
	if root == "" {
		return nil, errors.New(errors.ErrCodeInvalidPath, "aports root not set")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", root)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "aports root %s", root)
	}
	if !fi.IsDir() {
		return nil, errors.New(errors.ErrCodeInvalidPath, "aports root %s is not a directory", root)
	}
	for _, r := range opts.Repositories {
		if err := errors.ValidateRepository(r); err != nil {
			return nil, err
		}
	}
	return &Scanner{root: abs, opts: opts.WithDefaults()}, nil
}

// Root returns the absolute tree root.
func (s *Scanner) Root() string { return s.root }

// Repositories lists the repositories a scan will visit, sorted.
func (s *Scanner) Repositories() ([]string, error) {
	if len(s.opts.Repositories) > 0 {
		repos := slices.Clone(s.opts.Repositories)
		slices.Sort(repos)
		repos = slices.Compact(repos)
		for _, r := range repos {
			if fi, err := os.Stat(filepath.Join(s.root, r)); err != nil || !fi.IsDir() {
				return nil, errors.New(errors.ErrCodeInvalidInput, "repository %q not found under %s", r, s.root)
			}
		}
		return repos, nil
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", s.root)
	}
	var repos []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		matches, _ := filepath.Glob(filepath.Join(s.root, e.Name(), "*", apkbuild.Filename))
		if len(matches) > 0 {
			repos = append(repos, e.Name())
		}
	}
	return repos, nil
}

// Discover lists every descriptor of the selected repositories, sorted by
// repository then package directory.
func (s *Scanner) Discover(ctx context.Context) ([]Descriptor, error) {
	repos, err := s.Repositories()
	if err != nil {
		return nil, err
	}
	var out []Descriptor
	for _, repo := range repos {
		if err := ctx.Err(); err != nil {
			return nil, errors.Canceled(err)
		}
		entries, err := os.ReadDir(filepath.Join(s.root, repo))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read repository %s", repo)
		}
		for _, e := range entries {
			if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			path := filepath.Join(s.root, repo, e.Name(), apkbuild.Filename)
			fi, err := os.Stat(path)
			if err != nil || !fi.Mode().IsRegular() {
				continue
			}
			out = append(out, Descriptor{
				Repository: repo,
				Package:    e.Name(),
				Path:       path,
				Size:       fi.Size(),
				ModTime:    fi.ModTime(),
			})
		}
	}
	return out, nil
}

// Fingerprint digests descriptor paths, sizes and modification times. Any
// edit, addition or removal changes it.
func Fingerprint(descs []Descriptor) string {
	h := sha256.New()
	for _, d := range descs {
		fmt.Fprintf(h, "%s\x00%d\x00%d\n", d.Path, d.Size, d.ModTime.UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil))
}

type slot struct {
	pkgs []deps.Package
	err  error
}

// Scan discovers and parses every descriptor. Parse failures are collected
// in Result.Errors; the returned error is non-nil only for discovery
// failures and cancellation.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	start := time.Now()
	descs, err := s.Discover(ctx)
	if err != nil {
		return nil, err
	}
	return s.Parse(ctx, descs, start)
}

// Parse parses already-discovered descriptors. start is the time reported
// scans are measured from; the zero value means now.
func (s *Scanner) Parse(ctx context.Context, descs []Descriptor, start time.Time) (*Result, error) {
	if start.IsZero() {
		start = time.Now()
	}
	repos := repositoriesOf(descs)
	observability.Scan().OnScanStart(ctx, s.root, repos)

	slots := make([]slot, len(descs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, d := range descs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pkgs, err := s.parseOne(d)
			slots[i] = slot{pkgs: pkgs, err: err}
			observability.Scan().OnFileParsed(gctx, d.Repository, len(pkgs), err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		err = errors.Canceled(err)
		observability.Scan().OnScanComplete(ctx, len(descs), 0, 0, time.Since(start), err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Canceled(err)
	}

	res := &Result{
		Root:         s.root,
		Repositories: repos,
		Fingerprint:  Fingerprint(descs),
		Stats:        Stats{Files: len(descs)},
	}
	for i, sl := range slots {
		if sl.err != nil {
			fe := FileError{
				Path:       descs[i].Path,
				Repository: descs[i].Repository,
				Code:       errors.GetCode(sl.err),
				Message:    sl.err.Error(),
			}
			if fe.Code == "" {
				fe.Code = errors.ErrCodeInternal
			}
			res.Errors = append(res.Errors, fe)
			s.opts.Logger.Warn("skipping descriptor", "path", s.rel(descs[i].Path), "err", sl.err)
			continue
		}
		res.Packages = append(res.Packages, sl.pkgs...)
		res.Stats.Parsed++
	}
	res.Stats.Failed = len(res.Errors)
	res.Stats.Packages = len(res.Packages)
	res.Stats.Duration = time.Since(start)

	observability.Scan().OnScanComplete(ctx, res.Stats.Files, res.Stats.Packages, res.Stats.Failed, res.Stats.Duration, nil)
	s.opts.Logger.Debug("scan complete", "files", res.Stats.Files, "packages", res.Stats.Packages,
		"failed", res.Stats.Failed, "duration", res.Stats.Duration)
	return res, nil
}

// ScanSingle parses the descriptor of one package directory. name is either
// a bare directory name, searched in the selected repositories in order, or
// "<repository>/<package>". It returns PACKAGE_NOT_FOUND when no descriptor
// exists.
func (s *Scanner) ScanSingle(ctx context.Context, name string) ([]deps.Package, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Canceled(err)
	}
	if repo, pkg, ok := strings.Cut(name, "/"); ok {
		if err := errors.ValidatePath(name); err != nil {
			return nil, err
		}
		if err := errors.ValidateRepository(repo); err != nil {
			return nil, err
		}
		return s.single(repo, strings.TrimSuffix(pkg, "/"+apkbuild.Filename), name)
	}

	if err := errors.ValidatePackageName(name); err != nil {
		return nil, err
	}
	repos, err := s.Repositories()
	if err != nil {
		return nil, err
	}
	for _, repo := range repos {
		pkgs, err := s.single(repo, name, name)
		if errors.Is(err, errors.ErrCodePackageNotFound) {
			continue
		}
		return pkgs, err
	}
	return nil, errors.New(errors.ErrCodePackageNotFound, "no descriptor for %q under %s", name, s.root)
}

func (s *Scanner) single(repo, pkg, query string) ([]deps.Package, error) {
	if pkg == "" || strings.Contains(pkg, "/") {
		return nil, errors.New(errors.ErrCodeInvalidInput, "invalid package directory %q", query)
	}
	path := filepath.Join(s.root, repo, pkg, apkbuild.Filename)
	if fi, err := os.Stat(path); err != nil || !fi.Mode().IsRegular() {
		return nil, errors.New(errors.ErrCodePackageNotFound, "no descriptor for %q under %s", query, s.root)
	}
	return s.parseOne(Descriptor{Repository: repo, Package: pkg, Path: path})
}

func (s *Scanner) parseOne(d Descriptor) ([]deps.Package, error) {
	data, err := os.ReadFile(d.Path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", d.Path)
	}
	return apkbuild.Parse(string(data), apkbuild.Context{
		Path:       s.rel(d.Path),
		Repository: d.Repository,
		Vars:       s.opts.Vars,
	})
}

// rel shortens a path to be relative to the root, so records do not depend
// on where the tree is checked out.
func (s *Scanner) rel(path string) string {
	if r, err := filepath.Rel(s.root, path); err == nil {
		return filepath.ToSlash(r)
	}
	return path
}

func repositoriesOf(descs []Descriptor) []string {
	var repos []string
	for _, d := range descs {
		if len(repos) == 0 || repos[len(repos)-1] != d.Repository {
			repos = append(repos, d.Repository)
		}
	}
	return repos
}
