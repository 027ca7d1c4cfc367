package apkbuild

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/matzehuels/depmap/pkg/deps"
	"github.com/matzehuels/depmap/pkg/errors"
)

// Filename is the conventional descriptor name inside a package directory.
const Filename = "APKBUILD"

// Context carries what the parser cannot learn from the text itself.
type Context struct {
	Path       string            // file path, used in errors and records
	Repository string            // repository tag; derived from Path when empty
	Vars       map[string]string // predefined variables such as CARCH
}

// Dependency variables and the kind each one feeds.
var depVars = []struct {
	name string
	kind deps.Kind
}{
	{"depends", deps.KindRuntime},
	{"makedepends", deps.KindBuild},
	{"makedepends_build", deps.KindBuild},
	{"makedepends_host", deps.KindBuild},
	{"checkdepends", deps.KindCheck},
}

// Parse extracts the primary package and every declared sub-package from
// descriptor text. The primary package is always first.
//
// Variables are expanded in assignment order against a symbol table local
// to this call; function bodies are not evaluated except for the split
// functions of sub-packages.
func Parse(text string, ctx Context) ([]deps.Package, error) {
	pkgs, err := parse(text, ctx)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Path = ctx.Path
		}
		return nil, err
	}
	return pkgs, nil
}

// ParseFile reads and parses a descriptor from disk.
func ParseFile(path, repository string) ([]deps.Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(string(data), Context{Path: path, Repository: repository})
}

func parse(text string, ctx Context) ([]deps.Package, error) {
	sc, err := parseScript(text)
	if err != nil {
		return nil, err
	}

	scope := NewScope(ctx.Vars)
	if err := sc.run(scope, sc.commands, true); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(scope.Get("pkgname"))
	if name == "" {
		return nil, &ParseError{Code: errors.ErrCodeMissingName, Msg: "pkgname is empty or missing"}
	}

	repo := ctx.Repository
	if repo == "" {
		repo = RepositoryFromPath(ctx.Path)
	}

	maintainer, contributors := headerComments(sc.lex.comments)
	if m := strings.TrimSpace(scope.Get("maintainer")); m != "" {
		maintainer = m
	}

	primary := deps.Package{
		Name:         name,
		Version:      strings.TrimSpace(scope.Get("pkgver")),
		Release:      release(scope.Get("pkgrel")),
		Repository:   repo,
		Description:  strings.TrimSpace(scope.Get("pkgdesc")),
		URL:          strings.TrimSpace(scope.Get("url")),
		License:      strings.TrimSpace(scope.Get("license")),
		Arch:         strings.TrimSpace(scope.Get("arch")),
		Maintainer:   maintainer,
		Contributors: contributors,
		Provides:     fields(scope.Get("provides")),
		Replaces:     fields(scope.Get("replaces")),
		Path:         ctx.Path,
	}
	fillDependencies(&primary, scope)

	subs := subpackageEntries(scope.Get("subpackages"), name)
	out := make([]deps.Package, 0, 1+len(subs))
	for _, s := range subs {
		primary.Subpackages = append(primary.Subpackages, s.name)
	}
	out = append(out, primary)

	for _, s := range subs {
		sub, err := sc.splitPackage(scope, &primary, s)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

// run applies the assignments of cmds to scope. A command only assigns when
// every word is an assignment; "FOO=bar make" sets FOO for make alone.
func (sc *script) run(scope *Scope, cmds []command, strict bool) error {
	for _, c := range cmds {
		assigns := make([]assignment, 0, len(c.words))
		ok := true
		for i, w := range c.words {
			a, kind := w.assignment()
			switch kind {
			case validAssignment:
				assigns = append(assigns, a)
			case invalidIdentifier:
				if i == 0 && strict {
					return sc.lex.errorf(w.pos, "invalid identifier %q", a.name)
				}
				ok = false
			default:
				ok = false
			}
			if !ok {
				break
			}
		}
		if !ok {
			continue
		}
		for _, a := range assigns {
			scope.Set(a.name, scope.expandWord(a.value))
		}
	}
	return nil
}

type assignmentKind uint8

const (
	notAssignment assignmentKind = iota
	validAssignment
	invalidIdentifier
)

type assignment struct {
	name  string
	value *word
}

// assignment splits "NAME=value" words. A word whose left-hand side looks
// like an attempted variable name but is not an identifier ("pkg-ver=1")
// is reported as invalid.
func (w *word) assignment() (assignment, assignmentKind) {
	if len(w.parts) == 0 || w.parts[0].kind != partLiteral || w.parts[0].quoted {
		return assignment{}, notAssignment
	}
	text := w.parts[0].text
	eq := strings.IndexByte(text, '=')
	if eq <= 0 {
		return assignment{}, notAssignment
	}
	name := text[:eq]
	if !isIdentifier(name) {
		if looksLikeName(name) {
			return assignment{name: name}, invalidIdentifier
		}
		return assignment{}, notAssignment
	}
	value := &word{pos: w.pos + eq + 1}
	if rest := text[eq+1:]; rest != "" {
		value.parts = append(value.parts, part{kind: partLiteral, text: rest})
	}
	value.parts = append(value.parts, w.parts[1:]...)
	return assignment{name: name, value: value}, validAssignment
}

func isIdentifier(s string) bool {
	if s == "" || !isNameStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isNameChar(s[i]) {
			return false
		}
	}
	return true
}

func looksLikeName(s string) bool {
	if s == "" || !isNameChar(s[0]) {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isNameChar(c) && c != '-' && c != '.' {
			return false
		}
	}
	return true
}

// fields splits a list variable, dropping empty entries.
func fields(s string) []string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return nil
	}
	return f
}

// fillDependencies reads every dependency variable from scope into p.
// Conflict tokens ("!name") go to p.Conflicts.
func fillDependencies(p *deps.Package, scope *Scope) {
	p.Dependencies = nil
	p.Conflicts = nil
	for _, dv := range depVars {
		for _, tok := range fields(scope.Get(dv.name)) {
			if deps.IsConflict(tok) {
				if name := strings.TrimPrefix(tok, "!"); name != "" {
					p.Conflicts = append(p.Conflicts, name)
				}
				continue
			}
			p.AddDeps(dv.kind, tok)
		}
	}
}

// release parses pkgrel, which may already have been computed by $((...)).
func release(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// headerComments extracts "# Maintainer:" and "# Contributor:" lines.
func headerComments(comments []comment) (maintainer string, contributors []string) {
	for _, c := range comments {
		text := strings.TrimSpace(c.text)
		key, val, ok := strings.Cut(text, ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		if val == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "maintainer":
			if maintainer == "" {
				maintainer = val
			}
		case "contributor":
			contributors = append(contributors, val)
		}
	}
	return maintainer, contributors
}

// RepositoryFromPath derives the repository from <repo>/<pkg>/APKBUILD.
func RepositoryFromPath(path string) string {
	if path == "" {
		return ""
	}
	if filepath.Base(path) != Filename {
		return ""
	}
	repo := filepath.Base(filepath.Dir(filepath.Dir(path)))
	if repo == "." || repo == string(filepath.Separator) {
		return ""
	}
	return repo
}
