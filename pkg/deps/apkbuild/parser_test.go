package apkbuild

import (
	stderrors "errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/matzehuels/depmap/pkg/deps"
	"github.com/matzehuels/depmap/pkg/errors"
)

func parseOne(t *testing.T, text string) deps.Package {
	t.Helper()
	pkgs, err := Parse(text, Context{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(pkgs) == 0 {
		t.Fatal("Parse() returned no packages")
	}
	return pkgs[0]
}

func byName(pkgs []deps.Package, name string) *deps.Package {
	for i := range pkgs {
		if pkgs[i].Name == name {
			return &pkgs[i]
		}
	}
	return nil
}

func TestParseBasic(t *testing.T) {
	text := `pkgname=foo
pkgver=1.2.3
pkgrel=2
depends="bar baz>=1.0"
makedepends="
	gcc
	make
	"
checkdepends='check'
provides="libfoo=$pkgver"
`
	p := parseOne(t, text)

	if p.Name != "foo" || p.Version != "1.2.3" || p.Release != 2 {
		t.Errorf("identity = %q %q %d", p.Name, p.Version, p.Release)
	}
	if got := p.Deps(deps.KindRuntime); !slices.Equal(got, []string{"bar", "baz>=1.0"}) {
		t.Errorf("runtime = %v", got)
	}
	if got := p.Deps(deps.KindBuild); !slices.Equal(got, []string{"gcc", "make"}) {
		t.Errorf("build = %v", got)
	}
	if got := p.Deps(deps.KindCheck); !slices.Equal(got, []string{"check"}) {
		t.Errorf("check = %v", got)
	}
	if !slices.Equal(p.Provides, []string{"libfoo=1.2.3"}) {
		t.Errorf("provides = %v", p.Provides)
	}
}

func TestParseExpansion(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string // runtime dependencies
	}{
		{
			name: "unresolved variable expands to empty",
			text: "pkgname=a\ndepends=\"$undefined bar\"\n",
			want: []string{"bar"},
		},
		{
			name: "self reference sees previous value",
			text: "pkgname=a\ndepends=\"x\"\ndepends=\"$depends y\"\n",
			want: []string{"x", "y"},
		},
		{
			name: "braced reference",
			text: "pkgname=a\n_so=z\ndepends=\"lib${_so}-dev\"\n",
			want: []string{"libz-dev"},
		},
		{
			name: "forward reference is unset at use",
			text: "pkgname=a\ndepends=\"$_later q\"\n_later=p\n",
			want: []string{"q"},
		},
		{
			name: "single quotes are literal",
			text: "pkgname=a\ndepends='$x'\n",
			want: []string{"$x"},
		},
		{
			name: "conditional branch applies",
			text: "pkgname=a\ndepends=\"x\"\nif [ \"$CARCH\" = x86_64 ]; then\n\tdepends=\"$depends y\"\nfi\n",
			want: []string{"x", "y"},
		},
		{
			name: "and-list assignment applies",
			text: "pkgname=a\n[ -n \"$x\" ] && depends=z\n",
			want: []string{"z"},
		},
		{
			name: "prefix assignment does not persist",
			text: "pkgname=a\ndepends=x\ndepends=y make\n",
			want: []string{"x"},
		},
		{
			name: "command substitution expands to nothing",
			text: "pkgname=a\ndepends=\"$(echo nope) `echo nope` ok\"\n",
			want: []string{"ok"},
		},
		{
			name: "backslash continuation",
			text: "pkgname=a\ndepends=\"x \\\n\ty\"\n",
			want: []string{"x", "y"},
		},
		{
			name: "export prefix",
			text: "pkgname=a\nexport depends=x\n",
			want: []string{"x"},
		},
		{
			name: "conflicts are not dependencies",
			text: "pkgname=a\ndepends=\"x !y\"\n",
			want: []string{"x"},
		},
		{
			name: "case pattern",
			text: "pkgname=a\ncase \"$CARCH\" in\nx86_64|aarch64) depends=v ;;\nesac\n",
			want: []string{"v"},
		},
		{
			name: "trailing comment",
			text: "pkgname=a\ndepends=\"x\" # not y\n",
			want: []string{"x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := parseOne(t, tt.text)
			if got := p.Deps(deps.KindRuntime); !slices.Equal(got, tt.want) {
				t.Errorf("runtime = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseCyclicReferenceTerminates(t *testing.T) {
	text := "pkgname=a\n_x=\"$_y\"\n_y=\"$_x tail\"\n_x=\"$_y\"\ndepends=\"$_x\"\n"
	p := parseOne(t, text)
	if got := p.Deps(deps.KindRuntime); !slices.Equal(got, []string{"tail"}) {
		t.Errorf("runtime = %v, want [tail]", got)
	}
}

func TestParseSubpackages(t *testing.T) {
	text := `pkgname=foo
pkgver=1.0
pkgrel=0
depends="bar"
makedepends="cc"
provides="cmd:foo"
subpackages="${pkgname}-dev $pkgname-libs:libs:noarch $pkgname foo-doc"

libs() {
	depends=""
	provides="so:libfoo.so.1"
}
`
	pkgs, err := Parse(text, Context{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	names := make([]string, len(pkgs))
	for i, p := range pkgs {
		names[i] = p.Name
	}
	if want := []string{"foo", "foo-dev", "foo-libs", "foo-doc"}; !slices.Equal(names, want) {
		t.Fatalf("names = %v, want %v", names, want)
	}

	primary := pkgs[0]
	if !slices.Equal(primary.Subpackages, []string{"foo-dev", "foo-libs", "foo-doc"}) {
		t.Errorf("Subpackages = %v", primary.Subpackages)
	}

	dev := byName(pkgs, "foo-dev")
	if dev.Origin != "foo" || !dev.IsSubpackage() {
		t.Errorf("foo-dev origin = %q", dev.Origin)
	}
	if got := dev.Deps(deps.KindRuntime); !slices.Equal(got, []string{"bar"}) {
		t.Errorf("foo-dev inherits runtime = %v, want [bar]", got)
	}
	if got := dev.Deps(deps.KindBuild); !slices.Equal(got, []string{"cc"}) {
		t.Errorf("foo-dev inherits build = %v, want [cc]", got)
	}
	if len(dev.Provides) != 0 {
		t.Errorf("foo-dev provides = %v, want none", dev.Provides)
	}

	libs := byName(pkgs, "foo-libs")
	if got := libs.Deps(deps.KindRuntime); len(got) != 0 {
		t.Errorf("foo-libs runtime = %v, want overridden to none", got)
	}
	if !slices.Equal(libs.Provides, []string{"so:libfoo.so.1"}) {
		t.Errorf("foo-libs provides = %v", libs.Provides)
	}
	if libs.Arch != "noarch" {
		t.Errorf("foo-libs arch = %q", libs.Arch)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		code errors.Code
		line int
		col  int
	}{
		{"unterminated double quote", "pkgname=foo\ndepends=\"bar\n", errors.ErrCodeSyntax, 2, 9},
		{"unterminated single quote", "pkgname='foo\n", errors.ErrCodeSyntax, 1, 9},
		{"unterminated parameter", "pkgname=${foo\n", errors.ErrCodeSyntax, 1, 9},
		{"unterminated command substitution", "pkgname=foo\n_x=$(echo\n", errors.ErrCodeSyntax, 2, 4},
		{"unterminated function", "pkgname=foo\nbuild() {\n\tmake\n", errors.ErrCodeSyntax, 2, 6},
		{"invalid identifier", "pkgname=foo\npkg-ver=1\n", errors.ErrCodeSyntax, 2, 1},
		{"missing name", "pkgver=1\n", errors.ErrCodeMissingName, 0, 0},
		{"empty name", "pkgname=\"$nothing\"\n", errors.ErrCodeMissingName, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text, Context{Path: "main/foo/APKBUILD"})
			if err == nil {
				t.Fatal("Parse() error = nil")
			}
			var pe *ParseError
			if !stderrors.As(err, &pe) {
				t.Fatalf("error %T is not *ParseError", err)
			}
			if pe.Code != tt.code {
				t.Errorf("Code = %v, want %v", pe.Code, tt.code)
			}
			if !errors.Is(err, tt.code) {
				t.Errorf("errors.Is(err, %v) = false", tt.code)
			}
			if pe.Line != tt.line || pe.Column != tt.col {
				t.Errorf("position = %d:%d, want %d:%d", pe.Line, pe.Column, tt.line, tt.col)
			}
			if pe.Path != "main/foo/APKBUILD" {
				t.Errorf("Path = %q", pe.Path)
			}
		})
	}
}

func TestParseFileCurl(t *testing.T) {
	pkgs, err := ParseFile(filepath.Join("testdata", "curl.APKBUILD"), "main")
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}

	curl := byName(pkgs, "curl")
	if curl == nil {
		t.Fatal("curl not parsed")
	}
	if curl.Repository != "main" || curl.FullVersion() != "8.5.0-r1" {
		t.Errorf("curl repo/version = %q %q", curl.Repository, curl.FullVersion())
	}
	if curl.Maintainer != "Ariadne Conill <ariadne@dereferenced.org>" {
		t.Errorf("Maintainer = %q", curl.Maintainer)
	}
	if len(curl.Contributors) != 2 {
		t.Errorf("Contributors = %v", curl.Contributors)
	}
	if got := curl.Deps(deps.KindRuntime); !slices.Equal(got, []string{"ca-certificates"}) {
		t.Errorf("runtime = %v", got)
	}
	wantBuild := []string{
		"autoconf", "automake", "groff", "libtool", "perl",
		"openssl-dev>3", "nghttp2-dev", "zlib-dev", "brotli-dev",
	}
	if got := curl.Deps(deps.KindBuild); !slices.Equal(got, wantBuild) {
		t.Errorf("build = %v, want %v", got, wantBuild)
	}
	if got := curl.Deps(deps.KindCheck); !slices.Equal(got, []string{"nghttp2", "python3"}) {
		t.Errorf("check = %v", got)
	}

	if len(pkgs) != 6 {
		t.Fatalf("got %d packages, want 6", len(pkgs))
	}

	dev := byName(pkgs, "curl-dev")
	wantDev := []string{"openssl-dev>3", "nghttp2-dev", "zlib-dev", "brotli-dev", "libcurl=8.5.0-r1"}
	if got := dev.Deps(deps.KindRuntime); !slices.Equal(got, wantDev) {
		t.Errorf("curl-dev runtime = %v, want %v", got, wantDev)
	}

	lib := byName(pkgs, "libcurl")
	if lib.Origin != "curl" {
		t.Errorf("libcurl origin = %q", lib.Origin)
	}
	if got := lib.Deps(deps.KindRuntime); len(got) != 0 {
		t.Errorf("libcurl runtime = %v", got)
	}
	if !slices.Equal(lib.Provides, []string{"so:libcurl.so.4=4.8.0"}) {
		t.Errorf("libcurl provides = %v", lib.Provides)
	}
	if lib.Description != "The multiprotocol file transfer library" {
		t.Errorf("libcurl pkgdesc = %q", lib.Description)
	}

	doc := byName(pkgs, "curl-doc")
	if got := doc.Deps(deps.KindRuntime); !slices.Equal(got, []string{"ca-certificates"}) {
		t.Errorf("curl-doc runtime = %v", got)
	}
}

func TestParseFilePython(t *testing.T) {
	pkgs, err := ParseFile(filepath.Join("testdata", "py3-foo.APKBUILD"), "community")
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if len(pkgs) != 2 {
		t.Fatalf("got %d packages, want 2", len(pkgs))
	}

	p := pkgs[0]
	if p.Version != "2.0.1_rc3" || p.Release != 2 {
		t.Errorf("version = %q r%d", p.Version, p.Release)
	}
	if p.URL != "https://pypi.org/project/foo" {
		t.Errorf("url = %q", p.URL)
	}
	if p.Description != "Foo for $python" {
		t.Errorf("pkgdesc = %q", p.Description)
	}
	if got := p.Deps(deps.KindRuntime); !slices.Equal(got, []string{"python3", "py3-bar", "py3-fast"}) {
		t.Errorf("runtime = %v", got)
	}
	if !slices.Equal(p.Conflicts, []string{"py3-foo-legacy"}) {
		t.Errorf("conflicts = %v", p.Conflicts)
	}
	if got := p.Deps(deps.KindBuild); !slices.Equal(got, []string{"py3-setuptools", "py3-wheel"}) {
		t.Errorf("build = %v", got)
	}

	pyc := pkgs[1]
	if pyc.Name != "py3-foo-pyc" || pyc.Arch != "noarch" {
		t.Errorf("pyc = %q arch %q", pyc.Name, pyc.Arch)
	}
	if got := pyc.Deps(deps.KindRuntime); !slices.Equal(got, []string{"py3-foo=2.0.1_rc3-r2"}) {
		t.Errorf("pyc runtime = %v", got)
	}
}

func TestParseVars(t *testing.T) {
	text := "pkgname=a\ncase \"$CARCH\" in\n\tx86_64) depends=amd64-only ;;\nesac\n"
	pkgs, err := Parse(text, Context{Vars: map[string]string{"CARCH": "x86_64"}})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := pkgs[0].Deps(deps.KindRuntime); !slices.Equal(got, []string{"amd64-only"}) {
		t.Errorf("runtime = %v", got)
	}
}

func TestParseHeredocInFunction(t *testing.T) {
	text := "pkgname=a\npackage() {\n\tcat <<-EOF\n\tit's \"odd\n\tEOF\n}\ndepends=after\n"
	p := parseOne(t, text)
	if got := p.Deps(deps.KindRuntime); !slices.Equal(got, []string{"after"}) {
		t.Errorf("runtime = %v", got)
	}
}

func TestRepositoryFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"aports/main/zlib/APKBUILD", "main"},
		{"/src/aports/community/py3-foo/APKBUILD", "community"},
		{"zlib/APKBUILD", ""},
		{"APKBUILD", ""},
		{"main/zlib/notes.txt", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := RepositoryFromPath(tt.path); got != tt.want {
				t.Errorf("RepositoryFromPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestParseIsPure(t *testing.T) {
	text := "pkgname=a\ndepends=\"$depends x\"\n"
	for i := 0; i < 3; i++ {
		p := parseOne(t, text)
		if got := p.Deps(deps.KindRuntime); !slices.Equal(got, []string{"x"}) {
			t.Fatalf("run %d: runtime = %v", i, got)
		}
	}
}
