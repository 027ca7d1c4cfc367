package apkbuild

import "testing"

func testScope() *Scope {
	return NewScope(map[string]string{
		"pkgname": "py3-foo",
		"pkgver":  "1.2.3_rc1",
		"pkgrel":  "4",
		"empty":   "",
		"n":       "7",
	})
}

func TestScopeExpand(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"$pkgname-dev", "py3-foo-dev"},
		{"${pkgname}_x", "py3-foo_x"},
		{"$pkgver-r$pkgrel", "1.2.3_rc1-r4"},
		{"$missing", ""},
		{"a${missing}b", "ab"},
		{"${missing:-fallback}", "fallback"},
		{"${empty:-fallback}", "fallback"},
		{"${empty-fallback}", ""},
		{"${missing-fallback}", "fallback"},
		{"${pkgname:+set}", "set"},
		{"${empty:+set}", ""},
		{"${empty+set}", "set"},
		{"${pkgname#py3-}", "foo"},
		{"${pkgname#*-}", "foo"},
		{"${pkgver%.*}", "1.2"},
		{"${pkgver%%.*}", "1"},
		{"${pkgver##*.}", "3_rc1"},
		{"${pkgver%_rc*}", "1.2.3"},
		{"${pkgver/_rc/rc}", "1.2.3rc1"},
		{"${pkgver//./_}", "1_2_3_rc1"},
		{"${pkgver/#1/X}", "X.2.3_rc1"},
		{"${pkgver/%1/X}", "1.2.3_rcX"},
		{"${#pkgname}", "7"},
		{"${pkgname:4}", "foo"},
		{"${pkgname:0:3}", "py3"},
		{"$((pkgrel + 1))", "5"},
		{"$(( (n - 1) * 2 % 5 ))", "2"},
		{"$(( $pkgrel * 10 ))", "40"},
		{"$((1 / 0))", ""},
		{"cost \\$5", "cost $5"},
		{"$", "$"},
		{"plain text", "plain text"},
		{"${pkgname%\"-foo\"}", "py3"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			s := testScope()
			if got := Literal(s.Expand(tt.in)); got != tt.want {
				t.Errorf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestScopeExpandIdempotent(t *testing.T) {
	inputs := []string{
		"$pkgname-dev",
		"${pkgver%.*} ${pkgname#py3-}",
		"$missing $pkgrel",
		"so:libfoo.so.1=$pkgver",
		"cost \\$5",
		"$",
		"${pkgname%\"-foo\"}\\\\x",
	}
	s := testScope()
	for _, in := range inputs {
		once := s.Expand(in)
		if twice := s.Expand(once); twice != once {
			t.Errorf("Expand not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestScopeStoredLiteralsStayInert(t *testing.T) {
	src := `pkgname=foo
_x='$HOME'
pkgdesc="cost \$5 $_x"
_tick='a` + "`" + `b\c'
`
	sc, err := parseScript(src)
	if err != nil {
		t.Fatalf("parseScript() error = %v", err)
	}
	scope := NewScope(nil)
	if err := sc.run(scope, sc.commands, true); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if got := scope.Get("pkgdesc"); got != "cost $5 $HOME" {
		t.Fatalf("pkgdesc = %q, want %q", got, "cost $5 $HOME")
	}
	if got := scope.Get("_tick"); got != "a`b\\c" {
		t.Errorf("_tick = %q", got)
	}

	scope.Set("HOME", "/root")
	stored := scope.Expand("$pkgdesc")
	if again := scope.Expand(stored); again != stored {
		t.Errorf("re-expanding %q gave %q", stored, again)
	}
	if got := Literal(stored); got != "cost $5 $HOME" {
		t.Errorf("Literal(Expand($pkgdesc)) = %q", got)
	}
	if got := scope.Expand(`${_x#\$}`); Literal(got) != "HOME" {
		t.Errorf("pattern on stored literal = %q, want HOME", Literal(got))
	}
}

func TestScopeAssignDefault(t *testing.T) {
	s := testScope()
	if got := s.Expand("${_arch:=x86_64}"); got != "x86_64" {
		t.Fatalf("Expand = %q", got)
	}
	if got := s.Get("_arch"); got != "x86_64" {
		t.Errorf("_arch = %q after :=", got)
	}
}

func TestScopeChild(t *testing.T) {
	parent := NewScope(map[string]string{"depends": "a"})
	child := parent.Child()

	if got := child.Get("depends"); got != "a" {
		t.Errorf("child inherits depends = %q", got)
	}
	if child.IsLocal("depends") {
		t.Error("IsLocal(depends) = true before assignment")
	}

	child.Set("depends", "b")
	if !child.IsLocal("depends") || child.Get("depends") != "b" {
		t.Errorf("child depends = %q", child.Get("depends"))
	}
	if parent.Get("depends") != "a" {
		t.Errorf("parent changed to %q", parent.Get("depends"))
	}
}

func TestEvalArith(t *testing.T) {
	s := NewScope(map[string]string{"a": "3", "b": "a + 1", "loop": "loop + 1"})
	tests := []struct {
		expr    string
		want    int64
		wantErr bool
	}{
		{"1 + 2 * 3", 7, false},
		{"(1 + 2) * 3", 9, false},
		{"-a + 10", 7, false},
		{"b * 2", 8, false},
		{"0x10", 16, false},
		{"", 0, false},
		{"unset + 1", 1, false},
		{"loop", 8, false},
		{"1 +", 0, true},
		{"(1", 0, true},
		{"5 % 0", 0, true},
		{"2 ** 3", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := evalArith(tt.expr, s)
			if (err != nil) != tt.wantErr {
				t.Fatalf("evalArith(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("evalArith(%q) = %d, want %d", tt.expr, got, tt.want)
			}
		})
	}
}

func TestScopeGlobCacheIsPerParse(t *testing.T) {
	s := testScope()
	if got := s.Expand("${pkgver%.*}"); got != "1.2" {
		t.Fatalf("Expand = %q", got)
	}
	if _, ok := s.globs[".*"]; !ok {
		t.Fatalf("pattern not cached in scope: %v", s.globs)
	}

	child := s.Child()
	child.Expand("${pkgname#py3-}")
	if _, ok := s.globs["py3-"]; !ok {
		t.Error("child did not share the parent's pattern cache")
	}

	if other := testScope(); len(other.globs) != 0 {
		t.Errorf("new scope starts with %d cached patterns", len(other.globs))
	}
}
