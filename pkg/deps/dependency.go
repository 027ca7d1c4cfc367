package deps

import "strings"

// Dependency is a parsed dependency token such as "zlib>=1.2" or
// "so:libc.musl-x86_64.so.1".
type Dependency struct {
	Name    string // bare package or provider name
	Op      string // constraint operator: ">=", "<=", "=", ">", "<", "~" or ""
	Version string // constraint operand, ignored for resolution
	Raw     string // token as written
}

// constraintOps lists operators longest first so ">=" wins over ">".
var constraintOps = []string{">=", "<=", "=", ">", "<", "~"}

// ParseDependency splits a token into its bare name and version constraint.
// The bare name is everything before the first constraint operator.
func ParseDependency(token string) Dependency {
	d := Dependency{Raw: token}
	i := strings.IndexAny(token, "<>=~")
	if i < 0 {
		d.Name = token
		return d
	}
	d.Name = token[:i]
	rest := token[i:]
	for _, op := range constraintOps {
		if strings.HasPrefix(rest, op) {
			d.Op = op
			d.Version = rest[len(op):]
			break
		}
	}
	return d
}

// BareName returns the name part of a dependency token.
func BareName(token string) string {
	if i := strings.IndexAny(token, "<>=~"); i >= 0 {
		return token[:i]
	}
	return token
}

// IsConflict reports whether token declares a conflict ("!name") rather
// than a dependency.
func IsConflict(token string) bool {
	return strings.HasPrefix(token, "!")
}

// String renders the dependency as written.
func (d Dependency) String() string {
	if d.Raw != "" {
		return d.Raw
	}
	return d.Name + d.Op + d.Version
}
