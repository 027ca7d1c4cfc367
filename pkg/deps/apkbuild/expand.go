package apkbuild

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Expanded text keeps '$', '`' and '\' that came from quotes or escapes as
// these private-use runes, so expanding it again leaves it unchanged.
const (
	inertDollar    = '\uE000'
	inertBacktick  = '\uE001'
	inertBackslash = '\uE002'
)

var (
	inert   = strings.NewReplacer("$", string(inertDollar), "`", string(inertBacktick), `\`, string(inertBackslash))
	literal = strings.NewReplacer(string(inertDollar), "$", string(inertBacktick), "`", string(inertBackslash), `\`)
)

// Literal converts expanded text back to plain text.
func Literal(expanded string) string {
	return literal.Replace(expanded)
}

// Scope is the symbol table of one descriptor. Values are stored already
// expanded, so a reference always sees the last value assigned before it and
// self-references such as depends="$depends foo" cannot recurse.
//
// A Scope is not safe for concurrent use; each parse owns its own.
type Scope struct {
	vars   map[string]string
	parent *Scope
	globs  map[string]*regexp.Regexp // shared with children
}

// NewScope returns a scope seeded with the plain values in vars.
func NewScope(vars map[string]string) *Scope {
	s := &Scope{
		vars:  make(map[string]string, len(vars)+16),
		globs: make(map[string]*regexp.Regexp),
	}
	for k, v := range vars {
		s.Set(k, v)
	}
	return s
}

// Child returns a scope that reads through to s and keeps its own writes.
func (s *Scope) Child() *Scope {
	return &Scope{vars: make(map[string]string), parent: s, globs: s.globs}
}

// lookup returns a variable's expanded value.
func (s *Scope) lookup(name string) (string, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok {
			return v, true
		}
	}
	return "", false
}

// Lookup returns a variable's plain value and whether it is set.
func (s *Scope) Lookup(name string) (string, bool) {
	v, ok := s.lookup(name)
	return Literal(v), ok
}

// Get returns a variable's plain value, or "" when unset.
func (s *Scope) Get(name string) string {
	v, _ := s.Lookup(name)
	return v
}

// Set assigns a value in this scope. Plain and expanded text are both
// accepted; any '$', '`' or '\' in value is stored as literal.
func (s *Scope) Set(name, value string) {
	s.vars[name] = inert.Replace(value)
}

// IsLocal reports whether name was assigned in this scope rather than
// inherited from a parent.
func (s *Scope) IsLocal(name string) bool {
	_, ok := s.vars[name]
	return ok
}

// Expand substitutes $NAME, ${NAME} and the supported ${NAME...} operators
// in text, treating text like the inside of a double-quoted string.
// Unset variables expand to "". The result is expanded text: characters
// that were quoted or escaped stay inert, so Expand(Expand(x)) == Expand(x).
// Use [Literal] for the plain string.
//
// Malformed syntax is left as is.
func (s *Scope) Expand(text string) string {
	if !strings.ContainsAny(text, "$`\\") {
		return text
	}
	l := newLexer(text)
	w := &word{}
	if err := l.scanDouble(w, false); err != nil {
		return inert.Replace(text)
	}
	return s.expandWord(w)
}

func (s *Scope) expandWord(w *word) string {
	if w == nil {
		return ""
	}
	if len(w.parts) == 1 && w.parts[0].kind == partLiteral {
		return inert.Replace(w.parts[0].text)
	}
	var b strings.Builder
	for i := range w.parts {
		b.WriteString(s.expandPart(&w.parts[i]))
	}
	return b.String()
}

func (s *Scope) expandPart(p *part) string {
	switch p.kind {
	case partLiteral:
		return inert.Replace(p.text)
	case partParam:
		return s.expandParam(p.param)
	case partArith:
		n, err := evalArith(Literal(s.Expand(p.text)), s)
		if err != nil {
			return ""
		}
		return strconv.FormatInt(n, 10)
	default:
		return ""
	}
}

func (s *Scope) expandParam(p *param) string {
	val, set := s.lookup(p.name)
	if p.length {
		return strconv.Itoa(utf8.RuneCountInString(val))
	}

	switch p.op {
	case "":
		return val
	case ":-":
		if val == "" {
			return s.expandWord(p.arg)
		}
		return val
	case "-":
		if !set {
			return s.expandWord(p.arg)
		}
		return val
	case ":=":
		if val == "" {
			val = s.expandWord(p.arg)
			s.Set(p.name, val)
		}
		return val
	case "=":
		if !set {
			val = s.expandWord(p.arg)
			s.Set(p.name, val)
		}
		return val
	case ":+":
		if val != "" {
			return s.expandWord(p.arg)
		}
		return ""
	case "+":
		if set {
			return s.expandWord(p.arg)
		}
		return ""
	case ":?", "?":
		return val
	case "#", "##":
		return trimPrefix(val, s.glob(s.expandPattern(p.arg)), p.op == "##")
	case "%", "%%":
		return trimSuffix(val, s.glob(s.expandPattern(p.arg)), p.op == "%%")
	case "/", "//", "/#", "/%":
		pattern := s.expandPattern(p.arg)
		if pattern == "" {
			return val
		}
		return replacePattern(val, s.glob(pattern), s.expandWord(p.arg2), p.op)
	case ":":
		return s.substring(val, p.arg, p.arg2)
	}
	return val
}

// expandPattern expands a pattern operand, escaping glob characters that
// came from quoted text so they match literally.
func (s *Scope) expandPattern(w *word) string {
	if w == nil {
		return ""
	}
	var b strings.Builder
	for i := range w.parts {
		p := &w.parts[i]
		if p.kind == partLiteral && p.quoted {
			for _, r := range inert.Replace(p.text) {
				if strings.ContainsRune(`*?[]\`, r) {
					b.WriteByte('\\')
				}
				b.WriteRune(r)
			}
			continue
		}
		b.WriteString(s.expandPart(p))
	}
	return b.String()
}

func (s *Scope) substring(val string, offw, lenw *word) string {
	runes := []rune(val)
	off, err := evalArith(Literal(s.expandWord(offw)), s)
	if err != nil {
		return ""
	}
	if off < 0 {
		off += int64(len(runes))
		if off < 0 {
			off = 0
		}
	}
	if off > int64(len(runes)) {
		return ""
	}
	end := int64(len(runes))
	if lenw != nil {
		n, err := evalArith(Literal(s.expandWord(lenw)), s)
		if err != nil {
			return ""
		}
		if n < 0 {
			end += n
		} else if off+n < end {
			end = off + n
		}
	}
	if end < off {
		return ""
	}
	return string(runes[off:end])
}

// boundaries returns the byte offsets of rune starts in s, plus len(s).
func boundaries(s string) []int {
	idx := make([]int, 0, len(s)+1)
	for i := range s {
		idx = append(idx, i)
	}
	return append(idx, len(s))
}

func trimPrefix(val string, re *regexp.Regexp, longest bool) string {
	if re == nil {
		return val
	}
	b := boundaries(val)
	if longest {
		for i := len(b) - 1; i >= 0; i-- {
			if re.MatchString(val[:b[i]]) {
				return val[b[i]:]
			}
		}
		return val
	}
	for _, i := range b {
		if re.MatchString(val[:i]) {
			return val[i:]
		}
	}
	return val
}

func trimSuffix(val string, re *regexp.Regexp, longest bool) string {
	if re == nil {
		return val
	}
	b := boundaries(val)
	if longest {
		for _, i := range b {
			if re.MatchString(val[i:]) {
				return val[:i]
			}
		}
		return val
	}
	for i := len(b) - 1; i >= 0; i-- {
		if re.MatchString(val[b[i]:]) {
			return val[:b[i]]
		}
	}
	return val
}

func replacePattern(val string, re *regexp.Regexp, repl, op string) string {
	if re == nil {
		return val
	}
	b := boundaries(val)
	switch op {
	case "/#":
		for j := len(b) - 1; j >= 0; j-- {
			if re.MatchString(val[:b[j]]) {
				return repl + val[b[j]:]
			}
		}
		return val
	case "/%":
		for _, i := range b {
			if re.MatchString(val[i:]) {
				return val[:i] + repl
			}
		}
		return val
	}

	var out strings.Builder
	last := 0
	for k := 0; k < len(b)-1; k++ {
		i := b[k]
		if i < last {
			continue
		}
		matched := -1
		for j := len(b) - 1; j > k; j-- {
			if re.MatchString(val[i:b[j]]) {
				matched = b[j]
				break
			}
		}
		if matched < 0 {
			continue
		}
		out.WriteString(val[last:i])
		out.WriteString(repl)
		last = matched
		if op == "/" {
			break
		}
	}
	out.WriteString(val[last:])
	return out.String()
}

// glob returns the compiled pattern, caching it for the rest of the parse.
func (s *Scope) glob(pattern string) *regexp.Regexp {
	if re, ok := s.globs[pattern]; ok {
		return re
	}
	re := globRegexp(pattern)
	s.globs[pattern] = re
	return re
}

// globRegexp compiles a shell pattern (*, ?, [...], backslash escapes) into
// an anchored regular expression. It returns nil for patterns that cannot
// be compiled.
func globRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString(`^(?s:`)
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '\\':
			if i+1 < len(pattern) {
				i++
				b.WriteString(regexp.QuoteMeta(pattern[i : i+1]))
			} else {
				b.WriteString(`\\`)
			}
		case '[':
			j := i + 1
			if j < len(pattern) && (pattern[j] == '!' || pattern[j] == '^') {
				j++
			}
			if j < len(pattern) && pattern[j] == ']' {
				j++
			}
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j >= len(pattern) {
				b.WriteString(`\[`)
				continue
			}
			class := pattern[i+1 : j]
			if class[0] == '!' {
				class = "^" + class[1:]
			}
			b.WriteByte('[')
			b.WriteString(strings.ReplaceAll(class, `\`, `\\`))
			b.WriteByte(']')
			i = j
		default:
			b.WriteString(regexp.QuoteMeta(pattern[i : i+1]))
		}
	}
	b.WriteString(`)$`)
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil
	}
	return re
}
