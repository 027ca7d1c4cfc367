package apkbuild

import (
	"sort"
	"strings"
	"unicode/utf8"
)

type partKind uint8

const (
	partLiteral partKind = iota
	partParam
	partCommand // $(...) or `...`, never executed
	partArith   // $((...))
)

// part is one piece of a shell word.
type part struct {
	kind   partKind
	text   string // literal text or arithmetic source
	quoted bool   // literal came from quotes or a backslash escape
	param  *param
}

// param is a ${...} or $NAME reference.
type param struct {
	name   string
	op     string // "", ":-", "-", ":=", "=", ":+", "+", ":?", "?", "#", "##", "%", "%%", "/", "//", "/#", "/%", ":"
	length bool   // ${#name}
	arg    *word
	arg2   *word // replacement for "/" ops, length for ":"
}

// word is a shell word: adjacent literal, quoted and expansion parts.
type word struct {
	parts []part
	pos   int
}

func (w *word) appendLit(s string, quoted bool) {
	if n := len(w.parts); n > 0 {
		last := &w.parts[n-1]
		if last.kind == partLiteral && last.quoted == quoted {
			last.text += s
			return
		}
	}
	w.parts = append(w.parts, part{kind: partLiteral, text: s, quoted: quoted})
}

// literal returns the word's text when it consists of unquoted literals only.
func (w *word) literal() (string, bool) {
	var b strings.Builder
	for _, p := range w.parts {
		if p.kind != partLiteral || p.quoted {
			return "", false
		}
		b.WriteString(p.text)
	}
	return b.String(), true
}

// text concatenates literal parts, quoted or not, dropping expansions.
func (w *word) text() string {
	var b strings.Builder
	for _, p := range w.parts {
		if p.kind == partLiteral {
			b.WriteString(p.text)
		}
	}
	return b.String()
}

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokWord
	tokOp
)

type token struct {
	kind tokenKind
	op   string
	word *word
	pos  int
}

type comment struct {
	pos  int
	text string
}

type heredoc struct {
	delim     string
	stripTabs bool
}

// lexer splits descriptor text into shell words and operators.
type lexer struct {
	src      string
	pos      int
	lines    []int
	comments []comment
	heredocs []heredoc
}

func newLexer(src string) *lexer {
	l := &lexer{src: src, lines: []int{0}}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			l.lines = append(l.lines, i+1)
		}
	}
	return l
}

// position converts a byte offset into a 1-based line and column.
func (l *lexer) position(pos int) (line, col int) {
	i := sort.Search(len(l.lines), func(i int) bool { return l.lines[i] > pos }) - 1
	if i < 0 {
		i = 0
	}
	return i + 1, pos - l.lines[i] + 1
}

func (l *lexer) errorf(pos int, format string, args ...any) *ParseError {
	line, col := l.position(pos)
	return syntaxError(line, col, format, args...)
}

func (l *lexer) peek(n int) byte {
	if l.pos+n < len(l.src) {
		return l.src[l.pos+n]
	}
	return 0
}

func (l *lexer) addHeredoc(delim string, stripTabs bool) {
	l.heredocs = append(l.heredocs, heredoc{delim: delim, stripTabs: stripTabs})
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == '\\' && l.peek(1) == '\n':
			l.pos += 2
		case c == '#':
			l.scanComment()
		case c == '\n':
			start := l.pos
			l.pos++
			l.skipHeredocs()
			return token{kind: tokOp, op: "\n", pos: start}, nil
		case isOperator(c):
			return l.scanOperator(), nil
		default:
			w, err := l.scanWord()
			if err != nil {
				return token{}, err
			}
			return token{kind: tokWord, word: w, pos: w.pos}, nil
		}
	}
	return token{kind: tokEOF, pos: l.pos}, nil
}

func (l *lexer) scanComment() {
	start := l.pos
	end := strings.IndexByte(l.src[start:], '\n')
	if end < 0 {
		end = len(l.src) - start
	}
	l.comments = append(l.comments, comment{pos: start, text: l.src[start+1 : start+end]})
	l.pos = start + end
}

// skipHeredocs consumes the bodies of heredocs opened on the line just ended.
func (l *lexer) skipHeredocs() {
	for _, h := range l.heredocs {
		for l.pos < len(l.src) {
			end := strings.IndexByte(l.src[l.pos:], '\n')
			var line string
			if end < 0 {
				line = l.src[l.pos:]
				l.pos = len(l.src)
			} else {
				line = l.src[l.pos : l.pos+end]
				l.pos += end + 1
			}
			if h.stripTabs {
				line = strings.TrimLeft(line, "\t")
			}
			if strings.TrimRight(line, "\r") == h.delim {
				break
			}
		}
	}
	l.heredocs = l.heredocs[:0]
}

var operators = []string{
	";;", ";", "&&", "&>", "&", "||", "|", "(", ")",
	"<<-", "<<", "<&", "<>", "<", ">>", ">&", ">|", ">",
}

func isOperator(c byte) bool {
	return strings.IndexByte(";&|()<>", c) >= 0
}

func (l *lexer) scanOperator() token {
	start := l.pos
	rest := l.src[l.pos:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op) {
			l.pos += len(op)
			return token{kind: tokOp, op: op, pos: start}
		}
	}
	l.pos++
	return token{kind: tokOp, op: rest[:1], pos: start}
}

func isWordBreak(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || isOperator(c)
}

// scanWord reads an unquoted word at top level.
func (l *lexer) scanWord() (*word, error) {
	w := &word{pos: l.pos}
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case isWordBreak(c):
			return w, nil
		case c == '\\':
			l.scanEscape(w)
		case c == '\'':
			if err := l.scanSingle(w); err != nil {
				return nil, err
			}
		case c == '"':
			if err := l.scanDouble(w, true); err != nil {
				return nil, err
			}
		case c == '$':
			if err := l.scanDollar(w, false); err != nil {
				return nil, err
			}
		case c == '`':
			if err := l.scanBacktick(w); err != nil {
				return nil, err
			}
		default:
			end := l.pos + 1
			for end < len(l.src) && !isWordBreak(l.src[end]) && strings.IndexByte("\\'\"$`", l.src[end]) < 0 {
				end++
			}
			w.appendLit(l.src[l.pos:end], false)
			l.pos = end
		}
	}
	return w, nil
}

// scanEscape handles a backslash outside quotes.
func (l *lexer) scanEscape(w *word) {
	switch {
	case l.peek(1) == '\n':
		l.pos += 2
	case l.pos+1 >= len(l.src):
		w.appendLit("\\", false)
		l.pos++
	default:
		_, size := utf8.DecodeRuneInString(l.src[l.pos+1:])
		w.appendLit(l.src[l.pos+1:l.pos+1+size], true)
		l.pos += 1 + size
	}
}

func (l *lexer) scanSingle(w *word) error {
	start := l.pos
	end := strings.IndexByte(l.src[start+1:], '\'')
	if end < 0 {
		return l.errorf(start, "unterminated single quote")
	}
	w.appendLit(l.src[start+1:start+1+end], true)
	l.pos = start + end + 2
	return nil
}

// scanDouble reads a double-quoted string. With closing false the text runs
// to the end of input and '"' is literal, which is how Scope.Expand treats
// already assigned values.
func (l *lexer) scanDouble(w *word, closing bool) error {
	start := l.pos
	if closing {
		l.pos++
	}
	// Mark the word as containing a quoted part even when empty.
	w.appendLit("", true)
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '"':
			if closing {
				l.pos++
				return nil
			}
			w.appendLit(`"`, true)
			l.pos++
		case '\\':
			n := l.peek(1)
			switch {
			case n == '\n':
				l.pos += 2
			case n == '$' || n == '`' || n == '"' || n == '\\':
				w.appendLit(string(n), true)
				l.pos += 2
			default:
				w.appendLit(`\`, true)
				l.pos++
			}
		case '$':
			if err := l.scanDollar(w, true); err != nil {
				return err
			}
		case '`':
			if err := l.scanBacktick(w); err != nil {
				return err
			}
		default:
			end := l.pos + 1
			for end < len(l.src) && strings.IndexByte("\"\\$`", l.src[end]) < 0 {
				end++
			}
			w.appendLit(l.src[l.pos:end], true)
			l.pos = end
		}
	}
	if closing {
		return l.errorf(start, "unterminated double quote")
	}
	return nil
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

func isSpecialParam(c byte) bool {
	return (c >= '0' && c <= '9') || strings.IndexByte("@*#?$!-", c) >= 0
}

// scanName reads an identifier, a positional digit or a special parameter.
func (l *lexer) scanName() string {
	start := l.pos
	if l.pos < len(l.src) && isNameStart(l.src[l.pos]) {
		for l.pos < len(l.src) && isNameChar(l.src[l.pos]) {
			l.pos++
		}
		return l.src[start:l.pos]
	}
	if l.pos < len(l.src) && isSpecialParam(l.src[l.pos]) {
		l.pos++
		return l.src[start:l.pos]
	}
	return ""
}

func (l *lexer) scanDollar(w *word, quoted bool) error {
	n := l.peek(1)
	switch {
	case n == '(' && l.peek(2) == '(':
		return l.scanArith(w)
	case n == '(':
		return l.scanCommand(w)
	case n == '{':
		return l.scanBrace(w)
	case isNameStart(n) || isSpecialParam(n):
		l.pos++
		name := l.scanName()
		w.parts = append(w.parts, part{kind: partParam, param: &param{name: name}})
		return nil
	default:
		w.appendLit("$", quoted)
		l.pos++
		return nil
	}
}

func (l *lexer) scanArith(w *word) error {
	start := l.pos
	l.pos += 3
	exprStart := l.pos
	depth := 0
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
				break
			}
			if l.peek(1) == ')' {
				w.parts = append(w.parts, part{kind: partArith, text: l.src[exprStart:l.pos]})
				l.pos += 2
				return nil
			}
			// "$( (...) )": a command substitution starting with a subshell.
			l.pos++
			w.parts = append(w.parts, part{kind: partCommand})
			return nil
		}
		l.pos++
	}
	return l.errorf(start, "unterminated arithmetic expansion")
}

// scanCommand skips a $(...) command substitution.
func (l *lexer) scanCommand(w *word) error {
	start := l.pos
	l.pos += 2
	depth := 1
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '\\':
			l.pos += 2
			continue
		case '\'':
			end := strings.IndexByte(l.src[l.pos+1:], '\'')
			if end < 0 {
				return l.errorf(l.pos, "unterminated single quote")
			}
			l.pos += end + 2
			continue
		case '"':
			var discard word
			if err := l.scanDouble(&discard, true); err != nil {
				return err
			}
			continue
		case '`':
			var discard word
			if err := l.scanBacktick(&discard); err != nil {
				return err
			}
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				l.pos++
				w.parts = append(w.parts, part{kind: partCommand})
				return nil
			}
		}
		l.pos++
	}
	return l.errorf(start, "unterminated command substitution")
}

func (l *lexer) scanBacktick(w *word) error {
	start := l.pos
	l.pos++
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case '\\':
			l.pos += 2
			continue
		case '`':
			l.pos++
			w.parts = append(w.parts, part{kind: partCommand})
			return nil
		}
		l.pos++
	}
	return l.errorf(start, "unterminated backquote")
}

// braceOps lists parameter operators, two-character forms first.
var braceOps = []string{
	":-", ":=", ":+", ":?", "##", "%%", "//", "/#", "/%",
	"-", "=", "+", "?", "#", "%", "/", ":",
}

func (l *lexer) scanBrace(w *word) error {
	start := l.pos
	l.pos += 2
	p := &param{}

	if l.peek(0) == '#' && l.peek(1) != '}' {
		save := l.pos
		l.pos++
		if name := l.scanName(); name != "" && l.peek(0) == '}' {
			p.name, p.length = name, true
			l.pos++
			w.parts = append(w.parts, part{kind: partParam, param: p})
			return nil
		}
		l.pos = save
	}

	p.name = l.scanName()
	if l.pos >= len(l.src) {
		return l.errorf(start, "unterminated parameter expansion")
	}
	if p.name == "" {
		return l.skipBadSubstitution(w, start)
	}
	if l.src[l.pos] == '}' {
		l.pos++
		w.parts = append(w.parts, part{kind: partParam, param: p})
		return nil
	}

	rest := l.src[l.pos:]
	for _, op := range braceOps {
		if strings.HasPrefix(rest, op) {
			p.op = op
			break
		}
	}
	if p.op == "" {
		return l.skipBadSubstitution(w, start)
	}
	l.pos += len(p.op)

	var err error
	switch p.op {
	case "/", "//", "/#", "/%":
		if p.arg, err = l.scanBraceArg(start, "/}"); err != nil {
			return err
		}
		if l.peek(0) == '/' {
			l.pos++
			if p.arg2, err = l.scanBraceArg(start, "}"); err != nil {
				return err
			}
		}
	case ":":
		if p.arg, err = l.scanBraceArg(start, ":}"); err != nil {
			return err
		}
		if l.peek(0) == ':' {
			l.pos++
			if p.arg2, err = l.scanBraceArg(start, "}"); err != nil {
				return err
			}
		}
	default:
		if p.arg, err = l.scanBraceArg(start, "}"); err != nil {
			return err
		}
	}
	if l.peek(0) != '}' {
		return l.errorf(start, "unterminated parameter expansion")
	}
	l.pos++
	w.parts = append(w.parts, part{kind: partParam, param: p})
	return nil
}

// skipBadSubstitution consumes an unsupported ${...} form, which expands to
// nothing, as long as it is closed.
func (l *lexer) skipBadSubstitution(w *word, start int) error {
	depth := 1
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				l.pos++
				w.parts = append(w.parts, part{kind: partCommand})
				return nil
			}
		}
		l.pos++
	}
	return l.errorf(start, "unterminated parameter expansion")
}

// scanBraceArg reads the operand of a parameter operator up to one of stops.
// Whitespace is literal here.
func (l *lexer) scanBraceArg(start int, stops string) (*word, error) {
	w := &word{pos: l.pos}
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case strings.IndexByte(stops, c) >= 0:
			return w, nil
		case c == '\\':
			l.scanEscape(w)
		case c == '\'':
			if err := l.scanSingle(w); err != nil {
				return nil, err
			}
		case c == '"':
			if err := l.scanDouble(w, true); err != nil {
				return nil, err
			}
		case c == '$':
			if err := l.scanDollar(w, false); err != nil {
				return nil, err
			}
		case c == '`':
			if err := l.scanBacktick(w); err != nil {
				return nil, err
			}
		default:
			end := l.pos + 1
			for end < len(l.src) && strings.IndexByte(stops, l.src[end]) < 0 && strings.IndexByte("\\'\"$`", l.src[end]) < 0 {
				end++
			}
			w.appendLit(l.src[l.pos:end], false)
			l.pos = end
		}
	}
	return nil, l.errorf(start, "unterminated parameter expansion")
}
