package apkbuild

// command is a simple command with leading reserved words stripped.
type command struct {
	words []*word
	pos   int
}

// script is the statement structure of one descriptor.
type script struct {
	commands []command            // top level, in source order
	funcs    map[string][]command // function bodies by name
	lex      *lexer
}

// reserved words dropped from the start of a command. Assignments following
// them still count, so "export CFLAGS=..." and "then depends=..." apply.
var reserved = map[string]bool{
	"if": true, "then": true, "else": true, "elif": true, "fi": true,
	"do": true, "done": true, "while": true, "until": true, "for": true,
	"case": true, "esac": true, "in": true, "select": true, "function": true,
	"time": true, "!": true,
	"export": true, "local": true, "readonly": true, "declare": true, "typeset": true,
}

type scriptParser struct {
	lex    *lexer
	peeked *token
	funcs  map[string][]command
}

func parseScript(src string) (*script, error) {
	p := &scriptParser{lex: newLexer(src), funcs: make(map[string][]command)}
	cmds, err := p.parseList(false, 0)
	if err != nil {
		return nil, err
	}
	return &script{commands: cmds, funcs: p.funcs, lex: p.lex}, nil
}

func (p *scriptParser) next() (token, error) {
	if p.peeked != nil {
		t := *p.peeked
		p.peeked = nil
		return t, nil
	}
	return p.lex.next()
}

func (p *scriptParser) peek() (token, error) {
	if p.peeked == nil {
		t, err := p.lex.next()
		if err != nil {
			return token{}, err
		}
		p.peeked = &t
	}
	return *p.peeked, nil
}

// parseList collects commands until EOF, or until the closing brace of a
// function body when inFunc is set.
func (p *scriptParser) parseList(inFunc bool, start int) ([]command, error) {
	var (
		cmds  []command
		cur   []*word
		depth int
	)
	flush := func() {
		if len(cur) > 0 {
			cmds = append(cmds, command{words: cur, pos: cur[0].pos})
			cur = nil
		}
	}

	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		switch tok.kind {
		case tokEOF:
			if inFunc {
				return nil, p.lex.errorf(start, "unterminated function body")
			}
			flush()
			return cmds, nil

		case tokOp:
			switch tok.op {
			case "(":
				if len(cur) == 1 {
					nt, err := p.peek()
					if err != nil {
						return nil, err
					}
					if nt.kind == tokOp && nt.op == ")" {
						p.next()
						name, _ := cur[0].literal()
						cur = nil
						body, err := p.parseFuncBody(tok.pos)
						if err != nil {
							return nil, err
						}
						if name != "" {
							p.funcs[name] = body
						}
					}
				}
			case ")":
				// End of a case pattern or subshell.
				cur = nil
			case "<<", "<<-":
				dt, err := p.next()
				if err != nil {
					return nil, err
				}
				if dt.kind == tokWord {
					p.lex.addHeredoc(dt.word.text(), tok.op == "<<-")
				}
			case "<", ">", ">>", ">&", "<&", "&>", "<>", ">|":
				nt, err := p.peek()
				if err != nil {
					return nil, err
				}
				if nt.kind == tokWord {
					p.next()
				}
			default:
				flush()
			}

		case tokWord:
			if len(cur) == 0 {
				if lit, ok := tok.word.literal(); ok {
					switch {
					case lit == "{":
						depth++
						continue
					case lit == "}":
						if inFunc && depth == 0 {
							return cmds, nil
						}
						if depth > 0 {
							depth--
						}
						continue
					case reserved[lit]:
						continue
					}
				}
			}
			cur = append(cur, tok.word)
		}
	}
}

// parseFuncBody reads the body following "name()".
func (p *scriptParser) parseFuncBody(start int) ([]command, error) {
	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		switch {
		case tok.kind == tokOp && tok.op == "\n":
			continue
		case tok.kind == tokWord:
			if lit, ok := tok.word.literal(); ok && lit == "{" {
				return p.parseList(true, start)
			}
			return nil, p.lex.errorf(tok.pos, "expected '{' to open function body")
		case tok.kind == tokOp && tok.op == "(":
			return p.skipSubshell(start)
		default:
			return nil, p.lex.errorf(start, "expected function body")
		}
	}
}

// skipSubshell consumes a "name() ( ... )" body. Its assignments never
// reach the caller, so nothing is kept.
func (p *scriptParser) skipSubshell(start int) ([]command, error) {
	depth := 1
	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		switch {
		case tok.kind == tokEOF:
			return nil, p.lex.errorf(start, "unterminated function body")
		case tok.kind == tokOp && tok.op == "(":
			depth++
		case tok.kind == tokOp && tok.op == ")":
			depth--
			if depth == 0 {
				return nil, nil
			}
		}
	}
}
