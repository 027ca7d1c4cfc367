package apkbuild

import (
	"fmt"
	"strconv"
	"strings"
)

// evalArith evaluates a $((...)) expression: integers, variables, unary
// + and -, binary + - * / % and parentheses. Unset or non-numeric variables
// count as zero.
func evalArith(expr string, scope *Scope) (int64, error) {
	a := &arith{src: expr, scope: scope}
	if strings.TrimSpace(expr) == "" {
		return 0, nil
	}
	v, err := a.expr()
	if err != nil {
		return 0, err
	}
	a.skipSpace()
	if a.pos < len(a.src) {
		return 0, fmt.Errorf("unexpected %q in arithmetic expression", a.src[a.pos:])
	}
	return v, nil
}

type arith struct {
	src   string
	pos   int
	scope *Scope
	depth int
}

func (a *arith) skipSpace() {
	for a.pos < len(a.src) && (a.src[a.pos] == ' ' || a.src[a.pos] == '\t' || a.src[a.pos] == '\n') {
		a.pos++
	}
}

func (a *arith) expr() (int64, error) {
	v, err := a.term()
	if err != nil {
		return 0, err
	}
	for {
		a.skipSpace()
		if a.pos >= len(a.src) {
			return v, nil
		}
		op := a.src[a.pos]
		if op != '+' && op != '-' {
			return v, nil
		}
		a.pos++
		r, err := a.term()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			v += r
		} else {
			v -= r
		}
	}
}

func (a *arith) term() (int64, error) {
	v, err := a.unary()
	if err != nil {
		return 0, err
	}
	for {
		a.skipSpace()
		if a.pos >= len(a.src) {
			return v, nil
		}
		op := a.src[a.pos]
		if op != '*' && op != '/' && op != '%' {
			return v, nil
		}
		a.pos++
		r, err := a.unary()
		if err != nil {
			return 0, err
		}
		switch op {
		case '*':
			v *= r
		case '/', '%':
			if r == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			if op == '/' {
				v /= r
			} else {
				v %= r
			}
		}
	}
}

func (a *arith) unary() (int64, error) {
	a.skipSpace()
	if a.pos < len(a.src) {
		switch a.src[a.pos] {
		case '-':
			a.pos++
			v, err := a.unary()
			return -v, err
		case '+':
			a.pos++
			return a.unary()
		}
	}
	return a.primary()
}

func (a *arith) primary() (int64, error) {
	a.skipSpace()
	if a.pos >= len(a.src) {
		return 0, fmt.Errorf("unexpected end of arithmetic expression")
	}
	c := a.src[a.pos]
	switch {
	case c == '(':
		a.pos++
		v, err := a.expr()
		if err != nil {
			return 0, err
		}
		a.skipSpace()
		if a.pos >= len(a.src) || a.src[a.pos] != ')' {
			return 0, fmt.Errorf("missing ')' in arithmetic expression")
		}
		a.pos++
		return v, nil
	case c >= '0' && c <= '9':
		start := a.pos
		for a.pos < len(a.src) && isNameChar(a.src[a.pos]) {
			a.pos++
		}
		return strconv.ParseInt(a.src[start:a.pos], 0, 64)
	case isNameStart(c):
		start := a.pos
		for a.pos < len(a.src) && isNameChar(a.src[a.pos]) {
			a.pos++
		}
		return a.variable(a.src[start:a.pos])
	}
	return 0, fmt.Errorf("unexpected %q in arithmetic expression", c)
}

// variable resolves a bare name. A value that is itself an expression is
// evaluated, bounded so that mutually referring variables terminate.
func (a *arith) variable(name string) (int64, error) {
	val := strings.TrimSpace(a.scope.Get(name))
	if val == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(val, 0, 64); err == nil {
		return n, nil
	}
	if a.depth >= 8 {
		return 0, nil
	}
	sub := &arith{src: val, scope: a.scope, depth: a.depth + 1}
	v, err := sub.expr()
	if err != nil {
		return 0, nil
	}
	return v, nil
}
