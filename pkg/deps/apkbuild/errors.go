package apkbuild

import (
	"fmt"

	"github.com/matzehuels/depmap/pkg/errors"
)

// ParseError describes why a descriptor could not be turned into packages.
// It is fatal for that one file only.
type ParseError struct {
	Code   errors.Code // ErrCodeSyntax or ErrCodeMissingName
	Path   string      // file path, if known
	Line   int         // 1-based, 0 when not tied to a location
	Column int         // 1-based byte column
	Msg    string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	loc := e.Path
	if loc == "" {
		loc = "<input>"
	}
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", loc, e.Line, e.Column)
	}
	return fmt.Sprintf("%s: %s", loc, e.Msg)
}

// Unwrap exposes the error code so errors.Is(err, errors.ErrCodeSyntax)
// works on parse errors.
func (e *ParseError) Unwrap() error {
	return &errors.Error{Code: e.Code, Message: e.Msg}
}

func syntaxError(line, col int, format string, args ...any) *ParseError {
	return &ParseError{
		Code:   errors.ErrCodeSyntax,
		Line:   line,
		Column: col,
		Msg:    fmt.Sprintf(format, args...),
	}
}
