package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError reports a problem in a request file. Field is the path of the
// offending request field, e.g. "where[0].eq"; Pos is its source position
// when known.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if !e.Pos.IsValid() {
		return e.Field + ": " + e.Message
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s",
		e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
}

// fromCUEError turns a CUE evaluation error into a CompileError for the
// request field it came from. The first error is reported; further ones are
// only counted.
func fromCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &CompileError{Field: "request", Message: err.Error()}
	}

	first := errs[0]
	format, args := first.Msg()
	msg := fmt.Sprintf(format, args...)
	if len(errs) > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, len(errs)-1)
	}

	pos := first.Position()
	if !pos.IsValid() {
		if positions := errors.Positions(first); len(positions) > 0 {
			pos = positions[0]
		}
	}
	return &CompileError{Field: requestPath(first.Path()), Message: msg, Pos: pos}
}

// requestPath renders a CUE path such as [request where 0 eq] in the form
// used by CompileError: where[0].eq.
func requestPath(path []string) string {
	if len(path) > 0 && path[0] == "request" {
		path = path[1:]
	}
	if len(path) == 0 {
		return "request"
	}

	var b strings.Builder
	for i, label := range path {
		if _, err := strconv.Atoi(label); err == nil {
			fmt.Fprintf(&b, "[%s]", label)
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(label)
	}
	return b.String()
}
