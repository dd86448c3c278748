// Package errs defines the closed set of error kinds the policy compiler
// and evaluator can raise, matching the propagation rules in the design:
// compilation and evaluation are best-effort per unit, so callers inspect
// Kind to decide whether to skip a single policy/artifact or abort the run.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a compiler/evaluator error.
type Kind string

const (
	// KindParse covers a condition string that fails to parse, including an
	// identifier whose root is not input/vars/a declared variable.
	KindParse Kind = "parse_error"
	// KindInvalidAssignment covers a malformed "<<" assignment target.
	KindInvalidAssignment Kind = "invalid_assignment"
	// KindSelectOperator covers a select() operator outside the whitelist.
	KindSelectOperator Kind = "select_operator_error"
	// KindSelectAttrOperator covers a selectattr() operator outside the whitelist.
	KindSelectAttrOperator Kind = "selectattr_operator_error"
	// KindSchema covers a policybook missing a required field or containing
	// duplicate names.
	KindSchema Kind = "schema_error"
	// KindUnsupportedAction covers an action kind outside {allow,deny,info,warn,ignore}.
	KindUnsupportedAction Kind = "unsupported_action"
	// KindEngine covers the engine binary being absent or exiting non-zero.
	KindEngine Kind = "engine_error"
	// KindScan covers a source artifact that cannot be read or parsed as YAML.
	KindScan Kind = "scan_error"
	// KindConfig covers an unknown section/field in the selector config file.
	// Unlike the others, a KindConfig error is fatal for the whole run.
	KindConfig Kind = "config_error"
)

// Error is the concrete error type carrying a Kind, an optional unit
// identifier (policy name, file path, ...), and a wrapped cause.
type Error struct {
	Kind Kind
	Unit string
	Err  error
}

func (e *Error) Error() string {
	if e.Unit == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Unit, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error for the given kind and unit.
func New(kind Kind, unit string, cause error) *Error {
	return &Error{Kind: kind, Unit: unit, Err: cause}
}

// Newf is a convenience constructor that formats the cause.
func Newf(kind Kind, unit string, format string, args ...any) *Error {
	return &Error{Kind: kind, Unit: unit, Err: fmt.Errorf(format, args...)}
}

// Is reports whether err carries the given Kind, unwrapping as needed.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Fatal reports whether a Kind aborts the whole run rather than being
// skippable per-unit. Only config errors are fatal by design (spec.md §7).
func Fatal(kind Kind) bool {
	return kind == KindConfig
}
