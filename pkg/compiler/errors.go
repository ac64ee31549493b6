package compiler

import (
	"fmt"
	"strings"
)

// ============================================================
// COMPILE-TIME ERRORS
// ============================================================
//
// Compile errors are fatal: no procedure is emitted. They are reported
// as a batch (all detectable errors in one pass) rather than fail-fast,
// so authors fix everything in one iteration.

// Diagnostic codes.
const (
	CodeUnknownEntity        = "unknown_entity"
	CodeUnknownField         = "unknown_field"
	CodeUnresolvedIdentifier = "unresolved_identifier"
	CodeUnknownFunction      = "unknown_function"
	CodeMalformedExpression  = "malformed_expression"
	CodeInvalidFilter        = "invalid_filter"
	CodeDuplicateAudit       = "duplicate_audit_assignment"
	CodeDeadCode             = "dead_code"
	CodeInvalidStep          = "invalid_step"
)

// Runtime result codes carried in the emitted procedure and by the
// runner when normalizing engine failures. Validation failures use the
// author-supplied code instead.
const (
	ResultCodeOK                 = "ok"
	ResultCodeNotFound           = "not_found"
	ResultCodeReferenceFailed    = "reference_resolution_failed"
	ResultCodeUniqueViolated     = "unique_constraint_violated"
	ResultCodeTypeCoercionFailed = "type_coercion_failed"
	ResultCodeRequiredParam      = "required_param_missing"
	ResultCodeEngineError        = "engine_error"
)

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic is one compile-time finding, located by a step path such
// as "steps[1].then[0]".
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Path     string   `json:"path,omitempty"`
}

func (d Diagnostic) String() string {
	if d.Path == "" {
		return fmt.Sprintf("%s [%s]: %s", d.Severity, d.Code, d.Message)
	}
	return fmt.Sprintf("%s [%s] at %s: %s", d.Severity, d.Code, d.Path, d.Message)
}

// Diagnostics is the batch returned by one compilation pass.
type Diagnostics []Diagnostic

// HasErrors reports whether any error-severity diagnostic is present.
// Warnings alone do not block artifact generation.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the error-severity diagnostics.
func (ds Diagnostics) Errors() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

// Warnings returns only the warning-severity diagnostics.
func (ds Diagnostics) Warnings() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}

func (ds Diagnostics) String() string {
	lines := make([]string, len(ds))
	for i, d := range ds {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}

// ============================================================
// TYPED ERRORS
// ============================================================
//
// Expression parsing and resolution report through these; the compiler
// converts them into located diagnostics.

// UnknownFieldError reports a field assignment or reference that does
// not resolve against the target entity's field map.
type UnknownFieldError struct {
	Entity    string
	Field     string
	Available []string
}

func (e *UnknownFieldError) Error() string {
	msg := fmt.Sprintf("unknown field '%s' in entity '%s'", e.Field, e.Entity)
	if len(e.Available) > 0 {
		msg += fmt.Sprintf(" (available: %s)", strings.Join(e.Available, ", "))
	}
	return msg
}

// UnknownEntityError reports a step targeting an entity missing from
// the schema metadata.
type UnknownEntityError struct {
	Entity string
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("unknown entity '%s'", e.Entity)
}

// UnresolvedIdentifierError reports an identifier that is neither a
// known field, a bound variable, nor a literal.
type UnresolvedIdentifierError struct {
	Name string
}

func (e *UnresolvedIdentifierError) Error() string {
	return fmt.Sprintf("unresolved identifier '%s' (quote it if a literal was intended)", e.Name)
}

// UnknownFunctionError reports a call to a function outside the
// whitelist.
type UnknownFunctionError struct {
	Name string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("unknown function '%s'", e.Name)
}

// ParseError reports a malformed expression.
type ParseError struct {
	Input   string
	Pos     int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed expression at offset %d: %s (in %q)", e.Pos, e.Message, e.Input)
}

// InvalidFilterError reports a mutation step whose filter is missing
// or cannot narrow to the subject row.
type InvalidFilterError struct {
	Entity string
	Reason string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter on '%s': %s", e.Entity, e.Reason)
}

// diagCode maps a typed error to its diagnostic code.
func diagCode(err error) string {
	switch err.(type) {
	case *UnknownFieldError:
		return CodeUnknownField
	case *UnknownEntityError:
		return CodeUnknownEntity
	case *UnresolvedIdentifierError:
		return CodeUnresolvedIdentifier
	case *UnknownFunctionError:
		return CodeUnknownFunction
	case *ParseError:
		return CodeMalformedExpression
	case *InvalidFilterError:
		return CodeInvalidFilter
	default:
		return CodeInvalidStep
	}
}
