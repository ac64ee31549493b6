package runner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/actionc/actionc/pkg/compiler"
)

// NormalizeError converts a driver-level failure into an error-status
// mutation result, so callers see one contract regardless of where the
// failure happened. Most constraint violations are already caught and
// normalized inside the procedure; this path covers what escapes it
// (the call statement itself, commit, a missing procedure).
//
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
func NormalizeError(err error, procedure string) *compiler.MutationResult {
	result := &compiler.MutationResult{
		Status: compiler.StatusError,
		Metadata: map[string]interface{}{
			"procedure": procedure,
		},
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		result.Code = compiler.ResultCodeEngineError
		result.Message = err.Error()
		return result
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		result.Code = compiler.ResultCodeUniqueViolated
		result.Message = uniqueViolationMessage(pgErr)

	case "23503": // foreign_key_violation
		result.Code = compiler.ResultCodeReferenceFailed
		result.Message = foreignKeyMessage(pgErr)

	case "22P02", "23502", "23514": // invalid_text_representation, not_null, check
		result.Code = compiler.ResultCodeTypeCoercionFailed
		result.Message = pgErr.Message

	case "42883": // undefined_function
		result.Code = compiler.ResultCodeEngineError
		result.Message = fmt.Sprintf("procedure %s is not installed (run install first)", procedure)

	case "P0001": // raise_exception from inside the procedure
		result.Code = compiler.ResultCodeEngineError
		result.Message = pgErr.Message

	default:
		result.Code = compiler.ResultCodeEngineError
		result.Message = fmt.Sprintf("%s (code: %s)", pgErr.Message, pgErr.Code)
	}
	result.Metadata["sqlstate"] = pgErr.Code
	return result
}

// uniqueViolationMessage composes a message naming the colliding field.
// Detail format: `Key (email)=(test@mail.com) already exists.`
func uniqueViolationMessage(pgErr *pgconn.PgError) string {
	field := extractFieldFromDetail(pgErr.Detail)
	if field == "" {
		return pgErr.Message
	}
	return fmt.Sprintf("value for '%s' already exists", field)
}

// foreignKeyMessage composes a message naming the dangling reference.
// Detail format: `Key (fk_company)=(42) is not present in table "tb_company".`
func foreignKeyMessage(pgErr *pgconn.PgError) string {
	field := extractFieldFromDetail(pgErr.Detail)
	if field == "" {
		return pgErr.Message
	}
	return fmt.Sprintf("reference '%s' could not be resolved", field)
}

// extractFieldFromDetail extracts the column name from error detail.
// Input: `Key (email)=(test@mail.com) already exists.`
// Output: "email"
func extractFieldFromDetail(detail string) string {
	if detail == "" {
		return ""
	}
	start := strings.Index(detail, "(")
	end := strings.Index(detail, ")")
	if start >= 0 && end > start {
		return detail[start+1 : end]
	}
	return ""
}
