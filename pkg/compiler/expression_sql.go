package compiler

import (
	"sort"
	"strings"
)

// Whitelisted functions and their result types. Anything else is an
// UnknownFunctionError at compile time.
var sqlFunctions = map[string]Type{
	"upper":    TypeText,
	"lower":    TypeText,
	"trim":     TypeText,
	"concat":   TypeText,
	"length":   TypeInt,
	"coalesce": TypeUnknown,
	"now":      TypeTimestamp,
	"abs":      TypeNumeric,
	"round":    TypeNumeric,
	"count":    TypeInt,
}

type fieldRenderMode int

const (
	// fieldAsRowLocal renders field refs against the loaded subject
	// row record: v_subject.status.
	fieldAsRowLocal fieldRenderMode = iota
	// fieldAsColumn renders bare column names, for WHERE clauses that
	// run against the table itself.
	fieldAsColumn
)

// exprEnv carries everything expression resolution and rendering need.
type exprEnv struct {
	schema *Schema
	// entity whose fields are addressable as bare identifiers;
	// nil when the action has no subject row loaded.
	entity     *Entity
	scope      *Scope
	mode       fieldRenderMode
	subjectVar string
}

// ============================================================
// RESOLUTION
// ============================================================

// resolveExpr classifies identifiers into field refs and variable refs
// and validates function names. Errors are collected, not fail-fast,
// so one pass reports everything.
func resolveExpr(e *Expr, env exprEnv) []error {
	if e == nil {
		return nil
	}
	var errs []error

	switch e.Kind {
	case ExprIdent:
		if b, ok := env.scope.Lookup(e.Text); ok {
			e.Kind = ExprVarRef
			e.Type = b.Type
			return nil
		}
		if env.entity != nil {
			if f := env.entity.GetField(e.Text); f != nil {
				e.Kind = ExprFieldRef
				e.Type = fieldLogicalType(f)
				return nil
			}
		}
		return []error{&UnresolvedIdentifierError{Name: e.Text}}

	case ExprPath:
		// The base must resolve; the member is looked up dynamically
		// (JSON access), so it cannot fail at compile time.
		errs = append(errs, resolveExpr(e.Base, env)...)
		e.Type = TypeText

	case ExprBinary:
		errs = append(errs, resolveExpr(e.Left, env)...)
		errs = append(errs, resolveExpr(e.Right, env)...)

	case ExprUnary:
		errs = append(errs, resolveExpr(e.Operand, env)...)

	case ExprCall:
		if _, ok := sqlFunctions[e.Text]; !ok {
			errs = append(errs, &UnknownFunctionError{Name: e.Text})
		}
		for _, arg := range e.Args {
			errs = append(errs, resolveExpr(arg, env)...)
		}

	case ExprList:
		for _, item := range e.Args {
			errs = append(errs, resolveExpr(item, env)...)
		}

	case ExprExists:
		target := env.schema.GetEntity(e.Entity)
		if target == nil {
			errs = append(errs, &UnknownEntityError{Entity: e.Entity})
			break
		}
		// Inside the subquery, bare identifiers address the target
		// entity's columns; outer variables stay visible.
		inner := env
		inner.entity = target
		inner.mode = fieldAsColumn
		errs = append(errs, resolveExpr(e.Where, inner)...)
	}

	return errs
}

// fieldLogicalType maps a schema field to the expression type system.
func fieldLogicalType(f *Field) Type {
	if f.Reference != "" {
		return TypeUUID
	}
	switch f.Type.Kind {
	case "UUID":
		return TypeUUID
	case "Int":
		return TypeInt
	case "Decimal":
		return TypeNumeric
	case "Bool":
		return TypeBool
	case "Timestamp":
		return TypeTimestamp
	case "Date":
		return TypeDate
	case "JSON":
		return TypeJSON
	default:
		return TypeText
	}
}

// InferType reports the type a resolved expression evaluates to.
func InferType(e *Expr, env exprEnv) Type {
	if e == nil {
		return TypeUnknown
	}
	switch e.Kind {
	case ExprLiteral, ExprFieldRef, ExprVarRef, ExprList, ExprExists:
		return e.Type
	case ExprPath:
		return TypeText
	case ExprUnary:
		if e.Op == "-" {
			return InferType(e.Operand, env)
		}
		return TypeBool
	case ExprBinary:
		switch e.Op {
		case "+", "-", "*", "/":
			lt := InferType(e.Left, env)
			if lt == TypeInt && InferType(e.Right, env) == TypeInt {
				return TypeInt
			}
			return TypeNumeric
		default:
			return TypeBool
		}
	case ExprCall:
		if t, ok := sqlFunctions[e.Text]; ok {
			if e.Text == "coalesce" && len(e.Args) > 0 {
				return InferType(e.Args[0], env)
			}
			return t
		}
	}
	return TypeUnknown
}

// ============================================================
// RENDERING
// ============================================================

var opPrecedence = map[string]int{
	"or": 1, "and": 2,
	"=": 3, "!=": 3, "<": 3, ">": 3, "<=": 3, ">=": 3, "like": 3, "in": 3,
	"+": 4, "-": 4,
	"*": 5, "/": 5,
}

// renderSQL emits the resolved expression as a PL/pgSQL fragment.
// Output is deterministic: it depends only on the tree and the env.
func renderSQL(e *Expr, env exprEnv) string {
	switch e.Kind {
	case ExprLiteral:
		return e.Text

	case ExprFieldRef:
		f := env.entity.GetField(e.Text)
		if env.mode == fieldAsColumn {
			return f.Column
		}
		return env.subjectVar + "." + f.Column

	case ExprVarRef:
		b, _ := env.scope.Lookup(e.Text)
		return b.SQLName

	case ExprPath:
		return "(" + renderJSONBase(e.Base, env) + " ->> '" + e.Member + "')"

	case ExprBinary:
		left := renderOperand(e.Left, e.Op, env)
		right := renderOperand(e.Right, e.Op, env)
		return left + " " + sqlOperator(e.Op) + " " + right

	case ExprUnary:
		switch e.Op {
		case "not":
			return "NOT " + renderOperand(e.Operand, "not", env)
		case "is null":
			return renderOperand(e.Operand, "not", env) + " IS NULL"
		case "is not null":
			return renderOperand(e.Operand, "not", env) + " IS NOT NULL"
		default: // unary minus
			return "-" + renderOperand(e.Operand, "not", env)
		}

	case ExprCall:
		args := make([]string, len(e.Args))
		for i, arg := range e.Args {
			args[i] = renderSQL(arg, env)
		}
		return e.Text + "(" + strings.Join(args, ", ") + ")"

	case ExprList:
		items := make([]string, len(e.Args))
		for i, item := range e.Args {
			items[i] = renderSQL(item, env)
		}
		return "(" + strings.Join(items, ", ") + ")"

	case ExprExists:
		target := env.schema.GetEntity(e.Entity)
		inner := env
		inner.entity = target
		inner.mode = fieldAsColumn
		where := renderSQL(e.Where, inner)
		if target.SoftDelete {
			where += " AND deleted_at IS NULL"
		}
		return "EXISTS (SELECT 1 FROM " + target.QualifiedTable() + " WHERE " + where + ")"
	}
	return ""
}

// renderSQLAsJSON renders an expression that must stay jsonb, so a
// trailing path hop uses -> instead of ->>. Needed when the consumer
// is jsonb-typed (foreach sources, json bindings).
func renderSQLAsJSON(e *Expr, env exprEnv) string {
	if e.Kind == ExprPath {
		return "(" + renderJSONBase(e.Base, env) + " -> '" + e.Member + "')"
	}
	return renderSQL(e, env)
}

// renderJSONBase renders the base of a path chain with -> so that
// intermediate hops stay jsonb: item.company.name →
// v_item -> 'company' ->> 'name'.
func renderJSONBase(e *Expr, env exprEnv) string {
	if e.Kind == ExprPath {
		return renderJSONBase(e.Base, env) + " -> '" + e.Member + "'"
	}
	return renderSQL(e, env)
}

// renderOperand parenthesizes nested operators that bind looser than
// the parent.
func renderOperand(e *Expr, parentOp string, env exprEnv) string {
	sql := renderSQL(e, env)
	if e.Kind != ExprBinary {
		return sql
	}
	parent, ok := opPrecedence[parentOp]
	if parentOp == "not" {
		parent = 3
		ok = true
	}
	child := opPrecedence[e.Op]
	if ok && (child < parent || (child == parent && e.Op != parentOp)) {
		return "(" + sql + ")"
	}
	return sql
}

func sqlOperator(op string) string {
	switch op {
	case "and":
		return "AND"
	case "or":
		return "OR"
	case "like":
		return "LIKE"
	case "in":
		return "IN"
	}
	return op
}

// FunctionNames returns the expression function whitelist, sorted.
func FunctionNames() []string {
	names := make([]string, 0, len(sqlFunctions))
	for name := range sqlFunctions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
