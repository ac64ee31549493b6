package compiler

import (
	"fmt"
	"strings"
)

// Compiler lowers action definitions into PL/pgSQL procedures.
//
// Compilation is a pure, synchronous transformation over the immutable
// action AST and schema metadata: the same inputs always produce
// byte-identical output, so results are cacheable by AST identity and
// safe to compile concurrently for independent actions.
type Compiler struct {
	schema *Schema
}

// New creates a compiler over the given schema metadata.
func New(schema *Schema) *Compiler {
	return &Compiler{schema: schema}
}

// Procedure is the compiled artifact for one action.
type Procedure struct {
	// Name is the schema-qualified function name.
	Name string
	// SQL is the complete CREATE OR REPLACE FUNCTION statement.
	SQL string
	// Impact lists the (entity, operation) pairs this action may
	// perform; static per action, used for cache invalidation.
	Impact ImpactManifest
}

// Compile lowers one action. On any error-severity diagnostic no
// procedure is emitted; warnings accompany a successful result.
func (c *Compiler) Compile(action *ActionDefinition) (*Procedure, Diagnostics) {
	ctx := &lowerCtx{
		c:      c,
		action: action,
		scope:  NewScope(),
		decls:  newDeclSet(),
		// envelope variables are taken before any author name is
		names:  map[string]bool{"v_result": true, "v_subject": true, "v_subject_pk": true},
		fkVars: make(map[string]string),
	}

	subject := c.schema.GetEntity(action.Entity)
	if subject == nil {
		ctx.errorf("", CodeUnknownEntity, "action targets unknown entity '%s'", action.Entity)
		return nil, ctx.diags
	}
	ctx.subject = subject
	ctx.hasSubject = actionNeedsSubject(action, subject)

	// Reserved bindings: the implicit actor/tenant identity and the
	// free-form input payload, threaded explicitly (never global).
	ctx.scope.Bind("actor", Binding{SQLName: "auth_user_id", Type: TypeUUID, Origin: "implicit"})
	ctx.scope.Bind("tenant", Binding{SQLName: "auth_tenant_id", Type: TypeUUID, Origin: "implicit"})
	ctx.scope.Bind("input", Binding{SQLName: "input_payload", Type: TypeJSON, Origin: "implicit"})

	for _, p := range action.Params {
		ctx.scope.Bind(p.Name, Binding{
			SQLName: "v_param_" + p.Name,
			Type:    paramLogicalType(p.Type),
			Origin:  "param",
		})
		ctx.names["v_param_"+p.Name] = true
		ctx.decls.add("v_param_" + p.Name + " " + paramSQLType(p.Type) + ";")
	}

	ctx.lowerSteps(action.Steps, "steps")

	if ctx.diags.HasErrors() {
		return nil, ctx.diags
	}

	proc := &Procedure{
		Name:   subject.Schema + "." + action.Name,
		Impact: ctx.impact,
	}
	proc.SQL = c.assemble(ctx)
	return proc, ctx.diags
}

// ============================================================
// LOWERING CONTEXT
// ============================================================

type lowerCtx struct {
	c          *Compiler
	action     *ActionDefinition
	subject    *Entity
	hasSubject bool
	scope      *Scope
	impact     ImpactManifest
	diags      Diagnostics
	decls      *declSet
	// names tracks every declared SQL variable so author-chosen
	// bindings can never collide with envelope variables or with each
	// other; fkVars maps a reference column to its resolved variable
	// for reuse across assignments.
	names  map[string]bool
	fkVars map[string]string
	lines  []string
	indent int
	seq    int
}

// emit appends one body line at the current nesting depth. The body
// itself sits one level inside BEGIN.
func (ctx *lowerCtx) emit(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	if line == "" {
		ctx.lines = append(ctx.lines, "")
		return
	}
	ctx.lines = append(ctx.lines, strings.Repeat("    ", 1+ctx.indent)+line)
}

func (ctx *lowerCtx) errorf(path, code, format string, args ...interface{}) {
	ctx.diags = append(ctx.diags, Diagnostic{
		Severity: SeverityError,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Path:     path,
	})
}

func (ctx *lowerCtx) warnf(path, code, format string, args ...interface{}) {
	ctx.diags = append(ctx.diags, Diagnostic{
		Severity: SeverityWarning,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Path:     path,
	})
}

// addErrs converts typed resolution errors into located diagnostics.
func (ctx *lowerCtx) addErrs(path string, errs []error) bool {
	for _, err := range errs {
		ctx.errorf(path, diagCode(err), "%s", err.Error())
	}
	return len(errs) > 0
}

// env returns the expression environment for the current scope.
func (ctx *lowerCtx) env() exprEnv {
	entity := ctx.subject
	if !ctx.hasSubject {
		entity = nil
	}
	return exprEnv{
		schema:     ctx.c.schema,
		entity:     entity,
		scope:      ctx.scope,
		mode:       fieldAsRowLocal,
		subjectVar: "v_subject",
	}
}

// compileExpr parses, resolves and renders one raw expression; on
// failure it reports diagnostics and returns ok=false.
func (ctx *lowerCtx) compileExpr(raw, path string, env exprEnv) (sql string, expr *Expr, ok bool) {
	parsed, err := ParseExpression(raw)
	if err != nil {
		ctx.errorf(path, diagCode(err), "%s", err.Error())
		return "", nil, false
	}
	if ctx.addErrs(path, resolveExpr(parsed, env)) {
		return "", nil, false
	}
	return renderSQL(parsed, env), parsed, true
}

// freshName returns a deterministic generated variable stem.
func (ctx *lowerCtx) freshName(stem string) string {
	ctx.seq++
	return fmt.Sprintf("%s%d", stem, ctx.seq)
}

// uniqueVar claims an unused SQL variable name, suffixing on collision.
// Names are claimed in document order, so output stays deterministic.
func (ctx *lowerCtx) uniqueVar(base string) string {
	name := base
	for n := 2; ctx.names[name]; n++ {
		name = fmt.Sprintf("%s_%d", base, n)
	}
	ctx.names[name] = true
	return name
}

// ============================================================
// DECLARATIONS
// ============================================================

// declSet keeps DECLARE lines unique in first-use order so repeated
// resolution of the same reference field reuses one variable.
type declSet struct {
	lines []string
	seen  map[string]bool
}

func newDeclSet() *declSet {
	return &declSet{seen: make(map[string]bool)}
}

func (d *declSet) add(line string) {
	if d.seen[line] {
		return
	}
	d.seen[line] = true
	d.lines = append(d.lines, line)
}

// ============================================================
// SUBJECT DETECTION
// ============================================================

// actionNeedsSubject decides whether the procedure takes the implicit
// subject-row identifier parameter: it does when any step mutates the
// subject entity in place, or any expression reads a subject field.
func actionNeedsSubject(action *ActionDefinition, subject *Entity) bool {
	bound := map[string]bool{"actor": true, "tenant": true, "input": true}
	for _, p := range action.Params {
		bound[p.Name] = true
	}
	return stepsNeedSubject(action.Steps, subject, bound)
}

func stepsNeedSubject(steps []Step, subject *Entity, bound map[string]bool) bool {
	for _, step := range steps {
		switch step.Kind {
		case StepUpdate, StepDelete:
			// widened mutations address rows by filter, not by the
			// subject identifier
			if (step.Entity == "" || step.Entity == subject.Name) && !step.Widen {
				return true
			}
		}
		for _, raw := range stepExpressions(step) {
			if exprReadsSubjectField(raw, subject, bound) {
				return true
			}
		}
		childBound := bound
		if step.Kind == StepForeach && step.Item != "" {
			childBound = make(map[string]bool, len(bound)+1)
			for k := range bound {
				childBound[k] = true
			}
			childBound[step.Item] = true
		}
		if stepsNeedSubject(step.Then, subject, bound) ||
			stepsNeedSubject(step.Else, subject, bound) ||
			stepsNeedSubject(step.Body, subject, childBound) {
			return true
		}
	}
	return false
}

// stepExpressions lists the raw expressions a step carries that
// evaluate against the subject row. Filters are excluded: they render
// in column mode against the target table, never against v_subject.
func stepExpressions(step Step) []string {
	var raws []string
	appendIf := func(raw string) {
		if raw != "" {
			raws = append(raws, raw)
		}
	}
	appendIf(step.Condition)
	appendIf(step.Source)
	appendIf(step.Payload)
	appendIf(step.Value)
	for _, a := range step.Set {
		appendIf(a.Value)
	}
	raws = append(raws, step.Args...)
	return raws
}

func exprReadsSubjectField(raw string, subject *Entity, bound map[string]bool) bool {
	expr, err := ParseExpression(raw)
	if err != nil {
		return false
	}
	found := false
	walkIdents(expr, func(name string) {
		if !bound[name] && subject.GetField(name) != nil {
			found = true
		}
	})
	return found
}

// walkIdents visits unclassified identifiers, skipping path members
// and exists() subqueries (whose identifiers address the target
// entity, not the subject).
func walkIdents(e *Expr, visit func(string)) {
	if e == nil {
		return
	}
	switch e.Kind {
	case ExprIdent:
		visit(e.Text)
	case ExprPath:
		walkIdents(e.Base, visit)
	case ExprBinary:
		walkIdents(e.Left, visit)
		walkIdents(e.Right, visit)
	case ExprUnary:
		walkIdents(e.Operand, visit)
	case ExprCall, ExprList:
		for _, arg := range e.Args {
			walkIdents(arg, visit)
		}
	}
}

// ============================================================
// PARAM TYPES
// ============================================================

func paramLogicalType(t string) Type {
	switch t {
	case "int":
		return TypeInt
	case "decimal":
		return TypeNumeric
	case "bool":
		return TypeBool
	case "timestamp":
		return TypeTimestamp
	case "date":
		return TypeDate
	case "uuid":
		return TypeUUID
	case "json", "list":
		return TypeJSON
	default:
		return TypeText
	}
}

func paramSQLType(t string) string {
	switch t {
	case "int":
		return "INTEGER"
	case "decimal":
		return "NUMERIC"
	case "bool":
		return "BOOLEAN"
	case "timestamp":
		return "TIMESTAMPTZ"
	case "date":
		return "DATE"
	case "uuid":
		return "UUID"
	case "json", "list":
		return "JSONB"
	default:
		return "TEXT"
	}
}

// paramCoercion renders the typed extraction of one declared parameter
// from the free-form payload. Cast failures are normalized to a
// type_coercion_failed error result by the surrounding block.
func paramCoercion(p Param) string {
	switch p.Type {
	case "json", "list":
		return fmt.Sprintf("v_param_%s := input_payload -> '%s';", p.Name, p.Name)
	case "text", "":
		return fmt.Sprintf("v_param_%s := input_payload ->> '%s';", p.Name, p.Name)
	default:
		return fmt.Sprintf("v_param_%s := (input_payload ->> '%s')::%s;", p.Name, p.Name, paramSQLType(p.Type))
	}
}
