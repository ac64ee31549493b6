package compiler

import (
	"fmt"
	"regexp"
	"strings"
)

// ============================================================
// STEP LOWERING
// ============================================================

// lowerSteps lowers one sibling sequence. A Return step terminates the
// sequence unconditionally: trailing siblings are reported as dead
// code and not lowered.
func (ctx *lowerCtx) lowerSteps(steps []Step, pathPrefix string) {
	for i, step := range steps {
		path := fmt.Sprintf("%s[%d]", pathPrefix, i)
		ctx.lowerStep(step, path)
		if step.Kind == StepReturn && i+1 < len(steps) {
			ctx.warnf(fmt.Sprintf("%s[%d]", pathPrefix, i+1), CodeDeadCode,
				"unreachable: the return at %s always exits", path)
			return
		}
	}
}

func (ctx *lowerCtx) lowerStep(step Step, path string) {
	switch step.Kind {
	case StepValidate:
		ctx.lowerValidate(step, path)
	case StepInsert:
		ctx.lowerInsert(step, path)
	case StepUpdate:
		ctx.lowerUpdate(step, path)
	case StepDelete:
		ctx.lowerDelete(step, path)
	case StepCall:
		ctx.lowerCall(step, path)
	case StepNotify:
		ctx.lowerNotify(step, path)
	case StepIf:
		ctx.lowerIf(step, path)
	case StepForeach:
		ctx.lowerForeach(step, path)
	case StepReturn:
		ctx.lowerReturn(step, path)
	case StepRefresh:
		ctx.lowerRefresh(step, path)
	default:
		ctx.errorf(path, CodeInvalidStep, "unsupported step kind %s", step.Kind)
	}
}

// stepEntity resolves a step's target entity, defaulting to the
// action's subject.
func (ctx *lowerCtx) stepEntity(step Step, path string) *Entity {
	name := step.Entity
	if name == "" {
		name = ctx.subject.Name
	}
	entity := ctx.c.schema.GetEntity(name)
	if entity == nil {
		ctx.errorf(path, CodeUnknownEntity, "unknown entity '%s'", name)
	}
	return entity
}

// emitErrorReturn writes the canonical error exit: populate the result
// and leave. The surrounding transaction is rolled back by the runner.
func (ctx *lowerCtx) emitErrorReturn(code, message string) {
	ctx.emit("v_result.status := 'error';")
	ctx.emit("v_result.code := %s;", quoteLiteral(code))
	ctx.emit("v_result.message := %s;", quoteLiteral(message))
	ctx.emit("RETURN v_result;")
}

// ============================================================
// VALIDATE
// ============================================================

func (ctx *lowerCtx) lowerValidate(step Step, path string) {
	if step.Condition == "" {
		ctx.errorf(path, CodeInvalidStep, "validate step has no condition")
		return
	}
	cond, _, ok := ctx.compileExpr(step.Condition, path, ctx.env())
	if !ok {
		return
	}
	code := step.ErrorCode
	if code == "" {
		code = "validation_failed"
	}
	message := step.Message
	if message == "" {
		message = "validation failed: " + code
	}
	ctx.emit("IF NOT (%s) THEN", cond)
	ctx.indent++
	ctx.emitErrorReturn(code, message)
	ctx.indent--
	ctx.emit("END IF;")
}

// ============================================================
// ASSIGNMENTS (shared by insert and update)
// ============================================================

type colAssign struct {
	field  string
	column string
	value  string
}

// lowerAssignments resolves each author assignment to a physical
// column and a rendered value. Assignments to audit-managed fields are
// discarded with a warning: the compiler owns those columns and its
// injected values always win.
func (ctx *lowerCtx) lowerAssignments(set Assignments, entity *Entity, path string) []colAssign {
	out := make([]colAssign, 0, len(set))
	for _, a := range set {
		f := entity.GetField(a.Field)
		if f == nil {
			err := &UnknownFieldError{Entity: entity.Name, Field: a.Field, Available: entity.FieldNames()}
			ctx.errorf(path, CodeUnknownField, "%s", err.Error())
			continue
		}
		if f.AuditManaged {
			ctx.warnf(path, CodeDuplicateAudit,
				"assignment to audit-managed field '%s' is ignored; the injected value wins", a.Field)
			continue
		}
		value, _, ok := ctx.compileExpr(a.Value, path, ctx.env())
		if !ok {
			continue
		}
		if f.Reference != "" {
			value = ctx.lowerReference(f, value, path)
			if value == "" {
				continue
			}
		}
		out = append(out, colAssign{field: a.Field, column: f.Column, value: value})
	}
	return out
}

// ============================================================
// INSERT
// ============================================================

func (ctx *lowerCtx) lowerInsert(step Step, path string) {
	entity := ctx.stepEntity(step, path)
	if entity == nil {
		return
	}
	assigns := ctx.lowerAssignments(step.Set, entity, path)

	stem := step.BindAs
	if stem == "" {
		stem = ctx.freshName("row")
	}
	idVar := ctx.uniqueVar("v_" + stem + "_id")
	pkVar := ctx.uniqueVar("v_" + stem + "_pk")
	ctx.decls.add(idVar + " UUID;")
	ctx.decls.add(pkVar + " BIGINT;")

	columns := []string{"id"}
	values := []string{idVar}
	if entity.Tenant {
		columns = append(columns, "tenant_id")
		values = append(values, "auth_tenant_id")
	}
	for _, a := range assigns {
		columns = append(columns, a.column)
		values = append(values, a.value)
	}
	columns = append(columns, "created_at", "created_by")
	values = append(values, "now()", "auth_user_id")

	ctx.emit("%s := gen_random_uuid();", idVar)
	ctx.emit("INSERT INTO %s (%s)", entity.QualifiedTable(), strings.Join(columns, ", "))
	ctx.emit("VALUES (%s)", strings.Join(values, ", "))
	ctx.emit("RETURNING %s INTO %s;", entity.PKColumn(), pkVar)

	if step.BindAs != "" {
		ctx.scope.Bind(step.BindAs, Binding{SQLName: idVar, Type: TypeUUID, Origin: "insert"})
	}
	ctx.impact.Add(entity.Name, OpInsert)
}

// ============================================================
// UPDATE
// ============================================================

func (ctx *lowerCtx) lowerUpdate(step Step, path string) {
	entity := ctx.stepEntity(step, path)
	if entity == nil {
		return
	}
	assigns := ctx.lowerAssignments(step.Set, entity, path)
	if len(step.Set) == 0 {
		ctx.errorf(path, CodeInvalidStep, "update step assigns no fields")
		return
	}
	where, ok := ctx.mutationWhere(step, entity, path, "update")
	if !ok {
		return
	}

	ctx.emit("UPDATE %s", entity.QualifiedTable())
	for i, a := range assigns {
		prefix := "SET "
		if i > 0 {
			prefix = "    "
		}
		ctx.emit("%s%s = %s,", prefix, a.column, a.value)
	}
	lead := "    "
	if len(assigns) == 0 {
		lead = "SET "
	}
	ctx.emit("%supdated_at = now(),", lead)
	ctx.emit("    updated_by = auth_user_id")
	ctx.emit("WHERE %s;", where)

	if ctx.isSubjectMutation(step, entity) && len(assigns) > 0 {
		quoted := make([]string, len(assigns))
		for i, a := range assigns {
			quoted[i] = quoteLiteral(a.field)
		}
		ctx.emit("v_result.updated_fields := v_result.updated_fields || ARRAY[%s];", strings.Join(quoted, ", "))
	}
	ctx.impact.Add(entity.Name, OpUpdate)
}

// ============================================================
// DELETE
// ============================================================

func (ctx *lowerCtx) lowerDelete(step Step, path string) {
	entity := ctx.stepEntity(step, path)
	if entity == nil {
		return
	}
	where, ok := ctx.mutationWhere(step, entity, path, "delete")
	if !ok {
		return
	}

	if step.Hard || !entity.SoftDelete {
		ctx.emit("DELETE FROM %s", entity.QualifiedTable())
		ctx.emit("WHERE %s;", where)
	} else {
		ctx.emit("UPDATE %s", entity.QualifiedTable())
		ctx.emit("SET deleted_at = now(),")
		ctx.emit("    deleted_by = auth_user_id,")
		ctx.emit("    updated_at = now(),")
		ctx.emit("    updated_by = auth_user_id")
		ctx.emit("WHERE %s", where)
		ctx.emit("  AND deleted_at IS NULL;")
	}
	ctx.impact.Add(entity.Name, OpDelete)
}

// isSubjectMutation reports whether a mutation step operates on the
// action's own subject row.
func (ctx *lowerCtx) isSubjectMutation(step Step, entity *Entity) bool {
	return entity.Name == ctx.subject.Name && !step.Widen
}

// mutationWhere builds the WHERE clause for update and delete steps.
// Subject mutations are implicitly narrowed to the subject row; any
// wider reach requires both the widen flag and an explicit filter.
func (ctx *lowerCtx) mutationWhere(step Step, entity *Entity, path, verb string) (string, bool) {
	filterEnv := ctx.env()
	filterEnv.entity = entity
	filterEnv.mode = fieldAsColumn

	var filter string
	if step.Filter != "" {
		sql, _, ok := ctx.compileExpr(step.Filter, path, filterEnv)
		if !ok {
			return "", false
		}
		filter = sql
	}

	if ctx.isSubjectMutation(step, entity) {
		where := entity.PKColumn() + " = v_subject_pk"
		if filter != "" {
			where += " AND (" + filter + ")"
		}
		return where, true
	}

	if filter == "" {
		err := &InvalidFilterError{Entity: entity.Name,
			Reason: verb + " beyond the subject row requires an explicit filter"}
		ctx.errorf(path, CodeInvalidFilter, "%s", err.Error())
		return "", false
	}
	return filter, true
}

// ============================================================
// CALL
// ============================================================

var callTargetPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)?$`)

func (ctx *lowerCtx) lowerCall(step Step, path string) {
	if !callTargetPattern.MatchString(step.Target) {
		ctx.errorf(path, CodeInvalidStep, "invalid call target '%s'", step.Target)
		return
	}
	args := make([]string, 0, len(step.Args))
	allOK := true
	for _, raw := range step.Args {
		sql, _, ok := ctx.compileExpr(raw, path, ctx.env())
		if !ok {
			allOK = false
			continue
		}
		args = append(args, sql)
	}
	if !allOK {
		return
	}
	call := step.Target + "(" + strings.Join(args, ", ") + ")"

	if step.BindAs == "" {
		ctx.emit("PERFORM %s;", call)
		return
	}
	bindVar := ctx.uniqueVar("v_" + step.BindAs)
	ctx.decls.add(bindVar + " JSONB;")
	ctx.emit("SELECT to_jsonb(%s) INTO %s;", call, bindVar)
	ctx.scope.Bind(step.BindAs, Binding{SQLName: bindVar, Type: TypeJSON, Origin: "call"})
}

// ============================================================
// NOTIFY
// ============================================================

func (ctx *lowerCtx) lowerNotify(step Step, path string) {
	if step.Channel == "" {
		ctx.errorf(path, CodeInvalidStep, "notify step has no channel")
		return
	}
	payload := "''"
	if step.Payload != "" {
		sql, _, ok := ctx.compileExpr(step.Payload, path, ctx.env())
		if !ok {
			return
		}
		payload = "(" + sql + ")::TEXT"
	}
	ctx.emit("PERFORM pg_notify(%s, %s);", quoteLiteral(step.Channel), payload)
}

// ============================================================
// IF
// ============================================================

// Branches of a conditional share the parent frame: a binding made in
// a branch stays visible afterwards (conditionally NULL), matching the
// flat DECLARE section of the emitted procedure.
func (ctx *lowerCtx) lowerIf(step Step, path string) {
	if step.Condition == "" {
		ctx.errorf(path, CodeInvalidStep, "if step has no condition")
		return
	}
	cond, _, ok := ctx.compileExpr(step.Condition, path, ctx.env())
	if !ok {
		return
	}
	ctx.emit("IF %s THEN", cond)
	ctx.indent++
	ctx.lowerSteps(step.Then, path+".then")
	ctx.indent--
	if len(step.Else) > 0 {
		ctx.emit("ELSE")
		ctx.indent++
		ctx.lowerSteps(step.Else, path+".else")
		ctx.indent--
	}
	ctx.emit("END IF;")
}

// ============================================================
// FOREACH
// ============================================================

func (ctx *lowerCtx) lowerForeach(step Step, path string) {
	if step.Item == "" {
		ctx.errorf(path, CodeInvalidStep, "foreach step names no item variable")
		return
	}
	env := ctx.env()
	_, srcExpr, ok := ctx.compileExpr(step.Source, path, env)
	if !ok {
		return
	}
	if srcExpr.Kind != ExprPath {
		switch InferType(srcExpr, env) {
		case TypeJSON, TypeList, TypeUnknown:
		default:
			ctx.errorf(path, CodeInvalidStep, "foreach source must be a list or json array")
			return
		}
	}
	source := renderSQLAsJSON(srcExpr, env)

	// Each loop claims its own variable: nested loops reusing an item
	// name must not clobber the outer binding at runtime.
	itemVar := ctx.uniqueVar("v_" + step.Item)
	ctx.decls.add(itemVar + " JSONB;")

	// Body bindings live in a child frame: visible inside, gone after.
	ctx.scope.Push()
	ctx.scope.Bind(step.Item, Binding{SQLName: itemVar, Type: TypeJSON, Origin: "foreach"})
	ctx.emit("FOR %s IN SELECT value FROM jsonb_array_elements(%s) LOOP", itemVar, source)
	ctx.indent++
	ctx.lowerSteps(step.Body, path+".body")
	ctx.indent--
	ctx.emit("END LOOP;")
	ctx.scope.Pop()
}

// ============================================================
// RETURN
// ============================================================

func (ctx *lowerCtx) lowerReturn(step Step, path string) {
	if step.Value != "" {
		value, _, ok := ctx.compileExpr(step.Value, path, ctx.env())
		if !ok {
			return
		}
		ctx.emit("v_result.object_data := to_jsonb(%s);", value)
	}
	ctx.emit("RETURN v_result;")
}

// ============================================================
// REFRESH
// ============================================================

func (ctx *lowerCtx) lowerRefresh(step Step, path string) {
	if step.Projection == "" {
		ctx.errorf(path, CodeInvalidStep, "refresh step names no projection")
		return
	}
	propagate := "ARRAY[]::TEXT[]"
	if len(step.PropagateTo) > 0 {
		quoted := make([]string, len(step.PropagateTo))
		for i, name := range step.PropagateTo {
			quoted[i] = quoteLiteral(name)
		}
		propagate = "ARRAY[" + strings.Join(quoted, ", ") + "]"
	}
	ctx.emit("PERFORM app.refresh_table_view(%s, %s);", quoteLiteral(step.Projection), propagate)
}
