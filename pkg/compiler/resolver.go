package compiler

import "fmt"

// Reference assignments carry a public identifier (UUID or slug); the
// physical column stores the target's internal key. Resolution goes
// through the target's <schema>.<entity>_pk helper, which accepts
// either identity and returns NULL when nothing matches.

// lowerReference emits the resolution guard for one reference
// assignment and returns the fk variable holding the internal key, or
// "" when the reference target is unknown.
//
// Non-nullable references fail the whole action when resolution comes
// back NULL. Nullable references pass NULL through untouched and only
// fail when a non-NULL value does not resolve.
func (ctx *lowerCtx) lowerReference(f *Field, valueSQL, path string) string {
	target := ctx.c.schema.GetEntity(f.Reference)
	if target == nil {
		ctx.errorf(path, CodeUnknownEntity,
			"field '%s' references unknown entity '%s'", f.Name, f.Reference)
		return ""
	}

	// repeated assignments to the same reference share one variable
	fkVar, ok := ctx.fkVars[f.Column]
	if !ok {
		fkVar = ctx.uniqueVar("v_" + f.Column)
		ctx.fkVars[f.Column] = fkVar
		ctx.decls.add(fkVar + " BIGINT;")
	}

	helperArgs := "(" + valueSQL + ")::TEXT"
	if target.Tenant {
		helperArgs += ", auth_tenant_id"
	}
	assign := fmt.Sprintf("%s := %s(%s);", fkVar, target.PKHelper(), helperArgs)
	message := fmt.Sprintf("%s reference '%s' could not be resolved", target.Name, f.Name)

	if f.Nullable {
		ctx.emit("IF (%s) IS NOT NULL THEN", valueSQL)
		ctx.indent++
		ctx.emit("%s", assign)
		ctx.emitResolutionGuard(fkVar, message)
		ctx.indent--
		ctx.emit("ELSE")
		ctx.indent++
		ctx.emit("%s := NULL;", fkVar)
		ctx.indent--
		ctx.emit("END IF;")
		return fkVar
	}

	ctx.emit("%s", assign)
	ctx.emitResolutionGuard(fkVar, message)
	return fkVar
}

func (ctx *lowerCtx) emitResolutionGuard(fkVar, message string) {
	ctx.emit("IF %s IS NULL THEN", fkVar)
	ctx.indent++
	ctx.emitErrorReturn(ResultCodeReferenceFailed, message)
	ctx.indent--
	ctx.emit("END IF;")
}
