package compiler

import (
	"fmt"
	"strings"
)

// assemble wraps the lowered body in the procedure envelope: signature,
// declarations, result initialization, payload coercion, subject row
// load, and the exception normalization that keeps the result contract
// airtight. PL/pgSQL gives the atomicity for free: an exception unwinds
// every mutation made inside the block before the handler runs.
func (c *Compiler) assemble(ctx *lowerCtx) string {
	action := ctx.action
	subject := ctx.subject
	var b strings.Builder

	// ---- signature
	var params []string
	if ctx.hasSubject {
		params = append(params, fmt.Sprintf("p_%s_id UUID", snakeCase(subject.Name)))
	}
	params = append(params,
		"input_payload JSONB DEFAULT '{}'::jsonb",
		"auth_tenant_id UUID DEFAULT NULL",
		"auth_user_id UUID DEFAULT NULL",
	)
	fmt.Fprintf(&b, "CREATE OR REPLACE FUNCTION %s.%s(\n", subject.Schema, action.Name)
	for i, p := range params {
		sep := ","
		if i == len(params)-1 {
			sep = ""
		}
		fmt.Fprintf(&b, "    %s%s\n", p, sep)
	}
	b.WriteString(")\nRETURNS app.mutation_result\nLANGUAGE plpgsql\nAS $function$\n")

	// ---- declarations
	b.WriteString("DECLARE\n")
	b.WriteString("    v_result app.mutation_result;\n")
	if ctx.hasSubject {
		b.WriteString("    v_subject_pk BIGINT;\n")
		fmt.Fprintf(&b, "    v_subject %s%%ROWTYPE;\n", subject.QualifiedTable())
	}
	for _, line := range ctx.decls.lines {
		b.WriteString("    " + line + "\n")
	}
	b.WriteString("BEGIN\n")

	// ---- result initialization
	b.WriteString("    v_result.status := 'success';\n")
	b.WriteString("    v_result.code := 'ok';\n")
	fmt.Fprintf(&b, "    v_result.message := %s;\n", quoteLiteral(action.Name+" completed"))
	b.WriteString("    v_result.updated_fields := ARRAY[]::TEXT[];\n")
	fmt.Fprintf(&b, "    v_result.metadata := jsonb_build_object('action', %s);\n", quoteLiteral(action.Name))

	// ---- typed payload extraction
	if len(action.Params) > 0 {
		b.WriteString("\n    BEGIN\n")
		for _, p := range action.Params {
			b.WriteString("        " + paramCoercion(p) + "\n")
		}
		b.WriteString("    EXCEPTION WHEN OTHERS THEN\n")
		b.WriteString("        v_result.status := 'error';\n")
		fmt.Fprintf(&b, "        v_result.code := %s;\n", quoteLiteral(ResultCodeTypeCoercionFailed))
		b.WriteString("        v_result.message := 'invalid input payload: ' || SQLERRM;\n")
		b.WriteString("        RETURN v_result;\n")
		b.WriteString("    END;\n")
		for _, p := range action.Params {
			if !p.Required {
				continue
			}
			fmt.Fprintf(&b, "    IF v_param_%s IS NULL THEN\n", p.Name)
			b.WriteString("        v_result.status := 'error';\n")
			fmt.Fprintf(&b, "        v_result.code := %s;\n", quoteLiteral(ResultCodeRequiredParam))
			fmt.Fprintf(&b, "        v_result.message := %s;\n",
				quoteLiteral(fmt.Sprintf("required param '%s' is missing", p.Name)))
			b.WriteString("        RETURN v_result;\n")
			b.WriteString("    END IF;\n")
		}
	}

	// ---- subject row load
	if ctx.hasSubject {
		helperArgs := fmt.Sprintf("p_%s_id::TEXT", snakeCase(subject.Name))
		if subject.Tenant {
			helperArgs += ", auth_tenant_id"
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "    v_subject_pk := %s(%s);\n", subject.PKHelper(), helperArgs)
		b.WriteString("    IF v_subject_pk IS NULL THEN\n")
		b.WriteString("        v_result.status := 'error';\n")
		fmt.Fprintf(&b, "        v_result.code := %s;\n", quoteLiteral(ResultCodeNotFound))
		fmt.Fprintf(&b, "        v_result.message := %s;\n", quoteLiteral(subject.Name+" not found"))
		b.WriteString("        RETURN v_result;\n")
		b.WriteString("    END IF;\n")
		fmt.Fprintf(&b, "    SELECT * INTO v_subject FROM %s WHERE %s = v_subject_pk;\n",
			subject.QualifiedTable(), subject.PKColumn())
	}

	// ---- lowered steps
	if len(ctx.lines) > 0 {
		b.WriteString("\n")
		for _, line := range ctx.lines {
			b.WriteString(line + "\n")
		}
	}

	// ---- fall-through success
	b.WriteString("\n")
	if ctx.hasSubject {
		fmt.Fprintf(&b, "    SELECT to_jsonb(t) INTO v_result.object_data FROM %s t WHERE %s = v_subject_pk;\n",
			subject.QualifiedTable(), subject.PKColumn())
	}
	b.WriteString("    RETURN v_result;\n")

	// ---- exception normalization
	b.WriteString("EXCEPTION\n")
	writeHandler := func(when, code string) {
		fmt.Fprintf(&b, "    WHEN %s THEN\n", when)
		b.WriteString("        v_result.status := 'error';\n")
		fmt.Fprintf(&b, "        v_result.code := %s;\n", quoteLiteral(code))
		b.WriteString("        v_result.message := SQLERRM;\n")
		b.WriteString("        RETURN v_result;\n")
	}
	writeHandler("unique_violation", ResultCodeUniqueViolated)
	writeHandler("foreign_key_violation", ResultCodeReferenceFailed)
	writeHandler("OTHERS", ResultCodeEngineError)
	b.WriteString("END;\n$function$;\n")

	return b.String()
}
