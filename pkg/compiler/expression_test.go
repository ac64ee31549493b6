package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subjectEnv(t *testing.T) exprEnv {
	t.Helper()
	schema := testSchema()
	scope := NewScope()
	scope.Bind("actor", Binding{SQLName: "auth_user_id", Type: TypeUUID})
	scope.Bind("tenant", Binding{SQLName: "auth_tenant_id", Type: TypeUUID})
	scope.Bind("input", Binding{SQLName: "input_payload", Type: TypeJSON})
	return exprEnv{
		schema:     schema,
		entity:     schema.GetEntity("Contact"),
		scope:      scope,
		mode:       fieldAsRowLocal,
		subjectVar: "v_subject",
	}
}

func mustRender(t *testing.T, raw string, env exprEnv) string {
	t.Helper()
	expr, err := ParseExpression(raw)
	require.NoError(t, err)
	errs := resolveExpr(expr, env)
	require.Empty(t, errs)
	return renderSQL(expr, env)
}

func TestRenderSQL(t *testing.T) {
	env := subjectEnv(t)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"field equality", "status = 'lead'", "v_subject.status = 'lead'"},
		{"quoted literal never resolves", "status = 'status'", "v_subject.status = 'status'"},
		{"escaped quote", "name = 'O''Brien'", "v_subject.name = 'O''Brien'"},
		{"boolean chain", "status = 'lead' and score >= 10", "v_subject.status = 'lead' AND v_subject.score >= 10"},
		{"or keeps sql precedence", "status = 'lead' or status = 'qualified' and score > 5",
			"v_subject.status = 'lead' OR v_subject.status = 'qualified' AND v_subject.score > 5"},
		{"not parenthesizes comparison", "not (status = 'lead')", "NOT (v_subject.status = 'lead')"},
		{"is null", "company is null", "v_subject.fk_company IS NULL"},
		{"is not null", "email is not null", "v_subject.email IS NOT NULL"},
		{"in list", "status in ('lead', 'qualified')", "v_subject.status IN ('lead', 'qualified')"},
		{"like", "email like '%@corp.com'", "v_subject.email LIKE '%@corp.com'"},
		{"arithmetic precedence", "score + 1 * 2", "v_subject.score + 1 * 2"},
		{"grouped arithmetic", "(score + 1) * 2", "(v_subject.score + 1) * 2"},
		{"unary minus", "-score", "-v_subject.score"},
		{"reserved binding", "actor is not null", "auth_user_id IS NOT NULL"},
		{"json path", "input.plan", "(input_payload ->> 'plan')"},
		{"nested json path", "input.billing.plan", "(input_payload -> 'billing' ->> 'plan')"},
		{"whitelisted function", "upper(email)", "upper(v_subject.email)"},
		{"nested call", "coalesce(score, 0) > 10", "coalesce(v_subject.score, 0) > 10"},
		{"case insensitive keywords", "status = 'lead' AND score > 1", "v_subject.status = 'lead' AND v_subject.score > 1"},
		{"null literal", "company = null", "v_subject.fk_company = NULL"},
		{"bool literal", "true", "true"},
		{"exists subquery", "exists(Company, industry = 'tech')",
			"EXISTS (SELECT 1 FROM crm.tb_company WHERE industry = 'tech')"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mustRender(t, tt.raw, env))
		})
	}
}

func TestRenderSQL_SoftDeleteGuardInExists(t *testing.T) {
	env := subjectEnv(t)
	// Contact carries soft deletes; its exists() subqueries exclude
	// deleted rows.
	got := mustRender(t, "exists(Contact, status = 'lead')", env)
	assert.Equal(t, "EXISTS (SELECT 1 FROM crm.tb_contact WHERE status = 'lead' AND deleted_at IS NULL)", got)
}

func TestRenderSQL_ColumnMode(t *testing.T) {
	env := subjectEnv(t)
	env.mode = fieldAsColumn

	assert.Equal(t, "status = 'lead'", mustRender(t, "status = 'lead'", env))
	assert.Equal(t, "fk_company IS NULL", mustRender(t, "company is null", env))
}

func TestParseExpression_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"unterminated string", "'unterminated"},
		{"dangling operator", "status ="},
		{"unbalanced paren", "(status = 'lead'"},
		{"bare bang", "status ! 'lead'"},
		{"is without null", "status is 'lead'"},
		{"in without list", "status in 'lead'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExpression(tt.raw)
			require.Error(t, err)
			var parseErr *ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestResolveExpr_Errors(t *testing.T) {
	env := subjectEnv(t)

	t.Run("unresolved identifier", func(t *testing.T) {
		expr, err := ParseExpression("status = pending")
		require.NoError(t, err)
		errs := resolveExpr(expr, env)
		require.Len(t, errs, 1)
		var unresolved *UnresolvedIdentifierError
		assert.ErrorAs(t, errs[0], &unresolved)
		assert.Equal(t, "pending", unresolved.Name)
	})

	t.Run("unknown function", func(t *testing.T) {
		expr, err := ParseExpression("sneaky_fn(email)")
		require.NoError(t, err)
		errs := resolveExpr(expr, env)
		require.Len(t, errs, 1)
		var unknownFn *UnknownFunctionError
		assert.ErrorAs(t, errs[0], &unknownFn)
	})

	t.Run("errors are batched", func(t *testing.T) {
		expr, err := ParseExpression("foo = bar and baz(1)")
		require.NoError(t, err)
		errs := resolveExpr(expr, env)
		assert.Len(t, errs, 3)
	})

	t.Run("exists with unknown entity", func(t *testing.T) {
		expr, err := ParseExpression("exists(Ghost, name = 'x')")
		require.NoError(t, err)
		errs := resolveExpr(expr, env)
		require.Len(t, errs, 1)
		var unknownEntity *UnknownEntityError
		assert.ErrorAs(t, errs[0], &unknownEntity)
	})
}

func TestInferType(t *testing.T) {
	env := subjectEnv(t)

	tests := []struct {
		raw  string
		want Type
	}{
		{"score", TypeInt},
		{"email", TypeText},
		{"score + 1", TypeInt},
		{"score + 1.5", TypeNumeric},
		{"score > 1", TypeBool},
		{"length(email)", TypeInt},
		{"coalesce(score, 0)", TypeInt},
		{"now()", TypeTimestamp},
		{"input.plan", TypeText},
		{"exists(Company, industry = 'tech')", TypeBool},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			expr, err := ParseExpression(tt.raw)
			require.NoError(t, err)
			require.Empty(t, resolveExpr(expr, env))
			assert.Equal(t, tt.want, InferType(expr, env))
		})
	}
}

func TestRenderSQLAsJSON(t *testing.T) {
	env := subjectEnv(t)

	expr, err := ParseExpression("input.items")
	require.NoError(t, err)
	require.Empty(t, resolveExpr(expr, env))

	// trailing hop stays jsonb instead of extracting text
	assert.Equal(t, "(input_payload -> 'items')", renderSQLAsJSON(expr, env))
	assert.Equal(t, "(input_payload ->> 'items')", renderSQL(expr, env))
}
