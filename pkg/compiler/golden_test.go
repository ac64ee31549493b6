package compiler

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

// Golden fixtures pin the complete emitted SQL: any byte of drift in
// the envelope, the lowering, or the audit injection shows up as a
// diff. Regenerate with `go test -update` after intentional changes.
func TestGolden_QualifyLead(t *testing.T) {
	comp := New(testSchema())

	proc, diags := comp.Compile(qualifyLeadAction())
	require.NotNil(t, proc, "diagnostics: %s", diags)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "qualify_lead", []byte(proc.SQL))
}

func TestGolden_CreateCompany(t *testing.T) {
	comp := New(testSchema())

	action := &ActionDefinition{
		Name:   "create_company",
		Entity: "Company",
		Params: []Param{{Name: "name", Type: "text", Required: true}},
		Steps: []Step{
			{Kind: StepInsert, Entity: "Company", Set: Assignments{{Field: "name", Value: "name"}}, BindAs: "company"},
			{Kind: StepNotify, Channel: "company_events", Payload: "concat('created:', company)"},
		},
	}

	proc, diags := comp.Compile(action)
	require.NotNil(t, proc, "diagnostics: %s", diags)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "create_company", []byte(proc.SQL))
}
