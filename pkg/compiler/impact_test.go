package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImpactManifest_AddDeduplicates(t *testing.T) {
	var m ImpactManifest
	m.Add("Contact", OpUpdate)
	m.Add("Company", OpInsert)
	m.Add("Contact", OpUpdate)
	m.Add("Contact", OpDelete)

	require.Len(t, m.Entries, 3)
	// first-seen order
	assert.Equal(t, Impact{Entity: "Contact", Operation: OpUpdate}, m.Entries[0])
	assert.Equal(t, Impact{Entity: "Company", Operation: OpInsert}, m.Entries[1])
	assert.Equal(t, Impact{Entity: "Contact", Operation: OpDelete}, m.Entries[2])
}

func TestImpactManifest_ToJSON(t *testing.T) {
	var m ImpactManifest
	m.Add("Contact", OpUpdate)

	out, err := m.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"entries":[{"entity":"Contact","operation":"update"}]}`, out)
}

func TestParseMutationResult(t *testing.T) {
	raw := []byte(`{
		"status": "error",
		"code": "not_a_lead",
		"message": "Contact is not a lead",
		"object_data": null,
		"updated_fields": [],
		"metadata": {"action": "qualify_lead"}
	}`)

	result, err := ParseMutationResult(raw)
	require.NoError(t, err)
	assert.False(t, result.IsSuccess())
	assert.Equal(t, "not_a_lead", result.Code)
	assert.Equal(t, "qualify_lead", result.Metadata["action"])
}

func TestResultTypeDDL(t *testing.T) {
	ddl := ResultTypeDDL()
	assert.Contains(t, ddl, "CREATE TYPE app.mutation_result AS (")
	assert.Contains(t, ddl, "updated_fields TEXT[]")
	// idempotent: re-running must not fail
	assert.Contains(t, ddl, "WHEN duplicate_object THEN NULL")
}
