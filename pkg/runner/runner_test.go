package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionString(t *testing.T) {
	config := DefaultConfig()
	config.Database = "crm"
	config.User = "app"
	config.Password = "secret"

	got := config.ConnectionString()
	assert.Equal(t, "host=localhost port=5432 dbname=crm user=app password=secret sslmode=disable", got)
}

func TestConnectionString_URLWins(t *testing.T) {
	config := DefaultConfig()
	config.DatabaseURL = "postgresql://app:secret@db:5432/crm"

	assert.Equal(t, "postgresql://app:secret@db:5432/crm", config.ConnectionString())
}

func TestInvoke_RequiresConnection(t *testing.T) {
	r := New(DefaultConfig())

	_, err := r.Invoke(context.Background(), Invocation{Procedure: "crm.qualify_lead"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestProcedurePattern(t *testing.T) {
	names := []string{
		"qualify_lead",                 // missing schema
		"crm.qualify_lead; DROP TABLE", // injection attempt
		"CRM.QualifyLead",              // compiled names are lowercase
		"crm.qualify lead",             // whitespace
	}
	for _, name := range names {
		assert.False(t, procedurePattern.MatchString(name), "pattern should reject %q", name)
	}
	assert.True(t, procedurePattern.MatchString("crm.qualify_lead"))
	assert.True(t, procedurePattern.MatchString("app.create_company_v2"))
}

func TestPing_RequiresConnection(t *testing.T) {
	r := New(DefaultConfig())
	assert.Error(t, r.Ping(context.Background()))
	assert.False(t, r.IsConnected())
}
