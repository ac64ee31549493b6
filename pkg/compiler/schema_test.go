package compiler

import (
	"testing"
)

func TestTrinityNaming(t *testing.T) {
	entity := &Entity{Name: "OrderItem", Schema: "sales"}

	if got := entity.TableName(); got != "tb_order_item" {
		t.Errorf("TableName: expected tb_order_item, got %s", got)
	}
	if got := entity.QualifiedTable(); got != "sales.tb_order_item" {
		t.Errorf("QualifiedTable: expected sales.tb_order_item, got %s", got)
	}
	if got := entity.PKColumn(); got != "pk_order_item" {
		t.Errorf("PKColumn: expected pk_order_item, got %s", got)
	}
	if got := entity.PKHelper(); got != "sales.order_item_pk" {
		t.Errorf("PKHelper: expected sales.order_item_pk, got %s", got)
	}
	if got := FKColumn("company"); got != "fk_company" {
		t.Errorf("FKColumn: expected fk_company, got %s", got)
	}
}

func TestNormalize_FillsDerivedColumns(t *testing.T) {
	s := &Schema{Entities: []*Entity{
		{
			Name: "Contact",
			Fields: map[string]*Field{
				"email":   {Type: FieldTypeText},
				"company": {Type: FieldTypeUUID, Reference: "Company"},
			},
		},
	}}
	s.normalize()

	entity := s.GetEntity("Contact")
	if entity.Schema != "public" {
		t.Errorf("expected default schema public, got %s", entity.Schema)
	}
	if entity.Fields["email"].Column != "email" {
		t.Errorf("plain field column should match name, got %s", entity.Fields["email"].Column)
	}
	if entity.Fields["company"].Column != "fk_company" {
		t.Errorf("reference field column should get fk_ prefix, got %s", entity.Fields["company"].Column)
	}
	if entity.Fields["email"].Name != "email" {
		t.Errorf("field name should be filled from map key, got %s", entity.Fields["email"].Name)
	}
}

func TestParseSchemaJSON(t *testing.T) {
	jsonStr := `{
		"entities": [
			{
				"name": "Contact",
				"schema": "crm",
				"tenant": true,
				"soft_delete": true,
				"fields": {
					"status": {"field_type": {"Enum": ["lead", "qualified"]}, "nullable": false},
					"email": {"field_type": "Text", "nullable": false},
					"company": {"field_type": "UUID", "nullable": true, "reference": "Company"}
				}
			}
		]
	}`

	schema, err := ParseSchemaJSON(jsonStr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entity := schema.GetEntity("Contact")
	if entity == nil {
		t.Fatal("expected Contact entity")
	}
	if !entity.Tenant || !entity.SoftDelete {
		t.Error("expected tenant and soft_delete flags")
	}

	status := entity.GetField("status")
	if status == nil || status.Type.Kind != "Enum" {
		t.Fatalf("expected Enum status field, got %+v", status)
	}
	company := entity.GetField("company")
	if company.Reference != "Company" {
		t.Errorf("expected company reference, got %s", company.Reference)
	}
	if company.Column != "fk_company" {
		t.Errorf("expected fk_company column, got %s", company.Column)
	}
}

func TestFieldTypeSQLType(t *testing.T) {
	tests := []struct {
		ft   FieldType
		want string
	}{
		{FieldTypeUUID, "UUID"},
		{FieldTypeText, "TEXT"},
		{FieldTypeInt, "INTEGER"},
		{FieldTypeDecimal, "NUMERIC"},
		{FieldTypeBool, "BOOLEAN"},
		{FieldTypeTimestamp, "TIMESTAMPTZ"},
		{FieldTypeDate, "DATE"},
		{FieldTypeJSON, "JSONB"},
		{FieldType{Kind: "Enum", Param: []string{"a"}}, "TEXT"},
	}
	for _, tt := range tests {
		if got := tt.ft.SQLType(); got != tt.want {
			t.Errorf("SQLType(%s): expected %s, got %s", tt.ft, tt.want, got)
		}
	}
}

func TestFieldNames_Sorted(t *testing.T) {
	entity := &Entity{
		Name: "X",
		Fields: map[string]*Field{
			"zulu":  {},
			"alpha": {},
			"mike":  {},
		},
	}
	names := entity.FieldNames()
	want := []string{"alpha", "mike", "zulu"}
	for i, name := range want {
		if names[i] != name {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}
