package compiler

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Schema represents the metadata for every entity an action may touch.
// It is supplied by the upstream schema generator and is read-only here.
type Schema struct {
	Entities []*Entity `json:"entities" yaml:"entities"`
}

// Entity represents one business entity and its physical layout.
type Entity struct {
	Name   string `json:"name" yaml:"name"`
	Schema string `json:"schema" yaml:"schema"`
	// Tenant marks entities whose identity helpers are tenant-scoped.
	Tenant bool              `json:"tenant,omitempty" yaml:"tenant,omitempty"`
	Fields map[string]*Field `json:"fields" yaml:"fields"`
	// SoftDelete controls how Delete steps lower by default.
	// Soft deletes set the deletion audit fields instead of removing the row.
	SoftDelete bool `json:"soft_delete,omitempty" yaml:"soft_delete,omitempty"`
}

// Field represents an entity field (column).
type Field struct {
	Name     string    `json:"name" yaml:"name"`
	Column   string    `json:"column,omitempty" yaml:"column,omitempty"`
	Type     FieldType `json:"field_type" yaml:"type"`
	Nullable bool      `json:"nullable" yaml:"nullable"`
	Default  *string   `json:"default,omitempty" yaml:"default,omitempty"`
	// Reference names the target entity when this field holds a
	// public identifier of another entity.
	Reference string `json:"reference,omitempty" yaml:"reference,omitempty"`
	// AuditManaged fields (creation/modification/deletion timestamp and
	// actor) are injected by the compiler and never settable by authors.
	AuditManaged bool `json:"audit_managed,omitempty" yaml:"audit_managed,omitempty"`
}

// FieldType represents the logical type of a field.
// Can be simple ("Text") or parameterized ({"Enum": [...]}).
type FieldType struct {
	Kind  string      `json:"-" yaml:"-"`
	Param interface{} `json:"-" yaml:"-"`
}

var (
	FieldTypeUUID      = FieldType{Kind: "UUID"}
	FieldTypeText      = FieldType{Kind: "Text"}
	FieldTypeInt       = FieldType{Kind: "Int"}
	FieldTypeDecimal   = FieldType{Kind: "Decimal"}
	FieldTypeBool      = FieldType{Kind: "Bool"}
	FieldTypeTimestamp = FieldType{Kind: "Timestamp"}
	FieldTypeDate      = FieldType{Kind: "Date"}
	FieldTypeJSON      = FieldType{Kind: "JSON"}
)

// UnmarshalJSON deserializes FieldType from JSON.
// Accepts "Text" (string) or {"Enum": ["lead", "qualified"]} (object).
func (ft *FieldType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*ft = FieldType{Kind: s}
		return nil
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err == nil {
		if len(obj) != 1 {
			return fmt.Errorf("invalid FieldType object: expected 1 key, got %d", len(obj))
		}
		for key, value := range obj {
			*ft = FieldType{Kind: key, Param: value}
			return nil
		}
	}

	return fmt.Errorf("cannot unmarshal FieldType from %s", string(data))
}

// MarshalJSON serializes FieldType to JSON.
func (ft FieldType) MarshalJSON() ([]byte, error) {
	if ft.Param == nil {
		return json.Marshal(ft.Kind)
	}
	obj := map[string]interface{}{ft.Kind: ft.Param}
	return json.Marshal(obj)
}

// UnmarshalYAML deserializes FieldType from YAML with the same shapes as JSON.
func (ft *FieldType) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*ft = FieldType{Kind: node.Value}
		return nil
	}
	var obj map[string]interface{}
	if err := node.Decode(&obj); err != nil {
		return fmt.Errorf("cannot unmarshal FieldType: %w", err)
	}
	if len(obj) != 1 {
		return fmt.Errorf("invalid FieldType object: expected 1 key, got %d", len(obj))
	}
	for key, value := range obj {
		*ft = FieldType{Kind: key, Param: value}
	}
	return nil
}

// String returns a string representation of the FieldType.
func (ft FieldType) String() string {
	if ft.Param == nil {
		return ft.Kind
	}
	return fmt.Sprintf("%s(%v)", ft.Kind, ft.Param)
}

// SQLType maps the logical type to its PostgreSQL column type.
func (ft FieldType) SQLType() string {
	switch ft.Kind {
	case "UUID":
		return "UUID"
	case "Int":
		return "INTEGER"
	case "Decimal":
		return "NUMERIC"
	case "Bool":
		return "BOOLEAN"
	case "Timestamp":
		return "TIMESTAMPTZ"
	case "Date":
		return "DATE"
	case "JSON":
		return "JSONB"
	case "Enum":
		return "TEXT"
	default:
		return "TEXT"
	}
}

// ParseSchemaJSON parses a JSON string into a Schema.
func ParseSchemaJSON(jsonStr string) (*Schema, error) {
	var schema Schema
	if err := json.Unmarshal([]byte(jsonStr), &schema); err != nil {
		return nil, err
	}
	schema.normalize()
	return &schema, nil
}

// LoadSchemaFile loads a schema from a YAML or JSON file.
func LoadSchemaFile(path string) (*Schema, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	if strings.HasSuffix(path, ".json") {
		return ParseSchemaJSON(string(content))
	}
	var schema Schema
	if err := yaml.Unmarshal(content, &schema); err != nil {
		return nil, fmt.Errorf("failed to parse schema file: %w", err)
	}
	schema.normalize()
	return &schema, nil
}

// normalize fills derived defaults: field names from map keys,
// columns from field names (fk_ prefix for references).
func (s *Schema) normalize() {
	for _, entity := range s.Entities {
		if entity.Schema == "" {
			entity.Schema = "public"
		}
		for name, field := range entity.Fields {
			if field.Name == "" {
				field.Name = name
			}
			if field.Column == "" {
				if field.Reference != "" {
					field.Column = FKColumn(name)
				} else {
					field.Column = name
				}
			}
		}
	}
}

// ToJSON converts a Schema to JSON string.
func (s *Schema) ToJSON() (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetEntity returns an entity by name, or nil if not found.
func (s *Schema) GetEntity(name string) *Entity {
	for _, entity := range s.Entities {
		if entity.Name == name {
			return entity
		}
	}
	return nil
}

// GetField returns a field by its logical name, or nil if not found.
func (e *Entity) GetField(name string) *Field {
	return e.Fields[name]
}

// FieldNames returns the logical field names, sorted, for stable
// diagnostics.
func (e *Entity) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ─────────────────────────────────────────────────────────────
// Trinity naming
// ─────────────────────────────────────────────────────────────
//
// Every entity table carries three synchronized identities:
// pk_<entity> (internal key), id (public UUID), slug (human-readable).
// References between entities store the internal key in fk_<field>
// columns; resolution goes through <schema>.<entity>_pk helpers.

// TableName returns the physical table name, e.g. Contact → tb_contact.
func (e *Entity) TableName() string {
	return "tb_" + snakeCase(e.Name)
}

// QualifiedTable returns the schema-qualified table name.
func (e *Entity) QualifiedTable() string {
	return e.Schema + "." + e.TableName()
}

// PKColumn returns the internal key column, e.g. Contact → pk_contact.
func (e *Entity) PKColumn() string {
	return "pk_" + snakeCase(e.Name)
}

// PKHelper returns the qualified identity resolution helper,
// e.g. Contact in crm → crm.contact_pk.
// The helper maps a public identifier (or slug) to the internal key.
func (e *Entity) PKHelper() string {
	return e.Schema + "." + snakeCase(e.Name) + "_pk"
}

// FKColumn returns the physical column for a reference field,
// e.g. company → fk_company.
func FKColumn(field string) string {
	return "fk_" + field
}

// snakeCase converts PascalCase to snake_case: OrderItem → order_item.
func snakeCase(name string) string {
	var result []rune
	for i, r := range name {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result = append(result, '_')
		}
		result = append(result, r)
	}
	return strings.ToLower(string(result))
}
