package compiler

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ActionDefinition is one named unit of business logic. It is produced
// by the upstream authoring parser, is immutable once handed to the
// compiler, and compiles to exactly one procedure.
type ActionDefinition struct {
	Name   string  `yaml:"name"`
	Entity string  `yaml:"entity"`
	Params []Param `yaml:"params,omitempty"`
	Steps  []Step  `yaml:"steps"`
	// Returns optionally declares the type carried by Return steps.
	Returns string `yaml:"returns,omitempty"`
}

// Param is one declared input parameter, extracted from the free-form
// input payload with an explicit type coercion.
type Param struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Required bool   `yaml:"required,omitempty"`
}

// ============================================================
// STEP VARIANTS
// ============================================================

type StepKind int

const (
	StepValidate StepKind = iota
	StepInsert
	StepUpdate
	StepDelete
	StepCall
	StepNotify
	StepIf
	StepForeach
	StepReturn
	StepRefresh
)

var stepKindNames = map[StepKind]string{
	StepValidate: "validate",
	StepInsert:   "insert",
	StepUpdate:   "update",
	StepDelete:   "delete",
	StepCall:     "call",
	StepNotify:   "notify",
	StepIf:       "if",
	StepForeach:  "foreach",
	StepReturn:   "return",
	StepRefresh:  "refresh",
}

func (k StepKind) String() string {
	if name, ok := stepKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("StepKind(%d)", int(k))
}

// Step is a closed tagged variant: Kind selects which fields apply.
// The authoring parser guarantees structural validity; the compiler
// checks semantic validity (field and identifier resolution).
type Step struct {
	Kind StepKind

	// Validate
	Condition string
	ErrorCode string
	Message   string

	// Insert / Update / Delete
	Entity string
	Set    Assignments
	Filter string
	// Widen allows an Update/Delete filter to reach beyond the
	// action's implicit subject row.
	Widen bool
	// Hard switches a Delete from the soft (audit-field) form to a
	// physical row removal.
	Hard bool

	// Call (BindAs is shared with Insert)
	Target string
	Args   []string
	BindAs string

	// Notify
	Channel string
	Payload string

	// If
	Then []Step
	Else []Step

	// Foreach
	Source string
	Item   string
	Body   []Step

	// Return
	Value string

	// Refresh
	Projection  string
	PropagateTo []string
}

// Assignment is one field → value-expression pair. Assignments keep
// document order so compiled output is deterministic.
type Assignment struct {
	Field string
	Value string
}

type Assignments []Assignment

// UnmarshalYAML decodes a YAML mapping into ordered assignments.
// A plain map would lose document order.
func (a *Assignments) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: field assignments must be a mapping", node.Line)
	}
	result := make(Assignments, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		value := node.Content[i+1]
		result = append(result, Assignment{Field: key.Value, Value: value.Value})
	}
	*a = result
	return nil
}

// Fields returns the assigned field names in document order.
func (a Assignments) Fields() []string {
	names := make([]string, len(a))
	for i, as := range a {
		names[i] = as.Field
	}
	return names
}

// ============================================================
// YAML DECODING
// ============================================================

// Each step is a single-key mapping whose key names the variant:
//
//	- validate:
//	    condition: "status = 'lead'"
//	    error_code: not_a_lead
//	    message: Contact is not a lead
//	- update:
//	    entity: Contact
//	    set:
//	      status: "'qualified'"

type stepDoc struct {
	Condition string      `yaml:"condition"`
	ErrorCode string      `yaml:"error_code"`
	Message   string      `yaml:"message"`
	Entity    string      `yaml:"entity"`
	Set       Assignments `yaml:"set"`
	Filter    string      `yaml:"filter"`
	Widen     bool        `yaml:"widen"`
	Hard      bool        `yaml:"hard"`
	Target    string      `yaml:"target"`
	Args      []string    `yaml:"args"`
	BindAs    string      `yaml:"bind_result_as"`
	Channel   string      `yaml:"channel"`
	Payload   string      `yaml:"payload"`
	Then      []Step      `yaml:"then"`
	Else      []Step      `yaml:"else"`
	Source    string      `yaml:"source"`
	Item      string      `yaml:"item"`
	Body      []Step      `yaml:"body"`
	Value     string      `yaml:"value"`
	Proj      string      `yaml:"projection"`
	Propagate []string    `yaml:"propagate_to"`
}

func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return fmt.Errorf("line %d: step must be a single-key mapping naming its kind", node.Line)
	}

	kindName := node.Content[0].Value
	var kind StepKind
	found := false
	for k, name := range stepKindNames {
		if name == kindName {
			kind = k
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("line %d: unknown step kind %q", node.Line, kindName)
	}

	var doc stepDoc
	if err := node.Content[1].Decode(&doc); err != nil {
		return fmt.Errorf("line %d: invalid %s step: %w", node.Line, kindName, err)
	}

	*s = Step{
		Kind:        kind,
		Condition:   doc.Condition,
		ErrorCode:   doc.ErrorCode,
		Message:     doc.Message,
		Entity:      doc.Entity,
		Set:         doc.Set,
		Filter:      doc.Filter,
		Widen:       doc.Widen,
		Hard:        doc.Hard,
		Target:      doc.Target,
		Args:        doc.Args,
		BindAs:      doc.BindAs,
		Channel:     doc.Channel,
		Payload:     doc.Payload,
		Then:        doc.Then,
		Else:        doc.Else,
		Source:      doc.Source,
		Item:        doc.Item,
		Body:        doc.Body,
		Value:       doc.Value,
		Projection:  doc.Proj,
		PropagateTo: doc.Propagate,
	}
	return nil
}

// ParseActionYAML decodes an action definition document.
func ParseActionYAML(data []byte) (*ActionDefinition, error) {
	var action ActionDefinition
	if err := yaml.Unmarshal(data, &action); err != nil {
		return nil, fmt.Errorf("failed to parse action: %w", err)
	}
	if action.Name == "" {
		return nil, fmt.Errorf("action has no name")
	}
	if action.Entity == "" {
		return nil, fmt.Errorf("action %q has no entity", action.Name)
	}
	return &action, nil
}

// LoadActionFile loads an action definition from a YAML file.
func LoadActionFile(path string) (*ActionDefinition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read action file: %w", err)
	}
	return ParseActionYAML(content)
}
