package compiler

import "encoding/json"

// Operation is a storage-mutating operation kind.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Impact is one (entity, operation) pair a compiled action may perform.
type Impact struct {
	Entity    string    `json:"entity"`
	Operation Operation `json:"operation"`
}

// ImpactManifest accumulates the entity/operation pairs an action
// touches. It is a static artifact of compilation, consumed by
// client-code generators for cache invalidation.
type ImpactManifest struct {
	Entries []Impact `json:"entries"`
}

// Add appends an entry, keeping first-seen order and dropping
// duplicates so repeated lowering of the same step shape (loops,
// branches) stays stable.
func (m *ImpactManifest) Add(entity string, op Operation) {
	for _, e := range m.Entries {
		if e.Entity == entity && e.Operation == op {
			return
		}
	}
	m.Entries = append(m.Entries, Impact{Entity: entity, Operation: op})
}

// ToJSON serializes the manifest for downstream generators.
func (m *ImpactManifest) ToJSON() (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
