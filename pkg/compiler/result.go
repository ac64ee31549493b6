package compiler

import "encoding/json"

// MutationResult is the sole output contract of a compiled action.
// It is returned identically on success and on every recoverable
// failure; no exception crosses the action boundary.
type MutationResult struct {
	Status        string                 `json:"status"`
	Code          string                 `json:"code"`
	Message       string                 `json:"message"`
	ObjectData    map[string]interface{} `json:"object_data"`
	UpdatedFields []string               `json:"updated_fields"`
	Metadata      map[string]interface{} `json:"metadata"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// IsSuccess reports whether the action completed.
func (r *MutationResult) IsSuccess() bool {
	return r.Status == StatusSuccess
}

// ParseMutationResult decodes the JSON form the runner receives from
// the engine.
func ParseMutationResult(data []byte) (*MutationResult, error) {
	var result MutationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ResultTypeDDL returns the DDL for the composite type every compiled
// procedure returns. Applied once per database by `actionc install`.
func ResultTypeDDL() string {
	return `CREATE SCHEMA IF NOT EXISTS app;

DO $$ BEGIN
    CREATE TYPE app.mutation_result AS (
        status TEXT,
        code TEXT,
        message TEXT,
        object_data JSONB,
        updated_fields TEXT[],
        metadata JSONB
    );
EXCEPTION
    WHEN duplicate_object THEN NULL;
END $$;
`
}
