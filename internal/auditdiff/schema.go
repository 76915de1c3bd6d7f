package auditdiff

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed audit-diff.schema.json
var schemaSource []byte

const schemaURL = "https://diagaudit.local/schema/audit-diff.v1.json"

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaSource)); err != nil {
		return nil, fmt.Errorf("failed to add audit-diff schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile audit-diff schema: %w", err)
	}
	return schema, nil
})

// Validate checks doc against the audit-diff.v1 schema and returns one
// "location: message" line per violation. doc may be a decoded JSON value or
// any value that marshals to JSON, such as *Report.
func Validate(doc any) []string {
	schema, err := compiledSchema()
	if err != nil {
		return []string{err.Error()}
	}
	payload, err := toJSONValue(doc)
	if err != nil {
		return []string{fmt.Sprintf("/: %v", err)}
	}
	err = schema.Validate(payload)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []string{err.Error()}
	}
	var out []string
	collectLeaves(verr, &out)
	return out
}

func collectLeaves(e *jsonschema.ValidationError, out *[]string) {
	if len(e.Causes) == 0 {
		loc := e.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		*out = append(*out, loc+": "+e.Message)
		return
	}
	for _, cause := range e.Causes {
		collectLeaves(cause, out)
	}
}

func toJSONValue(doc any) (any, error) {
	switch doc.(type) {
	case nil, map[string]any, []any, string, float64, bool, json.Number:
		return doc, nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
