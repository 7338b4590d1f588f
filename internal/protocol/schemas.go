package protocol

import (
	"bytes"
	"embed"
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/range.schema.json schemas/update.schema.json
var schemaFS embed.FS

var (
	rangeSchema  = mustCompile("schemas/range.schema.json")
	updateSchema = mustCompile("schemas/update.schema.json")
)

func mustCompile(name string) *jsonschema.Schema {
	raw, err := schemaFS.ReadFile(name)
	if err != nil {
		panic(err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, bytes.NewReader(raw)); err != nil {
		panic(err)
	}
	s, err := c.Compile(name)
	if err != nil {
		panic(err)
	}
	return s
}

func validateArgs(s *jsonschema.Schema, raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	return s.Validate(v) == nil
}

// ValidRangeArgs reports whether raw is a well-formed range payload.
func ValidRangeArgs(raw json.RawMessage) bool { return validateArgs(rangeSchema, raw) }

// ValidUpdateArgs reports whether raw is a well-formed update payload.
// Bounds against the configured world limits are checked separately by
// the session loop; the schema only pins shape and non-negativity.
func ValidUpdateArgs(raw json.RawMessage) bool { return validateArgs(updateSchema, raw) }
