package structured

import (
	"fmt"
	"math"
)

// Outcome is the validator's verdict on one piece of model output.
// Valid=false is informational: Data still carries the best-effort parse, and
// callers decide whether to treat it as fatal.
type Outcome struct {
	Data       interface{} `json:"data"`
	Valid      bool        `json:"valid"`
	ParseError string      `json:"parse_error,omitempty"`
}

// Validate extracts JSON from raw model text and checks it against an
// optional schema. Extraction strategies run in order, first success wins:
// fence stripping, direct parse, first balanced substring, repair pass.
// Nothing here returns an error; unusable output becomes an error-shaped
// Outcome instead.
func Validate(raw string, schema map[string]interface{}) Outcome {
	data, parseErr := Extract(raw)
	if parseErr != "" {
		return Outcome{
			Data:       map[string]interface{}{"error": raw},
			Valid:      false,
			ParseError: parseErr,
		}
	}

	if schema == nil {
		return Outcome{Data: data, Valid: true}
	}

	if mismatch := checkTopLevelType(schema, data); mismatch != "" {
		return Outcome{Data: data, Valid: false, ParseError: mismatch}
	}

	return Outcome{Data: data, Valid: true}
}

// checkTopLevelType performs the shallow schema check: only the schema's
// top-level "type" is compared against the parsed value's runtime type.
// Nested property and item schemas are not walked.
func checkTopLevelType(schema map[string]interface{}, data interface{}) string {
	declared, ok := schema["type"].(string)
	if !ok || declared == "" {
		return ""
	}

	if typeMatches(declared, data) {
		return ""
	}

	return fmt.Sprintf("schema type mismatch: want %s, got %s", declared, runtimeTypeName(data))
}

func typeMatches(declared string, data interface{}) bool {
	switch declared {
	case "object":
		_, ok := data.(map[string]interface{})
		return ok
	case "array":
		_, ok := data.([]interface{})
		return ok
	case "string":
		_, ok := data.(string)
		return ok
	case "number":
		_, ok := data.(float64)
		return ok
	case "integer":
		f, ok := data.(float64)
		return ok && f == math.Trunc(f)
	case "boolean":
		_, ok := data.(bool)
		return ok
	default:
		// Unknown declared types do not fail the shallow check
		return true
	}
}

func runtimeTypeName(data interface{}) string {
	switch data.(type) {
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", data)
	}
}
