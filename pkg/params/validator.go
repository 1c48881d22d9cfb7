// Package params validates caller-supplied values against declared
// parameter schemas. The functions here are pure: they report violations
// and never mutate their inputs.
package params

import (
	"encoding/json"
	"fmt"

	skilltypes "github.com/skillmesh/skillmesh/pkg/types/skills"
)

// ValidateValue checks a single value against its declared schema and
// returns every violation found. A nil value is only a violation when the
// parameter is required.
func ValidateValue(schema skilltypes.ParameterSchema, value any) []string {
	var violations []string

	if value == nil {
		if schema.Required {
			violations = append(violations, fmt.Sprintf("parameter %q is required but null", schema.Name))
		}
		return violations
	}

	if !matchesType(schema.Type, value) {
		violations = append(violations, fmt.Sprintf(
			"parameter %q expects type %s, got %s", schema.Name, schema.Type, describeType(value)))
		return violations
	}

	if schema.Type == skilltypes.TypeString && len(schema.Enum) > 0 {
		s, _ := value.(string)
		if !contains(schema.Enum, s) {
			violations = append(violations, fmt.Sprintf(
				"parameter %q must be one of %v, got %q", schema.Name, schema.Enum, s))
		}
	}

	return violations
}

// matchesType reports whether value conforms to the declared type. Values
// arrive either as native Go values or as decoded JSON, so numeric checks
// accept every numeric representation including json.Number.
func matchesType(t skilltypes.ParameterType, value any) bool {
	switch t {
	case skilltypes.TypeString:
		_, ok := value.(string)
		return ok
	case skilltypes.TypeBoolean:
		_, ok := value.(bool)
		return ok
	case skilltypes.TypeNumber:
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
			return true
		}
		return false
	case skilltypes.TypeObject:
		_, ok := value.(map[string]any)
		return ok
	case skilltypes.TypeArray:
		switch value.(type) {
		case []any, []string:
			return true
		}
		return false
	}
	// Unknown declared types never reject caller input
	return true
}

func describeType(value any) string {
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		return "number"
	case map[string]any:
		return "object"
	case []any, []string:
		return "array"
	case nil:
		return "null"
	}
	return fmt.Sprintf("%T", value)
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
