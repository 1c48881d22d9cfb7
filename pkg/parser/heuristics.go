package parser

import (
	"regexp"
	"strings"

	skilltypes "github.com/skillmesh/skillmesh/pkg/types/skills"
)

// bulletRe matches `- name (typeHint, requiredness): description` bullets
// inside a Parameters section. The parenthetical and the description are
// both optional; backticks around the name are tolerated.
var bulletRe = regexp.MustCompile("^[-*]\\s+`?([A-Za-z_][A-Za-z0-9_.-]*)`?\\s*(?:\\(([^)]*)\\))?\\s*:?\\s*(.*)$")

// extractParameters reads the "Parameters" section of a document body and
// turns each bullet into a parameter schema. Type and requiredness come
// from the parenthetical when present, otherwise they are inferred from
// keywords in the free-text description. This is a best-effort heuristic:
// an ambiguous bullet yields an optional string parameter.
func extractParameters(body string) []skilltypes.ParameterSchema {
	section := sectionAfterHeading(body, parametersRe)
	if section == "" {
		return nil
	}

	var schemas []skilltypes.ParameterSchema
	seen := make(map[string]bool)

	for _, line := range strings.Split(section, "\n") {
		m := bulletRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}

		name, hint, description := m[1], m[2], strings.TrimSpace(m[3])
		if seen[name] {
			continue
		}
		seen[name] = true

		schema := skilltypes.ParameterSchema{
			Name:        name,
			Description: description,
		}
		schema.Type, schema.Required = resolveHints(hint, description)
		schemas = append(schemas, schema)
	}

	return schemas
}

// resolveHints combines the parenthetical hint tokens with description
// keywords. The first hint token selects a declared type, a second token of
// "required"/"optional" sets requiredness explicitly; anything missing
// falls back to keyword inference.
func resolveHints(hint, description string) (skilltypes.ParameterType, bool) {
	paramType := skilltypes.ParameterType("")
	required := false
	requiredSet := false

	for i, token := range strings.Split(hint, ",") {
		token = strings.ToLower(strings.TrimSpace(token))
		if token == "" {
			continue
		}
		switch token {
		case "required":
			required, requiredSet = true, true
		case "optional":
			required, requiredSet = false, true
		default:
			if i == 0 {
				paramType = typeFromToken(token)
			}
		}
	}

	if paramType == "" {
		paramType = inferTypeFromDescription(description)
	}
	if !requiredSet {
		required = inferRequiredFromDescription(description)
	}

	return paramType, required
}

// typeFromToken maps a hint token to a declared type, defaulting to string
// for anything unrecognized
func typeFromToken(token string) skilltypes.ParameterType {
	switch token {
	case "string", "str", "text":
		return skilltypes.TypeString
	case "number", "int", "integer", "float", "num":
		return skilltypes.TypeNumber
	case "boolean", "bool":
		return skilltypes.TypeBoolean
	case "object", "map", "dict":
		return skilltypes.TypeObject
	case "array", "list":
		return skilltypes.TypeArray
	}
	return skilltypes.TypeString
}

// inferTypeFromDescription guesses a type from keywords in free text
func inferTypeFromDescription(description string) skilltypes.ParameterType {
	lower := strings.ToLower(description)
	switch {
	case strings.Contains(lower, "true/false"), strings.Contains(lower, "boolean"):
		return skilltypes.TypeBoolean
	case strings.Contains(lower, "array"), strings.Contains(lower, "list"):
		return skilltypes.TypeArray
	case strings.Contains(lower, "object"), strings.Contains(lower, "map"):
		return skilltypes.TypeObject
	}
	return skilltypes.TypeString
}

// inferRequiredFromDescription guesses requiredness from free text. The
// word "required" wins over "optional"/"default"; when neither appears the
// parameter is treated as optional.
func inferRequiredFromDescription(description string) bool {
	lower := strings.ToLower(description)
	if strings.Contains(lower, "required") {
		return true
	}
	if strings.Contains(lower, "optional") || strings.Contains(lower, "default") {
		return false
	}
	return false
}
