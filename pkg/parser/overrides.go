package parser

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	skilltypes "github.com/skillmesh/skillmesh/pkg/types/skills"
)

// Override corrects a misparsed skill record without touching the source
// document. The table is keyed by the final normalized skill id; only
// non-zero fields replace the parsed values.
type Override struct {
	Name        string                       `yaml:"name,omitempty"`
	Description string                       `yaml:"description,omitempty"`
	Parameters  []skilltypes.ParameterSchema `yaml:"parameters,omitempty"`
	Metadata    *skilltypes.Metadata         `yaml:"metadata,omitempty"`
}

// Apply shallow-merges the override over the parsed skill
func (o Override) Apply(skill *skilltypes.Skill) {
	if o.Name != "" {
		skill.Name = o.Name
	}
	if o.Description != "" {
		skill.Description = o.Description
	}
	if len(o.Parameters) > 0 {
		skill.Parameters = o.Parameters
	}
	if o.Metadata != nil {
		skill.Metadata = *o.Metadata
	}
}

// LoadOverrides reads the override table from a YAML file. A missing file
// yields an empty table.
func LoadOverrides(path string) (map[string]Override, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read overrides file %q", path)
	}

	overrides := make(map[string]Override)
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, errors.Wrapf(err, "failed to parse overrides file %q", path)
	}

	return overrides, nil
}
