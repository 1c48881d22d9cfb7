// Package skills defines the shared data model for the skill ingestion and
// resolution engine: skill records, parameter schemas, source descriptors
// and the serializable registry snapshot exchanged with the cache store.
package skills

import "time"

// SourceKind identifies the origin of a skill record
type SourceKind string

const (
	// SourceRepository marks skills ingested from a remote git repository
	SourceRepository SourceKind = "repository"
	// SourceLocal marks skills ingested from a local directory
	SourceLocal SourceKind = "local"
)

// ParameterType is the declared type of a skill parameter
type ParameterType string

const (
	TypeString  ParameterType = "string"
	TypeNumber  ParameterType = "number"
	TypeBoolean ParameterType = "boolean"
	TypeObject  ParameterType = "object"
	TypeArray   ParameterType = "array"
)

// ValidParameterType reports whether t is one of the declared parameter types
func ValidParameterType(t ParameterType) bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeObject, TypeArray:
		return true
	}
	return false
}

// ParameterSchema describes a single declared input slot of a skill
type ParameterSchema struct {
	Name        string        `json:"name" yaml:"name"`
	Type        ParameterType `json:"type" yaml:"type"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool          `json:"required" yaml:"required"`
	Default     any           `json:"default,omitempty" yaml:"default,omitempty"`
	// Enum is only meaningful for string parameters
	Enum []string `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// Metadata holds the known front-matter fields of a skill plus a residual
// bucket for anything a document author added beyond them
type Metadata struct {
	Author       string   `json:"author,omitempty" yaml:"author,omitempty"`
	Version      string   `json:"version,omitempty" yaml:"version,omitempty"`
	Tags         []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Requirements []string `json:"requirements,omitempty" yaml:"requirements,omitempty"`
	// Organization and Repository record provenance for skills discovered
	// through an index document
	Organization string         `json:"organization,omitempty" yaml:"organization,omitempty"`
	Repository   string         `json:"repository,omitempty" yaml:"repository,omitempty"`
	Extra        map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// IsZero reports whether no metadata field is set
func (m Metadata) IsZero() bool {
	return m.Author == "" && m.Version == "" && len(m.Tags) == 0 &&
		len(m.Requirements) == 0 && m.Organization == "" && m.Repository == "" &&
		len(m.Extra) == 0
}

// Skill is a resolved, executable unit of knowledge. ID is assigned by
// normalization and immutable; two skills with the same ID cannot coexist
// in the registry.
type Skill struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Source      SourceKind        `json:"source"`
	SourcePath  string            `json:"sourcePath,omitempty"`
	Content     string            `json:"content"`
	Parameters  []ParameterSchema `json:"parameters,omitempty"`
	Metadata    Metadata          `json:"metadata,omitempty"`
	LastUpdated time.Time         `json:"lastUpdated"`
}

// Parameter returns the schema for the named parameter, if declared
func (s *Skill) Parameter(name string) (ParameterSchema, bool) {
	for _, p := range s.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterSchema{}, false
}

// SourceType identifies the mechanism behind a source descriptor
type SourceType string

const (
	SourceTypeGit   SourceType = "git"
	SourceTypeLocal SourceType = "local"
)

// Kind maps a source descriptor type to the skill-facing source kind
func (t SourceType) Kind() SourceKind {
	if t == SourceTypeLocal {
		return SourceLocal
	}
	return SourceRepository
}

// SourceDescriptor is one registered provenance. Descriptors are created at
// startup and immutable afterwards except for ordering.
type SourceDescriptor struct {
	Type     SourceType `json:"type"`
	URL      string     `json:"url,omitempty"`
	Path     string     `json:"path,omitempty"`
	Branch   string     `json:"branch,omitempty"`
	Priority int        `json:"priority"`
}

// RegistrySnapshot is the serializable form of the registry contents,
// round-tripped through the cache store across process restarts
type RegistrySnapshot struct {
	Skills   []*Skill           `json:"skills"`
	Sources  []SourceDescriptor `json:"sources"`
	LastSync time.Time          `json:"lastSync"`
}

// SkillSummary is the projection returned by list operations
type SkillSummary struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Source      SourceKind         `json:"source"`
	Parameters  []ParameterSummary `json:"parameters,omitempty"`
}

// ParameterSummary is the compact parameter projection used in listings
type ParameterSummary struct {
	Name     string        `json:"name"`
	Type     ParameterType `json:"type"`
	Required bool          `json:"required"`
}

// Summarize projects a skill into its listing form
func Summarize(s *Skill) SkillSummary {
	summary := SkillSummary{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Source:      s.Source,
	}
	for _, p := range s.Parameters {
		summary.Parameters = append(summary.Parameters, ParameterSummary{
			Name:     p.Name,
			Type:     p.Type,
			Required: p.Required,
		})
	}
	return summary
}
