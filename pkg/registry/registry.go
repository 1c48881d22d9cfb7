// Package registry holds the in-memory index of resolved skills. Sources
// carry priorities; when the same skill id arrives from two sources the
// higher-priority registration wins, with last-write-wins between equals.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/skillmesh/skillmesh/pkg/params"
	skilltypes "github.com/skillmesh/skillmesh/pkg/types/skills"
)

// Registry is the in-memory skill index. All methods are safe for
// concurrent use; clear-and-reingest runs under the same lock so readers
// never observe a partially cleared registry.
type Registry struct {
	mu       sync.RWMutex
	skills   map[string]*skilltypes.Skill
	sources  []skilltypes.SourceDescriptor
	lastSync time.Time
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		skills: make(map[string]*skilltypes.Skill),
	}
}

// AddSource registers a provenance descriptor and keeps sources ordered by
// descending priority
func (r *Registry) AddSource(descriptor skilltypes.SourceDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sources = append(r.sources, descriptor)
	sort.SliceStable(r.sources, func(i, j int) bool {
		return r.sources[i].Priority > r.sources[j].Priority
	})
}

// Sources returns a copy of the registered source descriptors
func (r *Registry) Sources() []skilltypes.SourceDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]skilltypes.SourceDescriptor, len(r.sources))
	copy(out, r.sources)
	return out
}

// RegisterSkill inserts or overrides a skill record. An existing record is
// replaced unless its source priority is strictly higher than the incoming
// one: ties and upgrades overwrite, so ingestion order only matters among
// equal-priority sources.
func (r *Registry) RegisterSkill(skill *skilltypes.Skill) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(skill)
}

func (r *Registry) registerLocked(skill *skilltypes.Skill) bool {
	existing, ok := r.skills[skill.ID]
	if ok && r.priorityLocked(skill.Source) < r.priorityLocked(existing.Source) {
		return false
	}
	r.skills[skill.ID] = skill
	return true
}

// priorityLocked resolves a source kind to its descriptor priority,
// defaulting to 0 when no descriptor matches
func (r *Registry) priorityLocked(kind skilltypes.SourceKind) int {
	for _, src := range r.sources {
		if src.Type.Kind() == kind {
			return src.Priority
		}
	}
	return 0
}

// GetSkill returns the skill for id, or a SkillNotFound error
func (r *Registry) GetSkill(id string) (*skilltypes.Skill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	skill, ok := r.skills[id]
	if !ok {
		return nil, skilltypes.NotFoundError(id)
	}
	return skill, nil
}

// ListSkills returns every registered skill, sorted by id
func (r *Registry) ListSkills() []*skilltypes.Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*skilltypes.Skill, 0, len(r.skills))
	for _, skill := range r.skills {
		out = append(out, skill)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered skills
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.skills)
}

// Replace atomically clears the registry and re-registers the given skills.
// Override resolution re-applies record by record, so a reader acquiring
// the lock afterwards sees a fully resolved registry.
func (r *Registry) Replace(records []*skilltypes.Skill, syncedAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.skills = make(map[string]*skilltypes.Skill, len(records))
	for _, skill := range records {
		r.registerLocked(skill)
	}
	r.lastSync = syncedAt
}

// LastSync returns the timestamp of the last completed ingest
func (r *Registry) LastSync() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastSync
}

// SetLastSync records the timestamp of a completed ingest
func (r *Registry) SetLastSync(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSync = t
}

// ValidateParameters checks values against the skill's declared schemas and
// collects every violation: missing required parameters, per-value schema
// failures and keys the skill never declared. Reporting is all-or-nothing,
// never short-circuiting on the first violation.
func (r *Registry) ValidateParameters(id string, values map[string]any) error {
	r.mu.RLock()
	skill, ok := r.skills[id]
	r.mu.RUnlock()
	if !ok {
		return skilltypes.NotFoundError(id)
	}

	var result *multierror.Error

	for _, schema := range skill.Parameters {
		value, present := values[schema.Name]
		if !present {
			if schema.Required {
				result = multierror.Append(result,
					fmt.Errorf("missing required parameter %q", schema.Name))
			}
			continue
		}
		for _, violation := range params.ValidateValue(schema, value) {
			result = multierror.Append(result, fmt.Errorf("%s", violation))
		}
	}

	declared := make(map[string]bool, len(skill.Parameters))
	for _, schema := range skill.Parameters {
		declared[schema.Name] = true
	}
	var unknown []string
	for key := range values {
		if !declared[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		result = multierror.Append(result, fmt.Errorf("unknown parameter %q", key))
	}

	if result.ErrorOrNil() == nil {
		return nil
	}

	violations := make([]string, 0, len(result.Errors))
	for _, err := range result.Errors {
		violations = append(violations, err.Error())
	}
	return skilltypes.InvalidParamsError(violations)
}

// ToSnapshot serializes the registry contents for the cache store
func (r *Registry) ToSnapshot() *skilltypes.RegistrySnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := &skilltypes.RegistrySnapshot{
		Sources:  make([]skilltypes.SourceDescriptor, len(r.sources)),
		LastSync: r.lastSync,
	}
	copy(snapshot.Sources, r.sources)

	ids := make([]string, 0, len(r.skills))
	for id := range r.skills {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		snapshot.Skills = append(snapshot.Skills, r.skills[id])
	}

	return snapshot
}

// FromSnapshot reconstructs the registry by replaying RegisterSkill for
// each snapshot record, so override rules re-apply deterministically
func (r *Registry) FromSnapshot(snapshot *skilltypes.RegistrySnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sources = make([]skilltypes.SourceDescriptor, len(snapshot.Sources))
	copy(r.sources, snapshot.Sources)
	sort.SliceStable(r.sources, func(i, j int) bool {
		return r.sources[i].Priority > r.sources[j].Priority
	})

	r.skills = make(map[string]*skilltypes.Skill, len(snapshot.Skills))
	for _, skill := range snapshot.Skills {
		r.registerLocked(skill)
	}
	r.lastSync = snapshot.LastSync
}

// MatchesFilter reports whether a skill matches a case-insensitive
// substring filter against its name, description or id
func MatchesFilter(skill *skilltypes.Skill, filter string) bool {
	if filter == "" {
		return true
	}
	needle := strings.ToLower(filter)
	return strings.Contains(strings.ToLower(skill.Name), needle) ||
		strings.Contains(strings.ToLower(skill.Description), needle) ||
		strings.Contains(strings.ToLower(skill.ID), needle)
}
