// Package executor answers queries and invocations against the skill
// registry: listing with filters, template-substituted invocation, and raw
// documentation retrieval.
package executor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/skillmesh/skillmesh/pkg/logger"
	"github.com/skillmesh/skillmesh/pkg/registry"
	skilltypes "github.com/skillmesh/skillmesh/pkg/types/skills"
)

// placeholderRe matches both supported placeholder syntaxes with optional
// whitespace around the name: {{ name }} and ${ name }
var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.-]*)\s*\}\}|\$\{\s*([A-Za-z_][A-Za-z0-9_.-]*)\s*\}`)

// Executor is a stateless query and invocation layer over the registry
type Executor struct {
	registry *registry.Registry
}

// InvocationResult is the outcome of a skill invocation
type InvocationResult struct {
	Content         string
	ExecutionTimeMs int64
}

// New creates an executor bound to the given registry
func New(reg *registry.Registry) *Executor {
	return &Executor{registry: reg}
}

// ListSkills returns summaries of registered skills, narrowed first by
// exact source-kind match and then by case-insensitive substring match
// against name, description or id. Empty filters return everything.
func (e *Executor) ListSkills(filter string, source skilltypes.SourceKind) []skilltypes.SkillSummary {
	var summaries []skilltypes.SkillSummary
	for _, skill := range e.registry.ListSkills() {
		if source != "" && skill.Source != source {
			continue
		}
		if !registry.MatchesFilter(skill, filter) {
			continue
		}
		summaries = append(summaries, skilltypes.Summarize(skill))
	}
	return summaries
}

// InvokeSkill validates the caller's values against the skill's parameter
// schemas, then renders the skill content with every value substituted.
// Unexpected internal failures are reported as ExecutionError rather than
// propagated.
func (e *Executor) InvokeSkill(ctx context.Context, id string, values map[string]any) (result *InvocationResult, err error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.G(ctx).WithField("skill", id).WithField("panic", r).Error("skill invocation panicked")
			result = nil
			err = skilltypes.WrapError(skilltypes.ErrExecution,
				errors.Errorf("panic: %v", r), "skill %q invocation failed", id)
		}
	}()

	skill, err := e.registry.GetSkill(id)
	if err != nil {
		return nil, err
	}

	if err := e.registry.ValidateParameters(id, values); err != nil {
		return nil, err
	}

	rendered := Substitute(skill.Content, values)

	return &InvocationResult{
		Content:         rendered,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// GetSkillDocumentation returns the raw, unsubstituted skill content
func (e *Executor) GetSkillDocumentation(id string) (string, error) {
	skill, err := e.registry.GetSkill(id)
	if err != nil {
		return "", err
	}
	return skill.Content, nil
}

// Substitute replaces every occurrence of {{ name }} and ${ name }
// placeholders with the corresponding value. Placeholders without a
// matching value are left verbatim.
func Substitute(content string, values map[string]any) string {
	if len(values) == 0 {
		return content
	}

	return placeholderRe.ReplaceAllStringFunc(content, func(match string) string {
		m := placeholderRe.FindStringSubmatch(match)
		name := m[1]
		if name == "" {
			name = m[2]
		}
		value, ok := values[name]
		if !ok {
			return match
		}
		return renderValue(value)
	})
}

// renderValue formats a substituted value; strings pass through untouched
func renderValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case []string:
		return strings.Join(v, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}
