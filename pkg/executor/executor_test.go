package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillmesh/skillmesh/pkg/registry"
	skilltypes "github.com/skillmesh/skillmesh/pkg/types/skills"
)

func newTestExecutor(t *testing.T) (*Executor, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	reg.AddSource(skilltypes.SourceDescriptor{Type: skilltypes.SourceTypeGit, Priority: 1})
	return New(reg), reg
}

func registerGreeting(t *testing.T, reg *registry.Registry) {
	t.Helper()
	reg.RegisterSkill(&skilltypes.Skill{
		ID:          "greeting",
		Name:        "Greeting",
		Description: "Say hello",
		Source:      skilltypes.SourceRepository,
		Content:     "Hello, {{name}}! Welcome to ${team}.",
		Parameters: []skilltypes.ParameterSchema{
			{Name: "name", Type: skilltypes.TypeString, Required: true},
			{Name: "team", Type: skilltypes.TypeString},
		},
		LastUpdated: time.Now(),
	})
}

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		values   map[string]any
		expected string
	}{
		{
			"curly and dollar syntax",
			"Hello, {{name}}! Welcome to ${team}.",
			map[string]any{"name": "Ada", "team": "platform"},
			"Hello, Ada! Welcome to platform.",
		},
		{
			"whitespace tolerated",
			"{{  name  }} / ${ name }",
			map[string]any{"name": "Ada"},
			"Ada / Ada",
		},
		{
			"repeated placeholder",
			"${x}-${x}",
			map[string]any{"x": "a"},
			"a-a",
		},
		{
			"unmatched left verbatim",
			"Hello, {{name}} from {{where}}",
			map[string]any{"name": "Ada"},
			"Hello, Ada from {{where}}",
		},
		{
			"non-string values rendered",
			"replicas={{replicas}} tags={{tags}} dry={{dry}}",
			map[string]any{"replicas": 3, "tags": []string{"a", "b"}, "dry": true},
			"replicas=3 tags=a, b dry=true",
		},
		{
			"no values",
			"Hello, {{name}}",
			nil,
			"Hello, {{name}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Substitute(tt.content, tt.values))
		})
	}
}

func TestInvokeSkill(t *testing.T) {
	exec, reg := newTestExecutor(t)
	registerGreeting(t, reg)

	result, err := exec.InvokeSkill(context.Background(), "greeting", map[string]any{
		"name": "Ada",
		"team": "platform",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ada! Welcome to platform.", result.Content)
	assert.GreaterOrEqual(t, result.ExecutionTimeMs, int64(0))
}

func TestInvokeSkillValidationFailure(t *testing.T) {
	exec, reg := newTestExecutor(t)
	registerGreeting(t, reg)

	_, err := exec.InvokeSkill(context.Background(), "greeting", map[string]any{"team": 42})
	require.Error(t, err)

	coded := skilltypes.AsError(err)
	assert.Equal(t, skilltypes.ErrInvalidParams, coded.Code)
	assert.Len(t, coded.Violations, 2, "missing required name and mistyped team")
}

func TestInvokeSkillNotFound(t *testing.T) {
	exec, _ := newTestExecutor(t)

	_, err := exec.InvokeSkill(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.Equal(t, skilltypes.ErrSkillNotFound, skilltypes.AsError(err).Code)
}

func TestListSkillsFilters(t *testing.T) {
	exec, reg := newTestExecutor(t)
	registerGreeting(t, reg)
	reg.RegisterSkill(&skilltypes.Skill{
		ID:          "farewell",
		Name:        "Farewell",
		Description: "Say goodbye",
		Source:      skilltypes.SourceLocal,
		Content:     "Bye",
	})

	assert.Len(t, exec.ListSkills("", ""), 2)
	assert.Len(t, exec.ListSkills("goodbye", ""), 1)
	assert.Len(t, exec.ListSkills("", skilltypes.SourceLocal), 1)
	assert.Empty(t, exec.ListSkills("goodbye", skilltypes.SourceRepository))
}

func TestGetSkillDocumentation(t *testing.T) {
	exec, reg := newTestExecutor(t)
	registerGreeting(t, reg)

	content, err := exec.GetSkillDocumentation("greeting")
	require.NoError(t, err)
	assert.Equal(t, "Hello, {{name}}! Welcome to ${team}.", content, "raw content, no substitution")
}
