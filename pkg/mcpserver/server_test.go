package mcpserver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillmesh/skillmesh/pkg/executor"
	"github.com/skillmesh/skillmesh/pkg/manager"
	"github.com/skillmesh/skillmesh/pkg/parser"
	"github.com/skillmesh/skillmesh/pkg/registry"
	skilltypes "github.com/skillmesh/skillmesh/pkg/types/skills"
)

func newTestMCPServer(t *testing.T) *Server {
	t.Helper()

	reg := registry.New()
	reg.AddSource(skilltypes.SourceDescriptor{Type: skilltypes.SourceTypeGit, Priority: 1})
	reg.RegisterSkill(&skilltypes.Skill{
		ID:          "greeting",
		Name:        "Greeting",
		Description: "Say hello",
		Source:      skilltypes.SourceRepository,
		Content:     "Hello, {{name}}!",
		Parameters: []skilltypes.ParameterSchema{
			{Name: "name", Type: skilltypes.TypeString, Required: true},
		},
		LastUpdated: time.Now(),
	})

	p, err := parser.New()
	require.NoError(t, err)

	return New(manager.New(reg, executor.New(reg), p))
}

func toolRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestListSkillsTool(t *testing.T) {
	s := newTestMCPServer(t)

	result, err := s.handleListSkills(context.Background(), toolRequest("list_skills", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var list manager.ListResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "greeting", list.Skills[0].ID)
}

func TestListSkillsToolRejectsBadSource(t *testing.T) {
	s := newTestMCPServer(t)

	result, err := s.handleListSkills(context.Background(),
		toolRequest("list_skills", map[string]any{"source": "bogus"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestGetSkillTool(t *testing.T) {
	s := newTestMCPServer(t)

	result, err := s.handleGetSkill(context.Background(),
		toolRequest("get_skill", map[string]any{"skill_id": "greeting"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "Hello, {{name}}!", resultText(t, result))
}

func TestGetSkillToolMissingArgument(t *testing.T) {
	s := newTestMCPServer(t)

	result, err := s.handleGetSkill(context.Background(), toolRequest("get_skill", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestGetSkillToolNotFound(t *testing.T) {
	s := newTestMCPServer(t)

	result, err := s.handleGetSkill(context.Background(),
		toolRequest("get_skill", map[string]any{"skill_id": "missing"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "SkillNotFound")
}

func TestInvokeSkillTool(t *testing.T) {
	s := newTestMCPServer(t)

	result, err := s.handleInvokeSkill(context.Background(),
		toolRequest("invoke_skill", map[string]any{
			"skill_id":   "greeting",
			"parameters": map[string]any{"name": "Ada"},
		}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "Hello, Ada!", resultText(t, result))
}

func TestInvokeSkillToolViolations(t *testing.T) {
	s := newTestMCPServer(t)

	result, err := s.handleInvokeSkill(context.Background(),
		toolRequest("invoke_skill", map[string]any{
			"skill_id":   "greeting",
			"parameters": map[string]any{"name": 42, "extra": true},
		}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "InvalidParams")
	assert.Contains(t, text, `expects type string`)
	assert.Contains(t, text, `unknown parameter "extra"`)
}

func TestInvokeSkillToolBadParametersShape(t *testing.T) {
	s := newTestMCPServer(t)

	result, err := s.handleInvokeSkill(context.Background(),
		toolRequest("invoke_skill", map[string]any{
			"skill_id":   "greeting",
			"parameters": "name=Ada",
		}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestRefreshSkillsToolNoSources(t *testing.T) {
	s := newTestMCPServer(t)

	result, err := s.handleRefreshSkills(context.Background(), toolRequest("refresh_skills", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var refresh manager.RefreshResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &refresh))
	assert.True(t, refresh.Success)
}
