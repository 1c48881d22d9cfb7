// Package mcpserver exposes the skill engine over the Model Context
// Protocol. It is a thin composition layer: tool definitions, argument
// extraction and JSON rendering live here, every decision belongs to the
// manager.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"

	"github.com/skillmesh/skillmesh/pkg/manager"
	skilltypes "github.com/skillmesh/skillmesh/pkg/types/skills"
	"github.com/skillmesh/skillmesh/pkg/version"
)

// Server wraps an MCP server bound to a skill manager
type Server struct {
	manager *manager.Manager
	mcp     *server.MCPServer
}

// New builds the MCP server and registers the skill tools
func New(mgr *manager.Manager) *Server {
	s := &Server{
		manager: mgr,
		mcp: server.NewMCPServer(
			"skillmesh",
			version.Get().Version,
			server.WithToolCapabilities(true),
			server.WithRecovery(),
		),
	}
	s.registerTools()
	return s
}

// ServeStdio blocks serving the MCP protocol over stdin/stdout
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("list_skills",
		mcp.WithDescription("List available skills, optionally narrowed by a text filter and source kind"),
		mcp.WithString("filter",
			mcp.Description("Case-insensitive substring matched against skill name, description and id"),
		),
		mcp.WithString("source",
			mcp.Description("Restrict results to one source kind: repository or local"),
			mcp.Enum(string(skilltypes.SourceRepository), string(skilltypes.SourceLocal)),
		),
	), s.handleListSkills)

	s.mcp.AddTool(mcp.NewTool("get_skill",
		mcp.WithDescription("Return the full documentation of a skill without substituting parameters"),
		mcp.WithString("skill_id",
			mcp.Required(),
			mcp.Description("Identifier of the skill, as returned by list_skills"),
		),
	), s.handleGetSkill)

	s.mcp.AddTool(mcp.NewTool("invoke_skill",
		mcp.WithDescription("Validate parameters against the skill's schema and return its content with placeholders substituted"),
		mcp.WithString("skill_id",
			mcp.Required(),
			mcp.Description("Identifier of the skill to invoke"),
		),
		mcp.WithObject("parameters",
			mcp.Description("Parameter values keyed by parameter name"),
		),
	), s.handleInvokeSkill)

	s.mcp.AddTool(mcp.NewTool("refresh_skills",
		mcp.WithDescription("Sync the remote skill repository and re-ingest every configured source"),
	), s.handleRefreshSkills)
}

func (s *Server) handleListSkills(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := request.GetString("filter", "")
	source := skilltypes.SourceKind(request.GetString("source", ""))
	if source != "" && source != skilltypes.SourceRepository && source != skilltypes.SourceLocal {
		return mcp.NewToolResultError("source must be \"repository\" or \"local\""), nil
	}

	result := s.manager.ListSkills(ctx, filter, source)
	return jsonResult(result)
}

func (s *Server) handleGetSkill(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("skill_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	content, err := s.manager.GetSkillDocumentation(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) handleInvokeSkill(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("skill_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	values := map[string]any{}
	if raw, ok := request.GetArguments()["parameters"]; ok && raw != nil {
		values, ok = raw.(map[string]any)
		if !ok {
			return mcp.NewToolResultError("parameters must be an object"), nil
		}
	}

	result := s.manager.InvokeSkill(ctx, id, values)
	if !result.Success {
		return errorResult(result.Error), nil
	}
	return mcp.NewToolResultText(result.Content), nil
}

func (s *Server) handleRefreshSkills(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result := s.manager.RefreshSkills(ctx)
	return jsonResult(result)
}

// jsonResult renders a boundary result as an indented JSON text block
func jsonResult(v any) (*mcp.CallToolResult, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode tool result")
	}
	return mcp.NewToolResultText(string(payload)), nil
}

// errorResult renders a coded error with its violations, keeping the code
// visible to the caller
func errorResult(err error) *mcp.CallToolResult {
	coded := skilltypes.AsError(err)
	msg := string(coded.Code) + ": " + coded.Message
	for _, violation := range coded.Violations {
		msg += "\n  - " + violation
	}
	return mcp.NewToolResultError(msg)
}
