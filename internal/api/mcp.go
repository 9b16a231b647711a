package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/hoststyle/internal/analysis"
	"github.com/kalambet/hoststyle/internal/profile"
)

// MCPTracker is the slice of tracker.Tracker the MCP layer uses.
type MCPTracker interface {
	Track(ctx context.Context, hostID string, s analysis.Session) (*profile.Report, error)
	CurrentReport(ctx context.Context, hostID string) *profile.Report
	Profile(ctx context.Context, hostID string) profile.Profile
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Tracker MCPTracker
	HostID  string // used when a tool call omits host_id, and for hoststyle://profile
}

// NewMCPServer creates an MCP server with the hoststyle tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"hoststyle",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("hoststyle tracks how a discussion host facilitates sessions and reports their dominant style, trend and advice."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("track_meeting",
			mcp.WithDescription("Apply a completed discussion session to the host's style profile and return the refreshed report."),
			mcp.WithString("session", mcp.Description(`Session JSON: {"participants": [...], "questions": [{"nickname","content","vote_good","vote_bad","isAISummary"}]}`), mcp.Required()),
			mcp.WithString("host_id", mcp.Description("Host identity (defaults to the configured host)")),
		),
		mcpTrackMeeting(deps),
	)

	s.AddTool(
		mcp.NewTool("host_style_report",
			mcp.WithDescription("Return the current style report for a host."),
			mcp.WithString("host_id", mcp.Description("Host identity (defaults to the configured host)")),
		),
		mcpHostStyleReport(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"hoststyle://profile",
			"Host Style Profile",
			mcp.WithResourceDescription("Style profile of the configured host as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	return s
}

func mcpTrackMeeting(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("session")
		if err != nil {
			return mcpError("session is required"), nil
		}
		hostID := req.GetString("host_id", deps.HostID)
		if hostID == "" {
			return mcpError("host_id is required"), nil
		}

		session, err := analysis.ParseSession([]byte(raw))
		if err != nil {
			return mcpError(fmt.Sprintf("invalid session: %v", err)), nil
		}

		report, err := deps.Tracker.Track(ctx, hostID, session)
		if err != nil {
			return mcpError(fmt.Sprintf("tracking failed: %v", err)), nil
		}

		b, err := json.Marshal(report)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal report: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpHostStyleReport(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		hostID := req.GetString("host_id", deps.HostID)
		if hostID == "" {
			return mcpError("host_id is required"), nil
		}

		report := deps.Tracker.CurrentReport(ctx, hostID)
		if report == nil {
			return mcpText(fmt.Sprintf("No meetings tracked yet for %s.", hostID)), nil
		}
		return mcpText(report.Text), nil
	}
}

func mcpResourceProfile(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		p := deps.Tracker.Profile(ctx, deps.HostID)

		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
