// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the capture journal for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/jera/internal/index"
	"github.com/starford/jera/internal/journal"
)

// Server wraps the MCP server with journal tools.
type Server struct {
	mcp *server.MCPServer
	svc *journal.Service
}

// New creates a new MCP server with all journal tools registered.
func New(svc *journal.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Jera",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_month",
		mcp.WithDescription("List all captures for a month, merged with their editable metadata."),
		mcp.WithNumber("year", mcp.Required(), mcp.Description("Four-digit year, e.g. 2025")),
		mcp.WithNumber("month", mcp.Required(), mcp.Description("Month number 1-12")),
	), s.listMonth)

	s.mcp.AddTool(mcp.NewTool("get_item",
		mcp.WithDescription("Fetch a single capture record by id (the filename stem, e.g. 2025-12-12_074512)."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Capture id")),
	), s.getItem)

	s.mcp.AddTool(mcp.NewTool("latest_capture",
		mcp.WithDescription("Return the most recent live capture."),
	), s.latestCapture)

	s.mcp.AddTool(mcp.NewTool("update_item_meta",
		mcp.WithDescription("Update the editable mood/notes metadata of a capture. "+
			"At least one of mood or notes must be supplied."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Capture id")),
		mcp.WithString("mood", mcp.Description("Short mood label")),
		mcp.WithString("notes", mcp.Description("Free-text notes")),
	), s.updateItemMeta)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listMonth(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	year, err := req.RequireInt("year")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	month, err := req.RequireInt("month")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if month < 1 || month > 12 {
		return mcp.NewToolResultError("month must be 1-12"), nil
	}

	items, err := s.svc.ListMonth(year, month)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getItem(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.GetItem(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	out, _ := json.MarshalIndent(rec, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) latestCapture(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rec, err := s.svc.Latest()
	if err != nil {
		return mcp.NewToolResultError("no captures recorded yet"), nil
	}
	out, _ := json.MarshalIndent(rec, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) updateItemMeta(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var patch index.FieldPatch
	if mood := req.GetString("mood", ""); mood != "" {
		patch.Mood = &mood
	}
	if notes := req.GetString("notes", ""); notes != "" {
		patch.Notes = &notes
	}
	if patch.IsZero() {
		return mcp.NewToolResultError("at least one of mood, notes is required"), nil
	}

	rec, err := s.svc.UpdateMeta(id, patch)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(rec, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
