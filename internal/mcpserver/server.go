// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the patch manifest and sync runs over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/irowiki-org/iROWikiPatcherTool/internal/history"
	"github.com/irowiki-org/iROWikiPatcherTool/internal/patchsync"
)

const formatURI = "patchsync://manifest-format"

// Server wraps the MCP server with patchsync tools.
type Server struct {
	mcp  *server.MCPServer
	svc  *patchsync.Service
	runs history.Store // nil when the run ledger is disabled
}

// New creates a new MCP server with all patchsync tools registered.
func New(svc *patchsync.Service, runs history.Store, version string) *Server {
	s := &Server{svc: svc, runs: runs}

	s.mcp = server.NewMCPServer(
		"patchsync",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_entries",
		mcp.WithDescription("List the active manifest entries (identifier and filename), optionally filtered by filename."),
		mcp.WithString("name", mcp.Description("Only return entries for this filename")),
	), s.listEntries)

	s.mcp.AddTool(mcp.NewTool("read_manifest",
		mcp.WithDescription("Read the raw manifest text, including deactivated lines."),
	), s.readManifest)

	s.mcp.AddTool(mcp.NewTool("run_sync",
		mcp.WithDescription("Apply the current change report to the manifest and publish it. "+
			"Read the format contract via get_manifest_format first to understand the effect."),
	), s.runSync)

	s.mcp.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List recent sync runs, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default 20)")),
	), s.listRuns)

	s.mcp.AddTool(mcp.NewTool("get_manifest_format",
		mcp.WithDescription("Returns the manifest format and sync rules."),
	), s.getManifestFormat)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Manifest Format",
			mcp.WithResourceDescription("Layout of the numbered patch manifest and how syncs rewrite it."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, err := s.svc.Manifest(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entries := m.Entries()
	if name, err := req.RequireString("name"); err == nil && name != "" {
		entries = m.Active(name)
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("no active entries"), nil
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%d %s\n", e.ID, e.Name)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) readManifest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, err := s.svc.Manifest(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(m.String()), nil
}

func (s *Server) runSync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := s.svc.TryRun(ctx, patchsync.TriggerMCP)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rep)
}

func (s *Server) listRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.runs == nil {
		return mcp.NewToolResultError("run history disabled"), nil
	}
	runs, err := s.runs.List(int(req.GetFloat("limit", 20)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText("no runs recorded"), nil
	}
	return jsonResult(runs)
}

func (s *Server) getManifestFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ManifestFormatContract), nil
}

func (s *Server) readFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     ManifestFormatContract,
		},
	}, nil
}
