// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/repohealth/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the repohealth MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.StoreManager) *server.MCPServer {
	s := server.NewMCPServer(
		"Repository Health Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
	}

	s.AddTool(mcp.NewTool("analyze_repository_health",
		mcp.WithDescription("Run every health analyzer against a repository and return the scored report."),
		mcp.WithString("repo_path", mcp.Description("Path to the repository root (defaults to the server's configured path).")),
		mcp.WithString("format", mcp.Description("Report format. Defaults to 'json'."), mcp.Enum("json", "human", "csv")),
	), h.handleAnalyzeRepositoryHealth)

	s.AddTool(mcp.NewTool("get_score_model",
		mcp.WithDescription("Return the severity weights used to turn findings into a 0-100 score."),
	), h.handleGetScoreModel)

	return s
}

// StartMCPServer serves the MCP tools over stdio until the client disconnects.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.StoreManager) error {
	s := NewMCPServer(baseCfg, mgr)
	return server.ServeStdio(s)
}
