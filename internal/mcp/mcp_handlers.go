package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/huangsam/repohealth/core"
	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/internal/outwriter"
	"github.com/huangsam/repohealth/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.StoreManager
}

func (h *toolHandler) handleAnalyzeRepositoryHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	if p := request.GetString("repo_path", ""); p != "" {
		abs, err := contract.ResolveRepoPath(p)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid repo_path '%s': %v", p, err)), nil
		}
		cfg.RepoPath = abs
	}
	format := schema.OutputMode(strings.ToLower(request.GetString("format", string(schema.JSONOut))))
	if _, ok := schema.ValidOutputModes[format]; !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported format '%s'. must be json, human or csv", format)), nil
	}

	report, err := core.GetHealthReport(ctx, cfg, h.mgr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}

	var buf bytes.Buffer
	switch format {
	case schema.CSVOut:
		err = outwriter.RenderCSV(&buf, report)
	case schema.HumanOut:
		err = outwriter.RenderHuman(&buf, report, outwriter.RenderOptions{})
	default:
		err = outwriter.RenderJSON(&buf, report)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("rendering failed: %v", err)), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func (h *toolHandler) handleGetScoreModel(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(h.baseCfg.ScoreModel, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode score model: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}
