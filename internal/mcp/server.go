package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/revuedev/revue/internal/models"
	"github.com/revuedev/revue/internal/provider"
	"github.com/revuedev/revue/internal/reviewer"
)

// Server wraps the review core and exposes it as MCP tools.
type Server struct {
	rev      *reviewer.Reviewer
	registry *provider.Registry
}

// NewServer creates the MCP server wrapper around a configured reviewer.
func NewServer(rev *reviewer.Reviewer, registry *provider.Registry) *Server {
	return &Server{rev: rev, registry: registry}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("revue", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.reviewFileTool())
	srv.AddTool(s.reviewHistoryTool())
	srv.AddTool(s.generateReportTool())
	srv.AddTool(s.cleanupTool())
	srv.AddTool(s.listProvidersTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// revue_review_file
func (s *Server) reviewFileTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("revue_review_file",
		mcp.WithDescription("Run a code review on a local file. Returns the review as JSON: summary, comments (line_number, content, severity, category, suggested_fix), and quality score. The review is stored when a database is configured; the stored record id is included."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the file to review")),
		mcp.WithString("review_type", mcp.Description("Review focus: full, security, performance, maintainability, style, documentation, quick (default: full)")),
	)
	return tool, s.handleReviewFile
}

func (s *Server) handleReviewFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: path"), nil
	}

	var rt models.ReviewType
	if typeStr := request.GetString("review_type", ""); typeStr != "" {
		rt, err = models.ParseReviewType(typeStr)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read %s: %v", path, err)), nil
	}

	resp, id, err := s.rev.ReviewFile(ctx, path, string(content), reviewer.ReviewOptions{
		Type:    rt,
		Persist: true,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("review failed: %v", err)), nil
	}

	result := map[string]any{
		"file_path": path,
		"review":    resp,
	}
	if id != "" {
		result["id"] = id
	}

	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal review: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// revue_review_history
func (s *Server) reviewHistoryTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("revue_review_history",
		mcp.WithDescription("List stored reviews for a file, most recent first. Returns a JSON array of records with id, review type, timestamp, and the full review."),
		mcp.WithString("file_path", mcp.Required(), mcp.Description("File path the reviews were stored under")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of records to return (default: all)")),
		mcp.WithString("review_type", mcp.Description("Filter by review type: full, security, performance, maintainability, style, documentation, quick")),
	)
	return tool, s.handleReviewHistory
}

func (s *Server) handleReviewHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filePath, err := request.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: file_path"), nil
	}

	var rt models.ReviewType
	if typeStr := request.GetString("review_type", ""); typeStr != "" {
		rt, err = models.ParseReviewType(typeStr)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	limit := request.GetInt("limit", 0)

	records, err := s.rev.FileHistory(ctx, filePath, limit, rt)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list reviews: %v", err)), nil
	}

	type recordOut struct {
		ID         string           `json:"id"`
		FilePath   string           `json:"file_path"`
		ReviewType string           `json:"review_type"`
		CreatedAt  string           `json:"created_at"`
		Review     *models.Response `json:"review"`
	}

	out := make([]recordOut, len(records))
	for i, rec := range records {
		out[i] = recordOut{
			ID:         rec.ID,
			FilePath:   rec.FilePath,
			ReviewType: string(rec.ReviewType),
			CreatedAt:  rec.CreatedAt.Format(time.RFC3339),
			Review:     rec.Response,
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal records: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// revue_generate_report
func (s *Server) generateReportTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("revue_generate_report",
		mcp.WithDescription("Render the stored review history of a file as a markdown report with score trends and severity totals."),
		mcp.WithString("file_path", mcp.Required(), mcp.Description("File path the reviews were stored under")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of reviews to include (default: all)")),
	)
	return tool, s.handleGenerateReport
}

func (s *Server) handleGenerateReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filePath, err := request.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: file_path"), nil
	}

	limit := request.GetInt("limit", 0)

	rpt, err := s.rev.HistoricalReport(ctx, filePath, limit, "")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to generate report: %v", err)), nil
	}
	return mcp.NewToolResultText(rpt.Markdown()), nil
}

// revue_cleanup
func (s *Server) cleanupTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("revue_cleanup",
		mcp.WithDescription("Delete stored reviews older than the given number of days. Returns the deleted count as JSON."),
		mcp.WithNumber("older_than_days", mcp.Required(), mcp.Description("Delete records older than this many days (must be at least 1)")),
	)
	return tool, s.handleCleanup
}

func (s *Server) handleCleanup(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	days, err := request.RequireInt("older_than_days")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: older_than_days"), nil
	}
	if days < 1 {
		return mcp.NewToolResultError(fmt.Sprintf("older_than_days must be at least 1, got %d", days)), nil
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	deleted, err := s.rev.CleanupBefore(ctx, cutoff)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cleanup failed: %v", err)), nil
	}

	result := map[string]any{
		"deleted": deleted,
		"cutoff":  cutoff.Format(time.RFC3339),
	}
	data, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(data)), nil
}

// revue_list_providers
func (s *Server) listProvidersTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("revue_list_providers",
		mcp.WithDescription("List the registered review provider names as a JSON array."),
	)
	return tool, s.handleListProviders
}

func (s *Server) handleListProviders(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.registry == nil {
		return mcp.NewToolResultError("provider registry not available"), nil
	}
	data, _ := json.Marshal(s.registry.Names())
	return mcp.NewToolResultText(string(data)), nil
}
