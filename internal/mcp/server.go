package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/review-routing/internal/artifacts"
	"github.com/a3tai/review-routing/internal/config"
	"github.com/a3tai/review-routing/internal/descriptions"
	"github.com/a3tai/review-routing/internal/review"
	"github.com/a3tai/review-routing/internal/scoring"
)

// shutdownTimeout bounds graceful shutdown in server mode
const shutdownTimeout = 5 * time.Second

// Server represents the MCP server instance
type Server struct {
	config        *config.Config
	reviewService *review.Service
	mcpServer     *server.MCPServer

	// stdio transport streams
	stdin  io.Reader
	stdout io.Writer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, reviewService *review.Service) (*Server, error) {
	if reviewService == nil {
		return nil, fmt.Errorf("reviewService cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // the tool list is fixed
	)

	s := &Server{
		config:        cfg,
		reviewService: reviewService,
		mcpServer:     mcpServer,
		stdin:         os.Stdin,
		stdout:        os.Stdout,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	scorePageTool := mcp.NewTool(
		"score_page",
		mcp.WithDescription(descriptions.GetToolDescription("score_page")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Page directory, absolute or relative to the artifact root"),
		),
		mcp.WithString("record_type",
			mcp.Description("Record type override (baptism, marriage, funeral, ...)"),
		),
		mcp.WithBoolean("write",
			mcp.Description("Write scoring_v2.json into the page directory"),
		),
	)
	s.mcpServer.AddTool(scorePageTool, s.handleScorePage)

	scoreArtifactsTool := mcp.NewTool(
		"score_artifacts",
		mcp.WithDescription(descriptions.GetToolDescription("score_artifacts")),
		mcp.WithString("record_candidates",
			mcp.Required(),
			mcp.Description("record_candidates.json document as a JSON string"),
		),
		mcp.WithString("record_candidates_provenance",
			mcp.Description("record_candidates_provenance.json document as a JSON string"),
		),
		mcp.WithString("table_provenance",
			mcp.Description("table_provenance.json document as a JSON string"),
		),
		mcp.WithString("tokens_normalized",
			mcp.Description("tokens_normalized.json document as a JSON string"),
		),
		mcp.WithString("record_type",
			mcp.Description("Record type override"),
		),
	)
	s.mcpServer.AddTool(scoreArtifactsTool, s.handleScoreArtifacts)

	findPagesTool := mcp.NewTool(
		"find_pages",
		mcp.WithDescription(descriptions.GetToolDescription("find_pages")),
		mcp.WithString("directory",
			mcp.Description("Directory to search (uses the artifact root if empty)"),
		),
		mcp.WithString("query",
			mcp.Description("Optional case-insensitive filter on the page path"),
		),
	)
	s.mcpServer.AddTool(findPagesTool, s.handleFindPages)

	serverInfoTool := mcp.NewTool(
		"routing_server_info",
		mcp.WithDescription(descriptions.GetToolDescription("routing_server_info")),
	)
	s.mcpServer.AddTool(serverInfoTool, s.handleServerInfo)
}

// Handler functions
func (s *Server) handleScorePage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := request.GetArguments()
	req := review.ScorePageRequest{Path: path}
	if rt, ok := args["record_type"].(string); ok {
		req.RecordType = strings.TrimSpace(rt)
	}
	if write, ok := args["write"].(bool); ok {
		req.Write = write
	}

	result, err := s.reviewService.ScorePage(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return scoreToolResult(result)
}

func (s *Server) handleScoreArtifacts(ctx context.Context, request mcp.CallToolRequest) (
	*mcp.CallToolResult, error,
) {
	candidates, err := request.RequireString("record_candidates")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := request.GetArguments()
	optional := func(name string) string {
		if v, ok := args[name].(string); ok {
			return v
		}
		return ""
	}

	req := review.ScoreInlineRequest{
		Candidates: candidates,
		Provenance: optional("record_candidates_provenance"),
		Table:      optional("table_provenance"),
		Tokens:     optional("tokens_normalized"),
		RecordType: strings.TrimSpace(optional("record_type")),
	}

	result, err := s.reviewService.ScoreInline(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return scoreToolResult(result)
}

func (s *Server) handleFindPages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	directory := s.config.ArtifactDirectory // default
	if dir, ok := args["directory"].(string); ok && dir != "" {
		directory = dir
	}

	query := ""
	if q, ok := args["query"].(string); ok {
		query = q
	}

	result, err := s.reviewService.FindPages(review.FindPagesRequest{Directory: directory, Query: query})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var responseText string
	if result.TotalCount == 0 {
		responseText = fmt.Sprintf("No pages found in directory: %s", result.Directory)
		if result.SearchQuery != "" {
			responseText += fmt.Sprintf(" (searched for: %s)", result.SearchQuery)
		}
	} else {
		responseText = s.formatFindPagesResult(result)
	}

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result := s.reviewService.Info(ctx, s.config.ServerName, s.config.Version)
	return mcp.NewToolResultText(s.formatServerInfoResult(result)), nil
}

// scoreToolResult renders a readable summary followed by the full JSON result
func scoreToolResult(result *review.ScoreResult) (*mcp.CallToolResult, error) {
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(formatScoreResult(result)),
			mcp.NewTextContent(string(payload)),
		},
	}, nil
}

// Formatting methods
func formatScoreResult(out *review.ScoreResult) string {
	result := out.Result

	text := fmt.Sprintf("Routing: %s (page score %.4f)\n", result.RoutingRecommendation, result.PageScore)
	if out.Dir != "" {
		text += fmt.Sprintf("Page: %s\n", out.Dir)
	}
	text += fmt.Sprintf("Run: %s\n", out.RunID)
	text += fmt.Sprintf("Record type: %s\n", result.Thresholds.RecordType)
	text += fmt.Sprintf("Rows: %d (%d need review)\n", result.Summary.TotalRows, result.Summary.RowsNeedReview)
	text += fmt.Sprintf("Fields: %d (%d flagged)\n", result.Summary.TotalFields, result.Summary.FieldsFlagged)
	if result.Summary.UnresolvedTokenRefs > 0 {
		text += fmt.Sprintf("⚠️  %d token reference(s) not found in tokens_normalized.json\n",
			result.Summary.UnresolvedTokenRefs)
	}
	if out.WrittenTo != "" {
		text += fmt.Sprintf("Written to: %s\n", out.WrittenTo)
	}

	if result.Summary.TotalRows == 0 {
		text += "\n⚠️  No record candidates on this page; routed to review.\n"
		return text
	}

	for _, row := range result.Rows {
		if !row.NeedsReview {
			continue
		}
		text += fmt.Sprintf("\nRow %d (source row %d): score %.4f, %s\n",
			row.CandidateIndex, row.SourceRowIndex, row.RowScore, joinReasons(row.Reasons))
		for _, field := range row.Fields {
			if !field.NeedsReview {
				continue
			}
			text += fmt.Sprintf("   • %s: %.4f", field.FieldName, field.FieldScore)
			if ocr, ok := out.EvidenceFor(row.CandidateIndex, field.FieldName); ok {
				text += fmt.Sprintf("\n     OCR text: %q", ocr)
			}
			for _, line := range scoring.Explain(field) {
				text += "\n     " + line
			}
			text += "\n"
		}
	}

	return text
}

func joinReasons(reasons []scoring.ReasonCode) string {
	parts := make([]string, len(reasons))
	for i, r := range reasons {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}

func (s *Server) formatFindPagesResult(result *artifacts.FindPagesResult) string {
	text := fmt.Sprintf("Found %d page(s) in directory: %s\n", result.TotalCount, result.Directory)
	if result.SearchQuery != "" {
		text += fmt.Sprintf("Search query: %s\n", result.SearchQuery)
	}
	text += "\nPages:\n"

	for i, page := range result.Pages {
		text += fmt.Sprintf("%d. %s\n", i+1, page.Name)
		text += fmt.Sprintf("   Path: %s\n", page.Path)
		text += fmt.Sprintf("   Scored: %t\n", page.HasResult)
		text += fmt.Sprintf("   Modified: %s\n", page.ModifiedTime)
		if i < len(result.Pages)-1 {
			text += "\n"
		}
	}

	return text
}

func (s *Server) formatServerInfoResult(result *review.ServerInfoResult) string {
	text := fmt.Sprintf("📋 %s v%s - Server Information\n", result.ServerName, result.Version)
	text += fmt.Sprintf("📁 Artifact Root: %s\n", result.ArtifactRoot)
	text += fmt.Sprintf("📏 Max Artifact Size: %d MB\n\n", result.MaxFileSize/(1024*1024))

	th := result.Thresholds
	text += "🎚️  Thresholds:\n"
	text += fmt.Sprintf("  • low OCR confidence: %v\n", th.LowOCRConf)
	text += fmt.Sprintf("  • minimum value length: %d\n", th.MinValueLength)
	text += fmt.Sprintf("  • field review below: %v\n", th.FieldReviewThreshold)
	text += fmt.Sprintf("  • row review below: %v\n", th.RowReviewThreshold)
	if th.RecordType != "" {
		text += fmt.Sprintf("  • record type override: %s\n", th.RecordType)
	}
	text += fmt.Sprintf("  • date fields: %s\n\n", strings.Join(th.DateRequiredTypes, ", "))

	if len(result.Pages) > 0 {
		text += fmt.Sprintf("📂 Pages (%d found):\n", len(result.Pages))
		for i, page := range result.Pages {
			if i >= 10 {
				text += fmt.Sprintf("   ... and %d more pages\n", len(result.Pages)-10)
				break
			}
			text += fmt.Sprintf("   %d. %s (scored: %t)\n", i+1, page.Name, page.HasResult)
		}
		text += "\n"
	} else {
		text += "📂 Pages: No page directories found under the artifact root\n\n"
	}

	text += "🛠️  Available Tools:\n"
	for _, tool := range result.AvailableTools {
		text += fmt.Sprintf("\n• %s\n", tool.Name)
		text += fmt.Sprintf("  Usage: %s\n", tool.Usage)
		text += fmt.Sprintf("  Parameters: %s\n", tool.Parameters)
	}

	text += "\n" + result.UsageGuidance

	return text
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode serves MCP over the process's standard streams
func (s *Server) runStdioMode(ctx context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting review routing MCP server in stdio mode")
		log.Printf("Artifact directory: %s", s.config.ArtifactDirectory)
	}

	stdio := server.NewStdioServer(s.mcpServer)
	err := stdio.Listen(ctx, s.stdin, s.stdout)
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return nil
	}
	return fmt.Errorf("failed to serve stdio: %w", err)
}

// runServerMode serves MCP over HTTP with server-sent events until ctx ends
func (s *Server) runServerMode(ctx context.Context) error {
	addr := s.config.Address()
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+addr))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           sse,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("Starting review routing MCP server on %s", addr)
	log.Printf("Artifact directory: %s", s.config.ArtifactDirectory)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to serve http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		_ = httpServer.Close()
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve http: %w", err)
	}
	return nil
}
