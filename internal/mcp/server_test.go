package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/a3tai/review-routing/internal/artifacts"
	"github.com/a3tai/review-routing/internal/config"
	"github.com/a3tai/review-routing/internal/review"
	"github.com/a3tai/review-routing/internal/scoring"
)

const (
	testCandidates = `{"detectedType": "baptism", "candidates": [{
  "recordType": "baptism", "confidence": 0.9, "sourceRowIndex": 1,
  "fields": {"child_name": "John Smith", "date_of_baptism": "1921-03-05", "date_of_birth": "1921-02-20"}
}]}`
	testProvenance = `{"fields": [
  {"candidate_index": 0, "field_name": "child_name", "provenance": {"token_ids": [0], "confidence": 0.95}},
  {"candidate_index": 0, "field_name": "date_of_baptism", "provenance": {"token_ids": [1], "confidence": 0.93}},
  {"candidate_index": 0, "field_name": "date_of_birth", "provenance": {"token_ids": [2], "confidence": 0.91}}
]}`
	testTokens = `{"tokens": [{"token_id": 0, "text": "John Smith"}, {"token_id": 1, "text": "1921-03-05"}, {"token_id": 2, "text": "1921-02-20"}]}`

	// a row whose date cannot be parsed and whose name is a single letter
	flaggedCandidates = `{"detectedType": "baptism", "candidates": [{
  "recordType": "baptism", "confidence": 0.9, "sourceRowIndex": 4,
  "fields": {"child_name": "J", "date_of_baptism": "sometime in spring", "date_of_birth": "1921-02-20"}
}]}`
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		Mode:              "stdio",
		ArtifactDirectory: root,
		ServerName:        "test-server",
		Version:           "1.0.0",
		MaxFileSize:       1024 * 1024,
		LogLevel:          "info",
	}

	svc, err := review.NewService(root, cfg.MaxFileSize, scoring.DefaultOptions())
	if err != nil {
		t.Fatalf("review.NewService() error = %v", err)
	}
	s, err := NewServer(cfg, svc)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return s, root
}

func writePage(t *testing.T, dir string, docs map[string]string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create page dir: %v", err)
	}
	for name, content := range docs {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultTexts returns the text of every text content item
func resultTexts(t *testing.T, result *mcp.CallToolResult) []string {
	t.Helper()
	if result == nil {
		t.Fatal("expected result, got nil")
	}
	var texts []string
	for _, content := range result.Content {
		switch c := content.(type) {
		case mcp.TextContent:
			texts = append(texts, c.Text)
		case *mcp.TextContent:
			texts = append(texts, c.Text)
		default:
			t.Fatalf("unexpected content type %T", content)
		}
	}
	return texts
}

func decodeScoreResult(t *testing.T, texts []string) review.ScoreResult {
	t.Helper()
	if len(texts) != 2 {
		t.Fatalf("expected summary and JSON content, got %d items", len(texts))
	}
	var out review.ScoreResult
	if err := json.Unmarshal([]byte(texts[1]), &out); err != nil {
		t.Fatalf("JSON content does not decode: %v", err)
	}
	return out
}

func TestNewServer(t *testing.T) {
	cfg := &config.Config{ServerName: "test", Version: "1.0.0"}

	if _, err := NewServer(cfg, nil); err == nil {
		t.Error("NewServer() expected error for nil service")
	}

	svc, err := review.NewService(t.TempDir(), 1024, scoring.DefaultOptions())
	if err != nil {
		t.Fatalf("review.NewService() error = %v", err)
	}
	s, err := NewServer(cfg, svc)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	if s.config != cfg || s.reviewService != svc || s.mcpServer == nil {
		t.Error("server not initialized correctly")
	}
}

func TestHandleScorePage(t *testing.T) {
	s, root := newTestServer(t)
	writePage(t, filepath.Join(root, "register", "page_0001"), map[string]string{
		artifacts.CandidatesFile: testCandidates,
		artifacts.ProvenanceFile: testProvenance,
		artifacts.TokensFile:     testTokens,
	})

	result, err := s.handleScorePage(context.Background(), callRequest("score_page", map[string]any{
		"path": "register/page_0001",
	}))
	if err != nil {
		t.Fatalf("handleScorePage() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("handleScorePage() returned tool error: %v", resultTexts(t, result))
	}

	texts := resultTexts(t, result)
	if !strings.Contains(texts[0], "Routing: accepted") {
		t.Errorf("summary = %q, want accepted routing", texts[0])
	}
	out := decodeScoreResult(t, texts)
	if out.Result.RoutingRecommendation != scoring.RoutingAccepted {
		t.Errorf("routing = %v, want accepted", out.Result.RoutingRecommendation)
	}
	if out.WrittenTo != "" {
		t.Errorf("WrittenTo = %q, want empty without write", out.WrittenTo)
	}
}

func TestHandleScorePage_WriteAndFlags(t *testing.T) {
	s, root := newTestServer(t)
	pageDir := filepath.Join(root, "page_0004")
	writePage(t, pageDir, map[string]string{artifacts.CandidatesFile: flaggedCandidates})

	result, err := s.handleScorePage(context.Background(), callRequest("score_page", map[string]any{
		"path":  pageDir,
		"write": true,
	}))
	if err != nil {
		t.Fatalf("handleScorePage() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("handleScorePage() returned tool error: %v", resultTexts(t, result))
	}

	texts := resultTexts(t, result)
	out := decodeScoreResult(t, texts)
	if out.WrittenTo != filepath.Join(out.Dir, artifacts.ResultFile) {
		t.Errorf("WrittenTo = %q", out.WrittenTo)
	}
	if _, err := os.Stat(out.WrittenTo); err != nil {
		t.Errorf("result file not written: %v", err)
	}

	row, ok := out.Result.Row(0)
	if !ok || !row.NeedsReview {
		t.Fatalf("expected row 0 to need review, got %+v", out.Result.Rows)
	}
	for _, want := range []string{"source row 4", "date_of_baptism", string(scoring.ReasonDateParseFail)} {
		if !strings.Contains(texts[0], want) {
			t.Errorf("summary missing %q:\n%s", want, texts[0])
		}
	}
}

func TestHandleScoreArtifacts_ShowsTokenText(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleScoreArtifacts(context.Background(), callRequest("score_artifacts", map[string]any{
		"record_candidates": flaggedCandidates,
		"record_candidates_provenance": `{"fields": [
  {"candidate_index": 0, "field_name": "date_of_baptism", "provenance": {"token_ids": [0, 1], "confidence": 0.9}}
]}`,
		"tokens_normalized": `{"tokens": [{"token_id": 0, "text": "sometime in"}, {"token_id": 1, "text": "spring"}]}`,
	}))
	if err != nil {
		t.Fatalf("handleScoreArtifacts() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("handleScoreArtifacts() returned tool error: %v", resultTexts(t, result))
	}

	summary := resultTexts(t, result)[0]
	if !strings.Contains(summary, `OCR text: "sometime in spring"`) {
		t.Errorf("summary missing token text:\n%s", summary)
	}
}

func TestHandleScorePage_Errors(t *testing.T) {
	s, root := newTestServer(t)
	writePage(t, filepath.Join(root, "broken"), map[string]string{artifacts.CandidatesFile: `{"candidates": 7}`})

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing path", map[string]any{}},
		{"outside root", map[string]any{"path": "../../etc"}},
		{"missing directory", map[string]any{"path": "nope"}},
		{"invalid artifact", map[string]any{"path": "broken"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.handleScorePage(context.Background(), callRequest("score_page", tt.args))
			if err != nil {
				t.Fatalf("handleScorePage() error = %v", err)
			}
			if !result.IsError {
				t.Errorf("expected tool error, got %v", resultTexts(t, result))
			}
		})
	}
}

func TestHandleScoreArtifacts(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleScoreArtifacts(context.Background(), callRequest("score_artifacts", map[string]any{
		"record_candidates":            testCandidates,
		"record_candidates_provenance": testProvenance,
		"tokens_normalized":            testTokens,
		"record_type":                  " marriage ",
	}))
	if err != nil {
		t.Fatalf("handleScoreArtifacts() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("handleScoreArtifacts() returned tool error: %v", resultTexts(t, result))
	}

	out := decodeScoreResult(t, resultTexts(t, result))
	if out.Result.Thresholds.RecordType != "marriage" {
		t.Errorf("RecordType = %q, want marriage", out.Result.Thresholds.RecordType)
	}
	if out.Dir != "" {
		t.Errorf("Dir = %q, want empty for inline scoring", out.Dir)
	}
	if len(out.InputDigest) != 64 {
		t.Errorf("InputDigest = %q, want 64 hex characters", out.InputDigest)
	}
}

func TestHandleScoreArtifacts_EmptyPage(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleScoreArtifacts(context.Background(), callRequest("score_artifacts", map[string]any{
		"record_candidates": `{"candidates": []}`,
	}))
	if err != nil {
		t.Fatalf("handleScoreArtifacts() error = %v", err)
	}

	texts := resultTexts(t, result)
	if !strings.Contains(texts[0], "No record candidates") {
		t.Errorf("summary = %q, want empty page notice", texts[0])
	}
	if out := decodeScoreResult(t, texts); out.Result.RoutingRecommendation != scoring.RoutingReview {
		t.Errorf("routing = %v, want review", out.Result.RoutingRecommendation)
	}
}

func TestHandleScoreArtifacts_Errors(t *testing.T) {
	s, _ := newTestServer(t)

	for name, args := range map[string]map[string]any{
		"missing candidates": {"tokens_normalized": testTokens},
		"malformed json":     {"record_candidates": `{"candidates": [`},
		"schema violation":   {"record_candidates": `{"candidates": [{"fields": []}]}`},
	} {
		t.Run(name, func(t *testing.T) {
			result, err := s.handleScoreArtifacts(context.Background(), callRequest("score_artifacts", args))
			if err != nil {
				t.Fatalf("handleScoreArtifacts() error = %v", err)
			}
			if !result.IsError {
				t.Errorf("expected tool error, got %v", resultTexts(t, result))
			}
		})
	}
}

func TestHandleFindPages(t *testing.T) {
	s, root := newTestServer(t)
	writePage(t, filepath.Join(root, "a", "page_0001"), map[string]string{artifacts.CandidatesFile: testCandidates})
	writePage(t, filepath.Join(root, "a", "page_0002"), map[string]string{
		artifacts.CandidatesFile: testCandidates,
		artifacts.ResultFile:     `{}`,
	})

	tests := []struct {
		name     string
		args     map[string]any
		contains []string
	}{
		{
			name:     "default directory",
			args:     map[string]any{},
			contains: []string{"Found 2 page(s)", "a/page_0001", "Scored: true"},
		},
		{
			name:     "with query",
			args:     map[string]any{"query": "0002"},
			contains: []string{"Found 1 page(s)", "Search query: 0002"},
		},
		{
			name:     "no matches",
			args:     map[string]any{"query": "missing"},
			contains: []string{"No pages found", "(searched for: missing)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.handleFindPages(context.Background(), callRequest("find_pages", tt.args))
			if err != nil {
				t.Fatalf("handleFindPages() error = %v", err)
			}
			if result.IsError {
				t.Fatalf("handleFindPages() returned tool error: %v", resultTexts(t, result))
			}
			text := resultTexts(t, result)[0]
			for _, want := range tt.contains {
				if !strings.Contains(text, filepath.FromSlash(want)) {
					t.Errorf("result missing %q:\n%s", want, text)
				}
			}
		})
	}
}

func TestHandleFindPages_OutsideRoot(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleFindPages(context.Background(), callRequest("find_pages", map[string]any{
		"directory": t.TempDir(),
	}))
	if err != nil {
		t.Fatalf("handleFindPages() error = %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for directory outside the artifact root")
	}
}

func TestHandleServerInfo(t *testing.T) {
	s, root := newTestServer(t)
	writePage(t, filepath.Join(root, "page_0001"), map[string]string{artifacts.CandidatesFile: testCandidates})

	result, err := s.handleServerInfo(context.Background(), callRequest("routing_server_info", nil))
	if err != nil {
		t.Fatalf("handleServerInfo() error = %v", err)
	}

	text := resultTexts(t, result)[0]
	for _, want := range []string{
		"test-server v1.0.0",
		root,
		"low OCR confidence: 0.7",
		"Pages (1 found)",
		"score_page",
		"score_artifacts",
		"find_pages",
		"routing_server_info",
		"Routing bands",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("server info missing %q:\n%s", want, text)
		}
	}
}
