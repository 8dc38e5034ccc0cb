package review

import (
	"github.com/a3tai/review-routing/internal/artifacts"
	"github.com/a3tai/review-routing/internal/scoring"
)

// ScorePageRequest asks for a page directory to be scored
type ScorePageRequest struct {
	Path       string `json:"path"`
	RecordType string `json:"record_type,omitempty"`
	Write      bool   `json:"write,omitempty"`
}

// ScoreInlineRequest carries the four input documents as JSON text.
// Empty documents are treated as absent.
type ScoreInlineRequest struct {
	Candidates string `json:"record_candidates"`
	Provenance string `json:"record_candidates_provenance,omitempty"`
	Table      string `json:"table_provenance,omitempty"`
	Tokens     string `json:"tokens_normalized,omitempty"`
	RecordType string `json:"record_type,omitempty"`
}

// ScoreResult is the outcome of one scoring run
type ScoreResult struct {
	RunID       string          `json:"run_id"`
	Dir         string          `json:"dir,omitempty"`
	InputDigest string          `json:"input_digest"`
	Present     []string        `json:"present_artifacts"`
	WrittenTo   string          `json:"written_to,omitempty"`
	Result      *scoring.Result `json:"result"`
	// Evidence holds the OCR token text behind each field that needs review
	Evidence []FieldEvidence `json:"evidence,omitempty"`
}

// FieldEvidence is the OCR text a flagged field was extracted from
type FieldEvidence struct {
	CandidateIndex int    `json:"candidate_index"`
	FieldName      string `json:"field_name"`
	TokenText      string `json:"token_text"`
}

// EvidenceFor returns the token text recorded for a field
func (r *ScoreResult) EvidenceFor(candidateIndex int, fieldName string) (string, bool) {
	for _, e := range r.Evidence {
		if e.CandidateIndex == candidateIndex && e.FieldName == fieldName {
			return e.TokenText, true
		}
	}
	return "", false
}

// FindPagesRequest searches for page directories
type FindPagesRequest struct {
	Directory string `json:"directory,omitempty"`
	Query     string `json:"query,omitempty"`
}

// ToolInfo describes an available tool
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage"`
	Parameters  string `json:"parameters"`
}

// ServerInfoResult describes the server, its scoring configuration and the
// pages it can see
type ServerInfoResult struct {
	ServerName     string               `json:"server_name"`
	Version        string               `json:"version"`
	ArtifactRoot   string               `json:"artifact_root"`
	MaxFileSize    int64                `json:"max_file_size"`
	Thresholds     scoring.Thresholds   `json:"thresholds"`
	RequiredFields map[string][]string  `json:"required_fields"`
	ColumnMap      map[string]string    `json:"column_map,omitempty"`
	Pages          []artifacts.PageInfo `json:"pages"`
	AvailableTools []ToolInfo           `json:"available_tools"`
	UsageGuidance  string               `json:"usage_guidance"`
}
