// Package review orchestrates artifact loading and scoring for the tool server
package review

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/a3tai/review-routing/internal/artifacts"
	"github.com/a3tai/review-routing/internal/descriptions"
	"github.com/a3tai/review-routing/internal/scoring"
)

// infoPageLimit caps the pages listed by Info
const infoPageLimit = 100

// Service scores pages against a fixed base configuration
type Service struct {
	maxFileSize int64
	loader      *artifacts.Loader
	opts        scoring.Options
}

// NewService creates a service reading artifacts under root
func NewService(root string, maxFileSize int64, opts scoring.Options) (*Service, error) {
	loader, err := artifacts.NewLoader(root, maxFileSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact loader: %w", err)
	}
	if err := opts.EffectiveRules().Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring rules: %w", err)
	}

	return &Service{
		maxFileSize: maxFileSize,
		loader:      loader,
		opts:        opts,
	}, nil
}

// Options returns the base scoring options
func (s *Service) Options() scoring.Options {
	return s.opts
}

// ScorePage loads a page directory, scores it and optionally writes the
// result next to the inputs
func (s *Service) ScorePage(req ScorePageRequest) (*ScoreResult, error) {
	if req.Path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}

	page, err := s.loader.Load(req.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load page: %w", err)
	}

	out := s.score(page, req.RecordType)

	if req.Write {
		path, err := s.loader.WriteResult(page.Dir, out.Result)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", out.RunID, err)
		}
		out.WrittenTo = path
		log.Printf("run %s: wrote %s", out.RunID, path)
	}

	return out, nil
}

// ScoreInline scores documents supplied in the request
func (s *Service) ScoreInline(req ScoreInlineRequest) (*ScoreResult, error) {
	page, err := s.loader.Decode(map[string][]byte{
		artifacts.CandidatesFile: []byte(req.Candidates),
		artifacts.ProvenanceFile: []byte(req.Provenance),
		artifacts.TableFile:      []byte(req.Table),
		artifacts.TokensFile:     []byte(req.Tokens),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode artifacts: %w", err)
	}
	return s.score(page, req.RecordType), nil
}

func (s *Service) score(page *artifacts.Page, recordType string) *ScoreResult {
	runID := uuid.New().String()

	opts := s.opts
	if recordType != "" {
		opts.RecordType = recordType
	}

	start := time.Now()
	result := scoring.Compute(page.Inputs, opts)

	log.Printf("run %s: scored %s: %d rows, page score %.4f, routing %s (%s)",
		runID, pageLabel(page), result.Summary.TotalRows, result.PageScore,
		result.RoutingRecommendation, time.Since(start))

	return &ScoreResult{
		RunID:       runID,
		Dir:         page.Dir,
		InputDigest: page.Digest(),
		Present:     page.Present(),
		Result:      result,
		Evidence:    flaggedEvidence(result, scoring.NewTokenIndex(page.Inputs.Tokens)),
	}
}

// flaggedEvidence resolves the token text of every field that needs review
func flaggedEvidence(result *scoring.Result, tokens scoring.TokenIndex) []FieldEvidence {
	var evidence []FieldEvidence
	for _, row := range result.Rows {
		for _, f := range row.Fields {
			if !f.NeedsReview {
				continue
			}
			text := tokens.Text(f.TokenIDs)
			if text == "" {
				continue
			}
			evidence = append(evidence, FieldEvidence{
				CandidateIndex: row.CandidateIndex,
				FieldName:      f.FieldName,
				TokenText:      text,
			})
		}
	}
	return evidence
}

func pageLabel(page *artifacts.Page) string {
	if page.Dir == "" {
		return "inline artifacts"
	}
	return page.Dir
}

// FindPages lists page directories, defaulting to the artifact root
func (s *Service) FindPages(req FindPagesRequest) (*artifacts.FindPagesResult, error) {
	return s.loader.FindPages(req.Directory, req.Query)
}

// Info reports the server configuration and a bounded list of pages. A page
// scan that fails or outlasts ctx leaves the list empty.
func (s *Service) Info(ctx context.Context, serverName, version string) *ServerInfoResult {
	rules := s.opts.EffectiveRules()

	required := make(map[string][]string, len(rules.RequiredFields))
	for recordType, fields := range rules.RequiredFields {
		required[recordType] = append([]string(nil), fields...)
	}

	return &ServerInfoResult{
		ServerName:     serverName,
		Version:        version,
		ArtifactRoot:   s.loader.Root(),
		MaxFileSize:    s.maxFileSize,
		Thresholds:     s.opts.Thresholds(s.opts.RecordType),
		RequiredFields: required,
		ColumnMap:      rules.ColumnMap,
		Pages:          s.scanPages(ctx),
		AvailableTools: availableTools(),
		UsageGuidance:  usageGuidance(sortedKeys(required)),
	}
}

func (s *Service) scanPages(ctx context.Context) []artifacts.PageInfo {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resultCh := make(chan []artifacts.PageInfo, 1)
	go func() {
		found, err := s.loader.FindPages("", "")
		if err != nil {
			resultCh <- nil
			return
		}
		resultCh <- found.Pages
	}()

	select {
	case pages := <-resultCh:
		if len(pages) > infoPageLimit {
			pages = pages[:infoPageLimit]
		}
		if pages == nil {
			pages = []artifacts.PageInfo{}
		}
		return pages
	case <-ctx.Done():
		return []artifacts.PageInfo{}
	}
}

func availableTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "score_page",
			Description: descriptions.GetToolDescription("score_page"),
			Usage:       "Score one page directory under the artifact root",
			Parameters:  "path (required), record_type (optional), write (optional boolean)",
		},
		{
			Name:        "score_artifacts",
			Description: descriptions.GetToolDescription("score_artifacts"),
			Usage:       "Score artifacts passed as JSON strings",
			Parameters: "record_candidates (required), record_candidates_provenance, table_provenance, " +
				"tokens_normalized, record_type (all optional)",
		},
		{
			Name:        "find_pages",
			Description: descriptions.GetToolDescription("find_pages"),
			Usage:       "List page directories that can be scored",
			Parameters:  "directory (optional, defaults to the artifact root), query (optional)",
		},
		{
			Name:        "routing_server_info",
			Description: descriptions.GetToolDescription("routing_server_info"),
			Usage:       "Show thresholds, rules and available pages",
			Parameters:  "none",
		},
	}
}

func usageGuidance(recordTypes []string) string {
	text := "🧭 Routing bands:\n"
	text += "  • accepted: no row needs review and page score ≥ 0.85\n"
	text += "  • accepted_with_flags: some rows need review and page score ≥ 0.60\n"
	text += "  • review: page score ≥ 0.40, or no candidates at all\n"
	text += "  • retry: page score < 0.40, re-run OCR\n"
	text += fmt.Sprintf("\n📚 Record types with required fields: %v\n", recordTypes)
	text += "Other record types have no required fields and rows score as the mean of their fields.\n"
	return text
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
