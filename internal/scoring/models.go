package scoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ReasonCode explains why a field's score was reduced
type ReasonCode string

const (
	ReasonDateParseFail   ReasonCode = "DATE_PARSE_FAIL"
	ReasonLowOCRConf      ReasonCode = "LOW_OCR_CONF"
	ReasonAmbiguousColumn ReasonCode = "AMBIGUOUS_COLUMN"
	ReasonMissingRequired ReasonCode = "MISSING_REQUIRED"
	ReasonShortValue      ReasonCode = "SHORT_VALUE"
	ReasonSuspiciousChars ReasonCode = "SUSPICIOUS_CHARS"
	ReasonFieldOK         ReasonCode = "FIELD_OK"
)

// AllReasonCodes returns every reason code in canonical order
func AllReasonCodes() []ReasonCode {
	return []ReasonCode{
		ReasonDateParseFail,
		ReasonLowOCRConf,
		ReasonAmbiguousColumn,
		ReasonMissingRequired,
		ReasonShortValue,
		ReasonSuspiciousChars,
		ReasonFieldOK,
	}
}

// Description returns a human-readable explanation of the reason code
func (rc ReasonCode) Description() string {
	switch rc {
	case ReasonDateParseFail:
		return "Value does not look like a date"
	case ReasonLowOCRConf:
		return "OCR confidence is below the acceptance threshold"
	case ReasonAmbiguousColumn:
		return "Table cell aligned to no tokens; column assignment is uncertain"
	case ReasonMissingRequired:
		return "Required field is missing or blank"
	case ReasonShortValue:
		return "Value is shorter than the minimum length"
	case ReasonSuspiciousChars:
		return "Value contains runs of symbols typical of OCR misreads"
	case ReasonFieldOK:
		return "No issues detected"
	default:
		return "Unknown reason"
	}
}

// Routing is the suggested disposition of a page
type Routing string

const (
	RoutingAccepted          Routing = "accepted"
	RoutingAcceptedWithFlags Routing = "accepted_with_flags"
	RoutingReview            Routing = "review"
	RoutingRetry             Routing = "retry"
)

// Method identifies the scoring algorithm in the result artifact
const Method = "scoring_v2"

// BBox is a bounding box [x0, y0, x1, y1]
type BBox [4]float64

// Token is one OCR-recognized text unit from the normalized-tokens artifact
type Token struct {
	ID                int       `json:"token_id"`
	Text              string    `json:"text"`
	Confidence        float64   `json:"confidence"`
	BBoxPx            []float64 `json:"bbox_px,omitempty"`
	BBoxNorm          []float64 `json:"bbox_norm,omitempty"`
	SourceRegionIndex int       `json:"source_region_index"`
	PageSide          string    `json:"page_side,omitempty"`
}

// TokensDoc is the normalized-tokens artifact (tokens_normalized.json)
type TokensDoc struct {
	Method string  `json:"method,omitempty"`
	Tokens []Token `json:"tokens"`
}

// FieldProvenanceBundle holds the tokens a field value was derived from
type FieldProvenanceBundle struct {
	TokenIDs   []int    `json:"token_ids"`
	BBoxUnion  *BBox    `json:"bbox_union"`
	Confidence *float64 `json:"confidence"`
}

// FieldProvenance attributes one (candidate, field) pair to tokens
type FieldProvenance struct {
	CandidateIndex int                   `json:"candidate_index"`
	FieldName      string                `json:"field_name"`
	Provenance     FieldProvenanceBundle `json:"provenance"`
}

// ProvenanceDoc is the record-candidates-provenance artifact
type ProvenanceDoc struct {
	Method string            `json:"method,omitempty"`
	Fields []FieldProvenance `json:"fields"`
}

// CellProvenance lists the tokens a table cell aligned to
type CellProvenance struct {
	TokenIDs []int `json:"token_ids"`
}

// TableCell is one cell of the table-provenance artifact
type TableCell struct {
	RowIndex   int            `json:"row_index"`
	ColumnKey  string         `json:"column_key"`
	Provenance CellProvenance `json:"provenance"`
}

// TableDoc is the table-provenance artifact (table_provenance.json)
type TableDoc struct {
	Method string      `json:"method,omitempty"`
	Cells  []TableCell `json:"cells"`
}

// RecordCandidate is one tentative structured record extracted from a page.
//
// NeedsReview is the upstream extractor's heuristic. The engine decodes it
// for completeness and never reads it: review status is recomputed from
// field scores.
type RecordCandidate struct {
	RecordType     string   `json:"recordType,omitempty"`
	Confidence     *float64 `json:"confidence"`
	Fields         FieldMap `json:"fields"`
	SourceRowIndex *int     `json:"sourceRowIndex,omitempty"`
	NeedsReview    bool     `json:"needsReview"`
}

// RowIndex returns the source table row, or -1 when upstream did not record one
func (c RecordCandidate) RowIndex() int {
	if c.SourceRowIndex == nil {
		return -1
	}
	return *c.SourceRowIndex
}

// CandidatesDoc is the record-candidates artifact (record_candidates.json)
type CandidatesDoc struct {
	Candidates   []RecordCandidate `json:"candidates"`
	DetectedType string            `json:"detectedType,omitempty"`
}

// FieldEntry is a single field name/value pair
type FieldEntry struct {
	Name  string
	Value string
}

// FieldMap is a JSON object of field values that preserves key order
type FieldMap []FieldEntry

// Has reports whether the map contains the named field
func (m FieldMap) Has(name string) bool {
	for _, e := range m {
		if e.Name == name {
			return true
		}
	}
	return false
}

// Get returns the value of the named field
func (m FieldMap) Get(name string) (string, bool) {
	for _, e := range m {
		if e.Name == name {
			return e.Value, true
		}
	}
	return "", false
}

// UnmarshalJSON decodes a JSON object, keeping keys in document order.
// A repeated key keeps its first position and its last value.
func (m *FieldMap) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("fields: expected object, got %v", tok)
	}

	var entries FieldMap
	positions := make(map[string]int)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("fields: expected string key, got %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("fields: value for %q: %w", key, err)
		}
		value := coerceFieldValue(raw)

		if pos, seen := positions[key]; seen {
			entries[pos].Value = value
			continue
		}
		positions[key] = len(entries)
		entries = append(entries, FieldEntry{Name: key, Value: value})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*m = entries
	return nil
}

// MarshalJSON encodes the map as a JSON object in insertion order
func (m FieldMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// coerceFieldValue turns a raw JSON value into the string the checks see.
// Falsy scalars (null, false, 0, "") become empty.
func coerceFieldValue(raw json.RawMessage) string {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return ""
	}

	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return ""
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return val.String()
		}
		if f == 0 {
			return ""
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	default:
		return string(raw)
	}
}

// FieldScore is the scored assessment of one field of one candidate
type FieldScore struct {
	FieldName      string       `json:"field_name"`
	CellConfidence *float64     `json:"cell_confidence"`
	ValidityScore  float64      `json:"validity_score"`
	FieldScore     float64      `json:"field_score"`
	NeedsReview    bool         `json:"needs_review"`
	Reasons        []ReasonCode `json:"reasons"`
	TokenIDs       []int        `json:"token_ids"`
	BBoxUnion      *BBox        `json:"bbox_union"`
}

// Flagged reports whether any check fired for the field
func (f FieldScore) Flagged() bool {
	return !isFieldOK(f.Reasons)
}

// RowScore aggregates the field scores of one candidate
type RowScore struct {
	CandidateIndex int          `json:"candidate_index"`
	SourceRowIndex int          `json:"source_row_index"`
	RowScore       float64      `json:"row_score"`
	NeedsReview    bool         `json:"needs_review"`
	Reasons        []ReasonCode `json:"reasons"`
	Fields         []FieldScore `json:"fields"`
}

// Thresholds is the snapshot of the configuration a result was computed with
type Thresholds struct {
	LowOCRConf           float64  `json:"low_ocr_conf"`
	DateRequiredTypes    []string `json:"date_required_types"`
	MinValueLength       int      `json:"min_value_length"`
	FieldReviewThreshold float64  `json:"field_review_threshold"`
	RowReviewThreshold   float64  `json:"row_review_threshold"`
	RecordType           string   `json:"record_type"`
}

// Summary holds page-level aggregate statistics
type Summary struct {
	TotalRows           int                `json:"total_rows"`
	RowsNeedReview      int                `json:"rows_need_review"`
	TotalFields         int                `json:"total_fields"`
	FieldsFlagged       int                `json:"fields_flagged"`
	FlagCounts          map[ReasonCode]int `json:"flag_counts"`
	UnresolvedTokenRefs int                `json:"unresolved_token_refs"`
}

// Result is the scoring_v2.json companion artifact
type Result struct {
	Method                string     `json:"method"`
	Thresholds            Thresholds `json:"thresholds"`
	Rows                  []RowScore `json:"rows"`
	PageScore             float64    `json:"page_score_v2"`
	RoutingRecommendation Routing    `json:"routing_recommendation"`
	Summary               Summary    `json:"summary"`
	RecordedAt            string     `json:"recorded_at"`
}

// Row returns the row for a candidate index
func (r *Result) Row(candidateIndex int) (RowScore, bool) {
	for _, row := range r.Rows {
		if row.CandidateIndex == candidateIndex {
			return row, true
		}
	}
	return RowScore{}, false
}

// Field returns the named field score of the row
func (r RowScore) Field(name string) (FieldScore, bool) {
	for _, f := range r.Fields {
		if f.FieldName == name {
			return f, true
		}
	}
	return FieldScore{}, false
}
