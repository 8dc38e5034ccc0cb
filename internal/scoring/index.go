package scoring

import (
	"strconv"
)

// TokenIndex maps token ids to tokens
type TokenIndex map[int]Token

// NewTokenIndex indexes the tokens of a normalized-tokens document.
// A nil document yields an empty index.
func NewTokenIndex(doc *TokensDoc) TokenIndex {
	idx := make(TokenIndex)
	if doc == nil {
		return idx
	}
	for _, t := range doc.Tokens {
		idx[t.ID] = t
	}
	return idx
}

// Unresolved counts the ids that have no token in the index
func (idx TokenIndex) Unresolved(ids []int) int {
	n := 0
	for _, id := range ids {
		if _, ok := idx[id]; !ok {
			n++
		}
	}
	return n
}

// Text joins the token texts of the given ids in order, skipping unknown ids
func (idx TokenIndex) Text(ids []int) string {
	var out []byte
	for _, id := range ids {
		t, ok := idx[id]
		if !ok {
			continue
		}
		if len(out) > 0 {
			out = append(out, ' ')
		}
		out = append(out, t.Text...)
	}
	return string(out)
}

// ProvenanceIndex maps "{candidate_index}:{field_name}" to a provenance bundle
type ProvenanceIndex map[string]FieldProvenanceBundle

// NewProvenanceIndex indexes a record-candidates-provenance document.
// When a pair appears twice the later entry wins.
func NewProvenanceIndex(doc *ProvenanceDoc) ProvenanceIndex {
	idx := make(ProvenanceIndex)
	if doc == nil {
		return idx
	}
	for _, f := range doc.Fields {
		idx[provenanceKey(f.CandidateIndex, f.FieldName)] = f.Provenance
	}
	return idx
}

// Lookup returns the provenance bundle of a candidate field
func (idx ProvenanceIndex) Lookup(candidateIndex int, fieldName string) (FieldProvenanceBundle, bool) {
	p, ok := idx[provenanceKey(candidateIndex, fieldName)]
	return p, ok
}

// AmbiguousCells is the set of "{row_index}:{field_name}" positions whose
// table cell aligned to zero tokens
type AmbiguousCells map[string]struct{}

// NewAmbiguousCells scans table provenance for cells with no aligned tokens.
// Column keys are translated to field names through the rule set's column map.
func NewAmbiguousCells(doc *TableDoc, rules *RuleSet) AmbiguousCells {
	set := make(AmbiguousCells)
	if doc == nil {
		return set
	}
	if rules == nil {
		rules = DefaultRuleSet()
	}
	for _, cell := range doc.Cells {
		if len(cell.Provenance.TokenIDs) == 0 {
			set[cellKey(cell.RowIndex, rules.FieldForColumn(cell.ColumnKey))] = struct{}{}
		}
	}
	return set
}

// Contains reports whether the cell at (row, field) is ambiguous
func (s AmbiguousCells) Contains(rowIndex int, fieldName string) bool {
	_, ok := s[cellKey(rowIndex, fieldName)]
	return ok
}

func provenanceKey(candidateIndex int, fieldName string) string {
	return strconv.Itoa(candidateIndex) + ":" + fieldName
}

func cellKey(rowIndex int, fieldName string) string {
	return strconv.Itoa(rowIndex) + ":" + fieldName
}

// Lookups bundles the read-only indexes a page is scored against
type Lookups struct {
	Tokens     TokenIndex
	Provenance ProvenanceIndex
	Ambiguous  AmbiguousCells
}

// BuildLookups builds all three indexes in one linear pass each
func BuildLookups(in Inputs, rules *RuleSet) Lookups {
	return Lookups{
		Tokens:     NewTokenIndex(in.Tokens),
		Provenance: NewProvenanceIndex(in.Provenance),
		Ambiguous:  NewAmbiguousCells(in.Table, rules),
	}
}
