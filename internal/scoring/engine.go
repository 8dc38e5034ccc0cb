// Package scoring implements the review-routing scoring engine: deterministic,
// explainable field, row and page quality scores computed from OCR tokens,
// table-cell provenance and extracted record candidates.
//
// Compute is a pure function. It performs no I/O, keeps no state between
// calls and may be invoked concurrently for different pages. For identical
// inputs and options the result differs only in RecordedAt.
package scoring

// Inputs carries the four upstream artifacts of one page. Any of them may be
// nil; a nil artifact is scored as empty.
type Inputs struct {
	Candidates *CandidatesDoc
	Provenance *ProvenanceDoc
	Table      *TableDoc
	Tokens     *TokensDoc
}

// Compute scores every record candidate of a page and recommends a routing.
//
// Each candidate moves strictly from unvalidated to field-scored to
// row-aggregated; all rows are then aggregated into the page result.
// The upstream needsReview flag of a candidate is never consulted.
func Compute(in Inputs, opts Options) *Result {
	opts = opts.withDefaults()
	rules := opts.rules()
	recordType := opts.resolveRecordType(in.Candidates)
	required := rules.Required(recordType)

	lookups := BuildLookups(in, rules)
	validator := NewFieldValidator(opts, lookups)

	var candidates []RecordCandidate
	if in.Candidates != nil {
		candidates = in.Candidates.Candidates
	}

	rows := make([]RowScore, 0, len(candidates))
	unresolved := 0
	for ci, cand := range candidates {
		fields := validator.ValidateCandidate(ci, cand, recordType)
		for _, f := range fields {
			unresolved += lookups.Tokens.Unresolved(f.TokenIDs)
		}
		rows = append(rows, AggregateRow(ci, cand.RowIndex(), fields, required, opts.RowReviewThreshold))
	}

	pageScore, summary := AggregatePage(rows)
	summary.UnresolvedTokenRefs = unresolved

	return &Result{
		Method:                Method,
		Thresholds:            opts.Thresholds(recordType),
		Rows:                  rows,
		PageScore:             pageScore,
		RoutingRecommendation: Route(len(rows), summary.RowsNeedReview, pageScore),
		Summary:               summary,
		RecordedAt:            formatRecordedAt(opts.now()),
	}
}
