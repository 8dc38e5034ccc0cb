package scoring

// Field score weights
const (
	confidenceWeight = 0.7
	validityWeight   = 0.3
)

// FieldInput identifies one field of one candidate
type FieldInput struct {
	CandidateIndex int
	SourceRowIndex int
	FieldName      string
	Value          string
	// CandidateConfidence is the fallback when provenance has no confidence
	CandidateConfidence *float64
	RecordType          string
}

// FieldValidator scores fields against a fixed rule set and lookups
type FieldValidator struct {
	opts    Options
	rules   *RuleSet
	lookups Lookups
	checks  []Check
}

// NewFieldValidator creates a validator with the default checks
func NewFieldValidator(opts Options, lookups Lookups) *FieldValidator {
	opts = opts.withDefaults()
	return &FieldValidator{
		opts:    opts,
		rules:   opts.rules(),
		lookups: lookups,
		checks:  DefaultChecks(),
	}
}

// Validate scores one present field
func (v *FieldValidator) Validate(in FieldInput) FieldScore {
	prov, hasProv := v.lookups.Provenance.Lookup(in.CandidateIndex, in.FieldName)

	var confidence *float64
	if hasProv && prov.Confidence != nil {
		confidence = copyFloat(prov.Confidence)
	} else if in.CandidateConfidence != nil {
		confidence = copyFloat(in.CandidateConfidence)
	}

	fc := FieldContext{
		FieldName:      in.FieldName,
		Value:          in.Value,
		Trimmed:        trimmed(in.Value),
		Confidence:     confidence,
		SourceRowIndex: in.SourceRowIndex,
		Required:       v.rules.IsRequired(in.RecordType, in.FieldName),
		DateField:      v.rules.IsDateField(in.FieldName),
		Ambiguous:      v.lookups.Ambiguous.Contains(in.SourceRowIndex, in.FieldName),
		MinValueLength: v.opts.MinValueLength,
		LowOCRConf:     v.opts.LowOCRConfThreshold,
	}

	validity, reasons := foldChecks(v.checks, fc)

	effective := fallbackConfidence
	if confidence != nil {
		effective = *confidence
	}
	fieldScore := round4(confidenceWeight*effective + validityWeight*validity)

	tokenIDs := []int{}
	if hasProv && prov.TokenIDs != nil {
		tokenIDs = append(tokenIDs, prov.TokenIDs...)
	}
	var bbox *BBox
	if hasProv && prov.BBoxUnion != nil {
		b := *prov.BBoxUnion
		bbox = &b
	}

	return FieldScore{
		FieldName:      in.FieldName,
		CellConfidence: confidence,
		ValidityScore:  round4(validity),
		FieldScore:     fieldScore,
		NeedsReview:    fieldScore < v.opts.FieldReviewThreshold || !isFieldOK(reasons),
		Reasons:        reasons,
		TokenIDs:       tokenIDs,
		BBoxUnion:      bbox,
	}
}

// ValidateCandidate scores every present field in document order, then
// appends a zero-score entry for each required field the candidate lacks
func (v *FieldValidator) ValidateCandidate(candidateIndex int, cand RecordCandidate, recordType string) []FieldScore {
	scores := make([]FieldScore, 0, len(cand.Fields))
	for _, entry := range cand.Fields {
		scores = append(scores, v.Validate(FieldInput{
			CandidateIndex:      candidateIndex,
			SourceRowIndex:      cand.RowIndex(),
			FieldName:           entry.Name,
			Value:               entry.Value,
			CandidateConfidence: cand.Confidence,
			RecordType:          recordType,
		}))
	}

	for _, name := range v.rules.Required(recordType) {
		if !cand.Fields.Has(name) {
			scores = append(scores, missingField(name))
		}
	}
	return scores
}

// missingField synthesizes the score of a required field absent from a candidate
func missingField(name string) FieldScore {
	return FieldScore{
		FieldName:      name,
		CellConfidence: nil,
		ValidityScore:  0,
		FieldScore:     0,
		NeedsReview:    true,
		Reasons:        []ReasonCode{ReasonMissingRequired},
		TokenIDs:       []int{},
		BBoxUnion:      nil,
	}
}

// Explain renders the reasons of a field as review-UI messages
func Explain(f FieldScore) []string {
	out := make([]string, 0, len(f.Reasons))
	for _, r := range f.Reasons {
		out = append(out, string(r)+": "+r.Description())
	}
	return out
}

func copyFloat(f *float64) *float64 {
	v := *f
	return &v
}
