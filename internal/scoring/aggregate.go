package scoring

import (
	"math"
)

// Routing bands on the page score
const (
	acceptedMinScore          = 0.85
	acceptedWithFlagsMinScore = 0.60
	reviewMinScore            = 0.40
)

// AggregateRow combines the field scores of one candidate. When the record
// type has required fields the row scores as its weakest required field,
// so one bad required field sinks the row; otherwise it is the mean.
func AggregateRow(candidateIndex, sourceRowIndex int, fields []FieldScore, required []string, rowReviewThreshold float64) RowScore {
	isRequired := make(map[string]bool, len(required))
	for _, name := range required {
		isRequired[name] = true
	}

	var requiredScores, allScores []float64
	for _, f := range fields {
		allScores = append(allScores, f.FieldScore)
		if isRequired[f.FieldName] {
			requiredScores = append(requiredScores, f.FieldScore)
		}
	}

	var score float64
	if len(requiredScores) > 0 {
		score = minimum(requiredScores)
	} else {
		score = mean(allScores)
	}
	score = round4(score)

	var reasons []ReasonCode
	for _, f := range fields {
		for _, r := range f.Reasons {
			if r != ReasonFieldOK {
				reasons = appendUnique(reasons, r)
			}
		}
	}
	flagged := len(reasons) > 0
	if !flagged {
		reasons = []ReasonCode{ReasonFieldOK}
	}

	if fields == nil {
		fields = []FieldScore{}
	}

	return RowScore{
		CandidateIndex: candidateIndex,
		SourceRowIndex: sourceRowIndex,
		RowScore:       score,
		NeedsReview:    score < rowReviewThreshold || flagged,
		Reasons:        reasons,
		Fields:         fields,
	}
}

// AggregatePage computes the page score and summary statistics
func AggregatePage(rows []RowScore) (float64, Summary) {
	summary := Summary{
		TotalRows:  len(rows),
		FlagCounts: make(map[ReasonCode]int, len(AllReasonCodes())),
	}
	for _, rc := range AllReasonCodes() {
		summary.FlagCounts[rc] = 0
	}

	rowScores := make([]float64, 0, len(rows))
	for _, row := range rows {
		rowScores = append(rowScores, row.RowScore)
		if row.NeedsReview {
			summary.RowsNeedReview++
		}
		for _, f := range row.Fields {
			summary.TotalFields++
			for _, r := range f.Reasons {
				summary.FlagCounts[r]++
			}
			if f.NeedsReview && f.Flagged() {
				summary.FieldsFlagged++
			}
		}
	}

	return round4(mean(rowScores)), summary
}

// Route maps the page score and review count to a recommendation.
// A page with no rows goes to review: nothing extracted is a human call,
// not an automatic retry.
func Route(totalRows, rowsNeedReview int, pageScore float64) Routing {
	switch {
	case totalRows == 0:
		return RoutingReview
	case rowsNeedReview == 0 && pageScore >= acceptedMinScore:
		return RoutingAccepted
	case rowsNeedReview > 0 && pageScore >= acceptedWithFlagsMinScore:
		return RoutingAcceptedWithFlags
	case pageScore >= reviewMinScore:
		return RoutingReview
	default:
		return RoutingRetry
	}
}

// round4 clamps to [0,1] and rounds half up to four decimal places
func round4(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return math.Floor(v*10000+0.5) / 10000
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func minimum(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
