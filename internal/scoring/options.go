package scoring

import (
	"time"
)

// Default thresholds
const (
	DefaultLowOCRConfThreshold  = 0.70
	DefaultMinValueLength       = 2
	DefaultFieldReviewThreshold = 0.65
	DefaultRowReviewThreshold   = 0.60

	// UnknownRecordType has no required fields
	UnknownRecordType = "unknown"

	// fallbackConfidence stands in for an unknown OCR confidence
	fallbackConfidence = 0.5

	// Disabled turns off the comparison of a threshold option
	Disabled = -1
)

// Options is the immutable configuration for one Compute call.
// A zero threshold takes its default. A negative threshold (see Disabled)
// never fires and is reported as 0.
type Options struct {
	// LowOCRConfThreshold is the confidence below which LOW_OCR_CONF fires
	LowOCRConfThreshold float64
	// MinValueLength is the rune count below which SHORT_VALUE fires
	MinValueLength int
	// FieldReviewThreshold is the field score below which a field needs review
	FieldReviewThreshold float64
	// RowReviewThreshold is the row score below which a row needs review
	RowReviewThreshold float64

	// RecordType overrides the detected type of the candidates document
	RecordType string

	// Rules holds required fields, date fields and the column map.
	// Nil means DefaultRuleSet().
	Rules *RuleSet

	// Now stamps recorded_at. Nil means time.Now.
	Now func() time.Time
}

// DefaultOptions returns the options with the documented defaults
func DefaultOptions() Options {
	return Options{
		LowOCRConfThreshold:  DefaultLowOCRConfThreshold,
		MinValueLength:       DefaultMinValueLength,
		FieldReviewThreshold: DefaultFieldReviewThreshold,
		RowReviewThreshold:   DefaultRowReviewThreshold,
	}
}

// withDefaults fills zero thresholds with their defaults
func (o Options) withDefaults() Options {
	if o.LowOCRConfThreshold == 0 {
		o.LowOCRConfThreshold = DefaultLowOCRConfThreshold
	}
	if o.MinValueLength == 0 {
		o.MinValueLength = DefaultMinValueLength
	}
	if o.FieldReviewThreshold == 0 {
		o.FieldReviewThreshold = DefaultFieldReviewThreshold
	}
	if o.RowReviewThreshold == 0 {
		o.RowReviewThreshold = DefaultRowReviewThreshold
	}
	return o
}

// EffectiveRules returns the rule set Compute scores with
func (o Options) EffectiveRules() *RuleSet {
	return o.rules()
}

// rules returns the effective rule set
func (o Options) rules() *RuleSet {
	if o.Rules == nil {
		return DefaultRuleSet()
	}
	return o.Rules
}

// resolveRecordType applies the override, detected type, unknown chain
func (o Options) resolveRecordType(doc *CandidatesDoc) string {
	if o.RecordType != "" {
		return o.RecordType
	}
	if doc != nil && doc.DetectedType != "" {
		return doc.DetectedType
	}
	return UnknownRecordType
}

// Thresholds snapshots the options for a result scored as recordType
func (o Options) Thresholds(recordType string) Thresholds {
	o = o.withDefaults()
	return Thresholds{
		LowOCRConf:           max(o.LowOCRConfThreshold, 0),
		DateRequiredTypes:    append([]string{}, o.rules().DateFields...),
		MinValueLength:       max(o.MinValueLength, 0),
		FieldReviewThreshold: max(o.FieldReviewThreshold, 0),
		RowReviewThreshold:   max(o.RowReviewThreshold, 0),
		RecordType:           recordType,
	}
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// formatRecordedAt renders an ISO-8601 UTC timestamp with millisecond precision
func formatRecordedAt(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
