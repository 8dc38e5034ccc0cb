package scoring

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validity multipliers applied when a check fires
const (
	lowOCRConfMultiplier      = 0.7
	dateParseFailMultiplier   = 0.3
	shortValueMultiplier      = 0.8
	suspiciousCharsMultiplier = 0.5
	ambiguousColumnMultiplier = 0.7
)

// Two or more consecutive symbols that OCR tends to produce from smudges
var reSuspiciousChars = regexp.MustCompile(`[§¶†‡¤¥£€©®™◊∆∑∏∫]{2,}`)

// FieldContext is everything a check may look at for one field
type FieldContext struct {
	FieldName      string
	Value          string
	Trimmed        string
	Confidence     *float64
	SourceRowIndex int
	Required       bool
	DateField      bool
	Ambiguous      bool
	MinValueLength int
	LowOCRConf     float64
}

// Outcome is the effect of one check on the validity score.
// An Override outcome assigns Multiplier instead of multiplying by it.
type Outcome struct {
	Multiplier float64
	Reason     ReasonCode
	Override   bool
}

// Fired reports whether the outcome records a reason code
func (o Outcome) Fired() bool {
	return o.Reason != ""
}

// noEffect leaves validity unchanged and records nothing
var noEffect = Outcome{Multiplier: 1}

// Check is a single independent field check
type Check struct {
	Name string
	Eval func(FieldContext) Outcome
}

// DefaultChecks returns the field checks in evaluation order. Order decides
// the order of reason codes, never the numeric result.
func DefaultChecks() []Check {
	return []Check{
		{Name: "low_ocr_conf", Eval: checkLowOCRConf},
		{Name: "date_parse", Eval: checkDateParse},
		{Name: "missing_required", Eval: checkMissingRequired},
		{Name: "short_value", Eval: checkShortValue},
		{Name: "suspicious_chars", Eval: checkSuspiciousChars},
		{Name: "ambiguous_column", Eval: checkAmbiguousColumn},
	}
}

func checkLowOCRConf(fc FieldContext) Outcome {
	if fc.Confidence != nil && *fc.Confidence < fc.LowOCRConf {
		return Outcome{Multiplier: lowOCRConfMultiplier, Reason: ReasonLowOCRConf}
	}
	return noEffect
}

// checkDateParse penalises date fields whose value is not a plausible date.
// A partial match costs a little validity without recording a reason.
func checkDateParse(fc FieldContext) Outcome {
	if !fc.DateField {
		return noEffect
	}
	score := dateValidityScore(fc.Value)
	switch {
	case score == dateInvalid && fc.Trimmed != "":
		return Outcome{Multiplier: dateParseFailMultiplier, Reason: ReasonDateParseFail}
	case score > dateInvalid && score < dateValid:
		return Outcome{Multiplier: 0.5 + 0.5*score}
	default:
		return noEffect
	}
}

func checkMissingRequired(fc FieldContext) Outcome {
	if fc.Required && fc.Trimmed == "" {
		return Outcome{Multiplier: 0, Reason: ReasonMissingRequired, Override: true}
	}
	return noEffect
}

func checkShortValue(fc FieldContext) Outcome {
	if fc.Trimmed != "" && utf8.RuneCountInString(fc.Trimmed) < fc.MinValueLength {
		return Outcome{Multiplier: shortValueMultiplier, Reason: ReasonShortValue}
	}
	return noEffect
}

func checkSuspiciousChars(fc FieldContext) Outcome {
	if reSuspiciousChars.MatchString(fc.Value) {
		return Outcome{Multiplier: suspiciousCharsMultiplier, Reason: ReasonSuspiciousChars}
	}
	return noEffect
}

func checkAmbiguousColumn(fc FieldContext) Outcome {
	if fc.Ambiguous {
		return Outcome{Multiplier: ambiguousColumnMultiplier, Reason: ReasonAmbiguousColumn}
	}
	return noEffect
}

// foldChecks applies outcomes left to right starting from full validity
func foldChecks(checks []Check, fc FieldContext) (float64, []ReasonCode) {
	validity := 1.0
	var reasons []ReasonCode
	for _, c := range checks {
		o := c.Eval(fc)
		if o.Override {
			validity = o.Multiplier
		} else {
			validity *= o.Multiplier
		}
		if o.Fired() {
			reasons = appendUnique(reasons, o.Reason)
		}
	}
	if len(reasons) == 0 {
		reasons = []ReasonCode{ReasonFieldOK}
	}
	return validity, reasons
}

func appendUnique(reasons []ReasonCode, rc ReasonCode) []ReasonCode {
	for _, r := range reasons {
		if r == rc {
			return reasons
		}
	}
	return append(reasons, rc)
}

func isFieldOK(reasons []ReasonCode) bool {
	return len(reasons) == 1 && reasons[0] == ReasonFieldOK
}

// trimmed strips the whitespace OCR output carries around values. Unlike
// strings.TrimSpace it also strips a byte order mark and keeps U+0085.
func trimmed(value string) string {
	return strings.TrimFunc(value, isTrimSpace)
}

func isTrimSpace(r rune) bool {
	return r == '\uFEFF' || (unicode.IsSpace(r) && r != '\u0085')
}
