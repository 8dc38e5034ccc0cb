package scoring

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Date plausibility levels
const (
	dateValid   = 1.0
	datePartial = 0.8
	dateInvalid = 0.0

	minDateRunes = 4
)

var (
	reYearFirst  = regexp.MustCompile(`\d{4}[-/.]\d{1,2}[-/.]\d{1,2}`)
	reDayFirst   = regexp.MustCompile(`\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}`)
	reDigitGroup = regexp.MustCompile(`\d+`)
)

var englishMonths = wordSet(
	"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec",
	"january", "february", "march", "april", "june", "july", "august",
	"september", "october", "november", "december",
)

// Greek month abbreviations plus nominative and genitive forms, accents
// stripped and final sigma folded
var greekMonths = wordSet(
	"ιαν", "φεβ", "μαρ", "απρ", "μαι", "ιουν", "ιουλ", "αυγ", "σεπ", "οκτ", "νοε", "δεκ",
	"ιανουαριοσ", "ιανουαριου", "φεβρουαριοσ", "φεβρουαριου",
	"μαρτιοσ", "μαρτιου", "απριλιοσ", "απριλιου", "μαιοσ", "μαιου",
	"ιουνιοσ", "ιουνιου", "ιουλιοσ", "ιουλιου", "αυγουστοσ", "αυγουστου",
	"σεπτεμβριοσ", "σεπτεμβριου", "οκτωβριοσ", "οκτωβριου",
	"νοεμβριοσ", "νοεμβριου", "δεκεμβριοσ", "δεκεμβριου",
)

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// dateValidityScore rates how plausible a value is as a date: 1.0 for a
// recognised date pattern or month name, 0.8 for year-like digit groups,
// 0 otherwise
func dateValidityScore(value string) float64 {
	t := trimmed(value)
	if utf8.RuneCountInString(t) < minDateRunes {
		return dateInvalid
	}

	if reYearFirst.MatchString(t) || reDayFirst.MatchString(t) {
		return dateValid
	}

	if hasMonthName(t) {
		return dateValid
	}

	groups := reDigitGroup.FindAllString(t, -1)
	if len(groups) >= 2 {
		for _, g := range groups {
			if len(g) >= 4 {
				return datePartial
			}
		}
	}

	return dateInvalid
}

// hasMonthName reports whether any whole word of the value is an English or
// Greek month name
func hasMonthName(value string) bool {
	for _, word := range words(value) {
		if _, ok := englishMonths[word]; ok {
			return true
		}
		if _, ok := greekMonths[foldGreek(word)]; ok {
			return true
		}
	}
	return false
}

// words splits on anything that is not a letter, digit or underscore and
// lowercases the pieces
func words(value string) []string {
	return strings.FieldsFunc(strings.ToLower(value), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
}

// foldGreek strips combining marks (tonos, dialytika) and folds final sigma
func foldGreek(word string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, word)
	if err != nil {
		stripped = word
	}
	return strings.ReplaceAll(stripped, "ς", "σ")
}
