package scoring

import "testing"

func TestDateValidityScore(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  float64
	}{
		{"iso date", "1899-05-10", 1.0},
		{"iso with slashes", "1899/5/1", 1.0},
		{"day first dotted", "12.3.1921", 1.0},
		{"day first two digit year", "14/3/21", 1.0},
		{"embedded in text", "born 10-05-1899 at home", 1.0},
		{"english month", "May 5th, 1900", 1.0},
		{"english month lower", "the 3rd of january", 1.0},
		{"greek month abbreviation", "5 Ιαν 1900", 1.0},
		{"greek month genitive accented", "15 Μαΐου 1900", 1.0},
		{"greek month nominative", "Σεπτέμβριος", 1.0},
		{"month glued to digits is not a word", "15may1900", 0.8},
		{"year-like digit groups", "1921 03", 0.8},
		{"year with trailing noise", "approx 1850 or 51", 0.8},
		{"single number", "1899", 0.0},
		{"garbage", "GARBAGE_NOT_A_DATE", 0.0},
		{"too short", "5/5", 0.0},
		{"short after trim", "   1/2   ", 0.0},
		{"empty", "", 0.0},
		{"two short groups", "12 34", 0.0},
		{"name not month", "Maria", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dateValidityScore(tt.value); got != tt.want {
				t.Errorf("dateValidityScore(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestFoldGreek(t *testing.T) {
	tests := map[string]string{
		"μαΐου":       "μαιου",
		"σεπτέμβριος": "σεπτεμβριοσ",
		"ιαν":         "ιαν",
	}
	for in, want := range tests {
		if got := foldGreek(in); got != want {
			t.Errorf("foldGreek(%q) = %q, want %q", in, got, want)
		}
	}
}
