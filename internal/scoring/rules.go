package scoring

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// RuleSet describes which fields each record type requires, which fields
// hold dates, and how table column keys map to candidate field names.
type RuleSet struct {
	// RequiredFields lists required field names per record type, in the
	// order missing fields are synthesized
	RequiredFields map[string][]string `yaml:"required_fields"`

	// DateFields are the field names checked for date plausibility
	DateFields []string `yaml:"date_fields"`

	// ColumnMap maps a table column_key to the candidate field name it
	// feeds. Columns not listed map to a field of the same name.
	ColumnMap map[string]string `yaml:"column_map"`
}

// DefaultRuleSet returns the parish-register rules for baptism, marriage and
// funeral records
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		RequiredFields: map[string][]string{
			"baptism":  {"child_name", "date_of_baptism", "date_of_birth"},
			"marriage": {"groom_name", "bride_name", "date_of_marriage"},
			"funeral":  {"deceased_name", "date_of_death", "date_of_funeral"},
		},
		DateFields: []string{
			"date", "date_of_birth", "date_of_baptism", "date_of_marriage",
			"date_of_death", "date_of_funeral", "burial_date",
		},
		ColumnMap: map[string]string{},
	}
}

// Required returns the required fields of a record type in canonical order.
// Unknown record types require nothing.
func (rs *RuleSet) Required(recordType string) []string {
	return rs.RequiredFields[recordType]
}

// IsRequired reports whether the field is required for the record type
func (rs *RuleSet) IsRequired(recordType, fieldName string) bool {
	for _, name := range rs.RequiredFields[recordType] {
		if name == fieldName {
			return true
		}
	}
	return false
}

// IsDateField reports whether the field should hold a date
func (rs *RuleSet) IsDateField(fieldName string) bool {
	for _, name := range rs.DateFields {
		if name == fieldName {
			return true
		}
	}
	return false
}

// FieldForColumn resolves a table column key to a candidate field name
func (rs *RuleSet) FieldForColumn(columnKey string) string {
	if field, ok := rs.ColumnMap[columnKey]; ok && field != "" {
		return field
	}
	return columnKey
}

// WithColumnMap returns a copy of the rule set with extra column mappings
func (rs *RuleSet) WithColumnMap(extra map[string]string) *RuleSet {
	out := rs.clone()
	for col, field := range extra {
		out.ColumnMap[col] = field
	}
	return out
}

func (rs *RuleSet) clone() *RuleSet {
	out := &RuleSet{
		RequiredFields: make(map[string][]string, len(rs.RequiredFields)),
		DateFields:     append([]string(nil), rs.DateFields...),
		ColumnMap:      make(map[string]string, len(rs.ColumnMap)),
	}
	for recordType, fields := range rs.RequiredFields {
		out.RequiredFields[recordType] = append([]string(nil), fields...)
	}
	for col, field := range rs.ColumnMap {
		out.ColumnMap[col] = field
	}
	return out
}

// Validate checks the rule set for empty names and duplicates
func (rs *RuleSet) Validate() error {
	for recordType, fields := range rs.RequiredFields {
		if strings.TrimSpace(recordType) == "" {
			return errors.New("required_fields: empty record type")
		}
		seen := make(map[string]bool, len(fields))
		for _, f := range fields {
			if strings.TrimSpace(f) == "" {
				return fmt.Errorf("required_fields[%s]: empty field name", recordType)
			}
			if seen[f] {
				return fmt.Errorf("required_fields[%s]: duplicate field %q", recordType, f)
			}
			seen[f] = true
		}
	}
	for _, f := range rs.DateFields {
		if strings.TrimSpace(f) == "" {
			return errors.New("date_fields: empty field name")
		}
	}
	return nil
}

// LoadRuleSet reads a YAML rule file and overlays it on the default rules.
// Record types listed in the file replace the defaults for that type; a
// non-empty date_fields list replaces the default list.
func LoadRuleSet(r io.Reader) (*RuleSet, error) {
	var file RuleSet
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode rule set: %w", err)
	}

	rs := DefaultRuleSet()
	for recordType, fields := range file.RequiredFields {
		rs.RequiredFields[recordType] = append([]string(nil), fields...)
	}
	if len(file.DateFields) > 0 {
		rs.DateFields = append([]string(nil), file.DateFields...)
	}
	for col, field := range file.ColumnMap {
		rs.ColumnMap[col] = field
	}

	if err := rs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule set: %w", err)
	}
	return rs, nil
}
