package scoring

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldMap_PreservesOrder(t *testing.T) {
	var m FieldMap
	require.NoError(t, json.Unmarshal([]byte(`{"zeta": "1", "alpha": "2", "mid": "3"}`), &m))

	names := make([]string, 0, len(m))
	for _, e := range m {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, names)

	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":"1","alpha":"2","mid":"3"}`, string(out))
}

func TestFieldMap_DuplicateKeys(t *testing.T) {
	var m FieldMap
	require.NoError(t, json.Unmarshal([]byte(`{"a": "1", "b": "2", "a": "3"}`), &m))
	require.Len(t, m, 2)
	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "3", v)
	assert.Equal(t, "a", m[0].Name)
}

func TestFieldMap_Coercion(t *testing.T) {
	var m FieldMap
	doc := `{"n": null, "f": false, "t": true, "z": 0, "i": 12, "x": 1.5, "s": "", "o": {"k": 1}}`
	require.NoError(t, json.Unmarshal([]byte(doc), &m))

	want := map[string]string{
		"n": "", "f": "", "t": "true", "z": "", "i": "12", "x": "1.5", "s": "", "o": `{"k": 1}`,
	}
	for name, value := range want {
		got, ok := m.Get(name)
		assert.True(t, ok, name)
		assert.Equal(t, value, got, name)
	}
}

func TestFieldMap_Errors(t *testing.T) {
	var m FieldMap
	assert.Error(t, json.Unmarshal([]byte(`["a"]`), &m))

	var doc CandidatesDoc
	assert.Error(t, json.Unmarshal([]byte(`{"candidates": [{"fields": "oops"}]}`), &doc))

	var nullFields CandidatesDoc
	require.NoError(t, json.Unmarshal([]byte(`{"candidates": [{"fields": null}]}`), &nullFields))
	assert.Empty(t, nullFields.Candidates[0].Fields)
}

func TestRecordCandidate_RowIndex(t *testing.T) {
	assert.Equal(t, -1, RecordCandidate{}.RowIndex())
	assert.Equal(t, 0, RecordCandidate{SourceRowIndex: intp(0)}.RowIndex())
}

func TestReasonCodeDescriptions(t *testing.T) {
	for _, rc := range AllReasonCodes() {
		assert.NotEqual(t, "Unknown reason", rc.Description(), rc)
	}
	assert.Equal(t, "Unknown reason", ReasonCode("NOPE").Description())
}

func TestExplain(t *testing.T) {
	lines := Explain(FieldScore{Reasons: []ReasonCode{ReasonLowOCRConf, ReasonShortValue}})
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "LOW_OCR_CONF")
	assert.Contains(t, lines[1], "SHORT_VALUE")
}

func TestResultJSONShape(t *testing.T) {
	result := Compute(Inputs{
		Candidates: makeCandidates("baptism", candidateFixture{fields: fields("child_name", "Anna")}),
	}, fixedOptions("baptism"))

	raw, err := json.Marshal(result)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))

	for _, key := range []string{"method", "thresholds", "rows", "page_score_v2", "routing_recommendation", "summary", "recorded_at"} {
		assert.Contains(t, generic, key)
	}

	rows := generic["rows"].([]any)
	fieldsJSON := rows[0].(map[string]any)["fields"].([]any)
	missing := fieldsJSON[1].(map[string]any)
	assert.Nil(t, missing["cell_confidence"])
	assert.Nil(t, missing["bbox_union"])
	assert.Equal(t, []any{}, missing["token_ids"])
}
