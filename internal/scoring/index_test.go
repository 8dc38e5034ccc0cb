package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenIndex(t *testing.T) {
	idx := NewTokenIndex(makeTokens("John", "Smith"))

	assert.Equal(t, "Smith", idx[1].Text)

	assert.Equal(t, 1, idx.Unresolved([]int{0, 1, 7}))
	assert.Equal(t, "John Smith", idx.Text([]int{0, 9, 1}))

	assert.Empty(t, NewTokenIndex(nil))
}

func TestProvenanceIndex(t *testing.T) {
	doc := makeProvenance(
		provFixture{candidate: 0, field: "child_name", tokenIDs: []int{1}, confidence: f64(0.5)},
		provFixture{candidate: 1, field: "child_name", tokenIDs: []int{2}},
		provFixture{candidate: 0, field: "child_name", tokenIDs: []int{3}, confidence: f64(0.8)},
	)
	idx := NewProvenanceIndex(doc)

	p, ok := idx.Lookup(0, "child_name")
	assert.True(t, ok)
	assert.Equal(t, []int{3}, p.TokenIDs, "later entries win")
	assert.Equal(t, 0.8, *p.Confidence)

	p, ok = idx.Lookup(1, "child_name")
	assert.True(t, ok)
	assert.Nil(t, p.Confidence)

	_, ok = idx.Lookup(2, "child_name")
	assert.False(t, ok)

	assert.Empty(t, NewProvenanceIndex(nil))
}

func TestAmbiguousCells(t *testing.T) {
	doc := &TableDoc{Cells: []TableCell{
		{RowIndex: 1, ColumnKey: "child_name", Provenance: CellProvenance{TokenIDs: []int{}}},
		{RowIndex: 1, ColumnKey: "date_of_birth", Provenance: CellProvenance{TokenIDs: []int{4}}},
		{RowIndex: 2, ColumnKey: "born", Provenance: CellProvenance{}},
	}}

	t.Run("identity mapping", func(t *testing.T) {
		cells := NewAmbiguousCells(doc, nil)
		assert.True(t, cells.Contains(1, "child_name"))
		assert.False(t, cells.Contains(1, "date_of_birth"))
		assert.True(t, cells.Contains(2, "born"))
		assert.False(t, cells.Contains(2, "date_of_birth"))
	})

	t.Run("explicit column map", func(t *testing.T) {
		rules := DefaultRuleSet().WithColumnMap(map[string]string{"born": "date_of_birth"})
		cells := NewAmbiguousCells(doc, rules)
		assert.True(t, cells.Contains(2, "date_of_birth"))
		assert.False(t, cells.Contains(2, "born"))
	})

	assert.Empty(t, NewAmbiguousCells(nil, nil))
}
