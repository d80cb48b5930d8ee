package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateArrayFormulaGroupProjectsPerCellElement(t *testing.T) {
	wb := newFakeWorkbook()
	anchor := CellID{Row: 0, Col: 0}
	wb.formulas[anchor] = []Token{
		{Kind: TokenArrayLiteral, ArrayRows: 2, ArrayCols: 2,
			ArrayVals: []Value{Num(1), Blank(), Num(3), Num(4)}},
	}

	ev := newTestEvaluator(t, wb)
	out, err := ev.EvaluateArrayFormulaGroup(anchor, 2, 2)
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, Num(1), out[0])
	assert.Equal(t, Blank(), out[1], "blank array element must not be coerced to 0 inside an array-formula group")
	assert.Equal(t, Num(3), out[2])
	assert.Equal(t, Num(4), out[3])
}

func TestDereferenceArrayOutsideGroupPicksTopLeftAndCoercesBlank(t *testing.T) {
	wb := newFakeWorkbook()
	ev := newTestEvaluator(t, wb)
	tokens := []Token{
		{Kind: TokenArrayLiteral, ArrayRows: 1, ArrayCols: 2, ArrayVals: []Value{Blank(), Num(9)}},
	}
	v, err := runTokens(t, ev, tokens)
	require.NoError(t, err)
	assert.Equal(t, Num(0), v, "outside an array-formula group, a blank array element coerces to 0 like any other scalar result")
}
