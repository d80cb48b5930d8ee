package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// namedRangeWorkbook extends fakeWorkbook with a real by-name and by-index
// named-range catalog, to exercise evalName's TokenName/NameIx dispatch
// directly (spec §4.8, §6 get_name) without pulling in the reference
// compiler/memstore packages.
type namedRangeWorkbook struct {
	*fakeWorkbook
	byName map[string]NameDefinition
	byIdx  map[int32]NameDefinition
}

func newNamedRangeWorkbook() *namedRangeWorkbook {
	return &namedRangeWorkbook{
		fakeWorkbook: newFakeWorkbook(),
		byName:       map[string]NameDefinition{},
		byIdx:        map[int32]NameDefinition{},
	}
}

func (wb *namedRangeWorkbook) defineRange(idx int32, name string, area Area) {
	def := NameDefinition{Range: area, IsRange: true}
	wb.byName[name] = def
	wb.byIdx[idx] = def
}

func (wb *namedRangeWorkbook) Name(nameOrIndex any, sheetIx int) (NameDefinition, bool) {
	switch v := nameOrIndex.(type) {
	case string:
		def, ok := wb.byName[v]
		return def, ok
	case int32:
		def, ok := wb.byIdx[v]
		return def, ok
	default:
		return NameDefinition{}, false
	}
}

var _ Workbook = (*namedRangeWorkbook)(nil)

func TestInterpreterNameTokenResolvesByIndex(t *testing.T) {
	wb := newNamedRangeWorkbook()
	wb.literals[CellID{Row: 0, Col: 0}] = Num(42)
	wb.defineRange(7, "MYRANGE", Area{FirstRow: 0, FirstCol: 0, LastRow: 0, LastCol: 0})

	registry := NewFunctionRegistry(fakeBuiltins{}, fakeUDFs{}, map[string]int{"SUM": builtinSumIndex}, nil)
	ev, err := NewEvaluator(wb, 0, nil, registry, nil, DefaultOptions())
	require.NoError(t, err)

	v, err := runTokens(t, ev, []Token{{Kind: TokenName, NameIx: 7}})
	require.NoError(t, err)
	assert.Equal(t, 42.0, v.Number)
}
