package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueConstructorsAndKinds(t *testing.T) {
	assert.Equal(t, KindNumber, Num(3).Kind)
	assert.Equal(t, KindString, Str("hi").Kind)
	assert.True(t, Bool(true).Bool)
	assert.True(t, Blank().IsBlank())
	assert.False(t, Num(0).IsBlank())
	assert.True(t, Err(ErrorDiv0).IsError())
	assert.False(t, Blank().IsError())
}

func TestValueZeroValueIsBlank(t *testing.T) {
	var v Value
	require.True(t, v.IsBlank())
	assert.Equal(t, "", v.String())
}

func TestErrorCodeString(t *testing.T) {
	cases := map[ErrorCode]string{
		ErrorNull:     "#NULL!",
		ErrorDiv0:     "#DIV/0!",
		ErrorValue:    "#VALUE!",
		ErrorRef:      "#REF!",
		ErrorName:     "#NAME?",
		ErrorNum:      "#NUM!",
		ErrorNA:       "#N/A",
		ErrorCircular: "#CIRCULAR",
	}
	for code, want := range cases {
		assert.Equal(t, want, code.String())
	}
}

func TestAreaRowsColsContains(t *testing.T) {
	a := Area{FirstRow: 2, FirstCol: 1, LastRow: 5, LastCol: 3}
	assert.Equal(t, uint32(4), a.Rows())
	assert.Equal(t, uint32(3), a.Cols())
	assert.True(t, a.Contains(2, 1))
	assert.True(t, a.Contains(5, 3))
	assert.False(t, a.Contains(1, 1))
	assert.False(t, a.Contains(2, 4))
}

func TestArrayAt(t *testing.T) {
	arr := Array{Rows: 2, Cols: 2, Elements: []Value{Num(1), Num(2), Num(3), Num(4)}}
	v, ok := arr.At(1, 0)
	require.True(t, ok)
	assert.Equal(t, 3.0, v.Number)
	_, ok = arr.At(2, 0)
	assert.False(t, ok)
}
