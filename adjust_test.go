package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVersion() SpreadsheetVersion {
	return SpreadsheetVersion{Name: "test", MaxRows: 100, MaxCols: 20}
}

func TestAdjustReferenceShiftsInBounds(t *testing.T) {
	ref := SingleRef{SheetIx: 0, Row: 5, Col: 5}
	got, shifted, err := AdjustReference(ref, 2, 1, testVersion())
	require.NoError(t, err)
	assert.True(t, shifted)
	assert.Equal(t, uint32(7), got.Row)
	assert.Equal(t, uint32(6), got.Col)
}

func TestAdjustReferenceNegativeDeltaRejectedEvenInBounds(t *testing.T) {
	ref := SingleRef{SheetIx: 0, Row: 5, Col: 5}
	_, shifted, err := AdjustReference(ref, 0, -1, testVersion())
	require.Error(t, err)
	assert.False(t, shifted)
	fault, ok := err.(*EngineFault)
	require.True(t, ok)
	assert.Equal(t, FaultOutOfBounds, fault.Code)
}

func TestAdjustReferenceZeroDeltaIsNoOp(t *testing.T) {
	ref := SingleRef{SheetIx: 0, Row: 5, Col: 5}
	got, shifted, err := AdjustReference(ref, 0, 0, testVersion())
	require.NoError(t, err)
	assert.False(t, shifted)
	assert.Equal(t, ref, got)
}

func TestAdjustReferenceNegativeOverflowFaults(t *testing.T) {
	ref := SingleRef{SheetIx: 0, Row: 0, Col: 5}
	_, _, err := AdjustReference(ref, -1, 0, testVersion())
	require.Error(t, err)
	fault, ok := err.(*EngineFault)
	require.True(t, ok)
	assert.Equal(t, FaultOutOfBounds, fault.Code)
}

func TestAdjustReferencePastMaxRowsFaults(t *testing.T) {
	ref := SingleRef{SheetIx: 0, Row: 98, Col: 5}
	_, _, err := AdjustReference(ref, 5, 0, testVersion())
	require.Error(t, err)
	fault, ok := err.(*EngineFault)
	require.True(t, ok)
	assert.Equal(t, FaultOutOfBounds, fault.Code)
}

func TestAdjustAreaShiftsAllCorners(t *testing.T) {
	a := Area{SheetIx: 0, FirstRow: 2, FirstCol: 2, LastRow: 4, LastCol: 4}
	got, shifted, err := AdjustArea(a, 1, 1, testVersion())
	require.NoError(t, err)
	assert.True(t, shifted)
	assert.Equal(t, Area{SheetIx: 0, FirstRow: 3, FirstCol: 3, LastRow: 5, LastCol: 5}, got)
}

func TestAdjustAreaOutOfBoundsFaults(t *testing.T) {
	a := Area{SheetIx: 0, FirstRow: 0, FirstCol: 0, LastRow: 4, LastCol: 4}
	_, _, err := AdjustArea(a, -1, 0, testVersion())
	require.Error(t, err)
	fault, ok := err.(*EngineFault)
	require.True(t, ok)
	assert.Equal(t, FaultOutOfBounds, fault.Code)
}
