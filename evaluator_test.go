package calc_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	calc "github.com/vogtb/calcore"
	"github.com/vogtb/calcore/builtin"
	"github.com/vogtb/calcore/compiler"
	"github.com/vogtb/calcore/internal/memstore"
)

func newTestWorkbook(t *testing.T) (*memstore.Workbook, *builtin.Library) {
	t.Helper()
	wb := memstore.New("Book1", memstore.StandardVersion())
	lib := builtin.New()
	return wb, lib
}

func newTestEvaluator(t *testing.T, wb *memstore.Workbook, lib *builtin.Library) *calc.Evaluator {
	t.Helper()
	registry := calc.NewFunctionRegistry(nil, lib, lib.Names(), nil)
	ev, err := calc.NewEvaluator(wb, 0, compiler.New(), registry, nil, calc.DefaultOptions())
	require.NoError(t, err)
	return ev
}

func TestEndToEndSimpleArithmetic(t *testing.T) {
	wb, lib := newTestWorkbook(t)
	sheet := wb.Sheet("Sheet1")
	wb.SetLiteral(sheet, 0, 0, calc.Num(2))
	wb.SetLiteral(sheet, 1, 0, calc.Num(3))
	tokens, err := compiler.New().Parse(context.Background(), "A1+A2*4", wb, calc.FormulaTypeCell, 0, 2)
	require.NoError(t, err)
	wb.SetFormula(sheet, 0, 2, tokens)

	ev := newTestEvaluator(t, wb, lib)
	v, err := ev.Evaluate(calc.CellID{SheetIx: 0, Row: 0, Col: 2})
	require.NoError(t, err)
	assert.Equal(t, 14.0, v.Number)
}

func TestEndToEndIfSelectsTrueBranch(t *testing.T) {
	wb, lib := newTestWorkbook(t)
	sheet := wb.Sheet("Sheet1")
	wb.SetLiteral(sheet, 0, 0, calc.Num(10))
	tokens, err := compiler.New().Parse(context.Background(), `IF(A1>5,"big","small")`, wb, calc.FormulaTypeCell, 0, 1)
	require.NoError(t, err)
	wb.SetFormula(sheet, 0, 1, tokens)

	ev := newTestEvaluator(t, wb, lib)
	v, err := ev.Evaluate(calc.CellID{SheetIx: 0, Row: 0, Col: 1})
	require.NoError(t, err)
	assert.Equal(t, "big", v.Str)
}

func TestEndToEndChooseOutOfRange(t *testing.T) {
	wb, lib := newTestWorkbook(t)
	sheet := wb.Sheet("Sheet1")
	wb.SetLiteral(sheet, 0, 0, calc.Num(9))
	tokens, err := compiler.New().Parse(context.Background(), "CHOOSE(A1,1,2,3)", wb, calc.FormulaTypeCell, 0, 1)
	require.NoError(t, err)
	wb.SetFormula(sheet, 0, 1, tokens)

	ev := newTestEvaluator(t, wb, lib)
	v, err := ev.Evaluate(calc.CellID{SheetIx: 0, Row: 0, Col: 1})
	require.NoError(t, err)
	assert.True(t, v.IsError())
	assert.Equal(t, calc.ErrorValue, v.Err)
}

func TestEndToEndCircularReferenceNeverCaches(t *testing.T) {
	wb, lib := newTestWorkbook(t)
	sheet := wb.Sheet("Sheet1")
	a1, err := compiler.New().Parse(context.Background(), "A2", wb, calc.FormulaTypeCell, 0, 0)
	require.NoError(t, err)
	a2, err := compiler.New().Parse(context.Background(), "A1", wb, calc.FormulaTypeCell, 0, 1)
	require.NoError(t, err)
	wb.SetFormula(sheet, 0, 0, a1)
	wb.SetFormula(sheet, 1, 0, a2)

	ev := newTestEvaluator(t, wb, lib)
	v, err := ev.Evaluate(calc.CellID{SheetIx: 0, Row: 0, Col: 0})
	require.NoError(t, err)
	require.True(t, v.IsError())
	assert.Equal(t, calc.ErrorCircular, v.Err)

	// Re-querying must re-derive rather than serve a stale cached circular
	// marker: it still resolves to the same cycle, not a crash or a
	// leftover value from the first attempt.
	v2, err := ev.Evaluate(calc.CellID{SheetIx: 0, Row: 1, Col: 0})
	require.NoError(t, err)
	assert.Equal(t, calc.ErrorCircular, v2.Err)

	v3, err := ev.Evaluate(calc.CellID{SheetIx: 0, Row: 0, Col: 0})
	require.NoError(t, err)
	assert.Equal(t, calc.ErrorCircular, v3.Err, "a cache entry left uncommitted by the cycle must re-derive, not return a stale committed value")
}

func TestEndToEndBlankCoercesToZero(t *testing.T) {
	wb, lib := newTestWorkbook(t)
	sheet := wb.Sheet("Sheet1")
	tokens, err := compiler.New().Parse(context.Background(), "A1+1", wb, calc.FormulaTypeCell, 0, 1)
	require.NoError(t, err)
	wb.SetFormula(sheet, 0, 1, tokens)

	ev := newTestEvaluator(t, wb, lib)
	v, err := ev.Evaluate(calc.CellID{SheetIx: 0, Row: 0, Col: 1})
	require.NoError(t, err)
	assert.Equal(t, 1.0, v.Number)
}

func TestEndToEndNamedRangeResolvesByName(t *testing.T) {
	wb, lib := newTestWorkbook(t)
	sheet := wb.Sheet("Sheet1")
	wb.SetLiteral(sheet, 0, 0, calc.Num(42))
	wb.DefineName("MYRANGE", calc.Area{SheetIx: 0, FirstRow: 0, FirstCol: 0, LastRow: 0, LastCol: 0})

	tokens, err := compiler.New().Parse(context.Background(), "MYRANGE", wb, calc.FormulaTypeCell, 0, 1)
	require.NoError(t, err)
	wb.SetFormula(sheet, 0, 1, tokens)

	ev := newTestEvaluator(t, wb, lib)
	v, err := ev.Evaluate(calc.CellID{SheetIx: 0, Row: 0, Col: 1})
	require.NoError(t, err)
	assert.Equal(t, 42.0, v.Number)
}

func TestEndToEndEvaluateListRegion(t *testing.T) {
	wb, lib := newTestWorkbook(t)
	sheet := wb.Sheet("Sheet1")
	for row := uint32(0); row < 5; row++ {
		wb.SetLiteral(sheet, row, 0, calc.Num(float64(row)))
	}

	ev := newTestEvaluator(t, wb, lib)
	region := calc.RangeID{SheetIx: 0, FirstRow: 1, FirstCol: 0, LastRow: 3, LastCol: 0}
	v, err := ev.EvaluateList(context.Background(), "A1:A5", calc.CellID{SheetIx: 0, Row: 0, Col: 1}, region)
	require.NoError(t, err)
	require.Equal(t, calc.KindArea, v.Kind)
	assert.Equal(t, uint32(1), v.Area.FirstRow)
	assert.Equal(t, uint32(3), v.Area.LastRow)
}

func TestEndToEndCacheInvalidationRecomputes(t *testing.T) {
	wb, lib := newTestWorkbook(t)
	sheet := wb.Sheet("Sheet1")
	wb.SetLiteral(sheet, 0, 0, calc.Num(1))
	tokens, err := compiler.New().Parse(context.Background(), "A1+1", wb, calc.FormulaTypeCell, 0, 1)
	require.NoError(t, err)
	wb.SetFormula(sheet, 0, 1, tokens)

	ev := newTestEvaluator(t, wb, lib)
	cell := calc.CellID{SheetIx: 0, Row: 0, Col: 1}
	v, err := ev.Evaluate(cell)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v.Number)

	wb.SetLiteral(sheet, 0, 0, calc.Num(10))
	ev.NotifyUpdateCell(calc.CellID{SheetIx: 0, Row: 0, Col: 0})

	v2, err := ev.Evaluate(cell)
	require.NoError(t, err)
	assert.Equal(t, 11.0, v2.Number)
}

// TestEndToEndCrossWorkbookResolution exercises the collaborating-workbooks
// path: a query against evB for a CellID whose WorkbookIx names evA routes
// through the shared environment to evA's own workbook instead of
// evB's (spec §4.9).
func TestEndToEndCrossWorkbookResolution(t *testing.T) {
	wbA := memstore.New("A", memstore.StandardVersion())
	wbB := memstore.New("B", memstore.StandardVersion())
	lib := builtin.New()
	sheetA := wbA.Sheet("Sheet1")
	wbA.SetLiteral(sheetA, 0, 0, calc.Num(5))

	registryA := calc.NewFunctionRegistry(nil, lib, lib.Names(), nil)
	registryB := calc.NewFunctionRegistry(nil, lib, lib.Names(), nil)
	evA, err := calc.NewEvaluator(wbA, 0, compiler.New(), registryA, nil, calc.DefaultOptions())
	require.NoError(t, err)
	evB, err := calc.NewEvaluator(wbB, 1, compiler.New(), registryB, nil, calc.DefaultOptions())
	require.NoError(t, err)

	env, err := calc.NewCollaboratingWorkbooksEnvironment(calc.EnvironmentConfig{MaxWorkbooks: 10})
	require.NoError(t, err)
	require.NoError(t, evA.AttachToEnvironment(env, 0, "A"))
	require.NoError(t, evB.AttachToEnvironment(env, 1, "B"))

	v, err := evB.Evaluate(calc.CellID{WorkbookIx: 0, SheetIx: 0, Row: 0, Col: 0})
	require.NoError(t, err)
	assert.Equal(t, 5.0, v.Number)
}

// TestEndToEndCrossWorkbookSharesCacheForInvalidation exercises the
// collaborating environment's shared cache (spec §3): a formula entry
// created by evB pulling a cell through evA must be the same entry evA's own
// NotifyUpdateCell invalidates, even though evB never touches evA's workbook
// directly.
func TestEndToEndCrossWorkbookSharesCacheForInvalidation(t *testing.T) {
	wbA := memstore.New("A", memstore.StandardVersion())
	wbB := memstore.New("B", memstore.StandardVersion())
	lib := builtin.New()
	sheetA := wbA.Sheet("Sheet1")
	wbA.SetLiteral(sheetA, 0, 0, calc.Num(5))
	tokensA, err := compiler.New().Parse(context.Background(), "A1+1", wbA, calc.FormulaTypeCell, 0, 1)
	require.NoError(t, err)
	wbA.SetFormula(sheetA, 0, 1, tokensA)

	registryA := calc.NewFunctionRegistry(nil, lib, lib.Names(), nil)
	registryB := calc.NewFunctionRegistry(nil, lib, lib.Names(), nil)
	evA, err := calc.NewEvaluator(wbA, 0, compiler.New(), registryA, nil, calc.DefaultOptions())
	require.NoError(t, err)
	evB, err := calc.NewEvaluator(wbB, 1, compiler.New(), registryB, nil, calc.DefaultOptions())
	require.NoError(t, err)

	env, err := calc.NewCollaboratingWorkbooksEnvironment(calc.EnvironmentConfig{MaxWorkbooks: 10})
	require.NoError(t, err)
	require.NoError(t, evA.AttachToEnvironment(env, 0, "A"))
	require.NoError(t, evB.AttachToEnvironment(env, 1, "B"))

	formulaCell := calc.CellID{WorkbookIx: 0, SheetIx: 0, Row: 0, Col: 1}
	v, err := evB.Evaluate(formulaCell)
	require.NoError(t, err)
	assert.Equal(t, 6.0, v.Number)

	wbA.SetLiteral(sheetA, 0, 0, calc.Num(100))
	evA.NotifyUpdateCell(calc.CellID{SheetIx: 0, Row: 0, Col: 0})

	v2, err := evB.Evaluate(formulaCell)
	require.NoError(t, err)
	assert.Equal(t, 101.0, v2.Number, "evA's NotifyUpdateCell must invalidate the shared cache entry evB created via cross-workbook resolution")
}

// TestEndToEndCrossWorkbookMissingFallsBackToLastKnownValue covers
// IgnoreMissingWorkbooks: once a collaborator detaches, a later query for one
// of its cells recovers the last value the shared cache ever committed for
// it instead of failing (spec §7).
func TestEndToEndCrossWorkbookMissingFallsBackToLastKnownValue(t *testing.T) {
	wbA := memstore.New("A", memstore.StandardVersion())
	wbB := memstore.New("B", memstore.StandardVersion())
	lib := builtin.New()
	sheetA := wbA.Sheet("Sheet1")
	wbA.SetLiteral(sheetA, 0, 0, calc.Num(9))

	registryA := calc.NewFunctionRegistry(nil, lib, lib.Names(), nil)
	registryB := calc.NewFunctionRegistry(nil, lib, lib.Names(), nil)
	evA, err := calc.NewEvaluator(wbA, 0, compiler.New(), registryA, nil, calc.DefaultOptions())
	require.NoError(t, err)
	opts := calc.DefaultOptions()
	opts.IgnoreMissingWorkbooks = true
	evB, err := calc.NewEvaluator(wbB, 1, compiler.New(), registryB, nil, opts)
	require.NoError(t, err)

	env, err := calc.NewCollaboratingWorkbooksEnvironment(calc.EnvironmentConfig{MaxWorkbooks: 10})
	require.NoError(t, err)
	require.NoError(t, evA.AttachToEnvironment(env, 0, "A"))
	require.NoError(t, evB.AttachToEnvironment(env, 1, "B"))

	target := calc.CellID{WorkbookIx: 0, SheetIx: 0, Row: 0, Col: 0}
	v, err := evB.Evaluate(target)
	require.NoError(t, err)
	assert.Equal(t, 9.0, v.Number)

	evA.DetachFromEnvironment()

	v2, err := evB.Evaluate(target)
	require.NoError(t, err)
	assert.Equal(t, 9.0, v2.Number, "a missing external workbook with IgnoreMissingWorkbooks must fall back to the cached last-known value")
}

func TestEndToEndCrossWorkbookMissingFaultsByDefault(t *testing.T) {
	wbB := memstore.New("B", memstore.StandardVersion())
	lib := builtin.New()
	registryB := calc.NewFunctionRegistry(nil, lib, lib.Names(), nil)
	evB, err := calc.NewEvaluator(wbB, 1, compiler.New(), registryB, nil, calc.DefaultOptions())
	require.NoError(t, err)

	_, err = evB.Evaluate(calc.CellID{WorkbookIx: 0, SheetIx: 0, Row: 0, Col: 0})
	require.Error(t, err)
	fault, ok := err.(*calc.EngineFault)
	require.True(t, ok)
	assert.Equal(t, calc.FaultMissingExternalWorkbook, fault.Code)
}
