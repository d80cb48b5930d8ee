package calc

import "testing"

// BenchmarkEvaluateChain measures Evaluate over a chain of N formula cells
// each referencing the previous one, the same shape the teacher's own
// micro-benchmark exercised, but over the pull-based Evaluate instead of a
// push-based batch recompute.
func BenchmarkEvaluateChain(b *testing.B) {
	const n = 200
	wb := newFakeWorkbook()
	wb.literals[CellID{Row: 0, Col: 0}] = Num(1)
	for row := uint32(1); row < n; row++ {
		tokens := []Token{
			{Kind: TokenRef, Ref: SingleRef{Row: row - 1, Col: 0}},
			{Kind: TokenNumber, Number: 1},
			{Kind: TokenBinaryOp, Binary: BinAdd},
		}
		wb.formulas[CellID{Row: row, Col: 0}] = tokens
	}
	registry := NewFunctionRegistry(fakeBuiltins{}, fakeUDFs{}, map[string]int{"SUM": builtinSumIndex}, nil)
	ev, err := NewEvaluator(wb, 0, nil, registry, nil, DefaultOptions())
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ev.ClearAllCachedResults()
		if _, err := ev.Evaluate(CellID{Row: n - 1, Col: 0}); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkEvaluateCached measures the cache-hit path: the chain is
// evaluated once up front, then every subsequent Evaluate call should be a
// single cache read with no interpreter work.
func BenchmarkEvaluateCached(b *testing.B) {
	const n = 200
	wb := newFakeWorkbook()
	wb.literals[CellID{Row: 0, Col: 0}] = Num(1)
	for row := uint32(1); row < n; row++ {
		tokens := []Token{
			{Kind: TokenRef, Ref: SingleRef{Row: row - 1, Col: 0}},
			{Kind: TokenNumber, Number: 1},
			{Kind: TokenBinaryOp, Binary: BinAdd},
		}
		wb.formulas[CellID{Row: row, Col: 0}] = tokens
	}
	registry := NewFunctionRegistry(fakeBuiltins{}, fakeUDFs{}, map[string]int{"SUM": builtinSumIndex}, nil)
	ev, err := NewEvaluator(wb, 0, nil, registry, nil, DefaultOptions())
	if err != nil {
		b.Fatal(err)
	}
	if _, err := ev.Evaluate(CellID{Row: n - 1, Col: 0}); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ev.Evaluate(CellID{Row: n - 1, Col: 0}); err != nil {
			b.Fatal(err)
		}
	}
}
