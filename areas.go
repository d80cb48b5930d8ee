package calc

// ResolveArea pulls every cell inside a into a flat, row-major slice of
// not-yet-blank-coerced values (spec §4.3: aggregate functions iterate a
// range themselves rather than receiving it pre-flattened). Each cell goes
// through the same recursive resolution as a direct reference, so a formula
// cell inside the range is evaluated (and its dependency recorded) exactly
// once per call.
func (ev *Evaluator) ResolveArea(ec *EvalContext, a Area) []Value {
	out := make([]Value, 0, int(a.Rows())*int(a.Cols()))
	for row := a.FirstRow; row <= a.LastRow; row++ {
		for col := a.FirstCol; col <= a.LastCol; col++ {
			target := CellID{WorkbookIx: a.WorkbookIx, SheetIx: a.SheetIx, Row: row, Col: col}
			out = append(out, ev.resolveCellValue(ec, target))
		}
	}
	return out
}

// FlattenOperand expands a single call argument into its scalar values:
// a bare scalar becomes a one-element slice, a SingleRef dereferences to
// one value, an Area expands via ResolveArea, and an Array expands its
// literal elements.
func (ev *Evaluator) FlattenOperand(ec *EvalContext, v Value) []Value {
	switch v.Kind {
	case KindSingleRef:
		return []Value{ev.resolveCellValue(ec, cellFromRef(v.Ref))}
	case KindArea:
		return ev.ResolveArea(ec, v.Area)
	case KindArray:
		return append([]Value(nil), v.Array.Elements...)
	case KindRefList:
		out := make([]Value, 0, len(v.RefList))
		for _, item := range v.RefList {
			out = append(out, ev.FlattenOperand(ec, item)...)
		}
		return out
	default:
		return []Value{v}
	}
}
