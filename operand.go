package calc

import "strings"

// Dereference resolves v down to a scalar at the evaluation context's
// current cell position (spec §4.2). Scalars pass through unchanged. A
// SingleRef recursively evaluates (or plain-reads) the referenced cell. An
// Area projects onto the context's row/col per the one-column/one-row/
// intersection rules. Blank is re-typed to Number(0) here — formulas never
// evaluate to blank — unless ec is inside an array-formula group, in which
// case the caller is expected to have already picked the group element and
// no blank coercion applies (spec §4.2).
func (ev *Evaluator) Dereference(ec *EvalContext, v Value) Value {
	switch v.Kind {
	case KindSingleRef:
		resolved := ev.resolveCellValue(ec, cellFromRef(v.Ref))
		if resolved.Kind == KindBlank && ec.ArrayGroup == nil {
			return Num(0)
		}
		return resolved
	case KindArea:
		return ev.dereferenceArea(ec, v.Area)
	case KindArray:
		return ev.projectArrayElement(ec, v.Array)
	case KindBlank:
		if ec.ArrayGroup != nil {
			return v
		}
		return Num(0)
	default:
		return v
	}
}

// projectArrayElement implements spec §4.2's array-formula-group rule: the
// result element is taken from the array using the evaluation cell's
// position within its array-formula group (ec.ArrayGroup), with no
// blank-to-zero coercion applied there. Outside an array-formula group (a
// plain formula cell whose result happens to be an Array), the top-left
// element is taken instead, the same implicit-intersection default Excel
// applies, and blank is coerced to 0 like any other scalar result.
func (ev *Evaluator) projectArrayElement(ec *EvalContext, a Array) Value {
	row, col := 0, 0
	if ec.ArrayGroup != nil {
		row, col = ec.ArrayGroup.RowInGroup, ec.ArrayGroup.ColInGroup
	}
	if row < 0 || col < 0 || row >= int(a.Rows) || col >= int(a.Cols) {
		return Err(ErrorValue)
	}
	elem := a.Elements[row*int(a.Cols)+col]
	if elem.Kind == KindBlank && ec.ArrayGroup == nil {
		return Num(0)
	}
	return elem
}

func cellFromRef(r SingleRef) CellID {
	return CellID{WorkbookIx: r.WorkbookIx, SheetIx: r.SheetIx, Row: r.Row, Col: r.Col}
}

// dereferenceArea implements the area-projection rules of spec §4.2: a
// one-column area projects onto its sole column, a one-row area projects
// onto its sole row, otherwise the context's row/col must fall inside the
// area span.
func (ev *Evaluator) dereferenceArea(ec *EvalContext, a Area) Value {
	var row, col uint32
	switch {
	case a.Cols() == 1:
		row, col = ec.Row, a.FirstCol
		if row < a.FirstRow || row > a.LastRow {
			return Err(ErrorValue)
		}
	case a.Rows() == 1:
		row, col = a.FirstRow, ec.Col
		if col < a.FirstCol || col > a.LastCol {
			return Err(ErrorValue)
		}
	default:
		row, col = ec.Row, ec.Col
		if !a.Contains(row, col) {
			return Err(ErrorValue)
		}
	}
	target := CellID{WorkbookIx: a.WorkbookIx, SheetIx: a.SheetIx, Row: row, Col: col}
	resolved := ev.resolveCellValue(ec, target)
	if resolved.Kind == KindBlank && ec.ArrayGroup == nil {
		return Num(0)
	}
	return resolved
}

// toNumber coerces a dereferenced scalar to a float64 for arithmetic:
// numbers pass through, booleans become 1/0 and blank becomes 0. Strings
// (numeric text included) and errors are not coercible and report ok=false;
// callers check IsError first so an error is propagated rather than turned
// into #VALUE!.
func toNumber(v Value) (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Number, true
	case KindBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	case KindBlank:
		return 0, true
	case KindString:
		return 0, false
	default:
		return 0, false
	}
}

// toBool coerces a dereferenced scalar to a boolean condition (used by IF
// and the boolean operators). Numbers are truthy iff non-zero; blank is
// false; strings "TRUE"/"FALSE" (case-insensitive) coerce; anything else is
// not coercible.
func toBool(v Value) (bool, bool) {
	switch v.Kind {
	case KindBool:
		return v.Bool, true
	case KindNumber:
		return v.Number != 0, true
	case KindBlank:
		return false, true
	case KindString:
		switch strings.ToUpper(v.Str) {
		case "TRUE":
			return true, true
		case "FALSE":
			return false, true
		default:
			return false, false
		}
	default:
		return false, false
	}
}
