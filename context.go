package calc

// EvalContext is the per-call-frame record threaded through one top-level
// Evaluate invocation and every recursive name/cross-workbook evaluation it
// triggers (spec §4.4).
type EvalContext struct {
	Evaluator   *Evaluator
	Workbook    Workbook
	WorkbookIx  uint32
	SheetIx     uint32
	Row         uint32
	Col         uint32
	Tracker     *Tracker
	SingleValue bool // false under evaluate_list and for an array-formula group's anchor run (spec §4.1)

	// ArrayGroup, when non-nil, gives this cell's position within its
	// array-formula group so the interpreter can pick the matching element
	// out of an Array result without the blank-to-zero coercion (spec §4.2).
	ArrayGroup *ArrayGroupPosition
}

// ArrayGroupPosition locates one cell within the rectangular group of cells
// sharing an array formula.
type ArrayGroupPosition struct {
	RowInGroup int
	ColInGroup int
}

// childContext derives a new frame for a recursive evaluation (e.g. a named
// range's definition, or a cross-workbook reference) at a possibly
// different cell/sheet/workbook, sharing the same tracker.
func (ec *EvalContext) childContext(wb Workbook, workbookIx, sheetIx, row, col uint32, singleValue bool) *EvalContext {
	return &EvalContext{
		Evaluator:   ec.Evaluator,
		Workbook:    wb,
		WorkbookIx:  workbookIx,
		SheetIx:     sheetIx,
		Row:         row,
		Col:         col,
		Tracker:     ec.Tracker,
		SingleValue: singleValue,
	}
}

// cell returns this frame's own cell identity.
func (ec *EvalContext) cell() CellID {
	return CellID{WorkbookIx: ec.WorkbookIx, SheetIx: ec.SheetIx, Row: ec.Row, Col: ec.Col}
}

// resolveRef resolves a Ref/Ref3D token into a SingleRef Value, applying the
// deleted-reference rule (a deleted reference becomes #REF!); the token's
// sheet index is not checked against the workbook, so no ForeignSheet fault
// is raised here. Both forms resolve within the
// current workbook: a Ref3D in this reference implementation only ever
// means "an explicitly sheet-qualified reference" (spec.md §6's extern
// sheet index translates to a local sheet, never a foreign workbook, since
// no collaborator here emits a genuinely cross-workbook token). Reaching a
// cell in another workbook happens one level up, at evaluator.go's
// resolveCellValue, when a caller queries a CellID whose WorkbookIx differs
// from this Evaluator's own (spec §4.9).
func (ec *EvalContext) resolveRef(tok Token) Value {
	if tok.IsDeleted {
		return Err(ErrorRef)
	}
	ref := tok.Ref
	ref.WorkbookIx = ec.WorkbookIx
	return Ref(ref)
}

// resolveArea resolves an Area/Area3D token into an Area Value, with the
// same workbook-pinning rule as resolveRef.
func (ec *EvalContext) resolveArea(tok Token) Value {
	if tok.IsDeleted {
		return Err(ErrorRef)
	}
	area := tok.Area
	area.WorkbookIx = ec.WorkbookIx
	return AreaVal(area)
}
