package calc

// AdjustReference shifts a SingleRef by (deltaRow, deltaCol), used when a
// formula is copied or filled to a new cell (spec §4.9). A negative delta is
// rejected outright, regardless of whether the resulting position would
// still be in bounds; a non-negative delta fails with FaultOutOfBounds if the
// shift would exceed the workbook's row/column maxima. The bool return
// reports whether any shift actually occurred (false is a no-op for a delta
// of zero).
func AdjustReference(ref SingleRef, deltaRow, deltaCol int64, version SpreadsheetVersion) (SingleRef, bool, error) {
	if deltaRow < 0 || deltaCol < 0 {
		return SingleRef{}, false, newFault(FaultOutOfBounds, cellFromRef(ref), "region-relative shift rejects a negative delta")
	}
	if deltaRow == 0 && deltaCol == 0 {
		return ref, false, nil
	}
	newRow, err := shiftCoordinate(ref.Row, deltaRow, version.MaxRows, CellID{WorkbookIx: ref.WorkbookIx, SheetIx: ref.SheetIx, Row: ref.Row, Col: ref.Col})
	if err != nil {
		return SingleRef{}, false, err
	}
	newCol, err := shiftCoordinate(ref.Col, deltaCol, version.MaxCols, CellID{WorkbookIx: ref.WorkbookIx, SheetIx: ref.SheetIx, Row: ref.Row, Col: ref.Col})
	if err != nil {
		return SingleRef{}, false, err
	}
	return SingleRef{WorkbookIx: ref.WorkbookIx, SheetIx: ref.SheetIx, Row: newRow, Col: newCol}, true, nil
}

// AdjustArea shifts every corner of an Area by (deltaRow, deltaCol), with
// the same negative-delta and bounds rules as AdjustReference.
func AdjustArea(a Area, deltaRow, deltaCol int64, version SpreadsheetVersion) (Area, bool, error) {
	cell := CellID{WorkbookIx: a.WorkbookIx, SheetIx: a.SheetIx}
	if deltaRow < 0 || deltaCol < 0 {
		return Area{}, false, newFault(FaultOutOfBounds, cell, "region-relative shift rejects a negative delta")
	}
	firstRow, err := shiftCoordinate(a.FirstRow, deltaRow, version.MaxRows, cell)
	if err != nil {
		return Area{}, false, err
	}
	firstCol, err := shiftCoordinate(a.FirstCol, deltaCol, version.MaxCols, cell)
	if err != nil {
		return Area{}, false, err
	}
	lastRow, err := shiftCoordinate(a.LastRow, deltaRow, version.MaxRows, cell)
	if err != nil {
		return Area{}, false, err
	}
	lastCol, err := shiftCoordinate(a.LastCol, deltaCol, version.MaxCols, cell)
	if err != nil {
		return Area{}, false, err
	}
	shifted := deltaRow != 0 || deltaCol != 0
	return Area{WorkbookIx: a.WorkbookIx, SheetIx: a.SheetIx,
		FirstRow: firstRow, FirstCol: firstCol, LastRow: lastRow, LastCol: lastCol}, shifted, nil
}

// shiftCoordinate applies delta to coord, rejecting a result outside
// [0, max).
func shiftCoordinate(coord uint32, delta int64, max uint32, cell CellID) (uint32, error) {
	shifted := int64(coord) + delta
	if shifted < 0 || shifted >= int64(max) {
		return 0, newFault(FaultOutOfBounds, cell, "region-relative shift exceeds the spreadsheet version's row/column limits")
	}
	return uint32(shifted), nil
}
