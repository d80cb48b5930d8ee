package calc

// CellID identifies one cell across the whole collaborating-workbooks
// environment: workbook, sheet, row, and column (spec §3). Row and column
// are zero-based; the workbook's SpreadsheetVersion supplies the maxima.
type CellID struct {
	WorkbookIx uint32
	SheetIx    uint32
	Row        uint32
	Col        uint32
}

// RangeID identifies a rectangular area the same way CellID identifies a
// single cell; used as a map key for range-dependency bookkeeping.
type RangeID struct {
	WorkbookIx uint32
	SheetIx    uint32
	FirstRow   uint32
	FirstCol   uint32
	LastRow    uint32
	LastCol    uint32
}

// Contains reports whether id falls within r (same workbook/sheet and
// inside the row/column span).
func (r RangeID) Contains(id CellID) bool {
	return id.WorkbookIx == r.WorkbookIx && id.SheetIx == r.SheetIx &&
		id.Row >= r.FirstRow && id.Row <= r.LastRow &&
		id.Col >= r.FirstCol && id.Col <= r.LastCol
}
