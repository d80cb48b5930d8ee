// Package memstore is a reference implementation of the calc.Workbook
// collaborator (spec.md §6): an in-memory sheet/cell store adapted from the
// teacher's worksheet.go chunked Worksheet storage and WorksheetTable
// name/ID interning, repointed at calc's FormulaTokens/CellValue/Name
// contract instead of the teacher's own AST-walking Spreadsheet.
package memstore

import (
	"strings"

	"github.com/vogtb/calcore"
)

// cellRecord is either a plain literal or a parsed formula; never both.
type cellRecord struct {
	literal calc.Value
	tokens  []calc.Token
	isFormula bool
}

// Sheet is one worksheet's cell grid, stored sparsely by (row, col) the way
// the teacher's chunked Worksheet avoids allocating a dense 2-D array.
type Sheet struct {
	id    uint32
	name  string
	cells map[[2]uint32]*cellRecord
}

func newSheet(id uint32, name string) *Sheet {
	return &Sheet{id: id, name: name, cells: make(map[[2]uint32]*cellRecord)}
}

// sheetTable interns worksheet names to stable ids, in the teacher's
// WorksheetTable nameToID/idToName style.
type sheetTable struct {
	nameToID map[string]uint32
	byID     map[uint32]*Sheet
	nextID   uint32
}

func newSheetTable() *sheetTable {
	return &sheetTable{nameToID: make(map[string]uint32), byID: make(map[uint32]*Sheet), nextID: 0}
}

func (t *sheetTable) intern(name string) *Sheet {
	if id, ok := t.nameToID[name]; ok {
		return t.byID[id]
	}
	id := t.nextID
	t.nextID++
	s := newSheet(id, name)
	t.nameToID[name] = id
	t.byID[id] = s
	return s
}

// namedRange is a named range or function alias, adapted from the
// teacher's range.go NamedRangeTable entry shape.
type namedRange struct {
	isFunctionName bool
	hasFormula     bool
	definition     []calc.Token
	area           calc.Area
	isRange        bool
}

// Workbook is the in-memory calc.Workbook implementation.
type Workbook struct {
	name       string
	version    calc.SpreadsheetVersion
	sheets     *sheetTable
	names      map[string]*namedRange
	namesByIx  map[int32]*namedRange
	nextNameIx int32
	externIxs  map[int]uint32 // parser-assigned extern sheet index -> sheet id
	udfs       calc.UDFFinder
}

var _ calc.Workbook = (*Workbook)(nil)

// StandardVersion returns the row/column limits of a modern xlsx-class
// spreadsheet, a reasonable default for tests and small reference
// workbooks.
func StandardVersion() calc.SpreadsheetVersion {
	return calc.SpreadsheetVersion{Name: "xlsx", MaxRows: 1048576, MaxCols: 16384}
}

// New builds an empty in-memory workbook named name, using version's
// row/column maxima for bounds checks (e.g. in adjust.go).
func New(name string, version calc.SpreadsheetVersion) *Workbook {
	return &Workbook{
		name:      name,
		version:   version,
		sheets:    newSheetTable(),
		names:     make(map[string]*namedRange),
		namesByIx: make(map[int32]*namedRange),
		externIxs: make(map[int]uint32),
	}
}

// SetUDFFinder installs the finder this workbook reports via UDFFinder().
func (wb *Workbook) SetUDFFinder(f calc.UDFFinder) { wb.udfs = f }

// Sheet interns (or returns) the sheet named name, defining it if new.
func (wb *Workbook) Sheet(name string) *Sheet {
	return wb.sheets.intern(name)
}

// BindExternSheetIndex records that externIx (as a compiled 3-D/external
// reference would carry it) maps to sheet.
func (wb *Workbook) BindExternSheetIndex(externIx int, sheet *Sheet) {
	wb.externIxs[externIx] = sheet.id
}

// SetLiteral stores a plain value at (sheet, row, col), clearing any
// formula previously stored there.
func (wb *Workbook) SetLiteral(sheet *Sheet, row, col uint32, v calc.Value) {
	sheet.cells[[2]uint32{row, col}] = &cellRecord{literal: v}
}

// SetFormula stores a parsed formula's token stream at (sheet, row, col).
func (wb *Workbook) SetFormula(sheet *Sheet, row, col uint32, tokens []calc.Token) {
	sheet.cells[[2]uint32{row, col}] = &cellRecord{tokens: tokens, isFormula: true}
}

// internName assigns nr the next parser-style name index and interns it
// under both lookup tables, so it resolves the same way whether a formula
// references it by name (TokenNameX) or by the numeric index a parser
// assigns a plain TokenName (spec.md §4.8 evalName, §6 get_name).
func (wb *Workbook) internName(name string, nr *namedRange) int32 {
	idx := wb.nextNameIx
	wb.nextNameIx++
	wb.names[strings.ToUpper(name)] = nr
	wb.namesByIx[idx] = nr
	return idx
}

// DefineName registers a named range over area, returning its assigned
// numeric index.
func (wb *Workbook) DefineName(name string, area calc.Area) int32 {
	return wb.internName(name, &namedRange{area: area, isRange: true})
}

// DefineNamedFormula registers a name bound to a formula's token stream
// (e.g. a named constant or computed name) rather than a literal range,
// returning its assigned numeric index.
func (wb *Workbook) DefineNamedFormula(name string, tokens []calc.Token) int32 {
	return wb.internName(name, &namedRange{hasFormula: true, definition: tokens})
}

// DefineFunctionName marks name as resolving to a function identity rather
// than a value (spec.md §4.8 evalName's IsFunctionName branch), returning
// its assigned numeric index.
func (wb *Workbook) DefineFunctionName(name string) int32 {
	return wb.internName(name, &namedRange{isFunctionName: true})
}

func (wb *Workbook) SheetIndex(sheetOrName string) (int, bool) {
	id, ok := wb.sheets.nameToID[sheetOrName]
	return int(id), ok
}

func (wb *Workbook) SheetName(ix int) (string, bool) {
	s, ok := wb.sheets.byID[uint32(ix)]
	if !ok {
		return "", false
	}
	return s.name, true
}

func (wb *Workbook) FormulaTokens(cell calc.CellID) ([]calc.Token, bool) {
	sheet, ok := wb.sheets.byID[cell.SheetIx]
	if !ok {
		return nil, false
	}
	rec, ok := sheet.cells[[2]uint32{cell.Row, cell.Col}]
	if !ok || !rec.isFormula {
		return nil, false
	}
	return rec.tokens, true
}

func (wb *Workbook) CellValue(cell calc.CellID) calc.Value {
	sheet, ok := wb.sheets.byID[cell.SheetIx]
	if !ok {
		return calc.Blank()
	}
	rec, ok := sheet.cells[[2]uint32{cell.Row, cell.Col}]
	if !ok || rec.isFormula {
		return calc.Blank()
	}
	return rec.literal
}

func (wb *Workbook) Name(nameOrIndex any, sheetIx int) (calc.NameDefinition, bool) {
	var n *namedRange
	var ok bool
	switch v := nameOrIndex.(type) {
	case string:
		n, ok = wb.names[strings.ToUpper(v)]
	case int32:
		n, ok = wb.namesByIx[v]
	default:
		return calc.NameDefinition{}, false
	}
	if !ok {
		return calc.NameDefinition{}, false
	}
	return calc.NameDefinition{
		IsFunctionName: n.isFunctionName,
		HasFormula:     n.hasFormula,
		Definition:     n.definition,
		Range:          n.area,
		IsRange:        n.isRange,
	}, true
}

func (wb *Workbook) SpreadsheetVersion() calc.SpreadsheetVersion { return wb.version }

func (wb *Workbook) ConvertFromExternSheetIndex(externIx int) (int, bool) {
	id, ok := wb.externIxs[externIx]
	return int(id), ok
}

func (wb *Workbook) UDFFinder() calc.UDFFinder { return wb.udfs }
