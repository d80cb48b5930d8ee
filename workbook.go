package calc

import "context"

// SpreadsheetVersion exposes the host format's limits (spec §3, §4.9).
type SpreadsheetVersion struct {
	Name    string
	MaxRows uint32
	MaxCols uint32
}

// NameDefinition describes a resolved named range or function name (spec §6
// "get_name").
type NameDefinition struct {
	IsFunctionName bool
	HasFormula     bool
	Definition     []Token // present iff HasFormula
	Range          Area
	IsRange        bool
}

// Workbook is the external collaborator that owns sheets, cells, named
// ranges, and formula token arrays. The core never parses or stores a
// workbook's own data; it only queries this interface (spec §6).
type Workbook interface {
	SheetIndex(sheetOrName string) (int, bool)
	SheetName(ix int) (string, bool)

	// FormulaTokens returns the parsed token array for a formula cell, or
	// ok=false if the cell is not a formula cell.
	FormulaTokens(cell CellID) (tokens []Token, ok bool)

	// CellValue returns the plain (non-formula) value stored at cell. Used
	// by the interpreter/operand resolver to dereference a SingleRef/Area
	// down to a scalar and by the tracker to register a plain-value
	// dependency.
	CellValue(cell CellID) Value

	// Name resolves a named range or function name by name or by parser
	// index, scoped to sheetIx (-1 for workbook scope).
	Name(nameOrIndex any, sheetIx int) (NameDefinition, bool)

	SpreadsheetVersion() SpreadsheetVersion

	// ConvertFromExternSheetIndex translates a parser-assigned external
	// sheet index (used by 3-D and cross-workbook references) into this
	// workbook's own sheet index.
	ConvertFromExternSheetIndex(externIx int) (int, bool)

	UDFFinder() UDFFinder
}

// FormulaType mirrors the parser's formula-type enum (spec §6). Each value
// carries whether the result should be dereferenced to a single scalar.
type FormulaType int

const (
	FormulaTypeCell FormulaType = iota
	FormulaTypeDataValidationList
	FormulaTypeArrayFormula
	FormulaTypeNamedRange
)

// IsSingleValue reports whether a formula of this type is dereferenced to a
// scalar at the evaluation boundary (spec §4.2, §4.8).
func (t FormulaType) IsSingleValue() bool {
	return t != FormulaTypeDataValidationList && t != FormulaTypeArrayFormula
}

// Parser is the external collaborator that turns formula text into a
// postfix token array (spec §6). The real implementation lives outside the
// core (see package compiler for a reference one); the core never compiles
// formula text itself except by calling through this interface.
type Parser interface {
	Parse(ctx context.Context, formula string, wb Workbook, formulaType FormulaType, sheetIx int, rowIx uint32) ([]Token, error)
}
