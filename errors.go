package calc

import "fmt"

// FaultCode enumerates engine faults (spec §7, channel 2): conditions that
// mean the inputs or the implementation are broken, not a user formula
// error. Unlike ErrorCode, a FaultCode is never pushed onto the value stack
// — it aborts the current top-level Evaluate call.
type FaultCode string

const (
	FaultMalformedFormula        FaultCode = "MALFORMED_FORMULA"
	FaultForeignSheet            FaultCode = "FOREIGN_SHEET"
	FaultOutOfBounds             FaultCode = "OUT_OF_BOUNDS"
	FaultUnsupported             FaultCode = "UNSUPPORTED"
	FaultNotImplemented          FaultCode = "NOT_IMPLEMENTED"
	FaultMissingExternalWorkbook FaultCode = "MISSING_EXTERNAL_WORKBOOK"
)

// faultCatalog documents each fault's standard message and guidance,
// matching the shape of vinodismyname-mcpxcel's pkg/mcperr catalog (code,
// message, next steps) without the MCP-specific retry semantics this core
// has no client contract to need.
var faultCatalog = map[FaultCode]struct {
	message   string
	nextSteps []string
}{
	FaultMalformedFormula: {
		message:   "formula token stream is malformed",
		nextSteps: []string{"re-parse the formula", "verify token Size fields are accurate"},
	},
	FaultForeignSheet: {
		message:   "cell references a sheet belonging to a different workbook",
		nextSteps: []string{"resolve the reference through CollaboratingWorkbooksEnvironment instead"},
	},
	FaultOutOfBounds: {
		message:   "region-relative shift exceeds the spreadsheet version's row/column limits",
		nextSteps: []string{"shrink the region or the shift delta"},
	},
	FaultUnsupported: {
		message:   "token type is not supported by this interpreter",
		nextSteps: []string{"shared-formula host tokens (Exp) must be resolved by the parser before evaluation"},
	},
	FaultNotImplemented: {
		message:   "no implementation registered for this function",
		nextSteps: []string{"register the function with the function registry"},
	},
	FaultMissingExternalWorkbook: {
		message:   "formula depends on an external workbook that is not loaded",
		nextSteps: []string{"load the workbook, or set Options.IgnoreMissingWorkbooks to fall back to the cached literal"},
	},
}

// EngineFault is the error type for channel-2 faults (spec §7). It is a
// normal Go error — use errors.As to recover the FaultCode and Cell.
type EngineFault struct {
	Code FaultCode
	Cell CellID
	Detail string
}

func (f *EngineFault) Error() string {
	entry := faultCatalog[f.Code]
	if f.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", f.Code, entry.message, f.Detail)
	}
	return fmt.Sprintf("%s: %s", f.Code, entry.message)
}

// NextSteps returns the catalog guidance for the fault's code.
func (f *EngineFault) NextSteps() []string {
	return faultCatalog[f.Code].nextSteps
}

func newFault(code FaultCode, cell CellID, detail string) *EngineFault {
	return &EngineFault{Code: code, Cell: cell, Detail: detail}
}
