package calc

// TokenKind categorizes a parsed formula token for the interpreter's
// dispatch (spec §4.8). It intentionally mirrors the category column of the
// spec's token table, not a specific wire encoding.
type TokenKind uint8

const (
	// Literals
	TokenInt TokenKind = iota
	TokenNumber
	TokenString
	TokenBool
	TokenErrorLiteral
	TokenMissingArg
	TokenArrayLiteral

	// References
	TokenRef
	TokenRef3D
	TokenAreaTok
	TokenArea3D

	// Names
	TokenName
	TokenNameX
	TokenNameXPxg

	// Operators
	TokenUnaryOp
	TokenBinaryOp
	TokenFuncCall
	TokenFuncVar

	// Structural
	TokenUnion
	TokenMemFunc
	TokenMemArea
	TokenMemErr
	TokenParenthesis
	TokenAttr // generic, non-control Attr; control-flow Attrs use their own kinds below

	// Control flow (encoded as byte-distance jumps, not instruction indices)
	TokenAttrSum    // sum-shorthand: rewritten to a 1-arg variadic SUM call
	TokenAttrIf     // optimized IF
	TokenAttrChoose // optimized CHOOSE
	TokenAttrSkip   // unconditional skip

	// Unsupported
	TokenExp     // shared-formula host reference: Unsupported
	TokenUnknown // malformed
)

// UnaryOp and BinaryOp identify which operator a TokenUnaryOp/TokenBinaryOp
// token applies; the operator implementations (applyUnary/applyBinary) live
// in interpreter.go.
type UnaryOp uint8

const (
	UnaryNeg UnaryOp = iota
	UnaryPlus
	UnaryPercent
)

type BinaryOp uint8

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinPow
	BinConcat
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
)

// Token is one element of a postfix-ordered formula token array. Size is
// the token's encoded byte length in the parser's binary layout; control-flow
// tokens use it, together with the distance fields and ChooseTable below, to
// compute how many
// subsequent tokens a skip consumes (spec §4.8's "distance-to-token-count
// conversion").
type Token struct {
	Kind TokenKind
	Size uint32

	// Literal payloads.
	Int      int32
	Number   float64
	Str      string
	Bool     bool
	ErrorVal ErrorCode

	// Array literal payload.
	ArrayRows int
	ArrayCols int
	ArrayVals []Value

	// Reference payloads.
	Ref       SingleRef
	Area      Area
	IsDeleted bool // a reference the workbook reports as deleted pushes #REF!

	// Operator payloads.
	Unary  UnaryOp
	Binary BinaryOp
	FuncIx int    // built-in function index, or -1 if this is a NameX/by-name call
	Name   string // by-name external function, when FuncIx == -1
	Arity  int    // for FuncCall/FuncVar/variadic sum-shorthand

	// Name payloads.
	NameIx     int32
	ExternName string

	// Control-flow payloads. Distances are byte counts per spec §4.8.
	TrueDistance  uint32 // IF: bytes to skip to reach the false branch (or past it)
	FalseDistance uint32 // IF: bytes to skip from the false branch to the end
	ChooseTable   []uint32 // CHOOSE: per-branch byte distances, 1-indexed by selector
	ChooseOffset  uint32   // CHOOSE: bytes from selector to the token after the whole construct
	SkipDistance  uint32   // SKIP: bytes to skip unconditionally
}
