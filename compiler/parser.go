package compiler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/vogtb/calcore"
)

// Parser implements calc.Parser over ordinary infix formula text: a
// precedence-climbing expression parser rewritten from the teacher's
// recursive-descent parser.go to emit a flat postfix calc.Token stream
// instead of building an ASTNode tree.
type Parser struct{}

// New builds a reference Parser.
func New() *Parser { return &Parser{} }

var _ calc.Parser = (*Parser)(nil)

// precedence of each binary operator; '^' is right-associative, everything
// else left-associative.
var precedence = map[string]int{
	"=": 1, "<>": 1, "<": 1, "<=": 1, ">": 1, ">=": 1,
	"&": 2,
	"+": 3, "-": 3,
	"*": 4, "/": 4,
	"^": 5,
}

var binOpFor = map[string]calc.BinaryOp{
	"+": calc.BinAdd, "-": calc.BinSub, "*": calc.BinMul, "/": calc.BinDiv, "^": calc.BinPow,
	"&": calc.BinConcat,
	"=": calc.BinEq, "<>": calc.BinNe, "<": calc.BinLt, "<=": calc.BinLe, ">": calc.BinGt, ">=": calc.BinGe,
}

type parseState struct {
	toks []lexToken
	pos  int
	wb   calc.Workbook
	out  []calc.Token
}

func (p *Parser) Parse(ctx context.Context, formula string, wb calc.Workbook, formulaType calc.FormulaType, sheetIx int, rowIx uint32) ([]calc.Token, error) {
	toks, err := lex(formula)
	if err != nil {
		return nil, err
	}
	st := &parseState{toks: toks, wb: wb}
	if err := st.expr(0, sheetIx); err != nil {
		return nil, err
	}
	if st.cur().typ != lexEOF {
		return nil, fmt.Errorf("compiler: trailing input after formula expression")
	}
	return st.out, nil
}

func (st *parseState) cur() lexToken  { return st.toks[st.pos] }
func (st *parseState) advance()       { st.pos++ }

func (st *parseState) emit(tok calc.Token) {
	if tok.Size == 0 {
		tok.Size = 1
	}
	st.out = append(st.out, tok)
}

// expr parses a binary expression at minPrec or higher using precedence
// climbing, appending postfix tokens to st.out as it goes.
func (st *parseState) expr(minPrec int, sheetIx int) error {
	if err := st.unary(sheetIx); err != nil {
		return err
	}
	for {
		tok := st.cur()
		if tok.typ != lexOp {
			return nil
		}
		prec, ok := precedence[tok.text]
		if !ok || prec < minPrec {
			return nil
		}
		op := tok.text
		st.advance()
		nextMin := prec + 1
		if op == "^" {
			nextMin = prec // right-associative
		}
		if err := st.expr(nextMin, sheetIx); err != nil {
			return err
		}
		st.emit(calc.Token{Kind: calc.TokenBinaryOp, Binary: binOpFor[op]})
	}
}

func (st *parseState) unary(sheetIx int) error {
	tok := st.cur()
	if tok.typ == lexOp && (tok.text == "+" || tok.text == "-") {
		st.advance()
		if err := st.unary(sheetIx); err != nil {
			return err
		}
		op := calc.UnaryPlus
		if tok.text == "-" {
			op = calc.UnaryNeg
		}
		st.emit(calc.Token{Kind: calc.TokenUnaryOp, Unary: op})
		return nil
	}
	return st.postfix(sheetIx)
}

func (st *parseState) postfix(sheetIx int) error {
	if err := st.primary(sheetIx); err != nil {
		return err
	}
	for st.cur().typ == lexOp && st.cur().text == "%" {
		st.advance()
		st.emit(calc.Token{Kind: calc.TokenUnaryOp, Unary: calc.UnaryPercent})
	}
	return nil
}

func (st *parseState) primary(sheetIx int) error {
	tok := st.cur()
	switch tok.typ {
	case lexNumber:
		st.advance()
		st.emit(calc.Token{Kind: calc.TokenNumber, Number: tok.number})
		return nil
	case lexString:
		st.advance()
		st.emit(calc.Token{Kind: calc.TokenString, Str: tok.text})
		return nil
	case lexBoolean:
		st.advance()
		st.emit(calc.Token{Kind: calc.TokenBool, Bool: tok.boolean})
		return nil
	case lexLParen:
		st.advance()
		if err := st.expr(0, sheetIx); err != nil {
			return err
		}
		if st.cur().typ != lexRParen {
			return fmt.Errorf("compiler: expected ')'")
		}
		st.advance()
		return nil
	case lexRef:
		// A sheet name shaped like a cell reference (e.g. Sheet2) lexes as a
		// reference; a following '!' makes it a sheet qualifier.
		if st.toks[st.pos+1].typ == lexBang {
			st.advance()
			st.advance()
			return st.reference(sheetIx, tok.text)
		}
		return st.reference(sheetIx, "")
	case lexIdent:
		name := tok.text
		st.advance()
		if st.cur().typ == lexBang {
			st.advance()
			return st.reference(sheetIx, name)
		}
		if st.cur().typ == lexLParen {
			return st.functionCall(sheetIx, name)
		}
		st.emit(calc.Token{Kind: calc.TokenNameX, ExternName: strings.ToUpper(name)})
		return nil
	default:
		return fmt.Errorf("compiler: unexpected token in expression")
	}
}

// reference parses a cell or range reference, optionally sheet-qualified
// by sheetName (already consumed past its '!').
func (st *parseState) reference(sheetIx int, sheetName string) error {
	if st.cur().typ != lexRef {
		return fmt.Errorf("compiler: expected a cell reference")
	}
	first := st.cur()
	st.advance()
	targetSheet := sheetIx
	if sheetName != "" {
		ix, ok := st.wb.SheetIndex(sheetName)
		if !ok {
			st.emit(calc.Token{Kind: calc.TokenRef3D, IsDeleted: true})
			return nil
		}
		targetSheet = ix
	}
	row1, col1, err := parseA1(first.text)
	if err != nil {
		return err
	}
	if st.cur().typ == lexColon {
		st.advance()
		if st.cur().typ != lexRef {
			return fmt.Errorf("compiler: expected a cell reference after ':'")
		}
		second := st.cur()
		st.advance()
		row2, col2, err := parseA1(second.text)
		if err != nil {
			return err
		}
		area := calc.Area{SheetIx: uint32(targetSheet),
			FirstRow: minU(row1, row2), FirstCol: minU(col1, col2),
			LastRow: maxU(row1, row2), LastCol: maxU(col1, col2)}
		kind := calc.TokenAreaTok
		if sheetName != "" {
			kind = calc.TokenArea3D
		}
		st.emit(calc.Token{Kind: kind, Area: area})
		return nil
	}
	ref := calc.SingleRef{SheetIx: uint32(targetSheet), Row: row1, Col: col1}
	kind := calc.TokenRef
	if sheetName != "" {
		kind = calc.TokenRef3D
	}
	st.emit(calc.Token{Kind: kind, Ref: ref})
	return nil
}

func (st *parseState) functionCall(sheetIx int, name string) error {
	if st.cur().typ != lexLParen {
		return fmt.Errorf("compiler: expected '(' after function name")
	}
	st.advance()
	arity := 0
	if st.cur().typ != lexRParen {
		for {
			if err := st.expr(0, sheetIx); err != nil {
				return err
			}
			arity++
			if st.cur().typ == lexComma {
				st.advance()
				continue
			}
			break
		}
	}
	if st.cur().typ != lexRParen {
		return fmt.Errorf("compiler: expected ')' to close call to %s", name)
	}
	st.advance()
	st.emit(calc.Token{Kind: calc.TokenFuncVar, FuncIx: -1, Name: strings.ToUpper(name), Arity: arity})
	return nil
}

// parseA1 decodes an (optionally $-anchored) A1-style reference into
// zero-based (row, col).
func parseA1(s string) (uint32, uint32, error) {
	i := 0
	if i < len(s) && s[i] == charDollar {
		i++
	}
	letters := i
	for i < len(s) && ((s[i] >= 'A' && s[i] <= 'Z') || (s[i] >= 'a' && s[i] <= 'z')) {
		i++
	}
	colLetters := strings.ToUpper(s[letters:i])
	if i < len(s) && s[i] == charDollar {
		i++
	}
	digits := s[i:]
	if colLetters == "" || digits == "" {
		return 0, 0, fmt.Errorf("compiler: %q is not a valid cell reference", s)
	}
	row, err := strconv.Atoi(digits)
	if err != nil || row < 1 {
		return 0, 0, fmt.Errorf("compiler: %q is not a valid cell reference", s)
	}
	col := 0
	for _, c := range colLetters {
		col = col*26 + int(c-'A'+1)
	}
	return uint32(row - 1), uint32(col - 1), nil
}

func minU(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func maxU(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
