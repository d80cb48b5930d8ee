package calc

import "math"

// builtinSumIndex is the parser-assigned function index for SUM, used to
// rewrite the sum-shorthand Attr token into an ordinary 1-arg variadic call
// (spec §4.8). It matches the real binary function-index assignment for
// SUM so a compiler collaborator can reuse the same constant.
const builtinSumIndex = 4

// interpreter walks one postfix token array against a value stack (spec
// §4.8). A fresh interpreter is cheap to construct; it holds no state of
// its own beyond a reference back to the owning Evaluator.
type interpreter struct {
	ev *Evaluator
}

// Run interprets tokens in ec, returning the single value left on the stack.
// A malformed token stream (wrong arity, a distance that doesn't land
// exactly on a token boundary, a stack that doesn't reduce to exactly one
// value) is a FaultMalformedFormula engine fault, not an in-band error.
func (in *interpreter) Run(tokens []Token, ec *EvalContext) (Value, error) {
	stack := make([]Value, 0, len(tokens))
	i := 0
	for i < len(tokens) {
		if ec.Tracker.Aborted() {
			return Value{}, ec.Tracker.fault
		}
		tok := tokens[i]
		advance := 1

		switch tok.Kind {
		case TokenInt:
			stack = append(stack, Num(float64(tok.Int)))
		case TokenNumber:
			stack = append(stack, Num(tok.Number))
		case TokenString:
			stack = append(stack, Str(tok.Str))
		case TokenBool:
			stack = append(stack, Bool(tok.Bool))
		case TokenErrorLiteral:
			stack = append(stack, Err(tok.ErrorVal))
		case TokenMissingArg:
			stack = append(stack, MissingArg())
		case TokenArrayLiteral:
			elems := append([]Value(nil), tok.ArrayVals...)
			stack = append(stack, ArrayVal(Array{Rows: tok.ArrayRows, Cols: tok.ArrayCols, Elements: elems}))

		case TokenRef, TokenRef3D:
			stack = append(stack, ec.resolveRef(tok))
		case TokenAreaTok, TokenArea3D:
			stack = append(stack, ec.resolveArea(tok))

		case TokenName, TokenNameX, TokenNameXPxg:
			v, err := in.evalName(ec, tok)
			if err != nil {
				return Value{}, err
			}
			stack = append(stack, v)

		case TokenUnaryOp:
			if len(stack) < 1 {
				return Value{}, newFault(FaultMalformedFormula, ec.cell(), "unary operator with empty stack")
			}
			operand := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			stack = append(stack, in.applyUnary(ec, tok.Unary, operand))

		case TokenBinaryOp:
			if len(stack) < 2 {
				return Value{}, newFault(FaultMalformedFormula, ec.cell(), "binary operator with fewer than two operands")
			}
			rhs := stack[len(stack)-1]
			lhs := stack[len(stack)-2]
			stack = stack[:len(stack)-2]
			stack = append(stack, in.applyBinary(ec, tok.Binary, lhs, rhs))

		case TokenFuncCall, TokenFuncVar:
			if len(stack) < tok.Arity {
				return Value{}, newFault(FaultMalformedFormula, ec.cell(), "function call with too few arguments on the stack")
			}
			args := append(Args(nil), stack[len(stack)-tok.Arity:]...)
			stack = stack[:len(stack)-tok.Arity]
			result, err := in.callFunction(ec, tok, args)
			if err != nil {
				return Value{}, err
			}
			stack = append(stack, result)

		case TokenUnion:
			if len(stack) < 2 {
				return Value{}, newFault(FaultMalformedFormula, ec.cell(), "union operator with fewer than two operands")
			}
			rhs := stack[len(stack)-1]
			lhs := stack[len(stack)-2]
			stack = stack[:len(stack)-2]
			stack = append(stack, RefList(lhs, rhs))

		case TokenMemFunc, TokenMemArea, TokenMemErr, TokenParenthesis, TokenAttr:
			// Structural no-ops: the parser already folded their meaning into
			// adjacent tokens.

		case TokenAttrSum:
			if len(stack) < 1 {
				return Value{}, newFault(FaultMalformedFormula, ec.cell(), "sum-shorthand with empty stack")
			}
			arg := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			fn, ok := in.ev.registry.ByIndex(builtinSumIndex)
			if !ok {
				return Value{}, newFault(FaultNotImplemented, ec.cell(), "SUM")
			}
			stack = append(stack, fn(ec, Args{arg}))

		case TokenAttrIf:
			next, pushed, err := in.stepAttrIf(tokens, i, tok, ec, &stack)
			if err != nil {
				return Value{}, err
			}
			if pushed {
				// fall through: true branch tokens (or the coerced-true case)
				// execute next, at i+1.
			} else {
				i = next
				continue
			}

		case TokenAttrChoose:
			next, err := in.stepAttrChoose(tokens, i, tok, ec, &stack)
			if err != nil {
				return Value{}, err
			}
			i = next
			continue

		case TokenAttrSkip:
			next, err := skipTokens(tokens, i+1, tok.SkipDistance)
			if err != nil {
				return Value{}, newFault(FaultMalformedFormula, ec.cell(), "skip distance does not land on a token boundary")
			}
			if len(stack) > 0 && stack[len(stack)-1].Kind == KindMissingArg {
				stack[len(stack)-1] = Blank()
			}
			i = next
			continue

		case TokenExp:
			return Value{}, newFault(FaultUnsupported, ec.cell(), "shared-formula host token (Exp) reached the interpreter unresolved")

		default:
			return Value{}, newFault(FaultMalformedFormula, ec.cell(), "unrecognized token kind")
		}

		i += advance
	}

	if len(stack) != 1 {
		return Value{}, newFault(FaultMalformedFormula, ec.cell(), "token stream did not reduce to exactly one value")
	}
	result := stack[0]
	if ec.SingleValue {
		result = in.ev.Dereference(ec, result)
	}
	return result, nil
}

// skipTokens walks forward from index `from`, summing token Size fields
// until the running total equals `distance` exactly, returning the index of
// the first token past the skip. An overshoot (no token boundary lands
// exactly on distance) or running off the end of tokens is malformed.
func skipTokens(tokens []Token, from int, distance uint32) (int, error) {
	consumed := uint32(0)
	idx := from
	for consumed < distance {
		if idx >= len(tokens) {
			return 0, newFault(FaultMalformedFormula, CellID{}, "skip distance runs past the end of the token stream")
		}
		consumed += tokens[idx].Size
		idx++
		if consumed > distance {
			return 0, newFault(FaultMalformedFormula, CellID{}, "skip distance does not land on a token boundary")
		}
	}
	return idx, nil
}

// stepAttrIf implements the optimized two/three-argument IF (spec §4.8). It
// returns (nextIndex, fallThrough, err): fallThrough is true when execution
// should continue normally at i+1 (predicate true, true-branch tokens are
// next), false when the caller should jump to nextIndex.
func (in *interpreter) stepAttrIf(tokens []Token, i int, tok Token, ec *EvalContext, stackPtr *[]Value) (int, bool, error) {
	stack := *stackPtr
	if len(stack) < 1 {
		return 0, false, newFault(FaultMalformedFormula, ec.cell(), "optimized IF with empty stack")
	}
	pred := stack[len(stack)-1]
	stack = stack[:len(stack)-1]

	truth, ok := boolFromPredicate(pred)
	if !ok {
		// Error, or not coercible to a condition: push the error and skip
		// both branches entirely (two successive distance skips).
		next, err := skipTokens(tokens, i+1, tok.TrueDistance)
		if err != nil {
			*stackPtr = stack
			return 0, false, err
		}
		next, err = skipTokens(tokens, next, tok.FalseDistance)
		if err != nil {
			*stackPtr = stack
			return 0, false, err
		}
		if pred.IsError() {
			stack = append(stack, pred)
		} else {
			stack = append(stack, Err(ErrorValue))
		}
		*stackPtr = stack
		return next, false, nil
	}

	if truth {
		*stackPtr = stack
		return 0, true, nil
	}

	next, err := skipTokens(tokens, i+1, tok.TrueDistance)
	if err != nil {
		*stackPtr = stack
		return 0, false, err
	}
	// A 2-argument IF(cond, true_value) with no false branch lands this
	// skip directly on the trailing IF call token instead of false-branch
	// expression tokens; synthesize the two operands it expects so its
	// ordinary function-call dispatch can produce the correct default
	// (FALSE) result (spec §8 Open Question: the asymmetry is preserved).
	if next < len(tokens) && tokens[next].Kind == TokenFuncVar && tokens[next].Arity == 2 && tokens[next].Name == "IF" {
		stack = append(stack, pred, Bool(false))
	}
	*stackPtr = stack
	return next, false, nil
}

// boolFromPredicate reports (truth, ok): ok is false when pred is an error
// or otherwise not coercible to a condition.
func boolFromPredicate(pred Value) (bool, bool) {
	if pred.IsError() {
		return false, false
	}
	return toBool(pred)
}

// stepAttrChoose implements the optimized CHOOSE (spec §4.8): pop the
// selector, consult the in-token jump table, and skip to the chosen branch
// — or push an error and skip past the whole construct if the selector is
// out of range or itself an error.
func (in *interpreter) stepAttrChoose(tokens []Token, i int, tok Token, ec *EvalContext, stackPtr *[]Value) (int, error) {
	stack := *stackPtr
	if len(stack) < 1 {
		return 0, newFault(FaultMalformedFormula, ec.cell(), "optimized CHOOSE with empty stack")
	}
	sel := stack[len(stack)-1]
	stack = stack[:len(stack)-1]

	idx, inRange := selectorIndex(sel, len(tok.ChooseTable))
	if !inRange {
		next, err := skipTokens(tokens, i+1, tok.ChooseOffset)
		if err != nil {
			*stackPtr = stack
			return 0, err
		}
		if sel.IsError() {
			stack = append(stack, sel)
		} else {
			stack = append(stack, Err(ErrorValue))
		}
		*stackPtr = stack
		return next, nil
	}

	next, err := skipTokens(tokens, i+1, tok.ChooseTable[idx-1])
	*stackPtr = stack
	if err != nil {
		return 0, err
	}
	return next, nil
}

// selectorIndex coerces sel to a 1-based branch index and reports whether
// it falls within [1, n].
func selectorIndex(sel Value, n int) (int, bool) {
	if sel.IsError() {
		return 0, false
	}
	num, ok := toNumber(sel)
	if !ok {
		return 0, false
	}
	idx := int(num)
	if float64(idx) != num || idx < 1 || idx > n {
		return 0, false
	}
	return idx, true
}

// evalName resolves a Name/NameX/NameXPxg token against the workbook's
// named-item catalog (spec §4.8, §6 get_name).
func (in *interpreter) evalName(ec *EvalContext, tok Token) (Value, error) {
	var key any = tok.NameIx
	if tok.Kind != TokenName {
		key = tok.ExternName
	}
	def, ok := ec.Workbook.Name(key, int(ec.SheetIx))
	if !ok {
		return Err(ErrorName), nil
	}
	if def.IsFunctionName {
		return FunctionName(tok.Name), nil
	}
	if def.HasFormula {
		return in.Run(def.Definition, ec)
	}
	if def.IsRange {
		area := def.Range
		area.WorkbookIx = ec.WorkbookIx
		return AreaVal(area), nil
	}
	return Err(ErrorName), nil
}

// callFunction dispatches a FuncCall/FuncVar token to the registry. Built-in
// indices that are absent are a NotImplemented engine fault (the parser
// assigned the index, so its absence means the registry is incomplete);
// by-name lookups that miss are the in-band #NAME? error, since an unknown
// name is a formula-authoring mistake rather than an engine defect.
func (in *interpreter) callFunction(ec *EvalContext, tok Token, args Args) (Value, error) {
	if tok.FuncIx >= 0 {
		fn, ok := in.ev.registry.ByIndex(tok.FuncIx)
		if !ok {
			return Value{}, newFault(FaultNotImplemented, ec.cell(), tok.Name)
		}
		return fn(ec, args), nil
	}
	fn, ok := in.ev.registry.ByName(tok.Name)
	if !ok {
		return Err(ErrorName), nil
	}
	return fn(ec, args), nil
}

// applyUnary evaluates a unary operator over a dereferenced scalar operand,
// propagating errors and treating non-coercible operands as #VALUE!.
func (in *interpreter) applyUnary(ec *EvalContext, op UnaryOp, operand Value) Value {
	v := in.ev.Dereference(ec, operand)
	if v.IsError() {
		return v
	}
	n, ok := toNumber(v)
	if !ok {
		return Err(ErrorValue)
	}
	switch op {
	case UnaryNeg:
		return Num(-n)
	case UnaryPlus:
		return Num(n)
	case UnaryPercent:
		return Num(n / 100)
	default:
		return Err(ErrorValue)
	}
}

// applyBinary evaluates a binary operator over two dereferenced scalar
// operands (spec §4.8). Either operand being an in-band error short-circuits
// to that error, matching ordinary spreadsheet propagation.
func (in *interpreter) applyBinary(ec *EvalContext, op BinaryOp, lhsRaw, rhsRaw Value) Value {
	lhs := in.ev.Dereference(ec, lhsRaw)
	if lhs.IsError() {
		return lhs
	}
	rhs := in.ev.Dereference(ec, rhsRaw)
	if rhs.IsError() {
		return rhs
	}

	if op == BinConcat {
		return Str(lhs.String() + rhs.String())
	}
	if isComparison(op) {
		return compareValues(op, lhs, rhs)
	}

	ln, lok := toNumber(lhs)
	rn, rok := toNumber(rhs)
	if !lok || !rok {
		return Err(ErrorValue)
	}
	switch op {
	case BinAdd:
		return Num(ln + rn)
	case BinSub:
		return Num(ln - rn)
	case BinMul:
		return Num(ln * rn)
	case BinDiv:
		if rn == 0 {
			return Err(ErrorDiv0)
		}
		return Num(ln / rn)
	case BinPow:
		return Num(math.Pow(ln, rn))
	default:
		return Err(ErrorValue)
	}
}

func isComparison(op BinaryOp) bool {
	switch op {
	case BinEq, BinNe, BinLt, BinLe, BinGt, BinGe:
		return true
	default:
		return false
	}
}

// compareValues orders values the way a spreadsheet does: numbers compare
// numerically, booleans and strings compare within their own kind, and
// values of different kinds are ordered by kind (number < string < bool <
// blank), matching Excel's cross-type comparison rule closely enough for
// this engine's scope.
func compareValues(op BinaryOp, lhs, rhs Value) Value {
	cmp := compareKindAware(lhs, rhs)
	var result bool
	switch op {
	case BinEq:
		result = cmp == 0
	case BinNe:
		result = cmp != 0
	case BinLt:
		result = cmp < 0
	case BinLe:
		result = cmp <= 0
	case BinGt:
		result = cmp > 0
	case BinGe:
		result = cmp >= 0
	}
	return Bool(result)
}

func kindRank(v Value) int {
	switch v.Kind {
	case KindNumber:
		return 0
	case KindString:
		return 1
	case KindBool:
		return 2
	default:
		return 3
	}
}

func compareKindAware(lhs, rhs Value) int {
	lr, rr := kindRank(lhs), kindRank(rhs)
	if lr != rr {
		if lr < rr {
			return -1
		}
		return 1
	}
	switch lhs.Kind {
	case KindNumber:
		switch {
		case lhs.Number < rhs.Number:
			return -1
		case lhs.Number > rhs.Number:
			return 1
		default:
			return 0
		}
	case KindString:
		switch {
		case lhs.Str < rhs.Str:
			return -1
		case lhs.Str > rhs.Str:
			return 1
		default:
			return 0
		}
	case KindBool:
		if lhs.Bool == rhs.Bool {
			return 0
		}
		if !lhs.Bool && rhs.Bool {
			return -1
		}
		return 1
	default:
		return 0
	}
}

