package calc

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Evaluator is the facade a host constructs per workbook (spec §6). It owns
// the evaluation cache, wires the function registry, parser, and stability
// classifier collaborators together, and is the entry point for every
// evaluate_* operation.
type Evaluator struct {
	workbook   Workbook
	workbookIx uint32
	parser     Parser
	registry   *FunctionRegistry
	stability  StabilityClassifier
	options    Options
	listener   EvaluationListener
	cache      *EvaluationCache
	interp     *interpreter

	mu         sync.Mutex
	debugNext  bool
	env        *CollaboratingWorkbooksEnvironment
	envName    string
	nameIndex  map[string]uint32 // lower-cased sheet name -> index, memoized
}

// NewEvaluator builds an Evaluator for one workbook (spec §6). parser and
// registry are required collaborators; stability may be nil, meaning no
// cell is ever treated as final.
func NewEvaluator(workbook Workbook, workbookIx uint32, parser Parser, registry *FunctionRegistry, stability StabilityClassifier, opts Options) (*Evaluator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	listener := opts.Listener
	if listener == nil {
		listener = NewZerologListener(opts.Logger, new(bool))
	}
	ev := &Evaluator{
		workbook:   workbook,
		workbookIx: workbookIx,
		parser:     parser,
		registry:   registry,
		stability:  stability,
		options:    opts,
		listener:   listener,
		cache:      NewEvaluationCache(),
	}
	ev.interp = &interpreter{ev: ev}
	return ev, nil
}

// DebugNextEvaluation arms the one-shot tracing latch: the next top-level
// evaluate_* call logs via the configured EvaluationListener regardless of
// its normal verbosity (spec §6).
func (ev *Evaluator) DebugNextEvaluation() {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	ev.debugNext = true
}

// newTrackerForCall allocates the per-top-level-query Tracker, consuming
// the one-shot debug latch armed by DebugNextEvaluation if set.
func (ev *Evaluator) newTrackerForCall() (*Tracker, func()) {
	ev.mu.Lock()
	armed := ev.debugNext
	ev.debugNext = false
	ev.mu.Unlock()

	listener := ev.listener
	if zl, ok := listener.(*ZerologListener); ok && armed {
		flag := true
		listener = NewZerologListener(zl.logger, &flag)
	}
	queryID := uuid.NewString()
	t := newTracker(ev.cache, ev.stability, listener, queryID)
	return t, func() {}
}

// Evaluate resolves a single cell to its final scalar value (spec §4.1).
// Non-formula cells return their stored value (blank coerced to 0); formula
// cells are evaluated via the stack interpreter, recursively pulling in
// whatever cells their formula references.
func (ev *Evaluator) Evaluate(cell CellID) (Value, error) {
	tracker, done := ev.newTrackerForCall()
	defer done()
	root := &EvalContext{Evaluator: ev, Workbook: ev.workbook, WorkbookIx: ev.workbookIx,
		SheetIx: cell.SheetIx, Row: cell.Row, Col: cell.Col, Tracker: tracker, SingleValue: FormulaTypeCell.IsSingleValue()}
	result := ev.resolveCellValue(root, cell)
	if tracker.fault != nil {
		return Value{}, tracker.fault
	}
	if result.Kind == KindBlank {
		result = Num(0)
	}
	return result, nil
}

// EvaluateFormula parses formula text with the configured Parser and
// evaluates it as if it were entered at targetRef (spec §4.1). Used for
// "what would this formula return here" queries that don't correspond to a
// stored cell.
func (ev *Evaluator) EvaluateFormula(ctx context.Context, formula string, targetRef CellID) (Value, error) {
	tokens, err := ev.parser.Parse(ctx, formula, ev.workbook, FormulaTypeCell, int(targetRef.SheetIx), targetRef.Row)
	if err != nil {
		return Value{}, err
	}
	tracker, done := ev.newTrackerForCall()
	defer done()
	ec := &EvalContext{Evaluator: ev, Workbook: ev.workbook, WorkbookIx: ev.workbookIx,
		SheetIx: targetRef.SheetIx, Row: targetRef.Row, Col: targetRef.Col, Tracker: tracker, SingleValue: FormulaTypeCell.IsSingleValue()}
	result, runErr := ev.interp.Run(tokens, ec)
	if runErr != nil {
		return Value{}, runErr
	}
	if tracker.fault != nil {
		return Value{}, tracker.fault
	}
	return result, nil
}

// EvaluateList parses formula text as a data-validation-list formula and
// returns its un-dereferenced result over region (spec §4.1): the caller
// wants the Area/Array/RefList shape, not a single projected scalar.
func (ev *Evaluator) EvaluateList(ctx context.Context, formula string, targetRef CellID, region RangeID) (Value, error) {
	tokens, err := ev.parser.Parse(ctx, formula, ev.workbook, FormulaTypeDataValidationList, int(targetRef.SheetIx), targetRef.Row)
	if err != nil {
		return Value{}, err
	}
	tracker, done := ev.newTrackerForCall()
	defer done()
	ec := &EvalContext{Evaluator: ev, Workbook: ev.workbook, WorkbookIx: ev.workbookIx,
		SheetIx: targetRef.SheetIx, Row: targetRef.Row, Col: targetRef.Col, Tracker: tracker, SingleValue: FormulaTypeDataValidationList.IsSingleValue()}
	result, runErr := ev.interp.Run(tokens, ec)
	if runErr != nil {
		return Value{}, runErr
	}
	if tracker.fault != nil {
		return Value{}, tracker.fault
	}
	if result.Kind == KindArea {
		result = adjustAreaToRegion(result.Area, region)
	}
	return result, nil
}

// EvaluateArrayFormulaGroup evaluates the formula stored at anchor once,
// treating it as an array formula (spec §4.2, §6 FormulaTypeArrayFormula),
// then projects that one shared result across every cell of the rows x cols
// rectangular group anchored there (spec §9 glossary "array formula group":
// a rectangular set of cells sharing one formula whose result is distributed
// across them). Each projected cell sees ec.ArrayGroup populated with its
// own position, so Dereference picks the matching array element instead of
// coercing a structural blank to zero.
func (ev *Evaluator) EvaluateArrayFormulaGroup(anchor CellID, rows, cols int) ([]Value, error) {
	tokens, ok := ev.workbook.FormulaTokens(anchor)
	if !ok {
		return nil, newFault(FaultMalformedFormula, anchor, "array formula group anchor has no formula tokens")
	}
	tracker, done := ev.newTrackerForCall()
	defer done()
	anchorEC := &EvalContext{Evaluator: ev, Workbook: ev.workbook, WorkbookIx: ev.workbookIx,
		SheetIx: anchor.SheetIx, Row: anchor.Row, Col: anchor.Col, Tracker: tracker,
		SingleValue: FormulaTypeArrayFormula.IsSingleValue()}
	raw, runErr := ev.interp.Run(tokens, anchorEC)
	if runErr != nil {
		return nil, runErr
	}
	if tracker.fault != nil {
		return nil, tracker.fault
	}

	out := make([]Value, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cellEC := &EvalContext{Evaluator: ev, Workbook: ev.workbook, WorkbookIx: ev.workbookIx,
				SheetIx: anchor.SheetIx, Row: anchor.Row + uint32(r), Col: anchor.Col + uint32(c),
				Tracker: tracker, SingleValue: true,
				ArrayGroup: &ArrayGroupPosition{RowInGroup: r, ColInGroup: c}}
			out = append(out, ev.Dereference(cellEC, raw))
		}
	}
	return out, nil
}

// adjustAreaToRegion intersects a list-formula's resolved area with the
// caller-supplied region (spec §4.1): evaluate_list answers "what does this
// formula produce inside this specific region", not the formula's raw span.
func adjustAreaToRegion(a Area, region RangeID) Value {
	if a.WorkbookIx != region.WorkbookIx || a.SheetIx != region.SheetIx {
		return Err(ErrorRef)
	}
	firstRow, firstCol := maxU32(a.FirstRow, region.FirstRow), maxU32(a.FirstCol, region.FirstCol)
	lastRow, lastCol := minU32(a.LastRow, region.LastRow), minU32(a.LastCol, region.LastCol)
	if firstRow > lastRow || firstCol > lastCol {
		return Err(ErrorRef)
	}
	return AreaVal(Area{WorkbookIx: a.WorkbookIx, SheetIx: a.SheetIx,
		FirstRow: firstRow, FirstCol: firstCol, LastRow: lastRow, LastCol: lastCol})
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// resolveCellValue is the recursive heart of pull-based evaluation (spec
// §4.5, §4.6): plain cells are read directly and recorded as a dependency;
// formula cells are served from cache when already committed, or pushed
// through the interpreter with cycle detection via the tracker.
func (ev *Evaluator) resolveCellValue(ec *EvalContext, target CellID) Value {
	tracker := ec.Tracker
	if tracker.Aborted() {
		return Value{}
	}

	wb := ev.workbook
	workbookIx := ev.workbookIx
	if target.WorkbookIx != ev.workbookIx {
		other, ok := ev.lookupCollaborator(target.WorkbookIx)
		if !ok {
			if ev.options.IgnoreMissingWorkbooks {
				if v, found := ev.cache.LastKnownValue(target); found {
					return v
				}
				return Blank()
			}
			tracker.Abort(newFault(FaultMissingExternalWorkbook, target, ""))
			return Value{}
		}
		return other.resolveCellValueAsCollaborator(tracker, target)
	}

	tokens, isFormula := wb.FormulaTokens(target)
	if !isFormula {
		v := wb.CellValue(target)
		tracker.AcceptPlainValueDependency(target, v)
		return v
	}

	entry := ev.cache.getOrCreateFormulaEntry(target)
	if entry.hasValue {
		tracker.AcceptFormulaDependency(entry)
		tracker.NotifyCacheHit(target, entry.value)
		return entry.value
	}

	caller := tracker.top()
	if !tracker.StartEvaluate(entry) {
		return Err(ErrorCircular)
	}
	if caller != nil {
		ev.cache.addInput(caller, entry)
	}

	childEC := &EvalContext{Evaluator: ev, Workbook: wb, WorkbookIx: workbookIx,
		SheetIx: target.SheetIx, Row: target.Row, Col: target.Col, Tracker: tracker, SingleValue: FormulaTypeCell.IsSingleValue()}
	result, runErr := ev.interp.Run(tokens, childEC)
	tracker.EndEvaluate(entry, result)
	if runErr != nil {
		if f, ok := runErr.(*EngineFault); ok {
			tracker.Abort(f)
		}
		return Value{}
	}
	// A circular result is never cached (spec §8): no entry on the cycle
	// keeps a committed value, so the next query re-derives it fresh.
	if !(result.Kind == KindError && result.Err == ErrorCircular) {
		commitValue(entry, result)
	}
	return result
}

// resolveCellValueAsCollaborator lets another Evaluator in the same
// environment pull a value from this one, sharing the caller's tracker so
// a cross-workbook cycle is still detected (spec §4.9).
func (ev *Evaluator) resolveCellValueAsCollaborator(tracker *Tracker, target CellID) Value {
	ec := &EvalContext{Evaluator: ev, Workbook: ev.workbook, WorkbookIx: ev.workbookIx,
		SheetIx: target.SheetIx, Row: target.Row, Col: target.Col, Tracker: tracker, SingleValue: FormulaTypeCell.IsSingleValue()}
	return ev.resolveCellValue(ec, target)
}

func (ev *Evaluator) lookupCollaborator(workbookIx uint32) (*Evaluator, bool) {
	if ev.env == nil {
		return nil, false
	}
	return ev.env.byIndex(workbookIx)
}

// NotifyUpdateCell invalidates cell and every cached result transitively
// reachable through its consumers (spec §4.5).
func (ev *Evaluator) NotifyUpdateCell(cell CellID) {
	ev.cache.NotifyUpdateCell(cell)
}

// NotifyDeleteCell invalidates cell like NotifyUpdateCell, then removes its
// cache entry and dependency edges entirely (spec §4.5).
func (ev *Evaluator) NotifyDeleteCell(cell CellID) {
	ev.cache.NotifyDeleteCell(cell)
}

// ClearAllCachedResults drops the evaluation cache wholesale (spec §4.5),
// typically called after MaxCacheEntries is exceeded or a bulk workbook
// reload.
func (ev *Evaluator) ClearAllCachedResults() {
	ev.cache.Clear()
}

// CacheSize reports how many entries the evaluation cache currently holds.
func (ev *Evaluator) CacheSize() int {
	return ev.cache.Len()
}

// AttachToEnvironment registers ev under name in env at workbookIx, rebinding
// ev onto env's shared EvaluationCache (spec §4.1 attach_to_environment(env,
// cache, workbookIx)): once attached, every cell ev reads or writes through
// its cache is visible to, and invalidated by, every other evaluator sharing
// env, since cache entries are keyed by the full cross-workbook cell
// identity.
func (ev *Evaluator) AttachToEnvironment(env *CollaboratingWorkbooksEnvironment, workbookIx uint32, name string) error {
	ev.mu.Lock()
	ev.workbookIx = workbookIx
	ev.mu.Unlock()
	if err := env.register(name, ev); err != nil {
		return err
	}
	ev.mu.Lock()
	ev.env = env
	ev.envName = name
	ev.cache = env.cache
	ev.mu.Unlock()
	return nil
}

// DetachFromEnvironment removes ev from whichever environment it was
// attached to, if any, then installs a fresh empty cache and resets
// workbookIx to 0 (spec §4.1).
func (ev *Evaluator) DetachFromEnvironment() {
	ev.mu.Lock()
	env, name := ev.env, ev.envName
	ev.mu.Unlock()
	if env != nil {
		env.unregister(name)
	}
	ev.mu.Lock()
	ev.env, ev.envName = nil, ""
	ev.cache = NewEvaluationCache()
	ev.workbookIx = 0
	ev.mu.Unlock()
}

// SupportedFunctionNames returns every function name this evaluator's
// registry can dispatch (spec §4.1).
func (ev *Evaluator) SupportedFunctionNames() []string {
	return ev.registry.SupportedFunctionNames()
}

// NotSupportedFunctionNames reports, out of candidates, which names are not
// resolvable by this evaluator's registry (spec §4.1) — useful for a host
// validating a workbook before attaching it.
func (ev *Evaluator) NotSupportedFunctionNames(candidates []string) []string {
	supported := make(map[string]struct{})
	for _, n := range ev.registry.SupportedFunctionNames() {
		supported[strings.ToUpper(n)] = struct{}{}
	}
	var missing []string
	for _, c := range candidates {
		if _, ok := supported[strings.ToUpper(c)]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}
