package calc

// StabilityClassifier is an optional collaborator consulted before recording
// a dependency; if it reports a coordinate final, the tracker skips
// dependency bookkeeping for that cell (spec §4.7).
type StabilityClassifier interface {
	IsCellFinal(cell CellID) bool
}

// Tracker is the per-top-level-query stack of in-progress formula entries
// used to detect cycles and record the dependency graph as it is traversed
// (spec §4.6). A fresh Tracker is allocated for every call to
// Evaluator.Evaluate/EvaluateFormula/EvaluateList.
type Tracker struct {
	cache      *EvaluationCache
	stability  StabilityClassifier
	stack      []*cacheEntry
	onStack    map[entryID]struct{}
	queryID    string
	listener   EvaluationListener
	fault      *EngineFault
}

func newTracker(cache *EvaluationCache, stability StabilityClassifier, listener EvaluationListener, queryID string) *Tracker {
	return &Tracker{
		cache:     cache,
		stability: stability,
		onStack:   make(map[entryID]struct{}),
		queryID:   queryID,
		listener:  listener,
	}
}

// StartEvaluate pushes entry onto the in-progress stack. It returns false if
// entry is already on the stack, meaning a cycle was detected (spec §4.6).
func (t *Tracker) StartEvaluate(entry *cacheEntry) bool {
	if _, onStack := t.onStack[entry.id]; onStack {
		return false
	}
	t.stack = append(t.stack, entry)
	t.onStack[entry.id] = struct{}{}
	if t.listener != nil {
		t.listener.OnStartEvaluate(entry.cell, t.queryID)
	}
	return true
}

// EndEvaluate pops entry off the in-progress stack.
func (t *Tracker) EndEvaluate(entry *cacheEntry, result Value) {
	if len(t.stack) > 0 && t.stack[len(t.stack)-1] == entry {
		t.stack = t.stack[:len(t.stack)-1]
	}
	delete(t.onStack, entry.id)
	if t.listener != nil {
		t.listener.OnEndEvaluate(entry.cell, result, t.queryID)
	}
}

// top returns the formula entry currently being evaluated, or nil if the
// tracker's stack is empty (a top-level plain-value read with no enclosing
// formula).
func (t *Tracker) top() *cacheEntry {
	if len(t.stack) == 0 {
		return nil
	}
	return t.stack[len(t.stack)-1]
}

// AcceptPlainValueDependency creates or updates the plain entry at the given
// cell and, unless the stability classifier marks it final and the stack-top
// formula is not input-sensitive, registers the current stack-top formula as
// a consumer of it (spec §4.6).
func (t *Tracker) AcceptPlainValueDependency(cell CellID, value Value) {
	entry := t.cache.getOrCreatePlainEntry(cell)
	commitValue(entry, value)

	consumer := t.top()
	if consumer == nil {
		return
	}
	if t.stability != nil && t.stability.IsCellFinal(cell) && !consumer.inputSensitive {
		return
	}
	t.cache.addInput(consumer, entry)
}

// NotifyCacheHit reports that a formula cell was served from a previously
// committed cache entry without recomputation, distinct from an ordinary
// plain-value read (spec §6 on_cache_hit): only this call lets a host
// distinguish a genuine cache hit from a recomputation.
func (t *Tracker) NotifyCacheHit(cell CellID, value Value) {
	if t.listener != nil {
		t.listener.OnCacheHit(cell, value)
	}
}

// AcceptFormulaDependency adds entry as an input of the current stack-top
// formula (spec §4.6). Used when a formula references another formula cell.
func (t *Tracker) AcceptFormulaDependency(entry *cacheEntry) {
	consumer := t.top()
	if consumer == nil || consumer == entry {
		return
	}
	t.cache.addInput(consumer, entry)
}

// UpdateCacheResult commits value to the current stack-top entry.
func (t *Tracker) UpdateCacheResult(value Value) {
	top := t.top()
	if top == nil {
		return
	}
	commitValue(top, value)
}

// Abort records a channel-2 engine fault that aborts the current top-level
// evaluation (spec §7). Only the first fault is kept; later ones are
// assumed to be downstream noise from the unwind already in progress.
func (t *Tracker) Abort(f *EngineFault) {
	if t.fault == nil {
		t.fault = f
	}
}

// Aborted reports whether a fault has already been recorded, letting deeply
// nested recursive calls bail out quickly instead of doing further work
// whose result will be discarded.
func (t *Tracker) Aborted() bool {
	return t.fault != nil
}

// MarkInputSensitive flags the current stack-top formula entry as having
// read a volatile or indeterminate input (spec §4.7); such entries still
// record their dependency even past a stability classifier's "final" ruling
// on some other input.
func (t *Tracker) MarkInputSensitive() {
	if top := t.top(); top != nil {
		top.inputSensitive = true
	}
}
