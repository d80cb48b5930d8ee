package calc

import "github.com/mohae/deepcopy"

// entryID is the arena's stable identifier for a cache entry, in the
// interning style of the teacher's StringTable/FormulaTable (a monotonic
// counter, never reused), so that consumer/input adjacency can be stored as
// plain id pairs instead of live pointers (spec §9 "back-references").
type entryID uint64

// entryKind discriminates the two cache-entry shapes (spec §3).
type entryKind uint8

const (
	entryPlain entryKind = iota
	entryFormula
)

// cacheEntry is the arena-resident node. Plain entries only use value and
// consumers; formula entries additionally track inputs and input
// sensitivity to volatile/indeterminate reads.
type cacheEntry struct {
	id   entryID
	kind entryKind
	cell CellID

	value   Value
	hasValue bool // false means "cleared" (formula entries) or "never set" (plain)

	inputs    map[entryID]struct{} // formula entries only: entries this one reads
	consumers map[entryID]struct{} // reverse index: formula entries that read this one

	inputSensitive bool
}

// EvaluationCache maps (workbookIx, sheetIx, row, col) to a cache entry and
// maintains the forward/reverse dependency adjacency needed for transitive
// invalidation (spec §4.5).
type EvaluationCache struct {
	byCell  map[CellID]entryID
	entries map[entryID]*cacheEntry
	nextID  entryID
}

// NewEvaluationCache builds an empty cache.
func NewEvaluationCache() *EvaluationCache {
	return &EvaluationCache{
		byCell:  make(map[CellID]entryID),
		entries: make(map[entryID]*cacheEntry),
		nextID:  1,
	}
}

func (c *EvaluationCache) alloc(kind entryKind, cell CellID) *cacheEntry {
	e := &cacheEntry{
		id:        c.nextID,
		kind:      kind,
		cell:      cell,
		consumers: make(map[entryID]struct{}),
	}
	if kind == entryFormula {
		e.inputs = make(map[entryID]struct{})
	}
	c.entries[e.id] = e
	c.byCell[cell] = e.id
	c.nextID++
	return e
}

// getOrCreateFormulaEntry returns the formula entry for cell, creating one
// lazily on first evaluation (spec §4.5's get_or_create_formula_entry).
func (c *EvaluationCache) getOrCreateFormulaEntry(cell CellID) *cacheEntry {
	if id, ok := c.byCell[cell]; ok {
		e := c.entries[id]
		if e.kind == entryFormula {
			return e
		}
		// A plain entry existed at this cell (e.g. it was read before being
		// made a formula); promote it in place rather than leaving two
		// entries under one cell identity (spec invariant: at most one
		// entry per cell identity).
		e.kind = entryFormula
		e.inputs = make(map[entryID]struct{})
		e.hasValue = false
		return e
	}
	return c.alloc(entryFormula, cell)
}

// getOrCreatePlainEntry returns the plain entry for cell, creating one on
// first read of a non-formula cell.
func (c *EvaluationCache) getOrCreatePlainEntry(cell CellID) *cacheEntry {
	if id, ok := c.byCell[cell]; ok {
		return c.entries[id]
	}
	return c.alloc(entryPlain, cell)
}

// commitValue stores value on entry, deep-copying Array/RefList payloads so
// a later mutation of the source literal can never alias a cached result
// (mohae/deepcopy, donor: artukn-excelize).
func commitValue(e *cacheEntry, v Value) {
	switch v.Kind {
	case KindArray:
		v.Array = deepcopy.Copy(v.Array).(Array)
	case KindRefList:
		v.RefList = deepcopy.Copy(v.RefList).([]Value)
	}
	e.value = v
	e.hasValue = true
}

// addInput records that formula entry `of` reads entry `input`, maintaining
// both halves of the bidirectional inputs/consumers edge (spec §3
// invariant).
func (c *EvaluationCache) addInput(of *cacheEntry, input *cacheEntry) {
	if of.kind != entryFormula {
		return
	}
	of.inputs[input.id] = struct{}{}
	input.consumers[of.id] = struct{}{}
}

// clearOutgoingInputs removes every input edge `e` owns (but not e's own
// consumers), used before re-evaluating a formula entry so stale
// dependencies don't linger.
func (c *EvaluationCache) clearOutgoingInputs(e *cacheEntry) {
	if e.kind != entryFormula {
		return
	}
	for inputID := range e.inputs {
		if input, ok := c.entries[inputID]; ok {
			delete(input.consumers, e.id)
		}
	}
	e.inputs = make(map[entryID]struct{})
}

// NotifyUpdateCell invalidates the entry at cell (if any) and transitively
// clears every consumer reachable from it, using a worklist so each entry is
// visited at most once (spec §4.5, §8 invariant).
func (c *EvaluationCache) NotifyUpdateCell(cell CellID) {
	id, ok := c.byCell[cell]
	if !ok {
		return
	}
	c.invalidateFrom(id)
}

func (c *EvaluationCache) invalidateFrom(start entryID) {
	visited := map[entryID]struct{}{}
	worklist := []entryID{start}
	for len(worklist) > 0 {
		id := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if _, done := visited[id]; done {
			continue
		}
		visited[id] = struct{}{}

		e, ok := c.entries[id]
		if !ok {
			continue
		}
		if e.kind == entryFormula {
			e.hasValue = false
			c.clearOutgoingInputs(e)
		} else {
			e.hasValue = false
		}
		for consumerID := range e.consumers {
			if _, done := visited[consumerID]; !done {
				worklist = append(worklist, consumerID)
			}
		}
	}
}

// NotifyDeleteCell invalidates cell like NotifyUpdateCell, then removes the
// entry itself (spec §4.5).
func (c *EvaluationCache) NotifyDeleteCell(cell CellID) {
	id, ok := c.byCell[cell]
	if !ok {
		return
	}
	c.invalidateFrom(id)
	e := c.entries[id]
	if e.kind == entryFormula {
		c.clearOutgoingInputs(e)
	}
	for consumerID := range e.consumers {
		if consumer, ok := c.entries[consumerID]; ok {
			delete(consumer.inputs, id)
		}
	}
	delete(c.byCell, cell)
	delete(c.entries, id)
}

// LastKnownValue returns the value most recently committed for cell, if the
// cache still holds a live (uncleared) entry for it. Used by
// Options.IgnoreMissingWorkbooks to recover a cross-workbook cell's cached
// last-known literal when the owning workbook is no longer attached (spec
// §7 MissingExternalWorkbook).
func (c *EvaluationCache) LastKnownValue(cell CellID) (Value, bool) {
	id, ok := c.byCell[cell]
	if !ok {
		return Value{}, false
	}
	e := c.entries[id]
	if !e.hasValue {
		return Value{}, false
	}
	return e.value, true
}

// Clear drops every entry and index (spec §4.5's clear()).
func (c *EvaluationCache) Clear() {
	c.byCell = make(map[CellID]entryID)
	c.entries = make(map[entryID]*cacheEntry)
	c.nextID = 1
}

// Len reports the number of live entries, mainly for diagnostics/tests.
func (c *EvaluationCache) Len() int { return len(c.entries) }
