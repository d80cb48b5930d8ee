package calc

import "github.com/rs/zerolog"

// EvaluationListener is the optional diagnostic hook a host injects into an
// Evaluator (spec §6, §9 "Logger as a collaborator"). It is a handle, not
// global state, so tests can observe it directly rather than scraping a
// package-level sink.
type EvaluationListener interface {
	OnStartEvaluate(cell CellID, queryID string)
	OnEndEvaluate(cell CellID, result Value, queryID string)
	OnCacheHit(cell CellID, value Value)
}

// noopListener discards every notification. It is not the Evaluator's
// default: NewEvaluator falls back to a ZerologListener with tracing off.
type noopListener struct{}

func (noopListener) OnStartEvaluate(CellID, string)       {}
func (noopListener) OnEndEvaluate(CellID, Value, string)  {}
func (noopListener) OnCacheHit(CellID, Value)             {}

// ZerologListener implements EvaluationListener on top of a zerolog.Logger,
// the way vinodismyname-mcpxcel's internal/telemetry.Hooks wraps a logger
// with one method per lifecycle event. Tracing is gated by debugEnabled,
// which the Evaluator turns on for exactly one subsequent top-level call
// after Evaluator.DebugNextEvaluation has been called (spec §6).
type ZerologListener struct {
	logger       zerolog.Logger
	debugEnabled *bool
}

// NewZerologListener builds a listener backed by logger. debugEnabled is read
// on every notification. The Evaluator's default listener is built over a
// flag that stays false; for a call with the one-shot latch armed, the
// Evaluator builds a second listener over the same logger with its flag set.
func NewZerologListener(logger zerolog.Logger, debugEnabled *bool) *ZerologListener {
	return &ZerologListener{logger: logger, debugEnabled: debugEnabled}
}

func (l *ZerologListener) tracing() bool {
	return l.debugEnabled != nil && *l.debugEnabled
}

func (l *ZerologListener) OnStartEvaluate(cell CellID, queryID string) {
	if !l.tracing() {
		return
	}
	l.logger.Debug().
		Str("query_id", queryID).
		Uint32("workbook", cell.WorkbookIx).
		Uint32("sheet", cell.SheetIx).
		Uint32("row", cell.Row).
		Uint32("col", cell.Col).
		Msg("evaluate start")
}

func (l *ZerologListener) OnEndEvaluate(cell CellID, result Value, queryID string) {
	if !l.tracing() {
		return
	}
	l.logger.Debug().
		Str("query_id", queryID).
		Uint32("workbook", cell.WorkbookIx).
		Uint32("sheet", cell.SheetIx).
		Uint32("row", cell.Row).
		Uint32("col", cell.Col).
		Str("result", result.String()).
		Msg("evaluate end")
}

func (l *ZerologListener) OnCacheHit(cell CellID, value Value) {
	if !l.tracing() {
		return
	}
	l.logger.Debug().
		Uint32("workbook", cell.WorkbookIx).
		Uint32("sheet", cell.SheetIx).
		Uint32("row", cell.Row).
		Uint32("col", cell.Col).
		Str("value", value.String()).
		Msg("cache hit")
}
