package calc

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var environmentValidator = validator.New()

// EnvironmentConfig configures a CollaboratingWorkbooksEnvironment (spec
// §4.9). It is validated the same way Options is, in the style of
// vinodismyname-mcpxcel's config layer.
type EnvironmentConfig struct {
	// MaxWorkbooks bounds how many evaluators may register at once; 0 means
	// unbounded.
	MaxWorkbooks int `validate:"gte=0"`
}

// CollaboratingWorkbooksEnvironment is the named registry of Evaluators
// that share cross-workbook reference resolution (spec §4.9). Each
// Evaluator is indexed both by the name a host assigns it and by its numeric
// workbook index, the WorkbookIx a queried CellID carries to name it.
type CollaboratingWorkbooksEnvironment struct {
	config EnvironmentConfig
	cache  *EvaluationCache

	mu     sync.RWMutex
	byName map[string]*Evaluator
	byIdx  map[uint32]*Evaluator
}

// NewCollaboratingWorkbooksEnvironment builds an empty environment after
// validating cfg. The environment owns a single EvaluationCache shared by
// every Evaluator attached to it (spec §3 "a cache belonging to a
// CollaboratingWorkbooksEnvironment is shared by all evaluators attached to
// that environment"): cache entries are keyed by the full (workbookIx,
// sheetIx, row, col) cell identity, so one arena safely holds entries from
// every attached workbook.
func NewCollaboratingWorkbooksEnvironment(cfg EnvironmentConfig) (*CollaboratingWorkbooksEnvironment, error) {
	if err := environmentValidator.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid environment config: %w", err)
	}
	return &CollaboratingWorkbooksEnvironment{
		config:  cfg,
		cache:   NewEvaluationCache(),
		byName:  make(map[string]*Evaluator),
		byIdx:   make(map[uint32]*Evaluator),
	}, nil
}

// register adds ev under name, keyed for lookup both by name and by its
// workbook index. Called by Evaluator.AttachToEnvironment; not exported so
// an environment can never hold an Evaluator that doesn't also know it is
// attached.
func (env *CollaboratingWorkbooksEnvironment) register(name string, ev *Evaluator) error {
	env.mu.Lock()
	defer env.mu.Unlock()

	if _, exists := env.byName[name]; exists {
		return fmt.Errorf("workbook %q is already registered in this environment", name)
	}
	if env.config.MaxWorkbooks > 0 && len(env.byName) >= env.config.MaxWorkbooks {
		return fmt.Errorf("environment is at its configured capacity of %d workbooks", env.config.MaxWorkbooks)
	}
	env.byName[name] = ev
	env.byIdx[ev.workbookIx] = ev
	return nil
}

// unregister removes name from env, if present.
func (env *CollaboratingWorkbooksEnvironment) unregister(name string) {
	env.mu.Lock()
	defer env.mu.Unlock()
	ev, ok := env.byName[name]
	if !ok {
		return
	}
	delete(env.byName, name)
	delete(env.byIdx, ev.workbookIx)
}

// byIndex resolves the Evaluator owning workbookIx, for cross-workbook
// reference resolution (spec §4.9).
func (env *CollaboratingWorkbooksEnvironment) byIndex(workbookIx uint32) (*Evaluator, bool) {
	env.mu.RLock()
	defer env.mu.RUnlock()
	ev, ok := env.byIdx[workbookIx]
	return ev, ok
}

// ByName resolves the Evaluator registered under name.
func (env *CollaboratingWorkbooksEnvironment) ByName(name string) (*Evaluator, bool) {
	env.mu.RLock()
	defer env.mu.RUnlock()
	ev, ok := env.byName[name]
	return ev, ok
}

// Names lists every currently-registered workbook name.
func (env *CollaboratingWorkbooksEnvironment) Names() []string {
	env.mu.RLock()
	defer env.mu.RUnlock()
	out := make([]string, 0, len(env.byName))
	for name := range env.byName {
		out = append(out, name)
	}
	return out
}
