package calc

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Conservative default limits, in the style of
// vinodismyname-mcpxcel/config/defaults.go's named-constant guardrails.
const (
	// DefaultMaxCacheEntries bounds how many cache entries an Evaluator will
	// hold before ClearAllCachedResults is recommended; it is advisory
	// (Options.MaxCacheEntries), not enforced inside the cache itself.
	DefaultMaxCacheEntries = 250_000
)

var optionsValidator = validator.New()

// Options configures one Evaluator (spec §6 "Configuration options").
type Options struct {
	// IgnoreMissingWorkbooks, when true, falls back to the referenced cell's
	// last value committed in this Evaluator's cache (or blank when the cache
	// holds none) instead of failing with FaultMissingExternalWorkbook when a
	// cross-workbook reference targets a workbook that is not loaded.
	IgnoreMissingWorkbooks bool

	// MaxCacheEntries is an advisory cap surfaced to callers deciding when
	// to call ClearAllCachedResults; validated as non-negative.
	MaxCacheEntries int `validate:"gte=0"`

	// Logger backs the default EvaluationListener when Listener is nil.
	Logger zerolog.Logger

	// Listener overrides the default zerolog-backed EvaluationListener.
	Listener EvaluationListener
}

// DefaultOptions returns an Options with the package's conservative
// defaults.
func DefaultOptions() Options {
	return Options{MaxCacheEntries: DefaultMaxCacheEntries}
}

// Validate checks Options against its struct tags, matching
// vinodismyname-mcpxcel/pkg/validation's ValidateStruct pattern.
func (o Options) Validate() error {
	if err := optionsValidator.Struct(o); err != nil {
		return fmt.Errorf("invalid evaluator options: %w", err)
	}
	return nil
}
