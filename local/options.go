package local

import (
	"fmt"
	"log/slog"

	"github.com/fishy/docsync"
	"github.com/fishy/docsync/selector"
)

// Safety defines how returned documents are isolated from internal state.
type Safety int

// Supported Safety values.
const (
	// SafetyClone returns deep copies on every read. Safe but slower.
	SafetyClone Safety = iota

	// SafetyFreeze returns shared references.
	// Callers must treat returned documents as read-only.
	SafetyFreeze
)

func (s Safety) String() string {
	switch s {
	case SafetyClone:
		return "clone"
	case SafetyFreeze:
		return "freeze"
	default:
		return fmt.Sprintf("Safety(%d)", int(s))
	}
}

// ParseSafety parses "clone" or "freeze".
func ParseSafety(s string) (Safety, error) {
	switch s {
	case "", "clone":
		return SafetyClone, nil
	case "freeze":
		return SafetyFreeze, nil
	default:
		return 0, fmt.Errorf("local: unsupported safety %q", s)
	}
}

// DefaultSafety is the default Safety.
const DefaultSafety = SafetyClone

// Options defines a read only view of options used by local collections.
type Options interface {
	// GetSafety returns how returned documents are isolated.
	GetSafety() Safety

	// GetMatcher returns the matcher used to evaluate selectors.
	GetMatcher() docsync.Matcher

	// GetLogger returns the logger to be used.
	//
	// If it returns nil, nothing will be logged.
	GetLogger() *slog.Logger
}

// OptionsBuilder defines a read-write view of options used by local
// collections.
type OptionsBuilder interface {
	Options

	// Build returns the read-only version of options.
	Build() Options

	// SetSafety sets the isolation mode.
	SetSafety(safety Safety) OptionsBuilder

	// SetMatcher sets the matcher.
	SetMatcher(m docsync.Matcher) OptionsBuilder

	// SetLogger sets the logger.
	SetLogger(logger *slog.Logger) OptionsBuilder
}

type options struct {
	safety  Safety
	matcher docsync.Matcher
	logger  *slog.Logger
}

// NewDefaultOptions creates an OptionsBuilder with default options.
func NewDefaultOptions() OptionsBuilder {
	return &options{
		safety:  DefaultSafety,
		matcher: selector.New(),
	}
}

func (opts *options) GetSafety() Safety {
	return opts.safety
}

func (opts *options) GetMatcher() docsync.Matcher {
	return opts.matcher
}

func (opts *options) GetLogger() *slog.Logger {
	return opts.logger
}

func (opts *options) Build() Options {
	return opts
}

func (opts *options) SetSafety(safety Safety) OptionsBuilder {
	opts.safety = safety
	return opts
}

func (opts *options) SetMatcher(m docsync.Matcher) OptionsBuilder {
	opts.matcher = m
	return opts
}

func (opts *options) SetLogger(logger *slog.Logger) OptionsBuilder {
	opts.logger = logger
	return opts
}
