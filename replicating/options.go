package replicating

import (
	"log/slog"

	"github.com/fishy/docsync"
	"github.com/fishy/docsync/selector"
)

// Options defines a read only view of options used by replicating
// collections.
type Options interface {
	// GetMatcher returns the matcher used to compare cache windows.
	// It should agree with the matcher of the master collection.
	GetMatcher() docsync.Matcher

	// GetLogger returns the logger to be used.
	//
	// If it returns nil, nothing will be logged.
	GetLogger() *slog.Logger
}

// OptionsBuilder defines a read-write view of options used by replicating
// collections.
type OptionsBuilder interface {
	Options

	// Build returns the read-only version of options.
	Build() Options

	SetMatcher(m docsync.Matcher) OptionsBuilder
	SetLogger(logger *slog.Logger) OptionsBuilder
}

type options struct {
	matcher docsync.Matcher
	logger  *slog.Logger
}

// NewDefaultOptions creates an OptionsBuilder with default options.
func NewDefaultOptions() OptionsBuilder {
	return &options{
		matcher: selector.New(),
	}
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

func (opts *options) SetMatcher(m docsync.Matcher) OptionsBuilder {
	opts.matcher = m
	return opts
}

func (opts *options) SetLogger(logger *slog.Logger) OptionsBuilder {
	opts.logger = logger
	return opts
}
