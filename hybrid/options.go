package hybrid

import (
	"log/slog"
	"time"

	"github.com/fishy/docsync"
	"github.com/fishy/docsync/selector"
)

// Default options values.
const (
	DefaultCacheFind             = true
	DefaultCacheFindOne          = true
	DefaultInterim               = true
	DefaultUseLocalOnRemoteError = true
	DefaultShortcut              = false

	// DefaultTimeout disables the remote deadline.
	DefaultTimeout time.Duration = 0
)

// UploadSort is a comparator ordering pending upserts for upload.
type UploadSort func(a, b docsync.Upsert) int

// Options defines a read-only view of options used in hybrid collections.
type Options interface {
	// GetCacheFind returns whether find results are cached locally.
	GetCacheFind() bool

	// GetCacheFindOne returns whether findOne results are cached locally.
	GetCacheFindOne() bool

	// GetInterim returns whether finds answer from local data first,
	// then again if the remote data differs.
	GetInterim() bool

	// GetUseLocalOnRemoteError returns whether local data is used when the
	// remote find fails. Only applies when interim is off.
	GetUseLocalOnRemoteError() bool

	// GetShortcut returns whether findOne stops at a local match without
	// asking the remote collection. Useful for rarely changing documents.
	GetShortcut() bool

	// GetTimeout returns the deadline for remote finds, 0 for no deadline.
	GetTimeout() time.Duration

	// GetUploadSort returns the comparator for pending upserts,
	// nil to upload in queue order.
	GetUploadSort() UploadSort

	// GetMatcher returns the matcher used to reprocess merged results.
	GetMatcher() docsync.Matcher

	// GetLogger returns the logger to be used in hybrid collections.
	//
	// If it returns nil, nothing will be logged.
	GetLogger() *slog.Logger
}

// OptionsBuilder defines a read write view of options used in hybrid
// collections.
type OptionsBuilder interface {
	Options

	// Build builds the read-only view of the options.
	Build() Options

	SetCacheFind(cache bool) OptionsBuilder
	SetCacheFindOne(cache bool) OptionsBuilder
	SetInterim(interim bool) OptionsBuilder
	SetUseLocalOnRemoteError(use bool) OptionsBuilder
	SetShortcut(shortcut bool) OptionsBuilder

	// SetTimeout sets the remote deadline, 0 to disable.
	SetTimeout(timeout time.Duration) OptionsBuilder

	SetUploadSort(f UploadSort) OptionsBuilder
	SetMatcher(m docsync.Matcher) OptionsBuilder
	SetLogger(logger *slog.Logger) OptionsBuilder
}

type options struct {
	cacheFind             bool
	cacheFindOne          bool
	interim               bool
	useLocalOnRemoteError bool
	shortcut              bool
	timeout               time.Duration
	uploadSort            UploadSort
	matcher               docsync.Matcher
	logger                *slog.Logger
}

// NewDefaultOptions creates the default options.
func NewDefaultOptions() OptionsBuilder {
	return &options{
		cacheFind:             DefaultCacheFind,
		cacheFindOne:          DefaultCacheFindOne,
		interim:               DefaultInterim,
		useLocalOnRemoteError: DefaultUseLocalOnRemoteError,
		shortcut:              DefaultShortcut,
		timeout:               DefaultTimeout,
		matcher:               selector.New(),
	}
}

// CopyOptions creates an OptionsBuilder starting from a copy of opts,
// to override some options of a collection for one call or one collection.
func CopyOptions(opts Options) OptionsBuilder {
	return &options{
		cacheFind:             opts.GetCacheFind(),
		cacheFindOne:          opts.GetCacheFindOne(),
		interim:               opts.GetInterim(),
		useLocalOnRemoteError: opts.GetUseLocalOnRemoteError(),
		shortcut:              opts.GetShortcut(),
		timeout:               opts.GetTimeout(),
		uploadSort:            opts.GetUploadSort(),
		matcher:               opts.GetMatcher(),
		logger:                opts.GetLogger(),
	}
}

func (opt *options) GetCacheFind() bool {
	return opt.cacheFind
}

func (opt *options) GetCacheFindOne() bool {
	return opt.cacheFindOne
}

func (opt *options) GetInterim() bool {
	return opt.interim
}

func (opt *options) GetUseLocalOnRemoteError() bool {
	return opt.useLocalOnRemoteError
}

func (opt *options) GetShortcut() bool {
	return opt.shortcut
}

func (opt *options) GetTimeout() time.Duration {
	return opt.timeout
}

func (opt *options) GetUploadSort() UploadSort {
	return opt.uploadSort
}

func (opt *options) GetMatcher() docsync.Matcher {
	return opt.matcher
}

func (opt *options) GetLogger() *slog.Logger {
	return opt.logger
}

func (opt *options) Build() Options {
	return opt
}

func (opt *options) SetCacheFind(cache bool) OptionsBuilder {
	opt.cacheFind = cache
	return opt
}

func (opt *options) SetCacheFindOne(cache bool) OptionsBuilder {
	opt.cacheFindOne = cache
	return opt
}

func (opt *options) SetInterim(interim bool) OptionsBuilder {
	opt.interim = interim
	return opt
}

func (opt *options) SetUseLocalOnRemoteError(use bool) OptionsBuilder {
	opt.useLocalOnRemoteError = use
	return opt
}

func (opt *options) SetShortcut(shortcut bool) OptionsBuilder {
	opt.shortcut = shortcut
	return opt
}

func (opt *options) SetTimeout(timeout time.Duration) OptionsBuilder {
	opt.timeout = timeout
	return opt
}

func (opt *options) SetUploadSort(f UploadSort) OptionsBuilder {
	opt.uploadSort = f
	return opt
}

func (opt *options) SetMatcher(m docsync.Matcher) OptionsBuilder {
	opt.matcher = m
	return opt
}

func (opt *options) SetLogger(logger *slog.Logger) OptionsBuilder {
	opt.logger = logger
	return opt
}

// findConfig is the snapshot of options driving one find.
type findConfig struct {
	cache                 bool
	interim               bool
	useLocalOnRemoteError bool
	timeout               time.Duration
	matcher               docsync.Matcher
}

func newFindConfig(opts Options) findConfig {
	return findConfig{
		cache:                 opts.GetCacheFind(),
		interim:               opts.GetInterim(),
		useLocalOnRemoteError: opts.GetUseLocalOnRemoteError(),
		timeout:               opts.GetTimeout(),
		matcher:               opts.GetMatcher(),
	}
}
