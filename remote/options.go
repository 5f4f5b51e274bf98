package remote

import (
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/fishy/docsync"
	"github.com/fishy/docsync/selector"
)

// Default options values.
const (
	DefaultUseQuickFind = false

	// DefaultGzipThreshold is the request body size in bytes above which request
	// bodies are gzipped.
	DefaultGzipThreshold = 1024

	// DefaultMaxConcurrency means no limit.
	DefaultMaxConcurrency = 0
)

// Options defines a read-only view of options used by remote collections.
type Options interface {
	// GetClientID returns the client id sent with every request.
	//
	// Upsert and Remove fail without it.
	GetClientID() string

	// GetHTTPClient returns the http client to use.
	GetHTTPClient() *http.Client

	// GetUseQuickFind returns whether finds carrying local data use the
	// quickfind protocol when the query allows it.
	GetUseQuickFind() bool

	// GetGzipThreshold returns the request body size above which the body is
	// gzipped. Negative value disables it.
	GetGzipThreshold() int

	// GetRateLimiter returns the limiter every request waits on,
	// nil for no limit.
	GetRateLimiter() *rate.Limiter

	// GetMaxConcurrency returns the maximum number of in-flight requests,
	// 0 for no limit.
	GetMaxConcurrency() int64

	// GetMatcher returns the matcher used to sort quickfind results.
	GetMatcher() docsync.Matcher

	// GetLogger returns the logger to be used.
	//
	// If it returns nil, nothing will be logged.
	GetLogger() *slog.Logger
}

// OptionsBuilder defines a read-write view of options used by remote
// collections.
type OptionsBuilder interface {
	Options

	// Build builds the read-only view of the options.
	Build() Options

	SetClientID(client string) OptionsBuilder
	SetHTTPClient(client *http.Client) OptionsBuilder
	SetUseQuickFind(use bool) OptionsBuilder
	SetGzipThreshold(threshold int) OptionsBuilder
	SetRateLimiter(limiter *rate.Limiter) OptionsBuilder
	SetMaxConcurrency(n int64) OptionsBuilder
	SetMatcher(m docsync.Matcher) OptionsBuilder
	SetLogger(logger *slog.Logger) OptionsBuilder
}

type options struct {
	client         string
	httpClient     *http.Client
	useQuickFind   bool
	gzipThreshold  int
	limiter        *rate.Limiter
	maxConcurrency int64
	matcher        docsync.Matcher
	logger         *slog.Logger
}

// NewDefaultOptions creates the default options with the given client id.
func NewDefaultOptions(client string) OptionsBuilder {
	return &options{
		client:         client,
		httpClient:     http.DefaultClient,
		useQuickFind:   DefaultUseQuickFind,
		gzipThreshold:  DefaultGzipThreshold,
		maxConcurrency: DefaultMaxConcurrency,
		matcher:        selector.New(),
	}
}

func (opt *options) GetClientID() string {
	return opt.client
}

func (opt *options) GetHTTPClient() *http.Client {
	return opt.httpClient
}

func (opt *options) GetUseQuickFind() bool {
	return opt.useQuickFind
}

func (opt *options) GetGzipThreshold() int {
	return opt.gzipThreshold
}

func (opt *options) GetRateLimiter() *rate.Limiter {
	return opt.limiter
}

func (opt *options) GetMaxConcurrency() int64 {
	return opt.maxConcurrency
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

func (opt *options) SetClientID(client string) OptionsBuilder {
	opt.client = client
	return opt
}

func (opt *options) SetHTTPClient(client *http.Client) OptionsBuilder {
	opt.httpClient = client
	return opt
}

func (opt *options) SetUseQuickFind(use bool) OptionsBuilder {
	opt.useQuickFind = use
	return opt
}

func (opt *options) SetGzipThreshold(threshold int) OptionsBuilder {
	opt.gzipThreshold = threshold
	return opt
}

func (opt *options) SetRateLimiter(limiter *rate.Limiter) OptionsBuilder {
	opt.limiter = limiter
	return opt
}

func (opt *options) SetMaxConcurrency(n int64) OptionsBuilder {
	opt.maxConcurrency = n
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

// HandlerOptions defines the options of a Handler.
type HandlerOptions struct {
	// Clients lists the client ids allowed to write.
	// When empty, any non-empty client id is allowed.
	Clients []string

	// GzipThreshold is the response body size above which responses are
	// gzipped for clients accepting it. Negative value disables it.
	GzipThreshold int

	// Logger, if non-nil, logs failed requests.
	Logger *slog.Logger
}
