package remote

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/fishy/docsync"
	"github.com/fishy/docsync/quickfind"
)

// Make sure *Collection satisfies docsync.Collection interface.
var _ docsync.Collection = (*Collection)(nil)

// Collection is a docsync.Collection served over http by a Handler.
type Collection struct {
	name string
	url  string
	opts Options

	sem   *semaphore.Weighted
	finds singleflight.Group
}

// Open creates a remote collection named name under baseURL,
// i.e. served at baseURL/name.
func Open(baseURL, name string, opts Options) *Collection {
	return OpenURL(strings.TrimSuffix(baseURL, "/")+"/"+url.PathEscape(name), name, opts)
}

// OpenURL creates a remote collection served at collectionURL.
func OpenURL(collectionURL, name string, opts Options) *Collection {
	c := &Collection{
		name: name,
		url:  strings.TrimSuffix(collectionURL, "/"),
		opts: opts,
	}
	if n := opts.GetMaxConcurrency(); n > 0 {
		c.sem = semaphore.NewWeighted(n)
	}
	return c
}

// NewDB creates a docsync.Database of remote collections under baseURL.
func NewDB(baseURL string, opts Options) *docsync.Database {
	return docsync.NewDatabase(func(name string) (docsync.Collection, error) {
		return Open(baseURL, name, opts), nil
	})
}

// Name returns the name of the collection.
func (c *Collection) Name() string {
	return c.name
}

// Find finds documents.
//
// When quickfind is enabled, opts carries LocalData and the query is eligible,
// only the changed rows are transferred.
// Identical concurrent finds without LocalData share one request.
func (c *Collection) Find(
	ctx context.Context,
	selector docsync.Selector,
	opts *docsync.FindOptions,
) docsync.Stream[[]docsync.Document] {
	e := docsync.NewEmitter[[]docsync.Document]()
	go func() {
		defer e.Close()
		docs, err := c.find(ctx, selector, opts)
		if err != nil {
			e.Fail(err)
			return
		}
		e.Emit(docs)
	}()
	return e.Stream()
}

func (c *Collection) find(
	ctx context.Context,
	selector docsync.Selector,
	opts *docsync.FindOptions,
) ([]docsync.Document, error) {
	params, err := encodeQuery(selector, opts, c.opts.GetClientID())
	if err != nil {
		return nil, err
	}

	if c.opts.GetUseQuickFind() && opts != nil && opts.LocalData != nil && quickfind.Eligible(opts) {
		var resp quickfind.Response
		if err := c.do(
			ctx,
			http.MethodPost,
			c.url+"/"+QuickFindPath,
			params,
			quickfind.EncodeRequest(opts.LocalData),
			&resp,
		); err != nil {
			return nil, err
		}
		compare := c.opts.GetMatcher().Compare(opts.Sort)
		return quickfind.DecodeResponse(resp, opts.LocalData, compare), nil
	}

	// The request is shared by identical concurrent finds, so it must outlive
	// the caller starting it. Every caller still stops at its own ctx.
	detached := context.WithoutCancel(ctx)
	ch := c.finds.DoChan(params.Encode(), func() (any, error) {
		var docs []docsync.Document
		err := c.do(detached, http.MethodGet, c.url, params, nil, &docs)
		return docs, err
	})
	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if r.Err != nil {
		return nil, r.Err
	}
	docs := r.Val.([]docsync.Document)
	if docs == nil {
		return []docsync.Document{}, nil
	}
	if r.Shared {
		return docsync.CloneList(docs), nil
	}
	return docs, nil
}

// FindOne finds the first matching document.
func (c *Collection) FindOne(
	ctx context.Context,
	selector docsync.Selector,
	opts *docsync.FindOptions,
) docsync.Stream[docsync.Document] {
	opts = opts.Copy()
	opts.Limit = 1
	opts.LocalData = nil
	e := docsync.NewEmitter[docsync.Document]()
	go func() {
		defer e.Close()
		docs, err := c.find(ctx, selector, opts)
		switch {
		case err != nil:
			e.Fail(err)
		case len(docs) == 0:
			e.Emit(nil)
		default:
			e.Emit(docs[0])
		}
	}()
	return e.Stream()
}

// Upsert sends documents to the server.
//
// Documents are created with POST when no base is given,
// and sent with their bases with PATCH otherwise.
// A nil entry in the returned slice means the server deleted the document.
func (c *Collection) Upsert(
	ctx context.Context,
	docs []docsync.Document,
	bases []docsync.Document,
) ([]docsync.Document, error) {
	client := c.opts.GetClientID()
	if client == "" {
		return nil, &docsync.ValidationError{Msg: "client id required to upsert"}
	}
	upserts, err := docsync.NormalizeUpserts(docs, bases)
	if err != nil {
		return nil, err
	}
	if len(upserts) == 0 {
		return []docsync.Document{}, nil
	}

	basesPresent := false
	for _, u := range upserts {
		if u.Base != nil {
			basesPresent = true
			break
		}
	}
	params := url.Values{ParamClient: []string{client}}

	var body any
	method := http.MethodPost
	switch {
	case basesPresent && len(upserts) == 1:
		method = http.MethodPatch
		body = upserts[0]
	case basesPresent:
		method = http.MethodPatch
		body = struct {
			Doc  []docsync.Document `json:"doc"`
			Base []docsync.Document `json:"base"`
		}{
			Doc:  docsync.Docs(upserts),
			Base: docsync.Bases(upserts),
		}
	case len(upserts) == 1:
		body = upserts[0].Doc
	default:
		body = docsync.Docs(upserts)
	}

	if len(upserts) == 1 {
		var doc docsync.Document
		if err := c.do(ctx, method, c.url, params, body, &doc); err != nil {
			return nil, err
		}
		return []docsync.Document{doc}, nil
	}
	var ret []docsync.Document
	if err := c.do(ctx, method, c.url, params, body, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// Remove removes a document on the server.
//
// "410 Gone" from the server is treated as success.
func (c *Collection) Remove(ctx context.Context, id string) error {
	client := c.opts.GetClientID()
	if client == "" {
		return &docsync.ValidationError{Msg: "client id required to remove"}
	}
	params := url.Values{ParamClient: []string{client}}
	err := c.do(ctx, http.MethodDelete, c.url+"/"+url.PathEscape(id), params, nil, nil)
	if docsync.IsGone(err) {
		return nil
	}
	return err
}

// RemoveMatching finds matching documents and removes them one at a time.
func (c *Collection) RemoveMatching(
	ctx context.Context,
	selector docsync.Selector,
) error {
	docs, err := c.find(ctx, selector, nil)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := c.Remove(ctx, doc.ID()); err != nil {
			return err
		}
	}
	return nil
}

// do sends a request with body encoded as JSON and decodes the JSON response
// into out.
//
// Non-2xx responses are returned as *docsync.TransportError.
func (c *Collection) do(
	ctx context.Context,
	method string,
	target string,
	params url.Values,
	body any,
	out any,
) error {
	if limiter := c.opts.GetRateLimiter(); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer c.sem.Release(1)
	}

	var reader io.Reader
	var encoding string
	if body != nil {
		buf, err := gojson.Marshal(body)
		if err != nil {
			return err
		}
		if threshold := c.opts.GetGzipThreshold(); threshold >= 0 && len(buf) > threshold {
			buf, err = gzipBytes(buf)
			if err != nil {
				return err
			}
			encoding = encodingGzip
		}
		reader = bytes.NewReader(buf)
	}

	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", contentTypeJSON)
	// Set explicitly, so the response is decoded here with the body closer kept.
	req.Header.Set("Accept-Encoding", encodingGzip)
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}

	started := time.Now()
	resp, err := c.opts.GetHTTPClient().Do(req)
	if err != nil {
		return err
	}
	respBody, err := decodedBody(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return err
	}
	defer respBody.Close()

	if logger := c.opts.GetLogger(); logger != nil {
		logger.DebugContext(
			ctx,
			"remote request",
			"collection", c.name,
			"method", method,
			"status", resp.StatusCode,
			"took", time.Since(started),
		)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(respBody, maxErrorBody))
		return &docsync.TransportError{
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(msg)),
		}
	}
	if out == nil {
		return nil
	}
	return gojson.NewDecoder(respBody).Decode(out)
}
