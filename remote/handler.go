package remote

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"

	gojson "github.com/goccy/go-json"

	"github.com/fishy/docsync"
	"github.com/fishy/docsync/quickfind"
)

// maxRequestBody caps the size of a decoded request body.
const maxRequestBody = 32 << 20

// Make sure *Handler satisfies http.Handler interface.
var _ http.Handler = (*Handler)(nil)

// Handler serves a docsync.Collection over http, for Collection clients.
//
// It serves at its root, mount it with http.StripPrefix:
//
//     GET    /            find
//     POST   /quickfind   find with the quickfind protocol
//     POST   /            create one document or an array of documents
//     PATCH  /            upsert {"doc": ..., "base": ...}, or arrays of both
//     DELETE /{id}        remove, "410 Gone" for unknown ids
//
// Writes require a client id.
type Handler struct {
	col  docsync.Collection
	opts HandlerOptions
}

// NewHandler creates a Handler serving col.
func NewHandler(col docsync.Collection, opts HandlerOptions) *Handler {
	return &Handler{
		col:  col,
		opts: opts,
	}
}

// httpError is an error with a status code to answer with.
type httpError struct {
	status int
	msg    string
}

func (err *httpError) Error() string {
	return err.msg
}

func errorf(status int, format string, args ...any) error {
	return &httpError{status: status, msg: fmt.Sprintf(format, args...)}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var out any
	var err error
	path := strings.Trim(r.URL.Path, "/")
	switch {
	case path == "" && r.Method == http.MethodGet:
		out, err = h.find(r)
	case path == QuickFindPath && r.Method == http.MethodPost:
		out, err = h.quickFind(r)
	case path == "" && (r.Method == http.MethodPost || r.Method == http.MethodPatch):
		out, err = h.upsert(r)
	case path != "" && r.Method == http.MethodDelete:
		err = h.remove(r, path)
	case path == "":
		err = errorf(http.StatusMethodNotAllowed, "method %s not allowed", r.Method)
	default:
		err = errorf(http.StatusNotFound, "unknown path %q", r.URL.Path)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.write(w, r, out)
}

func (h *Handler) find(r *http.Request) ([]docsync.Document, error) {
	selector, opts, err := decodeQuery(r.URL.Query())
	if err != nil {
		return nil, errorf(http.StatusBadRequest, "%v", err)
	}
	return h.col.Find(r.Context(), selector, opts).Last()
}

func (h *Handler) quickFind(r *http.Request) (quickfind.Response, error) {
	var req quickfind.Request
	if err := h.decodeBody(r, &req); err != nil {
		return nil, err
	}
	docs, err := h.find(r)
	if err != nil {
		return nil, err
	}
	return quickfind.EncodeResponse(docs, req), nil
}

func (h *Handler) upsert(r *http.Request) (any, error) {
	if err := h.checkClient(r.URL.Query()); err != nil {
		return nil, err
	}
	var raw gojson.RawMessage
	if err := h.decodeBody(r, &raw); err != nil {
		return nil, err
	}

	var docs, bases []docsync.Document
	var batch bool
	if r.Method == http.MethodPatch {
		var p patch
		if err := gojson.Unmarshal(raw, &p); err != nil {
			return nil, errorf(http.StatusBadRequest, "bad body: %v", err)
		}
		var err error
		docs, batch, err = decodeDocs(p.Doc)
		if err != nil {
			return nil, errorf(http.StatusBadRequest, "bad doc: %v", err)
		}
		if len(p.Base) > 0 {
			bases, _, err = decodeDocs(p.Base)
			if err != nil {
				return nil, errorf(http.StatusBadRequest, "bad base: %v", err)
			}
		}
	} else {
		var err error
		docs, batch, err = decodeDocs(raw)
		if err != nil {
			return nil, errorf(http.StatusBadRequest, "bad body: %v", err)
		}
	}

	ret, err := h.col.Upsert(r.Context(), docs, bases)
	if err != nil {
		return nil, err
	}
	if batch {
		return ret, nil
	}
	if len(ret) == 0 {
		return nil, nil
	}
	return ret[0], nil
}

func (h *Handler) remove(r *http.Request, path string) error {
	if err := h.checkClient(r.URL.Query()); err != nil {
		return err
	}
	id, err := url.PathUnescape(path)
	if err != nil {
		return errorf(http.StatusBadRequest, "bad id %q", path)
	}
	doc, err := h.col.FindOne(
		r.Context(),
		docsync.Selector{docsync.IDField: id},
		nil,
	).Last()
	if err != nil {
		return err
	}
	if doc == nil {
		return errorf(http.StatusGone, "%s %q does not exist", docsync.IDField, id)
	}
	return h.col.Remove(r.Context(), id)
}

func (h *Handler) checkClient(params url.Values) error {
	client := params.Get(ParamClient)
	if client == "" {
		return errorf(http.StatusForbidden, "client id required")
	}
	if len(h.opts.Clients) > 0 && !slices.Contains(h.opts.Clients, client) {
		return errorf(http.StatusForbidden, "client %q not allowed", client)
	}
	return nil
}

func (h *Handler) decodeBody(r *http.Request, v any) error {
	body, err := decodedBody(r.Header.Get("Content-Encoding"), r.Body)
	if err != nil {
		return errorf(http.StatusBadRequest, "bad body: %v", err)
	}
	defer body.Close()
	if err := gojson.NewDecoder(io.LimitReader(body, maxRequestBody)).Decode(v); err != nil {
		return errorf(http.StatusBadRequest, "bad body: %v", err)
	}
	return nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var he *httpError
	switch {
	case errors.As(err, &he):
		status = he.status
	case docsync.IsValidationError(err):
		status = http.StatusBadRequest
	case docsync.StatusOf(err) != 0:
		status = docsync.StatusOf(err)
	}
	if logger := h.opts.Logger; logger != nil && status >= http.StatusInternalServerError {
		logger.ErrorContext(
			r.Context(),
			"request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"err", err,
		)
	}
	http.Error(w, err.Error(), status)
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, v any) {
	if r.Method == http.MethodDelete {
		w.WriteHeader(http.StatusOK)
		return
	}
	buf, err := gojson.Marshal(v)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	if h.opts.GzipThreshold >= 0 && len(buf) > h.opts.GzipThreshold && acceptsGzip(r) {
		compressed, err := gzipBytes(buf)
		if err == nil {
			buf = compressed
			w.Header().Set("Content-Encoding", encodingGzip)
		}
	}
	w.Header().Set("Vary", "Accept-Encoding")
	w.Write(buf)
}
