package remote

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/fishy/wrapreader"
	gojson "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/fishy/docsync"
	"github.com/fishy/docsync/internal/pool"
	sel "github.com/fishy/docsync/selector"
)

// Query parameter names.
const (
	ParamSelector = "selector"
	ParamSort     = "sort"
	ParamLimit    = "limit"
	ParamSkip     = "skip"
	ParamFields   = "fields"
	ParamClient   = "client"
)

// QuickFindPath is the path of the quickfind endpoint under a collection.
const QuickFindPath = "quickfind"

const (
	contentTypeJSON = "application/json"
	encodingGzip    = "gzip"

	// maxErrorBody caps the error body kept in a TransportError.
	maxErrorBody = 4096
)

// patch is the body of a PATCH request, single or batch.
type patch struct {
	Doc  gojson.RawMessage `json:"doc"`
	Base gojson.RawMessage `json:"base"`
}

// encodeQuery encodes a find into query parameters.
func encodeQuery(
	selector docsync.Selector,
	opts *docsync.FindOptions,
	client string,
) (url.Values, error) {
	params := make(url.Values)
	if selector == nil {
		selector = docsync.Selector{}
	}
	buf, err := gojson.Marshal(selector)
	if err != nil {
		return nil, err
	}
	params.Set(ParamSelector, string(buf))
	if client != "" {
		params.Set(ParamClient, client)
	}
	if opts == nil {
		return params, nil
	}
	if len(opts.Sort) > 0 {
		buf, err := gojson.Marshal(opts.Sort)
		if err != nil {
			return nil, err
		}
		params.Set(ParamSort, string(buf))
	}
	if opts.Limit > 0 {
		params.Set(ParamLimit, strconv.Itoa(opts.Limit))
	}
	if opts.Skip > 0 {
		params.Set(ParamSkip, strconv.Itoa(opts.Skip))
	}
	if len(opts.Fields) > 0 {
		buf, err := gojson.Marshal(opts.Fields)
		if err != nil {
			return nil, err
		}
		params.Set(ParamFields, string(buf))
	}
	return params, nil
}

// decodeQuery is the reverse of encodeQuery.
func decodeQuery(params url.Values) (docsync.Selector, *docsync.FindOptions, error) {
	var selector docsync.Selector
	if s := params.Get(ParamSelector); s != "" {
		if err := gojson.Unmarshal([]byte(s), &selector); err != nil {
			return nil, nil, fmt.Errorf("bad %s: %w", ParamSelector, err)
		}
	}
	opts := new(docsync.FindOptions)
	if s := params.Get(ParamSort); s != "" {
		if strings.HasPrefix(s, "[") {
			if err := gojson.Unmarshal([]byte(s), &opts.Sort); err != nil {
				return nil, nil, fmt.Errorf("bad %s: %w", ParamSort, err)
			}
		} else {
			// Compact form for hand written requests, e.g. "-priority,name".
			opts.Sort = sel.ParseSort(s)
		}
	}
	if s := params.Get(ParamFields); s != "" {
		if err := gojson.Unmarshal([]byte(s), &opts.Fields); err != nil {
			return nil, nil, fmt.Errorf("bad %s: %w", ParamFields, err)
		}
	}
	for _, p := range []struct {
		name  string
		value *int
	}{
		{name: ParamLimit, value: &opts.Limit},
		{name: ParamSkip, value: &opts.Skip},
	} {
		s := params.Get(p.name)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil, nil, fmt.Errorf("bad %s: %q", p.name, s)
		}
		*p.value = n
	}
	return selector, opts, nil
}

// isArray reports whether a raw JSON value is an array.
func isArray(raw []byte) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

// decodeDocs decodes a JSON document or array of documents.
func decodeDocs(raw []byte) (docs []docsync.Document, batch bool, err error) {
	if isArray(raw) {
		err = gojson.Unmarshal(raw, &docs)
		return docs, true, err
	}
	var doc docsync.Document
	if err := gojson.Unmarshal(raw, &doc); err != nil {
		return nil, false, err
	}
	return []docsync.Document{doc}, false, nil
}

// gzipWriters keeps idle gzip writers for reuse.
var gzipWriters = pool.New(16, func() *gzip.Writer {
	return gzip.NewWriter(io.Discard)
})

// gzipBytes compresses buf.
func gzipBytes(buf []byte) ([]byte, error) {
	var out bytes.Buffer
	writer := gzipWriters.Get()
	writer.Reset(&out)
	if _, err := writer.Write(buf); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	gzipWriters.Put(writer)
	return out.Bytes(), nil
}

// decodedBody returns body decoded according to encoding.
//
// Closing the returned reader closes body as well.
func decodedBody(encoding string, body io.ReadCloser) (io.ReadCloser, error) {
	if !strings.EqualFold(strings.TrimSpace(encoding), encodingGzip) {
		return body, nil
	}
	reader, err := gzip.NewReader(body)
	if err != nil {
		body.Close()
		return nil, err
	}
	return wrapreader.Wrap(reader, body), nil
}

// acceptsGzip reports whether the request accepts gzip responses.
func acceptsGzip(r *http.Request) bool {
	for _, v := range r.Header.Values("Accept-Encoding") {
		for _, part := range strings.Split(v, ",") {
			coding, _, _ := strings.Cut(strings.TrimSpace(part), ";")
			if strings.EqualFold(coding, encodingGzip) {
				return true
			}
		}
	}
	return false
}
