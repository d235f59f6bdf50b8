package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	loggingpkg "github.com/drblury/hookflow/internal/runtime/logging"
	"github.com/drblury/hookflow/internal/runtime/options"
)

const maxMultipartMemory = 32 << 20

// Params holds the parameters of a webhook request. Single values are strings
// and repeated values are []string. Fields of a JSON object body keep their
// decoded JSON types.
type Params map[string]any

// String returns the first string value stored under key.
func (p Params) String(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	case nil:
	default:
		return fmt.Sprint(v)
	}
	return ""
}

// Context is the per-request view extractors work with. A new one is built
// for every request and never shared.
type Context struct {
	request  *http.Request
	strategy *Strategy

	body      []byte
	bodyErr   error
	bodyRead  bool
	params    Params
	paramsErr error
	parsed    bool

	requestPath string
	currentPath string
}

func newContext(s *Strategy, r *http.Request) *Context {
	return &Context{request: r, strategy: s}
}

// Request returns the inbound request.
func (c *Context) Request() *http.Request { return c.request }

// Context returns the request context.
func (c *Context) Context() context.Context { return c.request.Context() }

// Options returns the strategy instance options. Treat them as read-only.
func (c *Context) Options() *options.Options { return c.strategy.options }

// Name is the strategy name.
func (c *Context) Name() string { return c.strategy.options.Name }

// Header returns the first value of a request header.
func (c *Context) Header(key string) string { return c.request.Header.Get(key) }

// Logger returns the configured logger tagged with the strategy name.
func (c *Context) Logger() loggingpkg.ServiceLogger {
	return c.strategy.logger()
}

// Body reads the request body once and restores it so later readers see it
// unchanged.
func (c *Context) Body() ([]byte, error) {
	if c.bodyRead {
		return c.body, c.bodyErr
	}
	c.bodyRead = true
	if c.request.Body == nil || c.request.Body == http.NoBody {
		return nil, nil
	}
	c.body, c.bodyErr = io.ReadAll(c.request.Body)
	_ = c.request.Body.Close()
	c.restoreBody()
	if c.bodyErr != nil {
		c.bodyErr = fmt.Errorf("read request body: %w", c.bodyErr)
	}
	return c.body, c.bodyErr
}

func (c *Context) restoreBody() {
	c.request.Body = io.NopCloser(bytes.NewReader(c.body))
}

// Params merges query, form and JSON object body parameters. Later sources
// win on key conflicts.
func (c *Context) Params() (Params, error) {
	if c.parsed {
		return c.params, c.paramsErr
	}
	c.parsed = true
	c.params, c.paramsErr = c.parseParams()
	return c.params, c.paramsErr
}

// Param returns the first string value of a parameter, or "" when it is
// missing or the parameters could not be parsed.
func (c *Context) Param(key string) string {
	params, err := c.Params()
	if err != nil {
		return ""
	}
	return params.String(key)
}

func (c *Context) parseParams() (Params, error) {
	body, err := c.Body()
	if err != nil {
		return nil, err
	}

	mediaType, _, _ := mime.ParseMediaType(c.request.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		err = c.request.ParseMultipartForm(maxMultipartMemory)
	default:
		err = c.request.ParseForm()
	}
	c.restoreBody()
	if err != nil {
		return nil, fmt.Errorf("parse request parameters: %w", err)
	}

	params := Params{}
	for key, values := range c.request.Form {
		params[key] = formValue(values)
	}
	if c.request.MultipartForm != nil {
		for key, values := range c.request.MultipartForm.Value {
			params[key] = formValue(values)
		}
	}

	if isJSON(mediaType) || (mediaType == "" && len(body) > 0) {
		if parsed := gjson.ParseBytes(body); parsed.IsObject() {
			parsed.ForEach(func(key, value gjson.Result) bool {
				params[key.String()] = value.Value()
				return true
			})
		}
	}
	return params, nil
}

func formValue(values []string) any {
	if len(values) == 1 {
		return values[0]
	}
	return append([]string(nil), values...)
}

func isJSON(mediaType string) bool {
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// JSON looks up a gjson path in the request body.
func (c *Context) JSON(path string) gjson.Result {
	body, err := c.Body()
	if err != nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(body, path)
}

// RequestPath is the path this strategy answers on: the request_path option
// when it is a string, otherwise the path prefix followed by the name.
func (c *Context) RequestPath() string {
	if c.requestPath == "" {
		opts := c.strategy.options
		if opts.RequestPath != "" {
			c.requestPath = opts.RequestPath
		} else {
			c.requestPath = c.strategy.pathPrefix() + "/" + opts.Name
		}
	}
	return c.requestPath
}

// CurrentPath is the lower-cased request path without one trailing slash.
func (c *Context) CurrentPath() string {
	if c.currentPath == "" {
		c.currentPath = strings.TrimSuffix(strings.ToLower(c.request.URL.Path), "/")
	}
	return c.currentPath
}

// OnRequestPath reports whether the request targets this strategy.
func (c *Context) OnRequestPath() bool {
	if matcher := c.strategy.options.RequestMatcher; matcher != nil {
		return matcher(c.request)
	}
	return strings.EqualFold(c.CurrentPath(), c.RequestPath())
}
