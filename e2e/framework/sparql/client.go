package sparql

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/rdf"
)

const (
	// DefaultGraphContentType is what the store answers for Turtle graph results.
	DefaultGraphContentType = "text/turtle; charset=utf-8"
	defaultMaxGetQuery      = 2048
	defaultRequestTimeout   = 60 * time.Second
)

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned when the store answers with an unexpected status.
type StatusError struct {
	Op         string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sparql %s failed: status=%d url=%s body=%s", e.Op, e.StatusCode, e.URL, e.Body)
}

// ContentTypeError is returned when a graph result has an unexpected content type.
type ContentTypeError struct {
	URL      string
	Expected string
	Got      string
}

func (e *ContentTypeError) Error() string {
	return fmt.Sprintf("sparql query returned content type %q, expected %q (url=%s)", e.Got, e.Expected, e.URL)
}

// Response is a raw query result.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Client issues SPARQL 1.1 protocol requests against one endpoint.
type Client struct {
	Endpoint            Endpoint
	HTTP                HTTPDoer
	Logger              logr.Logger
	ExpectedContentType string
	MaxGetQueryLength   int
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) { c.HTTP = doer }
}

// WithLogger sets the logger.
func WithLogger(logger logr.Logger) Option {
	return func(c *Client) { c.Logger = logger }
}

// WithExpectedContentType changes the content type QueryGraph insists on.
// An empty value only requires a parseable RDF media type.
func WithExpectedContentType(contentType string) Option {
	return func(c *Client) { c.ExpectedContentType = contentType }
}

// WithMaxGetQueryLength sets the encoded query length above which queries are
// sent as POST forms. Zero or negative forces POST.
func WithMaxGetQueryLength(n int) Option {
	return func(c *Client) { c.MaxGetQueryLength = n }
}

// NewClient creates a client for endpoint.
func NewClient(endpoint Endpoint, opts ...Option) *Client {
	c := &Client{
		Endpoint:            endpoint,
		HTTP:                &http.Client{Timeout: defaultRequestTimeout},
		Logger:              logr.Discard(),
		ExpectedContentType: DefaultGraphContentType,
		MaxGetQueryLength:   defaultMaxGetQuery,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Update posts an update request as an update= form. Anything but 200 is a *StatusError.
func (c *Client) Update(ctx context.Context, update string) error {
	form := url.Values{"update": []string{update}}
	resp, err := c.do(ctx, "update", http.MethodPost, c.Endpoint.UpdateURL(), strings.NewReader(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	}, true)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Op: "update", URL: c.Endpoint.UpdateURL(), StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(resp.Body))}
	}
	c.Logger.V(1).Info("update applied", "endpoint", c.Endpoint.String(), "bytes", len(update))
	return nil
}

// Query sends a query with the given Accept header and returns the raw
// response whatever its status.
func (c *Client) Query(ctx context.Context, query string, accept string) (*Response, error) {
	form := url.Values{"query": []string{query}}
	encoded := form.Encode()
	headers := map[string]string{}
	if accept != "" {
		headers["Accept"] = accept
	}
	if c.MaxGetQueryLength > 0 && len(encoded) <= c.MaxGetQueryLength {
		return c.do(ctx, "query", http.MethodGet, c.Endpoint.QueryURL()+"?"+encoded, nil, headers, false)
	}
	headers["Content-Type"] = "application/x-www-form-urlencoded"
	return c.do(ctx, "query", http.MethodPost, c.Endpoint.QueryURL(), strings.NewReader(encoded), headers, false)
}

// QueryGraph runs a CONSTRUCT or DESCRIBE query, requesting Turtle, and
// parses the result. It requires status 200 and the expected content type.
func (c *Client) QueryGraph(ctx context.Context, query string) (*rdf.Graph, error) {
	resp, err := c.Query(ctx, query, rdf.MimeTurtle)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Op: "query", URL: c.Endpoint.QueryURL(), StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(resp.Body))}
	}
	if err := c.checkContentType(resp.ContentType); err != nil {
		return nil, err
	}
	g := rdf.NewGraph("")
	if err := g.Parse(bytes.NewReader(resp.Body), resp.ContentType); err != nil {
		return nil, errors.Wrap(err, "parse query result")
	}
	c.Logger.V(1).Info("graph query answered", "endpoint", c.Endpoint.String(), "triples", g.Len())
	return g, nil
}

func (c *Client) checkContentType(got string) error {
	if c.ExpectedContentType == "" {
		if !rdf.CanParse(got) {
			return &ContentTypeError{URL: c.Endpoint.QueryURL(), Expected: "an RDF media type", Got: got}
		}
		return nil
	}
	if !strings.EqualFold(strings.TrimSpace(got), c.ExpectedContentType) {
		return &ContentTypeError{URL: c.Endpoint.QueryURL(), Expected: c.ExpectedContentType, Got: got}
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, body io.Reader, headers map[string]string, useAuth bool) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, errors.Wrapf(err, "build sparql %s request", op)
	}
	if useAuth && c.Endpoint.HasCredentials() {
		req.SetBasicAuth(c.Endpoint.Username, c.Endpoint.Password)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "sparql %s request", op)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read sparql %s response", op)
	}
	c.Logger.V(2).Info("sparql request", "op", op, "method", method, "status", resp.StatusCode, "duration", time.Since(start).String())
	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        payload,
	}, nil
}
