// Package backend is the storefront's HTTP client for the catalog, coupon and
// order API.
package backend

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/cheese-kart/internal/checkout"
	"github.com/xenking/cheese-kart/internal/failure"
)

// maxBodySize bounds how much of a response is read.
const maxBodySize = 1 << 20

var (
	_ checkout.CouponValidator = (*Client)(nil)
	_ checkout.OrderCreator    = (*Client)(nil)
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// Transport is the underlying round tripper. Defaults to
	// http.DefaultTransport.
	Transport      http.RoundTripper
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Client talks to the backend API.
type Client struct {
	base     *url.URL
	http     *http.Client
	products singleflight.Group
}

// New creates a Client. Requests are traced through otelhttp.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", opts.BaseURL)
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	rt := opts.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}

	var otelOpts []otelhttp.Option
	if opts.TracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(opts.TracerProvider))
	}
	if opts.MeterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(opts.MeterProvider))
	}

	return &Client{
		base: base,
		http: &http.Client{
			Transport: otelhttp.NewTransport(rt, otelOpts...),
			Timeout:   opts.Timeout,
		},
	}, nil
}

type tokenKey struct{}

// WithToken attaches a customer bearer token to outgoing requests made with
// the returned context.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	v, _ := ctx.Value(tokenKey{}).(string)
	return v
}

// do sends a request and returns the body of a 2xx response. Other statuses
// become *failure.RemoteError; network and read failures become
// *failure.TransportError.
func (c *Client) do(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	u := c.base.JoinPath(path)

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := tokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &failure.TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &failure.TransportError{Op: op, Err: errors.Wrap(err, "read body")}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, failure.DecodeRemote(resp.StatusCode, data)
	}
	return data, nil
}
