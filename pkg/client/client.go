/*
Copyright 2026 Nscale.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package client wraps HTTP calls to the resource API.  Every request carries
// the same browser-like headers, an optional bearer token and W3C trace
// context, and is checked against an allow-list of statuses.
package client

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/nscaledev/ecare-e2e/pkg/auth"
	"github.com/nscaledev/ecare-e2e/pkg/config"
	ecareerrors "github.com/nscaledev/ecare-e2e/pkg/errors"

	"golang.org/x/time/rate"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// DefaultAllowed is the allow-list used when a request does not name one.
//
//nolint:gochecknoglobals
var DefaultAllowed = []int{http.StatusOK, http.StatusCreated}

const (
	secCHUA         = `"Not)A;Brand";v="8", "Chromium";v="138", "Google Chrome";v="138"`
	secCHUAMobile   = "?0"
	secCHUAPlatform = `"macOS"`
)

// Request describes a single call.
type Request struct {
	Method string
	// Path is appended to the API base URL, it includes any parameters.
	Path string
	// Template is the un-parameterised path, used for metric labels and
	// schema lookups.  Defaults to Path.
	Template string
	// Body is JSON encoded when not nil.
	Body any
	// Allowed statuses, DefaultAllowed when empty.
	Allowed []int
	// UseAuth adds a bearer token.
	UseAuth bool
}

func (r *Request) template() string {
	if r.Template != "" {
		return r.Template
	}

	return r.Path
}

func (r *Request) allowed() []int {
	if len(r.Allowed) != 0 {
		return r.Allowed
	}

	return DefaultAllowed
}

// Response is what came back.
type Response struct {
	Status int
	// Body is the decoded JSON value, or the raw text when the response is
	// not JSON.
	Body    any
	Raw     []byte
	Header  http.Header
	TraceID string
}

// Object returns the body as a JSON object, or nil if it is something else.
func (r *Response) Object() map[string]any {
	object, _ := r.Body.(map[string]any)

	return object
}

// Decode unmarshals the raw body into the given value.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Raw, v); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}

	return nil
}

// Observer records request outcomes.
type Observer interface {
	ObserveRequest(method, path string, status int, duration time.Duration)
}

// ResponseValidator checks a response against a schema.
type ResponseValidator interface {
	ValidateResponse(ctx context.Context, method, path string, status int, header http.Header, body []byte) error
}

// Client issues requests against a single environment.
type Client struct {
	baseURL   string
	tenantID  string
	options   config.Options
	client    *http.Client
	tokens    auth.TokenSource
	limiter   *rate.Limiter
	observer  Observer
	validator ResponseValidator
	clock     clock.PassiveClock
}

// Option customises a client.
type Option func(*Client)

// WithTokenSource enables authenticated requests.
func WithTokenSource(tokens auth.TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithObserver records every completed request.
func WithObserver(observer Observer) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// WithValidator checks responses that pass the allow-list.
func WithValidator(validator ResponseValidator) Option {
	return func(c *Client) {
		c.validator = validator
	}
}

// WithClock replaces the clock used for durations.
func WithClock(clock clock.PassiveClock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

// New returns a client for the configured environment.
func New(cfg *config.Config, options ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimSuffix(cfg.Environment.BaseURL, "/"),
		tenantID: cfg.Environment.TenantID,
		options:  cfg.Options,
		client: &http.Client{
			Timeout: cfg.Options.RequestTimeout,
		},
		clock: clock.RealClock{},
	}

	if cfg.Options.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.Options.RequestsPerSecond), cfg.Options.Burst)
	}

	for _, o := range options {
		o(c)
	}

	return c
}

// generateTraceID creates a new W3C trace ID so a failing request can be
// found in the server logs.
func generateTraceID() string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)

	return hex.EncodeToString(bytes)
}

// generateSpanID creates a new W3C span ID.
func generateSpanID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)

	return hex.EncodeToString(bytes)
}

// createTraceParent creates a W3C traceparent header value.
func createTraceParent() (string, string) {
	traceID := generateTraceID()

	return fmt.Sprintf("00-%s-%s-01", traceID, generateSpanID()), traceID
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Content-Type", "application/json")

	if c.tenantID != "" {
		req.Header.Set("X-TENANT-ID", c.tenantID)
	}

	if !c.options.SpoofBrowser {
		return
	}

	if c.options.Origin != "" {
		req.Header.Set("Origin", c.options.Origin)
		req.Header.Set("Referer", strings.TrimSuffix(c.options.Origin, "/")+"/")
	}

	if c.options.UserAgent != "" {
		req.Header.Set("User-Agent", c.options.UserAgent)
	}

	req.Header.Set("Sec-Ch-Ua", secCHUA)
	req.Header.Set("Sec-Ch-Ua-Mobile", secCHUAMobile)
	req.Header.Set("Sec-Ch-Ua-Platform", secCHUAPlatform)
}

func decodeBody(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return string(raw)
	}

	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return string(raw)
	}

	return body
}

// Do performs the request.  A status outside the allow-list yields an
// UnexpectedStatusError alongside the response.
//
//nolint:cyclop
func (c *Client) Do(ctx context.Context, r *Request) (*Response, error) {
	log := log.FromContext(ctx).WithValues("method", r.Method, "path", r.Path)

	// Resolve the token first, a request that cannot be authenticated must
	// not reach the network.
	var token string

	if r.UseAuth && c.tokens != nil {
		t, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", r.Method, r.Path, err)
		}

		token = t
	}

	var body io.Reader

	if r.Body != nil {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}

		if c.options.LogRequests {
			log.V(1).Info("request body", "body", string(data))
		}

		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, c.baseURL+r.Path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	c.setHeaders(req)

	traceParent, traceID := createTraceParent()
	req.Header.Set("Traceparent", traceParent)
	req.Header.Set("Tracestate", "test-automation=ecare-e2e")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	start := c.clock.Now()
	resp, err := c.client.Do(req)
	duration := c.clock.Since(start)

	if err != nil {
		log.Error(err, "http request failed", "duration", duration, "traceID", traceID)

		return nil, fmt.Errorf("http request failed: %w", err)
	}

	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if c.observer != nil {
		c.observer.ObserveRequest(r.Method, r.template(), resp.StatusCode, duration)
	}

	if c.options.LogRequests {
		log.Info("request complete", "status", resp.StatusCode, "duration", duration, "traceID", traceID)
	}

	if c.options.LogResponses && len(raw) > 0 {
		log.V(1).Info("response body", "body", string(raw))
	}

	response := &Response{
		Status:  resp.StatusCode,
		Body:    decodeBody(raw),
		Raw:     raw,
		Header:  resp.Header,
		TraceID: traceID,
	}

	if !slices.Contains(r.allowed(), resp.StatusCode) {
		log.Info("unexpected status", "status", resp.StatusCode, "allowed", r.allowed(), "traceID", traceID)

		return response, &ecareerrors.UnexpectedStatusError{
			Method:  r.Method,
			Path:    r.Path,
			Status:  resp.StatusCode,
			Allowed: r.allowed(),
			Body:    string(raw),
			Code:    ecareerrors.CodeFromBody(response.Body),
			TraceID: traceID,
		}
	}

	if c.validator != nil {
		if err := c.validator.ValidateResponse(ctx, r.Method, r.template(), resp.StatusCode, resp.Header, raw); err != nil {
			return response, err
		}
	}

	return response, nil
}
