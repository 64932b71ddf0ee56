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

package client_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nscaledev/ecare-e2e/pkg/client"
	"github.com/nscaledev/ecare-e2e/pkg/config"
	ecareerrors "github.com/nscaledev/ecare-e2e/pkg/errors"
)

var errNoToken = errors.New("no token for you")

type staticTokens struct {
	token string
	err   error
}

func (s *staticTokens) Token(context.Context) (string, error) {
	return s.token, s.err
}

type observation struct {
	method string
	path   string
	status int
}

type recorder struct {
	observations []observation
}

func (r *recorder) ObserveRequest(method, path string, status int, _ time.Duration) {
	r.observations = append(r.observations, observation{method: method, path: path, status: status})
}

type rejectingValidator struct{}

func (rejectingValidator) ValidateResponse(_ context.Context, method, path string, status int, _ http.Header, _ []byte) error {
	return &ecareerrors.ShapeError{Method: method, Path: path, Status: status}
}

func newConfig(baseURL string) *config.Config {
	return &config.Config{
		Environment: config.Environment{
			BaseURL:  baseURL,
			TenantID: "stage_aithinkitive",
		},
		Options: config.Options{
			RequestTimeout: 5 * time.Second,
			SpoofBrowser:   true,
			Origin:         "https://qa.practiceeasily.com",
			UserAgent:      "test-agent",
		},
	}
}

type capture struct {
	calls   int
	request *http.Request
	body    string
}

func newServer(t *testing.T, status int, contentType, body string) (*httptest.Server, *capture) {
	t.Helper()

	c := &capture{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.calls++
		c.request = r

		data, _ := io.ReadAll(r.Body)
		c.body = string(data)

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))

	t.Cleanup(server.Close)

	return server, c
}

func TestDoSetsHeaders(t *testing.T) {
	t.Parallel()

	server, captured := newServer(t, http.StatusOK, "application/json", `{"code":"OK"}`)

	c := client.New(newConfig(server.URL), client.WithTokenSource(&staticTokens{token: "abc"}))

	response, err := c.Do(context.Background(), &client.Request{
		Method:  http.MethodPost,
		Path:    "/api/master/provider",
		Body:    map[string]any{"firstName": "Ada"},
		UseAuth: true,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, response.Status)
	assert.Equal(t, "OK", response.Object()["code"])
	assert.NotEmpty(t, response.TraceID)

	header := captured.request.Header
	assert.Equal(t, "Bearer abc", header.Get("Authorization"))
	assert.Equal(t, "stage_aithinkitive", header.Get("X-Tenant-Id"))
	assert.Equal(t, "application/json", header.Get("Content-Type"))
	assert.Equal(t, "https://qa.practiceeasily.com", header.Get("Origin"))
	assert.Equal(t, "https://qa.practiceeasily.com/", header.Get("Referer"))
	assert.Equal(t, "test-agent", header.Get("User-Agent"))
	assert.Equal(t, "?0", header.Get("Sec-Ch-Ua-Mobile"))
	assert.Contains(t, header.Get("Traceparent"), response.TraceID)
	assert.JSONEq(t, `{"firstName":"Ada"}`, captured.body)
}

func TestDoWithoutAuth(t *testing.T) {
	t.Parallel()

	server, captured := newServer(t, http.StatusOK, "application/json", `{}`)

	c := client.New(newConfig(server.URL), client.WithTokenSource(&staticTokens{token: "abc"}))

	_, err := c.Do(context.Background(), &client.Request{Method: http.MethodGet, Path: "/"})
	require.NoError(t, err)
	assert.Empty(t, captured.request.Header.Get("Authorization"))
}

func TestDoWithoutSpoofing(t *testing.T) {
	t.Parallel()

	server, captured := newServer(t, http.StatusOK, "application/json", `{}`)

	cfg := newConfig(server.URL)
	cfg.Options.SpoofBrowser = false

	_, err := client.New(cfg).Do(context.Background(), &client.Request{Method: http.MethodGet, Path: "/"})
	require.NoError(t, err)
	assert.Empty(t, captured.request.Header.Get("Origin"))
	assert.Empty(t, captured.request.Header.Get("Sec-Ch-Ua"))
}

func TestDoTextFallback(t *testing.T) {
	t.Parallel()

	server, _ := newServer(t, http.StatusCreated, "text/plain", "created")

	response, err := client.New(newConfig(server.URL)).Do(context.Background(), &client.Request{Method: http.MethodPost, Path: "/"})
	require.NoError(t, err)
	assert.Equal(t, "created", response.Body)
	assert.Nil(t, response.Object())
}

func TestDoUnexpectedStatus(t *testing.T) {
	t.Parallel()

	server, _ := newServer(t, http.StatusBadRequest, "application/json", `{"code":"availability_not_found","message":"no slots"}`)

	response, err := client.New(newConfig(server.URL)).Do(context.Background(), &client.Request{Method: http.MethodPost, Path: "/api/master/appointment"})
	require.Error(t, err)
	require.NotNil(t, response)

	var statusErr *ecareerrors.UnexpectedStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Status)
	assert.Equal(t, client.DefaultAllowed, statusErr.Allowed)
	assert.Equal(t, response.TraceID, statusErr.TraceID)
	assert.Contains(t, statusErr.Body, "no slots")
	assert.True(t, ecareerrors.IsAvailabilityNotFound(err))
}

func TestDoCustomAllowList(t *testing.T) {
	t.Parallel()

	server, _ := newServer(t, http.StatusNotFound, "application/json", `{}`)

	response, err := client.New(newConfig(server.URL)).Do(context.Background(), &client.Request{
		Method:  http.MethodGet,
		Path:    "/api/master/provider/x",
		Allowed: []int{http.StatusOK, http.StatusNotFound},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, response.Status)
}

func TestDoTokenFailureSkipsNetwork(t *testing.T) {
	t.Parallel()

	server, captured := newServer(t, http.StatusOK, "application/json", `{}`)

	c := client.New(newConfig(server.URL), client.WithTokenSource(&staticTokens{err: errNoToken}))

	_, err := c.Do(context.Background(), &client.Request{Method: http.MethodGet, Path: "/", UseAuth: true})
	require.ErrorIs(t, err, errNoToken)
	assert.Zero(t, captured.calls)
}

func TestDoObservesTemplate(t *testing.T) {
	t.Parallel()

	server, _ := newServer(t, http.StatusOK, "application/json", `{}`)

	r := &recorder{}

	_, err := client.New(newConfig(server.URL), client.WithObserver(r)).Do(context.Background(), &client.Request{
		Method:   http.MethodGet,
		Path:     "/api/master/provider/1234",
		Template: "/api/master/provider/{id}",
	})
	require.NoError(t, err)
	require.Len(t, r.observations, 1)
	assert.Equal(t, observation{method: http.MethodGet, path: "/api/master/provider/{id}", status: http.StatusOK}, r.observations[0])
}

func TestDoValidatesShape(t *testing.T) {
	t.Parallel()

	server, _ := newServer(t, http.StatusOK, "application/json", `{}`)

	response, err := client.New(newConfig(server.URL), client.WithValidator(rejectingValidator{})).Do(context.Background(), &client.Request{Method: http.MethodGet, Path: "/"})
	require.NotNil(t, response)

	var shapeErr *ecareerrors.ShapeError
	require.ErrorAs(t, err, &shapeErr)
}

func TestDoRateLimited(t *testing.T) {
	t.Parallel()

	server, captured := newServer(t, http.StatusOK, "application/json", `{}`)

	cfg := newConfig(server.URL)
	cfg.Options.RequestsPerSecond = 1000
	cfg.Options.Burst = 1

	c := client.New(cfg)

	for range 3 {
		_, err := c.Do(context.Background(), &client.Request{Method: http.MethodGet, Path: "/"})
		require.NoError(t, err)
	}

	assert.Equal(t, 3, captured.calls)
}
