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

package openapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ecareerrors "github.com/nscaledev/ecare-e2e/pkg/errors"
	"github.com/nscaledev/ecare-e2e/pkg/openapi"
)

func jsonHeader() http.Header {
	header := http.Header{}
	header.Set("Content-Type", "application/json")

	return header
}

func TestSchemaLoads(t *testing.T) {
	t.Parallel()

	doc, err := openapi.Schema()
	require.NoError(t, err)
	assert.NotNil(t, doc.Paths.Value("/provider"))
}

//nolint:tparallel
func TestValidateResponse(t *testing.T) {
	t.Parallel()

	validator, err := openapi.NewValidator("/api/master")
	require.NoError(t, err)

	cases := []struct {
		name   string
		method string
		path   string
		status int
		body   string
		valid  bool
	}{
		{name: "ProviderCreated", method: http.MethodPost, path: "/api/master/provider", status: http.StatusCreated, body: `{"code":"PROVIDER_CREATED","message":"Provider created successfully"}`, valid: true},
		{name: "ProviderCreatedWithoutCode", method: http.MethodPost, path: "/api/master/provider", status: http.StatusCreated, body: `{"message":"ok"}`},
		{name: "ProviderList", method: http.MethodGet, path: "/api/master/provider", status: http.StatusOK, body: `{"data":{"content":[{"uuid":"a","email":"x@y"}]}}`, valid: true},
		{name: "ProviderListWithoutContent", method: http.MethodGet, path: "/api/master/provider", status: http.StatusOK, body: `{"data":{}}`},
		{name: "ProviderListEntryWithoutID", method: http.MethodGet, path: "/api/master/provider", status: http.StatusOK, body: `{"data":{"content":[{"email":"x@y"}]}}`},
		{name: "PatientEcho", method: http.MethodPost, path: "/api/master/patient", status: http.StatusOK, body: `{"uuid":"p","firstName":"A","lastName":"B"}`, valid: true},
		{name: "PatientNotFound", method: http.MethodGet, path: "/api/master/patient/{id}", status: http.StatusNotFound, body: `{}`, valid: true},
		{name: "UndocumentedStatus", method: http.MethodGet, path: "/api/master/patient/{id}", status: http.StatusTeapot, body: `{}`},
		{name: "UndocumentedOperation", method: http.MethodDelete, path: "/api/master/appointment", status: http.StatusOK, body: `nonsense`, valid: true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			err := validator.ValidateResponse(context.Background(), c.method, c.path, c.status, jsonHeader(), []byte(c.body))
			if c.valid {
				require.NoError(t, err)
				return
			}

			var shapeErr *ecareerrors.ShapeError
			require.ErrorAs(t, err, &shapeErr)
			assert.Equal(t, c.status, shapeErr.Status)
		})
	}
}
