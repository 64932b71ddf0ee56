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

// Package openapi carries a description of the resource API as observed by
// the harness, and checks responses against it.
package openapi

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"

	ecareerrors "github.com/nscaledev/ecare-e2e/pkg/errors"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

//go:embed ecare.yaml
var document []byte

// Schema loads and validates the embedded document.
func Schema() (*openapi3.T, error) {
	loader := openapi3.NewLoader()

	doc, err := loader.LoadFromData(document)
	if err != nil {
		return nil, fmt.Errorf("loading openapi document: %w", err)
	}

	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validating openapi document: %w", err)
	}

	return doc, nil
}

// Validator checks responses against the documented operation.
type Validator struct {
	doc    *openapi3.T
	prefix string
}

// NewValidator returns a validator for paths mounted under the given API
// prefix, e.g. /api/master.
func NewValidator(prefix string) (*Validator, error) {
	doc, err := Schema()
	if err != nil {
		return nil, err
	}

	v := &Validator{
		doc:    doc,
		prefix: "/" + strings.Trim(prefix, "/"),
	}

	if v.prefix == "/" {
		v.prefix = ""
	}

	return v, nil
}

// route looks up the operation directly, the document's servers are not
// consulted as environments differ only in host.
func (v *Validator) route(method, template string) (*routers.Route, bool) {
	path := strings.TrimPrefix(template, v.prefix)

	pathItem := v.doc.Paths.Value(path)
	if pathItem == nil {
		return nil, false
	}

	operation := pathItem.GetOperation(method)
	if operation == nil {
		return nil, false
	}

	route := &routers.Route{
		Spec:      v.doc,
		Path:      path,
		PathItem:  pathItem,
		Method:    method,
		Operation: operation,
	}

	return route, true
}

// ValidateResponse checks the status, headers and body of a response to the
// operation at the given path template.  Undocumented operations are not
// checked.
func (v *Validator) ValidateResponse(ctx context.Context, method, template string, status int, header http.Header, body []byte) error {
	route, ok := v.route(method, template)
	if !ok {
		log.FromContext(ctx).V(1).Info("no schema for operation, skipping validation", "method", method, "path", template)

		return nil
	}

	request, err := http.NewRequestWithContext(ctx, method, template, nil)
	if err != nil {
		return fmt.Errorf("creating validation request: %w", err)
	}

	options := &openapi3filter.Options{
		IncludeResponseStatus: true,
	}

	requestInput := &openapi3filter.RequestValidationInput{
		Request: request,
		Route:   route,
		Options: options,
	}

	responseInput := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: requestInput,
		Status:                 status,
		Header:                 header,
		Options:                options,
	}

	responseInput.SetBodyBytes(body)

	if err := openapi3filter.ValidateResponse(ctx, responseInput); err != nil {
		return &ecareerrors.ShapeError{
			Method: method,
			Path:   template,
			Status: status,
			Err:    err,
		}
	}

	return nil
}
