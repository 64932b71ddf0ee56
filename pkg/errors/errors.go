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

// Package errors defines the failure taxonomy shared by the harness.  Errors
// that come back from the remote API carry a decoded Code so callers can
// decide whether to tolerate them without inspecting raw bodies.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoCredentials is raised when an authenticated request is attempted
	// without any way to obtain a token.
	ErrNoCredentials = errors.New("no credentials configured")

	// ErrMissingToken is raised when the identity provider answers 200 but
	// does not include an access token.
	ErrMissingToken = errors.New("no access token in response")

	// ErrTokenExpired is raised when a token is past its usable lifetime and
	// cannot be renewed.
	ErrTokenExpired = errors.New("token expired")

	// ErrUnexpectedResponse is raised when a create call succeeds at the HTTP
	// level but its body is not the documented acknowledgement.
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// Code is an application level code returned by the remote API in the
// "code" field of its response envelope.
type Code string

const (
	CodeNone                 Code = ""
	CodeProviderCreated      Code = "PROVIDER_CREATED"
	CodePatientCreated       Code = "PATIENT_CREATED"
	CodeAvailabilityNotFound Code = "AVAILABILITY_NOT_FOUND"
	CodeAppointmentBooked    Code = "APPOINTMENT_BOOKED"
)

// CodeFromBody extracts the code from a decoded response body.  Anything
// other than a JSON object with a string code yields CodeNone.
func CodeFromBody(body any) Code {
	object, ok := body.(map[string]any)
	if !ok {
		return CodeNone
	}

	code, ok := object["code"].(string)
	if !ok {
		return CodeNone
	}

	return Code(strings.ToUpper(strings.TrimSpace(code)))
}

// AuthenticationError is returned when the identity provider rejects the
// credentials, or accepts them without handing out a token.
type AuthenticationError struct {
	Status int
	Body   string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed with status %d: %v: %s", e.Status, e.Err, e.Body)
	}

	return fmt.Sprintf("authentication failed with status %d: %s", e.Status, e.Body)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// UnexpectedStatusError is returned by the request wrapper when the observed
// status is not in the caller's allow-list.
type UnexpectedStatusError struct {
	Method  string
	Path    string
	Status  int
	Allowed []int
	Body    string
	Code    Code
	TraceID string
}

func (e *UnexpectedStatusError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, status := range e.Allowed {
		allowed[i] = fmt.Sprintf("%d", status)
	}

	return fmt.Sprintf("%s %s: expected status %s, got %d, body: %s (trace ID: %s)", e.Method, e.Path, strings.Join(allowed, " or "), e.Status, e.Body, e.TraceID)
}

// HasCode reports whether err is, or wraps, an UnexpectedStatusError carrying
// the given API code.
func HasCode(err error, code Code) bool {
	var statusErr *UnexpectedStatusError
	if !errors.As(err, &statusErr) {
		return false
	}

	return statusErr.Code == code
}

// IsAvailabilityNotFound reports whether the server refused a booking because
// it could not see the provider's availability yet.
func IsAvailabilityNotFound(err error) bool {
	return HasCode(err, CodeAvailabilityNotFound)
}

// IsStatus reports whether err is, or wraps, an UnexpectedStatusError with
// the given HTTP status.
func IsStatus(err error, status int) bool {
	var statusErr *UnexpectedStatusError
	if !errors.As(err, &statusErr) {
		return false
	}

	return statusErr.Status == status
}

// ResolutionKind distinguishes the ways an entity lookup can fall short.
type ResolutionKind string

const (
	// ResolutionAmbiguous means an identifier was chosen but cannot be
	// proven to belong to the entity that was created.
	ResolutionAmbiguous ResolutionKind = "ambiguous"

	// ResolutionFailed means no identifier could be chosen at all.
	ResolutionFailed ResolutionKind = "failed"
)

// ResolutionError explains why a created entity could not be confirmed.
type ResolutionError struct {
	Kind     ResolutionKind
	Resource string
	Reason   string
	Err      error
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("%s resolution %s: %s", e.Resource, e.Kind, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// SkippedError is informational, it records that a step did not run because
// a prerequisite was unavailable.
type SkippedError struct {
	Step   string
	Reason string
}

func (e *SkippedError) Error() string {
	return fmt.Sprintf("step %s skipped: %s", e.Step, e.Reason)
}

// ShapeError is returned when a response does not match the documented
// schema for its operation.
type ShapeError struct {
	Method string
	Path   string
	Status int
	Err    error
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s %s: response with status %d does not match schema: %v", e.Method, e.Path, e.Status, e.Err)
}

func (e *ShapeError) Unwrap() error {
	return e.Err
}
