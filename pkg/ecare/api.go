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

// Package ecare is a typed client for the practice management API: providers,
// their availability, patients and appointments.
package ecare

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nscaledev/ecare-e2e/pkg/client"
	ecareerrors "github.com/nscaledev/ecare-e2e/pkg/errors"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// LookupStatus is the outcome of a read that tolerates absence.
type LookupStatus string

const (
	LookupFound     LookupStatus = "found"
	LookupNoContent LookupStatus = "no_content"
	LookupNotFound  LookupStatus = "not_found"
)

// Lookup is the result of a read-back.
type Lookup struct {
	Status LookupStatus
	Body   map[string]any
}

// TokenStatus is what the API thinks of a bearer token.
type TokenStatus string

const (
	TokenAccepted     TokenStatus = "accepted"
	TokenRejected     TokenStatus = "rejected"
	TokenInconclusive TokenStatus = "inconclusive"
)

// Usable reports whether requests can proceed with the token.  An
// inconclusive answer is assumed usable.
func (s TokenStatus) Usable() bool {
	return s != TokenRejected
}

// PatientCreatedMessage is expected in the message of an enveloped patient
// create acknowledgement.
const PatientCreatedMessage = "Successfully"

// PatientCreated describes the acknowledgement of a patient create.  The API
// either wraps the result in an envelope, which omits the identifier, or
// echoes the patient back.
type PatientCreated struct {
	Envelope *Envelope
	// ID is only set when the patient was echoed back.
	ID   string
	Body map[string]any
}

// Booking is the acknowledgement of an appointment.
type Booking struct {
	// ID may be empty, not all responses carry one.
	ID   string
	Body map[string]any
}

// API provides typed access to the resource endpoints.
type API struct {
	client    *client.Client
	endpoints *Endpoints
}

// New returns a new API client.
func New(client *client.Client, prefix string) *API {
	return &API{
		client:    client,
		endpoints: NewEndpoints(prefix),
	}
}

// Endpoints returns the endpoints in use.
func (a *API) Endpoints() *Endpoints {
	return a.endpoints
}

func lookup(response *client.Response) *Lookup {
	switch response.Status {
	case http.StatusNotFound:
		return &Lookup{Status: LookupNotFound, Body: response.Object()}
	case http.StatusNoContent:
		return &Lookup{Status: LookupNoContent}
	default:
		return &Lookup{Status: LookupFound, Body: response.Object()}
	}
}

// CreateProvider creates a provider.  The API does not return the new
// provider's identifier, use ListProviders to find it.
func (a *API) CreateProvider(ctx context.Context, provider *Provider) (*Envelope, error) {
	path := a.endpoints.Providers()

	response, err := a.client.Do(ctx, &client.Request{
		Method:   http.MethodPost,
		Path:     path,
		Template: path,
		Body:     provider,
		UseAuth:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating provider: %w", err)
	}

	var envelope Envelope
	if err := response.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: creating provider: %w", ecareerrors.ErrUnexpectedResponse, err)
	}

	if ecareerrors.Code(envelope.Code) != ecareerrors.CodeProviderCreated || !strings.Contains(envelope.Message, "successfully") {
		return nil, fmt.Errorf("%w: creating provider: code %q, message %q", ecareerrors.ErrUnexpectedResponse, envelope.Code, envelope.Message)
	}

	log.FromContext(ctx).Info("provider created", "email", provider.Email)

	return &envelope, nil
}

// ListProviders lists providers, newest first.
func (a *API) ListProviders(ctx context.Context) ([]ProviderRecord, error) {
	path := a.endpoints.Providers()

	response, err := a.client.Do(ctx, &client.Request{
		Method:   http.MethodGet,
		Path:     path,
		Template: path,
		Allowed:  []int{http.StatusOK},
		UseAuth:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("listing providers: %w", err)
	}

	var providers page[ProviderRecord]
	if err := response.Decode(&providers); err != nil {
		return nil, fmt.Errorf("listing providers: %w", err)
	}

	return providers.Data.Content, nil
}

// GetProvider reads a provider, absence is not an error.
func (a *API) GetProvider(ctx context.Context, id string) (*Lookup, error) {
	path, err := a.endpoints.Provider(id)
	if err != nil {
		return nil, err
	}

	response, err := a.client.Do(ctx, &client.Request{
		Method:   http.MethodGet,
		Path:     path,
		Template: a.endpoints.Template(ProviderPath),
		Allowed:  []int{http.StatusOK, http.StatusNotFound},
		UseAuth:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("getting provider: %w", err)
	}

	return lookup(response), nil
}

// SetAvailability replaces a provider's availability.
func (a *API) SetAvailability(ctx context.Context, availability *Availability) (map[string]any, error) {
	path := a.endpoints.Availability()

	response, err := a.client.Do(ctx, &client.Request{
		Method:   http.MethodPost,
		Path:     path,
		Template: path,
		Body:     availability,
		UseAuth:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("setting availability: %w", err)
	}

	return response.Object(), nil
}

// GetAvailability reads back a provider's availability.
func (a *API) GetAvailability(ctx context.Context, providerID string) (*Lookup, error) {
	path, err := a.endpoints.ProviderAvailability(providerID)
	if err != nil {
		return nil, err
	}

	response, err := a.client.Do(ctx, &client.Request{
		Method:   http.MethodGet,
		Path:     path,
		Template: a.endpoints.Template(ProviderAvailPath),
		Allowed:  []int{http.StatusOK, http.StatusNotFound},
		UseAuth:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("getting availability: %w", err)
	}

	return lookup(response), nil
}

// CreatePatient creates a patient.
func (a *API) CreatePatient(ctx context.Context, patient *Patient) (*PatientCreated, error) {
	path := a.endpoints.Patients()

	response, err := a.client.Do(ctx, &client.Request{
		Method:   http.MethodPost,
		Path:     path,
		Template: path,
		Body:     patient,
		UseAuth:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating patient: %w", err)
	}

	body := response.Object()
	if body == nil {
		return nil, fmt.Errorf("%w: creating patient: body is not an object", ecareerrors.ErrUnexpectedResponse)
	}

	if code := ecareerrors.CodeFromBody(body); code != ecareerrors.CodeNone {
		if !strings.Contains(string(code), "PATIENT") {
			return nil, fmt.Errorf("%w: creating patient: code %q", ecareerrors.ErrUnexpectedResponse, code)
		}

		var envelope Envelope
		if err := response.Decode(&envelope); err != nil {
			return nil, fmt.Errorf("%w: creating patient: %w", ecareerrors.ErrUnexpectedResponse, err)
		}

		if !strings.Contains(envelope.Message, PatientCreatedMessage) {
			return nil, fmt.Errorf("%w: creating patient: message %q", ecareerrors.ErrUnexpectedResponse, envelope.Message)
		}

		return &PatientCreated{Envelope: &envelope, Body: body}, nil
	}

	var echo struct {
		UUID      string `json:"uuid"`
		ID        string `json:"id"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}

	if err := response.Decode(&echo); err != nil {
		return nil, fmt.Errorf("%w: creating patient: %w", ecareerrors.ErrUnexpectedResponse, err)
	}

	if echo.FirstName != patient.FirstName || echo.LastName != patient.LastName {
		return nil, fmt.Errorf("%w: creating patient: echoed %s %s, sent %s %s", ecareerrors.ErrUnexpectedResponse, echo.FirstName, echo.LastName, patient.FirstName, patient.LastName)
	}

	id := echo.UUID
	if id == "" {
		id = echo.ID
	}

	return &PatientCreated{ID: id, Body: body}, nil
}

// ListPatients lists patients, newest first.
func (a *API) ListPatients(ctx context.Context) ([]PatientRecord, error) {
	path := a.endpoints.Patients()

	response, err := a.client.Do(ctx, &client.Request{
		Method:   http.MethodGet,
		Path:     path,
		Template: path,
		Allowed:  []int{http.StatusOK},
		UseAuth:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("listing patients: %w", err)
	}

	var patients page[PatientRecord]
	if err := response.Decode(&patients); err != nil {
		return nil, fmt.Errorf("listing patients: %w", err)
	}

	return patients.Data.Content, nil
}

// GetPatient reads a patient.  The API may answer 204 or 404 for a patient
// that does exist.
func (a *API) GetPatient(ctx context.Context, id string) (*Lookup, error) {
	path, err := a.endpoints.Patient(id)
	if err != nil {
		return nil, err
	}

	response, err := a.client.Do(ctx, &client.Request{
		Method:   http.MethodGet,
		Path:     path,
		Template: a.endpoints.Template(PatientPath),
		Allowed:  []int{http.StatusOK, http.StatusNoContent, http.StatusNotFound},
		UseAuth:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("getting patient: %w", err)
	}

	return lookup(response), nil
}

// BookAppointment books an appointment.  A refusal because availability is
// not yet visible is returned as an error matching
// errors.IsAvailabilityNotFound.
func (a *API) BookAppointment(ctx context.Context, appointment *Appointment) (*Booking, error) {
	path := a.endpoints.Appointments()

	response, err := a.client.Do(ctx, &client.Request{
		Method:   http.MethodPost,
		Path:     path,
		Template: path,
		Body:     appointment,
		UseAuth:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("booking appointment: %w", err)
	}

	body := response.Object()

	return &Booking{ID: bookingID(body), Body: body}, nil
}

func bookingID(body map[string]any) string {
	candidates := []map[string]any{body}

	if data, ok := body["data"].(map[string]any); ok {
		candidates = append(candidates, data)
	}

	for _, candidate := range candidates {
		for _, key := range []string{"uuid", "id"} {
			if id, ok := candidate[key].(string); ok && id != "" {
				return id
			}
		}
	}

	return ""
}

// presented reports whether a failed request got as far as sending the
// token, i.e. the failure lies with the endpoint rather than the credentials.
func presented(ctx context.Context, err error) bool {
	var authErr *ecareerrors.AuthenticationError

	switch {
	case ctx.Err() != nil:
		return false
	case errors.Is(err, ecareerrors.ErrTokenExpired), errors.Is(err, ecareerrors.ErrNoCredentials):
		return false
	case errors.As(err, &authErr):
		return false
	}

	return true
}

// VerifyToken checks the current token against an authenticated endpoint.
func (a *API) VerifyToken(ctx context.Context) (TokenStatus, error) {
	path := a.endpoints.Providers()

	response, err := a.client.Do(ctx, &client.Request{
		Method:   http.MethodGet,
		Path:     path,
		Template: path,
		Allowed:  []int{http.StatusOK, http.StatusUnauthorized},
		UseAuth:  true,
	})
	if err != nil {
		var statusErr *ecareerrors.UnexpectedStatusError
		if errors.As(err, &statusErr) {
			log.FromContext(ctx).Info("token verification inconclusive", "status", statusErr.Status)

			return TokenInconclusive, nil
		}

		if !presented(ctx, err) {
			return "", fmt.Errorf("verifying token: %w", err)
		}

		log.FromContext(ctx).Info("token verification inconclusive", "error", err.Error())

		return TokenInconclusive, nil
	}

	if response.Status == http.StatusUnauthorized {
		return TokenRejected, nil
	}

	return TokenAccepted, nil
}
