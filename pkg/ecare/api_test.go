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

package ecare_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nscaledev/ecare-e2e/pkg/auth"
	"github.com/nscaledev/ecare-e2e/pkg/client"
	"github.com/nscaledev/ecare-e2e/pkg/ecare"
	ecareerrors "github.com/nscaledev/ecare-e2e/pkg/errors"
	"github.com/nscaledev/ecare-e2e/pkg/fixtures"
	"github.com/nscaledev/ecare-e2e/pkg/testing/fakeapi"
)

type harness struct {
	server    *fakeapi.Server
	api       *ecare.API
	generator *fixtures.Generator
}

func newHarness(t *testing.T, options fakeapi.Options) *harness {
	t.Helper()

	server := fakeapi.New(t, options)
	cfg := server.Config()

	session := auth.NewSession(auth.NewAcquirer(nil), auth.CredentialsFor(&cfg.Environment))

	return &harness{
		server:    server,
		api:       ecare.New(client.New(cfg, client.WithTokenSource(session)), cfg.Environment.APIPrefix),
		generator: fixtures.New(cfg.Environment.TenantID),
	}
}

func TestEndpoints(t *testing.T) {
	t.Parallel()

	endpoints := ecare.NewEndpoints("api/master/")

	assert.Equal(t, "/api/master/provider", endpoints.Providers())
	assert.Equal(t, "/api/master/provider/{id}", endpoints.Template(ecare.ProviderPath))

	path, err := endpoints.ProviderAvailability("a b/c")
	require.NoError(t, err)
	assert.Equal(t, "/api/master/provider/availability-setting/a%20b%2Fc", path)

	path, err = ecare.NewEndpoints("").Patient("1234")
	require.NoError(t, err)
	assert.Equal(t, "/patient/1234", path)
}

func TestProviderLifecycle(t *testing.T) {
	t.Parallel()

	h := newHarness(t, fakeapi.Options{})
	ctx := context.Background()

	provider := h.generator.Provider()

	envelope, err := h.api.CreateProvider(ctx, provider)
	require.NoError(t, err)
	assert.Equal(t, string(ecareerrors.CodeProviderCreated), envelope.Code)

	providers, err := h.api.ListProviders(ctx)
	require.NoError(t, err)
	require.Len(t, providers, 1)
	assert.Equal(t, provider.Email, providers[0].Email)

	id := providers[0].UUID

	found, err := h.api.GetProvider(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ecare.LookupFound, found.Status)
	assert.Equal(t, id, found.Body["uuid"])

	missing, err := h.api.GetProvider(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, ecare.LookupNotFound, missing.Status)

	_, err = h.api.SetAvailability(ctx, h.generator.Availability(id))
	require.NoError(t, err)

	availability, err := h.api.GetAvailability(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ecare.LookupFound, availability.Status)
}

func TestCreateProviderDuplicate(t *testing.T) {
	t.Parallel()

	h := newHarness(t, fakeapi.Options{})

	provider := h.generator.Provider()

	_, err := h.api.CreateProvider(context.Background(), provider)
	require.NoError(t, err)

	_, err = h.api.CreateProvider(context.Background(), provider)
	require.True(t, ecareerrors.IsStatus(err, http.StatusConflict))
}

func TestCreatePatientEnvelope(t *testing.T) {
	t.Parallel()

	h := newHarness(t, fakeapi.Options{})

	created, err := h.api.CreatePatient(context.Background(), h.generator.Patient())
	require.NoError(t, err)
	require.NotNil(t, created.Envelope)
	assert.Empty(t, created.ID)
	assert.Contains(t, created.Envelope.Message, "Successfully")
}

// staticAPI talks to handler with a valid bearer token and no identity
// provider round trip.
func staticAPI(t *testing.T, handler http.Handler) *ecare.API {
	t.Helper()

	fake := fakeapi.New(t, fakeapi.Options{})
	cfg := fake.Config()

	token, err := fake.IssueToken(time.Hour)
	require.NoError(t, err)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg.Environment.BaseURL = server.URL

	return ecare.New(client.New(cfg, client.WithTokenSource(auth.NewStaticSession(token))), cfg.Environment.APIPrefix)
}

func TestCreatePatientEnvelopeWithoutSuccess(t *testing.T) {
	t.Parallel()

	api := staticAPI(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"code":"PATIENT_CREATED","message":"Patient queued"}`))
	}))

	_, err := api.CreatePatient(context.Background(), fixtures.New("tenant").Patient())
	require.ErrorIs(t, err, ecareerrors.ErrUnexpectedResponse)
}

func TestCreatePatientEcho(t *testing.T) {
	t.Parallel()

	h := newHarness(t, fakeapi.Options{EchoPatients: true, PatientNoContent: true})

	created, err := h.api.CreatePatient(context.Background(), h.generator.Patient())
	require.NoError(t, err)
	assert.Nil(t, created.Envelope)
	require.NotEmpty(t, created.ID)

	patients, err := h.api.ListPatients(context.Background())
	require.NoError(t, err)
	require.Len(t, patients, 1)
	assert.Equal(t, created.ID, patients[0].UUID)

	lookup, err := h.api.GetPatient(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, ecare.LookupNoContent, lookup.Status)
}

func TestListPatientsFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, fakeapi.Options{FailPatientList: true})

	_, err := h.api.ListPatients(context.Background())
	require.True(t, ecareerrors.IsStatus(err, http.StatusInternalServerError))
}

func TestBookAppointment(t *testing.T) {
	t.Parallel()

	h := newHarness(t, fakeapi.Options{EchoPatients: true})
	ctx := context.Background()

	provider := h.generator.Provider()

	_, err := h.api.CreateProvider(ctx, provider)
	require.NoError(t, err)

	providerID := h.server.Providers()[0].UUID

	created, err := h.api.CreatePatient(ctx, h.generator.Patient())
	require.NoError(t, err)

	// No availability yet.
	_, err = h.api.BookAppointment(ctx, h.generator.Appointment(providerID, created.ID))
	require.True(t, ecareerrors.IsAvailabilityNotFound(err))

	_, err = h.api.SetAvailability(ctx, h.generator.Availability(providerID))
	require.NoError(t, err)

	booking, err := h.api.BookAppointment(ctx, h.generator.Appointment(providerID, created.ID))
	require.NoError(t, err)
	assert.NotEmpty(t, booking.ID)
	assert.Len(t, h.server.Appointments(), 1)
}

func TestVerifyToken(t *testing.T) {
	t.Parallel()

	h := newHarness(t, fakeapi.Options{})

	status, err := h.api.VerifyToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ecare.TokenAccepted, status)
	assert.True(t, status.Usable())
}

func TestVerifyTokenRejected(t *testing.T) {
	t.Parallel()

	server := fakeapi.New(t, fakeapi.Options{})
	cfg := server.Config()

	// Signed by someone else.
	other := fakeapi.New(t, fakeapi.Options{})

	token, err := other.IssueToken(time.Hour)
	require.NoError(t, err)

	api := ecare.New(client.New(cfg, client.WithTokenSource(auth.NewStaticSession(token))), cfg.Environment.APIPrefix)

	status, err := api.VerifyToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ecare.TokenRejected, status)
	assert.False(t, status.Usable())
}

func TestVerifyTokenInconclusive(t *testing.T) {
	t.Parallel()

	server := fakeapi.New(t, fakeapi.Options{TenantID: "someone_else"})
	cfg := server.Config()
	cfg.Environment.TenantID = "stage_aithinkitive"

	session := auth.NewSession(auth.NewAcquirer(nil), auth.CredentialsFor(&cfg.Environment))
	api := ecare.New(client.New(cfg, client.WithTokenSource(session)), cfg.Environment.APIPrefix)

	status, err := api.VerifyToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ecare.TokenInconclusive, status)
	assert.True(t, status.Usable())
}

func TestVerifyTokenUnreachable(t *testing.T) {
	t.Parallel()

	api := staticAPI(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Drop the connection without a response.
		if hijacker, ok := w.(http.Hijacker); ok {
			if conn, _, err := hijacker.Hijack(); err == nil {
				_ = conn.Close()
			}
		}
	}))

	status, err := api.VerifyToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ecare.TokenInconclusive, status)
	assert.True(t, status.Usable())
}

func TestVerifyTokenExpired(t *testing.T) {
	t.Parallel()

	fake := fakeapi.New(t, fakeapi.Options{})
	cfg := fake.Config()

	token, err := fake.IssueToken(-time.Minute)
	require.NoError(t, err)

	api := ecare.New(client.New(cfg, client.WithTokenSource(auth.NewStaticSession(token))), cfg.Environment.APIPrefix)

	_, err = api.VerifyToken(context.Background())
	require.ErrorIs(t, err, ecareerrors.ErrTokenExpired)
}
