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

//go:generate mockgen -source=interfaces.go -destination=mock/interfaces.go -package=mock

package scenario

import (
	"context"

	"github.com/nscaledev/ecare-e2e/pkg/auth"
	"github.com/nscaledev/ecare-e2e/pkg/ecare"
)

// API is the subset of the resource API a scenario drives.
type API interface {
	CreateProvider(ctx context.Context, provider *ecare.Provider) (*ecare.Envelope, error)
	ListProviders(ctx context.Context) ([]ecare.ProviderRecord, error)
	GetProvider(ctx context.Context, id string) (*ecare.Lookup, error)
	SetAvailability(ctx context.Context, availability *ecare.Availability) (map[string]any, error)
	GetAvailability(ctx context.Context, providerID string) (*ecare.Lookup, error)
	CreatePatient(ctx context.Context, patient *ecare.Patient) (*ecare.PatientCreated, error)
	ListPatients(ctx context.Context) ([]ecare.PatientRecord, error)
	GetPatient(ctx context.Context, id string) (*ecare.Lookup, error)
	BookAppointment(ctx context.Context, appointment *ecare.Appointment) (*ecare.Booking, error)
}

// Authenticator logs in at the start of a scenario.
type Authenticator interface {
	Authenticate(ctx context.Context) (*auth.Token, error)
}

// StepObserver records step outcomes.
type StepObserver interface {
	ObserveStep(step, outcome string)
}
