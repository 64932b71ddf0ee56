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

package ecare

import (
	"fmt"
	"strings"

	"github.com/oapi-codegen/runtime"
)

// Path templates relative to the API prefix.
const (
	ProvidersPath     = "/provider"
	ProviderPath      = "/provider/{id}"
	AvailabilityPath  = "/provider/availability-setting"
	ProviderAvailPath = "/provider/availability-setting/{providerId}"
	PatientsPath      = "/patient"
	PatientPath       = "/patient/{id}"
	AppointmentsPath  = "/appointment"
)

// Endpoints contains all API endpoint patterns.
type Endpoints struct {
	prefix string
}

// NewEndpoints creates a new Endpoints instance rooted at the API prefix.
func NewEndpoints(prefix string) *Endpoints {
	prefix = "/" + strings.Trim(prefix, "/")
	if prefix == "/" {
		prefix = ""
	}

	return &Endpoints{
		prefix: prefix,
	}
}

// Template returns the full un-parameterised path.
func (e *Endpoints) Template(path string) string {
	return e.prefix + path
}

func (e *Endpoints) withID(path, name, id string) (string, error) {
	value, err := runtime.StyleParamWithLocation("simple", false, name, runtime.ParamLocationPath, id)
	if err != nil {
		return "", fmt.Errorf("encoding path parameter %s: %w", name, err)
	}

	return e.prefix + strings.Replace(path, "{"+name+"}", value, 1), nil
}

// Provider endpoints.
func (e *Endpoints) Providers() string {
	return e.Template(ProvidersPath)
}

func (e *Endpoints) Provider(id string) (string, error) {
	return e.withID(ProviderPath, "id", id)
}

// Availability endpoints.
func (e *Endpoints) Availability() string {
	return e.Template(AvailabilityPath)
}

func (e *Endpoints) ProviderAvailability(providerID string) (string, error) {
	return e.withID(ProviderAvailPath, "providerId", providerID)
}

// Patient endpoints.
func (e *Endpoints) Patients() string {
	return e.Template(PatientsPath)
}

func (e *Endpoints) Patient(id string) (string, error) {
	return e.withID(PatientPath, "id", id)
}

// Appointment endpoints.
func (e *Endpoints) Appointments() string {
	return e.Template(AppointmentsPath)
}
