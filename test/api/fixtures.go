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


//nolint:revive,staticcheck // dot imports are standard for Ginkgo/Gomega test code
package api

import (
	"context"
	"slices"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spjmurray/go-util/pkg/set"

	"github.com/nscaledev/ecare-e2e/pkg/ecare"
	"github.com/nscaledev/ecare-e2e/pkg/resolver"
)

// ProviderFixture is a provider created by a spec.
type ProviderFixture struct {
	Provider *ecare.Provider
	ID       string
}

// CreateProvider creates a provider and waits until it can be found by
// email in the provider list.  Providers cannot be deleted through the API,
// the unique email keeps runs apart.
func CreateProvider(ctx context.Context, h *Harness) *ProviderFixture {
	provider := h.Generator.Provider()

	envelope, err := h.API.CreateProvider(ctx, provider)
	Expect(err).NotTo(HaveOccurred(), "provider creation should succeed")
	Expect(envelope.Code).To(Equal("PROVIDER_CREATED"))

	GinkgoWriter.Printf("Created provider %s\n", provider.Email)

	resolve := resolver.Providers(h.API.ListProviders, nil)

	var reference resolver.Reference[ecare.ProviderRecord]

	Eventually(func() resolver.Confidence {
		reference = resolve.Resolve(ctx, resolver.ByEmail(provider.Email))

		return reference.Confidence
	}).WithTimeout(h.Timeout).WithPolling(h.Polling).Should(Equal(resolver.Exact), "provider %s should appear in the list", provider.Email)

	GinkgoWriter.Printf("Resolved provider %s to %s\n", provider.Email, reference.ID)

	return &ProviderFixture{
		Provider: provider,
		ID:       reference.ID,
	}
}

// SetAvailability gives the provider bookable hours and waits until they
// can be read back.
func SetAvailability(ctx context.Context, h *Harness, providerID string) *ecare.Availability {
	availability := h.Generator.Availability(providerID)

	_, err := h.API.SetAvailability(ctx, availability)
	Expect(err).NotTo(HaveOccurred(), "setting availability should succeed")

	Eventually(func() (ecare.LookupStatus, error) {
		lookup, err := h.API.GetAvailability(ctx, providerID)
		if err != nil {
			return "", err
		}

		return lookup.Status, nil
	}).WithTimeout(h.Timeout).WithPolling(h.Polling).Should(Equal(ecare.LookupFound), "availability for %s should be readable", providerID)

	return availability
}

// PatientFixture is a patient created by a spec.
type PatientFixture struct {
	Patient *ecare.Patient
	ID      string
}

// CreatePatient creates a patient and waits until its identifier is known,
// either from the create response or from the patient list.
func CreatePatient(ctx context.Context, h *Harness) *PatientFixture {
	patient := h.Generator.Patient()

	created, err := h.API.CreatePatient(ctx, patient)
	Expect(err).NotTo(HaveOccurred(), "patient creation should succeed")

	GinkgoWriter.Printf("Created patient %s %s\n", patient.FirstName, patient.LastName)

	if created.ID != "" {
		return &PatientFixture{
			Patient: patient,
			ID:      created.ID,
		}
	}

	resolve := resolver.Patients(h.API.ListPatients, nil)
	match := resolver.ByNameAndBirthDate(patient.FirstName, patient.LastName, patient.BirthDate)

	var reference resolver.Reference[ecare.PatientRecord]

	Eventually(func() resolver.Confidence {
		reference = resolve.Resolve(ctx, match)

		return reference.Confidence
	}).WithTimeout(h.Timeout).WithPolling(h.Polling).Should(Equal(resolver.Exact), "patient %s %s should appear in the list", patient.FirstName, patient.LastName)

	return &PatientFixture{
		Patient: patient,
		ID:      reference.ID,
	}
}

// VerifyProviderPresence checks the providers with the given emails are
// listed.
func VerifyProviderPresence(records []ecare.ProviderRecord, emails ...string) {
	listed := make([]string, len(records))

	for i := range records {
		listed[i] = records[i].Email
	}

	missing := set.New[string](emails...).Difference(set.New[string](listed...))

	Expect(slices.Collect(missing.All())).To(BeEmpty(), "Expected providers to be present in the list")
}
