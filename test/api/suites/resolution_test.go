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


//nolint:testpackage,revive // test package in suites is standard for these tests
package suites

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nscaledev/ecare-e2e/pkg/ecare"
	ecareerrors "github.com/nscaledev/ecare-e2e/pkg/errors"
	"github.com/nscaledev/ecare-e2e/pkg/resolver"
	"github.com/nscaledev/ecare-e2e/pkg/testing/fakeapi"
	"github.com/nscaledev/ecare-e2e/test/api"
)

var _ = Describe("Entity Resolution", func() {
	Context("When a provider has just been created", func() {
		It("should find it by email", func() {
			fixture := api.CreateProvider(ctx, harness)

			records, err := harness.API.ListProviders(ctx)
			Expect(err).NotTo(HaveOccurred())
			api.VerifyProviderPresence(records, fixture.Provider.Email)

			lookup, err := harness.API.GetProvider(ctx, fixture.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(lookup.Status).To(Equal(ecare.LookupFound))
		})
	})

	Context("When the list lags behind writes", func() {
		BeforeEach(func() {
			harness = api.NewHarness(fakeapi.Options{ListLag: 2})
			harness.RequireFake()

			harness.Fake.SeedProvider(ecare.ProviderRecord{UUID: "existing", Email: "existing@medarch.com"})
		})

		It("should fall back to the newest record without polling", func() {
			provider := harness.Generator.Provider()

			_, err := harness.API.CreateProvider(ctx, provider)
			Expect(err).NotTo(HaveOccurred())

			reference := resolver.Providers(harness.API.ListProviders, nil).Resolve(ctx, resolver.ByEmail(provider.Email))
			Expect(reference.Confidence).To(Equal(resolver.Fallback))
			Expect(reference.ID).To(Equal("existing"))
			Expect(reference.Verified()).To(BeFalse())
		})

		It("should resolve exactly once the record is visible", func() {
			fixture := api.CreateProvider(ctx, harness)

			Expect(fixture.ID).To(Equal(harness.Fake.Providers()[0].UUID))
		})
	})

	Context("When several patients share a name and birth date", func() {
		var patient *ecare.Patient

		BeforeEach(func() {
			harness.RequireFake()

			patient = harness.Generator.Patient()

			for _, id := range []string{"twin-1", "twin-2"} {
				harness.Fake.SeedPatient(ecare.PatientRecord{
					UUID:      id,
					FirstName: patient.FirstName,
					LastName:  patient.LastName,
					BirthDate: patient.BirthDate,
				})
			}
		})

		It("should use the newest match and flag it as ambiguous", func() {
			match := resolver.ByNameAndBirthDate(patient.FirstName, patient.LastName, patient.BirthDate)

			reference := resolver.Patients(harness.API.ListPatients, nil).Resolve(ctx, match)
			Expect(reference.Confidence).To(Equal(resolver.Ambiguous))
			Expect(reference.ID).To(Equal("twin-2"))

			var resolutionErr *ecareerrors.ResolutionError
			Expect(errors.As(reference.Err, &resolutionErr)).To(BeTrue())
			Expect(resolutionErr.Kind).To(Equal(ecareerrors.ResolutionAmbiguous))
		})
	})

	Context("When the patient list is broken", func() {
		BeforeEach(func() {
			harness = api.NewHarness(fakeapi.Options{FailPatientList: true})
			harness.RequireFake()
		})

		It("should report the identifier as unavailable", func() {
			reference := resolver.Patients(harness.API.ListPatients, nil).Resolve(ctx, resolver.ByNameAndBirthDate("a", "b", "2000-01-01"))
			Expect(reference.Resolved()).To(BeFalse())
			Expect(reference.Confidence).To(Equal(resolver.Unresolved))

			var statusErr *ecareerrors.UnexpectedStatusError
			Expect(errors.As(reference.Err, &statusErr)).To(BeTrue())
			Expect(statusErr.Status).To(Equal(500))
		})
	})
})
