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
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nscaledev/ecare-e2e/pkg/consistency"
	ecareerrors "github.com/nscaledev/ecare-e2e/pkg/errors"
	"github.com/nscaledev/ecare-e2e/pkg/resolver"
	"github.com/nscaledev/ecare-e2e/pkg/scenario"
	"github.com/nscaledev/ecare-e2e/pkg/testing/fakeapi"
	"github.com/nscaledev/ecare-e2e/test/api"
)

func runScenario() *scenario.Report {
	orchestrator := scenario.New(harness.Config, harness.API, harness.Session, harness.Generator, consistency.New(&harness.Config.Options))

	report, err := orchestrator.Run(ctx)
	if err != nil {
		if status, body, ok := scenario.ErrorBody(err); ok {
			GinkgoWriter.Printf("Server responded %d: %s\n", status, body)
		}
	}

	Expect(err).NotTo(HaveOccurred())

	for _, step := range report.Steps {
		GinkgoWriter.Printf("%-20s %-10s %s\n", step.Name, step.Outcome, step.Reason)
	}

	return report
}

var _ = Describe("Clinician Management Scenario", func() {
	Context("When running the full flow", func() {
		It("should create a provider and a patient and book an appointment between them", func() {
			report := runScenario()

			Expect(report.Succeeded()).To(BeTrue())
			Expect(report.ProviderID).NotTo(BeEmpty())
			Expect(report.PatientID).NotTo(BeEmpty())

			// A live API may not confirm availability in time, that is
			// tolerated rather than failed.
			booking := report.Step(scenario.StepBookAppointment)
			Expect(booking).NotTo(BeNil())
			Expect(booking.Outcome).To(BeElementOf(scenario.Passed, scenario.Degraded))

			if booking.Outcome == scenario.Passed {
				Expect(report.AppointmentID).NotTo(BeEmpty())
			}
		})

		It("should pass every step against a well behaved API", func() {
			harness.RequireFake()

			report := runScenario()

			Expect(report.Shortfalls()).To(BeEmpty())
			Expect(report.ProviderConfidence).To(Equal(resolver.Exact))
			Expect(report.PatientConfidence).To(Equal(resolver.Exact))
			Expect(harness.Fake.Appointments()).To(HaveLen(1))
			Expect(harness.Fake.Appointments()[0].ProviderID).To(Equal(report.ProviderID))
			Expect(harness.Fake.Appointments()[0].PatientID).To(Equal(report.PatientID))
		})
	})

	Context("When new patients never show up in the list", func() {
		BeforeEach(func() {
			harness = api.NewHarness(fakeapi.Options{HidePatients: true})
			harness.RequireFake()
		})

		It("should skip the steps that need a patient identifier", func() {
			report := runScenario()

			Expect(report.Succeeded()).To(BeTrue())
			Expect(report.PatientID).To(BeEmpty())

			for _, name := range []string{scenario.StepGetPatient, scenario.StepBookAppointment} {
				step := report.Step(name)
				Expect(step).NotTo(BeNil())
				Expect(step.Outcome).To(Equal(scenario.Skipped))

				var skipped *ecareerrors.SkippedError
				Expect(step.Err).To(BeAssignableToTypeOf(skipped))
			}

			Expect(harness.Fake.Appointments()).To(BeEmpty())
		})
	})

	Context("When booking cannot see the provider's availability", func() {
		BeforeEach(func() {
			harness = api.NewHarness(fakeapi.Options{RejectAppointments: true})
			harness.RequireFake()
		})

		It("should record the booking as degraded", func() {
			report := runScenario()

			Expect(report.Succeeded()).To(BeTrue())
			Expect(report.Step(scenario.StepBookAppointment).Outcome).To(Equal(scenario.Degraded))
			Expect(report.AppointmentID).To(BeEmpty())
		})
	})

	Context("When the patient API answers with the created record", func() {
		BeforeEach(func() {
			harness = api.NewHarness(fakeapi.Options{EchoPatients: true, PatientNoContent: true})
			harness.RequireFake()
		})

		It("should take the identifier from the response and tolerate an empty read", func() {
			report := runScenario()

			Expect(report.PatientConfidence).To(Equal(resolver.Exact))
			Expect(report.Step(scenario.StepGetPatient).Outcome).To(Equal(scenario.Degraded))
			Expect(report.Step(scenario.StepBookAppointment).Outcome).To(Equal(scenario.Passed))
		})
	})
})
