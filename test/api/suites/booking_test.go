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

	ecareerrors "github.com/nscaledev/ecare-e2e/pkg/errors"
	"github.com/nscaledev/ecare-e2e/test/api"
)

var _ = Describe("Appointment Booking", func() {
	Context("When the provider has availability", func() {
		It("should book a weekday morning slot", func() {
			provider := api.CreateProvider(ctx, harness)
			api.SetAvailability(ctx, harness, provider.ID)

			patient := api.CreatePatient(ctx, harness)

			appointment := harness.Generator.Appointment(provider.ID, patient.ID)

			booking, err := harness.API.BookAppointment(ctx, appointment)
			if ecareerrors.IsAvailabilityNotFound(err) {
				Skip("availability not yet visible to booking")
			}

			Expect(err).NotTo(HaveOccurred())
			Expect(booking.ID).NotTo(BeEmpty())

			GinkgoWriter.Printf("Booked appointment %s at %s\n", booking.ID, appointment.StartTime)
		})
	})

	Context("When the provider has no availability", func() {
		It("should refuse the booking", func() {
			harness.RequireFake()

			provider := api.CreateProvider(ctx, harness)
			patient := api.CreatePatient(ctx, harness)

			_, err := harness.API.BookAppointment(ctx, harness.Generator.Appointment(provider.ID, patient.ID))
			Expect(err).To(HaveOccurred())
			Expect(ecareerrors.IsAvailabilityNotFound(err)).To(BeTrue())
		})
	})
})
