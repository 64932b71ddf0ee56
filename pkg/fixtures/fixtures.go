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

// Package fixtures generates request bodies for test entities.  Values are
// random but always valid, and the fields used to find an entity again after
// creation are unique per call.
package fixtures

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nscaledev/ecare-e2e/pkg/ecare"

	"k8s.io/utils/clock"
	"k8s.io/utils/ptr"
)

const (
	// EmailDomain is where provider mailboxes live.
	EmailDomain = "medarch.com"

	// Timezone is the zone availability and appointments are expressed in.
	Timezone = "EST"

	// AppointmentHour is the local start hour of generated appointments, it
	// falls inside the generated availability.
	AppointmentHour = 10

	// AppointmentDuration is the length of generated appointments.
	AppointmentDuration = 30 * time.Minute

	// BookingWindowDays is how far ahead availability can be booked.
	BookingWindowDays = 90

	// ComplaintPrefix marks appointments made by the harness.
	ComplaintPrefix = "Automated test: "
)

//nolint:gochecknoglobals
var (
	// est is a fixed UTC-5 offset, daylight saving is not applied.
	est = time.FixedZone(Timezone, -5*60*60)

	providerFirstNames = []string{"John", "Jane", "Michael", "Sarah", "David", "Emily", "Robert", "Lisa"}
	providerLastNames  = []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis"}
	patientFirstNames  = []string{"Alex", "Sam", "Jordan", "Taylor", "Casey", "Morgan", "Riley", "Avery"}
	patientLastNames   = []string{"Peterson", "Anderson", "Thompson", "Martinez", "Robinson", "Clark", "Lewis", "Walker"}

	complaints = []string{
		"Routine checkup and consultation",
		"Follow-up appointment for ongoing treatment",
		"General health assessment",
		"Preventive care consultation",
		"Health screening appointment",
	}

	weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

	earliestBirth = time.Date(1950, time.January, 1, 0, 0, 0, 0, time.UTC)
	latestBirth   = time.Date(2000, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// Generator produces fixtures.
type Generator struct {
	clock    clock.PassiveClock
	rand     *rand.Rand
	tenantID string
}

// Option customises a generator.
type Option func(*Generator)

// WithClock replaces the wall clock.
func WithClock(clock clock.PassiveClock) Option {
	return func(g *Generator) {
		g.clock = clock
	}
}

// WithSeed makes the random choices reproducible.  Identifiers stay unique.
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.rand = rand.New(rand.NewPCG(seed, seed))
	}
}

// New returns a generator for the given tenant.
func New(tenantID string, options ...Option) *Generator {
	g := &Generator{
		clock:    clock.RealClock{},
		rand:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		tenantID: tenantID,
	}

	for _, o := range options {
		o(g)
	}

	return g
}

func pick[T any](r *rand.Rand, values []T) T {
	return values[r.IntN(len(values))]
}

func (g *Generator) gender() string {
	if g.rand.IntN(2) == 0 {
		return "MALE"
	}

	return "FEMALE"
}

// ProviderEmail returns a fresh address.  The timestamp orders addresses by
// creation, the random suffix keeps two calls in the same millisecond apart.
func (g *Generator) ProviderEmail() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

	return fmt.Sprintf("test.provider.%d.%s@%s", g.clock.Now().UnixMilli(), suffix, EmailDomain)
}

// Provider returns a new provider.
func (g *Generator) Provider() *ecare.Provider {
	return &ecare.Provider{
		RoleType:           "PROVIDER",
		Active:             ptr.To(false),
		AdminAccess:        ptr.To(true),
		Status:             ptr.To(false),
		Role:               "PROVIDER",
		FirstName:          pick(g.rand, providerFirstNames),
		LastName:           pick(g.rand, providerLastNames),
		Gender:             g.gender(),
		Email:              g.ProviderEmail(),
		LicenceInformation: []ecare.LicenceInformation{{}},
		DEAInformation:     []ecare.DEAInformation{{}},
	}
}

// BirthDate returns a random instant between 1950 and the end of 2000.
func (g *Generator) BirthDate() time.Time {
	span := latestBirth.Sub(earliestBirth)

	return earliestBirth.Add(time.Duration(g.rand.Int64N(int64(span)))).Truncate(time.Millisecond)
}

// Patient returns a new patient.
func (g *Generator) Patient() *ecare.Patient {
	now := g.clock.Now().UTC()

	return &ecare.Patient{
		PhoneNotAvailable: true,
		EmailNotAvailable: true,
		FirstName:         pick(g.rand, patientFirstNames),
		LastName:          pick(g.rand, patientLastNames),
		Timezone:          "IST",
		BirthDate:         g.BirthDate().Format(time.RFC3339Nano),
		Gender:            g.gender(),
		EmergencyContacts: []ecare.EmergencyContact{{}},
		PatientInsurances: []ecare.PatientInsurance{
			{
				Active:         true,
				CopayType:      "FIXED",
				InsurancePayer: map[string]any{},
			},
		},
		EmailConsent:   ptr.To(false),
		MessageConsent: ptr.To(false),
		CallConsent:    ptr.To(false),
		PatientConsentEntities: []ecare.PatientConsent{
			{
				SignedDate: now.Format(time.RFC3339Nano),
			},
		},
	}
}

// Availability returns weekday availability, 09:00 to 17:00 virtual with 30
// minute slots for new patients.
func (g *Generator) Availability(providerID string) *ecare.Availability {
	slots := make([]ecare.DaySlot, len(weekdays))

	for i, day := range weekdays {
		slots[i] = ecare.DaySlot{
			Day:              strings.ToUpper(day.String()),
			StartTime:        "09:00:00",
			EndTime:          "17:00:00",
			AvailabilityMode: "VIRTUAL",
		}
	}

	return &ecare.Availability{
		SetToWeekdays: true,
		ProviderID:    providerID,
		BookingWindow: fmt.Sprintf("%d", BookingWindowDays),
		Timezone:      Timezone,
		Settings: []ecare.AvailabilitySetting{
			{
				Type:          "NEW",
				SlotTime:      fmt.Sprintf("%d", int(AppointmentDuration.Minutes())),
				MinNoticeUnit: "8_HOUR",
			},
		},
		BlockDays:  []string{},
		DaySlots:   slots,
		BookBefore: "undefined undefined",
		TenantID:   g.tenantID,
	}
}

// NextWeekday returns the first Monday to Friday strictly after the day
// containing t, in t's location, at midnight.
func NextWeekday(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())

	for {
		day = day.AddDate(0, 0, 1)

		if day.Weekday() != time.Saturday && day.Weekday() != time.Sunday {
			return day
		}
	}
}

// AppointmentSlot returns the start and end of the next bookable slot.
func (g *Generator) AppointmentSlot() (time.Time, time.Time) {
	day := NextWeekday(g.clock.Now().In(est))
	start := time.Date(day.Year(), day.Month(), day.Day(), AppointmentHour, 0, 0, 0, est)

	return start.UTC(), start.Add(AppointmentDuration).UTC()
}

// Appointment returns a booking for the next weekday at 10:00 EST.
func (g *Generator) Appointment(providerID, patientID string) *ecare.Appointment {
	start, end := g.AppointmentSlot()

	return &ecare.Appointment{
		Mode:                 "VIRTUAL",
		PatientID:            patientID,
		Type:                 "NEW",
		PaymentType:          "CASH",
		ProviderID:           providerID,
		StartTime:            start.Format(time.RFC3339Nano),
		EndTime:              end.Format(time.RFC3339Nano),
		Forms:                []string{},
		ChiefComplaint:       ComplaintPrefix + pick(g.rand, complaints),
		RecurringFrequency:   "daily",
		EndType:              "never",
		EndDate:              g.clock.Now().UTC().AddDate(0, 0, 30).Format(time.RFC3339Nano),
		EndAfter:             ptr.To(5),
		CustomFrequency:      ptr.To(1),
		CustomFrequencyUnit:  "days",
		SelectedWeekdays:     []string{},
		ReminderBeforeNumber: ptr.To(1),
		Timezone:             Timezone,
		Duration:             int(AppointmentDuration.Minutes()),
		TenantID:             g.tenantID,
	}
}
